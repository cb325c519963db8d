package tracker

import (
	"context"
	"fmt"
	"io"

	"github.com/cli/oauth"
	"github.com/cli/oauth/api"

	armyerrors "github.com/khenlevy/ai-army/pkg/errors"
)

const defaultAuthHost = "https://github.com"

// oauthScope covers everything the pipeline writes: issues, labels,
// comments, and pull request merges all ride the repo scope.
const oauthScope = "repo"

// OAuthConfig configures the device flow.
type OAuthConfig struct {
	ClientID string // OAuth app client ID, required
	HostURL  string // defaults to github.com
}

// DeviceAuth runs the OAuth device flow: it prints the one-time code and
// verification URL to out, then polls until the user authorizes the app.
// The pipeline often runs on headless hosts, so no browser is spawned.
func DeviceAuth(ctx context.Context, cfg OAuthConfig, out io.Writer) (*api.AccessToken, error) {
	if cfg.ClientID == "" {
		return nil, armyerrors.NewTrackerError("DeviceAuth",
			"github.client_id is required for the oauth auth method")
	}

	hostURL := cfg.HostURL
	if hostURL == "" {
		hostURL = defaultAuthHost
	}
	host, err := oauth.NewGitHubHost(hostURL)
	if err != nil {
		return nil, armyerrors.NewTrackerErrorWithCause("DeviceAuth", "invalid GitHub host URL", err)
	}

	flow := &oauth.Flow{
		Host:     host,
		ClientID: cfg.ClientID,
		Scopes:   []string{oauthScope},
		Stdout:   out,
		DisplayCode: func(code, verificationURL string) error {
			fmt.Fprintf(out, "Open %s and enter the code %s to authorize ai-army.\n", verificationURL, code)
			return nil
		},
		BrowseURL: func(string) error { return nil },
	}

	token, err := flow.DeviceFlow()
	if err != nil {
		return nil, armyerrors.NewTrackerErrorWithCause("DeviceAuth", "device flow failed", err)
	}
	return token, nil
}
