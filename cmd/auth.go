package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	armyerrors "github.com/khenlevy/ai-army/pkg/errors"
	"github.com/khenlevy/ai-army/pkg/tracker"
)

// authCmd groups authentication subcommands.
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage GitHub authentication",
}

// authLoginCmd runs the OAuth device flow and caches the token.
var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with GitHub via the OAuth device flow",
	RunE: func(cmd *cobra.Command, args []string) error {
		if appConfig == nil {
			return armyerrors.NewConfigError("config", "configuration not initialized")
		}

		token, err := tracker.DeviceAuth(cmd.Context(), tracker.OAuthConfig{
			ClientID: appConfig.GitHub.ClientID,
		}, cmd.OutOrStdout())
		if err != nil {
			return err
		}

		cache := tracker.NewTokenCache()
		if err := cache.Set(&oauth2.Token{AccessToken: token.Token, TokenType: token.Type}); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Authentication successful, token cached.")
		return nil
	},
}

// authLogoutCmd clears the cached token.
var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the cached GitHub token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := tracker.NewTokenCache().Clear(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Cached token removed.")
		return nil
	},
}

func init() {
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	rootCmd.AddCommand(authCmd)
}
