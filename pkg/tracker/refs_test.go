package tracker

import "testing"

func TestParseClosesRef(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "closes", body: "Implements the widget.\n\nCloses #42", want: 42},
		{name: "fixes", body: "Fixes #7", want: 7},
		{name: "lowercase", body: "closes #123", want: 123},
		{name: "no space", body: "Closes#9", want: 9},
		{name: "first of several", body: "Closes #1\nCloses #2", want: 1},
		{name: "none", body: "Related to #42 but closes nothing", want: 0},
		{name: "empty body", body: "", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseClosesRef(tt.body); got != tt.want {
				t.Errorf("ParseClosesRef(%q) = %d, want %d", tt.body, got, tt.want)
			}
		})
	}
}

func TestParseParentRef(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "parent line", body: "Build the login form.\n\nParent: #42", want: 42},
		{name: "lowercase", body: "parent: #8", want: 8},
		{name: "none", body: "A standalone item", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseParentRef(tt.body); got != tt.want {
				t.Errorf("ParseParentRef(%q) = %d, want %d", tt.body, got, tt.want)
			}
		})
	}
}

func TestFormatRefsRoundTrip(t *testing.T) {
	if got := ParseParentRef(FormatParentRef(42)); got != 42 {
		t.Errorf("parent round trip = %d, want 42", got)
	}
	if got := ParseClosesRef(FormatClosesRef(42)); got != 42 {
		t.Errorf("closes round trip = %d, want 42", got)
	}
}
