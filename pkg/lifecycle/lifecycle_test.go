package lifecycle

import "testing"

func TestCurrentLabel(t *testing.T) {
	tests := []struct {
		name      string
		labels    []string
		want      string
		wantCount int
	}{
		{name: "no labels", labels: nil, want: "", wantCount: 0},
		{name: "category only", labels: []string{"frontend"}, want: "", wantCount: 0},
		{name: "single lifecycle", labels: []string{"backlog", "feature"}, want: "backlog", wantCount: 1},
		{name: "lifecycle plus category", labels: []string{"frontend", "in-progress"}, want: "in-progress", wantCount: 1},
		{name: "two lifecycle labels", labels: []string{"backlog", "prioritized"}, want: "backlog", wantCount: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, count := CurrentLabel(tt.labels)
			if got != tt.want || count != tt.wantCount {
				t.Errorf("CurrentLabel(%v) = (%q, %d), want (%q, %d)", tt.labels, got, count, tt.want, tt.wantCount)
			}
		})
	}
}

func TestCategory(t *testing.T) {
	if got := Category([]string{"in-progress", "backend"}); got != CategoryBackend {
		t.Errorf("Category = %q, want %q", got, CategoryBackend)
	}
	if got := Category([]string{"backlog"}); got != "" {
		t.Errorf("Category = %q, want empty", got)
	}
}

func TestIsLifecycleLabel(t *testing.T) {
	for _, l := range LifecycleLabels() {
		if !IsLifecycleLabel(l) {
			t.Errorf("IsLifecycleLabel(%q) = false", l)
		}
	}
	for _, l := range []string{"frontend", "backend", "fullstack", "feature", ""} {
		if IsLifecycleLabel(l) {
			t.Errorf("IsLifecycleLabel(%q) = true", l)
		}
	}
}
