package tracker

import (
	"fmt"
	"regexp"
	"strconv"
)

// Cross-reference conventions tying pull requests and sub-items back to the
// work items that spawned them. A PR body saying "Closes #42" marks which
// item the merge completes; a sub-item body saying "Parent: #42" links a
// breakdown child to its parent feature.
var (
	closesRe = regexp.MustCompile(`(?i)(?:closes|fixes)\s*#(\d+)`)
	parentRe = regexp.MustCompile(`(?i)parent:\s*#(\d+)`)
)

// ParseClosesRef extracts the work item number a PR body claims to close.
// Returns 0 when the body carries no closing reference.
func ParseClosesRef(body string) int {
	return firstRef(closesRe, body)
}

// ParseParentRef extracts the parent item number from a sub-item body.
// Returns 0 when the body carries no parent reference.
func ParseParentRef(body string) int {
	return firstRef(parentRe, body)
}

// FormatParentRef renders the parent reference line for a sub-item body.
func FormatParentRef(parent int) string {
	return fmt.Sprintf("Parent: #%d", parent)
}

// FormatClosesRef renders the closing reference line for a PR body.
func FormatClosesRef(item int) string {
	return fmt.Sprintf("Closes #%d", item)
}

func firstRef(re *regexp.Regexp, body string) int {
	m := re.FindStringSubmatch(body)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
