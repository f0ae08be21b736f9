package depot

import (
	"sort"
	"strings"
	"time"
)

// Every "latest commit" decision uses the same ordering: the commit
// timestamp first, then the commit id. Ids that are both all-digit compare
// numerically ("10" > "9"); otherwise they compare as strings, with
// numeric ids ordered before non-numeric ones.

// compareIDs returns -1, 0 or +1.
func compareIDs(a, b string) int {
	an, aNum := digitsOnly(a)
	bn, bNum := digitsOnly(b)

	switch {
	case aNum && bNum:
		if len(an) != len(bn) {
			if len(an) < len(bn) {
				return -1
			}
			return 1
		}
		return strings.Compare(an, bn)
	case aNum:
		return -1
	case bNum:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// digitsOnly reports whether s is a non-empty run of ASCII digits and
// returns it with leading zeros stripped.
func digitsOnly(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", false
		}
	}
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		trimmed = "0"
	}
	return trimmed, true
}

// compareCommits orders by timestamp, then id.
func compareCommits(aTime time.Time, aID string, bTime time.Time, bID string) int {
	switch {
	case aTime.Before(bTime):
		return -1
	case aTime.After(bTime):
		return 1
	}
	return compareIDs(aID, bID)
}

// SortCommits orders commits newest first.
func SortCommits(commits []*Commit) {
	sort.SliceStable(commits, func(i, j int) bool {
		return compareCommits(commits[i].Timestamp, commits[i].ID, commits[j].Timestamp, commits[j].ID) > 0
	})
}
