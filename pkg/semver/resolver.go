package semver

import (
	"sort"

	masterminds "github.com/Masterminds/semver/v3"
)

// SatisfiesRange checks if a version string satisfies a range. An empty range
// accepts any parseable version; a major-only range ("2") accepts that major.
func SatisfiesRange(version, rangeStr string) bool {
	sv, err := ParseVersion(version)
	if err != nil {
		return false
	}
	if rangeStr == "" || rangeStr == "*" {
		return true
	}

	if IsMajorOnly(rangeStr) {
		return int(sv.Major()) == ExtractMajorFromRange(rangeStr)
	}

	if IsExactVersion(rangeStr) {
		want, err := ParseVersion(rangeStr)
		if err != nil {
			return false
		}
		return sv.Equal(want)
	}

	constraint, err := masterminds.NewConstraint(rangeStr)
	if err != nil {
		return false
	}
	return constraint.Check(sv)
}

// Compare orders two versions; unparseable versions sort below parseable ones.
func Compare(a, b string) int {
	va, errA := ParseVersion(a)
	vb, errB := ParseVersion(b)
	switch {
	case errA != nil && errB != nil:
		return 0
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	}
	return va.Compare(vb)
}

// SortDesc sorts versions highest first. The sort is stable so equal versions keep their order.
func SortDesc(versions []string) {
	sort.SliceStable(versions, func(i, j int) bool {
		return Compare(versions[i], versions[j]) > 0
	})
}

// Highest returns the highest version in versions satisfying rangeStr, or "" when none does.
func Highest(versions []string, rangeStr string) string {
	var matching []string
	for _, v := range versions {
		if SatisfiesRange(v, rangeStr) {
			matching = append(matching, v)
		}
	}
	if len(matching) == 0 {
		return ""
	}
	SortDesc(matching)
	return matching[0]
}
