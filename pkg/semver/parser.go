// Package semver provides version range checks for locator versions.
package semver

import (
	"fmt"
	"regexp"
	"strings"

	masterminds "github.com/Masterminds/semver/v3"
)

const logPrefix = "semver:parser"

var (
	majorOnlyRegex    = regexp.MustCompile(`^\d+$`)
	exactVersionRegex = regexp.MustCompile(`^\d+(\.\d+){0,2}(-[\w.]+)?(\+[\w.]+)?$`)
)

// ParseVersion parses a locator version. Short forms such as "1" or "1.0" are accepted.
func ParseVersion(version string) (*masterminds.Version, error) {
	sv, err := masterminds.NewVersion(strings.TrimSpace(version))
	if err != nil {
		return nil, fmt.Errorf("%s - invalid version %q: %w", logPrefix, version, err)
	}
	return sv, nil
}

// Canonical returns the MAJOR.MINOR.PATCH form of version, or version unchanged when it does not parse.
func Canonical(version string) string {
	sv, err := ParseVersion(version)
	if err != nil {
		return version
	}
	return sv.String()
}

// IsMajorOnly checks if a range is a major-only specifier (e.g., "3").
func IsMajorOnly(rangeStr string) bool {
	return majorOnlyRegex.MatchString(rangeStr)
}

// IsExactVersion checks if a range names one version (e.g., "3.2.1" or "1.0").
func IsExactVersion(rangeStr string) bool {
	return exactVersionRegex.MatchString(rangeStr) && !IsMajorOnly(rangeStr)
}

// ExtractMajorFromRange extracts the major version if the range is major-only.
// Returns -1 if not a major-only range.
func ExtractMajorFromRange(rangeStr string) int {
	if !IsMajorOnly(rangeStr) {
		return -1
	}
	var major int
	fmt.Sscanf(rangeStr, "%d", &major)
	return major
}
