package commsutil

import (
	"fmt"
	"regexp"
	"strings"
)

// Default NATS subjects and buckets.
const (
	SubjectChangeEvent = "components.changed"
	DiscoveryBucket    = "components_discovery"
)

var invalidKeyChars = regexp.MustCompile(`[^-/_=.a-zA-Z0-9]`)

// BuildChangeSubject builds a granular change event subject, e.g. "components.changed.dummy.created".
func BuildChangeSubject(prefix, entity, action string) string {
	if prefix == "" {
		prefix = SubjectChangeEvent
	}
	return fmt.Sprintf("%s.%s.%s", prefix, safeToken(entity), safeToken(action))
}

// SanitizeKey replaces characters that JetStream key-value keys do not allow.
func SanitizeKey(key string) string {
	key = strings.Trim(invalidKeyChars.ReplaceAllString(key, "_"), ".")
	if key == "" {
		return "_"
	}
	return key
}

func safeToken(s string) string {
	s = strings.ReplaceAll(s, ".", "_")
	s = strings.ReplaceAll(s, " ", "_")
	if s == "" {
		return "_"
	}
	return s
}
