package transport

import (
	"fmt"
	"strings"
	"unicode"
)

// ValidTopic reports whether name can be used as a topic or namespace:
// non-empty, not just "/", no whitespace, and none of "@", "~", "//", ":=".
func ValidTopic(name string) bool {
	if name == "" || name == "/" {
		return false
	}
	if strings.ContainsAny(name, "@~") || strings.Contains(name, "//") || strings.Contains(name, ":=") {
		return false
	}
	for _, r := range name {
		if unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// FullyQualifiedTopic resolves topic against namespace. Absolute topics
// (leading "/") ignore the namespace; relative ones are placed under it.
// The result always starts with "/" and never ends with one.
func FullyQualifiedTopic(namespace, topic string) (string, error) {
	if !ValidTopic(topic) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	if namespace != "" && !ValidTopic(namespace) {
		return "", fmt.Errorf("%w: namespace %q", ErrInvalidTopic, namespace)
	}

	if !strings.HasPrefix(topic, "/") {
		if ns := strings.Trim(namespace, "/"); ns != "" {
			topic = "/" + ns + "/" + topic
		} else {
			topic = "/" + topic
		}
	}
	return strings.TrimSuffix(topic, "/"), nil
}
