package bus

import "strings"

// matchTopic reports whether topic matches pattern. A pattern ending in "*"
// matches any topic sharing its dot-path prefix: "order.*" matches
// "order.filled" and "order.filled.partial"; a bare "*" matches everything.
// Patterns without a trailing "*" require an exact match.
func matchTopic(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	if !strings.HasSuffix(pattern, "*") {
		return false
	}
	prefix := strings.TrimSuffix(pattern, "*")
	if prefix == "" {
		return true
	}
	prefix = strings.TrimSuffix(prefix, ".")
	if !strings.HasPrefix(topic, prefix) {
		return false
	}
	rest := topic[len(prefix):]
	return rest == "" || strings.HasPrefix(rest, ".")
}
