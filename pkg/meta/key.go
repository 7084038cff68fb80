package meta

import "strings"

// XTraceID is the header carrying the trace identifier between services.
// The same name is used as the log key, so every service must agree on it.
const XTraceID = "X-Trace-Id"

const (
	PrefixExtra = "extra."
)

const (
	ServiceName = "Service.name"
	Interface   = "Interface"
	Region      = "Deploy.region"
)

func ExtraKey(field string) string {
	return PrefixExtra + strings.ToLower(field)
}

func IsExtraKey(key string) bool {
	return strings.HasPrefix(key, PrefixExtra)
}
