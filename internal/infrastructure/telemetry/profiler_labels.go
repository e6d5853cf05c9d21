package telemetry

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys
const (
	ProfilingLabelController = "controller"
	ProfilingLabelRoute      = "route"
	ProfilingLabelMethod     = "method"
	ProfilingLabelTier       = "tier"
)

// MaxLabelValueLength caps label values to keep profile series bounded
const MaxLabelValueLength = 128

// unboundedLabels would create one profile series per request or entity
var unboundedLabels = []string{"subscriber_id", "request_id", "trace_id", "span_id", "event_id"}

// WithProfilingLabels runs fn with pyroscope labels attached to its goroutine.
// Empty and unbounded labels are dropped.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// sanitizeLabels flattens labels into key/value pairs ordered by key
func sanitizeLabels(labels map[string]string) []string {
	if labels == nil {
		return nil
	}
	pairs := []string{}
	for _, key := range slices.Sorted(maps.Keys(labels)) {
		value := labels[key]
		if value == "" || slices.Contains(unboundedLabels, key) {
			continue
		}
		if key = labelKey(key); key == "" {
			continue
		}
		if len(value) > MaxLabelValueLength {
			value = value[:MaxLabelValueLength]
		}
		pairs = append(pairs, key, value)
	}
	return pairs
}

// labelKey lowercases key, turns spaces and dashes into underscores and
// drops anything outside [a-z0-9_]
func labelKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == ' ' || r == '-':
			return '_'
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return -1
		}
	}, strings.ToLower(key))
}
