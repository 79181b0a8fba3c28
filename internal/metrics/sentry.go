package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
)

const (
	// HTTP status code threshold for considering a request successful.
	successStatusCodeThreshold = http.StatusBadRequest
)

// SentryMetrics records request/evaluation metrics as Sentry spans,
// independent of whether CloudWatch is enabled.
type SentryMetrics struct {
	enabled bool
}

// NewSentryMetrics creates a new Sentry metrics recorder.
func NewSentryMetrics() *SentryMetrics {
	return &SentryMetrics{enabled: true}
}

// RecordAPIRequest records API request metrics.
func (m *SentryMetrics) RecordAPIRequest(ctx context.Context, endpoint string, statusCode int, duration time.Duration) {
	if !m.enabled {
		return
	}

	span := sentry.StartSpan(ctx, "api.request")
	defer span.Finish()

	span.SetTag("endpoint", endpoint)
	span.SetTag("status_code", fmt.Sprintf("%d", statusCode))
	span.SetTag("success", fmt.Sprintf("%t", statusCode < successStatusCodeThreshold))

	span.SetData("duration_ms", duration.Milliseconds())
	span.SetData("endpoint", endpoint)
	span.SetData("status_code", statusCode)

	if statusCode < successStatusCodeThreshold {
		span.Status = sentry.SpanStatusOK
	} else {
		span.Status = sentry.SpanStatusInternalError
	}

	span.Description = fmt.Sprintf("API Request: %s", endpoint)
}

// RecordEvaluate records a module.Reevaluate pass's duration and outcome.
func (m *SentryMetrics) RecordEvaluate(ctx context.Context, compositionID string, duration time.Duration, dirtyCount, corruptedCount int) {
	if !m.enabled {
		return
	}

	span := sentry.StartSpan(ctx, "module.reevaluate")
	defer span.Finish()

	span.SetTag("composition_id", compositionID)
	span.SetData("duration_ms", duration.Milliseconds())
	span.SetData("dirty_count", dirtyCount)
	span.SetData("corrupted_count", corruptedCount)

	if corruptedCount > 0 {
		span.SetTag("corrupted", "true")
	}
	span.Status = sentry.SpanStatusOK
	span.Description = fmt.Sprintf("Reevaluate: %s", compositionID)
}

// RecordCustomMetric sends a custom metric with arbitrary data.
func (m *SentryMetrics) RecordCustomMetric(metricName string, data map[string]interface{}) {
	if !m.enabled {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("metric_type", "custom")
		scope.SetTag("metric_name", metricName)
		scope.SetContext("custom_metric", data)
		sentry.CaptureMessage("Custom Metric: " + metricName)
	})
}
