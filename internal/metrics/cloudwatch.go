package metrics

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

const (
	namespace                = "Composer/Expression"
	httpStatusServerError    = 500
	cloudwatchTimeoutSeconds = 5
)

// Client wraps the CloudWatch client for custom metrics.
type Client struct {
	client      *cloudwatch.Client
	enabled     bool
	environment string
}

// NewClient creates a new CloudWatch metrics client. Metrics are only
// emitted when environment is "production" and cfg.CloudWatchEnabled.
func NewClient(ctx context.Context, environment string, enabled bool) (*Client, error) {
	if !enabled || environment != "production" {
		log.Printf("CloudWatch metrics: disabled (environment: %s)", environment)
		return &Client{enabled: false, environment: environment}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		log.Printf("failed to load AWS config for CloudWatch: %v", err)
		return &Client{enabled: false}, nil
	}

	client := cloudwatch.NewFromConfig(cfg)
	log.Printf("CloudWatch metrics: enabled (namespace: %s)", namespace)

	return &Client{
		client:      client,
		enabled:     true,
		environment: environment,
	}, nil
}

// RecordAPIRequest records an HTTP request's status and latency.
func (m *Client) RecordAPIRequest(endpoint string, statusCode int, duration time.Duration) {
	if !m.enabled {
		return
	}

	go func() {
		ctx := context.Background()
		metricName := "APIRequests"
		if statusCode >= httpStatusServerError {
			metricName = "APIErrors"
		}

		dimensions := []types.Dimension{
			{Name: aws.String("Endpoint"), Value: aws.String(endpoint)},
			{Name: aws.String("Environment"), Value: aws.String(m.environment)},
		}

		if err := m.putMetric(ctx, metricName, 1, types.StandardUnitCount, dimensions); err != nil {
			log.Printf("failed to record %s metric: %v", metricName, err)
		}
		latencyMs := float64(duration.Milliseconds())
		if err := m.putMetric(ctx, "APILatency", latencyMs, types.StandardUnitMilliseconds, dimensions); err != nil {
			log.Printf("failed to record APILatency metric: %v", err)
		}
	}()
}

// RecordEvaluate records the outcome of a module.Reevaluate call: how
// long it took, how many notes were in the dirty set, and how many notes
// in the whole composition ended up corrupted (spec §4.6/§7).
func (m *Client) RecordEvaluate(duration time.Duration, dirtyCount, noteCount, corruptedCount int) {
	if !m.enabled {
		return
	}

	go func() {
		ctx := context.Background()
		dimensions := []types.Dimension{
			{Name: aws.String("Environment"), Value: aws.String(m.environment)},
		}

		durationMs := float64(duration.Milliseconds())
		if err := m.putMetric(ctx, "EvaluateDurationMs", durationMs, types.StandardUnitMilliseconds, dimensions); err != nil {
			log.Printf("failed to record EvaluateDurationMs metric: %v", err)
		}
		if err := m.putMetric(ctx, "DirtySetSize", float64(dirtyCount), types.StandardUnitCount, dimensions); err != nil {
			log.Printf("failed to record DirtySetSize metric: %v", err)
		}
		if err := m.putMetric(ctx, "NoteCount", float64(noteCount), types.StandardUnitCount, dimensions); err != nil {
			log.Printf("failed to record NoteCount metric: %v", err)
		}
		if err := m.putMetric(ctx, "CorruptedNoteCount", float64(corruptedCount), types.StandardUnitCount, dimensions); err != nil {
			log.Printf("failed to record CorruptedNoteCount metric: %v", err)
		}
	}()
}

// putMetric sends a metric to CloudWatch.
func (m *Client) putMetric(
	_ context.Context,
	metricName string,
	value float64,
	unit types.StandardUnit,
	dimensions []types.Dimension,
) error {
	if !m.enabled || m.client == nil {
		return nil
	}

	timeout := time.Duration(cloudwatchTimeoutSeconds) * time.Second
	cwCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, err := m.client.PutMetricData(cwCtx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(namespace),
		MetricData: []types.MetricDatum{
			{
				MetricName: aws.String(metricName),
				Value:      aws.Float64(value),
				Unit:       unit,
				Timestamp:  aws.Time(time.Now()),
				Dimensions: dimensions,
			},
		},
	})

	return err
}
