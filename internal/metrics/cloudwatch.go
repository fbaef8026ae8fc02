// Package metrics emits API and webhook telemetry to CloudWatch.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"stripefacility/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Verification results recorded under the Result dimension. Rejections use
// the webhook failure reason ("signature_mismatch", "stale_timestamp", ...).
const (
	ResultVerified  = "verified"
	ResultDuplicate = "duplicate"
)

// Recorder is the set of metrics the API emits.
type Recorder interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
	RecordVerification(ctx context.Context, endpoint, result string)
	RecordPublish(ctx context.Context, endpoint string, ok bool)
}

var (
	_ Recorder = (*CloudWatch)(nil)
	_ Recorder = Noop{}
)

// CloudWatch publishes metrics with PutMetricData. Publishing failures are
// logged and never returned to callers.
//
// Metrics emitted:
//   - APILatency: Dims {Endpoint, Method, Status}, milliseconds
//   - APIRequestCount: Dims {Endpoint, Method, Status}
//   - WebhookVerification: Dims {Endpoint, Result}
//   - EventPublished: Dims {Endpoint, Result}
type CloudWatch struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
	timeout   time.Duration
}

// NewCloudWatch creates a collector publishing into namespace, or
// types.MetricNamespace when namespace is empty.
func NewCloudWatch(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatch {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatch{
		client:    client,
		namespace: namespace,
		logger:    logger,
		timeout:   2 * time.Second,
	}
}

// RecordRequest emits latency and count for one HTTP request. The request
// context is already finished when this runs, so it uses its own deadline.
func (m *CloudWatch) RecordRequest(method, endpoint, status string, duration time.Duration) {
	dims := []cwtypes.Dimension{
		dimension(types.DimEndpoint, endpoint),
		dimension(types.DimMethod, method),
		dimension(types.DimStatus, status),
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.put(ctx, "failed to record request metrics",
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricAPILatency),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims,
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricAPIRequestCount),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		},
	)
}

// RecordVerification counts one webhook verification outcome.
func (m *CloudWatch) RecordVerification(ctx context.Context, endpoint, result string) {
	m.put(context.WithoutCancel(ctx), "failed to record verification metric",
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricWebhookVerification),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{
				dimension(types.DimEndpoint, endpoint),
				dimension(types.DimResult, result),
			},
		},
	)
}

// RecordPublish counts one hand-off of a verified event to the queue.
func (m *CloudWatch) RecordPublish(ctx context.Context, endpoint string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	m.put(context.WithoutCancel(ctx), "failed to record publish metric",
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricEventPublished),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{
				dimension(types.DimEndpoint, endpoint),
				dimension(types.DimResult, result),
			},
		},
	)
}

func (m *CloudWatch) put(ctx context.Context, failure string, data ...cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, failure,
			"error", err.Error(),
			"metric", aws.ToString(data[0].MetricName),
		)
	}
}

func dimension(name, value string) cwtypes.Dimension {
	if value == "" {
		value = "unknown"
	}
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

// Noop discards all metrics. It is used for local runs.
type Noop struct{}

func (Noop) RecordRequest(string, string, string, time.Duration) {}
func (Noop) RecordVerification(context.Context, string, string)  {}
func (Noop) RecordPublish(context.Context, string, bool)         {}
