package types

// Telemetry metric names for CloudWatch.
const (
	MetricAPILatency          = "APILatency"
	MetricAPIRequestCount     = "APIRequestCount"
	MetricWebhookVerification = "WebhookVerification"
	MetricEventPublished      = "EventPublished"

	DimEndpoint = "Endpoint"
	DimMethod   = "Method"
	DimStatus   = "Status"
	DimResult   = "Result"

	MetricNamespace = "StripeFacility"
)
