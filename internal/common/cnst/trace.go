package cnst

// Tracer names used across the services
const (
	// TraceIngest is the tracer name for the ingestion orchestrator
	TraceIngest = "gabeda/ingest"
	// TraceAnalytics is the tracer name for analytics providers
	TraceAnalytics = "gabeda/analytics"
)

// Common span names
const (
	SpanAttemptProcess  = "ingest.attempt.process"
	SpanStageLoad       = "ingest.stage.load"
	SpanStageMap        = "ingest.stage.map"
	SpanStageNormalize  = "ingest.stage.normalize"
	SpanStageWrite      = "ingest.stage.write"
	SpanStageAnalyze    = "ingest.stage.analyze"
	SpanStagePublish    = "ingest.stage.publish"
	SpanProviderRequest = "analytics.provider.request"
)

// Common attribute keys
const (
	AttrAttemptID     = "attempt.id"
	AttrTenantID      = "tenant.id"
	AttrRowsAccepted  = "rows.accepted"
	AttrRowsRejected  = "rows.rejected"
	AttrFallback      = "analytics.fallback"
	AttrErrorReason   = "error.reason"
	AttrProviderURL   = "analytics.provider.url"
	AttrHTTPStatus    = "http.status_code"
	AttrResultsCount  = "results.count"
	AttrStorageObject = "storage.object"
)
