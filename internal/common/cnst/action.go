package cnst

// RunnerType selects how ingestion attempts are executed
type RunnerType string

const (
	// RunnerInline processes the attempt in the submitting goroutine
	RunnerInline RunnerType = "inline"
	// RunnerMemory queues attempts on a buffered channel
	RunnerMemory RunnerType = "memory"
	// RunnerRedis queues attempts on a redis list
	RunnerRedis RunnerType = "redis"
)

// DuplicatePolicy decides what happens when a file fingerprint was seen before
type DuplicatePolicy string

const (
	// DuplicateAllow ingests the file again as an independent batch
	DuplicateAllow DuplicatePolicy = "allow"
	// DuplicateReject refuses the upload and points at the existing attempt
	DuplicateReject DuplicatePolicy = "reject"
)

// StorageType selects the file provider backend
type StorageType string

const (
	StorageDisk StorageType = "disk"
	StorageS3   StorageType = "s3"
	StorageGCS  StorageType = "gcs"
)

// AnalyticsProviderType selects the analytics provider
type AnalyticsProviderType string

const (
	// AnalyticsLocal computes every analytics kind in process
	AnalyticsLocal AnalyticsProviderType = "local"
	// AnalyticsHTTP delegates to an external provider over HTTP
	AnalyticsHTTP AnalyticsProviderType = "http"
	// AnalyticsNone always produces the reduced fallback
	AnalyticsNone AnalyticsProviderType = "none"
)

// ParetoMode decides how the tenant's pareto threshold is read
type ParetoMode string

const (
	// ParetoTail reads the threshold as the long tail fraction, target share is 1 - threshold
	ParetoTail ParetoMode = "tail"
	// ParetoHead reads the threshold as the head share directly
	ParetoHead ParetoMode = "head"
)
