package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Brownbull/gabeda-backend/pkg/trace"
)

type (
	APIServerConfig struct {
		Server     ServerConfig     `yaml:"server"`
		Database   DatabaseConfig   `yaml:"database"`
		Storage    StorageConfig    `yaml:"storage"`
		Logger     LoggerConfig     `yaml:"logger"`
		JWT        JWTConfig        `yaml:"jwt"`
		SuperAdmin SuperAdminConfig `yaml:"super_admin"`
		Pipeline   PipelineConfig   `yaml:"pipeline"`
		Analytics  AnalyticsConfig  `yaml:"analytics"`
		Redis      RedisConfig      `yaml:"redis"`
		Metrics    MetricsConfig    `yaml:"metrics"`
		Tracing    trace.Config     `yaml:"tracing"`
	}

	ServerConfig struct {
		Port          int   `yaml:"port"`
		MaxUploadSize int64 `yaml:"max_upload_size"` // bytes
	}

	DatabaseConfig struct {
		Type     string `yaml:"type"`     // mysql, postgres, sqlite
		Host     string `yaml:"host"`     // localhost
		Port     int    `yaml:"port"`     // 3306 (for mysql), 5432 (for postgres)
		User     string `yaml:"user"`     // root (for mysql), postgres (for postgres)
		Password string `yaml:"password"` // password
		DBName   string `yaml:"dbname"`   // database name, file path for sqlite
		SSLMode  string `yaml:"sslmode"`  // disable (for postgres)
	}

	JWTConfig struct {
		SecretKey string        `yaml:"secret_key"`
		Duration  time.Duration `yaml:"duration"`
	}

	// PipelineConfig controls how ingestion attempts are run
	PipelineConfig struct {
		Runner              string        `yaml:"runner"`     // inline, memory, redis
		Workers             int           `yaml:"workers"`    // concurrent attempts
		QueueSize           int           `yaml:"queue_size"` // memory runner buffer
		QueueKey            string        `yaml:"queue_key"`  // redis list key
		ChunkSize           int           `yaml:"chunk_size"` // ledger rows per round trip
		ProcessingTimeout   time.Duration `yaml:"processing_timeout"`
		WatchdogInterval    time.Duration `yaml:"watchdog_interval"`
		StaleAfter          time.Duration `yaml:"stale_after"` // processing age that the watchdog force-fails
		DateFormats         []string      `yaml:"date_formats"`
		DuplicatePolicy     string        `yaml:"duplicate_policy"` // allow, reject
		MaxRejectionSamples int           `yaml:"max_rejection_samples"`
	}

	// AnalyticsConfig selects and tunes the analytics provider
	AnalyticsConfig struct {
		Provider           string              `yaml:"provider"` // local, http, none
		HTTP               AnalyticsHTTPConfig `yaml:"http"`
		ParetoCap          int                 `yaml:"pareto_cap"`
		InventoryReference string              `yaml:"inventory_reference"` // ledger, now
		Visibility         map[string][]string `yaml:"visibility"`          // kind -> roles override
	}

	AnalyticsHTTPConfig struct {
		URL     string             `yaml:"url"`
		APIKey  string             `yaml:"api_key"`
		Timeout time.Duration      `yaml:"timeout"`
		Paths   AnalyticsJSONPaths `yaml:"paths"`
	}

	// AnalyticsJSONPaths are gjson paths into the provider response
	AnalyticsJSONPaths struct {
		KPI       string `yaml:"kpi"`
		Pareto    string `yaml:"pareto"`
		Inventory string `yaml:"inventory"`
		Alerts    string `yaml:"alerts"`
		PeakTimes string `yaml:"peak_times"`
	}
)

// ApplyDefaults fills zero values with usable defaults
func (c *APIServerConfig) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 5234
	}
	if c.Server.MaxUploadSize <= 0 {
		c.Server.MaxUploadSize = 50 << 20
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
		if c.Database.DBName == "" {
			c.Database.DBName = "./data/gabeda.db"
		}
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "disk"
	}
	if c.Storage.Disk.Path == "" {
		c.Storage.Disk.Path = "./data/uploads"
	}
	if c.JWT.Duration == 0 {
		c.JWT.Duration = 24 * time.Hour
	}

	p := &c.Pipeline
	if p.Runner == "" {
		p.Runner = "memory"
	}
	if p.Workers == 0 {
		p.Workers = 2
	}
	if p.QueueSize == 0 {
		p.QueueSize = 64
	}
	if p.QueueKey == "" {
		p.QueueKey = "gabeda:ingest:queue"
	}
	if p.ChunkSize == 0 {
		p.ChunkSize = 1000
	}
	if p.ProcessingTimeout == 0 {
		p.ProcessingTimeout = 10 * time.Minute
	}
	if p.WatchdogInterval == 0 {
		p.WatchdogInterval = time.Minute
	}
	if p.StaleAfter == 0 {
		p.StaleAfter = 2 * p.ProcessingTimeout
	}
	if p.DuplicatePolicy == "" {
		p.DuplicatePolicy = "reject"
	}
	if p.MaxRejectionSamples == 0 {
		p.MaxRejectionSamples = 50
	}

	a := &c.Analytics
	if a.Provider == "" {
		a.Provider = "local"
	}
	if a.ParetoCap == 0 {
		a.ParetoCap = 5
	}
	if a.InventoryReference == "" {
		a.InventoryReference = "ledger"
	}
	if a.HTTP.Timeout == 0 {
		a.HTTP.Timeout = 30 * time.Second
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "gabeda"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "gabeda-apiserver"
	}
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	switch c.Type {
	case "postgres":
		return c.getPostgresDSN()
	case "mysql":
		return c.getMySQLDSN()
	case "sqlite":
		if c.DBName == ":memory:" || c.DBName == "file::memory:?cache=shared" {
			return c.DBName
		}
		// Ensure the directory for the SQLite database exists.
		if err := os.MkdirAll(filepath.Dir(c.DBName), 0755); err != nil {
			panic(fmt.Errorf("failed to create directory for sqlite database: %w", err))
		}
		return c.DBName // For SQLite, DBName is the file path
	default:
		return ""
	}
}

// getPostgresDSN returns PostgreSQL connection string
func (c *DatabaseConfig) getPostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// getMySQLDSN returns MySQL connection string
func (c *DatabaseConfig) getMySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}
