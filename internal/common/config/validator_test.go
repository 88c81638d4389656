package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *APIServerConfig {
	cfg := &APIServerConfig{JWT: JWTConfig{SecretKey: "k"}}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidationError_ErrorFormats(t *testing.T) {
	e := &ValidationError{Message: "oops", Locations: []Location{{Field: "a.b"}, {Field: "c"}}}
	s := e.Error()
	assert.Contains(t, s, "oops")
	assert.Contains(t, s, "--> a.b")
	assert.Contains(t, s, "--> c")
}

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, Validate(validConfig()))
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*APIServerConfig)
		field  string
	}{
		{"db type", func(c *APIServerConfig) { c.Database.Type = "oracle" }, "database.type"},
		{"storage type", func(c *APIServerConfig) { c.Storage.Type = "ftp" }, "storage.type"},
		{"s3 bucket", func(c *APIServerConfig) { c.Storage.Type = "s3" }, "storage.s3.bucket"},
		{"gcs bucket", func(c *APIServerConfig) { c.Storage.Type = "gcs" }, "storage.gcs.bucket"},
		{"runner", func(c *APIServerConfig) { c.Pipeline.Runner = "celery" }, "pipeline.runner"},
		{"redis addr", func(c *APIServerConfig) { c.Pipeline.Runner = "redis" }, "redis.addr"},
		{"workers", func(c *APIServerConfig) { c.Pipeline.Workers = -1 }, "pipeline.workers"},
		{"chunk size", func(c *APIServerConfig) { c.Pipeline.ChunkSize = 10 }, "pipeline.chunk_size"},
		{"duplicate policy", func(c *APIServerConfig) { c.Pipeline.DuplicatePolicy = "merge" }, "pipeline.duplicate_policy"},
		{"provider", func(c *APIServerConfig) { c.Analytics.Provider = "grpc" }, "analytics.provider"},
		{"provider url", func(c *APIServerConfig) { c.Analytics.Provider = "http" }, "analytics.http.url"},
		{"pareto cap", func(c *APIServerConfig) { c.Analytics.ParetoCap = -2 }, "analytics.pareto_cap"},
		{"visibility kind", func(c *APIServerConfig) { c.Analytics.Visibility = map[string][]string{"forecast": {"admin"}} }, "analytics.visibility.forecast"},
		{"jwt", func(c *APIServerConfig) { c.JWT.SecretKey = "" }, "jwt.secret_key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if assert.Error(t, err) {
				var ve *ValidationError
				assert.True(t, errors.As(err, &ve))
				assert.Contains(t, err.Error(), "--> "+tt.field)
			}
		})
	}
}
