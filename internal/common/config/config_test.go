package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEnv(t *testing.T) {
	t.Setenv("X_A", "va")
	in := []byte("a: ${X_A:da}\nb: ${X_B:db}")
	out := resolveEnv(in)
	assert.Contains(t, string(out), "a: va")
	assert.Contains(t, string(out), "b: db")
}

func TestLoadConfig_APIServer(t *testing.T) {
	tmp := t.TempDir()
	old, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(old) })
	_ = os.Chdir(tmp)

	t.Setenv("X_WORKERS", "4")
	yaml := `
server:
  port: 8080
database:
  type: sqlite
  dbname: ${X_DB:./data/test.db}
pipeline:
  runner: memory
  workers: ${X_WORKERS:1}
  chunk_size: 2000
  date_formats: ["02/01/2006"]
analytics:
  provider: http
  http:
    url: http://analytics.local/compute
    paths:
      kpi: data.kpi
  visibility:
    peak_times: [admin]
jwt:
  secret_key: s3cret
`
	file := filepath.Join(tmp, "apiserver.yaml")
	require.NoError(t, os.WriteFile(file, []byte(yaml), 0o644))

	cfg, path, err := LoadConfig[APIServerConfig]("apiserver.yaml")
	require.NoError(t, err)
	realFile, _ := filepath.EvalSymlinks(file)
	realPath, _ := filepath.EvalSymlinks(path)
	assert.Equal(t, realFile, realPath)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "./data/test.db", cfg.Database.DBName)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, 2000, cfg.Pipeline.ChunkSize)
	assert.Equal(t, []string{"02/01/2006"}, cfg.Pipeline.DateFormats)
	assert.Equal(t, "data.kpi", cfg.Analytics.HTTP.Paths.KPI)
	assert.Equal(t, []string{"admin"}, cfg.Analytics.Visibility["peak_times"])

	// defaults
	assert.Equal(t, int64(50<<20), cfg.Server.MaxUploadSize)
	assert.Equal(t, "reject", cfg.Pipeline.DuplicatePolicy)
	assert.Equal(t, 5, cfg.Analytics.ParetoCap)
	assert.Equal(t, 30*time.Second, cfg.Analytics.HTTP.Timeout)
	assert.Equal(t, 20*time.Minute, cfg.Pipeline.StaleAfter)

	assert.NoError(t, Validate(cfg))
}

func TestLoadConfig_MissingFile(t *testing.T) {
	tmp := t.TempDir()
	_, _, err := LoadConfig[APIServerConfig](filepath.Join(tmp, "nope.yaml"))
	assert.Error(t, err)
}

func TestDatabaseConfig_GetDSN_Postgres(t *testing.T) {
	c := &DatabaseConfig{Type: "postgres", Host: "h", Port: 5432, User: "u", Password: "p", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", c.GetDSN())
}

func TestDatabaseConfig_GetDSN_MySQL(t *testing.T) {
	c := &DatabaseConfig{Type: "mysql", Host: "h", Port: 3306, User: "u", Password: "p", DBName: "d"}
	assert.Equal(t, "u:p@tcp(h:3306)/d?charset=utf8mb4&parseTime=True&loc=Local", c.GetDSN())
}

func TestDatabaseConfig_GetDSN_SQLite(t *testing.T) {
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "data", "app.sqlite")
	c := &DatabaseConfig{Type: "sqlite", DBName: dbPath}
	assert.Equal(t, dbPath, c.GetDSN())
	_, err := os.Stat(filepath.Dir(dbPath))
	assert.NoError(t, err)

	mem := &DatabaseConfig{Type: "sqlite", DBName: ":memory:"}
	assert.Equal(t, ":memory:", mem.GetDSN())
}

func TestDatabaseConfig_GetDSN_Unknown(t *testing.T) {
	c := &DatabaseConfig{Type: "unknown"}
	assert.Equal(t, "", c.GetDSN())
}
