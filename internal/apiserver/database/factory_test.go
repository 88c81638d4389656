package database

import (
	"testing"

	"github.com/Brownbull/gabeda-backend/internal/common/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDatabase_Factory(t *testing.T) {
	_, err := NewDatabase(&config.DatabaseConfig{Type: "unknown"})
	assert.Error(t, err)

	db, err := NewDatabase(&config.DatabaseConfig{Type: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	require.NotNil(t, db)
	_, ok := db.(*SQLite)
	assert.True(t, ok)
	assert.NoError(t, db.Close())

	// mysql path should attempt to open and fail quickly (no server)
	_, err = NewDatabase(&config.DatabaseConfig{Type: "mysql", Host: "127.0.0.1", Port: 1, User: "u", Password: "p", DBName: "d"})
	assert.Error(t, err)
}
