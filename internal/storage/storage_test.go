package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/Brownbull/gabeda-backend/internal/common/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDiskStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewDiskStorage(zap.NewNop(), t.TempDir())
	require.NoError(t, err)

	name := "uploads/1/20240101T000000_ventas.csv"
	require.NoError(t, s.Save(ctx, name, bytes.NewBufferString("fecha,producto,total\n")))

	rc, err := s.Load(ctx, name)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "fecha,producto,total\n", string(data))

	require.NoError(t, s.Delete(ctx, name))
	_, err = s.Load(ctx, name)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(s.Delete(ctx, name), ErrNotFound))
}

func TestDiskStorage_RejectsTraversal(t *testing.T) {
	ctx := context.Background()
	s, err := NewDiskStorage(zap.NewNop(), t.TempDir())
	require.NoError(t, err)

	assert.Error(t, s.Save(ctx, "../escape.csv", bytes.NewBufferString("x")))
	_, err = s.Load(ctx, "../../etc/passwd")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestNew_Factory(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, zap.NewNop(), &config.StorageConfig{Type: "disk", Disk: config.DiskStorageConfig{Path: t.TempDir()}})
	require.NoError(t, err)
	_, ok := s.(*DiskStorage)
	assert.True(t, ok)

	_, err = New(ctx, zap.NewNop(), &config.StorageConfig{Type: "ftp"})
	assert.Error(t, err)
}

func TestObjectName(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	assert.Equal(t, "uploads/3/a1/20240506T070809_ventas_marzo.csv", ObjectName(3, "a1", "ventas marzo.csv", now))
	assert.Equal(t, "uploads/3/a1/20240506T070809_x.csv", ObjectName(3, "a1", "../../x.csv", now))
	assert.Equal(t, "uploads/3/a1/20240506T070809_x.csv", ObjectName(3, "a1", `C:\tmp\x.csv`, now))
	assert.Equal(t, "uploads/3/a1/20240506T070809_upload.csv", ObjectName(3, "a1", "", now))
}

func TestJoinPrefix(t *testing.T) {
	assert.Equal(t, "a", joinPrefix("", "a"))
	assert.Equal(t, "p/a", joinPrefix("p/", "/a"))
	assert.Equal(t, "p/a", joinPrefix("p", "a"))
}
