package dto

import (
	"testing"

	"github.com/Brownbull/gabeda-backend/internal/apiserver/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestFromAttempt(t *testing.T) {
	meta, err := database.EncodeMetadata(&database.AttemptMetadata{TransactionsCreated: 2, RejectedRows: 1})
	require.NoError(t, err)

	got := FromAttempt(&database.Attempt{ID: "a1", TenantID: 3, Status: database.AttemptCompleted, Metadata: meta})
	assert.Equal(t, "completed", got.Status)
	require.NotNil(t, got.Metadata)
	assert.Equal(t, 2, got.Metadata.TransactionsCreated)

	got = FromAttempt(&database.Attempt{ID: "a2", Status: database.AttemptPending, Metadata: datatypes.JSON("{broken")})
	assert.Nil(t, got.Metadata)
}

func TestFromResult(t *testing.T) {
	got := FromResult(&database.Result{
		ID:      "r1",
		Kind:    database.KindAlert,
		Payload: datatypes.JSON(`{"count":0}`),
		Roles:   []database.ResultRole{{ResultID: "r1", Role: database.RoleAdmin}},
	})
	assert.Equal(t, "alert", got.Kind)
	assert.Equal(t, []string{"admin"}, got.Roles)
	assert.JSONEq(t, `{"count":0}`, string(got.Payload))
}

func TestNewList(t *testing.T) {
	l := NewList[int](nil)
	assert.NotNil(t, l.Items)
	assert.Equal(t, 0, l.Count)
	assert.Equal(t, 2, NewList([]string{"a", "b"}).Count)
}
