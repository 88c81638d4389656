package dto

import (
	"encoding/json"
	"time"

	"github.com/Brownbull/gabeda-backend/internal/apiserver/database"
)

// UploadResponse is returned when a file is accepted
type UploadResponse struct {
	UploadID  string `json:"uploadId"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// AttemptStatus is the reporting view of one ingestion attempt
type AttemptStatus struct {
	ID                    string                    `json:"id"`
	TenantID              uint                      `json:"tenantId"`
	UploaderID            uint                      `json:"uploaderId"`
	FileName              string                    `json:"fileName"`
	FileSize              int64                     `json:"fileSize"`
	Status                string                    `json:"status"`
	ErrorMessage          string                    `json:"errorMessage,omitempty"`
	Metadata              *database.AttemptMetadata `json:"metadata,omitempty"`
	RowCount              int                       `json:"rowCount"`
	AnalysisStartDate     *time.Time                `json:"analysisStartDate,omitempty"`
	AnalysisEndDate       *time.Time                `json:"analysisEndDate,omitempty"`
	ProcessingStartedAt   *time.Time                `json:"processingStartedAt,omitempty"`
	ProcessingCompletedAt *time.Time                `json:"processingCompletedAt,omitempty"`
	CreatedAt             time.Time                 `json:"createdAt"`
	UpdatedAt             time.Time                 `json:"updatedAt"`
}

// FromAttempt builds the reporting view. Unreadable metadata is left out.
func FromAttempt(a *database.Attempt) *AttemptStatus {
	meta, _ := a.DecodeMetadata()
	return &AttemptStatus{
		ID:                    a.ID,
		TenantID:              a.TenantID,
		UploaderID:            a.UploaderID,
		FileName:              a.FileName,
		FileSize:              a.FileSize,
		Status:                string(a.Status),
		ErrorMessage:          a.ErrorMessage,
		Metadata:              meta,
		RowCount:              a.RowCount,
		AnalysisStartDate:     a.AnalysisStartDate,
		AnalysisEndDate:       a.AnalysisEndDate,
		ProcessingStartedAt:   a.ProcessingStartedAt,
		ProcessingCompletedAt: a.ProcessingCompletedAt,
		CreatedAt:             a.CreatedAt,
		UpdatedAt:             a.UpdatedAt,
	}
}

// Result is the reporting view of one analytics result
type Result struct {
	ID           string          `json:"id"`
	TenantID     uint            `json:"tenantId"`
	UploadID     *string         `json:"uploadId,omitempty"`
	Kind         string          `json:"kind"`
	Title        string          `json:"title"`
	Payload      json.RawMessage `json:"payload"`
	Roles        []string        `json:"roles"`
	AnalysisDate time.Time       `json:"analysisDate"`
	CreatedAt    time.Time       `json:"createdAt"`
}

func FromResult(r *database.Result) *Result {
	roles := make([]string, 0, len(r.Roles))
	for _, role := range r.RoleSet() {
		roles = append(roles, string(role))
	}
	return &Result{
		ID:           r.ID,
		TenantID:     r.TenantID,
		UploadID:     r.AttemptID,
		Kind:         string(r.Kind),
		Title:        r.Title,
		Payload:      json.RawMessage(r.Payload),
		Roles:        roles,
		AnalysisDate: r.AnalysisDate,
		CreatedAt:    r.CreatedAt,
	}
}

// ListResponse wraps a list endpoint's items
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func NewList[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Count: len(items)}
}
