package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/Brownbull/gabeda-backend/internal/apiserver/database"
	"github.com/Brownbull/gabeda-backend/internal/common/dto"
	"github.com/Brownbull/gabeda-backend/internal/common/errorx"
	"github.com/Brownbull/gabeda-backend/internal/ingest"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HandleUpload stores a CSV file for a tenant and enqueues its processing
func (h *Handler) HandleUpload(c *gin.Context) {
	viewer, ok := h.viewer(c)
	if !ok {
		return
	}
	tenantID, err := uintParam("tenant_id", c.Param("tenant_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if tenantID == 0 {
		h.fail(c, errorx.ErrMissingField.WithDetail("field", "tenant_id"))
		return
	}
	ctx := c.Request.Context()
	if err := h.gate.RequireRole(ctx, viewer, tenantID, uploaderRoles...); err != nil {
		h.fail(c, err)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, errorx.ErrFileTooLarge.WithDetail("limit_bytes", tooLarge.Limit))
			return
		}
		h.fail(c, errorx.ErrMissingField.WithDetail("field", "file"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.fail(c, err)
		return
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(content) == 0 {
		h.fail(c, errorx.ErrInvalidInput.WithMessage("The uploaded file is empty"))
		return
	}

	attempt, err := h.orchestrator.Upload(ctx, ingest.Upload{
		TenantID:   tenantID,
		UploaderID: viewer.UserID,
		FileName:   filepath.Base(fh.Filename),
		Content:    content,
	})
	var dup *ingest.DuplicateError
	if errors.As(err, &dup) {
		c.JSON(http.StatusConflict, dto.UploadResponse{
			UploadID:  dup.AttemptID,
			Status:    string(attempt.Status),
			Duplicate: true,
		})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	if err := h.runner.Enqueue(ctx, attempt.ID); err != nil {
		// the attempt stays pending and the watchdog requeues it
		h.logger.Warn("failed to enqueue upload", zap.String("attempt_id", attempt.ID), zap.Error(err))
	}

	c.JSON(http.StatusAccepted, dto.UploadResponse{UploadID: attempt.ID, Status: h.currentStatus(ctx, attempt.ID)})
}

// HandleGetUpload returns the status of one upload
func (h *Handler) HandleGetUpload(c *gin.Context) {
	viewer, ok := h.viewer(c)
	if !ok {
		return
	}
	status, err := h.reports.GetAttemptStatus(c.Request.Context(), viewer, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// HandleListUploads lists the most recent uploads the viewer may see
func (h *Handler) HandleListUploads(c *gin.Context) {
	viewer, ok := h.viewer(c)
	if !ok {
		return
	}
	tenantID, err := uintParam("tenant_id", c.Query("tenant_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	limit, err := intParam("limit", c.Query("limit"))
	if err != nil {
		h.fail(c, err)
		return
	}
	items, err := h.reports.ListRecentAttempts(c.Request.Context(), viewer, tenantID, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewList(items))
}

// HandleReprocess clears the ledger rows of a finished upload and runs it again
func (h *Handler) HandleReprocess(c *gin.Context) {
	viewer, ok := h.viewer(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")

	tenantID, err := h.db.AttemptTenant(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.gate.RequireRole(ctx, viewer, tenantID, database.RoleAdmin); err != nil {
		h.fail(c, err)
		return
	}
	if err := h.orchestrator.Reprocess(ctx, id); err != nil {
		h.fail(c, err)
		return
	}
	if err := h.runner.Enqueue(ctx, id); err != nil {
		h.logger.Warn("failed to enqueue reprocessed upload", zap.String("attempt_id", id), zap.Error(err))
	}

	h.logger.Info("upload reprocess requested",
		zap.String("attempt_id", id),
		zap.Uint("user_id", viewer.UserID))
	c.JSON(http.StatusAccepted, dto.UploadResponse{UploadID: id, Status: h.currentStatus(ctx, id)})
}

// currentStatus rereads the attempt, which an inline runner has already finished
func (h *Handler) currentStatus(ctx context.Context, id string) string {
	a, err := h.db.GetAttempt(ctx, database.SystemScope(), id)
	if err != nil {
		return string(database.AttemptPending)
	}
	return string(a.Status)
}
