package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/Brownbull/gabeda-backend/internal/access"
	"github.com/Brownbull/gabeda-backend/internal/apiserver/database"
	"github.com/Brownbull/gabeda-backend/internal/apiserver/middleware"
	"github.com/Brownbull/gabeda-backend/internal/common/errorx"
	"github.com/Brownbull/gabeda-backend/internal/ingest"
	"github.com/Brownbull/gabeda-backend/internal/ledger"
	"github.com/Brownbull/gabeda-backend/internal/report"
	"github.com/Brownbull/gabeda-backend/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// uploaderRoles may upload files and read their status
var uploaderRoles = []database.Role{database.RoleAdmin, database.RoleBusinessOwner, database.RoleAnalyst}

// Enqueuer hands an attempt to the pipeline runner
type Enqueuer interface {
	Enqueue(ctx context.Context, attemptID string) error
}

// Handler serves the upload and reporting API
type Handler struct {
	db            database.Database
	orchestrator  *ingest.Orchestrator
	runner        Enqueuer
	reports       *report.Service
	gate          *access.Gate
	errs          *errorx.ErrorHandler
	maxUploadSize int64
	logger        *zap.Logger
}

// Deps are the collaborators of a Handler
type Deps struct {
	DB            database.Database
	Orchestrator  *ingest.Orchestrator
	Runner        Enqueuer
	Reports       *report.Service
	Gate          *access.Gate
	MaxUploadSize int64
	Logger        *zap.Logger
}

func New(deps Deps) *Handler {
	logger := deps.Logger.Named("apiserver.handler")
	return &Handler{
		db:            deps.DB,
		orchestrator:  deps.Orchestrator,
		runner:        deps.Runner,
		reports:       deps.Reports,
		gate:          deps.Gate,
		errs:          errorx.NewErrorHandler(logger, mapDomainError),
		maxUploadSize: deps.MaxUploadSize,
		logger:        logger,
	}
}

// Errors exposes the error handler for router wide middlewares
func (h *Handler) Errors() *errorx.ErrorHandler {
	return h.errs
}

// mapDomainError converts pipeline errors that have no sentinel in cnst
func mapDomainError(err error) *errorx.APIError {
	var schemaErr *ingest.SchemaError
	if errors.As(err, &schemaErr) {
		return errorx.ErrSchemaInvalid.WithMessage(schemaErr.Error())
	}
	var storageErr *ledger.StorageError
	if errors.As(err, &storageErr) {
		return errorx.ErrStorage.WithDetail("op", storageErr.Op)
	}
	if errors.Is(err, storage.ErrNotFound) {
		return errorx.ErrStorage.WithMessage("Stored file not found")
	}
	if errors.Is(err, ingest.ErrEmptyFile) {
		return errorx.ErrInvalidInput.WithMessage("The uploaded file is empty")
	}
	return nil
}

func (h *Handler) fail(c *gin.Context, err error) {
	h.errs.HandleError(c, err)
}

// viewer returns the authenticated viewer or writes a 401
func (h *Handler) viewer(c *gin.Context) (access.Viewer, bool) {
	v, ok := middleware.Viewer(c)
	if !ok {
		h.fail(c, errorx.ErrUnauthorized)
	}
	return v, ok
}

// uintParam parses an optional positive id. Empty means zero.
func uintParam(name, raw string) (uint, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return 0, errorx.ValidationError(name, raw, "must be a positive integer")
	}
	return uint(v), nil
}

func intParam(name, raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errorx.ValidationError(name, raw, "must be a non negative integer")
	}
	return v, nil
}
