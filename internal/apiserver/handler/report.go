package handler

import (
	"net/http"
	"time"

	"github.com/Brownbull/gabeda-backend/internal/common/dto"
	"github.com/Brownbull/gabeda-backend/internal/common/errorx"
	"github.com/Brownbull/gabeda-backend/internal/report"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

// HandleListResults lists analytics results filtered by tenant and kind
func (h *Handler) HandleListResults(c *gin.Context) {
	viewer, ok := h.viewer(c)
	if !ok {
		return
	}
	tenantID, err := uintParam("tenant_id", c.Query("tenant_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	items, err := h.reports.ListResults(c.Request.Context(), viewer, tenantID, c.Query("kind"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewList(items))
}

// HandleListTransactions lists ledger records newest first
func (h *Handler) HandleListTransactions(c *gin.Context) {
	viewer, ok := h.viewer(c)
	if !ok {
		return
	}
	q := report.TransactionQuery{AttemptID: c.Query("upload_id")}
	var err error
	if q.TenantID, err = uintParam("tenant_id", c.Query("tenant_id")); err != nil {
		h.fail(c, err)
		return
	}
	if q.Limit, err = intParam("limit", c.Query("limit")); err != nil {
		h.fail(c, err)
		return
	}
	if q.Offset, err = intParam("offset", c.Query("offset")); err != nil {
		h.fail(c, err)
		return
	}
	if q.Start, err = dateParam("start_date", c.Query("start_date"), false); err != nil {
		h.fail(c, err)
		return
	}
	if q.End, err = dateParam("end_date", c.Query("end_date"), true); err != nil {
		h.fail(c, err)
		return
	}
	if q.Start != nil && q.End != nil && q.End.Before(*q.Start) {
		h.fail(c, errorx.ValidationError("end_date", c.Query("end_date"), "must not be before start_date"))
		return
	}

	items, err := h.reports.ListTransactions(c.Request.Context(), viewer, q)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewList(items))
}

// dateParam parses a YYYY-MM-DD bound. End bounds cover the whole day.
func dateParam(name, raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, errorx.ValidationError(name, raw, "must be a date formatted as YYYY-MM-DD")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
