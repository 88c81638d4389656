package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Brownbull/gabeda-backend/internal/analytics"
	"github.com/Brownbull/gabeda-backend/internal/apiserver/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var titles = map[database.ResultKind]string{
	database.KindKPI:       "Key performance indicators",
	database.KindPareto:    "Top products by revenue",
	database.KindAlert:     "Dead stock alerts",
	database.KindInventory: "Inventory activity",
	database.KindPeakTimes: "Peak sales times",
}

// Publisher persists analytics reports as result rows
type Publisher struct {
	db         database.Database
	visibility Visibility
	logger     *zap.Logger
	now        func() time.Time
}

func New(db database.Database, visibility Visibility, logger *zap.Logger) *Publisher {
	if visibility == nil {
		visibility = DefaultVisibility()
	}
	return &Publisher{
		db:         db,
		visibility: visibility,
		logger:     logger.Named("publisher"),
		now:        time.Now,
	}
}

// Visibility returns the table used to tag results
func (p *Publisher) Visibility() Visibility {
	return p.visibility
}

// Publish stores one result per computed kind. Earlier results of the same
// attempt are kept; every call appends.
func (p *Publisher) Publish(ctx context.Context, tenantID uint, attemptID *string, report *analytics.Report) ([]*database.Result, error) {
	payloads := report.Payloads()
	now := p.now()
	results := make([]*database.Result, 0, len(payloads))
	for _, pl := range payloads {
		raw, err := json.Marshal(pl.Value)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", pl.Kind, err)
		}
		id := uuid.NewString()
		roles := p.visibility.Roles(pl.Kind)
		rr := make([]database.ResultRole, len(roles))
		for i, r := range roles {
			rr[i] = database.ResultRole{ResultID: id, Role: r}
		}
		title := titles[pl.Kind]
		if report.Mock {
			title += " (preliminary)"
		}
		results = append(results, &database.Result{
			ID:           id,
			TenantID:     tenantID,
			AttemptID:    attemptID,
			Kind:         pl.Kind,
			Title:        title,
			Payload:      datatypes.JSON(raw),
			Roles:        rr,
			AnalysisDate: now,
			CreatedAt:    now,
		})
	}

	err := p.db.Transaction(ctx, func(ctx context.Context) error {
		for _, r := range results {
			if err := p.db.CreateResult(ctx, r); err != nil {
				return fmt.Errorf("create %s result: %w", r.Kind, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Debug("published analytics results",
		zap.Uint("tenant_id", tenantID),
		zap.Int("count", len(results)),
		zap.Bool("mock", report.Mock))
	return results, nil
}
