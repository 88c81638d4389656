package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Brownbull/gabeda-backend/internal/access"
	"github.com/Brownbull/gabeda-backend/internal/apiserver/database"
	"github.com/Brownbull/gabeda-backend/internal/common/cnst"
	"github.com/Brownbull/gabeda-backend/internal/common/dto"
	"github.com/Brownbull/gabeda-backend/internal/publisher"
)

const (
	DefaultAttemptLimit     = 20
	MaxAttemptLimit         = 100
	DefaultTransactionLimit = 100
	MaxTransactionLimit     = 1000
)

// ErrInvalidKind is returned for a result kind outside the closed set
var ErrInvalidKind = cnst.ErrInvalidKind

// Service is the read side: every call goes through the access gate
type Service struct {
	db         database.Database
	gate       *access.Gate
	visibility publisher.Visibility
}

func NewService(db database.Database, gate *access.Gate, visibility publisher.Visibility) *Service {
	if visibility == nil {
		visibility = publisher.DefaultVisibility()
	}
	return &Service{db: db, gate: gate, visibility: visibility}
}

// GetAttemptStatus returns one attempt. An attempt that exists outside the
// viewer's scope is reported as access denied, not as missing.
func (s *Service) GetAttemptStatus(ctx context.Context, viewer access.Viewer, id string) (*dto.AttemptStatus, error) {
	scope, err := s.gate.Scope(ctx, viewer, 0)
	if err != nil {
		return nil, err
	}
	a, err := s.db.GetAttempt(ctx, scope, id)
	if errors.Is(err, cnst.ErrAttemptNotFound) {
		if _, terr := s.db.AttemptTenant(ctx, id); terr == nil {
			return nil, fmt.Errorf("attempt %s: %w", id, access.ErrAccessDenied)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return dto.FromAttempt(a), nil
}

// ListRecentAttempts lists attempts newest first. tenantID 0 spans every tenant in scope.
func (s *Service) ListRecentAttempts(ctx context.Context, viewer access.Viewer, tenantID uint, limit int) ([]*dto.AttemptStatus, error) {
	scope, err := s.gate.Scope(ctx, viewer, tenantID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.db.ListAttempts(ctx, scope, clamp(limit, DefaultAttemptLimit, MaxAttemptLimit))
	if err != nil {
		return nil, err
	}
	out := make([]*dto.AttemptStatus, len(attempts))
	for i, a := range attempts {
		out[i] = dto.FromAttempt(a)
	}
	return out, nil
}

// ListResults lists results the viewer's roles may see. Asking for a kind
// none of the viewer's roles may see is denied rather than answered empty.
func (s *Service) ListResults(ctx context.Context, viewer access.Viewer, tenantID uint, kind string) ([]*dto.Result, error) {
	k := database.ResultKind(kind)
	if kind != "" && !k.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	scope, err := s.gate.Scope(ctx, viewer, tenantID)
	if err != nil {
		return nil, err
	}
	if kind != "" && !scope.Elevated() && !s.visibility.Visible(k, scope.Roles()) {
		return nil, fmt.Errorf("result kind %s: %w", kind, access.ErrAccessDenied)
	}
	results, err := s.db.ListResults(ctx, scope, k)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.Result, len(results))
	for i, r := range results {
		out[i] = dto.FromResult(r)
	}
	return out, nil
}

// TransactionQuery narrows a ledger listing
type TransactionQuery struct {
	TenantID  uint
	AttemptID string
	Start     *time.Time
	End       *time.Time
	Limit     int
	Offset    int
}

// ListTransactions lists ledger records newest first
func (s *Service) ListTransactions(ctx context.Context, viewer access.Viewer, q TransactionQuery) ([]*database.Transaction, error) {
	scope, err := s.gate.Scope(ctx, viewer, q.TenantID)
	if err != nil {
		return nil, err
	}
	return s.db.ListTransactions(ctx, scope, database.TransactionFilter{
		AttemptID:  q.AttemptID,
		Start:      q.Start,
		End:        q.End,
		Limit:      clamp(q.Limit, DefaultTransactionLimit, MaxTransactionLimit),
		Offset:     max(q.Offset, 0),
		Descending: true,
	})
}

func clamp(v, def, upper int) int {
	if v <= 0 {
		return def
	}
	return min(v, upper)
}
