package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Brownbull/gabeda-backend/internal/common/cnst"

	"gorm.io/gorm"
)

// store is the gorm implementation shared by every dialect
type store struct {
	db *gorm.DB
}

func newStore(gormDB *gorm.DB) (*store, error) {
	if err := gormDB.AutoMigrate(models()...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &store{db: gormDB}, nil
}

// Close closes the database connection
func (s *store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *store) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return runInTransaction(ctx, s.db, fn)
}

func (s *store) CreateTenant(ctx context.Context, tenant *Tenant) error {
	return getDBFromContext(ctx, s.db).Create(tenant).Error
}

func (s *store) GetTenantByID(ctx context.Context, id uint) (*Tenant, error) {
	var tenant Tenant
	err := getDBFromContext(ctx, s.db).First(&tenant, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("tenant %d: %w", id, cnst.ErrTenantNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (s *store) GetTenantByName(ctx context.Context, name string) (*Tenant, error) {
	var tenant Tenant
	err := getDBFromContext(ctx, s.db).Where("name = ?", name).First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("tenant %q: %w", name, cnst.ErrTenantNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (s *store) ListTenants(ctx context.Context) ([]*Tenant, error) {
	var tenants []*Tenant
	err := getDBFromContext(ctx, s.db).Order("id asc").Find(&tenants).Error
	return tenants, err
}

func (s *store) CreateUser(ctx context.Context, user *User) error {
	return getDBFromContext(ctx, s.db).Create(user).Error
}

func (s *store) GetUserByID(ctx context.Context, id uint) (*User, error) {
	var user User
	if err := getDBFromContext(ctx, s.db).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	if err := getDBFromContext(ctx, s.db).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *store) SetUserStanding(ctx context.Context, id uint, elevated, active bool) error {
	res := getDBFromContext(ctx, s.db).Model(&User{}).Where("id = ?", id).
		Updates(map[string]any{"is_elevated": elevated, "is_active": active})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *store) AddMembership(ctx context.Context, m *Membership) error {
	if !m.Role.Valid() {
		return fmt.Errorf("invalid role %q", m.Role)
	}
	return getDBFromContext(ctx, s.db).Create(m).Error
}

func (s *store) GetMembership(ctx context.Context, userID, tenantID uint) (*Membership, error) {
	var m Membership
	err := getDBFromContext(ctx, s.db).
		Where("user_id = ? AND tenant_id = ? AND is_active = ?", userID, tenantID, true).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *store) ListMemberships(ctx context.Context, userID uint) ([]*Membership, error) {
	var ms []*Membership
	err := getDBFromContext(ctx, s.db).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("tenant_id asc").
		Find(&ms).Error
	return ms, err
}

func (s *store) CreateAttempt(ctx context.Context, attempt *Attempt) error {
	if attempt.Status == "" {
		attempt.Status = AttemptPending
	}
	return getDBFromContext(ctx, s.db).Create(attempt).Error
}

func (s *store) GetAttempt(ctx context.Context, scope Scope, id string) (*Attempt, error) {
	var attempt Attempt
	q := scope.applyTenant(getDBFromContext(ctx, s.db).Where("id = ?", id), "tenant_id")
	err := q.First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("attempt %s: %w", id, cnst.ErrAttemptNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (s *store) AttemptTenant(ctx context.Context, id string) (uint, error) {
	var attempt Attempt
	err := getDBFromContext(ctx, s.db).Select("tenant_id").Where("id = ?", id).First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("attempt %s: %w", id, cnst.ErrAttemptNotFound)
	}
	if err != nil {
		return 0, err
	}
	return attempt.TenantID, nil
}

// FindAttemptByFingerprint returns nil when no attempt matches
func (s *store) FindAttemptByFingerprint(ctx context.Context, tenantID uint, fingerprint string) (*Attempt, error) {
	var attempts []*Attempt
	err := getDBFromContext(ctx, s.db).
		Where("tenant_id = ? AND fingerprint = ? AND status <> ?", tenantID, fingerprint, AttemptFailed).
		Order("created_at desc").
		Limit(1).
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	if len(attempts) == 0 {
		return nil, nil
	}
	return attempts[0], nil
}

func (s *store) ListAttempts(ctx context.Context, scope Scope, limit int) ([]*Attempt, error) {
	var attempts []*Attempt
	q := scope.applyTenant(getDBFromContext(ctx, s.db).Model(&Attempt{}), "tenant_id").
		Order("created_at desc").
		Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&attempts).Error
	return attempts, err
}

func (s *store) TransitionAttempt(ctx context.Context, id string, from []AttemptStatus, update AttemptUpdate) error {
	statuses := make([]string, len(from))
	for i, st := range from {
		statuses[i] = string(st)
	}
	db := getDBFromContext(ctx, s.db)
	res := db.Model(&Attempt{}).
		Where("id = ? AND status IN ?", id, statuses).
		Updates(update.columns())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := db.Model(&Attempt{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("attempt %s: %w", id, cnst.ErrAttemptNotFound)
	}
	return fmt.Errorf("attempt %s to %s: %w", id, update.Status, cnst.ErrInvalidTransition)
}

func (s *store) ListAttemptsByStatus(ctx context.Context, status AttemptStatus, limit int) ([]*Attempt, error) {
	var attempts []*Attempt
	q := getDBFromContext(ctx, s.db).Where("status = ?", status).Order("created_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&attempts).Error
	return attempts, err
}

func (s *store) ListStaleAttempts(ctx context.Context, cutoff time.Time) ([]*Attempt, error) {
	var attempts []*Attempt
	err := getDBFromContext(ctx, s.db).
		Where("status = ? AND updated_at < ?", AttemptProcessing, cutoff).
		Order("updated_at asc").
		Find(&attempts).Error
	return attempts, err
}

func (s *store) FailStaleAttempt(ctx context.Context, id string, cutoff time.Time, message string) (bool, error) {
	now := time.Now()
	res := getDBFromContext(ctx, s.db).Model(&Attempt{}).
		Where("id = ? AND status = ? AND updated_at < ?", id, AttemptProcessing, cutoff).
		Updates(map[string]any{
			"status":                  AttemptFailed,
			"error_message":           message,
			"processing_completed_at": now,
			"updated_at":              now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *store) CreateTransactions(ctx context.Context, records []*Transaction, batchSize int) error {
	if len(records) == 0 {
		return nil
	}
	return getDBFromContext(ctx, s.db).CreateInBatches(records, batchSize).Error
}

func (s *store) DeleteTransactionsByAttempt(ctx context.Context, attemptID string) (int64, error) {
	res := getDBFromContext(ctx, s.db).Where("attempt_id = ?", attemptID).Delete(&Transaction{})
	return res.RowsAffected, res.Error
}

func (s *store) ListTransactions(ctx context.Context, scope Scope, filter TransactionFilter) ([]*Transaction, error) {
	q := scope.applyTenant(getDBFromContext(ctx, s.db).Model(&Transaction{}), "tenant_id")
	if filter.AttemptID != "" {
		q = q.Where("attempt_id = ?", filter.AttemptID)
	}
	if filter.Start != nil {
		q = q.Where("date >= ?", *filter.Start)
	}
	if filter.End != nil {
		q = q.Where("date <= ?", *filter.End)
	}
	if filter.Descending {
		q = q.Order("date desc").Order("id desc")
	} else {
		q = q.Order("date asc").Order("id asc")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	var records []*Transaction
	err := q.Find(&records).Error
	return records, err
}

func (s *store) CreateResult(ctx context.Context, result *Result) error {
	if !result.Kind.Valid() {
		return fmt.Errorf("invalid result kind %q", result.Kind)
	}
	return getDBFromContext(ctx, s.db).Create(result).Error
}

func (s *store) DeleteResultsByAttempt(ctx context.Context, attemptID string) (int64, error) {
	var deleted int64
	err := runInTransaction(ctx, s.db, func(ctx context.Context) error {
		db := getDBFromContext(ctx, s.db)
		sub := db.Model(&Result{}).Select("id").Where("attempt_id = ?", attemptID)
		if err := db.Where("result_id IN (?)", sub).Delete(&ResultRole{}).Error; err != nil {
			return err
		}
		res := db.Where("attempt_id = ?", attemptID).Delete(&Result{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}

func (s *store) ListResults(ctx context.Context, scope Scope, kind ResultKind) ([]*Result, error) {
	q := scope.applyResults(getDBFromContext(ctx, s.db).Model(&Result{}))
	if kind != "" {
		q = q.Where("analytics_results.kind = ?", kind)
	}
	var results []*Result
	err := q.Preload("Roles").
		Order("analytics_results.created_at desc").
		Order("analytics_results.id asc").
		Find(&results).Error
	return results, err
}
