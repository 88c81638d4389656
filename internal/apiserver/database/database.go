package database

import (
	"context"
	"time"

	"gorm.io/datatypes"
)

// Database defines the methods for database operations.
// Read methods that return tenant data take a Scope and apply it in the query.
type Database interface {
	// Close closes the database connection.
	Close() error
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// Transaction runs fn inside a database transaction carried by the context.
	// Nested calls join the outer transaction.
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error

	// CreateTenant creates a new tenant.
	CreateTenant(ctx context.Context, tenant *Tenant) error
	// GetTenantByID gets a tenant by ID.
	GetTenantByID(ctx context.Context, id uint) (*Tenant, error)
	// GetTenantByName gets a tenant by name.
	GetTenantByName(ctx context.Context, name string) (*Tenant, error)
	// ListTenants lists all tenants.
	ListTenants(ctx context.Context) ([]*Tenant, error)

	// CreateUser creates a new user.
	CreateUser(ctx context.Context, user *User) error
	// GetUserByID gets a user by ID.
	GetUserByID(ctx context.Context, id uint) (*User, error)
	// GetUserByUsername gets a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	// SetUserStanding changes whether a user is elevated and active.
	SetUserStanding(ctx context.Context, id uint, elevated, active bool) error

	// AddMembership grants a user a role in a tenant.
	AddMembership(ctx context.Context, m *Membership) error
	// GetMembership gets the active membership of a user in a tenant.
	GetMembership(ctx context.Context, userID, tenantID uint) (*Membership, error)
	// ListMemberships lists the active memberships of a user.
	ListMemberships(ctx context.Context, userID uint) ([]*Membership, error)

	// CreateAttempt creates a new ingestion attempt.
	CreateAttempt(ctx context.Context, attempt *Attempt) error
	// GetAttempt gets an attempt inside the scope.
	GetAttempt(ctx context.Context, scope Scope, id string) (*Attempt, error)
	// AttemptTenant returns the owning tenant of an attempt regardless of scope.
	AttemptTenant(ctx context.Context, id string) (uint, error)
	// FindAttemptByFingerprint finds the newest non-failed attempt of a tenant with the given content fingerprint.
	FindAttemptByFingerprint(ctx context.Context, tenantID uint, fingerprint string) (*Attempt, error)
	// ListAttempts lists attempts inside the scope, newest first.
	ListAttempts(ctx context.Context, scope Scope, limit int) ([]*Attempt, error)
	// TransitionAttempt applies the update only if the attempt is in one of the from statuses.
	TransitionAttempt(ctx context.Context, id string, from []AttemptStatus, update AttemptUpdate) error
	// ListAttemptsByStatus lists attempts of every tenant in a status, oldest first.
	ListAttemptsByStatus(ctx context.Context, status AttemptStatus, limit int) ([]*Attempt, error)
	// ListStaleAttempts lists attempts stuck in processing since before cutoff.
	ListStaleAttempts(ctx context.Context, cutoff time.Time) ([]*Attempt, error)
	// FailStaleAttempt fails an attempt still processing and untouched since cutoff.
	FailStaleAttempt(ctx context.Context, id string, cutoff time.Time, message string) (bool, error)

	// CreateTransactions inserts ledger records in chunks of batchSize.
	CreateTransactions(ctx context.Context, records []*Transaction, batchSize int) error
	// DeleteTransactionsByAttempt deletes every ledger record of an attempt.
	DeleteTransactionsByAttempt(ctx context.Context, attemptID string) (int64, error)
	// ListTransactions lists ledger records inside the scope.
	ListTransactions(ctx context.Context, scope Scope, filter TransactionFilter) ([]*Transaction, error)

	// CreateResult inserts an analytics result with its visibility set.
	CreateResult(ctx context.Context, result *Result) error
	// DeleteResultsByAttempt deletes every result of an attempt.
	DeleteResultsByAttempt(ctx context.Context, attemptID string) (int64, error)
	// ListResults lists results inside the scope, newest first. An empty kind lists every kind.
	ListResults(ctx context.Context, scope Scope, kind ResultKind) ([]*Result, error)
}

// TransactionFilter narrows a ledger listing
type TransactionFilter struct {
	AttemptID  string
	Start      *time.Time
	End        *time.Time
	Limit      int
	Offset     int
	Descending bool
}

// AttemptUpdate holds the columns written by a status transition. Nil fields are left untouched.
type AttemptUpdate struct {
	Status                AttemptStatus
	ErrorMessage          *string
	Metadata              datatypes.JSON
	RowCount              *int
	AnalysisStartDate     *time.Time
	AnalysisEndDate       *time.Time
	ProcessingStartedAt   *time.Time
	ProcessingCompletedAt *time.Time
}

func (u AttemptUpdate) columns() map[string]any {
	cols := map[string]any{
		"status":     u.Status,
		"updated_at": time.Now(),
	}
	if u.ErrorMessage != nil {
		cols["error_message"] = *u.ErrorMessage
	}
	if u.Metadata != nil {
		cols["metadata"] = u.Metadata
	}
	if u.RowCount != nil {
		cols["row_count"] = *u.RowCount
	}
	if u.AnalysisStartDate != nil {
		cols["analysis_start_date"] = *u.AnalysisStartDate
	}
	if u.AnalysisEndDate != nil {
		cols["analysis_end_date"] = *u.AnalysisEndDate
	}
	if u.ProcessingStartedAt != nil {
		cols["processing_started_at"] = *u.ProcessingStartedAt
	}
	if u.ProcessingCompletedAt != nil {
		cols["processing_completed_at"] = *u.ProcessingCompletedAt
	}
	return cols
}
