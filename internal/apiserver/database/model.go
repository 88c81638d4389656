package database

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Role is a tenant membership role
type Role string

const (
	RoleAdmin             Role = "admin"
	RoleBusinessOwner     Role = "business_owner"
	RoleAnalyst           Role = "analyst"
	RoleOperationsManager Role = "operations_manager"
)

// AllRoles lists every membership role, broadest analytics breadth first
var AllRoles = []Role{RoleAdmin, RoleBusinessOwner, RoleAnalyst, RoleOperationsManager}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleBusinessOwner, RoleAnalyst, RoleOperationsManager:
		return true
	}
	return false
}

// AttemptStatus is the lifecycle state of an ingestion attempt
type AttemptStatus string

const (
	AttemptPending    AttemptStatus = "pending"
	AttemptProcessing AttemptStatus = "processing"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptFailed     AttemptStatus = "failed"
)

// Terminal reports whether no further transition is expected
func (s AttemptStatus) Terminal() bool {
	return s == AttemptCompleted || s == AttemptFailed
}

// ResultKind is the closed set of analytics result kinds
type ResultKind string

const (
	KindKPI       ResultKind = "kpi"
	KindPareto    ResultKind = "pareto"
	KindAlert     ResultKind = "alert"
	KindInventory ResultKind = "inventory"
	KindPeakTimes ResultKind = "peak_times"
)

// ResultKinds lists every result kind in publishing order
var ResultKinds = []ResultKind{KindKPI, KindPareto, KindAlert, KindInventory, KindPeakTimes}

func (k ResultKind) Valid() bool {
	switch k {
	case KindKPI, KindPareto, KindAlert, KindInventory, KindPeakTimes:
		return true
	}
	return false
}

// ColumnConfig maps logical fields to the physical headers of a tenant's exports
type ColumnConfig struct {
	DateCol        string `json:"date_col,omitempty"`
	ProductCol     string `json:"product_col,omitempty"`
	DescriptionCol string `json:"description_col,omitempty"`
	RevenueCol     string `json:"revenue_col,omitempty"`
	QuantityCol    string `json:"quantity_col,omitempty"`
	TransactionCol string `json:"transaction_col,omitempty"`
	CostCol        string `json:"cost_col,omitempty"`
	CustomerCol    string `json:"customer_col,omitempty"`
	CategoryCol    string `json:"category_col,omitempty"`
	TimeCol        string `json:"time_col,omitempty"`
}

// DefaultColumnConfig returns the column names used by the point-of-sale exports tenants start with
func DefaultColumnConfig() ColumnConfig {
	return ColumnConfig{
		DateCol:        "fecha",
		ProductCol:     "producto",
		DescriptionCol: "glosa",
		RevenueCol:     "total",
		QuantityCol:    "cantidad",
		TransactionCol: "trans_id",
		CostCol:        "costo",
		CustomerCol:    "customer_id",
		CategoryCol:    "category",
		TimeCol:        "hora",
	}
}

// WithDefaults fills every undeclared column with its default header
func (c ColumnConfig) WithDefaults() ColumnConfig {
	d := DefaultColumnConfig()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&c.DateCol, d.DateCol)
	fill(&c.ProductCol, d.ProductCol)
	fill(&c.DescriptionCol, d.DescriptionCol)
	fill(&c.RevenueCol, d.RevenueCol)
	fill(&c.QuantityCol, d.QuantityCol)
	fill(&c.TransactionCol, d.TransactionCol)
	fill(&c.CostCol, d.CostCol)
	fill(&c.CustomerCol, d.CustomerCol)
	fill(&c.CategoryCol, d.CategoryCol)
	fill(&c.TimeCol, d.TimeCol)
	return c
}

// Tenant represents a company whose ledger is isolated from every other tenant
type Tenant struct {
	ID              uint                             `json:"id" gorm:"primaryKey;autoIncrement"`
	Name            string                           `json:"name" gorm:"type:varchar(100);uniqueIndex"`
	Industry        string                           `json:"industry" gorm:"type:varchar(100)"`
	Currency        string                           `json:"currency" gorm:"type:varchar(10)"`
	ColumnConfig    datatypes.JSONType[ColumnConfig] `json:"columnConfig"`
	DateFormat      string                           `json:"dateFormat" gorm:"type:varchar(50)"`
	ParetoThreshold float64                          `json:"paretoThreshold"`
	ParetoMode      string                           `json:"paretoMode" gorm:"type:varchar(10)"`
	ParetoCap       int                              `json:"paretoCap"`
	DeadStockDays   int                              `json:"deadStockDays"`
	IsActive        bool                             `json:"isActive" gorm:"not null;default:true"`
	CreatedAt       time.Time                        `json:"createdAt"`
	UpdatedAt       time.Time                        `json:"updatedAt"`
}

func (Tenant) TableName() string { return "tenants" }

// BeforeCreate fills analytics defaults left unset by the caller
func (t *Tenant) BeforeCreate(*gorm.DB) error {
	if t.Currency == "" {
		t.Currency = "CLP"
	}
	if t.ParetoThreshold == 0 {
		t.ParetoThreshold = 0.20
	}
	if t.ParetoMode == "" {
		t.ParetoMode = "tail"
	}
	if t.DeadStockDays == 0 {
		t.DeadStockDays = 30
	}
	return nil
}

// Columns returns the declared mapping merged over the defaults
func (t *Tenant) Columns() ColumnConfig {
	return t.ColumnConfig.Data().WithDefaults()
}

// User is a viewer identity. Elevated users bypass tenant scoping.
type User struct {
	ID         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Username   string    `json:"username" gorm:"type:varchar(50);uniqueIndex"`
	IsElevated bool      `json:"isElevated" gorm:"not null;default:false"`
	IsActive   bool      `json:"isActive" gorm:"not null;default:true"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// Membership grants a user one role inside one tenant
type Membership struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	TenantID  uint      `json:"tenantId" gorm:"not null;uniqueIndex:idx_membership_tenant_user"`
	UserID    uint      `json:"userId" gorm:"not null;uniqueIndex:idx_membership_tenant_user;index"`
	Role      Role      `json:"role" gorm:"type:varchar(32);not null"`
	IsActive  bool      `json:"isActive" gorm:"not null;default:true"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Membership) TableName() string { return "memberships" }

// RowDiagnostic describes one rejected data row, 1-based
type RowDiagnostic struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// AttemptMetadata is the stable record stored on an attempt once it terminates
type AttemptMetadata struct {
	TransactionsCreated   int             `json:"transactions_created"`
	DatasetsCreated       int             `json:"datasets_created"`
	ResultsCreated        int             `json:"results_created"`
	RejectedRows          int             `json:"rejected_rows"`
	ProcessingTimeSeconds float64         `json:"processing_time_seconds,omitempty"`
	FallbackAnalytics     bool            `json:"fallback_analytics"`
	Rejections            []RowDiagnostic `json:"rejections,omitempty"`
}

// Attempt is one end-to-end pipeline run for one uploaded file
type Attempt struct {
	ID                    string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TenantID              uint           `json:"tenantId" gorm:"not null;index:idx_attempt_tenant_fingerprint"`
	UploaderID            uint           `json:"uploaderId" gorm:"not null"`
	FileName              string         `json:"fileName" gorm:"type:varchar(255)"`
	FileRef               string         `json:"fileRef" gorm:"type:varchar(512);not null"`
	FileSize              int64          `json:"fileSize"`
	Fingerprint           string         `json:"fingerprint" gorm:"type:varchar(64);index:idx_attempt_tenant_fingerprint"`
	Status                AttemptStatus  `json:"status" gorm:"type:varchar(16);not null;index"`
	ErrorMessage          string         `json:"errorMessage,omitempty" gorm:"type:text"`
	Metadata              datatypes.JSON `json:"metadata,omitempty"`
	RowCount              int            `json:"rowCount"`
	AnalysisStartDate     *time.Time     `json:"analysisStartDate,omitempty"`
	AnalysisEndDate       *time.Time     `json:"analysisEndDate,omitempty"`
	ProcessingStartedAt   *time.Time     `json:"processingStartedAt,omitempty"`
	ProcessingCompletedAt *time.Time     `json:"processingCompletedAt,omitempty"`
	CreatedAt             time.Time      `json:"createdAt" gorm:"index"`
	UpdatedAt             time.Time      `json:"updatedAt"`
}

func (Attempt) TableName() string { return "ingestion_attempts" }

// DecodeMetadata returns nil when the attempt has not recorded metadata yet
func (a *Attempt) DecodeMetadata() (*AttemptMetadata, error) {
	if len(a.Metadata) == 0 || string(a.Metadata) == "null" {
		return nil, nil
	}
	var m AttemptMetadata
	if err := json.Unmarshal(a.Metadata, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// EncodeMetadata marshals metadata into its stored form
func EncodeMetadata(m *AttemptMetadata) (datatypes.JSON, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// Transaction is one normalized ledger record
type Transaction struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TenantID    uint      `json:"tenantId" gorm:"not null;index:idx_transaction_tenant_date,priority:1"`
	AttemptID   string    `json:"uploadId" gorm:"type:varchar(36);not null;index"`
	ExternalID  string    `json:"transactionId,omitempty" gorm:"type:varchar(100)"`
	Date        time.Time `json:"date" gorm:"not null;index:idx_transaction_tenant_date,priority:2"`
	Hour        *int      `json:"hour,omitempty"`
	Weekday     int       `json:"weekday"` // 0 is Monday
	Month       int       `json:"month"`
	ProductID   string    `json:"productId" gorm:"type:varchar(255);not null;index"`
	Description string    `json:"description,omitempty" gorm:"type:text"`
	Quantity    float64   `json:"quantity"`
	Revenue     float64   `json:"revenue"`
	UnitPrice   float64   `json:"unitPrice"`
	Cost        *float64  `json:"cost,omitempty"`
	CustomerID  string    `json:"customerId,omitempty" gorm:"type:varchar(100)"`
	Category    string    `json:"category,omitempty" gorm:"type:varchar(100)"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (Transaction) TableName() string { return "transactions" }

// Result is one persisted analytics artifact
type Result struct {
	ID           string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TenantID     uint           `json:"tenantId" gorm:"not null;index"`
	AttemptID    *string        `json:"uploadId,omitempty" gorm:"type:varchar(36);index"`
	Kind         ResultKind     `json:"kind" gorm:"type:varchar(32);not null;index"`
	Title        string         `json:"title" gorm:"type:varchar(255)"`
	Payload      datatypes.JSON `json:"payload"`
	Roles        []ResultRole   `json:"-" gorm:"foreignKey:ResultID;constraint:OnDelete:CASCADE"`
	AnalysisDate time.Time      `json:"analysisDate"`
	CreatedAt    time.Time      `json:"createdAt" gorm:"index"`
}

func (Result) TableName() string { return "analytics_results" }

// RoleSet returns the roles the result is visible to
func (r *Result) RoleSet() []Role {
	roles := make([]Role, 0, len(r.Roles))
	for _, rr := range r.Roles {
		roles = append(roles, rr.Role)
	}
	return roles
}

// ResultRole is one entry of a result's visibility set
type ResultRole struct {
	ResultID string `json:"resultId" gorm:"primaryKey;type:varchar(36)"`
	Role     Role   `json:"role" gorm:"primaryKey;type:varchar(32)"`
}

func (ResultRole) TableName() string { return "analytics_result_roles" }

// models lists every table migrated at startup
func models() []any {
	return []any{
		&Tenant{}, &User{}, &Membership{},
		&Attempt{}, &Transaction{}, &Result{}, &ResultRole{},
	}
}
