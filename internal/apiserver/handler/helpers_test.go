package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/Brownbull/gabeda-backend/internal/access"
	"github.com/Brownbull/gabeda-backend/internal/analytics"
	"github.com/Brownbull/gabeda-backend/internal/apiserver/database"
	"github.com/Brownbull/gabeda-backend/internal/apiserver/scheduler"
	jsvc "github.com/Brownbull/gabeda-backend/internal/auth/jwt"
	"github.com/Brownbull/gabeda-backend/internal/common/cnst"
	"github.com/Brownbull/gabeda-backend/internal/common/config"
	"github.com/Brownbull/gabeda-backend/internal/ingest"
	"github.com/Brownbull/gabeda-backend/internal/ledger"
	"github.com/Brownbull/gabeda-backend/internal/publisher"
	"github.com/Brownbull/gabeda-backend/internal/report"
	"github.com/Brownbull/gabeda-backend/internal/storage"
	"github.com/Brownbull/gabeda-backend/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const salesCSV = "fecha,producto,total\n2024-05-01,pan,1500\n2024-05-02,leche,\n2024-05-03,pan,2500\n"

func mustNewJWTService(t *testing.T) *jsvc.Service {
	t.Helper()
	s, err := jsvc.NewService(jsvc.Config{SecretKey: "this-is-a-very-long-secret-key-for-testing", Duration: time.Hour})
	require.NoError(t, err)
	return s
}

type testServer struct {
	router *gin.Engine
	db     database.Database
	jwt    *jsvc.Service
	tenant *database.Tenant
	other  *database.Tenant
	users  map[string]*database.User
}

func newTestServer(t *testing.T, maxUpload int64) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	ctx := context.Background()

	db, err := database.NewSQLite(&config.DatabaseConfig{Type: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	files, err := storage.NewDiskStorage(logger, t.TempDir())
	require.NoError(t, err)

	columns := datatypes.NewJSONType(database.ColumnConfig{DateCol: "fecha", ProductCol: "producto", RevenueCol: "total"})
	tenant := &database.Tenant{Name: "acme", ColumnConfig: columns}
	other := &database.Tenant{Name: "globex", ColumnConfig: columns}
	require.NoError(t, db.CreateTenant(ctx, tenant))
	require.NoError(t, db.CreateTenant(ctx, other))

	users := map[string]*database.User{}
	for _, m := range []struct {
		name     string
		role     database.Role
		elevated bool
	}{
		{"owner", database.RoleAdmin, false},
		{"analyst", database.RoleAnalyst, false},
		{"ops", database.RoleOperationsManager, false},
		{"outsider", "", false},
		{"operator", "", true},
	} {
		u := &database.User{Username: m.name, IsActive: true, IsElevated: m.elevated}
		require.NoError(t, db.CreateUser(ctx, u))
		users[m.name] = u
		if m.role != "" {
			require.NoError(t, db.AddMembership(ctx, &database.Membership{TenantID: tenant.ID, UserID: u.ID, Role: m.role, IsActive: true}))
		}
	}
	require.NoError(t, db.AddMembership(ctx, &database.Membership{TenantID: other.ID, UserID: users["outsider"].ID, Role: database.RoleAdmin, IsActive: true}))

	pipeline := config.PipelineConfig{ChunkSize: 1000, DuplicatePolicy: string(cnst.DuplicateReject)}
	lw := ledger.NewWriter(db, pipeline.ChunkSize, logger)
	pub := publisher.New(db, nil, logger)
	orch := ingest.NewOrchestrator(ingest.Deps{
		DB:        db,
		Files:     files,
		Ledger:    lw,
		Engine:    analytics.NewEngine(analytics.NewLocalProvider(analytics.Options{}), logger),
		Publisher: pub,
		Logger:    logger,
	}, pipeline)

	runner := scheduler.NewRunner(nil, orch, 1, logger)
	require.NoError(t, runner.Start())
	t.Cleanup(func() { _ = runner.Stop() })

	gate := access.NewGate(access.NewDBMemberships(db), logger)
	h := New(Deps{
		DB:            db,
		Orchestrator:  orch,
		Runner:        runner,
		Reports:       report.NewService(db, gate, pub.Visibility()),
		Gate:          gate,
		MaxUploadSize: maxUpload,
		Logger:        logger,
	})

	jwtSvc := mustNewJWTService(t)
	router := NewRouter(h, RouterOptions{
		Metrics: metrics.New(config.MetricsConfig{Namespace: "handler_test"}),
		JWT:     jwtSvc,
	})
	return &testServer{router: router, db: db, jwt: jwtSvc, tenant: tenant, other: other, users: users}
}

func (s *testServer) token(t *testing.T, username string) string {
	t.Helper()
	u := s.users[username]
	tok, err := s.jwt.GenerateToken(u.ID, u.Username, u.IsElevated)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, req *http.Request, username string) *httptest.ResponseRecorder {
	t.Helper()
	if username != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(t, username))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) get(t *testing.T, url, username string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, httptest.NewRequest(http.MethodGet, url, nil), username)
}

func (s *testServer) upload(t *testing.T, tenantID uint, content, username string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if content != "" {
		fw, err := mw.CreateFormFile("file", "ventas.csv")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/tenants/"+strconv.FormatUint(uint64(tenantID), 10)+"/uploads", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.do(t, req, username)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
