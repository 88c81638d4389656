package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/Brownbull/gabeda-backend/internal/common/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededServer(t *testing.T) *testServer {
	t.Helper()
	s := newTestServer(t, 1<<20)
	w := s.upload(t, s.tenant.ID, salesCSV, "owner")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	return s
}

func resultKinds(t *testing.T, s *testServer, url, user string) []string {
	t.Helper()
	w := s.get(t, url, user)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var kinds []string
	for _, r := range decode[dto.ListResponse[dto.Result]](t, w).Items {
		kinds = append(kinds, r.Kind)
	}
	return kinds
}

func TestHandleListResults_Visibility(t *testing.T) {
	s := seededServer(t)
	url := fmt.Sprintf("/api/results?tenant_id=%d", s.tenant.ID)

	assert.ElementsMatch(t, []string{"kpi", "pareto", "inventory", "alert", "peak_times"}, resultKinds(t, s, url, "owner"))
	assert.ElementsMatch(t, []string{"kpi", "pareto", "peak_times"}, resultKinds(t, s, url, "analyst"))
	assert.ElementsMatch(t, []string{"kpi", "pareto", "inventory", "alert", "peak_times"}, resultKinds(t, s, url, "operator"))
	assert.Empty(t, resultKinds(t, s, "/api/results", "outsider"))

	assert.Equal(t, http.StatusForbidden, s.get(t, url+"&kind=inventory", "analyst").Code)
	assert.Equal(t, http.StatusForbidden, s.get(t, url, "outsider").Code)

	w := s.get(t, url+"&kind=bogus", "owner")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "E1004")
}

func TestHandleListTransactions(t *testing.T) {
	s := seededServer(t)
	base := fmt.Sprintf("/api/transactions?tenant_id=%d", s.tenant.ID)

	count := func(url, user string) int {
		w := s.get(t, url, user)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		return decode[dto.ListResponse[map[string]any]](t, w).Count
	}
	assert.Equal(t, 2, count(base, "ops"))
	assert.Equal(t, 1, count(base+"&start_date=2024-05-02", "ops"))
	assert.Equal(t, 1, count(base+"&end_date=2024-05-01", "ops"))
	assert.Equal(t, 1, count(base+"&limit=1", "ops"))
	assert.Equal(t, 0, count("/api/transactions", "outsider"))

	for _, bad := range []string{
		base + "&start_date=05/01/2024",
		base + "&start_date=2024-05-03&end_date=2024-05-01",
		base + "&offset=-2",
		"/api/transactions?tenant_id=abc",
	} {
		assert.Equal(t, http.StatusBadRequest, s.get(t, bad, "ops").Code, bad)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, 1<<20)

	w := s.get(t, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = s.get(t, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "handler_test_http_requests_total")
}
