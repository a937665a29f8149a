package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/ruteri/vaccine-ledger/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerMetrics(t *testing.T) {
	m, err := New("vaccine-ledger", "127.0.0.1:0")
	require.NoError(t, err)

	m.Ledger.ObserveOperation("register-researcher", "ok", 10*time.Millisecond)
	m.Ledger.ObserveOperation("register-researcher", "INSUFFICIENT-FUNDS", time.Millisecond)
	m.Ledger.ObserveOperation("register-researcher", "ok", time.Millisecond)
	m.Ledger.ObserveState(interfaces.StateCounts{Researchers: 2, Submissions: 5, Validators: 1}, 8)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Ledger.operations.WithLabelValues("register-researcher", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Ledger.operations.WithLabelValues("register-researcher", "INSUFFICIENT-FUNDS")))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.Ledger.height))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.Ledger.submissions))

	expected := `
# HELP vaccine_ledger_researchers Number of registered researchers
# TYPE vaccine_ledger_researchers gauge
vaccine_ledger_researchers 2
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "vaccine_ledger_researchers"))
}

func TestHTTPMetrics_Middleware(t *testing.T) {
	m, err := New("ledger", "127.0.0.1:0")
	require.NoError(t, err)

	mux := chi.NewRouter()
	mux.Use(m.HTTP.Middleware)
	mux.Get("/api/v1/researchers/{principal}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, p := range []string{"0x01", "0x02"} {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/researchers/"+p, nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTP.requests.WithLabelValues(http.MethodGet, "/api/v1/researchers/{principal}", "404")))
}

func TestSanitizeNamespace(t *testing.T) {
	assert.Equal(t, "vaccine_ledger", sanitizeNamespace("vaccine-ledger"))
	assert.Equal(t, "ok_1", sanitizeNamespace("ok_1"))
}
