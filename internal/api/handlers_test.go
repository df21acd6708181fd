package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/LogicUI/zustand-in-depth/internal/core"
)

type mockStore struct {
	mu      sync.Mutex
	state   core.State
	actions []string
}

func (m *mockStore) record(a string) {
	m.mu.Lock()
	m.actions = append(m.actions, a)
	m.mu.Unlock()
}

func (m *mockStore) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.actions...)
}

func (m *mockStore) Snapshot() core.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

func (m *mockStore) Increment() {
	m.record("increment")
	m.mu.Lock()
	m.state.Count++
	m.mu.Unlock()
}

func (m *mockStore) Decrement() {
	m.record("decrement")
	m.mu.Lock()
	m.state.Count--
	m.mu.Unlock()
}

func (m *mockStore) IncrementBy(n int64) {
	m.record("increment-by")
	m.mu.Lock()
	m.state.Count += n
	m.mu.Unlock()
}

func (m *mockStore) ResetCounter() {
	m.record("reset-counter")
	m.mu.Lock()
	m.state.Count = 0
	m.mu.Unlock()
}

func (m *mockStore) FetchComments(context.Context) { m.record("fetch") }
func (m *mockStore) ClearComments()                { m.record("clear") }

func (m *mockStore) ResetAll() {
	m.record("reset-all")
	m.mu.Lock()
	m.state.Count = 0
	m.state.Comments = nil
	m.mu.Unlock()
}

type mockPersist struct {
	ClearF   func(ctx context.Context) error
	failures int64

	mu      sync.Mutex
	cleared int
}

func (m *mockPersist) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.cleared++
	m.mu.Unlock()
	if m.ClearF != nil {
		return m.ClearF(ctx)
	}
	return nil
}

func (m *mockPersist) Cleared() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleared
}

func (m *mockPersist) WriteFailures() int64 { return m.failures }

type stubGate struct{ ready bool }

func (g *stubGate) Ready() bool { return g.ready }

func newTestRouter(t *testing.T, s *mockStore, p *mockPersist, g *stubGate) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv, err := NewServer(&ServerOptions{
		Store:       s,
		Persistence: p,
		Gate:        g,
		Addr:        ":0",
	})
	require.NoError(t, err)
	return srv.Router()
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetStateFallbackBeforeReady(t *testing.T) {
	t.Parallel()
	s := &mockStore{state: core.State{Count: 42, IsHydrated: true}}
	router := newTestRouter(t, s, &mockPersist{}, &stubGate{ready: false})

	rec := doRequest(t, router, http.MethodGet, "/state", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, false, resp["ready"])
	require.Equal(t, true, resp["hydrated"])
	// persisted fields must not leak through the closed gate
	require.NotContains(t, resp, "count")
	require.NotContains(t, resp, "comments")
}

func TestGetStateWhenReady(t *testing.T) {
	t.Parallel()
	s := &mockStore{state: core.State{
		Count:      42,
		IsHydrated: true,
		Comments: []core.Comment{
			{PostID: 1, ID: 1, Name: "n", Email: "n@example.com", Body: "b"},
		},
	}}
	router := newTestRouter(t, s, &mockPersist{}, &stubGate{ready: true})

	rec := doRequest(t, router, http.MethodGet, "/state", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Ready)
	require.True(t, resp.Hydrated)
	require.Equal(t, int64(42), resp.Count)
	require.Len(t, resp.Comments, 1)
	require.Equal(t, "n@example.com", resp.Comments[0].Email)
}

func TestCounterEndpoints(t *testing.T) {
	t.Parallel()
	s := &mockStore{state: core.State{IsHydrated: true}}
	router := newTestRouter(t, s, &mockPersist{}, &stubGate{ready: true})

	rec := doRequest(t, router, http.MethodPost, "/counter/increment", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"count":1`)

	rec = doRequest(t, router, http.MethodPost, "/counter/increment-by", `{"n":9}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"count":10`)

	rec = doRequest(t, router, http.MethodPost, "/counter/increment-by", `{"n":0}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/counter/decrement", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/counter/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"count":0`)
}

func TestIncrementByRequiresN(t *testing.T) {
	t.Parallel()
	s := &mockStore{}
	router := newTestRouter(t, s, &mockPersist{}, &stubGate{ready: true})

	rec := doRequest(t, router, http.MethodPost, "/counter/increment-by", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, s.Actions(), "invalid request must not reach the store")
}

func TestFetchCommentsAccepted(t *testing.T) {
	t.Parallel()
	s := &mockStore{}
	router := newTestRouter(t, s, &mockPersist{}, &stubGate{ready: true})

	rec := doRequest(t, router, http.MethodPost, "/comments/fetch", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, []string{"fetch"}, s.Actions())
}

func TestClearComments(t *testing.T) {
	t.Parallel()
	s := &mockStore{}
	router := newTestRouter(t, s, &mockPersist{}, &stubGate{ready: true})

	rec := doRequest(t, router, http.MethodDelete, "/comments", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, []string{"clear"}, s.Actions())
}

func TestResetEverything(t *testing.T) {
	t.Parallel()
	s := &mockStore{state: core.State{Count: 5}}
	p := &mockPersist{}
	router := newTestRouter(t, s, p, &stubGate{ready: true})

	rec := doRequest(t, router, http.MethodPost, "/reset", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, []string{"reset-all"}, s.Actions())
	require.Equal(t, 1, p.Cleared())
}

func TestResetEverythingAbsorbsClearFailure(t *testing.T) {
	t.Parallel()
	s := &mockStore{}
	p := &mockPersist{ClearF: func(context.Context) error {
		return errors.New("slot gone")
	}}
	router := newTestRouter(t, s, p, &stubGate{ready: true})

	rec := doRequest(t, router, http.MethodPost, "/reset", "")
	require.Equal(t, http.StatusNoContent, rec.Code, "storage failure is not the user's problem")
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, &mockStore{}, &mockPersist{failures: 3}, &stubGate{})

	rec := doRequest(t, router, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)
	require.Equal(t, int64(3), resp.PersistWriteFailures)
}

func TestRequestIDHeader(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, &mockStore{}, &mockPersist{}, &stubGate{})

	rec := doRequest(t, router, http.MethodGet, "/healthz", "")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "simon-req")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, "simon-req", rec.Header().Get("X-Request-ID"))
}
