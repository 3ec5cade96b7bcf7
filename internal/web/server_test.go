package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/conorfennell/lingosrs/internal/fsrs"
	"github.com/conorfennell/lingosrs/internal/srs"
	"github.com/conorfennell/lingosrs/internal/storage"
	decksync "github.com/conorfennell/lingosrs/internal/sync"
)

const testSecret = "test-secret"

type testServer struct {
	handler http.Handler
	auth    *Authenticator
	deckDir string
	healthy error
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	db, err := storage.Open(ctx, storage.DriverSQLite, filepath.Join(t.TempDir(), "web.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sched, err := fsrs.NewScheduler(fsrs.DefaultConfig(), nil)
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	svc := srs.NewService(db, sched, srs.WithMetrics(srs.NewMetrics(reg)))
	syncer := decksync.NewSyncer(db, svc, filepath.Join(t.TempDir(), "repos"), zap.NewNop())

	auth, err := NewAuthenticator(testSecret, "lingosrs")
	require.NoError(t, err)

	ts := &testServer{auth: auth, deckDir: t.TempDir()}
	srv, err := NewServer(svc, syncer, Options{
		Auth:    auth,
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Health: func(ctx context.Context) error {
			if ts.healthy != nil {
				return ts.healthy
			}
			return db.Ping(ctx)
		},
	})
	require.NoError(t, err)
	ts.handler = srv
	return ts
}

func (ts *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := ts.auth.IssueToken(userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, typ string) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	body := decode[errorBody](t, rec)
	assert.Equal(t, typ, body.Error.Type)
	assert.NotEmpty(t, body.Error.Message)
	assert.Equal(t, rec.Header().Get(middleware.RequestIDHeader), body.Error.RequestID)
}

type cardJSON struct {
	ID        string `json:"id"`
	FrontText string `json:"frontText"`
	BackText  string `json:"backText"`
	State     string `json:"state"`
	Reps      int    `json:"reps"`
}

func (ts *testServer) createCard(t *testing.T, token, front string) cardJSON {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/v1/flashcards", token, map[string]any{
		"language":  "chi_sim",
		"frontText": front,
		"backText":  "meaning of " + front,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[cardJSON](t, rec)
}

func TestNewServerRequiresAuthenticator(t *testing.T) {
	_, err := NewServer(nil, nil, Options{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])

	ts.healthy = errors.New("database unreachable")
	rec = ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/flashcards/review-queue", "", nil)
	assertError(t, rec, http.StatusUnauthorized, "unauthorized")

	rec = ts.do(t, http.MethodGet, "/api/v1/flashcards/review-queue", "not-a-jwt", nil)
	assertError(t, rec, http.StatusUnauthorized, "unauthorized")

	expired, err := ts.auth.IssueToken("user-1", -time.Minute)
	require.NoError(t, err)
	rec = ts.do(t, http.MethodGet, "/api/v1/flashcards/review-queue", expired, nil)
	assertError(t, rec, http.StatusUnauthorized, "unauthorized")

	other, err := NewAuthenticator("other-secret", "lingosrs")
	require.NoError(t, err)
	forged, err := other.IssueToken("user-1", time.Hour)
	require.NoError(t, err)
	rec = ts.do(t, http.MethodGet, "/api/v1/flashcards/review-queue", forged, nil)
	assertError(t, rec, http.StatusUnauthorized, "unauthorized")

	wrongIssuer, err := NewAuthenticator(testSecret, "someone-else")
	require.NoError(t, err)
	tok, err := wrongIssuer.IssueToken("user-1", time.Hour)
	require.NoError(t, err)
	rec = ts.do(t, http.MethodGet, "/api/v1/flashcards/review-queue", tok, nil)
	assertError(t, rec, http.StatusUnauthorized, "unauthorized")

	rec = ts.do(t, http.MethodGet, "/api/v1/flashcards/review-queue", ts.token(t, "user-1"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateCard(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, "user-1")

	card := ts.createCard(t, tok, "你好")
	assert.NotEmpty(t, card.ID)
	assert.Equal(t, "New", card.State)
	assert.Equal(t, 0, card.Reps)

	rec := ts.do(t, http.MethodPost, "/api/v1/flashcards", tok, map[string]any{
		"language":  "klingon",
		"frontText": "x",
		"backText":  "y",
	})
	assertError(t, rec, http.StatusBadRequest, "validation_error")

	rec = ts.do(t, http.MethodPost, "/api/v1/flashcards", tok, `{"frontText":`)
	assertError(t, rec, http.StatusBadRequest, "validation_error")

	rec = ts.do(t, http.MethodPost, "/api/v1/flashcards", tok, map[string]any{
		"language":  "eng",
		"frontText": "x",
		"backText":  "y",
		"state":     "Review",
	})
	assertError(t, rec, http.StatusBadRequest, "validation_error")
}

func TestReviewFlow(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, "user-1")
	card := ts.createCard(t, tok, "谢谢")

	rec := ts.do(t, http.MethodGet, "/api/v1/flashcards/review-queue", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	queue := decode[[]cardJSON](t, rec)
	require.Len(t, queue, 1)
	assert.Equal(t, card.ID, queue[0].ID)

	rec = ts.do(t, http.MethodGet, "/api/v1/flashcards/"+card.ID+"/preview", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	preview := decode[srs.Preview](t, rec)
	assert.Len(t, preview.Options, 4)

	rec = ts.do(t, http.MethodPost, "/api/v1/flashcards/review", tok, map[string]any{
		"flashcardId": card.ID,
		"rating":      "Good",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[map[string]any](t, rec)
	assert.Equal(t, card.ID, result["flashcardId"])
	assert.Equal(t, "Learning", result["state"])
	assert.NotEmpty(t, result["nextDueDate"])

	rec = ts.do(t, http.MethodGet, "/api/v1/flashcards/"+card.ID+"/reviews", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	logs := decode[[]map[string]any](t, rec)
	require.Len(t, logs, 1)
	assert.Equal(t, "Good", logs[0]["rating"])
	assert.Equal(t, "New", logs[0]["stateBefore"])

	rec = ts.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lingosrs_reviews_total")
}

func TestSubmitReviewErrors(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, "user-1")
	card := ts.createCard(t, tok, "再见")

	tests := []struct {
		name   string
		token  string
		body   any
		status int
		typ    string
	}{
		{"rating out of range", tok, map[string]any{"flashcardId": card.ID, "rating": 5}, http.StatusBadRequest, "validation_error"},
		{"unknown rating name", tok, map[string]any{"flashcardId": card.ID, "rating": "Perfect"}, http.StatusBadRequest, "validation_error"},
		{"missing rating", tok, map[string]any{"flashcardId": card.ID}, http.StatusBadRequest, "validation_error"},
		{"missing card id", tok, map[string]any{"rating": 3}, http.StatusBadRequest, "validation_error"},
		{"unknown card", tok, map[string]any{"flashcardId": "nope", "rating": 3}, http.StatusNotFound, "not_found"},
		{"foreign card", ts.token(t, "user-2"), map[string]any{"flashcardId": card.ID, "rating": 3}, http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/v1/flashcards/review", tt.token, tt.body)
			assertError(t, rec, tt.status, tt.typ)
		})
	}

	// None of the rejected reviews touched the card.
	rec := ts.do(t, http.MethodGet, "/api/v1/flashcards/"+card.ID, tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[cardJSON](t, rec)
	assert.Equal(t, "New", got.State)
	assert.Equal(t, 0, got.Reps)
}

func TestCardCRUD(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, "user-1")
	a := ts.createCard(t, tok, "苹果")
	ts.createCard(t, tok, "香蕉")

	rec := ts.do(t, http.MethodGet, "/api/v1/flashcards?limit=1&page=2", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[map[string]any](t, rec)
	assert.EqualValues(t, 2, page["total"])
	assert.EqualValues(t, 2, page["totalPages"])
	assert.Len(t, page["items"], 1)

	rec = ts.do(t, http.MethodGet, "/api/v1/flashcards?q="+url.QueryEscape("苹"), tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["total"])

	rec = ts.do(t, http.MethodGet, "/api/v1/flashcards?limit=abc", tok, nil)
	assertError(t, rec, http.StatusBadRequest, "validation_error")

	rec = ts.do(t, http.MethodPatch, "/api/v1/flashcards/"+a.ID, tok, map[string]any{"backText": "apple"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[cardJSON](t, rec)
	assert.Equal(t, "apple", updated.BackText)
	assert.Equal(t, "苹果", updated.FrontText)

	rec = ts.do(t, http.MethodPatch, "/api/v1/flashcards/"+a.ID, ts.token(t, "user-2"), map[string]any{"backText": "x"})
	assertError(t, rec, http.StatusNotFound, "not_found")

	rec = ts.do(t, http.MethodDelete, "/api/v1/flashcards/"+a.ID, ts.token(t, "user-2"), nil)
	assertError(t, rec, http.StatusNotFound, "not_found")

	rec = ts.do(t, http.MethodDelete, "/api/v1/flashcards/"+a.ID, tok, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/flashcards/"+a.ID, tok, nil)
	assertError(t, rec, http.StatusNotFound, "not_found")
}

func TestSources(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, "user-1")
	require.NoError(t, os.WriteFile(filepath.Join(ts.deckDir, "deck.md"), []byte("Q: 水\nA: water\n"), 0o644))

	rec := ts.do(t, http.MethodPost, "/api/v1/sources", tok, map[string]any{"path": ts.deckDir, "language": "jpn"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	src := decode[map[string]any](t, rec)
	id, _ := src["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "local", src["type"])

	rec = ts.do(t, http.MethodPost, "/api/v1/sources", tok, map[string]any{"path": ts.deckDir, "language": "jpn"})
	assertError(t, rec, http.StatusConflict, "conflict")

	rec = ts.do(t, http.MethodGet, "/api/v1/sources", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	rec = ts.do(t, http.MethodPost, "/api/v1/sync", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reports := decode[[]decksync.Report](t, rec)
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].Created)

	rec = ts.do(t, http.MethodGet, "/api/v1/flashcards/review-queue", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]cardJSON](t, rec), 1)

	rec = ts.do(t, http.MethodDelete, "/api/v1/sources/"+id, tok, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(t, http.MethodDelete, "/api/v1/sources/"+id, tok, nil)
	assertError(t, rec, http.StatusNotFound, "not_found")
}
