package period

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingResyncer struct {
	calls int
}

func (c *countingResyncer) Resync(ctx context.Context) error {
	c.calls++
	return nil
}

type handlerFixture struct {
	repo     *fakeRepo
	redis    *miniredis.Miniredis
	resyncer *countingResyncer
	router   chi.Router
}

func newHandlerFixture(t *testing.T, repo *fakeRepo, now time.Time) *handlerFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := newTestService(repo)
	svc.WithNow(func() time.Time { return now })
	resyncer := &countingResyncer{}
	h := NewHandler(slog.Default(), svc, resyncer, client, time.Minute)

	router := chi.NewRouter()
	h.MountRoutes(router)
	return &handlerFixture{repo: repo, redis: mr, resyncer: resyncer, router: router}
}

func (fx *handlerFixture) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	return rec
}

func TestCurrentEndpointServesFromCacheOnRepeat(t *testing.T) {
	now := at("2025-08-01 00:00:00")
	repo := &fakeRepo{periods: []Period{
		period("2025-2026", "2025-09-01 00:00:00", "2025-12-01 00:00:00"),
	}}
	fx := newHandlerFixture(t, repo, now)

	rec := fx.do(http.MethodGet, "/periods/current", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res struct {
		YearSession     string `json:"yearSession"`
		IsCurrentPeriod bool   `json:"isCurrentPeriod"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "2025-2026", res.YearSession)
	assert.False(t, res.IsCurrentPeriod, "upcoming fallback is not the current period")
	assert.True(t, fx.redis.Exists(currentCacheKey))

	// The store changes, but the cached body is served until invalidation.
	fx.repo.periods = nil
	rec = fx.do(http.MethodGet, "/periods/current", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "2025-2026", res.YearSession)
}

func TestCurrentEndpointNullWhenNoSessions(t *testing.T) {
	fx := newHandlerFixture(t, &fakeRepo{}, at("2025-08-01 00:00:00"))
	rec := fx.do(http.MethodGet, "/periods/current", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))
}

func validPayload(session string) string {
	return `{
		"yearSession": "` + session + `",
		"year": 2025,
		"selfAuditStartDate": "2025-09-01 00:00:00",
		"selfAuditEndDate": "2025-10-01 00:00:00",
		"auditStartDate": "2025-10-01 00:00:00",
		"auditEndDate": "2025-12-01 00:00:00",
		"enablerWeightage": 60,
		"resultWeightage": 40
	}`
}

func TestCreatePeriodResyncsSchedulerAndDropsCache(t *testing.T) {
	fx := newHandlerFixture(t, &fakeRepo{}, at("2025-08-01 00:00:00"))

	// Warm the cache first so the mutation has something to drop.
	require.Equal(t, http.StatusOK, fx.do(http.MethodGet, "/periods/current", "").Code)
	require.True(t, fx.redis.Exists(currentCacheKey))

	rec := fx.do(http.MethodPost, "/periods/", validPayload("2025-2026"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, 1, fx.resyncer.calls)
	assert.False(t, fx.redis.Exists(currentCacheKey))
	require.Len(t, fx.repo.inserts, 1)
	assert.Equal(t, "2025-2026", fx.repo.inserts[0].YearSession)
}

func TestCreatePeriodDuplicateSessionConflicts(t *testing.T) {
	repo := &fakeRepo{periods: []Period{
		period("2025-2026", "2026-01-01 00:00:00", "2026-03-01 00:00:00"),
	}}
	fx := newHandlerFixture(t, repo, at("2025-08-01 00:00:00"))

	rec := fx.do(http.MethodPost, "/periods/", validPayload("2025-2026"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Zero(t, fx.resyncer.calls, "failed mutation must not resync")
}

func TestCreatePeriodRejectsMalformedDates(t *testing.T) {
	fx := newHandlerFixture(t, &fakeRepo{}, at("2025-08-01 00:00:00"))
	payload := strings.Replace(validPayload("2025-2026"), "2025-09-01 00:00:00", "September 1st", 1)

	rec := fx.do(http.MethodPost, "/periods/", payload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveUnknownSessionNotFound(t *testing.T) {
	fx := newHandlerFixture(t, &fakeRepo{}, at("2025-08-01 00:00:00"))
	rec := fx.do(http.MethodDelete, "/periods/2030-2031", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
