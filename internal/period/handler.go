package period

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/putriazni/umqei/internal/platform/httpx"
)

const currentCacheKey = "umqei:period:current"

// Resyncer re-arms the session scheduler. Every successful period mutation
// must trigger it.
type Resyncer interface {
	Resync(ctx context.Context) error
}

// Handler exposes the period management HTTP surface.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	resyncer Resyncer
	validate *validator.Validate
	cache    *redis.Client
	cacheTTL time.Duration
	flight   singleflight.Group
}

// NewHandler constructs the period Handler. cache may be nil.
func NewHandler(logger *slog.Logger, service *Service, resyncer Resyncer, cache *redis.Client, cacheTTL time.Duration) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		resyncer: resyncer,
		validate: validator.New(),
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// MountRoutes registers the period endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/periods", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/current", h.current)
		r.Post("/", h.create)
		r.Patch("/{session}", h.update)
		r.Delete("/{session}", h.remove)
	})
}

type periodRequest struct {
	YearSession        string `json:"yearSession" validate:"required"`
	Year               int    `json:"year" validate:"required,gt=0"`
	AuditStartDate     string `json:"auditStartDate" validate:"required"`
	AuditEndDate       string `json:"auditEndDate" validate:"required"`
	SelfAuditStartDate string `json:"selfAuditStartDate" validate:"required"`
	SelfAuditEndDate   string `json:"selfAuditEndDate" validate:"required"`
	EnablerWeightage   *int   `json:"enablerWeightage" validate:"required,gte=0,lte=100"`
	ResultWeightage    *int   `json:"resultWeightage" validate:"required,gte=0,lte=100"`
}

func (req periodRequest) toPeriod() (Period, error) {
	p := Period{
		YearSession:      req.YearSession,
		Year:             req.Year,
		EnablerWeightage: *req.EnablerWeightage,
		ResultWeightage:  *req.ResultWeightage,
	}
	var err error
	if p.AuditStartDate, err = time.Parse(DateLayout, req.AuditStartDate); err != nil {
		return Period{}, err
	}
	if p.AuditEndDate, err = time.Parse(DateLayout, req.AuditEndDate); err != nil {
		return Period{}, err
	}
	if p.SelfAuditStartDate, err = time.Parse(DateLayout, req.SelfAuditStartDate); err != nil {
		return Period{}, err
	}
	if p.SelfAuditEndDate, err = time.Parse(DateLayout, req.SelfAuditEndDate); err != nil {
		return Period{}, err
	}
	return p, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list periods", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

type currentResponse struct {
	Period
	IsCurrentPeriod bool `json:"isCurrentPeriod"`
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.cache != nil {
		if cached, err := h.cache.Get(ctx, currentCacheKey).Bytes(); err == nil {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(cached)
			return
		}
	}

	res, err, _ := h.flight.Do(currentCacheKey, func() (any, error) {
		return h.resolveCurrent(ctx)
	})
	if err != nil {
		h.logger.Error("resolve current period", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	body, err := json.Marshal(res)
	if err != nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, currentCacheKey, body, h.cacheTTL).Err(); err != nil {
			h.logger.Warn("cache current period", slog.Any("error", err))
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

// resolveCurrent falls back to the soonest upcoming period when no session
// is in progress, and to an explicit null when none are registered at all.
func (h *Handler) resolveCurrent(ctx context.Context) (any, error) {
	p, ok, err := h.service.Current(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return currentResponse{Period: p, IsCurrentPeriod: true}, nil
	}
	p, ok, err = h.service.LatestUpcoming(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return currentResponse{Period: p, IsCurrentPeriod: false}, nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req periodRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	p, err := req.toPeriod()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "dates must use format "+DateLayout)
		return
	}

	created, err := h.service.Create(r.Context(), p)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.afterMutation(r.Context())
	httpx.JSON(w, http.StatusOK, created)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "session")
	var req periodRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	req.YearSession = session
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	p, err := req.toPeriod()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "dates must use format "+DateLayout)
		return
	}

	updated, err := h.service.UpdateSession(r.Context(), session, p)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.afterMutation(r.Context())
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "session")
	removed, err := h.service.Remove(r.Context(), session)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.afterMutation(r.Context())
	httpx.JSON(w, http.StatusOK, removed)
}

// afterMutation drops the cached current-period response and re-arms the
// scheduler. The write already succeeded, so failures here are logged and
// the next mutation or boundary corrects the schedule.
func (h *Handler) afterMutation(ctx context.Context) {
	if h.cache != nil {
		if err := h.cache.Del(ctx, currentCacheKey).Err(); err != nil {
			h.logger.Warn("invalidate current period cache", slog.Any("error", err))
		}
	}
	if h.resyncer != nil {
		if err := h.resyncer.Resync(ctx); err != nil {
			h.logger.Error("scheduler resync after period mutation", slog.Any("error", err))
		}
	}
}

func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "invalid session")
	case errors.Is(err, ErrDuplicateSession), errors.Is(err, ErrPeriodOverlap):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInvalidSession), errors.Is(err, ErrInvalidWeightage):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
	default:
		h.logger.Error("period mutation", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
