package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/wonny/optionrank/internal/contracts"
	"github.com/wonny/optionrank/internal/jobs"
	"github.com/wonny/optionrank/pkg/logger"
	"github.com/wonny/optionrank/pkg/redis"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// JobQueue is the orchestrator surface the API needs
type JobQueue interface {
	Enqueue(ctx context.Context, symbol string, priority int) (*jobs.Receipt, error)
	Status(ctx context.Context, id uuid.UUID) (*jobs.JobView, error)
	Stats(ctx context.Context) (*contracts.QueueStats, error)
}

// Explainer breaks a ranked contract into weighted contributions
type Explainer interface {
	Explain(set *contracts.RankSet, contractID string) (*contracts.Explanation, error)
}

// RankingHandler handles ranking job and ranked-contract endpoints
// ⭐ SSOT: 랭킹 API 핸들러는 이 구조체에서만
type RankingHandler struct {
	queue     JobQueue
	ranks     contracts.RankStore
	explainer Explainer
	limiter   *redis.RateLimiter
	perMinute int
	logger    *logger.Logger
}

// NewRankingHandler creates a new ranking handler. limiter may be nil.
func NewRankingHandler(queue JobQueue, ranks contracts.RankStore, explainer Explainer, limiter *redis.RateLimiter, perMinute int, log *logger.Logger) *RankingHandler {
	return &RankingHandler{
		queue:     queue,
		ranks:     ranks,
		explainer: explainer,
		limiter:   limiter,
		perMinute: perMinute,
		logger:    log,
	}
}

// EnqueueRequest represents a ranking job request
type EnqueueRequest struct {
	Symbol   string `json:"symbol" validate:"required,max=10"`
	Priority int    `json:"priority" validate:"gte=-100,lte=100"`
}

// Enqueue requests a ranking run
// POST /api/rankings/jobs
func (h *RankingHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.limiter != nil {
		allowed, _, err := h.limiter.Allow(ctx, redis.EnqueueRateLimit(clientIP(r), h.perMinute))
		if err != nil {
			// 레이트 리밋 저장소 장애 시 요청은 통과
			h.logger.WithError(err).Warn("Rate limiter unavailable")
		} else if !allowed {
			w.Header().Set("Retry-After", "60")
			respondError(w, http.StatusTooManyRequests, "Too many enqueue requests")
			return
		}
	}

	var req EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	receipt, err := h.queue.Enqueue(ctx, req.Symbol, req.Priority)
	if err != nil {
		if errors.Is(err, contracts.ErrInvalidSymbol) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.WithError(err).Error("Failed to enqueue ranking job")
		respondError(w, http.StatusInternalServerError, "Failed to enqueue ranking job")
		return
	}

	status := http.StatusAccepted
	if receipt.Deduplicated {
		status = http.StatusOK
	}
	respondJSON(w, status, receipt)
}

// GetJob returns a job's state
// GET /api/rankings/jobs/{id}
func (h *RankingHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid job id")
		return
	}

	view, err := h.queue.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, contracts.ErrJobNotFound) {
			respondError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.logger.WithError(err).Error("Failed to get ranking job")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve job")
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// GetQueue returns job counts by status
// GET /api/rankings/queue
func (h *RankingHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queue.Stats(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to get queue stats")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve queue statistics")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"pending":   stats.Pending,
		"running":   stats.Running,
		"completed": stats.Completed,
		"failed":    stats.Failed,
		"total":     stats.Total(),
	})
}

// GetRankings returns the last completed ranking for a symbol
// GET /api/rankings/{symbol}?expiration=YYYY-MM-DD&side=call|put&limit=N
func (h *RankingHandler) GetRankings(w http.ResponseWriter, r *http.Request) {
	symbol, err := contracts.NormalizeSymbol(mux.Vars(r)["symbol"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter, err := parseRankFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	set, ok := h.latest(w, r, symbol)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, set.Filter(filter))
}

// Explain returns the weighted breakdown of one ranked contract
// GET /api/rankings/{symbol}/{contract}/explain
func (h *RankingHandler) Explain(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbol, err := contracts.NormalizeSymbol(vars["symbol"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	set, ok := h.latest(w, r, symbol)
	if !ok {
		return
	}

	explanation, err := h.explainer.Explain(set, vars["contract"])
	if err != nil {
		if errors.Is(err, contracts.ErrRankingNotFound) {
			respondError(w, http.StatusNotFound, "Contract not in the latest ranking")
			return
		}
		h.logger.WithError(err).Error("Failed to explain ranking")
		respondError(w, http.StatusInternalServerError, "Failed to explain ranking")
		return
	}

	respondJSON(w, http.StatusOK, explanation)
}

// latest loads the last completed set, writing the error response on failure
func (h *RankingHandler) latest(w http.ResponseWriter, r *http.Request, symbol string) (*contracts.RankSet, bool) {
	set, err := h.ranks.Latest(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, contracts.ErrRankingNotFound) {
			respondError(w, http.StatusNotFound, fmt.Sprintf("No completed ranking for %s", symbol))
			return nil, false
		}
		h.logger.WithError(err).WithField("symbol", symbol).Error("Failed to load ranking")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve ranking")
		return nil, false
	}
	return set, true
}

func parseRankFilter(r *http.Request) (contracts.RankFilter, error) {
	var f contracts.RankFilter
	q := r.URL.Query()

	if v := q.Get("expiration"); v != "" {
		exp, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, fmt.Errorf("invalid 'expiration' (expected YYYY-MM-DD)")
		}
		f.Expiration = &exp
	}

	if v := q.Get("side"); v != "" {
		side, err := contracts.ParseSide(v)
		if err != nil {
			return f, fmt.Errorf("invalid 'side' (expected call or put)")
		}
		f.Side = side
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return f, fmt.Errorf("invalid 'limit' (expected a positive integer)")
		}
		f.Limit = n
	}

	return f, nil
}

// clientIP prefers the first X-Forwarded-For hop
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if ip := strings.TrimSpace(strings.Split(fwd, ",")[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed '%s'", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return "Invalid request: " + strings.Join(parts, ", ")
}
