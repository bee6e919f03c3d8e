package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/segyhp/lending-ledger/pkg/errors"
	"github.com/segyhp/lending-ledger/pkg/response"
)

const (
	checkOK       = "ok"
	checkFailed   = "failed"
	checkDisabled = "disabled"
)

// dependency is something the ledger cannot serve requests without. A nil
// ping marks an optional dependency that is switched off.
type dependency struct {
	name string
	ping func(ctx context.Context) error
}

type HealthHandler struct {
	deps    []dependency
	timeout time.Duration
	started time.Time
}

// NewHealthHandler checks the database and, when configured, the loan cache.
func NewHealthHandler(db *sqlx.DB, redisClient *redis.Client, timeout time.Duration) *HealthHandler {
	cache := dependency{name: "redis"}
	if redisClient != nil {
		cache.ping = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	return &HealthHandler{
		deps:    []dependency{{name: "database", ping: db.PingContext}, cache},
		timeout: timeout,
		started: time.Now(),
	}
}

type Liveness struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

type Readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.Success(w, Liveness{
		Status: "ok",
		Uptime: time.Since(h.started).Round(time.Second).String(),
	})
}

// Ready answers 503 with the failing dependencies named in the message when
// any of them does not answer within the timeout.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks, err := h.check(ctx)
	if err != nil {
		slog.Warn("readiness check failed", "error", err)
		response.Error(w, http.StatusServiceUnavailable, apperrors.ErrCodeUnavailable, unavailableMessage(checks), err)
		return
	}

	response.Success(w, Readiness{Status: "ok", Checks: checks})
}

func (h *HealthHandler) check(ctx context.Context) (map[string]string, error) {
	checks := make(map[string]string, len(h.deps))
	var errs []error

	for _, dep := range h.deps {
		if dep.ping == nil {
			checks[dep.name] = checkDisabled
			continue
		}
		if err := dep.ping(ctx); err != nil {
			checks[dep.name] = checkFailed
			errs = append(errs, fmt.Errorf("%s: %w", dep.name, err))
			continue
		}
		checks[dep.name] = checkOK
	}

	return checks, errors.Join(errs...)
}

func unavailableMessage(checks map[string]string) string {
	var failed []string
	for name, state := range checks {
		if state == checkFailed {
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)
	return "Unavailable: " + strings.Join(failed, ", ")
}
