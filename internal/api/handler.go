// Package api exposes read-mostly HTTP endpoints over the coordination
// primitives: lock and reference introspection, job status reporting and a
// blocking wait on a set of jobs.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kneutral-org/kvcoord/internal/jobstatus"
	"github.com/kneutral-org/kvcoord/internal/jobwaiter"
	"github.com/kneutral-org/kvcoord/internal/kvstore"
	"github.com/kneutral-org/kvcoord/internal/lock"
	"github.com/kneutral-org/kvcoord/internal/logging"
	"github.com/kneutral-org/kvcoord/internal/refcount"
)

// JobChecker is what the wait endpoint needs from a job status source.
// Both jobstatus.Tracker and jobstatus.PostgresChecker satisfy it.
type JobChecker interface {
	jobwaiter.StatusChecker
	NumRunning(ctx context.Context, ids []string) (int, error)
}

// Handler serves the /api/v1 routes.
type Handler struct {
	store        kvstore.Store
	tracker      *jobstatus.Tracker
	checker      JobChecker
	waitTimeout  time.Duration
	referenceTTL time.Duration
	logger       zerolog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithJobChecker answers the wait endpoint from checker instead of the
// Redis-backed tracker.
func WithJobChecker(checker JobChecker) Option {
	return func(h *Handler) {
		h.checker = checker
	}
}

// WithWaitTimeout caps how long the wait endpoint blocks.
func WithWaitTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.waitTimeout = d
	}
}

// WithReferenceTTL sets the expiry of reference counters touched through the API.
func WithReferenceTTL(d time.Duration) Option {
	return func(h *Handler) {
		h.referenceTTL = d
	}
}

// NewHandler creates a handler on top of store.
func NewHandler(store kvstore.Store, logger zerolog.Logger, opts ...Option) *Handler {
	h := &Handler{
		store:        store,
		tracker:      jobstatus.NewTracker(store),
		waitTimeout:  jobwaiter.DefaultTimeout,
		referenceTTL: refcount.DefaultExpiry,
		logger:       logging.ComponentLogger(logger, "api"),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.checker == nil {
		h.checker = h.tracker
	}
	return h
}

// RegisterRoutes registers all API routes on the provided router group.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/locks/:key", h.GetLock)

	refs := router.Group("/references/:resource")
	refs.GET("", h.GetReference)
	refs.POST("/increase", h.IncreaseReference)
	refs.POST("/decrease", h.DecreaseReference)

	jobs := router.Group("/jobs")
	jobs.PUT("/:id", h.MarkJobRunning)
	jobs.DELETE("/:id", h.MarkJobCompleted)
	jobs.POST("/wait", h.WaitJobs)
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// LockResponse describes the state of both lock kinds stored under a key.
type LockResponse struct {
	Key        string `json:"key"`
	Locked     bool   `json:"locked"`
	LeaseHeld  bool   `json:"leaseHeld"`
	LeaseTTLMs int64  `json:"leaseTtlMs"`
}

// GetLock reports whether the expiring lock and the exclusive lease on key
// are currently held.
func (h *Handler) GetLock(c *gin.Context) {
	ctx := c.Request.Context()
	key := c.Param("key")

	locked, err := lock.NewExpiringLock(h.store, key, 0).Locked(ctx)
	if err != nil {
		h.storeError(c, err, "failed to read lock")
		return
	}

	lease := lock.NewExclusiveLease(h.store, key, 0)
	held, err := lease.Exists(ctx)
	if err != nil {
		h.storeError(c, err, "failed to read lease")
		return
	}

	resp := LockResponse{Key: key, Locked: locked, LeaseHeld: held}
	if held {
		ttl, err := lease.TTL(ctx)
		if err != nil {
			h.storeError(c, err, "failed to read lease ttl")
			return
		}
		if ttl > 0 {
			resp.LeaseTTLMs = ttl.Milliseconds()
		}
	}

	c.JSON(http.StatusOK, resp)
}

// ReferenceResponse carries a reference counter value.
type ReferenceResponse struct {
	Resource string `json:"resource"`
	Value    int64  `json:"value"`
}

func (h *Handler) counter(c *gin.Context) *refcount.ReferenceCounter {
	return refcount.NewReferenceCounter(h.store, c.Param("resource"),
		refcount.WithExpiry(h.referenceTTL),
		refcount.WithLogger(h.requestLogger(c)),
	)
}

// GetReference returns the current reference count of a resource.
func (h *Handler) GetReference(c *gin.Context) {
	h.respondReference(c, h.counter(c))
}

// IncreaseReference adds a reference and returns the new count.
func (h *Handler) IncreaseReference(c *gin.Context) {
	counter := h.counter(c)
	if err := counter.Increase(c.Request.Context()); err != nil {
		h.storeError(c, err, "failed to increase reference counter")
		return
	}
	h.respondReference(c, counter)
}

// DecreaseReference drops a reference and returns the new count.
func (h *Handler) DecreaseReference(c *gin.Context) {
	counter := h.counter(c)
	if err := counter.Decrease(c.Request.Context()); err != nil {
		h.storeError(c, err, "failed to decrease reference counter")
		return
	}
	h.respondReference(c, counter)
}

func (h *Handler) respondReference(c *gin.Context, counter *refcount.ReferenceCounter) {
	value, err := counter.Value(c.Request.Context())
	if err != nil {
		h.storeError(c, err, "failed to read reference counter")
		return
	}

	c.JSON(http.StatusOK, ReferenceResponse{Resource: counter.Resource(), Value: value})
}

// MarkJobRequest is the optional body of MarkJobRunning.
type MarkJobRequest struct {
	TTLSeconds int64 `json:"ttlSeconds"`
}

// MarkJobRunning records a job as running in the tracker.
func (h *Handler) MarkJobRunning(c *gin.Context) {
	var req MarkJobRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req, h.requestLogger(c)) {
		return
	}

	id := c.Param("id")
	ttl := time.Duration(req.TTLSeconds) * time.Second
	if err := h.tracker.Set(c.Request.Context(), id, ttl); err != nil {
		h.storeError(c, err, "failed to mark job running")
		return
	}

	c.Status(http.StatusNoContent)
}

// MarkJobCompleted removes a job from the tracker.
func (h *Handler) MarkJobCompleted(c *gin.Context) {
	if err := h.tracker.Unset(c.Request.Context(), c.Param("id")); err != nil {
		h.storeError(c, err, "failed to mark job completed")
		return
	}

	c.Status(http.StatusNoContent)
}

// WaitRequest lists the jobs to wait for.
type WaitRequest struct {
	JobIDs    []string `json:"jobIds" binding:"required,min=1"`
	TimeoutMs int64    `json:"timeoutMs"`
}

// WaitResponse reports job state once the wait is over.
type WaitResponse struct {
	Completed bool `json:"completed"`
	Running   int  `json:"running"`
}

// WaitJobs blocks until the listed jobs complete or the timeout elapses.
// The requested timeout is capped at the configured one.
func (h *Handler) WaitJobs(c *gin.Context) {
	var req WaitRequest
	if !bindJSON(c, &req, h.requestLogger(c)) {
		return
	}

	timeout := h.waitTimeout
	if requested := time.Duration(req.TimeoutMs) * time.Millisecond; requested > 0 && requested < timeout {
		timeout = requested
	}

	ctx := c.Request.Context()
	jobwaiter.New(h.checker, req.JobIDs, jobwaiter.WithLogger(h.requestLogger(c))).Wait(ctx, timeout)

	running, err := h.checker.NumRunning(ctx, req.JobIDs)
	if err != nil {
		h.storeError(c, err, "failed to read job status")
		return
	}

	c.JSON(http.StatusOK, WaitResponse{Completed: running == 0, Running: running})
}

// requestLogger prefers the request-scoped logger set by
// logging.RequestLogger, tagged with this component.
func (h *Handler) requestLogger(c *gin.Context) zerolog.Logger {
	if logger, ok := logging.LoggerFromContext(c.Request.Context()); ok {
		return logging.ComponentLogger(logger, "api")
	}
	return h.logger
}

func (h *Handler) storeError(c *gin.Context, err error, msg string) {
	logger := h.requestLogger(c)
	logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg(msg)

	status := http.StatusInternalServerError
	if errors.Is(err, kvstore.ErrUnavailable) {
		status = http.StatusServiceUnavailable
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:   "store_error",
		Message: msg,
	})
}
