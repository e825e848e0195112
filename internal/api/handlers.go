// Package api implements the HTTP transport of spec.md §6. This layer
// is explicitly out of the CORE (§1's "Deliberately out of scope") but
// its contract is still fully implemented, per SPEC_FULL.md's
// "supplemented features."
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taskorch/internal/apperr"
	"taskorch/internal/domain"
	"taskorch/internal/metrics"
	"taskorch/internal/ports"
	"taskorch/internal/scheduler"
	"taskorch/internal/store"
	"taskorch/internal/validator"
)

// Handlers holds the collaborators the five /api endpoints need
// (/metrics is served directly by the router). Grounded on teacher's handler.WorkflowHandler for
// the constructor-injection + gin.Context shape, generalized from one
// handler to the full table in §6.
type Handlers struct {
	store     store.Store
	validator *validator.Validator
	sched     *scheduler.Scheduler
	events    ports.EventPublisher
}

func NewHandlers(s store.Store, v *validator.Validator, sched *scheduler.Scheduler, ev ports.EventPublisher) *Handlers {
	return &Handlers{store: s, validator: v, sched: sched, events: ev}
}

// SubmitTask handles POST /api/tasks.
func (h *Handlers) SubmitTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	submitReq := validator.SubmitRequest{
		ID:           req.ID,
		Type:         req.Type,
		DurationMS:   req.DurationMS,
		Dependencies: req.Dependencies,
	}

	snapshot, err := h.validator.Validate(c.Request.Context(), submitReq)
	if err != nil {
		writeError(c, err)
		return
	}

	task := validator.Materialize(submitReq, snapshot)

	if err := h.store.Insert(c.Request.Context(), task); err != nil {
		writeError(c, err)
		return
	}
	metrics.TasksSubmitted.Inc()
	h.events.Publish(c.Request.Context(), domain.TaskEvent{
		Kind:      domain.EventSubmitted,
		TaskID:    task.ID,
		Type:      task.Type,
		Status:    string(task.Status),
		Timestamp: task.CreatedAt,
	})

	c.JSON(http.StatusCreated, submitResponse{
		Message: "task accepted",
		Task:    toTaskResponse(task),
	})
}

// GetTask handles GET /api/tasks/:id.
func (h *Handlers) GetTask(c *gin.Context) {
	id := c.Param("id")
	task, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(task))
}

// ListTasks handles GET /api/tasks?status=...
func (h *Handlers) ListTasks(c *gin.Context) {
	statusParam := c.Query("status")

	var (
		tasks []*domain.Task
		err   error
	)
	if statusParam == "" {
		tasks, err = h.store.ListAll(c.Request.Context())
	} else {
		tasks, err = h.store.ListByStatus(c.Request.Context(), domain.TaskStatus(statusParam))
	}
	if err != nil {
		writeError(c, err)
		return
	}

	resp := listTasksResponse{Total: len(tasks), Tasks: make([]taskResponse, 0, len(tasks))}
	for _, t := range tasks {
		resp.Tasks = append(resp.Tasks, toTaskResponse(t))
	}
	c.JSON(http.StatusOK, resp)
}

// Stats handles GET /api/stats.
func (h *Handlers) Stats(c *gin.Context) {
	counts, err := h.store.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	rt := h.sched.RuntimeStats()

	c.JSON(http.StatusOK, statsResponse{
		Waiting:            counts[domain.StatusWaiting],
		Queued:             counts[domain.StatusQueued],
		Running:            counts[domain.StatusRunning],
		Completed:          counts[domain.StatusCompleted],
		Failed:             counts[domain.StatusFailed],
		MaxConcurrentTasks: rt.MaxConcurrentTasks,
		CurrentlyRunning:   rt.CurrentlyRunning,
		SlotsAvailable:     rt.SlotsAvailable,
	})
}

// Health handles GET /api/health.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().Format(timeFormat),
	})
}

func writeError(c *gin.Context, err error) {
	switch {
	case apperr.Is(err, apperr.ErrValidation):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case apperr.Is(err, apperr.ErrConflict):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	case apperr.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case apperr.Is(err, apperr.ErrStoreFatal):
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "store unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}
