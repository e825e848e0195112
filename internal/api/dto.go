package api

import "taskorch/internal/domain"

// createTaskRequest is the POST /api/tasks body of spec.md §6.
type createTaskRequest struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	DurationMS   int      `json:"duration_ms"`
	Dependencies []string `json:"dependencies"`
}

// taskResponse mirrors the full Task record for GET responses.
type taskResponse struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	DurationMS   int      `json:"duration_ms"`
	Dependencies []string `json:"dependencies"`
	Status       string   `json:"status"`
	CreatedAt    string   `json:"created_at"`
	StartedAt    *string  `json:"started_at"`
	CompletedAt  *string  `json:"completed_at"`
	Error        *string  `json:"error"`
	RetryCount   int      `json:"retry_count"`
	Version      int      `json:"version"`
}

func toTaskResponse(t *domain.Task) taskResponse {
	deps := t.Dependencies
	if deps == nil {
		deps = []string{}
	}
	resp := taskResponse{
		ID:           t.ID,
		Type:         t.Type,
		DurationMS:   t.DurationMS,
		Dependencies: deps,
		Status:       string(t.Status),
		CreatedAt:    t.CreatedAt.Format(timeFormat),
		Error:        t.Error,
		RetryCount:   t.RetryCount,
		Version:      t.Version,
	}
	if t.StartedAt != nil {
		v := t.StartedAt.Format(timeFormat)
		resp.StartedAt = &v
	}
	if t.CompletedAt != nil {
		v := t.CompletedAt.Format(timeFormat)
		resp.CompletedAt = &v
	}
	return resp
}

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

type submitResponse struct {
	Message string       `json:"message"`
	Task    taskResponse `json:"task"`
}

type listTasksResponse struct {
	Total int            `json:"total"`
	Tasks []taskResponse `json:"tasks"`
}

type statsResponse struct {
	Waiting            int      `json:"waiting"`
	Queued             int      `json:"queued"`
	Running            int      `json:"running"`
	Completed          int      `json:"completed"`
	Failed             int      `json:"failed"`
	MaxConcurrentTasks int      `json:"max_concurrent_tasks"`
	CurrentlyRunning   []string `json:"currently_running"`
	SlotsAvailable     int      `json:"slots_available"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}
