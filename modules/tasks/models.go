package tasks

import (
	"time"

	"github.com/google/uuid"

	"github.com/taskhub/taskhub/server"
)

// Task priorities. The column carries these literal values.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// CategoryRef is the category slice embedded in task payloads. Because these
// fields are cached inside task entries, every category write invalidates the
// task cache family as well.
type CategoryRef struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Color string    `json:"color,omitempty"`
}

// Task is one todo item. CategoryID and DueDate are optional; Category is
// populated from the joined category row when CategoryID is set.
type Task struct {
	ID          uuid.UUID    `json:"id"`
	UserID      uuid.UUID    `json:"user_id"`
	CategoryID  *uuid.UUID   `json:"category_id,omitempty"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Completed   bool         `json:"completed"`
	Priority    string       `json:"priority"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	Category    *CategoryRef `json:"category,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Filter narrows and orders a task listing. Zero values mean "not filtered";
// pagination and sorting fall back to defaults in normalize.
type Filter struct {
	Completed  *bool
	Priority   string
	CategoryID *uuid.UUID
	DueBefore  *time.Time
	DueAfter   *time.Time
	Search     string
	SortBy     string
	SortOrder  string
	Page       int
	PerPage    int
}

// Pagination describes the window a listing covers.
type Pagination struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// ListResult is one page of tasks. The whole page, pagination included, is
// what gets cached.
type ListResult struct {
	Items      []Task     `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// Stats aggregates one user's tasks. Overdue counts open tasks whose due date
// has passed.
type Stats struct {
	Total      int64            `json:"total"`
	Completed  int64            `json:"completed"`
	Pending    int64            `json:"pending"`
	Overdue    int64            `json:"overdue"`
	ByPriority map[string]int64 `json:"by_priority"`
}

// CreateInput carries the writable fields for a new task.
type CreateInput struct {
	Title       string
	Description string
	Priority    string
	DueDate     *time.Time
	CategoryID  *uuid.UUID
}

// ListRequest narrows the task listing. Sort fields are checked against the
// repository's allow-list rather than a validation tag.
type ListRequest struct {
	Completed  *bool      `query:"completed"`
	Priority   string     `query:"priority" validate:"omitempty,oneof=low medium high"`
	CategoryID string     `query:"category_id" validate:"omitempty,uuid"`
	DueBefore  *time.Time `query:"due_before"`
	DueAfter   *time.Time `query:"due_after"`
	Search     string     `query:"search" validate:"omitempty,max=200"`
	SortBy     string     `query:"sort_by"`
	SortOrder  string     `query:"sort_order"`
	Page       int        `query:"page" validate:"omitempty,min=1"`
	PerPage    int        `query:"per_page" validate:"omitempty,min=1,max=100"`
}

// GetRequest fetches one task by path ID.
type GetRequest struct {
	ID string `param:"id" validate:"required,uuid"`
}

// CreateRequest creates a task. Priority defaults to medium when omitted.
type CreateRequest struct {
	Title       string     `json:"title" validate:"required,min=1,max=200"`
	Description string     `json:"description" validate:"omitempty,max=2000"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate     *time.Time `json:"due_date"`
	CategoryID  *uuid.UUID `json:"category_id"`
}

// UpdateRequest changes task fields. Plain pointers distinguish absent from
// provided; CategoryID and DueDate additionally distinguish an explicit null,
// which clears the stored value.
type UpdateRequest struct {
	ID          string                     `param:"id" validate:"required,uuid"`
	Title       *string                    `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string                    `json:"description" validate:"omitempty,max=2000"`
	Completed   *bool                      `json:"completed"`
	Priority    *string                    `json:"priority" validate:"omitempty,oneof=low medium high"`
	CategoryID  server.Nullable[uuid.UUID] `json:"category_id"`
	DueDate     server.Nullable[time.Time] `json:"due_date"`
}

// DeleteRequest removes one task by path ID.
type DeleteRequest struct {
	ID string `param:"id" validate:"required,uuid"`
}

// StatsRequest carries no input; the user comes from the bearer token.
type StatsRequest struct{}
