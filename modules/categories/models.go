package categories

import (
	"time"

	"github.com/google/uuid"
)

// Category groups a user's tasks. Names are unique per user.
type Category struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListRequest carries no input; the user comes from the bearer token.
type ListRequest struct{}

// ListResponse is the category collection for one user.
type ListResponse struct {
	Items []Category `json:"items"`
}

// GetRequest fetches one category by path ID.
type GetRequest struct {
	ID string `param:"id" validate:"required,uuid"`
}

// CreateRequest creates a category. Color is an optional hex value like
// "#ff8800".
type CreateRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=100"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

// UpdateRequest changes category fields. Absent fields are left as-is.
type UpdateRequest struct {
	ID    string `param:"id" validate:"required,uuid"`
	Name  string `json:"name" validate:"omitempty,min=1,max=100"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

// DeleteRequest removes one category by path ID.
type DeleteRequest struct {
	ID string `param:"id" validate:"required,uuid"`
}
