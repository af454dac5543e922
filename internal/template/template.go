package template

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no template is stored under a name
	ErrNotFound = errors.New("template not found")
	// ErrExists is returned when creating a template under a taken name
	ErrExists = errors.New("template already exists")
)

// Template is an HTML email layout with {{ Name }} placeholders.
// Name is the lower-case template type it serves.
type Template struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	HTML         string    `json:"html"`
	Placeholders []string  `json:"placeholders,omitempty"`
	Version      int       `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store loads templates by name
type Store interface {
	// Load returns ErrNotFound when no template has the given name
	Load(ctx context.Context, name string) (*Template, error)
}

// ListFilter contains filters for listing templates
type ListFilter struct {
	Limit  int
	Offset int
	Search string
}

// Stats contains template statistics
type Stats struct {
	Total int64 `json:"total"`
}
