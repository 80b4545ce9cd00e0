package scenario

import (
	"context"
	"errors"
)

// ErrNotFound indicates a scenario was not found.
var ErrNotFound = errors.New("scenario not found")

// Repository is the port for loading scenario definitions.
type Repository interface {
	// LoadAll loads every scenario below the configured root, in file order.
	LoadAll(ctx context.Context) ([]*Scenario, error)

	// LoadByID loads a single scenario by its unique ID.
	// Returns ErrNotFound if no scenario with the given ID exists.
	LoadByID(ctx context.Context, id string) (*Scenario, error)
}
