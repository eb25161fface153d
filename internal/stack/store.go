// Package stack stores the supplements and medications each user takes.
package stack

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ppiankov/stackguard/internal/model"
)

// ErrItemNotFound is returned when removing an item the user does not have
var ErrItemNotFound = errors.New("stack item not found")

// ErrDuplicateItem is returned when adding an id the user already has
var ErrDuplicateItem = errors.New("stack item already exists")

// DefaultUser owns items added without a user id
const DefaultUser = "anonymous"

// Store reads and edits users' stacks
type Store interface {
	// CurrentStack returns the user's items in insertion order
	CurrentStack(ctx context.Context, userID string) ([]model.StackItem, error)
	Add(ctx context.Context, userID string, item model.StackItem) (model.StackItem, error)
	Remove(ctx context.Context, userID, itemID string) error
	Close() error
}

// prepare fills in a missing id and kind and validates the item
func prepare(item model.StackItem) (model.StackItem, error) {
	item.Name = strings.TrimSpace(item.Name)
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Kind == "" {
		item.Kind = model.KindSupplement
	}
	if err := item.Validate(); err != nil {
		return model.StackItem{}, fmt.Errorf("invalid stack item: %w", err)
	}
	return item, nil
}

func userKey(userID string) string {
	if strings.TrimSpace(userID) == "" {
		return DefaultUser
	}
	return userID
}
