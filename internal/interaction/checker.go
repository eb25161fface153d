package interaction

import (
	"context"
	"errors"

	"github.com/ppiankov/stackguard/internal/model"
)

// ErrRateLimited is returned by a checker whose backing service refused the
// call for rate reasons. The engine stops the scan on it.
var ErrRateLimited = errors.New("interaction check rate limited")

// CheckResult is the answer for a single pair
type CheckResult struct {
	Interactions     []model.InteractionFinding
	NutrientWarnings []model.NutrientWarning
}

// Checker evaluates one unordered pair of stack items
type Checker interface {
	Check(ctx context.Context, a, b model.StackItem, userID string) (*CheckResult, error)
}

// CheckerFunc adapts a function to the Checker interface
type CheckerFunc func(ctx context.Context, a, b model.StackItem, userID string) (*CheckResult, error)

// Check calls f
func (f CheckerFunc) Check(ctx context.Context, a, b model.StackItem, userID string) (*CheckResult, error) {
	return f(ctx, a, b, userID)
}
