package interaction

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ppiankov/stackguard/internal/model"
	"github.com/ppiankov/stackguard/internal/resilience"
	"github.com/ppiankov/stackguard/internal/util"
)

// HTTPChecker delegates pairwise checks to a remote interaction service
type HTTPChecker struct {
	endpoint string
	client   *http.Client
}

type checkRequest struct {
	ItemA  model.StackItem `json:"item_a"`
	ItemB  model.StackItem `json:"item_b"`
	UserID string          `json:"user_id,omitempty"`
}

type checkResponse struct {
	Interactions     []model.InteractionFinding `json:"interactions"`
	NutrientWarnings []model.NutrientWarning    `json:"nutrient_warnings"`
	RiskLevel        model.Severity             `json:"risk_level"`
}

// NewHTTPChecker creates a checker posting to endpoint. A nil client gets a
// default one with timeout.
func NewHTTPChecker(endpoint string, client *http.Client, timeout time.Duration) *HTTPChecker {
	if client == nil {
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPChecker{endpoint: endpoint, client: client}
}

// Check posts the pair and decodes the findings
func (c *HTTPChecker) Check(ctx context.Context, a, b model.StackItem, userID string) (*CheckResult, error) {
	var resp checkResponse
	err := util.DoJSON(ctx, c.client, util.JSONRequest{
		Provider: "interaction",
		Method:   http.MethodPost,
		URL:      c.endpoint,
		Body:     checkRequest{ItemA: a, ItemB: b, UserID: userID},
	}, &resp)
	if err != nil {
		var perr *resilience.ProviderError
		if errors.As(err, &perr) && perr.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return nil, err
	}

	return &CheckResult{
		Interactions:     resp.Interactions,
		NutrientWarnings: resp.NutrientWarnings,
	}, nil
}
