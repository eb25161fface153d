package lookup

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/stackguard/internal/model"
	"github.com/ppiankov/stackguard/internal/resilience"
	"github.com/ppiankov/stackguard/internal/util"
)

const defaultOpenFoodFactsURL = "https://world.openfoodfacts.org"

// labels that count as independent testing
var thirdPartyLabels = []string{"third-party-tested", "usp-verified", "nsf-certified", "informed-sport", "informed-choice", "bscg-certified"}

// OpenFoodFacts looks products up in an Open Food Facts compatible API
type OpenFoodFacts struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewOpenFoodFacts creates a client. An empty baseURL uses the public API.
func NewOpenFoodFacts(baseURL, userAgent string, timeout time.Duration) *OpenFoodFacts {
	if baseURL == "" {
		baseURL = defaultOpenFoodFactsURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OpenFoodFacts{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
	}
}

type offResponse struct {
	Status  int        `json:"status"`
	Code    string     `json:"code"`
	Product offProduct `json:"product"`
}

type offProduct struct {
	ProductName string          `json:"product_name"`
	Brands      string          `json:"brands"`
	Ingredients []offIngredient `json:"ingredients"`
	LabelsTags  []string        `json:"labels_tags"`
	StatesTags  []string        `json:"states_tags"`
}

type offIngredient struct {
	Text     string  `json:"text"`
	Quantity float64 `json:"quantity_g,omitempty"`
}

// Lookup implements Lookup
func (o *OpenFoodFacts) Lookup(ctx context.Context, barcode string) (model.Product, error) {
	code := NormalizeBarcode(barcode)
	if code == "" {
		return model.Product{}, ErrNotFound
	}

	var resp offResponse
	err := util.DoJSON(ctx, o.httpClient, util.JSONRequest{
		Provider: "openfoodfacts",
		Method:   http.MethodGet,
		URL:      fmt.Sprintf("%s/api/v2/product/%s.json", o.baseURL, url.PathEscape(code)),
		Header:   http.Header{"User-Agent": []string{o.userAgent}},
	}, &resp)
	if err != nil {
		var perr *resilience.ProviderError
		if errors.As(err, &perr) && perr.StatusCode == http.StatusNotFound {
			return model.Product{}, ErrNotFound
		}
		return model.Product{}, fmt.Errorf("lookup %s: %w", code, err)
	}

	if resp.Status != 1 || strings.TrimSpace(resp.Product.ProductName) == "" {
		return model.Product{}, ErrNotFound
	}

	return toProduct(code, resp.Product), nil
}

func toProduct(code string, p offProduct) model.Product {
	product := model.Product{
		ID:          code,
		Name:        strings.TrimSpace(p.ProductName),
		Brand:       firstBrand(p.Brands),
		Ingredients: make([]model.Ingredient, 0, len(p.Ingredients)),
	}

	for _, ing := range p.Ingredients {
		name := strings.TrimSpace(strings.Trim(ing.Text, "_*"))
		if name == "" {
			continue
		}
		i := model.Ingredient{Name: name}
		if ing.Quantity > 0 {
			i.Amount = ing.Quantity * 1000
			i.Unit = "mg"
		}
		product.Ingredients = append(product.Ingredients, i)
	}

	for _, tag := range p.LabelsTags {
		label := strings.TrimPrefix(tag, "en:")
		for _, tp := range thirdPartyLabels {
			if label == tp {
				product.ThirdPartyTested = true
			}
		}
		product.Certifications = append(product.Certifications, label)
	}

	for _, state := range p.StatesTags {
		if state == "en:complete" || state == "en:checked" {
			product.Verified = true
		}
	}

	return product
}

func firstBrand(brands string) string {
	first, _, _ := strings.Cut(brands, ",")
	return strings.TrimSpace(first)
}
