package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/elfernagomez/doya-management/internal/domain"
	"github.com/elfernagomez/doya-management/pkg/httpclient"
)

const productKeyPrefix = "product:"

// CreateProductInput holds the fields for creating a product on the platform
// from the editor's new-product flow.
type CreateProductInput struct {
	Name        string   `json:"name" validate:"required"`
	ProductCode string   `json:"product_code" validate:"required"`
	SKU         string   `json:"sku"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Depth       *float64 `json:"depth,omitempty"`
	Width       *float64 `json:"width,omitempty"`
	Height      *float64 `json:"height,omitempty"`
	Finish      string   `json:"finish,omitempty"`
}

// ProductClient talks to the platform's product catalog, with a Redis
// read-through cache in front of lookups.
type ProductClient struct {
	httpClient HTTPDoer
	baseURL    string
	cache      *redis.Client
	cacheTTL   time.Duration
	logger     *slog.Logger
}

// NewProductClient creates a client for the platform product service.
func NewProductClient(httpClient HTTPDoer, baseURL string, cache *redis.Client, cacheTTL time.Duration, logger *slog.Logger) *ProductClient {
	return &ProductClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		cache:      cache,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

// GetProduct resolves a product's descriptive fields. Lookups go through the
// cache unless force is set, which re-fetches from the platform and refreshes
// the cached entry.
func (c *ProductClient) GetProduct(ctx context.Context, productID string, force bool) (*domain.ProductDetails, error) {
	key := productKeyPrefix + productID

	if !force && c.cache != nil {
		data, err := c.cache.Get(ctx, key).Bytes()
		if err == nil {
			var cached domain.ProductDetails
			if json.Unmarshal(data, &cached) == nil {
				return &cached, nil
			}
		} else if err != redis.Nil {
			c.logger.WarnContext(ctx, "product cache read failed",
				slog.String("product_id", productID),
				slog.String("error", err.Error()),
			)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/products/"+productID, nil)
	if err != nil {
		return nil, fmt.Errorf("create get product request: %w", err)
	}

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call product service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "product")
	}

	var envelope struct {
		Data domain.ProductDetails `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode product response: %w", err)
	}

	c.cacheProduct(ctx, &envelope.Data)

	return &envelope.Data, nil
}

// CreateProduct creates a product on the platform and returns it ready for
// selection into a line.
func (c *ProductClient) CreateProduct(ctx context.Context, input *CreateProductInput) (*domain.ProductDetails, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal create product request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/products", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create product request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call product service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, httpclient.ParseResponseError(resp, "product")
	}

	var envelope struct {
		Data domain.ProductDetails `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode create product response: %w", err)
	}

	c.cacheProduct(ctx, &envelope.Data)

	return &envelope.Data, nil
}

// cacheProduct writes a product to the cache; failures are logged, not fatal.
func (c *ProductClient) cacheProduct(ctx context.Context, p *domain.ProductDetails) {
	if c.cache == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, productKeyPrefix+p.ID, data, c.cacheTTL).Err(); err != nil {
		c.logger.WarnContext(ctx, "product cache write failed",
			slog.String("product_id", p.ID),
			slog.String("error", err.Error()),
		)
	}
}
