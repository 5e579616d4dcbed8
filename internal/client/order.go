package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/elfernagomez/doya-management/internal/domain"
	apperrors "github.com/elfernagomez/doya-management/pkg/errors"
	"github.com/elfernagomez/doya-management/pkg/httpclient"
)

// OrderHeader is the order summary fetched when a draft is opened.
type OrderHeader struct {
	ID          string          `json:"id"`
	OrderNumber string          `json:"order_number"`
	AccountID   string          `json:"account_id"`
	AccountName string          `json:"account_name"`
	Discounts   decimal.Decimal `json:"discounts"`
}

// PersistResult reports what the platform wrote on a batch save.
type PersistResult struct {
	Items        []domain.LineItem `json:"items"`
	UpsertedIDs  []string          `json:"upserted_ids"`
	DeletedCount int               `json:"deleted_count"`
}

// orderItemRecord is the platform's wire shape for one order line.
type orderItemRecord struct {
	ID            string          `json:"id"`
	ProductID     string          `json:"product_id"`
	Name          string          `json:"name"`
	ProductCode   string          `json:"product_code"`
	ProductSKU    string          `json:"product_sku"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Finish        string          `json:"finish"`
	IsActive      bool            `json:"is_active"`
	Qty           int             `json:"qty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	HandlingPrice decimal.Decimal `json:"handling_price"`
	Depth         *float64        `json:"depth,omitempty"`
	Width         *float64        `json:"width,omitempty"`
	Height        *float64        `json:"height,omitempty"`
	DeliveryType  string          `json:"delivery_type,omitempty"`
}

// OrderClient talks to the platform's order service.
type OrderClient struct {
	httpClient     HTTPDoer
	baseURL        string
	fetchTimeout   time.Duration
	persistTimeout time.Duration
	logger         *slog.Logger
}

// NewOrderClient creates a client for the platform order service. Reads are
// bounded by fetchTimeout and the batch save by persistTimeout; a
// non-positive timeout leaves the caller's deadline in charge.
func NewOrderClient(httpClient HTTPDoer, baseURL string, fetchTimeout, persistTimeout time.Duration, logger *slog.Logger) *OrderClient {
	return &OrderClient{
		httpClient:     httpClient,
		baseURL:        baseURL,
		fetchTimeout:   fetchTimeout,
		persistTimeout: persistTimeout,
		logger:         logger,
	}
}

// callContext narrows the request context with a per-call deadline when one
// is configured.
func callContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// GetOrder fetches the order header used for the draft's title and account.
func (c *OrderClient) GetOrder(ctx context.Context, orderID string) (*OrderHeader, error) {
	ctx, cancel := callContext(ctx, c.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/orders/"+orderID, nil)
	if err != nil {
		return nil, fmt.Errorf("create get order request: %w", err)
	}

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call order service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "order")
	}

	var envelope struct {
		Data OrderHeader `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}

	return &envelope.Data, nil
}

// GetOrderItems fetches the order's persisted product lines in platform order.
func (c *OrderClient) GetOrderItems(ctx context.Context, orderID string) ([]domain.LineItem, error) {
	ctx, cancel := callContext(ctx, c.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/orders/"+orderID+"/items", nil)
	if err != nil {
		return nil, fmt.Errorf("create get order items request: %w", err)
	}

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call order service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "order")
	}

	var envelope struct {
		Data []orderItemRecord `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode order items response: %w", err)
	}

	items := make([]domain.LineItem, len(envelope.Data))
	for i, rec := range envelope.Data {
		items[i] = lineItemFromRecord(rec)
	}

	return items, nil
}

// PersistItems writes the draft's changes back to the platform in one batch:
// upserts for every surviving line and deletes for the confirmed removals.
func (c *OrderClient) PersistItems(ctx context.Context, orderID string, upserts []domain.LineItem, deleteIDs []string) (*PersistResult, error) {
	ctx, cancel := callContext(ctx, c.persistTimeout)
	defer cancel()

	type batchRequest struct {
		ItemsToUpsert   []orderItemRecord `json:"items_to_upsert"`
		ItemIDsToDelete []string          `json:"item_ids_to_delete"`
	}

	req := batchRequest{
		ItemsToUpsert:   make([]orderItemRecord, len(upserts)),
		ItemIDsToDelete: deleteIDs,
	}
	if req.ItemIDsToDelete == nil {
		req.ItemIDsToDelete = []string{}
	}
	for i, li := range upserts {
		req.ItemsToUpsert[i] = recordFromLineItem(li)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal batch request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/orders/"+orderID+"/items/batch", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create batch request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("call order service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// The platform's own message survives the mapping so the save-failure
		// notice can show it verbatim.
		platformErr := httpclient.ParseResponseError(resp, "order")
		message := platformErr.Error()
		var appErr *apperrors.AppError
		if errors.As(platformErr, &appErr) {
			message = appErr.Message
		}
		return nil, apperrors.SaveFailed(message, platformErr)
	}

	var envelope struct {
		Data struct {
			Items        []orderItemRecord `json:"items"`
			DeletedCount int               `json:"deleted_count"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode batch response: %w", err)
	}

	result := &PersistResult{
		Items:        make([]domain.LineItem, len(envelope.Data.Items)),
		UpsertedIDs:  make([]string, len(envelope.Data.Items)),
		DeletedCount: envelope.Data.DeletedCount,
	}
	for i, rec := range envelope.Data.Items {
		result.Items[i] = lineItemFromRecord(rec)
		result.UpsertedIDs[i] = rec.ID
	}

	c.logger.InfoContext(ctx, "order items persisted",
		slog.String("order_id", orderID),
		slog.Int("upserted", len(result.Items)),
		slog.Int("deleted", result.DeletedCount),
	)

	return result, nil
}

// lineItemFromRecord maps a platform record to a draft line. Editing state
// starts clean and the derived total is recomputed rather than trusted.
func lineItemFromRecord(rec orderItemRecord) domain.LineItem {
	li := domain.LineItem{
		UniqueID:      rec.ID,
		ProductID:     rec.ProductID,
		Name:          rec.Name,
		ProductCode:   rec.ProductCode,
		ProductSKU:    rec.ProductSKU,
		Description:   rec.Description,
		Category:      rec.Category,
		Finish:        rec.Finish,
		IsActive:      rec.IsActive,
		Qty:           rec.Qty,
		UnitPrice:     rec.UnitPrice,
		HandlingPrice: rec.HandlingPrice,
		Depth:         rec.Depth,
		Width:         rec.Width,
		Height:        rec.Height,
		DeliveryType:  rec.DeliveryType,
		IsValid:       true,
	}
	li.Recalculate()
	return li
}

// recordFromLineItem maps a draft line to the platform's wire shape. New lines
// are sent without an id so the platform assigns one.
func recordFromLineItem(li domain.LineItem) orderItemRecord {
	rec := orderItemRecord{
		ProductID:     li.ProductID,
		Name:          li.Name,
		ProductCode:   li.ProductCode,
		ProductSKU:    li.ProductSKU,
		Description:   li.Description,
		Category:      li.Category,
		Finish:        li.Finish,
		IsActive:      li.IsActive,
		Qty:           li.Qty,
		UnitPrice:     li.UnitPrice,
		HandlingPrice: li.HandlingPrice,
		Depth:         li.Depth,
		Width:         li.Width,
		Height:        li.Height,
		DeliveryType:  li.DeliveryType,
	}
	if !li.IsNew() {
		rec.ID = li.UniqueID
	}
	return rec
}
