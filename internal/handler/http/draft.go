package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/elfernagomez/doya-management/internal/client"
	"github.com/elfernagomez/doya-management/internal/domain"
	"github.com/elfernagomez/doya-management/internal/service"
	"github.com/elfernagomez/doya-management/internal/ws"
	"github.com/elfernagomez/doya-management/pkg/httputil"
	"github.com/elfernagomez/doya-management/pkg/validator"
)

// DraftHandler handles HTTP requests for order draft endpoints.
type DraftHandler struct {
	service *service.DraftService
	hub     *ws.Hub
	logger  *slog.Logger
}

// NewDraftHandler creates a new draft HTTP handler.
func NewDraftHandler(svc *service.DraftService, hub *ws.Hub, logger *slog.Logger) *DraftHandler {
	return &DraftHandler{
		service: svc,
		hub:     hub,
		logger:  logger,
	}
}

// --- Request DTOs ---

// AddItemsRequest is the JSON request body for adding lines to the draft. A
// nil count means the field was omitted and one line is added; an explicit
// zero adds none.
type AddItemsRequest struct {
	Count *int `json:"count" validate:"omitempty,gte=0,lte=50"`
}

// SetDeletionRequest resolves a pending line deletion.
type SetDeletionRequest struct {
	Confirmed bool `json:"confirmed"`
}

// SelectProductRequest is the JSON request body for selecting a product into
// a line. An empty product_id clears the line's product reference.
type SelectProductRequest struct {
	ProductID string `json:"product_id"`
	Force     bool   `json:"force"`
}

// CreateProductRequest is the JSON request body for the new-product flow.
type CreateProductRequest struct {
	Name        string   `json:"name" validate:"required,min=1,max=500"`
	ProductCode string   `json:"product_code" validate:"required,min=1,max=100"`
	SKU         string   `json:"sku" validate:"max=100"`
	Description string   `json:"description" validate:"max=2000"`
	Category    string   `json:"category" validate:"max=200"`
	Depth       *float64 `json:"depth"`
	Width       *float64 `json:"width"`
	Height      *float64 `json:"height"`
	Finish      string   `json:"finish" validate:"max=200"`
}

// --- Handlers ---

// Open handles POST /api/v1/orders/{orderId}/draft
func (h *DraftHandler) Open(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	snap, err := h.service.Open(r.Context(), orderID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.hub.BroadcastJSON(orderID, ws.EventDraftSnapshot, snap)
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: snap})
}

// Get handles GET /api/v1/orders/{orderId}/draft
func (h *DraftHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Get(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: snap})
}

// Discard handles DELETE /api/v1/orders/{orderId}/draft
func (h *DraftHandler) Discard(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	userID, _ := userIDFromContext(r.Context())

	if err := h.service.Discard(r.Context(), orderID, userID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.hub.BroadcastJSON(orderID, ws.EventDraftDiscarded, map[string]string{"order_id": orderID})
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "discarded"}})
}

// AddItems handles POST /api/v1/orders/{orderId}/draft/items
func (h *DraftHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	req := AddItemsRequest{}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
			})
			return
		}
		if err := validator.Validate(req); err != nil {
			httputil.WriteValidationError(w, err)
			return
		}
	}
	// An omitted count adds a single line; an explicit zero adds none.
	count := 1
	if req.Count != nil {
		count = *req.Count
	}

	snap, err := h.service.AddItems(r.Context(), orderID, count)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.hub.BroadcastJSON(orderID, ws.EventDraftSnapshot, snap)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: snap})
}

// EditItem handles PATCH /api/v1/orders/{orderId}/draft/items/{index}
func (h *DraftHandler) EditItem(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	index, ok := h.itemIndex(w, r)
	if !ok {
		return
	}

	var edits domain.FieldEdits
	if err := json.NewDecoder(r.Body).Decode(&edits); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	snap, err := h.service.EditItem(r.Context(), orderID, index, edits)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.hub.BroadcastJSON(orderID, ws.EventDraftSnapshot, snap)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: snap})
}

// DeleteItem handles DELETE /api/v1/orders/{orderId}/draft/items/{index}
func (h *DraftHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	index, ok := h.itemIndex(w, r)
	if !ok {
		return
	}

	snap, err := h.service.DeleteItem(r.Context(), orderID, index)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.hub.BroadcastJSON(orderID, ws.EventDraftSnapshot, snap)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: snap})
}

// SetDeletion handles PUT /api/v1/orders/{orderId}/draft/items/{index}/deletion
func (h *DraftHandler) SetDeletion(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	index, ok := h.itemIndex(w, r)
	if !ok {
		return
	}

	var req SetDeletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	var snap *domain.Snapshot
	var err error
	if req.Confirmed {
		snap, err = h.service.ConfirmDelete(r.Context(), orderID, index)
	} else {
		snap, err = h.service.CancelDelete(r.Context(), orderID, index)
	}
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.hub.BroadcastJSON(orderID, ws.EventDraftSnapshot, snap)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: snap})
}

// SelectProduct handles PUT /api/v1/orders/{orderId}/draft/items/{index}/product
func (h *DraftHandler) SelectProduct(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	index, ok := h.itemIndex(w, r)
	if !ok {
		return
	}

	var req SelectProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	snap, err := h.service.SelectProduct(r.Context(), orderID, index, req.ProductID, req.Force)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.hub.BroadcastJSON(orderID, ws.EventDraftSnapshot, snap)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: snap})
}

// CreateProduct handles POST /api/v1/orders/{orderId}/draft/items/{index}/product
func (h *DraftHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	index, ok := h.itemIndex(w, r)
	if !ok {
		return
	}

	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	input := &client.CreateProductInput{
		Name:        req.Name,
		ProductCode: req.ProductCode,
		SKU:         req.SKU,
		Description: req.Description,
		Category:    req.Category,
		Depth:       req.Depth,
		Width:       req.Width,
		Height:      req.Height,
		Finish:      req.Finish,
	}

	snap, err := h.service.CreateProduct(r.Context(), orderID, index, input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.hub.BroadcastJSON(orderID, ws.EventDraftSnapshot, snap)
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: snap})
}

// Save handles POST /api/v1/orders/{orderId}/draft/save
func (h *DraftHandler) Save(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	result, err := h.service.Save(r.Context(), orderID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	// The outcome's notice severity determines the status: a validation
	// failure or platform failure is a well-formed response, not an error
	// envelope, so the snapshot and notice reach the caller together.
	status := http.StatusOK
	switch result.Notice.Severity {
	case domain.SeverityWarning:
		status = http.StatusUnprocessableEntity
	case domain.SeverityError:
		status = http.StatusBadGateway
	}

	if result.Close {
		h.hub.BroadcastJSON(orderID, ws.EventDraftSaved, result)
	} else {
		h.hub.BroadcastJSON(orderID, ws.EventDraftSnapshot, &result.Snapshot)
	}
	httputil.WriteJSON(w, status, httputil.Response{Data: result})
}

// --- Helpers ---

// itemIndex parses the {index} URL parameter; on failure it writes a 400 and
// returns ok=false.
func (h *DraftHandler) itemIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "index")
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "index must be a non-negative integer"},
		})
		return 0, false
	}
	return index, true
}
