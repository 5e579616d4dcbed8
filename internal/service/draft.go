package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/elfernagomez/doya-management/internal/client"
	"github.com/elfernagomez/doya-management/internal/domain"
	"github.com/elfernagomez/doya-management/internal/event"
	"github.com/elfernagomez/doya-management/internal/repository"
	apperrors "github.com/elfernagomez/doya-management/pkg/errors"
)

// Draft operation upper-bound limits to prevent abuse.
const (
	// MaxItemsPerDraft is the maximum number of lines allowed in a draft.
	MaxItemsPerDraft = 200
	// MaxAddBatch is the maximum number of lines added in one request.
	MaxAddBatch = 50
)

// OrderAPI is the slice of the platform's order service the draft needs.
type OrderAPI interface {
	GetOrder(ctx context.Context, orderID string) (*client.OrderHeader, error)
	GetOrderItems(ctx context.Context, orderID string) ([]domain.LineItem, error)
	PersistItems(ctx context.Context, orderID string, upserts []domain.LineItem, deleteIDs []string) (*client.PersistResult, error)
}

// ProductAPI is the slice of the platform's product catalog the draft needs.
type ProductAPI interface {
	GetProduct(ctx context.Context, productID string, force bool) (*domain.ProductDetails, error)
	CreateProduct(ctx context.Context, input *client.CreateProductInput) (*domain.ProductDetails, error)
}

// SaveResult is the outcome of a save attempt. The notice drives the user
// feedback and Close signals that the editing session is over.
type SaveResult struct {
	Snapshot domain.Snapshot `json:"snapshot"`
	Notice   domain.Notice   `json:"notice"`
	Close    bool            `json:"close"`
}

// DraftService implements the business logic for order draft editing.
type DraftService struct {
	repo     repository.DraftRepository
	orders   OrderAPI
	products ProductAPI
	producer *event.Producer
	logger   *slog.Logger
}

// NewDraftService creates a new draft service.
func NewDraftService(repo repository.DraftRepository, orders OrderAPI, products ProductAPI, producer *event.Producer, logger *slog.Logger) *DraftService {
	return &DraftService{
		repo:     repo,
		orders:   orders,
		products: products,
		producer: producer,
		logger:   logger,
	}
}

// Open starts an editing session for an order. The order header and its
// persisted lines are fetched from the platform; either fetch failing aborts
// the session. Re-opening an order with a live draft resumes that draft.
func (s *DraftService) Open(ctx context.Context, orderID string) (*domain.Snapshot, error) {
	if orderID == "" {
		return nil, apperrors.InvalidInput("order id is required")
	}

	existing, err := s.repo.Get(ctx, orderID)
	if err == nil && !existing.IsTerminal() {
		snap := existing.Snapshot()
		return &snap, nil
	}
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("get draft: %w", err)
	}

	header, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, apperrors.FetchFailed("order", err)
	}

	items, err := s.orders.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, apperrors.FetchFailed("order products", err)
	}

	now := time.Now().UTC()
	draft := &domain.Draft{
		OrderID:     orderID,
		OrderNumber: header.OrderNumber,
		AccountID:   header.AccountID,
		AccountName: header.AccountName,
		Status:      domain.StatusEditing,
		Items:       items,
		DeletedIDs:  []string{},
		Discounts:   header.Discounts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Save(ctx, draft); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}

	snap := draft.Snapshot()
	s.publishChanged(ctx, snap)

	s.logger.InfoContext(ctx, "draft opened",
		slog.String("order_id", orderID),
		slog.String("order_number", header.OrderNumber),
		slog.Int("item_count", len(items)),
	)

	return &snap, nil
}

// Get returns the current snapshot of an order's draft.
func (s *DraftService) Get(ctx context.Context, orderID string) (*domain.Snapshot, error) {
	if orderID == "" {
		return nil, apperrors.InvalidInput("order id is required")
	}

	draft, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}

	snap := draft.Snapshot()
	return &snap, nil
}

// AddItems appends count empty lines to the draft, each with its own
// synthetic id and a default quantity of 1. A zero count is a no-op returning
// the current snapshot.
func (s *DraftService) AddItems(ctx context.Context, orderID string, count int) (*domain.Snapshot, error) {
	if count < 0 {
		return nil, apperrors.InvalidInput("count must not be negative")
	}
	if count > MaxAddBatch {
		return nil, apperrors.InvalidInput(fmt.Sprintf("count must not exceed %d", MaxAddBatch))
	}

	draft, err := s.editableDraft(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		snap := draft.Snapshot()
		return &snap, nil
	}
	if len(draft.Items)+count > MaxItemsPerDraft {
		return nil, apperrors.InvalidInput(fmt.Sprintf("draft must not contain more than %d lines", MaxItemsPerDraft))
	}

	expectedVersion := draft.Version
	for i := 0; i < count; i++ {
		draft.Items = append(draft.Items, domain.NewLineItem())
	}
	draft.Dirty = true
	draft.UpdatedAt = time.Now().UTC()

	snap, err := s.commit(ctx, draft, expectedVersion)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "lines added to draft",
		slog.String("order_id", orderID),
		slog.Int("count", count),
	)

	return snap, nil
}

// EditItem merges a typed partial edit into one line and recomputes its
// derived total. An empty edit returns the current snapshot unchanged.
func (s *DraftService) EditItem(ctx context.Context, orderID string, index int, edits domain.FieldEdits) (*domain.Snapshot, error) {
	draft, err := s.editableDraft(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !draft.ItemIndexValid(index) {
		return nil, apperrors.NotFound("draft line", fmt.Sprintf("%s[%d]", orderID, index))
	}
	if draft.Items[index].IsDeleting {
		return nil, apperrors.Conflict("line is pending deletion")
	}

	if edits.IsEmpty() {
		snap := draft.Snapshot()
		return &snap, nil
	}

	expectedVersion := draft.Version
	edits.Apply(&draft.Items[index])
	// Refresh a stale validation annotation once the user starts fixing it.
	if !draft.Items[index].IsValid {
		draft.Items[index].Validate()
	}
	draft.Dirty = true
	draft.UpdatedAt = time.Now().UTC()

	return s.commit(ctx, draft, expectedVersion)
}

// DeleteItem removes a line. Never-persisted lines vanish immediately;
// persisted lines enter a pending-deletion state awaiting confirmation.
func (s *DraftService) DeleteItem(ctx context.Context, orderID string, index int) (*domain.Snapshot, error) {
	draft, err := s.editableDraft(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !draft.ItemIndexValid(index) {
		return nil, apperrors.NotFound("draft line", fmt.Sprintf("%s[%d]", orderID, index))
	}

	expectedVersion := draft.Version
	line := &draft.Items[index]

	if line.IsNew() {
		draft.Items = append(draft.Items[:index], draft.Items[index+1:]...)
		draft.Dirty = true
	} else {
		if line.IsDeleting {
			return nil, apperrors.Conflict("line deletion is already pending")
		}
		line.IsDeleting = true
		line.IsDisabled = true
	}
	draft.UpdatedAt = time.Now().UTC()

	snap, err := s.commit(ctx, draft, expectedVersion)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "draft line deleted",
		slog.String("order_id", orderID),
		slog.Int("index", index),
	)

	return snap, nil
}

// ConfirmDelete completes a pending deletion: the line leaves the list and
// its record id is queued for deletion on the next save.
func (s *DraftService) ConfirmDelete(ctx context.Context, orderID string, index int) (*domain.Snapshot, error) {
	draft, err := s.editableDraft(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !draft.ItemIndexValid(index) {
		return nil, apperrors.NotFound("draft line", fmt.Sprintf("%s[%d]", orderID, index))
	}
	if !draft.Items[index].IsDeleting {
		return nil, apperrors.Conflict("no pending deletion on this line")
	}

	expectedVersion := draft.Version
	draft.DeletedIDs = append(draft.DeletedIDs, draft.Items[index].UniqueID)
	draft.Items = append(draft.Items[:index], draft.Items[index+1:]...)
	draft.Dirty = true
	draft.UpdatedAt = time.Now().UTC()

	return s.commit(ctx, draft, expectedVersion)
}

// CancelDelete aborts a pending deletion and re-enables the line.
func (s *DraftService) CancelDelete(ctx context.Context, orderID string, index int) (*domain.Snapshot, error) {
	draft, err := s.editableDraft(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !draft.ItemIndexValid(index) {
		return nil, apperrors.NotFound("draft line", fmt.Sprintf("%s[%d]", orderID, index))
	}
	if !draft.Items[index].IsDeleting {
		return nil, apperrors.Conflict("no pending deletion on this line")
	}

	expectedVersion := draft.Version
	draft.Items[index].IsDeleting = false
	draft.Items[index].IsDisabled = false
	draft.UpdatedAt = time.Now().UTC()

	return s.commit(ctx, draft, expectedVersion)
}

// SelectProduct resolves a product and merges its descriptive fields into one
// line. An empty productID clears the line's product reference.
//
// Resolution is tagged: RequestedProductID is written and committed before the
// catalog fetch, and the result merges only if the tag still matches when the
// fetch returns. A selection changed mid-flight wins over the stale result.
func (s *DraftService) SelectProduct(ctx context.Context, orderID string, index int, productID string, force bool) (*domain.Snapshot, error) {
	draft, err := s.editableDraft(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !draft.ItemIndexValid(index) {
		return nil, apperrors.NotFound("draft line", fmt.Sprintf("%s[%d]", orderID, index))
	}
	if draft.Items[index].IsDeleting {
		return nil, apperrors.Conflict("line is pending deletion")
	}

	if productID == "" {
		expectedVersion := draft.Version
		draft.Items[index].ClearProduct()
		draft.Dirty = true
		draft.UpdatedAt = time.Now().UTC()
		return s.commit(ctx, draft, expectedVersion)
	}

	// Tag phase: record the in-flight selection before fetching.
	expectedVersion := draft.Version
	lineID := draft.Items[index].UniqueID
	draft.Items[index].RequestedProductID = productID
	draft.UpdatedAt = time.Now().UTC()
	if _, err := s.commit(ctx, draft, expectedVersion); err != nil {
		return nil, err
	}

	details, err := s.products.GetProduct(ctx, productID, force)
	if err != nil {
		s.clearRequestTag(ctx, orderID, lineID, productID)
		return nil, err
	}

	return s.mergeResolved(ctx, orderID, lineID, details)
}

// CreateProduct creates a product on the platform and selects it into the
// line, the editor's new-product flow.
func (s *DraftService) CreateProduct(ctx context.Context, orderID string, index int, input *client.CreateProductInput) (*domain.Snapshot, error) {
	if input == nil {
		return nil, apperrors.InvalidInput("product input is required")
	}
	if input.Name == "" {
		return nil, apperrors.InvalidInput("product name is required")
	}
	if input.ProductCode == "" {
		return nil, apperrors.InvalidInput("product code is required")
	}

	draft, err := s.editableDraft(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !draft.ItemIndexValid(index) {
		return nil, apperrors.NotFound("draft line", fmt.Sprintf("%s[%d]", orderID, index))
	}
	if draft.Items[index].IsDeleting {
		return nil, apperrors.Conflict("line is pending deletion")
	}
	lineID := draft.Items[index].UniqueID

	details, err := s.products.CreateProduct(ctx, input)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "product created for draft line",
		slog.String("order_id", orderID),
		slog.String("product_id", details.ID),
	)

	return s.mergeResolved(ctx, orderID, lineID, details)
}

// Save validates the draft and persists it to the platform in one batch.
// Validation failure and platform failure are outcomes, not errors: the
// result's notice carries the feedback and the draft stays editable.
func (s *DraftService) Save(ctx context.Context, orderID string) (*SaveResult, error) {
	draft, err := s.editableDraft(ctx, orderID)
	if err != nil {
		return nil, err
	}

	expectedVersion := draft.Version

	if !draft.ValidateItems() {
		if err := draft.TransitionTo(domain.StatusEditing); err != nil {
			return nil, apperrors.Conflict(err.Error())
		}
		draft.UpdatedAt = time.Now().UTC()
		snap, err := s.commit(ctx, draft, expectedVersion)
		if err != nil {
			return nil, err
		}
		return &SaveResult{
			Snapshot: *snap,
			Notice:   domain.ValidationNotice(combinedValidationMessage(draft)),
		}, nil
	}

	if err := draft.TransitionTo(domain.StatusSaving); err != nil {
		return nil, apperrors.Conflict(err.Error())
	}
	draft.UpdatedAt = time.Now().UTC()
	if _, err := s.commit(ctx, draft, expectedVersion); err != nil {
		return nil, err
	}

	result, err := s.orders.PersistItems(ctx, orderID, draft.Items, draft.DeletedIDs)
	if err != nil {
		// The draft's lines are untouched and saving stays enabled.
		if stErr := draft.TransitionTo(domain.StatusSaveFailed); stErr != nil {
			return nil, apperrors.Conflict(stErr.Error())
		}
		draft.UpdatedAt = time.Now().UTC()
		snap, commitErr := s.commit(ctx, draft, draft.Version)
		if commitErr != nil {
			return nil, commitErr
		}

		s.logger.WarnContext(ctx, "draft save failed",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)

		return &SaveResult{
			Snapshot: *snap,
			Notice:   domain.SaveFailedNotice(platformMessage(err)),
		}, nil
	}

	if err := draft.TransitionTo(domain.StatusSaved); err != nil {
		return nil, apperrors.Conflict(err.Error())
	}
	draft.Items = result.Items
	draft.DeletedIDs = []string{}
	draft.Dirty = false
	draft.UpdatedAt = time.Now().UTC()
	snap := draft.Snapshot()

	// The session is over; the draft leaves the store.
	if err := s.repo.Delete(ctx, orderID); err != nil {
		s.logger.ErrorContext(ctx, "failed to remove saved draft",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.producer.PublishDraftSaved(ctx, snap, len(result.Items), result.DeletedCount); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish orderdraft.saved event",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "draft saved",
		slog.String("order_id", orderID),
		slog.Int("persisted", len(result.Items)),
		slog.Int("deleted", result.DeletedCount),
	)

	return &SaveResult{
		Snapshot: snap,
		Notice:   domain.SavedNotice(),
		Close:    true,
	}, nil
}

// Discard abandons the editing session and deletes the draft.
func (s *DraftService) Discard(ctx context.Context, orderID, userID string) error {
	if orderID == "" {
		return apperrors.InvalidInput("order id is required")
	}

	draft, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return fmt.Errorf("get draft: %w", err)
	}
	if !draft.CanTransitionTo(domain.StatusDiscarded) {
		return apperrors.Conflict(fmt.Sprintf("draft in status %s cannot be discarded", draft.Status))
	}

	if err := s.repo.Delete(ctx, orderID); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}

	if err := s.producer.PublishDraftDiscarded(ctx, orderID, userID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish orderdraft.discarded event",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "draft discarded",
		slog.String("order_id", orderID),
	)

	return nil
}

// editableDraft loads a draft and ensures line mutations are allowed.
func (s *DraftService) editableDraft(ctx context.Context, orderID string) (*domain.Draft, error) {
	if orderID == "" {
		return nil, apperrors.InvalidInput("order id is required")
	}

	draft, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}
	if !draft.Editable() {
		return nil, apperrors.Conflict(fmt.Sprintf("draft is not editable in status %s", draft.Status))
	}

	return draft, nil
}

// commit writes the draft under optimistic concurrency and broadcasts the
// resulting snapshot.
func (s *DraftService) commit(ctx context.Context, draft *domain.Draft, expectedVersion int) (*domain.Snapshot, error) {
	ok, err := s.repo.SaveIfVersion(ctx, draft, expectedVersion)
	if err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	if !ok {
		return nil, apperrors.Conflict("draft was modified concurrently, please retry")
	}

	snap := draft.Snapshot()
	s.publishChanged(ctx, snap)
	return &snap, nil
}

// mergeResolved applies a resolved product to its line, honoring the request
// tag: a resolution that no longer matches the line's tag, or whose line is
// gone, is dropped and the current state returned instead.
func (s *DraftService) mergeResolved(ctx context.Context, orderID, lineID string, details *domain.ProductDetails) (*domain.Snapshot, error) {
	draft, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}

	index := -1
	for i := range draft.Items {
		if draft.Items[i].UniqueID == lineID {
			index = i
			break
		}
	}
	if index == -1 || (draft.Items[index].RequestedProductID != "" && draft.Items[index].RequestedProductID != details.ID) {
		s.logger.InfoContext(ctx, "stale product resolution dropped",
			slog.String("order_id", orderID),
			slog.String("product_id", details.ID),
		)
		snap := draft.Snapshot()
		return &snap, nil
	}

	expectedVersion := draft.Version
	draft.Items[index].ApplyProduct(*details)
	draft.Items[index].RequestedProductID = ""
	if !draft.Items[index].IsValid {
		draft.Items[index].Validate()
	}
	draft.Dirty = true
	draft.UpdatedAt = time.Now().UTC()

	snap, err := s.commit(ctx, draft, expectedVersion)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "product selected on draft line",
		slog.String("order_id", orderID),
		slog.String("product_id", details.ID),
	)

	return snap, nil
}

// clearRequestTag drops a selection tag after a failed resolution so the line
// does not stay marked as resolving. Best-effort.
func (s *DraftService) clearRequestTag(ctx context.Context, orderID, lineID, productID string) {
	draft, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return
	}
	for i := range draft.Items {
		if draft.Items[i].UniqueID == lineID && draft.Items[i].RequestedProductID == productID {
			draft.Items[i].RequestedProductID = ""
			if _, err := s.repo.SaveIfVersion(ctx, draft, draft.Version); err != nil {
				s.logger.WarnContext(ctx, "failed to clear selection tag",
					slog.String("order_id", orderID),
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}
}

// publishChanged emits the snapshot event; log but do not fail on error.
func (s *DraftService) publishChanged(ctx context.Context, snap domain.Snapshot) {
	if err := s.producer.PublishDraftChanged(ctx, snap); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish orderdraft.changed event",
			slog.String("order_id", snap.OrderID),
			slog.String("error", err.Error()),
		)
	}
}

// combinedValidationMessage joins every invalid line's annotation for the
// warning notice shown on a failed save.
func combinedValidationMessage(draft *domain.Draft) string {
	var parts []string
	for i := range draft.Items {
		if !draft.Items[i].IsValid && draft.Items[i].ErrorMessage != "" {
			parts = append(parts, draft.Items[i].ErrorMessage)
		}
	}
	return strings.Join(parts, "\n")
}

// platformMessage extracts the user-facing message from a platform error so
// it can be surfaced verbatim in the sticky notice.
func platformMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
