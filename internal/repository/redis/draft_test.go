package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elfernagomez/doya-management/internal/domain"
	apperrors "github.com/elfernagomez/doya-management/pkg/errors"
)

func setupTestRedis(t *testing.T) (*DraftRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	repo := NewDraftRepository(client, 24*time.Hour)
	return repo, mr
}

func sampleDraft() *domain.Draft {
	now := time.Now().UTC().Truncate(time.Millisecond)
	li := domain.LineItem{
		UniqueID:  "801xx0000000001AAA",
		ProductID: "01txx0000000001AAA",
		Name:      "Walnut Desk",
		Qty:       2,
		UnitPrice: decimal.RequireFromString("10"),
	}
	li.Recalculate()
	return &domain.Draft{
		OrderID:     "order-001",
		OrderNumber: "00000113",
		AccountID:   "001xx000003DGb2AAG",
		AccountName: "Edge Communications",
		Status:      domain.StatusEditing,
		Items:       []domain.LineItem{li},
		DeletedIDs:  []string{},
		Discounts:   decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

func TestDraftRepository_Get_Success(t *testing.T) {
	repo, mr := setupTestRedis(t)

	draft := sampleDraft()
	draft.Version = 1
	data, err := json.Marshal(draft)
	require.NoError(t, err)

	// Set data directly in miniredis.
	require.NoError(t, mr.Set("draft:"+draft.OrderID, string(data)))

	got, err := repo.Get(context.Background(), draft.OrderID)
	require.NoError(t, err)
	assert.Equal(t, draft.OrderID, got.OrderID)
	assert.Equal(t, draft.OrderNumber, got.OrderNumber)
	assert.Equal(t, domain.StatusEditing, got.Status)
	assert.Equal(t, 1, got.Version)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "801xx0000000001AAA", got.Items[0].UniqueID)
	assert.Equal(t, "Walnut Desk", got.Items[0].Name)
	assert.True(t, got.Items[0].TotalPrice.Equal(decimal.RequireFromString("20")))
}

func TestDraftRepository_Get_NotFound(t *testing.T) {
	repo, _ := setupTestRedis(t)

	got, err := repo.Get(context.Background(), "nonexistent-order")
	assert.Nil(t, got)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDraftRepository_Get_InvalidJSON(t *testing.T) {
	repo, mr := setupTestRedis(t)

	// Set corrupted JSON data.
	require.NoError(t, mr.Set("draft:order-bad", "{{not-valid-json"))

	got, err := repo.Get(context.Background(), "order-bad")
	assert.Nil(t, got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal draft")
}

// ---------------------------------------------------------------------------
// Save
// ---------------------------------------------------------------------------

func TestDraftRepository_Save_Success(t *testing.T) {
	repo, mr := setupTestRedis(t)

	draft := sampleDraft()
	err := repo.Save(context.Background(), draft)
	require.NoError(t, err)

	// Verify key exists in Redis.
	assert.True(t, mr.Exists("draft:"+draft.OrderID))

	raw, err := mr.Get("draft:" + draft.OrderID)
	require.NoError(t, err)

	var stored domain.Draft
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, draft.OrderID, stored.OrderID)
	assert.Equal(t, domain.StatusEditing, stored.Status)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "801xx0000000001AAA", stored.Items[0].UniqueID)
}

func TestDraftRepository_Save_BumpsVersion(t *testing.T) {
	repo, _ := setupTestRedis(t)

	draft := sampleDraft()
	require.Equal(t, 0, draft.Version)

	require.NoError(t, repo.Save(context.Background(), draft))
	assert.Equal(t, 1, draft.Version)

	require.NoError(t, repo.Save(context.Background(), draft))
	assert.Equal(t, 2, draft.Version)

	got, err := repo.Get(context.Background(), draft.OrderID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
}

func TestDraftRepository_Save_TTL(t *testing.T) {
	repo, mr := setupTestRedis(t)

	draft := sampleDraft()
	err := repo.Save(context.Background(), draft)
	require.NoError(t, err)

	ttl := mr.TTL("draft:" + draft.OrderID)
	// TTL should be approximately 24 hours (allow some margin for test execution).
	assert.True(t, ttl > 23*time.Hour, "expected TTL > 23h, got %v", ttl)
	assert.True(t, ttl <= 24*time.Hour, "expected TTL <= 24h, got %v", ttl)
	assert.False(t, draft.ExpiresAt.IsZero())
}

// ---------------------------------------------------------------------------
// SaveIfVersion
// ---------------------------------------------------------------------------

func TestDraftRepository_SaveIfVersion_Success(t *testing.T) {
	repo, _ := setupTestRedis(t)

	draft := sampleDraft()
	require.NoError(t, repo.Save(context.Background(), draft))
	require.Equal(t, 1, draft.Version)

	draft.Items = append(draft.Items, domain.NewLineItem())

	ok, err := repo.SaveIfVersion(context.Background(), draft, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	// Version was incremented on write.
	got, err := repo.Get(context.Background(), draft.OrderID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Len(t, got.Items, 2)
}

func TestDraftRepository_SaveIfVersion_VersionMismatch(t *testing.T) {
	repo, _ := setupTestRedis(t)

	draft := sampleDraft()
	require.NoError(t, repo.Save(context.Background(), draft))

	ok, err := repo.SaveIfVersion(context.Background(), draft, 99)
	require.NoError(t, err)
	assert.False(t, ok)

	// Original data unchanged.
	got, err := repo.Get(context.Background(), draft.OrderID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
	assert.Len(t, got.Items, 1)
}

func TestDraftRepository_SaveIfVersion_NewDraft(t *testing.T) {
	repo, _ := setupTestRedis(t)

	draft := sampleDraft()

	// A missing key counts as version 0.
	ok, err := repo.SaveIfVersion(context.Background(), draft, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.Get(context.Background(), draft.OrderID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

func TestDraftRepository_Delete_Success(t *testing.T) {
	repo, mr := setupTestRedis(t)

	draft := sampleDraft()
	require.NoError(t, repo.Save(context.Background(), draft))
	require.True(t, mr.Exists("draft:"+draft.OrderID))

	err := repo.Delete(context.Background(), draft.OrderID)
	require.NoError(t, err)
	assert.False(t, mr.Exists("draft:"+draft.OrderID))
}

func TestDraftRepository_Delete_NonexistentKey(t *testing.T) {
	repo, _ := setupTestRedis(t)

	// Deleting a missing draft is not an error.
	err := repo.Delete(context.Background(), "nonexistent-order")
	assert.NoError(t, err)
}
