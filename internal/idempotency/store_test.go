package idempotency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sakuuj/blogsite/internal/storage"
)

func TestCreateAndFindRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	key := mustTokenKey(t)
	creation := mustCreationID(t, KindArticle)

	if err := store.Create(context.Background(), key, creation); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	record, err := store.FindByKey(context.Background(), key)
	if err != nil {
		t.Fatalf("unexpected find error: %v", err)
	}
	if record.CreationID() != creation {
		t.Fatalf("stored creation mismatch: got %+v want %+v", record.CreationID(), creation)
	}
}

func TestFindByKeyReturnsNotFoundForAbsentToken(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.FindByKey(context.Background(), mustTokenKey(t))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected storage.ErrNotFound, got %v", err)
	}
}

func TestCreateRejectsDuplicateKey(t *testing.T) {
	store, _ := newTestStore(t)
	key := mustTokenKey(t)

	if err := store.Create(context.Background(), key, mustCreationID(t, KindArticle)); err != nil {
		t.Fatalf("unexpected first create error: %v", err)
	}

	err := store.Create(context.Background(), key, mustCreationID(t, KindArticle))
	if !errors.Is(err, ErrTokenExists) {
		t.Fatalf("expected ErrTokenExists, got %v", err)
	}
}

func TestConcurrentCreatesYieldExactlyOneSuccess(t *testing.T) {
	store, db := newTestStore(t)
	key := mustTokenKey(t)

	const attempts = 8
	results := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			results[slot] = store.Create(context.Background(), key, mustCreationID(t, KindArticle))
		}(i)
	}
	wg.Wait()

	successes, duplicates := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrTokenExists):
			duplicates++
		default:
			t.Fatalf("unexpected create error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one successful create, got %d", successes)
	}
	if duplicates != attempts-1 {
		t.Fatalf("expected %d duplicate failures, got %d", attempts-1, duplicates)
	}

	var count int64
	if err := db.Model(&Record{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count token rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one token row, got %d", count)
	}
}

func TestDeleteByCreationIDFreesKeyForReuse(t *testing.T) {
	store, _ := newTestStore(t)
	key := mustTokenKey(t)
	creation := mustCreationID(t, KindTopic)

	if err := store.Create(context.Background(), key, creation); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if err := store.DeleteByCreationID(context.Background(), creation); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}

	if _, err := store.FindByKey(context.Background(), key); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected token to be gone, got %v", err)
	}

	if err := store.Create(context.Background(), key, mustCreationID(t, KindTopic)); err != nil {
		t.Fatalf("expected key to be reusable after delete, got %v", err)
	}
}

func TestDeleteByCreationIDIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)

	if err := store.DeleteByCreationID(context.Background(), mustCreationID(t, KindArticle)); err != nil {
		t.Fatalf("deleting an absent token should not fail: %v", err)
	}
}

func TestNewTokenKeyRejectsEmptyHalves(t *testing.T) {
	if _, err := NewTokenKey(uuid.Nil, uuid.New()); !errors.Is(err, ErrInvalidTokenKey) {
		t.Fatalf("expected ErrInvalidTokenKey for empty client id, got %v", err)
	}
	if _, err := NewTokenKey(uuid.New(), uuid.Nil); !errors.Is(err, ErrInvalidTokenKey) {
		t.Fatalf("expected ErrInvalidTokenKey for empty token value, got %v", err)
	}
}

func TestNewCreationIDRejectsEmptyParts(t *testing.T) {
	if _, err := NewCreationID("", uuid.New()); !errors.Is(err, ErrInvalidCreationID) {
		t.Fatalf("expected ErrInvalidCreationID for empty kind, got %v", err)
	}
	if _, err := NewCreationID(KindArticle, uuid.Nil); !errors.Is(err, ErrInvalidCreationID) {
		t.Fatalf("expected ErrInvalidCreationID for empty entity id, got %v", err)
	}
}

func newTestStore(t *testing.T) (Store, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:idempotency_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Record{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	store, err := NewGormStore(db)
	if err != nil {
		t.Fatalf("failed to construct store: %v", err)
	}
	return store, db
}

func mustTokenKey(t *testing.T) TokenKey {
	t.Helper()
	key, err := NewTokenKey(uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected token key error: %v", err)
	}
	return key
}

func mustCreationID(t *testing.T, kind ResourceKind) CreationID {
	t.Helper()
	creation, err := NewCreationID(kind, uuid.New())
	if err != nil {
		t.Fatalf("unexpected creation id error: %v", err)
	}
	return creation
}
