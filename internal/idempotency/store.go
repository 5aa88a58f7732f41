package idempotency

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/sakuuj/blogsite/internal/storage"
)

// ErrTokenExists indicates a creation was already performed under the same token key.
var ErrTokenExists = errors.New("idempotency: token already exists")

// Store persists the mapping from token keys to the creations they produced.
//
// Create must provide insert-if-absent semantics: when two callers race on the same
// key, exactly one insert succeeds and the other fails with ErrTokenExists.
type Store interface {
	FindByKey(ctx context.Context, key TokenKey) (*Record, error)
	Create(ctx context.Context, key TokenKey, creation CreationID) error
	DeleteByCreationID(ctx context.Context, creation CreationID) error
}

type gormStore struct {
	db *gorm.DB
}

// NewGormStore returns a Store backed by the provided database handle.
func NewGormStore(db *gorm.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("idempotency: database handle is required")
	}
	return &gormStore{db: db}, nil
}

// FindByKey returns the token row for the key, or storage.ErrNotFound.
func (s *gormStore) FindByKey(ctx context.Context, key TokenKey) (*Record, error) {
	var record Record
	err := s.db.WithContext(ctx).
		Where("client_id = ? AND token_value = ?", key.ClientID.String(), key.TokenValue.String()).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Create inserts the token row. The composite primary key makes the insert an atomic
// insert-if-absent; a duplicate key is reported as ErrTokenExists.
func (s *gormStore) Create(ctx context.Context, key TokenKey, creation CreationID) error {
	record := Record{
		ClientID:         key.ClientID.String(),
		TokenValue:       key.TokenValue.String(),
		CreationKind:     string(creation.Kind),
		CreationEntityID: creation.EntityID.String(),
	}
	err := s.db.WithContext(ctx).Create(&record).Error
	if storage.IsUniqueViolation(err) {
		return ErrTokenExists
	}
	return err
}

// DeleteByCreationID removes any token linked to the creation. Deleting when no
// token exists is not an error.
func (s *gormStore) DeleteByCreationID(ctx context.Context, creation CreationID) error {
	return s.db.WithContext(ctx).
		Where("creation_kind = ? AND creation_entity_id = ?", string(creation.Kind), creation.EntityID.String()).
		Delete(&Record{}).Error
}
