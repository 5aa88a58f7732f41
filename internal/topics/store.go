package topics

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sakuuj/blogsite/internal/paging"
	"github.com/sakuuj/blogsite/internal/storage"
)

// ErrNameExists indicates a topic with the requested name already exists.
var ErrNameExists = errors.New("topics: name already exists")

// Store is the persistence contract for topics. UpdateVersioned carries the same
// atomic compare-and-swap guarantee as the article store.
type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Topic, error)
	Insert(ctx context.Context, topic *Topic) error
	UpdateVersioned(ctx context.Context, id uuid.UUID, expectedVersion int32, content Request) error
	RemoveByID(ctx context.Context, id uuid.UUID) error
	ListSortedByCreatedAtDesc(ctx context.Context, page paging.RequestedPage) ([]Topic, error)
}

type gormStore struct {
	db *gorm.DB
}

// NewGormStore returns a Store backed by the provided database handle.
func NewGormStore(db *gorm.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("topics: database handle is required")
	}
	return &gormStore{db: db}, nil
}

func (s *gormStore) FindByID(ctx context.Context, id uuid.UUID) (*Topic, error) {
	var topic Topic
	err := s.db.WithContext(ctx).
		Where("topic_id = ?", id.String()).
		Take(&topic).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &topic, nil
}

func (s *gormStore) Insert(ctx context.Context, topic *Topic) error {
	err := s.db.WithContext(ctx).Create(topic).Error
	if storage.IsUniqueViolation(err) {
		return ErrNameExists
	}
	return err
}

func (s *gormStore) UpdateVersioned(ctx context.Context, id uuid.UUID, expectedVersion int32, content Request) error {
	result := s.db.WithContext(ctx).
		Model(&Topic{}).
		Where("topic_id = ? AND version = ?", id.String(), expectedVersion).
		Updates(map[string]any{
			"name":    content.Name,
			"version": expectedVersion + 1,
		})
	if result.Error != nil {
		if storage.IsUniqueViolation(result.Error) {
			return ErrNameExists
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrVersionConflict
	}
	return nil
}

func (s *gormStore) RemoveByID(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).
		Where("topic_id = ?", id.String()).
		Delete(&Topic{}).Error
}

func (s *gormStore) ListSortedByCreatedAtDesc(ctx context.Context, page paging.RequestedPage) ([]Topic, error) {
	var found []Topic
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(page.Size).
		Offset(page.Offset()).
		Find(&found).Error
	if err != nil {
		return nil, err
	}
	return found, nil
}
