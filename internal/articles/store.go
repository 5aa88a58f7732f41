package articles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sakuuj/blogsite/internal/paging"
	"github.com/sakuuj/blogsite/internal/storage"
)

// Store is the persistence contract the article service orchestrates against.
//
// UpdateVersioned must be a single atomic compare-and-swap on the version column:
// of two concurrent updates racing on the same version, exactly one succeeds and
// the other observes storage.ErrVersionConflict. RemoveByID and the topic relation
// writes are idempotent.
type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Article, error)
	Insert(ctx context.Context, article *Article) error
	UpdateVersioned(ctx context.Context, id uuid.UUID, expectedVersion int32, content Request) error
	RemoveByID(ctx context.Context, id uuid.UUID) error

	ListSortedByCreatedAtDesc(ctx context.Context, page paging.RequestedPage) ([]Article, error)
	ListByTopicsSortedByCreatedAtDesc(ctx context.Context, topicNames []string, page paging.RequestedPage) ([]Article, error)
	SearchSortedByRelevance(ctx context.Context, searchTerms string, page paging.RequestedPage) ([]Article, error)

	AddTopic(ctx context.Context, articleID, topicID uuid.UUID) error
	RemoveTopic(ctx context.Context, articleID, topicID uuid.UUID) error

	AuthorID(ctx context.Context, articleID uuid.UUID) (uuid.UUID, error)
}

type gormStore struct {
	db *gorm.DB
}

// NewGormStore returns a Store backed by the provided database handle.
func NewGormStore(db *gorm.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("articles: database handle is required")
	}
	return &gormStore{db: db}, nil
}

func (s *gormStore) FindByID(ctx context.Context, id uuid.UUID) (*Article, error) {
	var article Article
	err := s.db.WithContext(ctx).
		Where("article_id = ?", id.String()).
		Take(&article).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

func (s *gormStore) Insert(ctx context.Context, article *Article) error {
	return s.db.WithContext(ctx).Create(article).Error
}

// UpdateVersioned performs the compare-and-swap: the WHERE clause pins the version
// read by the caller, and the version advances in the same statement. Zero affected
// rows means a concurrent writer got there first (or the row is gone) and surfaces
// as storage.ErrVersionConflict.
func (s *gormStore) UpdateVersioned(ctx context.Context, id uuid.UUID, expectedVersion int32, content Request) error {
	result := s.db.WithContext(ctx).
		Model(&Article{}).
		Where("article_id = ? AND version = ?", id.String(), expectedVersion).
		Updates(map[string]any{
			"title":   content.Title,
			"content": content.Content,
			"version": expectedVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrVersionConflict
	}
	return nil
}

func (s *gormStore) RemoveByID(ctx context.Context, id uuid.UUID) error {
	tx := s.db.WithContext(ctx)
	if err := tx.Where("article_id = ?", id.String()).Delete(&ArticleTopic{}).Error; err != nil {
		return err
	}
	return tx.Where("article_id = ?", id.String()).Delete(&Article{}).Error
}

func (s *gormStore) ListSortedByCreatedAtDesc(ctx context.Context, page paging.RequestedPage) ([]Article, error) {
	var found []Article
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

func (s *gormStore) ListByTopicsSortedByCreatedAtDesc(ctx context.Context, topicNames []string, page paging.RequestedPage) ([]Article, error) {
	if len(topicNames) == 0 {
		return []Article{}, nil
	}
	var found []Article
	err := s.db.WithContext(ctx).
		Model(&Article{}).
		Distinct("articles.*").
		Joins("JOIN article_topics ON article_topics.article_id = articles.article_id").
		Joins("JOIN topics ON topics.topic_id = article_topics.topic_id").
		Where("topics.name IN ?", topicNames).
		Order("articles.created_at DESC").
		Limit(page.Size).
		Offset(page.Offset()).
		Find(&found).Error
	if err != nil {
		return nil, err
	}
	return found, nil
}

// SearchSortedByRelevance matches every whitespace-separated term against title or
// content, ranking title hits above content-only hits.
func (s *gormStore) SearchSortedByRelevance(ctx context.Context, searchTerms string, page paging.RequestedPage) ([]Article, error) {
	terms := strings.Fields(strings.ToLower(searchTerms))
	if len(terms) == 0 {
		return []Article{}, nil
	}

	query := s.db.WithContext(ctx).Model(&Article{})

	relevanceParts := make([]string, 0, len(terms))
	relevanceArgs := make([]any, 0, len(terms))
	for _, term := range terms {
		pattern := "%" + term + "%"
		query = query.Where("(LOWER(title) LIKE ? OR LOWER(content) LIKE ?)", pattern, pattern)
		relevanceParts = append(relevanceParts, "(CASE WHEN LOWER(title) LIKE ? THEN 2 ELSE 1 END)")
		relevanceArgs = append(relevanceArgs, pattern)
	}

	selectExpr := fmt.Sprintf("articles.*, (%s) AS relevance", strings.Join(relevanceParts, " + "))

	var found []Article
	err := query.
		Select(selectExpr, relevanceArgs...).
		Order("relevance DESC, created_at DESC").
		Limit(page.Size).
		Offset(page.Offset()).
		Find(&found).Error
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (s *gormStore) AddTopic(ctx context.Context, articleID, topicID uuid.UUID) error {
	link := ArticleTopic{
		ArticleID: articleID.String(),
		TopicID:   topicID.String(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&link).Error
}

func (s *gormStore) RemoveTopic(ctx context.Context, articleID, topicID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Where("article_id = ? AND topic_id = ?", articleID.String(), topicID.String()).
		Delete(&ArticleTopic{}).Error
}

func (s *gormStore) AuthorID(ctx context.Context, articleID uuid.UUID) (uuid.UUID, error) {
	var article Article
	err := s.db.WithContext(ctx).
		Select("author_id").
		Where("article_id = ?", articleID.String()).
		Take(&article).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, storage.ErrNotFound
	}
	if err != nil {
		return uuid.Nil, err
	}
	authorID, err := uuid.Parse(article.AuthorID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("articles: malformed author id %q: %w", article.AuthorID, err)
	}
	return authorID, nil
}
