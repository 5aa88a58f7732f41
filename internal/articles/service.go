package articles

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sakuuj/blogsite/internal/authz"
	"github.com/sakuuj/blogsite/internal/idempotency"
	"github.com/sakuuj/blogsite/internal/paging"
	"github.com/sakuuj/blogsite/internal/storage"
)

var (
	errMissingStore      = errors.New("article store is required")
	errMissingTokenStore = errors.New("idempotency token store is required")
	errMissingAuthorizer = errors.New("authorizer is required")
	errMissingValidator  = errors.New("validator is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// ServiceError carries a dotted operation code alongside the causing error.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew  = "articles.service.new"
	opCreate      = "articles.create"
	opUpdateByID  = "articles.update_by_id"
	opDeleteByID  = "articles.delete_by_id"
	opAddTopic    = "articles.add_topic"
	opRemoveTopic = "articles.remove_topic"
	opFindByID    = "articles.find_by_id"
	opList        = "articles.list"
	opListByTopic = "articles.list_by_topics"
	opSearch      = "articles.search"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// Authorizer decides whether a caller may perform an article mutation. It is
// consulted before validation and before any store access.
type Authorizer interface {
	AuthorizeCreate(ctx context.Context, user authz.AuthenticatedUser) error
	AuthorizeUpdate(ctx context.Context, articleID uuid.UUID, user authz.AuthenticatedUser) error
	AuthorizeDelete(ctx context.Context, articleID uuid.UUID, user authz.AuthenticatedUser) error
}

// Validator checks write payloads before they reach the store.
type Validator interface {
	Validate(payload any) error
}

// ServiceConfig describes the collaborators of the article service.
type ServiceConfig struct {
	Store      Store
	Tokens     idempotency.Store
	Authorizer Authorizer
	Validator  Validator
	IDProvider storage.IDProvider
	Logger     *zap.Logger
}

// Service orchestrates the article write path: authorize, validate, enforce
// exactly-once creation via idempotency tokens, and optimistic concurrency on
// update. It holds no state of its own; everything durable lives in the stores.
type Service struct {
	store      Store
	tokens     idempotency.Store
	authorizer Authorizer
	validator  Validator
	ids        storage.IDProvider
	logger     *zap.Logger
}

// NewService validates the configuration and constructs the service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, "missing_store", errMissingStore)
	}
	if cfg.Tokens == nil {
		return nil, newServiceError(opServiceNew, "missing_token_store", errMissingTokenStore)
	}
	if cfg.Authorizer == nil {
		return nil, newServiceError(opServiceNew, "missing_authorizer", errMissingAuthorizer)
	}
	if cfg.Validator == nil {
		return nil, newServiceError(opServiceNew, "missing_validator", errMissingValidator)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		store:      cfg.Store,
		tokens:     cfg.Tokens,
		authorizer: cfg.Authorizer,
		validator:  cfg.Validator,
		ids:        cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Create persists a new article exactly once per (caller, token value) pair.
// The token row is written strictly after the article row, so a token never
// points at an article that does not exist. A crash between the two writes
// leaves an untokened article behind; that window is accepted, not papered over.
func (s *Service) Create(ctx context.Context, request Request, authorID uuid.UUID, tokenValue uuid.UUID, user authz.AuthenticatedUser) (uuid.UUID, error) {
	if err := s.authorizer.AuthorizeCreate(ctx, user); err != nil {
		return uuid.Nil, newServiceError(opCreate, "authorization_denied", err)
	}
	if err := s.validator.Validate(request); err != nil {
		return uuid.Nil, newServiceError(opCreate, "validation_failed", err)
	}

	key, err := idempotency.NewTokenKey(user.PersonID, tokenValue)
	if err != nil {
		return uuid.Nil, newServiceError(opCreate, "invalid_token_key", err)
	}

	_, err = s.tokens.FindByKey(ctx, key)
	if err == nil {
		return uuid.Nil, newServiceError(opCreate, "token_exists", idempotency.ErrTokenExists)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		s.logError(opCreate, "token_lookup_failed", err)
		return uuid.Nil, newServiceError(opCreate, "token_lookup_failed", err)
	}

	articleID, err := s.ids.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err)
		return uuid.Nil, newServiceError(opCreate, "id_generation_failed", err)
	}

	article := &Article{
		ID:       articleID.String(),
		Title:    request.Title,
		Content:  request.Content,
		AuthorID: authorID.String(),
	}
	if err := s.store.Insert(ctx, article); err != nil {
		s.logError(opCreate, "insert_failed", err, zap.String("article_id", articleID.String()))
		return uuid.Nil, newServiceError(opCreate, "insert_failed", err)
	}

	creation, err := idempotency.NewCreationID(idempotency.KindArticle, articleID)
	if err != nil {
		return uuid.Nil, newServiceError(opCreate, "invalid_creation_id", err)
	}
	if err := s.tokens.Create(ctx, key, creation); err != nil {
		if errors.Is(err, idempotency.ErrTokenExists) {
			// A concurrent create with the same key linked its token first.
			return uuid.Nil, newServiceError(opCreate, "token_exists", err)
		}
		s.logError(opCreate, "token_create_failed", err, zap.String("article_id", articleID.String()))
		return uuid.Nil, newServiceError(opCreate, "token_create_failed", err)
	}

	return articleID, nil
}

// UpdateByID applies new content when expectedVersion matches the stored version.
// The store-level compare-and-swap decides races; a stale version surfaces as
// storage.ErrVersionConflict and the caller re-reads before retrying.
func (s *Service) UpdateByID(ctx context.Context, id uuid.UUID, request Request, expectedVersion int32, user authz.AuthenticatedUser) error {
	if err := s.authorizer.AuthorizeUpdate(ctx, id, user); err != nil {
		return newServiceError(opUpdateByID, "authorization_denied", err)
	}
	if err := s.validator.Validate(request); err != nil {
		return newServiceError(opUpdateByID, "validation_failed", err)
	}

	existing, err := s.store.FindByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return newServiceError(opUpdateByID, "not_found", err)
	}
	if err != nil {
		s.logError(opUpdateByID, "lookup_failed", err, zap.String("article_id", id.String()))
		return newServiceError(opUpdateByID, "lookup_failed", err)
	}
	if existing.Version != expectedVersion {
		return newServiceError(opUpdateByID, "version_conflict", storage.ErrVersionConflict)
	}

	if err := s.store.UpdateVersioned(ctx, id, expectedVersion, request); err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			return newServiceError(opUpdateByID, "version_conflict", err)
		}
		s.logError(opUpdateByID, "update_failed", err, zap.String("article_id", id.String()))
		return newServiceError(opUpdateByID, "update_failed", err)
	}
	return nil
}

// DeleteByID removes the article and then any idempotency token that produced it,
// freeing the (caller, token value) pair for reuse. Deleting an absent article is
// not an error.
func (s *Service) DeleteByID(ctx context.Context, id uuid.UUID, user authz.AuthenticatedUser) error {
	if err := s.authorizer.AuthorizeDelete(ctx, id, user); err != nil {
		return newServiceError(opDeleteByID, "authorization_denied", err)
	}

	if err := s.store.RemoveByID(ctx, id); err != nil {
		s.logError(opDeleteByID, "remove_failed", err, zap.String("article_id", id.String()))
		return newServiceError(opDeleteByID, "remove_failed", err)
	}

	creation, err := idempotency.NewCreationID(idempotency.KindArticle, id)
	if err != nil {
		return newServiceError(opDeleteByID, "invalid_creation_id", err)
	}
	if err := s.tokens.DeleteByCreationID(ctx, creation); err != nil {
		s.logError(opDeleteByID, "token_delete_failed", err, zap.String("article_id", id.String()))
		return newServiceError(opDeleteByID, "token_delete_failed", err)
	}
	return nil
}

// AddTopic links a topic to an article. Re-adding an existing link is a no-op;
// no idempotency token is involved because the relation is naturally idempotent.
func (s *Service) AddTopic(ctx context.Context, topicID, articleID uuid.UUID, user authz.AuthenticatedUser) error {
	if err := s.authorizer.AuthorizeUpdate(ctx, articleID, user); err != nil {
		return newServiceError(opAddTopic, "authorization_denied", err)
	}

	if _, err := s.store.FindByID(ctx, articleID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return newServiceError(opAddTopic, "not_found", err)
		}
		s.logError(opAddTopic, "lookup_failed", err, zap.String("article_id", articleID.String()))
		return newServiceError(opAddTopic, "lookup_failed", err)
	}

	if err := s.store.AddTopic(ctx, articleID, topicID); err != nil {
		s.logError(opAddTopic, "link_failed", err,
			zap.String("article_id", articleID.String()),
			zap.String("topic_id", topicID.String()))
		return newServiceError(opAddTopic, "link_failed", err)
	}
	return nil
}

// RemoveTopic unlinks a topic from an article. Removing an absent link is a no-op.
func (s *Service) RemoveTopic(ctx context.Context, topicID, articleID uuid.UUID, user authz.AuthenticatedUser) error {
	if err := s.authorizer.AuthorizeUpdate(ctx, articleID, user); err != nil {
		return newServiceError(opRemoveTopic, "authorization_denied", err)
	}

	if _, err := s.store.FindByID(ctx, articleID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return newServiceError(opRemoveTopic, "not_found", err)
		}
		s.logError(opRemoveTopic, "lookup_failed", err, zap.String("article_id", articleID.String()))
		return newServiceError(opRemoveTopic, "lookup_failed", err)
	}

	if err := s.store.RemoveTopic(ctx, articleID, topicID); err != nil {
		s.logError(opRemoveTopic, "unlink_failed", err,
			zap.String("article_id", articleID.String()),
			zap.String("topic_id", topicID.String()))
		return newServiceError(opRemoveTopic, "unlink_failed", err)
	}
	return nil
}

// FindByID is a plain read: no authorization gate, no token or version checks.
func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (*Article, error) {
	article, err := s.store.FindByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newServiceError(opFindByID, "not_found", err)
	}
	if err != nil {
		s.logError(opFindByID, "lookup_failed", err, zap.String("article_id", id.String()))
		return nil, newServiceError(opFindByID, "lookup_failed", err)
	}
	return article, nil
}

// FindAllSortedByCreatedAtDesc pages through articles, newest first.
func (s *Service) FindAllSortedByCreatedAtDesc(ctx context.Context, page paging.RequestedPage) (paging.View[Article], error) {
	found, err := s.store.ListSortedByCreatedAtDesc(ctx, page)
	if err != nil {
		s.logError(opList, "query_failed", err)
		return paging.View[Article]{}, newServiceError(opList, "query_failed", err)
	}
	return paging.NewView(found, page), nil
}

// FindAllByTopicsSortedByCreatedAtDesc pages through articles carrying any of the
// named topics, newest first.
func (s *Service) FindAllByTopicsSortedByCreatedAtDesc(ctx context.Context, topicNames []string, page paging.RequestedPage) (paging.View[Article], error) {
	found, err := s.store.ListByTopicsSortedByCreatedAtDesc(ctx, topicNames, page)
	if err != nil {
		s.logError(opListByTopic, "query_failed", err)
		return paging.View[Article]{}, newServiceError(opListByTopic, "query_failed", err)
	}
	return paging.NewView(found, page), nil
}

// FindAllBySearchTermsSortedByRelevance pages through articles matching the
// search terms, best match first.
func (s *Service) FindAllBySearchTermsSortedByRelevance(ctx context.Context, searchTerms string, page paging.RequestedPage) (paging.View[Article], error) {
	found, err := s.store.SearchSortedByRelevance(ctx, searchTerms, page)
	if err != nil {
		s.logError(opSearch, "query_failed", err)
		return paging.View[Article]{}, newServiceError(opSearch, "query_failed", err)
	}
	return paging.NewView(found, page), nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("article service error", attrs...)
}
