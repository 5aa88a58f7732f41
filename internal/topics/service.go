package topics

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
	errMissingStore      = errors.New("topic store is required")
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
	opServiceNew = "topics.service.new"
	opCreate     = "topics.create"
	opUpdateByID = "topics.update_by_id"
	opDeleteByID = "topics.delete_by_id"
	opFindByID   = "topics.find_by_id"
	opList       = "topics.list"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// Authorizer decides whether a caller may perform a topic mutation.
type Authorizer interface {
	AuthorizeCreate(ctx context.Context, user authz.AuthenticatedUser) error
	AuthorizeUpdate(ctx context.Context, topicID uuid.UUID, user authz.AuthenticatedUser) error
	AuthorizeDelete(ctx context.Context, topicID uuid.UUID, user authz.AuthenticatedUser) error
}

// Validator checks write payloads before they reach the store.
type Validator interface {
	Validate(payload any) error
}

// ServiceConfig describes the collaborators of the topic service.
type ServiceConfig struct {
	Store      Store
	Tokens     idempotency.Store
	Authorizer Authorizer
	Validator  Validator
	IDProvider storage.IDProvider
	Logger     *zap.Logger
}

// Service runs the same write-path protocol as the article service for the
// shared topic vocabulary: authorize, validate, token-guarded create, versioned
// update. Creation has no separate owner; the caller is the client of record.
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

// Create persists a new topic exactly once per (caller, token value) pair,
// writing the token strictly after the topic row.
func (s *Service) Create(ctx context.Context, request Request, tokenValue uuid.UUID, user authz.AuthenticatedUser) (uuid.UUID, error) {
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

	topicID, err := s.ids.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err)
		return uuid.Nil, newServiceError(opCreate, "id_generation_failed", err)
	}

	topic := &Topic{
		ID:   topicID.String(),
		Name: request.Name,
	}
	if err := s.store.Insert(ctx, topic); err != nil {
		if errors.Is(err, ErrNameExists) {
			return uuid.Nil, newServiceError(opCreate, "name_exists", err)
		}
		s.logError(opCreate, "insert_failed", err, zap.String("topic_id", topicID.String()))
		return uuid.Nil, newServiceError(opCreate, "insert_failed", err)
	}

	creation, err := idempotency.NewCreationID(idempotency.KindTopic, topicID)
	if err != nil {
		return uuid.Nil, newServiceError(opCreate, "invalid_creation_id", err)
	}
	if err := s.tokens.Create(ctx, key, creation); err != nil {
		if errors.Is(err, idempotency.ErrTokenExists) {
			return uuid.Nil, newServiceError(opCreate, "token_exists", err)
		}
		s.logError(opCreate, "token_create_failed", err, zap.String("topic_id", topicID.String()))
		return uuid.Nil, newServiceError(opCreate, "token_create_failed", err)
	}

	return topicID, nil
}

// UpdateByID renames the topic when expectedVersion matches the stored version.
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
		s.logError(opUpdateByID, "lookup_failed", err, zap.String("topic_id", id.String()))
		return newServiceError(opUpdateByID, "lookup_failed", err)
	}
	if existing.Version != expectedVersion {
		return newServiceError(opUpdateByID, "version_conflict", storage.ErrVersionConflict)
	}

	if err := s.store.UpdateVersioned(ctx, id, expectedVersion, request); err != nil {
		switch {
		case errors.Is(err, storage.ErrVersionConflict):
			return newServiceError(opUpdateByID, "version_conflict", err)
		case errors.Is(err, ErrNameExists):
			return newServiceError(opUpdateByID, "name_exists", err)
		}
		s.logError(opUpdateByID, "update_failed", err, zap.String("topic_id", id.String()))
		return newServiceError(opUpdateByID, "update_failed", err)
	}
	return nil
}

// DeleteByID removes the topic and then any idempotency token that produced it.
func (s *Service) DeleteByID(ctx context.Context, id uuid.UUID, user authz.AuthenticatedUser) error {
	if err := s.authorizer.AuthorizeDelete(ctx, id, user); err != nil {
		return newServiceError(opDeleteByID, "authorization_denied", err)
	}

	if err := s.store.RemoveByID(ctx, id); err != nil {
		s.logError(opDeleteByID, "remove_failed", err, zap.String("topic_id", id.String()))
		return newServiceError(opDeleteByID, "remove_failed", err)
	}

	creation, err := idempotency.NewCreationID(idempotency.KindTopic, id)
	if err != nil {
		return newServiceError(opDeleteByID, "invalid_creation_id", err)
	}
	if err := s.tokens.DeleteByCreationID(ctx, creation); err != nil {
		s.logError(opDeleteByID, "token_delete_failed", err, zap.String("topic_id", id.String()))
		return newServiceError(opDeleteByID, "token_delete_failed", err)
	}
	return nil
}

// FindByID is a plain read outside the mutation protocol.
func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (*Topic, error) {
	topic, err := s.store.FindByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newServiceError(opFindByID, "not_found", err)
	}
	if err != nil {
		s.logError(opFindByID, "lookup_failed", err, zap.String("topic_id", id.String()))
		return nil, newServiceError(opFindByID, "lookup_failed", err)
	}
	return topic, nil
}

// FindAllSortedByCreatedAtDesc pages through topics, newest first.
func (s *Service) FindAllSortedByCreatedAtDesc(ctx context.Context, page paging.RequestedPage) (paging.View[Topic], error) {
	found, err := s.store.ListSortedByCreatedAtDesc(ctx, page)
	if err != nil {
		s.logError(opList, "query_failed", err)
		return paging.View[Topic]{}, newServiceError(opList, "query_failed", err)
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
	s.loggerOrDefault().Error("topic service error", attrs...)
}
