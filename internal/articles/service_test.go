package articles

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/sakuuj/blogsite/internal/authz"
	"github.com/sakuuj/blogsite/internal/idempotency"
	"github.com/sakuuj/blogsite/internal/paging"
	"github.com/sakuuj/blogsite/internal/storage"
)

type callLog struct {
	calls []string
}

func (l *callLog) record(name string) {
	l.calls = append(l.calls, name)
}

type fakeStore struct {
	log *callLog

	articles map[uuid.UUID]*Article

	insertErr error
	updateErr error
	removeErr error
}

func newFakeStore(log *callLog) *fakeStore {
	return &fakeStore{log: log, articles: map[uuid.UUID]*Article{}}
}

func (s *fakeStore) FindByID(_ context.Context, id uuid.UUID) (*Article, error) {
	s.log.record("store.find")
	article, ok := s.articles[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *article
	return &copied, nil
}

func (s *fakeStore) Insert(_ context.Context, article *Article) error {
	s.log.record("store.insert")
	if s.insertErr != nil {
		return s.insertErr
	}
	id, err := uuid.Parse(article.ID)
	if err != nil {
		return err
	}
	copied := *article
	s.articles[id] = &copied
	return nil
}

func (s *fakeStore) UpdateVersioned(_ context.Context, id uuid.UUID, expectedVersion int32, content Request) error {
	s.log.record("store.update")
	if s.updateErr != nil {
		return s.updateErr
	}
	article, ok := s.articles[id]
	if !ok || article.Version != expectedVersion {
		return storage.ErrVersionConflict
	}
	article.Title = content.Title
	article.Content = content.Content
	article.Version = expectedVersion + 1
	return nil
}

func (s *fakeStore) RemoveByID(_ context.Context, id uuid.UUID) error {
	s.log.record("store.remove")
	if s.removeErr != nil {
		return s.removeErr
	}
	delete(s.articles, id)
	return nil
}

func (s *fakeStore) ListSortedByCreatedAtDesc(context.Context, paging.RequestedPage) ([]Article, error) {
	return nil, nil
}

func (s *fakeStore) ListByTopicsSortedByCreatedAtDesc(context.Context, []string, paging.RequestedPage) ([]Article, error) {
	return nil, nil
}

func (s *fakeStore) SearchSortedByRelevance(context.Context, string, paging.RequestedPage) ([]Article, error) {
	return nil, nil
}

func (s *fakeStore) AddTopic(context.Context, uuid.UUID, uuid.UUID) error {
	s.log.record("store.add_topic")
	return nil
}

func (s *fakeStore) RemoveTopic(context.Context, uuid.UUID, uuid.UUID) error {
	s.log.record("store.remove_topic")
	return nil
}

func (s *fakeStore) AuthorID(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	article, ok := s.articles[id]
	if !ok {
		return uuid.Nil, storage.ErrNotFound
	}
	return uuid.Parse(article.AuthorID)
}

type fakeTokenStore struct {
	log *callLog

	tokens map[idempotency.TokenKey]idempotency.CreationID

	createErr error
}

func newFakeTokenStore(log *callLog) *fakeTokenStore {
	return &fakeTokenStore{log: log, tokens: map[idempotency.TokenKey]idempotency.CreationID{}}
}

func (s *fakeTokenStore) FindByKey(_ context.Context, key idempotency.TokenKey) (*idempotency.Record, error) {
	s.log.record("tokens.find")
	creation, ok := s.tokens[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &idempotency.Record{
		ClientID:         key.ClientID.String(),
		TokenValue:       key.TokenValue.String(),
		CreationKind:     string(creation.Kind),
		CreationEntityID: creation.EntityID.String(),
	}, nil
}

func (s *fakeTokenStore) Create(_ context.Context, key idempotency.TokenKey, creation idempotency.CreationID) error {
	s.log.record("tokens.create")
	if s.createErr != nil {
		return s.createErr
	}
	if _, ok := s.tokens[key]; ok {
		return idempotency.ErrTokenExists
	}
	s.tokens[key] = creation
	return nil
}

func (s *fakeTokenStore) DeleteByCreationID(_ context.Context, creation idempotency.CreationID) error {
	s.log.record("tokens.delete")
	for key, stored := range s.tokens {
		if stored == creation {
			delete(s.tokens, key)
		}
	}
	return nil
}

type fakeAuthorizer struct {
	log *callLog

	denyCreate bool
	denyUpdate bool
	denyDelete bool
}

func (a *fakeAuthorizer) AuthorizeCreate(context.Context, authz.AuthenticatedUser) error {
	a.log.record("authz.create")
	if a.denyCreate {
		return authz.ErrDenied
	}
	return nil
}

func (a *fakeAuthorizer) AuthorizeUpdate(context.Context, uuid.UUID, authz.AuthenticatedUser) error {
	a.log.record("authz.update")
	if a.denyUpdate {
		return authz.ErrDenied
	}
	return nil
}

func (a *fakeAuthorizer) AuthorizeDelete(context.Context, uuid.UUID, authz.AuthenticatedUser) error {
	a.log.record("authz.delete")
	if a.denyDelete {
		return authz.ErrDenied
	}
	return nil
}

type fakeValidator struct {
	log *callLog

	err error
}

func (v *fakeValidator) Validate(any) error {
	v.log.record("validate")
	return v.err
}

type fixedIDProvider struct {
	id uuid.UUID
}

func (p fixedIDProvider) NewID() (uuid.UUID, error) {
	return p.id, nil
}

type serviceFixture struct {
	log        *callLog
	store      *fakeStore
	tokens     *fakeTokenStore
	authorizer *fakeAuthorizer
	validator  *fakeValidator
	nextID     uuid.UUID
	service    *Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	log := &callLog{}
	fixture := &serviceFixture{
		log:        log,
		store:      newFakeStore(log),
		tokens:     newFakeTokenStore(log),
		authorizer: &fakeAuthorizer{log: log},
		validator:  &fakeValidator{log: log},
		nextID:     uuid.New(),
	}

	service, err := NewService(ServiceConfig{
		Store:      fixture.store,
		Tokens:     fixture.tokens,
		Authorizer: fixture.authorizer,
		Validator:  fixture.validator,
		IDProvider: fixedIDProvider{id: fixture.nextID},
	})
	if err != nil {
		t.Fatalf("unexpected service construction error: %v", err)
	}
	fixture.service = service
	return fixture
}

func testUser() authz.AuthenticatedUser {
	return authz.AuthenticatedUser{
		PersonID: uuid.New(),
		Email:    "author@example.com",
		Roles:    []string{authz.RoleAuthor},
	}
}

func validRequest() Request {
	return Request{Title: "Distributed clocks", Content: "Drift happens."}
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	log := &callLog{}
	complete := ServiceConfig{
		Store:      newFakeStore(log),
		Tokens:     newFakeTokenStore(log),
		Authorizer: &fakeAuthorizer{log: log},
		Validator:  &fakeValidator{log: log},
		IDProvider: fixedIDProvider{id: uuid.New()},
	}

	mutations := map[string]func(cfg *ServiceConfig){
		"missing store":       func(cfg *ServiceConfig) { cfg.Store = nil },
		"missing token store": func(cfg *ServiceConfig) { cfg.Tokens = nil },
		"missing authorizer":  func(cfg *ServiceConfig) { cfg.Authorizer = nil },
		"missing validator":   func(cfg *ServiceConfig) { cfg.Validator = nil },
		"missing id provider": func(cfg *ServiceConfig) { cfg.IDProvider = nil },
	}
	for name, mutate := range mutations {
		cfg := complete
		mutate(&cfg)
		if _, err := NewService(cfg); err == nil {
			t.Fatalf("%s: expected construction error", name)
		}
	}

	if _, err := NewService(complete); err != nil {
		t.Fatalf("complete config should construct: %v", err)
	}
}

func TestCreateDeniesBeforeTouchingAnything(t *testing.T) {
	fixture := newServiceFixture(t)
	fixture.authorizer.denyCreate = true

	_, err := fixture.service.Create(context.Background(), validRequest(), uuid.New(), uuid.New(), testUser())
	if !errors.Is(err, authz.ErrDenied) {
		t.Fatalf("expected authz.ErrDenied, got %v", err)
	}
	assertCalls(t, fixture.log, "authz.create")
}

func TestCreateRejectsInvalidPayloadBeforeTokenLookup(t *testing.T) {
	fixture := newServiceFixture(t)
	fixture.validator.err = errors.New("title too long")

	_, err := fixture.service.Create(context.Background(), Request{}, uuid.New(), uuid.New(), testUser())
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertCalls(t, fixture.log, "authz.create", "validate")
}

func TestCreateShortCircuitsOnExistingToken(t *testing.T) {
	fixture := newServiceFixture(t)
	user := testUser()
	tokenValue := uuid.New()

	key, err := idempotency.NewTokenKey(user.PersonID, tokenValue)
	if err != nil {
		t.Fatalf("unexpected token key error: %v", err)
	}
	fixture.tokens.tokens[key] = idempotency.CreationID{Kind: idempotency.KindArticle, EntityID: uuid.New()}

	_, err = fixture.service.Create(context.Background(), validRequest(), uuid.New(), tokenValue, user)
	if !errors.Is(err, idempotency.ErrTokenExists) {
		t.Fatalf("expected idempotency.ErrTokenExists, got %v", err)
	}
	assertCalls(t, fixture.log, "authz.create", "validate", "tokens.find")
}

func TestCreateInsertsArticleBeforeLinkingToken(t *testing.T) {
	fixture := newServiceFixture(t)
	user := testUser()
	authorID := uuid.New()

	createdID, err := fixture.service.Create(context.Background(), validRequest(), authorID, uuid.New(), user)
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if createdID != fixture.nextID {
		t.Fatalf("expected id %s from provider, got %s", fixture.nextID, createdID)
	}
	assertCalls(t, fixture.log, "authz.create", "validate", "tokens.find", "store.insert", "tokens.create")

	stored, ok := fixture.store.articles[createdID]
	if !ok {
		t.Fatal("article was not persisted")
	}
	if stored.AuthorID != authorID.String() {
		t.Fatalf("author mismatch: got %s want %s", stored.AuthorID, authorID)
	}
	if stored.Version != 0 {
		t.Fatalf("fresh article should start at version 0, got %d", stored.Version)
	}
}

func TestCreateSurfacesTokenRaceAfterInsert(t *testing.T) {
	fixture := newServiceFixture(t)
	fixture.tokens.createErr = idempotency.ErrTokenExists

	_, err := fixture.service.Create(context.Background(), validRequest(), uuid.New(), uuid.New(), testUser())
	if !errors.Is(err, idempotency.ErrTokenExists) {
		t.Fatalf("expected idempotency.ErrTokenExists, got %v", err)
	}
	assertCalls(t, fixture.log, "authz.create", "validate", "tokens.find", "store.insert", "tokens.create")
}

func TestUpdateDeniesBeforeValidation(t *testing.T) {
	fixture := newServiceFixture(t)
	fixture.authorizer.denyUpdate = true

	err := fixture.service.UpdateByID(context.Background(), uuid.New(), validRequest(), 0, testUser())
	if !errors.Is(err, authz.ErrDenied) {
		t.Fatalf("expected authz.ErrDenied, got %v", err)
	}
	assertCalls(t, fixture.log, "authz.update")
}

func TestUpdateReportsNotFound(t *testing.T) {
	fixture := newServiceFixture(t)

	err := fixture.service.UpdateByID(context.Background(), uuid.New(), validRequest(), 0, testUser())
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected storage.ErrNotFound, got %v", err)
	}
}

func TestUpdateRejectsStaleVersionWithoutWriting(t *testing.T) {
	fixture := newServiceFixture(t)
	articleID := uuid.New()
	fixture.store.articles[articleID] = &Article{
		ID:       articleID.String(),
		Title:    "Old",
		Content:  "Old body",
		AuthorID: uuid.New().String(),
		Version:  3,
	}

	err := fixture.service.UpdateByID(context.Background(), articleID, validRequest(), 2, testUser())
	if !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("expected storage.ErrVersionConflict, got %v", err)
	}
	assertCalls(t, fixture.log, "authz.update", "validate", "store.find")
}

func TestUpdateAdvancesVersionByOne(t *testing.T) {
	fixture := newServiceFixture(t)
	articleID := uuid.New()
	fixture.store.articles[articleID] = &Article{
		ID:       articleID.String(),
		Title:    "Old",
		Content:  "Old body",
		AuthorID: uuid.New().String(),
		Version:  3,
	}

	request := Request{Title: "New", Content: "New body"}
	if err := fixture.service.UpdateByID(context.Background(), articleID, request, 3, testUser()); err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}

	stored := fixture.store.articles[articleID]
	if stored.Version != 4 {
		t.Fatalf("expected version 4, got %d", stored.Version)
	}
	if stored.Title != "New" || stored.Content != "New body" {
		t.Fatalf("content was not applied: %+v", stored)
	}
}

func TestUpdateMapsStoreLevelConflict(t *testing.T) {
	fixture := newServiceFixture(t)
	articleID := uuid.New()
	fixture.store.articles[articleID] = &Article{
		ID:      articleID.String(),
		Version: 1,
	}
	fixture.store.updateErr = storage.ErrVersionConflict

	err := fixture.service.UpdateByID(context.Background(), articleID, validRequest(), 1, testUser())
	if !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("expected storage.ErrVersionConflict, got %v", err)
	}
}

func TestDeleteRemovesEntityThenToken(t *testing.T) {
	fixture := newServiceFixture(t)
	articleID := uuid.New()
	fixture.store.articles[articleID] = &Article{ID: articleID.String()}

	if err := fixture.service.DeleteByID(context.Background(), articleID, testUser()); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	assertCalls(t, fixture.log, "authz.delete", "store.remove", "tokens.delete")
}

func TestDeleteDeniedTouchesNothing(t *testing.T) {
	fixture := newServiceFixture(t)
	fixture.authorizer.denyDelete = true

	err := fixture.service.DeleteByID(context.Background(), uuid.New(), testUser())
	if !errors.Is(err, authz.ErrDenied) {
		t.Fatalf("expected authz.ErrDenied, got %v", err)
	}
	assertCalls(t, fixture.log, "authz.delete")
}

func TestDeleteOfAbsentArticleSucceeds(t *testing.T) {
	fixture := newServiceFixture(t)

	if err := fixture.service.DeleteByID(context.Background(), uuid.New(), testUser()); err != nil {
		t.Fatalf("deleting an absent article should not fail: %v", err)
	}
}

func TestAddTopicRequiresExistingArticle(t *testing.T) {
	fixture := newServiceFixture(t)

	err := fixture.service.AddTopic(context.Background(), uuid.New(), uuid.New(), testUser())
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected storage.ErrNotFound, got %v", err)
	}
}

func TestAddTopicLinksAfterAuthorization(t *testing.T) {
	fixture := newServiceFixture(t)
	articleID := uuid.New()
	fixture.store.articles[articleID] = &Article{ID: articleID.String()}

	if err := fixture.service.AddTopic(context.Background(), uuid.New(), articleID, testUser()); err != nil {
		t.Fatalf("unexpected add topic error: %v", err)
	}
	assertCalls(t, fixture.log, "authz.update", "store.find", "store.add_topic")
}

func TestFindByIDSkipsAuthorizationAndValidation(t *testing.T) {
	fixture := newServiceFixture(t)
	articleID := uuid.New()
	fixture.store.articles[articleID] = &Article{ID: articleID.String(), Title: "Readable"}

	article, err := fixture.service.FindByID(context.Background(), articleID)
	if err != nil {
		t.Fatalf("unexpected find error: %v", err)
	}
	if article.Title != "Readable" {
		t.Fatalf("unexpected article: %+v", article)
	}
	assertCalls(t, fixture.log, "store.find")
}

func TestServiceErrorExposesOperationCode(t *testing.T) {
	fixture := newServiceFixture(t)
	fixture.authorizer.denyCreate = true

	_, err := fixture.service.Create(context.Background(), validRequest(), uuid.New(), uuid.New(), testUser())

	var coded *ServiceError
	if !errors.As(err, &coded) {
		t.Fatalf("expected *ServiceError, got %T", err)
	}
	if coded.Code() != "articles.create.authorization_denied" {
		t.Fatalf("unexpected code %q", coded.Code())
	}
}

func assertCalls(t *testing.T, log *callLog, expected ...string) {
	t.Helper()
	if len(log.calls) != len(expected) {
		t.Fatalf("call sequence mismatch: got %v want %v", log.calls, expected)
	}
	for i, call := range expected {
		if log.calls[i] != call {
			t.Fatalf("call sequence mismatch at %d: got %v want %v", i, log.calls, expected)
		}
	}
}
