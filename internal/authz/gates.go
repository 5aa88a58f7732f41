package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sakuuj/blogsite/internal/storage"
)

// AuthorLookup reads the author of a stored article. Implemented by the article
// store; the gate uses it for resource-level checks and never mutates anything.
type AuthorLookup interface {
	AuthorID(ctx context.Context, articleID uuid.UUID) (uuid.UUID, error)
}

// ArticleGate authorizes article mutations: any authenticated author may create;
// update and delete require the caller to own the article or hold the admin role.
type ArticleGate struct {
	authors AuthorLookup
}

// NewArticleGate constructs the gate over the provided author lookup.
func NewArticleGate(authors AuthorLookup) (*ArticleGate, error) {
	if authors == nil {
		return nil, fmt.Errorf("authz: author lookup is required")
	}
	return &ArticleGate{authors: authors}, nil
}

// AuthorizeCreate permits any authenticated user with a known identity.
func (g *ArticleGate) AuthorizeCreate(_ context.Context, user AuthenticatedUser) error {
	if user.PersonID == uuid.Nil {
		return ErrDenied
	}
	return nil
}

// AuthorizeUpdate permits the article's author or an admin.
func (g *ArticleGate) AuthorizeUpdate(ctx context.Context, articleID uuid.UUID, user AuthenticatedUser) error {
	return g.authorizeOwnership(ctx, articleID, user)
}

// AuthorizeDelete permits the article's author or an admin.
func (g *ArticleGate) AuthorizeDelete(ctx context.Context, articleID uuid.UUID, user AuthenticatedUser) error {
	return g.authorizeOwnership(ctx, articleID, user)
}

func (g *ArticleGate) authorizeOwnership(ctx context.Context, articleID uuid.UUID, user AuthenticatedUser) error {
	if user.PersonID == uuid.Nil {
		return ErrDenied
	}
	if user.HasRole(RoleAdmin) {
		return nil
	}
	authorID, err := g.authors.AuthorID(ctx, articleID)
	if errors.Is(err, storage.ErrNotFound) {
		// Absence is decided later in the write path; denying here would leak
		// existence information to unauthorized callers.
		return nil
	}
	if err != nil {
		return err
	}
	if authorID != user.PersonID {
		return ErrDenied
	}
	return nil
}

// TopicGate authorizes topic mutations. Topics are shared vocabulary, so every
// write requires the admin role.
type TopicGate struct{}

// NewTopicGate constructs the topic gate.
func NewTopicGate() *TopicGate {
	return &TopicGate{}
}

// AuthorizeCreate permits admins only.
func (g *TopicGate) AuthorizeCreate(_ context.Context, user AuthenticatedUser) error {
	return requireAdmin(user)
}

// AuthorizeUpdate permits admins only.
func (g *TopicGate) AuthorizeUpdate(_ context.Context, _ uuid.UUID, user AuthenticatedUser) error {
	return requireAdmin(user)
}

// AuthorizeDelete permits admins only.
func (g *TopicGate) AuthorizeDelete(_ context.Context, _ uuid.UUID, user AuthenticatedUser) error {
	return requireAdmin(user)
}

func requireAdmin(user AuthenticatedUser) error {
	if user.PersonID == uuid.Nil || !user.HasRole(RoleAdmin) {
		return ErrDenied
	}
	return nil
}
