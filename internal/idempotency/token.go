package idempotency

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ResourceKind tags the kind of entity a creation produced.
type ResourceKind string

const (
	// KindArticle marks creations performed by the article service.
	KindArticle ResourceKind = "article"
	// KindTopic marks creations performed by the topic service.
	KindTopic ResourceKind = "topic"
)

var (
	// ErrInvalidTokenKey indicates a token key with a missing client or token value.
	ErrInvalidTokenKey = errors.New("idempotency: invalid token key")
	// ErrInvalidCreationID indicates a creation identity with a missing kind or entity id.
	ErrInvalidCreationID = errors.New("idempotency: invalid creation id")
)

// TokenKey identifies an idempotency token: the client that supplied it plus the
// caller-chosen unique value.
type TokenKey struct {
	ClientID   uuid.UUID
	TokenValue uuid.UUID
}

// NewTokenKey validates both halves of the key.
func NewTokenKey(clientID, tokenValue uuid.UUID) (TokenKey, error) {
	if clientID == uuid.Nil {
		return TokenKey{}, fmt.Errorf("%w: empty client id", ErrInvalidTokenKey)
	}
	if tokenValue == uuid.Nil {
		return TokenKey{}, fmt.Errorf("%w: empty token value", ErrInvalidTokenKey)
	}
	return TokenKey{ClientID: clientID, TokenValue: tokenValue}, nil
}

// CreationID links a token to the one creation event it protects.
type CreationID struct {
	Kind     ResourceKind
	EntityID uuid.UUID
}

// NewCreationID validates and returns a CreationID.
func NewCreationID(kind ResourceKind, entityID uuid.UUID) (CreationID, error) {
	if kind == "" {
		return CreationID{}, fmt.Errorf("%w: empty kind", ErrInvalidCreationID)
	}
	if entityID == uuid.Nil {
		return CreationID{}, fmt.Errorf("%w: empty entity id", ErrInvalidCreationID)
	}
	return CreationID{Kind: kind, EntityID: entityID}, nil
}

// Record is the persisted token row.
type Record struct {
	ClientID         string    `gorm:"column:client_id;primaryKey;size:36;not null"`
	TokenValue       string    `gorm:"column:token_value;primaryKey;size:36;not null"`
	CreationKind     string    `gorm:"column:creation_kind;size:32;not null;index:idx_tokens_creation,priority:1"`
	CreationEntityID string    `gorm:"column:creation_entity_id;size:36;not null;index:idx_tokens_creation,priority:2"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Record) TableName() string {
	return "idempotency_tokens"
}

// CreationID reconstructs the creation identity stored on the record.
func (r Record) CreationID() CreationID {
	entityID, err := uuid.Parse(r.CreationEntityID)
	if err != nil {
		entityID = uuid.Nil
	}
	return CreationID{Kind: ResourceKind(r.CreationKind), EntityID: entityID}
}
