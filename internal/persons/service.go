package persons

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sakuuj/blogsite/internal/authz"
	"github.com/sakuuj/blogsite/internal/storage"
)

// ErrInvalidEmail indicates the verified claims did not contain a usable email.
var ErrInvalidEmail = errors.New("persons: invalid email")

// ServiceConfig describes the dependencies for person resolution.
type ServiceConfig struct {
	Database    *gorm.DB
	IDProvider  storage.IDProvider
	Clock       func() time.Time
	AdminEmails []string
}

// Service resolves verified bearer-token emails to person rows, creating a row on
// first sight. Its output is the AuthenticatedUser value the write services gate on.
type Service struct {
	db     *gorm.DB
	ids    storage.IDProvider
	now    func() time.Time
	admins map[string]struct{}
	cache  sync.Map
}

// NewService constructs the person service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("persons: database handle is required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("persons: id provider is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	admins := make(map[string]struct{}, len(cfg.AdminEmails))
	for _, email := range cfg.AdminEmails {
		if normalized := normalizeEmail(email); normalized != "" {
			admins[normalized] = struct{}{}
		}
	}
	return &Service{
		db:     cfg.Database,
		ids:    cfg.IDProvider,
		now:    clock,
		admins: admins,
	}, nil
}

// Resolve returns the AuthenticatedUser for the verified email, creating the
// person row when the email has not been seen before.
func (s *Service) Resolve(ctx context.Context, email, displayName string) (authz.AuthenticatedUser, error) {
	normalized := normalizeEmail(email)
	if normalized == "" {
		return authz.AuthenticatedUser{}, ErrInvalidEmail
	}

	if cached, ok := s.cache.Load(normalized); ok {
		if user, ok := cached.(authz.AuthenticatedUser); ok {
			return user, nil
		}
	}

	var person Person
	err := s.db.WithContext(ctx).
		Where("primary_email = ?", normalized).
		First(&person).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		person, err = s.register(ctx, normalized, displayName)
		if err != nil {
			return authz.AuthenticatedUser{}, err
		}
	} else if err != nil {
		return authz.AuthenticatedUser{}, err
	} else {
		updates := map[string]any{"last_seen_at": s.now()}
		if trimmed := strings.TrimSpace(displayName); trimmed != "" && trimmed != person.DisplayName {
			updates["display_name"] = trimmed
		}
		_ = s.db.WithContext(ctx).Model(&Person{}).
			Where("primary_email = ?", normalized).
			Updates(updates).Error
	}

	personID, err := uuid.Parse(person.ID)
	if err != nil {
		return authz.AuthenticatedUser{}, fmt.Errorf("persons: malformed person id %q: %w", person.ID, err)
	}

	user := authz.AuthenticatedUser{
		PersonID: personID,
		Email:    normalized,
		Roles:    person.RoleList(),
	}
	s.cache.Store(normalized, user)
	return user, nil
}

func (s *Service) register(ctx context.Context, email, displayName string) (Person, error) {
	personID, err := s.ids.NewID()
	if err != nil {
		return Person{}, err
	}

	roles := []string{authz.RoleAuthor}
	if _, ok := s.admins[email]; ok {
		roles = append(roles, authz.RoleAdmin)
	}

	person := Person{
		ID:           personID.String(),
		PrimaryEmail: email,
		DisplayName:  strings.TrimSpace(displayName),
		Roles:        strings.Join(roles, ","),
		LastSeenAt:   s.now(),
	}
	err = s.db.WithContext(ctx).Create(&person).Error
	if storage.IsUniqueViolation(err) {
		// A concurrent request registered the same email; read the winner.
		var existing Person
		if readErr := s.db.WithContext(ctx).
			Where("primary_email = ?", email).
			First(&existing).Error; readErr != nil {
			return Person{}, readErr
		}
		return existing, nil
	}
	if err != nil {
		return Person{}, err
	}
	return person, nil
}
