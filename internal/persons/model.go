package persons

import (
	"strings"
	"time"
)

// Person maps a verified primary email to the canonical person id and roles used
// by the authorization gates.
type Person struct {
	ID           string    `gorm:"column:person_id;primaryKey;size:36;not null"`
	PrimaryEmail string    `gorm:"column:primary_email;size:320;not null;uniqueIndex"`
	DisplayName  string    `gorm:"column:display_name;size:320"`
	Roles        string    `gorm:"column:roles;size:190;not null;default:''"`
	LastSeenAt   time.Time `gorm:"column:last_seen_at;autoUpdateTime"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing persons.
func (Person) TableName() string {
	return "persons"
}

// RoleList splits the stored comma-separated roles.
func (p Person) RoleList() []string {
	if p.Roles == "" {
		return nil
	}
	parts := strings.Split(p.Roles, ",")
	roles := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			roles = append(roles, trimmed)
		}
	}
	return roles
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
