package storage

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound indicates the target row does not exist.
	ErrNotFound = errors.New("storage: entity not found")
	// ErrVersionConflict indicates a conditional update lost against a newer version.
	ErrVersionConflict = errors.New("storage: version conflict")
)

// IsUniqueViolation reports whether err is a duplicate-key failure. GORM translates
// these to ErrDuplicatedKey when the dialector supports it; the message check covers
// SQLite drivers that surface the raw constraint error instead.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
