package database

import (
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sakuuj/blogsite/internal/articles"
	"github.com/sakuuj/blogsite/internal/idempotency"
	"github.com/sakuuj/blogsite/internal/persons"
	"github.com/sakuuj/blogsite/internal/topics"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
// TranslateError turns driver duplicate-key failures into gorm.ErrDuplicatedKey,
// which the token and person stores rely on for insert-if-absent semantics.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&articles.Article{},
		&articles.ArticleTopic{},
		&topics.Topic{},
		&idempotency.Record{},
		&persons.Person{},
		&migrationRecord{},
	); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}
