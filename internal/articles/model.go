package articles

import "time"

// Article is the persisted article row. The version column starts at zero and is
// advanced by exactly one on every successful conditional update; timestamps are
// owned by the store, never by callers.
type Article struct {
	ID        string    `gorm:"column:article_id;primaryKey;size:36;not null"`
	Title     string    `gorm:"column:title;size:200;not null"`
	Content   string    `gorm:"column:content;type:text;not null"`
	AuthorID  string    `gorm:"column:author_id;size:36;not null;index"`
	Version   int32     `gorm:"column:version;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index:idx_articles_created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Article) TableName() string {
	return "articles"
}

// ArticleTopic links an article to a topic. The composite primary key makes the
// relation naturally idempotent: re-adding an existing link is a no-op insert.
type ArticleTopic struct {
	ArticleID string    `gorm:"column:article_id;primaryKey;size:36;not null"`
	TopicID   string    `gorm:"column:topic_id;primaryKey;size:36;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (ArticleTopic) TableName() string {
	return "article_topics"
}

// Request is the validated write payload for creating or updating an article.
type Request struct {
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content" validate:"required"`
}
