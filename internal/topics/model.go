package topics

import "time"

// Topic is the persisted topic row, versioned the same way articles are.
type Topic struct {
	ID        string    `gorm:"column:topic_id;primaryKey;size:36;not null"`
	Name      string    `gorm:"column:name;size:100;not null;uniqueIndex"`
	Version   int32     `gorm:"column:version;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index:idx_topics_created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Topic) TableName() string {
	return "topics"
}

// Request is the validated write payload for creating or updating a topic.
type Request struct {
	Name string `json:"name" validate:"required,max=100"`
}
