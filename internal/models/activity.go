package models

import "time"

// ActivityType names an event published to the activity topic.
type ActivityType string

const (
	ActivityAdGenerated     ActivityType = "ad_generated"
	ActivityAdDeleted       ActivityType = "ad_deleted"
	ActivityInstagramPosted ActivityType = "instagram_posted"
)

// Activity is a single archived client event.
type Activity struct {
	ID          int          `json:"id,omitempty" db:"id"`
	Type        ActivityType `json:"type" db:"type"`
	AdID        string       `json:"ad_id,omitempty" db:"ad_id"`
	AdType      string       `json:"ad_type,omitempty" db:"ad_type"`
	ProductName string       `json:"product_name,omitempty" db:"product_name"`
	PostType    string       `json:"post_type,omitempty" db:"post_type"`
	OccurredAt  time.Time    `json:"occurred_at" db:"occurred_at"`
}
