package model

import "time"

type Classification string

const (
	ClassificationGuest      Classification = "guest"
	ClassificationRegistered Classification = "registered"
)

// Contact is one known phone number. Phone is the unique key; Email is
// nullable until captured by the email gate.
type Contact struct {
	ID             uint64         `gorm:"primaryKey" json:"id"`
	Phone          string         `gorm:"type:varchar(50);uniqueIndex;not null" json:"phone"`
	Name           string         `gorm:"type:varchar(100)" json:"name"`
	Classification Classification `gorm:"type:varchar(32);index;not null" json:"classification"`
	Email          *string        `gorm:"type:varchar(255)" json:"email,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// Ticket is the local record of a successfully submitted ticket. It
// snapshots the contact at submission time and is immutable afterwards.
type Ticket struct {
	ID             uint64         `gorm:"primaryKey" json:"id"`
	Phone          string         `gorm:"type:varchar(50);index;not null" json:"phone"`
	Name           string         `gorm:"type:varchar(100)" json:"name"`
	Email          string         `gorm:"type:varchar(255);not null" json:"email"`
	TopicID        int            `gorm:"index" json:"topic_id"`
	Body           string         `gorm:"type:text" json:"body"`
	ExternalID     *string        `gorm:"type:varchar(64)" json:"external_id,omitempty"`
	Classification Classification `gorm:"type:varchar(32)" json:"classification"`

	CreatedAt time.Time `json:"created_at"`
}
