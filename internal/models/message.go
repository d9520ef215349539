package models

import "time"

// Message is an internal direct message between two accounts.
type Message struct {
	ID          string     `db:"id" json:"id"`
	SenderID    string     `db:"sender_id" json:"sender_id"`
	RecipientID string     `db:"recipient_id" json:"recipient_id"`
	Subject     string     `db:"subject" json:"subject"`
	Body        string     `db:"body" json:"body"`
	Read        bool       `db:"read" json:"read"`
	ReadAt      *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// MessageDetail joins sender/recipient names for mailbox views.
type MessageDetail struct {
	Message
	SenderName    string `db:"sender_name" json:"sender_name"`
	RecipientName string `db:"recipient_name" json:"recipient_name"`
}

// MessageFilter scopes mailbox queries.
type MessageFilter struct {
	UserID   string
	Box      string // "inbox" or "sent"
	Unread   *bool
	Page     int
	PageSize int
}
