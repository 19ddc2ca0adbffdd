package store

import (
	"encoding/json"
	"time"
)

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	DeactivatedAt         *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Portfolio is one stored portfolio: draft content plus publication state.
// Content is the serialized persistable document (title + sections); Version
// increments on every content save and backs the editor's optimistic
// concurrency check.
type Portfolio struct {
	ID          string
	UserID      string
	Title       string
	Slug        string
	Content     json.RawMessage
	Version     int
	Published   bool
	PublishedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PublishRecord is one entry of a portfolio's publish history.
type PublishRecord struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
}
