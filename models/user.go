package models

import (
	"time"

	"gorm.io/gorm"
)

// PlayerProfile is a local snapshot of user identity needed for
// denormalization (participant usernames, friend lists). Identity itself is
// owned by the gateway; this service only mirrors what it is told.
type PlayerProfile struct {
	ID        string         `json:"id" gorm:"primaryKey"`
	UserID    string         `json:"user_id" gorm:"uniqueIndex;not null"` // gateway user id
	Username  string         `json:"username" gorm:"index;not null"`
	AvatarURL *string        `json:"avatar_url,omitempty"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Friendship status values.
const (
	FriendshipStatusPending  = "pending"
	FriendshipStatusAccepted = "accepted"
)

// Friendship links two users. One row per pair, created by the requester.
type Friendship struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	RequesterID string     `json:"requester_id" gorm:"not null;index;uniqueIndex:idx_friend_pair"`
	AddresseeID string     `json:"addressee_id" gorm:"not null;index;uniqueIndex:idx_friend_pair"`
	Status      string     `json:"status" gorm:"type:varchar(16);default:'pending'"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}
