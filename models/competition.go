// models/competition.go
package models

import (
	"time"
)

// Competition lifecycle statuses. Transitions are strictly forward:
// UPCOMING → ONGOING → COMPLETED, with CANCELED reachable only from
// UPCOMING. COMPLETED and CANCELED are terminal.
const (
	CompetitionStatusUpcoming  = "UPCOMING"
	CompetitionStatusOngoing   = "ONGOING"
	CompetitionStatusCompleted = "COMPLETED"
	CompetitionStatusCanceled  = "CANCELED"
)

// Competition privacy values.
const (
	CompetitionPrivacyPublic  = "PUBLIC"
	CompetitionPrivacyPrivate = "PRIVATE"
)

// Competition is one paid match instance created from a Game template.
// Monetary fields are minor currency units. PrizePool only ever grows while
// UPCOMING and is frozen the moment the status leaves UPCOMING.
type Competition struct {
	ID            string `json:"id" gorm:"primaryKey"`
	Code          string `json:"code" gorm:"uniqueIndex;not null"`
	Title         string `json:"title" gorm:"not null"`
	GameID        string `json:"game_id" gorm:"not null;index"`
	CreatorID     string `json:"creator_id" gorm:"not null;index"`
	Privacy       string `json:"privacy" gorm:"type:varchar(16);default:'PUBLIC'"`
	Status        string `json:"status" gorm:"type:varchar(16);default:'UPCOMING';index"`
	EntryFee      int64  `json:"entry_fee" gorm:"not null"`
	PrizePool     int64  `json:"prize_pool" gorm:"not null;default:0"`
	MaxPlayers    int    `json:"max_players" gorm:"not null"`
	MinutesToPlay int    `json:"minutes_to_play" gorm:"not null"`
	CoverPhotoURL string `json:"cover_photo_url"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	CanceledAt *time.Time `json:"canceled_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time  `json:"updated_at" gorm:"autoUpdateTime"`

	Game         *Game         `json:"game,omitempty" gorm:"foreignKey:GameID"`
	Participants []Participant `json:"participants,omitempty" gorm:"foreignKey:CompetitionID"`

	// Calculated for list/detail responses, never stored.
	ParticipantsCount int64 `json:"participants_count" gorm:"-"`
	ReadyCount        int64 `json:"ready_count" gorm:"-"`
}

// Participant is one user's membership in one competition. JoinedAt breaks
// score ties at settlement, earlier join first.
type Participant struct {
	ID               string     `json:"id" gorm:"primaryKey"`
	CompetitionID    string     `json:"competition_id" gorm:"not null;uniqueIndex:idx_competition_user"`
	UserID           string     `json:"user_id" gorm:"not null;index;uniqueIndex:idx_competition_user"`
	Username         string     `json:"username"`
	Score            int64      `json:"score" gorm:"not null;default:0"`
	ScoreSubmittedAt *time.Time `json:"score_submitted_at,omitempty"`
	Rank             *int       `json:"rank,omitempty"`
	Ready            bool       `json:"ready" gorm:"not null;default:false"`
	Paid             bool       `json:"paid" gorm:"not null;default:false"`
	JoinedAt         time.Time  `json:"joined_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// CompetitionInvite grants one user entry to a private competition.
// ConsumedAt is set atomically when the invite is spent on join.
type CompetitionInvite struct {
	ID            string     `json:"id" gorm:"primaryKey"`
	CompetitionID string     `json:"competition_id" gorm:"not null;uniqueIndex:idx_invite_user"`
	UserID        string     `json:"user_id" gorm:"not null;index;uniqueIndex:idx_invite_user"`
	InviterID     string     `json:"inviter_id" gorm:"not null"`
	ConsumedAt    *time.Time `json:"consumed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

// SettlementWinner is one paid rank in a settlement response.
type SettlementWinner struct {
	Rank     int    `json:"rank"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Score    int64  `json:"score"`
	Prize    int64  `json:"prize"`
}

// SettlementResult is what Complete returns: every paid winner plus the pool
// that was distributed. Prizes always sum exactly to TotalPrizePool when at
// least two players competed.
type SettlementResult struct {
	Winners        []SettlementWinner `json:"winners"`
	TotalPrizePool int64              `json:"total_prize_pool"`
}
