// models/game.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// Game is a template competitions are created from. Its bounds are validated
// only at competition-creation time; the lifecycle engine never reads them
// again except MinPlayers for the auto-start check.
type Game struct {
	ID               string `json:"id" gorm:"primaryKey"`
	Name             string `json:"name" gorm:"not null"`
	ShortDescription string `json:"short_description"`
	Genre            string `json:"genre"`
	MainLogoURL      string `json:"main_logo_url"`
	PlayLink         string `json:"play_link"`

	// Competition bounds
	MinPlayers  int   `json:"min_players" gorm:"not null;default:2"`
	MaxPlayers  int   `json:"max_players" gorm:"not null;default:100"`
	MinPlayTime int   `json:"min_play_time" gorm:"default:1"`  // minutes
	MaxPlayTime int   `json:"max_play_time" gorm:"default:60"` // minutes
	MinEntryFee int64 `json:"min_entry_fee" gorm:"default:0"`  // minor currency units

	Status    string         `json:"status" gorm:"default:'active'"` // active | retired
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
