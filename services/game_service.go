// services/game_service.go
package services

import (
	"errors"
	"log"
	"path/filepath"

	"skill-arena/models"
	"skill-arena/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GameService manages the game templates competitions are created from.
// Create/update/retire are admin-gated at the route level.
type GameService struct {
	DB *gorm.DB
}

func NewGameService(db *gorm.DB) *GameService {
	return &GameService{DB: db}
}

// CreateGame handles POST /admin/games (multipart form).
func (s *GameService) CreateGame(c *fiber.Ctx) error {
	type Req struct {
		Name             string `json:"name" form:"name"`
		ShortDescription string `json:"short_description" form:"short_description"`
		Genre            string `json:"genre" form:"genre"`
		PlayLink         string `json:"play_link" form:"play_link"`
		MinPlayers       int    `json:"min_players" form:"min_players"`
		MaxPlayers       int    `json:"max_players" form:"max_players"`
		MinPlayTime      int    `json:"min_play_time" form:"min_play_time"`
		MaxPlayTime      int    `json:"max_play_time" form:"max_play_time"`
		MinEntryFee      int64  `json:"min_entry_fee" form:"min_entry_fee"`
	}

	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	if req.Name == "" {
		return c.Status(400).JSON(fiber.Map{"error": "name is required"})
	}
	if req.MinPlayers < 2 {
		req.MinPlayers = 2
	}
	if req.MaxPlayers < req.MinPlayers {
		return c.Status(400).JSON(fiber.Map{"error": "max_players must be >= min_players"})
	}
	if req.MinPlayTime <= 0 {
		req.MinPlayTime = 1
	}
	if req.MaxPlayTime < req.MinPlayTime {
		return c.Status(400).JSON(fiber.Map{"error": "max_play_time must be >= min_play_time"})
	}
	if req.MinEntryFee < 0 {
		return c.Status(400).JSON(fiber.Map{"error": "min_entry_fee must be non-negative"})
	}

	var logoURL string
	if logo, err := c.FormFile("main_logo"); err == nil && logo.Size > 0 && utils.R2Enabled() {
		ext := filepath.Ext(logo.Filename)
		if ext == "" {
			ext = ".png"
		}
		url, err := utils.UploadFileToR2(logo, "games/logos/"+uuid.NewString()+ext)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "failed to upload logo"})
		}
		logoURL = url
	}

	game := &models.Game{
		ID:               uuid.NewString(),
		Name:             req.Name,
		ShortDescription: req.ShortDescription,
		Genre:            req.Genre,
		MainLogoURL:      logoURL,
		PlayLink:         req.PlayLink,
		MinPlayers:       req.MinPlayers,
		MaxPlayers:       req.MaxPlayers,
		MinPlayTime:      req.MinPlayTime,
		MaxPlayTime:      req.MaxPlayTime,
		MinEntryFee:      req.MinEntryFee,
		Status:           "active",
	}
	if err := s.DB.Create(game).Error; err != nil {
		log.Printf("❌ DB insert failed for game %s: %v", req.Name, err)
		return c.Status(500).JSON(fiber.Map{"error": "DB insert failed"})
	}
	log.Printf("✅ Game created: %s (%s)", game.Name, game.ID)
	return c.Status(201).JSON(game)
}

// ListGames handles GET /games: active templates only.
func (s *GameService) ListGames(c *fiber.Ctx) error {
	var games []models.Game
	query := s.DB.Where("status = ?", "active")
	if genre := c.Query("genre"); genre != "" {
		query = query.Where("genre = ?", genre)
	}
	if err := query.Order("name ASC").Find(&games).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(games)
}

// GetGameByID handles GET /games/:id.
func (s *GameService) GetGameByID(c *fiber.Ctx) error {
	var game models.Game
	if err := s.DB.First(&game, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return writeDomainError(c, models.ErrGameNotFound, "not found")
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(game)
}

// UpdateGame handles PATCH /admin/games/:id. Only the provided fields move.
func (s *GameService) UpdateGame(c *fiber.Ctx) error {
	var game models.Game
	if err := s.DB.First(&game, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return writeDomainError(c, models.ErrGameNotFound, "not found")
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	var updates map[string]interface{}
	if err := c.BodyParser(&updates); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}

	allowed := map[string]bool{
		"name": true, "short_description": true, "genre": true, "play_link": true,
		"min_players": true, "max_players": true,
		"min_play_time": true, "max_play_time": true,
		"min_entry_fee": true, "status": true,
	}
	filtered := map[string]interface{}{}
	for k, v := range updates {
		if allowed[k] {
			filtered[k] = v
		}
	}
	if len(filtered) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "no updatable fields provided"})
	}

	if err := s.DB.Model(&game).Updates(filtered).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB update failed"})
	}
	return c.JSON(game)
}

// RetireGame handles DELETE /admin/games/:id. Soft delete; existing
// competitions keep their reference.
func (s *GameService) RetireGame(c *fiber.Ctx) error {
	res := s.DB.Model(&models.Game{}).
		Where("id = ?", c.Params("id")).
		Update("status", "retired")
	if res.Error != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB update failed"})
	}
	if res.RowsAffected == 0 {
		return writeDomainError(c, models.ErrGameNotFound, "not found")
	}
	return c.JSON(fiber.Map{"message": "game retired"})
}
