// services/competition_service.go
package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"

	"skill-arena/models"
	"skill-arena/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// CompetitionService covers the CRUD surface around the lifecycle engine:
// creating competitions from game templates, listing and detail views.
type CompetitionService struct {
	DB *gorm.DB
}

func NewCompetitionService(db *gorm.DB) *CompetitionService {
	return &CompetitionService{DB: db}
}

// generateCode builds a shareable, human-readable competition code from the
// title plus a random suffix, retrying on the (unlikely) collision.
func (s *CompetitionService) generateCode(title string) (string, error) {
	base := slug.Make(title)
	if len(base) > 24 {
		base = base[:24]
	}
	for attempt := 0; attempt < 5; attempt++ {
		buf := make([]byte, 3)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		code := base + "-" + strings.ToUpper(hex.EncodeToString(buf))
		var count int64
		if err := s.DB.Model(&models.Competition{}).Where("code = ?", code).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique code for %q", title)
}

// CreateCompetition handles POST /competitions (multipart form).
func (s *CompetitionService) CreateCompetition(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	gameID := c.FormValue("game_id")
	title := c.FormValue("title")
	privacy := strings.ToUpper(c.FormValue("privacy"))
	entryFeeStr := c.FormValue("entry_fee")
	maxPlayersStr := c.FormValue("max_players")
	minutesStr := c.FormValue("minutes_to_play")

	if gameID == "" || title == "" {
		return c.Status(400).JSON(fiber.Map{"error": "game_id and title are required"})
	}
	if privacy == "" {
		privacy = models.CompetitionPrivacyPublic
	}
	if privacy != models.CompetitionPrivacyPublic && privacy != models.CompetitionPrivacyPrivate {
		return c.Status(400).JSON(fiber.Map{"error": "privacy must be PUBLIC or PRIVATE"})
	}

	entryFee, err := strconv.ParseInt(entryFeeStr, 10, 64)
	if err != nil || entryFee < 0 {
		return c.Status(400).JSON(fiber.Map{"error": "entry_fee must be a non-negative integer (minor units)"})
	}

	var game models.Game
	if err := s.DB.First(&game, "id = ? AND status = ?", gameID, "active").Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "game_id not found"})
	}

	if entryFee < game.MinEntryFee {
		return c.Status(400).JSON(fiber.Map{
			"error": fmt.Sprintf("entry_fee must be at least %d for this game", game.MinEntryFee),
		})
	}

	maxPlayers := game.MaxPlayers
	if maxPlayersStr != "" {
		n, err := strconv.Atoi(maxPlayersStr)
		if err != nil || n < game.MinPlayers || n > game.MaxPlayers {
			return c.Status(400).JSON(fiber.Map{
				"error": fmt.Sprintf("max_players must be between %d and %d", game.MinPlayers, game.MaxPlayers),
			})
		}
		maxPlayers = n
	}

	minutes := game.MinPlayTime
	if minutesStr != "" {
		n, err := strconv.Atoi(minutesStr)
		if err != nil || n < game.MinPlayTime || n > game.MaxPlayTime {
			return c.Status(400).JSON(fiber.Map{
				"error": fmt.Sprintf("minutes_to_play must be between %d and %d", game.MinPlayTime, game.MaxPlayTime),
			})
		}
		minutes = n
	}

	code, err := s.generateCode(title)
	if err != nil {
		log.Printf("❌ Code generation failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to generate competition code"})
	}

	var coverURL string
	if cover, err := c.FormFile("cover_photo"); err == nil && cover.Size > 0 {
		if !utils.R2Enabled() {
			return c.Status(503).JSON(fiber.Map{"error": "cover uploads are not configured"})
		}
		ext := filepath.Ext(cover.Filename)
		if ext == "" {
			ext = ".jpg"
		}
		key := "competitions/covers/" + uuid.NewString() + ext
		url, err := utils.UploadFileToR2(cover, key)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "failed to upload cover photo"})
		}
		coverURL = url
	}

	comp := &models.Competition{
		ID:            uuid.NewString(),
		Code:          code,
		Title:         title,
		GameID:        gameID,
		CreatorID:     userID,
		Privacy:       privacy,
		Status:        models.CompetitionStatusUpcoming,
		EntryFee:      entryFee,
		MaxPlayers:    maxPlayers,
		MinutesToPlay: minutes,
		CoverPhotoURL: coverURL,
	}
	if err := s.DB.Create(comp).Error; err != nil {
		log.Printf("❌ DB insert failed for competition %s: %v", code, err)
		return c.Status(500).JSON(fiber.Map{"error": "DB insert failed"})
	}

	log.Printf("✅ Competition created: %s (%s) by %s", comp.Title, comp.Code, userID)
	s.DB.Preload("Game").First(comp, "id = ?", comp.ID)
	return c.Status(201).JSON(comp)
}

func (s *CompetitionService) attachCounts(comp *models.Competition) {
	s.DB.Model(&models.Participant{}).
		Where("competition_id = ?", comp.ID).Count(&comp.ParticipantsCount)
	s.DB.Model(&models.Participant{}).
		Where("competition_id = ? AND ready = ?", comp.ID, true).Count(&comp.ReadyCount)
}

// GetCompetitionByCode handles GET /competitions/:code.
func (s *CompetitionService) GetCompetitionByCode(c *fiber.Ctx) error {
	var comp models.Competition
	err := s.DB.Preload("Game").
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("score DESC, joined_at ASC")
		}).
		First(&comp, "code = ?", c.Params("code")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return writeDomainError(c, models.ErrCompetitionNotFound, "not found")
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	if comp.Privacy == models.CompetitionPrivacyPrivate {
		userID := c.Locals("user_id").(string)
		if !s.mayViewPrivate(&comp, userID) {
			return writeDomainError(c, models.ErrCompetitionNotFound, "not found")
		}
	}

	s.attachCounts(&comp)
	return c.JSON(comp)
}

// mayViewPrivate: creator, participants and invitees see private
// competitions; everyone else gets a 404 to avoid leaking their existence.
func (s *CompetitionService) mayViewPrivate(comp *models.Competition, userID string) bool {
	if comp.CreatorID == userID {
		return true
	}
	var count int64
	s.DB.Model(&models.Participant{}).
		Where("competition_id = ? AND user_id = ?", comp.ID, userID).Count(&count)
	if count > 0 {
		return true
	}
	s.DB.Model(&models.CompetitionInvite{}).
		Where("competition_id = ? AND user_id = ?", comp.ID, userID).Count(&count)
	return count > 0
}

// ListOpenCompetitions handles GET /competitions: public UPCOMING
// competitions, newest first.
func (s *CompetitionService) ListOpenCompetitions(c *fiber.Ctx) error {
	limit := 50
	if v := c.QueryInt("limit"); v > 0 && v <= 200 {
		limit = v
	}

	query := s.DB.Preload("Game").
		Where("privacy = ? AND status = ?", models.CompetitionPrivacyPublic, models.CompetitionStatusUpcoming)
	if gameID := c.Query("game_id"); gameID != "" {
		query = query.Where("game_id = ?", gameID)
	}

	var comps []models.Competition
	if err := query.Order("created_at DESC").Limit(limit).Find(&comps).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	for i := range comps {
		s.attachCounts(&comps[i])
	}
	return c.JSON(comps)
}

// ListMyCompetitions handles GET /competitions/mine: everything the user
// created or joined, any status.
func (s *CompetitionService) ListMyCompetitions(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var comps []models.Competition
	err := s.DB.Preload("Game").
		Where("creator_id = ? OR id IN (?)",
			userID,
			s.DB.Model(&models.Participant{}).Select("competition_id").Where("user_id = ?", userID),
		).
		Order("created_at DESC").
		Find(&comps).Error
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	for i := range comps {
		s.attachCounts(&comps[i])
	}
	return c.JSON(comps)
}
