// services/friend_service.go
package services

import (
	"errors"
	"log"
	"time"

	"skill-arena/models"
	"skill-arena/realtime"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FriendService covers the social surface: player profiles, friendships and
// private-competition invites.
type FriendService struct {
	DB  *gorm.DB
	Hub *realtime.Hub // may be nil
}

func NewFriendService(db *gorm.DB, hub *realtime.Hub) *FriendService {
	return &FriendService{DB: db, Hub: hub}
}

// UpsertMyProfile handles PUT /profile. The gateway owns identity; this just
// mirrors the display fields other features denormalize.
func (s *FriendService) UpsertMyProfile(c *fiber.Ctx) error {
	type Req struct {
		Username  string  `json:"username" validate:"required"`
		AvatarURL *string `json:"avatar_url"`
	}
	userID := c.Locals("user_id").(string)

	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.Username == "" {
		return c.Status(400).JSON(fiber.Map{"error": "username is required"})
	}

	var profile models.PlayerProfile
	err := s.DB.Where("user_id = ?", userID).
		Assign(models.PlayerProfile{Username: req.Username, AvatarURL: req.AvatarURL}).
		Attrs(models.PlayerProfile{ID: uuid.NewString()}).
		FirstOrCreate(&profile).Error
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to save profile"})
	}
	return c.JSON(profile)
}

// GetProfile handles GET /profile/:user_id.
func (s *FriendService) GetProfile(c *fiber.Ctx) error {
	var profile models.PlayerProfile
	if err := s.DB.First(&profile, "user_id = ?", c.Params("user_id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "profile not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(profile)
}

// RequestFriend handles POST /friends/requests.
func (s *FriendService) RequestFriend(c *fiber.Ctx) error {
	type Req struct {
		UserID string `json:"user_id" validate:"required"`
	}
	userID := c.Locals("user_id").(string)

	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.UserID == "" || req.UserID == userID {
		return c.Status(400).JSON(fiber.Map{"error": "user_id must reference another user"})
	}

	// One row per pair regardless of direction.
	var existing models.Friendship
	err := s.DB.Where(
		"(requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?)",
		userID, req.UserID, req.UserID, userID,
	).First(&existing).Error
	if err == nil {
		return c.Status(409).JSON(fiber.Map{"error": "friendship already exists", "status": existing.Status})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	friendship := &models.Friendship{
		ID:          uuid.NewString(),
		RequesterID: userID,
		AddresseeID: req.UserID,
		Status:      models.FriendshipStatusPending,
	}
	if err := s.DB.Create(friendship).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB insert failed"})
	}
	return c.Status(201).JSON(friendship)
}

// AcceptFriend handles POST /friends/requests/:id/accept. Only the addressee
// may accept, and only while pending.
func (s *FriendService) AcceptFriend(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	now := time.Now()

	res := s.DB.Model(&models.Friendship{}).
		Where("id = ? AND addressee_id = ? AND status = ?",
			c.Params("id"), userID, models.FriendshipStatusPending).
		Updates(map[string]interface{}{
			"status":      models.FriendshipStatusAccepted,
			"accepted_at": &now,
		})
	if res.Error != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB update failed"})
	}
	if res.RowsAffected == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "no pending request to accept"})
	}
	return c.JSON(fiber.Map{"message": "friend request accepted"})
}

// ListFriends handles GET /friends: accepted friendships with the other
// side's profile resolved.
func (s *FriendService) ListFriends(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var friendships []models.Friendship
	err := s.DB.Where(
		"(requester_id = ? OR addressee_id = ?) AND status = ?",
		userID, userID, models.FriendshipStatusAccepted,
	).Find(&friendships).Error
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	type Friend struct {
		UserID    string     `json:"user_id"`
		Username  string     `json:"username"`
		AvatarURL *string    `json:"avatar_url,omitempty"`
		Since     *time.Time `json:"since,omitempty"`
	}
	friends := make([]Friend, 0, len(friendships))
	for _, f := range friendships {
		otherID := f.RequesterID
		if otherID == userID {
			otherID = f.AddresseeID
		}
		friend := Friend{UserID: otherID, Username: otherID, Since: f.AcceptedAt}
		var profile models.PlayerProfile
		if err := s.DB.First(&profile, "user_id = ?", otherID).Error; err == nil {
			friend.Username = profile.Username
			friend.AvatarURL = profile.AvatarURL
		}
		friends = append(friends, friend)
	}
	return c.JSON(friends)
}

// ListPendingRequests handles GET /friends/requests: requests awaiting this
// user's answer.
func (s *FriendService) ListPendingRequests(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var pending []models.Friendship
	err := s.DB.Where("addressee_id = ? AND status = ?", userID, models.FriendshipStatusPending).
		Order("created_at DESC").
		Find(&pending).Error
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(pending)
}

// InviteToCompetition handles POST /competitions/:code/invites. Only the
// creator invites, only to a private UPCOMING competition.
func (s *FriendService) InviteToCompetition(c *fiber.Ctx) error {
	type Req struct {
		UserID string `json:"user_id" validate:"required"`
	}
	userID := c.Locals("user_id").(string)

	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.UserID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "user_id is required"})
	}

	var comp models.Competition
	if err := s.DB.First(&comp, "code = ?", c.Params("code")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return writeDomainError(c, models.ErrCompetitionNotFound, "not found")
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	if comp.CreatorID != userID {
		return writeDomainError(c, models.ErrForbidden, "invite failed")
	}
	if comp.Status != models.CompetitionStatusUpcoming {
		return writeDomainError(c, models.ErrCompetitionNotJoinable, "invite failed")
	}

	invite := &models.CompetitionInvite{
		ID:            uuid.NewString(),
		CompetitionID: comp.ID,
		UserID:        req.UserID,
		InviterID:     userID,
	}
	if err := s.DB.Create(invite).Error; err != nil {
		// Unique index on (competition_id, user_id): re-inviting is a no-op.
		return c.Status(409).JSON(fiber.Map{"error": "user already invited"})
	}

	if s.Hub != nil {
		s.Hub.NotifyInvite(req.UserID, comp.Code, userID)
	}
	log.Printf("✅ Invite sent for %s: %s → %s", comp.Code, userID, req.UserID)
	return c.Status(201).JSON(invite)
}

// ListMyInvites handles GET /invites: open invites for the current user.
func (s *FriendService) ListMyInvites(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var invites []models.CompetitionInvite
	err := s.DB.Where("user_id = ? AND consumed_at IS NULL", userID).
		Order("created_at DESC").
		Find(&invites).Error
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(invites)
}
