// services/lifecycle_service.go
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

// LifecycleService owns competition state transitions, entry-fee collection,
// prize-pool accumulation and settlement. Every mutating operation runs as a
// single DB transaction: either all of its writes land or none do. Status
// changes are guarded UPDATEs checking the expected current status, so
// concurrent operations on one competition can never move it backward or
// apply an effect twice.
type LifecycleService struct {
	DB     *gorm.DB
	FeeBps int                 // platform cut on entry fees, basis points
	Live   *LeaderboardService // redis live standings, may be nil
	Hub    *realtime.Hub       // websocket broadcast, may be nil
}

func NewLifecycleService(db *gorm.DB, feeBps int, live *LeaderboardService, hub *realtime.Hub) *LifecycleService {
	if feeBps <= 0 || feeBps >= 10000 {
		feeBps = DefaultPlatformFeeBps
	}
	return &LifecycleService{DB: db, FeeBps: feeBps, Live: live, Hub: hub}
}

// JoinResult is the outcome of a successful (or repeated) join.
type JoinResult struct {
	AlreadyJoined bool  `json:"already_joined"`
	PoolIncrement int64 `json:"pool_increment,omitempty"`
}

// ReadyResult reports roster readiness after a ready-up call.
type ReadyResult struct {
	ReadyCount  int64 `json:"ready_count"`
	Total       int64 `json:"total"`
	MinRequired int   `json:"min_required"`
	Started     bool  `json:"started"`
}

func findCompetitionByCode(tx *gorm.DB, code string) (*models.Competition, error) {
	var comp models.Competition
	if err := tx.First(&comp, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrCompetitionNotFound
		}
		return nil, err
	}
	return &comp, nil
}

// Join adds a user to an UPCOMING competition: debit the entry fee, grow the
// prize pool by the fee-adjusted increment, create the roster record. The
// debit and the pool increment never happen independently of each other.
// A second join by the same user is not an error; it reports AlreadyJoined
// and mutates nothing.
func (s *LifecycleService) Join(code, userID string) (*JoinResult, error) {
	res := &JoinResult{}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		comp, err := findCompetitionByCode(tx, code)
		if err != nil {
			return err
		}

		var existing models.Participant
		err = tx.Where("competition_id = ? AND user_id = ?", comp.ID, userID).First(&existing).Error
		if err == nil {
			res.AlreadyJoined = true
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if comp.Status != models.CompetitionStatusUpcoming {
			return models.ErrCompetitionNotJoinable
		}

		if comp.Privacy == models.CompetitionPrivacyPrivate && comp.CreatorID != userID {
			// Consuming the invite and checking for it is one statement.
			invite := tx.Model(&models.CompetitionInvite{}).
				Where("competition_id = ? AND user_id = ? AND consumed_at IS NULL", comp.ID, userID).
				Update("consumed_at", time.Now())
			if invite.Error != nil {
				return invite.Error
			}
			if invite.RowsAffected == 0 {
				return models.ErrPrivateCompetition
			}
		}

		// The guarded pool increment is the first write: it takes the
		// competition row lock, so concurrent joins and settlement order
		// behind it and the capacity count below is stable. Rolled back with
		// everything else when a later precondition fails.
		inc := PoolIncrement(comp.EntryFee, s.FeeBps)
		pool := tx.Model(&models.Competition{}).
			Where("id = ? AND status = ?", comp.ID, models.CompetitionStatusUpcoming).
			Update("prize_pool", gorm.Expr("prize_pool + ?", inc))
		if pool.Error != nil {
			return pool.Error
		}
		if pool.RowsAffected == 0 {
			// Status changed under us; roll everything back.
			return models.ErrCompetitionNotJoinable
		}

		var count int64
		if err := tx.Model(&models.Participant{}).
			Where("competition_id = ?", comp.ID).Count(&count).Error; err != nil {
			return err
		}
		if comp.MaxPlayers > 0 && count >= int64(comp.MaxPlayers) {
			return models.ErrCompetitionFull
		}

		if comp.EntryFee > 0 {
			if _, err := Debit(tx, userID, comp.EntryFee, models.LedgerTypeEntryFee, map[string]any{
				"competition_id":   comp.ID,
				"competition_code": comp.Code,
			}); err != nil {
				return err
			}
		}

		participant := &models.Participant{
			ID:            uuid.NewString(),
			CompetitionID: comp.ID,
			UserID:        userID,
			Username:      lookupUsername(tx, userID),
			Paid:          true,
		}
		if err := tx.Create(participant).Error; err != nil {
			return err
		}
		res.PoolIncrement = inc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ReadyUp marks a participant ready and re-evaluates the sole automatic
// transition: when the roster meets the game's minimum and everyone is
// ready, the competition flips UPCOMING → ONGOING inside the same
// transaction. There is no timer; the last straggler's call starts the game.
func (s *LifecycleService) ReadyUp(code, userID string) (*ReadyResult, error) {
	res := &ReadyResult{}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		comp, err := findCompetitionByCode(tx, code)
		if err != nil {
			return err
		}
		if comp.Status != models.CompetitionStatusUpcoming {
			return models.ErrCompetitionStarted
		}

		marked := tx.Model(&models.Participant{}).
			Where("competition_id = ? AND user_id = ?", comp.ID, userID).
			Update("ready", true)
		if marked.Error != nil {
			return marked.Error
		}
		if marked.RowsAffected == 0 {
			return models.ErrNotJoined
		}

		if err := tx.Model(&models.Participant{}).
			Where("competition_id = ?", comp.ID).Count(&res.Total).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Participant{}).
			Where("competition_id = ? AND ready = ?", comp.ID, true).Count(&res.ReadyCount).Error; err != nil {
			return err
		}

		var game models.Game
		if err := tx.First(&game, "id = ?", comp.GameID).Error; err != nil {
			return err
		}
		res.MinRequired = game.MinPlayers

		if res.Total >= int64(game.MinPlayers) && res.ReadyCount == res.Total {
			now := time.Now()
			start := tx.Model(&models.Competition{}).
				Where("id = ? AND status = ?", comp.ID, models.CompetitionStatusUpcoming).
				Updates(map[string]interface{}{
					"status":     models.CompetitionStatusOngoing,
					"started_at": &now,
				})
			if start.Error != nil {
				return start.Error
			}
			res.Started = start.RowsAffected > 0
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.Started && s.Hub != nil {
		s.Hub.BroadcastStatus(code, models.CompetitionStatusOngoing)
	}
	return res, nil
}

// SubmitScore overwrites the participant's score while the competition is
// ONGOING. Last write wins; a later, lower submission replaces the earlier
// value (see DESIGN.md for the resubmission-policy decision).
func (s *LifecycleService) SubmitScore(code, userID string, score int64) error {
	if score < 0 {
		return models.ErrInvalidAmount
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		comp, err := findCompetitionByCode(tx, code)
		if err != nil {
			return err
		}
		if comp.Status != models.CompetitionStatusOngoing {
			return models.ErrCompetitionNotActive
		}
		now := time.Now()
		updated := tx.Model(&models.Participant{}).
			Where("competition_id = ? AND user_id = ?", comp.ID, userID).
			Updates(map[string]interface{}{
				"score":              score,
				"score_submitted_at": &now,
			})
		if updated.Error != nil {
			return updated.Error
		}
		if updated.RowsAffected == 0 {
			return models.ErrNotJoined
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publishStandings(code, userID, score)
	return nil
}

// Complete settles the competition: ranks are written back (score
// descending, earlier join wins ties), the pool is split across the top
// three, winners' wallets are credited with PRIZE entries and the status
// flips to COMPLETED — all in one transaction, so no partial settlement is
// ever observable. Only the creator may settle, exactly once.
func (s *LifecycleService) Complete(code, userID string) (*models.SettlementResult, error) {
	var result *models.SettlementResult
	var comp *models.Competition
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		comp, err = findCompetitionByCode(tx, code)
		if err != nil {
			return err
		}
		if comp.CreatorID != userID {
			return models.ErrForbidden
		}
		if comp.Status == models.CompetitionStatusCompleted {
			return models.ErrAlreadyCompleted
		}
		if comp.Status == models.CompetitionStatusCanceled {
			return models.ErrCompetitionNotActive
		}

		// The status flip is the first write: it takes the competition row
		// lock and closes the join window, so no entry fee can land in the
		// pool after the settlement reads below.
		now := time.Now()
		done := tx.Model(&models.Competition{}).
			Where("id = ? AND status IN ?", comp.ID, []string{
				models.CompetitionStatusUpcoming,
				models.CompetitionStatusOngoing,
			}).
			Updates(map[string]interface{}{
				"status":   models.CompetitionStatusCompleted,
				"ended_at": &now,
			})
		if done.Error != nil {
			return done.Error
		}
		if done.RowsAffected == 0 {
			// A concurrent Complete or Cancel won the race.
			var current models.Competition
			if err := tx.First(&current, "id = ?", comp.ID).Error; err != nil {
				return err
			}
			if current.Status == models.CompetitionStatusCanceled {
				return models.ErrCompetitionNotActive
			}
			return models.ErrAlreadyCompleted
		}

		// Re-read under the lock: a join that committed between the first
		// read and the flip has its pool increment and roster row included.
		if err := tx.First(comp, "id = ?", comp.ID).Error; err != nil {
			return err
		}

		var participants []models.Participant
		if err := tx.Where("competition_id = ?", comp.ID).
			Order("score DESC, joined_at ASC").
			Find(&participants).Error; err != nil {
			return err
		}

		for i := range participants {
			rank := i + 1
			if err := tx.Model(&models.Participant{}).
				Where("id = ?", participants[i].ID).
				Update("rank", rank).Error; err != nil {
				return err
			}
			participants[i].Rank = &rank
		}

		first, second, third := PrizeBreakdown(comp.PrizePool, len(participants))
		prizes := []int64{first, second, third}

		winners := make([]models.SettlementWinner, 0, 3)
		for i, p := range participants {
			if i >= len(prizes) {
				break
			}
			if prizes[i] <= 0 {
				continue
			}
			if _, err := Credit(tx, p.UserID, prizes[i], models.LedgerTypePrize, map[string]any{
				"competition_id":    comp.ID,
				"competition_title": comp.Title,
				"rank":              i + 1,
			}); err != nil {
				return err
			}
			winners = append(winners, models.SettlementWinner{
				Rank:     i + 1,
				UserID:   p.UserID,
				Username: p.Username,
				Score:    p.Score,
				Prize:    prizes[i],
			})
		}

		result = &models.SettlementResult{
			Winners:        winners,
			TotalPrizePool: comp.PrizePool,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.Hub != nil {
		s.Hub.BroadcastStatus(code, models.CompetitionStatusCompleted)
		s.Hub.BroadcastSettlement(code, result)
	}
	if s.Live != nil {
		if err := s.Live.Clear(code); err != nil {
			log.Printf("⚠️ failed to clear live standings for %s: %v", code, err)
		}
	}
	return result, nil
}

// Cancel aborts an UPCOMING competition and makes every paid participant
// whole with a full entry-fee refund (the platform returns its cut). Reached
// from the creator's cancel endpoint and from the expiry job.
func (s *LifecycleService) Cancel(code, reason string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		comp, err := findCompetitionByCode(tx, code)
		if err != nil {
			return err
		}
		now := time.Now()
		canceled := tx.Model(&models.Competition{}).
			Where("id = ? AND status = ?", comp.ID, models.CompetitionStatusUpcoming).
			Updates(map[string]interface{}{
				"status":      models.CompetitionStatusCanceled,
				"canceled_at": &now,
				"prize_pool":  0,
			})
		if canceled.Error != nil {
			return canceled.Error
		}
		if canceled.RowsAffected == 0 {
			return models.ErrCompetitionStarted
		}

		var participants []models.Participant
		if err := tx.Where("competition_id = ? AND paid = ?", comp.ID, true).
			Find(&participants).Error; err != nil {
			return err
		}
		for _, p := range participants {
			if comp.EntryFee <= 0 {
				break
			}
			if _, err := Credit(tx, p.UserID, comp.EntryFee, models.LedgerTypeRefund, map[string]any{
				"competition_id": comp.ID,
				"reason":         reason,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func lookupUsername(tx *gorm.DB, userID string) string {
	var profile models.PlayerProfile
	if err := tx.First(&profile, "user_id = ?", userID).Error; err != nil {
		return userID
	}
	return profile.Username
}

// publishStandings pushes the fresh score into redis and broadcasts the live
// top of the board. Both are best-effort; the DB is the source of truth.
func (s *LifecycleService) publishStandings(code, userID string, score int64) {
	if s.Live != nil {
		if err := s.Live.SetScore(code, userID, lookupUsername(s.DB, userID), score); err != nil {
			log.Printf("⚠️ live standings update failed for %s: %v", code, err)
		}
	}
	if s.Hub == nil {
		return
	}
	standings, err := s.TopStandings(code, 10)
	if err != nil {
		log.Printf("⚠️ could not load standings for broadcast on %s: %v", code, err)
		return
	}
	s.Hub.BroadcastStandings(code, standings)
}

// TopStandings returns the current top-n by score, redis first with a DB
// fallback.
func (s *LifecycleService) TopStandings(code string, n int) ([]realtime.Standing, error) {
	if s.Live != nil {
		if standings, err := s.Live.Top(code, n); err == nil && len(standings) > 0 {
			return standings, nil
		}
	}
	comp, err := findCompetitionByCode(s.DB, code)
	if err != nil {
		return nil, err
	}
	var participants []models.Participant
	if err := s.DB.Where("competition_id = ?", comp.ID).
		Order("score DESC, joined_at ASC").
		Limit(n).
		Find(&participants).Error; err != nil {
		return nil, err
	}
	standings := make([]realtime.Standing, len(participants))
	for i, p := range participants {
		standings[i] = realtime.Standing{
			Position: i + 1,
			UserID:   p.UserID,
			Username: p.Username,
			Score:    p.Score,
		}
	}
	return standings, nil
}

// --- Fiber handlers ---

// JoinCompetition handles POST /competitions/:code/join.
func (s *LifecycleService) JoinCompetition(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	res, err := s.Join(c.Params("code"), userID)
	if err != nil {
		return writeDomainError(c, err, "join failed")
	}
	if res.AlreadyJoined {
		return c.JSON(fiber.Map{"message": "already joined", "already_joined": true})
	}
	return c.Status(201).JSON(fiber.Map{
		"message":        "joined",
		"already_joined": false,
		"pool_increment": res.PoolIncrement,
	})
}

// ReadyUpHandler handles POST /competitions/:code/ready.
func (s *LifecycleService) ReadyUpHandler(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	res, err := s.ReadyUp(c.Params("code"), userID)
	if err != nil {
		return writeDomainError(c, err, "ready-up failed")
	}
	return c.JSON(res)
}

// SubmitScoreHandler handles POST /competitions/:code/score.
func (s *LifecycleService) SubmitScoreHandler(c *fiber.Ctx) error {
	type Req struct {
		Score int64 `json:"score"`
	}
	userID := c.Locals("user_id").(string)
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.Score < 0 {
		return c.Status(400).JSON(fiber.Map{"error": "score must be non-negative"})
	}
	if err := s.SubmitScore(c.Params("code"), userID, req.Score); err != nil {
		return writeDomainError(c, err, "score submission failed")
	}
	return c.JSON(fiber.Map{"message": "score recorded"})
}

// CompleteCompetition handles POST /competitions/:code/complete.
func (s *LifecycleService) CompleteCompetition(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	result, err := s.Complete(c.Params("code"), userID)
	if err != nil {
		return writeDomainError(c, err, "settlement failed")
	}
	return c.JSON(fiber.Map{"message": "competition completed", "results": result})
}

// CancelCompetition handles POST /competitions/:code/cancel (creator only).
func (s *LifecycleService) CancelCompetition(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	code := c.Params("code")

	comp, err := findCompetitionByCode(s.DB, code)
	if err != nil {
		return writeDomainError(c, err, "cancel failed")
	}
	if comp.CreatorID != userID {
		return writeDomainError(c, models.ErrForbidden, "cancel failed")
	}
	if err := s.Cancel(code, "canceled by creator"); err != nil {
		return writeDomainError(c, err, "cancel failed")
	}
	if s.Hub != nil {
		s.Hub.BroadcastStatus(code, models.CompetitionStatusCanceled)
	}
	return c.JSON(fiber.Map{"message": "competition canceled, entry fees refunded"})
}

// GetStandings handles GET /competitions/:code/leaderboard.
func (s *LifecycleService) GetStandings(c *fiber.Ctx) error {
	n := 50
	if v := c.QueryInt("limit"); v > 0 && v <= 200 {
		n = v
	}
	standings, err := s.TopStandings(c.Params("code"), n)
	if err != nil {
		return writeDomainError(c, err, "failed to fetch standings")
	}
	return c.JSON(fiber.Map{"standings": standings})
}
