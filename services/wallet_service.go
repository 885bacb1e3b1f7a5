// services/wallet_service.go
package services

import (
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"skill-arena/models"
	"skill-arena/pkg/momo"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WalletService owns wallet balances and the ledger. The Debit/Credit
// primitives are tx-scoped so the lifecycle engine can fold them into its own
// transactions; the Fiber handlers cover the user-facing wallet surface.
type WalletService struct {
	DB      *gorm.DB
	Gateway *momo.Client // mobile-money gateway, may be nil in tests
}

func NewWalletService(db *gorm.DB, gateway *momo.Client) *WalletService {
	return &WalletService{DB: db, Gateway: gateway}
}

func ledgerMeta(meta map[string]any) string {
	if len(meta) == 0 {
		return ""
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return ""
	}
	return string(raw)
}

// EnsureWallet returns the user's wallet, creating an empty one on first
// reference.
func EnsureWallet(tx *gorm.DB, userID string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := tx.Where("user_id = ?", userID).
		Attrs(models.Wallet{ID: uuid.NewString()}).
		FirstOrCreate(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// Debit removes amount from the user's wallet and appends an ENTRY_FEE /
// WITHDRAWAL / TRANSFER ledger entry. The balance guard and the subtraction
// are a single UPDATE statement, so a concurrent debit can never drive the
// balance negative.
func Debit(tx *gorm.DB, userID string, amount int64, entryType models.LedgerType, meta map[string]any) (*models.LedgerEntry, error) {
	if amount <= 0 {
		return nil, models.ErrInvalidAmount
	}
	wallet, err := EnsureWallet(tx, userID)
	if err != nil {
		return nil, err
	}
	res := tx.Model(&models.Wallet{}).
		Where("id = ? AND balance >= ?", wallet.ID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, models.ErrInsufficientFunds
	}
	entry := &models.LedgerEntry{
		ID:       uuid.NewString(),
		WalletID: wallet.ID,
		UserID:   userID,
		Type:     entryType,
		Amount:   -amount,
		Metadata: ledgerMeta(meta),
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// Credit adds amount to the user's wallet and appends a PRIZE / DEPOSIT /
// REFUND / TRANSFER ledger entry.
func Credit(tx *gorm.DB, userID string, amount int64, entryType models.LedgerType, meta map[string]any) (*models.LedgerEntry, error) {
	if amount <= 0 {
		return nil, models.ErrInvalidAmount
	}
	wallet, err := EnsureWallet(tx, userID)
	if err != nil {
		return nil, err
	}
	res := tx.Model(&models.Wallet{}).
		Where("id = ?", wallet.ID).
		Update("balance", gorm.Expr("balance + ?", amount))
	if res.Error != nil {
		return nil, res.Error
	}
	entry := &models.LedgerEntry{
		ID:       uuid.NewString(),
		WalletID: wallet.ID,
		UserID:   userID,
		Type:     entryType,
		Amount:   amount,
		Metadata: ledgerMeta(meta),
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// Transfer moves amount between two wallets atomically, recording a TRANSFER
// entry on each side.
func (s *WalletService) Transfer(fromUserID, toUserID string, amount int64, note string) error {
	if amount <= 0 {
		return models.ErrInvalidAmount
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		meta := map[string]any{"from": fromUserID, "to": toUserID, "note": note}
		if _, err := Debit(tx, fromUserID, amount, models.LedgerTypeTransfer, meta); err != nil {
			return err
		}
		_, err := Credit(tx, toUserID, amount, models.LedgerTypeTransfer, meta)
		return err
	})
}

// --- Fiber handlers ---

// GetMyWallet returns the authenticated user's wallet, creating it lazily.
func (s *WalletService) GetMyWallet(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	wallet, err := EnsureWallet(s.DB, userID)
	if err != nil {
		log.Printf("DB error fetching wallet for %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch wallet"})
	}
	return c.JSON(wallet)
}

// GetMyLedger returns the user's ledger entries, newest first.
func (s *WalletService) GetMyLedger(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	query := s.DB.Where("user_id = ?", userID)
	if t := c.Query("type"); t != "" {
		query = query.Where("type = ?", t)
	}

	var entries []models.LedgerEntry
	if err := query.Order("created_at DESC").Limit(limit).Find(&entries).Error; err != nil {
		log.Printf("DB error fetching ledger for %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch ledger"})
	}
	return c.JSON(entries)
}

// InitiateDeposit starts a mobile-money topup. The gateway answers with a
// transaction ref; the deposit worker credits the wallet once the provider
// confirms. Nothing touches the balance here.
func (s *WalletService) InitiateDeposit(c *fiber.Ctx) error {
	type Req struct {
		PhoneNumber string `json:"phone_number" validate:"required"`
		Amount      int64  `json:"amount" validate:"required,gt=0"`
	}
	userID := c.Locals("user_id").(string)

	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.PhoneNumber == "" || req.Amount <= 0 {
		return c.Status(400).JSON(fiber.Map{"error": "phone_number and a positive amount are required"})
	}
	if s.Gateway == nil {
		return c.Status(503).JSON(fiber.Map{"error": "payment gateway not configured"})
	}

	ref, err := s.Gateway.RequestDeposit(c.Context(), req.PhoneNumber, req.Amount)
	if err != nil {
		log.Printf("❌ Gateway deposit request failed for %s: %v", userID, err)
		return c.Status(502).JSON(fiber.Map{"error": "payment gateway rejected the request"})
	}

	deposit := &models.Deposit{
		ID:          uuid.NewString(),
		UserID:      userID,
		PhoneNumber: req.PhoneNumber,
		Amount:      req.Amount,
		ProviderRef: ref,
		Status:      models.DepositStatusPending,
	}
	if err := s.DB.Create(deposit).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to record deposit"})
	}
	return c.Status(201).JSON(deposit)
}

// Withdraw debits the wallet and records a WITHDRAWAL entry. The actual
// payout to the mobile-money account is the gateway's job; a failed payout
// is reconciled with a REFUND by support tooling.
func (s *WalletService) Withdraw(c *fiber.Ctx) error {
	type Req struct {
		PhoneNumber string `json:"phone_number" validate:"required"`
		Amount      int64  `json:"amount" validate:"required,gt=0"`
	}
	userID := c.Locals("user_id").(string)

	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}

	var entry *models.LedgerEntry
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var txErr error
		entry, txErr = Debit(tx, userID, req.Amount, models.LedgerTypeWithdrawal, map[string]any{
			"phone_number": req.PhoneNumber,
		})
		return txErr
	})
	if err != nil {
		return writeDomainError(c, err, "withdrawal failed")
	}

	if s.Gateway != nil {
		if err := s.Gateway.RequestPayout(c.Context(), req.PhoneNumber, req.Amount); err != nil {
			// Balance already moved; flag for reconciliation rather than
			// silently reversing.
			log.Printf("⚠️ Payout request failed for %s (entry %s): %v", userID, entry.ID, err)
		}
	}
	return c.JSON(fiber.Map{"message": "withdrawal recorded", "entry": entry})
}

// TransferToFriend moves funds to another user. Both sides must already be
// accepted friends.
func (s *WalletService) TransferToFriend(c *fiber.Ctx) error {
	type Req struct {
		ToUserID string `json:"to_user_id" validate:"required"`
		Amount   int64  `json:"amount" validate:"required,gt=0"`
		Note     string `json:"note"`
	}
	userID := c.Locals("user_id").(string)

	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.ToUserID == "" || req.ToUserID == userID {
		return c.Status(400).JSON(fiber.Map{"error": "to_user_id must reference another user"})
	}

	var friendship models.Friendship
	err := s.DB.Where(
		"((requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?)) AND status = ?",
		userID, req.ToUserID, req.ToUserID, userID, models.FriendshipStatusAccepted,
	).First(&friendship).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(403).JSON(fiber.Map{"error": "transfers are only allowed between friends"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	if err := s.Transfer(userID, req.ToUserID, req.Amount, req.Note); err != nil {
		return writeDomainError(c, err, "transfer failed")
	}
	return c.JSON(fiber.Map{"message": "transfer complete", "amount": req.Amount, "to": req.ToUserID})
}

// writeDomainError maps enumerated domain errors to their stable code and
// HTTP status; anything else is a 500.
func writeDomainError(c *fiber.Ctx, err error, fallback string) error {
	if models.IsDomainError(err) {
		return c.Status(models.ErrorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
			"code":  models.ErrorCode(err),
		})
	}
	log.Printf("internal error: %v", err)
	return c.Status(500).JSON(fiber.Map{"error": fallback})
}

// ConfirmDeposit credits a pending deposit's wallet exactly once. Used by
// the reconciliation worker; the pending→confirmed guard makes it idempotent
// under concurrent polls.
func (s *WalletService) ConfirmDeposit(providerRef string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var dep models.Deposit
		if err := tx.First(&dep, "provider_ref = ?", providerRef).Error; err != nil {
			return err
		}
		now := time.Now()
		res := tx.Model(&models.Deposit{}).
			Where("id = ? AND status = ?", dep.ID, models.DepositStatusPending).
			Updates(map[string]interface{}{
				"status":       models.DepositStatusConfirmed,
				"confirmed_at": &now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil // already confirmed or failed
		}
		_, err := Credit(tx, dep.UserID, dep.Amount, models.LedgerTypeDeposit, map[string]any{
			"provider_ref": dep.ProviderRef,
			"phone_number": dep.PhoneNumber,
		})
		return err
	})
}

// FailDeposit marks a pending deposit as failed without touching the wallet.
func (s *WalletService) FailDeposit(providerRef string) error {
	return s.DB.Model(&models.Deposit{}).
		Where("provider_ref = ? AND status = ?", providerRef, models.DepositStatusPending).
		Update("status", models.DepositStatusFailed).Error
}
