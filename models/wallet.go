// models/wallet.go
package models

import (
	"time"
)

// LedgerType classifies a wallet balance movement.
type LedgerType string

const (
	LedgerTypeEntryFee   LedgerType = "ENTRY_FEE"
	LedgerTypePrize      LedgerType = "PRIZE"
	LedgerTypeDeposit    LedgerType = "DEPOSIT"
	LedgerTypeWithdrawal LedgerType = "WITHDRAWAL"
	LedgerTypeRefund     LedgerType = "REFUND"
	LedgerTypeTransfer   LedgerType = "TRANSFER"
)

// Wallet holds one user's spendable balance in minor currency units.
// Balance never goes negative: every debit is a guarded single-statement
// UPDATE, never a read followed by a blind write.
type Wallet struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"uniqueIndex;not null"`
	Balance   int64     `json:"balance" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// LedgerEntry is an append-only record of one balance movement. Amount is
// signed: credits positive, debits negative, so a wallet's balance equals the
// sum of its entries. Metadata carries traceability context as JSON.
type LedgerEntry struct {
	ID        string     `json:"id" gorm:"primaryKey"`
	WalletID  string     `json:"wallet_id" gorm:"not null;index"`
	UserID    string     `json:"user_id" gorm:"not null;index"`
	Type      LedgerType `json:"type" gorm:"type:varchar(16);not null;index"`
	Amount    int64      `json:"amount" gorm:"not null"`
	Metadata  string     `json:"metadata,omitempty" gorm:"type:text"`
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

// DepositStatus values for mobile-money topups.
const (
	DepositStatusPending   = "pending"
	DepositStatusConfirmed = "confirmed"
	DepositStatusFailed    = "failed"
)

// Deposit tracks a mobile-money topup from initiation to wallet credit.
// ProviderRef is the gateway's transaction reference and the idempotency key:
// the reconciliation worker credits a wallet at most once per ref.
type Deposit struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	UserID      string     `json:"user_id" gorm:"not null;index"`
	PhoneNumber string     `json:"phone_number" gorm:"not null"`
	Amount      int64      `json:"amount" gorm:"not null"`
	ProviderRef string     `json:"provider_ref" gorm:"uniqueIndex;not null"`
	Status      string     `json:"status" gorm:"type:varchar(16);default:'pending';index"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}
