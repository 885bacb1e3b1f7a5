// workers/deposit_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"skill-arena/models"
	"skill-arena/pkg/momo"
	"skill-arena/services"

	"gorm.io/gorm"
)

// PollDeposits reconciles pending mobile-money deposits against the
// provider. Confirmed transactions credit the wallet exactly once (the
// pending→confirmed transition inside ConfirmDeposit is the idempotency
// guard); failed ones are marked and never credited. Deposits older than a
// day that never confirmed are failed to stop polling them forever.
func PollDeposits(ctx context.Context, db *gorm.DB, gateway *momo.Client, wallets *services.WalletService, pollInterval time.Duration) {
	log.Println("Starting deposit reconciliation polling...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Deposit polling stopped.")
			return
		case <-ticker.C:
			var pending []models.Deposit
			err := db.Where("status = ?", models.DepositStatusPending).
				Order("created_at ASC").
				Limit(100).
				Find(&pending).Error
			if err != nil {
				log.Printf("❌ Error loading pending deposits: %v", err)
				continue
			}
			if len(pending) == 0 {
				continue
			}
			log.Printf("📥 Reconciling %d pending deposit(s)...", len(pending))

			for _, dep := range pending {
				if time.Since(dep.CreatedAt) > 24*time.Hour {
					if err := wallets.FailDeposit(dep.ProviderRef); err != nil {
						log.Printf("❌ Failed to expire deposit %s: %v", dep.ProviderRef, err)
					} else {
						log.Printf("⚠️ Deposit %s expired without confirmation", dep.ProviderRef)
					}
					continue
				}

				status, err := gateway.GetTransactionStatus(ctx, dep.ProviderRef)
				if err != nil {
					log.Printf("❌ Status check failed for deposit %s: %v", dep.ProviderRef, err)
					continue
				}

				switch status.Status {
				case momo.StatusSuccess:
					if err := wallets.ConfirmDeposit(dep.ProviderRef); err != nil {
						log.Printf("❌ Failed to confirm deposit %s: %v", dep.ProviderRef, err)
					} else {
						log.Printf("✅ Deposit %s confirmed, wallet credited %d", dep.ProviderRef, dep.Amount)
					}
				case momo.StatusFailed:
					if err := wallets.FailDeposit(dep.ProviderRef); err != nil {
						log.Printf("❌ Failed to mark deposit %s failed: %v", dep.ProviderRef, err)
					}
				}
			}
		}
	}
}
