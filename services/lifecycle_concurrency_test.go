package services

import (
	"errors"
	"os"
	"sync"
	"testing"

	"skill-arena/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Real-interleaving tests. The in-memory sqlite harness serializes every
// transaction on its single connection, so these run only against postgres,
// the production driver: set TEST_DATABASE_URL to enable them.
func newPostgresTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping postgres interleaving test")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Game{},
		&models.Competition{},
		&models.Participant{},
		&models.CompetitionInvite{},
		&models.Wallet{},
		&models.LedgerEntry{},
		&models.Deposit{},
		&models.PlayerProfile{},
		&models.Friendship{},
	))
	return db
}

func TestConcurrentJoinsRespectCapacity(t *testing.T) {
	db := newPostgresTestDB(t)
	svc := NewLifecycleService(db, 1000, nil, nil)
	game := seedGame(t, db, 2, 3)
	comp := seedCompetition(t, db, game, uuid.NewString(), 100, models.CompetitionPrivacyPublic)

	users := make([]string, 6)
	for i := range users {
		users[i] = uuid.NewString()
		fundWallet(t, db, users[i], 1000)
	}

	errs := make([]error, len(users))
	var wg sync.WaitGroup
	for i, u := range users {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			_, errs[i] = svc.Join(comp.Code, u)
		}(i, u)
	}
	wg.Wait()

	joined := 0
	for i, err := range errs {
		if err == nil {
			joined++
			continue
		}
		assert.ErrorIs(t, err, models.ErrCompetitionFull)
		assert.Equal(t, int64(1000), walletBalance(t, db, users[i]), "rejected joiner must keep their funds")
	}
	assert.Equal(t, 3, joined)

	var count int64
	db.Model(&models.Participant{}).Where("competition_id = ?", comp.ID).Count(&count)
	assert.Equal(t, int64(3), count, "roster must never exceed max players")
	assert.Equal(t, int64(3*90), reloadCompetition(t, db, comp.ID).PrizePool)
}

func TestJoinRacingCompleteSettlesConsistently(t *testing.T) {
	db := newPostgresTestDB(t)
	svc := NewLifecycleService(db, 1000, nil, nil)
	game := seedGame(t, db, 2, 100)
	creator := uuid.NewString()
	comp := seedCompetition(t, db, game, creator, 1000, models.CompetitionPrivacyPublic)

	// Two settled-in participants so settlement always has a roster.
	for i := 0; i < 2; i++ {
		u := uuid.NewString()
		fundWallet(t, db, u, 5000)
		_, err := svc.Join(comp.Code, u)
		require.NoError(t, err)
	}

	racers := make([]string, 8)
	for i := range racers {
		racers[i] = uuid.NewString()
		fundWallet(t, db, racers[i], 5000)
	}

	joinErrs := make([]error, len(racers))
	var wg sync.WaitGroup
	for i, u := range racers {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			_, joinErrs[i] = svc.Join(comp.Code, u)
		}(i, u)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := svc.Complete(comp.Code, creator)
		require.NoError(t, err)
	}()
	wg.Wait()

	done := reloadCompetition(t, db, comp.ID)
	require.Equal(t, models.CompetitionStatusCompleted, done.Status)

	var participants []models.Participant
	require.NoError(t, db.Where("competition_id = ?", comp.ID).Find(&participants).Error)
	for _, p := range participants {
		assert.NotNil(t, p.Rank, "participant %s unranked on COMPLETED competition", p.UserID)
	}

	// Every committed entry fee is accounted for in the settled pool, and
	// the pool that was distributed equals what the roster paid in.
	assert.Equal(t, int64(len(participants))*900, done.PrizePool)

	var feeSum int64
	require.NoError(t, db.Model(&models.LedgerEntry{}).
		Where("type = ? AND metadata LIKE ?", models.LedgerTypeEntryFee, "%"+comp.ID+"%").
		Select("COALESCE(SUM(amount), 0)").Scan(&feeSum).Error)
	assert.Equal(t, int64(len(participants))*-1000, feeSum)

	// Racers either made the roster or were turned away with funds intact.
	for i, u := range racers {
		if joinErrs[i] == nil {
			continue
		}
		require.True(t, errors.Is(joinErrs[i], models.ErrCompetitionNotJoinable),
			"unexpected join error: %v", joinErrs[i])
		assert.Equal(t, int64(5000), walletBalance(t, db, u))
	}
}
