package services

import (
	"testing"
	"time"

	"skill-arena/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection so every session sees the same in-memory database.
	sqlDB.SetMaxOpenConns(1)

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

func seedGame(t *testing.T, db *gorm.DB, minPlayers, maxPlayers int) *models.Game {
	t.Helper()
	game := &models.Game{
		ID:          uuid.NewString(),
		Name:        "Block Blitz",
		MinPlayers:  minPlayers,
		MaxPlayers:  maxPlayers,
		MinPlayTime: 1,
		MaxPlayTime: 60,
		Status:      "active",
	}
	require.NoError(t, db.Create(game).Error)
	return game
}

func seedCompetition(t *testing.T, db *gorm.DB, game *models.Game, creatorID string, entryFee int64, privacy string) *models.Competition {
	t.Helper()
	comp := &models.Competition{
		ID:            uuid.NewString(),
		Code:          "test-" + uuid.NewString()[:8],
		Title:         "Friday Night Blitz",
		GameID:        game.ID,
		CreatorID:     creatorID,
		Privacy:       privacy,
		Status:        models.CompetitionStatusUpcoming,
		EntryFee:      entryFee,
		MaxPlayers:    game.MaxPlayers,
		MinutesToPlay: 10,
	}
	require.NoError(t, db.Create(comp).Error)
	return comp
}

func fundWallet(t *testing.T, db *gorm.DB, userID string, balance int64) {
	t.Helper()
	require.NoError(t, db.Create(&models.Wallet{
		ID:      uuid.NewString(),
		UserID:  userID,
		Balance: balance,
	}).Error)
}

func walletBalance(t *testing.T, db *gorm.DB, userID string) int64 {
	t.Helper()
	var wallet models.Wallet
	require.NoError(t, db.First(&wallet, "user_id = ?", userID).Error)
	return wallet.Balance
}

func reloadCompetition(t *testing.T, db *gorm.DB, id string) *models.Competition {
	t.Helper()
	var comp models.Competition
	require.NoError(t, db.First(&comp, "id = ?", id).Error)
	return &comp
}

func TestJoinDebitsWalletAndGrowsPool(t *testing.T) {
	db := newTestDB(t)
	svc := NewLifecycleService(db, 1000, nil, nil)
	game := seedGame(t, db, 2, 10)
	comp := seedCompetition(t, db, game, "creator", 1000, models.CompetitionPrivacyPublic)
	fundWallet(t, db, "alice", 5000)

	res, err := svc.Join(comp.Code, "alice")
	require.NoError(t, err)
	assert.False(t, res.AlreadyJoined)
	assert.Equal(t, int64(900), res.PoolIncrement)

	assert.Equal(t, int64(4000), walletBalance(t, db, "alice"))
	assert.Equal(t, int64(900), reloadCompetition(t, db, comp.ID).PrizePool)

	var entry models.LedgerEntry
	require.NoError(t, db.First(&entry, "user_id = ? AND type = ?", "alice", models.LedgerTypeEntryFee).Error)
	assert.Equal(t, int64(-1000), entry.Amount)
}

func TestJoinFreeCompetition(t *testing.T) {
	db := newTestDB(t)
	svc := NewLifecycleService(db, 1000, nil, nil)
	game := seedGame(t, db, 2, 10)
	comp := seedCompetition(t, db, game, "creator", 0, models.CompetitionPrivacyPublic)

	// No wallet needed when there is nothing to charge.
	res, err := svc.Join(comp.Code, "alice")
	require.NoError(t, err)
	assert.Zero(t, res.PoolIncrement)
	assert.Equal(t, int64(0), reloadCompetition(t, db, comp.ID).PrizePool)

	var entries int64
	db.Model(&models.LedgerEntry{}).Where("user_id = ?", "alice").Count(&entries)
	assert.Zero(t, entries)
}

func TestJoinIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewLifecycleService(db, 1000, nil, nil)
	game := seedGame(t, db, 2, 10)
	comp := seedCompetition(t, db, game, "creator", 1000, models.CompetitionPrivacyPublic)
	fundWallet(t, db, "alice", 5000)

	_, err := svc.Join(comp.Code, "alice")
	require.NoError(t, err)

	res, err := svc.Join(comp.Code, "alice")
	require.NoError(t, err)
	assert.True(t, res.AlreadyJoined)

	// The second call charged nothing and grew nothing.
	assert.Equal(t, int64(4000), walletBalance(t, db, "alice"))
	assert.Equal(t, int64(900), reloadCompetition(t, db, comp.ID).PrizePool)

	var count int64
	db.Model(&models.Participant{}).Where("competition_id = ?", comp.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestJoinInsufficientFundsLeavesNoTrace(t *testing.T) {
	db := newTestDB(t)
	svc := NewLifecycleService(db, 1000, nil, nil)
	game := seedGame(t, db, 2, 10)
	comp := seedCompetition(t, db, game, "creator", 1000, models.CompetitionPrivacyPublic)
	fundWallet(t, db, "poor", 999)

	_, err := svc.Join(comp.Code, "poor")
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)

	assert.Equal(t, int64(999), walletBalance(t, db, "poor"))
	assert.Equal(t, int64(0), reloadCompetition(t, db, comp.ID).PrizePool)

	var count int64
	db.Model(&models.Participant{}).Where("competition_id = ?", comp.ID).Count(&count)
	assert.Zero(t, count)
	db.Model(&models.LedgerEntry{}).Where("user_id = ?", "poor").Count(&count)
	assert.Zero(t, count)
}

func TestJoinRejectsFullCompetition(t *testing.T) {
	db := newTestDB(t)
	svc := NewLifecycleService(db, 1000, nil, nil)
	game := seedGame(t, db, 2, 2)
	comp := seedCompetition(t, db, game, "creator", 100, models.CompetitionPrivacyPublic)
	for _, u := range []string{"a", "b", "c"} {
		fundWallet(t, db, u, 1000)
	}

	_, err := svc.Join(comp.Code, "a")
	require.NoError(t, err)
	_, err = svc.Join(comp.Code, "b")
	require.NoError(t, err)

	_, err = svc.Join(comp.Code, "c")
	assert.ErrorIs(t, err, models.ErrCompetitionFull)
	assert.Equal(t, int64(1000), walletBalance(t, db, "c"))
}

func TestJoinMissingCompetition(t *testing.T) {
	db := newTestDB(t)
	svc := NewLifecycleService(db, 1000, nil, nil)

	_, err := svc.Join("no-such-code", "alice")
	assert.ErrorIs(t, err, models.ErrCompetitionNotFound)
}

func TestJoinPrivateRequiresInvite(t *testing.T) {
	db := newTestDB(t)
	svc := NewLifecycleService(db, 1000, nil, nil)
	game := seedGame(t, db, 2, 10)
	comp := seedCompetition(t, db, game, "creator", 100, models.CompetitionPrivacyPrivate)
	fundWallet(t, db, "alice", 1000)
	fundWallet(t, db, "creator", 1000)

	_, err := svc.Join(comp.Code, "alice")
	assert.ErrorIs(t, err, models.ErrPrivateCompetition)

	// The creator never needs an invite.
	_, err = svc.Join(comp.Code, "creator")
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.CompetitionInvite{
		ID:            uuid.NewString(),
		CompetitionID: comp.ID,
		UserID:        "alice",
		InviterID:     "creator",
	}).Error)

	_, err = svc.Join(comp.Code, "alice")
	require.NoError(t, err)

	var invite models.CompetitionInvite
	require.NoError(t, db.First(&invite, "competition_id = ? AND user_id = ?", comp.ID, "alice").Error)
	assert.NotNil(t, invite.ConsumedAt)
}

func TestReadyUpAutoStartsOnLastReady(t *testing.T) {
	db := newTestDB(t)
	svc := NewLifecycleService(db, 1000, nil, nil)
	game := seedGame(t, db, 3, 10)
	comp := seedCompetition(t, db, game, "creator", 100, models.CompetitionPrivacyPublic)
	for _, u := range []string{"a", "b", "c"} {
		fundWallet(t, db, u, 1000)
		_, err := svc.Join(comp.Code, u)
		require.NoError(t, err)
	}

	res, err := svc.ReadyUp(comp.Code, "a")
	require.NoError(t, err)
	assert.False(t, res.Started)
	assert.Equal(t, int64(1), res.ReadyCount)
	assert.Equal(t, models.CompetitionStatusUpcoming, reloadCompetition(t, db, comp.ID).Status)

	res, err = svc.ReadyUp(comp.Code, "b")
	require.NoError(t, err)
	assert.False(t, res.Started)

	res, err = svc.ReadyUp(comp.Code, "c")
	require.NoError(t, err)
	assert.True(t, res.Started)
	assert.Equal(t, int64(3), res.ReadyCount)

	started := reloadCompetition(t, db, comp.ID)
	assert.Equal(t, models.CompetitionStatusOngoing, started.Status)
	assert.NotNil(t, started.StartedAt)
}

func TestReadyUpBelowMinimumNeverStarts(t *testing.T) {
	db := newTestDB(t)
	svc := NewLifecycleService(db, 1000, nil, nil)
	game := seedGame(t, db, 3, 10)
	comp := seedCompetition(t, db, game, "creator", 100, models.CompetitionPrivacyPublic)
	for _, u := range []string{"a", "b"} {
		fundWallet(t, db, u, 1000)
		_, err := svc.Join(comp.Code, u)
		require.NoError(t, err)
	}

	for _, u := range []string{"a", "b"} {
		res, err := svc.ReadyUp(comp.Code, u)
		require.NoError(t, err)
		assert.False(t, res.Started)
	}
	assert.Equal(t, models.CompetitionStatusUpcoming, reloadCompetition(t, db, comp.ID).Status)
}

func TestReadyUpRequiresMembershipAndUpcoming(t *testing.T) {
	db := newTestDB(t)
	svc := NewLifecycleService(db, 1000, nil, nil)
	game := seedGame(t, db, 2, 10)
	comp := seedCompetition(t, db, game, "creator", 100, models.CompetitionPrivacyPublic)

	_, err := svc.ReadyUp(comp.Code, "stranger")
	assert.ErrorIs(t, err, models.ErrNotJoined)

	require.NoError(t, db.Model(&models.Competition{}).
		Where("id = ?", comp.ID).
		Update("status", models.CompetitionStatusOngoing).Error)

	_, err = svc.ReadyUp(comp.Code, "stranger")
	assert.ErrorIs(t, err, models.ErrCompetitionStarted)
}

func startCompetition(t *testing.T, db *gorm.DB, svc *LifecycleService, comp *models.Competition, users []string) {
	t.Helper()
	for _, u := range users {
		fundWallet(t, db, u, 10000)
		_, err := svc.Join(comp.Code, u)
		require.NoError(t, err)
	}
	for _, u := range users {
		_, err := svc.ReadyUp(comp.Code, u)
		require.NoError(t, err)
	}
	require.Equal(t, models.CompetitionStatusOngoing, reloadCompetition(t, db, comp.ID).Status)
}

func TestSubmitScoreLastWriteWins(t *testing.T) {
	db := newTestDB(t)
	svc := NewLifecycleService(db, 1000, nil, nil)
	game := seedGame(t, db, 2, 10)
	comp := seedCompetition(t, db, game, "creator", 100, models.CompetitionPrivacyPublic)
	startCompetition(t, db, svc, comp, []string{"a", "b"})

	require.NoError(t, svc.SubmitScore(comp.Code, "a", 500))
	require.NoError(t, svc.SubmitScore(comp.Code, "a", 200))

	var p models.Participant
	require.NoError(t, db.First(&p, "competition_id = ? AND user_id = ?", comp.ID, "a").Error)
	assert.Equal(t, int64(200), p.Score)
	assert.NotNil(t, p.ScoreSubmittedAt)
}

func TestSubmitScoreGuards(t *testing.T) {
	db := newTestDB(t)
	svc := NewLifecycleService(db, 1000, nil, nil)
	game := seedGame(t, db, 2, 10)
	comp := seedCompetition(t, db, game, "creator", 100, models.CompetitionPrivacyPublic)

	assert.ErrorIs(t, svc.SubmitScore(comp.Code, "a", -1), models.ErrInvalidAmount)
	assert.ErrorIs(t, svc.SubmitScore(comp.Code, "a", 10), models.ErrCompetitionNotActive)

	startCompetition(t, db, svc, comp, []string{"a", "b"})
	assert.ErrorIs(t, svc.SubmitScore(comp.Code, "stranger", 10), models.ErrNotJoined)

	_, err := svc.Complete(comp.Code, "creator")
	require.NoError(t, err)
	assert.ErrorIs(t, svc.SubmitScore(comp.Code, "a", 10), models.ErrCompetitionNotActive)
}

func TestCompleteSettlementConservesPool(t *testing.T) {
	db := newTestDB(t)
	svc := NewLifecycleService(db, 1000, nil, nil)
	game := seedGame(t, db, 3, 10)
	comp := seedCompetition(t, db, game, "creator", 1000, models.CompetitionPrivacyPublic)
	startCompetition(t, db, svc, comp, []string{"a", "b", "c"})

	require.NoError(t, svc.SubmitScore(comp.Code, "a", 300))
	require.NoError(t, svc.SubmitScore(comp.Code, "b", 100))
	require.NoError(t, svc.SubmitScore(comp.Code, "c", 200))

	result, err := svc.Complete(comp.Code, "creator")
	require.NoError(t, err)

	// 3 joins × 900 pool increment.
	assert.Equal(t, int64(2700), result.TotalPrizePool)
	require.Len(t, result.Winners, 3)
	assert.Equal(t, "a", result.Winners[0].UserID)
	assert.Equal(t, "c", result.Winners[1].UserID)
	assert.Equal(t, "b", result.Winners[2].UserID)
	assert.Equal(t, int64(1620), result.Winners[0].Prize)
	assert.Equal(t, int64(675), result.Winners[1].Prize)
	assert.Equal(t, int64(405), result.Winners[2].Prize)

	var paid int64
	for _, w := range result.Winners {
		paid += w.Prize
	}
	assert.Equal(t, result.TotalPrizePool, paid)

	// Joined with 10000, paid 1000 entry, won back their prize.
	assert.Equal(t, int64(10620), walletBalance(t, db, "a"))
	assert.Equal(t, int64(9675), walletBalance(t, db, "c"))
	assert.Equal(t, int64(9405), walletBalance(t, db, "b"))

	done := reloadCompetition(t, db, comp.ID)
	assert.Equal(t, models.CompetitionStatusCompleted, done.Status)
	assert.NotNil(t, done.EndedAt)

	var first models.Participant
	require.NoError(t, db.First(&first, "competition_id = ? AND user_id = ?", comp.ID, "a").Error)
	require.NotNil(t, first.Rank)
	assert.Equal(t, 1, *first.Rank)
}

func TestCompleteIsCreatorOnlyAndOnce(t *testing.T) {
	db := newTestDB(t)
	svc := NewLifecycleService(db, 1000, nil, nil)
	game := seedGame(t, db, 2, 10)
	comp := seedCompetition(t, db, game, "creator", 100, models.CompetitionPrivacyPublic)
	startCompetition(t, db, svc, comp, []string{"a", "b"})

	_, err := svc.Complete(comp.Code, "a")
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = svc.Complete(comp.Code, "creator")
	require.NoError(t, err)

	balanceAfter := walletBalance(t, db, "a")
	_, err = svc.Complete(comp.Code, "creator")
	assert.ErrorIs(t, err, models.ErrAlreadyCompleted)
	assert.Equal(t, balanceAfter, walletBalance(t, db, "a"), "repeat settlement must not pay twice")
}

func TestCompleteClosesJoinWindow(t *testing.T) {
	db := newTestDB(t)
	svc := NewLifecycleService(db, 1000, nil, nil)
	game := seedGame(t, db, 2, 10)
	comp := seedCompetition(t, db, game, "creator", 1000, models.CompetitionPrivacyPublic)
	for _, u := range []string{"a", "b"} {
		fundWallet(t, db, u, 5000)
		_, err := svc.Join(comp.Code, u)
		require.NoError(t, err)
	}

	// Settling straight from UPCOMING is allowed; afterwards no join may
	// spend a fee into the distributed pool.
	result, err := svc.Complete(comp.Code, "creator")
	require.NoError(t, err)
	assert.Equal(t, int64(1800), result.TotalPrizePool)

	fundWallet(t, db, "latecomer", 5000)
	_, err = svc.Join(comp.Code, "latecomer")
	assert.ErrorIs(t, err, models.ErrCompetitionNotJoinable)
	assert.Equal(t, int64(5000), walletBalance(t, db, "latecomer"))

	// Every participant of the settled competition carries a rank.
	var participants []models.Participant
	require.NoError(t, db.Where("competition_id = ?", comp.ID).Find(&participants).Error)
	require.Len(t, participants, 2)
	for _, p := range participants {
		assert.NotNil(t, p.Rank, "participant %s unranked on COMPLETED competition", p.UserID)
	}
}

func TestCompleteOnCanceledCompetition(t *testing.T) {
	db := newTestDB(t)
	svc := NewLifecycleService(db, 1000, nil, nil)
	game := seedGame(t, db, 2, 10)
	comp := seedCompetition(t, db, game, "creator", 100, models.CompetitionPrivacyPublic)

	require.NoError(t, svc.Cancel(comp.Code, "test"))

	_, err := svc.Complete(comp.Code, "creator")
	assert.ErrorIs(t, err, models.ErrCompetitionNotActive)
}

func TestCompleteTieBreaksByJoinOrder(t *testing.T) {
	db := newTestDB(t)
	svc := NewLifecycleService(db, 1000, nil, nil)
	game := seedGame(t, db, 2, 10)
	comp := seedCompetition(t, db, game, "creator", 0, models.CompetitionPrivacyPublic)
	require.NoError(t, db.Model(&models.Competition{}).
		Where("id = ?", comp.ID).
		Updates(map[string]interface{}{
			"status":     models.CompetitionStatusOngoing,
			"prize_pool": 1000,
		}).Error)

	early := time.Now().Add(-2 * time.Hour)
	late := time.Now().Add(-1 * time.Hour)
	require.NoError(t, db.Create(&models.Participant{
		ID: uuid.NewString(), CompetitionID: comp.ID, UserID: "late",
		Score: 100, Paid: true, JoinedAt: late,
	}).Error)
	require.NoError(t, db.Create(&models.Participant{
		ID: uuid.NewString(), CompetitionID: comp.ID, UserID: "early",
		Score: 100, Paid: true, JoinedAt: early,
	}).Error)

	result, err := svc.Complete(comp.Code, "creator")
	require.NoError(t, err)
	require.Len(t, result.Winners, 2)
	assert.Equal(t, "early", result.Winners[0].UserID)
	assert.Equal(t, "late", result.Winners[1].UserID)
}

func TestCancelRefundsFullEntryFee(t *testing.T) {
	db := newTestDB(t)
	svc := NewLifecycleService(db, 1000, nil, nil)
	game := seedGame(t, db, 2, 10)
	comp := seedCompetition(t, db, game, "creator", 1000, models.CompetitionPrivacyPublic)
	for _, u := range []string{"a", "b"} {
		fundWallet(t, db, u, 5000)
		_, err := svc.Join(comp.Code, u)
		require.NoError(t, err)
	}

	require.NoError(t, svc.Cancel(comp.Code, "expired"))

	// Full fee back, even though only 900 of it entered the pool.
	assert.Equal(t, int64(5000), walletBalance(t, db, "a"))
	assert.Equal(t, int64(5000), walletBalance(t, db, "b"))

	canceled := reloadCompetition(t, db, comp.ID)
	assert.Equal(t, models.CompetitionStatusCanceled, canceled.Status)
	assert.Equal(t, int64(0), canceled.PrizePool)
	assert.NotNil(t, canceled.CanceledAt)

	var refunds int64
	db.Model(&models.LedgerEntry{}).Where("type = ?", models.LedgerTypeRefund).Count(&refunds)
	assert.Equal(t, int64(2), refunds)
}

func TestCancelOnlyFromUpcoming(t *testing.T) {
	db := newTestDB(t)
	svc := NewLifecycleService(db, 1000, nil, nil)
	game := seedGame(t, db, 2, 10)
	comp := seedCompetition(t, db, game, "creator", 100, models.CompetitionPrivacyPublic)
	startCompetition(t, db, svc, comp, []string{"a", "b"})

	err := svc.Cancel(comp.Code, "too late")
	assert.ErrorIs(t, err, models.ErrCompetitionStarted)
	assert.Equal(t, models.CompetitionStatusOngoing, reloadCompetition(t, db, comp.ID).Status)
}

func TestJoinAfterStartRejected(t *testing.T) {
	db := newTestDB(t)
	svc := NewLifecycleService(db, 1000, nil, nil)
	game := seedGame(t, db, 2, 10)
	comp := seedCompetition(t, db, game, "creator", 100, models.CompetitionPrivacyPublic)
	startCompetition(t, db, svc, comp, []string{"a", "b"})

	fundWallet(t, db, "latecomer", 1000)
	_, err := svc.Join(comp.Code, "latecomer")
	assert.ErrorIs(t, err, models.ErrCompetitionNotJoinable)
	assert.Equal(t, int64(1000), walletBalance(t, db, "latecomer"))
}
