package season

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ecoloop/recycle-league/internal/config"
	"github.com/ecoloop/recycle-league/internal/errs"
	"github.com/ecoloop/recycle-league/internal/models"
	"github.com/ecoloop/recycle-league/internal/notify"
	"github.com/ecoloop/recycle-league/internal/repository"
	"github.com/ecoloop/recycle-league/internal/service/league"
	"github.com/ecoloop/recycle-league/pkg/logger"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

// mockCache records deleted keys.
type mockCache struct {
	dels []string
}

func (m *mockCache) Get(ctx context.Context, key string) (string, error) { return "", nil }
func (m *mockCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return nil
}
func (m *mockCache) Del(ctx context.Context, keys ...string) error {
	m.dels = append(m.dels, keys...)
	return nil
}

// mockNotifier records season summaries.
type mockNotifier struct {
	league string
	moves  []notify.SeasonMove
}

func (m *mockNotifier) SendSeasonSummary(leagueName string, moves []notify.SeasonMove) error {
	m.league = leagueName
	m.moves = moves
	return nil
}

// fixture wires a season service against an in-memory SQLite database.
type fixture struct {
	svc      *Service
	repo     *repository.LeagueRepository
	db       *repository.DB
	cache    *mockCache
	notifier *mockNotifier
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	db := &repository.DB{DB: gormDB}
	require.NoError(t, gormDB.AutoMigrate(
		&models.User{},
		&models.League{},
		&models.LeagueSession{},
		&models.UserPunctuation{},
	))

	repo := repository.NewLeagueRepository(db)
	c := &mockCache{}
	n := &mockNotifier{}
	log := logger.New("error", "json", "stdout")

	svc := NewService(repo, c, n, &config.LeaguesConfig{SessionDays: 14}, log)
	svc.WithClock(func() time.Time { return testNow })

	return &fixture{svc: svc, repo: repo, db: db, cache: c, notifier: n}
}

func (f *fixture) createLeague(t *testing.T, name string, tier, promoted, relegated int) *models.League {
	t.Helper()

	league := &models.League{
		Name:              name,
		Tier:              tier,
		PromotedCount:     promoted,
		RelegatedCount:    relegated,
		PromotionEnabled:  true,
		RelegationEnabled: true,
	}
	require.NoError(t, f.repo.UpsertLeague(league))
	return league
}

func (f *fixture) createSession(t *testing.T, leagueID uint, start, end time.Time) *models.LeagueSession {
	t.Helper()

	session := &models.LeagueSession{
		LeagueID:  leagueID,
		StartDate: start,
		EndDate:   end,
		Status:    models.SessionStatusOpen,
	}
	require.NoError(t, f.repo.CreateSession(session))
	return session
}

func (f *fixture) enrollUser(t *testing.T, username string, sessionID uint, points int, enrolledAt time.Time) *models.User {
	t.Helper()

	user := &models.User{Username: username, Email: username + "@example.com"}
	require.NoError(t, f.db.Create(user).Error)
	require.NoError(t, f.repo.Enroll(&models.UserPunctuation{
		UserID:      user.ID,
		SessionID:   sessionID,
		TotalPoints: points,
		EnrolledAt:  enrolledAt,
	}))
	return user
}

func TestCloseSession_PromotesAndRelegates(t *testing.T) {
	f := setupFixture(t)

	low := f.createLeague(t, "Sprout", 1, 1, 1)
	mid := f.createLeague(t, "Sapling", 2, 1, 1)
	high := f.createLeague(t, "Oak", 3, 1, 1)

	start := testNow.Add(-14 * 24 * time.Hour)
	end := testNow.Add(-time.Hour)
	session := f.createSession(t, mid.ID, start, end)

	top := f.enrollUser(t, "alice", session.ID, 100, start)
	second := f.enrollUser(t, "bob", session.ID, 60, start)
	third := f.enrollUser(t, "carol", session.ID, 40, start)
	bottom := f.enrollUser(t, "dave", session.ID, 5, start)

	result, err := f.svc.CloseSession(context.Background(), session.ID)
	require.NoError(t, err)
	require.False(t, result.AlreadyClosed)

	assert.Equal(t, models.MovementPromoted, result.Movements[top.ID])
	assert.Equal(t, models.MovementStayed, result.Movements[second.ID])
	assert.Equal(t, models.MovementStayed, result.Movements[third.ID])
	assert.Equal(t, models.MovementRelegated, result.Movements[bottom.ID])

	// Everybody lands in the next period's session of their target league
	for _, userID := range []uint{top.ID, second.ID, third.ID, bottom.ID} {
		nextID, ok := result.NextSessions[userID]
		require.True(t, ok, "user %d has no next session", userID)

		next, err := f.repo.GetSessionByID(nextID)
		require.NoError(t, err)
		assert.Equal(t, models.SessionStatusOpen, next.Status)
		assert.True(t, next.StartDate.Equal(end), "next session starts at the closed session's end")
	}

	promotedTo, err := f.repo.GetSessionByID(result.NextSessions[top.ID])
	require.NoError(t, err)
	assert.Equal(t, high.ID, promotedTo.LeagueID)

	relegatedTo, err := f.repo.GetSessionByID(result.NextSessions[bottom.ID])
	require.NoError(t, err)
	assert.Equal(t, low.ID, relegatedTo.LeagueID)

	stayedIn, err := f.repo.GetSessionByID(result.NextSessions[second.ID])
	require.NoError(t, err)
	assert.Equal(t, mid.ID, stayedIn.LeagueID)
	assert.NotEqual(t, session.ID, stayedIn.ID)

	// New standings start at zero
	members, err := f.repo.GetMembers(stayedIn.ID)
	require.NoError(t, err)
	for _, m := range members {
		assert.Equal(t, 0, m.TotalPoints)
	}

	assert.Contains(t, f.cache.dels, league.StandingsCacheKey(session.ID))
	assert.Equal(t, "Sapling", f.notifier.league)
	assert.Len(t, f.notifier.moves, 4)
}

func TestCloseSession_SecondCloseIsNoOp(t *testing.T) {
	f := setupFixture(t)

	mid := f.createLeague(t, "Sapling", 2, 0, 0)
	session := f.createSession(t, mid.ID, testNow.Add(-14*24*time.Hour), testNow.Add(-time.Hour))
	f.enrollUser(t, "alice", session.ID, 10, testNow.Add(-13*24*time.Hour))

	first, err := f.svc.CloseSession(context.Background(), session.ID)
	require.NoError(t, err)
	require.False(t, first.AlreadyClosed)

	second, err := f.svc.CloseSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.True(t, second.AlreadyClosed)
	assert.Empty(t, second.Movements)

	// No duplicate enrollments from the second call
	var count int64
	require.NoError(t, f.db.Model(&models.UserPunctuation{}).Count(&count).Error)
	assert.Equal(t, int64(2), count) // original membership + one re-enrollment
}

func TestCloseSession_OversubscribedRollsBack(t *testing.T) {
	f := setupFixture(t)

	f.createLeague(t, "Sprout", 1, 0, 0)
	mid := f.createLeague(t, "Sapling", 2, 3, 3)
	f.createLeague(t, "Oak", 3, 0, 0)

	session := f.createSession(t, mid.ID, testNow.Add(-14*24*time.Hour), testNow.Add(-time.Hour))
	f.enrollUser(t, "alice", session.ID, 10, testNow.Add(-13*24*time.Hour))
	f.enrollUser(t, "bob", session.ID, 20, testNow.Add(-13*24*time.Hour))

	_, err := f.svc.CloseSession(context.Background(), session.ID)
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))

	// The whole closure rolled back: session is still open and closable
	got, err := f.repo.GetSessionByID(session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusOpen, got.Status)

	var count int64
	require.NoError(t, f.db.Model(&models.UserPunctuation{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestCloseSession_TopOfLadderStays(t *testing.T) {
	f := setupFixture(t)

	f.createLeague(t, "Sapling", 2, 0, 1)
	top := f.createLeague(t, "Oak", 3, 1, 0)

	session := f.createSession(t, top.ID, testNow.Add(-14*24*time.Hour), testNow.Add(-time.Hour))
	winner := f.enrollUser(t, "alice", session.ID, 100, testNow.Add(-13*24*time.Hour))

	result, err := f.svc.CloseSession(context.Background(), session.ID)
	require.NoError(t, err)

	// No league above tier 3: promotion becomes a stay
	assert.Equal(t, models.MovementStayed, result.Movements[winner.ID])

	next, err := f.repo.GetSessionByID(result.NextSessions[winner.ID])
	require.NoError(t, err)
	assert.Equal(t, top.ID, next.LeagueID)
}

func TestCloseSession_BottomOfLadderStays(t *testing.T) {
	f := setupFixture(t)

	bottom := f.createLeague(t, "Sprout", 1, 0, 1)

	session := f.createSession(t, bottom.ID, testNow.Add(-14*24*time.Hour), testNow.Add(-time.Hour))
	loser := f.enrollUser(t, "alice", session.ID, 1, testNow.Add(-13*24*time.Hour))

	result, err := f.svc.CloseSession(context.Background(), session.ID)
	require.NoError(t, err)

	assert.Equal(t, models.MovementStayed, result.Movements[loser.ID])
}

func TestCloseSession_DisabledFlagsZeroCounts(t *testing.T) {
	f := setupFixture(t)

	f.createLeague(t, "Sprout", 1, 0, 0)
	mid := f.createLeague(t, "Sapling", 2, 5, 5)
	mid.PromotionEnabled = false
	mid.RelegationEnabled = false
	require.NoError(t, f.repo.UpsertLeague(mid))
	f.createLeague(t, "Oak", 3, 0, 0)

	session := f.createSession(t, mid.ID, testNow.Add(-14*24*time.Hour), testNow.Add(-time.Hour))
	alice := f.enrollUser(t, "alice", session.ID, 50, testNow.Add(-13*24*time.Hour))

	// Counts exceed membership but the flags disable both directions,
	// so the close succeeds and everybody stays.
	result, err := f.svc.CloseSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MovementStayed, result.Movements[alice.ID])
}

func TestCloseSession_ReusesExistingOpenSession(t *testing.T) {
	f := setupFixture(t)

	mid := f.createLeague(t, "Sapling", 2, 0, 0)
	session := f.createSession(t, mid.ID, testNow.Add(-28*24*time.Hour), testNow.Add(-14*24*time.Hour))
	alice := f.enrollUser(t, "alice", session.ID, 10, testNow.Add(-20*24*time.Hour))

	// A follow-up session already exists for the league
	existing := f.createSession(t, mid.ID, testNow.Add(-14*24*time.Hour), testNow.Add(14*24*time.Hour))

	result, err := f.svc.CloseSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, result.NextSessions[alice.ID])
}

func TestCloseExpired(t *testing.T) {
	f := setupFixture(t)

	low := f.createLeague(t, "Sprout", 1, 0, 0)
	high := f.createLeague(t, "Sapling", 2, 0, 0)

	expired := f.createSession(t, low.ID, testNow.Add(-28*24*time.Hour), testNow.Add(-time.Hour))
	f.enrollUser(t, "alice", expired.ID, 10, testNow.Add(-20*24*time.Hour))
	f.createSession(t, high.ID, testNow.Add(-time.Hour), testNow.Add(14*24*time.Hour)) // still running

	closed, err := f.svc.CloseExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	got, err := f.repo.GetSessionByID(expired.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusClosed, got.Status)

	// Second sweep finds nothing left to close
	closed, err = f.svc.CloseExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, closed)
}
