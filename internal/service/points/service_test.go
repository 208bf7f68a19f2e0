package points

import (
	"context"
	"testing"
	"time"

	"github.com/ecoloop/recycle-league/internal/errs"
	"github.com/ecoloop/recycle-league/internal/models"
	"github.com/ecoloop/recycle-league/pkg/logger"
)

// mockPointsRepository is an in-memory ledger keyed by user ID.
type mockPointsRepository struct {
	entries map[uint]*models.PointsPunctuation
}

func newMockPointsRepository() *mockPointsRepository {
	return &mockPointsRepository{entries: make(map[uint]*models.PointsPunctuation)}
}

func (m *mockPointsRepository) Create(p *models.PointsPunctuation) error {
	p.TotalPoints = p.Sum()
	m.entries[p.UserID] = p
	return nil
}

func (m *mockPointsRepository) GetLatestByUserID(userID uint) (*models.PointsPunctuation, error) {
	entry, ok := m.entries[userID]
	if !ok {
		return nil, errs.NotFound("no ledger entry for user %d", userID)
	}
	copied := *entry
	return &copied, nil
}

func (m *mockPointsRepository) Increment(userID uint, category models.PointCategory, amount int, now time.Time) (*models.PointsPunctuation, error) {
	entry, ok := m.entries[userID]
	if !ok {
		return nil, errs.NotFound("no ledger entry for user %d", userID)
	}
	m.apply(entry, category, entry.CategoryValue(category)+amount, now)
	copied := *entry
	return &copied, nil
}

func (m *mockPointsRepository) Decrement(userID uint, category models.PointCategory, amount int, now time.Time) (*models.PointsPunctuation, error) {
	entry, ok := m.entries[userID]
	if !ok {
		return nil, errs.NotFound("no ledger entry for user %d", userID)
	}
	next := entry.CategoryValue(category) - amount
	if next < 0 {
		next = 0
	}
	m.apply(entry, category, next, now)
	copied := *entry
	return &copied, nil
}

func (m *mockPointsRepository) Edit(userID uint, category models.PointCategory, value int, now time.Time) (*models.PointsPunctuation, error) {
	if value < 0 {
		return nil, errs.Validation("cannot set %s to negative value %d", category, value)
	}
	entry, ok := m.entries[userID]
	if !ok {
		return nil, errs.NotFound("no ledger entry for user %d", userID)
	}
	m.apply(entry, category, value, now)
	copied := *entry
	return &copied, nil
}

func (m *mockPointsRepository) apply(entry *models.PointsPunctuation, category models.PointCategory, value int, now time.Time) {
	switch category {
	case models.CategoryRecycle:
		entry.RecyclePoints = value
	case models.CategoryReuse:
		entry.ReusePoints = value
	case models.CategoryReduce:
		entry.ReducePoints = value
	case models.CategoryKnowledge:
		entry.KnowledgePoints = value
	}
	entry.TotalPoints = entry.Sum()
	entry.LastUpdated = now
}

// mockUserRepository holds a fixed set of users.
type mockUserRepository struct {
	users map[uint]*models.User
}

func (m *mockUserRepository) GetByID(id uint) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, errs.NotFound("user %d not found", id)
	}
	return user, nil
}

func (m *mockUserRepository) GetByEmail(email string) (*models.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, errs.NotFound("user with email %s not found", email)
}

// mockMembershipRepository records session-point mirroring calls.
type mockMembershipRepository struct {
	membership *models.UserPunctuation
	deltas     []int
}

func (m *mockMembershipRepository) GetOpenMembership(userID uint) (*models.UserPunctuation, error) {
	if m.membership == nil || m.membership.UserID != userID {
		return nil, errs.NotFound("user %d has no open-session membership", userID)
	}
	return m.membership, nil
}

func (m *mockMembershipRepository) AddSessionPoints(userID, sessionID uint, delta int) error {
	m.deltas = append(m.deltas, delta)
	return nil
}

func setupService(t *testing.T) (*Service, *mockPointsRepository, *mockMembershipRepository) {
	t.Helper()

	pointsRepo := newMockPointsRepository()
	userRepo := &mockUserRepository{users: map[uint]*models.User{
		1: {ID: 1, Username: "alice", Email: "alice@example.com"},
	}}
	memberRepo := &mockMembershipRepository{}
	log := logger.New("error", "json", "stdout")

	svc := NewServiceWithInterfaces(pointsRepo, userRepo, memberRepo, log)
	svc.WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) })
	return svc, pointsRepo, memberRepo
}

func TestService_EnrollUser(t *testing.T) {
	svc, repo, _ := setupService(t)
	ctx := context.Background()

	entry, err := svc.EnrollUser(ctx, 1)
	if err != nil {
		t.Fatalf("EnrollUser() failed: %v", err)
	}
	if entry.TotalPoints != 0 {
		t.Errorf("Expected fresh ledger total 0, got %d", entry.TotalPoints)
	}
	if _, ok := repo.entries[1]; !ok {
		t.Error("Expected ledger entry to be persisted")
	}

	if _, err := svc.EnrollUser(ctx, 99); !errs.IsNotFound(err) {
		t.Errorf("Expected not-found for unknown user, got %v", err)
	}
}

func TestService_IncrementScenario(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.EnrollUser(ctx, 1); err != nil {
		t.Fatalf("EnrollUser() failed: %v", err)
	}

	if _, err := svc.Increment(ctx, 1, models.CategoryRecycle, 50); err != nil {
		t.Fatalf("Increment() failed: %v", err)
	}
	entry, err := svc.Increment(ctx, 1, models.CategoryRecycle, 25)
	if err != nil {
		t.Fatalf("Increment() failed: %v", err)
	}

	if entry.RecyclePoints != 75 {
		t.Errorf("Expected recycle 75, got %d", entry.RecyclePoints)
	}
	if entry.TotalPoints != 75 {
		t.Errorf("Expected total 75, got %d", entry.TotalPoints)
	}
}

func TestService_DecrementFloorsAtZero(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.EnrollUser(ctx, 1); err != nil {
		t.Fatalf("EnrollUser() failed: %v", err)
	}
	if _, err := svc.Increment(ctx, 1, models.CategoryReuse, 30); err != nil {
		t.Fatalf("Increment() failed: %v", err)
	}

	entry, err := svc.Decrement(ctx, 1, models.CategoryReuse, 100)
	if err != nil {
		t.Fatalf("Decrement() failed: %v", err)
	}
	if entry.ReusePoints != 0 {
		t.Errorf("Expected reuse floored at 0, got %d", entry.ReusePoints)
	}
	if entry.TotalPoints != 0 {
		t.Errorf("Expected total 0, got %d", entry.TotalPoints)
	}
}

func TestService_RejectsInvalidMutations(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.EnrollUser(ctx, 1); err != nil {
		t.Fatalf("EnrollUser() failed: %v", err)
	}

	tests := []struct {
		name string
		call func() error
	}{
		{
			name: "negative increment amount",
			call: func() error {
				_, err := svc.Increment(ctx, 1, models.CategoryRecycle, -5)
				return err
			},
		},
		{
			name: "negative decrement amount",
			call: func() error {
				_, err := svc.Decrement(ctx, 1, models.CategoryRecycle, -5)
				return err
			},
		},
		{
			name: "negative edit value",
			call: func() error {
				_, err := svc.Edit(ctx, 1, models.CategoryRecycle, -1)
				return err
			},
		},
		{
			name: "unknown category",
			call: func() error {
				_, err := svc.Increment(ctx, 1, "compost", 5)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errs.IsValidation(err) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}
}

func TestService_EditSetsAbsoluteValue(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.EnrollUser(ctx, 1); err != nil {
		t.Fatalf("EnrollUser() failed: %v", err)
	}
	if _, err := svc.Increment(ctx, 1, models.CategoryKnowledge, 40); err != nil {
		t.Fatalf("Increment() failed: %v", err)
	}

	entry, err := svc.Edit(ctx, 1, models.CategoryKnowledge, 12)
	if err != nil {
		t.Fatalf("Edit() failed: %v", err)
	}
	if entry.KnowledgePoints != 12 {
		t.Errorf("Expected knowledge 12, got %d", entry.KnowledgePoints)
	}
	if entry.TotalPoints != 12 {
		t.Errorf("Expected total 12, got %d", entry.TotalPoints)
	}
}

func TestService_MirrorsDeltasToOpenSession(t *testing.T) {
	svc, _, memberRepo := setupService(t)
	ctx := context.Background()

	memberRepo.membership = &models.UserPunctuation{UserID: 1, SessionID: 7}

	if _, err := svc.EnrollUser(ctx, 1); err != nil {
		t.Fatalf("EnrollUser() failed: %v", err)
	}
	if _, err := svc.Increment(ctx, 1, models.CategoryRecycle, 20); err != nil {
		t.Fatalf("Increment() failed: %v", err)
	}
	if _, err := svc.Decrement(ctx, 1, models.CategoryRecycle, 50); err != nil {
		t.Fatalf("Decrement() failed: %v", err)
	}
	if _, err := svc.Edit(ctx, 1, models.CategoryReuse, 10); err != nil {
		t.Fatalf("Edit() failed: %v", err)
	}

	// +20 increment, -20 floored decrement, +10 edit
	want := []int{20, -20, 10}
	if len(memberRepo.deltas) != len(want) {
		t.Fatalf("Expected %d mirrored deltas, got %d: %v", len(want), len(memberRepo.deltas), memberRepo.deltas)
	}
	for i, d := range want {
		if memberRepo.deltas[i] != d {
			t.Errorf("Delta %d: expected %d, got %d", i, d, memberRepo.deltas[i])
		}
	}
}

func TestService_NoMirrorWithoutMembership(t *testing.T) {
	svc, _, memberRepo := setupService(t)
	ctx := context.Background()

	if _, err := svc.EnrollUser(ctx, 1); err != nil {
		t.Fatalf("EnrollUser() failed: %v", err)
	}
	if _, err := svc.Increment(ctx, 1, models.CategoryRecycle, 20); err != nil {
		t.Fatalf("Increment() failed: %v", err)
	}

	if len(memberRepo.deltas) != 0 {
		t.Errorf("Expected no mirrored deltas without membership, got %v", memberRepo.deltas)
	}
}

func TestService_GetByEmail(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.EnrollUser(ctx, 1); err != nil {
		t.Fatalf("EnrollUser() failed: %v", err)
	}

	entry, err := svc.GetByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() failed: %v", err)
	}
	if entry.UserID != 1 {
		t.Errorf("Expected ledger of user 1, got %d", entry.UserID)
	}

	if _, err := svc.GetByEmail(ctx, "nobody@example.com"); !errs.IsNotFound(err) {
		t.Errorf("Expected not-found for unknown email, got %v", err)
	}
}
