// Package api provides the REST handlers for the recycling league backend.
// It exposes endpoints for points, league sessions, standings and goals.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ecoloop/recycle-league/internal/errs"
	"github.com/ecoloop/recycle-league/internal/models"
	"github.com/ecoloop/recycle-league/pkg/logger"
)

// PointsService interface for ledger operations.
type PointsService interface {
	EnrollUser(ctx context.Context, userID uint) (*models.PointsPunctuation, error)
	Get(ctx context.Context, userID uint) (*models.PointsPunctuation, error)
	GetByEmail(ctx context.Context, email string) (*models.PointsPunctuation, error)
	Increment(ctx context.Context, userID uint, category models.PointCategory, amount int) (*models.PointsPunctuation, error)
	Decrement(ctx context.Context, userID uint, category models.PointCategory, amount int) (*models.PointsPunctuation, error)
	Edit(ctx context.Context, userID uint, category models.PointCategory, value int) (*models.PointsPunctuation, error)
}

// LeagueService interface for session management.
type LeagueService interface {
	ListLeagues(ctx context.Context) ([]models.League, error)
	CreateSession(ctx context.Context, leagueID uint, start, end time.Time) (*models.LeagueSession, error)
	Enroll(ctx context.Context, userID, sessionID uint) (*models.UserPunctuation, error)
	ActiveSessionFor(ctx context.Context, userID uint) (*models.LeagueSession, error)
	Standings(ctx context.Context, sessionID uint) ([]models.Standing, error)
}

// SeasonService interface for session closure.
type SeasonService interface {
	CloseSession(ctx context.Context, sessionID uint) (*models.CloseResult, error)
}

// GoalsService interface for goal tracking.
type GoalsService interface {
	CreateGoal(ctx context.Context, goal *models.Goal) (*models.Goal, error)
	ListByUser(ctx context.Context, userID uint) ([]models.Goal, error)
	IncrementProgress(ctx context.Context, goalID uint, amount float64) (*models.Goal, error)
	EditNextCheck(ctx context.Context, goalID uint, nextCheck time.Time) (*models.Goal, error)
}

// UserDirectory interface for user creation and lookup.
type UserDirectory interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
}

// HealthChecker reports storage health.
type HealthChecker interface {
	Health() error
}

// Handler handles REST API requests.
type Handler struct {
	points  PointsService
	leagues LeagueService
	seasons SeasonService
	goals   GoalsService
	users   UserDirectory
	health  HealthChecker
	log     *logger.Logger
}

// NewHandler creates a new API handler.
func NewHandler(
	points PointsService,
	leagues LeagueService,
	seasons SeasonService,
	goals GoalsService,
	users UserDirectory,
	health HealthChecker,
	log *logger.Logger,
) *Handler {
	return &Handler{
		points:  points,
		leagues: leagues,
		seasons: seasons,
		goals:   goals,
		users:   users,
		health:  health,
		log:     log,
	}
}

// RegisterRoutes attaches all endpoints to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.GetHealth)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/users", h.CreateUser)
		v1.GET("/users/:id/points", h.GetPoints)
		v1.POST("/users/:id/points/increment", h.IncrementPoints)
		v1.POST("/users/:id/points/decrement", h.DecrementPoints)
		v1.POST("/users/:id/points/edit", h.EditPoints)
		v1.GET("/users/:id/session", h.GetActiveSession)
		v1.GET("/users/:id/goals", h.ListGoals)
		v1.GET("/points", h.GetPointsByEmail)

		v1.GET("/leagues", h.ListLeagues)
		v1.POST("/leagues/:id/sessions", h.CreateSession)
		v1.POST("/sessions/:id/enroll", h.EnrollUser)
		v1.GET("/sessions/:id/standings", h.GetStandings)
		v1.POST("/sessions/:id/close", h.CloseSession)

		v1.POST("/goals", h.CreateGoal)
		v1.POST("/goals/:id/progress", h.IncrementGoalProgress)
		v1.PUT("/goals/:id/next-check", h.EditGoalNextCheck)
	}
}

// GetHealth returns service health.
// GET /health.
func (h *Handler) GetHealth(c *gin.Context) {
	if err := h.health.Health(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CreateUser registers a user and opens their points ledger.
// POST /api/v1/users.
func (h *Handler) CreateUser(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	user := &models.User{Username: req.Username, Email: req.Email}
	if err := h.users.Create(user); err != nil {
		h.respondError(c, err, "Failed to create user")
		return
	}

	entry, err := h.points.EnrollUser(c.Request.Context(), user.ID)
	if err != nil {
		h.respondError(c, err, "Failed to create points ledger")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user, "points": entry})
}

// GetPoints returns the user's current ledger entry.
// GET /api/v1/users/:id/points.
func (h *Handler) GetPoints(c *gin.Context) {
	userID, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	entry, err := h.points.Get(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err, "Failed to get points")
		return
	}
	c.JSON(http.StatusOK, entry)
}

// GetPointsByEmail returns the ledger entry of the user with the given email.
// GET /api/v1/points?email=user@example.com.
func (h *Handler) GetPointsByEmail(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		h.errorResponse(c, http.StatusBadRequest, "email parameter is required")
		return
	}

	entry, err := h.points.GetByEmail(c.Request.Context(), email)
	if err != nil {
		h.respondError(c, err, "Failed to get points")
		return
	}
	c.JSON(http.StatusOK, entry)
}

type pointsMutationRequest struct {
	Category string `json:"category" binding:"required"`
	Amount   int    `json:"amount"`
}

// IncrementPoints adds points to one category.
// POST /api/v1/users/:id/points/increment.
func (h *Handler) IncrementPoints(c *gin.Context) {
	h.mutatePoints(c, h.points.Increment)
}

// DecrementPoints removes points from one category, flooring at zero.
// POST /api/v1/users/:id/points/decrement.
func (h *Handler) DecrementPoints(c *gin.Context) {
	h.mutatePoints(c, h.points.Decrement)
}

// EditPoints sets one category to an absolute value.
// POST /api/v1/users/:id/points/edit.
func (h *Handler) EditPoints(c *gin.Context) {
	h.mutatePoints(c, h.points.Edit)
}

// mutatePoints is the shared body of the three mutation endpoints.
func (h *Handler) mutatePoints(
	c *gin.Context,
	op func(ctx context.Context, userID uint, category models.PointCategory, amount int) (*models.PointsPunctuation, error),
) {
	userID, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	var req pointsMutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := op(c.Request.Context(), userID, models.PointCategory(req.Category), req.Amount)
	if err != nil {
		h.respondError(c, err, "Failed to mutate points")
		return
	}
	c.JSON(http.StatusOK, entry)
}

// ListLeagues returns the league ladder.
// GET /api/v1/leagues.
func (h *Handler) ListLeagues(c *gin.Context) {
	leagues, err := h.leagues.ListLeagues(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Failed to list leagues")
		return
	}
	c.JSON(http.StatusOK, gin.H{"leagues": leagues})
}

// CreateSession opens a new session for a league.
// POST /api/v1/leagues/:id/sessions.
func (h *Handler) CreateSession(c *gin.Context) {
	leagueID, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	var req struct {
		StartDate time.Time `json:"start_date" binding:"required"`
		EndDate   time.Time `json:"end_date" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.leagues.CreateSession(c.Request.Context(), leagueID, req.StartDate, req.EndDate)
	if err != nil {
		h.respondError(c, err, "Failed to create session")
		return
	}
	c.JSON(http.StatusCreated, session)
}

// EnrollUser enrolls a user into a session.
// POST /api/v1/sessions/:id/enroll.
func (h *Handler) EnrollUser(c *gin.Context) {
	sessionID, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	var req struct {
		UserID uint `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	up, err := h.leagues.Enroll(c.Request.Context(), req.UserID, sessionID)
	if err != nil {
		h.respondError(c, err, "Failed to enroll user")
		return
	}
	c.JSON(http.StatusCreated, up)
}

// GetStandings returns the ranked standings of a session.
// GET /api/v1/sessions/:id/standings.
func (h *Handler) GetStandings(c *gin.Context) {
	sessionID, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	standings, err := h.leagues.Standings(c.Request.Context(), sessionID)
	if err != nil {
		h.respondError(c, err, "Failed to get standings")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":   sessionID,
		"standings":    standings,
		"generated_at": time.Now().UTC(),
	})
}

// CloseSession closes a session and applies promotion/relegation.
// POST /api/v1/sessions/:id/close.
func (h *Handler) CloseSession(c *gin.Context) {
	sessionID, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	result, err := h.seasons.CloseSession(c.Request.Context(), sessionID)
	if err != nil {
		h.respondError(c, err, "Failed to close session")
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetActiveSession returns the session whose window contains now for a user.
// GET /api/v1/users/:id/session.
func (h *Handler) GetActiveSession(c *gin.Context) {
	userID, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	session, err := h.leagues.ActiveSessionFor(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err, "Failed to get active session")
		return
	}
	c.JSON(http.StatusOK, session)
}

// CreateGoal creates a goal.
// POST /api/v1/goals.
func (h *Handler) CreateGoal(c *gin.Context) {
	var req struct {
		UserID     uint      `json:"user_id" binding:"required"`
		Kind       string    `json:"kind" binding:"required"`
		Title      string    `json:"title"`
		Difficulty string    `json:"difficulty"`
		Frequency  string    `json:"frequency"`
		NextCheck  time.Time `json:"next_check" binding:"required"`
		Targets    []struct {
			Material string `json:"material"`
			Quantity int    `json:"quantity"`
		} `json:"targets"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	goal := &models.Goal{
		UserID:     req.UserID,
		Kind:       models.GoalKind(req.Kind),
		Title:      req.Title,
		Difficulty: req.Difficulty,
		Frequency:  req.Frequency,
		NextCheck:  req.NextCheck,
	}
	if goal.Difficulty == "" {
		goal.Difficulty = models.DifficultyNormal
	}
	if goal.Frequency == "" {
		goal.Frequency = models.FrequencyWeekly
	}
	for _, t := range req.Targets {
		goal.Targets = append(goal.Targets, models.ReduceTarget{Material: t.Material, Quantity: t.Quantity})
	}

	created, err := h.goals.CreateGoal(c.Request.Context(), goal)
	if err != nil {
		h.respondError(c, err, "Failed to create goal")
		return
	}
	c.JSON(http.StatusCreated, created)
}

// ListGoals returns all goals of a user.
// GET /api/v1/users/:id/goals.
func (h *Handler) ListGoals(c *gin.Context) {
	userID, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	goals, err := h.goals.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err, "Failed to list goals")
		return
	}
	c.JSON(http.StatusOK, gin.H{"goals": goals})
}

// IncrementGoalProgress advances a goal's progress.
// POST /api/v1/goals/:id/progress.
func (h *Handler) IncrementGoalProgress(c *gin.Context) {
	goalID, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Amount float64 `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	goal, err := h.goals.IncrementProgress(c.Request.Context(), goalID, req.Amount)
	if err != nil {
		h.respondError(c, err, "Failed to increment goal progress")
		return
	}
	c.JSON(http.StatusOK, goal)
}

// EditGoalNextCheck advances a goal's due date.
// PUT /api/v1/goals/:id/next-check.
func (h *Handler) EditGoalNextCheck(c *gin.Context) {
	goalID, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	var req struct {
		NextCheck time.Time `json:"next_check" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	goal, err := h.goals.EditNextCheck(c.Request.Context(), goalID, req.NextCheck)
	if err != nil {
		h.respondError(c, err, "Failed to edit goal next check")
		return
	}
	c.JSON(http.StatusOK, goal)
}

// parseID parses a positive numeric path parameter.
func (h *Handler) parseID(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		h.errorResponse(c, http.StatusBadRequest, "invalid "+name+" parameter")
		return 0, false
	}
	return uint(id), true
}

// respondError maps domain errors to HTTP status codes.
func (h *Handler) respondError(c *gin.Context, err error, logMsg string) {
	switch {
	case errs.IsNotFound(err):
		h.errorResponse(c, http.StatusNotFound, err.Error())
	case errs.IsValidation(err):
		h.errorResponse(c, http.StatusBadRequest, err.Error())
	case errs.IsConflict(err):
		h.errorResponse(c, http.StatusConflict, err.Error())
	case errs.IsConfiguration(err):
		h.errorResponse(c, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Error().Err(err).Msg(logMsg)
		h.errorResponse(c, http.StatusInternalServerError, logMsg)
	}
}

// errorResponse sends a JSON error payload.
func (h *Handler) errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
