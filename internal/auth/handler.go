package auth

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pulse-engage/backend/internal/kvstore"
	"github.com/pulse-engage/backend/internal/models"
	"github.com/pulse-engage/backend/pkg/response"
	"github.com/pulse-engage/backend/pkg/utils"
)

// SignupRequest is the body for POST /signup. New accounts are always
// participants; the admin account is seeded from configuration, never
// self-assigned.
type SignupRequest struct {
	Email    string          `json:"email" binding:"required,email"`
	Password string          `json:"password" binding:"required,min=6"`
	Name     string          `json:"name" binding:"required"`
	Metadata json.RawMessage `json:"metadata"`
}

// LoginRequest is the body for POST /login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo   *Repository
	store  kvstore.Store
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler. store is used to purge a deleted
// user's documents.
func NewHandler(repo *Repository, store kvstore.Store, jwt *JWTService, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, store: store, jwt: jwt, logger: logger}
}

// Signup handles POST /signup.
func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	if _, err := h.repo.GetByEmail(c.Request.Context(), req.Email); err == nil {
		response.BadRequest(c, "email already registered")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	user, err := h.repo.Create(c.Request.Context(), req.Email, hash, req.Name, models.RoleParticipant, req.Metadata)
	if err != nil {
		h.logger.Error("create user", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	response.Created(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Login handles POST /login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	if !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// List handles GET /users (admin only).
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list users")
		return
	}
	response.OK(c, list)
}

// Delete handles DELETE /users/:id (admin only). Removes the account and
// purges its vote ledger, quiz progress and submissions. Recorded tallies are
// unaffected.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	if caller, ok := c.MustGet(ContextUserID).(uuid.UUID); ok && caller == id {
		response.BadRequest(c, "cannot delete your own account")
		return
	}

	ctx := c.Request.Context()
	user, err := h.repo.GetByID(ctx, id)
	if err != nil {
		response.NotFound(c, "user not found")
		return
	}
	if err := h.repo.Delete(ctx, id); err != nil {
		h.logger.Error("delete user", zap.Error(err), zap.String("user_id", id.String()))
		response.Internal(c, "failed to delete user")
		return
	}
	purged, err := PurgeUserDocuments(ctx, h.store, id.String())
	if err != nil {
		// Account row is gone; leftover documents are unreachable but logged.
		h.logger.Warn("purge user documents", zap.Error(err), zap.String("user_id", id.String()))
	}
	h.logger.Info("user deleted",
		zap.String("user_id", id.String()),
		zap.String("email", user.Email),
		zap.Int("documents_purged", purged))
	response.NoContent(c)
}
