package user

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"eduadvise-backend/internal/domain"
	"eduadvise-backend/pkg/pagination"
	"eduadvise-backend/pkg/response"
)

// UserRepository is the subset of user storage the handler needs
type UserRepository interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	ListCounselors(ctx context.Context, limit, offset int) ([]*domain.User, error)
	UpdateProfile(ctx context.Context, user *domain.User) error
}

// Invalidator drops a user's cached directory record after a profile
// change. May be nil.
type Invalidator interface {
	Invalidate(userID uuid.UUID)
}

// PresenceChecker reports realtime reachability from the shared
// presence store. May be nil; profiles then carry no online flag.
type PresenceChecker interface {
	IsOnline(ctx context.Context, userID uuid.UUID) (bool, error)
	OnlineUsers(ctx context.Context) ([]uuid.UUID, error)
}

// Handler handles HTTP requests for user profiles
type Handler struct {
	users      UserRepository
	presence   PresenceChecker
	invalidate Invalidator
}

// NewHandler creates a new user handler
func NewHandler(users UserRepository, presence PresenceChecker, invalidate Invalidator) *Handler {
	return &Handler{users: users, presence: presence, invalidate: invalidate}
}

// UpdateProfileRequest represents a profile update body. All fields are
// optional; omitted fields keep their current value.
type UpdateProfileRequest struct {
	FullName  *string `json:"full_name"`
	Phone     *string `json:"phone"`
	Country   *string `json:"country"`
	Timezone  *string `json:"timezone"`
	AvatarURL *string `json:"avatar_url"`
}

// Get returns a user's public profile
// GET /api/users/:user_id
func (h *Handler) Get(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		response.ValidationError(c, "invalid user ID")
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	resp := user.ToResponse()
	h.attachOnlineFlag(c.Request.Context(), resp)
	response.Success(c, http.StatusOK, gin.H{"user": resp})
}

// Me returns the authenticated user's profile
// GET /api/users/me
func (h *Handler) Me(c *gin.Context) {
	userID, ok := c.MustGet("user_id").(uuid.UUID)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": user.ToResponse()})
}

// ListCounselors returns active counselors, paginated
// GET /api/users/counselors?limit=&offset=
func (h *Handler) ListCounselors(c *gin.Context) {
	page := pagination.FromQuery(c)

	counselors, err := h.users.ListCounselors(c.Request.Context(), page.Limit, page.Offset)
	if err != nil {
		response.FromError(c, err)
		return
	}

	results := make([]*domain.UserResponse, 0, len(counselors))
	for _, u := range counselors {
		results = append(results, u.ToResponse())
	}
	h.attachOnlineFlags(c.Request.Context(), results)

	response.Success(c, http.StatusOK, gin.H{
		"counselors": results,
		"limit":      page.Limit,
		"offset":     page.Offset,
	})
}

// UpdateProfile updates the authenticated user's profile
// PUT /api/users/me
func (h *Handler) UpdateProfile(c *gin.Context) {
	userID, ok := c.MustGet("user_id").(uuid.UUID)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	if req.FullName != nil && *req.FullName != "" {
		user.FullName = *req.FullName
	}
	if req.Phone != nil {
		user.Phone = req.Phone
	}
	if req.Country != nil {
		user.Country = req.Country
	}
	if req.Timezone != nil {
		user.Timezone = req.Timezone
	}
	if req.AvatarURL != nil {
		user.AvatarURL = req.AvatarURL
	}

	if err := h.users.UpdateProfile(c.Request.Context(), user); err != nil {
		response.FromError(c, err)
		return
	}
	if h.invalidate != nil {
		h.invalidate.Invalidate(userID)
	}

	response.Success(c, http.StatusOK, gin.H{"user": user.ToResponse()})
}

// attachOnlineFlag decorates one profile with realtime reachability.
// Presence is advisory; lookup errors leave the flag unset.
func (h *Handler) attachOnlineFlag(ctx context.Context, resp *domain.UserResponse) {
	if h.presence == nil {
		return
	}
	online, err := h.presence.IsOnline(ctx, resp.UserID)
	if err != nil {
		return
	}
	resp.IsOnline = &online
}

func (h *Handler) attachOnlineFlags(ctx context.Context, resps []*domain.UserResponse) {
	if h.presence == nil || len(resps) == 0 {
		return
	}
	ids, err := h.presence.OnlineUsers(ctx)
	if err != nil {
		return
	}
	online := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		online[id] = true
	}
	for _, resp := range resps {
		flag := online[resp.UserID]
		resp.IsOnline = &flag
	}
}
