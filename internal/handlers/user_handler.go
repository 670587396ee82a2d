package handlers

import (
	"net/http"

	"github.com/chingu-voyage4/Bears-Team-0/internal/models"
	"github.com/chingu-voyage4/Bears-Team-0/internal/service"
	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	Service *service.UserService
	Auth    *Auth
}

func NewUserHandler(s *service.UserService, auth *Auth) *UserHandler {
	return &UserHandler{Service: s, Auth: auth}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.Service.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, users)
}

func (h *UserHandler) CountUsers(c *gin.Context) {
	count, err := h.Service.CountUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, count)
}

func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.Service.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, user)
}

// Register creates a local account. Roles cannot be chosen at sign-up.
func (h *UserHandler) Register(c *gin.Context) {
	var in models.UserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, badRequest("body", err.Error()))
		return
	}
	in.Roles = nil

	user, err := h.Service.Register(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, user)
}

func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, badRequest("body", err.Error()))
		return
	}

	user, err := h.Service.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.Auth.GenerateToken(user.ID.Hex(), user.Roles)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"token": token, "user": user})
}

// UpdateUser lets callers edit their own account; admins may edit any.
// Only admins may change roles.
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id := c.Param("id")
	if !h.mayModify(c, id) {
		return
	}

	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, badRequest("body", err.Error()))
		return
	}
	if _, ok := patch["roles"]; ok && !callerIsAdmin(c) {
		c.AbortWithStatusJSON(http.StatusForbidden, errorBody{Error: "only admins can change roles", Field: "roles"})
		return
	}

	user, err := h.Service.UpdateUser(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	id := c.Param("id")
	if !h.mayModify(c, id) {
		return
	}

	user, err := h.Service.DeleteUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, user)
}

func (h *UserHandler) mayModify(c *gin.Context, id string) bool {
	if callerID(c) == id || callerIsAdmin(c) {
		return true
	}
	c.AbortWithStatusJSON(http.StatusForbidden, errorBody{Error: "cannot modify another user"})
	return false
}
