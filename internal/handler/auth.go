package handler

import (
	"net/http"

	"mememind-backend/internal/service"

	"github.com/gin-gonic/gin"
)

// AuthHandler 处理可选的登录资料，只影响页面上的头像问候
type AuthHandler struct {
	profileService *service.ProfileService
}

func NewAuthHandler(profileService *service.ProfileService) *AuthHandler {
	return &AuthHandler{
		profileService: profileService,
	}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, err := h.profileService.Login(req.Username, req.SelectedLogo)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, err := h.profileService.Signup(req.Username, req.SelectedLogo)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, profile)
}

func (h *AuthHandler) GetProfile(c *gin.Context) {
	profile, err := h.profileService.GetProfile(c.Param("profile_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.profileService.Logout(c.Param("profile_id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}
