package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"mememind-backend/internal/service"
	"mememind-backend/internal/state"
	"mememind-backend/internal/storage"
	"mememind-backend/internal/utils"
	"mememind-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

const defaultHeartbeatInterval = 30 * time.Second

type MemeHandler struct {
	memeService       *service.MemeService
	profileService    *service.ProfileService
	heartbeatInterval time.Duration
}

func NewMemeHandler(memeService *service.MemeService, profileService *service.ProfileService) *MemeHandler {
	return &MemeHandler{
		memeService:       memeService,
		profileService:    profileService,
		heartbeatInterval: defaultHeartbeatInterval,
	}
}

func (h *MemeHandler) ListTemplates(c *gin.Context) {
	templates := h.memeService.Templates()
	c.JSON(http.StatusOK, gin.H{
		"templates": templates,
		"total":     len(templates),
	})
}

func (h *MemeHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	// 请求体可以为空；分块传输时 ContentLength 为 -1，不能据此判断
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if req.ProfileID != "" {
		if _, err := h.profileService.GetProfile(req.ProfileID); err != nil {
			respondError(c, err)
			return
		}
	}

	session := h.memeService.CreateSession(req.ProfileID)
	c.JSON(http.StatusCreated, newSessionResponse(session))
}

func (h *MemeHandler) GetSession(c *gin.Context) {
	session, err := h.memeService.GetSession(c.Param("session_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSessionResponse(session))
}

func (h *MemeHandler) DeleteSession(c *gin.Context) {
	if err := h.memeService.DeleteSession(c.Param("session_id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session deleted successfully"})
}

func (h *MemeHandler) UpdatePrompt(c *gin.Context) {
	var req PromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.memeService.SetPrompt(c.Param("session_id"), req.Prompt)
	respondSession(c, session, err)
}

func (h *MemeHandler) SelectTemplate(c *gin.Context) {
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.memeService.SelectTemplate(c.Param("session_id"), req.TemplateID)
	respondSession(c, session, err)
}

func (h *MemeHandler) SelectStyle(c *gin.Context) {
	var req StyleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.memeService.SelectStyle(c.Param("session_id"), req.Style)
	respondSession(c, session, err)
}

func (h *MemeHandler) Reset(c *gin.Context) {
	session, err := h.memeService.Reset(c.Param("session_id"))
	respondSession(c, session, err)
}

// Generate 阻塞直到本次请求有结果；生成失败体现在会话状态里，仍返回 200
func (h *MemeHandler) Generate(c *gin.Context) {
	session, err := h.memeService.Generate(c.Request.Context(), c.Param("session_id"))
	respondSession(c, session, err)
}

// Download 返回附件；取图失败时 302 到原图地址
func (h *MemeHandler) Download(c *gin.Context) {
	result, err := h.memeService.Download(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if result.IsFallback() {
		c.Redirect(http.StatusFound, result.FallbackURL)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

// StreamSession 通过 SSE 推送会话状态快照
func (h *MemeHandler) StreamSession(c *gin.Context) {
	updates, unsubscribe, err := h.memeService.Subscribe(c.Param("session_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer unsubscribe()

	sseWriter := utils.NewSSEWriter(c.Writer)
	ctx := c.Request.Context()

	heartbeatTicker := time.NewTicker(h.heartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case session, ok := <-updates:
			if !ok {
				sseWriter.Close()
				return
			}
			if err := sseWriter.WriteJSON("state", newSessionResponse(session)); err != nil {
				logger.Warnf("Failed to write SSE: %v", err)
				return
			}

		case <-heartbeatTicker.C:
			if err := sseWriter.WriteJSON("heartbeat", gin.H{"timestamp": time.Now().Unix()}); err != nil {
				logger.Warnf("Heartbeat failed: %v", err)
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

func respondSession(c *gin.Context, session state.State, err error) {
	if err == nil {
		c.JSON(http.StatusOK, newSessionResponse(session))
		return
	}

	// 这些错误不改变状态，把当前状态一并返回便于前端对齐
	status := 0
	switch {
	case errors.Is(err, service.ErrEmptyPrompt), errors.Is(err, service.ErrInvalidStyle):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrTemplateNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrSuperseded):
		status = http.StatusConflict
	}
	if status != 0 {
		resp := newSessionResponse(session)
		resp.Error = err.Error()
		c.JSON(status, resp)
		return
	}

	respondError(c, err)
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, storage.ErrProfileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNoImage):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUsernameRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUsernameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.Errorf("Request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
