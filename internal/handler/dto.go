package handler

import (
	"mememind-backend/internal/model"
	"mememind-backend/internal/state"
)

type CreateSessionRequest struct {
	ProfileID string `json:"profile_id"`
}

type PromptRequest struct {
	Prompt string `json:"prompt"`
}

// TemplateRequest 中 template_id 为空表示不使用模板
type TemplateRequest struct {
	TemplateID model.TemplateID `json:"template_id"`
}

type StyleRequest struct {
	Style model.Style `json:"style" binding:"required,oneof=classic dank"`
}

type AuthRequest struct {
	Username     string `json:"username" binding:"required"`
	SelectedLogo string `json:"selected_logo"`
}

type SessionResponse struct {
	Session     state.State             `json:"session"`
	CanGenerate bool                    `json:"can_generate"`
	CanDownload bool                    `json:"can_download"`
	Result      *model.GenerationResult `json:"result,omitempty"`
	Error       string                  `json:"error,omitempty"`
}

func newSessionResponse(s state.State) SessionResponse {
	resp := SessionResponse{
		Session:     s,
		CanGenerate: s.CanGenerate() && !s.Loading,
		CanDownload: s.CanDownload(),
	}
	if result, ok := s.Result(); ok {
		resp.Result = &result
	}
	return resp
}
