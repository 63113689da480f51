// Package state holds the serializable session state of the meme request
// controller and the reducer that drives its generation lifecycle.
package state

import (
	"strings"
	"time"

	"mememind-backend/internal/model"
)

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseRequesting Phase = "requesting"
	PhaseSuccess    Phase = "success"
	PhaseFailure    Phase = "failure"
)

type State struct {
	ID               string               `json:"id"`
	Prompt           string               `json:"prompt"`
	Template         model.TemplateChoice `json:"template"`
	Style            model.Style          `json:"style"`
	Phase            Phase                `json:"phase"`
	Loading          bool                 `json:"loading"`
	ImageURL         string               `json:"image_url,omitempty"`
	ErrorMessage     string               `json:"error_message,omitempty"`
	PendingRequestID string               `json:"pending_request_id,omitempty"`
	ProfileID        string               `json:"profile_id,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

func New(id string, now time.Time) State {
	return State{
		ID:        id,
		Template:  model.NoTemplate(),
		Style:     model.StyleClassic,
		Phase:     PhaseIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CanGenerate 为 false 时触发生成是空操作
func (s State) CanGenerate() bool {
	return strings.TrimSpace(s.Prompt) != ""
}

// CanDownload 只有拿到图片地址后才允许下载
func (s State) CanDownload() bool {
	return s.Phase == PhaseSuccess && s.ImageURL != ""
}

// Result 返回最近一次已完成的生成结果
func (s State) Result() (model.GenerationResult, bool) {
	switch s.Phase {
	case PhaseSuccess:
		return model.GenerationResult{ImageURL: s.ImageURL}, true
	case PhaseFailure:
		return model.GenerationResult{Message: s.ErrorMessage}, true
	default:
		return model.GenerationResult{}, false
	}
}

// ComposeRequest 根据当前选择构造生成请求。选中模板且提示词尚未带模板短语时补上前缀。
func ComposeRequest(s State) model.GenerationRequest {
	text := s.Prompt
	if tpl, ok := s.Template.Template(); ok {
		phrase := model.TemplatePhrase(tpl.Name)
		if !strings.HasPrefix(text, phrase) {
			text = phrase + text
		}
	}

	style := s.Style
	if !style.Valid() {
		style = model.StyleClassic
	}

	return model.GenerationRequest{Text: text, Type: style}
}
