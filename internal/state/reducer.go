package state

import (
	"strings"
	"time"

	"mememind-backend/internal/model"
)

type Action interface {
	isAction()
}

type SetPrompt struct {
	Text string
}

type SelectTemplate struct {
	Choice model.TemplateChoice
}

type SelectStyle struct {
	Style model.Style
}

type GenerationStarted struct {
	RequestID string
}

type GenerationSucceeded struct {
	RequestID string
	ImageURL  string
}

type GenerationFailed struct {
	RequestID string
	Message   string
}

// Reset 对应关闭生成弹窗：清空输入、恢复默认风格并放弃进行中的请求
type Reset struct{}

type AttachProfile struct {
	ProfileID string
}

func (SetPrompt) isAction()           {}
func (SelectTemplate) isAction()      {}
func (SelectStyle) isAction()         {}
func (GenerationStarted) isAction()   {}
func (GenerationSucceeded) isAction() {}
func (GenerationFailed) isAction()    {}
func (Reset) isAction()               {}
func (AttachProfile) isAction()       {}

// Reduce 是会话状态唯一的更新入口，不产生副作用。
// 第二个返回值表示状态是否发生变化。
func Reduce(s State, action Action, now time.Time) (State, bool) {
	next, changed := reduce(s, action)
	if changed {
		next.UpdatedAt = now
	}
	return next, changed
}

func reduce(s State, action Action) (State, bool) {
	switch a := action.(type) {
	case SetPrompt:
		s.Prompt = a.Text
		return s, true

	case SelectTemplate:
		// 保留用户已输入的内容，只替换旧模板短语，避免短语嵌套
		rest := s.Prompt
		if prev, ok := s.Template.Template(); ok {
			rest = strings.TrimPrefix(rest, model.TemplatePhrase(prev.Name))
		}
		s.Template = a.Choice
		if tpl, ok := a.Choice.Template(); ok {
			s.Prompt = model.TemplatePhrase(tpl.Name) + rest
		} else {
			s.Prompt = ""
		}
		return s, true

	case SelectStyle:
		if !a.Style.Valid() {
			return s, false
		}
		s.Style = a.Style
		return s, true

	case GenerationStarted:
		if !s.CanGenerate() || a.RequestID == "" {
			return s, false
		}
		s.Phase = PhaseRequesting
		s.Loading = true
		s.ImageURL = ""
		s.ErrorMessage = ""
		s.PendingRequestID = a.RequestID
		return s, true

	case GenerationSucceeded:
		if !s.awaiting(a.RequestID) {
			return s, false
		}
		if a.ImageURL == "" {
			return reduce(s, GenerationFailed{RequestID: a.RequestID, Message: model.MessageGenerationFailed})
		}
		s.Phase = PhaseSuccess
		s.Loading = false
		s.ImageURL = a.ImageURL
		s.PendingRequestID = ""
		return s, true

	case GenerationFailed:
		if !s.awaiting(a.RequestID) {
			return s, false
		}
		s.Phase = PhaseFailure
		s.Loading = false
		s.ImageURL = ""
		s.ErrorMessage = a.Message
		if s.ErrorMessage == "" {
			s.ErrorMessage = model.MessageGenerationFailed
		}
		s.PendingRequestID = ""
		return s, true

	case Reset:
		s.Prompt = ""
		s.Template = model.NoTemplate()
		s.Style = model.StyleClassic
		s.Phase = PhaseIdle
		s.Loading = false
		s.ImageURL = ""
		s.ErrorMessage = ""
		s.PendingRequestID = ""
		return s, true

	case AttachProfile:
		if s.ProfileID == a.ProfileID {
			return s, false
		}
		s.ProfileID = a.ProfileID
		return s, true
	}

	return s, false
}

// 过期请求（已被新请求取代或已被 Reset 放弃）的结果一律丢弃
func (s State) awaiting(requestID string) bool {
	return s.Phase == PhaseRequesting && requestID != "" && s.PendingRequestID == requestID
}
