package model

import "time"

type Style string

const (
	StyleClassic Style = "classic"
	StyleDank    Style = "dank"
)

func (s Style) Valid() bool {
	return s == StyleClassic || s == StyleDank
}

// 面向用户的失败提示
const (
	MessageGenerationFailed = "Failed to generate meme"
	MessageNetworkError     = "Network error"
)

// GenerationRequest 是发往生成服务的请求体
type GenerationRequest struct {
	Text string `json:"text"`
	Type Style  `json:"type"`
}

// GenerationResult 要么成功携带 ImageURL，要么失败携带 Message
type GenerationResult struct {
	ImageURL string `json:"image_url,omitempty"`
	Message  string `json:"message,omitempty"`
}

func (r GenerationResult) Succeeded() bool {
	return r.ImageURL != ""
}

// Profile 是可选的登录用户资料，仅用于头像问候
type Profile struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	SelectedLogo string    `json:"selected_logo"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
