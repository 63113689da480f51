package storage

import (
	"mememind-backend/internal/model"
)

// Storage 持久化可选的登录资料，跨会话保留
type Storage interface {
	SaveProfile(profile *model.Profile) error
	GetProfile(profileID string) (*model.Profile, error)
	DeleteProfile(profileID string) error
	ListProfiles() ([]*model.Profile, error)

	Init() error
	Close() error
}
