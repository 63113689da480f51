package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"mememind-backend/internal/config"
	"mememind-backend/internal/model"
	"mememind-backend/internal/storage"
	"mememind-backend/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrUsernameRequired = errors.New("username is required")
	ErrUsernameTaken    = errors.New("username already registered")
)

// ProfileService 维护可选的登录资料。资料只用于头像问候，不参与生成流程。
type ProfileService struct {
	storage storage.Storage
	now     func() time.Time
}

func NewProfileService(store storage.Storage) *ProfileService {
	return &ProfileService{
		storage: store,
		now:     time.Now,
	}
}

// NewStorage 按配置选择存储实现，初始化失败时退回内存存储
func NewStorage(cfg config.StorageConfig) storage.Storage {
	var store storage.Storage

	switch cfg.Type {
	case "disk":
		store = storage.NewDiskStorage(cfg.DataDir, cfg.CacheSize)
	case "redis":
		store = storage.NewRedisStorage(cfg.RedisAddr, cfg.RedisDB)
	default:
		store = storage.NewMemoryStorage()
	}

	if err := store.Init(); err != nil {
		logger.Errorf("Failed to initialize %s storage, falling back to memory: %v", cfg.Type, err)
		store = storage.NewMemoryStorage()
		store.Init()
	}

	return store
}

func (p *ProfileService) findByUsername(username string) (*model.Profile, error) {
	profiles, err := p.storage.ListProfiles()
	if err != nil {
		return nil, err
	}
	for _, profile := range profiles {
		if strings.EqualFold(profile.Username, username) {
			return profile, nil
		}
	}
	return nil, storage.ErrProfileNotFound
}

// Signup 注册新资料，用户名不可重复
func (p *ProfileService) Signup(username, selectedLogo string) (*model.Profile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrUsernameRequired
	}

	if _, err := p.findByUsername(username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, storage.ErrProfileNotFound) {
		return nil, err
	}

	now := p.now()
	profile := &model.Profile{
		ID:           uuid.NewString(),
		Username:     username,
		SelectedLogo: selectedLogo,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := p.storage.SaveProfile(profile); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	logger.Infof("Profile %s registered", profile.ID)
	return profile, nil
}

// Login 按用户名取回资料，不存在时自动创建；传入头像时更新头像
func (p *ProfileService) Login(username, selectedLogo string) (*model.Profile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrUsernameRequired
	}

	profile, err := p.findByUsername(username)
	if errors.Is(err, storage.ErrProfileNotFound) {
		return p.Signup(username, selectedLogo)
	}
	if err != nil {
		return nil, err
	}

	if selectedLogo != "" && selectedLogo != profile.SelectedLogo {
		profile.SelectedLogo = selectedLogo
		profile.UpdatedAt = p.now()
		if err := p.storage.SaveProfile(profile); err != nil {
			return nil, fmt.Errorf("failed to save profile: %w", err)
		}
	}

	return profile, nil
}

func (p *ProfileService) GetProfile(profileID string) (*model.Profile, error) {
	return p.storage.GetProfile(profileID)
}

// Logout 删除持久化的资料
func (p *ProfileService) Logout(profileID string) error {
	return p.storage.DeleteProfile(profileID)
}
