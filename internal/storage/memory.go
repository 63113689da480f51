package storage

import (
	"sort"
	"sync"

	"mememind-backend/internal/model"
)

type MemoryStorage struct {
	profiles map[string]*model.Profile
	mu       sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		profiles: make(map[string]*model.Profile),
	}
}

func (m *MemoryStorage) Init() error {
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) SaveProfile(profile *model.Profile) error {
	if profile == nil || profile.ID == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *profile
	m.profiles[profile.ID] = &stored
	return nil
}

func (m *MemoryStorage) GetProfile(profileID string) (*model.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	profile, exists := m.profiles[profileID]
	if !exists {
		return nil, ErrProfileNotFound
	}

	result := *profile
	return &result, nil
}

func (m *MemoryStorage) DeleteProfile(profileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.profiles[profileID]; !exists {
		return ErrProfileNotFound
	}

	delete(m.profiles, profileID)
	return nil
}

func (m *MemoryStorage) ListProfiles() ([]*model.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	profiles := make([]*model.Profile, 0, len(m.profiles))
	for _, profile := range m.profiles {
		p := *profile
		profiles = append(profiles, &p)
	}

	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].UpdatedAt.After(profiles[j].UpdatedAt)
	})

	return profiles, nil
}
