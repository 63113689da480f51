package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"mememind-backend/internal/model"
	"mememind-backend/pkg/logger"

	"github.com/google/uuid"
)

// DiskStorage 把每个资料存为 profiles/<id>.json，并维护 profiles.json 索引
type DiskStorage struct {
	dataDir   string
	mu        sync.RWMutex
	cache     map[string]*model.Profile
	cacheSize int
}

type ProfileIndex struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewDiskStorage(dataDir string, cacheSize int) *DiskStorage {
	if cacheSize <= 0 {
		cacheSize = 100
	}
	return &DiskStorage{
		dataDir:   dataDir,
		cache:     make(map[string]*model.Profile),
		cacheSize: cacheSize,
	}
}

func (d *DiskStorage) Init() error {
	if err := os.MkdirAll(d.profilesDir(), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	if err := d.loadProfiles(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	logger.Infof("Disk storage initialized at %s", d.dataDir)
	return nil
}

func (d *DiskStorage) profilesDir() string {
	return filepath.Join(d.dataDir, "profiles")
}

func (d *DiskStorage) indexPath() string {
	return filepath.Join(d.dataDir, "profiles.json")
}

// 资料 ID 由服务端生成，必须是 UUID，防止路径穿越
func (d *DiskStorage) profilePath(profileID string) (string, error) {
	if _, err := uuid.Parse(profileID); err != nil {
		return "", ErrInvalidID
	}
	return filepath.Join(d.profilesDir(), profileID+".json"), nil
}

func (d *DiskStorage) loadProfiles() error {
	if _, err := os.Stat(d.indexPath()); os.IsNotExist(err) {
		return d.saveIndex([]*ProfileIndex{})
	}

	indexes, err := d.readIndex()
	if err != nil {
		return err
	}

	for _, index := range indexes {
		if len(d.cache) >= d.cacheSize {
			break
		}

		profile, err := d.loadProfileFromFile(index.ID)
		if err != nil {
			logger.Errorf("Failed to load profile %s: %v", index.ID, err)
			continue
		}

		d.cache[index.ID] = profile
	}

	return nil
}

func (d *DiskStorage) readIndex() ([]*ProfileIndex, error) {
	data, err := os.ReadFile(d.indexPath())
	if err != nil {
		return nil, err
	}

	var indexes []*ProfileIndex
	if err := json.Unmarshal(data, &indexes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return indexes, nil
}

func (d *DiskStorage) loadProfileFromFile(profileID string) (*model.Profile, error) {
	path, err := d.profilePath(profileID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var profile model.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	return &profile, nil
}

// writeFileAtomic 先写临时文件再 rename，避免半写状态
func writeFileAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}

	return os.Rename(tempPath, path)
}

func (d *DiskStorage) saveIndex(indexes []*ProfileIndex) error {
	return writeFileAtomic(d.indexPath(), indexes)
}

func (d *DiskStorage) SaveProfile(profile *model.Profile) error {
	if profile == nil {
		return ErrInvalidID
	}
	path, err := d.profilePath(profile.ID)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := writeFileAtomic(path, profile); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	if err := d.updateIndex(); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	stored := *profile
	d.cache[profile.ID] = &stored
	d.evictCache()

	return nil
}

func (d *DiskStorage) GetProfile(profileID string) (*model.Profile, error) {
	d.mu.RLock()
	if profile, exists := d.cache[profileID]; exists {
		result := *profile
		d.mu.RUnlock()
		return &result, nil
	}
	d.mu.RUnlock()

	profile, err := d.loadProfileFromFile(profileID)
	if err != nil {
		switch {
		case err == ErrInvalidID, os.IsNotExist(err):
			return nil, ErrProfileNotFound
		default:
			return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
		}
	}

	d.mu.Lock()
	d.cache[profileID] = profile
	d.evictCache()
	d.mu.Unlock()

	result := *profile
	return &result, nil
}

func (d *DiskStorage) DeleteProfile(profileID string) error {
	path, err := d.profilePath(profileID)
	if err != nil {
		return ErrProfileNotFound
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return ErrProfileNotFound
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	delete(d.cache, profileID)

	return d.updateIndex()
}

func (d *DiskStorage) ListProfiles() ([]*model.Profile, error) {
	d.mu.RLock()
	indexes, err := d.readIndex()
	d.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	profiles := make([]*model.Profile, 0, len(indexes))
	for _, index := range indexes {
		profile, err := d.GetProfile(index.ID)
		if err != nil {
			logger.Warnf("Profile %s listed in index but unreadable: %v", index.ID, err)
			continue
		}
		profiles = append(profiles, profile)
	}

	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].UpdatedAt.After(profiles[j].UpdatedAt)
	})

	return profiles, nil
}

// updateIndex 需要在持有写锁时调用
func (d *DiskStorage) updateIndex() error {
	files, err := os.ReadDir(d.profilesDir())
	if err != nil {
		return err
	}

	indexes := make([]*ProfileIndex, 0, len(files))
	for _, file := range files {
		if filepath.Ext(file.Name()) != ".json" {
			continue
		}

		profileID := file.Name()[:len(file.Name())-len(".json")]
		profile, err := d.loadProfileFromFile(profileID)
		if err != nil {
			logger.Errorf("Failed to load profile %s for index update: %v", profileID, err)
			continue
		}

		indexes = append(indexes, &ProfileIndex{
			ID:        profile.ID,
			Username:  profile.Username,
			UpdatedAt: profile.UpdatedAt,
		})
	}

	return d.saveIndex(indexes)
}

func (d *DiskStorage) evictCache() {
	if len(d.cache) <= d.cacheSize {
		return
	}

	type cacheEntry struct {
		id        string
		updatedAt time.Time
	}

	entries := make([]cacheEntry, 0, len(d.cache))
	for id, profile := range d.cache {
		entries = append(entries, cacheEntry{
			id:        id,
			updatedAt: profile.UpdatedAt,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].updatedAt.Before(entries[j].updatedAt)
	})

	toEvict := len(d.cache) - d.cacheSize
	for i := 0; i < toEvict; i++ {
		delete(d.cache, entries[i].id)
	}
}

func (d *DiskStorage) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cache = make(map[string]*model.Profile)
	return nil
}
