package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mememind-backend/internal/config"
	"mememind-backend/internal/storage"
)

func TestProfileSignupAndLogin(t *testing.T) {
	svc := NewProfileService(storage.NewMemoryStorage())

	created, err := svc.Signup("  meme_lord ", "https://example.com/logo1.png")
	require.NoError(t, err)
	assert.Equal(t, "meme_lord", created.Username)
	assert.NotEmpty(t, created.ID)

	_, err = svc.Signup("MEME_LORD", "")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	loggedIn, err := svc.Login("meme_lord", "")
	require.NoError(t, err)
	assert.Equal(t, created.ID, loggedIn.ID)
	assert.Equal(t, "https://example.com/logo1.png", loggedIn.SelectedLogo)

	loggedIn, err = svc.Login("meme_lord", "https://example.com/logo2.png")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/logo2.png", loggedIn.SelectedLogo)

	stored, err := svc.GetProfile(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/logo2.png", stored.SelectedLogo)
}

func TestProfileLoginCreatesMissing(t *testing.T) {
	svc := NewProfileService(storage.NewMemoryStorage())

	profile, err := svc.Login("newcomer", "https://example.com/logo.png")
	require.NoError(t, err)

	stored, err := svc.GetProfile(profile.ID)
	require.NoError(t, err)
	assert.Equal(t, "newcomer", stored.Username)
}

func TestProfileRequiresUsername(t *testing.T) {
	svc := NewProfileService(storage.NewMemoryStorage())

	_, err := svc.Signup("   ", "")
	assert.ErrorIs(t, err, ErrUsernameRequired)
	_, err = svc.Login("", "")
	assert.ErrorIs(t, err, ErrUsernameRequired)
}

func TestProfileLogout(t *testing.T) {
	svc := NewProfileService(storage.NewMemoryStorage())

	profile, err := svc.Signup("bye", "")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(profile.ID))
	_, err = svc.GetProfile(profile.ID)
	assert.ErrorIs(t, err, storage.ErrProfileNotFound)
	assert.ErrorIs(t, svc.Logout(profile.ID), storage.ErrProfileNotFound)
}

func TestNewStorageSelection(t *testing.T) {
	disk := NewStorage(config.StorageConfig{Type: "disk", DataDir: t.TempDir(), CacheSize: 10})
	assert.IsType(t, &storage.DiskStorage{}, disk)

	mem := NewStorage(config.StorageConfig{Type: "memory"})
	assert.IsType(t, &storage.MemoryStorage{}, mem)

	// redis 不可达时退回内存存储
	fallback := NewStorage(config.StorageConfig{Type: "redis", RedisAddr: "127.0.0.1:1"})
	assert.IsType(t, &storage.MemoryStorage{}, fallback)
}
