package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"mememind-backend/internal/model"
	"mememind-backend/pkg/logger"

	"github.com/go-redis/redis/v8"
)

const (
	redisProfileKeyPrefix = "meme:profile:"
	redisProfileSetKey    = "meme:profiles"
	redisOpTimeout        = 3 * time.Second
)

type RedisStorage struct {
	addr   string
	db     int
	client *redis.Client
}

func NewRedisStorage(addr string, db int) *RedisStorage {
	return &RedisStorage{
		addr: addr,
		db:   db,
	}
}

func profileKey(profileID string) string {
	return redisProfileKeyPrefix + profileID
}

func (r *RedisStorage) Init() error {
	r.client = redis.NewClient(&redis.Options{
		Addr: r.addr,
		DB:   r.db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		r.client.Close()
		r.client = nil
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	logger.Infof("Redis storage connected to %s", r.addr)
	return nil
}

func (r *RedisStorage) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *RedisStorage) SaveProfile(profile *model.Profile) error {
	if profile == nil || profile.ID == "" {
		return ErrInvalidID
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, profileKey(profile.ID), data, 0)
	pipe.SAdd(ctx, redisProfileSetKey, profile.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	return nil
}

func (r *RedisStorage) GetProfile(profileID string) (*model.Profile, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, profileKey(profileID)).Bytes()
	if err == redis.Nil {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	var profile model.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return &profile, nil
}

func (r *RedisStorage) DeleteProfile(profileID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	removed, err := r.client.Del(ctx, profileKey(profileID)).Result()
	if err != nil {
		return err
	}
	if err := r.client.SRem(ctx, redisProfileSetKey, profileID).Err(); err != nil {
		return err
	}
	if removed == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (r *RedisStorage) ListProfiles() ([]*model.Profile, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	ids, err := r.client.SMembers(ctx, redisProfileSetKey).Result()
	if err != nil {
		return nil, err
	}

	profiles := make([]*model.Profile, 0, len(ids))
	for _, id := range ids {
		profile, err := r.GetProfile(id)
		if err != nil {
			logger.Warnf("Profile %s listed but unreadable: %v", id, err)
			continue
		}
		profiles = append(profiles, profile)
	}

	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].UpdatedAt.After(profiles[j].UpdatedAt)
	})

	return profiles, nil
}
