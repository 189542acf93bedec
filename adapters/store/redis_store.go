package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
	"github.com/redis/go-redis/v9"
)

// RedisUserRepository is a Redis implementation of the UserRepository interface.
//
// Users are stored as JSON under <prefix>user:<id>. The email index
// <prefix>email:<email> holds the user id and is claimed with SETNX, which
// makes Insert an atomic check-and-insert across instances.
type RedisUserRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisUserRepository creates a new Redis user repository
func NewRedisUserRepository(client *redis.Client) ports.UserRepository {
	return &RedisUserRepository{
		client: client,
		prefix: "warden:",
	}
}

func (s *RedisUserRepository) userKey(id string) string {
	return s.prefix + "user:" + id
}

func (s *RedisUserRepository) emailKey(email string) string {
	return s.prefix + "email:" + email
}

// FindByID loads the user stored under id
func (s *RedisUserRepository) FindByID(ctx context.Context, id string) (*core.User, error) {
	raw, err := s.client.Get(ctx, s.userKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	var user core.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", id, err)
	}

	return &user, nil
}

// FindByEmail resolves the email index and loads the user
func (s *RedisUserRepository) FindByEmail(ctx context.Context, email string) (*core.User, error) {
	id, err := s.client.Get(ctx, s.emailKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to resolve email: %w", err)
	}

	return s.FindByID(ctx, id)
}

// Insert claims the email index and then writes the user record
func (s *RedisUserRepository) Insert(ctx context.Context, user *core.User) error {
	payload, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	claimed, err := s.client.SetNX(ctx, s.emailKey(user.Email), user.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to claim email: %w", err)
	}
	if !claimed {
		return core.ErrDuplicateUser
	}

	created, err := s.client.SetNX(ctx, s.userKey(user.ID), payload, 0).Result()
	if err == nil && !created {
		err = core.ErrDuplicateUser
	}
	if err != nil {
		// release the email so the address can be registered again
		if delErr := s.client.Del(ctx, s.emailKey(user.Email)).Err(); delErr != nil {
			return errors.Join(fmt.Errorf("failed to store user: %w", err), delErr)
		}
		if errors.Is(err, core.ErrDuplicateUser) {
			return err
		}
		return fmt.Errorf("failed to store user: %w", err)
	}

	return nil
}
