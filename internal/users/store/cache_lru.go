package store

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"rolegate/internal/users/models"
	id "rolegate/pkg/domain"
	"rolegate/pkg/platform/sentinel"
)

// LRUCache is an in-process identity cache with per-entry expiry.
type LRUCache struct {
	lru *expirable.LRU[id.UserID, *models.User]

	mu          sync.Mutex
	generations map[id.UserID]uint64
}

func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	return &LRUCache{
		lru:         expirable.NewLRU[id.UserID, *models.User](size, nil, ttl),
		generations: make(map[id.UserID]uint64),
	}
}

func (c *LRUCache) Get(_ context.Context, userID id.UserID) (*models.User, error) {
	if u, ok := c.lru.Get(userID); ok {
		return u.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (c *LRUCache) Generation(_ context.Context, userID id.UserID) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[userID], nil
}

func (c *LRUCache) Set(_ context.Context, user *models.User, generation uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[user.ID] != generation {
		return nil
	}
	c.lru.Add(user.ID, user.Clone())
	return nil
}

func (c *LRUCache) Invalidate(_ context.Context, userID id.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[userID]++
	c.lru.Remove(userID)
	return nil
}
