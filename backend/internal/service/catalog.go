package service

import (
	"context"

	"hwmun/backend/internal/model"
	"hwmun/backend/internal/repository"
)

// catalog 会场目录的读穿缓存，生命周期为一次业务调用，不跨请求共享
type catalog struct {
	repo     repository.SessionRepository
	sessions []model.Session
	byID     map[string]*model.Session
}

func newCatalog(repo repository.SessionRepository) *catalog {
	return &catalog{repo: repo}
}

func (c *catalog) load(ctx context.Context) error {
	if c.byID != nil {
		return nil
	}
	sessions, err := c.repo.List(ctx)
	if err != nil {
		return err
	}
	c.sessions = sessions
	c.byID = make(map[string]*model.Session, len(sessions))
	for i := range sessions {
		c.byID[sessions[i].ID] = &c.sessions[i]
	}
	return nil
}

// All 全部会场
func (c *catalog) All(ctx context.Context) ([]model.Session, error) {
	if err := c.load(ctx); err != nil {
		return nil, err
	}
	return c.sessions, nil
}

// Get 按 ID 查找会场
func (c *catalog) Get(ctx context.Context, id string) (*model.Session, bool, error) {
	if err := c.load(ctx); err != nil {
		return nil, false, err
	}
	s, ok := c.byID[id]
	return s, ok, nil
}

// Name 会场显示名，查不到时退化为 ID
func (c *catalog) Name(ctx context.Context, id string) string {
	if s, ok, err := c.Get(ctx, id); err == nil && ok {
		return s.Name
	}
	return id
}
