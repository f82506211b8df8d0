package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/superrpg-core/internal/errors"
	"github.com/wfunc/superrpg-core/internal/models"
	"go.uber.org/zap"
)

// session 在线会话
type session struct {
	Username string
	JoinedAt time.Time
}

// Join 玩家上线：预加载三类记录，更新用户名与最后在线时间
func (s *Services) Join(ctx context.Context, id, username string) (*models.PlayerRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.Newf(errors.ErrInvalidParam, "无效的玩家ID: %s", id)
	}

	if _, err := s.Professions.Get(ctx, id); err != nil {
		return nil, err
	}
	if _, err := s.Abilities.Get(ctx, id); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	p, err := s.Progression.Update(ctx, id, func(p *models.PlayerRecord) error {
		if username != "" {
			p.Username = username
		}
		p.LastSeen = models.UnixMilli(now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[id] = session{Username: p.Username, JoinedAt: now}
	s.mu.Unlock()

	s.log.Info("玩家上线", zap.String("entity_id", id), zap.String("username", p.Username))
	s.notifier.SendMessage(id, fmt.Sprintf("欢迎回来，%s！", p.Username))
	s.notifier.SendMessage(id, fmt.Sprintf("等级: %d | 经验: %d/%d",
		p.Level, p.Experience, s.Progression.Rules().RequiredExp(p.Level)))
	return p, nil
}

// Quit 玩家下线：累计在线时长，落盘并移出缓存，丢弃冷却与效果
func (s *Services) Quit(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		now := s.clock.Now()
		_, err := s.Progression.Update(ctx, id, func(p *models.PlayerRecord) error {
			if d := now.Sub(sess.JoinedAt); d > 0 {
				p.PlayTime += int64(d / time.Second)
			}
			p.LastSeen = models.UnixMilli(now)
			return nil
		})
		if err != nil {
			return err
		}
	}

	s.Ability.ForgetEntity(id)
	if err := s.evict(ctx, id); err != nil {
		return err
	}
	s.log.Info("玩家下线", zap.String("entity_id", id))
	return nil
}

// Online 是否在线
func (s *Services) Online(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	return ok
}

// OnlineCount 在线人数
func (s *Services) OnlineCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Cleanup 移除不在线实体的缓存，返回移除的实体数
func (s *Services) Cleanup(ctx context.Context) (int, error) {
	seen := make(map[string]struct{})
	for _, ids := range [][]string{s.Players.IDs(), s.Professions.IDs(), s.Abilities.IDs()} {
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}

	var errs []error
	evicted := 0
	for id := range seen {
		if s.Online(id) {
			continue
		}
		if err := s.evict(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		evicted++
	}
	return evicted, stderrors.Join(errs...)
}

// evict 在实体锁内落盘并移出三类缓存
func (s *Services) evict(ctx context.Context, id string) error {
	unlock := s.locker.Lock(id)
	defer unlock()

	var errs []error
	if err := s.Players.Evict(ctx, id); err != nil {
		errs = append(errs, err)
	}
	if err := s.Professions.Evict(ctx, id); err != nil {
		errs = append(errs, err)
	}
	if err := s.Abilities.Evict(ctx, id); err != nil {
		errs = append(errs, err)
	}
	return stderrors.Join(errs...)
}
