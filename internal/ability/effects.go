package ability

import (
	"sync"
	"time"

	"github.com/wfunc/superrpg-core/internal/host"
)

// cooldownTable 技能冷却表：实体 -> 技能 -> 可用时刻
type cooldownTable struct {
	mu sync.RWMutex
	m  map[string]map[string]time.Time
}

func newCooldownTable() *cooldownTable {
	return &cooldownTable{m: make(map[string]map[string]time.Time)}
}

// remaining 剩余冷却，已就绪返回0
func (c *cooldownTable) remaining(entityID, skillID string, now time.Time) time.Duration {
	c.mu.RLock()
	readyAt, ok := c.m[entityID][skillID]
	c.mu.RUnlock()
	if !ok || !now.Before(readyAt) {
		return 0
	}
	return readyAt.Sub(now)
}

func (c *cooldownTable) set(entityID, skillID string, readyAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	skills, ok := c.m[entityID]
	if !ok {
		skills = make(map[string]time.Time)
		c.m[entityID] = skills
	}
	skills[skillID] = readyAt
}

func (c *cooldownTable) forget(entityID string) {
	c.mu.Lock()
	delete(c.m, entityID)
	c.mu.Unlock()
}

// prune 清除已就绪的冷却项
func (c *cooldownTable) prune(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for entityID, skills := range c.m {
		for skillID, readyAt := range skills {
			if !now.Before(readyAt) {
				delete(skills, skillID)
			}
		}
		if len(skills) == 0 {
			delete(c.m, entityID)
		}
	}
}

// effectBucket 单个目标身上的持续效果，释放与清理共用同一把锁
type effectBucket struct {
	mu    sync.Mutex
	items []host.ActiveEffect
	dead  bool // 已从注册表移除
}

// effectRegistry 按目标分桶的持续效果集合
type effectRegistry struct {
	mu      sync.Mutex
	buckets map[string]*effectBucket
}

func newEffectRegistry() *effectRegistry {
	return &effectRegistry{buckets: make(map[string]*effectBucket)}
}

func (r *effectRegistry) bucket(targetID string, create bool) *effectBucket {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buckets[targetID]
	if !ok && create {
		b = &effectBucket{}
		r.buckets[targetID] = b
	}
	return b
}

// add 注册效果
func (r *effectRegistry) add(effect host.ActiveEffect) {
	for {
		b := r.bucket(effect.TargetID, true)
		b.mu.Lock()
		if b.dead {
			// 桶刚被清理移除，重新获取
			b.mu.Unlock()
			continue
		}
		b.items = append(b.items, effect)
		b.mu.Unlock()
		return
	}
}

// active 目标在 now 时刻仍生效的效果
func (r *effectRegistry) active(targetID string, now time.Time) []host.ActiveEffect {
	b := r.bucket(targetID, false)
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]host.ActiveEffect, 0, len(b.items))
	for _, e := range b.items {
		if !e.Expired(now) {
			out = append(out, e)
		}
	}
	return out
}

// sweep 移除所有 expiresAt <= now 的效果，返回移除数量
func (r *effectRegistry) sweep(now time.Time) int {
	r.mu.Lock()
	targets := make([]string, 0, len(r.buckets))
	for id := range r.buckets {
		targets = append(targets, id)
	}
	r.mu.Unlock()

	removed := 0
	for _, id := range targets {
		removed += r.sweepTarget(id, now)
	}
	return removed
}

func (r *effectRegistry) sweepTarget(targetID string, now time.Time) int {
	b := r.bucket(targetID, false)
	if b == nil {
		return 0
	}

	b.mu.Lock()
	kept := b.items[:0]
	for _, e := range b.items {
		if !e.Expired(now) {
			kept = append(kept, e)
		}
	}
	removed := len(b.items) - len(kept)
	b.items = kept
	empty := len(kept) == 0
	b.mu.Unlock()

	if empty {
		r.drop(targetID, b)
	}
	return removed
}

// forget 移除目标的所有效果，返回移除数量
func (r *effectRegistry) forget(targetID string) int {
	b := r.bucket(targetID, false)
	if b == nil {
		return 0
	}
	b.mu.Lock()
	n := len(b.items)
	b.items = nil
	b.mu.Unlock()
	r.drop(targetID, b)
	return n
}

// drop 移除空桶；期间又有效果注册则保留
func (r *effectRegistry) drop(targetID string, b *effectBucket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.buckets[targetID] != b {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) > 0 {
		return
	}
	b.dead = true
	delete(r.buckets, targetID)
}

func (r *effectRegistry) targets() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buckets)
}
