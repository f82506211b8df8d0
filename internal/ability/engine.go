package ability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/superrpg-core/internal/catalog"
	"github.com/wfunc/superrpg-core/internal/errors"
	"github.com/wfunc/superrpg-core/internal/events"
	"github.com/wfunc/superrpg-core/internal/host"
	"github.com/wfunc/superrpg-core/internal/logger"
	"github.com/wfunc/superrpg-core/internal/metrics"
	"github.com/wfunc/superrpg-core/internal/models"
	"github.com/wfunc/superrpg-core/internal/store"
	"go.uber.org/zap"
)

const engineName = "ability"

// 默认参数
const (
	DefaultSweepInterval = time.Second
	DefaultLevelScaling  = 0.1
)

// Options 引擎参数
type Options struct {
	LevelScaling   float64
	PointsPerLevel int
	Clock          host.Clock
	Permissions    host.PermissionChecker
	Applier        host.EffectApplier
	Notifier       host.Notifier
	Logger         *zap.Logger
}

// Engine 技能学习与释放引擎
type Engine struct {
	players     *store.RecordStore[*models.PlayerRecord]
	professions *store.RecordStore[*models.ProfessionRecord]
	abilities   *store.RecordStore[*models.AbilityRecord]
	locker      *store.Locker
	catalog     *catalog.Catalog
	bus         events.Publisher

	clock          host.Clock
	perms          host.PermissionChecker
	applier        host.EffectApplier
	notifier       host.Notifier
	scaling        float64
	pointsPerLevel int
	log            *zap.Logger

	cooldowns *cooldownTable
	effects   *effectRegistry
}

// NewEngine 创建技能引擎
func NewEngine(
	players *store.RecordStore[*models.PlayerRecord],
	professions *store.RecordStore[*models.ProfessionRecord],
	abilities *store.RecordStore[*models.AbilityRecord],
	locker *store.Locker,
	cat *catalog.Catalog,
	bus events.Publisher,
	opts Options,
) *Engine {
	if opts.LevelScaling <= 0 {
		opts.LevelScaling = DefaultLevelScaling
	}
	if opts.PointsPerLevel <= 0 {
		opts.PointsPerLevel = 1
	}
	if opts.Clock == nil {
		opts.Clock = host.SystemClock{}
	}
	if opts.Permissions == nil {
		opts.Permissions = host.AllowAll
	}
	if opts.Logger == nil {
		opts.Logger = logger.WithModule(engineName)
	}
	if opts.Applier == nil {
		opts.Applier = host.LogEffectApplier{Log: opts.Logger}
	}
	if opts.Notifier == nil {
		opts.Notifier = host.LogNotifier{Log: opts.Logger}
	}
	return &Engine{
		players:        players,
		professions:    professions,
		abilities:      abilities,
		locker:         locker,
		catalog:        cat,
		bus:            bus,
		clock:          opts.Clock,
		perms:          opts.Permissions,
		applier:        opts.Applier,
		notifier:       opts.Notifier,
		scaling:        opts.LevelScaling,
		pointsPerLevel: opts.PointsPerLevel,
		log:            opts.Logger,
		cooldowns:      newCooldownTable(),
		effects:        newEffectRegistry(),
	}
}

// CastResult 释放结果
type CastResult struct {
	SkillID  string              `json:"skill_id"`
	Level    int                 `json:"level"`
	TargetID string              `json:"target_id"`
	ReadyAt  time.Time           `json:"ready_at"`
	Effects  []host.ActiveEffect `json:"effects"`
}

// Cast 释放技能。校验顺序：存在、已学习、冷却、法力、权限；全部通过后才修改状态
func (e *Engine) Cast(ctx context.Context, casterID, skillID, targetID string) (res *CastResult, err error) {
	defer func() { metrics.RecordOperation(engineName, "cast", errors.ResultLabel(err)) }()

	def, ok := e.catalog.Skill(skillID)
	if !ok {
		return nil, errors.NotFound("技能", skillID)
	}

	unlock := e.locker.Lock(casterID)
	defer unlock()

	rec, err := e.abilities.Get(ctx, casterID)
	if err != nil {
		return nil, err
	}
	level := rec.SkillLevel(skillID)
	if level == 0 {
		return nil, errors.RequirementNotMet(errors.CondNotLearned, fmt.Sprintf("尚未学习技能 %s", skillID))
	}
	if def.Passive {
		return nil, errors.RequirementNotMet(errors.CondPassive, fmt.Sprintf("被动技能 %s 不能主动释放", skillID))
	}

	now := e.clock.Now()
	if remaining := e.cooldowns.remaining(casterID, skillID, now); remaining > 0 {
		return nil, errors.OnCooldown(remaining)
	}

	player, err := e.players.Get(ctx, casterID)
	if err != nil {
		return nil, err
	}
	if player.Mana < def.ManaCost {
		return nil, errors.InsufficientResource(errors.CondMana,
			fmt.Sprintf("需要法力 %.0f，当前 %.0f", def.ManaCost, player.Mana))
	}
	if def.Permission != "" && !e.perms.HasPermission(casterID, def.Permission) {
		return nil, errors.RequirementNotMet(errors.CondPermission, fmt.Sprintf("缺少权限 %s", def.Permission))
	}

	// 以下开始修改状态
	player.Mana -= def.ManaCost
	if err := e.players.Put(ctx, player); err != nil {
		return nil, err
	}

	readyAt := now.Add(def.CooldownValue())
	e.cooldowns.set(casterID, skillID, readyAt)

	target := resolveTarget(def, casterID, targetID)
	effects := e.buildEffects(def, level, casterID, target, now)
	for _, effect := range effects {
		if effect.Timed() {
			e.effects.add(effect)
			metrics.AddActiveEffects(1)
		}
	}
	unlock()

	for _, effect := range effects {
		e.applier.Apply(ctx, effect)
	}
	e.notifier.SendMessage(casterID, fmt.Sprintf("释放了技能: %s", def.Name))
	e.bus.Publish(ctx, events.TopicSkillCast, events.SkillCast{
		ID:       casterID,
		SkillID:  skillID,
		TargetID: target,
		Level:    level,
	})

	return &CastResult{
		SkillID:  skillID,
		Level:    level,
		TargetID: target,
		ReadyAt:  readyAt,
		Effects:  effects,
	}, nil
}

// CastHotbar 释放快捷栏指定格的技能
func (e *Engine) CastHotbar(ctx context.Context, casterID string, slot int, targetID string) (*CastResult, error) {
	if slot < 0 || slot >= models.HotbarSize {
		return nil, errors.Newf(errors.ErrInvalidParam, "快捷栏格子超出范围: %d", slot)
	}
	rec, err := e.abilities.Get(ctx, casterID)
	if err != nil {
		return nil, err
	}
	skillID := rec.Hotbar[slot]
	if skillID == "" {
		return nil, errors.Newf(errors.ErrInvalidParam, "快捷栏第 %d 格为空", slot+1)
	}
	return e.Cast(ctx, casterID, skillID, targetID)
}

// buildEffects 按技能等级生成效果实例；持续类且时长大于0的效果带过期时间
func (e *Engine) buildEffects(def *catalog.SkillDef, level int, casterID, targetID string, now time.Time) []host.ActiveEffect {
	out := make([]host.ActiveEffect, 0, len(def.Effects))
	for _, d := range def.Effects {
		effect := host.ActiveEffect{
			ID:        uuid.NewString(),
			Kind:      d.Kind,
			Attribute: d.Attribute,
			Magnitude: catalog.ScaledMagnitude(d.Magnitude, level, e.scaling),
			SourceID:  casterID,
			TargetID:  targetID,
			SkillID:   def.ID,
			CreatedAt: now,
		}
		switch d.Kind {
		case catalog.EffectDamage, catalog.EffectHeal:
			// 一次性效果
		case catalog.EffectBuff, catalog.EffectDebuff:
			if dur := d.DurationValue(); dur > 0 {
				effect.ExpiresAt = now.Add(dur)
			}
		}
		out = append(out, effect)
	}
	return out
}

// resolveTarget 自身技能或未指定目标时作用于释放者
func resolveTarget(def *catalog.SkillDef, casterID, targetID string) string {
	if def.TargetType == catalog.TargetSelf || targetID == "" {
		return casterID
	}
	return targetID
}

// CooldownRemaining 技能剩余冷却
func (e *Engine) CooldownRemaining(entityID, skillID string) time.Duration {
	return e.cooldowns.remaining(entityID, skillID, e.clock.Now())
}

// ActiveEffects 目标当前生效的持续效果
func (e *Engine) ActiveEffects(targetID string) []host.ActiveEffect {
	return e.effects.active(targetID, e.clock.Now())
}

// Sweep 清理过期效果与已就绪的冷却，返回移除的效果数
func (e *Engine) Sweep() int {
	now := e.clock.Now()
	removed := e.effects.sweep(now)
	e.cooldowns.prune(now)
	if removed > 0 {
		metrics.AddExpiredEffects(removed)
		metrics.AddActiveEffects(-removed)
		e.log.Debug("清理过期效果", zap.Int("removed", removed))
	}
	return removed
}

// RunSweeper 按固定间隔清理，直到 ctx 取消
func (e *Engine) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Sweep()
		}
	}
}

// ForgetEntity 实体离线时丢弃其冷却与身上的效果
func (e *Engine) ForgetEntity(entityID string) {
	unlock := e.locker.Lock(entityID)
	defer unlock()

	e.cooldowns.forget(entityID)
	if n := e.effects.forget(entityID); n > 0 {
		metrics.AddActiveEffects(-n)
	}
}
