package ability

import (
	"context"
	"fmt"

	"github.com/wfunc/superrpg-core/internal/catalog"
	"github.com/wfunc/superrpg-core/internal/errors"
	"github.com/wfunc/superrpg-core/internal/events"
	"github.com/wfunc/superrpg-core/internal/metrics"
	"github.com/wfunc/superrpg-core/internal/models"
)

// Skills 所有技能定义
func (e *Engine) Skills() []*catalog.SkillDef {
	return e.catalog.Skills()
}

// Record 玩家技能数据副本
func (e *Engine) Record(ctx context.Context, id string) (*models.AbilityRecord, error) {
	return e.abilities.Get(ctx, id)
}

// LearnSkill 学习技能。校验顺序：等级、职业、技能点
func (e *Engine) LearnSkill(ctx context.Context, id, skillID string) (err error) {
	defer func() { metrics.RecordOperation(engineName, "learn_skill", errors.ResultLabel(err)) }()

	def, ok := e.catalog.Skill(skillID)
	if !ok {
		return errors.NotFound("技能", skillID)
	}

	unlock := e.locker.Lock(id)
	defer unlock()

	rec, err := e.abilities.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.SkillLevel(skillID) > 0 {
		return errors.RequirementNotMet(errors.CondAlreadyLearned, fmt.Sprintf("已经学会技能 %s", skillID))
	}

	player, err := e.players.Get(ctx, id)
	if err != nil {
		return err
	}
	if player.Level < def.RequiredLevel {
		return errors.RequirementNotMet(errors.CondLevel,
			fmt.Sprintf("需要等级 %d，当前 %d", def.RequiredLevel, player.Level))
	}
	if def.RequiredProfession != "" {
		prof, err := e.professions.Get(ctx, id)
		if err != nil {
			return err
		}
		if prof.CurrentProfessionID != def.RequiredProfession {
			return errors.RequirementNotMet(errors.CondProfession,
				fmt.Sprintf("技能 %s 需要职业 %s", skillID, def.RequiredProfession))
		}
	}
	if rec.SkillPoints < 1 {
		return errors.InsufficientResource(errors.CondSkillPoints, "技能点不足")
	}

	rec.LearnedSkills[skillID] = 1
	rec.SkillPoints--
	if err := e.abilities.Put(ctx, rec); err != nil {
		return err
	}
	unlock()

	e.notifier.SendMessage(id, fmt.Sprintf("学会了技能 %s！", def.Name))
	return nil
}

// UpgradeSkill 消耗一个技能点提升技能等级，返回新等级
func (e *Engine) UpgradeSkill(ctx context.Context, id, skillID string) (level int, err error) {
	defer func() { metrics.RecordOperation(engineName, "upgrade_skill", errors.ResultLabel(err)) }()

	def, ok := e.catalog.Skill(skillID)
	if !ok {
		return 0, errors.NotFound("技能", skillID)
	}

	unlock := e.locker.Lock(id)
	defer unlock()

	rec, err := e.abilities.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	current := rec.SkillLevel(skillID)
	if current == 0 {
		return 0, errors.RequirementNotMet(errors.CondNotLearned, fmt.Sprintf("尚未学习技能 %s", skillID))
	}
	if current >= def.MaxLevel {
		return 0, errors.InsufficientResource(errors.CondMaxLevel,
			fmt.Sprintf("技能 %s 已达到最大等级 %d", skillID, def.MaxLevel))
	}
	if rec.SkillPoints < 1 {
		return 0, errors.InsufficientResource(errors.CondSkillPoints, "技能点不足")
	}

	level = current + 1
	rec.LearnedSkills[skillID] = level
	rec.SkillPoints--
	if err := e.abilities.Put(ctx, rec); err != nil {
		return 0, err
	}
	return level, nil
}

// SetHotbarSlot 设置快捷栏，skillID 为空表示清空该格
func (e *Engine) SetHotbarSlot(ctx context.Context, id string, slot int, skillID string) (err error) {
	defer func() { metrics.RecordOperation(engineName, "set_hotbar", errors.ResultLabel(err)) }()

	if slot < 0 || slot >= models.HotbarSize {
		return errors.Newf(errors.ErrInvalidParam, "快捷栏格子超出范围: %d", slot)
	}
	if skillID != "" {
		if _, ok := e.catalog.Skill(skillID); !ok {
			return errors.NotFound("技能", skillID)
		}
	}

	unlock := e.locker.Lock(id)
	defer unlock()

	rec, err := e.abilities.Get(ctx, id)
	if err != nil {
		return err
	}
	if skillID != "" && rec.SkillLevel(skillID) == 0 {
		return errors.RequirementNotMet(errors.CondNotLearned, fmt.Sprintf("尚未学习技能 %s", skillID))
	}
	rec.Hotbar[slot] = skillID
	return e.abilities.Put(ctx, rec)
}

// GrantSkillPoints 发放技能点
func (e *Engine) GrantSkillPoints(ctx context.Context, id string, n int) (err error) {
	defer func() { metrics.RecordOperation(engineName, "grant_skill_points", errors.ResultLabel(err)) }()

	if n <= 0 {
		return errors.Newf(errors.ErrInvalidParam, "技能点数必须为正: %d", n)
	}

	unlock := e.locker.Lock(id)
	defer unlock()

	rec, err := e.abilities.Get(ctx, id)
	if err != nil {
		return err
	}
	rec.SkillPoints += n
	return e.abilities.Put(ctx, rec)
}

// HandleLevelUp 升级事件处理：每升一级发放技能点
func (e *Engine) HandleLevelUp(ctx context.Context, payload interface{}) error {
	ev, ok := payload.(events.LevelUp)
	if !ok || ev.LevelsGained <= 0 {
		return nil
	}
	return e.GrantSkillPoints(ctx, ev.ID, ev.LevelsGained*e.pointsPerLevel)
}
