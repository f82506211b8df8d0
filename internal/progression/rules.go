package progression

import (
	"fmt"
	"math"

	"github.com/wfunc/superrpg-core/internal/config"
	"github.com/wfunc/superrpg-core/internal/errors"
	"github.com/wfunc/superrpg-core/internal/models"
)

// Rules 等级成长规则
type Rules struct {
	BaseExp                float64
	ExpGrowth              float64
	StatPointsPerLevel     int
	HealthPerVitalityPoint float64
}

// DefaultRules 默认规则：100 × 1.15^(level-1)，每级 5 点属性点
func DefaultRules() Rules {
	return Rules{
		BaseExp:                100,
		ExpGrowth:              1.15,
		StatPointsPerLevel:     5,
		HealthPerVitalityPoint: 5,
	}
}

// RulesFrom 从配置构建规则，未配置项使用默认值
func RulesFrom(cfg config.ProgressionConfig) Rules {
	r := DefaultRules()
	if cfg.BaseExp > 0 {
		r.BaseExp = cfg.BaseExp
	}
	if cfg.ExpGrowth > 0 {
		r.ExpGrowth = cfg.ExpGrowth
	}
	if cfg.StatPointsPerLevel > 0 {
		r.StatPointsPerLevel = cfg.StatPointsPerLevel
	}
	if cfg.HealthPerVitalityPoint > 0 {
		r.HealthPerVitalityPoint = cfg.HealthPerVitalityPoint
	}
	return r
}

// RequiredExp 从 level 升到 level+1 所需经验
func (r Rules) RequiredExp(level int) int64 {
	if level < 1 {
		level = 1
	}
	f := math.Floor(r.BaseExp * math.Pow(r.ExpGrowth, float64(level-1)))
	// 超出 int64 范围时取上限，高等级不再能靠少量经验升级
	if math.IsNaN(f) || f >= math.MaxInt64 {
		return math.MaxInt64
	}
	if f < 1 {
		return 1
	}
	return int64(f)
}

// AddExperience 增加经验并逐级扣减升级，返回升级数
func (r Rules) AddExperience(p *models.PlayerRecord, amount int64) (int, error) {
	if amount < 0 {
		return 0, errors.Newf(errors.ErrInvalidParam, "经验值不能为负: %d", amount)
	}
	if amount > math.MaxInt64-p.Experience {
		return 0, errors.Newf(errors.ErrInvalidParam, "经验值溢出: %d + %d", p.Experience, amount)
	}

	p.Experience += amount
	gained := 0
	// 每级门槛不同，只能逐级扣减
	for p.Experience >= r.RequiredExp(p.Level) {
		p.Experience -= r.RequiredExp(p.Level)
		p.Level++
		p.StatPoints += r.StatPointsPerLevel
		gained++
	}
	if gained > 0 {
		p.Stage = models.StageForLevel(p.Level)
	}
	return gained, nil
}

// AllocateStatPoint 分配属性点到基础属性，失败时记录不变
func (r Rules) AllocateStatPoint(p *models.PlayerRecord, attribute string, points int) error {
	if points <= 0 {
		return errors.Newf(errors.ErrInvalidParam, "分配点数必须为正: %d", points)
	}
	if !models.IsPrimaryAttribute(attribute) {
		return errors.NotFound("属性", attribute)
	}
	if points > p.StatPoints {
		return errors.InsufficientResource(errors.CondStatPoints,
			fmt.Sprintf("需要 %d 点属性点，当前 %d", points, p.StatPoints))
	}

	p.AddAttribute(attribute, float64(points))
	if models.NormalizeAttribute(attribute) == "vitality" {
		p.MaxHealth += float64(points) * r.HealthPerVitalityPoint
	}
	p.StatPoints -= points
	return nil
}

// SetLevel 管理员直接设置等级，不做门槛校验
func (r Rules) SetLevel(p *models.PlayerRecord, level int) error {
	if level < 1 {
		return errors.Newf(errors.ErrInvalidParam, "等级必须不小于1: %d", level)
	}
	diff := level - p.Level
	p.Level = level
	p.Experience = 0
	p.StatPoints += diff * r.StatPointsPerLevel
	// 降级时属性点不为负
	if p.StatPoints < 0 {
		p.StatPoints = 0
	}
	p.Stage = models.StageForLevel(level)
	return nil
}

// TotalPower 综合战力：六项基础属性之和加等级×2
func TotalPower(p *models.PlayerRecord) int {
	return p.Strength + p.Agility + p.Intelligence + p.Vitality + p.Luck + p.Defense + p.Level*2
}
