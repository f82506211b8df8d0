package catalog

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Requirements 转职门槛
type Requirements struct {
	Level              int    `yaml:"level" json:"level"`
	Money              int64  `yaml:"money" json:"money"`
	PreviousProfession string `yaml:"previous_profession" json:"previous_profession,omitempty"`
}

// ProfessionDef 职业定义
type ProfessionDef struct {
	ID           string             `yaml:"-" json:"id"`
	Name         string             `yaml:"name" json:"name"`
	Description  string             `yaml:"description" json:"description"`
	StatBonuses  map[string]float64 `yaml:"stat_bonuses" json:"stat_bonuses"`
	Requirements Requirements       `yaml:"requirements" json:"requirements"`
}

// TalentEffect 天赋效果，数值随天赋等级线性增长
type TalentEffect struct {
	Attribute string  `yaml:"attribute" json:"attribute"`
	BaseValue float64 `yaml:"base_value" json:"base_value"`
	PerLevel  float64 `yaml:"per_level" json:"per_level"`
}

// Value 指定天赋等级的效果值
func (e TalentEffect) Value(level int) float64 {
	return e.BaseValue + e.PerLevel*float64(level-1)
}

// TalentDef 天赋定义
type TalentDef struct {
	ID          string         `yaml:"-" json:"id"`
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description" json:"description"`
	Profession  string         `yaml:"profession" json:"profession,omitempty"` // 空表示通用天赋
	MaxLevel    int            `yaml:"max_level" json:"max_level"`
	Effects     []TalentEffect `yaml:"effects" json:"effects"`
}

// EffectKind 技能效果类型
type EffectKind int

const (
	EffectDamage EffectKind = iota + 1
	EffectHeal
	EffectBuff
	EffectDebuff
)

var effectKindNames = map[EffectKind]string{
	EffectDamage: "damage",
	EffectHeal:   "heal",
	EffectBuff:   "buff",
	EffectDebuff: "debuff",
}

// String 效果类型名称
func (k EffectKind) String() string {
	if name, ok := effectKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EffectKind(%d)", int(k))
}

// Timed 是否为可持续的效果类型
func (k EffectKind) Timed() bool {
	switch k {
	case EffectBuff, EffectDebuff:
		return true
	case EffectDamage, EffectHeal:
		return false
	default:
		return false
	}
}

// ParseEffectKind 解析效果类型
func ParseEffectKind(s string) (EffectKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, n := range effectKindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("未知的效果类型: %q", s)
}

// MarshalText 文本编码
func (k EffectKind) MarshalText() ([]byte, error) {
	if _, ok := effectKindNames[k]; !ok {
		return nil, fmt.Errorf("未知的效果类型: %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalYAML 从YAML解析效果类型
func (k *EffectKind) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseEffectKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// EffectDescriptor 技能效果描述
type EffectDescriptor struct {
	Kind      EffectKind `yaml:"kind" json:"kind"`
	Attribute string     `yaml:"attribute" json:"attribute,omitempty"` // 增益/减益作用的属性标签
	Magnitude float64    `yaml:"magnitude" json:"magnitude"`
	Duration  float64    `yaml:"duration" json:"duration"` // 秒
}

// DurationValue 持续时间
func (e EffectDescriptor) DurationValue() time.Duration {
	return seconds(e.Duration)
}

// TargetType 技能目标类型
type TargetType string

const (
	TargetSelf   TargetType = "self"
	TargetSingle TargetType = "target"
	TargetArea   TargetType = "area"
)

// SkillDef 技能定义
type SkillDef struct {
	ID                 string             `yaml:"-" json:"id"`
	Name               string             `yaml:"name" json:"name"`
	Description        string             `yaml:"description" json:"description"`
	Cooldown           float64            `yaml:"cooldown" json:"cooldown"` // 秒
	ManaCost           float64            `yaml:"mana_cost" json:"mana_cost"`
	MaxLevel           int                `yaml:"max_level" json:"max_level"`
	RequiredLevel      int                `yaml:"required_level" json:"required_level"`
	RequiredProfession string             `yaml:"required_profession" json:"required_profession,omitempty"`
	Permission         string             `yaml:"permission" json:"permission,omitempty"`
	TargetType         TargetType         `yaml:"target_type" json:"target_type"`
	Range              float64            `yaml:"range" json:"range"`
	Passive            bool               `yaml:"passive" json:"passive"`
	Effects            []EffectDescriptor `yaml:"effects" json:"effects"`
}

// CooldownValue 冷却时间
func (s *SkillDef) CooldownValue() time.Duration {
	return seconds(s.Cooldown)
}

// ScaledMagnitude 按技能等级放大效果数值
func ScaledMagnitude(base float64, level int, scaling float64) float64 {
	if level < 1 {
		level = 1
	}
	return base * (1 + scaling*float64(level-1))
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
