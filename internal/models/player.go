package models

import (
	"strings"
	"time"
)

// Stage 玩家成长阶段
type Stage string

const (
	StageWanderer   Stage = "wanderer"
	StageAdventurer Stage = "adventurer"
	StageHero       Stage = "hero"
	StageLegend     Stage = "legend"
)

// StageForLevel 按等级计算成长阶段
func StageForLevel(level int) Stage {
	switch {
	case level >= 60:
		return StageLegend
	case level >= 30:
		return StageHero
	case level >= 10:
		return StageAdventurer
	default:
		return StageWanderer
	}
}

// PrimaryAttributes 六项可分配的基础属性
var PrimaryAttributes = []string{"strength", "agility", "intelligence", "vitality", "luck", "defense"}

// PlayerRecord 玩家成长与经济数据
type PlayerRecord struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	Level      int     `json:"level"`
	Experience int64   `json:"experience"`
	Money      int64   `json:"money"`
	Health     float64 `json:"health"`
	MaxHealth  float64 `json:"max_health"`
	Mana       float64 `json:"mana"`
	MaxMana    float64 `json:"max_mana"`

	// 基础属性
	Strength     int `json:"strength"`
	Agility      int `json:"agility"`
	Intelligence int `json:"intelligence"`
	Vitality     int `json:"vitality"`
	Luck         int `json:"luck"`
	Defense      int `json:"defense"`
	StatPoints   int `json:"stat_points"`

	// 职业相关属性
	Constitution   int `json:"constitution"`
	Dexterity      int `json:"dexterity"`
	Wisdom         int `json:"wisdom"`
	Charisma       int `json:"charisma"`
	Honor          int `json:"honor"`
	Faith          int `json:"faith"`
	Rage           int `json:"rage"`
	ManaControl    int `json:"mana_control"`
	MagicMastery   int `json:"magic_mastery"`
	BattleSpirit   int `json:"battle_spirit"`
	Perception     int `json:"perception"`
	NatureAffinity int `json:"nature_affinity"`
	Focus          int `json:"focus"`

	Stage                Stage `json:"stage"`
	QuestsCompleted      int   `json:"quests_completed"`
	AchievementsUnlocked int   `json:"achievements_unlocked"`

	FirstJoin int64 `json:"first_join"` // 毫秒时间戳
	LastSeen  int64 `json:"last_seen"`  // 毫秒时间戳
	PlayTime  int64 `json:"play_time"`  // 秒
}

// NewPlayerRecord 创建默认玩家数据
func NewPlayerRecord(id string, now time.Time) *PlayerRecord {
	ts := UnixMilli(now)
	return &PlayerRecord{
		ID:           id,
		Username:     "Unknown",
		Level:        1,
		Money:        100,
		Health:       100,
		MaxHealth:    100,
		Mana:         20,
		MaxMana:      20,
		Strength:     5,
		Agility:      5,
		Intelligence: 5,
		Vitality:     5,
		Luck:         5,
		Defense:      5,
		StatPoints:   25,
		Constitution: 5,
		Dexterity:    5,
		Wisdom:       5,
		Charisma:     5,
		Perception:   5,
		Stage:        StageWanderer,
		FirstJoin:    ts,
		LastSeen:     ts,
	}
}

// RecordID 记录标识
func (p *PlayerRecord) RecordID() string {
	return p.ID
}

// Clone 深拷贝
func (p *PlayerRecord) Clone() *PlayerRecord {
	c := *p
	return &c
}

// Normalize 补齐缺省值
func (p *PlayerRecord) Normalize() {
	if p.Stage == "" {
		p.Stage = StageForLevel(p.Level)
	}
}

// NormalizeAttribute 统一属性名写法：maxMana / max_mana / MAXMANA 视为同一属性
func NormalizeAttribute(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "")
}

// IsPrimaryAttribute 是否为可分配的基础属性
func IsPrimaryAttribute(name string) bool {
	n := NormalizeAttribute(name)
	for _, attr := range PrimaryAttributes {
		if attr == n {
			return true
		}
	}
	return false
}

func (p *PlayerRecord) intAttribute(name string) *int {
	switch NormalizeAttribute(name) {
	case "strength":
		return &p.Strength
	case "agility":
		return &p.Agility
	case "intelligence":
		return &p.Intelligence
	case "vitality":
		return &p.Vitality
	case "luck":
		return &p.Luck
	case "defense":
		return &p.Defense
	case "constitution":
		return &p.Constitution
	case "dexterity":
		return &p.Dexterity
	case "wisdom":
		return &p.Wisdom
	case "charisma":
		return &p.Charisma
	case "honor":
		return &p.Honor
	case "faith":
		return &p.Faith
	case "rage":
		return &p.Rage
	case "manacontrol":
		return &p.ManaControl
	case "magicmastery":
		return &p.MagicMastery
	case "battlespirit":
		return &p.BattleSpirit
	case "perception":
		return &p.Perception
	case "natureaffinity":
		return &p.NatureAffinity
	case "focus":
		return &p.Focus
	}
	return nil
}

func (p *PlayerRecord) floatAttribute(name string) *float64 {
	switch NormalizeAttribute(name) {
	case "health":
		return &p.Health
	case "maxhealth":
		return &p.MaxHealth
	case "mana":
		return &p.Mana
	case "maxmana":
		return &p.MaxMana
	}
	return nil
}

// HasAttribute 是否为已知的可加成属性
func (p *PlayerRecord) HasAttribute(name string) bool {
	return p.intAttribute(name) != nil || p.floatAttribute(name) != nil
}

// Attribute 读取属性值，未知属性返回false
func (p *PlayerRecord) Attribute(name string) (float64, bool) {
	if v := p.intAttribute(name); v != nil {
		return float64(*v), true
	}
	if v := p.floatAttribute(name); v != nil {
		return *v, true
	}
	return 0, false
}

// AddAttribute 按名称给属性加值，整数属性截断小数部分；未知属性返回false
func (p *PlayerRecord) AddAttribute(name string, delta float64) bool {
	if v := p.intAttribute(name); v != nil {
		*v += int(delta)
		return true
	}
	if v := p.floatAttribute(name); v != nil {
		*v += delta
		return true
	}
	return false
}
