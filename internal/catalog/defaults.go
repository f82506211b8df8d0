package catalog

// 内置职业
func defaultProfessions() map[string]ProfessionDef {
	return map[string]ProfessionDef{
		"warrior": {
			Name:         "战士",
			Description:  "近战物理职业，拥有强大的攻击力和防御力",
			StatBonuses:  map[string]float64{"strength": 3, "vitality": 2, "defense": 2},
			Requirements: Requirements{Level: 1},
		},
		"mage": {
			Name:         "法师",
			Description:  "远程魔法职业，拥有强大的法术攻击能力",
			StatBonuses:  map[string]float64{"intelligence": 4, "wisdom": 2, "manaControl": 3},
			Requirements: Requirements{Level: 1},
		},
		"rogue": {
			Name:         "盗贼",
			Description:  "敏捷型职业，擅长潜行和暴击",
			StatBonuses:  map[string]float64{"agility": 4, "dexterity": 3, "luck": 2},
			Requirements: Requirements{Level: 1},
		},
		"paladin": {
			Name:         "圣骑士",
			Description:  "战士的进阶职业，拥有神圣力量",
			StatBonuses:  map[string]float64{"strength": 2, "vitality": 2, "faith": 3, "charisma": 2},
			Requirements: Requirements{Level: 20, Money: 5000, PreviousProfession: "warrior"},
		},
		"archmage": {
			Name:         "大法师",
			Description:  "法师的进阶职业，掌握更强大的魔法",
			StatBonuses:  map[string]float64{"intelligence": 5, "wisdom": 4, "magicMastery": 4},
			Requirements: Requirements{Level: 20, Money: 5000, PreviousProfession: "mage"},
		},
	}
}

// 内置天赋
func defaultTalents() map[string]TalentDef {
	return map[string]TalentDef{
		"warrior_strength": {
			Name:        "力量强化",
			Description: "增加力量属性",
			Profession:  "warrior",
			MaxLevel:    5,
			Effects:     []TalentEffect{{Attribute: "strength", BaseValue: 1, PerLevel: 1}},
		},
		"warrior_defense": {
			Name:        "防御强化",
			Description: "增加防御属性",
			Profession:  "warrior",
			MaxLevel:    5,
			Effects:     []TalentEffect{{Attribute: "defense", BaseValue: 1, PerLevel: 1}},
		},
		"mage_intelligence": {
			Name:        "智力强化",
			Description: "增加智力属性",
			Profession:  "mage",
			MaxLevel:    5,
			Effects:     []TalentEffect{{Attribute: "intelligence", BaseValue: 1, PerLevel: 1}},
		},
		"mage_mana": {
			Name:        "法力强化",
			Description: "增加最大法力值",
			Profession:  "mage",
			MaxLevel:    5,
			Effects:     []TalentEffect{{Attribute: "maxMana", BaseValue: 5, PerLevel: 5}},
		},
	}
}

// 内置技能
func defaultSkills() map[string]SkillDef {
	return map[string]SkillDef{
		"slash": {
			Name:               "斩击",
			Description:        "基础剑术攻击，造成物理伤害",
			Cooldown:           2,
			ManaCost:           5,
			MaxLevel:           5,
			RequiredLevel:      1,
			RequiredProfession: "warrior",
			TargetType:         TargetSingle,
			Range:              5,
			Effects:            []EffectDescriptor{{Kind: EffectDamage, Magnitude: 20}},
		},
		"block": {
			Name:               "格挡",
			Description:        "提升防御力，减少受到的伤害",
			Cooldown:           15,
			ManaCost:           10,
			MaxLevel:           5,
			RequiredLevel:      3,
			RequiredProfession: "warrior",
			TargetType:         TargetSelf,
			Range:              5,
			Effects:            []EffectDescriptor{{Kind: EffectBuff, Attribute: "damage_reduction", Magnitude: 0.3, Duration: 10}},
		},
		"fireball": {
			Name:               "火球术",
			Description:        "发射火球，造成火焰伤害",
			Cooldown:           3,
			ManaCost:           15,
			MaxLevel:           5,
			RequiredLevel:      1,
			RequiredProfession: "mage",
			TargetType:         TargetSingle,
			Range:              10,
			Effects: []EffectDescriptor{
				{Kind: EffectDamage, Magnitude: 30},
				{Kind: EffectDebuff, Attribute: "burn", Magnitude: 1, Duration: 5},
			},
		},
		"heal": {
			Name:               "治疗术",
			Description:        "恢复生命值的基础治疗法术",
			Cooldown:           5,
			ManaCost:           20,
			MaxLevel:           5,
			RequiredLevel:      1,
			RequiredProfession: "mage",
			TargetType:         TargetSelf,
			Range:              5,
			Effects:            []EffectDescriptor{{Kind: EffectHeal, Magnitude: 25}},
		},
		"stealth": {
			Name:               "潜行",
			Description:        "进入隐身状态并提升移动速度",
			Cooldown:           30,
			ManaCost:           25,
			MaxLevel:           5,
			RequiredLevel:      1,
			RequiredProfession: "rogue",
			TargetType:         TargetSelf,
			Range:              5,
			Effects: []EffectDescriptor{
				{Kind: EffectBuff, Attribute: "invisibility", Magnitude: 1, Duration: 10},
				{Kind: EffectBuff, Attribute: "speed", Magnitude: 2, Duration: 10},
			},
		},
		"backstab": {
			Name:               "背刺",
			Description:        "从背后攻击，造成额外伤害",
			Cooldown:           8,
			ManaCost:           15,
			MaxLevel:           5,
			RequiredLevel:      5,
			RequiredProfession: "rogue",
			TargetType:         TargetSingle,
			Range:              5,
			Effects:            []EffectDescriptor{{Kind: EffectDamage, Magnitude: 40}},
		},
	}
}
