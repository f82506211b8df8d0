package models

// HotbarSize 热键栏格数
const HotbarSize = 9

// AbilityRecord 玩家技能数据
type AbilityRecord struct {
	ID            string             `json:"id"`
	LearnedSkills map[string]int     `json:"learned_skills"`
	Hotbar        [HotbarSize]string `json:"hotbar"` // 空字符串表示空格
	SkillPoints   int                `json:"skill_points"`
}

// NewAbilityRecord 创建默认技能数据
func NewAbilityRecord(id string) *AbilityRecord {
	return &AbilityRecord{
		ID:            id,
		LearnedSkills: map[string]int{},
	}
}

// RecordID 记录标识
func (r *AbilityRecord) RecordID() string {
	return r.ID
}

// Clone 深拷贝
func (r *AbilityRecord) Clone() *AbilityRecord {
	c := *r
	c.LearnedSkills = make(map[string]int, len(r.LearnedSkills))
	for k, v := range r.LearnedSkills {
		c.LearnedSkills[k] = v
	}
	return &c
}

// Normalize 补齐空集合
func (r *AbilityRecord) Normalize() {
	if r.LearnedSkills == nil {
		r.LearnedSkills = map[string]int{}
	}
}

// SkillLevel 技能等级，未学习为0
func (r *AbilityRecord) SkillLevel(skillID string) int {
	return r.LearnedSkills[skillID]
}
