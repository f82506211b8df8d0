package models

// ProfessionChange 职业变更历史
type ProfessionChange struct {
	ProfessionID string `json:"profession_id"`
	Timestamp    int64  `json:"timestamp"` // 毫秒时间戳
}

// ProfessionRecord 玩家职业与天赋数据
type ProfessionRecord struct {
	ID                  string             `json:"id"`
	CurrentProfessionID string             `json:"current_profession_id"` // 空字符串表示无职业
	History             []ProfessionChange `json:"profession_history"`
	TalentPoints        int                `json:"talent_points"`
	TalentPointsGranted int                `json:"talent_points_granted"` // 累计获得的天赋点
	LearnedTalents      map[string]int     `json:"learned_talents"`
}

// NewProfessionRecord 创建默认职业数据
func NewProfessionRecord(id string) *ProfessionRecord {
	return &ProfessionRecord{
		ID:             id,
		History:        []ProfessionChange{},
		LearnedTalents: map[string]int{},
	}
}

// RecordID 记录标识
func (r *ProfessionRecord) RecordID() string {
	return r.ID
}

// Clone 深拷贝
func (r *ProfessionRecord) Clone() *ProfessionRecord {
	c := *r
	c.History = append([]ProfessionChange{}, r.History...)
	c.LearnedTalents = make(map[string]int, len(r.LearnedTalents))
	for k, v := range r.LearnedTalents {
		c.LearnedTalents[k] = v
	}
	return &c
}

// Normalize 补齐空集合
func (r *ProfessionRecord) Normalize() {
	if r.History == nil {
		r.History = []ProfessionChange{}
	}
	if r.LearnedTalents == nil {
		r.LearnedTalents = map[string]int{}
	}
}

// TalentLevel 天赋当前等级，未学习为0
func (r *ProfessionRecord) TalentLevel(talentID string) int {
	return r.LearnedTalents[talentID]
}
