package models

import (
	"time"
)

// 记录表名
const (
	TablePlayerData        = "player_data"
	TablePlayerProfessions = "player_professions"
	TablePlayerSkills      = "player_skills"
)

// SchemaVersion 当前支持的记录数据版本
const SchemaVersion = 1

// RecordTables 所有记录表
func RecordTables() []string {
	return []string{TablePlayerData, TablePlayerProfessions, TablePlayerSkills}
}

// RecordRow 记录存储行，三张记录表共用同一行结构
type RecordRow struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	SchemaVersion int       `gorm:"not null;default:1" json:"schema_version"`
	Data          string    `gorm:"type:text;not null" json:"data"` // JSON格式的记录数据
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Record 可缓存、可持久化的记录
type Record[T any] interface {
	RecordID() string
	// Clone 深拷贝，调用方修改副本不影响缓存
	Clone() T
	// Normalize 解码后补齐空集合
	Normalize()
}

// UnixMilli 时间转毫秒时间戳
func UnixMilli(t time.Time) int64 {
	return t.UnixMilli()
}
