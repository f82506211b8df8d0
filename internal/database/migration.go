package database

import (
	"fmt"

	"github.com/wfunc/superrpg-core/internal/logger"
	"github.com/wfunc/superrpg-core/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AutoMigrate 自动迁移全局数据库的记录表
func AutoMigrate() error {
	if DB == nil {
		return fmt.Errorf("数据库未初始化")
	}

	// 清理过期锁文件
	CleanupStaleLocks()

	// 获取迁移锁，避免多个进程同时迁移同一个SQLite文件
	if dbPath := getDBPath(DB); dbPath != "" {
		lockFile, err := acquireMigrationLock(dbPath)
		if err != nil {
			logger.Error("无法获取迁移锁", zap.Error(err))
			return fmt.Errorf("获取迁移锁失败: %w", err)
		}
		defer releaseMigrationLock(lockFile)
	}

	return MigrateRecordTables(DB)
}

// MigrateRecordTables 创建三张记录表及索引
func MigrateRecordTables(db *gorm.DB) error {
	logger.Info("开始数据库迁移...")

	for _, table := range models.RecordTables() {
		if err := db.Table(table).AutoMigrate(&models.RecordRow{}); err != nil {
			logger.Error("迁移失败",
				zap.String("table", table),
				zap.Error(err),
			)
			return err
		}
		logger.Debug("迁移成功", zap.String("table", table))
	}

	createIndexes(db)

	logger.Info("数据库迁移完成")
	return nil
}

// createIndexes 创建数据库索引
func createIndexes(db *gorm.DB) {
	for _, table := range models.RecordTables() {
		index := fmt.Sprintf("idx_%s_updated_at", table)
		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(updated_at)", index, table)
		if err := db.Exec(stmt).Error; err != nil {
			logger.Warn("创建索引失败", zap.String("index", index), zap.Error(err))
		}
	}
}
