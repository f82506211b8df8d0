package repository

import (
	"context"
	"errors"
	"time"

	"github.com/wfunc/superrpg-core/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrRecordNotFound 记录行不存在
var ErrRecordNotFound = errors.New("记录不存在")

// TableRow 指定表的一行
type TableRow struct {
	Table string
	Row   *models.RecordRow
}

// RecordRepository 记录仓储接口
type RecordRepository interface {
	BaseRepository
	Find(ctx context.Context, table, id string) (*models.RecordRow, error)
	Upsert(ctx context.Context, table string, row *models.RecordRow) error
	// UpsertAll 在同一事务中写入多行，任一失败全部回滚
	UpsertAll(ctx context.Context, rows []TableRow) error
	Delete(ctx context.Context, table, id string) error
	Count(ctx context.Context, table string) (int64, error)
}

// recordRepo 记录仓储实现
type recordRepo struct {
	*BaseRepo
}

// NewRecordRepository 创建记录仓储
func NewRecordRepository(db *gorm.DB) RecordRepository {
	return &recordRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Find 根据ID查找记录行
func (r *recordRepo) Find(ctx context.Context, table, id string) (*models.RecordRow, error) {
	var row models.RecordRow
	err := r.db.WithContext(ctx).Table(table).Where("id = ?", id).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &row, nil
}

// Upsert 插入或更新记录行
func (r *recordRepo) Upsert(ctx context.Context, table string, row *models.RecordRow) error {
	return upsert(r.db.WithContext(ctx), table, row)
}

// UpsertAll 事务内批量写入
func (r *recordRepo) UpsertAll(ctx context.Context, rows []TableRow) error {
	if len(rows) == 0 {
		return nil
	}
	return r.Transaction(ctx, func(tx *gorm.DB) error {
		for _, tr := range rows {
			if err := upsert(tx, tr.Table, tr.Row); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete 删除记录行
func (r *recordRepo) Delete(ctx context.Context, table, id string) error {
	return r.db.WithContext(ctx).Table(table).Where("id = ?", id).Delete(&models.RecordRow{}).Error
}

// Count 统计记录行数
func (r *recordRepo) Count(ctx context.Context, table string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Table(table).Count(&total).Error
	return total, err
}

func upsert(db *gorm.DB, table string, row *models.RecordRow) error {
	now := time.Now()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now

	return db.Table(table).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"schema_version", "data", "updated_at"}),
	}).Create(row).Error
}
