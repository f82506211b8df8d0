package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wfunc/superrpg-core/internal/errors"
	"github.com/wfunc/superrpg-core/internal/logger"
	"github.com/wfunc/superrpg-core/internal/metrics"
	"github.com/wfunc/superrpg-core/internal/models"
	"github.com/wfunc/superrpg-core/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultOpTimeout 默认单次持久化超时
const DefaultOpTimeout = 5 * time.Second

// Options 存储参数
type Options struct {
	OpTimeout time.Duration
	Logger    *zap.Logger
}

// RecordStore 记录的读写穿透缓存，按实体ID索引
type RecordStore[T models.Record[T]] struct {
	table   string
	repo    repository.RecordRepository
	newFn   func(id string) T
	timeout time.Duration
	log     *zap.Logger

	mu    sync.RWMutex
	cache map[string]T
	group singleflight.Group

	// wmu 串行化本表的所有后端写入，编码到写入再到替换缓存都在锁内
	wmu sync.Mutex
}

// New 创建记录存储，newFn 用于生成不存在时的默认记录
func New[T models.Record[T]](table string, repo repository.RecordRepository, newFn func(id string) T, opts Options) *RecordStore[T] {
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = DefaultOpTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.WithModule("store")
	}
	return &RecordStore[T]{
		table:   table,
		repo:    repo,
		newFn:   newFn,
		timeout: opts.OpTimeout,
		log:     opts.Logger,
		cache:   make(map[string]T),
	}
}

// Table 表名
func (s *RecordStore[T]) Table() string {
	return s.table
}

// Get 获取记录副本；未缓存时同一ID的并发请求只触发一次后端加载
func (s *RecordStore[T]) Get(ctx context.Context, id string) (T, error) {
	if rec, ok := s.cached(id); ok {
		metrics.RecordLoad(s.table, "hit")
		return rec.Clone(), nil
	}

	v, err, _ := s.group.Do(id, func() (interface{}, error) {
		if rec, ok := s.cached(id); ok {
			return rec, nil
		}

		// 共享加载不受单个调用方取消影响，只受超时约束
		rec, err := s.load(context.WithoutCancel(ctx), id)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		if existing, ok := s.cache[id]; ok {
			rec = existing
		} else {
			s.cache[id] = rec
		}
		n := len(s.cache)
		s.mu.Unlock()
		metrics.SetCached(s.table, n)

		return rec, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T).Clone(), nil
}

// load 从后端读取，不存在则创建默认记录并持久化
func (s *RecordStore[T]) load(ctx context.Context, id string) (T, error) {
	var zero T

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row, err := s.repo.Find(opCtx, s.table, id)
	switch {
	case err == nil:
		rec, decodeErr := s.decode(row)
		if decodeErr != nil {
			metrics.RecordLoad(s.table, "error")
			return zero, s.fail(id, decodeErr, "解码记录失败")
		}
		metrics.RecordLoad(s.table, "miss")
		return rec, nil
	case stderrors.Is(err, repository.ErrRecordNotFound):
		rec := s.newFn(id)
		if err := s.write(opCtx, rec); err != nil {
			metrics.RecordLoad(s.table, "error")
			return zero, s.fail(id, err, "创建默认记录失败")
		}
		metrics.RecordLoad(s.table, "created")
		s.log.Debug("创建默认记录", zap.String("table", s.table), zap.String("entity_id", id))
		return rec, nil
	default:
		metrics.RecordLoad(s.table, "error")
		return zero, s.fail(id, err, "读取记录失败")
	}
}

// Put 写入记录，成功后更新缓存；失败时缓存保持不变
func (s *RecordStore[T]) Put(ctx context.Context, rec T) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.put(ctx, rec)
}

func (s *RecordStore[T]) put(ctx context.Context, rec T) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.write(opCtx, rec); err != nil {
		return s.fail(rec.RecordID(), err, "保存记录失败")
	}
	s.swap(rec)
	return nil
}

// Peek 只读查看缓存，不触发加载
func (s *RecordStore[T]) Peek(id string) (T, bool) {
	rec, ok := s.cached(id)
	if !ok {
		return rec, false
	}
	return rec.Clone(), true
}

// IDs 当前缓存的实体ID
func (s *RecordStore[T]) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.cache))
	for id := range s.cache {
		ids = append(ids, id)
	}
	return ids
}

// Len 缓存记录数
func (s *RecordStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// FlushAll 在一个事务中持久化所有缓存记录
func (s *RecordStore[T]) FlushAll(ctx context.Context) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.RLock()
	rows := make([]repository.TableRow, 0, len(s.cache))
	for id, rec := range s.cache {
		row, err := s.encode(rec)
		if err != nil {
			s.mu.RUnlock()
			return s.fail(id, err, "编码记录失败")
		}
		rows = append(rows, repository.TableRow{Table: s.table, Row: row})
	}
	s.mu.RUnlock()

	if len(rows) == 0 {
		return nil
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := s.repo.UpsertAll(opCtx, rows)
	metrics.RecordWrite(s.table, time.Since(start), err)
	if err != nil {
		return s.fail("*", err, "批量保存失败")
	}
	s.log.Debug("缓存已落盘", zap.String("table", s.table), zap.Int("count", len(rows)))
	return nil
}

// Evict 落盘后移除缓存；落盘失败时保留缓存
func (s *RecordStore[T]) Evict(ctx context.Context, id string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	rec, ok := s.cached(id)
	if !ok {
		return nil
	}
	if err := s.put(ctx, rec); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.cache, id)
	n := len(s.cache)
	s.mu.Unlock()
	metrics.SetCached(s.table, n)
	return nil
}

func (s *RecordStore[T]) cached(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.cache[id]
	return rec, ok
}

func (s *RecordStore[T]) swap(rec T) {
	s.mu.Lock()
	s.cache[rec.RecordID()] = rec.Clone()
	n := len(s.cache)
	s.mu.Unlock()
	metrics.SetCached(s.table, n)
}

func (s *RecordStore[T]) write(ctx context.Context, rec T) error {
	row, err := s.encode(rec)
	if err != nil {
		return err
	}
	start := time.Now()
	err = s.repo.Upsert(ctx, s.table, row)
	metrics.RecordWrite(s.table, time.Since(start), err)
	return err
}

func (s *RecordStore[T]) encode(rec T) (*models.RecordRow, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("编码记录失败: %w", err)
	}
	return &models.RecordRow{
		ID:            rec.RecordID(),
		SchemaVersion: models.SchemaVersion,
		Data:          string(data),
	}, nil
}

func (s *RecordStore[T]) decode(row *models.RecordRow) (T, error) {
	var rec T
	if row.SchemaVersion > models.SchemaVersion {
		return rec, errors.Newf(errors.ErrSchemaVersion, "表 %s 版本 %d 高于支持的 %d", s.table, row.SchemaVersion, models.SchemaVersion)
	}
	if strings.TrimSpace(row.Data) == "null" {
		return rec, fmt.Errorf("记录数据为空: %s/%s", s.table, row.ID)
	}
	if err := json.Unmarshal([]byte(row.Data), &rec); err != nil {
		return rec, fmt.Errorf("解码记录失败: %w", err)
	}
	rec.Normalize()
	return rec, nil
}

// fail 包装为持久化错误并记录日志
func (s *RecordStore[T]) fail(id string, err error, details string) error {
	logger.LogPersistenceFailure(s.log, s.table, id, err)
	return errors.Persistence(err, fmt.Sprintf("%s: %s/%s", details, s.table, id))
}
