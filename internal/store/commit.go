package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wfunc/superrpg-core/internal/errors"
	"github.com/wfunc/superrpg-core/internal/logger"
	"github.com/wfunc/superrpg-core/internal/metrics"
	"github.com/wfunc/superrpg-core/internal/repository"
)

// Write 待提交的单条记录写入，由 Stage 生成
type Write struct {
	table   string
	id      string
	row     repository.TableRow
	repo    repository.RecordRepository
	timeout time.Duration
	err     error
	lock    *sync.Mutex
	apply   func()
}

// Stage 准备写入但不提交，提交成功后才替换缓存
func (s *RecordStore[T]) Stage(rec T) Write {
	snapshot := rec.Clone()
	row, err := s.encode(snapshot)
	return Write{
		table:   s.table,
		id:      rec.RecordID(),
		row:     repository.TableRow{Table: s.table, Row: row},
		repo:    s.repo,
		timeout: s.timeout,
		err:     err,
		lock:    &s.wmu,
		apply:   func() { s.swap(snapshot) },
	}
}

// Commit 在同一个后端事务中提交多条写入；任一失败则全部回滚且缓存不变
func Commit(ctx context.Context, writes ...Write) error {
	if len(writes) == 0 {
		return nil
	}

	rows := make([]repository.TableRow, 0, len(writes))
	tables := make([]string, 0, len(writes))
	timeout := time.Duration(0)
	for _, w := range writes {
		if w.err != nil {
			return errors.Persistence(w.err, fmt.Sprintf("编码记录失败: %s/%s", w.table, w.id))
		}
		rows = append(rows, w.row)
		tables = append(tables, w.table)
		if w.timeout > timeout {
			timeout = w.timeout
		}
	}

	unlock := lockWrites(writes)
	defer unlock()

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	repo := writes[0].repo
	start := time.Now()
	err := repo.UpsertAll(opCtx, rows)
	label := strings.Join(tables, "+")
	metrics.RecordWrite(label, time.Since(start), err)
	if err != nil {
		logger.LogPersistenceFailure(logger.WithModule("store"), label, writes[0].id, err)
		return errors.Persistence(err, fmt.Sprintf("事务提交失败: %s/%s", label, writes[0].id))
	}

	for _, w := range writes {
		w.apply()
	}
	return nil
}

// lockWrites 按表名顺序获取涉及的写入锁，同一把锁只获取一次
func lockWrites(writes []Write) (unlock func()) {
	sorted := make([]Write, len(writes))
	copy(sorted, writes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].table < sorted[j].table })

	seen := make(map[*sync.Mutex]struct{}, len(sorted))
	locks := make([]*sync.Mutex, 0, len(sorted))
	for _, w := range sorted {
		if _, ok := seen[w.lock]; ok {
			continue
		}
		seen[w.lock] = struct{}{}
		locks = append(locks, w.lock)
	}

	for _, l := range locks {
		l.Lock()
	}
	return func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].Unlock()
		}
	}
}
