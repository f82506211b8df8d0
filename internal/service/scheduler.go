package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/wfunc/superrpg-core/internal/config"
	"github.com/wfunc/superrpg-core/internal/errors"
	"go.uber.org/zap"
)

const jobTimeout = time.Minute

// Scheduler 定时落盘与缓存清理
type Scheduler struct {
	cron *cron.Cron
	svc  *Services
	log  *zap.Logger
}

// cronLogger 把 cron 日志转到 zap
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}

// NewScheduler 按配置注册定时任务
func NewScheduler(svc *Services, cfg config.SnapshotConfig, log *zap.Logger) (*Scheduler, error) {
	cl := cronLogger{log: log.Sugar()}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	s := &Scheduler{cron: c, svc: svc, log: log}

	if _, err := c.AddFunc(cfg.FlushSpec, s.Snapshot); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigValidate, "无效的落盘周期: %s", cfg.FlushSpec)
	}
	if _, err := c.AddFunc(cfg.CleanupSpec, s.Cleanup); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigValidate, "无效的清理周期: %s", cfg.CleanupSpec)
	}
	return s, nil
}

// Start 启动
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止并等待执行中的任务
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Snapshot 落盘所有缓存
func (s *Scheduler) Snapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	if err := s.svc.FlushAll(ctx); err != nil {
		s.log.Error("定时落盘失败", zap.Bool("retryable", errors.IsRetryable(err)), zap.Error(err))
		return
	}
	s.log.Debug("定时落盘完成", zap.Duration("elapsed", time.Since(start)))
}

// Cleanup 清理离线实体缓存
func (s *Scheduler) Cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.svc.Cleanup(ctx)
	if err != nil {
		s.log.Error("缓存清理失败", zap.Int("evicted", n), zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("缓存清理完成", zap.Int("evicted", n))
	}
}
