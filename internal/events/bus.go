package events

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/wfunc/superrpg-core/internal/logger"
	"github.com/wfunc/superrpg-core/internal/metrics"
	"go.uber.org/zap"
)

// 领域事件主题
const (
	TopicLevelUp          = "player.level_up"
	TopicProfessionChange = "player.profession_change"
	TopicSkillCast        = "skill.cast"
)

const closeTimeout = 5 * time.Second

// LevelUp 升级事件
type LevelUp struct {
	ID           string `json:"id"`
	NewLevel     int    `json:"new_level"`
	LevelsGained int    `json:"levels_gained"`
}

// ProfessionChanged 转职事件
type ProfessionChanged struct {
	ID                   string `json:"id"`
	NewProfessionID      string `json:"new_profession_id"`
	PreviousProfessionID string `json:"previous_profession_id,omitempty"`
}

// SkillCast 技能释放事件
type SkillCast struct {
	ID       string `json:"id"`
	SkillID  string `json:"skill_id"`
	TargetID string `json:"target_id"`
	Level    int    `json:"level"`
}

// Handler 事件处理函数
type Handler func(ctx context.Context, payload interface{}) error

// Publisher 事件发布接口，引擎只依赖此接口
type Publisher interface {
	Emit(ctx context.Context, topic string, payload interface{})
	Publish(ctx context.Context, topic string, payload interface{})
}

// Bus 进程内事件总线
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	pool     *ants.Pool
	wg       sync.WaitGroup
	closed   bool // 受 mu 保护，关闭后不再计入 wg
	log      *zap.Logger
}

// NewBus 创建事件总线，poolSize 为异步投递协程数
func NewBus(poolSize int, log *zap.Logger) (*Bus, error) {
	if log == nil {
		log = logger.WithModule("events")
	}
	pool, err := ants.NewPool(poolSize, ants.WithPanicHandler(func(p interface{}) {
		logger.LogPanic(log, p, debug.Stack(), zap.String("source", "pool"))
	}))
	if err != nil {
		return nil, fmt.Errorf("创建事件协程池失败: %w", err)
	}
	return &Bus{
		handlers: make(map[string][]Handler),
		pool:     pool,
		log:      log,
	}, nil
}

// On 订阅主题
func (b *Bus) On(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

// Emit 同步投递，所有处理函数执行完毕后返回
func (b *Bus) Emit(ctx context.Context, topic string, payload interface{}) {
	metrics.RecordEvent(topic, "sync")
	b.dispatch(ctx, topic, payload)
}

// Publish 异步投递；总线已关闭或协程池不可用时退化为同步投递
func (b *Bus) Publish(ctx context.Context, topic string, payload interface{}) {
	// 调用方返回后事件仍需投递
	ctx = context.WithoutCancel(ctx)

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		metrics.RecordEvent(topic, "sync")
		b.dispatch(ctx, topic, payload)
		return
	}
	b.wg.Add(1)
	b.mu.RUnlock()

	metrics.RecordEvent(topic, "async")
	err := b.pool.Submit(func() {
		defer b.wg.Done()
		b.dispatch(ctx, topic, payload)
	})
	if err != nil {
		b.wg.Done()
		b.log.Warn("异步投递失败，改为同步投递", zap.String("topic", topic), zap.Error(err))
		b.dispatch(ctx, topic, payload)
	}
}

// Wait 等待所有异步事件处理完成
func (b *Bus) Wait() {
	b.wg.Wait()
}

// Close 等待在途事件后释放协程池，可重复调用
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()
	if err := b.pool.ReleaseTimeout(closeTimeout); err != nil {
		b.log.Warn("事件协程池释放超时", zap.Error(err))
	}
}

func (b *Bus) dispatch(ctx context.Context, topic string, payload interface{}) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[topic]...)
	b.mu.RUnlock()

	logger.LogDomainEvent(topic, entityID(payload), payload)

	for _, h := range handlers {
		b.invoke(ctx, topic, h, payload)
	}
}

// invoke 单个处理函数的错误和panic不影响其他订阅者
func (b *Bus) invoke(ctx context.Context, topic string, h Handler, payload interface{}) {
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(b.log, r, debug.Stack(), zap.String("topic", topic))
		}
	}()
	if err := h(ctx, payload); err != nil {
		b.log.Error("事件处理失败", zap.String("topic", topic), zap.Error(err))
	}
}

func entityID(payload interface{}) string {
	switch p := payload.(type) {
	case LevelUp:
		return p.ID
	case ProfessionChanged:
		return p.ID
	case SkillCast:
		return p.ID
	default:
		return ""
	}
}
