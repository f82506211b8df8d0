package progression

import (
	"context"
	"fmt"

	"github.com/wfunc/superrpg-core/internal/errors"
	"github.com/wfunc/superrpg-core/internal/events"
	"github.com/wfunc/superrpg-core/internal/host"
	"github.com/wfunc/superrpg-core/internal/logger"
	"github.com/wfunc/superrpg-core/internal/metrics"
	"github.com/wfunc/superrpg-core/internal/models"
	"github.com/wfunc/superrpg-core/internal/store"
	"go.uber.org/zap"
)

const engineName = "progression"

// Options 引擎参数
type Options struct {
	Rules    Rules
	Notifier host.Notifier
	Logger   *zap.Logger
}

// Engine 等级与属性引擎
type Engine struct {
	players  *store.RecordStore[*models.PlayerRecord]
	locker   *store.Locker
	bus      events.Publisher
	notifier host.Notifier
	rules    Rules
	log      *zap.Logger
}

// NewEngine 创建等级引擎
func NewEngine(players *store.RecordStore[*models.PlayerRecord], locker *store.Locker, bus events.Publisher, opts Options) *Engine {
	if opts.Rules == (Rules{}) {
		opts.Rules = DefaultRules()
	}
	if opts.Logger == nil {
		opts.Logger = logger.WithModule(engineName)
	}
	if opts.Notifier == nil {
		opts.Notifier = host.LogNotifier{Log: opts.Logger}
	}
	return &Engine{
		players:  players,
		locker:   locker,
		bus:      bus,
		notifier: opts.Notifier,
		rules:    opts.Rules,
		log:      opts.Logger,
	}
}

// Rules 当前规则
func (e *Engine) Rules() Rules {
	return e.rules
}

// Player 获取玩家数据副本
func (e *Engine) Player(ctx context.Context, id string) (*models.PlayerRecord, error) {
	return e.players.Get(ctx, id)
}

// TotalPower 综合战力
func (e *Engine) TotalPower(ctx context.Context, id string) (int, error) {
	p, err := e.players.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return TotalPower(p), nil
}

// Update 在实体锁内修改玩家数据并持久化；fn 返回错误时不写入
func (e *Engine) Update(ctx context.Context, id string, fn func(p *models.PlayerRecord) error) (*models.PlayerRecord, error) {
	unlock := e.locker.Lock(id)
	defer unlock()

	p, err := e.players.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	if err := e.players.Put(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GainExperience 增加经验，返回升级数；升级时发布 player.level_up
func (e *Engine) GainExperience(ctx context.Context, id string, amount int64) (gained int, err error) {
	defer func() { metrics.RecordOperation(engineName, "gain_experience", errors.ResultLabel(err)) }()

	p, err := e.Update(ctx, id, func(p *models.PlayerRecord) error {
		var addErr error
		gained, addErr = e.rules.AddExperience(p, amount)
		return addErr
	})
	if err != nil {
		gained = 0
		return 0, err
	}

	if gained > 0 {
		metrics.AddLevelsGained(gained)
		e.log.Info("玩家升级",
			zap.String("entity_id", id),
			zap.Int("level", p.Level),
			zap.Int("levels_gained", gained),
		)
		e.bus.Emit(ctx, events.TopicLevelUp, events.LevelUp{ID: id, NewLevel: p.Level, LevelsGained: gained})

		e.notifier.SendMessage(id, fmt.Sprintf("恭喜！你升到了 %d 级！", p.Level))
		e.notifier.SendMessage(id, fmt.Sprintf("获得了 %d 点属性点", gained*e.rules.StatPointsPerLevel))
		e.notifier.SendTitle(id, "升级！", fmt.Sprintf("等级 %d", p.Level))
	}
	return gained, nil
}

// Allocate 分配属性点
func (e *Engine) Allocate(ctx context.Context, id, attribute string, points int) (err error) {
	defer func() { metrics.RecordOperation(engineName, "allocate", errors.ResultLabel(err)) }()

	_, err = e.Update(ctx, id, func(p *models.PlayerRecord) error {
		return e.rules.AllocateStatPoint(p, attribute, points)
	})
	return err
}

// SetLevel 管理员设置等级，不触发升级事件
func (e *Engine) SetLevel(ctx context.Context, id string, level int) (err error) {
	defer func() { metrics.RecordOperation(engineName, "set_level", errors.ResultLabel(err)) }()

	old := 0
	_, err = e.Update(ctx, id, func(p *models.PlayerRecord) error {
		old = p.Level
		return e.rules.SetLevel(p, level)
	})
	if err != nil {
		return err
	}
	e.log.Info("管理员设置等级", zap.String("entity_id", id), zap.Int("from", old), zap.Int("to", level))
	return nil
}
