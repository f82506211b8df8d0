package service

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/wfunc/superrpg-core/internal/ability"
	"github.com/wfunc/superrpg-core/internal/catalog"
	"github.com/wfunc/superrpg-core/internal/config"
	"github.com/wfunc/superrpg-core/internal/errors"
	"github.com/wfunc/superrpg-core/internal/events"
	"github.com/wfunc/superrpg-core/internal/host"
	"github.com/wfunc/superrpg-core/internal/models"
	"github.com/wfunc/superrpg-core/internal/profession"
	"github.com/wfunc/superrpg-core/internal/progression"
	"github.com/wfunc/superrpg-core/internal/repository"
	"github.com/wfunc/superrpg-core/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps 宿主提供的协作者，未设置时使用默认实现
type Deps struct {
	Clock       host.Clock
	Permissions host.PermissionChecker
	Notifier    host.Notifier
	Applier     host.EffectApplier
}

// Services 服务集合，每个进程构建一次
type Services struct {
	Players     *store.RecordStore[*models.PlayerRecord]
	Professions *store.RecordStore[*models.ProfessionRecord]
	Abilities   *store.RecordStore[*models.AbilityRecord]

	Catalog     *catalog.Catalog
	Bus         *events.Bus
	Progression *progression.Engine
	Profession  *profession.Engine
	Ability     *ability.Engine

	locker   *store.Locker
	clock    host.Clock
	notifier host.Notifier
	log      *zap.Logger

	mu       sync.Mutex
	sessions map[string]session
}

// NewServices 创建服务集合并注册升级事件订阅
func NewServices(db *gorm.DB, cfg *config.Config, cat *catalog.Catalog, deps Deps, log *zap.Logger) (*Services, error) {
	if deps.Clock == nil {
		deps.Clock = host.SystemClock{}
	}
	if deps.Notifier == nil {
		deps.Notifier = host.LogNotifier{Log: log.Named("notify")}
	}

	repo := repository.NewRecordRepository(db)
	storeOpts := store.Options{OpTimeout: cfg.Database.OpTimeout, Logger: log.Named("store")}
	clock := deps.Clock

	players := store.New(models.TablePlayerData, repo, func(id string) *models.PlayerRecord {
		return models.NewPlayerRecord(id, clock.Now())
	}, storeOpts)
	professions := store.New(models.TablePlayerProfessions, repo, models.NewProfessionRecord, storeOpts)
	abilities := store.New(models.TablePlayerSkills, repo, models.NewAbilityRecord, storeOpts)

	bus, err := events.NewBus(cfg.Events.PoolSize, log.Named("events"))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrUnknown, "创建事件总线失败")
	}

	locker := store.NewLocker()
	engineCfg := cfg.Engine

	s := &Services{
		Players:     players,
		Professions: professions,
		Abilities:   abilities,
		Catalog:     cat,
		Bus:         bus,
		locker:      locker,
		clock:       clock,
		notifier:    deps.Notifier,
		log:         log,
		sessions:    make(map[string]session),
	}

	s.Progression = progression.NewEngine(players, locker, bus, progression.Options{
		Rules:    progression.RulesFrom(engineCfg.Progression),
		Notifier: deps.Notifier,
		Logger:   log.Named("progression"),
	})
	s.Profession = profession.NewEngine(players, professions, locker, cat, bus, profession.Options{
		ResetCost:      engineCfg.Profession.TalentResetCost,
		PointsPerLevel: engineCfg.Profession.TalentPointsPerLevel,
		Clock:          clock,
		Notifier:       deps.Notifier,
		Logger:         log.Named("profession"),
	})
	s.Ability = ability.NewEngine(players, professions, abilities, locker, cat, bus, ability.Options{
		LevelScaling:   engineCfg.Ability.LevelScaling,
		PointsPerLevel: engineCfg.Ability.SkillPointsPerLevel,
		Clock:          clock,
		Permissions:    deps.Permissions,
		Applier:        deps.Applier,
		Notifier:       deps.Notifier,
		Logger:         log.Named("ability"),
	})

	// 升级后发放天赋点与技能点
	bus.On(events.TopicLevelUp, s.Profession.HandleLevelUp)
	bus.On(events.TopicLevelUp, s.Ability.HandleLevelUp)

	return s, nil
}

// FlushAll 持久化所有缓存记录，某张表失败不影响其他表
func (s *Services) FlushAll(ctx context.Context) error {
	var errs []error
	if err := s.Players.FlushAll(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.Professions.FlushAll(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.Abilities.FlushAll(ctx); err != nil {
		errs = append(errs, err)
	}
	return stderrors.Join(errs...)
}

// Close 落盘并等待在途事件
func (s *Services) Close(ctx context.Context) error {
	err := s.FlushAll(ctx)
	s.Bus.Close()
	return err
}
