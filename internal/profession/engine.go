package profession

import (
	"context"
	"fmt"

	"github.com/wfunc/superrpg-core/internal/catalog"
	"github.com/wfunc/superrpg-core/internal/errors"
	"github.com/wfunc/superrpg-core/internal/events"
	"github.com/wfunc/superrpg-core/internal/host"
	"github.com/wfunc/superrpg-core/internal/logger"
	"github.com/wfunc/superrpg-core/internal/metrics"
	"github.com/wfunc/superrpg-core/internal/models"
	"github.com/wfunc/superrpg-core/internal/store"
	"go.uber.org/zap"
)

const engineName = "profession"

// DefaultResetCost 默认天赋重置费用
const DefaultResetCost int64 = 5000

// Options 引擎参数
type Options struct {
	ResetCost      int64
	PointsPerLevel int
	Clock          host.Clock
	Notifier       host.Notifier
	Logger         *zap.Logger
}

// Engine 职业与天赋引擎
type Engine struct {
	players     *store.RecordStore[*models.PlayerRecord]
	professions *store.RecordStore[*models.ProfessionRecord]
	locker      *store.Locker
	catalog     *catalog.Catalog
	bus         events.Publisher

	clock          host.Clock
	notifier       host.Notifier
	resetCost      int64
	pointsPerLevel int
	log            *zap.Logger
}

// NewEngine 创建职业引擎
func NewEngine(
	players *store.RecordStore[*models.PlayerRecord],
	professions *store.RecordStore[*models.ProfessionRecord],
	locker *store.Locker,
	cat *catalog.Catalog,
	bus events.Publisher,
	opts Options,
) *Engine {
	if opts.ResetCost <= 0 {
		opts.ResetCost = DefaultResetCost
	}
	if opts.PointsPerLevel <= 0 {
		opts.PointsPerLevel = 1
	}
	if opts.Clock == nil {
		opts.Clock = host.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.WithModule(engineName)
	}
	if opts.Notifier == nil {
		opts.Notifier = host.LogNotifier{Log: opts.Logger}
	}
	return &Engine{
		players:        players,
		professions:    professions,
		locker:         locker,
		catalog:        cat,
		bus:            bus,
		clock:          opts.Clock,
		notifier:       opts.Notifier,
		resetCost:      opts.ResetCost,
		pointsPerLevel: opts.PointsPerLevel,
		log:            opts.Logger,
	}
}

// Professions 所有职业
func (e *Engine) Professions() []*catalog.ProfessionDef {
	return e.catalog.Professions()
}

// Profession 职业定义
func (e *Engine) Profession(id string) (*catalog.ProfessionDef, error) {
	def, ok := e.catalog.Profession(id)
	if !ok {
		return nil, errors.NotFound("职业", id)
	}
	return def, nil
}

// TalentTree 职业天赋树，包含通用天赋
func (e *Engine) TalentTree(professionID string) []*catalog.TalentDef {
	return e.catalog.TalentTree(professionID)
}

// Record 玩家职业数据副本
func (e *Engine) Record(ctx context.Context, id string) (*models.ProfessionRecord, error) {
	return e.professions.Get(ctx, id)
}

// CanChangeTo 按等级、金币、前置职业的顺序校验转职门槛，返回第一个不满足的条件
func CanChangeTo(def *catalog.ProfessionDef, player *models.PlayerRecord, current *models.ProfessionRecord) error {
	req := def.Requirements
	if player.Level < req.Level {
		return errors.RequirementNotMet(errors.CondLevel,
			fmt.Sprintf("需要等级 %d，当前 %d", req.Level, player.Level))
	}
	if player.Money < req.Money {
		return errors.RequirementNotMet(errors.CondMoney,
			fmt.Sprintf("需要金币 %d，当前 %d", req.Money, player.Money))
	}
	if req.PreviousProfession != "" && current.CurrentProfessionID != req.PreviousProfession {
		return errors.RequirementNotMet(errors.CondPreviousProfession,
			fmt.Sprintf("需要先成为 %s", req.PreviousProfession))
	}
	return nil
}

// ChangeProfession 转职；玩家与职业两条记录在同一事务中提交
func (e *Engine) ChangeProfession(ctx context.Context, id, professionID string) (err error) {
	defer func() { metrics.RecordOperation(engineName, "change_profession", errors.ResultLabel(err)) }()

	def, ok := e.catalog.Profession(professionID)
	if !ok {
		return errors.NotFound("职业", professionID)
	}

	unlock := e.locker.Lock(id)
	defer unlock()

	player, prof, err := e.load(ctx, id)
	if err != nil {
		return err
	}

	if prof.CurrentProfessionID == professionID {
		return errors.RequirementNotMet(errors.CondAlreadyCurrent, "已经是该职业")
	}
	if err := CanChangeTo(def, player, prof); err != nil {
		return err
	}

	previous := prof.CurrentProfessionID
	if previous != "" {
		prof.History = append(prof.History, models.ProfessionChange{
			ProfessionID: previous,
			Timestamp:    models.UnixMilli(e.clock.Now()),
		})
	}
	prof.CurrentProfessionID = professionID
	player.Money -= def.Requirements.Money
	applyBonuses(player, def.StatBonuses)

	if err := store.Commit(ctx, e.players.Stage(player), e.professions.Stage(prof)); err != nil {
		return err
	}
	unlock()

	e.log.Info("玩家转职",
		zap.String("entity_id", id),
		zap.String("from", previous),
		zap.String("to", professionID),
	)
	e.bus.Emit(ctx, events.TopicProfessionChange, events.ProfessionChanged{
		ID:                   id,
		NewProfessionID:      professionID,
		PreviousProfessionID: previous,
	})
	e.notifier.SendTitle(id, "转职成功！", def.Name)
	return nil
}

// LearnTalent 学习或升级天赋，返回新的天赋等级
func (e *Engine) LearnTalent(ctx context.Context, id, talentID string) (level int, err error) {
	defer func() { metrics.RecordOperation(engineName, "learn_talent", errors.ResultLabel(err)) }()

	def, ok := e.catalog.Talent(talentID)
	if !ok {
		return 0, errors.NotFound("天赋", talentID)
	}

	unlock := e.locker.Lock(id)
	defer unlock()

	player, prof, err := e.load(ctx, id)
	if err != nil {
		return 0, err
	}

	if def.Profession != "" && def.Profession != prof.CurrentProfessionID {
		return 0, errors.RequirementNotMet(errors.CondProfession,
			fmt.Sprintf("天赋 %s 需要职业 %s", talentID, def.Profession))
	}
	if prof.TalentPoints < 1 {
		return 0, errors.InsufficientResource(errors.CondTalentPoints, "天赋点不足")
	}
	current := prof.TalentLevel(talentID)
	if current >= def.MaxLevel {
		return 0, errors.InsufficientResource(errors.CondMaxLevel,
			fmt.Sprintf("天赋 %s 已达到最大等级 %d", talentID, def.MaxLevel))
	}

	level = current + 1
	prof.LearnedTalents[talentID] = level
	prof.TalentPoints--
	for _, effect := range def.Effects {
		player.AddAttribute(effect.Attribute, effect.Value(level))
	}

	if err := store.Commit(ctx, e.players.Stage(player), e.professions.Stage(prof)); err != nil {
		return 0, err
	}
	return level, nil
}

// ResetTalents 花费金币清空天赋，返还累计获得的全部天赋点
func (e *Engine) ResetTalents(ctx context.Context, id string) (err error) {
	defer func() { metrics.RecordOperation(engineName, "reset_talents", errors.ResultLabel(err)) }()

	unlock := e.locker.Lock(id)
	defer unlock()

	player, prof, err := e.load(ctx, id)
	if err != nil {
		return err
	}
	if player.Money < e.resetCost {
		return errors.InsufficientResource(errors.CondMoney,
			fmt.Sprintf("重置天赋需要 %d 金币，当前 %d", e.resetCost, player.Money))
	}

	player.Money -= e.resetCost
	// 撤销已学天赋逐级叠加的属性
	for talentID, level := range prof.LearnedTalents {
		def, ok := e.catalog.Talent(talentID)
		if !ok {
			continue
		}
		// 按学习时的逐级数值撤销，整数属性的截断与学习时一致
		for _, effect := range def.Effects {
			for l := 1; l <= level; l++ {
				player.AddAttribute(effect.Attribute, -effect.Value(l))
			}
		}
	}
	prof.LearnedTalents = map[string]int{}
	prof.TalentPoints = prof.TalentPointsGranted

	if err := store.Commit(ctx, e.players.Stage(player), e.professions.Stage(prof)); err != nil {
		return err
	}
	unlock()

	e.notifier.SendMessage(id, fmt.Sprintf("天赋已重置，当前天赋点: %d", prof.TalentPoints))
	return nil
}

// GrantTalentPoints 发放天赋点并累计记录
func (e *Engine) GrantTalentPoints(ctx context.Context, id string, n int) (err error) {
	defer func() { metrics.RecordOperation(engineName, "grant_talent_points", errors.ResultLabel(err)) }()

	if n <= 0 {
		return errors.Newf(errors.ErrInvalidParam, "天赋点数必须为正: %d", n)
	}

	unlock := e.locker.Lock(id)
	defer unlock()

	prof, err := e.professions.Get(ctx, id)
	if err != nil {
		return err
	}
	prof.TalentPoints += n
	prof.TalentPointsGranted += n
	if err := e.professions.Put(ctx, prof); err != nil {
		return err
	}
	unlock()

	e.notifier.SendMessage(id, fmt.Sprintf("获得了 %d 天赋点！当前天赋点: %d", n, prof.TalentPoints))
	return nil
}

// HandleLevelUp 升级事件处理：每升一级发放天赋点
func (e *Engine) HandleLevelUp(ctx context.Context, payload interface{}) error {
	ev, ok := payload.(events.LevelUp)
	if !ok || ev.LevelsGained <= 0 {
		return nil
	}
	return e.GrantTalentPoints(ctx, ev.ID, ev.LevelsGained*e.pointsPerLevel)
}

func (e *Engine) load(ctx context.Context, id string) (*models.PlayerRecord, *models.ProfessionRecord, error) {
	player, err := e.players.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	prof, err := e.professions.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return player, prof, nil
}

// applyBonuses 叠加属性加成；未知属性忽略
func applyBonuses(player *models.PlayerRecord, bonuses map[string]float64) {
	for attr, v := range bonuses {
		if !player.AddAttribute(attr, v) {
			logger.WithModule(engineName).Debug("忽略未知属性加成", zap.String("attribute", attr))
		}
	}
}
