package ability

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/superrpg-core/internal/catalog"
	"github.com/wfunc/superrpg-core/internal/errors"
	"github.com/wfunc/superrpg-core/internal/events"
	"github.com/wfunc/superrpg-core/internal/host"
	"github.com/wfunc/superrpg-core/internal/models"
	"github.com/wfunc/superrpg-core/internal/repository"
	"github.com/wfunc/superrpg-core/internal/store"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

const extraSkills = `
skills:
  smite:
    name: 天罚
    cooldown: 1
    mana_cost: 5
    permission: superrpg.smite
    target_type: target
    effects:
      - kind: damage
        magnitude: 50
  meditation:
    name: 冥想
    passive: true
    effects:
      - kind: buff
        attribute: mana_regen
        magnitude: 1
`

// flakyRepo 可注入写入失败的仓储
type flakyRepo struct {
	repository.RecordRepository
	failWrite atomic.Bool
}

func (r *flakyRepo) Upsert(ctx context.Context, table string, row *models.RecordRow) error {
	if r.failWrite.Load() {
		return stderrors.New("i/o timeout")
	}
	return r.RecordRepository.Upsert(ctx, table, row)
}

// recordingApplier 记录收到的效果
type recordingApplier struct {
	mu      sync.Mutex
	applied []host.ActiveEffect
}

func (a *recordingApplier) Apply(ctx context.Context, effect host.ActiveEffect) {
	a.mu.Lock()
	a.applied = append(a.applied, effect)
	a.mu.Unlock()
}

func (a *recordingApplier) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.applied)
}

// recordingNotifier 记录发给玩家的消息
type recordingNotifier struct {
	mu       sync.Mutex
	messages map[string][]string
}

func (n *recordingNotifier) SendMessage(id, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.messages == nil {
		n.messages = make(map[string][]string)
	}
	n.messages[id] = append(n.messages[id], text)
}

func (n *recordingNotifier) SendTitle(id, title, subtitle string) {}

func (n *recordingNotifier) of(id string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages[id]...)
}

// EngineTestSuite 技能引擎测试套件
type EngineTestSuite struct {
	suite.Suite
	ctx         context.Context
	repo        *flakyRepo
	clock       *host.ManualClock
	t0          time.Time
	players     *store.RecordStore[*models.PlayerRecord]
	professions *store.RecordStore[*models.ProfessionRecord]
	abilities   *store.RecordStore[*models.AbilityRecord]
	bus         *events.Bus
	applier     *recordingApplier
	notifier    *recordingNotifier
	allowed     atomic.Bool
	engine      *Engine
}

func (s *EngineTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.repo = &flakyRepo{RecordRepository: repository.NewRecordRepository(repository.SetupTestDB(s.T()))}
	s.t0 = time.Unix(1700000000, 0)
	s.clock = host.NewManualClock(s.t0)

	opts := store.Options{Logger: zap.NewNop()}
	s.players = store.New(models.TablePlayerData, s.repo, func(id string) *models.PlayerRecord {
		return models.NewPlayerRecord(id, s.clock.Now())
	}, opts)
	s.professions = store.New(models.TablePlayerProfessions, s.repo, models.NewProfessionRecord, opts)
	s.abilities = store.New(models.TablePlayerSkills, s.repo, models.NewAbilityRecord, opts)

	bus, err := events.NewBus(2, zap.NewNop())
	s.Require().NoError(err)
	s.bus = bus

	cat, err := catalog.Parse([]byte(extraSkills))
	s.Require().NoError(err)

	s.applier = &recordingApplier{}
	s.notifier = &recordingNotifier{}
	s.allowed.Store(false)
	s.engine = NewEngine(s.players, s.professions, s.abilities, store.NewLocker(), cat, s.bus, Options{
		Clock:    s.clock,
		Applier:  s.applier,
		Notifier: s.notifier,
		Permissions: host.PermissionFunc(func(id, perm string) bool {
			return s.allowed.Load()
		}),
		Logger: zap.NewNop(),
	})
}

func (s *EngineTestSuite) TearDownTest() {
	s.bus.Close()
}

// givenCaster 准备一个已学会指定技能的施法者
func (s *EngineTestSuite) givenCaster(mana float64, skills ...string) string {
	id := uuid.NewString()

	p, err := s.players.Get(s.ctx, id)
	s.Require().NoError(err)
	p.Mana, p.MaxMana = mana, mana
	s.Require().NoError(s.players.Put(s.ctx, p))

	rec, err := s.abilities.Get(s.ctx, id)
	s.Require().NoError(err)
	for _, skill := range skills {
		rec.LearnedSkills[skill] = 1
	}
	s.Require().NoError(s.abilities.Put(s.ctx, rec))
	return id
}

func (s *EngineTestSuite) mana(id string) float64 {
	p, err := s.players.Get(s.ctx, id)
	s.Require().NoError(err)
	return p.Mana
}

func (s *EngineTestSuite) TestCast_CheckOrder() {
	id := s.givenCaster(100, "fireball", "smite", "meditation")

	_, err := s.engine.Cast(s.ctx, id, "meteor", "")
	s.True(errors.Is(err, errors.ErrNotFound))

	_, err = s.engine.Cast(s.ctx, id, "slash", "")
	s.Equal(errors.CondNotLearned, errors.GetCondition(err))

	_, err = s.engine.Cast(s.ctx, id, "meditation", "")
	s.Equal(errors.CondPassive, errors.GetCondition(err))

	// 冷却先于法力检查
	_, err = s.engine.Cast(s.ctx, id, "fireball", "t1")
	s.Require().NoError(err)
	p, _ := s.players.Get(s.ctx, id)
	p.Mana = 0
	s.Require().NoError(s.players.Put(s.ctx, p))
	_, err = s.engine.Cast(s.ctx, id, "fireball", "t1")
	s.True(errors.Is(err, errors.ErrOnCooldown))

	// 法力先于权限检查
	_, err = s.engine.Cast(s.ctx, id, "smite", "t1")
	s.Equal(errors.CondMana, errors.GetCondition(err))

	p.Mana = 100
	s.Require().NoError(s.players.Put(s.ctx, p))
	_, err = s.engine.Cast(s.ctx, id, "smite", "t1")
	s.Equal(errors.CondPermission, errors.GetCondition(err))
	s.Equal(100.0, s.mana(id))

	s.allowed.Store(true)
	_, err = s.engine.Cast(s.ctx, id, "smite", "t1")
	s.NoError(err)
	s.Equal(95.0, s.mana(id))
}

func (s *EngineTestSuite) TestCast_CooldownMonotonicity() {
	id := s.givenCaster(100, "fireball")

	res, err := s.engine.Cast(s.ctx, id, "fireball", "t1")
	s.Require().NoError(err)
	s.Equal(s.t0.Add(3*time.Second), res.ReadyAt)

	s.clock.Advance(time.Second)
	_, err = s.engine.Cast(s.ctx, id, "fireball", "t1")
	remaining, ok := errors.CooldownRemaining(err)
	s.Require().True(ok)
	s.Equal(2*time.Second, remaining)
	s.Equal(2*time.Second, s.engine.CooldownRemaining(id, "fireball"))

	s.clock.Advance(2*time.Second + time.Millisecond)
	s.Zero(s.engine.CooldownRemaining(id, "fireball"))
	_, err = s.engine.Cast(s.ctx, id, "fireball", "t1")
	s.NoError(err)
	s.Equal(70.0, s.mana(id))
}

func (s *EngineTestSuite) TestCast_EffectExpiry() {
	id := s.givenCaster(100, "fireball")

	res, err := s.engine.Cast(s.ctx, id, "fireball", "t1")
	s.Require().NoError(err)
	s.Equal("t1", res.TargetID)
	s.Require().Len(res.Effects, 2)
	s.Equal(catalog.EffectDamage, res.Effects[0].Kind)
	s.False(res.Effects[0].Timed())
	s.Equal(catalog.EffectDebuff, res.Effects[1].Kind)
	s.Equal(s.t0.Add(5*time.Second), res.Effects[1].ExpiresAt)
	s.Equal(2, s.applier.count())

	s.clock.Set(s.t0.Add(5*time.Second - time.Millisecond))
	active := s.engine.ActiveEffects("t1")
	s.Require().Len(active, 1)
	s.Equal("burn", active[0].Attribute)
	s.Zero(s.engine.Sweep())

	s.clock.Set(s.t0.Add(5 * time.Second))
	s.Empty(s.engine.ActiveEffects("t1"))
	s.Equal(1, s.engine.Sweep())
	s.Zero(s.engine.effects.targets())
}

func (s *EngineTestSuite) TestCast_SelfTargetAndScaling() {
	id := s.givenCaster(100, "heal", "fireball")
	s.Require().NoError(s.engine.GrantSkillPoints(s.ctx, id, 2))

	level, err := s.engine.UpgradeSkill(s.ctx, id, "fireball")
	s.Require().NoError(err)
	s.Equal(2, level)
	level, err = s.engine.UpgradeSkill(s.ctx, id, "fireball")
	s.Require().NoError(err)
	s.Equal(3, level)

	res, err := s.engine.Cast(s.ctx, id, "fireball", "t1")
	s.Require().NoError(err)
	s.Equal(3, res.Level)
	s.InDelta(36.0, res.Effects[0].Magnitude, 1e-9)

	res, err = s.engine.Cast(s.ctx, id, "heal", "someone-else")
	s.Require().NoError(err)
	s.Equal(id, res.TargetID)
	s.InDelta(25.0, res.Effects[0].Magnitude, 1e-9)
}

func (s *EngineTestSuite) TestCast_NotifiesCaster() {
	id := s.givenCaster(100, "fireball")
	def, ok := s.engine.catalog.Skill("fireball")
	s.Require().True(ok)

	_, err := s.engine.Cast(s.ctx, id, "fireball", "t1")
	s.Require().NoError(err)
	s.Equal([]string{"释放了技能: " + def.Name}, s.notifier.of(id))
	s.Empty(s.notifier.of("t1"))

	// 冷却中的释放不发送消息
	_, err = s.engine.Cast(s.ctx, id, "fireball", "t1")
	s.True(errors.Is(err, errors.ErrOnCooldown))
	s.Len(s.notifier.of(id), 1)
}

func (s *EngineTestSuite) TestCast_PersistenceFailureAbortsEverything() {
	id := s.givenCaster(100, "fireball")

	s.repo.failWrite.Store(true)
	_, err := s.engine.Cast(s.ctx, id, "fireball", "t1")
	s.True(errors.Is(err, errors.ErrPersistence))
	s.repo.failWrite.Store(false)

	s.Equal(100.0, s.mana(id))
	s.Zero(s.engine.CooldownRemaining(id, "fireball"))
	s.Empty(s.engine.ActiveEffects("t1"))
	s.Zero(s.applier.count())
	s.Empty(s.notifier.of(id))
}

func (s *EngineTestSuite) TestLearnSkill_Order() {
	id := uuid.NewString()

	s.True(errors.Is(s.engine.LearnSkill(s.ctx, id, "meteor"), errors.ErrNotFound))

	// backstab 需要等级5与盗贼职业
	s.Equal(errors.CondLevel, errors.GetCondition(s.engine.LearnSkill(s.ctx, id, "backstab")))

	p, _ := s.players.Get(s.ctx, id)
	p.Level = 5
	s.Require().NoError(s.players.Put(s.ctx, p))
	s.Equal(errors.CondProfession, errors.GetCondition(s.engine.LearnSkill(s.ctx, id, "backstab")))

	prof, _ := s.professions.Get(s.ctx, id)
	prof.CurrentProfessionID = "rogue"
	s.Require().NoError(s.professions.Put(s.ctx, prof))
	s.Equal(errors.CondSkillPoints, errors.GetCondition(s.engine.LearnSkill(s.ctx, id, "backstab")))

	s.Require().NoError(s.engine.HandleLevelUp(s.ctx, events.LevelUp{ID: id, NewLevel: 6, LevelsGained: 1}))
	s.Require().NoError(s.engine.LearnSkill(s.ctx, id, "backstab"))

	rec, err := s.engine.Record(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(1, rec.SkillLevel("backstab"))
	s.Zero(rec.SkillPoints)

	s.Equal(errors.CondAlreadyLearned, errors.GetCondition(s.engine.LearnSkill(s.ctx, id, "backstab")))
}

func (s *EngineTestSuite) TestUpgradeSkill_Limits() {
	id := s.givenCaster(100, "slash")

	_, err := s.engine.UpgradeSkill(s.ctx, id, "block")
	s.Equal(errors.CondNotLearned, errors.GetCondition(err))

	_, err = s.engine.UpgradeSkill(s.ctx, id, "slash")
	s.Equal(errors.CondSkillPoints, errors.GetCondition(err))

	s.Require().NoError(s.engine.GrantSkillPoints(s.ctx, id, 10))
	for i := 0; i < 4; i++ {
		_, err = s.engine.UpgradeSkill(s.ctx, id, "slash")
		s.Require().NoError(err)
	}
	_, err = s.engine.UpgradeSkill(s.ctx, id, "slash")
	s.Equal(errors.CondMaxLevel, errors.GetCondition(err))

	rec, _ := s.engine.Record(s.ctx, id)
	s.Equal(6, rec.SkillPoints)
}

func (s *EngineTestSuite) TestHotbar() {
	id := s.givenCaster(100, "fireball")

	s.True(errors.Is(s.engine.SetHotbarSlot(s.ctx, id, 9, "fireball"), errors.ErrInvalidParam))
	s.Equal(errors.CondNotLearned, errors.GetCondition(s.engine.SetHotbarSlot(s.ctx, id, 0, "slash")))
	s.Require().NoError(s.engine.SetHotbarSlot(s.ctx, id, 0, "fireball"))

	res, err := s.engine.CastHotbar(s.ctx, id, 0, "t1")
	s.Require().NoError(err)
	s.Equal("fireball", res.SkillID)

	s.Require().NoError(s.engine.SetHotbarSlot(s.ctx, id, 0, ""))
	_, err = s.engine.CastHotbar(s.ctx, id, 0, "t1")
	s.True(errors.Is(err, errors.ErrInvalidParam))

	rec, _ := s.engine.Record(s.ctx, id)
	s.Equal("", rec.Hotbar[0])
}

func (s *EngineTestSuite) TestForgetEntity() {
	id := s.givenCaster(100, "block")

	_, err := s.engine.Cast(s.ctx, id, "block", "")
	s.Require().NoError(err)
	s.Len(s.engine.ActiveEffects(id), 1)
	s.NotZero(s.engine.CooldownRemaining(id, "block"))

	s.engine.ForgetEntity(id)
	s.Empty(s.engine.ActiveEffects(id))
	s.Zero(s.engine.CooldownRemaining(id, "block"))
}

func (s *EngineTestSuite) TestConcurrentCastAndSweep() {
	const casters = 8
	ids := make([]string, casters)
	for i := range ids {
		ids[i] = s.givenCaster(1000, "fireball")
	}

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ctx.Err() == nil {
			s.engine.Sweep()
		}
	}()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := s.engine.Cast(s.ctx, id, "fireball", "boss")
			s.NoError(err)
		}(id)
	}
	wg.Wait()
	cancel()
	<-done

	// 时钟未推进，所有减益仍然有效
	s.Len(s.engine.ActiveEffects("boss"), casters)
}

func (s *EngineTestSuite) TestRunSweeper_StopsOnCancel() {
	id := s.givenCaster(100, "block")
	_, err := s.engine.Cast(s.ctx, id, "block", "")
	s.Require().NoError(err)
	s.bus.Wait()
	s.clock.Advance(10 * time.Second)

	defer goleak.VerifyNone(s.T(), goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	go func() {
		s.engine.RunSweeper(ctx, 5*time.Millisecond)
		close(done)
	}()

	s.Eventually(func() bool { return s.engine.effects.targets() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestEngineTestSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}
