package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/superrpg-core/internal/catalog"
	"github.com/wfunc/superrpg-core/internal/config"
	"github.com/wfunc/superrpg-core/internal/errors"
	"github.com/wfunc/superrpg-core/internal/host"
	"github.com/wfunc/superrpg-core/internal/models"
	"github.com/wfunc/superrpg-core/internal/repository"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// ServicesTestSuite 服务集合测试套件
type ServicesTestSuite struct {
	suite.Suite
	ctx   context.Context
	clock *host.ManualClock
	repo  repository.RecordRepository
	cfg   *config.Config
	svc   *Services
}

func (s *ServicesTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = host.NewManualClock(time.Unix(1700000000, 0))

	db := repository.SetupTestDB(s.T())
	s.repo = repository.NewRecordRepository(db)

	s.cfg = config.Default()
	s.cfg.Events.PoolSize = 2

	svc, err := NewServices(db, s.cfg, catalog.Default(), Deps{Clock: s.clock}, zap.NewNop())
	s.Require().NoError(err)
	s.svc = svc
}

func (s *ServicesTestSuite) TearDownTest() {
	s.NoError(s.svc.Close(s.ctx))
}

func (s *ServicesTestSuite) TestJoin_ValidatesID() {
	_, err := s.svc.Join(s.ctx, "not-a-uuid", "Steve")
	s.True(errors.Is(err, errors.ErrInvalidParam))
	s.Zero(s.svc.Players.Len())
}

func (s *ServicesTestSuite) TestJoin_PreloadsRecords() {
	id := uuid.NewString()

	p, err := s.svc.Join(s.ctx, id, "Steve")
	s.Require().NoError(err)
	s.Equal("Steve", p.Username)
	s.Equal(models.UnixMilli(s.clock.Now()), p.LastSeen)
	s.True(s.svc.Online(id))
	s.Equal(1, s.svc.OnlineCount())

	_, ok := s.svc.Professions.Peek(id)
	s.True(ok)
	_, ok = s.svc.Abilities.Peek(id)
	s.True(ok)
}

func (s *ServicesTestSuite) TestLevelUp_GrantsTalentAndSkillPoints() {
	id := uuid.NewString()
	_, err := s.svc.Join(s.ctx, id, "Alex")
	s.Require().NoError(err)

	gained, err := s.svc.Progression.GainExperience(s.ctx, id, 346)
	s.Require().NoError(err)
	s.Equal(3, gained)

	prof, err := s.svc.Profession.Record(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(3, prof.TalentPoints)
	s.Equal(3, prof.TalentPointsGranted)

	rec, err := s.svc.Ability.Record(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(3, rec.SkillPoints)
}

func (s *ServicesTestSuite) TestQuit_AccumulatesPlayTimeAndEvicts() {
	id := uuid.NewString()
	_, err := s.svc.Join(s.ctx, id, "Alex")
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Profession.ChangeProfession(s.ctx, id, "mage"))
	s.Require().NoError(s.svc.Ability.GrantSkillPoints(s.ctx, id, 1))
	s.Require().NoError(s.svc.Ability.LearnSkill(s.ctx, id, "fireball"))
	_, err = s.svc.Ability.Cast(s.ctx, id, "fireball", id)
	s.Require().NoError(err)
	s.NotEmpty(s.svc.Ability.ActiveEffects(id))

	s.clock.Advance(90 * time.Second)
	s.Require().NoError(s.svc.Quit(s.ctx, id))

	s.False(s.svc.Online(id))
	s.Zero(s.svc.Players.Len())
	s.Zero(s.svc.Professions.Len())
	s.Zero(s.svc.Abilities.Len())
	s.Empty(s.svc.Ability.ActiveEffects(id))
	s.Zero(s.svc.Ability.CooldownRemaining(id, "fireball"))

	p, err := s.svc.Progression.Player(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(int64(90), p.PlayTime)
	s.Equal(5.0, p.Mana)

	prof, err := s.svc.Profession.Record(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("mage", prof.CurrentProfessionID)
}

func (s *ServicesTestSuite) TestCleanup_EvictsOfflineOnly() {
	online := uuid.NewString()
	offline := uuid.NewString()

	_, err := s.svc.Join(s.ctx, online, "Online")
	s.Require().NoError(err)
	_, err = s.svc.Progression.Player(s.ctx, offline)
	s.Require().NoError(err)

	n, err := s.svc.Cleanup(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	_, ok := s.svc.Players.Peek(online)
	s.True(ok)
	_, ok = s.svc.Players.Peek(offline)
	s.False(ok)
}

func (s *ServicesTestSuite) TestScheduler() {
	_, err := NewScheduler(s.svc, config.SnapshotConfig{FlushSpec: "every now and then", CleanupSpec: "@every 10m"}, zap.NewNop())
	s.True(errors.Is(err, errors.ErrConfigValidate))

	sched, err := NewScheduler(s.svc, s.cfg.Snapshot, zap.NewNop())
	s.Require().NoError(err)

	id := uuid.NewString()
	_, err = s.svc.Progression.Player(s.ctx, id)
	s.Require().NoError(err)

	sched.Snapshot()
	count, err := s.repo.Count(s.ctx, models.TablePlayerData)
	s.Require().NoError(err)
	s.Equal(int64(1), count)

	sched.Cleanup()
	s.Zero(s.svc.Players.Len())

	sched.Start()
	sched.Stop()
}

func TestServicesTestSuite(t *testing.T) {
	suite.Run(t, new(ServicesTestSuite))
}

func TestScheduler_SnapshotFailureLogsRetryable(t *testing.T) {
	ctx := context.Background()
	db := repository.SetupTestDB(t)
	cfg := config.Default()
	cfg.Events.PoolSize = 2

	svc, err := NewServices(db, cfg, catalog.Default(), Deps{}, zap.NewNop())
	require.NoError(t, err)
	defer svc.Bus.Close()

	core, logs := observer.New(zapcore.ErrorLevel)
	sched, err := NewScheduler(svc, cfg.Snapshot, zap.New(core))
	require.NoError(t, err)

	_, err = svc.Progression.Player(ctx, uuid.NewString())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	sched.Snapshot()

	entries := logs.FilterMessage("定时落盘失败").All()
	require.Len(t, entries, 1)
	assert.Equal(t, true, entries[0].ContextMap()["retryable"])
}
