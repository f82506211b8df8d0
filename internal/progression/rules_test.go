package progression

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/superrpg-core/internal/config"
	"github.com/wfunc/superrpg-core/internal/errors"
	"github.com/wfunc/superrpg-core/internal/models"
)

func newPlayer() *models.PlayerRecord {
	return models.NewPlayerRecord("7c9e6679-7425-40de-944b-e07fc1f90ae7", time.Unix(1700000000, 0))
}

func TestRequiredExp(t *testing.T) {
	r := DefaultRules()
	assert.Equal(t, int64(100), r.RequiredExp(1))
	assert.Equal(t, int64(114), r.RequiredExp(2))
	assert.Equal(t, int64(132), r.RequiredExp(3))
	assert.Equal(t, int64(152), r.RequiredExp(4))
	assert.Equal(t, int64(100), r.RequiredExp(0))
}

func TestRulesFrom(t *testing.T) {
	r := RulesFrom(config.ProgressionConfig{BaseExp: 50})
	assert.Equal(t, 50.0, r.BaseExp)
	assert.Equal(t, 1.15, r.ExpGrowth)
	assert.Equal(t, 5, r.StatPointsPerLevel)
}

func TestAddExperience_CarryOver(t *testing.T) {
	r := DefaultRules()

	cases := []struct {
		amount    int64
		level     int
		exp       int64
		gained    int
		statDelta int
	}{
		{amount: 99, level: 1, exp: 99, gained: 0, statDelta: 0},
		{amount: 100, level: 2, exp: 0, gained: 1, statDelta: 5},
		{amount: 330, level: 3, exp: 116, gained: 2, statDelta: 10},
		{amount: 346, level: 4, exp: 0, gained: 3, statDelta: 15},
		{amount: 400, level: 4, exp: 54, gained: 3, statDelta: 15},
	}
	for _, c := range cases {
		p := newPlayer()
		before := p.StatPoints

		gained, err := r.AddExperience(p, c.amount)
		require.NoError(t, err)
		assert.Equal(t, c.gained, gained, "amount %d", c.amount)
		assert.Equal(t, c.level, p.Level, "amount %d", c.amount)
		assert.Equal(t, c.exp, p.Experience, "amount %d", c.amount)
		assert.Equal(t, before+c.statDelta, p.StatPoints, "amount %d", c.amount)
	}
}

func TestAddExperience_MatchesRepeatedSubtraction(t *testing.T) {
	r := DefaultRules()
	p := newPlayer()
	amount := int64(250000)

	gained, err := r.AddExperience(p, amount)
	require.NoError(t, err)

	level, rest := 1, amount
	for rest >= r.RequiredExp(level) {
		rest -= r.RequiredExp(level)
		level++
	}
	assert.Equal(t, level, p.Level)
	assert.Equal(t, rest, p.Experience)
	assert.Equal(t, level-1, gained)
	assert.Equal(t, models.StageForLevel(level), p.Stage)
}

func TestAddExperience_Negative(t *testing.T) {
	p := newPlayer()
	_, err := DefaultRules().AddExperience(p, -1)
	assert.True(t, errors.Is(err, errors.ErrInvalidParam))
	assert.Equal(t, int64(0), p.Experience)
}

func TestAddExperience_Overflow(t *testing.T) {
	r := DefaultRules()
	p := newPlayer()
	p.Experience = 50

	_, err := r.AddExperience(p, math.MaxInt64)
	assert.True(t, errors.Is(err, errors.ErrInvalidParam))
	assert.Equal(t, int64(50), p.Experience)
	assert.Equal(t, 1, p.Level)

	// 恰好到上限仍然合法
	gained, err := r.AddExperience(p, math.MaxInt64-50)
	require.NoError(t, err)
	assert.Positive(t, gained)
	assert.GreaterOrEqual(t, p.Experience, int64(0))
	assert.Less(t, p.Experience, r.RequiredExp(p.Level))
}

func TestRequiredExp_SaturatesAtHighLevel(t *testing.T) {
	r := DefaultRules()
	assert.Equal(t, int64(math.MaxInt64), r.RequiredExp(400))
	assert.Equal(t, int64(math.MaxInt64), r.RequiredExp(10000))
	assert.Less(t, r.RequiredExp(250), int64(math.MaxInt64))

	p := newPlayer()
	require.NoError(t, r.SetLevel(p, 400))
	gained, err := r.AddExperience(p, 1000)
	require.NoError(t, err)
	assert.Zero(t, gained)
	assert.Equal(t, 400, p.Level)
	assert.Equal(t, int64(1000), p.Experience)
}

func TestAllocateStatPoint(t *testing.T) {
	r := DefaultRules()

	t.Run("vitality raises max health", func(t *testing.T) {
		p := newPlayer()
		require.NoError(t, r.AllocateStatPoint(p, "Vitality", 3))
		assert.Equal(t, 8, p.Vitality)
		assert.Equal(t, 115.0, p.MaxHealth)
		assert.Equal(t, 22, p.StatPoints)
	})

	t.Run("never negative", func(t *testing.T) {
		p := newPlayer()
		p.StatPoints = 2
		err := r.AllocateStatPoint(p, "strength", 3)
		assert.True(t, errors.Is(err, errors.ErrInsufficientResource))
		assert.Equal(t, errors.CondStatPoints, errors.GetCondition(err))
		assert.Equal(t, 2, p.StatPoints)
		assert.Equal(t, 5, p.Strength)
	})

	t.Run("unknown attribute", func(t *testing.T) {
		p := newPlayer()
		err := r.AllocateStatPoint(p, "charisma", 1)
		assert.True(t, errors.Is(err, errors.ErrNotFound))
		assert.Equal(t, 25, p.StatPoints)
	})

	t.Run("non positive points", func(t *testing.T) {
		p := newPlayer()
		err := r.AllocateStatPoint(p, "luck", 0)
		assert.True(t, errors.Is(err, errors.ErrInvalidParam))
	})
}

func TestSetLevel(t *testing.T) {
	r := DefaultRules()
	p := newPlayer()
	p.Experience = 50

	require.NoError(t, r.SetLevel(p, 30))
	assert.Equal(t, 30, p.Level)
	assert.Equal(t, int64(0), p.Experience)
	assert.Equal(t, 25+29*5, p.StatPoints)
	assert.Equal(t, models.StageHero, p.Stage)

	require.NoError(t, r.SetLevel(p, 1))
	assert.Equal(t, 25, p.StatPoints)

	require.NoError(t, r.SetLevel(p, 5))
	p.StatPoints = 0
	require.NoError(t, r.SetLevel(p, 1))
	assert.Equal(t, 0, p.StatPoints)

	assert.True(t, errors.Is(r.SetLevel(p, 0), errors.ErrInvalidParam))
}

func TestTotalPower(t *testing.T) {
	p := newPlayer()
	assert.Equal(t, 6*5+2, TotalPower(p))
	p.Level = 10
	p.Strength = 20
	assert.Equal(t, 5*5+20+20, TotalPower(p))
}
