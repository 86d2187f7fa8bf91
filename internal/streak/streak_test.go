package streak

import (
	"context"
	"errors"
	"testing"
	"time"

	"zcoin/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rules() config.StreakConfig {
	return config.StreakConfig{
		ToleranceDays: 1,
		BridgeEvery:   3,
		BridgeMax:     2,
		Milestones: []config.Milestone{
			{Days: 3, Bonus: 50},
			{Days: 7, Bonus: 200},
		},
	}
}

func TestDayOfUsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	at := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, DayOf(at, time.UTC)-1, DayOf(at, loc))
	assert.Equal(t, "2026-01-02", DayOf(at, nil).String())
}

func TestConsecutiveDays(t *testing.T) {
	s := State{Account: "a"}
	var upd Update
	for d := Day(100); d < 103; d++ {
		s, upd = Advance(s, d, rules())
	}
	assert.Equal(t, 3, s.Length)
	assert.Equal(t, int64(50), upd.Bonus)
	m, ok := upd.Milestone()
	require.True(t, ok)
	assert.Equal(t, 3, m.Days)
	assert.Equal(t, 1, upd.TokensGranted)
}

func TestSameDayIsNoop(t *testing.T) {
	s, _ := Advance(State{Account: "a"}, 10, rules())
	next, upd := Advance(s, 10, rules())
	assert.False(t, upd.Changed)
	assert.Equal(t, s, next)
	_, upd = Advance(s, 9, rules())
	assert.False(t, upd.Changed)
}

func TestGapWithoutTokensResets(t *testing.T) {
	s := State{Account: "a", Length: 2, LastDay: 10}
	s, upd := Advance(s, 13, rules())
	assert.True(t, upd.Reset)
	assert.Equal(t, 1, s.Length)
	assert.Equal(t, 2, upd.Previous)
	assert.Zero(t, upd.Bonus)
}

func TestGapBridgedByTokens(t *testing.T) {
	s := State{Account: "a", Length: 5, LastDay: 10, Tokens: 2}
	s, upd := Advance(s, 13, rules())
	assert.True(t, upd.Bridged)
	assert.False(t, upd.Reset)
	assert.Equal(t, 6, s.Length)
	assert.Equal(t, 2, upd.TokensSpent)
	// Length 6 is a multiple of BridgeEvery, so one token comes back.
	assert.Equal(t, 1, s.Tokens)
}

func TestTokensCapped(t *testing.T) {
	s := State{Account: "a", Length: 5, LastDay: 10, Tokens: 2}
	s, upd := Advance(s, 11, rules())
	assert.Equal(t, 6, s.Length)
	assert.Zero(t, upd.TokensGranted)
	assert.Equal(t, 2, s.Tokens)
}

func TestMilestoneBonusCrossesSeveral(t *testing.T) {
	bonus, crossed := MilestoneBonus(rules().Milestones, 2, 7)
	assert.Equal(t, int64(250), bonus)
	assert.Len(t, crossed, 2)

	bonus, crossed = MilestoneBonus(rules().Milestones, 3, 6)
	assert.Zero(t, bonus)
	assert.Empty(t, crossed)
}

func TestTrackerPersists(t *testing.T) {
	store := NewMemoryStore()
	tr := NewTracker(store, nil)
	ctx := context.Background()

	for d := Day(1); d <= 3; d++ {
		_, err := tr.RecordActivity(ctx, "alice", d, rules())
		require.NoError(t, err)
	}
	st, err := tr.State(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, st.Length)
	assert.Equal(t, Day(3), st.LastDay)
	assert.False(t, st.UpdatedAt.IsZero())

	upd, err := tr.RecordActivity(ctx, "alice", 3, rules())
	require.NoError(t, err)
	assert.False(t, upd.Changed)

	_, err = tr.RecordActivity(ctx, " ", 3, rules())
	assert.ErrorIs(t, err, ErrInvalidAccount)
}

func TestAlive(t *testing.T) {
	r := rules()
	assert.False(t, Alive(State{}, 10, r))
	s := State{Account: "a", Length: 4, LastDay: 10}
	assert.True(t, Alive(s, 11, r))
	assert.False(t, Alive(s, 12, r))
	s.Tokens = 1
	assert.True(t, Alive(s, 12, r))
}

func TestRecordFailedCommitKeepsState(t *testing.T) {
	tr := NewTracker(NewMemoryStore(), nil)
	ctx := context.Background()
	for d := Day(10); d < 12; d++ {
		_, err := tr.RecordActivity(ctx, "a", d, rules())
		require.NoError(t, err)
	}

	boom := errors.New("credit failed")
	_, err := tr.Record(ctx, "a", 12, rules(), func(u Update) error {
		assert.Equal(t, int64(50), u.Bonus)
		return boom
	})
	require.ErrorIs(t, err, boom)
	st, err := tr.State(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, st.Length)

	var paid int64
	upd, err := tr.Record(ctx, "a", 12, rules(), func(u Update) error {
		paid = u.Bonus
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, upd.Length)
	assert.Equal(t, int64(50), paid)
}
