package persistence

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/bountyhunter/internal/agents"
	"github.com/talgya/bountyhunter/internal/engine"
	"github.com/talgya/bountyhunter/internal/reward"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "episodes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func result(episode int, winner agents.ID, ended time.Time) engine.EpisodeResult {
	return engine.EpisodeResult{
		ID:      uuid.NewString(),
		Episode: episode,
		Seed:    42 + int64(episode),
		Winner:  winner,
		Ticks:   5400,
		Agents: []engine.AgentStatus{
			{ID: 0, Kind: "ai", Observation: reward.Observation{StashLoad: 120, PocketLoad: 5}},
			{ID: 1, Kind: "player", Observation: reward.Observation{StashLoad: 80, Dead: true}},
		},
		StartedAt: ended.Add(-90 * time.Second),
		EndedAt:   ended,
	}
}

func TestSaveAndListEpisodes(t *testing.T) {
	db := openTemp(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := result(1, 0, base)
	second := result(2, 1, base.Add(time.Minute))
	require.NoError(t, db.SaveEpisode(first))
	require.NoError(t, db.SaveEpisode(second))

	got, err := db.RecentEpisodes(10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID, "newest first")
	assert.Equal(t, first.ID, got[1].ID)

	ep := got[1]
	assert.Equal(t, 1, ep.Episode)
	assert.Equal(t, int64(43), ep.Seed)
	assert.Equal(t, 0, ep.Winner)
	assert.Equal(t, int64(5400), ep.Ticks)
	assert.True(t, base.Equal(ep.Ended()))
	assert.True(t, base.Add(-90*time.Second).Equal(ep.Started()))

	require.Len(t, ep.Agents, 2)
	assert.Equal(t, EpisodeAgent{EpisodeID: first.ID, AgentID: 0, Kind: "ai", Stash: 120, Pocket: 5}, ep.Agents[0])
	assert.True(t, ep.Agents[1].Dead)

	limited, err := db.RecentEpisodes(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSaveEpisodeRejectsDuplicateID(t *testing.T) {
	db := openTemp(t)
	r := result(1, 0, time.Now())
	require.NoError(t, db.SaveEpisode(r))
	assert.Error(t, db.SaveEpisode(r))

	got, err := db.RecentEpisodes(10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Agents, 2, "the failed save left nothing behind")
}

func TestWinCounts(t *testing.T) {
	db := openTemp(t)
	now := time.Now()
	for i, w := range []agents.ID{0, 2, 2, agents.None, 2} {
		require.NoError(t, db.SaveEpisode(result(i+1, w, now)))
	}

	counts, err := db.WinCounts()
	require.NoError(t, err)
	assert.Equal(t, map[agents.ID]int{0: 1, 2: 3}, counts)
}

func TestMeta(t *testing.T) {
	db := openTemp(t)

	_, err := db.GetMeta("seed")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, db.SaveMeta("seed", "42"))
	require.NoError(t, db.SaveMeta("seed", "43"))
	v, err := db.GetMeta("seed")
	require.NoError(t, err)
	assert.Equal(t, "43", v)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "episodes.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.SaveEpisode(result(1, 1, time.Now())))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	got, err := db.RecentEpisodes(5)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
