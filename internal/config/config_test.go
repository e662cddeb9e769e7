package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.DeltaTimeStep = 0
	cfg.MaxPlayer = 0
	cfg.BountyMinLifetime = 9

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "delta_time_step")
	assert.Contains(t, err.Error(), "max_player")
	assert.Contains(t, err.Error(), "bounty lifetime")
}

func TestTicksFor(t *testing.T) {
	cfg := Default()
	assert.Equal(t, uint64(120), cfg.TicksFor(2))
	assert.Equal(t, uint64(180), cfg.TicksFor(3))
	assert.Equal(t, uint64(1), cfg.TicksFor(0.001))
	assert.Equal(t, uint64(0), cfg.TicksFor(0))
}

func TestLoadYAML(t *testing.T) {
	p := writeFile(t, "game.yaml", `
max_player: 4
default_play_time: 30
bounty_min_value: 1
debug_drawing: false
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.MaxPlayer)
	assert.Equal(t, 30.0, cfg.DefaultPlayTime)
	assert.Equal(t, 1.0, cfg.BountyMinValue)
	assert.False(t, cfg.DebugDrawing)
	// untouched keys keep their defaults
	assert.Equal(t, 12, cfg.MaxBounty)
}

func TestLoadYAMLRejectsUnknownKey(t *testing.T) {
	p := writeFile(t, "game.yml", "max_players: 4\n")
	_, err := Load(p)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestLoadYAMLRejectsWrongType(t *testing.T) {
	p := writeFile(t, "game.yaml", "max_player: lots\n")
	_, err := Load(p)
	require.Error(t, err)
}

func TestLoadLegacy(t *testing.T) {
	p := writeFile(t, "Game.config", `
# comment
MAX_PLAYER=2
DEFAULT_PLAY_TIME=45
PLAYER_STASH_SIZE=300.5
DEBUG_DRAWING_ENABLED=False
not a setting line
SOMETHING_ELSE=1
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.MaxPlayer)
	// no decimal point, still a float field
	assert.Equal(t, 45.0, cfg.DefaultPlayTime)
	assert.Equal(t, 300.5, cfg.PlayerStashSize)
	assert.False(t, cfg.DebugDrawing)
}

func TestLoadLegacyBoolComparesValueNotKey(t *testing.T) {
	p := writeFile(t, "Game.config", "DEBUG_DRAWING_ENABLED=maybe\n")
	_, err := Load(p)
	require.Error(t, err)
}

func TestLoadLegacyIntegralFloat(t *testing.T) {
	p := writeFile(t, "Game.config", "MAX_BOUNTY=6.0\n")
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.MaxBounty)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadValidatesResult(t *testing.T) {
	p := writeFile(t, "Game.config", "BOUNTY_MIN_SCALE=5\nBOUNTY_MAX_SCALE=1\n")
	_, err := Load(p)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("BOUNTY_MAX_PLAYER", "3")
	t.Setenv("BOUNTY_DEFAULT_FREEZE_TIME", "0.5")

	cfg := Default()
	cfg.MaxBounty = 20
	require.NoError(t, ApplyEnv(&cfg))
	assert.Equal(t, 3, cfg.MaxPlayer)
	assert.Equal(t, 0.5, cfg.DefaultFreezeTime)
	assert.Equal(t, 20, cfg.MaxBounty)
}

func TestApplyEnvBadValue(t *testing.T) {
	t.Setenv("BOUNTY_MAX_PLAYER", "eight")
	cfg := Default()
	err := ApplyEnv(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestParseRunnerDefaults(t *testing.T) {
	rc, err := ParseRunner()
	require.NoError(t, err)
	assert.Equal(t, 8080, rc.APIPort)
	assert.Equal(t, 4, rc.Players)
	assert.Equal(t, 1.0, rc.Speed)
}

func TestKeysMatchSchemaFields(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "MAX_PLAYER")
	assert.Contains(t, keys, "REWARD_SCALE_BOUNTY_STASHED")
	assert.Len(t, keys, 36)
}
