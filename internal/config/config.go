// Package config holds the typed game settings. Every tunable has an explicit
// default and is resolved once at load time; the simulation reads fields, never
// string keys.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Radians per degree, as used by the turn speed and radar settings.
const Radians = math.Pi / 180.0

// Config is the complete settings schema. The key tag is the legacy
// KEY=value name, yaml the file key and env the BOUNTY_-prefixed variable.
type Config struct {
	// World
	DeltaTimeStep float64 `key:"DELTA_TIME_STEP" yaml:"delta_time_step" env:"DELTA_TIME_STEP"`
	WorldBoundMin float64 `key:"WORLD_BOUND_MIN" yaml:"world_bound_min" env:"WORLD_BOUND_MIN"`
	WorldBoundMax float64 `key:"WORLD_BOUND_MAX" yaml:"world_bound_max" env:"WORLD_BOUND_MAX"`
	WindowWidth   int     `key:"GAME_WINDOW_WIDTH" yaml:"window_width" env:"WINDOW_WIDTH"`
	WindowHeight  int     `key:"GAME_WINDOW_HEIGHT" yaml:"window_height" env:"WINDOW_HEIGHT"`
	Seed          int64   `key:"SEED" yaml:"seed" env:"SEED"`
	DebugDrawing  bool    `key:"DEBUG_DRAWING_ENABLED" yaml:"debug_drawing" env:"DEBUG_DRAWING"`

	// Meta
	GlobalScale       float64 `key:"GLOBAL_SCALE" yaml:"global_scale" env:"GLOBAL_SCALE"`
	MaxPlayer         int     `key:"MAX_PLAYER" yaml:"max_player" env:"MAX_PLAYER"`
	MaxBounty         int     `key:"MAX_BOUNTY" yaml:"max_bounty" env:"MAX_BOUNTY"`
	BountySpawnAreas  int     `key:"BOUNTY_SPAWN_AREAS" yaml:"bounty_spawn_areas" env:"BOUNTY_SPAWN_AREAS"`
	DefaultFreezeTime float64 `key:"DEFAULT_FREEZE_TIME" yaml:"default_freeze_time" env:"DEFAULT_FREEZE_TIME"`
	DefaultPlayTime   float64 `key:"DEFAULT_PLAY_TIME" yaml:"default_play_time" env:"DEFAULT_PLAY_TIME"`

	// Respawn and lifetime
	CollectorRespawnTime float64 `key:"COLLECTOR_RESPAWNTIME" yaml:"collector_respawn_time" env:"COLLECTOR_RESPAWNTIME"`
	BountyRespawnTime    float64 `key:"BOUNTY_RESPAWNTIME" yaml:"bounty_respawn_time" env:"BOUNTY_RESPAWNTIME"`
	BountyMinLifetime    float64 `key:"BOUNTY_MIN_LIFETIME" yaml:"bounty_min_lifetime" env:"BOUNTY_MIN_LIFETIME"`
	BountyMaxLifetime    float64 `key:"BOUNTY_MAX_LIFETIME" yaml:"bounty_max_lifetime" env:"BOUNTY_MAX_LIFETIME"`

	// Collector
	CollectorMaxMoveSpeed float64 `key:"COLLECTOR_MAX_MOVE_SPEED" yaml:"collector_max_move_speed" env:"COLLECTOR_MAX_MOVE_SPEED"`
	CollectorMaxTurnSpeed float64 `key:"COLLECTOR_MAX_TURN_SPEED" yaml:"collector_max_turn_speed" env:"COLLECTOR_MAX_TURN_SPEED"`
	PlayerPocketSize      float64 `key:"PLAYER_POCKET_SIZE" yaml:"player_pocket_size" env:"PLAYER_POCKET_SIZE"`
	PlayerStashSize       float64 `key:"PLAYER_STASH_SIZE" yaml:"player_stash_size" env:"PLAYER_STASH_SIZE"`

	// Bounty
	BountyMinValue float64 `key:"BOUNTY_MIN_VALUE" yaml:"bounty_min_value" env:"BOUNTY_MIN_VALUE"`
	BountyMaxValue float64 `key:"BOUNTY_MAX_VALUE" yaml:"bounty_max_value" env:"BOUNTY_MAX_VALUE"`
	BountyMinScale float64 `key:"BOUNTY_MIN_SCALE" yaml:"bounty_min_scale" env:"BOUNTY_MIN_SCALE"`
	BountyMaxScale float64 `key:"BOUNTY_MAX_SCALE" yaml:"bounty_max_scale" env:"BOUNTY_MAX_SCALE"`
	BountyColorR   float64 `key:"BOUNTY_COLOR_R" yaml:"bounty_color_r" env:"BOUNTY_COLOR_R"`
	BountyColorG   float64 `key:"BOUNTY_COLOR_G" yaml:"bounty_color_g" env:"BOUNTY_COLOR_G"`
	BountyColorB   float64 `key:"BOUNTY_COLOR_B" yaml:"bounty_color_b" env:"BOUNTY_COLOR_B"`
	BountyColorA   float64 `key:"BOUNTY_COLOR_A" yaml:"bounty_color_a" env:"BOUNTY_COLOR_A"`

	// Reward
	RewardScalePlayerDied      float64 `key:"REWARD_SCALE_PLAYER_DIED" yaml:"reward_scale_player_died" env:"REWARD_SCALE_PLAYER_DIED"`
	RewardScaleBountyCollected float64 `key:"REWARD_SCALE_BOUNTY_COLLECTED" yaml:"reward_scale_bounty_collected" env:"REWARD_SCALE_BOUNTY_COLLECTED"`
	RewardScaleBountyStashed   float64 `key:"REWARD_SCALE_BOUNTY_STASHED" yaml:"reward_scale_bounty_stashed" env:"REWARD_SCALE_BOUNTY_STASHED"`

	// AI
	AIBountyRadarLOS       float64 `key:"AI_BOUNTY_RADAR_LOS" yaml:"ai_bounty_radar_los" env:"AI_BOUNTY_RADAR_LOS"`
	AIViewDistanceBounty   float64 `key:"AI_VIEW_DISTANCE_BOUNTY" yaml:"ai_view_distance_bounty" env:"AI_VIEW_DISTANCE_BOUNTY"`
	AIViewDistanceObstacle float64 `key:"AI_VIEW_DISTANCE_OBSTACLE" yaml:"ai_view_distance_obstacle" env:"AI_VIEW_DISTANCE_OBSTACLE"`
	AIReturnFill           float64 `key:"AI_RETURN_FILL" yaml:"ai_return_fill" env:"AI_RETURN_FILL"`
}

// Default returns the stock settings.
func Default() Config {
	return Config{
		DeltaTimeStep: 1.0 / 60.0,
		WorldBoundMin: -75,
		WorldBoundMax: 75,
		WindowWidth:   768,
		WindowHeight:  768,
		DebugDrawing:  true,

		GlobalScale:       0.75,
		MaxPlayer:         8,
		MaxBounty:         12,
		BountySpawnAreas:  1,
		DefaultFreezeTime: 3,
		DefaultPlayTime:   90,

		CollectorRespawnTime: 3,
		BountyRespawnTime:    2,
		BountyMinLifetime:    4,
		BountyMaxLifetime:    7,

		CollectorMaxMoveSpeed: 25,
		CollectorMaxTurnSpeed: 360 * Radians,
		PlayerPocketSize:      100,
		PlayerStashSize:       250,

		BountyMinValue: 5,
		BountyMaxValue: 30,
		BountyMinScale: 1,
		BountyMaxScale: 3,
		BountyColorR:   1,
		BountyColorG:   1,
		BountyColorB:   1,
		BountyColorA:   1,

		RewardScalePlayerDied:      -1,
		RewardScaleBountyCollected: 0.01,
		RewardScaleBountyStashed:   0.02,

		AIBountyRadarLOS:       120 * Radians,
		AIViewDistanceBounty:   25,
		AIViewDistanceObstacle: 25 * 0.75,
		AIReturnFill:           0.8,
	}
}

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Validate checks ranges and orderings the simulation relies on.
func (c Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	check(c.DeltaTimeStep > 0, "delta_time_step must be positive, got %v", c.DeltaTimeStep)
	check(c.WorldBoundMin < c.WorldBoundMax, "world_bound_min (%v) must be below world_bound_max (%v)", c.WorldBoundMin, c.WorldBoundMax)
	check(c.WindowWidth > 0 && c.WindowHeight > 0, "window size must be positive, got %dx%d", c.WindowWidth, c.WindowHeight)
	check(c.GlobalScale > 0, "global_scale must be positive")
	check(c.MaxPlayer > 0, "max_player must be positive, got %d", c.MaxPlayer)
	check(c.MaxBounty >= 0, "max_bounty must not be negative, got %d", c.MaxBounty)
	check(c.BountySpawnAreas > 0, "bounty_spawn_areas must be positive, got %d", c.BountySpawnAreas)
	check(c.DefaultFreezeTime >= 0, "default_freeze_time must not be negative")
	check(c.DefaultPlayTime >= 0, "default_play_time must not be negative")
	check(c.CollectorRespawnTime >= 0 && c.BountyRespawnTime >= 0, "respawn times must not be negative")
	check(c.BountyMinLifetime > 0 && c.BountyMinLifetime <= c.BountyMaxLifetime,
		"bounty lifetime range [%v, %v) is invalid", c.BountyMinLifetime, c.BountyMaxLifetime)
	check(c.BountyMinValue >= 0 && c.BountyMinValue <= c.BountyMaxValue,
		"bounty value range [%v, %v] is invalid", c.BountyMinValue, c.BountyMaxValue)
	check(c.BountyMinScale > 0 && c.BountyMinScale <= c.BountyMaxScale,
		"bounty scale range [%v, %v] is invalid", c.BountyMinScale, c.BountyMaxScale)
	check(c.PlayerPocketSize > 0, "player_pocket_size must be positive")
	check(c.PlayerStashSize > 0, "player_stash_size must be positive")
	check(c.CollectorMaxMoveSpeed >= 0 && c.CollectorMaxTurnSpeed >= 0, "collector speeds must not be negative")
	check(c.AIReturnFill > 0 && c.AIReturnFill <= 1, "ai_return_fill must be in (0, 1], got %v", c.AIReturnFill)

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// WorldSize returns the edge length of the square play field.
func (c Config) WorldSize() float64 {
	return c.WorldBoundMax - c.WorldBoundMin
}

// TicksFor converts a duration in seconds to a whole number of ticks,
// rounding up. A small tolerance absorbs float noise so 2s at 1/60 is 120.
func (c Config) TicksFor(seconds float64) uint64 {
	if seconds <= 0 {
		return 0
	}
	return uint64(math.Ceil(seconds/c.DeltaTimeStep - 1e-9))
}

// Load reads settings from path on top of the defaults. YAML files
// (.yaml, .yml) are schema-validated; anything else is read as a legacy
// KEY=value settings file.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := validateDocument(raw); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	default:
		if err := parseLegacy(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
