package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full server configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Game      GameConfig      `mapstructure:"game"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	AllowedOrigin   string        `mapstructure:"allowed_origin"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type WebSocketConfig struct {
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	PongTimeout     time.Duration `mapstructure:"pong_timeout"`
	SendBuffer      int           `mapstructure:"send_buffer"`
}

// GameConfig holds the game timings, limits and default room settings.
type GameConfig struct {
	TimeUnit           time.Duration   `mapstructure:"time_unit"`
	RoleRevealDelay    time.Duration   `mapstructure:"role_reveal_delay"`
	NightIntroDelay    time.Duration   `mapstructure:"night_intro_delay"`
	NightStepDelay     time.Duration   `mapstructure:"night_step_delay"`
	DayDiscussionDelay time.Duration   `mapstructure:"day_discussion_delay"`
	VoteResultDelay    time.Duration   `mapstructure:"vote_result_delay"`
	NightActionTimeout time.Duration   `mapstructure:"night_action_timeout"`
	VoteTimeout        time.Duration   `mapstructure:"vote_timeout"`
	RoomIdleTTL        time.Duration   `mapstructure:"room_idle_ttl"`
	MinPlayers         int             `mapstructure:"min_players"`
	MaxPlayers         int             `mapstructure:"max_players"`
	Defaults           DefaultSettings `mapstructure:"defaults"`
}

// DefaultSettings are used for rooms created without settings.
// Role keys are matched case-insensitively.
type DefaultSettings struct {
	PlayerCount  int            `mapstructure:"player_count"`
	SpeakingTime int            `mapstructure:"speaking_time"`
	Roles        map[string]int `mapstructure:"roles"`
}

type LogConfig struct {
	Level   string            `mapstructure:"level"`
	Format  string            `mapstructure:"format"`
	Output  string            `mapstructure:"output"`
	File    LogFileConfig     `mapstructure:"file"`
	Modules map[string]string `mapstructure:"modules"`
}

type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

var (
	mu  sync.RWMutex
	cfg *Config
	v   *viper.Viper
)

// Load reads configuration from defaults, an optional config file, .env and
// MAFIA_* environment variables, in increasing priority.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	nv := viper.New()
	if configPath != "" {
		nv.SetConfigFile(configPath)
	} else {
		nv.SetConfigName("config")
		nv.SetConfigType("yaml")
		nv.AddConfigPath("./config")
		nv.AddConfigPath(".")
	}

	nv.SetEnvPrefix("MAFIA")
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	nv.AutomaticEnv()

	setDefaults(nv)

	if err := nv.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	loaded := &Config{}
	if err := nv.Unmarshal(loaded); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := loaded.Validate(); err != nil {
		return nil, err
	}

	mu.Lock()
	cfg = loaded
	v = nv
	mu.Unlock()
	return loaded, nil
}

// Validate checks values that would break the server at runtime.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	case c.Game.TimeUnit <= 0:
		return fmt.Errorf("game.time_unit must be positive")
	case c.Game.MinPlayers < 1 || c.Game.MaxPlayers < c.Game.MinPlayers:
		return fmt.Errorf("invalid player limits %d..%d", c.Game.MinPlayers, c.Game.MaxPlayers)
	case c.Game.Defaults.PlayerCount < c.Game.MinPlayers || c.Game.Defaults.PlayerCount > c.Game.MaxPlayers:
		return fmt.Errorf("game.defaults.player_count %d outside player limits", c.Game.Defaults.PlayerCount)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.allowed_origin", "*")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.max_message_size", 64*1024)
	v.SetDefault("websocket.write_timeout", "10s")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_timeout", "60s")
	v.SetDefault("websocket.send_buffer", 256)

	v.SetDefault("game.time_unit", "1s")
	v.SetDefault("game.role_reveal_delay", "5s")
	v.SetDefault("game.night_intro_delay", "4s")
	v.SetDefault("game.night_step_delay", "1s")
	v.SetDefault("game.day_discussion_delay", "4s")
	v.SetDefault("game.vote_result_delay", "5s")
	v.SetDefault("game.night_action_timeout", "60s")
	v.SetDefault("game.vote_timeout", "2m")
	v.SetDefault("game.room_idle_ttl", "10m")
	v.SetDefault("game.min_players", 3)
	v.SetDefault("game.max_players", 16)
	v.SetDefault("game.defaults.player_count", 8)
	v.SetDefault("game.defaults.speaking_time", 60)
	v.SetDefault("game.defaults.roles", map[string]int{"mafia": 2, "detective": 1, "doctor": 1})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.filename", "mafia.log")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.compress", true)
}

// Get returns the last loaded configuration.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Watch reloads the config file on change and hands valid results to callback.
func Watch(callback func(*Config), onError func(error)) {
	mu.RLock()
	nv := v
	mu.RUnlock()
	if nv == nil || nv.ConfigFileUsed() == "" {
		return
	}

	nv.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		reloaded := &Config{}
		if err := nv.Unmarshal(reloaded); err != nil {
			onError(fmt.Errorf("reload %s: %w", e.Name, err))
			return
		}
		if err := reloaded.Validate(); err != nil {
			onError(fmt.Errorf("reload %s: %w", e.Name, err))
			return
		}

		mu.Lock()
		cfg = reloaded
		mu.Unlock()

		if callback != nil {
			callback(reloaded)
		}
	})
	nv.WatchConfig()
}
