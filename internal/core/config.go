package core

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config contains all of the configuration options available to any of the
// broker's components.
type Config struct {
	// Hostname or IP address on which the lobby will listen for connections.
	Hostname string `mapstructure:"hostname"`
	// Maximum number of concurrent connections the server will allow.
	MaxConnections int `mapstructure:"max_connections"`

	Logging struct {
		// Full path to file to which logs will be written. Blank will write to stdout.
		LogFilePath string `mapstructure:"log_file_path"`
		// Minimum level of a log required to be written. Options: debug, info, warn, error
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"logging"`

	Lobby struct {
		// Port on which the lobby protocol server will listen.
		Port int `mapstructure:"port"`
		// Number of outbound messages buffered per connection before pushes are dropped.
		SendQueueSize int `mapstructure:"send_queue_size"`
	} `mapstructure:"lobby"`

	Web struct {
		// HTTP port for the read-only status API. 0 disables it.
		HTTPPort int `mapstructure:"http_port"`
	} `mapstructure:"web"`

	Database struct {
		// Either sqlite or postgres.
		Engine string `mapstructure:"engine"`
		// Database file used by the sqlite engine, relative to the config directory.
		Filename string `mapstructure:"filename"`
		// Hostname of the Postgres database instance.
		Host string `mapstructure:"host"`
		// Port on db_host on which the Postgres instance is accepting connections.
		Port int `mapstructure:"port"`
		// Name of the database in Postgres.
		Name string `mapstructure:"name"`
		// Username and password of a user with full RW privileges to ${db_name}.
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		// Set to verify-full if the Postgres instance supports SSL.
		SSLMode string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	Games struct {
		// JSON file describing the installed games.
		CatalogFile string `mapstructure:"catalog_file"`
		// Directory under which each game's path is resolved.
		RootDir string `mapstructure:"root_dir"`
		// Reload the catalog whenever the file changes.
		Watch bool `mapstructure:"watch"`
	} `mapstructure:"games"`

	Launcher struct {
		// Host substituted into game server commands.
		Host string `mapstructure:"host"`
		// Inclusive range of ports handed out to game servers.
		PortMin int `mapstructure:"port_min"`
		PortMax int `mapstructure:"port_max"`
		// Bind each candidate port before handing it out.
		ProbePorts bool `mapstructure:"probe_ports"`
		// Address game servers use to report results. Defaults to the lobby address.
		BrokerAddr string `mapstructure:"broker_addr"`
	} `mapstructure:"launcher"`

	Sessions struct {
		// How long a login token can be used to identify a monitor or resume.
		TTL time.Duration `mapstructure:"ttl"`
	} `mapstructure:"sessions"`

	Leaderboard struct {
		// Either file or redis.
		Store string `mapstructure:"store"`
		// Snapshot file used by the file store, relative to the config directory.
		File string `mapstructure:"file"`
		// Connection URL used by the redis store.
		RedisURL string `mapstructure:"redis_url"`
	} `mapstructure:"leaderboard"`

	Debugging struct {
		// Enable extra info-providing mechanisms for the server.
		Enabled bool `mapstructure:"enabled"`
		// Port on which a pprof server will be started if debug mode is enabled.
		PprofPort int `mapstructure:"pprof_port"`
		// Enable database-level query logging.
		DatabaseLoggingEnabled bool `mapstructure:"database_logging_enabled"`
		// Log every frame received from a client (requires log_level debug).
		FrameLoggingEnabled bool `mapstructure:"frame_logging_enabled"`
	} `mapstructure:"debugging"`

	// Directory the config file was loaded from; relative paths resolve against it.
	configDir string
}

const envVarPrefix = "LOBBY"

var ErrInvalidConfig = errors.New("invalid configuration")

func setDefaults(v *viper.Viper) {
	v.SetDefault("hostname", "0.0.0.0")
	v.SetDefault("max_connections", 1000)
	v.SetDefault("logging.log_level", "info")
	v.SetDefault("lobby.port", 5555)
	v.SetDefault("lobby.send_queue_size", 64)
	v.SetDefault("web.http_port", 0)
	v.SetDefault("database.engine", "sqlite")
	v.SetDefault("database.filename", "lobby.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("games.catalog_file", "games.json")
	v.SetDefault("games.root_dir", "games")
	v.SetDefault("games.watch", true)
	v.SetDefault("launcher.host", "127.0.0.1")
	v.SetDefault("launcher.port_min", 18000)
	v.SetDefault("launcher.port_max", 18999)
	v.SetDefault("launcher.probe_ports", true)
	v.SetDefault("sessions.ttl", 12*time.Hour)
	v.SetDefault("leaderboard.store", "file")
	v.SetDefault("leaderboard.file", "leaderboard.json")
	v.SetDefault("debugging.pprof_port", 4000)
}

// FlagKeys maps command line flag names to the config keys they override.
var FlagKeys = map[string]string{
	"log-level":  "logging.log_level",
	"lobby-port": "lobby.port",
	"http-port":  "web.http_port",
}

// LoadConfig reads config.yaml from configPath, overlays any LOBBY_* environment
// variables and then any flag in FlagKeys that was set in flags (which may be
// nil), and validates the result.
func LoadConfig(configPath string, flags ...*pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for _, fs := range flags {
		for name, key := range FlagKeys {
			if f := fs.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("error binding flag %s: %w", name, err)
				}
			}
		}
	}

	v.AddConfigPath(configPath)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envVarPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// This allows us to set nested yaml config options through environment
	// variables. For example, database.host can be set using: <envVarPrefix>_DATABASE_HOST
	for _, k := range v.AllKeys() {
		envVar := strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := v.BindEnv(k, envVarPrefix+"_"+envVar); err != nil {
			return nil, fmt.Errorf("error binding %s to %s: %w", k, envVarPrefix+"_"+envVar, err)
		}
	}

	config := &Config{configDir: configPath}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config object: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the options that would otherwise fail deep inside a component.
func (c *Config) Validate() error {
	if c.Launcher.PortMin <= 0 || c.Launcher.PortMax > 65535 || c.Launcher.PortMin > c.Launcher.PortMax {
		return fmt.Errorf("%w: launcher port range %d-%d", ErrInvalidConfig, c.Launcher.PortMin, c.Launcher.PortMax)
	}
	if c.Lobby.Port >= c.Launcher.PortMin && c.Lobby.Port <= c.Launcher.PortMax {
		return fmt.Errorf("%w: lobby port %d is inside the launcher port range", ErrInvalidConfig, c.Lobby.Port)
	}
	switch strings.ToLower(c.Database.Engine) {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: unsupported database engine %q", ErrInvalidConfig, c.Database.Engine)
	}
	switch strings.ToLower(c.Leaderboard.Store) {
	case "file", "redis":
	default:
		return fmt.Errorf("%w: unsupported leaderboard store %q", ErrInvalidConfig, c.Leaderboard.Store)
	}
	return nil
}

const databaseURITemplate = "host=%s port=%d dbname=%s user=%s password=%s sslmode=%s"

// DatabaseURL returns a database URL generated from the provided config values.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		databaseURITemplate,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.Username,
		c.Database.Password,
		c.Database.SSLMode,
	)
}

// QualifiedPath resolves path against the config directory unless it's already absolute.
func (c *Config) QualifiedPath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.configDir, path)
}

// LobbyAddress is the address the lobby frontend binds to.
func (c *Config) LobbyAddress() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.Lobby.Port)
}

// BrokerAddress is the address handed to game servers for reporting results.
func (c *Config) BrokerAddress() string {
	if c.Launcher.BrokerAddr != "" {
		return c.Launcher.BrokerAddr
	}
	host := c.Hostname
	if host == "" || host == "0.0.0.0" {
		host = c.Launcher.Host
	}
	return fmt.Sprintf("%s:%d", host, c.Lobby.Port)
}
