package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v2"
)

type SystemConfig struct {
	Appid    string `yaml:"appid"`
	Location string `yaml:"location"`
	Workdir  string `yaml:"workdir"`
	Debug    bool   `yaml:"debug"`
}

type WebConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Type   string `yaml:"type"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Name   string `yaml:"name"`
	User   string `yaml:"user"`
	Passwd string `yaml:"passwd"`
	Debug  bool   `yaml:"debug"`
}

type LoggerConfig struct {
	Mode       string `yaml:"mode"`
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
}

// GatewayConfig tunes the instance lifecycle manager.
type GatewayConfig struct {
	// SessionDir is the root of per-instance credential directories.
	SessionDir string `yaml:"session_dir"`
	// PairTimeoutSec bounds how long a pairing request waits for a QR
	// or an immediate connect before the caller is told to poll.
	PairTimeoutSec int `yaml:"pair_timeout_sec"`
	// ReconnectDelaySec is the fixed delay before re-dialing after a
	// non-terminal close.
	ReconnectDelaySec int `yaml:"reconnect_delay_sec"`
	// MaxReconnects caps consecutive reconnect attempts; 0 means retry
	// forever.
	MaxReconnects int `yaml:"max_reconnects"`
	// DefaultTenantToken, when set, is seeded into the tenant table at
	// boot so a fresh deployment has a usable account.
	DefaultTenantToken string `yaml:"default_tenant_token"`
	DefaultTenantName  string `yaml:"default_tenant_name"`
}

type AppConfig struct {
	System   SystemConfig  `yaml:"system"`
	Web      WebConfig     `yaml:"web"`
	Database DBConfig      `yaml:"database"`
	Logger   LoggerConfig  `yaml:"logger"`
	Gateway  GatewayConfig `yaml:"gateway"`
}

var DefaultAppConfig = &AppConfig{
	System: SystemConfig{
		Appid:    "wagate",
		Location: "Asia/Jakarta",
		Workdir:  "/var/wagate",
		Debug:    true,
	},
	Web: WebConfig{
		Host: "0.0.0.0",
		Port: 3001,
	},
	Database: DBConfig{
		Type:   "postgres",
		Host:   "127.0.0.1",
		Port:   5432,
		Name:   "wagate",
		User:   "postgres",
		Passwd: "",
	},
	Logger: LoggerConfig{
		Mode:       "development",
		FileEnable: true,
		Filename:   "/var/wagate/wagate.log",
	},
	Gateway: GatewayConfig{
		SessionDir:        "/var/wagate/sessions",
		PairTimeoutSec:    30,
		ReconnectDelaySec: 3,
		MaxReconnects:     20,
		DefaultTenantName: "Admin",
	},
}

func setEnvValue(name string, val *string) {
	if evalue := os.Getenv(name); evalue != "" {
		*val = evalue
	}
}

func setEnvIntValue(name string, val *int) {
	if evalue := os.Getenv(name); evalue != "" {
		*val = cast.ToInt(evalue)
	}
}

func setEnvBoolValue(name string, val *bool) {
	if evalue := os.Getenv(name); evalue != "" {
		*val = cast.ToBool(evalue)
	}
}

// LoadConfig reads the YAML file at cfile over the built-in defaults and
// then applies WAGATE_* environment overrides. A missing file is not an
// error; the defaults plus environment win.
func LoadConfig(cfile string) *AppConfig {
	defaults := *DefaultAppConfig
	cfg := &defaults
	if cfile != "" {
		if data, err := os.ReadFile(cfile); err == nil {
			_ = yaml.Unmarshal(data, cfg)
		}
	}

	setEnvValue("WAGATE_SYSTEM_WORKDIR", &cfg.System.Workdir)
	setEnvValue("WAGATE_SYSTEM_LOCATION", &cfg.System.Location)
	setEnvBoolValue("WAGATE_SYSTEM_DEBUG", &cfg.System.Debug)

	setEnvValue("WAGATE_WEB_HOST", &cfg.Web.Host)
	setEnvIntValue("WAGATE_WEB_PORT", &cfg.Web.Port)

	setEnvValue("WAGATE_DB_TYPE", &cfg.Database.Type)
	setEnvValue("WAGATE_DB_HOST", &cfg.Database.Host)
	setEnvIntValue("WAGATE_DB_PORT", &cfg.Database.Port)
	setEnvValue("WAGATE_DB_NAME", &cfg.Database.Name)
	setEnvValue("WAGATE_DB_USER", &cfg.Database.User)
	setEnvValue("WAGATE_DB_PWD", &cfg.Database.Passwd)

	setEnvValue("WAGATE_LOGGER_MODE", &cfg.Logger.Mode)
	setEnvBoolValue("WAGATE_LOGGER_FILE_ENABLE", &cfg.Logger.FileEnable)

	setEnvValue("WAGATE_SESSION_DIR", &cfg.Gateway.SessionDir)
	setEnvIntValue("WAGATE_PAIR_TIMEOUT_SEC", &cfg.Gateway.PairTimeoutSec)
	setEnvIntValue("WAGATE_RECONNECT_DELAY_SEC", &cfg.Gateway.ReconnectDelaySec)
	setEnvIntValue("WAGATE_MAX_RECONNECTS", &cfg.Gateway.MaxReconnects)
	setEnvValue("WAGATE_DEFAULT_TENANT_TOKEN", &cfg.Gateway.DefaultTenantToken)
	setEnvValue("WAGATE_DEFAULT_TENANT_NAME", &cfg.Gateway.DefaultTenantName)

	if cfg.Gateway.SessionDir == "" {
		cfg.Gateway.SessionDir = filepath.Join(cfg.System.Workdir, "sessions")
	}
	return cfg
}
