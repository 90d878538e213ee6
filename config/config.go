package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// SysConfig system-level parameters
type SysConfig struct {
	Appid    string `yaml:"appid" json:"appid"`
	Location string `yaml:"location" json:"location"`
	Workdir  string `yaml:"workdir" json:"workdir"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

// WebConfig admin/webhook HTTP listener
type WebConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// DBConfig database connection parameters
type DBConfig struct {
	Type     string `yaml:"type" json:"type"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Name     string `yaml:"name" json:"name"`
	User     string `yaml:"user" json:"user"`
	Passwd   string `yaml:"passwd" json:"passwd"`
	MaxConn  int    `yaml:"max_conn" json:"max_conn"`
	IdleConn int    `yaml:"idle_conn" json:"idle_conn"`
}

// LogConfig logger parameters
type LogConfig struct {
	Mode       string `yaml:"mode" json:"mode"`
	FileEnable bool   `yaml:"file_enable" json:"file_enable"`
	Filename   string `yaml:"filename" json:"filename"`
}

// BalancerConfig load balancer defaults. The runtime switch lives in the
// settings table; this only seeds the initial value.
type BalancerConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// WorkerConfig bounded timeouts for outbound worker-server calls, in
// seconds. Per-server probe timeouts from the registry take precedence for
// health checks; these cover the reconciliation steps.
type WorkerConfig struct {
	StatusTimeout    int `yaml:"status_timeout" json:"status_timeout"`
	ReconnectTimeout int `yaml:"reconnect_timeout" json:"reconnect_timeout"`
	QRTimeout        int `yaml:"qr_timeout" json:"qr_timeout"`
	ProbeConcurrency int `yaml:"probe_concurrency" json:"probe_concurrency"`
}

func (w WorkerConfig) StatusDuration() time.Duration {
	return time.Duration(w.StatusTimeout) * time.Second
}

func (w WorkerConfig) ReconnectDuration() time.Duration {
	return time.Duration(w.ReconnectTimeout) * time.Second
}

func (w WorkerConfig) QRDuration() time.Duration {
	return time.Duration(w.QRTimeout) * time.Second
}

type AppConfig struct {
	System   SysConfig      `yaml:"system" json:"system"`
	Web      WebConfig      `yaml:"web" json:"web"`
	Database DBConfig       `yaml:"database" json:"database"`
	Logger   LogConfig      `yaml:"logger" json:"logger"`
	Balancer BalancerConfig `yaml:"balancer" json:"balancer"`
	Worker   WorkerConfig   `yaml:"worker" json:"worker"`
}

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "wafleet",
		Location: "Asia/Shanghai",
		Workdir:  "/var/wafleet",
		Debug:    true,
	},
	Web: WebConfig{
		Host: "0.0.0.0",
		Port: 1816,
	},
	Database: DBConfig{
		Type:     "postgres",
		Host:     "127.0.0.1",
		Port:     5432,
		Name:     "wafleet",
		User:     "postgres",
		Passwd:   "postgres",
		MaxConn:  100,
		IdleConn: 10,
	},
	Logger: LogConfig{
		Mode:       "development",
		FileEnable: true,
		Filename:   "/var/wafleet/wafleet.log",
	},
	Balancer: BalancerConfig{Enabled: false},
	Worker: WorkerConfig{
		StatusTimeout:    5,
		ReconnectTimeout: 15,
		QRTimeout:        5,
		ProbeConcurrency: 25,
	},
}

func setEnvValue(name string, val *string) {
	if evalue := os.Getenv(name); evalue != "" {
		*val = evalue
	}
}

func setEnvBoolValue(name string, val *bool) {
	if evalue := os.Getenv(name); evalue != "" {
		*val = evalue == "true" || evalue == "1" || evalue == "on"
	}
}

// LoadConfig reads the YAML configuration file and applies environment
// variable overrides. A missing file is a ConfigurationError and fatal to
// start-up; the caller decides whether to fall back to defaults.
func LoadConfig(cfile string) (*AppConfig, error) {
	cfg := new(AppConfig)
	*cfg = *DefaultAppConfig

	if cfile != "" {
		data, err := os.ReadFile(cfile)
		if err != nil {
			return nil, errors.Wrap(err, "read config file")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "parse config file")
		}
	}

	setEnvValue("WAFLEET_SYSTEM_WORKDIR", &cfg.System.Workdir)
	setEnvValue("WAFLEET_WEB_HOST", &cfg.Web.Host)
	setEnvValue("WAFLEET_DB_TYPE", &cfg.Database.Type)
	setEnvValue("WAFLEET_DB_HOST", &cfg.Database.Host)
	setEnvValue("WAFLEET_DB_NAME", &cfg.Database.Name)
	setEnvValue("WAFLEET_DB_USER", &cfg.Database.User)
	setEnvValue("WAFLEET_DB_PWD", &cfg.Database.Passwd)
	setEnvValue("WAFLEET_LOGGER_MODE", &cfg.Logger.Mode)
	setEnvBoolValue("WAFLEET_SYSTEM_DEBUG", &cfg.System.Debug)
	setEnvBoolValue("WAFLEET_BALANCER_ENABLED", &cfg.Balancer.Enabled)

	return cfg, nil
}
