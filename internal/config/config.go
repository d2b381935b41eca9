package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Version       int                  `mapstructure:"version"`
	Prunes        []PruneConfig        `mapstructure:"prunes"`
	Storage       []StorageConfig      `mapstructure:"storage"`
	Notifications []NotificationConfig `mapstructure:"notifications"`
}

type PruneConfig struct {
	Name        string   `mapstructure:"name"`
	Storage     string   `mapstructure:"storage"`
	Root        string   `mapstructure:"root"`
	Policy      string   `mapstructure:"policy"`
	Expect      []string `mapstructure:"expect"`
	TimeFormats []string `mapstructure:"time_formats"`
	Start       string   `mapstructure:"start"`
	End         string   `mapstructure:"end"`
	Schedule    string   `mapstructure:"schedule"`
}

type StorageConfig struct {
	Name  string       `mapstructure:"name"`
	Type  string       `mapstructure:"type"`
	Local *LocalConfig `mapstructure:"local"`
	S3    *S3Config    `mapstructure:"s3"`
}

type LocalConfig struct {
	Path string `mapstructure:"path"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type NotificationConfig struct {
	Type   string              `mapstructure:"type"`
	On     []string            `mapstructure:"on"`
	Config NotificationDetails `mapstructure:"config"`
}

type NotificationDetails struct {
	SMTPHost string            `mapstructure:"smtp_host"`
	SMTPPort int               `mapstructure:"smtp_port"`
	From     string            `mapstructure:"from"`
	To       string            `mapstructure:"to"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	URL      string            `mapstructure:"url"`
	Headers  map[string]string `mapstructure:"headers"`
}

// windowLayouts are accepted for prune start/end bounds.
var windowLayouts = []string{"2006-01-02", time.RFC3339}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ModifyConfig(&cfg)

	return &cfg, nil
}

// ModifyConfig expands ${VAR} references in every user-facing string field,
// so secrets can live in the environment instead of the yaml file.
func ModifyConfig(cfg *Config) {
	for i := range cfg.Prunes {
		p := &cfg.Prunes[i]
		p.Name = os.ExpandEnv(p.Name)
		p.Storage = os.ExpandEnv(p.Storage)
		p.Root = os.ExpandEnv(p.Root)
		p.Policy = os.ExpandEnv(p.Policy)
		p.Start = os.ExpandEnv(p.Start)
		p.End = os.ExpandEnv(p.End)
		p.Schedule = os.ExpandEnv(p.Schedule)
	}

	for i := range cfg.Storage {
		st := &cfg.Storage[i]
		st.Name = os.ExpandEnv(st.Name)
		st.Type = os.ExpandEnv(st.Type)
		if st.Local != nil {
			st.Local.Path = os.ExpandEnv(st.Local.Path)
		}
		if st.S3 != nil {
			st.S3.Bucket = os.ExpandEnv(st.S3.Bucket)
			st.S3.Region = os.ExpandEnv(st.S3.Region)
			st.S3.Prefix = os.ExpandEnv(st.S3.Prefix)
			st.S3.AccessKey = os.ExpandEnv(st.S3.AccessKey)
			st.S3.SecretKey = os.ExpandEnv(st.S3.SecretKey)
		}
	}

	for i := range cfg.Notifications {
		nt := &cfg.Notifications[i]
		nt.Type = os.ExpandEnv(nt.Type)
		for j := range nt.On {
			nt.On[j] = os.ExpandEnv(nt.On[j])
		}
		nt.Config.SMTPHost = os.ExpandEnv(nt.Config.SMTPHost)
		nt.Config.From = os.ExpandEnv(nt.Config.From)
		nt.Config.To = os.ExpandEnv(nt.Config.To)
		nt.Config.Username = os.ExpandEnv(nt.Config.Username)
		nt.Config.Password = os.ExpandEnv(nt.Config.Password)
		nt.Config.URL = os.ExpandEnv(nt.Config.URL)
		for k, v := range nt.Config.Headers {
			nt.Config.Headers[k] = os.ExpandEnv(v)
		}
	}
}

// CompiledExpect compiles the expected-basename patterns. Callers get a fresh
// slice on every call, so the config itself stays immutable.
func (p PruneConfig) CompiledExpect() ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(p.Expect))
	for i, raw := range p.Expect {
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("expect[%d]: %w", i, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// Window parses the optional start/end bounds. A nil pointer means the bound
// is open.
func (p PruneConfig) Window() (*time.Time, *time.Time, error) {
	start, err := parseBound(p.Start)
	if err != nil {
		return nil, nil, fmt.Errorf("start: %w", err)
	}
	end, err := parseBound(p.End)
	if err != nil {
		return nil, nil, fmt.Errorf("end: %w", err)
	}
	if start != nil && end != nil && start.After(*end) {
		return nil, nil, fmt.Errorf("start %s is after end %s", p.Start, p.End)
	}
	return start, end, nil
}

func parseBound(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range windowLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized time %q (want 2006-01-02 or RFC3339)", raw)
}
