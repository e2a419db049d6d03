package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/compai/assets"
	"github.com/doeshing/compai/internal/domain"
	"github.com/doeshing/compai/internal/pkg/filesystem"
	"github.com/doeshing/compai/internal/ports"
)

// EnvPrefix namespaces environment overrides, e.g. COMPAI_MODELS_CHAT.
const EnvPrefix = "COMPAI"

// FileLoader loads YAML configuration from ~/.compai/config.yaml (overridable via COMPAI_CONFIG).
type FileLoader struct {
	overridePath string
}

// NewFileLoader builds a new loader.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{overridePath: path}
}

// Load implements ports.ConfigProvider. A missing file is created from the embedded defaults.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	path := l.Path()
	if err := ensureConfigDir(path); err != nil {
		return domain.Config{}, err
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		cfg, err := Defaults()
		if err != nil {
			return domain.Config{}, err
		}
		if err := writeDefault(path, cfg); err != nil {
			return domain.Config{}, err
		}
	}

	v, err := newViper(path)
	if err != nil {
		return domain.Config{}, err
	}
	return decode(v)
}

// Watch calls onChange with the reloaded configuration whenever the file changes.
// Reload errors are passed to onError and the previous configuration stays in effect.
func (l *FileLoader) Watch(onChange func(domain.Config), onError func(error)) error {
	v, err := newViper(l.Path())
	if err != nil {
		return err
	}
	v.OnConfigChange(func(event fsnotify.Event) {
		if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", event.Name, err))
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// Path resolves the configuration file location.
func (l *FileLoader) Path() string {
	if l.overridePath != "" {
		return expandPath(l.overridePath)
	}
	if custom := os.Getenv("COMPAI_CONFIG"); custom != "" {
		return expandPath(custom)
	}
	return filepath.Join(filesystem.UserHomeDir(), ".compai", "config.yaml")
}

// Defaults decodes the embedded default configuration.
func Defaults() (domain.Config, error) {
	var cfg domain.Config
	if err := yaml.Unmarshal(assets.DefaultConfigYAML, &cfg); err != nil {
		return domain.Config{}, fmt.Errorf("parse default config: %w", err)
	}
	return hydrateDefaults(cfg), nil
}

// newViper layers the file over the embedded defaults, with COMPAI_* environment overrides on top.
func newViper(path string) (*viper.Viper, error) {
	defaults := viper.New()
	defaults.SetConfigType("yaml")
	if err := defaults.ReadConfig(bytes.NewReader(assets.DefaultConfigYAML)); err != nil {
		return nil, fmt.Errorf("read default config: %w", err)
	}

	// Defaults are registered as such so a watched reload keeps them.
	v := viper.New()
	for _, key := range defaults.AllKeys() {
		v.SetDefault(key, defaults.Get(key))
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Keys absent from the default file are unknown to AutomaticEnv.
	_ = v.BindEnv("endpoint.api_key")
	return v, nil
}

func decode(v *viper.Viper) (domain.Config, error) {
	var cfg domain.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return domain.Config{}, fmt.Errorf("decode config: %w", err)
	}
	return hydrateDefaults(cfg), nil
}

func ensureConfigDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions)
}

func writeDefault(path string, cfg domain.Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, domain.SecureFilePermissions)
}

func hydrateDefaults(cfg domain.Config) domain.Config {
	if cfg.ConfigFormatVersion == "" {
		cfg.ConfigFormatVersion = "1"
	}
	if cfg.Bridge.Mode == "" {
		cfg.Bridge.Mode = domain.BridgeModeLocal
	}
	if cfg.Bridge.ListenAddr == "" {
		cfg.Bridge.ListenAddr = domain.DefaultBridgeListenAddr
	}
	if cfg.Bridge.ProjectPath != "" {
		cfg.Bridge.ProjectPath = expandPath(cfg.Bridge.ProjectPath)
	}
	return cfg
}

func expandPath(path string) string {
	if path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(filesystem.UserHomeDir(), path[2:])
	}
	return filepath.Clean(path)
}

var _ ports.ConfigProvider = (*FileLoader)(nil)
