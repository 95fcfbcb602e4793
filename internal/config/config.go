package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/kdebridge/internal/host"
)

// Config holds the daemon and client settings.
type Config struct {
	Listen          string
	HostName        string
	HostPath        string
	HostArgs        []string
	AllowedOrigins  []string
	ManifestDirs    []string
	ProtocolVersion string
	VersionTimeout  time.Duration
	MaxReconnect    time.Duration
	LogDir          string
	PrefsPath       string
}

const (
	defaultConfigPath      = "~/.config/kdebridge/config.toml"
	defaultLogDir          = "~/.local/share/kdebridge/logs"
	defaultPrefsPath       = "~/.config/kdebridge/prefs.toml"
	defaultListen          = "127.0.0.1:7489"
	defaultProtocolVersion = "0.1.3"
	defaultVersionTimeout  = 500 * time.Millisecond
)

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return defaultConfigPath
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Listen:          defaultListen,
		HostName:        host.DefaultName,
		HostArgs:        []string{host.DefaultOrigin},
		AllowedOrigins:  []string{host.DefaultOrigin},
		ProtocolVersion: defaultProtocolVersion,
		VersionTimeout:  defaultVersionTimeout,
		LogDir:          mustExpand(defaultLogDir),
		PrefsPath:       mustExpand(defaultPrefsPath),
	}
}

// Load locates and parses the config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		Listen           string   `toml:"listen"`
		HostName         string   `toml:"host_name"`
		HostPath         string   `toml:"host_path"`
		HostArgs         []string `toml:"host_args"`
		AllowedOrigins   []string `toml:"allowed_origins"`
		ManifestDirs     []string `toml:"manifest_dirs"`
		ProtocolVersion  string   `toml:"protocol_version"`
		VersionTimeoutMS int64    `toml:"version_timeout_ms"`
		MaxReconnectMS   int64    `toml:"max_reconnect_ms"`
		LogDir           string   `toml:"log_dir"`
		PrefsPath        string   `toml:"prefs_path"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.Listen); v != "" {
		cfg.Listen = v
	}
	if v := strings.TrimSpace(raw.HostName); v != "" {
		cfg.HostName = v
	}
	if v := strings.TrimSpace(raw.HostPath); v != "" {
		cfg.HostPath = mustExpand(v)
	}
	if raw.HostArgs != nil {
		cfg.HostArgs = raw.HostArgs
	}
	if raw.AllowedOrigins != nil {
		cfg.AllowedOrigins = nil
		for _, origin := range raw.AllowedOrigins {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}
	for _, dir := range raw.ManifestDirs {
		if dir = strings.TrimSpace(dir); dir != "" {
			cfg.ManifestDirs = append(cfg.ManifestDirs, mustExpand(dir))
		}
	}
	if v := strings.TrimSpace(raw.ProtocolVersion); v != "" {
		cfg.ProtocolVersion = v
	}
	if raw.VersionTimeoutMS < 0 || raw.MaxReconnectMS < 0 {
		return Config{}, fmt.Errorf("parse config: durations must not be negative")
	}
	if raw.VersionTimeoutMS > 0 {
		cfg.VersionTimeout = time.Duration(raw.VersionTimeoutMS) * time.Millisecond
	}
	cfg.MaxReconnect = time.Duration(raw.MaxReconnectMS) * time.Millisecond
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		cfg.LogDir = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.PrefsPath); v != "" {
		cfg.PrefsPath = mustExpand(v)
	}

	return cfg, nil
}

// DaemonLogPath returns the path to the bridge's own log file.
func (c Config) DaemonLogPath() string {
	return filepath.Join(c.logDir(), "kdebridge.log")
}

// HostLogPath returns the file the host's stderr is appended to.
func (c Config) HostLogPath() string {
	return filepath.Join(c.logDir(), "host.log")
}

// BaseURL returns the HTTP base URL of the daemon.
func (c Config) BaseURL() string {
	return "http://" + c.Listen
}

// SurfaceURL returns the WebSocket URL a surface of the given kind attaches to.
func (c Config) SurfaceURL(surface string) string {
	u := url.URL{Scheme: "ws", Host: c.Listen, Path: "/ws", RawQuery: url.Values{"surface": {surface}}.Encode()}
	return u.String()
}

// ResolveHostPath returns the host executable, reading the native messaging
// manifest when no explicit path is configured.
func (c Config) ResolveHostPath() (string, error) {
	if c.HostPath != "" {
		return c.HostPath, nil
	}
	dirs := c.ManifestDirs
	if len(dirs) == 0 {
		dirs = host.DefaultManifestDirs()
	}
	return host.Resolve(c.HostName, dirs)
}

func (c Config) logDir() string {
	if strings.TrimSpace(c.LogDir) == "" {
		return mustExpand(defaultLogDir)
	}
	return c.LogDir
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
