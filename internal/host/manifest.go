package host

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// DefaultName is the native messaging host the bridge talks to.
const DefaultName = "com.0xc0dedbad.kdeconnect_chrome"

// DefaultOrigin is passed to the host as its first argument, the way Chrome
// identifies the calling extension.
const DefaultOrigin = "chrome-extension://ofmplbbfigookafjahpeepbggpofdhbo/"

// ErrNoManifest is returned by Resolve when no directory holds the manifest.
var ErrNoManifest = errors.New("host: manifest not found")

// Manifest is a native messaging host manifest.
type Manifest struct {
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	Path              string   `json:"path"`
	Type              string   `json:"type"`
	AllowedOrigins    []string `json:"allowed_origins,omitempty"`
	AllowedExtensions []string `json:"allowed_extensions,omitempty"`
}

// Resolve finds <name>.json in the first directory that has it and returns
// the host executable it names. Relative paths are resolved against the
// manifest's directory.
func Resolve(name string, dirs []string) (string, error) {
	for _, dir := range dirs {
		file := filepath.Join(dir, name+".json")
		data, err := os.ReadFile(file)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return "", fmt.Errorf("read manifest: %w", err)
		}

		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			return "", fmt.Errorf("parse manifest %s: %w", file, err)
		}
		if m.Name != "" && m.Name != name {
			return "", fmt.Errorf("manifest %s names %q, want %q", file, m.Name, name)
		}
		if m.Type != "" && m.Type != "stdio" {
			return "", fmt.Errorf("manifest %s: unsupported type %q", file, m.Type)
		}
		if m.Path == "" {
			return "", fmt.Errorf("manifest %s: empty path", file)
		}
		if !filepath.IsAbs(m.Path) {
			return filepath.Join(dir, m.Path), nil
		}
		return m.Path, nil
	}
	return "", fmt.Errorf("%w: %s.json in %v", ErrNoManifest, name, dirs)
}

// DefaultManifestDirs lists the per-user then system-wide manifest
// directories of the common browsers.
func DefaultManifestDirs() []string {
	home, _ := os.UserHomeDir()

	if runtime.GOOS == "darwin" {
		support := filepath.Join(home, "Library", "Application Support")
		return []string{
			filepath.Join(support, "Google", "Chrome", "NativeMessagingHosts"),
			filepath.Join(support, "Chromium", "NativeMessagingHosts"),
			filepath.Join(support, "Vivaldi", "NativeMessagingHosts"),
			filepath.Join(support, "Mozilla", "NativeMessagingHosts"),
			"/Library/Google/Chrome/NativeMessagingHosts",
			"/Library/Application Support/Chromium/NativeMessagingHosts",
			"/Library/Application Support/Mozilla/NativeMessagingHosts",
		}
	}

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = filepath.Join(home, ".config")
	}
	return []string{
		filepath.Join(configHome, "google-chrome", "NativeMessagingHosts"),
		filepath.Join(configHome, "chromium", "NativeMessagingHosts"),
		filepath.Join(configHome, "BraveSoftware", "Brave-Browser", "NativeMessagingHosts"),
		filepath.Join(configHome, "vivaldi", "NativeMessagingHosts"),
		filepath.Join(home, ".mozilla", "native-messaging-hosts"),
		"/etc/opt/chrome/native-messaging-hosts",
		"/etc/chromium/native-messaging-hosts",
		"/usr/lib/mozilla/native-messaging-hosts",
	}
}
