// Package settings reads the user's MediaLoad settings file: a simple list of
// KEY=value lines supporting shell-style quoting, comments and the $HOME
// variable. The file is shared with the MediaLoad shell installer, so the keys
// are upper-case shell variable names.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hbomb79/mediaload/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/mitchellh/mapstructure"
)

var log = logger.Get("Settings")

const (
	InstallDirName   = ".mediaload"
	settingsFileName = "config/settings.conf"
	homeToken        = "$HOME"

	// Stands in for '$' while godotenv parses the file, so that no variable
	// other than the home token is ever expanded.
	dollarPlaceholder = "\uE000"
)

type (
	Settings struct {
		DownloadDir         string `mapstructure:"DOWNLOAD_DIR"`
		DefaultVideoQuality string `mapstructure:"DEFAULT_VIDEO_QUALITY"`
		DefaultVideoFormat  string `mapstructure:"DEFAULT_VIDEO_FORMAT"`
		DefaultAudioFormat  string `mapstructure:"DEFAULT_AUDIO_FORMAT"`
		ThemeColor          string `mapstructure:"THEME_COLOR"`
	}

	// Store provides access to the settings file at a fixed path. The file is
	// re-read whenever its modification time changes, so edits made while
	// MediaLoad is running take effect on the next request.
	Store struct {
		sync.Mutex
		path     string
		defaults Settings
		current  Settings
		modTime  time.Time
		loaded   bool
	}
)

// InstallDir returns the MediaLoad installation directory (~/.mediaload).
func InstallDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}

	return filepath.Join(home, InstallDirName), nil
}

// DefaultPath returns the location of the settings file inside the install directory.
func DefaultPath() (string, error) {
	dir, err := InstallDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, settingsFileName), nil
}

// Defaults returns the settings used when the file is absent, or for any
// key the file does not define.
func Defaults() (Settings, error) {
	dir, err := InstallDir()
	if err != nil {
		return Settings{}, err
	}

	return Settings{
		DownloadDir:         filepath.Join(dir, "downloads"),
		DefaultVideoQuality: "best",
		DefaultVideoFormat:  "mp4",
		DefaultAudioFormat:  "mp3",
		ThemeColor:          "cyan",
	}, nil
}

func NewStore(path string, defaults Settings) *Store {
	return &Store{path: path, defaults: defaults, current: defaults}
}

// Load returns the current settings, re-reading the file if it has changed since
// the last load. A missing file is not an error; the defaults are returned.
func (store *Store) Load() (Settings, error) {
	store.Lock()
	defer store.Unlock()

	info, err := os.Stat(store.path)
	if errors.Is(err, fs.ErrNotExist) {
		store.current = store.defaults
		store.loaded = true
		store.modTime = time.Time{}
		return store.current, nil
	} else if err != nil {
		return store.current, fmt.Errorf("failed to stat settings file %s: %w", store.path, err)
	}

	if store.loaded && info.ModTime().Equal(store.modTime) {
		return store.current, nil
	}

	parsed, err := ReadFile(store.path, store.defaults)
	if err != nil {
		return store.current, err
	}

	store.current = parsed
	store.modTime = info.ModTime()
	store.loaded = true
	log.Emit(logger.DEBUG, "Loaded settings from %s: %#v\n", store.path, parsed)

	return store.current, nil
}

// Current is the same as Load, except that errors are logged and the last
// successfully loaded settings are returned instead.
func (store *Store) Current() Settings {
	s, err := store.Load()
	if err != nil {
		log.Emit(logger.WARNING, "Using previous settings, reload failed: %v\n", err)
	}

	return s
}

// ReadFile parses the settings file at the path provided. Keys absent from the
// file keep the value from defaults; unknown keys are ignored.
func ReadFile(path string, defaults Settings) (Settings, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return defaults, fmt.Errorf("failed to read settings file %s: %w", path, err)
	}

	parsed, err := Parse(string(content), defaults)
	if err != nil {
		return defaults, fmt.Errorf("settings file %s: %w", path, err)
	}

	return parsed, nil
}

// Parse is ReadFile for settings content which is already in memory.
func Parse(content string, defaults Settings) (Settings, error) {
	values, err := godotenv.Unmarshal(strings.ReplaceAll(content, "$", dollarPlaceholder))
	if err != nil {
		return defaults, fmt.Errorf("failed to parse settings: %w", err)
	}

	for key, value := range values {
		values[key] = strings.ReplaceAll(value, dollarPlaceholder, "$")
	}

	return decode(values, defaults)
}

func decode(values map[string]string, defaults Settings) (Settings, error) {
	home, err := homedir.Dir()
	if err != nil {
		return defaults, fmt.Errorf("failed to resolve home directory: %w", err)
	}

	expanded := make(map[string]string, len(values))
	for key, value := range values {
		expanded[key] = expandHome(value, home)
	}

	out := defaults
	if err := mapstructure.Decode(expanded, &out); err != nil {
		return defaults, fmt.Errorf("failed to decode settings: %w", err)
	}

	return out, nil
}

// expandHome substitutes the home-directory token (and a leading ~) in the value. Any
// other variable reference is kept literally.
func expandHome(value string, home string) string {
	value = strings.ReplaceAll(value, homeToken, home)
	if expanded, err := homedir.Expand(value); err == nil {
		return expanded
	}

	return value
}
