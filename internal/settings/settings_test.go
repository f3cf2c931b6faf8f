package settings_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hbomb79/mediaload/internal/settings"
	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/fs"
)

const sampleSettings = `# MediaLoad configuration
DOWNLOAD_DIR='$HOME/MediaLoad'
DEFAULT_VIDEO_QUALITY="720"
DEFAULT_VIDEO_FORMAT=mkv

# Unknown keys are ignored
INSTALLER_VERSION=1.2.0
`

func defaultSettings(t *testing.T) settings.Settings {
	defaults, err := settings.Defaults()
	require.NoError(t, err)
	return defaults
}

func Test_Defaults(t *testing.T) {
	t.Parallel()
	home, err := homedir.Dir()
	require.NoError(t, err)

	defaults := defaultSettings(t)
	assert.Equal(t, filepath.Join(home, ".mediaload", "downloads"), defaults.DownloadDir)
	assert.Equal(t, "best", defaults.DefaultVideoQuality)
	assert.Equal(t, "mp4", defaults.DefaultVideoFormat)
	assert.Equal(t, "mp3", defaults.DefaultAudioFormat)
	assert.Equal(t, "cyan", defaults.ThemeColor)

	path, err := settings.DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".mediaload", "config", "settings.conf"), path)
}

func Test_Parse(t *testing.T) {
	t.Parallel()
	home, err := homedir.Dir()
	require.NoError(t, err)

	parsed, err := settings.Parse(sampleSettings, defaultSettings(t))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "MediaLoad"), parsed.DownloadDir, "$HOME must be expanded even inside single quotes")
	assert.Equal(t, "720", parsed.DefaultVideoQuality)
	assert.Equal(t, "mkv", parsed.DefaultVideoFormat)
	assert.Equal(t, "mp3", parsed.DefaultAudioFormat, "absent keys keep their default")
	assert.Equal(t, "cyan", parsed.ThemeColor)
}

func Test_Parse_TildePrefix(t *testing.T) {
	t.Parallel()
	home, err := homedir.Dir()
	require.NoError(t, err)

	parsed, err := settings.Parse("DOWNLOAD_DIR=~/Downloads/media\n", defaultSettings(t))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "Downloads", "media"), parsed.DownloadDir)
}

func Test_Parse_OnlyHomeIsExpanded(t *testing.T) {
	t.Setenv("MEDIALOAD_SUBDIR", "injected")
	home, err := homedir.Dir()
	require.NoError(t, err)

	content := "DOWNLOAD_DIR=\"$HOME/$MEDIALOAD_SUBDIR\"\n" +
		"DEFAULT_VIDEO_FORMAT=${MEDIALOAD_SUBDIR}\n" +
		"THEME_COLOR='$HOME'\n"
	parsed, err := settings.Parse(content, defaultSettings(t))
	require.NoError(t, err)

	assert.Equal(t, home+"/$MEDIALOAD_SUBDIR", parsed.DownloadDir)
	assert.Equal(t, "${MEDIALOAD_SUBDIR}", parsed.DefaultVideoFormat)
	assert.Equal(t, home, parsed.ThemeColor)
}

func Test_Store_MissingFileUsesDefaults(t *testing.T) {
	t.Parallel()
	dir := fs.NewDir(t, "settings")
	defaults := defaultSettings(t)

	store := settings.NewStore(dir.Join("config", "settings.conf"), defaults)
	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, defaults, loaded)
	assert.Equal(t, defaults, store.Current())
}

func Test_Store_ReloadsChangedFile(t *testing.T) {
	t.Parallel()
	dir := fs.NewDir(t, "settings",
		fs.WithDir("config", fs.WithFile("settings.conf", "DEFAULT_AUDIO_FORMAT=opus\n")),
	)
	path := dir.Join("config", "settings.conf")

	store := settings.NewStore(path, defaultSettings(t))
	assert.Equal(t, "opus", store.Current().DefaultAudioFormat)

	require.NoError(t, os.WriteFile(path, []byte("DEFAULT_AUDIO_FORMAT=flac\nTHEME_COLOR=magenta\n"), 0o600))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	current := store.Current()
	assert.Equal(t, "flac", current.DefaultAudioFormat)
	assert.Equal(t, "magenta", current.ThemeColor)
}

func Test_Store_KeepsPreviousSettingsOnParseFailure(t *testing.T) {
	t.Parallel()
	dir := fs.NewDir(t, "settings", fs.WithFile("settings.conf", "DEFAULT_VIDEO_QUALITY=1080\n"))
	path := dir.Join("settings.conf")

	store := settings.NewStore(path, defaultSettings(t))
	assert.Equal(t, "1080", store.Current().DefaultVideoQuality)

	require.NoError(t, os.WriteFile(path, []byte("DEFAULT_VIDEO_QUALITY='unterminated\n"), 0o600))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	_, err := store.Load()
	assert.Error(t, err)
	assert.Equal(t, "1080", store.Current().DefaultVideoQuality)
}
