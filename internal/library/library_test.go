package library_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hbomb79/mediaload/internal/event"
	"github.com/hbomb79/mediaload/internal/library"
	"github.com/hbomb79/mediaload/pkg/logger"
	"github.com/labstack/gommon/random"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/fs"
)

var defaultEventBus = event.New()

func init() {
	logger.SetMinLoggingLevel(logger.VERBOSE.Level())
}

func touch(t *testing.T, path string, modTime time.Time) {
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}

func Test_Recent_ListsNewestFirst(t *testing.T) {
	t.Parallel()
	dir := fs.NewDir(t, "library",
		fs.WithDir("videos", fs.WithDir("Uploader", fs.WithFile("old.mp4", "old"), fs.WithFile("new.mp4", "newer"))),
		fs.WithDir("audios", fs.WithDir("Uploader", fs.WithFile("song.mp3", random.String(255)), fs.WithFile(".song.mp3.part", "partial"))),
	)

	now := time.Now()
	touch(t, dir.Join("videos", "Uploader", "old.mp4"), now.Add(-time.Hour))
	touch(t, dir.Join("videos", "Uploader", "new.mp4"), now.Add(-time.Minute))
	touch(t, dir.Join("audios", "Uploader", "song.mp3"), now.Add(-30*time.Minute))

	lib := library.New(library.Config{}, dir.Path(), defaultEventBus)
	files, err := lib.Recent(library.DefaultListLimit)
	require.NoError(t, err)
	require.Len(t, files, 3, "hidden files must be excluded")

	assert.Equal(t, "new.mp4", files[0].Name)
	assert.Equal(t, "videos/Uploader/new.mp4", files[0].Path)
	assert.Equal(t, "audios/Uploader/song.mp3", files[1].Path)
	assert.Equal(t, "0.00 MB", files[1].Size)
	assert.Equal(t, int64(255), files[1].Bytes)
	assert.Equal(t, "videos/Uploader/old.mp4", files[2].Path)
	assert.InDelta(t, float64(now.Add(-time.Minute).Unix()), files[0].Time, 1)
}

func Test_Recent_RespectsLimit(t *testing.T) {
	t.Parallel()
	dir := fs.NewDir(t, "library")
	for i := 0; i < 60; i++ {
		require.NoError(t, os.WriteFile(dir.Join(random.String(12, random.Alphanumeric)+".mp4"), []byte("x"), 0o600))
	}

	lib := library.New(library.Config{}, dir.Path(), defaultEventBus)
	files, err := lib.Recent(library.DefaultListLimit)
	require.NoError(t, err)
	assert.Len(t, files, 50)

	all, err := lib.Recent(0)
	require.NoError(t, err)
	assert.Len(t, all, 60)
}

func Test_Recent_MissingRootIsEmpty(t *testing.T) {
	t.Parallel()
	lib := library.New(library.Config{}, filepath.Join(t.TempDir(), "does-not-exist"), defaultEventBus)
	files, err := lib.Recent(library.DefaultListLimit)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func Test_Resolve(t *testing.T) {
	t.Parallel()
	dir := fs.NewDir(t, "library", fs.WithDir("videos", fs.WithFile("clip.mp4", "clip")))
	lib := library.New(library.Config{}, dir.Path(), defaultEventBus)

	path, err := lib.Resolve("videos/clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, dir.Join("videos", "clip.mp4"), path)

	path, err = lib.Resolve("/videos/clip.mp4")
	require.NoError(t, err, "leading slashes are relative to the library root")
	assert.Equal(t, dir.Join("videos", "clip.mp4"), path)

	for _, escaping := range []string{"../secret", "videos/../../secret", "..", "."} {
		_, err := lib.Resolve(escaping)
		assert.ErrorIs(t, err, library.ErrOutsideLibrary, "path %q", escaping)
	}

	for _, missing := range []string{"", "videos/missing.mp4", "videos"} {
		_, err := lib.Resolve(missing)
		assert.ErrorIs(t, err, library.ErrFileNotFound, "path %q", missing)
	}
}

func Test_Resolve_RejectsSymlinkEscape(t *testing.T) {
	t.Parallel()
	outside := fs.NewDir(t, "outside", fs.WithFile("secret.txt", "secret"))
	dir := fs.NewDir(t, "library", fs.WithSymlink("link.txt", outside.Join("secret.txt")))
	lib := library.New(library.Config{}, dir.Path(), defaultEventBus)

	_, err := lib.Resolve("link.txt")
	assert.ErrorIs(t, err, library.ErrOutsideLibrary)
}

func Test_Delete(t *testing.T) {
	t.Parallel()
	dir := fs.NewDir(t, "library",
		fs.WithDir("videos",
			fs.WithDir("Solo", fs.WithFile("only.mp4", "x")),
			fs.WithDir("Many", fs.WithFile("a.mp4", "a"), fs.WithFile("b.mp4", "b")),
		),
	)
	bus := event.New()
	events := make(event.HandlerChannel, 8)
	bus.RegisterHandlerChannel(events, event.LibraryUpdateEvent)

	lib := library.New(library.Config{}, dir.Path(), bus)
	require.NoError(t, lib.Delete("videos/Solo/only.mp4"))
	assert.NoFileExists(t, dir.Join("videos", "Solo", "only.mp4"))
	assert.NoDirExists(t, dir.Join("videos", "Solo"), "empty uploader directories are pruned")
	assert.DirExists(t, dir.Join("videos"))

	require.NoError(t, lib.Delete("videos/Many/a.mp4"))
	assert.FileExists(t, dir.Join("videos", "Many", "b.mp4"))

	assert.ErrorIs(t, lib.Delete("videos/Many/a.mp4"), library.ErrFileNotFound)
	assert.ErrorIs(t, lib.Delete("../escape"), library.ErrOutsideLibrary)
	assert.Len(t, events, 2)
}

func Test_Run_WatcherRefreshesIndex(t *testing.T) {
	t.Parallel()
	dir := fs.NewDir(t, "library")
	bus := event.New()
	events := make(event.HandlerChannel, 8)
	bus.RegisterHandlerChannel(events, event.LibraryUpdateEvent)

	lib := library.New(library.Config{}, dir.Path(), bus)
	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, lib.Run(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})

	files, err := lib.Recent(library.DefaultListLimit)
	require.NoError(t, err)
	assert.Empty(t, files)

	require.NoError(t, os.MkdirAll(dir.Join("videos", "Uploader"), os.ModePerm))
	require.NoError(t, os.WriteFile(dir.Join("videos", "Uploader", "fresh.mp4"), []byte("fresh"), 0o600))

	assert.EventuallyWithT(t, func(c *assert.CollectT) {
		files, err := lib.Recent(library.DefaultListLimit)
		assert.NoError(c, err)
		assert.Len(c, files, 1)
	}, 5*time.Second, 50*time.Millisecond)

	select {
	case msg := <-events:
		assert.Equal(t, event.LibraryUpdateEvent, msg.Event)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for library update event")
	}
}
