// Package library exposes the files MediaLoad has downloaded: a cached index of the
// download tree (kept fresh by a filesystem watcher), plus safe resolution and
// deletion of paths relative to the download root.
package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hbomb79/mediaload/internal/event"
	"github.com/hbomb79/mediaload/pkg/logger"
	"github.com/rjeczalik/notify"
)

var log = logger.Get("Library")

const (
	DefaultListLimit = 50
	settleDelay      = 500 * time.Millisecond
	bytesPerMegabyte = 1024 * 1024
)

var (
	ErrOutsideLibrary = errors.New("path is outside of the library")
	ErrFileNotFound   = errors.New("file not found")
)

type (
	Config struct {
		// How often the download tree is re-walked irrespective of the watcher. Zero
		// disables forced rescans.
		ForceSyncInterval time.Duration `yaml:"library_force_sync" env:"LIBRARY_FORCE_SYNC" env-default:"5m"`
	}

	// File is a single downloaded file. Path is relative to the download root
	// and always uses forward slashes.
	File struct {
		Name    string    `json:"name"`
		Path    string    `json:"path"`
		Size    string    `json:"size"`
		Time    float64   `json:"time"`
		Bytes   int64     `json:"-"`
		ModTime time.Time `json:"-"`
	}

	Library struct {
		sync.Mutex
		config   Config
		root     string
		eventBus event.EventDispatcher

		index    []File
		stale    bool
		watching bool
	}
)

func New(config Config, root string, eventBus event.EventDispatcher) *Library {
	return &Library{config: config, root: filepath.Clean(root), eventBus: eventBus, stale: true}
}

// Run watches the download root for changes, invalidating the index and
// dispatching a library update whenever the tree changes. Bursts of filesystem
// events (such as those produced by an in-progress download) are coalesced.
// To stop the service, cancel the context provided.
func (library *Library) Run(ctx context.Context) error {
	if err := os.MkdirAll(library.root, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create library root %s: %w", library.root, err)
	}

	fsNotifyChannel := make(chan notify.EventInfo, 64)
	if err := notify.Watch(filepath.Join(library.root, "..."), fsNotifyChannel, notify.All); err != nil {
		log.Emit(logger.WARNING, "Filesystem watcher unavailable for %s, library will be re-scanned on every request: %v\n", library.root, err)
	} else {
		defer notify.Stop(fsNotifyChannel)
		library.setWatching(true)
		defer library.setWatching(false)
	}

	var forceSync <-chan time.Time
	if library.config.ForceSyncInterval > 0 {
		ticker := time.NewTicker(library.config.ForceSyncInterval)
		defer ticker.Stop()
		forceSync = ticker.C
	}

	settle := time.NewTimer(settleDelay)
	settle.Stop()
	defer settle.Stop()
	pending := false

	for {
		select {
		case ev := <-fsNotifyChannel:
			log.Emit(logger.VERBOSE, "Filesystem event %s for %s\n", ev.Event(), ev.Path())
			library.invalidate()
			if !pending {
				pending = true
				settle.Reset(settleDelay)
			}
		case <-settle.C:
			pending = false
			library.eventBus.Dispatch(event.LibraryUpdateEvent, nil)
		case <-forceSync:
			library.invalidate()
		case <-ctx.Done():
			return nil
		}
	}
}

// Recent returns up to limit files from the library, most recently modified first.
// A non-positive limit returns every file.
func (library *Library) Recent(limit int) ([]File, error) {
	library.Lock()
	defer library.Unlock()

	if library.stale || !library.watching {
		index, err := scan(library.root)
		if err != nil {
			return nil, err
		}

		library.index = index
		library.stale = false
	}

	if limit <= 0 || limit > len(library.index) {
		limit = len(library.index)
	}

	out := make([]File, limit)
	copy(out, library.index[:limit])
	return out, nil
}

// Resolve converts a library-relative path in to an absolute path to a regular
// file inside of the download root. Paths which escape the root, or which do not
// refer to an existing regular file, are rejected.
func (library *Library) Resolve(relPath string) (string, error) {
	relPath = strings.TrimSpace(relPath)
	if relPath == "" {
		return "", fmt.Errorf("%w: empty path", ErrFileNotFound)
	}

	cleaned := filepath.Clean(filepath.FromSlash(strings.TrimLeft(relPath, "/")))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("%w: %s", ErrOutsideLibrary, relPath)
	}

	full := filepath.Join(library.root, cleaned)
	if !isWithin(library.root, full) {
		return "", fmt.Errorf("%w: %s", ErrOutsideLibrary, relPath)
	}

	// Symlinks inside the tree must not point outside of it either
	if resolved, err := filepath.EvalSymlinks(full); err == nil {
		rootResolved, rootErr := filepath.EvalSymlinks(library.root)
		if rootErr == nil && !isWithin(rootResolved, resolved) {
			return "", fmt.Errorf("%w: %s", ErrOutsideLibrary, relPath)
		}
	}

	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, relPath)
	}

	return full, nil
}

// Delete removes the library file at the relative path provided. Directories left
// empty by the deletion (e.g. an uploader's folder) are removed too, stopping at
// the download root.
func (library *Library) Delete(relPath string) error {
	full, err := library.Resolve(relPath)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil {
		return fmt.Errorf("failed to delete %s: %w", relPath, err)
	}

	log.Emit(logger.REMOVE, "Deleted library file %s\n", relPath)
	pruneEmptyParents(library.root, filepath.Dir(full))

	library.invalidate()
	library.eventBus.Dispatch(event.LibraryUpdateEvent, nil)
	return nil
}

func (library *Library) invalidate() {
	library.Lock()
	defer library.Unlock()
	library.stale = true
}

func (library *Library) setWatching(watching bool) {
	library.Lock()
	defer library.Unlock()
	library.watching = watching
	library.stale = true
}

// scan walks the download tree and builds the index, newest first. Hidden files
// (including partial downloads yt-dlp may hide) are skipped. A missing root
// is treated as an empty library.
func scan(root string) ([]File, error) {
	files := make([]File, 0)
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}

		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		files = append(files, File{
			Name:    entry.Name(),
			Path:    filepath.ToSlash(rel),
			Size:    formatSize(info.Size()),
			Time:    float64(info.ModTime().UnixNano()) / float64(time.Second),
			Bytes:   info.Size(),
			ModTime: info.ModTime(),
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk library %s: %w", root, err)
	}

	sort.SliceStable(files, func(i, j int) bool { return files[i].ModTime.After(files[j].ModTime) })
	return files, nil
}

func formatSize(bytes int64) string {
	return fmt.Sprintf("%.2f MB", float64(bytes)/bytesPerMegabyte)
}

func isWithin(root string, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func pruneEmptyParents(root string, dir string) {
	for isWithin(root, dir) && filepath.Clean(dir) != filepath.Clean(root) {
		if err := os.Remove(dir); err != nil {
			return
		}

		dir = filepath.Dir(dir)
	}
}
