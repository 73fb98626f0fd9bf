// Package pathfind associates loaded program images with the filesystem
// paths they came from, so a companion symbol file can be located next to
// the image. Images are identified by their code checksum.
package pathfind

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"faulttrace/internal/amx"
)

// EnvSearchPaths names the environment variable holding extra search paths,
// separated by the OS path list separator.
const EnvSearchPaths = "FAULTTRACE_PATH"

// Finder resolves image checksums to file paths.
type Finder struct {
	mu          sync.Mutex
	searchPaths []string
	known       map[uint32]string
}

// NewFinder returns an empty finder.
func NewFinder() *Finder {
	return &Finder{known: make(map[uint32]string)}
}

// AddSearchPath registers a directory to scan for images.
func (f *Finder) AddSearchPath(dir string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchPaths = append(f.searchPaths, dir)
}

// AddSearchPathsFromEnv splits the search-path environment variable and
// registers every non-empty entry.
func (f *Finder) AddSearchPathsFromEnv() {
	raw := os.Getenv(EnvSearchPaths)
	if raw == "" {
		return
	}
	for _, dir := range strings.Split(raw, string(os.PathListSeparator)) {
		if dir != "" {
			f.AddSearchPath(dir)
		}
	}
}

// AddKnownFile pins an image checksum to a path. Hosts call this at load
// time, when the path that produced the machine is still known.
func (f *Finder) AddKnownFile(sum uint32, path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.known[sum] = path
}

// Find resolves the checksum to an image path, scanning the search paths if
// no load-time association exists. Successful scans are cached.
func (f *Finder) Find(sum uint32) (string, bool) {
	f.mu.Lock()
	if p, ok := f.known[sum]; ok {
		f.mu.Unlock()
		return p, true
	}
	dirs := append([]string(nil), f.searchPaths...)
	f.mu.Unlock()

	path, ok := scan(dirs, sum)
	if ok {
		f.AddKnownFile(sum, path)
	}
	return path, ok
}

// scan checks every candidate image under dirs for a matching checksum.
// Directories are scanned concurrently; the first match wins.
func scan(dirs []string, sum uint32) (string, bool) {
	var (
		mu    sync.Mutex
		found string
	)
	var g errgroup.Group
	for _, dir := range dirs {
		dir := dir
		g.Go(func() error {
			matches, err := filepath.Glob(filepath.Join(dir, "*"+amx.BundleExt))
			if err != nil {
				return nil //nolint:nilerr // unreadable dirs are skipped
			}
			for _, path := range matches {
				b, err := amx.ReadBundle(path)
				if err != nil {
					continue
				}
				if b.Sum() == sum {
					mu.Lock()
					if found == "" {
						found = path
					}
					mu.Unlock()
					return nil
				}
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers never return errors
	return found, found != ""
}
