// Package scan turns a command-line path into the ordered list of images the
// viewer walks through.
package scan

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gobwas/glob"

	"minimg/internal/config"
	"minimg/internal/decode"
	serr "minimg/internal/errors"
	"minimg/internal/log"
)

// Entry is one discovered image
type Entry struct {
	Path    string
	Size    int64
	ModTime time.Time
	// MIME is only filled when content sniffing ran
	MIME string
}

// Name returns the base name of the file
func (e Entry) Name() string {
	return filepath.Base(e.Path)
}

// Sort orders
const (
	SortName  = "name"
	SortMTime = "mtime"
	SortSize  = "size"
)

// Options controls discovery
type Options struct {
	Recursive bool
	Hidden    bool
	Sniff     bool
	Include   []string
	Exclude   []string
	Sort      string
}

// OptionsFrom maps the scan section of the config file
func OptionsFrom(s config.ScanSettings) Options {
	return Options{
		Recursive: s.Recursive,
		Hidden:    s.Hidden,
		Sniff:     s.Sniff,
		Include:   s.Include,
		Exclude:   s.Exclude,
		Sort:      s.Sort,
	}
}

// Result is the discovered path list and the index to open first. Root is
// empty when several paths were scanned.
type Result struct {
	Root    string
	Roots   []string
	Entries []Entry
	Start   int
}

// Paths returns the entry paths in order
func (r *Result) Paths() []string {
	paths := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		paths[i] = e.Path
	}
	return paths
}

// TotalSize sums the file sizes
func (r *Result) TotalSize() int64 {
	var total int64
	for _, e := range r.Entries {
		total += e.Size
	}
	return total
}

// Paths discovers images under root. A directory is listed (recursively if
// asked); a file opens its directory with the file focused, even when the
// filters would have dropped it. An empty result is a NoImages FileError.
func Paths(root string, opts Options) (*Result, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, serr.NewFileError("invalid path", root, serr.InvalidPath, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, serr.NewFileError("path does not exist", root, serr.FileNotFound, err)
		}
		return nil, serr.NewFileError("cannot access path", root, serr.FileAccessDenied, err)
	}

	m, err := newMatcher(opts)
	if err != nil {
		return nil, err
	}

	dir, focus := abs, ""
	if !info.IsDir() {
		dir, focus = filepath.Dir(abs), abs
	}
	logger := log.LogWithFields(log.F("root", dir), log.F("recursive", opts.Recursive))

	var entries []Entry
	seenFocus := false
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			logger.With(log.F("path", path)).WithError(err).Warn("Skipping unreadable entry")
			return nil
		}
		if d.IsDir() {
			if path == dir {
				return nil
			}
			if !opts.Recursive || (!opts.Hidden && isHidden(d.Name())) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		isFocus := path == focus
		if !isFocus {
			if !opts.Hidden && isHidden(d.Name()) {
				return nil
			}
			rel, _ := filepath.Rel(dir, path)
			if !m.match(filepath.ToSlash(rel)) {
				return nil
			}
		}

		entry, ok := probeEntry(path, d, opts.Sniff, isFocus)
		if !ok {
			return nil
		}
		if isFocus {
			seenFocus = true
		}
		entries = append(entries, entry)
		return nil
	})
	if walkErr != nil {
		return nil, serr.NewFileError("failed to read directory", dir, serr.FileAccessDenied, walkErr)
	}

	if focus != "" && !seenFocus {
		// the focused file is always shown, whatever it is
		entry, err := Probe(focus)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return nil, serr.NewFileError("no images found", root, serr.NoImages, nil)
	}

	sortEntries(entries, opts.Sort)

	res := &Result{Root: dir, Roots: []string{dir}, Entries: entries}
	for i, e := range entries {
		if e.Path == focus {
			res.Start = i
			break
		}
	}
	logger.With(log.F("images", len(entries)), log.F("start", res.Start)).Debug("Scan complete")
	return res, nil
}

// All builds one list from several paths, in argument order. A single path
// behaves like Paths. With more than one, a file contributes only itself, a
// directory its listing, and a path seen twice keeps its first position.
// The start index is the first file argument, or 0. Directories without
// images are skipped; the combined list must not be empty.
func All(roots []string, opts Options) (*Result, error) {
	switch len(roots) {
	case 0:
		return Paths(".", opts)
	case 1:
		return Paths(roots[0], opts)
	}

	res := &Result{}
	seen := make(map[string]int)
	add := func(e Entry) int {
		if i, ok := seen[e.Path]; ok {
			return i
		}
		seen[e.Path] = len(res.Entries)
		res.Entries = append(res.Entries, e)
		return len(res.Entries) - 1
	}

	startSet := false
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, serr.NewFileError("invalid path", root, serr.InvalidPath, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, serr.NewFileError("path does not exist", root, serr.FileNotFound, err)
			}
			return nil, serr.NewFileError("cannot access path", root, serr.FileAccessDenied, err)
		}
		res.Roots = append(res.Roots, abs)

		if !info.IsDir() {
			entry, err := Probe(abs)
			if err != nil {
				return nil, err
			}
			idx := add(entry)
			if !startSet {
				res.Start, startSet = idx, true
			}
			continue
		}

		sub, err := Paths(abs, opts)
		if serr.IsNoImages(err) {
			log.LogWithFields(log.F("root", abs)).Warn("No images in directory")
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, e := range sub.Entries {
			add(e)
		}
	}

	if len(res.Entries) == 0 {
		return nil, serr.NewFileError("no images found", strings.Join(roots, ", "), serr.NoImages, nil)
	}
	return res, nil
}

// Probe stats path and sniffs its content type
func Probe(path string) (Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, serr.NewFileError("failed to stat file", path, serr.FileNotFound, err)
		}
		return Entry{}, serr.NewFileError("failed to stat file", path, serr.FileAccessDenied, err)
	}
	if info.IsDir() {
		return Entry{}, serr.NewFileError("not a file", path, serr.InvalidPath, nil)
	}
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return Entry{}, serr.NewFileError("failed to read file", path, serr.FileAccessDenied, err)
	}
	return Entry{Path: path, Size: info.Size(), ModTime: info.ModTime(), MIME: mime.String()}, nil
}

// probeEntry decides whether the file is an image and builds its entry
func probeEntry(path string, d fs.DirEntry, sniff, force bool) (Entry, bool) {
	if !sniff && !force && !decode.HasImageExtension(path) {
		return Entry{}, false
	}
	info, err := d.Info()
	if err != nil {
		return Entry{}, false
	}
	entry := Entry{Path: path, Size: info.Size(), ModTime: info.ModTime()}
	if sniff {
		mime, err := mimetype.DetectFile(path)
		if err != nil {
			return Entry{}, false
		}
		entry.MIME = mime.String()
		if !force && !decode.IsSupportedMIME(entry.MIME) {
			return Entry{}, false
		}
	}
	return entry, true
}

func sortEntries(entries []Entry, order string) {
	byName := func(a, b Entry) bool {
		la, lb := strings.ToLower(a.Path), strings.ToLower(b.Path)
		if la != lb {
			return la < lb
		}
		return a.Path < b.Path
	}

	var less func(a, b Entry) bool
	switch order {
	case SortMTime:
		less = func(a, b Entry) bool {
			if !a.ModTime.Equal(b.ModTime) {
				return a.ModTime.Before(b.ModTime)
			}
			return byName(a, b)
		}
	case SortSize:
		less = func(a, b Entry) bool {
			if a.Size != b.Size {
				return a.Size < b.Size
			}
			return byName(a, b)
		}
	default:
		less = byName
	}
	sort.SliceStable(entries, func(i, j int) bool { return less(entries[i], entries[j]) })
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// matcher applies include/exclude globs to slash-separated relative paths.
// A pattern without a slash is matched against the base name only.
type matcher struct {
	include []compiled
	exclude []compiled
}

type compiled struct {
	g        glob.Glob
	fullPath bool
}

func newMatcher(opts Options) (*matcher, error) {
	m := &matcher{}
	var err error
	if m.include, err = compileAll(opts.Include); err != nil {
		return nil, err
	}
	if m.exclude, err = compileAll(opts.Exclude); err != nil {
		return nil, err
	}
	return m, nil
}

func compileAll(patterns []string) ([]compiled, error) {
	out := make([]compiled, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, serr.NewConfigError("invalid glob pattern "+p, "scan", serr.InvalidConfig, err)
		}
		out = append(out, compiled{g: g, fullPath: strings.Contains(p, "/")})
	}
	return out, nil
}

func (c compiled) match(rel string) bool {
	if c.fullPath {
		return c.g.Match(rel)
	}
	return c.g.Match(pathBase(rel))
}

func (m *matcher) match(rel string) bool {
	for _, c := range m.exclude {
		if c.match(rel) {
			return false
		}
	}
	if len(m.include) == 0 {
		return true
	}
	for _, c := range m.include {
		if c.match(rel) {
			return true
		}
	}
	return false
}

func pathBase(rel string) string {
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		return rel[i+1:]
	}
	return rel
}
