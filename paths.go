package gateway

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PathProvider maps request paths into the server root and checks them
// against the readable and writable allow-lists.
//
// Entries are file names relative to the root ("index.html") or directory
// prefixes ending in "/" ("css/"). "*" matches everything.
type PathProvider struct {
	root     string
	readable *pathSet
	writable *pathSet
}

type pathSet struct {
	all   bool
	files map[string]struct{}
	dirs  map[string]struct{}
}

// NewPathProvider builds a provider. A nil readable list allows every file,
// a nil writable list allows none.
func NewPathProvider(root string, readable, writable []string) *PathProvider {
	p := &PathProvider{root: root, readable: newPathSet(readable), writable: newPathSet(writable)}
	if readable == nil {
		p.readable.all = true
	}
	return p
}

func newPathSet(entries []string) *pathSet {
	s := &pathSet{files: make(map[string]struct{}), dirs: make(map[string]struct{})}
	for _, entry := range entries {
		switch {
		case entry == "*":
			s.all = true
		case strings.HasSuffix(entry, "/"):
			dir := strings.Trim(filepath.ToSlash(filepath.Clean(entry)), "/")
			s.dirs[dir] = struct{}{}
		default:
			s.files["/"+strings.TrimPrefix(entry, "/")] = struct{}{}
		}
	}
	return s
}

func (s *pathSet) contains(reqPath string) bool {
	if s.all {
		return true
	}
	if _, ok := s.files[reqPath]; ok {
		return true
	}

	parts := strings.FieldsFunc(reqPath, func(r rune) bool { return r == '/' })
	for i := 1; i <= len(parts); i++ {
		if _, ok := s.dirs[strings.Join(parts[:i], "/")]; ok {
			return true
		}
	}
	return false
}

// Root is the server root directory.
func (p *PathProvider) Root() string {
	return p.root
}

// CanRead reports whether reqPath ("/css/main.css") may be served.
func (p *PathProvider) CanRead(reqPath string) bool {
	return !traverses(reqPath) && p.readable.contains(reqPath)
}

// CanWrite reports whether reqPath may be written by /api/save.
func (p *PathProvider) CanWrite(reqPath string) bool {
	return !traverses(reqPath) && p.writable.contains(reqPath)
}

// Resolve returns the file system path for reqPath under the root.
func (p *PathProvider) Resolve(reqPath string) (string, error) {
	if traverses(reqPath) {
		return "", fmt.Errorf("path %q escapes the server root", reqPath)
	}
	return filepath.Join(p.root, filepath.FromSlash(strings.TrimPrefix(reqPath, "/"))), nil
}

func traverses(reqPath string) bool {
	for _, part := range strings.Split(filepath.ToSlash(reqPath), "/") {
		if part == ".." {
			return true
		}
	}
	return false
}
