package search

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"taskdash/internal/log"
	"taskdash/internal/model"
)

// textExtensions are treated as text without sniffing the content.
var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".py": true, ".js": true, ".ts": true,
	".tsx": true, ".json": true, ".yaml": true, ".yml": true, ".toml": true,
	".csv": true, ".log": true, ".html": true, ".css": true, ".sql": true,
	".go": true,
}

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	".git": true, ".venv": true, "node_modules": true, "__pycache__": true,
	".local": true,
}

const (
	// Filename matches rank above content matches.
	scoreFilename = 2.0
	scoreContent  = 1.0

	sniffBytes = 2048
)

// SearcherConfig is the configuration for the file searcher.
type SearcherConfig struct {
	// Root is the directory search is scoped to.
	Root string
	// MaxResults caps how many results a search returns.
	MaxResults int
	// MaxFileBytes caps how many bytes are scanned per file.
	MaxFileBytes int64
	// MaxFiles caps how many files a single walk visits.
	MaxFiles int
	Logger   log.Logger
}

func (c *SearcherConfig) defaults() error {
	if c.Root == "" {
		return fmt.Errorf("root is required")
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 200
	}
	if c.MaxFileBytes <= 0 {
		c.MaxFileBytes = 1024 * 1024
	}
	if c.MaxFiles <= 0 {
		c.MaxFiles = 5000
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "search.Searcher"})
	return nil
}

// Searcher walks a root directory matching files by name or content.
type Searcher struct {
	root         string
	maxResults   int
	maxFileBytes int64
	maxFiles     int
	logger       log.Logger
}

// NewSearcher creates a new file searcher.
func NewSearcher(cfg SearcherConfig) (*Searcher, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Searcher{
		root:         cfg.Root,
		maxResults:   cfg.MaxResults,
		maxFileBytes: cfg.MaxFileBytes,
		maxFiles:     cfg.MaxFiles,
		logger:       cfg.Logger,
	}, nil
}

// Root returns the directory the searcher is scoped to.
func (s *Searcher) Root() string { return s.root }

// Options tune a single search. The zero value is the default mode:
// case-insensitive substring matching.
type Options struct {
	// Regex treats the query as a regular expression instead of a plain
	// substring.
	Regex bool
	// CaseSensitive disables the default case folding.
	CaseSensitive bool
}

// newMatcher compiles the query once per search. An invalid regular
// expression fails with model.ErrNotValid.
func newMatcher(query string, opts Options) (func(string) bool, error) {
	if opts.Regex {
		expr := query
		if !opts.CaseSensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid regex %q: %v: %w", query, err, model.ErrNotValid)
		}
		return re.MatchString, nil
	}

	if opts.CaseSensitive {
		return func(s string) bool { return strings.Contains(s, query) }, nil
	}

	queryLower := strings.ToLower(query)
	return func(s string) bool { return strings.Contains(strings.ToLower(s), queryLower) }, nil
}

// Search returns files under the root whose name or content matches the
// query. Results are capped at MaxResults and ordered by walk order
// (lexical by path), so ties break lexically. Files that fail to read are
// skipped, the search returns partial results instead of aborting.
func (s *Searcher) Search(ctx context.Context, query string, opts Options) ([]model.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	match, err := newMatcher(query, opts)
	if err != nil {
		return nil, err
	}

	if err := s.checkRoot(); err != nil {
		return nil, err
	}

	var results []model.SearchResult
	visited := 0

	err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal.
			s.logger.Debugf("Skipping %s: %s", path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if path != s.root && skipDirs[d.Name()] {
				return fs.SkipDir
			}
			return nil
		}

		if len(results) >= s.maxResults || visited >= s.maxFiles {
			return fs.SkipAll
		}
		visited++

		if match(d.Name()) {
			results = append(results, model.SearchResult{
				Path:    path,
				Snippet: d.Name(),
				Score:   scoreFilename,
			})
			return nil
		}

		if hit, ok := s.matchContent(path, match); ok {
			results = append(results, hit)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not walk root: %w", err)
	}

	s.logger.Debugf("Search %q visited %d files, %d hits", query, visited, len(results))
	return results, nil
}

// Stats aggregates file counts and sizes under the root, keyed by extension.
func (s *Searcher) Stats(ctx context.Context) (*model.FileStats, error) {
	if err := s.checkRoot(); err != nil {
		return nil, err
	}

	stats := &model.FileStats{ByExtension: map[string]int{}}

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if path != s.root && skipDirs[d.Name()] {
				return fs.SkipDir
			}
			return nil
		}

		if stats.Count >= s.maxFiles {
			return fs.SkipAll
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext == "" {
			ext = "<none>"
		}
		stats.Count++
		stats.TotalBytes += info.Size()
		stats.ByExtension[ext]++

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not walk root: %w", err)
	}

	return stats, nil
}

func (s *Searcher) checkRoot() error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("search root %q is not readable: %w", s.root, model.ErrNotValid)
	}
	if !info.IsDir() {
		return fmt.Errorf("search root %q is not a directory: %w", s.root, model.ErrNotValid)
	}
	return nil
}

// matchContent scans a file line by line with the matcher, up to
// MaxFileBytes.
func (s *Searcher) matchContent(path string, match func(string) bool) (model.SearchResult, bool) {
	if !isProbablyText(path) {
		return model.SearchResult{}, false
	}

	f, err := os.Open(path)
	if err != nil {
		return model.SearchResult{}, false
	}
	defer f.Close()

	var read int64
	lineNo := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 512*1024)
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		read += int64(len(line)) + 1
		if match(line) {
			return model.SearchResult{
				Path:    path,
				Line:    lineNo,
				Snippet: strings.TrimSpace(line),
				Score:   scoreContent,
			}, true
		}
		if read > s.maxFileBytes {
			break
		}
	}

	return model.SearchResult{}, false
}

// isProbablyText sniffs a file head, treating many NUL bytes as binary.
func isProbablyText(path string) bool {
	if textExtensions[strings.ToLower(filepath.Ext(path))] {
		return true
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, sniffBytes)
	n, err := f.Read(buf)
	if n == 0 {
		// Empty files are text, read failures are not worth scanning.
		return err == nil || errors.Is(err, io.EOF)
	}

	nulls := bytes.Count(buf[:n], []byte{0})
	return float64(nulls)/float64(n) < 0.01
}
