// Package rules compiles the layered pattern sets that decide which
// workspace paths are indexed, and whether they belong to the permanently
// retained core set. Three matchers are layered, in priority order:
//
//  1. core patterns (match wins unconditionally, path is indexed as core)
//  2. static ignore patterns supplied at construction
//  3. rules composed from every ignore file found under the root,
//     scope-rewritten to the directory each file lives in
//
// All three use gitignore pattern syntax.
package rules

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	ignore "github.com/sabhiram/go-gitignore"
)

// DefaultIgnoreFileName is the per-directory ignore file scanned for
// composed rules when ignore-file scanning is enabled.
const DefaultIgnoreFileName = ".gitignore"

// Engine classifies root-relative paths. The core and static matchers are
// immutable after construction; the composed matcher is rebuilt from disk
// by Recompile and swapped wholesale, so readers never see a torn state.
type Engine struct {
	root           string
	ignoreFileName string // empty when ignore-file scanning is disabled

	core     *ignore.GitIgnore
	static   *ignore.GitIgnore
	composed atomic.Pointer[ignore.GitIgnore]
}

// NewEngine builds the core and static matchers. ignoreFileName selects
// the per-directory ignore file ("" disables ignore-file composition);
// the composed matcher is empty until Recompile is called.
//
// When ignore-file scanning is enabled the core set always additionally
// matches every ignore file itself, so the engine can keep discovering
// and reacting to ignore-file changes no matter what the rules say.
func NewEngine(root string, corePatterns, ignorePatterns []string, ignoreFileName string) *Engine {
	core := append([]string(nil), corePatterns...)
	if ignoreFileName != "" {
		core = append(core, "**/"+ignoreFileName)
	}
	return &Engine{
		root:           root,
		ignoreFileName: ignoreFileName,
		core:           ignore.CompileIgnoreLines(core...),
		static:         ignore.CompileIgnoreLines(ignorePatterns...),
	}
}

// IgnoreFileName returns the configured per-directory ignore file name,
// or "" when ignore-file scanning is disabled.
func (e *Engine) IgnoreFileName() string {
	return e.ignoreFileName
}

// Classify reports whether relPath should be indexed and whether it is a
// core path. Directories are tested both bare and with a trailing slash,
// since patterns may spell them either way. Priority is fixed:
// core > static ignore > composed ignore > indexed non-core.
func (e *Engine) Classify(relPath string, isDir bool) (shouldIndex, isCore bool) {
	paths := candidates(relPath, isDir)
	for _, p := range paths {
		if e.core.MatchesPath(p) {
			return true, true
		}
	}
	if e.Ignored(relPath, isDir) {
		return false, false
	}
	return true, false
}

// Ignored reports whether relPath matches the static or composed ignore
// layers. Core precedence is not applied here; callers that need it use
// Classify. This is the check used when rescanning the index after an
// ignore-rule change, where core nodes are exempt by construction.
func (e *Engine) Ignored(relPath string, isDir bool) bool {
	paths := candidates(relPath, isDir)
	for _, p := range paths {
		if e.static.MatchesPath(p) {
			return true
		}
	}
	if composed := e.composed.Load(); composed != nil {
		for _, p := range paths {
			if composed.MatchesPath(p) {
				return true
			}
		}
	}
	return false
}

func candidates(relPath string, isDir bool) []string {
	if isDir {
		return []string{relPath, relPath + "/"}
	}
	return []string{relPath}
}

// Recompile locates every ignore file under the root, scope-rewrites each
// file's rules to its directory, concatenates them (root file first, then
// discovery order) and swaps the composed matcher. A single unreadable
// file never fails the whole compilation.
func (e *Engine) Recompile() {
	if e.ignoreFileName == "" {
		e.composed.Store(nil)
		return
	}

	var lines []string

	// The root ignore file contributes its rules unmodified and first.
	rootFile := filepath.Join(e.root, e.ignoreFileName)
	lines = append(lines, readRules(rootFile)...)

	_ = filepath.WalkDir(e.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			slog.Debug("skipping unreadable entry during ignore-file scan",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil
		}
		if d.IsDir() || d.Name() != e.ignoreFileName || path == rootFile {
			return nil
		}
		rel, relErr := filepath.Rel(e.root, filepath.Dir(path))
		if relErr != nil {
			return nil
		}
		dir := filepath.ToSlash(rel)
		lines = append(lines, scopeRules(readRules(path), dir)...)
		return nil
	})

	e.composed.Store(ignore.CompileIgnoreLines(lines...))
}

// readRules reads the non-comment, non-blank lines of an ignore file.
// Unreadable files yield no rules.
func readRules(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	var rules []string
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimRight(s.Text(), "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rules = append(rules, line)
	}
	if err := s.Err(); err != nil {
		slog.Debug("partial read of ignore file",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
	return rules
}

// scopeRules anchors rules from an ignore file at dir so they only apply
// underneath it:
//
//	/pattern  -> /dir/pattern
//	!/pattern -> !/dir/pattern
//	!pattern  -> !dir/pattern
//	pattern   -> dir/pattern
func scopeRules(rules []string, dir string) []string {
	if dir == "" || dir == "." {
		return rules
	}
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		switch {
		case strings.HasPrefix(r, "/"):
			out = append(out, "/"+dir+r)
		case strings.HasPrefix(r, "!/"):
			out = append(out, "!/"+dir+r[1:])
		case strings.HasPrefix(r, "!"):
			out = append(out, "!"+dir+"/"+r[1:])
		default:
			out = append(out, dir+"/"+r)
		}
	}
	return out
}
