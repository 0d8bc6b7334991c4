package heuristics

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"threadlens/internal/logging"
)

// PatternPack is the on-disk (yaml) form of one group's pattern set.
// Packs are versioned artifacts reviewed like code; the loader rejects a
// pack wholesale on any invalid regex rather than dropping entries
// silently.
type PatternPack struct {
	Group          string   `yaml:"group"`
	Mention        []string `yaml:"mention"`
	Slurs          []string `yaml:"slurs"`
	Violence       []string `yaml:"violence"`
	Dehumanization []string `yaml:"dehumanization"`
	Conspiracy     []string `yaml:"conspiracy"`
}

// Registry holds the compiled pattern sets per target group. Safe for
// concurrent readers with a background reloader.
type Registry struct {
	mu     sync.RWMutex
	groups map[string]*GroupPatterns
}

// NewRegistry returns a registry seeded with the built-in pattern sets.
func NewRegistry() *Registry {
	r := &Registry{groups: make(map[string]*GroupPatterns)}
	for _, p := range builtinPacks() {
		compiled, err := compilePack(p)
		if err != nil {
			// Built-ins are covered by tests; a failure here is a
			// programming error.
			panic(fmt.Sprintf("builtin pattern pack %q: %v", p.Group, err))
		}
		r.groups[p.Group] = compiled
	}
	return r
}

// Get returns the pattern set for a group, or nil when none is known.
func (r *Registry) Get(group string) *GroupPatterns {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.groups[strings.ToLower(group)]
}

// Groups lists the known target groups.
func (r *Registry) Groups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.groups))
	for g := range r.groups {
		out = append(out, g)
	}
	return out
}

// LoadDir loads every *.yaml pack in dir into the registry, replacing
// same-named groups. Invalid packs are skipped with a log entry; valid
// packs still load.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read pack dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := r.loadFile(path); err != nil {
			logging.Get(logging.CategoryHeuristics).Error("pattern pack %s: %v", path, err)
		}
	}
	return nil
}

func (r *Registry) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var pack PatternPack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if pack.Group == "" {
		return fmt.Errorf("pack missing group name")
	}
	compiled, err := compilePack(pack)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.groups[strings.ToLower(pack.Group)] = compiled
	r.mu.Unlock()
	logging.Heuristics("loaded pattern pack for group %q from %s", pack.Group, path)
	return nil
}

func compilePack(p PatternPack) (*GroupPatterns, error) {
	compile := func(tier string, exprs []string) ([]*regexp.Regexp, error) {
		out := make([]*regexp.Regexp, 0, len(exprs))
		for _, expr := range exprs {
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("%s pattern %q: %w", tier, expr, err)
			}
			out = append(out, re)
		}
		return out, nil
	}

	gp := &GroupPatterns{Group: strings.ToLower(p.Group)}
	var err error
	if gp.Mention, err = compile("mention", p.Mention); err != nil {
		return nil, err
	}
	if gp.Slurs, err = compile("slur", p.Slurs); err != nil {
		return nil, err
	}
	if gp.Violence, err = compile("violence", p.Violence); err != nil {
		return nil, err
	}
	if gp.Dehumanization, err = compile("dehumanization", p.Dehumanization); err != nil {
		return nil, err
	}
	if gp.Conspiracy, err = compile("conspiracy", p.Conspiracy); err != nil {
		return nil, err
	}
	return gp, nil
}

// builtinPacks returns the shipped pattern sets. Deliberately small:
// Stage A only needs to catch the unambiguous cases, everything subtle
// belongs to Stage B.
func builtinPacks() []PatternPack {
	return []PatternPack{
		{
			Group: "jewish",
			Mention: []string{
				`(?i)\bjew(s|ish|ry)?\b`,
				`(?i)\bjudaism\b`,
				`(?i)\bzionis(t|ts|m)\b`,
				`(?i)\bisraeli?s?\b`,
			},
			Slurs: []string{
				`(?i)\bk[i1]kes?\b`,
				`(?i)\bheebs?\b`,
				`(?i)\bzogs?\b`,
			},
			Violence: []string{
				`(?i)\b(kill|exterminate|eradicate|gas)\s+(all\s+)?(the\s+)?jew`,
				`(?i)\b(expel|deport|ban)\s+(all\s+)?(the\s+)?jew`,
			},
			Dehumanization: []string{
				`(?i)\bjew(s|ish)?\s+(are|is)\s+(vermin|parasites?|rats?|cockroach)`,
				`(?i)\b(vermin|parasites?|subhuman)\s+jew`,
			},
			Conspiracy: []string{
				`(?i)\b(globalist|rothschild|soros)s?\b`,
				`(?i)\b(control|own|run)s?\s+(the\s+)?(media|banks|world|government)`,
				`(?i)\bgreat\s+replacement\b`,
				`(?i)\bcabal\b`,
			},
		},
	}
}
