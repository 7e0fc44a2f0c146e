package complete

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/dhamidi/gce/catalog"
	"github.com/dhamidi/gce/groovy"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

// ErrBadRequest is the only error Complete returns.
var ErrBadRequest = errors.New("malformed completion request")

const defaultPackageCacheSize = 256

// Recorder receives one report per completion request.
type Recorder interface {
	RecordCompletion(ctx context.Context, kind string, candidates int, elapsed time.Duration)
	RecordFailure(ctx context.Context, reason string)
}

type nopRecorder struct{}

func (nopRecorder) RecordCompletion(context.Context, string, int, time.Duration) {}
func (nopRecorder) RecordFailure(context.Context, string)                        {}

// Engine answers completion requests against one catalog. It is safe for
// concurrent use; every request builds its own tree, scopes and
// script-local catalog.
type Engine struct {
	src        catalog.Source
	autoImport bool
	recorder   Recorder
	patterns   []Pattern
	cacheSize  int
	packages   *lru.Cache
}

type Option func(*Engine)

// WithAutoImport controls the Groovy default imports.
func WithAutoImport(enabled bool) Option {
	return func(e *Engine) {
		e.autoImport = enabled
	}
}

func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithPatterns replaces the recovery patterns.
func WithPatterns(patterns ...Pattern) Option {
	return func(e *Engine) {
		e.patterns = patterns
	}
}

// WithPackageCacheSize bounds the number of package listings kept between
// requests.
func WithPackageCacheSize(n int) Option {
	return func(e *Engine) {
		e.cacheSize = n
	}
}

func NewEngine(src catalog.Source, opts ...Option) (*Engine, error) {
	if src == nil {
		return nil, errors.New("new engine: nil catalog")
	}
	e := &Engine{
		src:        src,
		autoImport: true,
		recorder:   nopRecorder{},
		patterns:   DefaultPatterns,
		cacheSize:  defaultPackageCacheSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	cache, err := lru.New(e.cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "package cache")
	}
	e.packages = cache
	return e, nil
}

// Catalog returns the catalog the engine completes against.
func (e *Engine) Catalog() catalog.Source {
	return e.src
}

// Analyze parses and binds a script with the engine's catalog and options.
func (e *Engine) Analyze(name, text string) (*groovy.Unit, error) {
	return groovy.Analyze(name, text, e.src, groovy.WithAutoImport(e.autoImport))
}

// Complete returns the candidates for req. Failures inside the pipeline
// yield an empty list; only a request that does not address a position in
// its script is an error.
func (e *Engine) Complete(ctx context.Context, req Request) ([]Candidate, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	start := time.Now()

	rec, err := Repair(req, e.Analyze, e.patterns...)
	if err != nil {
		log.Debugf("%s: %s", req.Name, err)
		return e.fail(ctx, "unrecoverable")
	}
	target, err := Resolve(rec.Unit, req.Line, req.Ch, req.Sticky)
	if err != nil {
		log.Warningf("%s: %s", req.Name, err)
		return e.fail(ctx, "no-target")
	}
	cc, err := Classify(rec.Unit, target, rec.Hints)
	if err != nil {
		log.Debugf("%s: %s", req.Name, err)
		return e.fail(ctx, "no-context")
	}
	out := Candidates(rec.Unit, target, cc, e.packageTypes)
	if out == nil {
		out = []Candidate{}
	}
	e.recorder.RecordCompletion(ctx, cc.Kind.String(), len(out), time.Since(start))
	return out, nil
}

func (e *Engine) fail(ctx context.Context, reason string) ([]Candidate, error) {
	e.recorder.RecordFailure(ctx, reason)
	return []Candidate{}, nil
}

func (e *Engine) packageTypes(pkg string) []*catalog.TypeInfo {
	if v, ok := e.packages.Get(pkg); ok {
		return v.([]*catalog.TypeInfo)
	}
	types := TopLevelTypes(e.src.ResolvePackage(pkg))
	e.packages.Add(pkg, types)
	return types
}

func checkRequest(req Request) error {
	if req.Line < 0 || req.Ch < 0 {
		return errors.Wrapf(ErrBadRequest, "negative position %d:%d", req.Line, req.Ch)
	}
	lines := splitLines(req.Text)
	if req.Line >= len(lines) {
		return errors.Wrapf(ErrBadRequest, "line %d beyond end of script (%d lines)", req.Line, len(lines))
	}
	if n := utf8.RuneCountInString(lines[req.Line]); req.Ch > n {
		return errors.Wrapf(ErrBadRequest, "column %d beyond end of line %d (%d characters)", req.Ch, req.Line, n)
	}
	return nil
}
