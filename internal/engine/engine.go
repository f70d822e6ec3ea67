// Package engine is the search-and-replace core: it compiles queries,
// resolves scope roots, drives an external ripgrep process with candidate
// fallback, falls back to an in-process walker when the process cannot run,
// and applies security-checked replacements.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yourorg/seekd/internal/config"
	"github.com/yourorg/seekd/internal/logging"
	"github.com/yourorg/seekd/internal/mask"
	"github.com/yourorg/seekd/internal/query"
	"github.com/yourorg/seekd/internal/workspace"
)

// SearchRequest describes one search. Zero MaxResults means the configured
// default; SmartExcludes should normally be true (the RPC layer defaults it
// when the client omits the field).
type SearchRequest struct {
	Query         string        `json:"query"`
	Scope         Scope         `json:"scope"`
	Options       query.Options `json:"options"`
	DirectoryPath string        `json:"directory_path,omitempty"`
	ModulePath    string        `json:"module_path,omitempty"`
	FilePath      string        `json:"file_path,omitempty"`
	MaxResults    int           `json:"max_results,omitempty"`
	SmartExcludes bool          `json:"smart_excludes"`
}

// NewSearchRequest returns a request with the defaults a bare query gets:
// project scope, smart excludes on.
func NewSearchRequest(q string, opts query.Options) SearchRequest {
	return SearchRequest{
		Query:         q,
		Scope:         ScopeProject,
		Options:       opts,
		SmartExcludes: true,
	}
}

func (r *SearchRequest) normalize(cfg *config.Config) {
	if r.MaxResults <= 0 {
		r.MaxResults = cfg.MaxResults
		if r.MaxResults <= 0 {
			r.MaxResults = 10000
		}
	}
	if r.Scope == "" {
		r.Scope = ScopeProject
	}
}

// Engine owns the single active search slot and the replace API.
type Engine struct {
	cfg    *config.Config
	logger *logging.Logger
	ws     *workspace.Workspace
	ops    *OpLogger

	mu           sync.Mutex
	cancelActive context.CancelFunc
	activeDone   chan struct{}
}

func New(cfg *config.Config, ws *workspace.Workspace, logger *logging.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: logger,
		ws:     ws,
		ops:    NewOpLogger(500),
	}
}

// Ops exposes the in-memory operation log.
func (e *Engine) Ops() *OpLogger { return e.ops }

// Workspace returns the filesystem collaborator the engine searches.
func (e *Engine) Workspace() *workspace.Workspace { return e.ws }

// Search runs one search to completion. Input rejections (short query,
// invalid or unsafe pattern, bad mask) and unavailable roots degrade to an
// empty result set without error. Only one search is in flight engine-wide:
// starting a new one cancels and awaits teardown of the previous one.
func (e *Engine) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	req.normalize(e.cfg)

	rule, err := query.Compile(req.Query, req.Options)
	if err != nil {
		e.logger.Debug("query rejected", logging.String("query", req.Query), logging.Error(err))
		e.ops.Infof(OpSearch, req.Query, "query rejected: %v", err)
		return nil, nil
	}
	fileMask, err := mask.Parse(req.Options.FileMask)
	if err != nil {
		e.logger.Debug("file mask rejected", logging.String("mask", req.Options.FileMask), logging.Error(err))
		return nil, nil
	}
	roots := e.resolveRoots(req)
	if len(roots) == 0 {
		return nil, nil
	}

	sctx, finish := e.begin(ctx)
	defer finish()

	start := time.Now()
	results, rgErr := e.runRipgrep(sctx, rule, fileMask, req, roots)
	if rgErr != nil {
		if sctx.Err() != nil {
			return nil, sctx.Err()
		}
		e.logger.Warn("external search unavailable, using fallback walker",
			logging.String("query", req.Query), logging.Error(rgErr))
		e.ops.Warnf(OpSpawn, req.Query, "ripgrep failed: %v", rgErr)

		results, err = e.walkSearch(sctx, rule, fileMask, req, roots)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			return nil, fmt.Errorf("fallback search: %w", err)
		}
	}

	results = filterByRoots(results, roots)
	if len(results) > req.MaxResults {
		results = results[:req.MaxResults]
	}

	e.ops.LogWithCount(OpSearch, req.Query,
		fmt.Sprintf("search completed: %d results", len(results)),
		time.Since(start), len(results))
	e.logger.Info("search completed",
		logging.String("query", req.Query),
		logging.Int("results", len(results)),
		logging.Duration("duration", time.Since(start)),
	)
	return results, nil
}

// Cancel aborts the active search, if any. It does not wait for teardown;
// the next Search does.
func (e *Engine) Cancel() {
	e.mu.Lock()
	cancel := e.cancelActive
	e.mu.Unlock()
	if cancel != nil {
		cancel()
		e.ops.Infof(OpCancel, "", "active search cancelled")
	}
}

// begin claims the single active-search slot, cancelling and awaiting any
// previous occupant first. The returned finish func releases the slot.
func (e *Engine) begin(ctx context.Context) (context.Context, func()) {
	e.mu.Lock()
	for e.cancelActive != nil {
		cancel := e.cancelActive
		done := e.activeDone
		e.mu.Unlock()
		cancel()
		<-done
		e.mu.Lock()
	}

	sctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.cancelActive = cancel
	e.activeDone = done
	e.mu.Unlock()

	return sctx, func() {
		cancel()
		e.mu.Lock()
		if e.activeDone == done {
			e.cancelActive = nil
			e.activeDone = nil
		}
		e.mu.Unlock()
		close(done)
	}
}
