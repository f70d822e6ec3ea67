package rpc

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/yourorg/seekd/internal/config"
	"github.com/yourorg/seekd/internal/engine"
	"github.com/yourorg/seekd/internal/query"
	"github.com/yourorg/seekd/internal/state"
	"github.com/yourorg/seekd/internal/version"
)

// searchParams mirrors engine.SearchRequest at the wire boundary.
// SmartExcludes is a pointer so an omitted field defaults to true.
type searchParams struct {
	Query         string        `json:"query"`
	Scope         engine.Scope  `json:"scope,omitempty"`
	Options       query.Options `json:"options"`
	DirectoryPath string        `json:"directory_path,omitempty"`
	ModulePath    string        `json:"module_path,omitempty"`
	FilePath      string        `json:"file_path,omitempty"`
	MaxResults    int           `json:"max_results,omitempty"`
	SmartExcludes *bool         `json:"smart_excludes,omitempty"`
}

func (p *searchParams) request() engine.SearchRequest {
	req := engine.SearchRequest{
		Query:         p.Query,
		Scope:         p.Scope,
		Options:       p.Options,
		DirectoryPath: p.DirectoryPath,
		ModulePath:    p.ModulePath,
		FilePath:      p.FilePath,
		MaxResults:    p.MaxResults,
		SmartExcludes: true,
	}
	if p.SmartExcludes != nil {
		req.SmartExcludes = *p.SmartExcludes
	}
	return req
}

// RegisterCore registers the daemon's method surface on the server.
func (s *Server) RegisterCore(cfg *config.Config, st *state.State, eng *engine.Engine) {
	type replaceOneParams struct {
		URI         string `json:"uri"`
		Line        int    `json:"line"`
		Character   int    `json:"character"`
		Length      int    `json:"length"`
		Replacement string `json:"replacement"`
	}
	type replaceAllParams struct {
		searchParams
		Replacement string `json:"replacement"`
	}
	type rootsParams struct {
		Roots []string `json:"roots"`
	}
	type documentParams struct {
		Path string `json:"path"`
		Text string `json:"text"`
	}
	type opLogsParams struct {
		After int64 `json:"after,omitempty"`
		Limit int   `json:"limit,omitempty"`
	}

	s.Register("Search", func(ctx context.Context, params json.RawMessage) (any, *Error) {
		var p searchParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &Error{Code: -32602, Message: "invalid params: " + err.Error()}
		}
		st.SetSearching()
		defer st.SetReady()
		results, err := eng.Search(ctx, p.request())
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, &Error{Code: -32003, Message: "search cancelled"}
			}
			return nil, &Error{Code: -32002, Message: err.Error()}
		}
		if results == nil {
			results = []engine.SearchResult{}
		}
		return map[string]any{"results": results, "count": len(results)}, nil
	})

	s.Register("Cancel", func(ctx context.Context, params json.RawMessage) (any, *Error) {
		eng.Cancel()
		return map[string]any{"status": "ok"}, nil
	})

	s.Register("ReplaceOne", func(ctx context.Context, params json.RawMessage) (any, *Error) {
		var p replaceOneParams
		if err := json.Unmarshal(params, &p); err != nil || p.URI == "" {
			return nil, &Error{Code: -32602, Message: "invalid params: uri required"}
		}
		if err := eng.ReplaceOne(ctx, p.URI, p.Line, p.Character, p.Length, p.Replacement); err != nil {
			var se *engine.SecurityError
			if errors.As(err, &se) {
				return nil, &Error{Code: -32004, Message: se.Error()}
			}
			return nil, &Error{Code: -32001, Message: err.Error()}
		}
		return map[string]any{"status": "ok"}, nil
	})

	s.Register("ReplaceAll", func(ctx context.Context, params json.RawMessage) (any, *Error) {
		var p replaceAllParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &Error{Code: -32602, Message: "invalid params: " + err.Error()}
		}
		st.SetSearching()
		defer st.SetReady()
		replaced, err := eng.ReplaceAll(ctx, p.request(), p.Replacement, nil)
		if err != nil {
			var se *engine.SecurityError
			if errors.As(err, &se) {
				return nil, &Error{Code: -32004, Message: se.Error()}
			}
			return nil, &Error{Code: -32001, Message: err.Error()}
		}
		return map[string]any{"replaced": replaced}, nil
	})

	s.Register("SetWorkspaceRoots", func(ctx context.Context, params json.RawMessage) (any, *Error) {
		var p rootsParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &Error{Code: -32602, Message: "invalid params: " + err.Error()}
		}
		if err := eng.Workspace().SetRoots(p.Roots); err != nil {
			return nil, &Error{Code: -32001, Message: err.Error()}
		}
		return map[string]any{"roots": eng.Workspace().Roots()}, nil
	})

	s.Register("OpenDocument", func(ctx context.Context, params json.RawMessage) (any, *Error) {
		var p documentParams
		if err := json.Unmarshal(params, &p); err != nil || p.Path == "" {
			return nil, &Error{Code: -32602, Message: "invalid params: path required"}
		}
		eng.Workspace().OpenDocument(p.Path, p.Text)
		return map[string]any{"status": "ok"}, nil
	})

	s.Register("CloseDocument", func(ctx context.Context, params json.RawMessage) (any, *Error) {
		var p documentParams
		if err := json.Unmarshal(params, &p); err != nil || p.Path == "" {
			return nil, &Error{Code: -32602, Message: "invalid params: path required"}
		}
		eng.Workspace().CloseDocument(p.Path)
		return map[string]any{"status": "ok"}, nil
	})

	s.Register("GetStatus", func(ctx context.Context, params json.RawMessage) (any, *Error) {
		return map[string]any{
			"status": string(st.Status()),
			"data": map[string]any{
				"http":    cfg.HTTPAddr,
				"listen":  cfg.Listen,
				"rg":      cfg.RipgrepPath,
				"max":     cfg.MaxResults,
				"workers": cfg.WalkerConcurrency,
				"roots":   eng.Workspace().Roots(),
				"open":    eng.Workspace().OpenDocuments(),
				"ver":     version.Version,
			},
		}, nil
	})

	s.Register("GetOpLogs", func(ctx context.Context, params json.RawMessage) (any, *Error) {
		var p opLogsParams
		if len(params) > 0 {
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, &Error{Code: -32602, Message: "invalid params: " + err.Error()}
			}
		}
		if p.After > 0 {
			return eng.Ops().Since(p.After), nil
		}
		limit := p.Limit
		if limit <= 0 {
			limit = 50
		}
		return eng.Ops().Recent(limit), nil
	})

	s.Register("ReloadConfig", func(ctx context.Context, params json.RawMessage) (any, *Error) {
		if err := cfg.Reload(); err != nil {
			return nil, &Error{Code: -32000, Message: "reload failed: " + err.Error()}
		}
		return map[string]any{
			"status":  "ok",
			"message": "config reloaded",
			"max":     cfg.MaxResults,
			"workers": cfg.WalkerConcurrency,
		}, nil
	})
}
