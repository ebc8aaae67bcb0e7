package rules

import (
	"log/slog"

	"github.com/solatis/shelfkeeper/internal/types"
)

// Engine compiles magic shelf rule trees into predicates.
// It holds no per-call state and is safe for concurrent use.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a rules engine that reports compilation fallbacks to logger.
// A nil logger falls back to slog.Default().
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger.With("component", "rules")}
}

// Compile turns a rule tree into an unscoped predicate. It never fails:
// leaves that cannot be compiled match everything.
func (e *Engine) Compile(g *types.GroupRule) Predicate {
	c := compiler{logger: e.logger}
	return c.compileGroup(g)
}

// CompileForUser compiles g and restricts it to userID's view of progress data.
func (e *Engine) CompileForUser(g *types.GroupRule, userID int64) Predicate {
	return Scope(e.Compile(g), userID)
}

// CompileFilter decodes a persisted filter document and compiles it for userID.
func (e *Engine) CompileFilter(filterJSON []byte, userID int64) (Predicate, error) {
	g, err := types.ParseGroupRule(filterJSON)
	if err != nil {
		return nil, err
	}
	return e.CompileForUser(g, userID), nil
}
