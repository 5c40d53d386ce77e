package videoserver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/time/rate"

	"github.com/anatolykoptev/go_bilisum/internal/engine/bilibili"
	"github.com/anatolykoptev/go_bilisum/internal/engine/history"
)

// Runner is the pipeline surface the tools call.
type Runner interface {
	Run(ctx context.Context, input string) (*bilibili.Result, error)
	Content(ctx context.Context, input string) (*bilibili.Result, error)
}

// HistoryLister lists recorded runs, newest first.
type HistoryLister interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// Deps carries the collaborators of the tools.
type Deps struct {
	Pipeline Runner
	History  HistoryLister // nil skips bilibili_history
	Limiter  *rate.Limiter // throttles bilibili_summary; nil = unlimited
}

type tools struct {
	Deps
}

// RegisterTools registers bilibili_summary, bilibili_content and, when a
// history store is configured, bilibili_history. Returns the number of tools.
func RegisterTools(server *mcp.Server, d Deps) int {
	t := &tools{Deps: d}
	registerSummary(server, t)
	registerContent(server, t)
	if d.History == nil {
		return 2
	}
	registerHistory(server, t)
	return 3
}

// missReason returns the user-facing reason of a pipeline miss.
func missReason(input string, err error) (string, bool) {
	var me *bilibili.MissError
	if !errors.As(err, &me) {
		return "", false
	}
	slog.Info("videoserver: miss",
		slog.String("input", input),
		slog.String("stage", me.Stage),
		slog.Any("error", me.Err))
	return me.Reason(), true
}
