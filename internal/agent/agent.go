// Package agent implements the dispatch and reconciliation engine: it turns a
// chat message into model calls and pipeline operations and shapes the final
// reply. This is the only stateful control flow in the agent service; every
// request is handled independently with no shared mutable state.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/dvollmer/homescope/internal/chart"
	"github.com/dvollmer/homescope/internal/knowledge"
	"github.com/dvollmer/homescope/internal/llm"
	"github.com/dvollmer/homescope/internal/log"
	"github.com/dvollmer/homescope/internal/pipeline"
	"github.com/dvollmer/homescope/internal/toolcall"
)

// Fixed user-facing messages for empty aggregation results. Empty stats are a
// normal outcome, not an error.
const (
	MsgNoData        = "No data returned from the database."
	MsgNoDataFilters = "No data returned for the given filters."
)

// Reply is the outcome of a chat request: either plain text or a chart spec.
type Reply struct {
	Text  string
	Chart map[string]any
}

// Value returns the wire value for the "response" field.
func (r Reply) Value() any {
	if r.Chart != nil {
		return r.Chart
	}
	return r.Text
}

// Agent wires the model, the pipeline gateway, and the knowledge base.
type Agent struct {
	model   llm.Model
	gateway *pipeline.Client
	kb      *knowledge.Base
	logger  log.Logger
}

// New creates an Agent.
func New(model llm.Model, gateway *pipeline.Client, kb *knowledge.Base, logger log.Logger) *Agent {
	return &Agent{model: model, gateway: gateway, kb: kb, logger: logger}
}

// Respond handles one chat message. It never fails the transport: every
// internal failure, panics included, degrades to a textual reply so the
// calling UI always has something to render. An unreachable pipeline
// surfaces its instructional message; anything else is logged with a stack
// trace and surfaced as a generic "Error: ..." text.
func (a *Agent) Respond(ctx context.Context, message string) (out Reply) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("dispatch panicked", "error", r, "stack", string(debug.Stack()))
			out = Reply{Text: fmt.Sprintf("Error: %v", r)}
		}
	}()

	reply, err := a.respond(ctx, message)
	if err != nil {
		if errors.Is(err, pipeline.ErrUnreachable) {
			return Reply{Text: pipeline.ErrUnreachable.Error()}
		}
		a.logger.Error("dispatch failed", "error", err, "stack", string(debug.Stack()))
		return Reply{Text: fmt.Sprintf("Error: %v", err)}
	}
	return reply
}

func (a *Agent) respond(ctx context.Context, message string) (Reply, error) {
	// The knowledge-base summary is read fresh on every request so a
	// re-ingestion is picked up immediately.
	raw, err := a.model.Generate(ctx, systemPrompt(a.kb.Summary()), message)
	if err != nil {
		return Reply{}, fmt.Errorf("model call: %w", err)
	}

	calls := toolcall.Extract(raw)
	a.logger.Debug("tool calls extracted", "count", len(calls), "raw_len", len(raw))

	switch {
	case len(calls) == 0:
		// Conversational reply (greeting, refusal); pass it through verbatim.
		return Reply{Text: raw}, nil

	case len(calls) == 1:
		tc := calls[0]
		if tc.Tool == toolcall.ToolQuery {
			return a.runQuery(ctx, message, tc.Parameters)
		}
		return a.runStats(ctx, message, tc.Parameters, MsgNoData)

	default:
		return a.dispatchMulti(ctx, message, calls)
	}
}

// dispatchMulti handles a model response carrying several tool calls, e.g.
// "find cheap houses and plot their age distribution". Stats wins when
// present; filters from the first query call scope the stats call unless the
// stats call already declares a price filter.
func (a *Agent) dispatchMulti(ctx context.Context, message string, calls []toolcall.ToolCall) (Reply, error) {
	var queryCalls, statsCalls []toolcall.ToolCall
	for _, tc := range calls {
		switch tc.Tool {
		case toolcall.ToolQuery:
			queryCalls = append(queryCalls, tc)
		case toolcall.ToolStats:
			statsCalls = append(statsCalls, tc)
		}
	}

	if len(statsCalls) > 0 {
		params := statsCalls[0].Parameters
		if !params.HasPriceFilter() && len(queryCalls) > 0 {
			params = toolcall.Merge(params, toolcall.QueryFilters(queryCalls[0].Parameters))
		}
		return a.runStats(ctx, message, params, MsgNoDataFilters)
	}

	// Only query calls: run the first, ignore the rest.
	return a.runQuery(ctx, message, queryCalls[0].Parameters)
}

// runQuery fetches rows and asks the model for a natural-language summary.
// A zero-row result still goes through summarization; the model sees the
// empty payload and says so in prose.
func (a *Agent) runQuery(ctx context.Context, message string, params toolcall.Params) (Reply, error) {
	rs, err := a.gateway.Query(ctx, params)
	if err != nil {
		return Reply{}, err
	}

	rowsJSON, err := json.MarshalIndent(rs.Result, "", "  ")
	if err != nil {
		return Reply{}, fmt.Errorf("encoding rows for summary: %w", err)
	}

	summary, err := a.model.Generate(ctx, "", summaryPrompt(message, rs.Count, string(rowsJSON)))
	if err != nil {
		return Reply{}, fmt.Errorf("summary call: %w", err)
	}
	return Reply{Text: summary}, nil
}

// runStats fetches an aggregation and builds a chart spec. emptyMsg is the
// fixed reply for an empty result set.
func (a *Agent) runStats(ctx context.Context, message string, params toolcall.Params, emptyMsg string) (Reply, error) {
	rs, err := a.gateway.Stats(ctx, params)
	if err != nil {
		return Reply{}, err
	}
	if len(rs.Result) == 0 {
		return Reply{Text: emptyMsg}, nil
	}
	return Reply{Chart: chart.Build(rs.Result, message)}, nil
}
