package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"

	"github.com/waffles-copilot/server/internal/copilot/model"
	"github.com/waffles-copilot/server/internal/copilot/parsers"
	"github.com/waffles-copilot/server/internal/copilot/prompts"
	"github.com/waffles-copilot/server/internal/copilot/registry"
	"github.com/waffles-copilot/server/internal/copilot/responder"
	logx "github.com/waffles-copilot/server/pkg/logger"
)

const (
	actStateRouter         State = "router"
	actStateAPIType        State = "api_type"
	actStateGeneratePrompt State = "generate_prompt"
	actStateDBQuery        State = "db_query"
	actStateFallback       State = "fallback"
	actStateFinalize       State = "finalize"
)

// FallbackAnswer is the canned reply used when a run produced nothing to
// summarize and no state set an output.
const FallbackAnswer = "~ I'm not sure how to help with that."

// scoreThreshold is the minimum routing score for an action to be selected;
// a single name-token match alone clears it.
const scoreThreshold = 2

// maxSelectedActions caps how many scored actions a single run expands into
// sub-queries.
const maxSelectedActions = 2

// apiKeywords short-circuit routing to the API path regardless of scores.
var apiKeywords = []string{"create", "send", "email", "schedule"}

// ActionAgent is the central orchestrator: it scores a query against the
// registered actions, classifies it, drives the tabular sub-agent where
// needed, and synthesizes one final answer.
type ActionAgent struct {
	routerModel einomodel.BaseChatModel
	responder   *responder.Responder
	actions     *registry.ActionRegistry
	db          *DBAgent
}

func NewActionAgent(routerModel einomodel.BaseChatModel, rsp *responder.Responder, actions *registry.ActionRegistry, db *DBAgent) *ActionAgent {
	return &ActionAgent{
		routerModel: routerModel,
		responder:   rsp,
		actions:     actions,
		db:          db,
	}
}

// RunResult is the full outcome of one agent run.
type RunResult struct {
	Query               string         `json:"query"`
	RoutingTag          string         `json:"routing_tag"`
	GeneratedPrompts    []string       `json:"generated_prompts"`
	QueryOutputs        []model.Answer `json:"query_outputs"`
	Output              model.Answer   `json:"output"`
	FollowUpQuestions   []string       `json:"follow_up_questions,omitempty"`
	TangentialQuestions []string       `json:"tangential_questions,omitempty"`

	selected  []model.ActionDefinition
	finalized bool
}

// Route classifies a query without executing anything. Scoring: +2 if any
// name token of an action occurs in the query, +1 per description token,
// +2 per declared input name; actions scoring below the threshold are
// dropped and at most the top two are kept. Any query containing one of the
// apiKeywords is classified API-shaped regardless of scores.
func (a *ActionAgent) Route(query string) model.RoutingDecision {
	actions := a.actions.List()
	selected := selectActions(query, actions)

	if containsAPIKeyword(query) {
		return model.RoutingDecision{Kind: model.RouteAPICall, Selected: selected}
	}
	if len(selected) > 0 {
		return model.RoutingDecision{Kind: model.RouteDataQuery, Selected: selected}
	}
	if len(actions) == 0 {
		return model.RoutingDecision{Kind: model.RouteNoMatch}
	}
	return model.RoutingDecision{Kind: model.RouteFallback}
}

// Run executes ROUTER through the terminal state, then re-invokes the
// finalize step; finalize only reads already-populated fields, so the second
// invocation is a no-op when the machine already passed through it.
func (a *ActionAgent) Run(ctx context.Context, query string) (*RunResult, error) {
	run := &RunResult{Query: query}
	steps := map[State]stepFn{
		actStateRouter:         func(ctx context.Context) (State, error) { return a.route(ctx, run) },
		actStateAPIType:        func(ctx context.Context) (State, error) { return a.apiType(ctx, run) },
		actStateGeneratePrompt: func(ctx context.Context) (State, error) { return a.generatePrompts(ctx, run) },
		actStateDBQuery:        func(ctx context.Context) (State, error) { return a.queryData(ctx, run) },
		actStateFallback:       func(ctx context.Context) (State, error) { return a.fallback(ctx, run) },
		actStateFinalize:       func(ctx context.Context) (State, error) { return a.finalize(ctx, run) },
	}
	if err := drive(ctx, "action", steps, actStateRouter); err != nil {
		return nil, err
	}
	if _, err := a.finalize(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (a *ActionAgent) route(ctx context.Context, run *RunResult) (State, error) {
	decision := a.Route(run.Query)
	run.RoutingTag = string(decision.Kind)
	run.selected = decision.Selected
	logx.Debug().Str("tag", run.RoutingTag).Int("selected", len(run.selected)).Msg("routed query")

	switch decision.Kind {
	case model.RouteAPICall:
		return actStateAPIType, nil
	case model.RouteDataQuery:
		return actStateGeneratePrompt, nil
	case model.RouteNoMatch:
		// nothing registered to match against; let the tabular agent's
		// own degradation policy decide between data and conversation
		return actStateDBQuery, nil
	default:
		return actStateFallback, nil
	}
}

// apiType picks the concrete action for an API-shaped query, extracts its
// input values from the query, and emits a structured payload for the
// dispatch step. Execution happens separately, after user confirmation.
func (a *ActionAgent) apiType(ctx context.Context, run *RunResult) (State, error) {
	actions := a.actions.List()
	if len(actions) == 0 {
		return actStateDBQuery, nil
	}

	tag, err := a.routeAPIAction(ctx, actions, run.Query)
	if err != nil {
		return "", err
	}
	if strings.EqualFold(strings.TrimSpace(tag), parsers.NASentinel) {
		return actStateDBQuery, nil
	}

	action, ok := matchAction(actions, run.selected, tag)
	if !ok {
		return "", fmt.Errorf("no action definition matches routing tag %q", tag)
	}

	msgs, err := prompts.RenderInputExtraction(ctx, run.Query, action)
	if err != nil {
		return "", err
	}
	out, err := a.routerModel.Generate(ctx, msgs)
	if err != nil {
		return "", err
	}
	inputs, err := parsers.ParseStringMap(out.Content)
	if err != nil {
		return "", fmt.Errorf("extract inputs for %q: %w", action.ActionName, err)
	}

	run.Output = model.StructuredAnswer(map[string]any{
		"action_name":      action.ActionName,
		"action_desc":      action.ActionDescription,
		"action_type":      string(model.ActionAPICall),
		"api_service":      action.APIService,
		"extracted_inputs": inputs,
	})
	return actStateFinalize, nil
}

// routeAPIAction asks the routing model which registered action the query
// refers to; the raw completion is the routing tag.
func (a *ActionAgent) routeAPIAction(ctx context.Context, actions []model.ActionDefinition, query string) (string, error) {
	msgs, err := prompts.RenderActionRouter(ctx, actions, query)
	if err != nil {
		return "", err
	}
	out, err := a.routerModel.Generate(ctx, msgs)
	if err != nil {
		return "", err
	}
	return out.Content, nil
}

// generatePrompts synthesizes one tabular sub-query per selected action,
// preserving selection order.
func (a *ActionAgent) generatePrompts(ctx context.Context, run *RunResult) (State, error) {
	for _, action := range run.selected {
		msgs, err := prompts.RenderActionPrompt(ctx, action, run.Query)
		if err != nil {
			return "", err
		}
		out, err := a.routerModel.Generate(ctx, msgs)
		if err != nil {
			return "", err
		}
		run.GeneratedPrompts = append(run.GeneratedPrompts, strings.TrimSpace(out.Content))
	}
	return actStateDBQuery, nil
}

// queryData runs the tabular sub-agent once per synthesized prompt, or once
// on the original query when routing never generated any.
func (a *ActionAgent) queryData(ctx context.Context, run *RunResult) (State, error) {
	queries := run.GeneratedPrompts
	if len(queries) == 0 {
		queries = []string{run.Query}
	}
	for _, q := range queries {
		answer, err := a.db.Run(ctx, q)
		if err != nil {
			return "", err
		}
		run.QueryOutputs = append(run.QueryOutputs, answer)
	}
	return actStateFinalize, nil
}

// fallback answers conversationally, with no action matching at all.
func (a *ActionAgent) fallback(ctx context.Context, run *RunResult) (State, error) {
	answer, followUps, tangents, err := a.responder.ProcessMessage(ctx, run.Query, nil)
	if err != nil {
		return "", err
	}
	run.Output = model.TextAnswer(answer)
	run.FollowUpQuestions = followUps
	run.TangentialQuestions = tangents
	return actStateFinalize, nil
}

// finalize synthesizes the final answer from the collected query outputs.
// With no outputs it keeps whatever output is already set, or the canned
// fallback string; outputs that all coerce to nothing are a capability bug
// and abort the run.
func (a *ActionAgent) finalize(ctx context.Context, run *RunResult) (State, error) {
	if run.finalized {
		return StateDone, nil
	}

	if len(run.QueryOutputs) == 0 {
		if run.Output.IsZero() {
			run.Output = model.TextAnswer(FallbackAnswer)
		}
		run.finalized = true
		return StateDone, nil
	}

	parts := make([]string, 0, len(run.QueryOutputs))
	for _, out := range run.QueryOutputs {
		if out.IsZero() {
			logx.Warn().Msg("dropping empty tabular output before summarization")
			continue
		}
		parts = append(parts, out.String())
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("all %d tabular outputs were uncoercible", len(run.QueryOutputs))
	}

	summary, err := a.responder.Summarize(ctx, strings.Join(parts, "\n"))
	if err != nil {
		return "", err
	}
	run.Output = model.TextAnswer(summary)
	run.finalized = true
	return StateDone, nil
}

func selectActions(query string, actions []model.ActionDefinition) []model.ActionDefinition {
	type scored struct {
		action model.ActionDefinition
		score  int
	}
	lowered := strings.ToLower(query)

	ranked := make([]scored, 0, len(actions))
	for _, action := range actions {
		if s := scoreAction(lowered, action); s >= scoreThreshold {
			ranked = append(ranked, scored{action: action, score: s})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if len(ranked) > maxSelectedActions {
		ranked = ranked[:maxSelectedActions]
	}
	selected := make([]model.ActionDefinition, 0, len(ranked))
	for _, s := range ranked {
		selected = append(selected, s.action)
	}
	return selected
}

// scoreAction computes the lexical relevance of an action to a lowercased
// query: +2 if any name token occurs, +1 per description token, +2 per
// declared input name.
func scoreAction(lowered string, action model.ActionDefinition) int {
	score := 0
	for _, token := range strings.Fields(strings.ToLower(action.ActionName)) {
		if strings.Contains(lowered, token) {
			score += 2
			break
		}
	}
	for _, token := range strings.Fields(strings.ToLower(action.ActionDescription)) {
		if strings.Contains(lowered, token) {
			score++
		}
	}
	for _, input := range action.Input {
		if input != "" && strings.Contains(lowered, strings.ToLower(input)) {
			score += 2
		}
	}
	return score
}

func containsAPIKeyword(query string) bool {
	lowered := strings.ToLower(query)
	for _, kw := range apiKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// matchAction resolves the routing tag to a definition: first action whose
// name is referenced in the tag, then the top-scored selection, then the
// first registered action.
func matchAction(actions, selected []model.ActionDefinition, tag string) (model.ActionDefinition, bool) {
	loweredTag := strings.ToLower(tag)
	for _, action := range actions {
		if action.ActionName != "" && strings.Contains(loweredTag, strings.ToLower(action.ActionName)) {
			return action, true
		}
	}
	if len(selected) > 0 {
		return selected[0], true
	}
	if len(actions) > 0 {
		return actions[0], true
	}
	return model.ActionDefinition{}, false
}
