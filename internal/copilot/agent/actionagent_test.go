package agent

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waffles-copilot/server/internal/copilot/model"
	"github.com/waffles-copilot/server/internal/copilot/registry"
	"github.com/waffles-copilot/server/internal/copilot/responder"
	"github.com/waffles-copilot/server/internal/copilot/tabular"
	"github.com/waffles-copilot/server/internal/knowledge"
)

// fakeChatModel replays scripted completions in order.
type fakeChatModel struct {
	mu      sync.Mutex
	replies []string
	calls   [][]*schema.Message
	err     error
}

func (f *fakeChatModel) Generate(_ context.Context, in []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.replies) == 0 {
		return nil, errors.New("no scripted reply left")
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return schema.AssistantMessage(reply, nil), nil
}

func (f *fakeChatModel) Stream(_ context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

// fakeEngine records the paths and queries it was invoked with.
type fakeEngine struct {
	answer  model.Answer
	err     error
	paths   [][]string
	queries []string
}

func (f *fakeEngine) Query(_ context.Context, paths []string, query string) (model.Answer, error) {
	f.paths = append(f.paths, paths)
	f.queries = append(f.queries, query)
	if f.err != nil {
		return model.Answer{}, f.err
	}
	return f.answer, nil
}

var _ tabular.Engine = (*fakeEngine)(nil)

func newTestActionRegistry(t *testing.T, actions ...model.ActionDefinition) *registry.ActionRegistry {
	t.Helper()
	reg := registry.NewActionRegistry(filepath.Join(t.TempDir(), "actions.json"))
	for _, a := range actions {
		_, err := reg.Append(a)
		require.NoError(t, err)
	}
	return reg
}

func newTestAgent(t *testing.T, routerModel, responseModel einomodel.BaseChatModel, engine tabular.Engine, actions ...model.ActionDefinition) *ActionAgent {
	t.Helper()
	rsp := responder.New(routerModel, responseModel, knowledge.None{}, model.AssistantConfig{Name: "Waffles Copilot", Business: "CRM"})
	datasets := registry.NewDatasetRegistry(filepath.Join(t.TempDir(), "datasets.json"), t.TempDir())
	db := NewDBAgent(routerModel, rsp, datasets, engine)
	return NewActionAgent(routerModel, rsp, newTestActionRegistry(t, actions...), db)
}

func salesReportAction() model.ActionDefinition {
	return model.ActionDefinition{
		ActionType:        model.ActionQueryDatabase,
		ActionName:        "sales report",
		ActionDescription: "summarize sales figures per region",
		Input:             []string{"region"},
	}
}

func TestScoreActionNameToken(t *testing.T) {
	action := model.ActionDefinition{
		ActionName:        "sales report",
		ActionDescription: "aggregate revenue numbers",
	}
	// one name token matches: +2, at most once
	assert.Equal(t, 2, scoreAction("show me the latest sales", action))
	// description token "revenue" adds +1 on top of the name match
	assert.Equal(t, 3, scoreAction("sales and revenue please", action))
	assert.Equal(t, 0, scoreAction("weather tomorrow", action))
}

func TestScoreActionInputNames(t *testing.T) {
	action := model.ActionDefinition{
		ActionName:        "sales report",
		ActionDescription: "aggregate revenue",
		Input:             []string{"region"},
	}
	withInput := scoreAction("sales report for region west", action)
	withoutInput := scoreAction("sales report overview", action)
	assert.Equal(t, withoutInput+2, withInput)
}

func TestRouteFullNameAlwaysSelected(t *testing.T) {
	agent := newTestAgent(t, &fakeChatModel{}, &fakeChatModel{}, &fakeEngine{},
		salesReportAction(),
		model.ActionDefinition{ActionName: "customer lookup", ActionDescription: "find customer details"},
	)

	decision := agent.Route("give me the sales report for last month")
	assert.Equal(t, model.RouteDataQuery, decision.Kind)
	require.NotEmpty(t, decision.Selected)
	assert.Equal(t, "sales report", decision.Selected[0].ActionName)
}

func TestRouteKeepsTopTwo(t *testing.T) {
	agent := newTestAgent(t, &fakeChatModel{}, &fakeChatModel{}, &fakeEngine{},
		model.ActionDefinition{ActionName: "sales report", ActionDescription: "sales per region"},
		model.ActionDefinition{ActionName: "sales forecast", ActionDescription: "sales projection"},
		model.ActionDefinition{ActionName: "sales targets", ActionDescription: "sales goals"},
	)

	decision := agent.Route("how are sales doing")
	assert.Equal(t, model.RouteDataQuery, decision.Kind)
	assert.Len(t, decision.Selected, 2)
}

func TestRouteKeywordShortCircuit(t *testing.T) {
	agent := newTestAgent(t, &fakeChatModel{}, &fakeChatModel{}, &fakeEngine{}, salesReportAction())

	// "create" overrides the well-matched data-query action
	decision := agent.Route("create a sales report summarizing database X")
	assert.Equal(t, model.RouteAPICall, decision.Kind)
}

func TestRouteFallbackAndNoMatch(t *testing.T) {
	withActions := newTestAgent(t, &fakeChatModel{}, &fakeChatModel{}, &fakeEngine{}, salesReportAction())
	assert.Equal(t, model.RouteFallback, withActions.Route("what is the meaning of life").Kind)

	empty := newTestAgent(t, &fakeChatModel{}, &fakeChatModel{}, &fakeEngine{})
	assert.Equal(t, model.RouteNoMatch, empty.Route("anything at all").Kind)
}

func TestRunFallbackPath(t *testing.T) {
	responseModel := &fakeChatModel{replies: []string{
		"~ I can help with CRM questions.",
		`["What can you do?"]`,
		`["How do I add a dataset?"]`,
	}}
	agent := newTestAgent(t, &fakeChatModel{}, responseModel, &fakeEngine{}, salesReportAction())

	result, err := agent.Run(context.Background(), "tell me about quantum physics")
	require.NoError(t, err)

	assert.Equal(t, string(model.RouteFallback), result.RoutingTag)
	assert.Equal(t, "~ I can help with CRM questions.", result.Output.Text)
	assert.Equal(t, []string{"What can you do?"}, result.FollowUpQuestions)
	assert.Equal(t, []string{"How do I add a dataset?"}, result.TangentialQuestions)
	assert.Empty(t, result.QueryOutputs)
	// finalize ran once and did not trigger a summarization call
	assert.Empty(t, responseModel.replies)
}

func TestRunEmptyRegistryDegradesToConversation(t *testing.T) {
	// no actions, no datasets: router degrades to the tabular agent, which
	// degrades to the general path
	routerModel := &fakeChatModel{replies: []string{"no"}} // business-question gate
	responseModel := &fakeChatModel{replies: []string{
		"I'm Waffles Copilot, your CRM assistant.",
		"You asked who I am; I'm Waffles Copilot.",
	}}
	agent := newTestAgent(t, routerModel, responseModel, &fakeEngine{})

	result, err := agent.Run(context.Background(), "who are you")
	require.NoError(t, err)

	assert.Equal(t, string(model.RouteNoMatch), result.RoutingTag)
	require.Len(t, result.QueryOutputs, 1)
	// the tabular output was summarized into the final answer
	assert.Equal(t, "You asked who I am; I'm Waffles Copilot.", result.Output.Text)
}

func TestRunDataQueryPath(t *testing.T) {
	// dataset registry is empty, so the sub-agent answers conversationally
	routerModel := &fakeChatModel{replies: []string{
		"Find the total sales for the requested region.", // synthesized sub-query
		"yes", // business-question gate inside the sub-agent
	}}
	responseModel := &fakeChatModel{replies: []string{
		"Total sales were 42 units.", // grounded answer
		"Sales came to 42 units.",    // summary
	}}
	agent := newTestAgent(t, routerModel, responseModel, &fakeEngine{}, salesReportAction())

	result, err := agent.Run(context.Background(), "sales report please")
	require.NoError(t, err)

	assert.Equal(t, string(model.RouteDataQuery), result.RoutingTag)
	require.Len(t, result.GeneratedPrompts, 1)
	assert.Equal(t, "Find the total sales for the requested region.", result.GeneratedPrompts[0])
	require.Len(t, result.QueryOutputs, 1)
	assert.Equal(t, "Sales came to 42 units.", result.Output.Text)
}

func TestRunAPITypePath(t *testing.T) {
	action := model.ActionDefinition{
		ActionType:        model.ActionAPICall,
		ActionName:        "create ticket",
		ActionDescription: "file a support ticket",
		APIService:        "jira",
		Input:             []string{"title", "description"},
	}
	routerModel := &fakeChatModel{replies: []string{
		`{"name": ["create ticket"]}`, // action router tag
		`{"title": "Login broken", "description": "Users cannot log in"}`, // extraction
	}}
	agent := newTestAgent(t, routerModel, &fakeChatModel{}, &fakeEngine{}, action)

	result, err := agent.Run(context.Background(), "create a ticket about the login outage")
	require.NoError(t, err)

	assert.Equal(t, string(model.RouteAPICall), result.RoutingTag)
	require.True(t, result.Output.IsStructured())
	assert.Equal(t, "create ticket", result.Output.Structured["action_name"])
	assert.Equal(t, "jira", result.Output.Structured["api_service"])
	inputs, ok := result.Output.Structured["extracted_inputs"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "Login broken", inputs["title"])
}

func TestFinalizeCannedFallback(t *testing.T) {
	agent := newTestAgent(t, &fakeChatModel{}, &fakeChatModel{}, &fakeEngine{})
	run := &RunResult{Query: "anything"}

	state, err := agent.finalize(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, StateDone, state)
	assert.Equal(t, FallbackAnswer, run.Output.Text)
}

func TestFinalizeKeepsExistingOutput(t *testing.T) {
	agent := newTestAgent(t, &fakeChatModel{}, &fakeChatModel{}, &fakeEngine{})
	run := &RunResult{Output: model.TextAnswer("already answered")}

	_, err := agent.finalize(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, "already answered", run.Output.Text)
}

func TestFinalizeUncoercibleOutputsIsFatal(t *testing.T) {
	agent := newTestAgent(t, &fakeChatModel{}, &fakeChatModel{}, &fakeEngine{})
	run := &RunResult{QueryOutputs: []model.Answer{{}, {}}}

	_, err := agent.finalize(context.Background(), run)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uncoercible")
}

func TestFinalizeIsIdempotent(t *testing.T) {
	responseModel := &fakeChatModel{replies: []string{"summary"}}
	agent := newTestAgent(t, &fakeChatModel{}, responseModel, &fakeEngine{})
	run := &RunResult{QueryOutputs: []model.Answer{model.TextAnswer("raw result")}}

	_, err := agent.finalize(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, "summary", run.Output.Text)

	// second invocation reads the populated fields and makes no model call
	_, err = agent.finalize(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, "summary", run.Output.Text)
	assert.Len(t, responseModel.calls, 1)
}
