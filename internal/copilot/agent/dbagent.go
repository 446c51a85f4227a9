package agent

import (
	"context"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"

	"github.com/waffles-copilot/server/internal/copilot/model"
	"github.com/waffles-copilot/server/internal/copilot/parsers"
	"github.com/waffles-copilot/server/internal/copilot/prompts"
	"github.com/waffles-copilot/server/internal/copilot/registry"
	"github.com/waffles-copilot/server/internal/copilot/responder"
	"github.com/waffles-copilot/server/internal/copilot/tabular"
	logx "github.com/waffles-copilot/server/pkg/logger"
)

const (
	dbStateRouter  State = "router"
	dbStateQuery   State = "db_query"
	dbStateGeneral State = "general"
)

// DBAgent answers a query out of the registered tabular datasets, degrading
// to conversational behavior when no dataset applies.
type DBAgent struct {
	routerModel einomodel.BaseChatModel
	responder   *responder.Responder
	datasets    *registry.DatasetRegistry
	engine      tabular.Engine
}

func NewDBAgent(routerModel einomodel.BaseChatModel, rsp *responder.Responder, datasets *registry.DatasetRegistry, engine tabular.Engine) *DBAgent {
	return &DBAgent{
		routerModel: routerModel,
		responder:   rsp,
		datasets:    datasets,
		engine:      engine,
	}
}

type dbRun struct {
	query    string
	datasets []model.DatasetDefinition
	choices  []string
	output   model.Answer
}

// Run executes ROUTER through DONE and returns the terminal state's output.
// Engine failures are not caught here; they abort the run.
func (a *DBAgent) Run(ctx context.Context, query string) (model.Answer, error) {
	run := &dbRun{query: query}
	steps := map[State]stepFn{
		dbStateRouter:  func(ctx context.Context) (State, error) { return a.route(ctx, run) },
		dbStateQuery:   func(ctx context.Context) (State, error) { return a.queryDatasets(ctx, run) },
		dbStateGeneral: func(ctx context.Context) (State, error) { return a.general(ctx, run) },
	}
	if err := drive(ctx, "db", steps, dbStateRouter); err != nil {
		return model.Answer{}, err
	}
	return run.output, nil
}

// route asks the routing model which datasets, if any, apply. An empty
// registry or an NA answer degrades to the general path.
func (a *DBAgent) route(ctx context.Context, run *dbRun) (State, error) {
	run.datasets = a.datasets.List()
	if len(run.datasets) == 0 {
		logx.Debug().Msg("no datasets registered, answering conversationally")
		return dbStateGeneral, nil
	}

	msgs, err := prompts.RenderDatasetRouter(ctx, run.datasets, run.query)
	if err != nil {
		return "", err
	}
	out, err := a.routerModel.Generate(ctx, msgs)
	if err != nil {
		return "", err
	}

	choices, ok := parsers.ParseChoices(out.Content)
	if !ok {
		return dbStateGeneral, nil
	}
	run.choices = choices
	return dbStateQuery, nil
}

// queryDatasets resolves the chosen names to files and runs the tabular
// engine. Names that no longer resolve are skipped without error.
func (a *DBAgent) queryDatasets(ctx context.Context, run *dbRun) (State, error) {
	paths := make([]string, 0, len(run.choices))
	for _, name := range run.choices {
		path := resolvePath(run.datasets, name)
		if path == "" {
			logx.Warn().Str("dataset", name).Msg("chosen dataset did not resolve, skipping")
			continue
		}
		paths = append(paths, path)
	}

	answer, err := a.engine.Query(ctx, paths, run.query)
	if err != nil {
		return "", err
	}
	run.output = answer
	return StateDone, nil
}

func (a *DBAgent) general(ctx context.Context, run *dbRun) (State, error) {
	business, err := a.responder.IsBusinessQuestion(ctx, run.query)
	if err != nil {
		return "", err
	}

	var text string
	if business {
		text, err = a.responder.GroundedAnswer(ctx, run.query)
	} else {
		text, err = a.responder.GeneralAnswer(ctx, run.query)
	}
	if err != nil {
		return "", err
	}
	run.output = model.TextAnswer(text)
	return StateDone, nil
}

func resolvePath(datasets []model.DatasetDefinition, name string) string {
	for _, ds := range datasets {
		if strings.EqualFold(ds.DatabaseName, name) {
			return ds.ResolvedPath
		}
	}
	return ""
}
