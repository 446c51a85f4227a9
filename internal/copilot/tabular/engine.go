// Package tabular answers natural-language questions against registered CSV
// files by rendering the data into a prompt for a chat model.
package tabular

import (
	"context"

	"github.com/waffles-copilot/server/internal/copilot/model"
)

// Engine is the tabular-query capability consumed by the agents. Paths are
// absolute CSV file paths; with more than one path, the engine decides how to
// combine them.
type Engine interface {
	Query(ctx context.Context, paths []string, query string) (model.Answer, error)
}
