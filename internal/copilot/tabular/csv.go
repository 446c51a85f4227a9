package tabular

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"

	"github.com/waffles-copilot/server/internal/copilot/model"
	"github.com/waffles-copilot/server/internal/copilot/prompts"
	logx "github.com/waffles-copilot/server/pkg/logger"
)

// CSVEngine renders CSV files into a tabular prompt and asks the chat model
// to answer over them. Files are truncated to maxRows data rows to keep the
// prompt bounded.
type CSVEngine struct {
	chatModel einomodel.BaseChatModel
	maxRows   int
}

func NewCSVEngine(chatModel einomodel.BaseChatModel, cfg model.TabularConfig) *CSVEngine {
	maxRows := cfg.MaxRows
	if maxRows < 1 {
		maxRows = 200
	}
	return &CSVEngine{chatModel: chatModel, maxRows: maxRows}
}

// Query implements Engine. A read failure on any file is an error: by the
// time a path reaches the engine it has already been resolved against the
// registry, so a missing file is not a routine condition here.
func (e *CSVEngine) Query(ctx context.Context, paths []string, query string) (model.Answer, error) {
	if len(paths) == 0 {
		return model.Answer{}, fmt.Errorf("tabular query with no files")
	}

	var b strings.Builder
	for _, path := range paths {
		table, err := e.renderFile(path)
		if err != nil {
			return model.Answer{}, fmt.Errorf("load csv %s: %w", path, err)
		}
		b.WriteString(table)
		b.WriteString("\n")
	}

	msgs, err := prompts.RenderTabular(ctx, b.String(), query)
	if err != nil {
		return model.Answer{}, err
	}

	out, err := e.chatModel.Generate(ctx, msgs)
	if err != nil {
		return model.Answer{}, fmt.Errorf("tabular query: %w", err)
	}
	logx.Debug().Int("files", len(paths)).Str("query", query).Msg("tabular query answered")
	return model.TextAnswer(out.Content), nil
}

// renderFile reads one CSV file into a bounded text table.
func (e *CSVEngine) renderFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var b strings.Builder
	fmt.Fprintf(&b, "=== %s ===\n", filepath.Base(path))

	rows := 0
	truncated := false
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		// first record is the header and does not count against maxRows
		if rows > e.maxRows {
			truncated = true
			break
		}
		b.WriteString(strings.Join(record, ", "))
		b.WriteString("\n")
		rows++
	}
	if truncated {
		fmt.Fprintf(&b, "... (truncated at %d rows)\n", e.maxRows)
	}
	return b.String(), nil
}

var _ Engine = (*CSVEngine)(nil)
