package tabular

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waffles-copilot/server/internal/copilot/model"
)

type fakeChatModel struct {
	reply string
	calls [][]*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, in []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	f.calls = append(f.calls, in)
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(_ context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func promptText(t *testing.T, msgs []*schema.Message) string {
	t.Helper()
	var text string
	for _, m := range msgs {
		text += m.Content + "\n"
	}
	return text
}

func TestCSVEngineRendersFileIntoPrompt(t *testing.T) {
	path := writeCSV(t, "sales.csv", "region,amount\nwest,100\neast,250\n")
	chat := &fakeChatModel{reply: "east sold the most"}
	engine := NewCSVEngine(chat, model.TabularConfig{MaxRows: 200})

	answer, err := engine.Query(context.Background(), []string{path}, "which region sold the most?")
	require.NoError(t, err)
	assert.Equal(t, "east sold the most", answer.Text)

	require.Len(t, chat.calls, 1)
	prompt := promptText(t, chat.calls[0])
	assert.Contains(t, prompt, "=== sales.csv ===")
	assert.Contains(t, prompt, "region, amount")
	assert.Contains(t, prompt, "east, 250")
	assert.Contains(t, prompt, "which region sold the most?")
}

func TestCSVEngineMultipleFiles(t *testing.T) {
	first := writeCSV(t, "a.csv", "x\n1\n")
	second := writeCSV(t, "b.csv", "y\n2\n")
	chat := &fakeChatModel{reply: "ok"}
	engine := NewCSVEngine(chat, model.TabularConfig{})

	_, err := engine.Query(context.Background(), []string{first, second}, "compare")
	require.NoError(t, err)

	prompt := promptText(t, chat.calls[0])
	assert.Contains(t, prompt, "=== a.csv ===")
	assert.Contains(t, prompt, "=== b.csv ===")
}

func TestCSVEngineTruncatesLongFiles(t *testing.T) {
	content := "id\n"
	for i := 0; i < 50; i++ {
		content += fmt.Sprintf("%d\n", i)
	}
	path := writeCSV(t, "big.csv", content)
	chat := &fakeChatModel{reply: "ok"}
	engine := NewCSVEngine(chat, model.TabularConfig{MaxRows: 10})

	_, err := engine.Query(context.Background(), []string{path}, "count")
	require.NoError(t, err)

	prompt := promptText(t, chat.calls[0])
	assert.Contains(t, prompt, "truncated at 10 rows")
	assert.NotContains(t, prompt, "\n49\n")
}

func TestCSVEngineNoFilesIsError(t *testing.T) {
	engine := NewCSVEngine(&fakeChatModel{}, model.TabularConfig{})
	_, err := engine.Query(context.Background(), nil, "anything")
	require.Error(t, err)
}

func TestCSVEngineMissingFileIsError(t *testing.T) {
	engine := NewCSVEngine(&fakeChatModel{}, model.TabularConfig{})
	_, err := engine.Query(context.Background(), []string{"/nonexistent/file.csv"}, "anything")
	require.Error(t, err)
}
