// Package prompts renders every prompt the copilot sends to a chat model.
// Templates live as embedded text files and are rendered through the Eino
// prompt component so prompt callbacks fire for observability.
package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/waffles-copilot/server/internal/copilot/model"
)

//go:embed template/general_response.txt
var generalResponsePrompt string

//go:embed template/dataset_router.txt
var datasetRouterPrompt string

//go:embed template/action_prompt.txt
var actionPromptPrompt string

//go:embed template/extract_inputs.txt
var extractInputsPrompt string

//go:embed template/tabular_query.txt
var tabularQueryPrompt string

//go:embed template/action_items.txt
var actionItemsPrompt string

func format(ctx context.Context, tpl prompt.ChatTemplate, vars map[string]any) ([]*schema.Message, error) {
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("render prompt: empty result")
	}
	return msgs, nil
}

// RenderInitialCheck builds the yes/no gate asking whether the text is a
// business-related question at all.
func RenderInitialCheck(ctx context.Context, text string) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(schema.GoTemplate,
		schema.SystemMessage("You can only answer yes or no."),
		schema.UserMessage("Is the following text a business-related question?\n\nText: {{.text}}"),
	)
	return format(ctx, tpl, map[string]any{"text": text})
}

// RenderHistoryCheck asks whether an equivalent question was already asked
// earlier in the session.
func RenderHistoryCheck(ctx context.Context, text string, history []string) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(schema.GoTemplate,
		schema.SystemMessage("You can only answer yes or no. Answer yes if the latest question was already asked before."),
		schema.UserMessage("Previous questions: {{.history}}\nLatest question: {{.text}}"),
	)
	return format(ctx, tpl, map[string]any{
		"history": strings.Join(history, "\n"),
		"text":    text,
	})
}

// RenderGrounded builds the context-grounded answer prompt. When bullets is
// true the answer is requested in '~' point form.
func RenderGrounded(ctx context.Context, contextText, question string, bullets bool) ([]*schema.Message, error) {
	instruction := "Answer:"
	if bullets {
		instruction = "Use point form with '~' bullets."
	}
	tpl := prompt.FromMessages(schema.GoTemplate,
		schema.UserMessage("Answer the question based only on the following context:\n{{.context}}\n\nQuestion: {{.question}}\n{{.instruction}}"),
	)
	return format(ctx, tpl, map[string]any{
		"context":     contextText,
		"question":    question,
		"instruction": instruction,
	})
}

// RenderGeneralResponse builds the persona-bound conversational prompt for
// queries with no grounding.
func RenderGeneralResponse(ctx context.Context, cfg model.AssistantConfig, query string) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(schema.GoTemplate,
		schema.SystemMessage(generalResponsePrompt),
		schema.UserMessage("Query: {{.query}}"),
	)
	return format(ctx, tpl, map[string]any{
		"assistant_name": cfg.Name,
		"business":       cfg.Business,
		"query":          query,
	})
}

// RenderFollowUps asks for follow-up questions as a JSON array of strings.
func RenderFollowUps(ctx context.Context, history []string, question string) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(schema.GoTemplate,
		schema.SystemMessage("You are given a full chat history and the latest user question. Suggest up to three follow-up questions the user is likely to ask next. Return only a JSON array of strings."),
		schema.UserMessage("Chat history:\n{{.chat_history}}\n\nQuestion: {{.question}}"),
	)
	return format(ctx, tpl, map[string]any{
		"chat_history": strings.Join(history, "\n"),
		"question":     question,
	})
}

// RenderTangential asks for tangential questions as a JSON array of strings.
func RenderTangential(ctx context.Context, history []string, question string) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(schema.GoTemplate,
		schema.SystemMessage("You are given a chat history and the latest inquiry. Suggest up to three tangential questions exploring related topics the user has not asked about yet. Return only a JSON array of strings."),
		schema.UserMessage("Chat History:\n{{.chat_history}}\n\nLatest Inquiry:\n{{.question}}"),
	)
	return format(ctx, tpl, map[string]any{
		"chat_history": strings.Join(history, "\n"),
		"question":     question,
	})
}

// RenderElaboration asks the model to elaborate on the entity in the text.
func RenderElaboration(ctx context.Context, text string) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(schema.GoTemplate,
		schema.SystemMessage("Please elaborate on the entity in the following text."),
		schema.UserMessage("Text: {{.text}}"),
	)
	return format(ctx, tpl, map[string]any{"text": text})
}

// RenderDatasetRouter builds the multi-dataset routing prompt over the
// registered datasets.
func RenderDatasetRouter(ctx context.Context, datasets []model.DatasetDefinition, query string) ([]*schema.Message, error) {
	var b strings.Builder
	for _, ds := range datasets {
		fmt.Fprintf(&b, "Database name: %s\nDescription: %s\nColumns: %s\n\n",
			ds.DatabaseName, ds.DatabaseDescription, ds.Columns)
	}

	tpl := prompt.FromMessages(schema.GoTemplate,
		schema.SystemMessage(datasetRouterPrompt),
		schema.UserMessage("Query: {{.query}}"),
	)
	return format(ctx, tpl, map[string]any{
		"databases": b.String(),
		"query":     query,
	})
}

// RenderActionRouter builds the LLM-side action matching prompt over the
// registered actions. Returns the matching action names or the NA sentinel.
func RenderActionRouter(ctx context.Context, actions []model.ActionDefinition, query string) ([]*schema.Message, error) {
	var b strings.Builder
	for _, a := range actions {
		fmt.Fprintf(&b, "Action type: %s\nAction name: %s\nAction description: %s\nAction input: %v\nAction output: %v\n\n",
			a.ActionType, a.ActionName, a.ActionDescription, a.Input, a.Output)
	}

	tpl := prompt.FromMessages(schema.GoTemplate,
		schema.SystemMessage("You are an intelligent assistant.\nYour task is to match a user's query to a list of actions based on the inputs required for each action.\nReturn the JSON with a single key 'name' and value being a list of matching action names.\nReturn 'NA' if nothing matches."),
		schema.SystemMessage("{{.actions}}"),
		schema.UserMessage("Query: {{.query}}"),
	)
	return format(ctx, tpl, map[string]any{
		"actions": b.String(),
		"query":   query,
	})
}

// RenderActionPrompt builds the few-shot prompt that turns a selected action
// plus the original query into a sub-query for the tabular agent.
func RenderActionPrompt(ctx context.Context, action model.ActionDefinition, query string) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(schema.GoTemplate,
		schema.SystemMessage(actionPromptPrompt),
		schema.UserMessage("Query: {{.query}}\nAction description: {{.action_description}}\nAction input: {{.action_input}}\nAction output: {{.action_output}}"),
	)
	return format(ctx, tpl, map[string]any{
		"query":              query,
		"action_description": action.ActionDescription,
		"action_input":       fmt.Sprintf("%v", action.Input),
		"action_output":      fmt.Sprintf("%v", action.Output),
	})
}

// RenderInputExtraction builds the structured extraction prompt mapping the
// query onto the action's declared input names.
func RenderInputExtraction(ctx context.Context, query string, action model.ActionDefinition) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(schema.GoTemplate,
		schema.SystemMessage(extractInputsPrompt),
		schema.UserMessage("Query: {{.query}}\nInputs: {{.action_input}}"),
	)
	return format(ctx, tpl, map[string]any{
		"query":        query,
		"action_input": fmt.Sprintf("%v", action.Input),
	})
}

// RenderSummary builds the final-answer summarization prompt over the
// concatenated tabular results.
func RenderSummary(ctx context.Context, dbResult string) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(schema.GoTemplate,
		schema.SystemMessage("You are a helpful CRM assistant."),
		schema.UserMessage("Here is the database result:\n\n{{.db_result}}\n\nSummarize this for the user."),
	)
	return format(ctx, tpl, map[string]any{"db_result": dbResult})
}

// RenderTabular builds the CSV question-answering prompt.
func RenderTabular(ctx context.Context, tables, query string) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(schema.GoTemplate,
		schema.SystemMessage(tabularQueryPrompt),
		schema.UserMessage("Question: {{.query}}"),
	)
	return format(ctx, tpl, map[string]any{
		"tables": tables,
		"query":  query,
	})
}

// RenderActionItems builds the action-item extraction prompt.
func RenderActionItems(ctx context.Context, raw string) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(schema.GoTemplate,
		schema.SystemMessage(actionItemsPrompt),
		schema.UserMessage("Text:\n{{.text}}"),
	)
	return format(ctx, tpl, map[string]any{"text": raw})
}
