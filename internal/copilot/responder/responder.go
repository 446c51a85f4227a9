// Package responder implements the conversational capability: gating checks,
// grounded and context-free answers, follow-up and tangential question
// generation, and final-answer summarization.
package responder

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"

	"github.com/waffles-copilot/server/internal/copilot/model"
	"github.com/waffles-copilot/server/internal/copilot/parsers"
	"github.com/waffles-copilot/server/internal/copilot/prompts"
	"github.com/waffles-copilot/server/internal/knowledge"
	logx "github.com/waffles-copilot/server/pkg/logger"
)

// Responder drives the user-facing answer prompts. Gating checks go through
// the router model; everything user-visible goes through the response model.
type Responder struct {
	routerModel   einomodel.BaseChatModel
	responseModel einomodel.BaseChatModel
	provider      knowledge.ContextProvider
	assistant     model.AssistantConfig
}

func New(routerModel, responseModel einomodel.BaseChatModel, provider knowledge.ContextProvider, assistant model.AssistantConfig) *Responder {
	if provider == nil {
		provider = knowledge.None{}
	}
	return &Responder{
		routerModel:   routerModel,
		responseModel: responseModel,
		provider:      provider,
		assistant:     assistant,
	}
}

// IsBusinessQuestion is the first gate: is this turn a business-related
// question in isolation?
func (r *Responder) IsBusinessQuestion(ctx context.Context, text string) (bool, error) {
	msgs, err := prompts.RenderInitialCheck(ctx, text)
	if err != nil {
		return false, err
	}
	out, err := r.routerModel.Generate(ctx, msgs)
	if err != nil {
		return false, fmt.Errorf("initial check: %w", err)
	}
	return parsers.ParseBool(out.Content), nil
}

// IsRepeatQuestion is the second gate: was an equivalent question already
// asked this session?
func (r *Responder) IsRepeatQuestion(ctx context.Context, text string, history []string) (bool, error) {
	msgs, err := prompts.RenderHistoryCheck(ctx, text, history)
	if err != nil {
		return false, err
	}
	out, err := r.routerModel.Generate(ctx, msgs)
	if err != nil {
		return false, fmt.Errorf("history check: %w", err)
	}
	return parsers.ParseBool(out.Content), nil
}

// context fetches grounding text, degrading to the no-context sentinel on
// provider failure the way the original retrieval chain does.
func (r *Responder) context(ctx context.Context, query string) string {
	contextText, err := r.provider.GetContext(ctx, query)
	if err != nil {
		logx.Error().Err(err).Msg("context retrieval failed")
		return knowledge.NoContextFound
	}
	return contextText
}

// Answer produces the primary grounded answer in '~' bullet form.
func (r *Responder) Answer(ctx context.Context, question string) (string, error) {
	msgs, err := prompts.RenderGrounded(ctx, r.context(ctx, question), question, true)
	if err != nil {
		return "", err
	}
	out, err := r.responseModel.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("grounded answer: %w", err)
	}
	return out.Content, nil
}

// GroundedAnswer produces a plain grounded answer (no bullet formatting);
// used for follow-up expansion and the knowledge path of the tabular agent.
func (r *Responder) GroundedAnswer(ctx context.Context, question string) (string, error) {
	msgs, err := prompts.RenderGrounded(ctx, r.context(ctx, question), question, false)
	if err != nil {
		return "", err
	}
	out, err := r.responseModel.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("grounded answer: %w", err)
	}
	return out.Content, nil
}

// GeneralAnswer produces the persona-bound context-free answer.
func (r *Responder) GeneralAnswer(ctx context.Context, query string) (string, error) {
	msgs, err := prompts.RenderGeneralResponse(ctx, r.assistant, query)
	if err != nil {
		return "", err
	}
	out, err := r.responseModel.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("general answer: %w", err)
	}
	return out.Content, nil
}

// FollowUps suggests follow-up questions; malformed model output degrades to
// an empty list.
func (r *Responder) FollowUps(ctx context.Context, history []string, question string) ([]string, error) {
	msgs, err := prompts.RenderFollowUps(ctx, history, question)
	if err != nil {
		return nil, err
	}
	out, err := r.responseModel.Generate(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("follow-up questions: %w", err)
	}
	return parsers.ParseQuestionList(out.Content), nil
}

// Tangential suggests tangential questions.
func (r *Responder) Tangential(ctx context.Context, history []string, question string) ([]string, error) {
	msgs, err := prompts.RenderTangential(ctx, history, question)
	if err != nil {
		return nil, err
	}
	out, err := r.responseModel.Generate(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("tangential questions: %w", err)
	}
	return parsers.ParseQuestionList(out.Content), nil
}

// Elaborate expands on the entity in the given text.
func (r *Responder) Elaborate(ctx context.Context, text string) (string, error) {
	msgs, err := prompts.RenderElaboration(ctx, text)
	if err != nil {
		return "", err
	}
	out, err := r.responseModel.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("elaboration: %w", err)
	}
	return out.Content, nil
}

// Summarize produces the final user-facing summary of tabular results.
func (r *Responder) Summarize(ctx context.Context, dbResult string) (string, error) {
	msgs, err := prompts.RenderSummary(ctx, dbResult)
	if err != nil {
		return "", err
	}
	out, err := r.responseModel.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return out.Content, nil
}

// ProcessMessage produces the full conversational triple: primary answer
// plus follow-up and tangential suggestions derived from the session
// history.
func (r *Responder) ProcessMessage(ctx context.Context, question string, history []string) (string, []string, []string, error) {
	answer, err := r.Answer(ctx, question)
	if err != nil {
		return "", nil, nil, err
	}

	followUps, err := r.FollowUps(ctx, history, answer)
	if err != nil {
		return "", nil, nil, err
	}
	tangents, err := r.Tangential(ctx, history, answer)
	if err != nil {
		return "", nil, nil, err
	}
	return answer, followUps, tangents, nil
}
