// Package service holds the application services between the HTTP layer and
// the agents: conversation gating, the copilot query boundary, action and
// dataset management, and dynamic action dispatch.
package service

import (
	"context"
	"fmt"

	"github.com/waffles-copilot/server/internal/copilot/agent"
	"github.com/waffles-copilot/server/internal/copilot/responder"
	"github.com/waffles-copilot/server/internal/copilot/session"
	logx "github.com/waffles-copilot/server/pkg/logger"
)

// TurnResponse is the outcome of one transcribed turn. Skip means the gate
// decided not to respond; the remaining fields are only set when Skip is
// false.
type TurnResponse struct {
	Skip                bool     `json:"skip,omitempty"`
	AIMessage           string   `json:"aiMessage,omitempty"`
	FollowUpQuestions   []string `json:"followUpQuestions,omitempty"`
	TangentialQuestions []string `json:"tangentialQuestions,omitempty"`
	HeaderText          string   `json:"headerText,omitempty"`
}

// FollowUpResponse answers one selected follow-up question.
type FollowUpResponse struct {
	Response string `json:"response"`
	Idx      int    `json:"idx"`
	Page     int    `json:"page"`
}

// ConversationService gates incoming turns and produces conversational
// answers with follow-up suggestions.
type ConversationService struct {
	store     session.Store
	responder *responder.Responder
	agent     *agent.ActionAgent
}

func NewConversationService(store session.Store, rsp *responder.Responder, act *agent.ActionAgent) *ConversationService {
	return &ConversationService{store: store, responder: rsp, agent: act}
}

// ProcessTurn appends the turn to the session log unconditionally, then
// applies the two-stage gate: respond only when the turn is a business
// question that has not already been asked this session.
func (s *ConversationService) ProcessTurn(ctx context.Context, sessionID, turn string) (*TurnResponse, error) {
	history, err := s.store.Messages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if err := s.store.AddMessage(ctx, sessionID, turn); err != nil {
		return nil, fmt.Errorf("append turn: %w", err)
	}

	business, err := s.responder.IsBusinessQuestion(ctx, turn)
	if err != nil {
		return nil, err
	}
	if !business {
		return &TurnResponse{Skip: true}, nil
	}

	if len(history) > 0 {
		repeat, err := s.responder.IsRepeatQuestion(ctx, turn, history)
		if err != nil {
			return nil, err
		}
		if repeat {
			return &TurnResponse{Skip: true}, nil
		}
	}

	// classification only; the answer below always comes from the
	// conversational capability regardless of the routing outcome
	decision := s.agent.Route(turn)
	logx.Debug().Str("session", sessionID).Str("route", string(decision.Kind)).Msg("classified turn")

	answer, followUps, tangents, err := s.responder.ProcessMessage(ctx, turn, history)
	if err != nil {
		return nil, err
	}

	if err := s.store.AddAIMessage(ctx, sessionID, answer); err != nil {
		return nil, fmt.Errorf("append answer: %w", err)
	}
	if len(followUps) > 0 {
		if err := s.store.AddFollowUpQuestions(ctx, sessionID, followUps); err != nil {
			return nil, fmt.Errorf("append follow-ups: %w", err)
		}
	}

	return &TurnResponse{
		AIMessage:           answer,
		FollowUpQuestions:   followUps,
		TangentialQuestions: tangents,
		HeaderText:          turn,
	}, nil
}

// SelectFollowUp answers a previously suggested question. Selections replay
// idempotently: a question already answered this session returns the cached
// response without invoking the model again.
func (s *ConversationService) SelectFollowUp(ctx context.Context, sessionID, question string, idx, page int) (*FollowUpResponse, error) {
	cached, ok, err := s.store.SelectedResponse(ctx, sessionID, question)
	if err != nil {
		return nil, fmt.Errorf("lookup selected response: %w", err)
	}
	if ok {
		return &FollowUpResponse{Response: cached, Idx: idx, Page: page}, nil
	}

	answer, err := s.responder.GroundedAnswer(ctx, question)
	if err != nil {
		return nil, err
	}
	if err := s.store.AddSelectedResponse(ctx, sessionID, question, answer); err != nil {
		return nil, fmt.Errorf("cache selected response: %w", err)
	}
	return &FollowUpResponse{Response: answer, Idx: idx, Page: page}, nil
}

// Elaborate expands on an entity mentioned in the given text.
func (s *ConversationService) Elaborate(ctx context.Context, text string) (string, error) {
	return s.responder.Elaborate(ctx, text)
}

// SessionMessages returns the raw transcript for a session.
func (s *ConversationService) SessionMessages(ctx context.Context, sessionID string) ([]string, error) {
	return s.store.Messages(ctx, sessionID)
}
