package service

import (
	"context"
	"strings"

	"github.com/waffles-copilot/server/internal/copilot/agent"
	logx "github.com/waffles-copilot/server/pkg/logger"
)

// ErrorEnvelope is the uniform boundary-level failure payload. Failures
// inside the agents surface here as a structured error, never as a raw
// stack trace.
type ErrorEnvelope struct {
	Error string `json:"error"`
}

const (
	missingQueryError  = "Missing 'query' in request"
	internalQueryError = "Internal server error. Please contact support."
)

// CopilotService is the boundary around the action routing agent.
type CopilotService struct {
	agent *agent.ActionAgent
}

func NewCopilotService(act *agent.ActionAgent) *CopilotService {
	return &CopilotService{agent: act}
}

// RunQuery executes one copilot query end to end. Any agent failure is
// converted to an error envelope; the handling task never crashes.
func (s *CopilotService) RunQuery(ctx context.Context, sessionID, query string) any {
	if strings.TrimSpace(query) == "" {
		return ErrorEnvelope{Error: missingQueryError}
	}

	result, err := s.agent.Run(ctx, query)
	if err != nil {
		logx.Error().Err(err).Str("session", sessionID).Msg("copilot query failed")
		return ErrorEnvelope{Error: internalQueryError}
	}
	return result
}
