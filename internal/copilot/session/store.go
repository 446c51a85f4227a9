// Package session stores the per-session conversation logs: raw transcript
// lines, AI answers, follow-up question batches, and the selected-question
// response cache used for idempotent replay.
package session

import "context"

// Store is the session log contract. All operations are total: an unknown
// session behaves as first use and reads return empty values, never an error
// for absence.
type Store interface {
	AddMessage(ctx context.Context, sessionID, text string) error
	Messages(ctx context.Context, sessionID string) ([]string, error)

	AddAIMessage(ctx context.Context, sessionID, text string) error
	AIMessages(ctx context.Context, sessionID string) ([]string, error)

	AddFollowUpQuestions(ctx context.Context, sessionID string, questions []string) error
	FollowUpQuestions(ctx context.Context, sessionID string) ([][]string, error)

	AddSelectedResponse(ctx context.Context, sessionID, question, response string) error
	SelectedQuestions(ctx context.Context, sessionID string) ([]string, error)
	// SelectedResponse returns the cached answer for a previously selected
	// question; the bool reports whether one exists.
	SelectedResponse(ctx context.Context, sessionID, question string) (string, bool, error)

	// Clear drops all state for every session.
	Clear(ctx context.Context) error
}
