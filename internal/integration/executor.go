// Package integration holds the outbound clients for confirmed copilot
// actions: issue tracking, email, and arbitrary webhooks.
package integration

import "context"

// Executor performs one confirmed external action against its endpoint.
// The payload is the input mapping extracted from the user's query; auth
// entries are sent as request headers.
type Executor interface {
	Execute(ctx context.Context, endpoint string, payload map[string]string, auth map[string]string) error
}
