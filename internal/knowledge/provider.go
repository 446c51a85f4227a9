// Package knowledge supplies grounding context for answer generation. The
// provider contract is opaque: given a query, return whatever context text
// the backing store considers relevant.
package knowledge

import "context"

// NoContextFound is what callers render when retrieval yields nothing.
const NoContextFound = "No relevant context found."

// ContextProvider retrieves grounding context for a query.
type ContextProvider interface {
	GetContext(ctx context.Context, query string) (string, error)
}

// None is the provider used when no knowledge backend is configured.
type None struct{}

func (None) GetContext(context.Context, string) (string, error) {
	return NoContextFound, nil
}

var _ ContextProvider = None{}
