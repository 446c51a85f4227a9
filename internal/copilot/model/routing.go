package model

// RouteKind classifies a query after the action router has scored it against
// the registered actions.
type RouteKind string

const (
	// RouteFallback means no action matched; answer conversationally.
	RouteFallback RouteKind = "fallback_to_ai"
	// RouteAPICall means the query is API-call shaped (keyword short-circuit
	// or a matched api_call action).
	RouteAPICall RouteKind = "api_call"
	// RouteDataQuery means one or more query_database actions matched.
	RouteDataQuery RouteKind = "data_query"
	// RouteNoMatch is the NA sentinel: the router ran but matched nothing,
	// and the registry offers no basis to retry.
	RouteNoMatch RouteKind = "no_match"
)

// RoutingDecision is the transient classification outcome of the action
// router. Selected holds the top-scored actions for the data-query route
// (at most two, best first) or the single action for the api-call route.
type RoutingDecision struct {
	Kind     RouteKind
	Selected []ActionDefinition
}
