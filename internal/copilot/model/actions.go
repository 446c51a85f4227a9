package model

// ActionType distinguishes actions executed against an external API from
// actions answered out of a registered tabular dataset.
type ActionType string

const (
	ActionAPICall       ActionType = "api_call"
	ActionQueryDatabase ActionType = "query_database"
)

// ActionDefinition is a user-registered operation the copilot can perform.
// Definitions are append-only; action names are expected to be unique at
// match time but uniqueness is not enforced on write, so duplicates shadow.
type ActionDefinition struct {
	ActionType        ActionType        `json:"action_type"`
	ActionName        string            `json:"action_name"`
	ActionDescription string            `json:"action_description"`
	APIEndpoint       string            `json:"api_endpoint,omitempty"`
	APIService        string            `json:"api_service,omitempty"`
	Input             []string          `json:"input"`
	Output            []string          `json:"output"`
	APIAuth           map[string]string `json:"api_auth,omitempty"`
}

// DatasetDefinition describes one registered tabular dataset. DatabasePath is
// stored relative to the data directory; ResolvedPath is filled in at load
// time and never persisted.
type DatasetDefinition struct {
	DatabaseName        string `json:"database_name"`
	DatabaseDescription string `json:"database_description"`
	Columns             string `json:"columns"`
	DatabasePath        string `json:"database_path"`
	Date                string `json:"date"`

	ResolvedPath string `json:"-"`
}

// FormValue is one entry of a define-action form list.
type FormValue struct {
	Value string `json:"value"`
}

// AuthPair is one auth header entry of a define-action form.
type AuthPair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ActionForm mirrors the raw define-action request body as submitted by the
// client.
type ActionForm struct {
	ActionType   string      `json:"action_type"`
	ActionName   string      `json:"action_name"`
	Description  string      `json:"description"`
	APIEndpoint  string      `json:"api_endpoint"`
	APIService   string      `json:"api_service"`
	QueryInputs  []FormValue `json:"query_inputs"`
	QueryOutputs []FormValue `json:"query_outputs"`
	Auth         []AuthPair  `json:"auth"`
}

// Normalize converts the raw form into a persistable ActionDefinition. The
// form's "API" action type maps to api_call, anything else to query_database.
func (f ActionForm) Normalize() ActionDefinition {
	actionType := ActionQueryDatabase
	if f.ActionType == "API" {
		actionType = ActionAPICall
	}

	inputs := make([]string, 0, len(f.QueryInputs))
	for _, in := range f.QueryInputs {
		inputs = append(inputs, in.Value)
	}
	outputs := make([]string, 0, len(f.QueryOutputs))
	for _, out := range f.QueryOutputs {
		outputs = append(outputs, out.Value)
	}
	auth := make(map[string]string, len(f.Auth))
	for _, pair := range f.Auth {
		auth[pair.Key] = pair.Value
	}

	return ActionDefinition{
		ActionType:        actionType,
		ActionName:        f.ActionName,
		ActionDescription: f.Description,
		APIEndpoint:       f.APIEndpoint,
		APIService:        f.APIService,
		Input:             inputs,
		Output:            outputs,
		APIAuth:           auth,
	}
}
