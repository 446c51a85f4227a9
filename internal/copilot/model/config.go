package model

// ================ Config ================

// RouterModelConfig parameterizes the model used for routing, gating and
// extraction calls. Routing wants low temperature.
type RouterModelConfig struct {
	Model       string  `envconfig:"ROUTER_MODEL" default:"gemini-2.0-flash"`
	MaxTokens   int     `envconfig:"ROUTER_MAX_TOKENS" default:"1024"`
	Temperature float32 `envconfig:"ROUTER_TEMPERATURE" default:"0.0"`
}

// ResponseModelConfig parameterizes the model used for user-facing answers,
// follow-up generation and summarization.
type ResponseModelConfig struct {
	Model       string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.0-flash"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"2048"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.4"`
}

// AssistantConfig carries the copilot persona rendered into prompts.
type AssistantConfig struct {
	Name     string `envconfig:"ASSISTANT_NAME" default:"Waffles Copilot"`
	Business string `envconfig:"ASSISTANT_BUSINESS" default:"CRM"`
}

// StorageConfig locates the durable flat files and uploaded datasets.
type StorageConfig struct {
	DataDir      string `envconfig:"COPILOT_DATA_DIR" default:"./text_db"`
	ActionsFile  string `envconfig:"COPILOT_ACTIONS_FILE" default:"actions.json"`
	DatasetsFile string `envconfig:"COPILOT_DATASETS_FILE" default:"datasets.json"`
	UploadDir    string `envconfig:"COPILOT_UPLOAD_DIR" default:"./csv_db"`
}

// SessionConfig selects the session store backend. "memory" loses history on
// restart, which is acceptable for the target scale; "redis" survives it.
type SessionConfig struct {
	Backend string `envconfig:"SESSION_BACKEND" default:"memory"`
	TTL     string `envconfig:"SESSION_TTL" default:"24h"`
}

// LimiterConfig throttles outbound LLM calls.
type LimiterConfig struct {
	RequestsPerSecond float64 `envconfig:"LLM_REQUESTS_PER_SECOND" default:"5"`
	Burst             int     `envconfig:"LLM_BURST" default:"10"`
}

// TabularConfig bounds how much of each CSV file is rendered into prompts.
type TabularConfig struct {
	MaxRows int `envconfig:"TABULAR_MAX_ROWS" default:"200"`
}

// KnowledgeConfig parameterizes the context provider.
type KnowledgeConfig struct {
	DocumentsKey string `envconfig:"KNOWLEDGE_DOCUMENTS_KEY" default:"knowledge:documents"`
	TopK         int    `envconfig:"KNOWLEDGE_TOP_K" default:"4"`
}
