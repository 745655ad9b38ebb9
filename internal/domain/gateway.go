package domain

// ============================================================
// AI gateway
// ============================================================

// GatewayTask identifies the kind of text the gateway is asked to produce.
type GatewayTask string

const (
	TaskClassifyDispute  GatewayTask = "classify_dispute"
	TaskSuggestAction    GatewayTask = "suggest_action"
	TaskDraftResponse    GatewayTask = "draft_response"
	TaskExplainStatement GatewayTask = "explain_statement"
)

// GatewayRequest is the payload sent to the AI gateway.
type GatewayRequest struct {
	Task      GatewayTask `json:"task"`
	Prompt    string      `json:"prompt"`
	Context   any         `json:"context,omitempty"`
	MaxTokens int         `json:"max_tokens"`
}

// GatewayResponse is what the gateway returns on success.
type GatewayResponse struct {
	Text       string     `json:"text"`
	TokensUsed TokenUsage `json:"tokens_used"`
}

// TokenUsage tracks LLM token consumption for cost monitoring.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GeneratedText is text produced either by the gateway or by a static fallback.
type GeneratedText struct {
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
	Reason   string `json:"fallback_reason,omitempty"`
}
