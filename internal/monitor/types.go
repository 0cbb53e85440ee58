package monitor

import (
	"time"

	"flip-advisor/internal/history"
	"flip-advisor/internal/strategy"
	"flip-advisor/internal/suggestion"
)

// EventType 表示监控事件类型。
type EventType string

const (
	EventSuggestion EventType = "suggestion"
	EventTrade      EventType = "trade"
	EventError      EventType = "error"
)

// Event 封装通用监控事件。
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// SuggestionPayload 记录一次建议及其选品统计。
type SuggestionPayload struct {
	AccountID  string                `json:"account_id"`
	Suggestion suggestion.Suggestion `json:"suggestion"`
	Best       *strategy.Candidate   `json:"best,omitempty"`
	Evaluated  int                   `json:"evaluated,omitempty"`
	Qualified  int                   `json:"qualified,omitempty"`
	Rejections []strategy.TallyEntry `json:"rejections,omitempty"`
}

// TradePayload 记录客户端上报的交易。
type TradePayload struct {
	AccountID string        `json:"account_id"`
	Trade     history.Trade `json:"trade"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}
