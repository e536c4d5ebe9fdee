package model

import "time"

// CallKind identifies which kind of remote API call was recorded.
type CallKind string

const (
	CallGenerate CallKind = "generate"
	CallSuggest  CallKind = "suggest"
)

// ProviderCall tracks each call to a paid provider for cost monitoring.
type ProviderCall struct {
	ID         int64     `db:"id" json:"id"`
	RunID      string    `db:"run_id" json:"run_id"`
	ItemID     string    `db:"item_id" json:"item_id"`
	Kind       CallKind  `db:"kind" json:"kind"`
	Provider   string    `db:"provider" json:"provider"`
	Model      string    `db:"model" json:"model"`
	Success    bool      `db:"success" json:"success"`
	DurationMs int64     `db:"duration_ms" json:"duration_ms"`
	Bytes      int64     `db:"bytes" json:"bytes"`
	Error      *string   `db:"error" json:"error,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
