package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// TypeRatesRefresh is the task type that pulls a fresh exchange rate.
const TypeRatesRefresh = "rates:refresh"

// DefaultQueue is the asynq queue every task in this service uses.
const DefaultQueue = "default"

// RefreshPayload records who asked for a refresh.
type RefreshPayload struct {
	RequestedBy string    `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewRefreshTask encodes p into a rates:refresh task.
func NewRefreshTask(p RefreshPayload, opts ...asynq.Option) (*asynq.Task, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode refresh payload: %w", err)
	}
	return asynq.NewTask(TypeRatesRefresh, raw, opts...), nil
}

// DecodeRefreshPayload parses a rates:refresh task payload. An empty payload
// is accepted; cron-registered tasks carry no body beyond the default one.
func DecodeRefreshPayload(raw []byte) (RefreshPayload, error) {
	var p RefreshPayload
	if len(raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return RefreshPayload{}, fmt.Errorf("decode refresh payload: %w", err)
	}
	return p, nil
}
