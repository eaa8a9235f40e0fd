package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// RebuildRequest asks the rollup worker to regenerate one period's
// summary rows. Requests are hints: duplicates are harmless because
// rebuilds are idempotent.
type RebuildRequest struct {
	Year        int       `json:"year"`
	Month       int       `json:"month"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewRebuildRequest builds a request stamped with the current time.
func NewRebuildRequest(year, month int) *RebuildRequest {
	return &RebuildRequest{Year: year, Month: month, RequestedAt: time.Now().UTC()}
}

func (m *RebuildRequest) Validate() error {
	if m.Year < 1 {
		return fmt.Errorf("invalid year %d", m.Year)
	}
	if m.Month < 1 || m.Month > 12 {
		return fmt.Errorf("invalid month %d", m.Month)
	}
	return nil
}

func (m *RebuildRequest) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RebuildRequestFromJSON(data []byte) (*RebuildRequest, error) {
	var m RebuildRequest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal rebuild request: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
