package out

import (
	"encoding/json"
)

type Envelope struct {
	Type string          `json:"type"` // e.g. "transfer"
	TS   int64           `json:"ts"`   // unix milli
	Data json.RawMessage `json:"data"`
}
