package relay

import "encoding/json"

type Kind string

const (
	KindAdd              Kind = "add"
	KindUpdate           Kind = "update"
	KindScratchpadUpdate Kind = "scratchpad_update" // only on collections built WithScratchpadUpdates
	KindRemove           Kind = "remove"
	KindSnapshot         Kind = "snapshot"
	KindError            Kind = "error"
)

// Message is the envelope exchanged with clients. Record carries one
// lww.Record for add and update kinds; Snapshot carries a whole cmap.Map.
type Message struct {
	Type       Kind            `json:"type"`
	Collection string          `json:"collection,omitempty"`
	ID         string          `json:"id,omitempty"`
	Record     json.RawMessage `json:"record,omitempty"`
	Snapshot   json.RawMessage `json:"snapshot,omitempty"`
	Error      string          `json:"error,omitempty"`
}
