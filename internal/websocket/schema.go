package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionMark Action = "mark"
	ActionPing Action = "ping"
)

// RequestEnvelope carries every client message. Fields unused by an action
// are ignored.
type RequestEnvelope struct {
	Action  Action `json:"action"`
	ClassID string `json:"class_id,omitempty"`
	Date    string `json:"date,omitempty"` // YYYY-MM-DD, empty means today
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError    Event = "error"
	EventSnapshot Event = "snapshot"
	EventMarked   Event = "marked"
	EventPong     Event = "pong"
)

// SnapshotResponse is pushed on connect and after every completion change.
type SnapshotResponse struct {
	Event    Event       `json:"event"`
	Seq      uint64      `json:"seq"`
	Date     string      `json:"date"`
	ClassIDs interface{} `json:"class_ids"`
}

// MarkedResponse acknowledges a mark action.
type MarkedResponse struct {
	Event      Event       `json:"event"`
	Completion interface{} `json:"completion"`
}

type ErrorResponse struct {
	Event  Event             `json:"event"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
