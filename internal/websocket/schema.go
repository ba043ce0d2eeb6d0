package websocket

import (
	"github.com/stemsi/exstem-lifecycle/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError    Event = "error"
	EventSnapshot Event = "snapshot"
	EventExam     Event = "exam_event"
	EventPong     Event = "pong"
)

// SnapshotResponse is sent once after the upgrade so clients start from the
// current status instead of waiting for the next change.
type SnapshotResponse struct {
	Event  Event            `json:"event"`
	Exam   *model.Exam      `json:"exam"`
	Status model.ExamStatus `json:"status"`
}

// ExamEventResponse relays a lifecycle event published on the exam channel.
type ExamEventResponse struct {
	Event Event           `json:"event"`
	Data  model.ExamEvent `json:"data"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
