package domain

import (
	"encoding/json"
	"fmt"
)

// EventType tags a StreamEvent on the wire.
type EventType string

// Stream event types.
const (
	EventStatus        EventType = "status"
	EventPlan          EventType = "plan"
	EventFinalResponse EventType = "final_response"
	EventError         EventType = "error"
)

// StreamEvent is one progress or result notification of a pipeline run.
// Exactly one of Message, Plan or Response is meaningful, selected by Type.
type StreamEvent struct {
	Type     EventType
	Message  string
	Plan     *ExecutionPlan
	Response *Response
}

// StatusEvent reports pipeline progress.
func StatusEvent(msg string) StreamEvent {
	return StreamEvent{Type: EventStatus, Message: msg}
}

// PlanEvent publishes the execution plan.
func PlanEvent(p ExecutionPlan) StreamEvent {
	return StreamEvent{Type: EventPlan, Plan: &p}
}

// FinalEvent carries the answer and terminates the stream.
func FinalEvent(r Response) StreamEvent {
	return StreamEvent{Type: EventFinalResponse, Response: &r}
}

// ErrorEvent terminates the stream after an unexpected failure.
func ErrorEvent(msg string) StreamEvent {
	return StreamEvent{Type: EventError, Message: msg}
}

// IsTerminal reports whether no event may follow e.
func (e StreamEvent) IsTerminal() bool {
	return e.Type == EventFinalResponse || e.Type == EventError
}

// wireEvent is the flat JSON shape: {"type":..., <payload fields>}.
type wireEvent struct {
	Type    EventType      `json:"type"`
	Message string         `json:"message,omitempty"`
	Plan    *ExecutionPlan `json:"plan,omitempty"`
	*Response
}

// MarshalJSON implements json.Marshaler.
func (e StreamEvent) MarshalJSON() ([]byte, error) {
	w := wireEvent{Type: e.Type}
	switch e.Type {
	case EventStatus, EventError:
		w.Message = e.Message
	case EventPlan:
		w.Plan = e.Plan
	case EventFinalResponse:
		w.Response = e.Response
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *StreamEvent) UnmarshalJSON(b []byte) error {
	var w wireEvent
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch w.Type {
	case EventStatus, EventError:
		*e = StreamEvent{Type: w.Type, Message: w.Message}
	case EventPlan:
		*e = StreamEvent{Type: w.Type, Plan: w.Plan}
	case EventFinalResponse:
		if w.Response == nil {
			w.Response = &Response{}
		}
		*e = StreamEvent{Type: w.Type, Response: w.Response}
	default:
		return fmt.Errorf("unknown event type %q", w.Type)
	}
	return nil
}
