package analysis

import (
	"context"
	"encoding/json"

	"codereview/internal/llm"
)

// eventHook turns llm calls of one run into broker events.
type eventHook struct {
	docID  string
	events *EventBroker
}

var _ llm.PromptHook = (*eventHook)(nil)

func (h *eventHook) Before(_ context.Context, phase, _ string, _ any) {
	h.events.Publish(Event{DocumentID: h.docID, Type: EventLLMRequest, Message: phase})
}

func (h *eventHook) After(_ context.Context, phase string, _ json.RawMessage, err error) {
	msg := phase
	if err != nil {
		msg = phase + ": " + err.Error()
	}
	h.events.Publish(Event{DocumentID: h.docID, Type: EventLLMResponse, Message: msg})
}
