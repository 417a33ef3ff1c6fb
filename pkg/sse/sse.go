// Package sse parses server-sent-event streams into protocol events and
// accumulates the incremental tool-call state they carry. Providers emit
// tool-call names, ids, and argument fragments across several event shapes;
// the Collector reassembles them so a harness can emit one complete call.
package sse

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"godex/pkg/protocol"
)

// Event is one parsed stream event: the raw line for logging and the
// decoded protocol value.
type Event struct {
	Raw   json.RawMessage
	Value protocol.StreamEvent
}

// ParseStream reads an SSE body and calls emit for every decoded event.
// Comment lines and the [DONE] sentinel are skipped; undecodable payloads
// are dropped rather than aborting the stream.
func ParseStream(r io.Reader, emit func(Event) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var pending []string
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		payload := strings.TrimSpace(strings.Join(pending, "\n"))
		pending = pending[:0]
		if payload == "" || payload == "[DONE]" {
			return nil
		}
		var value protocol.StreamEvent
		if err := json.Unmarshal([]byte(payload), &value); err != nil {
			return nil
		}
		return emit(Event{Raw: json.RawMessage(payload), Value: value})
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if err := flush(); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
			// comment / keepalive
		case strings.HasPrefix(line, "data:"):
			pending = append(pending, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return flush()
}

// callState is the accumulated view of one tool call.
type callState struct {
	name    string
	args    strings.Builder
	emitted bool
}

// Collector reassembles streamed output: text deltas into one string, and
// tool-call fragments (which may arrive keyed by call id, by item id, or as
// whole-argument snapshots) into per-call argument buffers.
type Collector struct {
	calls        map[string]*callState
	itemToCallID map[string]string
	// orphanArgs holds argument fragments that arrived keyed only by an
	// item id before that item was linked to a call id.
	orphanArgs map[string]*strings.Builder
	text       strings.Builder
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		calls:        map[string]*callState{},
		itemToCallID: map[string]string{},
		orphanArgs:   map[string]*strings.Builder{},
	}
}

// Observe folds one stream event into the collector's state.
func (c *Collector) Observe(ev protocol.StreamEvent) {
	switch ev.Type {
	case "response.output_item.added":
		if ev.Item != nil {
			c.linkItem(ev.Item)
		}
	case "response.function_call_arguments.delta":
		c.observeArgsDelta(ev)
	case "response.function_call_arguments.done":
		c.observeArgsDone(ev)
	case "response.output_text.delta":
		c.text.WriteString(ev.Delta)
	case "response.content_part.added":
		if ev.Part != nil && ev.Part.Type == "output_text" {
			c.text.WriteString(ev.Part.Text)
		}
	}
}

// linkItem records an item-to-call binding and adopts any fragments that
// arrived before the binding was known. An argument snapshot on the item
// seeds the buffer only when nothing streamed in yet.
func (c *Collector) linkItem(item *protocol.OutputItem) {
	if item.CallID == "" {
		return
	}
	if item.ID != "" {
		c.itemToCallID[item.ID] = item.CallID
		if pending, ok := c.orphanArgs[item.ID]; ok {
			c.call(item.CallID).args.WriteString(pending.String())
			delete(c.orphanArgs, item.ID)
		}
	}
	if item.Name != "" {
		c.call(item.CallID).name = item.Name
	}
	if item.Type == "function_call" && item.Arguments != "" {
		if call := c.call(item.CallID); call.args.Len() == 0 {
			call.args.WriteString(item.Arguments)
		}
	}
}

func (c *Collector) observeArgsDelta(ev protocol.StreamEvent) {
	if ev.Delta == "" {
		return
	}
	callID := ev.CallID
	if callID == "" {
		callID = c.itemToCallID[ev.ItemID]
	}
	if callID != "" {
		c.call(callID).args.WriteString(ev.Delta)
		return
	}
	if ev.ItemID != "" {
		c.orphan(ev.ItemID).WriteString(ev.Delta)
	}
}

func (c *Collector) observeArgsDone(ev protocol.StreamEvent) {
	if ev.Item != nil {
		c.linkItem(ev.Item)
		if ev.Item.CallID != "" && ev.Item.Arguments != "" {
			if call := c.call(ev.Item.CallID); call.args.Len() == 0 {
				call.args.WriteString(ev.Item.Arguments)
			}
		}
	}
	if ev.CallID != "" && ev.Name != "" {
		c.call(ev.CallID).name = ev.Name
	}
	if ev.Arguments == "" {
		return
	}
	// The done event carries a full-argument snapshot; it only wins when
	// nothing was accumulated from deltas.
	switch {
	case ev.CallID != "":
		if call := c.call(ev.CallID); call.args.Len() == 0 {
			call.args.WriteString(ev.Arguments)
		}
	case ev.ItemID != "":
		if callID := c.itemToCallID[ev.ItemID]; callID != "" {
			if call := c.call(callID); call.args.Len() == 0 {
				call.args.WriteString(ev.Arguments)
			}
		} else if b := c.orphan(ev.ItemID); b.Len() == 0 {
			b.WriteString(ev.Arguments)
		}
	}
}

// FunctionArgs returns the accumulated argument JSON for a call id.
func (c *Collector) FunctionArgs(callID string) string {
	if call, ok := c.calls[callID]; ok {
		return call.args.String()
	}
	return ""
}

// FunctionName returns the tool name recorded for a call id.
func (c *Collector) FunctionName(callID string) string {
	if call, ok := c.calls[callID]; ok {
		return call.name
	}
	return ""
}

// CallIDForItem returns the call id an item id was linked to, if any.
func (c *Collector) CallIDForItem(itemID string) string {
	return c.itemToCallID[itemID]
}

// AllFunctionArgs returns every call's accumulated arguments by call id.
func (c *Collector) AllFunctionArgs() map[string]string {
	out := make(map[string]string, len(c.calls))
	for id, call := range c.calls {
		out[id] = call.args.String()
	}
	return out
}

// OutputText returns the concatenated text deltas seen so far.
func (c *Collector) OutputText() string {
	return c.text.String()
}

// MarkToolCallEmitted records that a call was surfaced to the caller and
// reports whether this is the first time. Providers often announce the same
// completed call through more than one event shape; this dedupes them.
func (c *Collector) MarkToolCallEmitted(callID string) bool {
	if callID == "" {
		return true
	}
	call := c.call(callID)
	if call.emitted {
		return false
	}
	call.emitted = true
	return true
}

func (c *Collector) call(callID string) *callState {
	if call, ok := c.calls[callID]; ok {
		return call
	}
	call := &callState{}
	c.calls[callID] = call
	return call
}

func (c *Collector) orphan(itemID string) *strings.Builder {
	if b, ok := c.orphanArgs[itemID]; ok {
		return b
	}
	b := &strings.Builder{}
	c.orphanArgs[itemID] = b
	return b
}
