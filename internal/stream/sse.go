package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// Frame encodes one server-sent event: "event: <name>\ndata: <json>\n\n".
func Frame(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "event: %s\ndata: %s\n\n", ev.Name, data)
	return buf.Bytes(), nil
}

// SetHeaders prepares w for an event stream.
func SetHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// Write copies events to w until the channel closes, flushing after every
// frame. It returns the first write error; the caller's request context
// then stops the producer.
func Write(w http.ResponseWriter, events <-chan Event) error {
	flusher, _ := w.(http.Flusher)
	for ev := range events {
		frame, err := Frame(ev)
		if err != nil {
			return err
		}
		if _, err := w.Write(frame); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	return nil
}

// Parse splits an event-stream body back into events with raw JSON data.
// It is used by clients and tests.
func Parse(body []byte) ([]Event, error) {
	var out []Event
	for _, block := range bytes.Split(bytes.TrimSpace(body), []byte("\n\n")) {
		if len(block) == 0 {
			continue
		}
		var ev Event
		for _, line := range bytes.Split(block, []byte("\n")) {
			switch {
			case bytes.HasPrefix(line, []byte("event: ")):
				ev.Name = string(line[len("event: "):])
			case bytes.HasPrefix(line, []byte("data: ")):
				ev.Data = json.RawMessage(append([]byte(nil), line[len("data: "):]...))
			}
		}
		if ev.Name == "" {
			return nil, fmt.Errorf("frame without event name: %q", block)
		}
		out = append(out, ev)
	}
	return out, nil
}
