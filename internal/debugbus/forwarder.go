package debugbus

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HTTPForwarder satisfies internal/stream.DebugSink by POSTing each
// event to a remote dashboard's ingest endpoint. Like Bus.Emit, it
// never blocks the caller waiting on the network: every send runs in
// its own short-lived goroutine and failures are silently dropped.
type HTTPForwarder struct {
	url    string
	client *http.Client
}

// NewHTTPForwarder targets url (the dashboard's /ingest endpoint).
func NewHTTPForwarder(url string) *HTTPForwarder {
	return &HTTPForwarder{
		url:    url,
		client: &http.Client{Timeout: 2 * time.Second},
	}
}

// Emit satisfies internal/stream.DebugSink.
func (f *HTTPForwarder) Emit(threadID, phase, detail string) {
	event := Event{
		Timestamp: time.Now(),
		ThreadID:  threadID,
		Event:     EventBody{Type: phase, Detail: detail},
	}
	go f.send(event)
}

func (f *HTTPForwarder) send(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), f.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}
