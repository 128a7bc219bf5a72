package response

import (
	"fmt"
	"net/http"
	"strings"
)

const (
	SSEDone        = "[DONE]"
	SSEErrorPrefix = "[ERROR] "
)

// SSEWriter frames text as Server-Sent-Events data blocks and flushes after
// each one.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, bool) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	return &SSEWriter{w: w, flusher: f}, true
}

func (s *SSEWriter) WriteHeaders(extra map[string]string) {
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	for k, v := range extra {
		h.Set(k, v)
	}
	s.w.WriteHeader(http.StatusOK)
	s.flusher.Flush()
}

// Data writes one event. Every line of data becomes its own "data:" line
// so embedded newlines survive framing.
func (s *SSEWriter) Data(data string) error {
	if err := WriteSSE(s.w, "", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *SSEWriter) Done() error {
	return s.Data(SSEDone)
}

func (s *SSEWriter) Error(msg string) error {
	msg = strings.ReplaceAll(msg, "\n", " ")
	return s.Data(SSEErrorPrefix + msg)
}

func WriteSSE(w http.ResponseWriter, event string, data string) error {
	if strings.TrimSpace(event) != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", strings.TrimSpace(event)); err != nil {
			return err
		}
	}
	for _, line := range strings.Split(data, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w, "\n")
	return err
}
