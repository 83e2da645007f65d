package loki

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/telemetrykit/lokibuf/internal/logging"
	"github.com/telemetrykit/lokibuf/internal/logging/compress"
)

type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

type Payload struct {
	Streams []Stream `json:"streams"`
}

// Sender formats a batch of entries into one Loki push payload and performs
// a single POST. It holds no mutable state and no retry logic; a failed send
// is reported to the caller as one of the typed delivery errors.
type Sender struct {
	config     logging.Config
	httpClient *http.Client
}

func NewSender(config logging.Config) *Sender {
	return &Sender{
		config: config,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Send delivers one batch. An empty batch is a no-op with no network call.
func (s *Sender) Send(entries []logging.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	body, err := json.Marshal(s.createPayload(entries))
	if err != nil {
		return &logging.EncodingError{Err: err}
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if s.config.CompressionEnabled {
		compressed, err := compress.Gzip(body)
		if err != nil {
			return &logging.CompressionError{Err: err}
		}
		body = compressed
		headers["Content-Encoding"] = "gzip"
	}
	for k, v := range s.config.Auth.Headers() {
		headers[k] = v
	}

	req, err := http.NewRequest(http.MethodPost, s.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return &logging.NetworkError{Err: err}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &logging.NetworkError{Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &logging.InvalidResponseError{Status: resp.StatusCode}
	}
	return nil
}

// createPayload groups entries into one stream per (app, environment, level).
// App and environment are fixed for a sender, so the level alone keys the
// groups. Streams appear in first-seen order and values keep input order, so
// the payload built from a given batch is deterministic.
func (s *Sender) createPayload(entries []logging.LogEntry) Payload {
	streams := make(map[logging.Level]*Stream)
	order := make([]logging.Level, 0, 4)

	for _, entry := range entries {
		stream, exists := streams[entry.Level]
		if !exists {
			stream = &Stream{Stream: s.createLabels(entry.Level)}
			streams[entry.Level] = stream
			order = append(order, entry.Level)
		}

		timestamp := fmt.Sprintf("%d", entry.Timestamp.UnixNano())
		stream.Values = append(stream.Values, [2]string{timestamp, formatLine(entry)})
	}

	payload := Payload{Streams: make([]Stream, 0, len(order))}
	for _, level := range order {
		payload.Streams = append(payload.Streams, *streams[level])
	}
	return payload
}

func (s *Sender) createLabels(level logging.Level) map[string]string {
	labels := map[string]string{
		"app":         s.config.App,
		"environment": s.config.Environment,
		"level":       level.String(),
	}

	if s.config.DeviceInfo != nil {
		labels["device_model"] = s.config.DeviceInfo.DeviceModel()
		labels["os_version"] = s.config.DeviceInfo.OSVersion()
	}

	// Extra labels win on collision: they are the operator's overrides.
	for k, v := range s.config.ExtraLabels {
		labels[k] = v
	}

	return labels
}

// formatLine renders the display line for one entry. Metadata keys are
// sorted so the same entry always serializes to the same line.
func formatLine(entry logging.LogEntry) string {
	if len(entry.Metadata) == 0 {
		return entry.Message
	}

	keys := make([]string, 0, len(entry.Metadata))
	for k := range entry.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+entry.Metadata[k])
	}
	return entry.Message + " [" + strings.Join(pairs, " ") + "]"
}
