package loki

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telemetrykit/lokibuf/internal/logging"
	"github.com/telemetrykit/lokibuf/internal/logging/retrypolicy"
	"github.com/telemetrykit/lokibuf/internal/testutils"
)

func testConfig(endpoint string) logging.Config {
	return logging.Config{
		Endpoint:      endpoint,
		App:           "shop",
		Environment:   "production",
		BatchSize:     10,
		FlushInterval: time.Second,
		MaxBufferSize: 100,
		Auth:          logging.AuthNone(),
		Retry:         retrypolicy.New(3, time.Second, time.Minute, 0),
	}
}

func entryAt(ns int64, level logging.Level, message string, metadata map[string]string) logging.LogEntry {
	return logging.NewEntryAt(time.Unix(0, ns), level, message, metadata)
}

func TestSender_Send(t *testing.T) {
	var received Payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sender := NewSender(testConfig(server.URL))

	err := sender.Send([]logging.LogEntry{
		entryAt(1700000000000000000, logging.LevelInfo, "user signed in", nil),
	})
	assert.NoError(t, err)

	require.Len(t, received.Streams, 1)
	assert.Equal(t, map[string]string{
		"app":         "shop",
		"environment": "production",
		"level":       "info",
	}, received.Streams[0].Stream)
	assert.Equal(t, [][2]string{
		{"1700000000000000000", "user signed in"},
	}, received.Streams[0].Values)
}

func TestSender_EmptyBatchNoCall(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	sender := NewSender(testConfig(server.URL))

	assert.NoError(t, sender.Send(nil))
	assert.NoError(t, sender.Send([]logging.LogEntry{}))
	assert.Equal(t, 0, calls)
}

func TestSender_GroupsByLevelInFirstSeenOrder(t *testing.T) {
	sender := NewSender(testConfig("http://loki:3100/loki/api/v1/push"))

	payload := sender.createPayload([]logging.LogEntry{
		entryAt(1, logging.LevelError, "boom", nil),
		entryAt(2, logging.LevelInfo, "ok", nil),
		entryAt(3, logging.LevelError, "boom again", nil),
	})

	require.Len(t, payload.Streams, 2)
	assert.Equal(t, "error", payload.Streams[0].Stream["level"])
	assert.Equal(t, [][2]string{{"1", "boom"}, {"3", "boom again"}}, payload.Streams[0].Values)
	assert.Equal(t, "info", payload.Streams[1].Stream["level"])
	assert.Equal(t, [][2]string{{"2", "ok"}}, payload.Streams[1].Values)
}

func TestSender_MetadataLineFormatting(t *testing.T) {
	entry := entryAt(1, logging.LevelInfo, "Order placed",
		map[string]string{"currency": "USD", "amount": "99.99"})

	assert.Equal(t, "Order placed [amount=99.99 currency=USD]", formatLine(entry))
	assert.Equal(t, "plain", formatLine(entryAt(1, logging.LevelInfo, "plain", nil)))
}

func TestSender_DeviceAndExtraLabels(t *testing.T) {
	config := testConfig("http://loki:3100/loki/api/v1/push")
	config.DeviceInfo = testutils.StaticDeviceInfo{Model: "pixel-9", Version: "android-16"}
	config.ExtraLabels = map[string]string{"team": "payments", "environment": "staging"}

	sender := NewSender(config)
	payload := sender.createPayload([]logging.LogEntry{
		entryAt(1, logging.LevelWarn, "slow request", nil),
	})

	require.Len(t, payload.Streams, 1)
	assert.Equal(t, map[string]string{
		"app":          "shop",
		"environment":  "staging", // extra labels override automatic ones
		"level":        "warn",
		"device_model": "pixel-9",
		"os_version":   "android-16",
		"team":         "payments",
	}, payload.Streams[0].Stream)
}

func TestSender_InvalidResponseStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	sender := NewSender(testConfig(server.URL))
	err := sender.Send([]logging.LogEntry{entryAt(1, logging.LevelInfo, "m", nil)})

	var invalid *logging.InvalidResponseError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, http.StatusTooManyRequests, invalid.Status)
}

func TestSender_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listens anymore

	sender := NewSender(testConfig(server.URL))
	err := sender.Send([]logging.LogEntry{entryAt(1, logging.LevelInfo, "m", nil)})

	var network *logging.NetworkError
	assert.ErrorAs(t, err, &network)
}

func TestSender_CompressedBody(t *testing.T) {
	var received Payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gzip", r.Header.Get("Content-Encoding"))

		reader, err := gzip.NewReader(r.Body)
		require.NoError(t, err)
		body, err := io.ReadAll(reader)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))

		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	config := testConfig(server.URL)
	config.CompressionEnabled = true
	sender := NewSender(config)

	err := sender.Send([]logging.LogEntry{entryAt(7, logging.LevelInfo, "compressed", nil)})
	assert.NoError(t, err)
	require.Len(t, received.Streams, 1)
	assert.Equal(t, [][2]string{{"7", "compressed"}}, received.Streams[0].Values)
}

func TestSender_AuthHeaders(t *testing.T) {
	var authorization, scopeOrg string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization = r.Header.Get("Authorization")
		scopeOrg = r.Header.Get("X-Scope-OrgID")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	bearer := testConfig(server.URL)
	bearer.Auth = logging.AuthBearer("tok123")
	assert.NoError(t, NewSender(bearer).Send([]logging.LogEntry{entryAt(1, logging.LevelInfo, "m", nil)}))
	assert.Equal(t, "Bearer tok123", authorization)

	custom := testConfig(server.URL)
	custom.Auth = logging.AuthCustom(map[string]string{"X-Scope-OrgID": "tenant-7"})
	assert.NoError(t, NewSender(custom).Send([]logging.LogEntry{entryAt(1, logging.LevelInfo, "m", nil)}))
	assert.Equal(t, "tenant-7", scopeOrg)
}
