package logging

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/telemetrykit/lokibuf/internal/logging/retrypolicy"
)

// Config is the immutable configuration of the delivery engine. Validate it
// once at construction; the engine never mutates it afterwards.
type Config struct {
	// Endpoint is the full push URL, e.g. http://loki:3100/loki/api/v1/push.
	Endpoint    string
	App         string
	Environment string

	// BatchSize entries in the live buffer trigger a flush.
	BatchSize int
	// FlushInterval is the period of the timer-driven flush.
	FlushInterval time.Duration
	// MaxBufferSize caps the live buffer; the oldest entry is evicted when a
	// new one arrives at capacity.
	MaxBufferSize int

	ExtraLabels        map[string]string
	Auth               AuthMethod
	CompressionEnabled bool

	// DeviceInfo is optional; when set, its two values are added as stream
	// labels on every push.
	DeviceInfo DeviceInfoProvider

	// Persistence is optional; without it, batches that exhaust their retry
	// budget are dropped.
	Persistence Store

	Retry retrypolicy.Policy
}

func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("config: endpoint is required")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("config: batch size must be at least 1, got %d", c.BatchSize)
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("config: flush interval must be positive, got %s", c.FlushInterval)
	}
	if c.MaxBufferSize < c.BatchSize {
		return fmt.Errorf("config: max buffer size %d must be at least batch size %d",
			c.MaxBufferSize, c.BatchSize)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("config: max retries must not be negative, got %d", c.Retry.MaxRetries)
	}
	return nil
}

type authKind int

const (
	authNone authKind = iota
	authBasic
	authBearer
	authCustom
)

// AuthMethod resolves to the HTTP headers attached to every push request.
// Construct it with one of AuthNone, AuthBasic, AuthBearer or AuthCustom.
type AuthMethod struct {
	kind    authKind
	user    string
	pass    string
	token   string
	headers map[string]string
}

func AuthNone() AuthMethod { return AuthMethod{kind: authNone} }

func AuthBasic(user, pass string) AuthMethod {
	return AuthMethod{kind: authBasic, user: user, pass: pass}
}

func AuthBearer(token string) AuthMethod {
	return AuthMethod{kind: authBearer, token: token}
}

func AuthCustom(headers map[string]string) AuthMethod {
	copied := make(map[string]string, len(headers))
	for k, v := range headers {
		copied[k] = v
	}
	return AuthMethod{kind: authCustom, headers: copied}
}

// Headers returns the header set for this method. Never nil.
func (a AuthMethod) Headers() map[string]string {
	switch a.kind {
	case authBasic:
		credentials := base64.StdEncoding.EncodeToString([]byte(a.user + ":" + a.pass))
		return map[string]string{"Authorization": "Basic " + credentials}
	case authBearer:
		return map[string]string{"Authorization": "Bearer " + a.token}
	case authCustom:
		headers := make(map[string]string, len(a.headers))
		for k, v := range a.headers {
			headers[k] = v
		}
		return headers
	default:
		return map[string]string{}
	}
}
