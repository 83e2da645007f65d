package logging

import "fmt"

// Delivery failures are internal bookkeeping: the buffer converts every one
// of them into a retry or persistence action, and none reach a producer.
// The types exist so that tests and logs can tell the failure classes apart.

// InvalidResponseError reports a push that reached the endpoint but was
// answered with a non-2xx status.
type InvalidResponseError struct {
	Status int
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("endpoint returned status %d", e.Status)
}

// NetworkError reports a transport-level failure (connection, DNS, timeout).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network failure: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// EncodingError reports a failure to marshal the wire payload.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string { return fmt.Sprintf("payload encoding failed: %v", e.Err) }
func (e *EncodingError) Unwrap() error { return e.Err }

// CompressionError reports a failure while compressing the encoded payload.
type CompressionError struct {
	Err error
}

func (e *CompressionError) Error() string { return fmt.Sprintf("compression failed: %v", e.Err) }
func (e *CompressionError) Unwrap() error { return e.Err }

// PersistenceError reports a failure of the durable store. It is logged and
// absorbed: persistence problems never abort startup or shutdown.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }
