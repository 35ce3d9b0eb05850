package slacksink

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOptions is returned by New when the sink configuration is unusable.
	ErrInvalidOptions = errors.New("slacksink: invalid options")

	// ErrInvalidLevel is returned when a level name cannot be parsed.
	ErrInvalidLevel = errors.New("slacksink: invalid log level")

	// ErrDelivery wraps transport failures while posting a message.
	ErrDelivery = errors.New("slacksink: delivery failed")

	// ErrClientClosed is returned by a WebhookClient used after Close.
	ErrClientClosed = errors.New("slacksink: webhook client closed")

	// ErrSinkClosed is returned by Flush on a sink that has been shut down.
	ErrSinkClosed = errors.New("slacksink: sink closed")

	// ErrShutdownTimeout is returned by Shutdown when queued events had to be discarded.
	ErrShutdownTimeout = errors.New("slacksink: shutdown timed out")
)

// DeliveryError reports a webhook response outside the 2xx range.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("slacksink: webhook returned status %d", e.StatusCode)
	}

	return fmt.Sprintf("slacksink: webhook returned status %d: %s", e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrDelivery) match rejected messages as well as transport failures.
func (e *DeliveryError) Is(target error) bool {
	return target == ErrDelivery
}

func invalidOptionf(format string, v ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidOptions, fmt.Sprintf(format, v...))
}
