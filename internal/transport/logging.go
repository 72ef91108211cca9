package transport

import (
	applog "beatmap/internal/log"
	"encoding/json"
)

// LoggingTransport implements the Transport interface by logging data to
// the application logger.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received data at debug level as JSON, falling back to the
// raw value when it cannot be marshaled.
func (lt *LoggingTransport) Send(data any) error {
	if !applog.Enabled(applog.LevelDebug) {
		return nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		applog.Debugf("Transport: Received (%T): %+v (JSON marshal error: %v)", data, data, err)
		return nil
	}
	applog.Debugf("Transport: Received (%T): %s", data, jsonData)
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	applog.Debugf("Transport: LoggingTransport closed")
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
