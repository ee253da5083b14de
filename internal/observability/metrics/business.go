package metrics

import (
	"sync"
	"time"
)

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordCommand records an operator command (create, start, stop, save_options).
func RecordCommand(command string, err error) {
	CommandsTotal.WithLabelValues(command, result(err)).Inc()
}

// LiveClientConnected increments the live client gauge.
// The returned func decrements it; later calls are no-ops.
func LiveClientConnected() (disconnected func()) {
	LiveClients.Inc()
	var once sync.Once
	return func() {
		once.Do(LiveClients.Dec)
	}
}

// RecordProbe records a seed URL probe.
// contentType is empty when the probe failed before detection.
func RecordProbe(contentType string, err error, duration time.Duration, size int64) {
	if contentType == "" {
		contentType = "unknown"
	}
	ProbeTotal.WithLabelValues(contentType, result(err)).Inc()
	ProbeDuration.Observe(duration.Seconds())
	if size > 0 {
		ProbeSize.Observe(float64(size))
	}
}
