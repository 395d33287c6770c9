package logging

import "github.com/hashicorp/go-hclog"

var logger hclog.Logger

// SetLogger sets the process-wide logger. Call it once at startup, before
// any package asks for the logger.
func SetLogger(l hclog.Logger) {
	logger = l
}

// GetLogger returns the process-wide logger, initializing a default one on
// first use.
func GetLogger() hclog.Logger {
	if logger == nil {
		logger = hclog.New(&hclog.LoggerOptions{
			Name:  "rowmark",
			Level: hclog.Info,
		})
	}
	return logger
}
