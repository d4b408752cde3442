package logconfig

import (
	"time"

	logger "github.com/sirupsen/logrus"
)

// This output format is used in tests and local runs (has terminal).
func ConfigDebugLogger() {
	logger.SetReportCaller(true)
	logger.SetLevel(logger.DebugLevel)
	logger.SetFormatter(&logger.TextFormatter{
		ForceColors:            true,
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
		PadLevelText:           true,
	})
}

// This output format is used in production: one JSON object per line,
// timestamped for the log shipper.
func ConfigProductionLogger() {
	logger.SetReportCaller(false)
	logger.SetLevel(logger.InfoLevel)
	logger.SetFormatter(&logger.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})
}
