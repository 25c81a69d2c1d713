package utils

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is the process-wide structured logger
var Logger = logrus.New()

func init() {
	Logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	Logger.SetOutput(os.Stdout)
	Logger.SetLevel(logrus.InfoLevel)
}

// ConfigureLogger sets the log level by name, keeping info on unknown names
func ConfigureLogger(level string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		Logger.WithField("level", level).Warn("Unknown log level, using info")
		parsed = logrus.InfoLevel
	}
	Logger.SetLevel(parsed)
}
