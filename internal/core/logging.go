package core

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger returns a logger intended to be used for general application logs.
func NewLogger(cfg *Config) (*logrus.Logger, error) {
	logLvl, err := logrus.ParseLevel(cfg.Logging.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	var output io.Writer = os.Stdout
	if cfg.Logging.LogFilePath != "" {
		logFile, err := os.OpenFile(cfg.QualifiedPath(cfg.Logging.LogFilePath), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("opening log file %s: %w", cfg.Logging.LogFilePath, err)
		}
		output = logFile
	}

	return &logrus.Logger{
		Out: output,
		Formatter: &logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			FullTimestamp:   true,
			DisableColors:   cfg.Logging.LogFilePath != "",
		},
		Hooks:        make(logrus.LevelHooks),
		Level:        logLvl,
		ReportCaller: logLvl == logrus.DebugLevel,
	}, nil
}

// NewTestLogger discards everything below panic level. Used by package tests.
func NewTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
