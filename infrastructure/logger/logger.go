package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

var logger = log.New()

func init() {
	logger.Out = os.Stdout
	logger.Formatter = &log.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
	}
	logger.SetLevel(log.DebugLevel)

	// LOG_TO_FILE=true writes to logs/<date><env>.log instead of stdout.
	if os.Getenv("LOG_TO_FILE") == "true" {
		if f, err := openLogFile(os.Getenv("ENV")); err != nil {
			logger.WithField("error", err).Warn("Failed to open log file, falling back to stdout")
		} else {
			logger.Out = f
		}
	}
}

func openLogFile(env string) (io.Writer, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	logsDir := filepath.Join(cwd, "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, err
	}
	name := fmt.Sprintf("%s%s.log", time.Now().Format("2006-01-02"), env)
	return os.OpenFile(filepath.Join(logsDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
}

// Configure applies the format ("json" or "text") and level from configuration.
// Unknown values leave the current setting in place.
func Configure(format, level string) {
	switch strings.ToLower(format) {
	case "text":
		logger.Formatter = &log.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339Nano}
	case "json", "":
		logger.Formatter = &log.JSONFormatter{TimestampFormat: time.RFC3339Nano}
	}
	if level == "" {
		return
	}
	if lvl, err := log.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.WithField("level", level).Warn("Unknown log level, keeping current")
	}
}

// SetOutput redirects the logger, mostly for tests.
func SetOutput(w io.Writer) {
	logger.Out = w
}

func GetLogger() *log.Entry {
	function, file, line, _ := runtime.Caller(1)

	functionObject := runtime.FuncForPC(function)
	entry := logger.WithFields(log.Fields{
		"requestId": time.Now().UnixNano() / int64(time.Millisecond),
		"function":  functionObject.Name(),
		"file":      file,
		"line":      line,
	})

	return entry
}
