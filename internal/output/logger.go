package output

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logMaxSizeMB  = 40
	logMaxBackups = 3
	logMaxAgeDays = 7
)

// InitLogger sets up the global zerolog logger on stderr. When logFile is set,
// JSON records are also written to a rotated file.
func InitLogger(debug bool, logFile string) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	var out io.Writer = zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.DateTime,
	}
	if logFile != "" {
		out = zerolog.MultiLevelWriter(out, newRotatingFile(logFile))
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// SetLogOutput redirects the global logger, mostly for tests.
func SetLogOutput(w io.Writer) {
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

func newRotatingFile(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
		MaxAge:     logMaxAgeDays,
		LocalTime:  true,
	}
}
