package config

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// InitLogger initializes and returns a structured logger.
// format "console" switches stdout to a human readable writer; a non-empty
// file additionally tees JSON lines into a rotating log file.
func InitLogger(level, format, file string) zerolog.Logger {
	parsedLevel, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsedLevel == zerolog.NoLevel {
		parsedLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(parsedLevel)

	var out io.Writer = os.Stdout
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}
	}

	if file = strings.TrimSpace(file); file != "" {
		out = zerolog.MultiLevelWriter(out, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    25,
			MaxBackups: 3,
			Compress:   true,
		})
	}

	return zerolog.New(out).With().Timestamp().Logger()
}
