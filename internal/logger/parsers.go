package logger

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/aleister1102/webmirror/internal/errorwrapper"
)

// LogLevelParser handles parsing of log levels
type LogLevelParser struct{}

// NewLogLevelParser creates a new log level parser
func NewLogLevelParser() *LogLevelParser {
	return &LogLevelParser{}
}

// ParseLevel parses string log level to zerolog.Level
func (llp *LogLevelParser) ParseLevel(levelStr string) (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(levelStr))
	if err != nil {
		return zerolog.InfoLevel, errorwrapper.WrapError(err, "invalid log level")
	}
	return level, nil
}

// LogFormatParser handles parsing of log formats
type LogFormatParser struct{}

// NewLogFormatParser creates a new log format parser
func NewLogFormatParser() *LogFormatParser {
	return &LogFormatParser{}
}

// ParseFormat parses string format to LogFormat
func (lfp *LogFormatParser) ParseFormat(formatStr string) LogFormat {
	switch strings.ToLower(formatStr) {
	case "json":
		return FormatJSON
	case "console":
		return FormatConsole
	case "text":
		return FormatText
	default:
		return FormatConsole
	}
}

// ConfigConverter converts the serializable file config into a LoggerConfig
type ConfigConverter struct {
	levelParser  *LogLevelParser
	formatParser *LogFormatParser
}

// NewConfigConverter creates a new config converter
func NewConfigConverter() *ConfigConverter {
	return &ConfigConverter{
		levelParser:  NewLogLevelParser(),
		formatParser: NewLogFormatParser(),
	}
}

// ConvertFileConfig converts a FileLogConfig into a LoggerConfig
func (cc *ConfigConverter) ConvertFileConfig(cfg FileLogConfig) (LoggerConfig, error) {
	out := DefaultLoggerConfig()

	if cfg.LogLevel != "" {
		level, err := cc.levelParser.ParseLevel(cfg.LogLevel)
		if err != nil {
			return out, err
		}
		out.Level = level
	}

	if cfg.LogFormat != "" {
		out.Format = cc.formatParser.ParseFormat(cfg.LogFormat)
	}

	if cfg.LogFile != "" {
		out.EnableFile = true
		out.FilePath = cfg.LogFile
	}
	if cfg.MaxLogSizeMB > 0 {
		out.MaxSizeMB = cfg.MaxLogSizeMB
	}
	if cfg.MaxLogBackups > 0 {
		out.MaxBackups = cfg.MaxLogBackups
	}

	return out, nil
}
