package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerBuilder_Default(t *testing.T) {
	logger, err := NewLoggerBuilder().Build()
	require.NoError(t, err)
	require.NotNil(t, logger)

	config := logger.GetConfig()
	assert.Equal(t, zerolog.InfoLevel, config.Level)
	assert.Equal(t, FormatConsole, config.Format)
	assert.True(t, config.EnableConsole)
	assert.False(t, config.EnableFile)
}

func TestLoggerBuilder_FileLogging(t *testing.T) {
	logDir := t.TempDir()
	logFile := filepath.Join(logDir, "test.log")

	logger, err := NewLoggerBuilder().
		WithLevel(zerolog.DebugLevel).
		WithFormat(FormatJSON).
		WithFile(logFile, 1, 1).
		WithConsole(false).
		Build()
	require.NoError(t, err)

	logger.GetZerolog().Debug().Msg("this is a test")

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"level":"debug"`)
	assert.Contains(t, string(content), `"message":"this is a test"`)
}

func TestLoggerBuilder_NoWriters(t *testing.T) {
	_, err := NewLoggerBuilder().WithConsole(false).Build()
	assert.Error(t, err)
}

func TestConfigConverter(t *testing.T) {
	converter := NewConfigConverter()
	fileConfig := FileLogConfig{
		LogLevel:      "warn",
		LogFormat:     "json",
		LogFile:       "/tmp/test.log",
		MaxLogSizeMB:  50,
		MaxLogBackups: 5,
	}

	loggerConfig, err := converter.ConvertFileConfig(fileConfig)
	require.NoError(t, err)

	assert.Equal(t, zerolog.WarnLevel, loggerConfig.Level)
	assert.Equal(t, FormatJSON, loggerConfig.Format)
	assert.True(t, loggerConfig.EnableFile)
	assert.Equal(t, "/tmp/test.log", loggerConfig.FilePath)
	assert.Equal(t, 50, loggerConfig.MaxSizeMB)
	assert.Equal(t, 5, loggerConfig.MaxBackups)
}

func TestLogLevelParser(t *testing.T) {
	parser := NewLogLevelParser()
	level, err := parser.ParseLevel("debug")
	assert.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, level)

	_, err = parser.ParseLevel("invalid-level")
	assert.Error(t, err)
}

func TestLogFormatParser(t *testing.T) {
	parser := NewLogFormatParser()
	assert.Equal(t, FormatJSON, parser.ParseFormat("json"))
	assert.Equal(t, FormatConsole, parser.ParseFormat("console"))
	assert.Equal(t, FormatText, parser.ParseFormat("text"))
	assert.Equal(t, FormatConsole, parser.ParseFormat("unknown-format")) // Fallback
}
