package utils

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logLevelDebugStringConstant          = "debug"
	logLevelInfoStringConstant           = "info"
	logLevelWarnStringConstant           = "warn"
	logLevelErrorStringConstant          = "error"
	logFormatStructuredStringConstant    = "structured"
	logFormatConsoleStringConstant       = "console"
	jsonZapEncodingStringConstant        = "json"
	consoleZapEncodingStringConstant     = "console"
	unsupportedLogLevelTemplateConstant  = "unsupported log level: %s"
	unsupportedLogFormatTemplateConstant = "unsupported log format: %s"
	logFileMaximumSizeMegabytesConstant  = 5
	logFileMaximumBackupsConstant        = 3
	logFileMaximumAgeDaysConstant        = 30
)

// LogLevel enumerates supported logging granularities.
type LogLevel string

// Exported log level constants for reuse across packages.
const (
	LogLevelDebug LogLevel = LogLevel(logLevelDebugStringConstant)
	LogLevelInfo  LogLevel = LogLevel(logLevelInfoStringConstant)
	LogLevelWarn  LogLevel = LogLevel(logLevelWarnStringConstant)
	LogLevelError LogLevel = LogLevel(logLevelErrorStringConstant)
)

// LogFormat enumerates supported logger output encodings.
type LogFormat string

// Exported log format constants for reuse across packages.
const (
	LogFormatStructured LogFormat = LogFormat(logFormatStructuredStringConstant)
	LogFormatConsole    LogFormat = LogFormat(logFormatConsoleStringConstant)
)

// LoggerOutputs groups the loggers produced for a single CLI invocation.
type LoggerOutputs struct {
	// DiagnosticLogger writes to standard error and, when configured, to the rotating log file.
	DiagnosticLogger *zap.Logger
	// HumanReadable reports whether DiagnosticLogger renders console output.
	HumanReadable bool
	logFile       *lumberjack.Logger
}

// Close releases the rotating log file, if any.
func (outputs LoggerOutputs) Close() error {
	if outputs.logFile == nil {
		return nil
	}
	return outputs.logFile.Close()
}

// LoggerFactory builds zap.Logger instances with consistent configuration.
type LoggerFactory struct{}

var logLevelMapping = map[LogLevel]zapcore.Level{
	LogLevelDebug: zapcore.DebugLevel,
	LogLevelInfo:  zapcore.InfoLevel,
	LogLevelWarn:  zapcore.WarnLevel,
	LogLevelError: zapcore.ErrorLevel,
}

var logFormatEncodingMapping = map[LogFormat]string{
	LogFormatStructured: jsonZapEncodingStringConstant,
	LogFormatConsole:    consoleZapEncodingStringConstant,
}

// NewLoggerFactory constructs a new logger factory.
func NewLoggerFactory() *LoggerFactory {
	return &LoggerFactory{}
}

// CreateLogger produces a zap.Logger honoring the requested log level and format.
func (factory *LoggerFactory) CreateLogger(requestedLogLevel LogLevel, requestedLogFormat LogFormat) (*zap.Logger, error) {
	zapLogLevel, encoding, resolutionError := resolveLoggerSettings(requestedLogLevel, requestedLogFormat)
	if resolutionError != nil {
		return nil, resolutionError
	}

	configuration := zap.NewProductionConfig()
	configuration.Level = zap.NewAtomicLevelAt(zapLogLevel)
	configuration.Encoding = encoding
	if encoding == consoleZapEncodingStringConstant {
		configuration.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		configuration.DisableCaller = true
		configuration.DisableStacktrace = true
	}

	logger, buildError := configuration.Build()
	if buildError != nil {
		return nil, buildError
	}

	return logger, nil
}

// CreateLoggerOutputs builds the diagnostic logger. A non-empty logFilePath tees JSON
// records into a size-rotated file regardless of the console format.
func (factory *LoggerFactory) CreateLoggerOutputs(requestedLogLevel LogLevel, requestedLogFormat LogFormat, logFilePath string) (LoggerOutputs, error) {
	normalizedLogLevel := LogLevel(strings.ToLower(strings.TrimSpace(string(requestedLogLevel))))
	normalizedLogFormat := LogFormat(strings.ToLower(strings.TrimSpace(string(requestedLogFormat))))

	consoleLogger, creationError := factory.CreateLogger(normalizedLogLevel, normalizedLogFormat)
	if creationError != nil {
		return LoggerOutputs{}, creationError
	}

	outputs := LoggerOutputs{
		DiagnosticLogger: consoleLogger,
		HumanReadable:    normalizedLogFormat == LogFormatConsole,
	}

	trimmedLogFilePath := strings.TrimSpace(logFilePath)
	if len(trimmedLogFilePath) == 0 {
		return outputs, nil
	}

	rotatingFile := &lumberjack.Logger{
		Filename:   trimmedLogFilePath,
		MaxSize:    logFileMaximumSizeMegabytesConstant,
		MaxBackups: logFileMaximumBackupsConstant,
		MaxAge:     logFileMaximumAgeDaysConstant,
	}
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(rotatingFile),
		logLevelMapping[normalizedLogLevel],
	)

	outputs.DiagnosticLogger = consoleLogger.WithOptions(zap.WrapCore(func(consoleCore zapcore.Core) zapcore.Core {
		return zapcore.NewTee(consoleCore, fileCore)
	}))
	outputs.logFile = rotatingFile
	return outputs, nil
}

func resolveLoggerSettings(requestedLogLevel LogLevel, requestedLogFormat LogFormat) (zapcore.Level, string, error) {
	zapLogLevel, levelExists := logLevelMapping[requestedLogLevel]
	if !levelExists {
		return zapcore.InfoLevel, "", fmt.Errorf(unsupportedLogLevelTemplateConstant, requestedLogLevel)
	}

	encoding, formatExists := logFormatEncodingMapping[requestedLogFormat]
	if !formatExists {
		return zapcore.InfoLevel, "", fmt.Errorf(unsupportedLogFormatTemplateConstant, requestedLogFormat)
	}

	return zapLogLevel, encoding, nil
}
