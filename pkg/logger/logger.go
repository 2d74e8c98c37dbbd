package logger

import (
  "os"
  "strings"

  "go.uber.org/zap"
  "go.uber.org/zap/zapcore"
)

// Log is the process-wide logger. It discards everything until Init is called,
// so packages and tests can log unconditionally.
var Log = zap.NewNop()

// Init sets up a global logger. Call once in main().
func Init() error {
  cfg := zap.NewProductionConfig()
  cfg.EncoderConfig.TimeKey = "ts"
  cfg.EncoderConfig.MessageKey = "msg"
  cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
  if level := os.Getenv("LOG_LEVEL"); level != "" {
    cfg.Level.SetLevel(parseLevel(level))
  }
  l, err := cfg.Build()
  if err != nil {
    return err
  }
  Log = l
  return nil
}

// Named returns a child of the global logger tagged with a component name.
func Named(component string) *zap.Logger {
  return Log.With(zap.String("component", component))
}

// Sync flushes buffered entries; the error from syncing stderr is ignored.
func Sync() {
  _ = Log.Sync()
}

// parseLevel is a helper mapping strings to zapcore.Level
func parseLevel(s string) zapcore.Level {
  switch strings.ToLower(s) {
  case "debug":
    return zapcore.DebugLevel
  case "warn":
    return zapcore.WarnLevel
  case "error":
    return zapcore.ErrorLevel
  default:
    return zapcore.InfoLevel
  }
}
