package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type logger struct {
	logger            *zap.SugaredLogger
	filenameTrimChars int
}

var log logger

func (l *logger) GetCallerFileName(withLine bool) string {
	_, filename, line, _ := runtime.Caller(2)
	if len(filename) > l.filenameTrimChars {
		filename = filename[l.filenameTrimChars:]
	}
	if withLine {
		return fmt.Sprint(filename, ":", line)
	}
	return filename
}

// the status bar occupies the bottom lines of the terminal, so it has to be
// erased before a log line is printed over it
func (l *logger) clearStatusBar() {
	if statusLog.isRealtime() {
		statusLog.clearStatusLine()
	}
}

func (l *logger) Print(a ...interface{}) {
	l.clearStatusBar()
	l.logger.Info(append([]interface{}{l.GetCallerFileName(false) + ": "}, a...)...)
}

func (l *logger) PrintStatusLog(a ...interface{}) {
	l.logger.Info(append([]interface{}{"status: "}, a...)...)
}

func (l *logger) Debug(a ...interface{}) {
	l.clearStatusBar()
	l.logger.Debug(append([]interface{}{l.GetCallerFileName(true) + ": "}, a...)...)
}

func (l *logger) Error(a ...interface{}) {
	l.clearStatusBar()
	l.logger.Error(append([]interface{}{l.GetCallerFileName(true) + ": "}, a...)...)
}

func (l *logger) Fatal(a ...interface{}) {
	l.clearStatusBar()
	l.logger.Fatal(append([]interface{}{l.GetCallerFileName(true) + ": "}, a...)...)
}

// Named returns a child logger for components that take an explicit logger
// instead of using the package-level one.
func (l *logger) Named(name string) *zap.SugaredLogger {
	return l.logger.Named(name)
}

func (l *logger) Init() {
	// Use only the base filename for logging.
	_, filename, _, _ := runtime.Caller(0)
	l.filenameTrimChars = len(filepath.Dir(filename)) + 1

	level := zapcore.InfoLevel
	if verboseLog {
		level = zapcore.DebugLevel
	} else if quietLog {
		level = zapcore.ErrorLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006-01-02T15:04:05.000Z0700"))
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), level),
	}
	if logFile != "" {
		lj := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
		}
		fileEncCfg := zap.NewProductionEncoderConfig()
		fileEncCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEncCfg), zapcore.AddSync(lj), level))
	}

	l.logger = zap.New(zapcore.NewTee(cores...)).Sugar()
}

func (l *logger) Sync() {
	_ = l.logger.Sync()
}
