package log

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
)

var (
	mu sync.RWMutex

	stdBase  log.Logger
	fileBase log.Logger

	stdLogger  log.Logger
	fileLogger log.Logger

	allowed = level.AllowInfo()
)

func init() {
	initStdLogger()
}

// default std logger is enabled
func EnableStdLogger(enable bool) {
	mu.Lock()
	defer mu.Unlock()
	if enable && stdBase == nil {
		initStdLogger()
	}
	if !enable {
		stdBase = nil
		stdLogger = nil
	}
}

// default file logger is disabled
func EnableFileLogger(enable bool, savePath string) error {
	mu.Lock()
	defer mu.Unlock()
	if !enable {
		fileBase = nil
		fileLogger = nil
		return nil
	}
	return initFileLogger(savePath)
}

func EnableOnlyFileLogger(enable bool, savePath string) error {
	mu.Lock()
	defer mu.Unlock()
	if !enable {
		fileBase = nil
		fileLogger = nil
		return nil
	}
	stdBase = nil
	stdLogger = nil
	return initFileLogger(savePath)
}

func Debug(keyvals ...interface{}) {
	emit(level.Debug, keyvals)
}

func Info(keyvals ...interface{}) {
	emit(level.Info, keyvals)
}

func Warn(keyvals ...interface{}) {
	emit(level.Warn, keyvals)
}

func Error(keyvals ...interface{}) {
	emit(level.Error, keyvals)
}

func emit(lv func(log.Logger) log.Logger, keyvals []interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	if stdLogger != nil {
		lv(stdLogger).Log(keyvals...)
	}
	if fileLogger != nil {
		lv(fileLogger).Log(keyvals...)
	}
}

func SetToDebug() {
	setFilter(level.AllowDebug())
}

func SetToInfo() {
	setFilter(level.AllowInfo())
}

func SetToWarn() {
	setFilter(level.AllowWarn())
}

func SetToError() {
	setFilter(level.AllowError())
}

// SetLevel takes one of debug, info, warn or error.
func SetLevel(name string) error {
	switch strings.ToLower(name) {
	case "debug":
		SetToDebug()
	case "info", "":
		SetToInfo()
	case "warn":
		SetToWarn()
	case "error":
		SetToError()
	default:
		return errors.Errorf("unknown log level %q", name)
	}
	return nil
}

// Logger returns a go-kit logger writing through the enabled outputs at
// info level, for components that take a log.Logger.
func Logger() log.Logger {
	return log.LoggerFunc(func(keyvals ...interface{}) error {
		Info(keyvals...)
		return nil
	})
}

func setFilter(option level.Option) {
	mu.Lock()
	defer mu.Unlock()
	allowed = option
	applyFilter()
}

func applyFilter() {
	stdLogger = nil
	fileLogger = nil
	if stdBase != nil {
		stdLogger = level.NewFilter(stdBase, allowed)
	}
	if fileBase != nil {
		fileLogger = level.NewFilter(fileBase, allowed)
	}
}

func initStdLogger() {
	stdBase = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	stdBase = log.With(stdBase, "ts", log.DefaultTimestampUTC, "caller", log.Caller(7))
	applyFilter()
}

func initFileLogger(savePath string) error {
	if err := os.MkdirAll(filepath.Dir(savePath), 0777); err != nil {
		return err
	}
	file, err := os.OpenFile(savePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		fileBase = nil
		fileLogger = nil
		return err
	}
	fileBase = log.NewLogfmtLogger(log.NewSyncWriter(io.Writer(file)))
	fileBase = log.With(fileBase, "ts", log.DefaultTimestampUTC, "caller", log.Caller(7))
	applyFilter()
	return nil
}
