package logging

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

// ZapLogger adapts a *zap.SugaredLogger to the Logger interface, giving CORE
// structured, leveled logging without coupling Logger itself to zap.
type ZapLogger struct {
	sugar        *zap.SugaredLogger
	fatalHandler atomic.Pointer[FatalHandler]
}

// NewZapLogger wraps sugar behind the Logger interface. A nil sugar is
// replaced with zap.NewNop().Sugar() so the returned logger is always safe
// to call.
func NewZapLogger(sugar *zap.SugaredLogger) *ZapLogger {
	if sugar == nil {
		sugar = zap.NewNop().Sugar()
	}
	return &ZapLogger{sugar: sugar}
}

// SetFatalHandler installs the function Fatalf invokes after logging. It does
// not affect zap's own handling of the message.
func (l *ZapLogger) SetFatalHandler(handler FatalHandler) {
	l.fatalHandler.Store(&handler)
}

// Errorf implements Logger.
func (l *ZapLogger) Errorf(format string, args ...any) {
	l.sugar.Errorf(format, args...)
}

// Warnf implements Logger.
func (l *ZapLogger) Warnf(format string, args ...any) {
	l.sugar.Warnf(format, args...)
}

// Infof implements Logger.
func (l *ZapLogger) Infof(format string, args ...any) {
	l.sugar.Infof(format, args...)
}

// Debugf implements Logger.
func (l *ZapLogger) Debugf(format string, args ...any) {
	l.sugar.Debugf(format, args...)
}

// Fatalf implements Logger. Like DefaultLogger, it does not call os.Exit
// itself; it logs at error level through zap and then defers to the
// configured FatalHandler, if any.
func (l *ZapLogger) Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.sugar.Error(msg)
	if h := l.fatalHandler.Load(); h != nil {
		(*h)(msg)
	}
}
