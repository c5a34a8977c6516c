// Package log defines the geth/luxfi-style structured logger interface
// used throughout the core, backed by go.uber.org/zap (the teacher's
// own no-op logger, log/nolog.go, imports zap directly for the same
// purpose).
package log

// Logger is a structured, leveled logger. With returns a derived
// logger carrying additional key/value context, matching the
// geth-style "With(ctx...) Logger" idiom.
type Logger interface {
	With(kv ...interface{}) Logger
	Debug(msg string, kv ...interface{})
	Info(msg string, kv ...interface{})
	Warn(msg string, kv ...interface{})
	Error(msg string, kv ...interface{})
}

// noOp is a Logger that discards everything; it is the default when no
// logger is injected.
type noOp struct{}

// NewNoOp returns a Logger that discards all output.
func NewNoOp() Logger { return noOp{} }

func (noOp) With(kv ...interface{}) Logger        { return noOp{} }
func (noOp) Debug(msg string, kv ...interface{})  {}
func (noOp) Info(msg string, kv ...interface{})   {}
func (noOp) Warn(msg string, kv ...interface{})   {}
func (noOp) Error(msg string, kv ...interface{})  {}
