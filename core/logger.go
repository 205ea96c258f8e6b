package core

// Logger is any service that can log messages.
// Extra args may be errors, map[string]interface{} of custom data, or anything printable.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
