// Package log provides the logging abstraction used by preflight components.
//
// Library code never talks to a concrete logging library. It logs through the
// [Logger] interface, and the CLI plugs in the zerolog adapter:
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//
// Tests and embedders that want silence use the no-op logger:
//
//	logger := log.NewNoopLogger()
//
// # Custom Loggers
//
// Anything with Debug, Info, Warn and Error methods taking a message and
// [Field] values satisfies [Logger]:
//
//	type MyLogger struct { ... }
//
//	func (l *MyLogger) Debug(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Info(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Warn(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Error(msg string, fields ...log.Field) { ... }
//
// # Version
//
// Current version: 1.1.0
// Minimum compatible version: 1.0.0
package log
