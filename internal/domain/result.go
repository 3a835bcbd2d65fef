package domain

// Result is the outcome of a startup check. It is produced and consumed once
// per process start and never persisted.
type Result struct {
	OK      bool
	Message string
	Details string
}

// Pass returns a successful Result.
func Pass(message string) Result {
	return Result{OK: true, Message: message}
}

// Fail returns a failed Result.
func Fail(message, details string) Result {
	return Result{Message: message, Details: details}
}
