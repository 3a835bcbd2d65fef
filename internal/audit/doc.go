// Package audit runs an external vulnerability scanner and turns its JSON
// report into a pass/fail startup result.
//
// Two report shapes are understood: a summary document carrying per-severity
// counts under metadata.vulnerabilities, and the govulncheck -json message
// stream. Failures are returned as a failed result, never as an error or
// panic; the caller decides whether to abort startup.
package audit
