package ports

import "context"

// CommandRunner runs an external command to completion.
//
// Output is the command's stdout. A non-nil error with non-empty output means
// the command ran but exited unsuccessfully; a non-nil error with empty output
// means it could not run at all.
type CommandRunner interface {
	Run(ctx context.Context, dir string, name string, args ...string) (output []byte, err error)
}
