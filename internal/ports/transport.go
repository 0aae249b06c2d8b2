package ports

import "context"

// Transport is the remote-execution/file-copy capability the ground station
// uses to reach the airborne unit. Any remote shell transport satisfying
// these two primitives is interchangeable.
type Transport interface {
	// RunCommand executes cmd remotely and returns its stdout lines.
	RunCommand(ctx context.Context, cmd string) ([]string, error)

	// CopyFile mirrors remotePath into localPath wholesale.
	CopyFile(ctx context.Context, remotePath, localPath string) error

	Close() error
}
