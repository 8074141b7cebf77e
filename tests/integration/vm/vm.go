//go:build integration

package vm

import (
	"context"
	"io/fs"
	"time"
)

type VM interface {
	Run(cmd string) (string, error)
	RunWithTimeout(ctx context.Context, cmd string, timeout time.Duration) (string, error)
	CopyFile(localPath, remotePath string) error
	WriteFile(remotePath string, data []byte, mode fs.FileMode) error
	Stop()
	IsRunning() bool
	WaitForSSH(ctx context.Context) error
}
