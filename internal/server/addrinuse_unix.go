//go:build unix

package server

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isAddrInUse はバインドエラーがアドレス使用中によるものか判定する
func isAddrInUse(err error) bool {
	return errors.Is(err, unix.EADDRINUSE)
}
