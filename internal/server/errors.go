package server

import "fmt"

// AddrInUseError はリッスンポートが既に使用されている場合のエラー
type AddrInUseError struct {
	Port int
	Err  error
}

func (e *AddrInUseError) Error() string {
	return fmt.Sprintf("ポート %d は既に使用されています: %v", e.Port, e.Err)
}

func (e *AddrInUseError) Unwrap() error {
	return e.Err
}
