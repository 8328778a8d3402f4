package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"devserve/internal/cli"

	"github.com/sirupsen/logrus"
)

func main() {
	logrus.SetOutput(os.Stderr)

	// Ctrl+C または SIGTERM でグレースフルに停止する
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		// 停止処理中に再度 Ctrl+C された場合は即座に終了させる
		<-ctx.Done()
		stop()
	}()

	code := cli.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
