// Package cli はサーバーコマンドのエントリーポイントを提供する
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"devserve/internal/config"
	"devserve/internal/server"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// 終了コード
const (
	exitOK        = 0
	exitAddrInUse = 1
	exitError     = 2
)

const commandName = "devserve"

type serveOptions struct {
	host            string
	root            string
	shutdownTimeout time.Duration
	debug           bool
	flags           *pflag.FlagSet
}

// Run はコマンドを実行し、プロセスの終了コードを返す
// ctx がキャンセルされるとサーバーはグレースフルに停止する
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if args == nil {
		args = []string{}
	}

	cmd := newServeCommand(stdout)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)

	var inUse *server.AddrInUseError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &inUse):
		printAddrInUse(stdout, commandName, inUse.Port)
		return exitAddrInUse
	default:
		logrus.WithError(err).Error("エラーにより終了します")
		return exitError
	}
}

func newServeCommand(stdout io.Writer) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:           commandName + " [PORT]",
		Short:         "ローカル開発用の静的ファイルサーバー",
		Long:          "実行ファイルのあるディレクトリを配信し、全レスポンスにCORSとキャッシュ無効化のヘッダーを付与します。",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.flags = cmd.Flags()
			return runServe(cmd.Context(), opts, args, stdout)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.host, "host", "", "リッスンするホスト (デフォルト: 全インターフェース)")
	flags.StringVar(&opts.root, "root", "", "配信するディレクトリ (デフォルト: 実行ファイルのディレクトリ)")
	flags.DurationVar(&opts.shutdownTimeout, "shutdown-timeout", 0, "停止時に応答中の接続を待つ時間 (デフォルト: 5s)")
	flags.BoolVarP(&opts.debug, "debug", "D", false, "デバッグログを有効にする")

	return cmd
}

// loadConfig は設定を読み込み、コマンドライン引数で上書きする
func loadConfig(opts *serveOptions, args []string) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}

	if opts.flags != nil && opts.flags.Changed("host") {
		cfg.Server.Host = opts.host
	}
	if opts.root != "" {
		root, err := filepath.Abs(opts.root)
		if err != nil {
			return nil, fmt.Errorf("配信ディレクトリの解決に失敗しました: %w", err)
		}
		cfg.Root = root
	}
	if opts.shutdownTimeout > 0 {
		cfg.Server.ShutdownTimeout = opts.shutdownTimeout
	}
	if len(args) > 0 {
		port, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("無効なポート番号: %q", args[0])
		}
		cfg.Server.Port = port
	}

	// 環境変数と引数の上書きをすべて反映してから検証する
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗しました: %w", err)
	}
	return cfg, nil
}

func runServe(ctx context.Context, opts *serveOptions, args []string, stdout io.Writer) error {
	if opts.debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	cfg, err := loadConfig(opts, args)
	if err != nil {
		return err
	}

	// 相対パスの解決を配信ディレクトリ基準にする
	if err := os.Chdir(cfg.Root); err != nil {
		return fmt.Errorf("配信ディレクトリへの移動に失敗しました: %w", err)
	}

	srv := server.New(cfg, stdout)
	if err := srv.Listen(); err != nil {
		return err
	}

	printBanner(stdout, cfg.Root, cfg.DisplayURL())
	logrus.WithFields(logrus.Fields{
		"addr": srv.Addr().String(),
		"root": cfg.Root,
	}).Debug("リクエストの受付を開始しました")

	if err := srv.Serve(ctx); err != nil {
		return fmt.Errorf("サーバーの実行中にエラーが発生しました: %w", err)
	}

	printFarewell(stdout)
	return nil
}
