package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"devserve/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// defaultShutdownTimeout は設定で猶予が指定されていない場合のシャットダウン猶予
const defaultShutdownTimeout = 5 * time.Second

// Server は静的ファイルを配信するHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	httpServer *http.Server
	engine     *gin.Engine
	listener   net.Listener
}

// New は新しいServerインスタンスを作成する
// アクセスログは logOut に出力される
func New(cfg *config.Config, logOut io.Writer) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	// プロキシ経由の利用は想定しない
	_ = engine.SetTrustedProxies(nil)

	s := &Server{
		config: cfg,
		engine: engine,
		httpServer: &http.Server{
			Addr:         cfg.ServerAddress(),
			Handler:      engine,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}
	s.setupRoutes(logOut)

	return s
}

// setupRoutes はミドルウェアとハンドラーを設定する
// ルーティングは行わず、全リクエストを静的ファイルハンドラーに渡す
func (s *Server) setupRoutes(logOut io.Writer) {
	s.engine.Use(RequestLogger(logOut), DevHeaders(), gin.Recovery())

	static := staticHandler(s.config.Root)
	s.engine.Any("/*filepath", static)
	// Any に含まれないメソッド（PROPFIND など）用
	s.engine.NoRoute(fallbackHandler(static))
}

// Handler はサーバーのHTTPハンドラーを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Listen はリッスンポートをバインドする
// ポートが使用中の場合は *AddrInUseError を返す
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		if isAddrInUse(err) {
			return &AddrInUseError{Port: s.config.Server.Port, Err: err}
		}
		return fmt.Errorf("リッスンに失敗: %w", err)
	}

	s.listener = ln
	return nil
}

// Addr はバインド済みのアドレスを返す
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Port はバインド済みのポート番号を返す
// ポート0で起動した場合は実際に割り当てられた番号になる
func (s *Server) Port() int {
	if addr, ok := s.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return s.config.Server.Port
}

// Serve はコンテキストがキャンセルされるまでリクエストを処理する
// キャンセル後はグレースフルシャットダウンを行い nil を返す
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("リスナーがバインドされていません")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logrus.WithField("addr", s.listener.Addr().String()).Debug("HTTPサーバーを起動しています")
		if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("サーバーの実行に失敗: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return s.Shutdown()
	})

	return g.Wait()
}

// Start はポートをバインドしてサーバーを起動する
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Shutdown はサーバーをグレースフルにシャットダウンする
// 猶予時間内に終わらない接続は強制的に切断する
// リスナーは閉じられ、同じポートへ即座に再バインドできる
func (s *Server) Shutdown() error {
	logrus.Debug("サーバーをシャットダウンしています...")

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
		}

		logrus.WithField("timeout", timeout).Warn("応答中の接続が残っているため強制的に切断します")
		if err := s.httpServer.Close(); err != nil {
			return fmt.Errorf("接続の切断に失敗: %w", err)
		}
	}

	logrus.Debug("サーバーが正常にシャットダウンされました")
	return nil
}
