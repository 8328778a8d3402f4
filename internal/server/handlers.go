package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// devHeaders は全レスポンスに付与する固定ヘッダー
var devHeaders = [...]struct {
	key, value string
}{
	{"Access-Control-Allow-Origin", "*"},
	{"Access-Control-Allow-Methods", "GET, POST, OPTIONS"},
	{"Access-Control-Allow-Headers", "*"},
	{"Cache-Control", "no-store, no-cache, must-revalidate"},
}

// DevHeaders はCORSとキャッシュ無効化のヘッダーを付与するミドルウェア
//
// ヘッダーは後続ハンドラーがステータス行を確定する直前に書き込む。
// net/http はエラー応答時に Cache-Control を削除するため、
// 事前に設定しておくだけでは404などで欠落してしまう。
func DevHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		w := &headerWriter{ResponseWriter: c.Writer}
		c.Writer = w
		defer func() {
			c.Writer = w.ResponseWriter
		}()

		c.Next()

		// 後続が何も書き込まなかった場合もヘッダーを保証する
		w.inject()
	}
}

// headerWriter はステータス行の確定前に固定ヘッダーを設定する gin.ResponseWriter
type headerWriter struct {
	gin.ResponseWriter
}

// inject は確定前であれば何度呼んでもよい
// 途中で http.Error などがヘッダーを削除しても次の呼び出しで戻る
func (w *headerWriter) inject() {
	if w.ResponseWriter.Written() {
		return
	}

	h := w.ResponseWriter.Header()
	for _, kv := range devHeaders {
		h.Set(kv.key, kv.value)
	}
}

func (w *headerWriter) WriteHeader(code int) {
	w.inject()
	w.ResponseWriter.WriteHeader(code)
}

func (w *headerWriter) WriteHeaderNow() {
	w.inject()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *headerWriter) Write(data []byte) (int, error) {
	w.inject()
	return w.ResponseWriter.Write(data)
}

func (w *headerWriter) WriteString(s string) (int, error) {
	w.inject()
	return w.ResponseWriter.WriteString(s)
}

// staticHandler は配信ディレクトリのファイルを返すハンドラー
// ファイル解決やエラー応答は http.FileServer にそのまま任せる
func staticHandler(root string) gin.HandlerFunc {
	return gin.WrapH(http.FileServer(http.Dir(root)))
}

// fallbackHandler は NoRoute 用のハンドラー
// gin は NoRoute のステータスを404で始めるため、委譲前に200へ戻す
// ディレクトリ一覧は WriteHeader を呼ばずに本文を書き込む
func fallbackHandler(static gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Status(http.StatusOK)
		static(c)
	}
}
