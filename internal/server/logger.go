package server

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// logDateTimeLayout は一般的なHTTPサーバーのアクセスログと同じ時刻形式
const logDateTimeLayout = "02/Jan/2006:15:04:05 -0700"

// LogDateTime はアクセスログ用に時刻を整形する
func LogDateTime(t time.Time) string {
	return t.Format(logDateTimeLayout)
}

// RequestLogger は1リクエストにつき1行のアクセスログを out に出力するミドルウェア
func RequestLogger(out io.Writer) gin.HandlerFunc {
	return gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: formatRequestLog,
		Output:    out,
	})
}

// formatRequestLog は `[日時] "メソッド パス プロトコル" ステータス サイズ` 形式の行を返す
func formatRequestLog(param gin.LogFormatterParams) string {
	proto := "HTTP/1.1"
	if param.Request != nil && param.Request.Proto != "" {
		proto = param.Request.Proto
	}

	size := "-"
	if param.BodySize >= 0 {
		size = strconv.Itoa(param.BodySize)
	}

	return fmt.Sprintf("[%s] \"%s %s %s\" %d %s\n",
		LogDateTime(param.TimeStamp),
		param.Method,
		param.Path,
		proto,
		param.StatusCode,
		size,
	)
}
