package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var separator = strings.Repeat("=", 60)

var (
	titleColor = color.New(color.FgCyan, color.Bold)
	urlColor   = color.New(color.FgGreen, color.Bold)
	errorColor = color.New(color.FgRed, color.Bold)
)

// printBanner は起動時のバナーを出力する
func printBanner(w io.Writer, root, url string) {
	fmt.Fprintln(w, separator)
	titleColor.Fprintln(w, "🌊 devserve - ローカル開発サーバー")
	fmt.Fprintln(w, separator)
	fmt.Fprintf(w, "📂 配信ディレクトリ: %s\n", root)
	fmt.Fprintf(w, "🌐 サーバー起動: %s\n", urlColor.Sprint(url))
	fmt.Fprintln(w, separator)
	fmt.Fprintln(w, "Ctrl+C でサーバーを停止します")
	fmt.Fprintln(w, separator)
	fmt.Fprintln(w)
}

// printFarewell は停止時のメッセージを出力する
func printFarewell(w io.Writer) {
	fmt.Fprintln(w, "\n\n👋 サーバーを停止しました。さようなら!")
}

// printAddrInUse はポート競合時の対処方法を出力する
func printAddrInUse(w io.Writer, name string, port int) {
	errorColor.Fprintf(w, "\n❌ エラー: ポート %d は既に使用されています!\n", port)
	fmt.Fprintf(w, "   既存のサーバーを停止してください: pkill -f %s\n", name)
	fmt.Fprintf(w, "   または別のポートを使用してください: %s %d\n", name, port+1)
}
