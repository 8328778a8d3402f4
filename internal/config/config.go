package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultPort はポート指定がない場合に使用するポート番号
const DefaultPort = 8080

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server ServerConfig

	// Root は配信するディレクトリの絶対パス
	// プロセスの存続期間中は変更しない
	Root string
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string // リッスンするホスト（空文字列は全インターフェース）
	Port int    // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout     time.Duration // 読み込みタイムアウト
	WriteTimeout    time.Duration // 書き込みタイムアウト
	ShutdownTimeout time.Duration // グレースフルシャットダウンの猶予
}

// Load は設定を読み込む
// 環境変数 SERVER_HOST / PORT を反映し、配信ディレクトリは実行ファイルの場所から決定する
// 呼び出し側で上書きした後に Validate で検証すること
func Load() (*Config, error) {
	root, err := ResolveRoot()
	if err != nil {
		return nil, fmt.Errorf("配信ディレクトリの解決に失敗: %w", err)
	}

	// デフォルト設定を作成
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnvOrDefault("SERVER_HOST", ""),
			Port:            getEnvAsIntOrDefault("PORT", DefaultPort),
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    0, // 大きなファイルの転送を打ち切らないよう無効化
			ShutdownTimeout: 5 * time.Second,
		},
		Root: root,
	}

	return cfg, nil
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	// サーバー設定の検証
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}

	if c.Root == "" {
		return fmt.Errorf("配信ディレクトリが設定されていません")
	}
	if !filepath.IsAbs(c.Root) {
		return fmt.Errorf("配信ディレクトリは絶対パスである必要があります: %s", c.Root)
	}
	info, err := os.Stat(c.Root)
	if err != nil {
		return fmt.Errorf("配信ディレクトリにアクセスできません: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("配信ディレクトリではありません: %s", c.Root)
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// DisplayURL はバナーに表示するURLを返す
// バインド先に関わらず localhost を表示する
func (c *Config) DisplayURL() string {
	return fmt.Sprintf("http://localhost:%d", c.Server.Port)
}

// ResolveRoot は実行ファイルが置かれたディレクトリの絶対パスを返す
// カレントディレクトリには依存しない
func ResolveRoot() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("実行ファイルのパス取得に失敗: %w", err)
	}

	// シンボリックリンク経由で起動された場合は実体の場所を使う
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}

	return filepath.Abs(filepath.Dir(exe))
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
