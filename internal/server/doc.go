// Package server は、ローカル開発用の静的ファイルサーバーを管理します。
//
// このパッケージは、HTTPサーバーの起動と停止、静的ファイルの配信、
// 全レスポンスへの固定ヘッダー付与、リクエストログの出力を担当します。
//
// 責務:
//   - TCPリスナーのバインドとポート競合の検出
//   - 配信ディレクトリ配下のファイル配信（net/http の FileServer に委譲）
//   - CORS / キャッシュ無効化ヘッダーの付与
//   - 1リクエスト1行のアクセスログ出力
//
// 仕様:
//   - ルーティングとミドルウェアには gin を使用
//   - ファイル解決・MIME判定・404/403・ディレクトリ一覧・Range は net/http に任せる
//   - グレースフルシャットダウンに対応
//   - 複数クライアントの同時接続をサポート
package server
