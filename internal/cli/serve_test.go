package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"gotest.tools/v3/fs"
	"gotest.tools/v3/poll"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func setup(t *testing.T) *fs.Dir {
	t.Helper()
	color.NoColor = true
	// Run は配信ディレクトリへ移動するため、テスト後に元へ戻す
	{
		wd, err := os.Getwd()
		if err != nil {
			t.Fatal(err)
		}
		if err := os.Chdir(t.TempDir()); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = os.Chdir(wd) })
	}

	dir := fs.NewDir(t, "devserve-cli", fs.WithFile("index.html", "<h1>hello</h1>"))
	t.Cleanup(dir.Remove)
	return dir
}

// freePort は一時的に空いているポート番号を返す
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NilError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	assert.NilError(t, ln.Close())
	return port
}

func TestRunInterruptExitsCleanly(t *testing.T) {
	dir := setup(t)
	port := freePort(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stdout := &lockedBuffer{}
	codeCh := make(chan int, 1)
	go func() {
		codeCh <- Run(ctx, []string{strconv.Itoa(port), "--host", "127.0.0.1", "--root", dir.Path()}, stdout, io.Discard)
	}()

	url := fmt.Sprintf("http://127.0.0.1:%d/", port)
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		resp, err := http.Get(url)
		if err != nil {
			return poll.Continue("server not ready: %v", err)
		}
		resp.Body.Close()
		return poll.Success()
	}, poll.WithTimeout(5*time.Second), poll.WithDelay(50*time.Millisecond))

	cancel()

	select {
	case code := <-codeCh:
		assert.Equal(t, code, exitOK)
	case <-time.After(5 * time.Second):
		t.Fatal("サーバーの停止がタイムアウトしました")
	}

	out := stdout.String()
	assert.Check(t, is.Contains(out, dir.Path()))
	assert.Check(t, is.Contains(out, fmt.Sprintf("http://localhost:%d", port)))
	assert.Check(t, is.Contains(out, `"GET / HTTP/1.1" 200`))
	assert.Check(t, is.Contains(out, "さようなら"))

	// 停止後は同じポートを再びバインドできる
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	assert.NilError(t, err)
	assert.NilError(t, ln.Close())
}

func TestRunAddrInUse(t *testing.T) {
	dir := setup(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NilError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	stdout := &lockedBuffer{}
	done := make(chan int, 1)
	go func() {
		done <- Run(context.Background(), []string{strconv.Itoa(port), "--host", "127.0.0.1", "--root", dir.Path()}, stdout, io.Discard)
	}()

	select {
	case code := <-done:
		assert.Equal(t, code, exitAddrInUse)
	case <-time.After(5 * time.Second):
		t.Fatal("ポート競合時に終了しませんでした")
	}

	out := stdout.String()
	assert.Check(t, is.Contains(out, fmt.Sprintf("ポート %d", port)))
	assert.Check(t, is.Contains(out, fmt.Sprintf("%s %d", commandName, port+1)))
	assert.Check(t, is.Contains(out, "pkill"))
	assert.Check(t, !strings.Contains(out, "サーバー起動"), "banner must not be printed")
}

func TestRunInvalidArguments(t *testing.T) {
	dir := setup(t)

	testCases := []struct {
		name string
		args []string
	}{
		{"数値でないポート", []string{"eighty", "--root", dir.Path()}},
		{"範囲外のポート", []string{"70000", "--root", dir.Path()}},
		{"引数が多すぎる", []string{"8080", "8081", "--root", dir.Path()}},
		{"存在しない配信ディレクトリ", []string{"--root", dir.Join("missing")}},
		{"未知のフラグ", []string{"--tls"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			stdout := &lockedBuffer{}
			code := Run(context.Background(), tc.args, stdout, io.Discard)
			assert.Check(t, is.Equal(code, exitError))
		})
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	dir := setup(t)
	t.Setenv("PORT", "9000")

	cmd := newServeCommand(io.Discard)
	assert.NilError(t, cmd.Flags().Parse([]string{"--host", "127.0.0.1", "--root", dir.Path()}))

	opts := &serveOptions{flags: cmd.Flags()}
	opts.host, _ = cmd.Flags().GetString("host")
	opts.root, _ = cmd.Flags().GetString("root")

	cfg, err := loadConfig(opts, nil)
	assert.NilError(t, err)
	assert.Check(t, is.Equal(cfg.Server.Port, 9000))
	assert.Check(t, is.Equal(cfg.Server.Host, "127.0.0.1"))
	assert.Check(t, is.Equal(cfg.Root, dir.Path()))

	// 位置引数は環境変数より優先される
	cfg, err = loadConfig(opts, []string{"8181"})
	assert.NilError(t, err)
	assert.Check(t, is.Equal(cfg.Server.Port, 8181))
}

func TestBanner(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	printBanner(&buf, "/srv/www", "http://localhost:8080")

	out := buf.String()
	assert.Check(t, is.Contains(out, "/srv/www"))
	assert.Check(t, is.Contains(out, "http://localhost:8080"))
	assert.Check(t, is.Contains(out, "Ctrl+C"))
}

func TestAddrInUseMessage(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	printAddrInUse(&buf, "devserve", 8080)

	out := buf.String()
	assert.Check(t, is.Contains(out, "8080"))
	assert.Check(t, is.Contains(out, "devserve 8081"))
}

func TestRunInterruptDuringStalledDownload(t *testing.T) {
	dir := setup(t)
	assert.NilError(t, os.WriteFile(dir.Join("big.bin"), bytes.Repeat([]byte("~"), 64<<20), 0o644))
	port := freePort(t)
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stdout := &lockedBuffer{}
	codeCh := make(chan int, 1)
	go func() {
		codeCh <- Run(ctx, []string{
			strconv.Itoa(port), "--host", "127.0.0.1", "--root", dir.Path(),
			"--shutdown-timeout", "200ms",
		}, stdout, io.Discard)
	}()

	var conn net.Conn
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		c, err := net.Dial("tcp", addr)
		if err != nil {
			return poll.Continue("server not ready: %v", err)
		}
		conn = c
		return poll.Success()
	}, poll.WithTimeout(5*time.Second), poll.WithDelay(50*time.Millisecond))
	defer conn.Close()

	// レスポンスの先頭だけ読み、残りは受信しない
	_, err := fmt.Fprintf(conn, "GET /big.bin HTTP/1.1\r\nHost: %s\r\n\r\n", addr)
	assert.NilError(t, err)
	buf := make([]byte, 512)
	assert.NilError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, err = conn.Read(buf)
	assert.NilError(t, err)

	cancel()

	select {
	case code := <-codeCh:
		assert.Equal(t, code, exitOK)
	case <-time.After(3 * time.Second):
		t.Fatal("サーバーの停止がタイムアウトしました")
	}
	assert.Check(t, is.Contains(stdout.String(), "さようなら"))
}

func TestLoadConfigArgumentOverridesInvalidEnvironment(t *testing.T) {
	dir := setup(t)
	t.Setenv("PORT", "70000")

	opts := &serveOptions{root: dir.Path()}

	cfg, err := loadConfig(opts, []string{"8081"})
	assert.NilError(t, err)
	assert.Check(t, is.Equal(cfg.Server.Port, 8081))

	_, err = loadConfig(opts, nil)
	assert.Check(t, is.ErrorContains(err, "70000"))
}

func TestLoadConfigShutdownTimeout(t *testing.T) {
	dir := setup(t)

	cfg, err := loadConfig(&serveOptions{root: dir.Path(), shutdownTimeout: 250 * time.Millisecond}, nil)
	assert.NilError(t, err)
	assert.Check(t, is.Equal(cfg.Server.ShutdownTimeout, 250*time.Millisecond))
}

func TestRunDebugFlag(t *testing.T) {
	dir := setup(t)

	level := logrus.GetLevel()
	t.Cleanup(func() { logrus.SetLevel(level) })
	logrus.SetLevel(logrus.InfoLevel)

	code := Run(context.Background(), []string{"eighty", "--debug", "--root", dir.Path()}, io.Discard, io.Discard)
	assert.Check(t, is.Equal(code, exitError))
	assert.Check(t, is.Equal(logrus.GetLevel(), logrus.DebugLevel))
}

func TestRunErrorMessage(t *testing.T) {
	dir := setup(t)

	var logOut bytes.Buffer
	logrus.SetOutput(&logOut)
	t.Cleanup(func() { logrus.SetOutput(os.Stderr) })

	code := Run(context.Background(), []string{"70000", "--root", dir.Path()}, io.Discard, io.Discard)
	assert.Check(t, is.Equal(code, exitError))

	out := logOut.String()
	assert.Check(t, is.Contains(out, "エラーにより終了します"))
	assert.Check(t, is.Contains(out, "70000"))
	assert.Check(t, !strings.Contains(out, "起動に失敗"), out)
}
