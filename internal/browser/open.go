// Package browser はOS既定のブラウザでURLを開く。
package browser

import (
	"fmt"
	"os/exec"
	"runtime"
)

// startCommand はコマンドを起動して終了を待たずに戻る。テストで差し替える。
var startCommand = func(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// Open は指定URLを既定のブラウザで開く。
func Open(url string) error {
	name, args, err := command(runtime.GOOS, url)
	if err != nil {
		return err
	}
	if err := startCommand(name, args...); err != nil {
		return fmt.Errorf("ブラウザの起動に失敗 (%s): %w", name, err)
	}
	return nil
}

// command はOSごとのブラウザ起動コマンドを返す。
func command(goos, url string) (string, []string, error) {
	switch goos {
	case "darwin":
		return "open", []string{url}, nil
	case "linux", "freebsd", "openbsd":
		return "xdg-open", []string{url}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}, nil
	default:
		return "", nil, fmt.Errorf("未対応のOSです: %s", goos)
	}
}
