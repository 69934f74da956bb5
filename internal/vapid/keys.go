// Package vapid はサーバーのVAPID鍵ペアを管理する。
//
// 鍵ペアは初回起動時に一度だけ生成してファイルに保存し、以後は同じものを使い続ける。
// 再生成すると既存の全購読が無効になるため、読み込めないファイルを上書きすることはない。
package vapid

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// Keys はVAPID鍵ペア（base64url）。
type Keys struct {
	// PublicKey はクライアントが購読時に使う公開鍵。
	PublicKey string `json:"publicKey"`
	// PrivateKey はプッシュ送信の署名に使う秘密鍵。
	PrivateKey string `json:"privateKey"`
}

// generate は鍵生成関数。テストで差し替える。
var generate = webpush.GenerateVAPIDKeys

// writeAll は鍵ファイルへの書き込み関数。テストで差し替える。
var writeAll = func(w io.Writer, data []byte) error {
	_, err := w.Write(data)
	return err
}

// LoadOrCreate はpathから鍵を読み込む。ファイルが無ければ生成して保存する。
// createdは今回新たに生成した場合にtrueになる。
func LoadOrCreate(path string) (keys *Keys, created bool, err error) {
	data, err := os.ReadFile(path)
	if err == nil {
		keys, err := parse(data)
		if err != nil {
			return nil, false, fmt.Errorf("VAPID鍵ファイル %s が不正です: %w", path, err)
		}
		return keys, false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, fmt.Errorf("VAPID鍵ファイル %s の読み込みに失敗: %w", path, err)
	}

	privateKey, publicKey, err := generate()
	if err != nil {
		return nil, false, fmt.Errorf("VAPID鍵の生成に失敗: %w", err)
	}
	keys = &Keys{PublicKey: publicKey, PrivateKey: privateKey}

	if err := save(path, keys); err != nil {
		return nil, false, err
	}
	return keys, true, nil
}

func parse(data []byte) (*Keys, error) {
	var keys Keys
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, err
	}
	if keys.PublicKey == "" || keys.PrivateKey == "" {
		return nil, errors.New("publicKeyとprivateKeyは必須です")
	}
	return &keys, nil
}

// save は鍵を0600で書き出す。既存ファイルがある場合は失敗させる。
func save(path string, keys *Keys) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("VAPID鍵の保存先ディレクトリ作成に失敗: %w", err)
	}

	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return fmt.Errorf("VAPID鍵のシリアライズに失敗: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("VAPID鍵ファイル %s の作成に失敗: %w", path, err)
	}
	// O_EXCLで作成したファイルなので、書き込みに失敗したら消してよい
	err = writeAll(f, data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("VAPID鍵ファイル %s の書き込みに失敗: %w", path, err)
	}
	return nil
}
