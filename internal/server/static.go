package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// handleNoRoute は未定義ルートを処理する。
// 静的ファイル配信が有効ならファイルを返し、見つからなければindex.htmlにフォールバックする。
// APIパスと、GET/HEAD以外は常にJSONの404を返す。
func (s *Server) handleNoRoute() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqPath := c.Request.URL.Path
		method := c.Request.Method
		if s.publicDir == "" || strings.HasPrefix(reqPath, "/api/") ||
			(method != http.MethodGet && method != http.MethodHead) {
			c.JSON(http.StatusNotFound, gin.H{"error": "見つかりません"})
			return
		}

		if file, ok := s.staticFile(reqPath); ok {
			c.File(file)
			return
		}

		index := filepath.Join(s.publicDir, "index.html")
		if _, err := os.Stat(index); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "見つかりません"})
			return
		}
		c.File(index)
	}
}

// staticFile はリクエストパスに対応する公開ディレクトリ内の通常ファイルを返す。
// ディレクトリ外を指すパスは path.Clean で除去される。
func (s *Server) staticFile(reqPath string) (string, bool) {
	cleaned := path.Clean("/" + reqPath)
	if cleaned == "/" {
		return "", false
	}
	file := filepath.Join(s.publicDir, filepath.FromSlash(cleaned))
	info, err := os.Stat(file)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return file, true
}
