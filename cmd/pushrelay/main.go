// pushrelayのエントリポイント。
// 通知サーバー、フック用の送信コマンド、デスクトップエージェントを提供する。
package main

import (
	"fmt"
	"os"

	"github.com/nao1215/pushrelay/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pushrelay:", err)
		os.Exit(1)
	}
}
