package cli

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nao1215/pushrelay/internal/hook"
	"github.com/nao1215/pushrelay/pkg/httpclient"
)

func newSendCmd(opts *globalOptions) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a notification from a hook (reads JSON from stdin)",
		Long: `Reads optional hook JSON ({"title", "message", "notification_type"}) from stdin,
adds the current tmux session and window, and posts it to the server.
Delivery failures are logged and ignored unless --strict is given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := opts.logger()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			h := hook.New(opts.client(httpclient.WithTimeout(hook.Timeout)), hook.WithLogger(log))
			resp, err := h.Send(cmd.Context(), hookInput(cmd.InOrStdin()))
			if err != nil {
				log.Warn("通知の送信に失敗", zap.Error(err))
				if httpclient.IsStatus(err, http.StatusUnauthorized) {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "hint: the server requires a producer token; pass --token or set PUSHRELAY_TOKEN")
				}
				if strict {
					return err
				}
				return nil
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "sent notification %d (pushed to %d devices)\n", resp.ID, resp.Pushed)
			return err
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when the notification could not be delivered")
	return cmd
}

// hookInput は端末から直接起動された場合に標準入力を読まないようにする。
func hookInput(r io.Reader) io.Reader {
	if f, ok := r.(*os.File); ok {
		if st, err := f.Stat(); err == nil && st.Mode()&os.ModeCharDevice != 0 {
			return nil
		}
	}
	return r
}
