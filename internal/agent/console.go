package agent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/pushrelay/internal/domain"
)

// Notifications は表示中の通知を引けるPlatform。DesktopPlatformが満たす。
type Notifications interface {
	Lookup(tag string) (domain.PushData, bool)
	Tags() []string
}

// consoleHelp はコンソールで使えるコマンドの一覧。
const consoleHelp = `commands:
  v <id>  view (open the app)
  t <id>  open the terminal
  d <id>  dismiss
  x <id>  close and mark as read
  l       list shown notifications
  b       refresh the unread badge
  c       clear the unread badge
  ?       show this help`

// Console は端末の標準入力から通知への操作を受け付け、エージェントのハンドラへ渡す。
// 1行1コマンドで、<id> には通知IDかタグを書く。
type Console struct {
	agent         *Agent
	notifications Notifications
	out           io.Writer
}

// NewConsole はConsoleを生成する。
func NewConsole(a *Agent, n Notifications, out io.Writer) *Console {
	return &Console{agent: a, notifications: n, out: out}
}

// Run は入力が終わるかctxがキャンセルされるまでコマンドを処理する。
// コマンドの失敗は出力に書いて続ける。
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	if in == nil {
		return nil
	}
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.Exec(ctx, scanner.Text()); err != nil {
			if _, werr := fmt.Fprintln(c.out, err); werr != nil {
				return werr
			}
		}
	}
	return scanner.Err()
}

// errUnknownCommand は解釈できない行であることを表す。
var errUnknownCommand = errors.New("unknown command (? for help)")

// Exec は1行分のコマンドを実行する。空行は無視する。
func (c *Console) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "?", "h", "help":
		_, err := fmt.Fprintln(c.out, consoleHelp)
		return err
	case "l":
		tags := c.notifications.Tags()
		if len(tags) == 0 {
			_, err := fmt.Fprintln(c.out, "no notifications shown")
			return err
		}
		for _, tag := range tags {
			if _, err := fmt.Fprintf(c.out, "%s\t%s\n", tag, c.agent.StateOf(tag)); err != nil {
				return err
			}
		}
		return nil
	case "b":
		return c.agent.HandleMessage(ctx, MessageUpdateBadge)
	case "c":
		return c.agent.HandleMessage(ctx, MessageClearBadge)
	}

	if len(fields) != 2 {
		return errUnknownCommand
	}
	tag := notificationTag(fields[1])
	data, ok := c.notifications.Lookup(tag)
	if !ok {
		return fmt.Errorf("notification %s is not shown", tag)
	}

	switch fields[0] {
	case "v":
		c.agent.HandleNotificationClick(ctx, ClickEvent{Action: ActionView, Tag: tag, Data: data})
	case "t":
		c.agent.HandleNotificationClick(ctx, ClickEvent{Action: ActionTerminal, Tag: tag, Data: data})
	case "d":
		c.agent.HandleNotificationClick(ctx, ClickEvent{Action: ActionDismiss, Tag: tag, Data: data})
	case "x":
		if err := c.agent.platform.CloseNotification(ctx, tag); err != nil {
			return err
		}
		c.agent.HandleNotificationClose(ctx, CloseEvent{Tag: tag, Data: data})
	default:
		return errUnknownCommand
	}
	return nil
}

// notificationTag は通知IDならタグに直し、それ以外はタグとしてそのまま返す。
func notificationTag(arg string) string {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil && id > 0 {
		return "claude-" + strconv.FormatInt(id, 10)
	}
	return arg
}
