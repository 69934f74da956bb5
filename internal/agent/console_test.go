package agent

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/pushrelay/internal/domain"
)

// fakeNotifications は表示中の通知を固定で返すNotifications。
type fakeNotifications map[string]domain.PushData

func (f fakeNotifications) Lookup(tag string) (domain.PushData, bool) {
	d, ok := f[tag]
	return d, ok
}

func (f fakeNotifications) Tags() []string {
	tags := make([]string, 0, len(f))
	for t := range f {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

func newTestConsole() (*Console, *fakePlatform, *fakeAPI, *bytes.Buffer) {
	a, p, api, _ := newTestAgent(Config{})
	shown := fakeNotifications{
		"claude-5":             {ID: 5, Session: "dev", TerminalURL: "https://ttyd.example/?tmux_session=dev"},
		"claude-1767225600123": {},
	}
	var out bytes.Buffer
	return NewConsole(a, shown, &out), p, api, &out
}

func TestConsole_Exec(t *testing.T) {
	t.Parallel()

	t.Run("vはアプリケーションを開くこと", func(t *testing.T) {
		t.Parallel()

		c, p, api, _ := newTestConsole()
		require.NoError(t, c.Exec(context.Background(), "v 5"))

		assert.Equal(t, []string{"claude-5"}, p.closed)
		assert.Equal(t, []string{"/"}, p.opened)
		assert.Empty(t, api.marked)
		assert.Equal(t, StateInteracted, c.agent.StateOf("claude-5"))
	})

	t.Run("tはターミナルを開くこと", func(t *testing.T) {
		t.Parallel()

		c, p, _, _ := newTestConsole()
		require.NoError(t, c.Exec(context.Background(), "t claude-5"))
		assert.Equal(t, []string{"https://ttyd.example/?tmux_session=dev"}, p.opened)
	})

	t.Run("dは閉じるだけであること", func(t *testing.T) {
		t.Parallel()

		c, p, api, _ := newTestConsole()
		require.NoError(t, c.Exec(context.Background(), "d 5"))
		assert.Equal(t, []string{"claude-5"}, p.closed)
		assert.Empty(t, p.opened)
		assert.Empty(t, api.marked)
	})

	t.Run("xは閉じて既読にすること", func(t *testing.T) {
		t.Parallel()

		c, p, api, _ := newTestConsole()
		require.NoError(t, c.Exec(context.Background(), "x 5"))
		assert.Equal(t, []string{"claude-5"}, p.closed)
		assert.Equal(t, []int64{5}, api.marked)
	})

	t.Run("IDのない通知はxで既読にしないこと", func(t *testing.T) {
		t.Parallel()

		c, p, api, _ := newTestConsole()
		require.NoError(t, c.Exec(context.Background(), "x claude-1767225600123"))
		assert.Equal(t, []string{"claude-1767225600123"}, p.closed)
		assert.Empty(t, api.marked)
	})

	t.Run("bとcでバッジを操作すること", func(t *testing.T) {
		t.Parallel()

		c, p, api, _ := newTestConsole()
		api.list = []domain.Notification{{ID: 5}, {ID: 4}, {ID: 3, Read: true}}

		require.NoError(t, c.Exec(context.Background(), "b"))
		assert.Equal(t, 2, p.badge)
		require.NoError(t, c.Exec(context.Background(), "c"))
		assert.Equal(t, 0, p.badge)
	})

	t.Run("lは表示中のタグを一覧すること", func(t *testing.T) {
		t.Parallel()

		c, _, _, out := newTestConsole()
		c.agent.HandlePush(context.Background(), pushPayload(t, domain.Notification{ID: 5, Message: "m"}, ""))
		require.NoError(t, c.Exec(context.Background(), "l"))
		assert.Contains(t, out.String(), "claude-5\tdisplayed")
		assert.Contains(t, out.String(), "claude-1767225600123")
	})

	t.Run("表示していない通知はエラーになること", func(t *testing.T) {
		t.Parallel()

		c, p, _, _ := newTestConsole()
		err := c.Exec(context.Background(), "v 99")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "claude-99")
		assert.Empty(t, p.closed)
	})

	t.Run("解釈できない行はエラーになること", func(t *testing.T) {
		t.Parallel()

		c, _, _, _ := newTestConsole()
		assert.ErrorIs(t, c.Exec(context.Background(), "z 5"), errUnknownCommand)
		assert.ErrorIs(t, c.Exec(context.Background(), "v"), errUnknownCommand)
		assert.NoError(t, c.Exec(context.Background(), "   "))
	})
}

func TestConsole_Run(t *testing.T) {
	t.Parallel()

	c, p, api, out := newTestConsole()
	err := c.Run(context.Background(), strings.NewReader("?\nv 99\nx 5\n"))
	require.NoError(t, err)

	assert.Contains(t, out.String(), "commands:")
	assert.Contains(t, out.String(), "claude-99", "失敗は出力して続けること")
	assert.Equal(t, []string{"claude-5"}, p.closed)
	assert.Equal(t, []int64{5}, api.marked)
}

func TestNotificationTag(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "claude-7", notificationTag("7"))
	assert.Equal(t, "claude-7", notificationTag("007"))
	assert.Equal(t, "claude-abc", notificationTag("claude-abc"))
	assert.Equal(t, "0", notificationTag("0"))
}
