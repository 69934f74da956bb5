package agent

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/nao1215/pushrelay/internal/browser"
	"github.com/nao1215/pushrelay/internal/domain"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	bodyStyle   = lipgloss.NewStyle().PaddingLeft(2)
	actionStyle = lipgloss.NewStyle().Faint(true).PaddingLeft(2)
	badgeStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	tagStyle    = lipgloss.NewStyle().Faint(true)
)

// DesktopPlatform は端末のターミナルに通知を描画し、URLを既定のブラウザで開くPlatform。
// アプリケーションウィンドウは列挙できないため、フォーカスの代わりに常に新しく開く。
type DesktopPlatform struct {
	out     io.Writer
	log     *zap.Logger
	baseURL *url.URL
	// open はURLを開く関数。テストで差し替える。
	open func(string) error

	mu sync.Mutex
	// shown は表示中の通知の付帯情報。キーはタグ。
	shown map[string]domain.PushData
	badge int
}

// NewDesktopPlatform はDesktopPlatformを生成する。
// 相対URLはbaseURLを基準に解決する。
func NewDesktopPlatform(out io.Writer, baseURL string, log *zap.Logger) (*DesktopPlatform, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("サーバーURLが不正です (%q): %w", baseURL, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DesktopPlatform{
		out:     out,
		log:     log,
		baseURL: u,
		open:    browser.Open,
		shown:   make(map[string]domain.PushData),
	}, nil
}

// ShowNotification は通知をターミナルに描画する。
func (d *DesktopPlatform) ShowNotification(_ context.Context, title string, opts NotificationOptions) error {
	d.mu.Lock()
	d.shown[opts.Tag] = opts.Data
	d.mu.Unlock()

	actions := make([]string, 0, len(opts.Actions))
	for _, a := range opts.Actions {
		actions = append(actions, a.Title)
	}

	_, err := fmt.Fprintln(d.out, lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(title)+" "+tagStyle.Render(opts.Tag),
		bodyStyle.Render(opts.Body),
		actionStyle.Render("["+strings.Join(actions, "] [")+"]"),
	))
	return err
}

// CloseNotification は表示済みの記録を消す。
func (d *DesktopPlatform) CloseNotification(_ context.Context, tag string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.shown, tag)
	return nil
}

// Lookup は表示中の通知の付帯情報を返す。
func (d *DesktopPlatform) Lookup(tag string) (domain.PushData, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.shown[tag]
	return data, ok
}

// Tags は表示中の通知のタグを名前順に返す。
func (d *DesktopPlatform) Tags() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	tags := make([]string, 0, len(d.shown))
	for tag := range d.shown {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// SetBadge は未読数が変わったときだけ表示する。
func (d *DesktopPlatform) SetBadge(_ context.Context, count int) error {
	d.mu.Lock()
	changed := d.badge != count
	d.badge = count
	d.mu.Unlock()

	if !changed {
		return nil
	}
	d.log.Info("バッジを更新しました", zap.Int("unread", count))
	_, err := fmt.Fprintln(d.out, badgeStyle.Render(fmt.Sprintf("未読: %d", count)))
	return err
}

// ClearBadge はバッジを0にする。
func (d *DesktopPlatform) ClearBadge(ctx context.Context) error {
	return d.SetBadge(ctx, 0)
}

// MatchWindows はデスクトップでは常に空を返す。
func (d *DesktopPlatform) MatchWindows(context.Context) ([]Window, error) {
	return nil, nil
}

// Focus はウィンドウのURLを開き直す。
func (d *DesktopPlatform) Focus(ctx context.Context, w Window) error {
	return d.OpenWindow(ctx, w.URL)
}

// OpenWindow はURLを既定のブラウザで開く。
func (d *DesktopPlatform) OpenWindow(_ context.Context, rawURL string) error {
	ref, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("URLが不正です (%q): %w", rawURL, err)
	}
	target := d.baseURL.ResolveReference(ref).String()
	d.log.Info("ブラウザで開きます", zap.String("url", target))
	return d.open(target)
}
