package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/nao1215/pushrelay/internal/domain"
)

var (
	unreadMark  = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Render("●")
	readMark    = lipgloss.NewStyle().Faint(true).Render("○")
	idStyle     = lipgloss.NewStyle().Faint(true).Width(6)
	timeStyle   = lipgloss.NewStyle().Faint(true)
	headerStyle = lipgloss.NewStyle().Bold(true)
)

func newListCmd(opts *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent notifications",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.serverURL == "" {
				return fmt.Errorf("server URL is not set (--url or PUSHRELAY_URL)")
			}
			var list []domain.Notification
			path := "/api/notifications?limit=" + strconv.Itoa(limit)
			if err := opts.client().GetJSON(cmd.Context(), path, &list); err != nil {
				return fmt.Errorf("fetching notifications: %w", err)
			}
			return renderList(cmd.OutOrStdout(), list)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", domain.MaxListLimit, "Maximum number of notifications")
	return cmd
}

func renderList(w io.Writer, list []domain.Notification) error {
	header := headerStyle.Render(fmt.Sprintf("%d unread / %d", domain.UnreadCount(list), len(list)))
	if _, err := fmt.Fprintln(w, header); err != nil {
		return err
	}
	for _, n := range list {
		mark := readMark
		if !n.Read {
			mark = unreadMark
		}
		line := lipgloss.JoinHorizontal(lipgloss.Top,
			mark, " ",
			idStyle.Render("#"+strconv.FormatInt(n.ID, 10)),
			timeStyle.Render(n.Timestamp.Local().Format("01-02 15:04")), " ",
			domain.Title(n.Session, n.Window), ": ",
			n.Message,
		)
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
