package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/coder/websocket"
	"github.com/spf13/cobra"

	"github.com/donutsmp/farmbot/internal/gateway"
)

var (
	youStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func newConsoleCmd() *cobra.Command {
	var (
		url     string
		userID  string
		channel string
		token   string
		admin   bool
	)

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Interactive chat console against a running gateway",
		Long: `Dials the gateway and chats as a single user in a single channel.
Plain input is sent as a chat message; input starting with "/" is sent as
a command, with arguments given as key=value pairs, e.g.

  /addfarm category=crop id=cactus1 name=Cactus income=2.5`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConsole(cmd.Context(), url, userID, channel, token, admin)
		},
	}
	cmd.Flags().StringVar(&url, "url", "ws://localhost:8080/ws/gateway", "gateway websocket url")
	cmd.Flags().StringVar(&userID, "user", "console", "user id to chat as")
	cmd.Flags().StringVar(&channel, "channel", "console", "channel id to chat in")
	cmd.Flags().StringVar(&token, "token", "", "gateway bearer token")
	cmd.Flags().BoolVar(&admin, "admin", false, "send commands with admin permissions")
	return cmd
}

func runConsole(ctx context.Context, url, userID, channel, token string, admin bool) error {
	opts := &websocket.DialOptions{HTTPHeader: http.Header{}}
	if token != "" {
		opts.HTTPHeader.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := websocket.Dial(ctx, url, opts)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	defer func() {
		_ = conn.Close(websocket.StatusNormalClosure, "console closed")
	}()

	m := consoleModel{
		input:   newConsoleInput(),
		conn:    conn,
		userID:  userID,
		channel: channel,
		admin:   admin,
		lines:   []string{dimStyle.Render("connected as " + userID + " in #" + channel)},
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	go readFrames(ctx, conn, p)

	_, err = p.Run()
	return err
}

func newConsoleInput() textinput.Model {
	ti := textinput.New()
	ti.Placeholder = "message or /command key=value ..."
	ti.CharLimit = 512
	ti.Focus()
	return ti
}

// inboundFrame wraps a gateway send frame delivered to the UI.
type inboundFrame gateway.SendFrame

// connClosed signals that the gateway connection dropped.
type connClosed struct{ err error }

type consoleModel struct {
	vp      viewport.Model
	input   textinput.Model
	conn    *websocket.Conn
	userID  string
	channel string
	admin   bool
	lines   []string
	ready   bool
}

func (m consoleModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.vp = viewport.New(msg.Width, msg.Height-2)
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = msg.Height - 2
		}
		m.input.Width = msg.Width - 3
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text != "" {
				m.submit(text)
				m.input.Reset()
				m.refresh()
			}
			return m, nil
		}

	case inboundFrame:
		line := botStyle.Render("bot") + " → #" + msg.ChannelID + ": " + msg.Content
		if msg.Ephemeral {
			line += dimStyle.Render(" (ephemeral)")
		}
		if msg.Attachment != nil {
			line += dimStyle.Render(" [" + msg.Attachment.Filename + "]")
		}
		m.lines = append(m.lines, line)
		m.refresh()
		return m, nil

	case connClosed:
		m.lines = append(m.lines, dimStyle.Render(fmt.Sprintf("connection closed: %v", msg.err)))
		m.refresh()
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m consoleModel) View() string {
	if !m.ready {
		return "connecting..."
	}
	return m.vp.View() + "\n" + m.input.View()
}

func (m *consoleModel) refresh() {
	m.vp.SetContent(strings.Join(m.lines, "\n"))
	m.vp.GotoBottom()
}

// submit sends the input as either a command or a plain message.
func (m *consoleModel) submit(text string) {
	m.lines = append(m.lines, youStyle.Render(m.userID)+": "+text)

	var frame any
	if name, ok := strings.CutPrefix(text, "/"); ok {
		fields := strings.Fields(name)
		if len(fields) == 0 {
			return
		}
		args := make(map[string]string)
		for _, field := range fields[1:] {
			if k, v, found := strings.Cut(field, "="); found {
				args[k] = v
			}
		}
		frame = gateway.CommandFrame{
			Type:               gateway.TypeCommand,
			Name:               fields[0],
			UserID:             m.userID,
			ChannelID:          m.channel,
			DMChannelID:        "dm-" + m.userID,
			Args:               args,
			IsAdmin:            m.admin,
			CanMentionEveryone: m.admin,
		}
	} else {
		frame = gateway.MessageFrame{
			Type:      gateway.TypeMessage,
			UserID:    m.userID,
			ChannelID: m.channel,
			Content:   text,
		}
	}

	data, err := json.Marshal(frame)
	if err != nil {
		m.lines = append(m.lines, dimStyle.Render(fmt.Sprintf("encode error: %v", err)))
		return
	}
	if err := m.conn.Write(context.Background(), websocket.MessageText, data); err != nil {
		m.lines = append(m.lines, dimStyle.Render(fmt.Sprintf("send error: %v", err)))
	}
}

func readFrames(ctx context.Context, conn *websocket.Conn, p *tea.Program) {
	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			p.Send(connClosed{err: err})
			return
		}
		var frame gateway.SendFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		p.Send(inboundFrame(frame))
	}
}
