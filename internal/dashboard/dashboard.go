// Package dashboard is a Bubble Tea view over a running reviewsync app: who
// is logged in, what is pending, and what the sync engine just did.
package dashboard

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/clawinfra/reviewsync/internal/cli"
	"github.com/clawinfra/reviewsync/internal/connectivity"
	"github.com/clawinfra/reviewsync/internal/notify"
	"github.com/clawinfra/reviewsync/internal/review"
	"github.com/clawinfra/reviewsync/internal/submit"
	"github.com/clawinfra/reviewsync/internal/syncer"
)

// Notices returns a notifier that feeds the dashboard and the channel it
// reads from. Notifications are dropped when the buffer is full.
func Notices(size int) (notify.Notifier, <-chan notify.Notification) {
	ch := make(chan notify.Notification, size)
	return notify.Func(func(n notify.Notification) {
		select {
		case ch <- n:
		default:
		}
	}), ch
}

// Bubble Tea messages

type noticeMsg notify.Notification

type tickMsg struct{}

type syncDoneMsg syncer.Result

type submitDoneMsg struct {
	lesson  string
	outcome submit.Outcome
	err     error
}

type clearDoneMsg struct {
	n   int
	err error
}

// Styles

var (
	primaryColor = lipgloss.Color("#7C3AED") // violet
	mutedColor   = lipgloss.Color("#6B7280") // gray
	successColor = lipgloss.Color("#10B981") // green
	errorColor   = lipgloss.Color("#EF4444") // red
	warnColor    = lipgloss.Color("#F59E0B") // amber

	sidebarStyle = lipgloss.NewStyle().
			Width(30).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(1, 1)

	sidebarTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	onlineStyle  = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	offlineStyle = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(warnColor)
	metricStyle  = lipgloss.NewStyle().Foreground(mutedColor).PaddingLeft(2)

	logBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)

type status struct {
	user    string
	online  bool
	pending []review.Record
	total   int
	dead    int
	last    syncer.Result
	lastAt  time.Time
}

// Model is the dashboard state.
type Model struct {
	app     *cli.App
	notices <-chan notify.Notification
	input   textinput.Model
	log     viewport.Model
	entries []string
	status  status
	width   int
	height  int
	ready   bool
	syncing bool
}

// New creates a dashboard for app. notices may be nil.
func New(app *cli.App, notices <-chan notify.Notification) Model {
	ti := textinput.New()
	ti.Placeholder = "lesson-id score   (e.g. L12 0.8)"
	ti.Focus()
	ti.CharLimit = 128

	m := Model{app: app, notices: notices, input: ti}
	m.status = m.readStatus()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tickCmd(), m.waitForNotice())
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m Model) waitForNotice() tea.Cmd {
	if m.notices == nil {
		return nil
	}
	ch := m.notices
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return noticeMsg(n)
	}
}

func (m Model) syncCmd() tea.Cmd {
	engine := m.app.Engine
	return func() tea.Msg {
		return syncDoneMsg(engine.Sync(context.Background()))
	}
}

func (m Model) submitCmd(lesson string, score float64) tea.Cmd {
	svc := m.app.Service
	return func() tea.Msg {
		out, err := svc.SubmitReview(context.Background(), lesson, score)
		return submitDoneMsg{lesson: lesson, outcome: out, err: err}
	}
}

func (m Model) clearCmd() tea.Cmd {
	svc := m.app.Service
	return func() tea.Msg {
		n, err := svc.ClearQueue()
		return clearDoneMsg{n: n, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "ctrl+s":
			if m.syncing {
				return m, nil
			}
			m.syncing = true
			m.addEntry("sync requested")
			return m, m.syncCmd()
		case "ctrl+x":
			return m, m.clearCmd()
		case "ctrl+o":
			if m.app.Monitor.Online() {
				m.app.Monitor.Handle(connectivity.Event{Signal: connectivity.SignalOffline})
			} else {
				m.app.Monitor.Handle(connectivity.Event{Signal: connectivity.SignalOnline})
			}
			m.status = m.readStatus()
			return m, nil
		case "enter":
			lesson, score, err := parseInput(m.input.Value())
			if err != nil {
				m.addEntry(warnStyle.Render(err.Error()))
				return m, nil
			}
			m.input.Reset()
			return m, m.submitCmd(lesson, score)
		}

	case noticeMsg:
		m.addEntry(fmt.Sprintf("[%s] %s", msg.Kind, msg.Message))
		m.status = m.readStatus()
		return m, m.waitForNotice()

	case syncDoneMsg:
		m.syncing = false
		res := syncer.Result(msg)
		if res.Skipped != syncer.SkipNone {
			m.addEntry("sync skipped: " + string(res.Skipped))
		}
		m.status = m.readStatus()
		return m, nil

	case submitDoneMsg:
		if msg.err != nil {
			m.addEntry(warnStyle.Render(fmt.Sprintf("%s rejected: %v", msg.lesson, msg.err)))
		} else {
			m.addEntry(fmt.Sprintf("%s %s", msg.lesson, msg.outcome))
		}
		m.status = m.readStatus()
		return m, nil

	case clearDoneMsg:
		if msg.err != nil {
			m.addEntry(warnStyle.Render("clear failed: " + msg.err.Error()))
		}
		m.status = m.readStatus()
		return m, nil

	case tickMsg:
		m.status = m.readStatus()
		return m, tickCmd()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		logW := max(m.width-34, 20)
		logH := max(m.height-8, 5)
		if !m.ready {
			m.log = viewport.New(logW, logH)
			m.ready = true
		} else {
			m.log.Width = logW
			m.log.Height = logH
		}
		m.log.SetContent(strings.Join(m.entries, "\n"))
		m.log.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) addEntry(s string) {
	m.entries = append(m.entries, time.Now().Format("15:04:05")+"  "+s)
	if m.ready {
		m.log.SetContent(strings.Join(m.entries, "\n"))
		m.log.GotoBottom()
	}
}

func (m Model) readStatus() status {
	st := status{
		online:  m.app.Monitor.Online(),
		pending: m.app.Service.Pending(),
		total:   m.app.Queue.Len(),
		dead:    len(m.app.Archive.List()),
	}
	if sess, ok := m.app.Sessions.Current(); ok {
		st.user = sess.Username
	}
	st.last, st.lastAt = m.app.Engine.Last()
	return st
}

func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}
	header := headerStyle.Render("reviewsync") + " " + footerStyle.Render(m.app.Config.API.BaseURL)
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		sidebarStyle.Height(m.log.Height).Render(m.renderSidebar()),
		logBorder.Render(m.log.View()),
	)
	footer := footerStyle.Render("enter submit • ctrl+s sync • ctrl+o toggle offline • ctrl+x clear queue • esc quit")
	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.input.View(), footer)
}

func (m Model) renderSidebar() string {
	var b strings.Builder
	b.WriteString(sidebarTitle.Render("Status"))
	b.WriteString("\n")

	if m.status.online {
		b.WriteString(onlineStyle.Render("● online"))
	} else {
		b.WriteString(offlineStyle.Render("○ offline"))
	}
	b.WriteString("\n")
	if m.status.user != "" {
		fmt.Fprintf(&b, "user %s\n", m.status.user)
	} else {
		b.WriteString(warnStyle.Render("logged out") + "\n")
	}
	b.WriteString(metricStyle.Render(fmt.Sprintf("pending %d (all users %d)", len(m.status.pending), m.status.total)) + "\n")
	b.WriteString(metricStyle.Render(fmt.Sprintf("dead letters %d", m.status.dead)) + "\n")
	if !m.status.lastAt.IsZero() {
		l := m.status.last
		b.WriteString(metricStyle.Render(fmt.Sprintf("last sync %s: %d ok, %d kept", m.status.lastAt.Format("15:04:05"), l.Succeeded, l.Requeued)) + "\n")
	}

	if len(m.status.pending) > 0 {
		b.WriteString("\n" + sidebarTitle.Render("Pending"))
		b.WriteString("\n")
		for _, r := range m.status.pending {
			fmt.Fprintf(&b, "%-16s %.2f\n", truncate(r.LessonID, 16), r.PerformanceScore)
		}
	}
	return b.String()
}

func parseInput(s string) (string, float64, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return "", 0, fmt.Errorf("enter a lesson id and a score")
	}
	score, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return "", 0, fmt.Errorf("score %q is not a number", fields[1])
	}
	return fields[0], score, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
