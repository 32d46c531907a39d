package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
)

const queryTimeout = 10 * time.Second

// TraderQuerier provides leaderboard data for the TUI.
type TraderQuerier interface {
	GetTopTraders(ctx context.Context, traderType domain.TraderType, limit int) ([]domain.ScoredTrader, error)
}

// SignalQuerier provides active signal data for the TUI.
type SignalQuerier interface {
	GetActiveSignals(ctx context.Context, strategy domain.StrategyType) ([]domain.Signal, error)
}

// AdvisorQuerier answers free-form questions about the current signals.
type AdvisorQuerier interface {
	Ask(ctx context.Context, chatID int64, userMessage string) (string, error)
}

// Services bundles everything the SSH app needs per session.
type Services struct {
	Traders  TraderQuerier
	Signals  SignalQuerier
	Advisor  AdvisorQuerier
	UserID   int64
	Username string
}

type pane int

const (
	paneLeaderboard pane = iota
	paneSignals
	paneAdvisor
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	activeTabStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Underline(true)
	tabStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	tableStyle     = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240"))
)

type tradersLoadedMsg []domain.ScoredTrader

type signalsLoadedMsg []domain.Signal

type advisorReplyMsg string

type dataErrMsg struct{ err error }

type AppModel struct {
	svc Services

	active      pane
	traderType  domain.TraderType
	leaderboard table.Model
	signals     table.Model
	chat        viewport.Model
	chatLog     []string
	input       textinput.Model

	width   int
	height  int
	waiting bool
	err     error
}

func NewAppModel(svc Services) AppModel {
	leaderboard := table.New(
		table.WithColumns([]table.Column{
			{Title: "Rank", Width: 6},
			{Title: "Trader", Width: 24},
			{Title: "Score", Width: 8},
			{Title: "Win", Width: 6},
			{Title: "Drawdown", Width: 10},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	signals := table.New(
		table.WithColumns([]table.Column{
			{Title: "Action", Width: 8},
			{Title: "Instrument", Width: 12},
			{Title: "Strategy", Width: 14},
			{Title: "Confidence", Width: 12},
			{Title: "Traders", Width: 8},
		}),
		table.WithHeight(12),
	)

	input := textinput.New()
	input.Placeholder = "Ask about the current signals..."
	input.CharLimit = 400

	return AppModel{
		svc:         svc,
		traderType:  domain.TraderTypeLongTerm,
		leaderboard: leaderboard,
		signals:     signals,
		chat:        viewport.New(80, 12),
		input:       input,
	}
}

// SetSize adjusts the layout to the client's terminal.
func (m *AppModel) SetSize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	m.width = width
	m.height = height

	tableHeight := height - 8
	if tableHeight < 4 {
		tableHeight = 4
	}
	m.leaderboard.SetHeight(tableHeight)
	m.signals.SetHeight(tableHeight)
	m.chat.Width = width - 2
	m.chat.Height = tableHeight
	m.input.Width = width - 4
}

func (m AppModel) Init() tea.Cmd {
	return tea.Batch(m.loadTraders(), m.loadSignals())
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case tradersLoadedMsg:
		m.err = nil
		m.leaderboard.SetRows(traderRows(msg))
		return m, nil

	case signalsLoadedMsg:
		m.err = nil
		m.signals.SetRows(signalRows(msg))
		return m, nil

	case advisorReplyMsg:
		m.waiting = false
		m.appendChat("advisor", string(msg))
		return m, nil

	case dataErrMsg:
		m.waiting = false
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		return m, tea.Quit
	}
	if key == "tab" {
		m.active = (m.active + 1) % 3
		m.input.Blur()
		if m.active == paneAdvisor {
			m.input.Focus()
		}
		return m, nil
	}

	if m.active == paneAdvisor {
		switch key {
		case "enter":
			question := strings.TrimSpace(m.input.Value())
			if question == "" || m.waiting {
				return m, nil
			}
			if m.svc.Advisor == nil {
				m.appendChat("system", "Advisor is not configured on this server.")
				return m, nil
			}
			m.input.SetValue("")
			m.waiting = true
			m.appendChat(m.svc.Username, question)
			return m, m.askAdvisor(question)
		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
	}

	switch key {
	case "q":
		return m, tea.Quit
	case "r":
		return m, tea.Batch(m.loadTraders(), m.loadSignals())
	case "t":
		if m.traderType == domain.TraderTypeLongTerm {
			m.traderType = domain.TraderTypeDay
		} else {
			m.traderType = domain.TraderTypeLongTerm
		}
		return m, m.loadTraders()
	}

	var cmd tea.Cmd
	switch m.active {
	case paneLeaderboard:
		m.leaderboard, cmd = m.leaderboard.Update(msg)
	case paneSignals:
		m.signals, cmd = m.signals.Update(msg)
	}
	return m, cmd
}

func (m AppModel) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(fmt.Sprintf("bullaware-monitor | %s", m.svc.Username)))
	sb.WriteString("\n")
	sb.WriteString(m.renderTabs())
	sb.WriteString("\n\n")

	switch m.active {
	case paneLeaderboard:
		sb.WriteString(tableStyle.Render(m.leaderboard.View()))
	case paneSignals:
		sb.WriteString(tableStyle.Render(m.signals.View()))
	case paneAdvisor:
		sb.WriteString(m.chat.View())
		sb.WriteString("\n")
		if m.waiting {
			sb.WriteString(helpStyle.Render("thinking..."))
		} else {
			sb.WriteString(m.input.View())
		}
	}

	sb.WriteString("\n")
	if m.err != nil {
		sb.WriteString(errStyle.Render("error: " + m.err.Error()))
		sb.WriteString("\n")
	}
	sb.WriteString(helpStyle.Render("tab: switch  r: reload  t: toggle trader type  q: quit"))
	return sb.String()
}

func (m AppModel) renderTabs() string {
	labels := []string{
		fmt.Sprintf("Leaderboard (%s)", m.traderType),
		"Signals",
		"Advisor",
	}
	parts := make([]string, len(labels))
	for i, label := range labels {
		if pane(i) == m.active {
			parts[i] = activeTabStyle.Render(label)
		} else {
			parts[i] = tabStyle.Render(label)
		}
	}
	return strings.Join(parts, "  |  ")
}

func (m *AppModel) appendChat(speaker, text string) {
	m.chatLog = append(m.chatLog, fmt.Sprintf("%s: %s", speaker, text))
	m.chat.SetContent(strings.Join(m.chatLog, "\n\n"))
	m.chat.GotoBottom()
}

func (m AppModel) loadTraders() tea.Cmd {
	traderType := m.traderType
	traders := m.svc.Traders
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()
		rows, err := traders.GetTopTraders(ctx, traderType, 20)
		if err != nil {
			return dataErrMsg{err}
		}
		return tradersLoadedMsg(rows)
	}
}

func (m AppModel) loadSignals() tea.Cmd {
	signals := m.svc.Signals
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()
		rows, err := signals.GetActiveSignals(ctx, "")
		if err != nil {
			return dataErrMsg{err}
		}
		return signalsLoadedMsg(rows)
	}
}

func (m AppModel) askAdvisor(question string) tea.Cmd {
	advisor := m.svc.Advisor
	chatID := m.svc.UserID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		reply, err := advisor.Ask(ctx, chatID, question)
		if err != nil {
			return dataErrMsg{err}
		}
		return advisorReplyMsg(reply)
	}
}

func traderRows(traders []domain.ScoredTrader) []table.Row {
	rows := make([]table.Row, 0, len(traders))
	for _, t := range traders {
		rows = append(rows, table.Row{
			fmt.Sprintf("#%d", t.Rank),
			t.Username,
			fmt.Sprintf("%.2f", t.Score),
			fmt.Sprintf("%.0f%%", t.Metrics.WinRate*100),
			fmt.Sprintf("%.1f%%", t.Metrics.MaxDrawdown*100),
		})
	}
	return rows
}

func signalRows(signals []domain.Signal) []table.Row {
	rows := make([]table.Row, 0, len(signals))
	for _, s := range signals {
		rows = append(rows, table.Row{
			string(s.Action),
			s.Instrument,
			string(s.StrategyType),
			fmt.Sprintf("%.0f%%", s.Confidence*100),
			fmt.Sprintf("%d", len(s.SupportingTraders)),
		})
	}
	return rows
}
