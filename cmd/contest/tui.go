package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/brensch/hypersonic/arena"
)

const recentMatches = 10

type contestDoneMsg struct {
	err error
}

type tickMsg time.Time

type model struct {
	contestID string
	total     int
	played    int
	draws     int
	rounds    int64
	wins      map[string]int
	recent    []string
	startTime time.Time
	now       time.Time
	done      bool
	err       error
	updates   chan tea.Msg
}

func initialModel(contestID string, total int, updates chan tea.Msg) model {
	now := time.Now()
	return model{
		contestID: contestID,
		total:     total,
		wins:      map[string]int{},
		startTime: now,
		now:       now,
		updates:   updates,
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForResult delivers the next match result, or the done message that
// follows the last one. A closed channel ends the wait.
func waitForResult(updates chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-updates
		if !ok {
			return nil
		}
		return msg
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForResult(m.updates), tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tickMsg:
		m.now = time.Time(msg)
		return m, tickCmd()
	case contestDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case arena.MatchResult:
		m.played++
		m.rounds += int64(msg.Rounds)
		winner := msg.Winner
		if msg.Draw() {
			m.draws++
			winner = "draw"
		} else {
			m.wins[msg.Winner]++
		}
		line := fmt.Sprintf("%s  %s vs %s: %s (%s, %d rounds)", msg.Map, msg.A, msg.B, winner, msg.Reason, msg.Rounds)
		m.recent = append([]string{line}, m.recent...)
		if len(m.recent) > recentMatches {
			m.recent = m.recent[:recentMatches]
		}
		return m, waitForResult(m.updates)
	}
	return m, nil
}

func (m model) View() string {
	elapsed := m.now.Sub(m.startTime)
	perSec := 0.0
	if elapsed >= time.Second {
		perSec = float64(m.played) / elapsed.Seconds()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Contest:        %s\n", m.contestID)
	fmt.Fprintf(&b, "Matches:        %s / %s\n", humanize.Comma(int64(m.played)), humanize.Comma(int64(m.total)))
	fmt.Fprintf(&b, "Draws:          %d\n", m.draws)
	fmt.Fprintf(&b, "Rounds played:  %s\n", humanize.Comma(m.rounds))
	fmt.Fprintf(&b, "Duration:       %s\n", elapsed.Round(time.Second))
	fmt.Fprintf(&b, "Matches/Sec:    %.2f\n\n", perSec)

	b.WriteString("Wins:\n")
	for _, s := range m.standings() {
		fmt.Fprintf(&b, "  %-16s %d\n", s.Name, s.Wins)
	}

	b.WriteString("\nRecent Matches:\n")
	for _, line := range m.recent {
		b.WriteString(line + "\n")
	}

	switch {
	case m.done && m.err != nil:
		fmt.Fprintf(&b, "\nStopped: %v\n", m.err)
	case m.done:
		b.WriteString("\nDone.\n")
	default:
		b.WriteString("\nPress q to quit.\n")
	}
	return b.String()
}

func (m model) standings() []arena.Standing {
	out := make([]arena.Standing, 0, len(m.wins))
	for name, w := range m.wins {
		out = append(out, arena.Standing{Name: name, Wins: w})
	}
	arena.SortStandings(out)
	return out
}
