// ABOUTME: Bubbletea model for the player TUI
// ABOUTME: Folds session events into display state and maps keys to commands
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Sendspin/sendspin-client/pkg/sendspin"
)

// Controller is the part of the session the UI drives
type Controller interface {
	SetVolume(volume int) error
	SetMuted(muted bool) error
	SendCommand(name string, args sendspin.CommandArgs) error
	Stats() sendspin.Stats
	State() sendspin.ConnectionState
	Volume() (int, bool)
}

// EventMsg delivers one session event to the model
type EventMsg struct {
	Event sendspin.Event
}

type tickMsg time.Time

const refreshInterval = 500 * time.Millisecond

// Model represents the TUI state
type Model struct {
	ctrl Controller

	// Connection
	state      sendspin.ConnectionState
	serverName string
	lastError  string

	// Stream
	codec      string
	sampleRate int
	channels   int
	bitDepth   int

	// Metadata
	title    string
	artist   string
	album    string
	group    string
	playback string
	position time.Duration
	duration time.Duration

	// Playback
	volume      int
	muted       bool
	commands    map[string]bool
	staticDelay int

	// Stats
	stats    sendspin.Stats
	buffered time.Duration

	// Debug
	showDebug bool

	// Dimensions
	width  int
	height int
}

// NewModel creates a new TUI model
func NewModel(ctrl Controller) Model {
	// Seeded from the session since events before Subscribe are not replayed
	volume, muted := ctrl.Volume()
	return Model{
		ctrl:     ctrl,
		state:    ctrl.State(),
		volume:   volume,
		muted:    muted,
		playback: "stopped",
		commands: map[string]bool{},
	}
}

// Init starts the stats refresh
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case EventMsg:
		m.applyEvent(msg.Event)
	case tickMsg:
		if m.ctrl != nil {
			m.stats = m.ctrl.Stats()
			m.buffered = m.stats.Buffered
		}
		return m, tick()
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString(m.renderStreamInfo())
	b.WriteString(m.renderControls())
	b.WriteString(m.renderStats())
	if m.showDebug {
		b.WriteString(m.renderDebug())
	}
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) connected() bool {
	return m.state.Phase == sendspin.PhaseConnected
}

// renderHeader renders connection and sync status
func (m Model) renderHeader() string {
	var connStatus string
	switch m.state.Phase {
	case sendspin.PhaseConnected:
		name := m.serverName
		if name == "" {
			name = m.state.Address
		}
		connStatus = fmt.Sprintf("Connected to %s", name)
	case sendspin.PhaseReconnecting:
		connStatus = fmt.Sprintf("Reconnecting (attempt %d, %s)", m.state.Attempt, m.state.Backoff)
	case sendspin.PhaseConnecting, sendspin.PhaseAwaitingHello:
		connStatus = "Connecting..."
	default:
		connStatus = "Disconnected"
	}

	est := m.stats.Clock
	syncIcon := "✗"
	syncText := "Not synced"
	if est.Ready {
		syncIcon = "✓"
		syncText = fmt.Sprintf("Synced (offset: %+.1fms, ±%.1fms)",
			float64(est.OffsetMicros)/1000.0, float64(est.ErrorMicros)/1000.0)
	} else if est.Measurements > 0 {
		syncIcon = "⚠"
		syncText = "Calibrating"
	}

	return fmt.Sprintf(`┌─ SendSpin Player ────────────────────────────────────┐
│ Status: %-44s │
│ Sync:   %s %-42s │
├──────────────────────────────────────────────────────┤
`, truncate(connStatus, 44), syncIcon, truncate(syncText, 42))
}

// renderStreamInfo renders current stream and metadata
func (m Model) renderStreamInfo() string {
	if !m.connected() || m.codec == "" {
		return "│ No stream                                            │\n"
	}

	s := fmt.Sprintf("│ %-52s │\n", truncate("Now Playing ("+m.playback+"):", 52))
	if m.title != "" {
		s += fmt.Sprintf("│   Track:  %-42s │\n", truncate(m.title, 42))
		s += fmt.Sprintf("│   Artist: %-42s │\n", truncate(m.artist, 42))
		s += fmt.Sprintf("│   Album:  %-42s │\n", truncate(m.album, 42))
		if m.duration > 0 {
			s += fmt.Sprintf("│   Time:   %-42s │\n", formatProgress(m.position, m.duration))
		}
	} else {
		s += "│   (No metadata)                                      │\n"
	}
	if m.group != "" {
		s += fmt.Sprintf("│   Group:  %-42s │\n", truncate(m.group, 42))
	}

	s += "│                                                      │\n"
	format := fmt.Sprintf("%s %dHz %s %d-bit", m.codec, m.sampleRate, channelName(m.channels), m.bitDepth)
	s += fmt.Sprintf("│ Format: %-44s │\n", truncate(format, 44))

	return s
}

// renderControls renders volume and buffer status
func (m Model) renderControls() string {
	muteIcon := ""
	if m.muted {
		muteIcon = " (muted)"
	}
	volume := fmt.Sprintf("[%s] %d%%%s", renderBar(m.volume, 100, 10), m.volume, muteIcon)
	buffer := fmt.Sprintf("%dms (%d chunks)", m.buffered.Milliseconds(), m.stats.Queue.Queued)

	return fmt.Sprintf("│                                                      │\n"+
		"│ Volume: %-44s │\n"+
		"│ Buffer: %-44s │\n",
		volume, buffer)
}

// renderStats renders playback statistics
func (m Model) renderStats() string {
	q := m.stats.Queue
	line := fmt.Sprintf("RX: %d  Played: %d  Dropped: %d", q.Pushed, q.Read, q.Dropped)
	s := fmt.Sprintf("├──────────────────────────────────────────────────────┤\n│ Stats:  %-44s │\n", truncate(line, 44))
	if m.lastError != "" {
		s += fmt.Sprintf("│ Error:  %-44s │\n", truncate(m.lastError, 44))
	}
	return s + "│                                                      │\n"
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ ↑/↓:Volume m:Mute space:Play/Pause n/p:Track d:Debug │
│ q:Quit                                               │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	est := m.stats.Clock
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Clock Offset: %-36s │
│   Drift:        %-36s │
│   Static delay: %-36s │
│   Bursts: %-6d Misses: %-6d Parse errors: %-6d │
`, fmt.Sprintf("%+dμs", est.OffsetMicros), fmt.Sprintf("%+.2fppm", est.DriftPPM),
		fmt.Sprintf("%dms", m.staticDelay), m.stats.Bursts, m.stats.SyncMisses, m.stats.ParseErrors)
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up":
		m.setVolume(m.volume + 5)
	case "down":
		m.setVolume(m.volume - 5)
	case "m":
		m.muted = !m.muted
		if m.ctrl != nil {
			m.report(m.ctrl.SetMuted(m.muted))
		}
	case " ", "space":
		if m.playback == "playing" {
			m.command("pause")
		} else {
			m.command("play")
		}
	case "n":
		m.command("next")
	case "p":
		m.command("previous")
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func (m *Model) setVolume(v int) {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	m.volume = v
	if m.ctrl != nil {
		m.report(m.ctrl.SetVolume(v))
	}
}

// command sends a controller command the server supports
func (m *Model) command(name string) {
	if m.ctrl == nil || !m.connected() {
		return
	}
	if len(m.commands) > 0 && !m.commands[name] {
		return
	}
	m.report(m.ctrl.SendCommand(name, sendspin.CommandArgs{}))
}

func (m *Model) report(err error) {
	if err != nil {
		m.lastError = err.Error()
	}
}

// applyEvent updates model from a session event
func (m *Model) applyEvent(e sendspin.Event) {
	switch e := e.(type) {
	case sendspin.StateEvent:
		m.state = e.State
		m.buffered = e.Buffered
		if e.State.Phase == sendspin.PhaseDisconnected && !e.State.Unexpected {
			m.codec = ""
		}
	case sendspin.ConnectedEvent:
		m.serverName = e.Server.Name
		m.lastError = ""
	case sendspin.StreamStartEvent:
		m.codec = e.Format.Codec
		m.sampleRate = e.Format.SampleRate
		m.channels = e.Format.Channels
		m.bitDepth = e.Format.BitDepth
	case sendspin.StreamEndEvent:
		m.codec = ""
	case sendspin.MetadataEvent:
		m.applyMetadata(e.Metadata)
	case sendspin.GroupEvent:
		if e.Group.GroupName != nil {
			m.group = *e.Group.GroupName
		}
		if e.Group.PlaybackState != nil {
			m.playback = *e.Group.PlaybackState
		}
	case sendspin.PlaybackEvent:
		m.commands = make(map[string]bool, len(e.SupportedCommands))
		for _, c := range e.SupportedCommands {
			m.commands[c] = true
		}
	case sendspin.VolumeEvent:
		m.volume = e.Volume
		m.muted = e.Muted
	case sendspin.SyncOffsetEvent:
		m.staticDelay = e.AppliedMs
	case sendspin.ErrorEvent:
		m.lastError = e.Err.Error()
	}
}

// applyMetadata merges the fields the server sent
func (m *Model) applyMetadata(md sendspin.TrackMetadata) {
	if md.Title != nil {
		m.title = *md.Title
	}
	if md.Artist != nil {
		m.artist = *md.Artist
	}
	if md.Album != nil {
		m.album = *md.Album
	}
	if md.Position != nil {
		m.position = *md.Position
	}
	if md.Duration != nil {
		m.duration = *md.Duration
	}
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	r := []rune(s)
	if len(r) <= length {
		return s
	}
	return string(r[:length-3]) + "..."
}

func channelName(channels int) string {
	if channels == 1 {
		return "Mono"
	}
	return "Stereo"
}

func formatProgress(pos, dur time.Duration) string {
	return fmt.Sprintf("%s / %s", formatClock(pos), formatClock(dur))
}

func formatClock(d time.Duration) string {
	s := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
