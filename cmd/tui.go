// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/scribe/pkg/ds2431"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var tuiVerify bool

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive EEPROM editor",
	Long: `Browse and edit the EEPROM in a terminal UI.

The memory is shown one row per line. Move with the arrow keys, press Enter
to edit the selected row in hex and Enter again to write it. Rows are always
staged and checked before they are copied; 'v' toggles full read-back
verification. Write outcomes and statistics are shown below the memory.`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
	tuiCmd.Flags().BoolVar(&tuiVerify, "verify", true, "Start with full read-back verification enabled")
}

func runTUI(cmd *cobra.Command, args []string) error {
	stats := ds2431.NewStatistics()
	opts, err := deviceOptions(stats)
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	// No logger: records on stderr would tear the alternate screen
	dev := ds2431.New(conn, opts...)

	m := initialEditorModel(dev, stats, connInfo, tuiVerify)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// Event log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

type editorKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Edit   key.Binding
	Cancel key.Binding
	Reload key.Binding
	Verify key.Binding
	Quit   key.Binding
}

func (k editorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Edit, k.Reload, k.Verify, k.Quit}
}

func (k editorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp(), {k.Cancel}}
}

var editorKeys = editorKeyMap{
	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Edit:   key.NewBinding(key.WithKeys("enter", "e"), key.WithHelp("enter", "edit/write")),
	Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel edit")),
	Reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	Verify: key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "toggle verify")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// editorModel is the Bubble Tea model for the EEPROM editor.
//
// The device is only touched from commands, and at most one command runs at
// a time (busy). Statistics reach the view as snapshots carried by messages.
type editorModel struct {
	dev      *ds2431.Device
	stats    *ds2431.Statistics
	snapshot ds2431.Statistics
	connInfo string
	rom      string

	memory []byte
	loaded bool
	cursor int

	input   textinput.Model
	editing bool
	verify  bool
	busy    bool

	keys editorKeyMap
	help help.Model

	errorLog      []errorLogEntry
	maxLogEntries int

	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type editorTickMsg time.Time

type memoryMsg struct {
	data []byte
	rom  string
	err  error
}

type writeDoneMsg struct {
	address  uint16
	readBack []byte
	err      error
	elapsed  time.Duration
	stats    ds2431.Statistics
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialEditorModel(dev *ds2431.Device, stats *ds2431.Statistics, connInfo string, verify bool) editorModel {
	ti := textinput.New()
	ti.Placeholder = "01 02 03 04 05 06 07 08"
	ti.CharLimit = 3*ds2431.RowSize + 2
	ti.Width = 3 * ds2431.RowSize

	return editorModel{
		dev:           dev,
		stats:         stats,
		snapshot:      *stats,
		connInfo:      connInfo,
		input:         ti,
		verify:        verify,
		busy:          true,
		keys:          editorKeys,
		help:          help.New(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m editorModel) Init() tea.Cmd {
	return tea.Batch(readMemoryCmd(m.dev), editorTickCmd())
}

func editorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return editorTickMsg(t)
	})
}

func readMemoryCmd(dev *ds2431.Device) tea.Cmd {
	return func() tea.Msg {
		rom := ""
		if addr, ok := dev.Address(); ok {
			rom = addr.String()
		} else if addr, err := dev.Identify(); err == nil {
			rom = addr.String()
		}

		data, err := dev.ReadAll()
		return memoryMsg{data: data, rom: rom, err: err}
	}
}

func writeRowCmd(dev *ds2431.Device, stats *ds2431.Statistics, address uint16, data []byte, verify bool) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		err := dev.Write(address, data, verify)
		msg := writeDoneMsg{address: address, err: err, elapsed: time.Since(start), stats: *stats}
		if err != nil {
			return msg
		}

		readBack := make([]byte, ds2431.RowSize)
		if rerr := dev.Read(address, readBack); rerr == nil {
			msg.readBack = readBack
		}
		return msg
	}
}

func (m editorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.editing {
			return m.handleEditKey(msg)
		}
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case editorTickMsg:
		m.snapshot.CalculateRates()
		return m, editorTickCmd()

	case memoryMsg:
		m.busy = false
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Read failed: %v", msg.err), true)
			return m, nil
		}
		m.memory = msg.data
		m.loaded = true
		if msg.rom != "" {
			m.rom = msg.rom
		}
		m.addLogEntry(fmt.Sprintf("Read %d bytes", len(msg.data)), false)

	case writeDoneMsg:
		m.busy = false
		m.snapshot = msg.stats
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("%s: %v", strings.ToUpper(ds2431.ResultOf(msg.err).String()), msg.err), true)
			return m, nil
		}
		if msg.readBack != nil {
			copy(m.memory[msg.address:], msg.readBack)
		}
		m.addLogEntry(fmt.Sprintf("Row 0x%02X committed in %s", msg.address, msg.elapsed.Round(time.Millisecond)), false)
	}

	return m, nil
}

func (m editorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < ds2431.RowCount-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Edit):
		if m.busy || !m.loaded {
			return m, nil
		}
		m.editing = true
		m.input.SetValue(strings.ToUpper(hex.EncodeToString(m.selectedRow())))
		m.input.CursorEnd()
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.Reload):
		if m.busy {
			return m, nil
		}
		m.busy = true
		return m, readMemoryCmd(m.dev)

	case key.Matches(msg, m.keys.Verify):
		m.verify = !m.verify
		if m.verify {
			m.addLogEntry("Full verification enabled", false)
		} else {
			m.addLogEntry("Full verification disabled", false)
		}
	}

	return m, nil
}

func (m editorModel) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		m.editing = false
		m.input.Blur()
		return m, nil

	case msg.String() == "enter":
		return m.submitEdit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m editorModel) submitEdit() (tea.Model, tea.Cmd) {
	data, err := parseHexData(m.input.Value())
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return m, nil
	}
	if len(data) > ds2431.RowSize {
		m.addLogEntry(fmt.Sprintf("A row holds %d bytes, got %d", ds2431.RowSize, len(data)), true)
		return m, nil
	}

	m.editing = false
	m.input.Blur()
	m.busy = true

	address := uint16(m.cursor * ds2431.RowSize)
	m.addLogEntry(fmt.Sprintf("Writing row 0x%02X: % X", address, data), false)
	return m, writeRowCmd(m.dev, m.stats, address, data, m.verify)
}

func (m editorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	selectedStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("12"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("SCRIBE - EEPROM EDITOR"))
	s.WriteString(" ")
	rom := m.rom
	if rom == "" {
		rom = "ROM unknown"
	}
	verifyMode := "verify on CRC error"
	if m.verify {
		verifyMode = "verify always"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | %s | %s", m.connInfo, rom, verifyMode)))
	s.WriteString("\n\n")

	// Memory
	var mem strings.Builder
	if !m.loaded {
		mem.WriteString(warningStyle.Render("Reading memory..."))
	} else {
		for row := 0; row < ds2431.RowCount; row++ {
			address := uint16(row * ds2431.RowSize)
			line := ds2431.FormatRow(address, m.memory[address:address+ds2431.RowSize])
			if row == m.cursor {
				line = selectedStyle.Render(line)
			}
			mem.WriteString(line)
			if row < ds2431.RowCount-1 {
				mem.WriteString("\n")
			}
		}
	}

	memStyle := boxStyle
	if !m.editing {
		memStyle = focusedBoxStyle
	}
	memPanel := memStyle.Render(mem.String())
	statsPanel := boxStyle.Render(m.renderStatistics(statsLabelStyle, statsValueStyle, errorStyle))
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, memPanel, " ", statsPanel))
	s.WriteString("\n")

	// Editor line
	switch {
	case m.editing:
		s.WriteString(focusedBoxStyle.Render(fmt.Sprintf("%s %s",
			statsLabelStyle.Render(fmt.Sprintf("Row 0x%02X:", m.cursor*ds2431.RowSize)),
			m.input.View())))
	case m.busy:
		s.WriteString(warningStyle.Render(" Working..."))
	default:
		s.WriteString(headerStyle.Render(" Select a row and press Enter to edit"))
	}
	s.WriteString("\n\n")

	// Event log
	s.WriteString(m.renderEventLog(statsLabelStyle, headerStyle, warningStyle, errorStyle, boxStyle))
	s.WriteString("\n")
	s.WriteString(m.help.View(m.keys))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m editorModel) renderStatistics(statsLabelStyle, statsValueStyle, errorStyle lipgloss.Style) string {
	st := m.snapshot

	failedStyle := statsValueStyle
	if st.Failed() > 0 {
		failedStyle = errorStyle
	}

	lines := []string{
		statsLabelStyle.Render("STATISTICS"),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Writes:   "), statsValueStyle.Render(fmt.Sprintf("%d", st.TotalWrites))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Committed:"), statsValueStyle.Render(fmt.Sprintf("%d", st.Committed))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Failed:   "), failedStyle.Render(fmt.Sprintf("%d", st.Failed()))),
		"",
		fmt.Sprintf("%s %d", statsLabelStyle.Render("Staging:  "), st.StagingMismatches),
		fmt.Sprintf("%s %d", statsLabelStyle.Render("Commit:   "), st.CommitFailures),
		fmt.Sprintf("%s %d", statsLabelStyle.Render("CRC max:  "), st.RetriesExhausted),
		fmt.Sprintf("%s %d", statsLabelStyle.Render("Bus:      "), st.BusFaults),
		"",
		fmt.Sprintf("%s %d", statsLabelStyle.Render("Forced:   "), st.ForcedVerifies),
		fmt.Sprintf("%s %d", statsLabelStyle.Render("Retries:  "), st.CRCRetries),
	}
	return strings.Join(lines, "\n")
}

func (m editorModel) renderEventLog(statsLabelStyle, headerStyle, warningStyle, errorStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	// Reserve space for header, memory and help
	logHeight := m.height - ds2431.RowCount - 12
	if logHeight < 3 {
		logHeight = 3
	}

	startIdx := len(m.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.errorLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyle
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(timestamp),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(max(m.width-4, 20)).Render(strings.TrimSuffix(s.String(), "\n"))
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *editorModel) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

func (m editorModel) selectedRow() []byte {
	address := m.cursor * ds2431.RowSize
	return m.memory[address : address+ds2431.RowSize]
}
