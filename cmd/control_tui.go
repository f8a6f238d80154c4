// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/z21stat/internal/client"
	"github.com/Thermoquad/z21stat/internal/stats"
	"github.com/Thermoquad/z21stat/pkg/z21"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	locoTableSize = 64
	maxLogEntries = 100
)

// Focus states
const (
	focusLocoList = iota
	focusDrive
	focusAddress
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// locoItem is one row of the loco list
type locoItem struct {
	info z21.LocoInfo
}

// Implement list.Item interface
func (l locoItem) Title() string { return fmt.Sprintf("Loco %d", l.info.Address) }
func (l locoItem) Description() string {
	if l.info.EmergencyStop {
		return fmt.Sprintf("%s ESTOP", l.info.Direction)
	}
	return fmt.Sprintf("%s %d/%d", l.info.Direction, l.info.Speed, l.info.SpeedSteps.MaxSpeed())
}
func (l locoItem) FilterValue() string { return fmt.Sprintf("%d", l.info.Address) }

type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	// Connection manager (for sending commands and reconnection)
	connMgr  *connectionManager
	connInfo string

	// Loco tracking
	locos    *client.LocoTable
	locoList list.Model
	selected uint16 // 0 = none

	// Station state
	power          string
	systemState    z21.SystemStateChanged
	hasSystemState bool

	// Monitoring
	stats    *stats.Statistics
	eventLog []logEntry

	// Control
	addressInput textinput.Model
	focusedField int

	// UI state
	width          int
	height         int
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type controlBatchMsg struct {
	observations []client.Observation
}

type commandResultMsg struct {
	command z21.Command
	err     error
}

type connectionLostMsg struct{}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(connMgr *connectionManager, connInfo string) controlModel {
	// Initialize text input for the loco address
	ti := textinput.New()
	ti.Placeholder = "3"
	ti.CharLimit = 4
	ti.Width = 6

	// Initialize loco list with empty items
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	locoList := list.New([]list.Item{}, delegate, 24, 10)
	locoList.Title = "Locos"
	locoList.SetShowStatusBar(false)
	locoList.SetShowHelp(false)
	locoList.SetFilteringEnabled(false)
	locoList.KeyMap.Quit.SetEnabled(false) // q is handled by the model

	// Size is a constant, so this cannot fail
	locos, _ := client.NewLocoTable(locoTableSize)

	return controlModel{
		connMgr:      connMgr,
		connInfo:     connInfo,
		locos:        locos,
		locoList:     locoList,
		power:        "unknown",
		stats:        connMgr.stats,
		eventLog:     make([]logEntry, 0),
		addressInput: ti,
		focusedField: focusLocoList,
		width:        80,
		height:       24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return controlTickCmd()
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case controlTickMsg:
		m.updateLocoList()
		return m, controlTickCmd()

	case controlBatchMsg:
		for _, o := range msg.observations {
			m.processObservation(o)
		}
		m.updateLocoList()

	case commandResultMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Failed to send %s: %v", msg.command.Name(), msg.err), true)
		} else {
			m.addLogEntry("Sent "+z21.FormatCommand(msg.command), false)
		}

	case connectionLostMsg:
		m.connectionLost = true
		m.addLogEntry("Connection lost - reconnecting...", true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.addLogEntry("Reconnected", false)
	}

	return m, nil
}

func (m controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.focusedField == focusAddress {
		return m.handleAddressKey(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab", "shift+tab":
		if m.focusedField == focusLocoList {
			m.focusedField = focusDrive
		} else {
			m.focusedField = focusLocoList
		}
		return m, nil

	case "a":
		m.focusedField = focusAddress
		m.addressInput.SetValue("")
		return m, m.addressInput.Focus()

	case "p":
		return m, m.sendCommand(z21.SetTrackPowerOn{})

	case "o":
		return m, m.sendCommand(z21.SetTrackPowerOff{})

	case "s":
		return m, m.sendCommand(z21.SetStop{})

	case "r":
		return m, m.reverse()

	case "l":
		return m, m.toggleLight()

	case "e":
		return m, m.emergencyStop()

	case "up", "k":
		if m.focusedField == focusDrive {
			return m, m.changeSpeed(1)
		}

	case "down", "j":
		if m.focusedField == focusDrive {
			return m, m.changeSpeed(-1)
		}

	case "enter":
		if m.focusedField == focusLocoList {
			if item, ok := m.locoList.SelectedItem().(locoItem); ok {
				m.selected = item.info.Address
				m.focusedField = focusDrive
			}
		}
		return m, nil
	}

	// Pass navigation through to the list
	if m.focusedField == focusLocoList {
		var cmd tea.Cmd
		m.locoList, cmd = m.locoList.Update(msg)
		if item, ok := m.locoList.SelectedItem().(locoItem); ok {
			m.selected = item.info.Address
		}
		return m, cmd
	}
	return m, nil
}

func (m controlModel) handleAddressKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "esc":
		m.addressInput.Blur()
		m.focusedField = focusLocoList
		return m, nil

	case "enter":
		m.addressInput.Blur()
		m.focusedField = focusDrive

		addr, err := parseLocoAddress(m.addressInput.Value())
		if err != nil {
			m.addLogEntry(err.Error(), true)
			return m, nil
		}
		command, err := z21.NewGetLocoInfo(addr)
		if err != nil {
			m.addLogEntry(err.Error(), true)
			return m, nil
		}
		m.selected = addr
		return m, m.sendCommand(command)
	}

	var cmd tea.Cmd
	m.addressInput, cmd = m.addressInput.Update(msg)
	return m, cmd
}

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

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

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	// Header
	s.WriteString(titleStyle.Render("Z21STAT CONTROL"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | q=quit Tab=switch a=address", connStatus)))
	s.WriteString("\n\n")

	// Station state
	s.WriteString(m.renderStationBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle))
	s.WriteString("\n")

	// Layout: left panel (locos) | right panel (drive)
	leftWidth := 26
	rightWidth := m.width - leftWidth - 6
	if rightWidth < 20 {
		rightWidth = 20
	}

	listStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusLocoList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	locoPanel := listStyle.Render(m.locoList.View())

	driveStyle := boxStyle.Width(rightWidth)
	if m.focusedField != focusLocoList {
		driveStyle = focusedBoxStyle.Width(rightWidth)
	}
	drivePanel := driveStyle.Render(m.renderDrivePanel(statsLabelStyle, statsValueStyle, headerStyle, errorStyle))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, locoPanel, " ", drivePanel))
	s.WriteString("\n")

	// Statistics bar
	s.WriteString(m.renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle))
	s.WriteString("\n")

	// Event log
	s.WriteString(m.renderEventLog(statsLabelStyle, warningStyle, boxStyle))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m controlModel) renderStationBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle lipgloss.Style) string {
	powerStyle := statsValueStyle
	if m.power != "on" {
		powerStyle = errorStyle
	}

	content := fmt.Sprintf("%s %s", statsLabelStyle.Render("Track:"), powerStyle.Render(m.power))
	if m.hasSystemState {
		st := m.systemState
		content += fmt.Sprintf("  %s %s  %s %s  %s %s",
			statsLabelStyle.Render("Main:"), statsValueStyle.Render(fmt.Sprintf("%d mA", st.MainCurrent)),
			statsLabelStyle.Render("Voltage:"), statsValueStyle.Render(fmt.Sprintf("%.1f V", float64(st.VCCVoltage)/1000)),
			statsLabelStyle.Render("Temp:"), statsValueStyle.Render(fmt.Sprintf("%d°C", st.Temperature)))
	}
	return boxStyle.Width(m.width - 4).Render(content)
}

func (m controlModel) renderDrivePanel(statsLabelStyle, statsValueStyle, headerStyle, errorStyle lipgloss.Style) string {
	var s strings.Builder

	if m.focusedField == focusAddress {
		s.WriteString(statsLabelStyle.Render("Address: "))
		s.WriteString(m.addressInput.View())
		s.WriteString("\n\n")
		s.WriteString(headerStyle.Render("Enter=select Esc=cancel"))
		return s.String()
	}

	if m.selected == 0 {
		s.WriteString(headerStyle.Render("No loco selected (press a to enter an address)"))
		return s.String()
	}

	info, known := m.locos.Get(m.selected)
	s.WriteString(fmt.Sprintf("%s Loco %d\n", statsLabelStyle.Render("Selected:"), m.selected))
	if !known {
		s.WriteString(headerStyle.Render("Waiting for loco info..."))
		return s.String()
	}

	top := info.SpeedSteps.MaxSpeed()
	speed := statsValueStyle.Render(fmt.Sprintf("%d / %d", info.Speed, top))
	if info.EmergencyStop {
		speed = errorStyle.Render("EMERGENCY STOP")
	}
	s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Direction:"), statsValueStyle.Render(info.Direction.String())))
	s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Speed:"), speed))
	s.WriteString(speedBar(info.Speed, top, 30))
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("%s %d steps\n", statsLabelStyle.Render("Mode:"), info.SpeedSteps))

	functions := z21.FormatFunctions(info.Functions)
	if functions == "" {
		functions = "none"
	}
	s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Functions:"), functions))
	if info.Busy {
		s.WriteString(headerStyle.Render("Also controlled by another client\n"))
	}
	s.WriteString("\n")
	s.WriteString(headerStyle.Render("up/down=speed r=reverse l=light e=stop"))
	return s.String()
}

// speedBar draws speed as a horizontal gauge of width cells
func speedBar(speed, top uint8, width int) string {
	if top == 0 {
		return ""
	}
	filled := min(int(speed), int(top)) * width / int(top)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

func (m controlModel) renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle lipgloss.Style) string {
	c := m.stats.Snapshot()
	var validPercent, errorPercent float64
	if c.TotalRecords > 0 {
		validPercent = float64(c.ValidRecords) * 100.0 / float64(c.TotalRecords)
		errorPercent = float64(c.Errors()) * 100.0 / float64(c.TotalRecords)
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", c.TotalRecords)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%.1f%%", validPercent)),
		statsLabelStyle.Render("Errors:"), func() string {
			if errorPercent > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f%%", errorPercent))
			}
			return statsValueStyle.Render("0.0%")
		}(),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f rec/s", c.RecordRate)),
		statsLabelStyle.Render("Sent:"), statsValueStyle.Render(fmt.Sprintf("%d", c.SentCommands)),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m controlModel) renderEventLog(statsLabelStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyleLocal := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	logHeight := 8
	if len(m.eventLog) < logHeight {
		logHeight = len(m.eventLog)
	}
	startIdx := len(m.eventLog) - logHeight

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyleLocal
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(timestamp),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *controlModel) processObservation(o client.Observation) {
	switch ev := o.Event.(type) {
	case z21.TrackPowerOn:
		m.setPower("on")
	case z21.TrackPowerOff:
		m.setPower("off")
	case z21.Stopped:
		m.setPower("emergency stop")
	case z21.ProgrammingMode:
		m.setPower("programming")
	case z21.ShortCircuit:
		m.setPower("short circuit")
		m.addLogEntry("SHORT CIRCUIT", true)
	case z21.StatusChanged:
		m.setPower(powerState(ev.CentralState))
	case z21.SystemStateChanged:
		m.systemState = ev
		m.hasSystemState = true
		m.setPower(powerState(ev.CentralState))
	case z21.LocoInfo:
		m.locos.Update(ev)
	case z21.InvalidMessage:
		m.addLogEntry(fmt.Sprintf("INVALID: %v", ev.Reason), true)
	case z21.UnrecognizedMessage:
		m.addLogEntry("Unrecognized: "+z21.FormatHex(ev.Raw), false)
	}
}

// powerState summarizes the central state bits
func powerState(state byte) string {
	switch {
	case state&z21.CentralShortCircuit != 0:
		return "short circuit"
	case state&z21.CentralEmergencyStop != 0:
		return "emergency stop"
	case state&z21.CentralTrackVoltageOff != 0:
		return "off"
	case state&z21.CentralProgrammingMode != 0:
		return "programming"
	}
	return "on"
}

func (m *controlModel) setPower(power string) {
	if power != m.power {
		m.addLogEntry(fmt.Sprintf("Track power: %s -> %s", m.power, power), false)
		m.power = power
	}
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

func (m *controlModel) sendCommand(c z21.Command) tea.Cmd {
	if m.connectionLost {
		m.addLogEntry("Cannot send command: connection lost", true)
		return nil
	}
	return m.connMgr.send(c)
}

// selectedDrive returns the last known drive state of the selected loco
func (m *controlModel) selectedDrive() (z21.LocoInfo, bool) {
	if m.selected == 0 {
		return z21.LocoInfo{}, false
	}
	info, ok := m.locos.Get(m.selected)
	if !ok {
		info = z21.LocoInfo{Address: m.selected, SpeedSteps: z21.SpeedSteps128, Direction: z21.Forward}
	}
	return info, true
}

// drive sends the new state and records it until the station confirms it
func (m *controlModel) drive(info z21.LocoInfo) tea.Cmd {
	command, err := z21.NewSetLocoDrive(info.Address, info.SpeedSteps, info.Direction, info.Speed)
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return nil
	}
	info.EmergencyStop = false
	m.locos.Update(info)
	return m.sendCommand(command)
}

func (m *controlModel) changeSpeed(delta int) tea.Cmd {
	info, ok := m.selectedDrive()
	if !ok {
		return nil
	}
	speed := int(info.Speed) + delta
	if speed < 0 {
		speed = 0
	}
	if top := int(info.SpeedSteps.MaxSpeed()); speed > top {
		speed = top
	}
	info.Speed = uint8(speed)
	return m.drive(info)
}

func (m *controlModel) reverse() tea.Cmd {
	info, ok := m.selectedDrive()
	if !ok {
		return nil
	}
	if info.Direction == z21.Forward {
		info.Direction = z21.Reverse
	} else {
		info.Direction = z21.Forward
	}
	return m.drive(info)
}

func (m *controlModel) toggleLight() tea.Cmd {
	if m.selected == 0 {
		return nil
	}
	command, err := z21.NewSetLocoFunction(m.selected, 0, z21.FunctionToggle)
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return nil
	}
	return m.sendCommand(command)
}

func (m *controlModel) emergencyStop() tea.Cmd {
	info, ok := m.selectedDrive()
	if !ok {
		return nil
	}
	command, err := z21.NewLocoEmergencyStop(info.Address, info.SpeedSteps, info.Direction)
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return nil
	}
	return m.sendCommand(command)
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *controlModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	if len(m.eventLog) > maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-maxLogEntries:]
	}
}

func (m *controlModel) updateLocoList() {
	snapshot := m.locos.Snapshot()
	items := make([]list.Item, len(snapshot))
	for i, info := range snapshot {
		items[i] = locoItem{info: info}
	}
	m.locoList.SetItems(items)
}

func (m *controlModel) updateListSize() {
	// Adjust list size based on terminal size
	listHeight := m.height / 3
	if listHeight < 5 {
		listHeight = 5
	}
	m.locoList.SetSize(24, listHeight)
}
