package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/lehungry-robotum/commander/pkg/config"
	"github.com/lehungry-robotum/commander/pkg/monitor"
	"github.com/lehungry-robotum/commander/pkg/robot"
)

type MonitorCommand struct {
	Role string `long:"role" choice:"leader" choice:"follower" description:"Arm to monitor (asked when omitted)"`
	Hz   int    `long:"hz" default:"30" description:"Polling frequency"`
}

func (c *MonitorCommand) Execute(args []string) error {
	a := newApp()
	if c.Role == "" {
		return aborted(a.monitor(rootCtx, c.Hz))
	}
	return aborted(a.monitorRole(rootCtx, robot.Role(c.Role), c.Hz))
}

const defaultMonitorHz = 30

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5
	borderSize   = 2
)

var motorColors = map[robot.MotorName]string{
	robot.ShoulderPan:  "196", // red
	robot.ShoulderLift: "208", // orange
	robot.ElbowFlex:    "226", // yellow
	robot.WristFlex:    "46",  // green
	robot.WristRoll:    "51",  // cyan
	robot.Gripper:      "201", // magenta
}

var (
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func (a *app) monitor(ctx context.Context, hz int) error {
	printHeader("Monitor Arm")

	role, ok, err := selectRole("Select arm to monitor")
	if err != nil || !ok {
		return err
	}
	return a.monitorRole(ctx, role, hz)
}

func (a *app) monitorRole(ctx context.Context, role robot.Role, hz int) error {
	key := config.KeyLeaderPort
	if role == robot.Follower {
		key = config.KeyFollowerPort
	}
	port := a.cfg.Get(key, "")
	if port == "" {
		return fmt.Errorf("%s not set, please 'Find Port' first", strings.ToLower(config.RoleTitle(key)))
	}

	deviceType, id := a.settings.DeviceType(role)
	cal, err := robot.LoadCalibration(robot.CalibrationPath(a.cacheRoot, role, deviceType, id))
	if err != nil {
		return fmt.Errorf("arm not calibrated, please 'Calibrate Robot' first: %w", err)
	}

	arm, err := robot.NewArm(port, cal)
	if err != nil {
		return err
	}
	defer arm.Close()

	ctrl := monitor.NewController(arm, monitor.Config{Name: id, Hz: hz})
	stop := a.startMonitor(ctx, ctrl)
	defer stop()

	p := tea.NewProgram(newMonitorModel(ctrl, port), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run monitor: %w", err)
	}
	return ctx.Err()
}

// startMonitor polls in the background. The returned func cancels polling and
// waits for the last bus read, so the arm can be closed after it returns.
func (a *app) startMonitor(ctx context.Context, ctrl *monitor.Controller) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := ctrl.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("monitor stopped", "err", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

type monitorModel struct {
	ctrl          *monitor.Controller
	port          string
	chart         *streamlinechart.Model
	width         int
	height        int
	logs          []string
	quitting      bool
	lastPositions map[robot.MotorName]float64
}

func (m *monitorModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// hasMovement reports whether any position changed since the last reading.
func (m *monitorModel) hasMovement(positions map[robot.MotorName]float64) bool {
	if m.lastPositions == nil {
		return true
	}
	for name, pos := range positions {
		if last, ok := m.lastPositions[name]; !ok || pos != last {
			return true
		}
	}
	return false
}

type stateMsg monitor.State
type logMsg string

func waitForState(ctrl *monitor.Controller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ctrl.States())
	}
}

func waitForLog(ctrl *monitor.Controller) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ctrl.Logs())
	}
}

func (m *monitorModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-legendHeight-footerHeight-borderSize, 10)
	return width, height
}

func newMonitorModel(ctrl *monitor.Controller, port string) monitorModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-100, 100),
	)
	for _, name := range robot.AllMotors() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(motorColors[name]))
		chart.SetDataSetStyles(string(name), runes.ThinLineStyle, style)
	}

	return monitorModel{
		ctrl:  ctrl,
		port:  port,
		chart: &chart,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.ctrl),
		waitForLog(m.ctrl),
	)
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chart.Resize(m.chartSize())
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case stateMsg:
		state := monitor.State(msg)
		// freeze the chart while the arm is idle
		if state.Positions != nil && m.hasMovement(state.Positions) {
			for name, pos := range state.Positions {
				m.chart.PushDataSet(string(name), pos)
			}
			m.chart.DrawAll()
			m.lastPositions = state.Positions
		}
		return m, waitForState(m.ctrl)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.ctrl)
	}

	return m, nil
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Monitoring stopped.\n"
	}

	var sb strings.Builder

	sb.WriteString(headerStyle.Render("LeRobot Monitor"))
	sb.WriteString(fmt.Sprintf(" - %s @ %d Hz", m.port, m.ctrl.Hz()))
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	sb.WriteString(renderLegend(m.lastPositions))
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20)).
		Foreground(lipgloss.Color("9"))

	logLines := statusStyle.Render("Press 'q' to quit")
	if len(m.logs) > 0 {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func renderLegend(positions map[robot.MotorName]float64) string {
	var items []string
	for _, name := range robot.AllMotors() {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(motorColors[name])).Bold(true)
		item := colorStyle.Render("━━") + " " + string(name)
		if pos, ok := positions[name]; ok {
			item += statusStyle.Render(fmt.Sprintf(" %.1f", pos))
		}
		items = append(items, item)
	}
	return strings.Join(items, "  ")
}
