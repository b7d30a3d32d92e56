// Package tui provides the Bubble Tea logbook browser.
package tui

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/qlogstats/qlogstats/internal/export"
	"github.com/qlogstats/qlogstats/internal/model"
	"github.com/qlogstats/qlogstats/internal/query"
	"github.com/qlogstats/qlogstats/internal/sorter"
	"github.com/qlogstats/qlogstats/internal/stats"
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Options configure the browser.
type Options struct {
	ExportDir    string
	ExportFormat export.Format
	ChartLimit   int
}

// Model implements the Bubble Tea logbook browser.
type Model struct {
	engine *stats.Engine
	opts   Options

	ids    []string
	active int

	dates   model.DateRange
	filters model.Filters
	sort    model.SortState

	result *model.ResultSet
	detail *model.ResultSet

	grid      table.Model
	chartView viewport.Model
	showChart bool

	width  int
	height int

	filterMode   bool
	filterInputs []textinput.Model
	filterIndex  int
	filterError  string

	errMsg    string
	statusMsg string
}

// NewModel constructs a logbook browser model.
func NewModel(engine *stats.Engine, opts Options) *Model {
	m := &Model{
		engine: engine,
		opts:   opts,
		ids:    engine.Registry().IDs(),
	}
	m.grid = table.New(table.WithHeight(1))
	m.grid.SetStyles(gridStyles())
	m.chartView = viewport.New(0, 0)
	m.initInputs()
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "left", "h":
			m.moveStatistic(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveStatistic(1)
			return m, tea.ClearScreen
		case "/":
			return m.startFilter()
		case "c":
			m.toggleChart()
			return m, nil
		case "e":
			m.exportCurrent()
			return m, nil
		case "enter":
			m.drillDown()
			return m, nil
		case "esc":
			if m.detail != nil {
				m.detail = nil
				m.applySort()
			}
			return m, nil
		case "g", "home":
			m.grid.GotoTop()
			return m, nil
		case "G", "end":
			m.grid.GotoBottom()
			return m, nil
		case "1", "2", "3", "4", "5", "6", "7", "8", "9":
			m.sortByColumn(int(msg.String()[0] - '1'))
			return m, nil
		default:
			if m.showChart {
				var cmd tea.Cmd
				m.chartView, cmd = m.chartView.Update(msg)
				return m, cmd
			}
			var cmd tea.Cmd
			m.grid, cmd = m.grid.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) descriptor() stats.Descriptor {
	desc, _ := m.engine.Registry().Lookup(m.ids[m.active])
	return desc
}

func (m *Model) request() query.Request {
	return query.Request{
		Statistic: m.ids[m.active],
		Dates:     m.dates,
		Filters:   m.filters,
	}
}

func (m *Model) refresh() {
	m.detail = nil
	m.showChart = false
	m.sort = model.SortState{}
	rs, err := m.engine.Run(context.Background(), m.request())
	if err != nil {
		m.errMsg = err.Error()
		m.result = nil
		m.applySort()
		return
	}
	m.errMsg = ""
	m.result = rs
	m.applySort()
}

func (m *Model) current() *model.ResultSet {
	if m.detail != nil {
		return m.detail
	}
	return m.result
}

func (m *Model) applySort() {
	rs := m.current()
	if rs == nil {
		m.grid.SetColumns(nil)
		m.grid.SetRows(nil)
		return
	}
	sorted := sorter.Sort(rs, m.sort)
	cols, rows := buildGridData(sorted, m.gridWidth())
	m.grid.SetColumns(cols)
	m.grid.SetRows(rows)
	m.grid.GotoTop()
}

func (m *Model) sortByColumn(idx int) {
	rs := m.current()
	if rs == nil || idx < 0 || idx >= len(rs.Columns) {
		return
	}
	m.sort.Activate(rs.Columns[idx].Key)
	m.applySort()
}

func (m *Model) moveStatistic(delta int) {
	count := len(m.ids)
	if count == 0 {
		return
	}
	next := m.active + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.active = next
	m.statusMsg = ""
	m.refresh()
	m.updateLayout()
}

func (m *Model) drillDown() {
	if m.detail != nil || m.result == nil || m.showChart {
		return
	}
	desc := m.descriptor()
	if desc.GroupField == "" {
		return
	}
	row := m.grid.SelectedRow()
	if len(row) == 0 {
		return
	}
	detail, err := m.engine.DrillDown(context.Background(), m.request(), row[0])
	if err != nil {
		m.errMsg = err.Error()
		return
	}
	m.errMsg = ""
	m.sort = model.SortState{}
	m.detail = detail
	m.applySort()
}

func (m *Model) toggleChart() {
	if m.result == nil {
		return
	}
	if m.showChart {
		m.showChart = false
		return
	}
	desc := m.descriptor()
	if !desc.Chartable || m.detail != nil {
		return
	}
	points := stats.ChartPoints(desc, m.result)
	var buf bytes.Buffer
	if err := stats.RenderBarChart(&buf, desc.Label, points, m.width, m.opts.ChartLimit); err != nil {
		m.errMsg = err.Error()
		return
	}
	m.chartView.SetContent(strings.TrimRight(buf.String(), "\n"))
	m.chartView.GotoTop()
	m.showChart = true
}

func (m *Model) exportCurrent() {
	rs := m.current()
	if rs == nil {
		return
	}
	name := m.ids[m.active]
	if m.detail != nil {
		name += "_detail"
	}
	path, err := export.Write(m.opts.ExportDir, name, m.opts.ExportFormat, sorter.Sort(rs, m.sort))
	if err != nil {
		m.errMsg = err.Error()
		return
	}
	m.errMsg = ""
	m.statusMsg = fmt.Sprintf("Exported to %s", path)
}

func (m *Model) initInputs() {
	m.filterInputs = []textinput.Model{
		newFilterInput("From (YYYY-MM-DD): "),
		newFilterInput("To (YYYY-MM-DD): "),
		newFilterInput("Band: "),
		newFilterInput("Mode: "),
		newFilterInput("Country: "),
	}
	m.setInputsFromFilters()
}

func newFilterInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) setInputsFromFilters() {
	if m.dates.From != nil {
		m.filterInputs[0].SetValue(m.dates.From.Format("2006-01-02"))
	} else {
		m.filterInputs[0].SetValue("")
	}
	if m.dates.To != nil {
		m.filterInputs[1].SetValue(m.dates.To.Format("2006-01-02"))
	} else {
		m.filterInputs[1].SetValue("")
	}
	m.filterInputs[2].SetValue(m.filters.Band)
	m.filterInputs[3].SetValue(m.filters.Mode)
	m.filterInputs[4].SetValue(m.filters.Country)
}

func (m *Model) startFilter() (tea.Model, tea.Cmd) {
	m.filterMode = true
	m.filterError = ""
	m.setInputsFromFilters()
	return m, m.setFilterIndex(0)
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterError = ""
		return m, nil
	case tea.KeyEnter:
		if err := m.applyFilter(); err != nil {
			m.filterError = err.Error()
			return m, nil
		}
		m.filterMode = false
		m.filterError = ""
		m.refresh()
		m.updateLayout()
		return m, nil
	case tea.KeyTab:
		return m, m.setFilterIndex(m.filterIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setFilterIndex(m.filterIndex - 1)
	}
	var cmd tea.Cmd
	m.filterInputs[m.filterIndex], cmd = m.filterInputs[m.filterIndex].Update(msg)
	return m, cmd
}

func (m *Model) setFilterIndex(idx int) tea.Cmd {
	count := len(m.filterInputs)
	if count == 0 {
		return nil
	}
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	m.filterIndex = idx
	var cmd tea.Cmd
	for i := range m.filterInputs {
		if i == m.filterIndex {
			cmd = m.filterInputs[i].Focus()
		} else {
			m.filterInputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) applyFilter() error {
	var dates model.DateRange
	fromInput := strings.TrimSpace(m.filterInputs[0].Value())
	if fromInput != "" {
		parsed, err := time.ParseInLocation("2006-01-02", fromInput, time.Local)
		if err != nil {
			return fmt.Errorf("invalid from date (expected YYYY-MM-DD)")
		}
		dates.From = &parsed
	}
	toInput := strings.TrimSpace(m.filterInputs[1].Value())
	if toInput != "" {
		parsed, err := time.ParseInLocation("2006-01-02", toInput, time.Local)
		if err != nil {
			return fmt.Errorf("invalid to date (expected YYYY-MM-DD)")
		}
		dates.To = &parsed
	}
	if err := dates.Validate(); err != nil {
		return err
	}
	m.dates = dates
	m.filters = model.Filters{
		Band:    strings.TrimSpace(m.filterInputs[2].Value()),
		Mode:    strings.TrimSpace(m.filterInputs[3].Value()),
		Country: strings.TrimSpace(m.filterInputs[4].Value()),
	}
	m.statusMsg = ""
	return nil
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if !m.filterMode && (m.errMsg != "" || m.statusMsg != "") {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) gridWidth() int {
	if m.width > 0 {
		return m.width
	}
	return 80
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.grid.SetWidth(m.width)
	m.grid.SetHeight(maxInt(1, bodyHeight-1))
	m.chartView.Width = m.width
	m.chartView.Height = bodyHeight
	for i := range m.filterInputs {
		promptWidth := lipgloss.Width(m.filterInputs[i].Prompt)
		m.filterInputs[i].Width = maxInt(10, m.width-promptWidth-2)
	}
	m.applySort()
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.ids))
	for i, id := range m.ids {
		desc, _ := m.engine.Registry().Lookup(id)
		if i == m.active {
			parts = append(parts, activeNavStyle.Render(desc.Label))
		} else {
			parts = append(parts, inactiveNavStyle.Render(desc.Label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	filters := padLines(m.renderFilterSummary(), m.width)
	return tabs + "\n" + filters
}

func (m *Model) renderFilterSummary() string {
	from, to := "any", "any"
	if m.dates.From != nil {
		from = m.dates.From.Format("2006-01-02")
	}
	if m.dates.To != nil {
		to = m.dates.To.Format("2006-01-02")
	}
	orAny := func(s string) string {
		if s == "" {
			return "any"
		}
		return s
	}
	summary := fmt.Sprintf("Filters: from=%s  to=%s  band=%s  mode=%s  country=%s",
		from, to, orAny(m.filters.Band), orAny(m.filters.Mode), orAny(m.filters.Country))
	if m.sort.Column != "" {
		dir := "asc"
		if m.sort.Descending {
			dir = "desc"
		}
		summary += fmt.Sprintf("  sort=%s/%s", m.sort.Column, dir)
	}
	return headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderHelp() string {
	help := "Nav: left/right  Sort: 1-9  Filter: /  Chart: c  Export: e  Quit: q"
	if m.detail != nil {
		help = "Back: esc  Sort: 1-9  Export: e  Quit: q"
	} else if m.descriptor().GroupField != "" {
		help = "Nav: left/right  Details: enter  Sort: 1-9  Filter: /  Chart: c  Export: e  Quit: q"
	}
	return headerStyle.Render(help)
}

func (m *Model) renderFooter() string {
	if m.filterMode {
		return headerStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel  quit: q")
	}
	if m.errMsg != "" {
		return m.renderHelp() + "\n" + errorStyle.Render(m.errMsg)
	}
	if m.statusMsg != "" {
		return m.renderHelp() + "\n" + statusStyle.Render(m.statusMsg)
	}
	return m.renderHelp()
}

func (m *Model) renderFilterForm() string {
	lines := []string{"Filters (enter to apply, esc to cancel)"}
	for _, input := range m.filterInputs {
		lines = append(lines, input.View())
	}
	if m.filterError != "" {
		lines = append(lines, errorStyle.Render(m.filterError))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderBody(height int) string {
	if m.filterMode {
		return fitLines(m.renderFilterForm(), m.width, height)
	}
	if m.showChart {
		return fitLines(m.chartView.View(), m.width, height)
	}
	rs := m.current()
	switch {
	case rs == nil:
		return fitLines("Failed to load statistic.", m.width, height)
	case len(rs.Rows) == 0:
		return fitLines("No contacts found.", m.width, height)
	default:
		view := tableMutedStyle.Render(m.grid.View())
		return fitLines(view, m.width, height)
	}
}

func buildGridData(rs *model.ResultSet, width int) ([]table.Column, []table.Row) {
	if rs == nil {
		return nil, nil
	}
	widths := make([]int, len(rs.Columns))
	for i, col := range rs.Columns {
		widths[i] = len(col.Label)
	}
	rows := make([]table.Row, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		record := make(table.Row, len(rs.Columns))
		for i, col := range rs.Columns {
			s := formatGridCell(row[col.Key])
			record[i] = s
			if len(s) > widths[i] {
				widths[i] = len(s)
			}
		}
		rows = append(rows, record)
	}
	columns := make([]table.Column, len(rs.Columns))
	for i, col := range rs.Columns {
		columns[i] = table.Column{
			Title: fmt.Sprintf("%d:%s", i+1, col.Label),
			Width: minInt(maxInt(widths[i], len(col.Label)+2), maxInt(8, width/len(rs.Columns))),
		}
	}
	return columns, rows
}

func formatGridCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(x)
	}
}

func gridStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
