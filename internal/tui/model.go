// Package tui is the terminal front end of the log desk: role picker,
// paged log table with filters, and a detail view.
package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"logdesk/internal/access"
	"logdesk/internal/interfaces"
	"logdesk/internal/service"
	"logdesk/internal/types"
)

// Screen is the page the TUI is showing.
type Screen int

const (
	ScreenRoles Screen = iota
	ScreenTable
	ScreenDetail
)

// Focus is where keyboard input goes on the table screen.
type Focus int

const (
	FocusTable Focus = iota
	FocusFilter
	FocusDate
)

const timestampLayout = "2006-01-02 15:04:05"

// statusChangeMsg carries a status change published by the desk.
type statusChangeMsg interfaces.StatusChange

// subscriptionClosedMsg is sent once the desk ends the subscription.
type subscriptionClosedMsg struct{}

// Model is the bubbletea model of the log desk.
type Model struct {
	desk     interfaces.DeskService
	keys     KeyMap
	theme    Theme
	location *time.Location

	screen Screen
	focus  Focus

	roles      []access.Role
	roleCursor int

	view      interfaces.TableView
	rowCursor int
	filter    InputField
	date      InputField

	detail types.LogRecord

	changes <-chan interfaces.StatusChange

	width  int
	height int

	notice string
	err    string
}

// New creates a model driving desk. Timestamps render in loc.
func New(desk interfaces.DeskService, loc *time.Location) Model {
	if loc == nil {
		loc = time.Local
	}
	return Model{
		desk:     desk,
		keys:     DefaultKeyMap,
		theme:    DefaultTheme,
		location: loc,
		roles:    access.Roles(),
		changes:  desk.Subscribe(),
	}
}

// Run starts the TUI on the terminal and blocks until the user quits.
func Run(desk interfaces.DeskService, loc *time.Location) error {
	model := New(desk, loc)
	defer desk.Unsubscribe(model.changes)

	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}

// Init starts listening for status changes.
func (model Model) Init() tea.Cmd {
	return waitForStatusChange(model.changes)
}

func waitForStatusChange(changes <-chan interfaces.StatusChange) tea.Cmd {
	return func() tea.Msg {
		change, ok := <-changes
		if !ok {
			return subscriptionClosedMsg{}
		}
		return statusChangeMsg(change)
	}
}

// Update handles key presses, resizes and status changes.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		return model, nil

	case statusChangeMsg:
		model.applyStatusChange(interfaces.StatusChange(message))
		return model, waitForStatusChange(model.changes)

	case subscriptionClosedMsg:
		return model, nil

	case tea.KeyMsg:
		// ctrl+c always quits, even while typing.
		if message.Type == tea.KeyCtrlC {
			return model, tea.Quit
		}

		switch model.focus {
		case FocusFilter:
			return model.handleFilterKeys(message)
		case FocusDate:
			return model.handleDateKeys(message)
		}

		switch model.screen {
		case ScreenRoles:
			return model.handleRoleKeys(message)
		case ScreenTable:
			return model.handleTableKeys(message)
		case ScreenDetail:
			return model.handleDetailKeys(message)
		}
	}

	return model, nil
}

func (model Model) handleRoleKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Quit):
		return model, tea.Quit

	case key.Matches(message, model.keys.Up):
		if model.roleCursor > 0 {
			model.roleCursor--
		}

	case key.Matches(message, model.keys.Down):
		if model.roleCursor < len(model.roles)-1 {
			model.roleCursor++
		}

	case key.Matches(message, model.keys.Open):
		if err := model.desk.SelectRole(model.roles[model.roleCursor]); err != nil {
			model.err = err.Error()
			return model, nil
		}
		model.screen = ScreenTable
		model.rowCursor = 0
		model.refresh(interfaces.QueryRequest{})
	}

	return model, nil
}

func (model Model) handleTableKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Quit):
		return model, tea.Quit

	case key.Matches(message, model.keys.Up):
		if model.rowCursor > 0 {
			model.rowCursor--
		}

	case key.Matches(message, model.keys.Down):
		if model.rowCursor < len(model.view.Records)-1 {
			model.rowCursor++
		}

	case key.Matches(message, model.keys.PrevPage):
		if model.view.Number > 1 {
			model.rowCursor = 0
			model.refresh(interfaces.PageRequest(model.view.Number - 1))
		}

	case key.Matches(message, model.keys.NextPage):
		if model.view.Number < model.view.TotalPages {
			model.rowCursor = 0
			model.refresh(interfaces.PageRequest(model.view.Number + 1))
		}

	case key.Matches(message, model.keys.FilterActivate):
		if model.view.CanFilter {
			model.focus = FocusFilter
			model.filter = InputField{Input: model.view.FilterText, Active: true}
		}

	case key.Matches(message, model.keys.DateActivate):
		if model.view.CanFilter {
			model.focus = FocusDate
			model.date = InputField{Input: model.view.DateFilter, Active: true}
		}

	case key.Matches(message, model.keys.Open):
		if model.view.ShowActions && model.rowCursor < len(model.view.Records) {
			model.openDetail(model.view.Records[model.rowCursor].ID)
		}

	case key.Matches(message, model.keys.Logout):
		model.logout()
	}

	return model, nil
}

// handleFilterKeys edits the filter text; the table follows every keystroke.
func (model Model) handleFilterKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.FilterClear):
		// Esc: clear the text if any, otherwise leave filter mode.
		if model.filter.Input != "" {
			model.filter.Input = ""
			model.applyFilter()
		} else {
			model.filter.Active = false
			model.focus = FocusTable
		}

	case message.Type == tea.KeyEnter:
		model.filter.Active = false
		model.focus = FocusTable

	case message.Type == tea.KeyBackspace:
		if model.filter.HandleBackspace() {
			model.applyFilter()
		}

	case message.Type == tea.KeyRunes || message.Type == tea.KeySpace:
		for _, r := range message.Runes {
			model.filter.HandleRune(r)
		}
		model.applyFilter()
	}

	return model, nil
}

// handleDateKeys edits the date filter; it is applied on Enter.
func (model Model) handleDateKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.FilterClear):
		model.date.Clear()
		model.focus = FocusTable
		model.err = ""

	case message.Type == tea.KeyEnter:
		input := strings.TrimSpace(model.date.Input)
		req := interfaces.QueryRequest{}
		if input == "" {
			req.ClearDate = true
		} else {
			date, err := types.ParseDate(input)
			if err != nil {
				model.err = err.Error()
				return model, nil
			}
			req.Date = &date
		}
		model.rowCursor = 0
		if model.refresh(req) {
			model.date.Active = false
			model.focus = FocusTable
		}

	case message.Type == tea.KeyBackspace:
		model.date.HandleBackspace()

	case message.Type == tea.KeyRunes:
		for _, r := range message.Runes {
			model.date.HandleRune(r)
		}
	}

	return model, nil
}

func (model Model) handleDetailKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Quit):
		return model, tea.Quit

	case key.Matches(message, model.keys.Back):
		model.screen = ScreenTable
		model.notice = ""
		model.refresh(interfaces.QueryRequest{})

	case key.Matches(message, model.keys.ToggleStatus):
		if !model.desk.Session().Capabilities[access.UpdateStatus] {
			return model, nil
		}
		record, err := model.desk.UpdateStatus(model.detail.ID, !model.detail.Resolved)
		if err != nil {
			model.handleError(err)
			return model, nil
		}
		model.detail = record
		model.notice = "Marked as " + record.StatusLabel()

	case key.Matches(message, model.keys.Logout):
		model.logout()
	}

	return model, nil
}

func (model *Model) applyFilter() {
	text := model.filter.Input
	model.rowCursor = 0
	model.refresh(interfaces.QueryRequest{Text: &text})
}

func (model *Model) openDetail(id string) {
	record, err := model.desk.Detail(id)
	if err != nil {
		model.handleError(err)
		return
	}
	model.detail = record
	model.screen = ScreenDetail
	model.notice = ""
	model.err = ""
}

// refresh sends req to the desk and stores the resulting table. Returns
// false when the desk refused.
func (model *Model) refresh(req interfaces.QueryRequest) bool {
	view, err := model.desk.Query(req)
	if err != nil {
		model.handleError(err)
		return false
	}
	model.view = view
	model.err = ""
	if model.rowCursor >= len(view.Records) {
		model.rowCursor = max(len(view.Records)-1, 0)
	}
	return true
}

// handleError shows err. Losing view_table or view_detail sends the user
// back to role selection.
func (model *Model) handleError(err error) {
	var permErr *service.PermissionError
	if errors.As(err, &permErr) && (permErr.Capability == access.ViewTable || permErr.Capability == access.ViewDetail) {
		model.toRoleSelection()
	}
	model.err = err.Error()
}

func (model *Model) logout() {
	model.desk.Logout()
	model.toRoleSelection()
	model.err = ""
}

func (model *Model) toRoleSelection() {
	model.screen = ScreenRoles
	model.focus = FocusTable
	model.filter.Clear()
	model.date.Clear()
	model.view = interfaces.TableView{}
	model.detail = types.LogRecord{}
	model.rowCursor = 0
	model.notice = ""
}

func (model *Model) applyStatusChange(change interfaces.StatusChange) {
	switch model.screen {
	case ScreenDetail:
		if model.detail.ID == change.ID {
			model.detail.Resolved = change.Resolved
		}
	case ScreenTable:
		model.refresh(interfaces.QueryRequest{})
	}
}

// View renders the current screen.
func (model Model) View() string {
	var body string
	switch model.screen {
	case ScreenRoles:
		body = model.renderRoles()
	case ScreenTable:
		body = model.renderTable()
	case ScreenDetail:
		body = model.renderDetail()
	}

	sections := []string{model.renderHeader(), body}
	if model.notice != "" {
		sections = append(sections, lipgloss.NewStyle().Foreground(model.theme.StatusResolved).Render(model.notice))
	}
	if model.err != "" {
		sections = append(sections, lipgloss.NewStyle().Foreground(model.theme.ErrorText).Render("Error: "+model.err))
	}
	sections = append(sections, model.renderHelp())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (model Model) renderHeader() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(model.theme.HeaderForeground)
	roleStyle := lipgloss.NewStyle().Foreground(model.theme.FaintText)

	header := titleStyle.Render("logdesk")
	if role := model.desk.Session().RoleLabel; model.screen != ScreenRoles && role != "" {
		header += "  " + roleStyle.Render("["+role+"]")
	}

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(model.theme.BorderColor).
		Render(header)
}

func (model Model) renderRoles() string {
	selected := lipgloss.NewStyle().
		Background(model.theme.SelectedBackground).
		Foreground(model.theme.SelectedForeground)
	faint := lipgloss.NewStyle().Foreground(model.theme.FaintText)

	lines := []string{"Select a role:", ""}
	for i, role := range model.roles {
		var granted []string
		for _, capability := range access.Capabilities() {
			if access.IsPermitted(role, capability) {
				granted = append(granted, string(capability))
			}
		}
		line := fmt.Sprintf("  %-10s", role.Label())
		if i == model.roleCursor {
			line = selected.Render("> " + fmt.Sprintf("%-10s", role.Label()))
		}
		lines = append(lines, line+"  "+faint.Render(strings.Join(granted, ", ")))
	}
	return strings.Join(lines, "\n")
}

func (model Model) renderTable() string {
	var lines []string
	faint := lipgloss.NewStyle().Foreground(model.theme.FaintText)

	if model.view.CanFilter {
		lines = append(lines, fmt.Sprintf("Filter: %s   Date: %s",
			model.renderInput(model.filter, model.view.FilterText, "any text, RESOLVED, UNRESOLVED"),
			model.renderInput(model.date, model.view.DateFilter, "YYYY-MM-DD")))
	}

	switch {
	case model.view.CollectionSize == 0:
		lines = append(lines, faint.Render("No logs available"))
	case model.view.TotalMatches == 0:
		lines = append(lines, faint.Render("No logs match the current filters"))
	default:
		lines = append(lines, faint.Render(fmt.Sprintf("Showing %d-%d of %d logs",
			model.view.From, model.view.To, model.view.TotalMatches)))
	}

	headerStyle := lipgloss.NewStyle().Bold(true)
	lines = append(lines, headerStyle.Render(fmt.Sprintf("  %-19s  %-8s %-14s  %-40s  %s",
		"Timestamp", "Severity", "Source", "Message", "Status")))

	selected := lipgloss.NewStyle().
		Background(model.theme.SelectedBackground).
		Foreground(model.theme.SelectedForeground)

	for i, record := range model.view.Records {
		severity := lipgloss.NewStyle().
			Foreground(model.theme.severityColor(record.Severity)).
			Width(8).
			Render(truncate(record.Severity, 8))
		row := fmt.Sprintf("%-19s  %s %-14s  %-40s  %s",
			record.Timestamp.In(model.location).Format(timestampLayout),
			severity,
			truncate(record.Source, 14),
			truncate(record.Message, 40),
			model.renderStatus(record.Resolved))

		if model.view.ShowActions && i == model.rowCursor && model.focus == FocusTable {
			lines = append(lines, selected.Render("> "+row))
		} else {
			lines = append(lines, "  "+row)
		}
	}

	lines = append(lines, faint.Render(fmt.Sprintf("Page %d of %d", model.view.Number, max(model.view.TotalPages, 1))))
	return strings.Join(lines, "\n")
}

func (model Model) renderInput(field InputField, applied, placeholder string) string {
	if field.Active {
		return lipgloss.NewStyle().Underline(true).Render(field.Input + "_")
	}
	if applied == "" {
		return lipgloss.NewStyle().Foreground(model.theme.FaintText).Render(placeholder)
	}
	return applied
}

func (model Model) renderStatus(resolved bool) string {
	color := model.theme.StatusUnresolved
	if resolved {
		color = model.theme.StatusResolved
	}
	label := "Unresolved"
	if resolved {
		label = "Resolved"
	}
	return lipgloss.NewStyle().Foreground(color).Render(label)
}

func (model Model) renderDetail() string {
	record := model.detail
	labelStyle := lipgloss.NewStyle().Bold(true).Width(13)

	user := record.User
	if user == "" {
		user = "-"
	}

	fields := []struct {
		label string
		value string
	}{
		{"ID", record.ID},
		{"Timestamp", record.Timestamp.In(model.location).Format(timestampLayout)},
		{"Severity", lipgloss.NewStyle().Foreground(model.theme.severityColor(record.Severity)).Render(record.Severity)},
		{"Type", record.Type},
		{"Source", record.Source},
		{"Message", record.Message},
		{"Host", record.HostName},
		{"IP Address", record.IPAddress},
		{"Environment", record.Environment},
		{"User", user},
		{"Module", record.Module},
		{"Event Code", record.EventCode},
		{"Duration", fmt.Sprintf("%d ms", record.DurationMs)},
		{"Status", model.renderStatus(record.Resolved)},
	}

	lines := make([]string, 0, len(fields))
	for _, field := range fields {
		lines = append(lines, labelStyle.Render(field.label)+" "+field.value)
	}
	return strings.Join(lines, "\n")
}

func (model Model) renderHelp() string {
	style := lipgloss.NewStyle().Foreground(model.theme.HelpText)

	var help string
	switch {
	case model.focus == FocusFilter:
		help = " type to filter  Enter done  Esc clear"
	case model.focus == FocusDate:
		help = " YYYY-MM-DD, empty clears  Enter apply  Esc cancel"
	case model.screen == ScreenRoles:
		help = " ↑↓ choose  Enter select  q quit"
	case model.screen == ScreenTable:
		help = " h/l page  L logout  q quit"
		if model.view.ShowActions {
			help = " ↑↓ move  Enter details" + help
		}
		if model.view.CanFilter {
			help += "  / filter  d date"
		}
	case model.screen == ScreenDetail:
		help = " Esc back  L logout  q quit"
		if model.desk.Session().Capabilities[access.UpdateStatus] {
			help += "  r toggle resolved"
		}
	}
	return style.Render(help)
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 1 {
		return string(runes[:width])
	}
	return string(runes[:width-1]) + "…"
}
