// Package main – admin subcommand: live monitoring table rendered with bubbletea + lipgloss.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const adminRefreshInterval = 500 * time.Millisecond

// ---- Data types -------------------------------------------------------------

type adminConn struct {
	addr string
	http *http.Client
}

type overviewPayload struct {
	Name                 string `json:"name"`
	Messages             int    `json:"messages"`
	Customers            int    `json:"customers"`
	WaitingCustomers     int    `json:"waiting_customers"`
	LowIndex             int64  `json:"low_index,omitempty"`
	HasLowIndex          bool   `json:"has_low_index"`
	FirstEnqueueLogIndex int64  `json:"first_enqueue_log_index,omitempty"`
	HasFirstEnqueue      bool   `json:"has_first_enqueue"`
	NodeID               string `json:"node_id"`
	Leader               bool   `json:"leader"`
}

type adminRow struct {
	addr      string
	nodeID    string
	queue     string
	role      string
	messages  int
	customers int
	waiting   int
	lowIndex  int64
	hasLow    bool
	firstIdx  int64
	hasFirst  bool
	err       string
}

// ---- Bubbletea messages -----------------------------------------------------

type tickMsg time.Time

type rowsMsg struct {
	rows []adminRow
	ts   time.Time
}

// ---- Lipgloss styles --------------------------------------------------------

type uiStyles struct {
	dotHealthy  lipgloss.Style
	dotUnavail  lipgloss.Style
	dotSelected lipgloss.Style
	addr        lipgloss.Style
	nodeLead    lipgloss.Style
	roleLeader  lipgloss.Style
	roleFollow  lipgloss.Style
	metric      lipgloss.Style
	idxVal      lipgloss.Style
	tableHeader lipgloss.Style
	appHeader   lipgloss.Style
	tsStyle     lipgloss.Style
	footer      lipgloss.Style
	divider     lipgloss.Style
	alertsHdr   lipgloss.Style
	errorDot    lipgloss.Style
	errorKind   lipgloss.Style
	sumDim      lipgloss.Style
	sumHealthy  lipgloss.Style
	sumErrors   lipgloss.Style
	sumLeader   lipgloss.Style
	ldrMissing  lipgloss.Style
}

var styles = buildStyles()

func buildStyles() uiStyles {
	// Color codes mirror the original ANSI constants:
	// "1"=red  "2"=green  "3"=yellow  "4"=blue  "6"=cyan  "7"=white  "8"=bright-black
	return uiStyles{
		dotHealthy:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		dotUnavail:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		dotSelected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		addr:        lipgloss.NewStyle().Faint(true).Foreground(lipgloss.Color("6")),
		nodeLead:    lipgloss.NewStyle().Bold(true),
		roleLeader:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		roleFollow:  lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		metric:      lipgloss.NewStyle().Faint(true),
		idxVal:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
		tableHeader: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7")).Background(lipgloss.Color("8")),
		appHeader:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		tsStyle:     lipgloss.NewStyle().Faint(true),
		footer:      lipgloss.NewStyle().Faint(true),
		divider:     lipgloss.NewStyle().Faint(true),
		alertsHdr:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
		errorDot:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		errorKind:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		sumDim:      lipgloss.NewStyle().Faint(true),
		sumHealthy:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		sumErrors:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		sumLeader:   lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		ldrMissing:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
	}
}

// ---- Column widths ----------------------------------------------------------

type adminColWidths struct {
	addr  int
	node  int
	queue int
	role  int
}

func adminColumnsForWidth(rows []adminRow, contentWidth int) adminColWidths {
	col := adminColWidths{addr: 12, node: 8, queue: 10, role: 8}

	maxAddr, maxNode, maxQueue, maxRole := len("ADDR"), len("NODE"), len("QUEUE"), len("ROLE")
	for _, r := range rows {
		maxAddr = maxInt(maxAddr, len(r.addr))
		maxNode = maxInt(maxNode, len(r.nodeID))
		maxQueue = maxInt(maxQueue, len(r.queue))
		maxRole = maxInt(maxRole, len(r.role))
	}
	col.addr = clampInt(maxAddr, 8, 16)
	col.node = clampInt(maxNode, 6, 12)
	col.queue = clampInt(maxQueue, 6, 14)
	col.role = clampInt(maxRole, 6, 8)

	// Fixed chars: ST(2)+MSG(5)+CUS(5)+WAIT(5)+LOW(6)+FIRST(6)+10 spaces = 39
	fixed := 39
	baseVar := col.addr + col.node + col.queue + col.role
	extra := (contentWidth - fixed) - baseVar
	if extra > 0 {
		col.addr += minInt(extra, 10)
	}
	return col
}

// ---- Cell renderers ---------------------------------------------------------

func renderStatusDot(hasErr bool, selected bool) string {
	if selected {
		return styles.dotSelected.Render("▶") + " "
	}
	if hasErr {
		return styles.dotUnavail.Render("●") + " "
	}
	return styles.dotHealthy.Render("●") + " "
}

func renderAddrCell(s string, width int) string {
	return styles.addr.Render(fmt.Sprintf("%-*s", width, shorten(s, width)))
}

func renderNodeCell(s string, width int, role string) string {
	padded := fmt.Sprintf("%-*s", width, shorten(s, width))
	if role == "leader" {
		return styles.nodeLead.Render(padded)
	}
	return padded
}

func renderQueueCell(s string, width int) string {
	return fmt.Sprintf("%-*s", width, shorten(s, width))
}

func renderRoleCell(role string, width int) string {
	padded := fmt.Sprintf("%-*s", width, shorten(role, width))
	if role == "leader" {
		return styles.roleLeader.Render(padded)
	}
	return styles.roleFollow.Render(padded)
}

func renderMetricCell(v int, width int) string {
	return styles.metric.Render(fmt.Sprintf("%*d", width, v))
}

func renderIndexCell(v int64, has bool, width int) string {
	if !has {
		return fmt.Sprintf("%*s", width, "-")
	}
	return styles.idxVal.Render(fmt.Sprintf("%*d", width, v))
}

func makeTableRow(r adminRow, cols adminColWidths, selected bool) string {
	dot := renderStatusDot(r.err != "", selected)

	if r.err != "" {
		dash := "-"
		return dot + " " +
			renderAddrCell(r.addr, cols.addr) +
			" " + fmt.Sprintf("%-*s", cols.node, dash) +
			" " + fmt.Sprintf("%-*s", cols.queue, dash) +
			" " + fmt.Sprintf("%-*s", cols.role, dash) +
			" " + fmt.Sprintf("%5s", dash) +
			" " + fmt.Sprintf("%5s", dash) +
			" " + fmt.Sprintf("%5s", dash) +
			" " + fmt.Sprintf("%6s", dash) +
			" " + fmt.Sprintf("%6s", dash)
	}

	return dot + " " +
		renderAddrCell(r.addr, cols.addr) +
		" " + renderNodeCell(r.nodeID, cols.node, r.role) +
		" " + renderQueueCell(r.queue, cols.queue) +
		" " + renderRoleCell(r.role, cols.role) +
		" " + renderMetricCell(r.messages, 5) +
		" " + renderMetricCell(r.customers, 5) +
		" " + renderMetricCell(r.waiting, 5) +
		" " + renderIndexCell(r.lowIndex, r.hasLow, 6) +
		" " + renderIndexCell(r.firstIdx, r.hasFirst, 6)
}

func renderHeader(cols adminColWidths, contentWidth int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-2s", "ST")
	fmt.Fprintf(&b, " %-*s", cols.addr, headerLabel("ADDR", cols.addr))
	fmt.Fprintf(&b, " %-*s", cols.node, headerLabel("NODE", cols.node))
	fmt.Fprintf(&b, " %-*s", cols.queue, headerLabel("QUEUE", cols.queue))
	fmt.Fprintf(&b, " %-*s", cols.role, headerLabel("ROLE", cols.role))
	fmt.Fprintf(&b, " %5s", "MSG")
	fmt.Fprintf(&b, " %5s", "CUS")
	fmt.Fprintf(&b, " %5s", "WAIT")
	fmt.Fprintf(&b, " %6s", "LOW")
	fmt.Fprintf(&b, " %6s", "FIRST")
	return styles.tableHeader.Width(contentWidth).MaxWidth(contentWidth).Render(b.String())
}

func renderSummary(rows []adminRow) string {
	total := len(rows)
	healthy, errorsN, leaders := 0, 0, 0
	for _, r := range rows {
		if r.err != "" {
			errorsN++
			continue
		}
		healthy++
		if r.role == "leader" {
			leaders++
		}
	}
	bracket := func(st lipgloss.Style, label string, n int) string {
		d := styles.sumDim
		return d.Render("[") + st.Render(fmt.Sprintf("%d", n)) + d.Render(" "+label+"]")
	}
	return strings.Join([]string{
		bracket(lipgloss.NewStyle(), "total", total),
		bracket(styles.sumHealthy, "healthy", healthy),
		bracket(styles.sumErrors, "errors", errorsN),
		bracket(styles.sumLeader, "leader", leaders),
	}, " ")
}

func buildAlertLines(rows []adminRow, contentWidth int) []string {
	var lines []string
	if leaderMissing, healthy := detectLeaderMissing(rows); leaderMissing {
		lines = append(lines, fmt.Sprintf("%s healthy=%d (%s)",
			styles.ldrMissing.Render("LEADER_MISSING"),
			healthy,
			"election in progress or stalled",
		))
	}
	for _, r := range rows {
		if r.err == "" {
			continue
		}
		summary := shorten(errorSummary(r.err), maxInt(20, contentWidth-20))
		lines = append(lines, fmt.Sprintf("%s %s %s",
			styles.errorDot.Render("●"),
			r.addr,
			styles.errorKind.Render(summary),
		))
	}
	return lines
}

// ---- Bubbletea model --------------------------------------------------------

type adminModel struct {
	rows       []adminRow
	ts         time.Time
	conns      []adminConn
	timeout    time.Duration
	width      int
	height     int
	cursor     int
	scrollOff  int
	selectedID string
	cols       adminColWidths
}

func newAdminModel(conns []adminConn, timeout time.Duration) adminModel {
	return adminModel{
		conns:   conns,
		timeout: timeout,
		width:   120,
		height:  40,
	}
}

func (m adminModel) Init() tea.Cmd {
	// Only fire the initial poll. rowsMsg schedules the first tick, which in
	// turn fires the next poll, keeping exactly one poll in flight at a time.
	return m.pollCmd()
}

func (m adminModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcCols()
		return m, nil

	case tickMsg:
		return m, m.pollCmd()

	case rowsMsg:
		m.rows = msg.rows
		m.ts = msg.ts
		m.recalcCols()
		m.restoreSelection()
		tickFn := func(t time.Time) tea.Msg { return tickMsg(t) }
		return m, tea.Tick(adminRefreshInterval, tickFn)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			m.moveCursor(-1)
		case "down", "j":
			m.moveCursor(1)
		}
	}
	return m, nil
}

func (m adminModel) View() string {
	contentWidth := m.width - 2
	if contentWidth <= 0 {
		contentWidth = 80
	}

	var b strings.Builder

	b.WriteString("  ")
	b.WriteString(styles.appHeader.Render("Admin view"))
	b.WriteString("  ")
	b.WriteString(styles.tsStyle.Render(m.ts.Format(time.RFC3339)))
	b.WriteString("\n")

	b.WriteString(renderSummary(m.rows))
	b.WriteString("\n\n")

	b.WriteString(renderHeader(m.cols, contentWidth))
	b.WriteString("\n")

	visRows := m.visibleRowCount()
	start := m.scrollOff
	end := minInt(start+visRows, len(m.rows))
	for i := start; i < end; i++ {
		b.WriteString(makeTableRow(m.rows[i], m.cols, i == m.cursor))
		b.WriteString("\n")
	}

	alertLines := buildAlertLines(m.rows, contentWidth)
	if len(alertLines) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.divider.Render(strings.Repeat("-", contentWidth)))
		b.WriteString("\n")
		b.WriteString(styles.alertsHdr.Render("Alerts"))
		b.WriteString("\n")
		for _, line := range alertLines {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n  ")
	b.WriteString(styles.footer.Render("Ctrl+C to exit"))

	// Pad to terminal height so a shorter frame overwrites ghost lines left
	// behind by bubbletea's diff renderer when the alerts section shrinks.
	out := b.String()
	if m.height > 0 {
		lines := strings.Split(out, "\n")
		for len(lines) < m.height {
			lines = append(lines, "")
		}
		return strings.Join(lines, "\n")
	}
	return out
}

// ---- Model helpers ----------------------------------------------------------

func (m *adminModel) recalcCols() {
	contentWidth := m.width - 2
	if contentWidth <= 0 {
		contentWidth = 80
	}
	m.cols = adminColumnsForWidth(m.rows, contentWidth)
}

func (m *adminModel) restoreSelection() {
	if m.selectedID == "" {
		if len(m.rows) > 0 {
			m.cursor = 0
			m.selectedID = m.rows[0].nodeID
		}
		return
	}
	for i, r := range m.rows {
		if r.nodeID == m.selectedID {
			m.cursor = i
			m.clampScroll()
			return
		}
	}
	if m.cursor >= len(m.rows) {
		m.cursor = maxInt(0, len(m.rows)-1)
	}
	if len(m.rows) > 0 {
		m.selectedID = m.rows[m.cursor].nodeID
	}
}

func (m *adminModel) moveCursor(delta int) {
	if len(m.rows) == 0 {
		return
	}
	m.cursor = clampInt(m.cursor+delta, 0, len(m.rows)-1)
	m.clampScroll()
	m.selectedID = m.rows[m.cursor].nodeID
}

func (m *adminModel) clampScroll() {
	visRows := m.visibleRowCount()
	if m.cursor < m.scrollOff {
		m.scrollOff = m.cursor
	} else if m.cursor >= m.scrollOff+visRows {
		m.scrollOff = m.cursor - visRows + 1
	}
	if m.scrollOff < 0 {
		m.scrollOff = 0
	}
}

func (m adminModel) visibleRowCount() int {
	// Overhead: title(1)+summary(1)+blank(1)+header(1)+blank(1)+footer(1) = 6
	// Plus worst-case alerts: divider(1)+alertsHdr(1)+N lines
	return maxInt(2, m.height-7)
}

func (m adminModel) pollCmd() tea.Cmd {
	conns := m.conns
	timeout := m.timeout
	return func() tea.Msg {
		rows, ts := pollAdminRows(context.Background(), conns, timeout)
		return rowsMsg{rows: rows, ts: ts}
	}
}

// ---- Polling logic -----------------------------------------------------------

func cmdAdmin(addrs []string, timeout time.Duration) error {
	if len(addrs) == 0 {
		return fmt.Errorf("no addresses provided")
	}
	conns := openAdminConns(addrs, timeout)

	p := tea.NewProgram(newAdminModel(conns, timeout), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func openAdminConns(addrs []string, timeout time.Duration) []adminConn {
	conns := make([]adminConn, 0, len(addrs))
	for _, addr := range addrs {
		conns = append(conns, adminConn{
			addr: addr,
			http: &http.Client{Timeout: timeout},
		})
	}
	return conns
}

func pollAdminRows(ctx context.Context, conns []adminConn, timeout time.Duration) ([]adminRow, time.Time) {
	rows := make([]adminRow, len(conns))
	var wg sync.WaitGroup
	wg.Add(len(conns))

	for i, c := range conns {
		go func(i int, c adminConn) {
			defer wg.Done()
			rows[i] = fetchOverview(ctx, c, timeout)
		}(i, c)
	}

	wg.Wait()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].nodeID == rows[j].nodeID {
			return rows[i].addr < rows[j].addr
		}
		if rows[i].nodeID == "" {
			return false
		}
		if rows[j].nodeID == "" {
			return true
		}
		return rows[i].nodeID < rows[j].nodeID
	})

	return rows, time.Now()
}

func fetchOverview(ctx context.Context, c adminConn, timeout time.Duration) adminRow {
	row := adminRow{addr: c.addr}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := "http://" + c.addr + "/overview"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		row.err = err.Error()
		return row
	}
	resp, err := c.http.Do(req)
	if err != nil {
		row.err = err.Error()
		return row
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		row.err = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		return row
	}

	var payload overviewPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		row.err = err.Error()
		return row
	}

	row.nodeID = payload.NodeID
	row.queue = payload.Name
	row.messages = payload.Messages
	row.customers = payload.Customers
	row.waiting = payload.WaitingCustomers
	row.lowIndex = payload.LowIndex
	row.hasLow = payload.HasLowIndex
	row.firstIdx = payload.FirstEnqueueLogIndex
	row.hasFirst = payload.HasFirstEnqueue
	if payload.Leader {
		row.role = "leader"
	} else {
		row.role = "follower"
	}
	return row
}

func errorSummary(err string) string {
	err = strings.TrimSpace(err)
	err = strings.ReplaceAll(err, "\n", " ")
	err = strings.Join(strings.Fields(err), " ")
	return err
}

func detectLeaderMissing(rows []adminRow) (bool, int) {
	healthy := 0
	hasLeader := false
	for _, r := range rows {
		if r.err != "" {
			continue
		}
		healthy++
		if r.role == "leader" {
			hasLeader = true
		}
	}
	if healthy == 0 {
		return false, 0
	}
	return !hasLeader, healthy
}

func shorten(s string, n int) string {
	if n <= 0 {
		return s
	}
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func headerLabel(label string, width int) string {
	if width <= 0 {
		return ""
	}
	if len(label) <= width {
		return label
	}
	switch label {
	case "ADDR":
		if width >= 2 {
			return "AD"
		}
	case "NODE":
		if width >= 2 {
			return "ND"
		}
	case "QUEUE":
		if width >= 2 {
			return "QU"
		}
	case "ROLE":
		if width >= 2 {
			return "RL"
		}
	}
	return label[:width]
}
