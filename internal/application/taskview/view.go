// Package taskview derives read-only views (search, filters, pagination and
// display values) from an already fetched task list. Nothing here writes
// back to the task store; every result is recomputed from the list and the
// view State.
package taskview

import (
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/taskboard/api/internal/domain/entities"
)

// All disables a status or priority filter.
const All = "All"

const (
	DefaultPageSize = 10
	windowSize      = 5
	minTitleLength  = 3
	descriptionCut  = 50
)

// PageSizes are the page sizes a view may use.
var PageSizes = []int{5, 10, 25, 50}

var (
	ErrTitleRequired = errors.New("Title is required")
	ErrTitleTooShort = errors.New("Title must be at least 3 characters")
)

// State is the view state owned by a single presentation component. Every
// setter other than WithPage returns to page 1.
type State struct {
	Search   string `json:"search"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

// NewState returns the initial view state: no search, no filters, first page.
func NewState() State {
	return State{Status: All, Priority: All, Page: 1, PageSize: DefaultPageSize}
}

func (s State) WithSearch(query string) State {
	s.Search = query
	s.Page = 1
	return s
}

func (s State) WithStatus(status string) State {
	s.Status = orAll(status)
	s.Page = 1
	return s
}

func (s State) WithPriority(priority string) State {
	s.Priority = orAll(priority)
	s.Page = 1
	return s
}

// WithPageSize switches the page size; unsupported sizes fall back to the default.
func (s State) WithPageSize(size int) State {
	s.PageSize = normalizePageSize(size)
	s.Page = 1
	return s
}

func (s State) WithPage(page int) State {
	s.Page = page
	return s
}

// Row is a task plus the values a table row displays for it.
type Row struct {
	*entities.Task
	DisplayID        string     `json:"displayId"`
	ShortDescription string     `json:"shortDescription"`
	OwnerName        string     `json:"ownerName"`
	DisplayStartDate *time.Time `json:"displayStartDate"`
	DisplayEndDate   *time.Time `json:"displayEndDate"`
	StatusColor      string     `json:"statusColor"`
	PriorityIcon     string     `json:"priorityIcon"`
	PriorityColor    string     `json:"priorityColor"`
}

// Result is one rendered page of the view.
type Result struct {
	State          State `json:"state"`
	Rows           []Row `json:"rows"`
	Total          int   `json:"total"`
	TotalFiltered  int   `json:"totalFiltered"`
	TotalPages     int   `json:"totalPages"`
	From           int   `json:"from"`
	To             int   `json:"to"`
	PageNumbers    []int `json:"pageNumbers"`
	HasPrevious    bool  `json:"hasPrevious"`
	HasNext        bool  `json:"hasNext"`
	ShowPagination bool  `json:"showPagination"`
	Filtered       bool  `json:"filtered"`
}

// Filter applies the search text and the status and priority filters.
// The input slice is not modified.
func Filter(tasks []*entities.Task, s State) []*entities.Task {
	query := strings.ToLower(s.Search)
	out := make([]*entities.Task, 0, len(tasks))
	for _, t := range tasks {
		if query != "" && !matchesSearch(t, query) {
			continue
		}
		if s.Status != "" && s.Status != All && string(t.Status) != s.Status {
			continue
		}
		if s.Priority != "" && s.Priority != All && string(t.Priority) != s.Priority {
			continue
		}
		out = append(out, t)
	}
	return out
}

func matchesSearch(t *entities.Task, query string) bool {
	return strings.Contains(strings.ToLower(t.Title), query) ||
		strings.Contains(strings.ToLower(t.Description), query) ||
		strings.Contains(strconv.FormatInt(t.ID, 10), query)
}

// Build filters and paginates tasks for the given state. The page number is
// clamped into the valid range.
func Build(tasks []*entities.Task, s State) Result {
	s.PageSize = normalizePageSize(s.PageSize)
	s.Status = orAll(s.Status)
	s.Priority = orAll(s.Priority)

	filtered := Filter(tasks, s)
	totalPages := (len(filtered) + s.PageSize - 1) / s.PageSize

	if s.Page > totalPages {
		s.Page = totalPages
	}
	if s.Page < 1 {
		s.Page = 1
	}

	start := (s.Page - 1) * s.PageSize
	end := start + s.PageSize
	if start > len(filtered) {
		start = len(filtered)
	}
	if end > len(filtered) {
		end = len(filtered)
	}

	rows := make([]Row, 0, end-start)
	for _, t := range filtered[start:end] {
		rows = append(rows, NewRow(t))
	}

	from := 0
	if end > start {
		from = start + 1
	}

	return Result{
		State:          s,
		Rows:           rows,
		Total:          len(tasks),
		TotalFiltered:  len(filtered),
		TotalPages:     totalPages,
		From:           from,
		To:             end,
		PageNumbers:    PageWindow(s.Page, totalPages),
		HasPrevious:    s.Page > 1,
		HasNext:        s.Page < totalPages,
		ShowPagination: totalPages > 1,
		Filtered:       len(filtered) != len(tasks),
	}
}

// PageWindow returns up to five page numbers centred on current where the
// page count allows, pinned to the first or last five pages near either end.
func PageWindow(current, totalPages int) []int {
	n := totalPages
	if n > windowSize {
		n = windowSize
	}
	pages := make([]int, 0, n)
	for i := 0; i < n; i++ {
		var page int
		switch {
		case totalPages <= windowSize:
			page = i + 1
		case current <= 3:
			page = i + 1
		case current >= totalPages-2:
			page = totalPages - windowSize + 1 + i
		default:
			page = current - 2 + i
		}
		pages = append(pages, page)
	}
	return pages
}

// NewRow computes the display values for a single task.
func NewRow(t *entities.Task) Row {
	ownerName := "Unassigned"
	if t.Owner != nil && t.Owner.Name != "" {
		ownerName = t.Owner.Name
	}
	description := t.Description
	if description == "" {
		description = "No description"
	}
	return Row{
		Task:             t,
		DisplayID:        "PR-" + strconv.FormatInt(t.ID, 10),
		ShortDescription: truncate(description, descriptionCut),
		OwnerName:        ownerName,
		DisplayStartDate: DisplayStartDate(t),
		DisplayEndDate:   DisplayEndDate(t),
		StatusColor:      StatusColor(t.Status),
		PriorityIcon:     PriorityIcon(t.Priority),
		PriorityColor:    PriorityColor(t.Priority),
	}
}

// DisplayStartDate is the start date, or the creation time when unset.
func DisplayStartDate(t *entities.Task) *time.Time {
	if t.StartDate != nil {
		return t.StartDate
	}
	created := t.CreatedAt
	return &created
}

// DisplayEndDate is the end date; a completed task without one shows its
// last update time. Nil means nothing to show.
func DisplayEndDate(t *entities.Task) *time.Time {
	if t.EndDate != nil {
		return t.EndDate
	}
	if t.Status == entities.TaskStatusCompleted {
		updated := t.UpdatedAt
		return &updated
	}
	return nil
}

var statusColors = map[entities.TaskStatus]string{
	entities.TaskStatusInProgress: "#ffce56",
	entities.TaskStatusCompleted:  "#4bc0c0",
	entities.TaskStatusTodo:       "#ff9f40",
}

func StatusColor(status entities.TaskStatus) string {
	if c, ok := statusColors[status]; ok {
		return c
	}
	return "#666"
}

var priorityColors = map[entities.Priority]string{
	entities.PriorityNone:   "#999",
	entities.PriorityLow:    "#4bc0c0",
	entities.PriorityMedium: "#ffce56",
	entities.PriorityHigh:   "#ff6384",
}

func PriorityColor(priority entities.Priority) string {
	if c, ok := priorityColors[priority]; ok {
		return c
	}
	return "#999"
}

func PriorityIcon(priority entities.Priority) string {
	if priority == entities.PriorityNone {
		return ""
	}
	return "!"
}

// ValidateTitle checks a title typed into the task form before submission.
func ValidateTitle(title string) error {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return ErrTitleRequired
	}
	if utf8.RuneCountInString(trimmed) < minTitleLength {
		return ErrTitleTooShort
	}
	return nil
}

func normalizePageSize(size int) int {
	for _, allowed := range PageSizes {
		if size == allowed {
			return size
		}
	}
	return DefaultPageSize
}

func orAll(v string) string {
	if v == "" {
		return All
	}
	return v
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
