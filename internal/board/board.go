// Package board derives the column view of a task list.
package board

import "github.com/dordunu1/taskboard/internal/domain"

// Columns maps every status to its tasks. All four statuses are always present.
type Columns map[domain.Status][]domain.Task

// Column is one rendered status bucket.
type Column struct {
	Status domain.Status
	Label  string
	Tasks  []domain.Task
}

// Group partitions tasks by status, preserving input order within each bucket.
// A task whose status is not a known column lands in the fallback column so
// the bucket sizes always add up to len(tasks).
func Group(tasks []domain.Task) Columns {
	cols := make(Columns, len(domain.Statuses))
	for _, s := range domain.Statuses {
		cols[s] = []domain.Task{}
	}
	for _, t := range tasks {
		st, _ := domain.ParseStatus(string(t.Status))
		cols[st] = append(cols[st], t)
	}
	return cols
}

// Ordered returns the columns in board order.
func (c Columns) Ordered() []Column {
	out := make([]Column, 0, len(domain.Statuses))
	for _, s := range domain.Statuses {
		out = append(out, Column{Status: s, Label: s.Label(), Tasks: c[s]})
	}
	return out
}

// Len is the number of tasks across all columns.
func (c Columns) Len() int {
	n := 0
	for _, s := range domain.Statuses {
		n += len(c[s])
	}
	return n
}
