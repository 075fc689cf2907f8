package entities

// TaskStats holds per-status task counts for one user.
// Total includes every row regardless of status, so the three named counts
// do not have to add up to it.
type TaskStats struct {
	Total      int `json:"total"`
	Todo       int `json:"todo"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
}

// NewTaskStats partitions status counts into TaskStats.
func NewTaskStats(counts map[TaskStatus]int) TaskStats {
	var stats TaskStats
	for status, n := range counts {
		stats.Total += n
		switch status {
		case TaskStatusTodo:
			stats.Todo += n
		case TaskStatusInProgress:
			stats.InProgress += n
		case TaskStatusCompleted:
			stats.Completed += n
		}
	}
	return stats
}
