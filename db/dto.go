package db

import "time"

// Task is a titled, timestamped unit of work owned by one user.
type Task struct {
	ID     int64
	UserID int64     // owner; all queries are scoped by this
	Title  string    // task text
	DueAt  time.Time // due time, minute precision (seconds are always zero)
	Remind bool      // send a notification at DueAt
	Done   bool      // completed tasks are kept, not deleted
}
