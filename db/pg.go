package db

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
)

// CreateTask inserts a new pending task and returns its ID
func (d *Database) CreateTask(usr int64, title string, dueAt time.Time, remind bool) (int64, error) {
	var id int64
	err := d.db.QueryRow(`INSERT INTO tasks(user_id, title, due_at, remind, done)
VALUES($1, $2, $3, $4, FALSE)
RETURNING task_id`, usr, title, dueAt.UTC(), remind).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "failed creating task")
	}
	return id, nil
}

// GetTask fetches one task by ID. Returns nil when the task doesn't exist.
func (d *Database) GetTask(id int64) (*Task, error) {
	var t Task
	err := d.db.QueryRow(`SELECT task_id, user_id, title, due_at, remind, done
FROM tasks
WHERE task_id=$1`, id).Scan(&t.ID, &t.UserID, &t.Title, &t.DueAt, &t.Remind, &t.Done)

	switch {
	case err == sql.ErrNoRows:
		return nil, nil
	case err != nil:
		return nil, errors.Wrap(err, "failed fetching task")
	}

	t.DueAt = t.DueAt.UTC()
	return &t, nil
}

// ListTasks returns the user's tasks ordered by due time. Completed tasks are
// included only when includeDone is set.
func (d *Database) ListTasks(usr int64, includeDone bool) ([]Task, error) {
	query := `SELECT task_id, user_id, title, due_at, remind, done
FROM tasks
WHERE user_id=$1 AND (done=FALSE OR $2)
ORDER BY due_at ASC, task_id ASC`

	rows, err := d.db.Query(query, usr, includeDone)
	if err != nil {
		return nil, errors.Wrap(err, "failed querying tasks")
	}
	defer rows.Close()

	return scanTasks(rows)
}

// ListPendingReminders returns every task that still expects a notification,
// regardless of owner. Used to rebuild the scheduler on startup.
func (d *Database) ListPendingReminders() ([]Task, error) {
	rows, err := d.db.Query(`SELECT task_id, user_id, title, due_at, remind, done
FROM tasks
WHERE remind=TRUE AND done=FALSE`)
	if err != nil {
		return nil, errors.Wrap(err, "failed querying pending reminders")
	}
	defer rows.Close()

	return scanTasks(rows)
}

func scanTasks(rows *sql.Rows) ([]Task, error) {
	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.DueAt, &t.Remind, &t.Done); err != nil {
			return nil, errors.Wrap(err, "failed scanning task")
		}
		t.DueAt = t.DueAt.UTC()
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTitle renames the task
func (d *Database) UpdateTitle(id int64, title string) error {
	_, err := d.db.Exec(`UPDATE tasks SET title=$1 WHERE task_id=$2`, title, id)
	return errors.Wrap(err, "failed updating title")
}

// UpdateDue moves the task's due time
func (d *Database) UpdateDue(id int64, dueAt time.Time) error {
	_, err := d.db.Exec(`UPDATE tasks SET due_at=$1 WHERE task_id=$2`, dueAt.UTC(), id)
	return errors.Wrap(err, "failed updating due time")
}

// UpdateRemind toggles the task's reminder flag
func (d *Database) UpdateRemind(id int64, remind bool) error {
	_, err := d.db.Exec(`UPDATE tasks SET remind=$1 WHERE task_id=$2`, remind, id)
	return errors.Wrap(err, "failed updating remind flag")
}

// MarkDone completes the task. The record stays in the table.
func (d *Database) MarkDone(id int64) error {
	_, err := d.db.Exec(`UPDATE tasks SET done=TRUE WHERE task_id=$1`, id)
	return errors.Wrap(err, "failed marking task done")
}

// DeleteTask removes the task. Deleting a missing task is not an error.
func (d *Database) DeleteTask(id int64) error {
	_, err := d.db.Exec(`DELETE FROM tasks WHERE task_id=$1`, id)
	return errors.Wrap(err, "failed deleting task")
}
