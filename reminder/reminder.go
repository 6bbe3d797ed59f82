// Package reminder keeps one pending fire-event per task that still expects a
// notification, and delivers the notification when the task's due time comes.
package reminder

import (
	"container/heap"
	"fmt"
	"sync"
	"time"

	"myrhythm/dates"
	"myrhythm/db"

	"github.com/jmhodges/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const sweepTick = 30 * time.Second

const fmtReminder = "🔔 Напоминание: <b>%s</b>\nСрок: %s"

// Store is the subset of the task store the scheduler needs: recovery on
// startup and re-verification right before a notification goes out.
type Store interface {
	GetTask(id int64) (*db.Task, error)
	ListPendingReminders() ([]db.Task, error)
}

// Notifier delivers a message to the user. Best effort: a failure is logged
// and the event stays fired, reminders are never re-queued.
type Notifier func(usr int64, text string) error

type Manager struct {
	db     Store
	notify Notifier
	logger *zap.SugaredLogger
	clk    clock.Clock

	mu    sync.Mutex
	queue *eventQueue
}

func NewManager(d Store, n Notifier, l *zap.SugaredLogger) *Manager {
	return &Manager{
		db:     d,
		notify: n,
		logger: l,
		clk:    clock.New(),
		queue:  newEventQueue(),
	}
}

// Run recovers pending events from the store and starts the sweep loop.
func (m *Manager) Run() {
	if err := m.Recover(); err != nil {
		m.logger.Errorw("failed recovering reminders", "err", err)
	}

	ch := time.NewTicker(sweepTick).C
	go func() {
		for range ch {
			m.sweep(m.clk.Now().UTC())
		}
	}()
}

// Recover rebuilds the event set from the store after a restart. Tasks whose
// due time passed while the process was down are skipped silently: a burst of
// stale notifications on startup helps nobody.
func (m *Manager) Recover() error {
	tasks, err := m.db.ListPendingReminders()
	if err != nil {
		return errors.Wrap(err, "failed listing pending reminders")
	}

	for _, t := range tasks {
		m.Sync(t)
	}

	m.logger.Infof("recovered reminders for %d tasks, %d scheduled", len(tasks), m.Scheduled())

	return nil
}

// Sync makes the event set match the task's current state: exactly one event
// for a pending reminder task with a future due time, none otherwise. Always
// cancel-then-reschedule, never an in-place timer mutation. Idempotent; call
// it after every create, edit, complete or delete.
func (m *Manager) Sync(t db.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.Done || !t.Remind || !t.DueAt.After(m.clk.Now().UTC()) {
		m.queue.remove(t.ID)
		return
	}

	m.queue.add(&event{
		taskID: t.ID,
		userID: t.UserID,
		title:  t.Title,
		at:     t.DueAt.UTC(),
	})
}

// Cancel drops the task's event unconditionally. Cancelling a task that has
// no event is a no-op, not an error.
func (m *Manager) Cancel(taskID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queue.remove(taskID)
}

// Scheduled reports how many events are currently pending.
func (m *Manager) Scheduled() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.queue.Len()
}

// sweep fires every event due at or before now. The window comparison (not
// minute equality) means an event can never be skipped by the ticker drifting
// across a minute boundary; at worst it fires one tick late.
func (m *Manager) sweep(now time.Time) {
	var due []*event

	m.mu.Lock()
	for {
		ev := m.queue.peek()
		if ev == nil || now.Before(ev.at) {
			break
		}

		heap.Pop(m.queue)
		due = append(due, ev)
	}
	m.mu.Unlock()

	for _, ev := range due {
		m.fire(ev)
	}
}

// fire delivers one event. The task is re-read first so a task completed,
// deleted or muted between scheduling and firing stays silent. Either way the
// event is already off the queue: fired is a terminal state.
func (m *Manager) fire(ev *event) {
	t, err := m.db.GetTask(ev.taskID)
	if err != nil {
		m.logger.Errorw("failed re-reading task before reminder", "task", ev.taskID, "err", err)
		return
	}

	if t == nil || t.Done || !t.Remind {
		return
	}

	if err := m.notify(ev.userID, fmt.Sprintf(fmtReminder, ev.title, dates.Format(ev.at))); err != nil {
		m.logger.Errorw("failed delivering reminder", "task", ev.taskID, "err", err)
	}
}
