package reminder

import (
	"container/heap"
	"time"
)

// event is a one-shot scheduled notification for a single task. It carries a
// denormalized copy of the task fields needed to notify, so firing doesn't
// depend on a store read (the store is still consulted right before sending
// to skip tasks completed or deleted since scheduling).
type event struct {
	taskID int64
	userID int64
	title  string
	at     time.Time
	index  int // position in the backing array, maintained by the heap
}

// eventQueue is a priority queue of events ordered by fire time, with lookup
// by task ID so an event can be cancelled when its task changes.
type eventQueue struct {
	backingArray []*event
	byTask       map[int64]*event
}

func newEventQueue() *eventQueue {
	q := &eventQueue{
		backingArray: []*event{},
		byTask:       make(map[int64]*event),
	}
	heap.Init(q)
	return q
}

func (q *eventQueue) Len() int {
	return len(q.backingArray)
}

func (q *eventQueue) Less(i, j int) bool {
	return q.backingArray[i].at.Unix() < q.backingArray[j].at.Unix()
}

func (q *eventQueue) Swap(i, j int) {
	q.backingArray[j], q.backingArray[i] = q.backingArray[i], q.backingArray[j]
	q.backingArray[i].index = i
	q.backingArray[j].index = j
}

func (q *eventQueue) Push(x any) {
	ev, ok := x.(*event)
	if !ok {
		return
	}

	ev.index = len(q.backingArray)
	q.byTask[ev.taskID] = ev
	q.backingArray = append(q.backingArray, ev)
}

func (q *eventQueue) Pop() any {
	n := len(q.backingArray)
	if n == 0 {
		return nil
	}

	ev := q.backingArray[n-1]
	q.backingArray = q.backingArray[:n-1]
	delete(q.byTask, ev.taskID)

	return ev
}

// add schedules the event, replacing any previous event for the same task.
func (q *eventQueue) add(ev *event) {
	q.remove(ev.taskID)
	heap.Push(q, ev)
}

// remove cancels the event for the given task. Missing events are a no-op.
func (q *eventQueue) remove(taskID int64) bool {
	ev, ok := q.byTask[taskID]
	if !ok {
		return false
	}

	heap.Remove(q, ev.index)
	return true
}

// peek returns the event that fires next without removing it.
func (q *eventQueue) peek() *event {
	if len(q.backingArray) == 0 {
		return nil
	}

	return q.backingArray[0]
}
