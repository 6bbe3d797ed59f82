package tgbot

import (
	"context"
	"sync"
	"testing"
	"time"

	"myrhythm/db"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmhodges/clock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testUser int64 = 42

var testNow = time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)

type fakeAPI struct {
	sent   []string
	nextID int
}

func (f *fakeAPI) Send(c tg.Chattable) (tg.Message, error) {
	if m, ok := c.(tg.MessageConfig); ok {
		f.sent = append(f.sent, m.Text)
	}
	f.nextID++
	return tg.Message{MessageID: f.nextID}, nil
}

func (f *fakeAPI) Request(tg.Chattable) (*tg.APIResponse, error) {
	return &tg.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) last() string {
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

type fakeStore struct {
	mu     sync.Mutex
	nextID int64
	tasks  map[int64]db.Task
	fail   bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: make(map[int64]db.Task)}
}

func (s *fakeStore) put(t db.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID > s.nextID {
		s.nextID = t.ID
	}
	s.tasks[t.ID] = t
}

func (s *fakeStore) CreateTask(usr int64, title string, dueAt time.Time, remind bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return 0, errors.New("store is down")
	}
	s.nextID++
	s.tasks[s.nextID] = db.Task{ID: s.nextID, UserID: usr, Title: title, DueAt: dueAt, Remind: remind}
	return s.nextID, nil
}

func (s *fakeStore) GetTask(id int64) (*db.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errors.New("store is down")
	}
	t, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *fakeStore) ListTasks(usr int64, includeDone bool) ([]db.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errors.New("store is down")
	}
	var out []db.Task
	for _, t := range s.tasks {
		if t.UserID != usr || (t.Done && !includeDone) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *fakeStore) update(id int64, f func(*db.Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("store is down")
	}
	t, ok := s.tasks[id]
	if !ok {
		return nil
	}
	f(&t)
	s.tasks[id] = t
	return nil
}

func (s *fakeStore) UpdateTitle(id int64, title string) error {
	return s.update(id, func(t *db.Task) { t.Title = title })
}

func (s *fakeStore) UpdateDue(id int64, dueAt time.Time) error {
	return s.update(id, func(t *db.Task) { t.DueAt = dueAt })
}

func (s *fakeStore) UpdateRemind(id int64, remind bool) error {
	return s.update(id, func(t *db.Task) { t.Remind = remind })
}

func (s *fakeStore) MarkDone(id int64) error {
	return s.update(id, func(t *db.Task) { t.Done = true })
}

func (s *fakeStore) DeleteTask(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("store is down")
	}
	delete(s.tasks, id)
	return nil
}

type fakeSched struct {
	mu     sync.Mutex
	synced []db.Task
	axed   []int64
}

func (f *fakeSched) Sync(t db.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced = append(f.synced, t)
}

func (f *fakeSched) Cancel(taskID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.axed = append(f.axed, taskID)
}

type fakeAssistant struct {
	replies []string
	err     error
	asked   []string
	ctxs    []string
}

func (f *fakeAssistant) Answer(_ context.Context, tasksContext, question string) (string, error) {
	f.asked = append(f.asked, question)
	f.ctxs = append(f.ctxs, tasksContext)
	if f.err != nil {
		return "", f.err
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply, nil
}

func newTestBot(store *fakeStore, sched *fakeSched, assistant Assistant) (*TBot, *fakeAPI) {
	fapi := &fakeAPI{}
	b := NewTBot(fapi, store, sched, assistant, zap.NewNop().Sugar())
	b.RetryDelay = 0

	fc := clock.NewFake()
	fc.Set(testNow)
	b.clk = fc

	return b, fapi
}

func userMsg(txt string) *tg.Message {
	return &tg.Message{
		MessageID: 1,
		From:      &tg.User{ID: testUser, FirstName: "Тест"},
		Chat:      &tg.Chat{ID: testUser},
		Text:      txt,
	}
}

func commandMsg(txt string) *tg.Message {
	m := userMsg(txt)
	m.Entities = []tg.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(txt)}}
	return m
}

func drive(b *TBot, texts ...string) {
	for _, txt := range texts {
		b.HandleMessage(userMsg(txt))
	}
}

func TestStartCommandRendersMainMenu(t *testing.T) {
	b, fapi := newTestBot(newFakeStore(), &fakeSched{}, nil)

	b.HandleMessage(commandMsg("/start"))

	assert.Contains(t, fapi.last(), "Привет")
}

func TestAddFlowRoundTrip(t *testing.T) {
	store := newFakeStore()
	sched := &fakeSched{}
	b, fapi := newTestBot(store, sched, nil)

	drive(b, btnAdd, "Buy milk", "25/12/2025", "18:30", "Да")

	require.Len(t, store.tasks, 1)
	task := store.tasks[1]
	assert.Equal(t, "Buy milk", task.Title)
	assert.Equal(t, testUser, task.UserID)
	assert.Equal(t, time.Date(2025, 12, 25, 18, 30, 0, 0, time.UTC), task.DueAt)
	assert.True(t, task.Remind)
	assert.False(t, task.Done)

	// the scheduler saw exactly the committed task
	require.Len(t, sched.synced, 1)
	assert.Equal(t, task, sched.synced[0])

	assert.Contains(t, fapi.last(), "Задача создана")
	assert.Equal(t, stepIdle, b.sessions.get(testUser).step)
}

func TestAddFlowRemindDeclined(t *testing.T) {
	store := newFakeStore()
	sched := &fakeSched{}
	b, _ := newTestBot(store, sched, nil)

	drive(b, btnAdd, "Буханка хлеба", "сегодня", "20:00", "нет")

	require.Len(t, store.tasks, 1)
	assert.False(t, store.tasks[1].Remind)
	assert.Equal(t, time.Date(2025, 11, 3, 20, 0, 0, 0, time.UTC), store.tasks[1].DueAt)

	// Sync still runs; with the flag off it just guarantees no event
	require.Len(t, sched.synced, 1)
}

func TestAddFlowRepromptsOnBadInput(t *testing.T) {
	store := newFakeStore()
	b, fapi := newTestBot(store, &fakeSched{}, nil)

	drive(b, btnAdd, "Buy milk", "not-a-date")
	assert.Equal(t, txtBadDate, fapi.last())
	assert.Equal(t, stepAddDate, b.sessions.get(testUser).step)

	drive(b, "25.12.2025", "25:99")
	assert.Equal(t, txtBadTime, fapi.last())
	assert.Equal(t, stepAddTime, b.sessions.get(testUser).step)

	drive(b, "18:30", "Да")
	require.Len(t, store.tasks, 1)
}

func TestAddFlowEmptyTitleReprompts(t *testing.T) {
	b, fapi := newTestBot(newFakeStore(), &fakeSched{}, nil)

	drive(b, btnAdd, "")

	assert.Equal(t, txtEmptyTitle, fapi.last())
	assert.Equal(t, stepAddTitle, b.sessions.get(testUser).step)
}

func TestCancelDiscardsDraft(t *testing.T) {
	store := newFakeStore()
	sched := &fakeSched{}
	b, fapi := newTestBot(store, sched, nil)

	drive(b, btnAdd, "Buy milk", "25.12.2025", btnBack)

	assert.Empty(t, store.tasks, "an uncommitted draft must never reach the store")
	assert.Empty(t, sched.synced, "an uncommitted draft must never schedule an event")
	assert.Equal(t, stepIdle, b.sessions.get(testUser).step)
	assert.Equal(t, txtCancelled, fapi.last())
}

func TestCompleteFlowCancelsEvent(t *testing.T) {
	store := newFakeStore()
	store.put(db.Task{ID: 7, UserID: testUser, Title: "Отчёт", DueAt: testNow.Add(time.Hour), Remind: true})
	sched := &fakeSched{}
	b, fapi := newTestBot(store, sched, nil)

	drive(b, btnComplete, "7")

	assert.True(t, store.tasks[7].Done)
	assert.Equal(t, []int64{7}, sched.axed)
	assert.Equal(t, txtTaskDone, fapi.last())
}

func TestDeleteFlowCancelsEvent(t *testing.T) {
	store := newFakeStore()
	store.put(db.Task{ID: 7, UserID: testUser, Title: "Отчёт", DueAt: testNow.Add(time.Hour), Remind: true})
	sched := &fakeSched{}
	b, fapi := newTestBot(store, sched, nil)

	drive(b, btnDelete, "7")

	assert.Empty(t, store.tasks)
	assert.Equal(t, []int64{7}, sched.axed)
	assert.Equal(t, txtTaskDeleted, fapi.last())
}

func TestForeignTaskIsRejected(t *testing.T) {
	store := newFakeStore()
	store.put(db.Task{ID: 7, UserID: 1000, Title: "чужая", DueAt: testNow.Add(time.Hour)})
	b, fapi := newTestBot(store, &fakeSched{}, nil)

	drive(b, btnDelete, "7")

	assert.Len(t, store.tasks, 1, "foreign task must stay")
	assert.Equal(t, txtBadTaskID, fapi.last())
	assert.Equal(t, stepDeleteID, b.sessions.get(testUser).step, "bad ID re-prompts the same step")
}

func TestEditDueReschedules(t *testing.T) {
	store := newFakeStore()
	store.put(db.Task{ID: 3, UserID: testUser, Title: "Звонок", DueAt: testNow.Add(time.Hour), Remind: true})
	sched := &fakeSched{}
	b, fapi := newTestBot(store, sched, nil)

	drive(b, btnEdit, "3", "2", "25.12.2025", "09:15")

	want := time.Date(2025, 12, 25, 9, 15, 0, 0, time.UTC)
	assert.Equal(t, want, store.tasks[3].DueAt)

	require.Len(t, sched.synced, 1)
	assert.Equal(t, want, sched.synced[0].DueAt)
	assert.Equal(t, txtDueUpdated, fapi.last())
}

func TestEditRemindOffSynchronizes(t *testing.T) {
	store := newFakeStore()
	store.put(db.Task{ID: 3, UserID: testUser, Title: "Звонок", DueAt: testNow.Add(time.Hour), Remind: true})
	sched := &fakeSched{}
	b, _ := newTestBot(store, sched, nil)

	drive(b, btnEdit, "3", "3", "нет")

	assert.False(t, store.tasks[3].Remind)
	require.Len(t, sched.synced, 1)
	assert.False(t, sched.synced[0].Remind, "scheduler must see the disabled flag")
}

func TestEditTitleRefreshesEvent(t *testing.T) {
	store := newFakeStore()
	store.put(db.Task{ID: 3, UserID: testUser, Title: "Звонок", DueAt: testNow.Add(time.Hour), Remind: true})
	sched := &fakeSched{}
	b, _ := newTestBot(store, sched, nil)

	drive(b, btnEdit, "3", "1", "Звонок маме")

	assert.Equal(t, "Звонок маме", store.tasks[3].Title)
	require.Len(t, sched.synced, 1)
	assert.Equal(t, "Звонок маме", sched.synced[0].Title)
}

func TestEditAfterConcurrentDeleteReportsError(t *testing.T) {
	store := newFakeStore()
	store.put(db.Task{ID: 3, UserID: testUser, Title: "Звонок", DueAt: testNow.Add(time.Hour), Remind: true})
	sched := &fakeSched{}
	b, fapi := newTestBot(store, sched, nil)

	drive(b, btnEdit, "3", "1")

	// deleted out-of-band (e.g. through the web UI) while the title prompt
	// was open
	require.NoError(t, store.DeleteTask(3))

	drive(b, "Звонок маме")

	assert.Equal(t, txtTaskGone, fapi.last(), "a vanished task must not be confirmed as updated")
	assert.Empty(t, sched.synced)
	assert.Equal(t, []int64{3}, sched.axed)
	assert.Equal(t, stepIdle, b.sessions.get(testUser).step)
}

func TestEditFieldChoiceReprompts(t *testing.T) {
	store := newFakeStore()
	store.put(db.Task{ID: 3, UserID: testUser, Title: "Звонок", DueAt: testNow.Add(time.Hour)})
	b, fapi := newTestBot(store, &fakeSched{}, nil)

	drive(b, btnEdit, "3", "5")

	assert.Equal(t, txtChooseRetry, fapi.last())
	assert.Equal(t, stepEditField, b.sessions.get(testUser).step)
}

func TestUnrecognizedIdleMessageIsNoop(t *testing.T) {
	store := newFakeStore()
	sched := &fakeSched{}
	b, fapi := newTestBot(store, sched, nil)

	drive(b, "привет, бот")

	assert.Equal(t, txtMainMenuHint, fapi.last())
	assert.Empty(t, store.tasks)
	assert.Empty(t, sched.synced)
}

func TestStoreFailureAbortsOperation(t *testing.T) {
	store := newFakeStore()
	store.fail = true
	sched := &fakeSched{}
	b, fapi := newTestBot(store, sched, nil)

	drive(b, btnAdd, "Buy milk", "25.12.2025", "18:30", "Да")

	assert.Equal(t, txtDatabaseError, fapi.last())
	assert.Empty(t, sched.synced, "no event may be scheduled for a failed write")
	assert.Equal(t, stepIdle, b.sessions.get(testUser).step)
}

func TestDispatchDoesNotBlockOnFullMailbox(t *testing.T) {
	b, _ := newTestBot(newFakeStore(), &fakeSched{}, nil)

	// a mailbox with no consumer goroutine, already full
	box := make(chan *tg.Message, 1)
	box <- userMsg("stuck")
	b.mailboxes[testUser] = box

	done := make(chan struct{})
	go func() {
		b.dispatch(userMsg("flood"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch must drop overflow instead of blocking")
	}
	assert.Len(t, box, 1, "the overflow message is dropped, not queued")
}

func TestCommandInterruptsFlow(t *testing.T) {
	b, _ := newTestBot(newFakeStore(), &fakeSched{}, nil)

	drive(b, btnAdd, "Buy milk")
	require.Equal(t, stepAddDate, b.sessions.get(testUser).step)

	b.HandleMessage(commandMsg("/start"))
	assert.Equal(t, stepIdle, b.sessions.get(testUser).step)
}
