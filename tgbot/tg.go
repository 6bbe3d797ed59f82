// Package tgbot routes each inbound Telegram message through the user's
// conversation session and turns validated input into task mutations. Every
// mutation, whether typed step by step or extracted from an AI reply, goes
// through the same creation path and re-synchronizes the reminder scheduler.
package tgbot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"myrhythm/dates"
	"myrhythm/db"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmhodges/clock"
	"go.uber.org/zap"
)

// api is the part of the Telegram client the bot uses. *tg.BotAPI implements it.
type api interface {
	Send(c tg.Chattable) (tg.Message, error)
	Request(c tg.Chattable) (*tg.APIResponse, error)
}

// Store is what the conversation handlers need from the task store.
type Store interface {
	CreateTask(usr int64, title string, dueAt time.Time, remind bool) (int64, error)
	GetTask(id int64) (*db.Task, error)
	ListTasks(usr int64, includeDone bool) ([]db.Task, error)
	UpdateTitle(id int64, title string) error
	UpdateDue(id int64, dueAt time.Time) error
	UpdateRemind(id int64, remind bool) error
	MarkDone(id int64) error
	DeleteTask(id int64) error
}

// Scheduler is the reminder engine surface the handlers synchronize after
// every task mutation.
type Scheduler interface {
	Sync(t db.Task)
	Cancel(taskID int64)
}

// Assistant produces a free-text reply for the AI mode.
type Assistant interface {
	Answer(ctx context.Context, tasksContext, question string) (string, error)
}

type TBot struct {
	Bot           api
	DB            Store
	Reminders     Scheduler
	AI            Assistant // nil disables the AI mode
	Logger        *zap.SugaredLogger
	RetryAttempts int
	RetryDelay    time.Duration

	clk      clock.Clock
	sessions *sessions

	mu        sync.Mutex
	mailboxes map[int64]chan *tg.Message
}

func NewTBot(bot api, d Store, r Scheduler, a Assistant, l *zap.SugaredLogger) *TBot {
	return &TBot{
		Bot:           bot,
		DB:            d,
		Reminders:     r,
		AI:            a,
		Logger:        l,
		RetryAttempts: 3,
		RetryDelay:    1 * time.Second,
		clk:           clock.New(),
		sessions:      newSessions(),
		mailboxes:     make(map[int64]chan *tg.Message),
	}
}

// Run consumes the update channel until it closes. Messages are fanned out to
// per-user mailboxes: one user's messages are handled strictly in arrival
// order (each step depends on the previous one's draft), while a slow
// external call stalls only that user.
func (b *TBot) Run(updates tg.UpdatesChannel) {
	for u := range updates {
		if u.Message == nil || u.Message.From == nil {
			continue
		}
		b.dispatch(u.Message)
	}
}

func (b *TBot) dispatch(msg *tg.Message) {
	b.mu.Lock()
	box, ok := b.mailboxes[msg.From.ID]
	if !ok {
		box = make(chan *tg.Message, 16)
		b.mailboxes[msg.From.ID] = box
		go func() {
			for m := range box {
				b.HandleMessage(m)
			}
		}()
	}
	b.mu.Unlock()

	// a user flooding a stalled mailbox must not block dispatch for everyone
	// else; their overflow is dropped
	select {
	case box <- msg:
	default:
		b.Logger.Warnw("mailbox full, dropping message", "user", msg.From.ID)
	}
}

// HandleMessage resolves the user's current step and advances the dialogue.
func (b *TBot) HandleMessage(msg *tg.Message) {
	usr := msg.From.ID
	s := b.sessions.get(usr)

	if msg.IsCommand() {
		b.handleCommand(usr, msg)
		return
	}

	txt := strings.TrimSpace(msg.Text)

	// an explicit cancel always succeeds and discards the draft
	if s.step != stepIdle && (txt == btnBack || strings.EqualFold(txt, "отмена")) {
		b.sessions.clear(usr)
		b.sendClean(usr, msg.MessageID, txtCancelled, mainMenu)
		return
	}

	switch s.step {
	case stepIdle:
		b.handleMenu(s, msg, txt)

	case stepAddTitle:
		if txt == "" {
			b.promptStep(s, usr, txtEmptyTitle, nil)
			return
		}
		s.draft.title = txt
		s.step = stepAddDate
		b.promptStep(s, usr, txtEnterDate, nil)

	case stepAddDate:
		d, err := dates.ParseDate(txt, b.clk.Now().UTC())
		if err != nil {
			b.promptStep(s, usr, txtBadDate, nil)
			return
		}
		s.draft.date = d
		s.step = stepAddTime
		b.promptStep(s, usr, txtEnterTime, nil)

	case stepAddTime:
		hh, mm, err := dates.ParseClock(txt)
		if err != nil {
			b.promptStep(s, usr, txtBadTime, nil)
			return
		}
		s.draft.hour, s.draft.min = hh, mm
		s.step = stepAddRemind
		b.promptStep(s, usr, txtEnterRemind, nil)

	case stepAddRemind:
		due := dates.Combine(s.draft.date, s.draft.hour, s.draft.min)
		t, err := b.createTask(usr, s.draft.title, due, !isNo(txt))
		b.sessions.clear(usr)
		if err != nil {
			b.sendMessage(usr, txtDatabaseError, tasksMenu)
			return
		}
		b.sendMessage(usr, taskCreatedText(t), tasksMenu)

	case stepEditID:
		t, ok := b.lookupOwnTask(s, usr, txt)
		if !ok {
			return
		}
		s.taskID = t.ID
		s.step = stepEditField
		b.promptStep(s, usr, txtChooseField, nil)

	case stepEditField:
		switch txt {
		case "1":
			s.step = stepEditTitle
			b.promptStep(s, usr, txtEnterNewTitle, nil)
		case "2":
			s.step = stepEditDate
			b.promptStep(s, usr, txtEnterNewDate, nil)
		case "3":
			s.step = stepEditRemind
			b.promptStep(s, usr, txtEnterRemind, nil)
		default:
			b.promptStep(s, usr, txtChooseRetry, nil)
		}

	case stepEditTitle:
		if txt == "" {
			b.promptStep(s, usr, txtEmptyTitle, nil)
			return
		}
		b.finishEdit(s, usr, txtTitleUpdated, b.DB.UpdateTitle(s.taskID, txt))

	case stepEditDate:
		d, err := dates.ParseDate(txt, b.clk.Now().UTC())
		if err != nil {
			b.promptStep(s, usr, txtBadDate, nil)
			return
		}
		s.newDate = d
		s.step = stepEditTime
		b.promptStep(s, usr, txtEnterNewTime, nil)

	case stepEditTime:
		hh, mm, err := dates.ParseClock(txt)
		if err != nil {
			b.promptStep(s, usr, txtBadTime, nil)
			return
		}
		due := dates.Combine(s.newDate, hh, mm)
		b.finishEdit(s, usr, txtDueUpdated, b.DB.UpdateDue(s.taskID, due))

	case stepEditRemind:
		b.finishEdit(s, usr, txtRemindUpdated, b.DB.UpdateRemind(s.taskID, !isNo(txt)))

	case stepDoneID:
		t, ok := b.lookupOwnTask(s, usr, txt)
		if !ok {
			return
		}
		b.sessions.clear(usr)
		if err := b.DB.MarkDone(t.ID); err != nil {
			b.Logger.Errorw("failed completing task", "err", err)
			b.sendMessage(usr, txtDatabaseError, tasksMenu)
			return
		}
		b.Reminders.Cancel(t.ID)
		b.sendMessage(usr, txtTaskDone, tasksMenu)

	case stepDeleteID:
		t, ok := b.lookupOwnTask(s, usr, txt)
		if !ok {
			return
		}
		b.sessions.clear(usr)
		if err := b.DB.DeleteTask(t.ID); err != nil {
			b.Logger.Errorw("failed deleting task", "err", err)
			b.sendMessage(usr, txtDatabaseError, tasksMenu)
			return
		}
		b.Reminders.Cancel(t.ID)
		b.sendMessage(usr, txtTaskDeleted, tasksMenu)

	case stepAI:
		b.handleAI(usr, txt)
	}
}

func (b *TBot) handleCommand(usr int64, msg *tg.Message) {
	// commands interrupt any ongoing flow
	b.sessions.clear(usr)

	switch msg.Command() {
	case "start":
		name := msg.From.FirstName
		if name == "" {
			name = msg.From.UserName
		}
		b.sendMessage(usr, fmt.Sprintf(fmtWelcome, name), mainMenu)

	default:
		b.sendMessage(usr, txtUnknownCommand, mainMenu)
	}
}

func (b *TBot) handleMenu(s *session, msg *tg.Message, txt string) {
	usr := msg.From.ID

	switch txt {
	case btnTasks:
		b.sendClean(usr, msg.MessageID, txtTasksMenu, tasksMenu)

	case btnBack:
		b.sendClean(usr, msg.MessageID, txtMainMenuHint, mainMenu)

	case btnAdd:
		s.step = stepAddTitle
		b.sendClean(usr, msg.MessageID, txtEnterTitle, tg.NewRemoveKeyboard(true))

	case btnActive:
		b.deleteMessage(usr, msg.MessageID)
		b.sendTaskList(usr, false)

	case btnCompleted:
		b.deleteMessage(usr, msg.MessageID)
		b.sendTaskList(usr, true)

	case btnEdit:
		s.step = stepEditID
		b.sendClean(usr, msg.MessageID, txtEnterTaskID, tg.NewRemoveKeyboard(true))

	case btnComplete:
		s.step = stepDoneID
		b.sendClean(usr, msg.MessageID, txtEnterTaskID, tg.NewRemoveKeyboard(true))

	case btnDelete:
		s.step = stepDeleteID
		b.sendClean(usr, msg.MessageID, txtEnterTaskID, tg.NewRemoveKeyboard(true))

	case btnAI:
		if b.AI == nil {
			b.sendClean(usr, msg.MessageID, txtAIDisabled, mainMenu)
			return
		}
		s.step = stepAI
		b.sendClean(usr, msg.MessageID, txtAIWelcome, backMenu)

	default:
		// unrecognized message while idle is a no-op, just point at the menu
		b.sendClean(usr, msg.MessageID, txtMainMenuHint, mainMenu)
	}
}

// createTask is the single task-creation path: store write first, scheduler
// synchronize second, so the event is never built from stale state. Both the
// manual flow and AI-extracted commands end up here.
func (b *TBot) createTask(usr int64, title string, dueAt time.Time, remind bool) (db.Task, error) {
	id, err := b.DB.CreateTask(usr, title, dueAt, remind)
	if err != nil {
		b.Logger.Errorw("failed creating task", "err", err)
		return db.Task{}, err
	}

	t := db.Task{ID: id, UserID: usr, Title: title, DueAt: dueAt, Remind: remind}
	b.Reminders.Sync(t)

	return t, nil
}

// lookupOwnTask validates a typed task ID against the store and the owner. A
// bad or foreign ID re-prompts the same step.
func (b *TBot) lookupOwnTask(s *session, usr int64, txt string) (*db.Task, bool) {
	id, err := strconv.ParseInt(txt, 10, 64)
	if err != nil {
		b.promptStep(s, usr, txtBadTaskID, nil)
		return nil, false
	}

	t, err := b.DB.GetTask(id)
	if err != nil {
		b.Logger.Errorw("failed fetching task", "err", err)
		b.promptStep(s, usr, txtDatabaseError, nil)
		return nil, false
	}

	if t == nil || t.UserID != usr {
		b.promptStep(s, usr, txtBadTaskID, nil)
		return nil, false
	}

	return t, true
}

// finishEdit completes an edit flow: report the store result and bring the
// scheduler back in line with whatever the task looks like now.
func (b *TBot) finishEdit(s *session, usr int64, confirmation string, err error) {
	taskID := s.taskID
	b.sessions.clear(usr)

	if err != nil {
		b.Logger.Errorw("failed updating task", "task", taskID, "err", err)
		b.sendMessage(usr, txtDatabaseError, tasksMenu)
		return
	}

	t, err := b.DB.GetTask(taskID)
	switch {
	case err != nil:
		b.Logger.Errorw("failed re-reading task after edit", "task", taskID, "err", err)
	case t == nil:
		// deleted mid-flow, so the update hit nothing; report that instead
		// of a false success, and make sure no event lingers
		b.Reminders.Cancel(taskID)
		b.sendMessage(usr, txtTaskGone, tasksMenu)
		return
	default:
		b.Reminders.Sync(*t)
	}

	b.sendMessage(usr, confirmation, tasksMenu)
}

func (b *TBot) sendTaskList(usr int64, done bool) {
	tasks, err := b.DB.ListTasks(usr, done)
	if err != nil {
		b.Logger.Errorw("failed listing tasks", "err", err)
		b.sendMessage(usr, txtDatabaseError, tasksMenu)
		return
	}

	var sb strings.Builder
	var n int
	if done {
		sb.WriteString(txtDoneHeader)
		for _, t := range tasks {
			if !t.Done {
				continue
			}
			fmt.Fprintf(&sb, fmtDoneLine, t.ID, t.Title)
			n++
		}
		if n == 0 {
			b.sendMessage(usr, txtNoDoneTasks, tasksMenu)
			return
		}
	} else {
		sb.WriteString(txtActiveHeader)
		for _, t := range tasks {
			fmt.Fprintf(&sb, fmtTaskLine, t.ID, t.Title, dates.Format(t.DueAt))
			n++
		}
		if n == 0 {
			b.sendMessage(usr, txtNoActiveTasks, tasksMenu)
			return
		}
	}

	b.sendMessage(usr, sb.String(), tasksMenu)
}

func taskCreatedText(t db.Task) string {
	return fmt.Sprintf(fmtTaskCreated, t.Title, dates.Format(t.DueAt))
}

func isNo(txt string) bool {
	lower := strings.ToLower(strings.TrimSpace(txt))
	return strings.HasPrefix(lower, "н") || strings.HasPrefix(lower, "no")
}

// Notify delivers a reminder text to the user. Used as the scheduler's
// notifier callback.
func (b *TBot) Notify(usr int64, text string) error {
	_, err := b.sendMessage(usr, text, nil)
	return err
}

// promptStep shows the next (or repeated) step prompt, replacing the previous
// one so the dialogue doesn't pile up prompts.
func (b *TBot) promptStep(s *session, usr int64, txt string, kb any) {
	if s.lastPrompt > 0 {
		b.deleteMessage(usr, s.lastPrompt)
		s.lastPrompt = 0
	}

	msg, err := b.sendMessage(usr, txt, kb)
	if err == nil {
		s.lastPrompt = msg.MessageID
	}
}

// sendClean deletes the user's menu tap and answers with a fresh message,
// keeping the chat free of stale menu taps.
func (b *TBot) sendClean(usr int64, incomingID int, txt string, kb any) {
	b.deleteMessage(usr, incomingID)
	b.sendMessage(usr, txt, kb)
}

func (b *TBot) sendMessage(usr int64, txt string, kb any) (tg.Message, error) {
	m := tg.NewMessage(usr, txt)
	m.ParseMode = tg.ModeHTML
	m.DisableWebPagePreview = true
	if kb != nil {
		m.ReplyMarkup = kb
	}

	var msg tg.Message
	var err error
	retryExecute(b.RetryAttempts, b.RetryDelay, func() bool {
		msg, err = b.Bot.Send(m)
		return err == nil
	})
	if err != nil {
		b.Logger.Errorw("failed sending message", "err", err)
	}
	return msg, err
}

// deleteMessage removes a message best-effort; the bot may lack rights to
// delete in some chats and that's fine.
func (b *TBot) deleteMessage(usr int64, msgID int) {
	if msgID <= 0 {
		return
	}
	if _, err := b.Bot.Request(tg.NewDeleteMessage(usr, msgID)); err != nil {
		b.Logger.Debugw("failed deleting message", "err", err)
	}
}
