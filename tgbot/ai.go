package tgbot

import (
	"context"
	"fmt"
	"strings"

	"myrhythm/ai"
	"myrhythm/dates"
	"myrhythm/db"
)

// handleAI runs one AI-mode turn: ship the utterance plus the user's open
// tasks to the model, then either apply the extracted command or show the
// reply verbatim. Whatever goes wrong, the user stays in AI mode with a
// usable conversation; bridge failures degrade to a plain-text notice.
func (b *TBot) handleAI(usr int64, txt string) {
	tasks, err := b.DB.ListTasks(usr, false)
	if err != nil {
		b.Logger.Errorw("failed listing tasks for AI context", "err", err)
		b.sendMessage(usr, txtDatabaseError, backMenu)
		return
	}

	reply, err := b.AI.Answer(context.Background(), renderTasksContext(tasks), txt)
	if err != nil {
		b.Logger.Errorw("AI call failed", "err", err)
		b.sendMessage(usr, txtAIError, backMenu)
		return
	}

	cmd, ok := ai.ExtractCommand(reply)
	if !ok {
		// ordinary conversational text, shown unmodified
		b.sendMessage(usr, reply, backMenu)
		return
	}

	switch cmd.Action {
	case ai.ActionCreate:
		b.applyAICreate(usr, cmd)
	case ai.ActionDelete:
		b.applyAIDelete(usr, cmd, tasks)
	}
}

// applyAICreate validates the extracted fields with the same parsers the
// manual flow uses and delegates to the same creation path, so the scheduling
// side effects are identical regardless of entry path.
func (b *TBot) applyAICreate(usr int64, cmd ai.Command) {
	if cmd.Title == "" {
		b.sendMessage(usr, txtEmptyTitle, backMenu)
		return
	}

	d, errDate := dates.ParseDate(cmd.Date, b.clk.Now().UTC())
	hh, mm, errClock := dates.ParseClock(cmd.Time)
	if errDate != nil || errClock != nil {
		b.sendMessage(usr, fmt.Sprintf(fmtAIBadDate, cmd.Date, cmd.Time), backMenu)
		return
	}

	t, err := b.createTask(usr, cmd.Title, dates.Combine(d, hh, mm), true)
	if err != nil {
		b.sendMessage(usr, txtDatabaseError, backMenu)
		return
	}

	b.sendMessage(usr, taskCreatedText(t), backMenu)
}

// applyAIDelete removes every task whose title contains the keywords,
// case-insensitively. Bulk fuzzy deletion is the contract here: zero, one or
// many matches are all fine, and the user gets the count back.
func (b *TBot) applyAIDelete(usr int64, cmd ai.Command, tasks []db.Task) {
	keywords := strings.ToLower(cmd.Keywords)
	if keywords == "" {
		b.sendMessage(usr, txtAINoneMatched, backMenu)
		return
	}

	var deleted int
	for _, t := range tasks {
		if !strings.Contains(strings.ToLower(t.Title), keywords) {
			continue
		}

		if err := b.DB.DeleteTask(t.ID); err != nil {
			b.Logger.Errorw("failed deleting task", "task", t.ID, "err", err)
			continue
		}

		b.Reminders.Cancel(t.ID)
		deleted++
	}

	if deleted == 0 {
		b.sendMessage(usr, txtAINoneMatched, backMenu)
		return
	}

	b.sendMessage(usr, fmt.Sprintf(fmtAIDeleted, deleted), backMenu)
}

// renderTasksContext builds the task summary shipped to the model so it can
// reference existing tasks ("delete the meeting task").
func renderTasksContext(tasks []db.Task) string {
	if len(tasks) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, t := range tasks {
		fmt.Fprintf(&sb, "- %s (%s)\n", t.Title, dates.Format(t.DueAt))
	}
	return sb.String()
}
