// Package api exposes the task manager to the mini-app web UI: the same task
// list, mutations and AI chat the Telegram surface offers, over HTTP. Every
// mutation goes through the task store and the reminder scheduler exactly
// like the chat flows do.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"myrhythm/dates"
	"myrhythm/db"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type Store interface {
	CreateTask(usr int64, title string, dueAt time.Time, remind bool) (int64, error)
	ListTasks(usr int64, includeDone bool) ([]db.Task, error)
	MarkDone(id int64) error
	DeleteTask(id int64) error
}

type Scheduler interface {
	Sync(t db.Task)
	Cancel(taskID int64)
}

type Assistant interface {
	Answer(ctx context.Context, tasksContext, question string) (string, error)
}

type Server struct {
	db        Store
	reminders Scheduler
	ai        Assistant // nil disables /api/ai
	logger    *zap.SugaredLogger
}

func NewServer(d Store, r Scheduler, a Assistant, l *zap.SugaredLogger) *Server {
	return &Server{db: d, reminders: r, ai: a, logger: l}
}

// Router builds the HTTP handler. CORS is wide open: the mini-app is served
// from a different origin than the bot host.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/tasks", s.handleListTasks).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks/add", s.handleAddTask).Methods(http.MethodPost)
	r.HandleFunc("/api/tasks/update", s.handleUpdateTask).Methods(http.MethodPost)
	r.HandleFunc("/api/ai", s.handleAIChat).Methods(http.MethodPost)

	return cors.AllowAll().Handler(r)
}

type taskJSON struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	DueAt  string `json:"due_at"`
	Remind bool   `json:"remind"`
	Status string `json:"status"`
}

func toTaskJSON(t db.Task) taskJSON {
	status := "pending"
	if t.Done {
		status = "done"
	}
	return taskJSON{
		ID:     t.ID,
		Title:  t.Title,
		DueAt:  dates.Format(t.DueAt),
		Remind: t.Remind,
		Status: status,
	}
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	usr, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	tasks, err := s.db.ListTasks(usr, true)
	if err != nil {
		s.logger.Errorw("failed listing tasks", "err", err)
		writeError(w, http.StatusInternalServerError, "failed listing tasks")
		return
	}

	out := make([]taskJSON, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskJSON(t))
	}

	writeJSON(w, http.StatusOK, map[string]any{"tasks": out})
}

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID int64  `json:"user_id"`
		Title  string `json:"title"`
		DueAt  string `json:"due_at"`
		Remind bool   `json:"remind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.UserID == 0 || req.Title == "" {
		writeError(w, http.StatusBadRequest, "user_id and title are required")
		return
	}

	dueAt, err := dates.ParseStamp(req.DueAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid due_at %q", req.DueAt))
		return
	}

	id, err := s.db.CreateTask(req.UserID, req.Title, dueAt, req.Remind)
	if err != nil {
		s.logger.Errorw("failed creating task", "err", err)
		writeError(w, http.StatusInternalServerError, "failed creating task")
		return
	}

	s.reminders.Sync(db.Task{ID: id, UserID: req.UserID, Title: req.Title, DueAt: dueAt, Remind: req.Remind})

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "id": id})
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
		ID     int64  `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var err error
	switch req.Action {
	case "complete":
		err = s.db.MarkDone(req.ID)
	case "delete":
		err = s.db.DeleteTask(req.ID)
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}

	if err != nil {
		s.logger.Errorw("failed updating task", "action", req.Action, "task", req.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed updating task")
		return
	}

	s.reminders.Cancel(req.ID)

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleAIChat(w http.ResponseWriter, r *http.Request) {
	if s.ai == nil {
		writeError(w, http.StatusServiceUnavailable, "AI agent is not configured")
		return
	}

	var req struct {
		UserID  int64  `json:"user_id"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tasks, err := s.db.ListTasks(req.UserID, false)
	if err != nil {
		s.logger.Errorw("failed listing tasks for AI context", "err", err)
		writeError(w, http.StatusInternalServerError, "failed listing tasks")
		return
	}

	var sb strings.Builder
	for _, t := range tasks {
		fmt.Fprintf(&sb, "- %s (%s)\n", t.Title, dates.Format(t.DueAt))
	}

	reply, err := s.ai.Answer(r.Context(), sb.String(), req.Message)
	if err != nil {
		s.logger.Errorw("AI call failed", "err", err)
		writeError(w, http.StatusBadGateway, "AI call failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"response": reply})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
