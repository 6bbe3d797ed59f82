package tgbot

import (
	"sync"
	"time"
)

type step int

const (
	stepIdle step = iota

	// add flow
	stepAddTitle
	stepAddDate
	stepAddTime
	stepAddRemind

	// edit flow
	stepEditID
	stepEditField
	stepEditTitle
	stepEditDate
	stepEditTime
	stepEditRemind

	stepDoneID
	stepDeleteID

	stepAI
)

// draft holds the partial task collected so far by the add flow. It is not a
// valid task until every step has validated its field; nothing is written to
// the store or the scheduler until the final step commits.
type draft struct {
	title string
	date  time.Time
	hour  int
	min   int
}

// session is the per-user conversation state: the current dialogue step, the
// draft under construction, the edit target and the last bot prompt shown to
// the user. Overwritten on each step, dropped on completion or cancel.
type session struct {
	step       step
	draft      draft
	taskID     int64     // edit/complete/delete target
	newDate    time.Time // intermediate value of the edit date/time step
	lastPrompt int       // message ID of the last bot prompt, replaced on the next one
}

// sessions maps user IDs to their conversation sessions. Sessions never
// expire; a user who abandons a flow keeps an entry until they cancel or
// finish another flow.
type sessions struct {
	mu sync.Mutex
	m  map[int64]*session
}

func newSessions() *sessions {
	return &sessions{m: make(map[int64]*session)}
}

// get returns the user's session, creating an idle one on first interaction.
func (s *sessions) get(usr int64) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sn, ok := s.m[usr]
	if !ok {
		sn = &session{step: stepIdle}
		s.m[usr] = sn
	}
	return sn
}

// clear drops the user's session: the next message starts from idle with an
// empty draft.
func (s *sessions) clear(usr int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.m, usr)
}
