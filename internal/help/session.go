package help

import (
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tutorhall/livehelp/internal/logging"
)

// ErrSessionClosed is returned by session operations after Close.
var ErrSessionClosed = errors.New("session closed")

// SessionIDLength is the fixed length of a session ID.
const SessionIDLength = 16

// NewSessionID returns a new opaque 16-character session ID.
func NewSessionID() string {
	id := uuid.New()
	return strings.ToUpper(hex.EncodeToString(id[:SessionIDLength/2]))
}

// Subscriber is one attached endpoint, seen from the session's side.
type Subscriber interface {
	// Identity returns the identity the subscriber is bound to.
	Identity() Identity

	// Enqueue hands an envelope to the subscriber's outbound queue. It
	// must not block. A false return means the subscriber has failed or
	// fallen too far behind; the session detaches it and moves on.
	Enqueue(Envelope) bool

	// SessionClosed tells the subscriber the session has been torn down.
	// The binding is void from this point; rejoining requires a fresh
	// handshake against a live session.
	SessionClosed()
}

// Session is the single source of truth for one help conversation: the
// ordered chat log, the staff-only note log, the set of attached
// endpoints, the accepting-staff assignment, and the activity timestamp.
//
// One mutex serializes every operation, so mutation and broadcast-intent
// are a single step: all continuously attached subscribers observe posts
// and notes in exactly the order the session accepted them. Delivery
// itself happens on each subscriber's own drain goroutine, so a slow peer
// never stalls the critical section.
type Session struct {
	id        string
	initiator Identity
	log       *logging.Logger

	mu             sync.Mutex
	closed         bool
	acceptingStaff *Identity
	lastActivity   time.Time
	chat           []ChatPost
	notes          []StudentNote
	subscribers    map[Subscriber]struct{}
	participants   map[string]Identity
}

// NewSession creates a session for the given initiating participant. The
// initiator is recorded as the first participant.
func NewSession(id string, initiator Identity, log *logging.Logger) *Session {
	return &Session{
		id:           id,
		initiator:    initiator,
		log:          log,
		lastActivity: time.Now(),
		subscribers:  make(map[Subscriber]struct{}),
		participants: map[string]Identity{initiator.ID: initiator},
	}
}

// ID returns the session's immutable ID.
func (s *Session) ID() string { return s.id }

// Initiator returns the participant the session was created for.
func (s *Session) Initiator() Identity { return s.initiator }

// Touch updates the activity timestamp to now.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// LastActivity returns the time of the most recent accepted operation.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Attach adds the subscriber to the attached set and queues a full-state
// snapshot to it: the complete chat log, plus the note log if the
// subscriber's identity is staff-capable. The snapshot is queued inside
// the same critical section that adds the subscriber, so a concurrent
// post is either part of the snapshot or broadcast after it, never both
// and never neither. The snapshot is also returned. Attaching to a closed
// session fails with ErrSessionClosed.
func (s *Session) Attach(sub Subscriber) (Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Envelope{}, ErrSessionClosed
	}

	s.subscribers[sub] = struct{}{}
	s.lastActivity = time.Now()

	snapshot := Envelope{
		Snapshot: true,
		Chat:     append([]ChatPost(nil), s.chat...),
	}
	if sub.Identity().Role.StaffCapable() {
		snapshot.Notes = append([]StudentNote(nil), s.notes...)
	}

	if !sub.Enqueue(snapshot) {
		delete(s.subscribers, sub)
		s.log.Warn().Str("session", s.id).Str("user", sub.Identity().ID).
			Msg("snapshot delivery failed, detaching endpoint")
	}
	return snapshot, nil
}

// Detach removes the subscriber from the attached set. Detaching a
// subscriber that is not attached is not an error.
func (s *Session) Detach(sub Subscriber) {
	s.mu.Lock()
	delete(s.subscribers, sub)
	s.mu.Unlock()
}

// AttachedCount returns the number of currently attached subscribers.
func (s *Session) AttachedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

// AddChatPost appends the post to the chat log and broadcasts it to every
// attached subscriber, including the submitter's own endpoint. Repeated
// post IDs are appended again; the session does not deduplicate.
func (s *Session) AddChatPost(post ChatPost) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	s.chat = append(s.chat, post)
	s.lastActivity = time.Now()
	s.broadcastLocked(Envelope{Chat: []ChatPost{post}}, nil)
	return nil
}

// AddStudentNote appends the note to the note log and broadcasts it to
// staff-capable subscribers only.
func (s *Session) AddStudentNote(note StudentNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	s.notes = append(s.notes, note)
	s.lastActivity = time.Now()
	s.broadcastLocked(Envelope{Notes: []StudentNote{note}}, func(sub Subscriber) bool {
		return sub.Identity().Role.StaffCapable()
	})
	return nil
}

// broadcastLocked queues the envelope to every attached subscriber that
// the allow predicate admits (nil admits all). Subscribers whose queue
// rejects the envelope are detached; the append itself never rolls back.
// Callers must hold s.mu.
func (s *Session) broadcastLocked(env Envelope, allow func(Subscriber) bool) {
	var failed []Subscriber
	for sub := range s.subscribers {
		if allow != nil && !allow(sub) {
			continue
		}
		if !sub.Enqueue(env) {
			failed = append(failed, sub)
		}
	}
	for _, sub := range failed {
		delete(s.subscribers, sub)
		s.log.Warn().Str("session", s.id).Str("user", sub.Identity().ID).
			Msg("delivery failed, detaching endpoint")
	}
}

// Close marks the session dead and notifies every attached subscriber
// that its binding is void. Further Attach, AddChatPost, and
// AddStudentNote calls fail with ErrSessionClosed. Notification happens
// outside the session lock so a subscriber's teardown cannot stall it.
// Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := make([]Subscriber, 0, len(s.subscribers))
	for sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.subscribers = make(map[Subscriber]struct{})
	s.mu.Unlock()

	for _, sub := range subs {
		sub.SessionClosed()
	}
	s.log.Info().Str("session", s.id).Int("detached", len(subs)).Msg("session closed")
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SetAcceptingStaff records the staff identity handling this session.
// Reassignment overwrites; last write wins.
func (s *Session) SetAcceptingStaff(staff Identity) {
	s.mu.Lock()
	s.acceptingStaff = &staff
	s.participants[staff.ID] = staff
	s.mu.Unlock()
}

// AcceptingStaff returns the currently assigned staff identity, if any.
func (s *Session) AcceptingStaff() (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acceptingStaff == nil {
		return Identity{}, false
	}
	return *s.acceptingStaff, true
}

// AddParticipant records an identity as authorized to rejoin this session.
func (s *Session) AddParticipant(id Identity) {
	s.mu.Lock()
	s.participants[id.ID] = id
	s.mu.Unlock()
}

// RemoveParticipant revokes an identity's participant status.
func (s *Session) RemoveParticipant(id Identity) {
	s.mu.Lock()
	delete(s.participants, id.ID)
	s.mu.Unlock()
}

// IsParticipant reports whether the identity may join this session.
func (s *Session) IsParticipant(id Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.participants[id.ID]
	return ok
}

// ChatPosts returns a copy of the chat log in accepted order.
func (s *Session) ChatPosts() []ChatPost {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatPost(nil), s.chat...)
}

// StudentNotes returns a copy of the note log in accepted order.
func (s *Session) StudentNotes() []StudentNote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StudentNote(nil), s.notes...)
}
