package gateway

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tutorhall/livehelp/internal/help"
	"github.com/tutorhall/livehelp/internal/logging"
)

// Transport is the duplex-connection capability an endpoint writes to.
// The transport layer owns connection open/close and frame delivery.
type Transport interface {
	SendText(text string) error
	Close() error
}

// wsTransport adapts a gorilla websocket connection to Transport.
// Writes are serialized; gorilla connections allow one writer at a time.
type wsTransport struct {
	mu           sync.Mutex
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func newWSTransport(conn *websocket.Conn, writeTimeout time.Duration) *wsTransport {
	return &wsTransport{conn: conn, writeTimeout: writeTimeout}
}

func (t *wsTransport) SendText(text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

// endpointState is the tagged connection state. There is no transition
// out of stateClosed.
type endpointState int

const (
	stateUnbound endpointState = iota
	stateBound
	stateClosed
)

// Endpoint adapts one duplex connection to the session protocol. A new
// endpoint is Unbound: the only frame it acts on is the handshake. A
// successful handshake binds it to exactly one identity and one session
// and queues the full-state snapshot. A transport error or close moves it
// to Closed, after which no operation is accepted.
//
// Outbound envelopes go through a bounded queue drained by a dedicated
// goroutine, so a slow peer delays only its own delivery. A full queue or
// a failed write is terminal for this endpoint alone.
type Endpoint struct {
	id        string
	transport Transport
	registry  *help.Registry
	validator help.Validator
	log       *logging.Logger

	out       chan help.Envelope
	done      chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	state    endpointState
	identity help.Identity
	session  *help.Session
}

// NewEndpoint creates an Unbound endpoint over the given transport and
// starts its outbound drain goroutine.
func NewEndpoint(t Transport, registry *help.Registry, validator help.Validator, queueSize int, log *logging.Logger) *Endpoint {
	e := &Endpoint{
		id:        uuid.New().String(),
		transport: t,
		registry:  registry,
		validator: validator,
		log:       log,
		out:       make(chan help.Envelope, queueSize),
		done:      make(chan struct{}),
	}
	go e.writeLoop()
	return e
}

// ID returns the endpoint's connection ID.
func (e *Endpoint) ID() string { return e.id }

// Identity implements help.Subscriber.
func (e *Endpoint) Identity() help.Identity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.identity
}

// Enqueue implements help.Subscriber. It never blocks: a closed endpoint
// or a full queue rejects the envelope, and the session detaches us.
func (e *Endpoint) Enqueue(env help.Envelope) bool {
	select {
	case <-e.done:
		return false
	default:
	}
	select {
	case e.out <- env:
		return true
	default:
		return false
	}
}

// writeLoop drains the outbound queue onto the transport. The first
// failed write closes the endpoint; nothing is retried.
func (e *Endpoint) writeLoop() {
	for {
		select {
		case env := <-e.out:
			text, err := encodeEnvelope(env)
			if err != nil {
				e.log.Error().Err(err).Str("conn", e.id).Msg("encoding envelope")
				continue
			}
			if err := e.transport.SendText(text); err != nil {
				e.log.Warn().Err(err).Str("conn", e.id).Msg("write failed, closing endpoint")
				e.Close()
				return
			}
		case <-e.done:
			return
		}
	}
}

// HandleMessage processes one inbound text frame. Handshake frames are
// accepted in any state except Closed; all other traffic requires a
// completed handshake and is silently ignored while Unbound.
func (e *Endpoint) HandleMessage(text string) {
	if strings.HasPrefix(text, handshakePrefix) {
		e.handleHandshake(text[len(handshakePrefix):])
		return
	}

	e.mu.Lock()
	bound := e.state == stateBound
	identity := e.identity
	session := e.session
	e.mu.Unlock()
	if !bound {
		return
	}

	switch {
	case strings.HasPrefix(text, chatPrefix):
		e.handleChat(session, identity, text[len(chatPrefix):])
	case strings.HasPrefix(text, notePrefix):
		e.handleNote(session, identity, text[len(notePrefix):])
	case text == byeMessage:
		e.log.Info().Str("conn", e.id).Str("session", session.ID()).Msg("client ended conversation")
		e.Close()
	default:
		e.log.Warn().Str("conn", e.id).Msg("unrecognized message, dropping")
	}
}

// handleHandshake resolves the login token and help-session ID. Failure
// is reported over the wire and leaves the endpoint Unbound so the client
// can retry with corrected credentials.
func (e *Endpoint) handleHandshake(body string) {
	e.mu.Lock()
	state := e.state
	e.mu.Unlock()
	switch state {
	case stateBound:
		e.log.Warn().Str("conn", e.id).Msg("handshake on already-bound endpoint, dropping")
		return
	case stateClosed:
		e.log.Warn().Str("conn", e.id).Msg("handshake on closed endpoint, dropping")
		return
	}

	login, sessionID, err := parseHandshake(body)
	if err != nil {
		e.sendError("Malformed handshake")
		return
	}

	identity, err := e.validator.Validate(login)
	if err != nil {
		e.log.Warn().Err(err).Str("conn", e.id).Msg("login session rejected")
		e.sendError("Invalid login session")
		return
	}

	session, ok := e.registry.Get(sessionID)
	if !ok {
		e.log.Warn().Str("conn", e.id).Str("session", sessionID).Msg("unknown help session")
		e.sendError("Unknown help session")
		return
	}

	// Staff-capable identities may attach to any live session; everyone
	// else must already be a participant.
	if !identity.Role.StaffCapable() && !session.IsParticipant(identity) {
		e.log.Warn().Str("conn", e.id).Str("user", identity.ID).Msg("identity not authorized for session")
		e.sendError("Not Authorized")
		return
	}

	e.mu.Lock()
	if e.state != stateUnbound {
		e.mu.Unlock()
		return
	}
	e.state = stateBound
	e.identity = identity
	e.session = session
	e.mu.Unlock()

	if identity.Role.StaffCapable() {
		session.AddParticipant(identity)
	}
	if _, err := session.Attach(e); err != nil {
		// The session was closed between registry lookup and attach.
		if e.unbind() {
			e.sendError("Session closed")
		}
		return
	}

	e.log.Info().
		Str("conn", e.id).
		Str("session", session.ID()).
		Str("user", identity.ID).
		Str("role", string(identity.Role)).
		Msg("endpoint bound")
}

// handleChat appends a chat post from this endpoint's identity. Malformed
// payloads are logged and dropped; the client gets no reply.
func (e *Endpoint) handleChat(session *help.Session, identity help.Identity, body string) {
	p, err := parseChatPayload(body)
	if err != nil {
		e.log.Warn().Err(err).Str("conn", e.id).Msg("dropping malformed chat payload")
		return
	}
	err = session.AddChatPost(help.ChatPost{
		ID:          p.ID,
		When:        time.Now(),
		Kind:        help.PostKind(p.Type),
		FromStudent: !identity.Role.StaffCapable(),
		Author:      identity,
		Content:     p.Content,
	})
	if err != nil && e.unbind() {
		e.log.Warn().Str("conn", e.id).Str("session", session.ID()).Msg("chat post on closed session, unbinding")
		e.sendError("Session closed")
	}
}

// handleNote appends a staff note. Notes from identities that are not
// staff-capable are logged and dropped.
func (e *Endpoint) handleNote(session *help.Session, identity help.Identity, body string) {
	if !identity.Role.StaffCapable() {
		e.log.Warn().Str("conn", e.id).Str("user", identity.ID).Msg("dropping note from non-staff identity")
		return
	}
	p, err := parseNotePayload(body)
	if err != nil {
		e.log.Warn().Err(err).Str("conn", e.id).Msg("dropping malformed note payload")
		return
	}
	err = session.AddStudentNote(help.StudentNote{
		ID:      p.ID,
		When:    time.Now(),
		Author:  identity,
		Content: p.Content,
	})
	if err != nil && e.unbind() {
		e.log.Warn().Str("conn", e.id).Str("session", session.ID()).Msg("note on closed session, unbinding")
		e.sendError("Session closed")
	}
}

// unbind reverts a Bound endpoint to Unbound, clearing its identity and
// session references so the client can handshake again. Reports whether
// the endpoint was Bound; Closed endpoints are left alone.
func (e *Endpoint) unbind() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateBound {
		return false
	}
	e.state = stateUnbound
	e.identity = help.Identity{}
	e.session = nil
	return true
}

// SessionClosed implements help.Subscriber. The session is gone, so the
// binding is void: the endpoint reverts to Unbound and the client must
// handshake again against a live session.
func (e *Endpoint) SessionClosed() {
	if !e.unbind() {
		return
	}
	e.log.Info().Str("conn", e.id).Msg("session closed, endpoint unbound")
	e.sendError("Session closed")
}

// sendError reports a handshake failure over the wire. The connection
// stays open and Unbound.
func (e *Endpoint) sendError(reason string) {
	if err := e.transport.SendText(errorPrefix + reason); err != nil {
		e.log.Warn().Err(err).Str("conn", e.id).Msg("failed to send handshake error")
		e.Close()
	}
}

// Close moves the endpoint to Closed, detaches it from its session, and
// closes the transport. Safe to call more than once and from any
// goroutine; the transport's own close handler funnels here too.
func (e *Endpoint) Close() {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		session := e.session
		e.state = stateClosed
		e.identity = help.Identity{}
		e.session = nil
		e.mu.Unlock()

		close(e.done)
		if session != nil {
			session.Detach(e)
		}
		if err := e.transport.Close(); err != nil {
			e.log.Debug().Err(err).Str("conn", e.id).Msg("transport close")
		}
	})
}
