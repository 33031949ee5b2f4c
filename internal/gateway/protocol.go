package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tutorhall/livehelp/internal/help"
)

// Wire protocol markers. All frames are text. The first message a client
// sends must be the handshake; the server replies to a failed handshake
// with "SessionError:<reason>" and leaves the connection open for a retry.
const (
	handshakePrefix = "Session:"
	chatPrefix      = "Chat:"
	notePrefix      = "Note:"
	byeMessage      = "Bye"
	errorPrefix     = "SessionError:"
)

var errMalformedHandshake = errors.New("malformed handshake")

// parseHandshake splits the handshake body "<loginSessionId>&<helpSessionId>".
func parseHandshake(body string) (loginSession, helpSession string, err error) {
	login, session, ok := strings.Cut(body, "&")
	if !ok || login == "" || session == "" {
		return "", "", errMalformedHandshake
	}
	return login, session, nil
}

// chatPayload is the JSON body of a "Chat:" frame.
type chatPayload struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// parseChatPayload decodes and validates a chat frame body. The post kind
// must be one of the one-letter codes T, M, H, or I.
func parseChatPayload(body string) (chatPayload, error) {
	var p chatPayload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return p, fmt.Errorf("parsing chat payload: %w", err)
	}
	if p.ID == "" {
		return p, errors.New("chat payload missing id")
	}
	if !help.PostKind(p.Type).Valid() {
		return p, fmt.Errorf("chat payload has unknown type %q", p.Type)
	}
	return p, nil
}

// notePayload is the JSON body of a "Note:" frame.
type notePayload struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// parseNotePayload decodes and validates a staff note frame body.
func parseNotePayload(body string) (notePayload, error) {
	var p notePayload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return p, fmt.Errorf("parsing note payload: %w", err)
	}
	if p.ID == "" {
		return p, errors.New("note payload missing id")
	}
	return p, nil
}

// encodeEnvelope serializes an envelope for the wire.
func encodeEnvelope(env help.Envelope) (string, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
