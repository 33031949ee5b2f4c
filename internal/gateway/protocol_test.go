package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tutorhall/livehelp/internal/help"
)

func TestParseHandshake(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		login   string
		session string
		wantErr bool
	}{
		{name: "valid", body: "tok123&ABCD1234ABCD1234", login: "tok123", session: "ABCD1234ABCD1234"},
		{name: "splits at first ampersand", body: "tok&A&B", login: "tok", session: "A&B"},
		{name: "missing separator", body: "tok123", wantErr: true},
		{name: "empty login", body: "&ABCD1234ABCD1234", wantErr: true},
		{name: "empty session", body: "tok123&", wantErr: true},
		{name: "empty body", body: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			login, session, err := parseHandshake(tt.body)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.login, login)
			assert.Equal(t, tt.session, session)
		})
	}
}

func TestParseChatPayload(t *testing.T) {
	p, err := parseChatPayload(`{"id":"p1","type":"M","content":"\\frac{1}{2}"}`)
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "M", p.Type)

	for name, body := range map[string]string{
		"not json":     `{oops`,
		"missing id":   `{"type":"T","content":"x"}`,
		"unknown kind": `{"id":"p1","type":"Z","content":"x"}`,
		"empty kind":   `{"id":"p1","content":"x"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseChatPayload(body)
			assert.Error(t, err)
		})
	}
}

func TestParseNotePayload(t *testing.T) {
	p, err := parseNotePayload(`{"id":"n1","content":"<p>ok</p>"}`)
	require.NoError(t, err)
	assert.Equal(t, "n1", p.ID)

	_, err = parseNotePayload(`{"content":"no id"}`)
	assert.Error(t, err)
}

func TestEncodeEnvelope(t *testing.T) {
	env := help.Envelope{
		Snapshot: true,
		Chat: []help.ChatPost{{
			ID:      "p1",
			When:    time.Now(),
			Kind:    help.KindText,
			Author:  help.Identity{ID: "stu-1", Name: "Avery", Role: help.RoleStudent},
			Content: "hello",
		}},
	}

	text, err := encodeEnvelope(env)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &decoded))
	assert.Equal(t, true, decoded["snapshot"])
	assert.NotContains(t, decoded, "notes", "empty note list is omitted")
}

func TestEncodeEnvelopeOmitsEmptyFields(t *testing.T) {
	text, err := encodeEnvelope(help.Envelope{Notes: []help.StudentNote{{ID: "n1"}}})
	require.NoError(t, err)
	assert.NotContains(t, text, `"snapshot"`)
	assert.NotContains(t, text, `"chat"`)
	assert.Contains(t, text, `"id":"n1"`)
}
