package help

import "time"

// PostKind is the content type of a chat post.
type PostKind string

// Chat post content kinds, matching the one-letter wire codes.
const (
	KindText  PostKind = "T"
	KindMath  PostKind = "M"
	KindHTML  PostKind = "H"
	KindImage PostKind = "I"
)

// Valid reports whether k is a known post kind.
func (k PostKind) Valid() bool {
	switch k {
	case KindText, KindMath, KindHTML, KindImage:
		return true
	}
	return false
}

// ChatPost is one entry in a session's chat log, visible to every
// participant. Posts are immutable once appended.
type ChatPost struct {
	ID          string    `json:"id"`
	When        time.Time `json:"when"`
	Kind        PostKind  `json:"type"`
	FromStudent bool      `json:"fromStudent"`
	Author      Identity  `json:"author"`
	Content     string    `json:"content"`
}

// StudentNote is one entry in a session's note log, visible only to
// staff-capable identities. Notes are immutable once appended.
type StudentNote struct {
	ID      string    `json:"id"`
	When    time.Time `json:"when"`
	Author  Identity  `json:"author"`
	Content string    `json:"content"` // HTML
}

// Envelope is an immutable batch of deltas pushed to attached endpoints.
// Snapshot marks a full-state envelope sent on attach; otherwise the
// envelope carries incremental additions.
type Envelope struct {
	Snapshot bool          `json:"snapshot,omitempty"`
	Chat     []ChatPost    `json:"chat,omitempty"`
	Notes    []StudentNote `json:"notes,omitempty"`
}
