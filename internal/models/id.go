package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ID identifies a reminder or dog. It is either assigned by the remote store
// or pending: a local token that exists until creation succeeds. The zero
// value is neither and means "unset".
type ID struct {
	assigned int64
	pending  uuid.UUID
}

// Assigned wraps a server-issued id.
func Assigned(n int64) ID { return ID{assigned: n} }

// NewPending returns a fresh local placeholder.
func NewPending() ID { return ID{pending: uuid.New()} }

// Pending wraps an existing local token.
func Pending(token uuid.UUID) ID { return ID{pending: token} }

func (id ID) IsPending() bool { return id.pending != uuid.Nil }

func (id ID) IsZero() bool { return id == ID{} }

// Value returns the server id and whether there is one.
func (id ID) Value() (int64, bool) {
	if id.IsPending() || id.IsZero() {
		return 0, false
	}
	return id.assigned, true
}

// Token returns the local placeholder token, or uuid.Nil for assigned ids.
func (id ID) Token() uuid.UUID { return id.pending }

func (id ID) String() string {
	switch {
	case id.IsPending():
		return "pending:" + id.pending.String()
	case id.IsZero():
		return "unset"
	default:
		return strconv.FormatInt(id.assigned, 10)
	}
}

// Short is used in listings.
func (id ID) Short() string {
	if id.IsPending() {
		return "~" + id.pending.String()[:8]
	}
	return id.String()
}

// Compare orders assigned ids numerically before pending ids.
func (id ID) Compare(o ID) int {
	switch {
	case id.IsPending() != o.IsPending():
		if id.IsPending() {
			return 1
		}
		return -1
	case id.IsPending():
		return strings.Compare(id.pending.String(), o.pending.String())
	case id.assigned < o.assigned:
		return -1
	case id.assigned > o.assigned:
		return 1
	}
	return 0
}

// ParseID accepts a decimal server id, a bare uuid, or the "pending:" form.
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n <= 0 {
			return ID{}, fmt.Errorf("invalid id %q: must be positive", s)
		}
		return Assigned(n), nil
	}
	token, err := uuid.Parse(strings.TrimPrefix(s, "pending:"))
	if err != nil {
		return ID{}, fmt.Errorf("invalid id %q", s)
	}
	return Pending(token), nil
}

// MarshalJSON encodes assigned ids as numbers and pending ids as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsPending() {
		return json.Marshal(id.pending.String())
	}
	return json.Marshal(id.assigned)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		token, err := uuid.Parse(s)
		if err != nil {
			return fmt.Errorf("invalid pending id %q: %w", s, err)
		}
		*id = Pending(token)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id: %w", err)
	}
	*id = Assigned(n)
	return nil
}
