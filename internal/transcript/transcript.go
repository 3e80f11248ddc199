// Package transcript holds the ordered collection of messages that forms a
// conversation and enforces the message lifecycle: a message may change only
// while it is loading and becomes immutable once completed.
package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/tidwall/gjson"

	app_errors "github.com/anirudh9911/AI-Chatbot/internal/errors"
	"github.com/anirudh9911/AI-Chatbot/internal/model"
)

var (
	// ErrDuplicateID is returned when a message id is already used in the transcript.
	ErrDuplicateID = fmt.Errorf("%w: duplicate message id", app_errors.ErrConflict)
	// ErrFinalized is returned when a completed message is modified.
	ErrFinalized = fmt.Errorf("%w: message is finalized", app_errors.ErrConflict)
	// ErrNotFound is returned for an unknown message id.
	ErrNotFound = fmt.Errorf("%w: message", app_errors.ErrNotFound)
)

// Transcript is safe for concurrent use. Messages are stored and returned as
// deep copies so callers never share search info with the transcript.
type Transcript struct {
	mu       sync.RWMutex
	messages []model.Message
	index    map[int64]int
	lastID   int64
}

// New builds a transcript from existing messages, keeping their order and
// their ids exactly as given. Ids must be unique.
func New(msgs ...model.Message) (*Transcript, error) {
	t := &Transcript{index: make(map[int64]int, len(msgs))}
	for _, m := range msgs {
		if _, err := t.insert(m); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Append adds m at the end. A zero id is replaced by the next free id.
func (t *Transcript) Append(m model.Message) (model.Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if m.ID == 0 {
		m.ID = t.lastID + 1
	}
	return t.insert(m)
}

func (t *Transcript) insert(m model.Message) (model.Message, error) {
	if _, ok := t.index[m.ID]; ok {
		return model.Message{}, fmt.Errorf("%w: %d", ErrDuplicateID, m.ID)
	}
	if m.ID > t.lastID {
		t.lastID = m.ID
	}
	t.index[m.ID] = len(t.messages)
	t.messages = append(t.messages, m.Clone())
	return m.Clone(), nil
}

// Update applies fn to a loading message and returns the result. The id can
// not be changed by fn.
func (t *Transcript) Update(id int64, fn func(*model.Message)) (model.Message, error) {
	return t.mutate(id, fn, false)
}

// Complete applies fn to a loading message and then marks it as no longer
// loading. Further updates are rejected with ErrFinalized.
func (t *Transcript) Complete(id int64, fn func(*model.Message)) (model.Message, error) {
	return t.mutate(id, fn, true)
}

func (t *Transcript) mutate(id int64, fn func(*model.Message), complete bool) (model.Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.index[id]
	if !ok {
		return model.Message{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if !t.messages[i].Loading() {
		return model.Message{}, fmt.Errorf("%w: %d", ErrFinalized, id)
	}

	m := t.messages[i].Clone()
	if fn != nil {
		fn(&m)
	}
	m.ID = id
	if complete {
		m.IsLoading = model.Bool(false)
	}
	t.messages[i] = m
	return m.Clone(), nil
}

// Get returns a copy of the message with the given id.
func (t *Transcript) Get(id int64) (model.Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.index[id]
	if !ok {
		return model.Message{}, false
	}
	return t.messages[i].Clone(), true
}

// Messages returns copies of all messages in order.
func (t *Transcript) Messages() []model.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.Message, len(t.messages))
	for i, m := range t.messages {
		out[i] = m.Clone()
	}
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Remove deletes the message with the given id.
func (t *Transcript) Remove(id int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.index[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	t.messages = append(t.messages[:i], t.messages[i+1:]...)
	t.reindex()
	return nil
}

// Clear removes every message. Ids assigned by Append keep counting from the
// highest id this transcript has seen.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
	t.index = make(map[int64]int)
}

func (t *Transcript) reindex() {
	t.index = make(map[int64]int, len(t.messages))
	for i, m := range t.messages {
		t.index[m.ID] = i
	}
}

// MarshalJSON writes the transcript as a JSON array of messages.
func (t *Transcript) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Messages())
}

// Decode parses a JSON array of messages. Every element is schema-checked and
// validated; problems are reported with the element index as path prefix.
func Decode(data []byte) (*Transcript, error) {
	if !gjson.ValidBytes(data) {
		return nil, &model.SchemaError{Problems: []model.FieldProblem{{Path: "$", Problem: "invalid JSON"}}}
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, &model.SchemaError{Problems: []model.FieldProblem{{Path: "$", Problem: "must be an array"}}}
	}

	var problems []model.FieldProblem
	msgs := make([]model.Message, 0, len(root.Array()))
	for i, elem := range root.Array() {
		msg, err := model.DecodeMessage([]byte(elem.Raw))
		if err != nil {
			var schemaErr *model.SchemaError
			if errors.As(err, &schemaErr) {
				problems = append(problems, schemaErr.WithPrefix(strconv.Itoa(i)).Problems...)
				continue
			}
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		msgs = append(msgs, *msg)
	}
	if len(problems) > 0 {
		return nil, &model.SchemaError{Problems: problems}
	}

	return New(msgs...)
}
