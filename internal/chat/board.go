// Package chat keeps the community chat history as a bounded, oldest-first
// evicting list.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxTextLength caps a single chat message in runes.
const MaxTextLength = 500

// ErrEmptyMessage is returned for blank posts.
var ErrEmptyMessage = errors.New("message is empty")

// Message is one chat entry.
type Message struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Board stores the most recent messages up to a fixed capacity.
type Board interface {
	Append(ctx context.Context, m Message) error
	// Recent returns up to n messages, oldest first.
	Recent(ctx context.Context, n int) ([]Message, error)
}

// NewMessage validates and normalises a post.
func NewMessage(phone, name, text string, now time.Time) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		text = string([]rune(text)[:MaxTextLength])
	}
	return Message{
		ID:        uuid.NewString(),
		Phone:     phone,
		Name:      name,
		Text:      text,
		Timestamp: now.UTC(),
	}, nil
}

// MemoryBoard is a ring buffer used in development and tests.
type MemoryBoard struct {
	mu    sync.Mutex
	buf   []Message
	start int
	size  int
}

// NewMemoryBoard creates a ring holding at most capacity messages.
func NewMemoryBoard(capacity int) *MemoryBoard {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryBoard{buf: make([]Message, capacity)}
}

func (b *MemoryBoard) Append(_ context.Context, m Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.size < len(b.buf) {
		b.buf[(b.start+b.size)%len(b.buf)] = m
		b.size++
		return nil
	}
	b.buf[b.start] = m
	b.start = (b.start + 1) % len(b.buf)
	return nil
}

func (b *MemoryBoard) Recent(_ context.Context, n int) ([]Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 || n > b.size {
		n = b.size
	}
	out := make([]Message, 0, n)
	for i := b.size - n; i < b.size; i++ {
		out = append(out, b.buf[(b.start+i)%len(b.buf)])
	}
	return out, nil
}
