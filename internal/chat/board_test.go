package chat

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func fill(t *testing.T, b Board, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		m, err := NewMessage("0700000001", "Amina", fmt.Sprintf("msg-%d", i), time.Now())
		if err != nil {
			t.Fatalf("new message: %v", err)
		}
		if err := b.Append(context.Background(), m); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
}

func checkEviction(t *testing.T, b Board) {
	t.Helper()
	fill(t, b, 7)
	got, err := b.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(got))
	}
	if got[0].Text != "msg-2" || got[4].Text != "msg-6" {
		t.Fatalf("expected oldest-first msg-2..msg-6, got %s..%s", got[0].Text, got[4].Text)
	}
	last, _ := b.Recent(context.Background(), 2)
	if len(last) != 2 || last[1].Text != "msg-6" {
		t.Fatalf("unexpected tail %+v", last)
	}
}

func TestMemoryBoardEvictsOldest(t *testing.T) {
	checkEviction(t, NewMemoryBoard(5))
}

func TestRedisBoardEvictsOldest(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	checkEviction(t, NewRedisBoard(client, 5))
}

func TestNewMessageValidation(t *testing.T) {
	if _, err := NewMessage("p", "n", "   ", time.Now()); err != ErrEmptyMessage {
		t.Fatalf("expected empty message error, got %v", err)
	}
	m, err := NewMessage("p", "n", strings.Repeat("a", MaxTextLength+10), time.Now())
	if err != nil || len(m.Text) != MaxTextLength {
		t.Fatalf("expected truncation, got len=%d err=%v", len(m.Text), err)
	}
}
