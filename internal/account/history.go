package account

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Append records a transaction at the head of the history. An empty ID is
// filled with a random one and Seq always comes from the account counter.
func (a *Account) Append(tx Transaction) Transaction {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}
	if tx.Status == "" {
		tx.Status = StatusCompleted
	}
	a.NextSeq++
	tx.Seq = a.NextSeq
	a.Transactions = append([]Transaction{tx}, a.Transactions...)
	return tx
}

// AppendIdempotent appends unless a transaction with the same ID already exists.
func (a *Account) AppendIdempotent(tx Transaction) (Transaction, error) {
	if tx.ID == "" {
		return Transaction{}, fmt.Errorf("idempotent append requires an id")
	}
	if existing, ok := a.FindTransaction(tx.ID); ok {
		return existing, ErrDuplicateExternalEvent
	}
	return a.Append(tx), nil
}

// HasTransaction reports whether an ID is already recorded.
func (a *Account) HasTransaction(id string) bool {
	_, ok := a.FindTransaction(id)
	return ok
}

// FindTransaction looks up a transaction by ID.
func (a *Account) FindTransaction(id string) (Transaction, bool) {
	for _, tx := range a.Transactions {
		if tx.ID == id {
			return tx, true
		}
	}
	return Transaction{}, false
}

// SetTransactionStatus moves a Pending transaction to Completed or Failed.
func (a *Account) SetTransactionStatus(id, status string) (Transaction, error) {
	switch status {
	case StatusCompleted, StatusFailed:
	default:
		return Transaction{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	for i := range a.Transactions {
		if a.Transactions[i].ID != id {
			continue
		}
		prev := a.Transactions[i]
		if prev.Status != StatusPending {
			return prev, fmt.Errorf("%w: %s is %s", ErrInvalidStatus, id, prev.Status)
		}
		a.Transactions[i].Status = status
		return prev, nil
	}
	return Transaction{}, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
}

// SortedHistory returns the history oldest first ordered by (Timestamp, Seq).
func (a *Account) SortedHistory() []Transaction {
	out := append([]Transaction(nil), a.Transactions...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}
