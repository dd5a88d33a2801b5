package referral

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/tujenge/tujenge/internal/account"
)

// LinkDownline appends newPhone to the Team, TeamL2 and TeamL3 lists of the
// three nearest ancestors starting at referredBy. It returns how many
// ancestors were linked; a missing ancestor ends the walk without error.
func (p *Propagator) LinkDownline(ctx context.Context, newPhone, referredBy string) (int, error) {
	visited := map[string]bool{newPhone: true}
	next := referredBy
	linked := 0
	for depth := 1; depth <= MaxDepth && next != ""; depth++ {
		if visited[next] {
			break
		}
		visited[next] = true
		updated, err := p.store.Update(ctx, next, func(acc *account.Account) error {
			list := teamAt(acc, depth)
			if !slices.Contains(*list, newPhone) {
				*list = append(*list, newPhone)
			}
			return nil
		})
		if err != nil {
			if depth > 1 && isNotFound(err) {
				break
			}
			return linked, fmt.Errorf("link depth %d to %s: %w", depth, next, err)
		}
		linked++
		next = updated.ReferredBy
	}
	return linked, nil
}

func teamAt(acc *account.Account, depth int) *[]string {
	switch depth {
	case 1:
		return &acc.Team
	case 2:
		return &acc.TeamL2
	default:
		return &acc.TeamL3
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, account.ErrNotFound)
}
