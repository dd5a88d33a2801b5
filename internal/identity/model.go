package identity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tujenge/tujenge/internal/account"
	"github.com/tujenge/tujenge/internal/money"
)

// Profile is the account view returned to its owner. Secrets are never included.
type Profile struct {
	Phone         string                          `json:"phone"`
	FullName      string                          `json:"fullName"`
	Balances      map[money.Asset]decimal.Decimal `json:"balances"`
	LockedReserve decimal.Decimal                 `json:"lockedReserve"`
	Spendable     decimal.Decimal                 `json:"spendable"`
	IsActivated   bool                            `json:"isActivated"`
	HasPIN        bool                            `json:"hasPin"`
	Miners        []account.Miner                 `json:"miners"`
	Investments   []account.Investment            `json:"activeInvestments"`
	Transactions  []account.Transaction           `json:"transactions"`
	Notifications []account.Notification          `json:"notifications"`
	Unread        int                             `json:"unread"`
	ReferredBy    string                          `json:"referredBy,omitempty"`
	Team          []string                        `json:"team"`
	TeamL2        []string                        `json:"teamL2"`
	TeamL3        []string                        `json:"teamL3"`
	ReferralBonus decimal.Decimal                 `json:"referralBonus"`
	CreatedAt     time.Time                       `json:"createdAt"`
}

// NewProfile projects an account into its owner view with history newest first.
func NewProfile(acc account.Account) Profile {
	history := acc.SortedHistory()
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	unread := 0
	for _, n := range acc.Notifications {
		if !n.Read {
			unread++
		}
	}
	return Profile{
		Phone:         acc.Phone,
		FullName:      acc.FullName,
		Balances:      acc.Balances,
		LockedReserve: acc.LockedReserve,
		Spendable:     acc.Spendable(money.Primary),
		IsActivated:   acc.IsActivated,
		HasPIN:        len(acc.PINHash) > 0,
		Miners:        acc.Miners,
		Investments:   acc.Investments,
		Transactions:  history,
		Notifications: acc.Notifications,
		Unread:        unread,
		ReferredBy:    acc.ReferredBy,
		Team:          acc.Team,
		TeamL2:        acc.TeamL2,
		TeamL3:        acc.TeamL3,
		ReferralBonus: acc.ReferralBonus,
		CreatedAt:     acc.CreatedAt,
	}
}
