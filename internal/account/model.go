package account

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tujenge/tujenge/internal/money"
)

// Transaction statuses.
const (
	StatusPending   = "Pending"
	StatusCompleted = "Completed"
	StatusFailed    = "Failed"
)

// Transaction types recorded in the history.
const (
	TypeDeposit          = "Deposit"
	TypeWithdrawal       = "Withdrawal"
	TypeCryptoWithdrawal = "Crypto Withdrawal"
	TypeTransferOut      = "Transfer Sent"
	TypeTransferIn       = "Transfer Received"
	TypeTransferReversal = "Transfer Reversal"
	TypeConversion       = "Conversion"
	TypeCommission       = "Referral Commission"
	TypeSignupBonus      = "Referral Bonus"
	TypeMinerRental      = "Miner Rental"
	TypeMiningPayout     = "Mining Payout"
	TypeInvestment       = "Investment"
	TypeInvestmentPayout = "Investment Payout"
	TypeAdjustment       = "Admin Adjustment"
	TypeRefund           = "Refund"
)

// MaxNotifications bounds the per-account inbox; the oldest entries are evicted.
const MaxNotifications = 100

// Account is the per-user document keyed by phone.
type Account struct {
	Phone        string `json:"phone"`
	FullName     string `json:"fullName"`
	PasswordHash []byte `json:"passwordHash"`
	PINHash      []byte `json:"pinHash,omitempty"`

	Balances      map[money.Asset]decimal.Decimal `json:"balances"`
	LockedReserve decimal.Decimal                 `json:"lockedReserve"`
	IsActivated   bool                            `json:"isActivated"`

	Miners        []Miner        `json:"miners"`
	Investments   []Investment   `json:"activeInvestments"`
	Transactions  []Transaction  `json:"transactions"`
	Notifications []Notification `json:"notifications"`

	ReferredBy    string          `json:"referredBy,omitempty"`
	Team          []string        `json:"team"`
	TeamL2        []string        `json:"teamL2"`
	TeamL3        []string        `json:"teamL3"`
	ReferralBonus decimal.Decimal `json:"referralBonus"`

	NextSeq   int64     `json:"nextSeq"`
	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// Miner is a yield-generating asset paying a fixed KES amount per full day.
type Miner struct {
	ID         string          `json:"id"`
	Plan       string          `json:"plan"`
	DailyRate  decimal.Decimal `json:"dailyRate"`
	Price      decimal.Decimal `json:"price"`
	StartTime  time.Time       `json:"startTime"`
	LastCredit *time.Time      `json:"lastCredit,omitempty"`
}

// Investment is a fixed-term vault paying principal plus simple daily interest at EndTime.
type Investment struct {
	ID         string          `json:"id"`
	Plan       string          `json:"plan"`
	Asset      money.Asset     `json:"asset"`
	Principal  decimal.Decimal `json:"principal"`
	DailyRate  decimal.Decimal `json:"dailyRate"`
	TenureDays int             `json:"tenureDays"`
	StartTime  time.Time       `json:"startTime"`
	EndTime    time.Time       `json:"endTime"`
}

// Payout is principal + principal*dailyRate*tenure rounded to the asset scale.
func (i Investment) Payout() decimal.Decimal {
	interest := i.Principal.Mul(i.DailyRate).Mul(decimal.NewFromInt(int64(i.TenureDays)))
	return i.Asset.Round(i.Principal.Add(interest))
}

// Matured reports whether the vault's end time has elapsed.
func (i Investment) Matured(now time.Time) bool {
	return !now.Before(i.EndTime)
}

// Transaction is an immutable history record. Amount is signed.
type Transaction struct {
	ID        string          `json:"id"`
	Seq       int64           `json:"seq"`
	Type      string          `json:"type"`
	Asset     money.Asset     `json:"asset"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Detail    string          `json:"detail,omitempty"`
}

// Notification is an in-app inbox entry.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// New returns an unactivated account with zeroed balances.
func New(phone, fullName string, passwordHash []byte, now time.Time) Account {
	a := Account{
		Phone:        phone,
		FullName:     fullName,
		PasswordHash: passwordHash,
		Balances:     make(map[money.Asset]decimal.Decimal),
		CreatedAt:    now.UTC(),
	}
	for _, asset := range money.Assets() {
		a.Balances[asset] = decimal.Zero
	}
	return a
}

// Clone returns a deep copy so callers can mutate without aliasing the store.
func (a Account) Clone() Account {
	out := a
	out.PasswordHash = append([]byte(nil), a.PasswordHash...)
	if a.PINHash != nil {
		out.PINHash = append([]byte(nil), a.PINHash...)
	}
	out.Balances = make(map[money.Asset]decimal.Decimal, len(a.Balances))
	for k, v := range a.Balances {
		out.Balances[k] = v
	}
	out.Miners = make([]Miner, len(a.Miners))
	for i, m := range a.Miners {
		if m.LastCredit != nil {
			lc := *m.LastCredit
			m.LastCredit = &lc
		}
		out.Miners[i] = m
	}
	out.Investments = append([]Investment(nil), a.Investments...)
	out.Transactions = append([]Transaction(nil), a.Transactions...)
	out.Notifications = append([]Notification(nil), a.Notifications...)
	out.Team = append([]string(nil), a.Team...)
	out.TeamL2 = append([]string(nil), a.TeamL2...)
	out.TeamL3 = append([]string(nil), a.TeamL3...)
	return out
}

// Notify pushes an inbox entry at the head, evicting the oldest past MaxNotifications.
func (a *Account) Notify(n Notification) {
	a.Notifications = append([]Notification{n}, a.Notifications...)
	if len(a.Notifications) > MaxNotifications {
		a.Notifications = a.Notifications[:MaxNotifications]
	}
}

// MarkNotificationsRead flags every inbox entry as read and returns how many changed.
func (a *Account) MarkNotificationsRead() int {
	changed := 0
	for i := range a.Notifications {
		if !a.Notifications[i].Read {
			a.Notifications[i].Read = true
			changed++
		}
	}
	return changed
}
