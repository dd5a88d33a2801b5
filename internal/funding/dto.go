package funding

import "github.com/shopspring/decimal"

// STKPushRequest starts a gateway deposit prompt.
type STKPushRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// WithdrawRequest asks for a KES payout.
type WithdrawRequest struct {
	Amount decimal.Decimal `json:"amount"`
	PIN    string          `json:"pin"`
}

// CallbackAck is the constant acknowledgement returned to the gateway.
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

var accepted = CallbackAck{ResultCode: 0, ResultDesc: "Accepted"}
