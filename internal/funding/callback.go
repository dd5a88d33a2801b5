package funding

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/tujenge/tujenge/internal/account"
	"github.com/tujenge/tujenge/internal/money"
)

var (
	// ErrUnparseablePayload means a required callback field is missing or malformed.
	ErrUnparseablePayload = errors.New("unparseable callback payload")
	// ErrPaymentFailed means the gateway reported a non-zero result code.
	ErrPaymentFailed = errors.New("payment failed at gateway")
)

// Callback is the normalised form of a gateway payment confirmation.
type Callback struct {
	ResultCode int
	ResultDesc string
	Amount     decimal.Decimal
	Receipt    string
	Phone      string
}

// Alias tables. The first present path wins. Paths ending in "#" query STK
// push CallbackMetadata items by Name.
var (
	resultCodePaths = []string{
		"ResultCode",
		"resultCode",
		"result_code",
		"Body.stkCallback.ResultCode",
		"data.ResultCode",
		"status",
		"data.status",
	}
	resultDescPaths = []string{
		"ResultDesc",
		"resultDesc",
		"result_desc",
		"Body.stkCallback.ResultDesc",
		"message",
	}
	amountPaths = []string{
		"Amount",
		"amount",
		"TransAmount",
		"value",
		"data.amount",
		`Body.stkCallback.CallbackMetadata.Item.#(Name=="Amount").Value`,
	}
	receiptPaths = []string{
		"MpesaReceiptNumber",
		"TransID",
		"transaction_id",
		"transactionId",
		"receipt",
		"reference",
		"data.transaction_id",
		`Body.stkCallback.CallbackMetadata.Item.#(Name=="MpesaReceiptNumber").Value`,
	}
	phonePaths = []string{
		"PhoneNumber",
		"MSISDN",
		"phone",
		"msisdn",
		"phone_number",
		"data.phone",
		`Body.stkCallback.CallbackMetadata.Item.#(Name=="PhoneNumber").Value`,
	}
)

var successStatuses = map[string]bool{
	"0":          true,
	"success":    true,
	"successful": true,
	"completed":  true,
	"paid":       true,
	"true":       true,
}

// ParseCallback normalises a gateway confirmation. It fails closed: any
// missing or malformed required field yields ErrUnparseablePayload, and a
// non-zero result code yields ErrPaymentFailed together with the parsed
// fields. A payload without any result code counts as successful.
func ParseCallback(body []byte) (Callback, error) {
	if !gjson.ValidBytes(body) {
		return Callback{}, fmt.Errorf("%w: invalid json", ErrUnparseablePayload)
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return Callback{}, fmt.Errorf("%w: not an object", ErrUnparseablePayload)
	}

	var cb Callback
	if v, ok := first(doc, resultCodePaths); ok {
		cb.ResultCode = resultCode(v)
	}
	if v, ok := first(doc, resultDescPaths); ok {
		cb.ResultDesc = v.String()
	}

	amount, ok := first(doc, amountPaths)
	if !ok {
		return cb, fmt.Errorf("%w: amount missing", ErrUnparseablePayload)
	}
	parsed, err := money.ParseAmount(amount.String())
	if err != nil {
		return cb, fmt.Errorf("%w: amount %q", ErrUnparseablePayload, amount.String())
	}
	cb.Amount = money.Primary.Round(parsed)

	receipt, ok := first(doc, receiptPaths)
	if !ok || strings.TrimSpace(receipt.String()) == "" {
		return cb, fmt.Errorf("%w: receipt missing", ErrUnparseablePayload)
	}
	cb.Receipt = strings.TrimSpace(receipt.String())

	phone, ok := first(doc, phonePaths)
	if !ok {
		return cb, fmt.Errorf("%w: phone missing", ErrUnparseablePayload)
	}
	cb.Phone = account.NormalizePhone(phone.String())
	if cb.Phone == "" {
		return cb, fmt.Errorf("%w: phone %q", ErrUnparseablePayload, phone.String())
	}

	if cb.ResultCode != 0 {
		return cb, fmt.Errorf("%w: code %d %s", ErrPaymentFailed, cb.ResultCode, cb.ResultDesc)
	}
	return cb, nil
}

func first(doc gjson.Result, paths []string) (gjson.Result, bool) {
	for _, p := range paths {
		if v := doc.Get(p); v.Exists() && v.Type != gjson.Null {
			return v, true
		}
	}
	return gjson.Result{}, false
}

func resultCode(v gjson.Result) int {
	switch v.Type {
	case gjson.Number:
		return int(v.Int())
	case gjson.True:
		return 0
	case gjson.False:
		return 1
	}
	if successStatuses[strings.ToLower(strings.TrimSpace(v.String()))] {
		return 0
	}
	return 1
}
