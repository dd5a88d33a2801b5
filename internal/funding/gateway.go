package funding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/tujenge/tujenge/internal/account"
)

// ErrUpstreamGateway means the payment gateway could not accept a request.
// Callers may retry.
var ErrUpstreamGateway = errors.New("payment gateway unavailable")

// STKRequest asks the gateway to prompt a payer for a deposit.
type STKRequest struct {
	Phone     string
	Amount    decimal.Decimal
	Reference string
}

// STKResponse only acknowledges that the prompt was sent. Completion arrives
// later through the callback.
type STKResponse struct {
	Reference string `json:"reference"`
	Message   string `json:"message"`
}

// Gateway is the outbound side of the mobile-money integration.
type Gateway interface {
	InitiateSTKPush(ctx context.Context, req STKRequest) (STKResponse, error)
}

// GatewayConfig configures HTTPGateway.
type GatewayConfig struct {
	URL         string
	APIKey      string
	CallbackURL string
	Timeout     time.Duration
	PerSecond   float64
}

// HTTPGateway posts STK push requests as JSON.
type HTTPGateway struct {
	cfg        GatewayConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewHTTPGateway constructs a gateway client with a bounded timeout and an
// outbound rate limit.
func NewHTTPGateway(cfg GatewayConfig) *HTTPGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.PerSecond <= 0 {
		cfg.PerSecond = 10
	}
	return &HTTPGateway{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.PerSecond), int(cfg.PerSecond)),
	}
}

type stkPayload struct {
	APIKey      string `json:"api_key"`
	Phone       string `json:"phone"`
	Amount      string `json:"amount"`
	CallbackURL string `json:"callback_url"`
	Description string `json:"description"`
	Reference   string `json:"reference"`
}

// InitiateSTKPush sends the prompt request. Any transport failure or non-2xx
// answer is reported as ErrUpstreamGateway.
func (g *HTTPGateway) InitiateSTKPush(ctx context.Context, req STKRequest) (STKResponse, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return STKResponse{}, fmt.Errorf("%w: %v", ErrUpstreamGateway, err)
	}

	body, err := json.Marshal(stkPayload{
		APIKey:      g.cfg.APIKey,
		Phone:       account.InternationalPhone(req.Phone),
		Amount:      req.Amount.Truncate(0).String(),
		CallbackURL: g.cfg.CallbackURL,
		Description: "Account deposit",
		Reference:   req.Reference,
	})
	if err != nil {
		return STKResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return STKResponse{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return STKResponse{}, fmt.Errorf("%w: %v", ErrUpstreamGateway, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return STKResponse{}, fmt.Errorf("%w: read response: %v", ErrUpstreamGateway, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return STKResponse{}, fmt.Errorf("%w: %s - %s", ErrUpstreamGateway, resp.Status, string(respBody))
	}

	out := STKResponse{Reference: req.Reference}
	if len(respBody) > 0 {
		_ = json.Unmarshal(respBody, &out)
	}
	if out.Reference == "" {
		out.Reference = req.Reference
	}
	return out, nil
}
