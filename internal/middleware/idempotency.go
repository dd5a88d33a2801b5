package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "idempotency:v1:"
	inProgressMarker     = "__in_progress__"
	replayCacheTimeout   = 2 * time.Second
)

var errInProgress = errors.New("request in progress")

type replayedResponse struct {
	Status  int               `json:"status"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers"`
}

// IdempotencyCacheKey scopes a client key to one account so two holders
// reusing the same key never see each other's responses.
func IdempotencyCacheKey(phone, key string) string {
	if phone == "" {
		return idempotencyPrefix + key
	}
	return idempotencyPrefix + phone + ":" + key
}

// replayCache keeps one response per cache key. A key is first reserved with
// inProgressMarker and then overwritten with the finished response.
type replayCache struct {
	client *redis.Client
	ttl    time.Duration
}

// lookup returns the stored response, errInProgress for a reserved key, or
// redis.Nil when the key is unknown.
func (r replayCache) lookup(key string) (replayedResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), replayCacheTimeout)
	defer cancel()

	raw, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return replayedResponse{}, err
	}
	if raw == inProgressMarker {
		return replayedResponse{}, errInProgress
	}
	var resp replayedResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return replayedResponse{}, err
	}
	return resp, nil
}

func (r replayCache) reserve(key string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), replayCacheTimeout)
	defer cancel()
	return r.client.SetNX(ctx, key, inProgressMarker, r.ttl).Result()
}

func (r replayCache) release(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), replayCacheTimeout)
	defer cancel()
	r.client.Del(ctx, key)
}

func (r replayCache) save(key string, resp replayedResponse) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), replayCacheTimeout)
	defer cancel()
	return r.client.Set(ctx, key, payload, r.ttl).Err()
}

func captureResponse(c *fiber.Ctx) replayedResponse {
	resp := replayedResponse{
		Status:  c.Response().StatusCode(),
		Body:    string(c.Response().Body()),
		Headers: map[string]string{},
	}
	c.Response().Header.VisitAll(func(k, v []byte) {
		resp.Headers[string(k)] = string(v)
	})
	return resp
}

func replay(c *fiber.Ctx, resp replayedResponse) error {
	for header, value := range resp.Headers {
		if strings.EqualFold(header, fiber.HeaderContentLength) {
			continue
		}
		c.Set(header, value)
	}
	return c.Status(resp.Status).SendString(resp.Body)
}

// Idempotency replays the first response to every unsafe request carrying
// the same Idempotency-Key for the same account. Requests that fail with an
// error or a 5xx release the key so the client can retry. Without a cache it
// passes requests through.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	store := replayCache{client: cache, ttl: ttl}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		switch strings.ToUpper(c.Method()) {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		clientKey := c.Get(idempotencyKeyHeader)
		if clientKey == "" {
			return fiber.NewError(fiber.StatusBadRequest, "missing Idempotency-Key header")
		}
		phone, _ := c.Locals(LocalPhone).(string)
		key := IdempotencyCacheKey(phone, clientKey)

		stored, err := store.lookup(key)
		switch {
		case err == nil:
			return replay(c, stored)
		case errors.Is(err, errInProgress):
			return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
		case !errors.Is(err, redis.Nil):
			logger.Error("idempotency lookup failed", "key", key, "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
		}

		reserved, err := store.reserve(key)
		if err != nil {
			logger.Error("idempotency reservation failed", "key", key, "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency reservation failure")
		}
		if !reserved {
			return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
		}

		if err := c.Next(); err != nil {
			store.release(key)
			return err
		}
		resp := captureResponse(c)
		if resp.Status >= fiber.StatusInternalServerError {
			store.release(key)
			return nil
		}
		if err := store.save(key, resp); err != nil {
			logger.Error("failed to persist idempotent response", "key", key, "error", err)
			store.release(key)
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency persistence failure")
		}
		return nil
	}
}
