package server

import (
	"context"
	"errors"
	"mime"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/mugendi/ttl-file-cache/internal/cache"
	"github.com/mugendi/ttl-file-cache/internal/logging"
)

const (
	headerDataType = "X-Cache-Data-Type"
	headerTTL      = "X-Cache-TTL"
	headerExpires  = "X-Cache-Expires"
)

type cacheHandler struct {
	cache         CacheService
	logger        *logrus.Logger
	refreshOnList bool
}

// entryPayload 是 /-/entries 返回的条目元信息，不包含数据本身。
type entryPayload struct {
	Key        string `json:"key"`
	DataType   string `json:"data_type"`
	TTLSeconds int64  `json:"ttl"`
	Expires    int64  `json:"expires"`
	Size       int    `json:"size"`
}

type touchPayload struct {
	ExpiresAfter int64 `json:"expires_after"`
	ExpiresAt    int64 `json:"expires_at"`
}

func (h *cacheHandler) get(c fiber.Ctx) error {
	key, err := keyParam(c)
	if err != nil {
		return renderError(c, fiber.StatusBadRequest, "invalid_key")
	}
	extend, _ := strconv.ParseBool(c.Query("extend"))

	entry, err := h.cache.Get(requestContext(c), key, cache.GetOptions{Extend: extend})
	if err != nil {
		return h.renderCacheError(c, "get", key, err)
	}

	c.Set(headerDataType, string(entry.DataType))
	c.Set(headerTTL, strconv.FormatInt(int64(entry.TTL/time.Second), 10))
	c.Set(headerExpires, strconv.FormatInt(entry.Expires, 10))
	c.Set(fiber.HeaderContentType, contentTypeFor(entry.DataType))
	return c.Send(entry.Data)
}

func (h *cacheHandler) set(c fiber.Ctx) error {
	key, err := keyParam(c)
	if err != nil {
		return renderError(c, fiber.StatusBadRequest, "invalid_key")
	}
	ttl, err := parseTTL(c.Query("ttl"))
	if err != nil {
		return renderError(c, fiber.StatusBadRequest, "invalid_ttl")
	}
	value, err := valueFromBody(c.Get(fiber.HeaderContentType), c.Body())
	if err != nil {
		return h.renderCacheError(c, "set", key, err)
	}

	if err := h.cache.Set(requestContext(c), key, value, ttl); err != nil {
		return h.renderCacheError(c, "set", key, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *cacheHandler) touch(c fiber.Ctx) error {
	key, err := keyParam(c)
	if err != nil {
		return renderError(c, fiber.StatusBadRequest, "invalid_key")
	}
	ttl, err := parseTTL(c.Query("ttl"))
	if err != nil || ttl == cache.NoExpiration {
		return renderError(c, fiber.StatusBadRequest, "invalid_ttl")
	}

	result, err := h.cache.Touch(requestContext(c), key, ttl)
	if err != nil {
		return h.renderCacheError(c, "touch", key, err)
	}
	return c.JSON(touchPayload{
		ExpiresAfter: int64(result.ExpiresAfter / time.Second),
		ExpiresAt:    result.ExpiresAt.Unix(),
	})
}

func (h *cacheHandler) remove(c fiber.Ctx) error {
	key, err := keyParam(c)
	if err != nil {
		return renderError(c, fiber.StatusBadRequest, "invalid_key")
	}
	if err := h.cache.Delete(requestContext(c), key); err != nil {
		return h.renderCacheError(c, "delete", key, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *cacheHandler) list(c fiber.Ctx) error {
	refresh := h.refreshOnList
	if raw := c.Query("refresh"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return renderError(c, fiber.StatusBadRequest, "invalid_refresh")
		}
		refresh = parsed
	}

	entries, err := h.cache.List(requestContext(c), cache.ListOptions{RefreshIndex: refresh})
	if err != nil {
		h.logger.WithFields(logging.CacheFields("list", "", false)).
			WithError(err).Warn("cache_list_partial")
	}
	payload := make([]entryPayload, 0, len(entries))
	for _, entry := range entries {
		payload = append(payload, entryPayload{
			Key:        entry.Key,
			DataType:   string(entry.DataType),
			TTLSeconds: int64(entry.TTL / time.Second),
			Expires:    entry.Expires,
			Size:       len(entry.Data),
		})
	}
	return c.JSON(fiber.Map{"entries": payload})
}

func (h *cacheHandler) clear(c fiber.Ctx) error {
	removed, err := h.cache.Clear(requestContext(c))
	if err != nil {
		h.logger.WithFields(logging.CacheFields("clear", "", false)).
			WithError(err).Error("cache_clear_failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "clear_failed",
			"removed": removed,
		})
	}
	return c.JSON(fiber.Map{"removed": removed})
}

func (h *cacheHandler) renderCacheError(c fiber.Ctx, op, key string, err error) error {
	switch {
	case errors.Is(err, cache.ErrNotFound):
		return renderError(c, fiber.StatusNotFound, "not_found")
	case errors.Is(err, cache.ErrNoExpiry):
		return renderError(c, fiber.StatusConflict, "no_expiry")
	case errors.Is(err, cache.ErrInvalidArgument):
		return renderError(c, fiber.StatusBadRequest, "invalid_argument")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return renderError(c, fiber.StatusServiceUnavailable, "request_cancelled")
	}
	h.logger.WithFields(logging.CacheFields(op, key, false)).
		WithField("request_id", RequestID(c)).
		WithError(err).Error("cache_operation_failed")
	return renderError(c, fiber.StatusInternalServerError, "internal_error")
}

func renderError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}

// keyParam 取出通配段并做一次路径解码，键中允许出现 "/"。
func keyParam(c fiber.Ctx) (string, error) {
	return url.PathUnescape(c.Params("*"))
}

// parseTTL 接受 Go duration（"90s"、"1h"）或纯秒数；空串表示使用默认 TTL，
// "forever" 或 "-1" 表示永不过期。
func parseTTL(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	switch raw {
	case "":
		return 0, nil
	case "forever", "-1":
		return cache.NoExpiration, nil
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if secs < 0 {
			return 0, errors.New("negative ttl")
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.New("negative ttl")
	}
	return d, nil
}

// valueFromBody 按 Content-Type 决定值的类型：JSON 保留结构，text/* 作为文本，其余为原始字节。
func valueFromBody(contentType string, body []byte) (cache.Value, error) {
	data := append([]byte(nil), body...)
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return cache.Bytes(data), nil
	}
	switch {
	case mediaType == fiber.MIMEApplicationJSON || strings.HasSuffix(mediaType, "+json"):
		return cache.RawJSON(data)
	case strings.HasPrefix(mediaType, "text/"):
		return cache.Text(string(data)), nil
	default:
		return cache.Bytes(data), nil
	}
}

func contentTypeFor(dataType cache.DataType) string {
	switch {
	case dataType.Structured():
		return fiber.MIMEApplicationJSON
	case dataType == cache.DataTypeString:
		return fiber.MIMETextPlainCharsetUTF8
	default:
		return fiber.MIMEOctetStream
	}
}

func requestContext(c fiber.Ctx) context.Context {
	if ctx := c.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
