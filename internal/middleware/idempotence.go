package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/derlev/sandwich-spawnpoint/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	idempotenceTTL       = 60 * time.Second
	idempotencePending   = "0"
	idempotenceDone      = "1"
)

// Idempotence rejects a repeat of the same write while the first one is in flight or for a
// minute after it succeeded. The key is the Idempotency-Key header, or a hash of the caller
// and body when the header is absent.
func Idempotence(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}
		key, err := idempotenceKey(c)
		if err != nil {
			response.BadRequest(c, "Could not read request body")
			return
		}

		ctx := c.Request.Context()
		redisKey := "sandwich:idempotence:" + key
		acquired, err := rdb.SetNX(ctx, redisKey, idempotencePending, idempotenceTTL).Result()
		if err != nil {
			c.Next()
			return
		}
		if !acquired {
			msg := "The same request succeeded recently"
			if val, _ := rdb.Get(ctx, redisKey).Result(); val == idempotencePending {
				msg = "The same request is still being processed"
			}
			response.Abort(c, http.StatusConflict, msg)
			return
		}

		c.Next()

		if status := c.Writer.Status(); status >= 200 && status < 300 {
			rdb.Set(ctx, redisKey, idempotenceDone, redis.KeepTTL)
		} else {
			rdb.Del(ctx, redisKey)
		}
	}
}

func idempotenceKey(c *gin.Context) (string, error) {
	h := sha256.New()
	if hdr := c.GetHeader(HeaderIdempotencyKey); hdr != "" {
		h.Write([]byte(c.GetHeader("Authorization")))
		h.Write([]byte{0})
		h.Write([]byte(hdr))
		return "h:" + hex.EncodeToString(h.Sum(nil)), nil
	}
	var body []byte
	if c.Request.Body != nil {
		b, err := io.ReadAll(c.Request.Body)
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		body = b
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
	}
	for _, part := range []string{c.Request.Method, c.Request.URL.Path, c.GetHeader("Authorization"), c.ClientIP()} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil)), nil
}
