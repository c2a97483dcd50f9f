package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"memberhub.backend/pkg/logger"
	"memberhub.backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	// LockDuration is the time we hold the lock while processing
	LockDuration = 30 * time.Second
	// RetentionDuration is how long we keep the response
	RetentionDuration = 24 * time.Hour

	idempotencyProcessing = "processing"
	idempotencyConflict   = "IDEMPOTENCY_CONFLICT"
)

var (
	redisGet   = redis.Get
	redisSet   = redis.Set
	redisSetNX = redis.SetNX
	redisDel   = redis.Del
)

type storedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response of a request already
// completed under the same Idempotency-Key. Keys are scoped per identity.
func IdempotencyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		scope := "anonymous"
		if identity, ok := GetIdentity(c); ok {
			scope = identity.ID.String()
		}
		storageKey := fmt.Sprintf("idempotency:%s:%s:%s", scope, c.Request.URL.Path, key)
		ctx := c.Request.Context()

		acquired, err := redisSetNX(ctx, storageKey, idempotencyProcessing, LockDuration)
		if err != nil {
			// fail open: the usecases reject duplicate payments on their own
			logger.Warn(ctx, "Idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !acquired {
			replay(c, storageKey)
			return
		}

		w := &responseWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		status := c.Writer.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			// Remove key so retry is possible
			_ = redisDel(ctx, storageKey)
			return
		}
		var body json.RawMessage
		if w.body.Len() > 0 {
			body = w.body.Bytes()
		}
		stored, err := json.Marshal(storedResponse{Status: status, Body: body})
		if err == nil {
			err = redisSet(ctx, storageKey, string(stored), RetentionDuration)
		}
		if err != nil {
			logger.Warn(ctx, "Failed to store idempotent response", zap.Error(err))
			_ = redisDel(ctx, storageKey)
		}
	}
}

func replay(c *gin.Context, storageKey string) {
	val, err := redisGet(c.Request.Context(), storageKey)
	if err != nil || val == idempotencyProcessing {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"code":    idempotencyConflict,
			"message": "Request already in progress",
		})
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(val), &stored); err != nil {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"code":    idempotencyConflict,
			"message": "Request already processed",
		})
		return
	}
	c.Header("X-Idempotency-Hit", "true")
	c.Data(stored.Status, "application/json; charset=utf-8", stored.Body)
	c.Abort()
}
