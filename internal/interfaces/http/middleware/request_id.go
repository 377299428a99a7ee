package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestIDKey is the header carrying the request id
const RequestIDKey = "X-Request-ID"

// MaxRequestIDLength bounds client supplied request ids
const MaxRequestIDLength = 128

var requestSeq atomic.Uint64

// RequestID stores a request id under "request_id" and echoes it in the
// response. A client id is kept unless it is empty or too long.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDKey)
		if id == "" || len(id) > MaxRequestIDLength {
			id = newRequestID()
		}
		c.Set("request_id", id)
		c.Header(RequestIDKey, id)
		c.Next()
	}
}

// newRequestID returns 32 hex characters
func newRequestID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err == nil {
		return hex.EncodeToString(b[:])
	}
	// Timestamp and a process counter, padded to the same width
	s := strconv.FormatInt(time.Now().UnixNano(), 16) + strconv.FormatUint(requestSeq.Add(1), 16)
	for len(s) < 32 {
		s = "0" + s
	}
	return s[len(s)-32:]
}

// getRequestIDFromContext falls back to the header when RequestID did not run
func getRequestIDFromContext(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return c.GetHeader(RequestIDKey)
}
