package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// DeviceKeyHeader carries the shared secret presented by field devices.
const DeviceKeyHeader = "X-Device-Key"

// DeviceAuth gates device-originated requests with a shared-secret header.
// The comparison is constant-time. An unset server secret fails closed with a
// configuration error rather than letting every request through.
func DeviceAuth(secret string) gin.HandlerFunc {
	secretBytes := []byte(secret)
	return func(c *gin.Context) {
		if len(secretBytes) == 0 {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "device authentication not configured"})
			return
		}
		presented := c.GetHeader(DeviceKeyHeader)
		if subtle.ConstantTimeCompare([]byte(presented), secretBytes) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid device key"})
			return
		}
		c.Next()
	}
}
