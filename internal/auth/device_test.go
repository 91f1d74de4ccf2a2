package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func deviceRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/probe", DeviceAuth(secret), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestDeviceAuth(t *testing.T) {
	tests := []struct {
		name       string
		secret     string
		header     string
		wantStatus int
	}{
		{name: "valid key passes", secret: "s3cret", header: "s3cret", wantStatus: http.StatusOK},
		{name: "wrong key rejected", secret: "s3cret", header: "nope", wantStatus: http.StatusUnauthorized},
		{name: "missing key rejected", secret: "s3cret", header: "", wantStatus: http.StatusUnauthorized},
		{name: "unset server secret fails closed", secret: "", header: "anything", wantStatus: http.StatusServiceUnavailable},
		{name: "unset secret with empty header still fails closed", secret: "", header: "", wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := deviceRouter(tt.secret)
			req := httptest.NewRequest(http.MethodGet, "/probe", nil)
			if tt.header != "" {
				req.Header.Set(DeviceKeyHeader, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestAdminAuthRoleCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	const key, issuer = "signing-key", "taptrack"

	r := gin.New()
	r.GET("/probe", AdminAuth(key, issuer), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	adminPair, err := Issue("admin", "admin", issuer, key, 5*time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("issue admin token: %v", err)
	}
	devicePair, err := Issue("dev-1", "device", issuer, key, 5*time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("issue device token: %v", err)
	}

	tests := []struct {
		name       string
		authz      string
		wantStatus int
	}{
		{name: "admin token passes", authz: "Bearer " + adminPair.AccessToken, wantStatus: http.StatusOK},
		{name: "non-admin role forbidden", authz: "Bearer " + devicePair.AccessToken, wantStatus: http.StatusForbidden},
		{name: "garbage token rejected", authz: "Bearer not.a.token", wantStatus: http.StatusUnauthorized},
		{name: "missing header rejected", authz: "", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/probe", nil)
			if tt.authz != "" {
				req.Header.Set("Authorization", tt.authz)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
