package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func run(header string) (string, string) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	var seen string
	r.GET("/", func(c *gin.Context) { seen = Value(c) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(Header, header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return seen, w.Header().Get(Header)
}

func TestRequestIDPropagatesInbound(t *testing.T) {
	seen, echoed := run("cron-2024-05-01T06:00")
	assert.Equal(t, "cron-2024-05-01T06:00", seen)
	assert.Equal(t, seen, echoed)
}

func TestRequestIDReplacesUnsafeValues(t *testing.T) {
	for _, bad := range []string{"", "line\nbreak", "has space", strings.Repeat("a", 200)} {
		seen, echoed := run(bad)
		_, err := uuid.Parse(seen)
		assert.NoError(t, err, "input %q", bad)
		assert.Equal(t, seen, echoed)
	}
}
