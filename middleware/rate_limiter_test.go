package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func postJSON(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/decide", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestActorRateLimiterBucketsPerActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewActorRateLimiter(2, time.Minute)

	var lastActor string
	r := gin.New()
	r.POST("/decide", rl.Limit(), func(c *gin.Context) {
		var body struct {
			ActorID string `json:"actor_id"`
		}
		assert.NoError(t, c.ShouldBindJSON(&body))
		lastActor = body.ActorID
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	// Two requests for alice pass, the third is rejected.
	assert.Equal(t, http.StatusOK, postJSON(r, `{"actor_id":"alice"}`).Code)
	assert.Equal(t, http.StatusOK, postJSON(r, `{"actor_id":"alice"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, postJSON(r, `{"actor_id":"alice"}`).Code)

	// A different actor from the same address still has budget, and the
	// handler's own binding saw the restored body.
	assert.Equal(t, http.StatusOK, postJSON(r, `{"actor_id":"bob"}`).Code)
	assert.Equal(t, "bob", lastActor)
}

func TestActorRateLimiterFallsBackToClient(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewActorRateLimiter(1, time.Minute)

	r := gin.New()
	r.POST("/decide", rl.Limit(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	// Without an actor_id both requests share the client bucket.
	assert.Equal(t, http.StatusOK, postJSON(r, `{}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, postJSON(r, `{}`).Code)
}
