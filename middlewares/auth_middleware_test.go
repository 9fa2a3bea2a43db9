package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sandor-zhong/baby-chengcheng/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("middleware-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

func whoami(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": c.GetUint(CtxUserID), "sid": c.GetString(CtxSessionID)})
}

func TestWantsJSON(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		header map[string]string
		want   bool
	}{
		{"browser form post", "/record_feed", map[string]string{"Content-Type": "application/x-www-form-urlencoded"}, false},
		{"accept header", "/record_feed", map[string]string{"Accept": "application/json, text/plain"}, true},
		{"xhr", "/record_feed", map[string]string{"X-Requested-With": "XMLHttpRequest"}, true},
		{"api path", "/api/dashboard", nil, true},
		{"json body", "/record_feed", map[string]string{"Content-Type": "application/json; charset=utf-8"}, true},
		{"websocket", "/ws", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodPost, tt.path, nil)
			for k, v := range tt.header {
				c.Request.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, WantsJSON(c))
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(Sessions(secret, false))
	r.POST("/record_feed", AuthMiddleware(secret), whoami)
	token, err := utils.GenerateJWT(7, "mom@example.com", "sid-7", secret, time.Hour)
	require.NoError(t, err)

	t.Run("bearer token", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/record_feed", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"user":7,"sid":"sid-7"}`, w.Body.String())
	})

	t.Run("cookie", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/record_feed", nil)
		req.AddCookie(&http.Cookie{Name: TokenCookie, Value: token})
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("browser without token is redirected", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/record_feed", nil))
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
	})

	t.Run("api client with bad token gets 401", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/record_feed", nil)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+token+"x")
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestOptionalAuth(t *testing.T) {
	r := gin.New()
	r.GET("/api/dashboard", OptionalAuth(secret), whoami)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":0,"sid":""}`, w.Body.String())
}

func TestFlashRoundTrip(t *testing.T) {
	r := gin.New()
	r.Use(Sessions(secret, false))
	r.GET("/set", func(c *gin.Context) { SetFlash(c, utils.FlashInfo, "saved") })
	r.GET("/pop", func(c *gin.Context) {
		f, ok := PopFlash(c)
		c.JSON(http.StatusOK, gin.H{"ok": ok, "message": f.Message})
	})
	pop := func(c *http.Cookie) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/pop", nil)
		req.AddCookie(c)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/set", nil))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	w = pop(cookies[0])
	assert.JSONEq(t, `{"ok":true,"message":"saved"}`, w.Body.String())
	require.Len(t, w.Result().Cookies(), 1)

	w = pop(w.Result().Cookies()[0])
	assert.JSONEq(t, `{"ok":false,"message":""}`, w.Body.String(), "a flash is shown once")
}

func TestFlashCookieIsSigned(t *testing.T) {
	r := gin.New()
	r.Use(Sessions(secret, false))
	r.GET("/set", func(c *gin.Context) { SetFlash(c, utils.FlashDanger, "real") })
	r.GET("/pop", func(c *gin.Context) {
		_, ok := PopFlash(c)
		c.JSON(http.StatusOK, gin.H{"ok": ok})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/set", nil))
	orig := w.Result().Cookies()[0]

	forged := *orig
	first := "x"
	if orig.Value[:1] == first {
		first = "y"
	}
	forged.Value = first + orig.Value[1:]
	req := httptest.NewRequest(http.MethodGet, "/pop", nil)
	req.AddCookie(&forged)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.JSONEq(t, `{"ok":false}`, w.Body.String())

	other := gin.New()
	other.Use(Sessions([]byte("another-secret"), false))
	other.GET("/pop", func(c *gin.Context) {
		_, ok := PopFlash(c)
		c.JSON(http.StatusOK, gin.H{"ok": ok})
	})
	req = httptest.NewRequest(http.MethodGet, "/pop", nil)
	req.AddCookie(orig)
	w = httptest.NewRecorder()
	other.ServeHTTP(w, req)
	assert.JSONEq(t, `{"ok":false}`, w.Body.String(), "a cookie signed with another key is rejected")
}
