package middlewares

import (
	"encoding/gob"
	"net/http"

	"github.com/sandor-zhong/baby-chengcheng/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

const (
	SessionCookie = "baby_session"
	sessionMaxAge = 3600
)

func init() {
	gob.Register(utils.Flash{})
}

// Sessions installs the signed cookie session that carries flash messages across
// redirects.
func Sessions(secret []byte, secure bool) gin.HandlerFunc {
	store := cookie.NewStore(secret)
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sessions.Sessions(SessionCookie, store)
}

// SetFlash stores a one-shot message that the next page load pops.
func SetFlash(c *gin.Context, level, message string) {
	s := sessions.Default(c)
	s.AddFlash(utils.Flash{Level: level, Message: message})
	if err := s.Save(); err != nil {
		_ = c.Error(err)
	}
}

// PopFlash returns and clears the latest pending message, if any.
func PopFlash(c *gin.Context) (utils.Flash, bool) {
	s := sessions.Default(c)
	flashes := s.Flashes()
	if len(flashes) == 0 {
		return utils.Flash{}, false
	}
	if err := s.Save(); err != nil {
		_ = c.Error(err)
	}
	f, ok := flashes[len(flashes)-1].(utils.Flash)
	if !ok || f.Message == "" {
		return utils.Flash{}, false
	}
	return f, true
}
