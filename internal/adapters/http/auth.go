package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/voxcord/voxcord/internal/core"
)

// AuthMiddleware gates the handshake. A failed verification rejects the
// request outright; no connection state is created. The verified identity
// is trusted for the connection's whole lifetime, it is never re-checked
// per event.
func AuthMiddleware(verifier core.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			token, _ = c.Cookie("token")
		}
		if token == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		user, err := verifier.Verify(token)
		if err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Msg("handshake rejected")
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set("user", *user)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if after, ok := strings.CutPrefix(h, "Bearer "); ok {
		return after
	}
	return ""
}
