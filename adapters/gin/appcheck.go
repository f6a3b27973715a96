// Package authgin adapts the attestation verifier to gin transport. The
// core packages stay transport-agnostic; header extraction lives here.
package authgin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	appcheckkit "github.com/open-rails/firetrust/appcheck"
)

// AppCheckHeader carries the attestation token on inbound requests.
const AppCheckHeader = "X-Firebase-AppCheck"

const ctxKeyAppCheck = "appcheck.payload"

// RequireAppCheck gates handlers behind attestation verification. Failures
// are answered with 401 and an opaque reference id; the internal cause is
// logged server-side but never echoed to the caller.
func RequireAppCheck(v *appcheckkit.Verifier) gin.HandlerFunc {
	return RequireAppCheckWithLogger(v, logrus.StandardLogger())
}

// RequireAppCheckWithLogger is RequireAppCheck with an explicit logger.
func RequireAppCheckWithLogger(v *appcheckkit.Verifier, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(AppCheckHeader)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing app check token",
			})
			return
		}

		payload, err := v.Verify(c.Request.Context(), raw)
		if err != nil {
			ref := uuid.NewString()
			log.WithFields(logrus.Fields{
				"ref":  ref,
				"path": c.FullPath(),
			}).WithError(err).Warn("app check verification rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "app check verification failed",
				"ref":   ref,
			})
			return
		}

		c.Set(ctxKeyAppCheck, payload)
		c.Next()
	}
}

// AppCheckFromGin returns the verified attestation payload stored by
// RequireAppCheck, if any.
func AppCheckFromGin(c *gin.Context) (*appcheckkit.Payload, bool) {
	v, ok := c.Get(ctxKeyAppCheck)
	if !ok {
		return nil, false
	}
	p, ok := v.(*appcheckkit.Payload)
	return p, ok
}
