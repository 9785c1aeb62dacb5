package httpserver

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"google.golang.org/api/idtoken"
)

const (
	headerPlatformSignature = "X-Twilio-Signature"
	headerInternalToken     = "X-Internal-Token"
)

// TokenVerifier validates an OIDC identity token and returns the email
// claim of the caller.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, token, audience string) (email string, err error)
}

type googleTokenVerifier struct{}

func NewGoogleTokenVerifier() TokenVerifier {
	return googleTokenVerifier{}
}

func (googleTokenVerifier) VerifyIDToken(ctx context.Context, token, audience string) (string, error) {
	payload, err := idtoken.Validate(ctx, token, audience)
	if err != nil {
		return "", err
	}
	email, _ := payload.Claims["email"].(string)
	return email, nil
}

// requireTaskOIDC gates the task callback behind the queue's OIDC token.
// The token's audience must be this exact endpoint and the caller must be
// the queue's service account.
func (s *Server) requireTaskOIDC(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if token == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	email, err := s.verifier.VerifyIDToken(c.Request.Context(), token, s.cfg.OperationCheckURL())
	if err != nil {
		slog.Warn("task callback token rejected", "error", err)
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	if email != s.cfg.TaskServiceAccountEmail {
		slog.Warn("task callback from unexpected identity", "email", email)
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	c.Next()
}

func (s *Server) requireInternalToken(c *gin.Context) {
	token := c.GetHeader(headerInternalToken)
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.InternalTriggerToken)) != 1 {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	c.Next()
}

// validateWebhookSignature checks the platform signature over the callback
// URL plus the sorted form parameters. It must be the first thing a webhook
// handler does.
func (s *Server) validateWebhookSignature(c *gin.Context, callbackURL string) bool {
	if err := c.Request.ParseForm(); err != nil {
		return false
	}
	params := make(map[string]string, len(c.Request.PostForm))
	for key := range c.Request.PostForm {
		params[key] = c.Request.PostForm.Get(key)
	}
	return s.video.ValidateSignature(callbackURL, params, c.GetHeader(headerPlatformSignature))
}
