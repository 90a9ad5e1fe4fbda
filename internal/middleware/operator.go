package middleware

import (
	"net/http"

	"catalog-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// operatorEmails is the configured set of emails granted operator
// access in addition to tokens carrying the operator role.
var operatorEmails = map[string]bool{}

// SetOperatorEmails configures the operator email allowlist
func SetOperatorEmails(emails []string) {
	operatorEmails = make(map[string]bool, len(emails))
	for _, e := range emails {
		operatorEmails[e] = true
	}
}

// IsOperator reports whether the authenticated request belongs to an
// operator: either the token carries the operator role or the email is
// on the configured allowlist.
func IsOperator(role, email string) bool {
	if role == "operator" {
		return true
	}
	return operatorEmails[email]
}

// RequireOperator restricts a route to operator users. It must run
// after AuthMiddleware.
func RequireOperator(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		role, _ := c.Get("user_role").(string)
		email, _ := c.Get("email").(string)

		if !IsOperator(role, email) {
			log.Warn("Operator access denied",
				zap.String("email", email),
				zap.String("role", role))
			return c.JSON(http.StatusForbidden, echo.Map{"error": "operator access required"})
		}

		return next(c)
	}
}
