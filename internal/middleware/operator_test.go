package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsOperator(t *testing.T) {
	SetOperatorEmails([]string{"ops@example.com"})
	defer SetOperatorEmails(nil)

	assert.True(t, IsOperator("operator", "anyone@example.com"))
	assert.True(t, IsOperator("member", "ops@example.com"))
	assert.False(t, IsOperator("member", "user@example.com"))
	assert.False(t, IsOperator("", ""))
}
