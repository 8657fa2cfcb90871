package logger

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderField_UsesOrderIDKey(t *testing.T) {
	field := OrderField("order-123")
	assert.Equal(t, "order_id", field.Key)
	assert.Equal(t, "order-123", field.String)
}

func TestGetEnv_DefaultsToDevelopment(t *testing.T) {
	os.Unsetenv("ENVIRONMENT")
	assert.Equal(t, "development", GetEnv())
}

func TestGetEnv_ReadsEnvironmentVariable(t *testing.T) {
	os.Setenv("ENVIRONMENT", "production")
	defer os.Unsetenv("ENVIRONMENT")
	assert.Equal(t, "production", GetEnv())
}
