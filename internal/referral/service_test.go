package referral

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewService_DefaultsValidationThreshold(t *testing.T) {
	svc := NewService(nil, nil, nil, nil, Config{ValidationThreshold: 0})
	assert.Equal(t, 1, svc.cfg.ValidationThreshold)
}

func TestNewService_KeepsExplicitThreshold(t *testing.T) {
	svc := NewService(nil, nil, nil, nil, Config{ValidationThreshold: 3})
	assert.Equal(t, 3, svc.cfg.ValidationThreshold)
}
