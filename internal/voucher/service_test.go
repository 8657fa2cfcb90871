package voucher

import (
	"testing"

	"cryptopay/internal/database"

	"github.com/stretchr/testify/assert"
)

func TestNewService_WrapsRepository(t *testing.T) {
	var repo *database.VoucherRepository
	svc := NewService(repo)

	assert.NotNil(t, svc)
	assert.Same(t, repo, svc.repo)
}
