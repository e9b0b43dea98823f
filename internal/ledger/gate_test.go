package ledger_test

import (
	"errors"
	"testing"

	"pos-backend/internal/domain/model"
	"pos-backend/internal/ledger"

	"github.com/stretchr/testify/assert"
)

func TestCeilingForRole(t *testing.T) {
	assert.Equal(t, ledger.CeilingUnlimited, ledger.CeilingForRole(model.RoleSuperAdmin))
	assert.Equal(t, ledger.CeilingUnlimited, ledger.CeilingForRole(model.RoleAdmin))
	assert.Equal(t, int64(1000), ledger.CeilingForRole(model.RoleManager))
	assert.Equal(t, int64(100), ledger.CeilingForRole(model.RoleCashier))
	assert.Equal(t, int64(0), ledger.CeilingForRole(model.RoleViewer))
	assert.Equal(t, int64(0), ledger.CeilingForRole(model.RoleName("UNKNOWN")))
}

func TestGate_Authorize_WithinCeiling(t *testing.T) {
	g := ledger.NewGate(nil)

	assert.NoError(t, g.Authorize(model.RoleCashier, 100))
	assert.NoError(t, g.Authorize(model.RoleManager, 1000))
}

func TestGate_Authorize_ExceedsCeiling(t *testing.T) {
	g := ledger.NewGate(nil)

	err := g.Authorize(model.RoleCashier, 101)
	var lee *ledger.LimitExceededError
	assert.True(t, errors.As(err, &lee))
	assert.Equal(t, model.RoleCashier, lee.Role)
	assert.Equal(t, int64(101), lee.Requested)
	assert.Equal(t, int64(100), lee.Ceiling)

	err = g.Authorize(model.RoleManager, 1001)
	assert.True(t, errors.As(err, &lee))
	assert.Equal(t, int64(1000), lee.Ceiling)
}

// ADMINとSUPER_ADMINには上限がない
func TestGate_Authorize_Unlimited(t *testing.T) {
	g := ledger.NewGate(nil)

	assert.NoError(t, g.Authorize(model.RoleAdmin, 1_000_000))
	assert.NoError(t, g.Authorize(model.RoleSuperAdmin, 1_000_000))
}

// VIEWERはどんな量でも拒否される
func TestGate_Authorize_ViewerAlwaysDenied(t *testing.T) {
	g := ledger.NewGate(nil)

	err := g.Authorize(model.RoleViewer, 1)
	var lee *ledger.LimitExceededError
	assert.True(t, errors.As(err, &lee))
	assert.Equal(t, int64(0), lee.Ceiling)
}
