package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rolegate/internal/auth/metrics"
	"rolegate/internal/users/models"
	id "rolegate/pkg/domain"
	dErrors "rolegate/pkg/domain-errors"
)

var ordersRead = Require("orders", id.RoleAdmin, id.RoleEmployee)

func TestGate_Check(t *testing.T) {
	ctx := context.Background()
	employee := &models.User{ID: 1, Role: id.RoleEmployee, IsActive: true}
	customer := &models.User{ID: 2, Role: id.RoleUser, IsActive: true}

	t.Run("disabled gate admits any role", func(t *testing.T) {
		gate := NewGate(false)
		assert.NoError(t, gate.Check(ctx, customer, ordersRead))
		assert.False(t, gate.Enabled())
	})

	t.Run("empty requirement admits", func(t *testing.T) {
		gate := NewGate(true)
		assert.NoError(t, gate.Check(ctx, customer, Require("profile")))
	})

	t.Run("listed role admitted", func(t *testing.T) {
		gate := NewGate(true)
		assert.NoError(t, gate.Check(ctx, employee, ordersRead))
	})

	t.Run("unlisted role denied with details", func(t *testing.T) {
		m := metrics.New(prometheus.NewRegistry())
		gate := NewGate(true, WithMetrics(m))

		err := gate.Check(ctx, customer, ordersRead)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePermissionDenied))
		assert.Contains(t, err.Error(), "User with role 'user' doesn't have access to 'orders'")

		var denied *PermissionDeniedError
		require.True(t, errors.As(err, &denied))
		assert.Equal(t, "orders", denied.Resource)
		assert.Equal(t, id.RoleUser, denied.Role)
		assert.Equal(t, []id.Role{id.RoleAdmin, id.RoleEmployee}, denied.Allowed)
		assert.Equal(t, float64(1), testutil.ToFloat64(m.PermissionDenied.WithLabelValues("orders")))
	})
}

func TestGuards(t *testing.T) {
	ctx := context.Background()
	gate := NewGate(true)

	guard := All(Active(), gate.Guard(ordersRead))

	assert.NoError(t, guard(ctx, &models.User{Role: id.RoleAdmin, IsActive: true}))
	assert.True(t, dErrors.HasCode(guard(ctx, &models.User{Role: id.RoleAdmin}), dErrors.CodeInactiveUser))
	assert.True(t, dErrors.HasCode(guard(ctx, &models.User{Role: id.RoleUser, IsActive: true}), dErrors.CodePermissionDenied))

	su := Superuser()
	assert.NoError(t, su(ctx, &models.User{IsActive: true, IsSuperuser: true}))
	assert.True(t, dErrors.HasCode(su(ctx, &models.User{IsSuperuser: true}), dErrors.CodeInactiveUser))
	assert.True(t, dErrors.HasCode(su(ctx, &models.User{IsActive: true}), dErrors.CodeInsufficientPrivileges))

	assert.NoError(t, All()(ctx, nil))
}
