package app

import (
	"context"
	"testing"

	"github.com/aq2208/gorder-store/configs"
	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/aq2208/gorder-store/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() configs.Config {
	var cfg configs.Config
	cfg.App.Name = "gorder-store"
	cfg.App.HTTPAddr = ":0"
	cfg.Storage.Driver = configs.DriverMemory
	cfg.Security.JWTSecret = "0123456789abcdef"
	cfg.Orders.Timezone = "Asia/Ho_Chi_Minh"
	cfg.Orders.TaxRate = "0.1"
	cfg.Orders.ShippingRates = map[string]string{"express": "25"}
	cfg.Orders.Coupons = map[string]string{"welcome10": "10"}
	return cfg
}

func TestOrdersConfig(t *testing.T) {
	oc, err := ordersConfig(memoryConfig())
	require.NoError(t, err)

	assert.Equal(t, "Asia/Ho_Chi_Minh", oc.Location.String())
	assert.Equal(t, "0.1", oc.Pricing.TaxRate.String())
	assert.True(t, oc.Pricing.FreeShippingThreshold.Equal(domain.DefaultFreeShippingThreshold))
	assert.Equal(t, "25", oc.Pricing.Rates[domain.ShippingExpress].String())
	assert.Equal(t, "9.99", oc.Pricing.Rates[domain.ShippingStandard].String())
	assert.Equal(t, "10", oc.Coupons["WELCOME10"].String(), "coupon codes are matched upper-case")

	bad := memoryConfig()
	bad.Orders.ShippingRates = map[string]string{"teleport": "1"}
	_, err = ordersConfig(bad)
	assert.Error(t, err)
}

func TestInitWithConfig_Memory(t *testing.T) {
	a, cleanup, err := InitWithConfig(context.Background(), memoryConfig())
	require.NoError(t, err)
	defer cleanup()

	require.NotNil(t, a.Server.Handler)
	o, err := a.Orders.ListOrders(context.Background(), domain.Principal{UserID: "admin-1", Role: domain.RoleAdmin}, usecase.ListQuery{})
	require.NoError(t, err)
	assert.Empty(t, o.Orders)
}
