package app

import (
	"context"
	"fmt"

	"github.com/aq2208/gorder-store/configs"
	"github.com/aq2208/gorder-store/internal/adapter/memory"
	"github.com/aq2208/gorder-store/internal/adapter/mongostore"
	"github.com/aq2208/gorder-store/internal/adapter/repo"
	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/aq2208/gorder-store/internal/logging"
	"github.com/aq2208/gorder-store/internal/usecase"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

type stores struct {
	orders   usecase.OrderRepo
	catalog  usecase.ProductCatalog
	accounts usecase.AccountStore
	close    func()
}

func openStores(ctx context.Context, cfg configs.Config) (*stores, error) {
	switch cfg.Storage.Driver {
	case configs.DriverMySQL:
		db, err := repo.OpenMySQL(ctx, repo.PoolConfig{
			DSN:             cfg.MySQL.DSN,
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("mysql: %w", err)
		}
		return &stores{
			orders:   repo.NewMySQLOrderRepo(db),
			catalog:  repo.NewMySQLProductCatalog(db),
			accounts: repo.NewMySQLAccountStore(db),
			close:    func() { _ = db.Close() },
		}, nil

	case configs.DriverMongo:
		client, db, err := mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		return &stores{
			orders:   mongostore.NewOrderRepo(db),
			catalog:  mongostore.NewProductCatalog(db),
			accounts: mongostore.NewAccountStore(db),
			close:    func() { _ = client.Disconnect(context.Background()) },
		}, nil

	case configs.DriverMemory:
		catalog, accounts, err := seedMemory()
		if err != nil {
			return nil, err
		}
		return &stores{
			orders:   memory.NewOrderStore(),
			catalog:  catalog,
			accounts: accounts,
			close:    func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

const demoPassword = "demo-password"

// seedMemory fills the in-process stores with a small demo catalog and two
// accounts so the API is usable without any backing services.
func seedMemory() (*memory.Catalog, *memory.AccountStore, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}
	logging.New("bootstrap").Warn("memory storage seeded with demo accounts",
		"admin", "admin@example.com", "customer", "customer@example.com")

	catalog := memory.NewCatalog(
		domain.Product{ID: "p-headphones", Name: "Studio Headphones", Price: decimal.RequireFromString("89.00"), Stock: 25, Active: true},
		domain.Product{ID: "p-speaker", Name: "Bluetooth Speaker", Price: decimal.RequireFromString("45.50"), Stock: 40, Active: true},
		domain.Product{ID: "p-cable", Name: "USB-C Cable", Price: decimal.RequireFromString("9.99"), Stock: 200, Active: true},
		domain.Product{ID: "p-earbuds", Name: "Wired Earbuds", Price: decimal.RequireFromString("15.00"), Stock: 0, Active: false},
	)
	accounts := memory.NewAccountStore(
		domain.Account{ID: "admin-1", Email: "admin@example.com", PasswordHash: string(hash), Role: domain.RoleAdmin, FirstName: "Store", LastName: "Admin"},
		domain.Account{ID: "cust-1", Email: "customer@example.com", PasswordHash: string(hash), Role: domain.RoleCustomer, FirstName: "Ada", LastName: "Lovelace",
			Cart: domain.Cart{Items: []domain.CartItem{{ProductID: "p-cable", Quantity: 2}}}},
	)
	return catalog, accounts, nil
}
