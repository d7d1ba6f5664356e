//go:build integration

package integration

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tkaseke/homestore/internal/storage/postgres"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("homestore_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		log.Fatalf("start postgres container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("connection string: %v", err)
	}

	pool, err = postgres.NewPool(ctx, connStr)
	if err != nil {
		log.Fatalf("create pool: %v", err)
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	code := m.Run()

	pool.Close()
	if err := testcontainers.TerminateContainer(container); err != nil {
		log.Printf("terminate container: %v", err)
	}
	os.Exit(code)
}

// --- Seeding helpers ---

func seedUser(t *testing.T, email string) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO users (email) VALUES ($1) RETURNING id`, email).Scan(&id)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}

func seedAddress(t *testing.T, userID int64) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO addresses (user_id, first_name, last_name, address_line1, city, province, postal_code)
		 VALUES ($1, 'Tari', 'Moyo', '12 Samora Machel Ave', 'Harare', 'Harare', '00263')
		 RETURNING id`, userID).Scan(&id)
	if err != nil {
		t.Fatalf("seed address: %v", err)
	}
	return id
}

func seedProduct(t *testing.T, sku string, price string) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO products (name, sku, price) VALUES ($1, $2, $3) RETURNING id`,
		"Product "+sku, sku, decimal.RequireFromString(price)).Scan(&id)
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return id
}

func seedCoupon(t *testing.T, code, typ, value string, usageLimit *int) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO coupons (code, type, value, usage_limit, is_active)
		 VALUES ($1, $2, $3, $4, TRUE)`,
		code, typ, decimal.RequireFromString(value), usageLimit)
	if err != nil {
		t.Fatalf("seed coupon: %v", err)
	}
}

func couponUsageCount(t *testing.T, code string) int {
	t.Helper()
	var n int
	err := pool.QueryRow(context.Background(),
		`SELECT usage_count FROM coupons WHERE code = $1`, code).Scan(&n)
	if err != nil {
		t.Fatalf("read usage count: %v", err)
	}
	return n
}

func countRows(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	if err := pool.QueryRow(context.Background(), query, args...).Scan(&n); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}
