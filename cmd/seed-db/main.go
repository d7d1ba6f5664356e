package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tkaseke/homestore/internal/storage/postgres"
)

type productJSON struct {
	Name        string          `json:"name"`
	SKU         string          `json:"sku"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Variants    []struct {
		Name  string          `json:"name"`
		SKU   string          `json:"sku"`
		Price decimal.Decimal `json:"price"`
	} `json:"variants"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or HOMESTORE_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or HOMESTORE_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("HOMESTORE_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or HOMESTORE_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("HOMESTORE_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	userID, err := seedUser(ctx, pool, apiKey, pepper)
	if err != nil {
		return errors.Wrap(err, "seed user")
	}

	if err := seedAddress(ctx, pool, userID); err != nil {
		return errors.Wrap(err, "seed address")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	return nil
}

func seedUser(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) (int64, error) {
	slog.Info("seeding demo user and API key")

	var userID int64
	err := pool.QueryRow(ctx, `INSERT INTO users (email, first_name, last_name, phone)
		VALUES ('demo@homestore.co.zw', 'Demo', 'Shopper', '0771234567')
		ON CONFLICT (email) DO UPDATE SET first_name = EXCLUDED.first_name
		RETURNING id`).Scan(&userID)
	if err != nil {
		return 0, errors.Wrap(err, "upsert user")
	}

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	_, err = pool.Exec(ctx, `INSERT INTO api_keys (user_id, key_hash, name, active)
		VALUES ($1, $2, 'Default test key', TRUE)
		ON CONFLICT (key_hash) DO UPDATE SET active = TRUE`, userID, keyHash)
	if err != nil {
		return 0, errors.Wrap(err, "upsert api key")
	}

	slog.Info("seeded user", slog.Int64("id", userID))
	return userID, nil
}

func seedAddress(ctx context.Context, pool *pgxpool.Pool, userID int64) error {
	var count int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM addresses WHERE user_id = $1`, userID).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	_, err := pool.Exec(ctx, `INSERT INTO addresses
		(user_id, label, first_name, last_name, address_line1, city, province, postal_code, country, phone, is_default)
		VALUES ($1, 'Home', 'Demo', 'Shopper', '12 Samora Machel Ave', 'Harare', 'Harare', '00263', 'Zimbabwe', '0771234567', TRUE)`,
		userID)
	return err
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		currency := p.Currency
		if currency == "" {
			currency = "USD"
		}

		var productID int64
		err := pool.QueryRow(ctx, `INSERT INTO products (name, sku, description, price, currency)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (sku) DO UPDATE SET
				name = EXCLUDED.name, description = EXCLUDED.description,
				price = EXCLUDED.price, currency = EXCLUDED.currency
			RETURNING id`,
			p.Name, p.SKU, p.Description, p.Price, currency,
		).Scan(&productID)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.SKU)
		}

		for _, v := range p.Variants {
			_, err := pool.Exec(ctx, `INSERT INTO product_variants (product_id, name, sku, price)
				SELECT $1, $2, $3, $4
				WHERE NOT EXISTS (
					SELECT 1 FROM product_variants WHERE product_id = $1 AND name = $2
				)`,
				productID, v.Name, v.SKU, v.Price)
			if err != nil {
				return errors.Wrapf(err, "insert variant %s of product %s", v.Name, p.SKU)
			}
		}

		slog.Info("upserted product", slog.String("sku", p.SKU), slog.String("name", p.Name))
	}

	return nil
}

type seedCoupon struct {
	code        string
	name        string
	typ         string
	value       decimal.Decimal
	minAmount   *decimal.Decimal
	maxDiscount *decimal.Decimal
	usageLimit  *int
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding demo coupons")

	ten := decimal.NewFromInt(10)
	fifty := decimal.NewFromInt(50)
	hundred := decimal.NewFromInt(100)
	limit := 100

	coupons := []seedCoupon{
		{
			code:  "WELCOME10",
			name:  "Welcome: 10% off",
			typ:   "percentage",
			value: decimal.NewFromInt(10),
		},
		{
			code:        "SAVE10",
			name:        "Save $10 on orders over $50",
			typ:         "fixed_amount",
			value:       ten,
			minAmount:   &fifty,
			maxDiscount: nil,
			usageLimit:  &limit,
		},
		{
			code:        "BIGSPENDER",
			name:        "20% off, up to $100",
			typ:         "percentage",
			value:       decimal.NewFromInt(20),
			maxDiscount: &hundred,
		},
	}

	for _, c := range coupons {
		_, err := pool.Exec(ctx, `INSERT INTO coupons
			(code, name, type, value, minimum_amount, maximum_discount, usage_limit, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
			ON CONFLICT (code) DO UPDATE SET
				name = EXCLUDED.name, type = EXCLUDED.type, value = EXCLUDED.value,
				minimum_amount = EXCLUDED.minimum_amount,
				maximum_discount = EXCLUDED.maximum_discount,
				usage_limit = EXCLUDED.usage_limit, is_active = TRUE`,
			c.code, c.name, c.typ, c.value, c.minAmount, c.maxDiscount, c.usageLimit)
		if err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.code)
		}

		slog.Info("upserted coupon", slog.String("code", c.code), slog.String("name", c.name))
	}

	return nil
}
