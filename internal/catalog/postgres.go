package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/quang1403/ecommerce-backend/internal/config"
	"github.com/quang1403/ecommerce-backend/internal/models"
	"github.com/quang1403/ecommerce-backend/internal/observability"
	"github.com/quang1403/ecommerce-backend/internal/resilience"
)

const productColumns = `
	p.id, p.name, COALESCE(p.description, ''), p.price, p.stock, p.rating, p.sold,
	p.storage, p.ram, p.battery, COALESCE(p.chipset, ''),
	COALESCE(p.camera_rear, ''), COALESCE(p.camera_front, ''), p.created_at,
	b.id, b.name`

// PostgresStore implements Store on top of the relational catalog. All
// queries go through a shared circuit breaker so a struggling database trips
// fast instead of piling up connections.
type PostgresStore struct {
	db     *sql.DB
	cb     *gobreaker.CircuitBreaker
	cfg    config.PostgresConfig
	logger *zap.Logger
}

func NewPostgresStore(cfg config.PostgresConfig, searchCfg config.SearchConfig, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	logger.Info("postgres catalog connected")

	return &PostgresStore{
		db:     db,
		cb:     resilience.NewCircuitBreaker("postgres-catalog", searchCfg.CircuitBreaker, logger),
		cfg:    cfg,
		logger: logger,
	}, nil
}

// toPosixPattern rewrites Go-style word boundaries to the PostgreSQL POSIX
// equivalent. Criteria patterns are composed for Go's regexp package; the
// only divergence that matters here is \b vs \y.
func toPosixPattern(p string) string {
	return strings.ReplaceAll(p, `\b`, `\y`)
}

func (s *PostgresStore) FindByCriteria(ctx context.Context, criteria *models.SearchCriteria, limit int) ([]models.CatalogProduct, error) {
	if criteria.Empty() || len(criteria.Or) == 0 {
		return nil, nil
	}

	ctx, span := observability.StartSpan(ctx, "catalog.find_by_criteria",
		attribute.Int("clauses", len(criteria.Or)),
	)
	defer span.End()

	var args []any
	var clauses []string
	for _, clause := range criteria.Or {
		args = append(args, toPosixPattern(clause.Pattern))
		column := "p.name"
		if clause.Field == "description" {
			column = "p.description"
		}
		clauses = append(clauses, fmt.Sprintf("%s ~* $%d", column, len(args)))
	}

	where := "(" + strings.Join(clauses, " OR ") + ")"
	if criteria.Storage > 0 {
		args = append(args, criteria.Storage)
		where += fmt.Sprintf(" AND p.storage = $%d", len(args))
	}

	args = append(args, limit)
	query := fmt.Sprintf(`
		SELECT %s
		FROM products p
		LEFT JOIN brands b ON b.id = p.brand_id
		WHERE %s
		ORDER BY p.created_at DESC
		LIMIT $%d`, productColumns, where, len(args))

	return s.queryProducts(ctx, "criteria", query, args...)
}

func (s *PostgresStore) FindByBrand(ctx context.Context, brand string, limit int) ([]models.CatalogProduct, error) {
	ctx, span := observability.StartSpan(ctx, "catalog.find_by_brand",
		attribute.String("brand", brand),
	)
	defer span.End()

	query := fmt.Sprintf(`
		SELECT %s
		FROM products p
		JOIN brands b ON b.id = p.brand_id
		WHERE b.name ILIKE '%%' || $1 || '%%'
		ORDER BY p.created_at DESC
		LIMIT $2`, productColumns)

	return s.queryProducts(ctx, "brand", query, brand, limit)
}

func (s *PostgresStore) FindByFilters(ctx context.Context, filters *models.FeatureFilters, limit int) ([]models.CatalogProduct, error) {
	if filters.Empty() {
		return nil, nil
	}

	ctx, span := observability.StartSpan(ctx, "catalog.find_by_filters")
	defer span.End()

	var args []any
	var conds []string

	if filters.MaxPrice > 0 {
		args = append(args, filters.MaxPrice)
		conds = append(conds, fmt.Sprintf("p.price < $%d", len(args)))
	}
	if filters.MinPrice > 0 {
		args = append(args, filters.MinPrice)
		conds = append(conds, fmt.Sprintf("p.price > $%d", len(args)))
	}
	if filters.MinRAM > 0 || filters.ChipsetPattern != "" {
		var perf []string
		if filters.MinRAM > 0 {
			args = append(args, filters.MinRAM)
			perf = append(perf, fmt.Sprintf("p.ram >= $%d", len(args)))
		}
		if filters.ChipsetPattern != "" {
			args = append(args, toPosixPattern(filters.ChipsetPattern))
			perf = append(perf, fmt.Sprintf("p.chipset ~* $%d", len(args)))
		}
		conds = append(conds, "("+strings.Join(perf, " OR ")+")")
	}
	if filters.RequireCamera {
		conds = append(conds, "(COALESCE(p.camera_rear, '') <> '' OR COALESCE(p.camera_front, '') <> '')")
	}

	order := "p.created_at DESC"
	if filters.SortByRating {
		order = "p.rating DESC"
	}

	args = append(args, limit)
	query := fmt.Sprintf(`
		SELECT %s
		FROM products p
		LEFT JOIN brands b ON b.id = p.brand_id
		WHERE %s
		ORDER BY %s
		LIMIT $%d`, productColumns, strings.Join(conds, " AND "), order, len(args))

	return s.queryProducts(ctx, "filters", query, args...)
}

func (s *PostgresStore) Popular(ctx context.Context, limit int) ([]models.CatalogProduct, error) {
	ctx, span := observability.StartSpan(ctx, "catalog.popular")
	defer span.End()

	query := fmt.Sprintf(`
		SELECT %s
		FROM products p
		LEFT JOIN brands b ON b.id = p.brand_id
		ORDER BY p.sold DESC, p.rating DESC
		LIMIT $1`, productColumns)

	return s.queryProducts(ctx, "popular", query, limit)
}

func (s *PostgresStore) queryProducts(ctx context.Context, operation, query string, args ...any) ([]models.CatalogProduct, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.cb.Execute(func() (any, error) {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return scanProducts(rows)
	})

	status := "success"
	if err != nil {
		status = "error"
	}
	observability.CatalogQueryDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, fmt.Errorf("catalog %s query: %w", operation, err)
	}

	products := result.([]models.CatalogProduct)
	if err := s.loadVariants(ctx, products); err != nil {
		// Variants only add scoring signal; a failed load degrades ranking,
		// not correctness.
		s.logger.Warn("loading product variants failed", zap.Error(err))
	}
	return products, nil
}

func scanProducts(rows *sql.Rows) ([]models.CatalogProduct, error) {
	var products []models.CatalogProduct
	for rows.Next() {
		var p models.CatalogProduct
		var brandID, brandName sql.NullString
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Rating, &p.Sold,
			&p.Storage, &p.RAM, &p.Battery, &p.Chipset,
			&p.CameraRear, &p.CameraFront, &p.CreatedAt,
			&brandID, &brandName,
		); err != nil {
			return nil, fmt.Errorf("scanning product row: %w", err)
		}
		if brandID.Valid {
			p.Brand = &models.Brand{ID: brandID.String, Name: brandName.String}
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating product rows: %w", err)
	}
	return products, nil
}

func (s *PostgresStore) loadVariants(ctx context.Context, products []models.CatalogProduct) error {
	if len(products) == 0 {
		return nil
	}

	ids := make([]string, len(products))
	index := make(map[string]int, len(products))
	for i, p := range products {
		ids[i] = p.ID
		index[p.ID] = i
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, storage, ram, COALESCE(color, ''), price, stock
		FROM product_variants
		WHERE product_id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("querying variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID string
		var v models.ProductVariant
		if err := rows.Scan(&productID, &v.Storage, &v.RAM, &v.Color, &v.Price, &v.Stock); err != nil {
			return fmt.Errorf("scanning variant row: %w", err)
		}
		if i, ok := index[productID]; ok {
			products[i].Variants = append(products[i].Variants, v)
		}
	}
	return rows.Err()
}

func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
