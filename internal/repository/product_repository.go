package repository

import (
	"context"
	"errors"
	"fmt"

	"product-catalog/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrProductNotFound = errors.New("product not found")
)

const productColumns = `id, title, price, prev_price, show_discount, is_listed, unit_count, images, description, created_at, updated_at`

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	// UpdateFields writes the scalar fields of product and makes product.Categories
	// the complete association set, in one transaction. The gallery is not written.
	UpdateFields(ctx context.Context, product *domain.Product) error
	// UpdateGallery writes only the images column.
	UpdateGallery(ctx context.Context, id uuid.UUID, images []string) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID, withCategories bool) (*domain.Product, error)
	FindAll(ctx context.Context, withCategories bool) ([]*domain.Product, error)
}

type productRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &productRepository{pool: pool}
}

// Create inserts a new product together with its category associations
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (id, title, price, prev_price, show_discount, is_listed, unit_count, images, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(
			ctx,
			query,
			product.ID,
			product.Title,
			product.Price,
			product.PrevPrice,
			product.ShowDiscount,
			product.IsListed,
			product.UnitCount,
			gallery(product.Images),
			product.Description,
		).Scan(&product.CreatedAt, &product.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create product: %w", err)
		}

		return setCategories(ctx, tx, product.ID, product.Categories)
	})
}

// UpdateFields rewrites the scalar columns and the categories of a product in one transaction
func (r *productRepository) UpdateFields(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET title = $2, price = $3, prev_price = $4, show_discount = $5, is_listed = $6,
		    unit_count = $7, description = $8
		WHERE id = $1
		RETURNING updated_at
	`

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(
			ctx,
			query,
			product.ID,
			product.Title,
			product.Price,
			product.PrevPrice,
			product.ShowDiscount,
			product.IsListed,
			product.UnitCount,
			product.Description,
		).Scan(&product.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrProductNotFound
			}
			return fmt.Errorf("failed to update product: %w", err)
		}

		return setCategories(ctx, tx, product.ID, product.Categories)
	})
}

// UpdateGallery replaces the images array of a product
func (r *productRepository) UpdateGallery(ctx context.Context, id uuid.UUID, images []string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET images = $2 WHERE id = $1`, id, gallery(images))
	if err != nil {
		return fmt.Errorf("failed to update product gallery: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}

	return nil
}

// Delete removes a product; its category links cascade
func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}

	return nil
}

// FindByID retrieves a product by ID, optionally with its categories
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID, withCategories bool) (*domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	product, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	if withCategories {
		if err := r.attachCategories(ctx, []*domain.Product{product}); err != nil {
			return nil, err
		}
	}

	return product, nil
}

// FindAll lists every product, newest first
func (r *productRepository) FindAll(ctx context.Context, withCategories bool) ([]*domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("failed to scan products: %w", err)
	}

	if withCategories && len(products) > 0 {
		if err := r.attachCategories(ctx, products); err != nil {
			return nil, err
		}
	}

	return products, nil
}

func (r *productRepository) attachCategories(ctx context.Context, products []*domain.Product) error {
	ids := make([]uuid.UUID, len(products))
	byID := make(map[uuid.UUID]*domain.Product, len(products))
	for i, p := range products {
		ids[i] = p.ID
		byID[p.ID] = p
		p.Categories = []*domain.Category{}
	}

	query := `
		SELECT pc.product_id, c.id, c.name, c.created_at
		FROM product_categories pc
		JOIN categories c ON c.id = pc.category_id
		WHERE pc.product_id = ANY($1)
		ORDER BY c.name ASC
	`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to load product categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			productID uuid.UUID
			category  domain.Category
		)
		if err := rows.Scan(&productID, &category.ID, &category.Name, &category.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan product category: %w", err)
		}
		if p, ok := byID[productID]; ok {
			p.Categories = append(p.Categories, &category)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating product categories: %w", err)
	}

	return nil
}

// setCategories replaces the association set of a product inside tx
func setCategories(ctx context.Context, tx pgx.Tx, productID uuid.UUID, categories []*domain.Category) error {
	if _, err := tx.Exec(ctx, `DELETE FROM product_categories WHERE product_id = $1`, productID); err != nil {
		return fmt.Errorf("failed to clear product categories: %w", err)
	}

	if len(categories) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(categories))
	for i, c := range categories {
		ids[i] = c.ID
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO product_categories (product_id, category_id)
		SELECT $1, unnest($2::uuid[])
		ON CONFLICT DO NOTHING
	`, productID, ids)
	if err != nil {
		return fmt.Errorf("failed to set product categories: %w", err)
	}

	return nil
}

func scanProduct(row pgx.CollectableRow) (*domain.Product, error) {
	p := &domain.Product{}
	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Price,
		&p.PrevPrice,
		&p.ShowDiscount,
		&p.IsListed,
		&p.UnitCount,
		&p.Images,
		&p.Description,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	return p, nil
}

// gallery keeps NOT NULL images columns from receiving a NULL array
func gallery(images []string) []string {
	if images == nil {
		return []string{}
	}
	return images
}
