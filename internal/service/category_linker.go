package service

import (
	"context"
	"fmt"

	"product-catalog/internal/domain"
	"product-catalog/internal/repository"

	"github.com/google/uuid"
)

// CategoryLinker turns requested category ids into the association set of a product.
type CategoryLinker struct {
	categories repository.CategoryRepository
}

// NewCategoryLinker creates a new instance of CategoryLinker
func NewCategoryLinker(categories repository.CategoryRepository) *CategoryLinker {
	return &CategoryLinker{categories: categories}
}

// Resolve returns the categories found for ids. No ids means no categories.
// Unknown ids are dropped without error.
func (l *CategoryLinker) Resolve(ctx context.Context, ids []uuid.UUID) ([]*domain.Category, error) {
	if len(ids) == 0 {
		return []*domain.Category{}, nil
	}

	categories, err := l.categories.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve categories: %w", err)
	}

	return categories, nil
}
