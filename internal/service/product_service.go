package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"time"

	"product-catalog/internal/domain"
	"product-catalog/internal/gallery"
	"product-catalog/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	msgMissingTitle    = "Missing data"
	msgMissingParams   = "Missing or wrong parameters"
	msgUnknownProduct  = "There isn't any product with that id."
	msgNegativeUnits   = "unitCount must not be negative"
	defaultPersistTime = 15 * time.Second
)

// UploadDecoder stores an upload batch and returns the stored names in order.
type UploadDecoder interface {
	Decode(ctx context.Context, files []*multipart.FileHeader) ([]string, error)
}

// CreateInput holds the fields of a new product. Zero values are the defaults.
type CreateInput struct {
	Title        string
	Price        decimal.NullDecimal
	ShowDiscount bool
	Description  *string
	UnitCount    int
	IsListed     bool
}

// UpdateInput holds a field update. Nil fields keep their current value;
// CategoryIDs always replaces the association set.
type UpdateInput struct {
	ID           uuid.UUID
	Title        *string
	Price        *decimal.Decimal
	ShowDiscount *bool
	Description  *string
	UnitCount    *int
	IsListed     *bool
	CategoryIDs  []uuid.UUID
}

func (in UpdateInput) hasFields() bool {
	return in.Title != nil || in.Price != nil || in.ShowDiscount != nil ||
		in.Description != nil || in.UnitCount != nil || in.IsListed != nil
}

// ProductService defines the interface for product business logic
type ProductService interface {
	Create(ctx context.Context, in CreateInput, files []*multipart.FileHeader) (*domain.Product, error)
	Update(ctx context.Context, in UpdateInput) (*domain.Product, error)
	UpdateImages(ctx context.Context, id uuid.UUID, keep []string, files []*multipart.FileHeader) (*domain.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context) ([]*domain.Product, error)
}

type productService struct {
	products       repository.ProductRepository
	linker         *CategoryLinker
	decoder        UploadDecoder
	reconciler     *gallery.Reconciler
	collector      *GarbageCollector
	persistTimeout time.Duration
	logger         *zap.Logger
}

// NewProductService creates a new instance of ProductService
func NewProductService(
	products repository.ProductRepository,
	linker *CategoryLinker,
	decoder UploadDecoder,
	reconciler *gallery.Reconciler,
	collector *GarbageCollector,
	persistTimeout time.Duration,
	logger *zap.Logger,
) ProductService {
	if persistTimeout <= 0 {
		persistTimeout = defaultPersistTime
	}
	return &productService{
		products:       products,
		linker:         linker,
		decoder:        decoder,
		reconciler:     reconciler,
		collector:      collector,
		persistTimeout: persistTimeout,
		logger:         logger,
	}
}

// Create stores the uploaded files and inserts a product whose gallery is those files
func (s *productService) Create(ctx context.Context, in CreateInput, files []*multipart.FileHeader) (*domain.Product, error) {
	if in.Title == "" {
		return nil, domain.NewInputError(msgMissingTitle, nil)
	}
	if in.UnitCount < 0 {
		return nil, domain.NewInputError(msgNegativeUnits, nil)
	}

	uploaded, err := s.decoder.Decode(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("failed to decode uploads: %w", err)
	}

	plan := s.reconciler.ForCreate(uploaded)

	product := &domain.Product{
		ID:           uuid.New(),
		Title:        in.Title,
		Price:        in.Price,
		ShowDiscount: in.ShowDiscount,
		IsListed:     in.IsListed,
		UnitCount:    in.UnitCount,
		Images:       plan.Gallery,
		Description:  in.Description,
	}

	err = s.persist(ctx, func(ctx context.Context) error {
		return s.products.Create(ctx, product)
	})
	if err != nil {
		s.logLeakedUploads(product.ID, uploaded, err)
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.Int("images", len(product.Images)),
	)

	return s.reload(ctx, product.ID)
}

// Update writes the supplied fields and replaces the categories. The images
// column is not written, so a concurrent gallery change is never undone.
func (s *productService) Update(ctx context.Context, in UpdateInput) (*domain.Product, error) {
	if in.ID == uuid.Nil || !in.hasFields() || (in.Title != nil && *in.Title == "") {
		return nil, domain.NewInputError(msgMissingParams, nil)
	}
	if in.UnitCount != nil && *in.UnitCount < 0 {
		return nil, domain.NewInputError(msgNegativeUnits, nil)
	}

	product, err := s.load(ctx, in.ID)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		product.Title = *in.Title
	}
	if in.Price != nil {
		product.SetPrice(decimal.NewNullDecimal(*in.Price))
	}
	if in.ShowDiscount != nil {
		product.ShowDiscount = *in.ShowDiscount
	}
	if in.Description != nil {
		product.Description = in.Description
	}
	if in.UnitCount != nil {
		product.UnitCount = *in.UnitCount
	}
	if in.IsListed != nil {
		product.IsListed = *in.IsListed
	}

	categories, err := s.linker.Resolve(ctx, in.CategoryIDs)
	if err != nil {
		return nil, err
	}
	product.Categories = categories

	err = s.persist(ctx, func(ctx context.Context) error {
		return s.products.UpdateFields(ctx, product)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	return s.reload(ctx, product.ID)
}

// UpdateImages rebuilds the gallery from the retained client paths and the new
// uploads, persists it, then deletes the files it no longer references.
func (s *productService) UpdateImages(ctx context.Context, id uuid.UUID, keep []string, files []*multipart.FileHeader) (*domain.Product, error) {
	if id == uuid.Nil {
		return nil, domain.NewInputError(msgMissingParams, nil)
	}

	product, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	uploaded, err := s.decoder.Decode(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("failed to decode uploads: %w", err)
	}

	plan := s.reconciler.Reconcile(product.Images, keep, uploaded)
	product.Images = plan.Gallery

	err = s.persist(ctx, func(ctx context.Context) error {
		return s.products.UpdateGallery(ctx, product.ID, product.Images)
	})
	if err != nil {
		s.logLeakedUploads(product.ID, uploaded, err)
		return nil, fmt.Errorf("failed to update product images: %w", err)
	}

	// The new gallery is committed; orphans are unreferenced from here on.
	s.collect(ctx, product.ID, plan.Orphans)

	return s.reload(ctx, product.ID)
}

// Delete removes every gallery file, then the product, whatever the file outcomes
func (s *productService) Delete(ctx context.Context, id uuid.UUID) error {
	product, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	s.collect(ctx, product.ID, s.reconciler.ForDelete(product.Images).Orphans)

	err = s.persist(ctx, func(ctx context.Context) error {
		return s.products.Delete(ctx, product.ID)
	})
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return domain.NewInputError(msgUnknownProduct, err)
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}

	s.logger.Info("Product deleted", zap.String("product_id", product.ID.String()))
	return nil
}

func (s *productService) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, id, true)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, domain.NewInputError(msgUnknownProduct, err)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

func (s *productService) List(ctx context.Context) ([]*domain.Product, error) {
	products, err := s.products.FindAll(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *productService) load(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, id, false)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, domain.NewInputError(msgUnknownProduct, err)
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return product, nil
}

func (s *productService) reload(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, id, true)
	if err != nil {
		return nil, fmt.Errorf("failed to reload product: %w", err)
	}
	return product, nil
}

// persist runs a store write that request cancellation must not interrupt.
func (s *productService) persist(ctx context.Context, write func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()

	return write(ctx)
}

func (s *productService) collect(ctx context.Context, productID uuid.UUID, orphans []string) {
	if err := s.collector.Collect(ctx, orphans); err != nil {
		s.logger.Warn("Gallery cleanup incomplete",
			zap.String("product_id", productID.String()),
			zap.Error(err),
		)
	}
}

func (s *productService) logLeakedUploads(productID uuid.UUID, uploaded []string, err error) {
	if len(uploaded) == 0 {
		return
	}
	s.logger.Error("Product write failed, uploaded files left unreferenced",
		zap.String("product_id", productID.String()),
		zap.Strings("files", uploaded),
		zap.Error(err),
	)
}
