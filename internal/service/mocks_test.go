package service

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"sync"
	"testing"
	"time"

	"product-catalog/internal/domain"
	"product-catalog/internal/gallery"
	"product-catalog/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errStoreDown = errors.New("store unavailable")

// Mock repositories for testing
type mockProductRepository struct {
	mu          sync.Mutex
	products    map[uuid.UUID]*domain.Product
	categories  map[uuid.UUID][]*domain.Category
	failUpdate  error
	failDelete  error
	beforeWrite func()
	writes      int
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{
		products:   make(map[uuid.UUID]*domain.Product),
		categories: make(map[uuid.UUID][]*domain.Category),
	}
}

func (m *mockProductRepository) seed(images ...string) *domain.Product {
	p := &domain.Product{ID: uuid.New(), Title: "Mug", Images: images}
	m.products[p.ID] = clone(p)
	return p
}

func (m *mockProductRepository) hook() {
	if m.beforeWrite != nil {
		fn := m.beforeWrite
		m.beforeWrite = nil
		fn()
	}
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.hook()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	m.writes++
	product.CreatedAt = time.Now()
	product.UpdatedAt = product.CreatedAt
	m.products[product.ID] = clone(product)
	m.categories[product.ID] = product.Categories
	return nil
}

// write runs the hook, then apply on the stored copy of id under the lock
func (m *mockProductRepository) write(ctx context.Context, id uuid.UUID, apply func(stored *domain.Product)) error {
	m.hook()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.failUpdate != nil {
		return m.failUpdate
	}
	stored, ok := m.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	m.writes++
	apply(stored)
	return nil
}

func (m *mockProductRepository) UpdateFields(ctx context.Context, product *domain.Product) error {
	return m.write(ctx, product.ID, func(stored *domain.Product) {
		images := stored.Images
		*stored = *clone(product)
		stored.Images = images
		m.categories[product.ID] = product.Categories
	})
}

func (m *mockProductRepository) UpdateGallery(ctx context.Context, id uuid.UUID, images []string) error {
	return m.write(ctx, id, func(stored *domain.Product) {
		stored.Images = append([]string{}, images...)
	})
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.failDelete != nil {
		return m.failDelete
	}
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	m.writes++
	delete(m.products, id)
	delete(m.categories, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID, withCategories bool) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	out := clone(p)
	if withCategories {
		out.Categories = append([]*domain.Category{}, m.categories[id]...)
	}
	return out, nil
}

func (m *mockProductRepository) FindAll(ctx context.Context, withCategories bool) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Product, 0, len(m.products))
	for id, p := range m.products {
		c := clone(p)
		if withCategories {
			c.Categories = append([]*domain.Category{}, m.categories[id]...)
		}
		out = append(out, c)
	}
	return out, nil
}

func clone(p *domain.Product) *domain.Product {
	c := *p
	c.Images = append([]string{}, p.Images...)
	c.Categories = nil
	return &c
}

type mockCategoryRepository struct {
	categories map[uuid.UUID]*domain.Category
	calls      int
}

func newMockCategoryRepository(names ...string) *mockCategoryRepository {
	m := &mockCategoryRepository{categories: make(map[uuid.UUID]*domain.Category)}
	for _, name := range names {
		c := &domain.Category{ID: uuid.New(), Name: name}
		m.categories[c.ID] = c
	}
	return m
}

func (m *mockCategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	m.categories[category.ID] = category
	return nil
}

func (m *mockCategoryRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Category, error) {
	m.calls++
	found := []*domain.Category{}
	for _, id := range ids {
		if c, ok := m.categories[id]; ok {
			found = append(found, c)
		}
	}
	return found, nil
}

func (m *mockCategoryRepository) ids() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(m.categories))
	for id := range m.categories {
		ids = append(ids, id)
	}
	return ids
}

// mockFileStore records deletions and fails for the names listed in fail
type mockFileStore struct {
	mu      sync.Mutex
	files   map[string]bool
	fail    map[string]error
	deleted []string
}

func newMockFileStore(names ...string) *mockFileStore {
	m := &mockFileStore{files: make(map[string]bool), fail: make(map[string]error)}
	for _, name := range names {
		m.files[name] = true
	}
	return m
}

func (m *mockFileStore) Store(ctx context.Context, ext string, r io.Reader) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := uuid.NewString() + ext
	m.files[name] = true
	return name, nil
}

func (m *mockFileStore) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	m.deleted = append(m.deleted, name)
	if err, ok := m.fail[name]; ok {
		return err
	}
	delete(m.files, name)
	return nil
}

func (m *mockFileStore) has(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[name]
}

func (m *mockFileStore) deletions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.deleted...)
}

// mockDecoder hands out one prepared batch per call and registers it in the store
type mockDecoder struct {
	store   *mockFileStore
	batches [][]string
	err     error
	calls   int
}

func (m *mockDecoder) Decode(ctx context.Context, files []*multipart.FileHeader) ([]string, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.batches) == 0 {
		return []string{}, nil
	}
	batch := m.batches[0]
	m.batches = m.batches[1:]
	for _, name := range batch {
		m.store.files[name] = true
	}
	return batch, nil
}

type mockLedger struct {
	mu      sync.Mutex
	pending map[string]bool
	failAdd error
}

func newMockLedger() *mockLedger {
	return &mockLedger{pending: make(map[string]bool)}
}

func (m *mockLedger) Add(ctx context.Context, names ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAdd != nil {
		return m.failAdd
	}
	for _, name := range names {
		m.pending[name] = true
	}
	return nil
}

func (m *mockLedger) Pending(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.pending))
	for name := range m.pending {
		out = append(out, name)
	}
	return out, nil
}

func (m *mockLedger) Remove(ctx context.Context, names ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range names {
		delete(m.pending, name)
	}
	return nil
}

type fixture struct {
	products   *mockProductRepository
	categories *mockCategoryRepository
	store      *mockFileStore
	decoder    *mockDecoder
	ledger     *mockLedger
	service    ProductService
}

func newFixture(t *testing.T, categoryNames ...string) *fixture {
	t.Helper()

	f := &fixture{
		products:   newMockProductRepository(),
		categories: newMockCategoryRepository(categoryNames...),
		store:      newMockFileStore(),
		ledger:     newMockLedger(),
	}
	f.decoder = &mockDecoder{store: f.store}

	logger := zap.NewNop()
	f.service = NewProductService(
		f.products,
		NewCategoryLinker(f.categories),
		f.decoder,
		gallery.NewReconciler(gallery.Paths{}),
		NewGarbageCollector(f.store, f.ledger, 4, time.Second, logger),
		time.Second,
		logger,
	)
	return f
}

// seed stores a product whose gallery files exist in the file store
func (f *fixture) seed(images ...string) *domain.Product {
	for _, name := range images {
		f.store.files[name] = true
	}
	return f.products.seed(images...)
}
