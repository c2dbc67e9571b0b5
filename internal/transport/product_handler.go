package transport

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"product-catalog/internal/domain"
	"product-catalog/internal/gallery"
	"product-catalog/internal/middleware"
	"product-catalog/internal/service"
	"product-catalog/internal/upload"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FieldUnchangedImages is the multipart field listing the client paths to retain
const FieldUnchangedImages = "unchangedImgs"

// UpdateProductRequest represents the product field update payload
type UpdateProductRequest struct {
	ID           string           `json:"id" validate:"required,uuid"`
	Title        *string          `json:"title" validate:"omitnil,min=1"`
	Price        *decimal.Decimal `json:"price"`
	ShowDiscount *bool            `json:"showDiscount"`
	Description  *string          `json:"description"`
	UnitCount    *int             `json:"unitCount" validate:"omitnil,gte=0"`
	IsListed     *bool            `json:"isListed"`
	CategoryIDs  []string         `json:"categoryIds" validate:"omitempty,dive,uuid"`
}

// CategoryResponse represents a category attached to a product
type CategoryResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProductResponse represents product data. Images are client paths.
type ProductResponse struct {
	ID           string              `json:"id"`
	Title        string              `json:"title"`
	Price        decimal.NullDecimal `json:"price"`
	PrevPrice    decimal.NullDecimal `json:"prevPrice"`
	ShowDiscount bool                `json:"showDiscount"`
	IsListed     bool                `json:"isListed"`
	UnitCount    int                 `json:"unitCount"`
	Images       []string            `json:"images"`
	Description  *string             `json:"description"`
	Categories   []CategoryResponse  `json:"categories"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// ProductHandler handles HTTP requests for product operations
type ProductHandler struct {
	productService service.ProductService
	paths          gallery.Paths
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, paths gallery.Paths, maxUploadBytes int64, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		paths:          paths,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// RegisterRoutes registers all product routes. Reads are public; changes need
// an authenticated user that passes staffOnly.
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware, staffOnly func(http.Handler) http.Handler) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware, staffOnly)
			r.Post("/", h.Create)
			r.Patch("/", h.Update)
			r.Patch("/{id}/image", h.UpdateImages)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// List handles listing every product with its categories
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.productService.List(r.Context())
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	out := make([]ProductResponse, len(products))
	for i, p := range products {
		out[i] = h.toResponse(p)
	}

	middleware.RespondSuccess(w, http.StatusOK, out)
}

// Get handles fetching a single product
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	product, err := h.productService.Get(r.Context(), id)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	middleware.RespondSuccess(w, http.StatusOK, h.toResponse(product))
}

// Create handles product creation from a multipart form with optional images
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	form, err := upload.ParseForm(w, r, h.maxUploadBytes)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	defer form.RemoveAll()

	in, fieldErrs := parseCreateForm(form.Value)
	if len(fieldErrs) > 0 {
		middleware.RespondWithValidationErrors(w, fieldErrs)
		return
	}

	product, err := h.productService.Create(r.Context(), in, upload.Files(form))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	middleware.RespondSuccess(w, http.StatusCreated, h.toResponse(product))
}

// Update handles product field updates and category replacement
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateProductRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Product update validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Both were validated as UUIDs above
	in := service.UpdateInput{
		ID:           uuid.MustParse(req.ID),
		Title:        req.Title,
		Price:        req.Price,
		ShowDiscount: req.ShowDiscount,
		Description:  req.Description,
		UnitCount:    req.UnitCount,
		IsListed:     req.IsListed,
		CategoryIDs:  make([]uuid.UUID, len(req.CategoryIDs)),
	}
	for i, id := range req.CategoryIDs {
		in.CategoryIDs[i] = uuid.MustParse(id)
	}

	product, err := h.productService.Update(r.Context(), in)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	middleware.RespondSuccess(w, http.StatusOK, h.toResponse(product))
}

// UpdateImages handles gallery replacement: retained client paths plus new uploads
func (h *ProductHandler) UpdateImages(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	form, err := upload.ParseForm(w, r, h.maxUploadBytes)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	defer form.RemoveAll()

	product, err := h.productService.UpdateImages(r.Context(), id, retainedPaths(form.Value), upload.Files(form))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	middleware.RespondSuccess(w, http.StatusOK, h.toResponse(product))
}

// Delete handles product deletion
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	if err := h.productService.Delete(r.Context(), id); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) productID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "Missing or wrong parameters")
		return uuid.Nil, false
	}
	return id, true
}

// respondWithServiceError maps service and upload failures to status codes
func (h *ProductHandler) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		inputErr  *domain.InputError
		uploadErr *upload.Error
	)

	switch {
	case errors.Is(err, http.ErrNotMultipart):
		middleware.RespondWithError(w, http.StatusBadRequest, "multipart/form-data body required")
	case errors.As(err, &inputErr):
		middleware.RespondWithError(w, http.StatusBadRequest, inputErr.Message)
	case errors.As(err, &uploadErr):
		switch uploadErr.Kind {
		case upload.KindExtensionRejected:
			middleware.RespondWithError(w, http.StatusRequestEntityTooLarge, uploadErr.Message)
		case upload.KindDecoderInternal:
			h.logger.Error("Upload decoding failed", zap.String("path", r.URL.Path), zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, uploadErr.Message)
		default:
			h.logger.Error("Upload failed", zap.String("path", r.URL.Path), zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, uploadErr.Message)
		}
	default:
		h.logger.Error("Product request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		middleware.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *ProductHandler) toResponse(p *domain.Product) ProductResponse {
	categories := make([]CategoryResponse, len(p.Categories))
	for i, c := range p.Categories {
		categories[i] = CategoryResponse{ID: c.ID.String(), Name: c.Name}
	}

	return ProductResponse{
		ID:           p.ID.String(),
		Title:        p.Title,
		Price:        p.Price,
		PrevPrice:    p.PrevPrice,
		ShowDiscount: p.ShowDiscount,
		IsListed:     p.IsListed,
		UnitCount:    p.UnitCount,
		Images:       h.paths.ClientPaths(p.Images),
		Description:  p.Description,
		Categories:   categories,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

// retainedPaths collects the unchangedImgs values into a fresh slice. A single
// value and a repeated field both arrive as a list.
func retainedPaths(values map[string][]string) []string {
	return slices.Concat(values[FieldUnchangedImages], values[FieldUnchangedImages+"[]"])
}

// parseCreateForm reads the text fields of a create form. Absent fields keep
// their defaults; a missing title is left for the service to reject.
func parseCreateForm(values map[string][]string) (service.CreateInput, []middleware.ValidationError) {
	var (
		in   service.CreateInput
		errs []middleware.ValidationError
	)

	get := func(key string) (string, bool) {
		v, ok := values[key]
		if !ok || len(v) == 0 || v[0] == "" {
			return "", false
		}
		return v[0], true
	}
	invalid := func(field, message string) {
		errs = append(errs, middleware.ValidationError{Field: field, Message: message})
	}

	in.Title, _ = get("title")

	if v, ok := get("price"); ok {
		price, err := decimal.NewFromString(v)
		if err != nil {
			invalid("price", "Must be a number")
		} else {
			in.Price = decimal.NewNullDecimal(price)
		}
	}

	if v, ok := get("description"); ok {
		in.Description = &v
	}

	if v, ok := get("unitCount"); ok {
		n, err := strconv.Atoi(v)
		switch {
		case err != nil:
			invalid("unitCount", "Must be an integer")
		case n < 0:
			invalid("unitCount", "Value must be greater than or equal to 0")
		default:
			in.UnitCount = n
		}
	}

	for field, dst := range map[string]*bool{"showDiscount": &in.ShowDiscount, "isListed": &in.IsListed} {
		if v, ok := get(field); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				invalid(field, "Must be true or false")
				continue
			}
			*dst = b
		}
	}

	return in, errs
}
