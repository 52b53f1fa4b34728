package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Alp4ka/queryengine"
	"github.com/Alp4ka/queryengine/ginquery"
)

// productGetters reads the keyset sort fields of a product.
var productGetters = queryengine.Getters[Product]{
	"id":               func(p Product) any { return p.ID },
	"name":             func(p Product) any { return p.Name },
	"description":      func(p Product) any { return p.Description },
	"status":           func(p Product) any { return p.Status },
	"price":            func(p Product) any { return p.Price },
	"stock":            func(p Product) any { return p.Stock },
	"category_id":      func(p Product) any { return p.CategoryID },
	"supplier_id":      func(p Product) any { return p.SupplierID },
	"created_datetime": func(p Product) any { return p.CreatedDatetime },
}

// Handler serves the catalog endpoints.
type Handler struct {
	products   *queryengine.Engine[Product]
	categories *queryengine.Engine[Category]
	log        *zap.Logger
}

// NewHandler derives the product and category schemas from the models and
// builds one engine per model.
func NewHandler(db *gorm.DB, log *zap.Logger, opts ...queryengine.Option) (*Handler, error) {
	productSchema, err := queryengine.SchemaFromModel(db, &Product{})
	if err != nil {
		return nil, err
	}
	productSchema.WithDefaultSort("-created_datetime", "id")

	products, err := queryengine.New(db, productSchema, productGetters, opts...)
	if err != nil {
		return nil, err
	}

	categories, err := queryengine.New[Category](db, nil, nil, opts...)
	if err != nil {
		return nil, err
	}

	return &Handler{products: products, categories: categories, log: log}, nil
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	r.GET("/healthz", h.Health)

	products := r.Group("/products")
	{
		products.GET("", h.ListProducts)
		products.POST("/search", h.ListProducts)
		products.GET("/:id", h.GetProduct)
	}

	r.GET("/categories", h.ListCategories)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListProducts endpoint GET /products and POST /products/search
func (h *Handler) ListProducts(c *gin.Context) {
	req, err := ginquery.BindPaginationRequest(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp, err := h.products.Paginate(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetProduct endpoint GET /products/:id
func (h *Handler) GetProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	params := ginquery.BindQueryParams(c)
	params.Filters["id"] = id.String()

	product, err := h.products.Query(c.Request.Context(), params)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

// ListCategories endpoint GET /categories
func (h *Handler) ListCategories(c *gin.Context) {
	req, err := ginquery.BindPaginationRequest(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp, err := h.categories.Paginate(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) fail(c *gin.Context, err error) {
	ginquery.RespondError(c, err)

	if c.Writer.Status() >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
}
