// Package handlers provides the HTTP layer: gin handlers that translate
// between JSON request/response envelopes and the service layer, and a
// server with graceful shutdown.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	e "github.com/gartstein/biztime/internal/biztime/errors"
	"github.com/gartstein/biztime/internal/biztime/models"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CompanyController defines the company operations the handlers invoke.
type CompanyController interface {
	ListCompanies(ctx context.Context) ([]models.Company, error)
	GetCompany(ctx context.Context, code string) (*models.CompanyDetail, []string, error)
	CreateCompany(ctx context.Context, name, description string) (*models.Company, error)
	UpdateCompany(ctx context.Context, code, name, description string) (*models.Company, error)
	DeleteCompany(ctx context.Context, code string) error
}

// InvoiceController defines the invoice operations the handlers invoke.
type InvoiceController interface {
	ListInvoices(ctx context.Context) ([]models.Invoice, error)
	GetInvoice(ctx context.Context, id int) (*models.Invoice, error)
	CreateInvoice(ctx context.Context, compCode string, amt models.Amount) (*models.Invoice, error)
	UpdateInvoice(ctx context.Context, id int, amt models.Amount) (*models.Invoice, error)
	DeleteInvoice(ctx context.Context, id int) error
}

// IndustryController defines the industry operations the handlers invoke.
type IndustryController interface {
	ListIndustries(ctx context.Context) (map[string][]string, error)
	CreateIndustry(ctx context.Context, name string) (*models.Industry, error)
	Associate(ctx context.Context, compCode, industryCode string) (*models.CompanyIndustry, error)
}

// Handler bundles the three services behind the HTTP routes.
type Handler struct {
	companies  CompanyController
	invoices   InvoiceController
	industries IndustryController
	logger     *zap.Logger
}

func NewHandler(companies CompanyController, invoices InvoiceController, industries IndustryController, logger *zap.Logger) *Handler {
	return &Handler{
		companies:  companies,
		invoices:   invoices,
		industries: industries,
		logger:     logger.Named("http_handler"),
	}
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "biztime-api"})
	})

	router.GET("/companies", h.ListCompanies)
	router.GET("/companies/:code", h.GetCompany)
	router.POST("/companies", h.CreateCompany)
	router.PUT("/companies/:code", h.UpdateCompany)
	router.DELETE("/companies/:code", h.DeleteCompany)

	router.GET("/invoices", h.ListInvoices)
	router.GET("/invoices/:id", h.GetInvoice)
	router.POST("/invoices", h.CreateInvoice)
	router.PUT("/invoices/:id", h.UpdateInvoice)
	router.DELETE("/invoices/:id", h.DeleteInvoice)

	router.GET("/industries", h.ListIndustries)
	router.POST("/industries", h.CreateIndustry)
	router.POST("/industries/company", h.AssociateIndustry)

	return router
}

// respondError maps service errors to the JSON error envelope. NotFound
// and Conflict get explicit statuses; everything else is a 500 with the
// error's message, matching the boundary's generic-failure policy.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, e.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, e.ErrDuplicateCode):
		status = http.StatusConflict
	case errors.Is(err, e.ErrInvalidInput):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err), zap.String("path", c.FullPath()))
	}
	c.JSON(status, gin.H{"error": gin.H{"message": err.Error(), "status": status}})
}

type companyRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) ListCompanies(c *gin.Context) {
	companies, err := h.companies.ListCompanies(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"companies": companies})
}

func (h *Handler) GetCompany(c *gin.Context) {
	code := c.Param("code")
	detail, industries, err := h.companies.GetCompany(c.Request.Context(), code)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"company": detail, "industries": industries})
}

func (h *Handler) CreateCompany(c *gin.Context) {
	var req companyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error(), "status": http.StatusBadRequest}})
		return
	}
	company, err := h.companies.CreateCompany(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"company": company})
}

func (h *Handler) UpdateCompany(c *gin.Context) {
	var req companyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error(), "status": http.StatusBadRequest}})
		return
	}
	company, err := h.companies.UpdateCompany(c.Request.Context(), c.Param("code"), req.Name, req.Description)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"company": company})
}

func (h *Handler) DeleteCompany(c *gin.Context) {
	if err := h.companies.DeleteCompany(c.Request.Context(), c.Param("code")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type createInvoiceRequest struct {
	CompCode string        `json:"comp_code"`
	Amt      models.Amount `json:"amt"`
}

type updateInvoiceRequest struct {
	Amt models.Amount `json:"amt"`
}

func (h *Handler) ListInvoices(c *gin.Context) {
	invoices, err := h.invoices.ListInvoices(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices})
}

func (h *Handler) GetInvoice(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		h.respondError(c, e.ErrNotFound)
		return
	}
	invoice, err := h.invoices.GetInvoice(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice": invoice})
}

func (h *Handler) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error(), "status": http.StatusBadRequest}})
		return
	}
	invoice, err := h.invoices.CreateInvoice(c.Request.Context(), req.CompCode, req.Amt)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"invoice": invoice})
}

func (h *Handler) UpdateInvoice(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		h.respondError(c, e.ErrNotFound)
		return
	}
	var req updateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error(), "status": http.StatusBadRequest}})
		return
	}
	invoice, err := h.invoices.UpdateInvoice(c.Request.Context(), id, req.Amt)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice": invoice})
}

func (h *Handler) DeleteInvoice(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		h.respondError(c, e.ErrNotFound)
		return
	}
	if err := h.invoices.DeleteInvoice(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type industryRequest struct {
	Name string `json:"name"`
}

type associateRequest struct {
	CompCode     string `json:"comp_code"`
	IndustryCode string `json:"industry_code"`
}

func (h *Handler) ListIndustries(c *gin.Context) {
	rollup, err := h.industries.ListIndustries(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"industries": rollup})
}

func (h *Handler) CreateIndustry(c *gin.Context) {
	var req industryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error(), "status": http.StatusBadRequest}})
		return
	}
	industry, err := h.industries.CreateIndustry(c.Request.Context(), req.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"industry": industry})
}

func (h *Handler) AssociateIndustry(c *gin.Context) {
	var req associateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error(), "status": http.StatusBadRequest}})
		return
	}
	assoc, err := h.industries.Associate(c.Request.Context(), req.CompCode, req.IndustryCode)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"company_industry_connection": assoc})
}
