// Package controller implements the business logic for companies,
// invoices, and industry associations, orchestrating repository
// operations and sending lifecycle events.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gartstein/biztime/internal/biztime/db"
	e "github.com/gartstein/biztime/internal/biztime/errors"
	"github.com/gartstein/biztime/internal/biztime/events"
	"github.com/gartstein/biztime/internal/biztime/models"
	"github.com/gartstein/biztime/internal/biztime/slug"
	"go.uber.org/zap"
)

type EventProducer interface {
	Produce(eventType events.EventType, key string, entity interface{})
}

// Repository defines the storage interface the services operate on.
type Repository interface {
	ListCompanies(ctx context.Context) ([]models.Company, error)
	GetCompany(ctx context.Context, code string) (*models.Company, error)
	CreateCompany(ctx context.Context, company *models.Company) error
	UpdateCompany(ctx context.Context, code, name, description string) error
	DeleteCompany(ctx context.Context, code string) error
	InvoicesForCompany(ctx context.Context, code string) ([]models.Invoice, error)
	IndustryNamesForCompany(ctx context.Context, code string) ([]string, error)
	ListInvoices(ctx context.Context) ([]models.Invoice, error)
	GetInvoice(ctx context.Context, id int) (*models.Invoice, error)
	CreateInvoice(ctx context.Context, invoice *models.Invoice) error
	UpdateInvoiceAmount(ctx context.Context, id int, amt models.Amount) error
	DeleteInvoice(ctx context.Context, id int) error
	CreateIndustry(ctx context.Context, industry *models.Industry) error
	CreateAssociation(ctx context.Context, assoc *models.CompanyIndustry) error
	IndustryRollup(ctx context.Context) (map[string][]string, error)
	WithTransaction(ctx context.Context, fn func(repo *db.Repository) error) error
	Close() error
}

// CompanyService manages companies and their composite read view.
type CompanyService struct {
	repo     Repository
	producer EventProducer
	logger   *zap.Logger
}

func NewCompanyService(repo Repository, producer EventProducer, logger *zap.Logger) *CompanyService {
	return &CompanyService{
		repo:     repo,
		producer: producer,
		logger:   logger.Named("company_service"),
	}
}

// ListCompanies returns every company, ordered by code.
func (s *CompanyService) ListCompanies(ctx context.Context) ([]models.Company, error) {
	companies, err := s.repo.ListCompanies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	return companies, nil
}

// GetCompany assembles the composite view: the company row, its
// invoices, and its industry names. All three queries run inside one
// read transaction; existence is validated only after the sub-queries,
// against the company row itself.
func (s *CompanyService) GetCompany(ctx context.Context, code string) (*models.CompanyDetail, []string, error) {
	var (
		detail     *models.CompanyDetail
		industries []string
	)
	err := s.repo.WithTransaction(ctx, func(tx *db.Repository) error {
		company, companyErr := tx.GetCompany(ctx, code)
		if companyErr != nil && !errors.Is(companyErr, e.ErrNotFound) {
			return fmt.Errorf("failed to get company: %w", companyErr)
		}
		invoices, err := tx.InvoicesForCompany(ctx, code)
		if err != nil {
			return fmt.Errorf("failed to get invoices: %w", err)
		}
		names, err := tx.IndustryNamesForCompany(ctx, code)
		if err != nil {
			return fmt.Errorf("failed to get industries: %w", err)
		}
		if companyErr != nil {
			return companyErr
		}
		detail = &models.CompanyDetail{Company: *company, Invoices: invoices}
		industries = names
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return detail, industries, nil
}

// CreateCompany derives the code from the name and inserts the row.
// Slug collisions surface as a duplicate-code error from the store.
func (s *CompanyService) CreateCompany(ctx context.Context, name, description string) (*models.Company, error) {
	company := &models.Company{
		Code:        slug.Code(name),
		Name:        name,
		Description: description,
	}
	if err := s.repo.CreateCompany(ctx, company); err != nil {
		if errors.Is(err, e.ErrDuplicateCode) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create company: %w", err)
	}
	go func() {
		s.producer.Produce(events.CompanyCreated, company.Code, company)
	}()
	return company, nil
}

// UpdateCompany replaces name and description for an existing code.
func (s *CompanyService) UpdateCompany(ctx context.Context, code, name, description string) (*models.Company, error) {
	if err := s.repo.UpdateCompany(ctx, code, name, description); err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update company: %w", err)
	}

	updated, err := s.repo.GetCompany(ctx, code)
	if err != nil {
		s.logger.Error("failed to get company after update",
			zap.Error(err),
			zap.String("code", code),
		)
		return nil, err
	}
	go func() {
		s.producer.Produce(events.CompanyUpdated, code, updated)
	}()
	return updated, nil
}

// DeleteCompany removes a company by code. Absence is not an error:
// deletes acknowledge success whether or not a row existed.
func (s *CompanyService) DeleteCompany(ctx context.Context, code string) error {
	company, err := s.repo.GetCompany(ctx, code)
	if err != nil && !errors.Is(err, e.ErrNotFound) {
		return fmt.Errorf("failed to get company for deletion: %w", err)
	}

	if err := s.repo.DeleteCompany(ctx, code); err != nil {
		return fmt.Errorf("failed to delete company: %w", err)
	}

	if company != nil {
		go func() {
			s.producer.Produce(events.CompanyDeleted, code, company)
		}()
	}
	return nil
}

// InvoiceService manages invoice CRUD.
type InvoiceService struct {
	repo     Repository
	producer EventProducer
	logger   *zap.Logger
}

func NewInvoiceService(repo Repository, producer EventProducer, logger *zap.Logger) *InvoiceService {
	return &InvoiceService{
		repo:     repo,
		producer: producer,
		logger:   logger.Named("invoice_service"),
	}
}

func (s *InvoiceService) ListInvoices(ctx context.Context) ([]models.Invoice, error) {
	invoices, err := s.repo.ListInvoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}

func (s *InvoiceService) GetInvoice(ctx context.Context, id int) (*models.Invoice, error) {
	invoice, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return invoice, nil
}

// CreateInvoice inserts a new unpaid invoice. A comp_code that does not
// reference an existing company surfaces as a referential error from
// the store; it is not pre-validated here.
func (s *InvoiceService) CreateInvoice(ctx context.Context, compCode string, amt models.Amount) (*models.Invoice, error) {
	invoice := &models.Invoice{
		CompCode: compCode,
		Amt:      amt,
		Paid:     false,
	}
	if err := s.repo.CreateInvoice(ctx, invoice); err != nil {
		if errors.Is(err, e.ErrForeignKey) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}
	go func() {
		s.producer.Produce(events.InvoiceCreated, strconv.Itoa(invoice.ID), invoice)
	}()
	return invoice, nil
}

// UpdateInvoice changes only the amount; paid and paid_date are left
// untouched by this path.
func (s *InvoiceService) UpdateInvoice(ctx context.Context, id int, amt models.Amount) (*models.Invoice, error) {
	if err := s.repo.UpdateInvoiceAmount(ctx, id, amt); err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update invoice: %w", err)
	}

	updated, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		s.logger.Error("failed to get invoice after update",
			zap.Error(err),
			zap.Int("id", id),
		)
		return nil, err
	}
	go func() {
		s.producer.Produce(events.InvoiceUpdated, strconv.Itoa(id), updated)
	}()
	return updated, nil
}

// DeleteInvoice removes an invoice by id with the same idempotent
// semantics as company deletion.
func (s *InvoiceService) DeleteInvoice(ctx context.Context, id int) error {
	invoice, err := s.repo.GetInvoice(ctx, id)
	if err != nil && !errors.Is(err, e.ErrNotFound) {
		return fmt.Errorf("failed to get invoice for deletion: %w", err)
	}

	if err := s.repo.DeleteInvoice(ctx, id); err != nil {
		return fmt.Errorf("failed to delete invoice: %w", err)
	}

	if invoice != nil {
		go func() {
			s.producer.Produce(events.InvoiceDeleted, strconv.Itoa(id), invoice)
		}()
	}
	return nil
}

// IndustryService manages industries and their company associations.
type IndustryService struct {
	repo     Repository
	producer EventProducer
	logger   *zap.Logger
}

func NewIndustryService(repo Repository, producer EventProducer, logger *zap.Logger) *IndustryService {
	return &IndustryService{
		repo:     repo,
		producer: producer,
		logger:   logger.Named("industry_service"),
	}
}

// ListIndustries returns every industry name mapped to its associated
// company codes. Industries without companies map to an empty list.
func (s *IndustryService) ListIndustries(ctx context.Context) (map[string][]string, error) {
	rollup, err := s.repo.IndustryRollup(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list industries: %w", err)
	}
	return rollup, nil
}

// CreateIndustry derives the code from the name and inserts the row.
func (s *IndustryService) CreateIndustry(ctx context.Context, name string) (*models.Industry, error) {
	industry := &models.Industry{
		Code: slug.Code(name),
		Name: name,
	}
	if err := s.repo.CreateIndustry(ctx, industry); err != nil {
		if errors.Is(err, e.ErrDuplicateCode) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create industry: %w", err)
	}
	go func() {
		s.producer.Produce(events.IndustryCreated, industry.Code, industry)
	}()
	return industry, nil
}

// Associate links a company to an industry. A duplicate pair is a
// conflict; a missing referent is a referential error from the store.
func (s *IndustryService) Associate(ctx context.Context, compCode, industryCode string) (*models.CompanyIndustry, error) {
	assoc := &models.CompanyIndustry{
		CompCode:     compCode,
		IndustryCode: industryCode,
	}
	if err := s.repo.CreateAssociation(ctx, assoc); err != nil {
		if errors.Is(err, e.ErrDuplicateCode) || errors.Is(err, e.ErrForeignKey) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to associate industry: %w", err)
	}
	go func() {
		s.producer.Produce(events.IndustryAssociated, compCode+":"+industryCode, assoc)
	}()
	return assoc, nil
}
