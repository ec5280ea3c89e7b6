// Package db implements the relational store adapter on top of GORM.
// All queries go through parameterized statements; gorm's translated
// errors are mapped to the service error taxonomy here so callers never
// see driver-specific failures.
package db

import (
	"context"
	"errors"
	"fmt"

	e "github.com/gartstein/biztime/internal/biztime/errors"
	"github.com/gartstein/biztime/internal/biztime/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func NewRepository(cfg *Config) (*Repository, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewRepositoryWithDB(gdb)
}

// NewRepositoryWithDB wraps an already-open gorm connection and runs
// migrations. Tests use it with an in-memory sqlite connection.
func NewRepositoryWithDB(gdb *gorm.DB) (*Repository, error) {
	if err := gdb.AutoMigrate(
		&models.Company{},
		&models.Invoice{},
		&models.Industry{},
		&models.CompanyIndustry{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Repository{db: gdb}, nil
}

// translate maps gorm's translated constraint errors onto the service
// error taxonomy. Anything unrecognized passes through untouched.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return e.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return e.ErrDuplicateCode
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return e.ErrForeignKey
	}
	return err
}

// Companies

func (r *Repository) ListCompanies(ctx context.Context) ([]models.Company, error) {
	var companies []models.Company
	result := r.db.WithContext(ctx).Order("code").Find(&companies)
	return companies, translate(result.Error)
}

func (r *Repository) GetCompany(ctx context.Context, code string) (*models.Company, error) {
	var company models.Company
	result := r.db.WithContext(ctx).First(&company, "code = ?", code)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	return &company, nil
}

func (r *Repository) CreateCompany(ctx context.Context, company *models.Company) error {
	return translate(r.db.WithContext(ctx).Create(company).Error)
}

// UpdateCompany replaces name and description wholesale; the code is
// immutable. A map is used so empty strings still overwrite.
func (r *Repository) UpdateCompany(ctx context.Context, code, name, description string) error {
	result := r.db.WithContext(ctx).Model(&models.Company{}).
		Where("code = ?", code).
		Updates(map[string]interface{}{"name": name, "description": description})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

// DeleteCompany is idempotent: zero rows affected is still success.
// This (and DeleteInvoice below) is the single decision point for
// delete semantics; update/get stay strict.
func (r *Repository) DeleteCompany(ctx context.Context, code string) error {
	return translate(r.db.WithContext(ctx).Delete(&models.Company{}, "code = ?", code).Error)
}

func (r *Repository) InvoicesForCompany(ctx context.Context, code string) ([]models.Invoice, error) {
	invoices := []models.Invoice{}
	result := r.db.WithContext(ctx).
		Where("comp_code = ?", code).
		Order("id").
		Find(&invoices)
	return invoices, translate(result.Error)
}

// IndustryNamesForCompany returns the distinct industry names a company
// is associated with.
func (r *Repository) IndustryNamesForCompany(ctx context.Context, code string) ([]string, error) {
	names := []string{}
	result := r.db.WithContext(ctx).Model(&models.Industry{}).
		Distinct().
		Joins("JOIN company_industries ON company_industries.industry_code = industries.code").
		Where("company_industries.comp_code = ?", code).
		Order("industries.name").
		Pluck("industries.name", &names)
	return names, translate(result.Error)
}

// Invoices

func (r *Repository) ListInvoices(ctx context.Context) ([]models.Invoice, error) {
	invoices := []models.Invoice{}
	result := r.db.WithContext(ctx).Order("id").Find(&invoices)
	return invoices, translate(result.Error)
}

func (r *Repository) GetInvoice(ctx context.Context, id int) (*models.Invoice, error) {
	var invoice models.Invoice
	result := r.db.WithContext(ctx).First(&invoice, "id = ?", id)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	return &invoice, nil
}

func (r *Repository) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	return translate(r.db.WithContext(ctx).Create(invoice).Error)
}

// UpdateInvoiceAmount touches only amt; paid and paid_date are left as
// they are.
func (r *Repository) UpdateInvoiceAmount(ctx context.Context, id int, amt models.Amount) error {
	result := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("id = ?", id).
		Update("amt", amt)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteInvoice(ctx context.Context, id int) error {
	return translate(r.db.WithContext(ctx).Delete(&models.Invoice{}, "id = ?", id).Error)
}

// Industries

func (r *Repository) CreateIndustry(ctx context.Context, industry *models.Industry) error {
	return translate(r.db.WithContext(ctx).Create(industry).Error)
}

func (r *Repository) CreateAssociation(ctx context.Context, assoc *models.CompanyIndustry) error {
	return translate(r.db.WithContext(ctx).Create(assoc).Error)
}

// IndustryRollup returns every industry name mapped to the company codes
// associated with it. A single LEFT JOIN covers all industries at once;
// industries without companies still get an entry with an empty slice.
func (r *Repository) IndustryRollup(ctx context.Context) (map[string][]string, error) {
	var rows []struct {
		Name     string
		CompCode *string
	}
	result := r.db.WithContext(ctx).Model(&models.Industry{}).
		Select("industries.name AS name, company_industries.comp_code AS comp_code").
		Joins("LEFT JOIN company_industries ON company_industries.industry_code = industries.code").
		Order("industries.name, company_industries.comp_code").
		Scan(&rows)
	if result.Error != nil {
		return nil, translate(result.Error)
	}

	rollup := make(map[string][]string, len(rows))
	for _, row := range rows {
		if _, ok := rollup[row.Name]; !ok {
			rollup[row.Name] = []string{}
		}
		if row.CompCode != nil {
			rollup[row.Name] = append(rollup[row.Name], *row.CompCode)
		}
	}
	return rollup, nil
}

func (r *Repository) WithTransaction(ctx context.Context, fn func(repo *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
