package controller

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gartstein/biztime/internal/biztime/db"
	e "github.com/gartstein/biztime/internal/biztime/errors"
	"github.com/gartstein/biztime/internal/biztime/events"
	"github.com/gartstein/biztime/internal/biztime/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// MockRepository implements the Repository interface for testing
type MockRepository struct {
	listCompanies           func(context.Context) ([]models.Company, error)
	getCompany              func(context.Context, string) (*models.Company, error)
	createCompany           func(context.Context, *models.Company) error
	updateCompany           func(context.Context, string, string, string) error
	deleteCompany           func(context.Context, string) error
	invoicesForCompany      func(context.Context, string) ([]models.Invoice, error)
	industryNamesForCompany func(context.Context, string) ([]string, error)
	listInvoices            func(context.Context) ([]models.Invoice, error)
	getInvoice              func(context.Context, int) (*models.Invoice, error)
	createInvoice           func(context.Context, *models.Invoice) error
	updateInvoiceAmount     func(context.Context, int, models.Amount) error
	deleteInvoice           func(context.Context, int) error
	createIndustry          func(context.Context, *models.Industry) error
	createAssociation       func(context.Context, *models.CompanyIndustry) error
	industryRollup          func(context.Context) (map[string][]string, error)
	withTransaction         func(context.Context, func(*db.Repository) error) error
}

func (m *MockRepository) ListCompanies(ctx context.Context) ([]models.Company, error) {
	return m.listCompanies(ctx)
}

func (m *MockRepository) GetCompany(ctx context.Context, code string) (*models.Company, error) {
	return m.getCompany(ctx, code)
}

func (m *MockRepository) CreateCompany(ctx context.Context, c *models.Company) error {
	return m.createCompany(ctx, c)
}

func (m *MockRepository) UpdateCompany(ctx context.Context, code, name, description string) error {
	return m.updateCompany(ctx, code, name, description)
}

func (m *MockRepository) DeleteCompany(ctx context.Context, code string) error {
	return m.deleteCompany(ctx, code)
}

func (m *MockRepository) InvoicesForCompany(ctx context.Context, code string) ([]models.Invoice, error) {
	return m.invoicesForCompany(ctx, code)
}

func (m *MockRepository) IndustryNamesForCompany(ctx context.Context, code string) ([]string, error) {
	return m.industryNamesForCompany(ctx, code)
}

func (m *MockRepository) ListInvoices(ctx context.Context) ([]models.Invoice, error) {
	return m.listInvoices(ctx)
}

func (m *MockRepository) GetInvoice(ctx context.Context, id int) (*models.Invoice, error) {
	return m.getInvoice(ctx, id)
}

func (m *MockRepository) CreateInvoice(ctx context.Context, inv *models.Invoice) error {
	return m.createInvoice(ctx, inv)
}

func (m *MockRepository) UpdateInvoiceAmount(ctx context.Context, id int, amt models.Amount) error {
	return m.updateInvoiceAmount(ctx, id, amt)
}

func (m *MockRepository) DeleteInvoice(ctx context.Context, id int) error {
	return m.deleteInvoice(ctx, id)
}

func (m *MockRepository) CreateIndustry(ctx context.Context, ind *models.Industry) error {
	return m.createIndustry(ctx, ind)
}

func (m *MockRepository) CreateAssociation(ctx context.Context, assoc *models.CompanyIndustry) error {
	return m.createAssociation(ctx, assoc)
}

func (m *MockRepository) IndustryRollup(ctx context.Context) (map[string][]string, error) {
	return m.industryRollup(ctx)
}

func (m *MockRepository) WithTransaction(ctx context.Context, fn func(*db.Repository) error) error {
	return m.withTransaction(ctx, fn)
}

func (m *MockRepository) Close() error {
	return nil
}

// MockProducer records produced events and signals the wait group.
type MockProducer struct {
	mu             sync.Mutex
	producedEvents []events.EventType
	wg             *sync.WaitGroup
}

func (m *MockProducer) Produce(eventType events.EventType, _ string, _ interface{}) {
	m.mu.Lock()
	m.producedEvents = append(m.producedEvents, eventType)
	m.mu.Unlock()
	if m.wg != nil {
		m.wg.Done()
	}
}

func (m *MockProducer) Types() []events.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.EventType(nil), m.producedEvents...)
}

func TestCompanyService_CreateCompany(t *testing.T) {
	tests := []struct {
		name          string
		inputName     string
		mockSetup     func(*MockRepository)
		expectedCode  string
		expectError   bool
		expectedError error
	}{
		{
			name:      "successful creation derives slug code",
			inputName: "Apple Computer",
			mockSetup: func(mr *MockRepository) {
				mr.createCompany = func(_ context.Context, c *models.Company) error {
					return nil
				}
			},
			expectedCode: "apple-computer",
		},
		{
			name:      "duplicate code",
			inputName: "Apple Computer",
			mockSetup: func(mr *MockRepository) {
				mr.createCompany = func(_ context.Context, _ *models.Company) error {
					return e.ErrDuplicateCode
				}
			},
			expectError:   true,
			expectedError: e.ErrDuplicateCode,
		},
		{
			name:      "repository error",
			inputName: "Apple Computer",
			mockSetup: func(mr *MockRepository) {
				mr.createCompany = func(_ context.Context, _ *models.Company) error {
					return errors.New("database error")
				}
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr := &MockRepository{}
			wg := &sync.WaitGroup{}
			mp := &MockProducer{wg: wg}
			tt.mockSetup(mr)
			if !tt.expectError {
				wg.Add(1)
			}

			svc := NewCompanyService(mr, mp, zaptest.NewLogger(t))
			company, err := svc.CreateCompany(context.Background(), tt.inputName, "a description")

			if tt.expectError {
				require.Error(t, err)
				if tt.expectedError != nil {
					assert.ErrorIs(t, err, tt.expectedError)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedCode, company.Code)
			assert.Equal(t, tt.inputName, company.Name)
			wg.Wait()
			assert.Equal(t, []events.EventType{events.CompanyCreated}, mp.Types())
		})
	}
}

// setupCompositeRepo backs the mock's WithTransaction with a real
// sqlite repository so the composite read path runs actual queries.
func setupCompositeRepo(t *testing.T) (*MockRepository, *db.Repository) {
	gdb, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	repo, err := db.NewRepositoryWithDB(gdb)
	require.NoError(t, err)

	mr := &MockRepository{
		withTransaction: func(ctx context.Context, fn func(*db.Repository) error) error {
			return fn(repo)
		},
	}
	return mr, repo
}

func TestCompanyService_GetCompany(t *testing.T) {
	mr, repo := setupCompositeRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateCompany(ctx, &models.Company{Code: "apple", Name: "Apple Computer", Description: "Maker of OSX."}))
	require.NoError(t, repo.CreateInvoice(ctx, &models.Invoice{CompCode: "apple", Amt: 100}))
	require.NoError(t, repo.CreateIndustry(ctx, &models.Industry{Code: "tech", Name: "Technology"}))
	require.NoError(t, repo.CreateAssociation(ctx, &models.CompanyIndustry{CompCode: "apple", IndustryCode: "tech"}))

	svc := NewCompanyService(mr, &MockProducer{}, zaptest.NewLogger(t))

	detail, industries, err := svc.GetCompany(ctx, "apple")
	require.NoError(t, err)
	assert.Equal(t, "apple", detail.Code)
	assert.Equal(t, "Apple Computer", detail.Name)
	require.Len(t, detail.Invoices, 1)
	assert.Equal(t, models.Amount(100), detail.Invoices[0].Amt)
	assert.Equal(t, []string{"Technology"}, industries)
}

func TestCompanyService_GetCompanyNotFound(t *testing.T) {
	mr, repo := setupCompositeRepo(t)
	ctx := context.Background()

	// Existence is judged by the company row, not by empty sub-queries.
	require.NoError(t, repo.CreateCompany(ctx, &models.Company{Code: "apple", Name: "Apple Computer"}))

	svc := NewCompanyService(mr, &MockProducer{}, zaptest.NewLogger(t))
	_, _, err := svc.GetCompany(ctx, "missing")
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestCompanyService_UpdateCompany(t *testing.T) {
	updated := &models.Company{Code: "apple", Name: "banana", Description: "a banana"}
	mr := &MockRepository{
		updateCompany: func(_ context.Context, code, name, description string) error {
			assert.Equal(t, "apple", code)
			assert.Equal(t, "banana", name)
			return nil
		},
		getCompany: func(_ context.Context, _ string) (*models.Company, error) {
			return updated, nil
		},
	}
	wg := &sync.WaitGroup{}
	wg.Add(1)
	mp := &MockProducer{wg: wg}

	svc := NewCompanyService(mr, mp, zaptest.NewLogger(t))
	got, err := svc.UpdateCompany(context.Background(), "apple", "banana", "a banana")
	require.NoError(t, err)
	assert.Equal(t, updated, got)
	wg.Wait()
	assert.Equal(t, []events.EventType{events.CompanyUpdated}, mp.Types())
}

func TestCompanyService_UpdateCompanyNotFound(t *testing.T) {
	mr := &MockRepository{
		updateCompany: func(_ context.Context, _, _, _ string) error {
			return e.ErrNotFound
		},
	}
	svc := NewCompanyService(mr, &MockProducer{}, zaptest.NewLogger(t))
	_, err := svc.UpdateCompany(context.Background(), "missing", "x", "y")
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestCompanyService_DeleteCompanyIdempotent(t *testing.T) {
	deleted := false
	mr := &MockRepository{
		getCompany: func(_ context.Context, _ string) (*models.Company, error) {
			return nil, e.ErrNotFound
		},
		deleteCompany: func(_ context.Context, _ string) error {
			deleted = true
			return nil
		},
	}
	mp := &MockProducer{}

	svc := NewCompanyService(mr, mp, zaptest.NewLogger(t))
	err := svc.DeleteCompany(context.Background(), "never-existed")
	assert.NoError(t, err, "deleting an absent company must succeed")
	assert.True(t, deleted, "the delete statement still runs")
	assert.Empty(t, mp.Types(), "no event for a no-op delete")
}

func TestCompanyService_DeleteCompanyProducesEvent(t *testing.T) {
	mr := &MockRepository{
		getCompany: func(_ context.Context, code string) (*models.Company, error) {
			return &models.Company{Code: code, Name: "Apple Computer"}, nil
		},
		deleteCompany: func(_ context.Context, _ string) error {
			return nil
		},
	}
	wg := &sync.WaitGroup{}
	wg.Add(1)
	mp := &MockProducer{wg: wg}

	svc := NewCompanyService(mr, mp, zaptest.NewLogger(t))
	require.NoError(t, svc.DeleteCompany(context.Background(), "apple"))
	wg.Wait()
	assert.Equal(t, []events.EventType{events.CompanyDeleted}, mp.Types())
}

func TestInvoiceService_CreateInvoice(t *testing.T) {
	tests := []struct {
		name          string
		mockSetup     func(*MockRepository)
		expectError   bool
		expectedError error
	}{
		{
			name: "successful creation",
			mockSetup: func(mr *MockRepository) {
				mr.createInvoice = func(_ context.Context, inv *models.Invoice) error {
					inv.ID = 7
					return nil
				}
			},
		},
		{
			name: "unknown company surfaces referential error",
			mockSetup: func(mr *MockRepository) {
				mr.createInvoice = func(_ context.Context, _ *models.Invoice) error {
					return e.ErrForeignKey
				}
			},
			expectError:   true,
			expectedError: e.ErrForeignKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr := &MockRepository{}
			wg := &sync.WaitGroup{}
			mp := &MockProducer{wg: wg}
			tt.mockSetup(mr)
			if !tt.expectError {
				wg.Add(1)
			}

			svc := NewInvoiceService(mr, mp, zaptest.NewLogger(t))
			invoice, err := svc.CreateInvoice(context.Background(), "apple", 123)

			if tt.expectError {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 7, invoice.ID)
			assert.False(t, invoice.Paid)
			assert.Nil(t, invoice.PaidDate)
			wg.Wait()
			assert.Equal(t, []events.EventType{events.InvoiceCreated}, mp.Types())
		})
	}
}

func TestInvoiceService_UpdateInvoice(t *testing.T) {
	var gotAmt models.Amount
	mr := &MockRepository{
		updateInvoiceAmount: func(_ context.Context, id int, amt models.Amount) error {
			gotAmt = amt
			return nil
		},
		getInvoice: func(_ context.Context, id int) (*models.Invoice, error) {
			return &models.Invoice{ID: id, CompCode: "apple", Amt: 555}, nil
		},
	}
	wg := &sync.WaitGroup{}
	wg.Add(1)
	mp := &MockProducer{wg: wg}

	svc := NewInvoiceService(mr, mp, zaptest.NewLogger(t))
	invoice, err := svc.UpdateInvoice(context.Background(), 1, 555)
	require.NoError(t, err)
	assert.Equal(t, models.Amount(555), gotAmt)
	assert.Equal(t, models.Amount(555), invoice.Amt)
	wg.Wait()
	assert.Equal(t, []events.EventType{events.InvoiceUpdated}, mp.Types())
}

func TestInvoiceService_UpdateInvoiceNotFound(t *testing.T) {
	mr := &MockRepository{
		updateInvoiceAmount: func(_ context.Context, _ int, _ models.Amount) error {
			return e.ErrNotFound
		},
	}
	svc := NewInvoiceService(mr, &MockProducer{}, zaptest.NewLogger(t))
	_, err := svc.UpdateInvoice(context.Background(), 12341234, 10)
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestInvoiceService_DeleteInvoiceIdempotent(t *testing.T) {
	mr := &MockRepository{
		getInvoice: func(_ context.Context, _ int) (*models.Invoice, error) {
			return nil, e.ErrNotFound
		},
		deleteInvoice: func(_ context.Context, _ int) error {
			return nil
		},
	}
	svc := NewInvoiceService(mr, &MockProducer{}, zaptest.NewLogger(t))
	assert.NoError(t, svc.DeleteInvoice(context.Background(), 12341234))
}

func TestIndustryService_CreateIndustry(t *testing.T) {
	mr := &MockRepository{
		createIndustry: func(_ context.Context, ind *models.Industry) error {
			assert.Equal(t, "machine-tooling", ind.Code)
			return nil
		},
	}
	wg := &sync.WaitGroup{}
	wg.Add(1)
	mp := &MockProducer{wg: wg}

	svc := NewIndustryService(mr, mp, zaptest.NewLogger(t))
	industry, err := svc.CreateIndustry(context.Background(), "Machine Tooling")
	require.NoError(t, err)
	assert.Equal(t, "machine-tooling", industry.Code)
	assert.Equal(t, "Machine Tooling", industry.Name)
	wg.Wait()
	assert.Equal(t, []events.EventType{events.IndustryCreated}, mp.Types())
}

func TestIndustryService_CreateIndustryDuplicate(t *testing.T) {
	mr := &MockRepository{
		createIndustry: func(_ context.Context, _ *models.Industry) error {
			return e.ErrDuplicateCode
		},
	}
	svc := NewIndustryService(mr, &MockProducer{}, zaptest.NewLogger(t))
	_, err := svc.CreateIndustry(context.Background(), "Technology")
	assert.ErrorIs(t, err, e.ErrDuplicateCode)
}

func TestIndustryService_Associate(t *testing.T) {
	tests := []struct {
		name          string
		repoErr       error
		expectedError error
	}{
		{"successful association", nil, nil},
		{"duplicate pair", e.ErrDuplicateCode, e.ErrDuplicateCode},
		{"missing referent", e.ErrForeignKey, e.ErrForeignKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr := &MockRepository{
				createAssociation: func(_ context.Context, assoc *models.CompanyIndustry) error {
					return tt.repoErr
				},
			}
			wg := &sync.WaitGroup{}
			mp := &MockProducer{wg: wg}
			if tt.repoErr == nil {
				wg.Add(1)
			}

			svc := NewIndustryService(mr, mp, zaptest.NewLogger(t))
			assoc, err := svc.Associate(context.Background(), "apple", "tech")
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "apple", assoc.CompCode)
			assert.Equal(t, "tech", assoc.IndustryCode)
			wg.Wait()
			assert.Equal(t, []events.EventType{events.IndustryAssociated}, mp.Types())
		})
	}
}

func TestIndustryService_ListIndustries(t *testing.T) {
	rollup := map[string][]string{
		"Technology": {"apple", "ibm"},
		"Accounting": {},
	}
	mr := &MockRepository{
		industryRollup: func(_ context.Context) (map[string][]string, error) {
			return rollup, nil
		},
	}
	svc := NewIndustryService(mr, &MockProducer{}, zaptest.NewLogger(t))
	got, err := svc.ListIndustries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rollup, got)
}
