package dealing

import (
	"context"
	"sync"

	"github.com/dealerdesk/backend/internal/domain/dealing"
	"github.com/dealerdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

// MockDealRepository is a mock implementation of DealRepository
type MockDealRepository struct {
	mock.Mock
}

func (m *MockDealRepository) FindByIDForDealer(ctx context.Context, dealerID, id uuid.UUID) (*dealing.Deal, error) {
	args := m.Called(ctx, dealerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dealing.Deal), args.Error(1)
}

func (m *MockDealRepository) FindByDealNumber(ctx context.Context, dealerID uuid.UUID, dealNumber int64) (*dealing.Deal, error) {
	args := m.Called(ctx, dealerID, dealNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dealing.Deal), args.Error(1)
}

func (m *MockDealRepository) FindAllForDealer(ctx context.Context, dealerID uuid.UUID, filter shared.Filter) ([]dealing.Deal, error) {
	args := m.Called(ctx, dealerID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dealing.Deal), args.Error(1)
}

func (m *MockDealRepository) FindByVehicle(ctx context.Context, dealerID, vehicleID uuid.UUID, filter shared.Filter) ([]dealing.Deal, error) {
	args := m.Called(ctx, dealerID, vehicleID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dealing.Deal), args.Error(1)
}

func (m *MockDealRepository) Save(ctx context.Context, deal *dealing.Deal) error {
	args := m.Called(ctx, deal)
	return args.Error(0)
}

func (m *MockDealRepository) SaveWithLock(ctx context.Context, deal *dealing.Deal) error {
	args := m.Called(ctx, deal)
	return args.Error(0)
}

func (m *MockDealRepository) SaveTx(tx *gorm.DB, deal *dealing.Deal) error {
	args := m.Called(tx, deal)
	return args.Error(0)
}

func (m *MockDealRepository) CountForDealer(ctx context.Context, dealerID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, dealerID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDealRepository) CountByStatus(ctx context.Context, dealerID uuid.UUID, status dealing.DealStatus) (int64, error) {
	args := m.Called(ctx, dealerID, status)
	return args.Get(0).(int64), args.Error(1)
}

// MockSalesDocumentRepository is a mock implementation of SalesDocumentRepository
type MockSalesDocumentRepository struct {
	mock.Mock
}

func (m *MockSalesDocumentRepository) FindByIDForDealer(ctx context.Context, dealerID, id uuid.UUID) (*dealing.SalesDocument, error) {
	args := m.Called(ctx, dealerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dealing.SalesDocument), args.Error(1)
}

func (m *MockSalesDocumentRepository) FindAllForDealer(ctx context.Context, dealerID uuid.UUID, filter shared.Filter) ([]dealing.SalesDocument, error) {
	args := m.Called(ctx, dealerID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dealing.SalesDocument), args.Error(1)
}

func (m *MockSalesDocumentRepository) FindByDeal(ctx context.Context, dealerID, dealID uuid.UUID) ([]dealing.SalesDocument, error) {
	args := m.Called(ctx, dealerID, dealID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dealing.SalesDocument), args.Error(1)
}

func (m *MockSalesDocumentRepository) HasIssuedInvoiceForDeal(ctx context.Context, dealerID, dealID uuid.UUID) (bool, error) {
	args := m.Called(ctx, dealerID, dealID)
	return args.Bool(0), args.Error(1)
}

func (m *MockSalesDocumentRepository) Save(ctx context.Context, doc *dealing.SalesDocument) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockSalesDocumentRepository) SaveTx(tx *gorm.DB, doc *dealing.SalesDocument) error {
	args := m.Called(tx, doc)
	return args.Error(0)
}

func (m *MockSalesDocumentRepository) CountForDealer(ctx context.Context, dealerID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, dealerID, filter)
	return args.Get(0).(int64), args.Error(1)
}

// MockShareLinkRepository is a mock implementation of ShareLinkRepository
type MockShareLinkRepository struct {
	mock.Mock
}

func (m *MockShareLinkRepository) Save(ctx context.Context, link *dealing.DocumentShareLink) error {
	args := m.Called(ctx, link)
	return args.Error(0)
}

func (m *MockShareLinkRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*dealing.DocumentShareLink, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dealing.DocumentShareLink), args.Error(1)
}

func (m *MockShareLinkRepository) DeleteForDocument(ctx context.Context, dealerID, documentID uuid.UUID) error {
	args := m.Called(ctx, dealerID, documentID)
	return args.Error(0)
}

// MockSequenceAllocator is a mock implementation of SequenceAllocator
type MockSequenceAllocator struct {
	mock.Mock
}

func (m *MockSequenceAllocator) Next(ctx context.Context, dealerID uuid.UUID, kind string) (int64, error) {
	args := m.Called(ctx, dealerID, kind)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSequenceAllocator) NextTx(tx *gorm.DB, dealerID uuid.UUID, kind string) (int64, error) {
	args := m.Called(tx, dealerID, kind)
	return args.Get(0).(int64), args.Error(1)
}

// memorySequenceAllocator is a thread-safe in-memory allocator used for
// concurrency tests
type memorySequenceAllocator struct {
	mu       sync.Mutex
	counters map[string]int64
}

func newMemorySequenceAllocator() *memorySequenceAllocator {
	return &memorySequenceAllocator{counters: make(map[string]int64)}
}

func (a *memorySequenceAllocator) Next(ctx context.Context, dealerID uuid.UUID, kind string) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := dealerID.String() + "/" + kind
	a.counters[key]++
	return a.counters[key], nil
}

func (a *memorySequenceAllocator) NextTx(tx *gorm.DB, dealerID uuid.UUID, kind string) (int64, error) {
	return a.Next(context.Background(), dealerID, kind)
}

// passthroughTxManager runs the function directly, no real transaction
type passthroughTxManager struct{}

func (passthroughTxManager) Transaction(fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

// stubFactsProvider returns canned master data
type stubFactsProvider struct {
	vehicle  dealing.VehicleFacts
	customer dealing.PartyFacts
	dealer   dealing.DealerFacts
}

func (s *stubFactsProvider) VehicleFacts(ctx context.Context, dealerID, vehicleID uuid.UUID) (dealing.VehicleFacts, error) {
	return s.vehicle, nil
}

func (s *stubFactsProvider) CustomerFacts(ctx context.Context, dealerID, customerID uuid.UUID) (dealing.PartyFacts, error) {
	return s.customer, nil
}

func (s *stubFactsProvider) DealerFacts(ctx context.Context, dealerID uuid.UUID) (dealing.DealerFacts, error) {
	return s.dealer, nil
}
