package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	dealingapp "github.com/dealerdesk/backend/internal/application/dealing"
	"github.com/dealerdesk/backend/internal/domain/dealing"
	"github.com/dealerdesk/backend/internal/domain/shared"
	"github.com/dealerdesk/backend/internal/infrastructure/event"
	"github.com/dealerdesk/backend/internal/infrastructure/persistence"
	"github.com/dealerdesk/backend/tests/testutil"
)

// dealingFixture wires the real repositories and services over a
// containerized database, the way cmd/server does in production.
type dealingFixture struct {
	db              *TestDB
	dealerID        uuid.UUID
	vehicleID       uuid.UUID
	customerID      uuid.UUID
	deals           *dealingapp.DealService
	documents       *dealingapp.DocumentService
	saleMarker      *persistence.GormVehicleSaleMarker
	deliveredEvents *testutil.MockEventHandler
	cancelledEvents *testutil.MockEventHandler
}

func newDealingFixture(t *testing.T) *dealingFixture {
	t.Helper()

	tdb := NewTestDB(t)

	dealerID := uuid.New()
	vehicleID := uuid.New()
	customerID := uuid.New()

	now := time.Now()
	require.NoError(t, tdb.DB.Create(&persistence.DealerRecord{
		ID:            dealerID,
		Name:          "Harbour Road Motors",
		Address:       "1 Harbour Road, Bristol",
		Postcode:      "BS1 4QA",
		VATNumber:     "GB123456789",
		CompanyNumber: "01234567",
		CreatedAt:     now,
		UpdatedAt:     now,
	}).Error)
	require.NoError(t, tdb.DB.Create(&persistence.VehicleRecord{
		ID:           vehicleID,
		DealerID:     dealerID,
		Registration: "WX68 KPL",
		VIN:          "WVWZZZ1KZ8W123456",
		Make:         "Volkswagen",
		Model:        "Golf",
		Derivative:   "1.5 TSI Match",
		Mileage:      32000,
		SaleStatus:   persistence.VehicleSaleStatusAvailable,
		CreatedAt:    now,
		UpdatedAt:    now,
	}).Error)
	require.NoError(t, tdb.DB.Create(&persistence.ContactRecord{
		ID:        customerID,
		DealerID:  dealerID,
		Name:      "Priya Shah",
		Email:     "priya@example.com",
		Phone:     "07700900123",
		Address:   "14 Elm Grove, Bath",
		Postcode:  "BA1 2LN",
		CreatedAt: now,
		UpdatedAt: now,
	}).Error)

	dealRepo := persistence.NewGormDealRepository(tdb.DB)
	docRepo := persistence.NewGormSalesDocumentRepository(tdb.DB)
	shareRepo := persistence.NewGormShareLinkRepository(tdb.DB)
	sequences := persistence.NewGormSequenceAllocator(tdb.DB)
	facts := persistence.NewGormFactsProvider(tdb.DB)
	saleMarker := persistence.NewGormVehicleSaleMarker(tdb.DB)
	txManager := &persistence.Database{DB: tdb.DB}

	dealService := dealingapp.NewDealService(dealRepo, docRepo, sequences, txManager, facts)
	docService := dealingapp.NewDocumentService(docRepo, dealRepo, shareRepo, sequences, txManager, facts)

	log := zap.NewNop()
	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(dealingapp.NewDealDeliveredHandler(saleMarker, log))
	bus.Subscribe(dealingapp.NewDealCancelledHandler(saleMarker, log))

	deliveredEvents := testutil.NewMockEventHandler(dealing.EventTypeDealDelivered)
	cancelledEvents := testutil.NewMockEventHandler(dealing.EventTypeDealCancelled)
	bus.Subscribe(deliveredEvents)
	bus.Subscribe(cancelledEvents)

	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() {
		_ = bus.Stop(context.Background())
	})

	dealService.SetEventPublisher(bus)
	docService.SetEventPublisher(bus)

	return &dealingFixture{
		db:              tdb,
		dealerID:        dealerID,
		vehicleID:       vehicleID,
		customerID:      customerID,
		deals:           dealService,
		documents:       docService,
		saleMarker:      saleMarker,
		deliveredEvents: deliveredEvents,
		cancelledEvents: cancelledEvents,
	}
}

func (f *dealingFixture) vehicleSaleStatus(t *testing.T) string {
	t.Helper()
	var status string
	err := f.db.DB.Model(&persistence.VehicleRecord{}).
		Where("id = ?", f.vehicleID).
		Pluck("sale_status", &status).Error
	require.NoError(t, err)
	return status
}

func TestDealLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	f := newDealingFixture(t)
	ctx := context.Background()

	// Open the deal
	deal, err := f.deals.Create(ctx, f.dealerID, dealingapp.CreateDealRequest{
		VehicleID:   f.vehicleID,
		CustomerID:  &f.customerID,
		SaleType:    dealing.SaleTypeRetail,
		PaymentType: dealing.PaymentTypeCard,
		BuyerUse:    "PERSONAL",
		SaleChannel: dealing.SaleChannelInPerson,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deal.DealNumber)
	assert.Equal(t, dealing.DealStatusDraft, deal.Status)

	// Price under the margin scheme: the amount is the gross
	deal, err = f.deals.SetPricing(ctx, f.dealerID, deal.ID, dealingapp.SetPricingRequest{
		Scheme: dealing.VATSchemeMargin,
		Amount: decimal.NewFromInt(15995),
	})
	require.NoError(t, err)
	assert.True(t, deal.VehicleGross.Equal(decimal.NewFromInt(15995)))
	assert.True(t, deal.VehicleNet.IsZero())
	assert.True(t, deal.VehicleVAT.IsZero())

	// An add-on with standard VAT contributes net and VAT to the totals
	deal, err = f.deals.AddAddOn(ctx, f.dealerID, deal.ID, dealingapp.AddAddOnRequest{
		Name:         "Paint protection",
		Quantity:     1,
		UnitPriceNet: decimal.NewFromInt(200),
		VATTreatment: dealing.VATTreatmentStandard,
		VATRate:      decimal.NewFromFloat(0.20),
	})
	require.NoError(t, err)
	assert.True(t, deal.Totals.AddOnsNetTotal.Equal(decimal.NewFromInt(200)))
	assert.True(t, deal.Totals.AddOnsVATTotal.Equal(decimal.NewFromInt(40)))
	assert.True(t, deal.Totals.GrandTotal.Equal(decimal.NewFromInt(16235)))

	// Record a deposit and take it
	deal, err = f.deals.AddPayment(ctx, f.dealerID, deal.ID, dealingapp.AddPaymentRequest{
		Kind:   dealing.PaymentKindDeposit,
		Method: dealing.PaymentMethodCard,
		Amount: decimal.NewFromInt(500),
	})
	require.NoError(t, err)
	assert.True(t, deal.Totals.TotalDepositPaid.Equal(decimal.NewFromInt(500)))

	deal, err = f.deals.TakeDeposit(ctx, f.dealerID, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, dealing.DealStatusDepositTaken, deal.Status)
	require.NotNil(t, deal.DepositTakenAt)

	// Invoicing issues the invoice document atomically with the transition
	deal, invoice, err := f.deals.Invoice(ctx, f.dealerID, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, dealing.DealStatusInvoiced, deal.Status)
	require.NotNil(t, invoice)
	assert.Equal(t, dealing.DocumentTypeInvoice, invoice.Type)
	assert.Equal(t, int64(1), invoice.DocumentNumber)
	assert.Equal(t, dealing.DocumentStatusIssued, invoice.Status)

	// Delivery flips the deal and, through the event handler, the vehicle
	deal, err = f.deals.MarkDelivered(ctx, f.dealerID, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, dealing.DealStatusDelivered, deal.Status)
	assert.Equal(t, 1, f.deliveredEvents.HandledCount())
	assert.Equal(t, persistence.VehicleSaleStatusSold, f.vehicleSaleStatus(t))

	deal, err = f.deals.Complete(ctx, f.dealerID, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, dealing.DealStatusCompleted, deal.Status)

	// Completed deals are read-only for money
	_, err = f.deals.AddPayment(ctx, f.dealerID, deal.ID, dealingapp.AddPaymentRequest{
		Kind:   dealing.PaymentKindBalance,
		Method: dealing.PaymentMethodCard,
		Amount: decimal.NewFromInt(100),
	})
	require.Error(t, err)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_STATE", domainErr.Code)
}

func TestDealCancellationReleasesVehicle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	f := newDealingFixture(t)
	ctx := context.Background()

	deal, err := f.deals.Create(ctx, f.dealerID, dealingapp.CreateDealRequest{
		VehicleID:   f.vehicleID,
		CustomerID:  &f.customerID,
		SaleType:    dealing.SaleTypeRetail,
		PaymentType: dealing.PaymentTypeCash,
	})
	require.NoError(t, err)

	// Simulate the vehicle having been reserved by a prior transition
	require.NoError(t, f.saleMarker.MarkSold(ctx, f.dealerID, f.vehicleID))
	require.Equal(t, persistence.VehicleSaleStatusSold, f.vehicleSaleStatus(t))

	deal, err = f.deals.Cancel(ctx, f.dealerID, deal.ID, dealingapp.CancelDealRequest{
		Reason: "Customer withdrew",
	})
	require.NoError(t, err)
	assert.Equal(t, dealing.DealStatusCancelled, deal.Status)
	assert.Equal(t, "Customer withdrew", deal.CancelReason)

	assert.Equal(t, 1, f.cancelledEvents.HandledCount())
	assert.Equal(t, persistence.VehicleSaleStatusAvailable, f.vehicleSaleStatus(t))
}

func TestDealNumbersArePerDealer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	f := newDealingFixture(t)
	ctx := context.Background()

	first, err := f.deals.Create(ctx, f.dealerID, dealingapp.CreateDealRequest{
		VehicleID:   f.vehicleID,
		SaleType:    dealing.SaleTypeTrade,
		PaymentType: dealing.PaymentTypeBankTransfer,
	})
	require.NoError(t, err)
	second, err := f.deals.Create(ctx, f.dealerID, dealingapp.CreateDealRequest{
		VehicleID:   f.vehicleID,
		SaleType:    dealing.SaleTypeTrade,
		PaymentType: dealing.PaymentTypeBankTransfer,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.DealNumber)
	assert.Equal(t, int64(2), second.DealNumber)

	// A different dealer starts from one with its own vehicle
	otherDealer := uuid.New()
	otherVehicle := uuid.New()
	now := time.Now()
	require.NoError(t, f.db.DB.Create(&persistence.DealerRecord{
		ID: otherDealer, Name: "Second Site", CreatedAt: now, UpdatedAt: now,
	}).Error)
	require.NoError(t, f.db.DB.Create(&persistence.VehicleRecord{
		ID: otherVehicle, DealerID: otherDealer, Registration: "YA21 XRT",
		Make: "Ford", Model: "Fiesta", SaleStatus: persistence.VehicleSaleStatusAvailable,
		CreatedAt: now, UpdatedAt: now,
	}).Error)

	theirs, err := f.deals.Create(ctx, otherDealer, dealingapp.CreateDealRequest{
		VehicleID:   otherVehicle,
		SaleType:    dealing.SaleTypeRetail,
		PaymentType: dealing.PaymentTypeCash,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), theirs.DealNumber)

	// And cannot read the first dealer's deals
	_, err = f.deals.GetByID(ctx, otherDealer, first.ID)
	require.Error(t, err)
}

func TestShareLinkRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	f := newDealingFixture(t)
	ctx := context.Background()

	deal, err := f.deals.Create(ctx, f.dealerID, dealingapp.CreateDealRequest{
		VehicleID:   f.vehicleID,
		CustomerID:  &f.customerID,
		SaleType:    dealing.SaleTypeRetail,
		PaymentType: dealing.PaymentTypeCard,
	})
	require.NoError(t, err)
	_, err = f.deals.SetPricing(ctx, f.dealerID, deal.ID, dealingapp.SetPricingRequest{
		Scheme: dealing.VATSchemeMargin,
		Amount: decimal.NewFromInt(9995),
	})
	require.NoError(t, err)
	_, err = f.deals.AddPayment(ctx, f.dealerID, deal.ID, dealingapp.AddPaymentRequest{
		Kind:   dealing.PaymentKindDeposit,
		Method: dealing.PaymentMethodBankTransfer,
		Amount: decimal.NewFromInt(250),
	})
	require.NoError(t, err)

	receipt, err := f.documents.IssueDepositReceipt(ctx, f.dealerID, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, dealing.DocumentTypeDepositReceipt, receipt.Type)

	ttl := time.Hour
	link, err := f.documents.CreateShareLink(ctx, f.dealerID, receipt.ID, dealingapp.CreateShareLinkRequest{
		TTL: &ttl,
	})
	require.NoError(t, err)
	require.NotEmpty(t, link.Token)

	resolved, err := f.documents.ResolveShareToken(ctx, link.Token)
	require.NoError(t, err)
	assert.Equal(t, receipt.ID, resolved.ID)

	// Unknown and tampered tokens answer identically
	_, err = f.documents.ResolveShareToken(ctx, link.Token+"x")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = f.documents.ResolveShareToken(ctx, "not-a-token")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	// Voided documents stop resolving
	_, err = f.documents.Void(ctx, f.dealerID, receipt.ID, dealingapp.VoidDocumentRequest{
		Reason: "Issued against the wrong deal",
	})
	require.NoError(t, err)
	_, err = f.documents.ResolveShareToken(ctx, link.Token)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
