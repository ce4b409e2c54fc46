package dealing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIssueContext() IssueContext {
	return IssueContext{
		Vehicle: VehicleFacts{
			VehicleID:    uuid.New(),
			Registration: "AB12 CDE",
			VIN:          "WVWZZZ1KZ5W000001",
			Make:         "Volkswagen",
			Model:        "Golf",
			Mileage:      42000,
		},
		Customer: PartyFacts{
			Name:     "Jordan Smith",
			Email:    "jordan@example.com",
			Address:  "1 High Street",
			Postcode: "AB1 2CD",
		},
		Dealer: DealerFacts{
			DealerID:  uuid.New(),
			Name:      "Acme Motors Ltd",
			VATNumber: "GB123456789",
		},
		Terms: "Sold with 3 months warranty.",
	}
}

func invoicableDeal(t *testing.T) *Deal {
	t.Helper()
	deal := createTestDeal(t)
	setQualifyingPricing(t, deal, "10000")
	_, err := deal.AddAddOn("Paint Protection", 1, dec("200"), VATTreatmentStandard, dec("0.2"))
	require.NoError(t, err)
	addTestDeposit(t, deal, "500")
	return deal
}

func TestIssueInvoice(t *testing.T) {
	deal := invoicableDeal(t)

	doc, err := IssueInvoice(deal, 7, testIssueContext())
	require.NoError(t, err)
	assert.Equal(t, DocumentTypeInvoice, doc.Type)
	assert.Equal(t, DocumentStatusIssued, doc.Status)
	assert.Equal(t, int64(7), doc.DocumentNumber)
	assert.Equal(t, deal.DealerID(), doc.DealerID())
	assert.NotNil(t, doc.IssuedAt)
	require.NotNil(t, doc.DealID)
	assert.Equal(t, deal.ID, *doc.DealID)

	data, err := doc.DecodeInvoice()
	require.NoError(t, err)
	assert.Equal(t, deal.DealNumber, data.DealNumber)
	assert.True(t, dec("12000").Equal(data.Pricing.Gross))
	assert.True(t, dec("12240").Equal(data.Totals.GrandTotal))
	assert.True(t, dec("11740").Equal(data.Totals.BalanceDue))
	assert.Len(t, data.AddOns, 1)
	assert.Len(t, data.Payments, 1)
}

func TestIssueInvoice_Validation(t *testing.T) {
	deal := createTestDeal(t)

	_, err := IssueInvoice(deal, 1, testIssueContext())
	assert.ErrorContains(t, err, "VAT scheme")

	setQualifyingPricing(t, deal, "10000")
	ctx := testIssueContext()
	ctx.Customer = PartyFacts{}
	_, err = IssueInvoice(deal, 1, ctx)
	assert.ErrorContains(t, err, "Customer facts")

	_, err = IssueInvoice(deal, 0, testIssueContext())
	assert.ErrorContains(t, err, "Document number")
}

func TestSnapshotImmutability(t *testing.T) {
	// Mutating the source deal after issuance must not touch the snapshot
	deal := invoicableDeal(t)
	doc, err := IssueInvoice(deal, 3, testIssueContext())
	require.NoError(t, err)

	repriced, err := NewVehiclePricing(VATSchemeQualifying, dec("0.2"), dec("99999"))
	require.NoError(t, err)
	require.NoError(t, deal.SetPricing(repriced))
	_, err = deal.AddAddOn("Towbar", 1, dec("450"), VATTreatmentStandard, dec("0.2"))
	require.NoError(t, err)

	data, err := doc.DecodeInvoice()
	require.NoError(t, err)
	assert.True(t, dec("12000").Equal(data.Pricing.Gross))
	assert.True(t, dec("12240").Equal(data.Totals.GrandTotal))
	assert.Len(t, data.AddOns, 1)
}

func TestIssueDepositReceipt(t *testing.T) {
	deal := createTestDeal(t)
	setQualifyingPricing(t, deal, "10000")

	// No deposit yet
	_, err := IssueDepositReceipt(deal, 1, testIssueContext())
	assert.ErrorContains(t, err, "deposit payment is required")

	addTestDeposit(t, deal, "500")
	p2, err := deal.AddPayment(PaymentKindDeposit, PaymentMethodCash, dec("250"), "", time.Now())
	require.NoError(t, err)
	require.NoError(t, deal.RefundPayment(p2.ID))

	doc, err := IssueDepositReceipt(deal, 1, testIssueContext())
	require.NoError(t, err)

	data, err := doc.DecodeDepositReceipt()
	require.NoError(t, err)
	// Refunded deposits are excluded from the receipt
	assert.Len(t, data.Deposits, 1)
	assert.True(t, dec("500").Equal(data.Totals.TotalDepositPaid))
}

func TestIssuePaymentReceipt(t *testing.T) {
	deal := invoicableDeal(t)
	payment := deal.Payments[0]

	doc, err := IssuePaymentReceipt(deal, payment.ID, 4, testIssueContext())
	require.NoError(t, err)

	data, err := doc.DecodePaymentReceipt()
	require.NoError(t, err)
	assert.Equal(t, payment.ID, data.Payment.PaymentID)
	assert.True(t, dec("500").Equal(data.Payment.Amount))

	_, err = IssuePaymentReceipt(deal, uuid.New(), 5, testIssueContext())
	assert.ErrorContains(t, err, "not found")
}

func TestIssuePaymentReceipt_RefundedRejected(t *testing.T) {
	deal := invoicableDeal(t)
	p := deal.Payments[0]
	require.NoError(t, deal.RefundPayment(p.ID))

	_, err := IssuePaymentReceipt(deal, p.ID, 1, testIssueContext())
	assert.ErrorContains(t, err, "refunded payment")
}

func TestIssueSelfBillInvoice(t *testing.T) {
	dealerID := uuid.New()
	purchase := VehiclePurchase{
		Vehicle: VehicleFacts{
			VehicleID:    uuid.New(),
			Registration: "XY21 ZZZ",
			Make:         "Ford",
			Model:        "Fiesta",
			Mileage:      18000,
		},
		Seller:        PartyFacts{Name: "Sam Taylor"},
		PurchasePrice: dec("6500"),
		Settlement:    dec("1200"),
		PurchasedAt:   time.Now(),
	}

	doc, err := IssueSelfBillInvoice(dealerID, purchase, 11, DealerFacts{DealerID: dealerID, Name: "Acme Motors Ltd"}, "")
	require.NoError(t, err)
	assert.Equal(t, DocumentTypeSelfBillInvoice, doc.Type)
	assert.Nil(t, doc.DealID)
	require.NotNil(t, doc.VehicleID)

	data, err := doc.DecodeSelfBillInvoice()
	require.NoError(t, err)
	assert.True(t, dec("6500").Equal(data.PurchasePrice))
	assert.Equal(t, "Sam Taylor", data.Seller.Name)
}

func TestIssueSelfBillInvoice_Validation(t *testing.T) {
	dealerID := uuid.New()

	_, err := IssueSelfBillInvoice(dealerID, VehiclePurchase{
		Seller:        PartyFacts{Name: "Sam"},
		PurchasePrice: dec("100"),
	}, 1, DealerFacts{}, "")
	assert.ErrorContains(t, err, "Vehicle facts")

	_, err = IssueSelfBillInvoice(dealerID, VehiclePurchase{
		Vehicle:       VehicleFacts{VehicleID: uuid.New()},
		PurchasePrice: dec("100"),
	}, 1, DealerFacts{}, "")
	assert.ErrorContains(t, err, "Seller facts")

	_, err = IssueSelfBillInvoice(dealerID, VehiclePurchase{
		Vehicle:       VehicleFacts{VehicleID: uuid.New()},
		Seller:        PartyFacts{Name: "Sam"},
		PurchasePrice: decimal.Zero,
	}, 1, DealerFacts{}, "")
	assert.ErrorContains(t, err, "Purchase price")
}

func TestVoid(t *testing.T) {
	deal := invoicableDeal(t)
	doc, err := IssueInvoice(deal, 1, testIssueContext())
	require.NoError(t, err)

	err = doc.Void("")
	assert.ErrorContains(t, err, "reason is required")

	snapshotBefore := append([]byte(nil), doc.Snapshot...)
	require.NoError(t, doc.Void("price keyed in wrong"))
	assert.Equal(t, DocumentStatusVoid, doc.Status)
	assert.NotNil(t, doc.VoidedAt)
	assert.Equal(t, "price keyed in wrong", doc.VoidReason)

	// Number and snapshot survive voiding untouched
	assert.Equal(t, int64(1), doc.DocumentNumber)
	assert.Equal(t, snapshotBefore, []byte(doc.Snapshot))

	err = doc.Void("twice")
	assert.ErrorContains(t, err, "Cannot void")
}

func TestDecode_TypeMismatch(t *testing.T) {
	deal := invoicableDeal(t)
	doc, err := IssueInvoice(deal, 1, testIssueContext())
	require.NoError(t, err)

	_, err = doc.DecodeDepositReceipt()
	assert.ErrorContains(t, err, "not a deposit receipt")
	_, err = doc.DecodeSelfBillInvoice()
	assert.Error(t, err)
	_, err = doc.DecodePaymentReceipt()
	assert.Error(t, err)
}
