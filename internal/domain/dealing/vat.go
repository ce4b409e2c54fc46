package dealing

import (
	"github.com/dealerdesk/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// VATScheme represents the VAT treatment of the vehicle sale itself
type VATScheme string

const (
	VATSchemeMargin     VATScheme = "MARGIN"
	VATSchemeQualifying VATScheme = "VAT_QUALIFYING"
	VATSchemeNoVAT      VATScheme = "NO_VAT"
)

// IsValid checks if the scheme is a valid VATScheme
func (s VATScheme) IsValid() bool {
	switch s {
	case VATSchemeMargin, VATSchemeQualifying, VATSchemeNoVAT:
		return true
	}
	return false
}

// String returns the string representation of VATScheme
func (s VATScheme) String() string {
	return string(s)
}

// VATTreatment represents the VAT treatment of an individual line
type VATTreatment string

const (
	VATTreatmentStandard VATTreatment = "STANDARD"
	VATTreatmentNoVAT    VATTreatment = "NO_VAT"
	VATTreatmentZero     VATTreatment = "ZERO"
	VATTreatmentExempt   VATTreatment = "EXEMPT"
)

// IsValid checks if the treatment is a valid VATTreatment
func (t VATTreatment) IsValid() bool {
	switch t {
	case VATTreatmentStandard, VATTreatmentNoVAT, VATTreatmentZero, VATTreatmentExempt:
		return true
	}
	return false
}

// String returns the string representation of VATTreatment
func (t VATTreatment) String() string {
	return string(t)
}

// DefaultVATRate is the standard UK VAT rate
var DefaultVATRate = decimal.NewFromFloat(0.20)

// VATBreakdown is the result of splitting an amount into net and VAT parts.
// Invariant: Net + VAT == Gross to the penny.
type VATBreakdown struct {
	Net   decimal.Decimal
	VAT   decimal.Decimal
	Gross decimal.Decimal
}

// NetFromGross splits a gross amount into net and VAT under the given treatment.
// The net is rounded half-up to two decimal places and the VAT is derived by
// subtraction so the parts always sum back to the gross exactly.
func NetFromGross(gross decimal.Decimal, treatment VATTreatment, rate decimal.Decimal) (VATBreakdown, error) {
	if !treatment.IsValid() {
		return VATBreakdown{}, shared.NewDomainError("COMPUTATION_ERROR", "Unknown VAT treatment: "+string(treatment))
	}
	if gross.IsNegative() {
		return VATBreakdown{}, shared.NewDomainError("COMPUTATION_ERROR", "Gross amount cannot be negative")
	}
	if rate.IsNegative() {
		return VATBreakdown{}, shared.NewDomainError("COMPUTATION_ERROR", "VAT rate cannot be negative")
	}

	gross = gross.Round(2)
	if treatment != VATTreatmentStandard {
		return VATBreakdown{Net: gross, VAT: decimal.Zero, Gross: gross}, nil
	}

	net := gross.Div(decimal.NewFromInt(1).Add(rate)).Round(2)
	return VATBreakdown{
		Net:   net,
		VAT:   gross.Sub(net),
		Gross: gross,
	}, nil
}

// GrossFromNet is the inverse of NetFromGross: given a net amount it computes
// the gross and the VAT, rounding each derived value to two decimal places.
func GrossFromNet(net decimal.Decimal, treatment VATTreatment, rate decimal.Decimal) (VATBreakdown, error) {
	if !treatment.IsValid() {
		return VATBreakdown{}, shared.NewDomainError("COMPUTATION_ERROR", "Unknown VAT treatment: "+string(treatment))
	}
	if net.IsNegative() {
		return VATBreakdown{}, shared.NewDomainError("COMPUTATION_ERROR", "Net amount cannot be negative")
	}
	if rate.IsNegative() {
		return VATBreakdown{}, shared.NewDomainError("COMPUTATION_ERROR", "VAT rate cannot be negative")
	}

	net = net.Round(2)
	if treatment != VATTreatmentStandard {
		return VATBreakdown{Net: net, VAT: decimal.Zero, Gross: net}, nil
	}

	gross := net.Mul(decimal.NewFromInt(1).Add(rate)).Round(2)
	return VATBreakdown{
		Net:   net,
		VAT:   gross.Sub(net),
		Gross: gross,
	}, nil
}

// LineVAT computes the VAT owed on a line total under the line's treatment.
// Only STANDARD lines carry VAT; NO_VAT, ZERO and EXEMPT lines carry none.
func LineVAT(netTotal decimal.Decimal, treatment VATTreatment, rate decimal.Decimal) (decimal.Decimal, error) {
	if !treatment.IsValid() {
		return decimal.Zero, shared.NewDomainError("COMPUTATION_ERROR", "Unknown VAT treatment: "+string(treatment))
	}
	if netTotal.IsNegative() {
		return decimal.Zero, shared.NewDomainError("COMPUTATION_ERROR", "Net amount cannot be negative")
	}
	if rate.IsNegative() {
		return decimal.Zero, shared.NewDomainError("COMPUTATION_ERROR", "VAT rate cannot be negative")
	}
	if treatment != VATTreatmentStandard {
		return decimal.Zero, nil
	}
	return netTotal.Mul(rate).Round(2), nil
}
