package authflow

import (
	"fmt"
	"time"
)

// Money is an amount in minor currency units (hundredths of a unit).
// All pricing arithmetic is integer arithmetic.
type Money int64

// minorPerUnit is the number of minor units in one whole currency unit.
const minorPerUnit = 100

// MoneyFromUnits converts whole currency units to Money.
func MoneyFromUnits(units int64) Money {
	return Money(units * minorPerUnit)
}

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/minorPerUnit, v%minorPerUnit)
}

// CartLine is one service in the checkout cart.
type CartLine struct {
	ServiceID       string
	UnitPrice       Money
	DurationMinutes int
}

// CartSubtotal sums the cart's unit prices.
func CartSubtotal(lines []CartLine) Money {
	var total Money
	for _, line := range lines {
		total += line.UnitPrice
	}
	return total
}

// Offer is a promotional discount. The calculator treats it purely
// structurally; expiry is a selection-time concern for the caller, checked
// with Expired before the offer is ever passed in.
type Offer struct {
	ID              string
	DiscountPercent int
	ValidUntil      time.Time
}

// Expired reports whether the offer is past its validity window.
func (o Offer) Expired(now time.Time) bool {
	return now.After(o.ValidUntil)
}

// Loyalty tier thresholds. The tier is derived from accumulated points on
// every computation and never stored.
const (
	loyaltyGoldPoints    = 100
	loyaltyGoldPercent   = 20
	loyaltySilverPoints  = 50
	loyaltySilverPercent = 10
)

// LoyaltyTierPercent maps accrued points to a discount percentage.
func LoyaltyTierPercent(points int) int {
	switch {
	case points >= loyaltyGoldPoints:
		return loyaltyGoldPercent
	case points >= loyaltySilverPoints:
		return loyaltySilverPercent
	default:
		return 0
	}
}

// CheckoutBreakdown is the result of ComputeCheckout.
type CheckoutBreakdown struct {
	OfferDiscount   Money
	LoyaltyDiscount Money
	Total           Money
}

// roundHalfUpDiv divides n by d, rounding half away from zero toward
// positive infinity for non-negative n.
func roundHalfUpDiv(n, d int64) int64 {
	return (n + d/2) / d
}

// ComputeCheckout prices a cart subtotal against an optional offer and the
// customer's loyalty points. Both discounts apply against the original
// subtotal, never against each other's remainder. The total is rounded
// half-up to the nearest whole currency unit and clamped at zero.
func ComputeCheckout(subtotal Money, offer *Offer, loyaltyPoints int) CheckoutBreakdown {
	var breakdown CheckoutBreakdown

	if subtotal <= 0 {
		return breakdown
	}

	offerPercent := 0
	if offer != nil {
		offerPercent = offer.DiscountPercent
	}
	loyaltyPercent := LoyaltyTierPercent(loyaltyPoints)

	breakdown.OfferDiscount = Money(roundHalfUpDiv(int64(subtotal)*int64(offerPercent), 100))
	breakdown.LoyaltyDiscount = Money(roundHalfUpDiv(int64(subtotal)*int64(loyaltyPercent), 100))

	remaining := int64(subtotal) - int64(breakdown.OfferDiscount) - int64(breakdown.LoyaltyDiscount)
	if remaining <= 0 {
		breakdown.Total = 0
		return breakdown
	}

	breakdown.Total = Money(roundHalfUpDiv(remaining, minorPerUnit) * minorPerUnit)
	return breakdown
}
