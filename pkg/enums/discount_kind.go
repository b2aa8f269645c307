package enums

// DiscountKind tells how a discount or coupon value is interpreted.
type DiscountKind string

const (
	// DiscountKindPercentage treats the value as a percent of the base amount.
	DiscountKindPercentage DiscountKind = "percentage"
	// DiscountKindFixed treats the value as an absolute amount in cents.
	DiscountKindFixed DiscountKind = "fixed"
)

func (k DiscountKind) IsValid() bool {
	switch k {
	case DiscountKindPercentage, DiscountKindFixed:
		return true
	}
	return false
}
