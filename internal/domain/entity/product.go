package entity

// Product is a read-only catalog entry. Prices are kept per currency in
// minor units (kopecks for RUB, whole stars for XTR).
type Product struct {
	Code                   string
	Name                   string
	Description            string
	PriceMinor             map[string]int64
	CreditsAmount          *int
	SubscriptionPeriodDays *int
	SubscriptionTier       *string
	Active                 bool
}

// PriceIn returns the product price in the given currency
func (p *Product) PriceIn(currency string) (int64, bool) {
	price, ok := p.PriceMinor[currency]
	return price, ok
}

// IsSubscription returns true if buying the product starts recurring billing
func (p *Product) IsSubscription() bool {
	return p.SubscriptionPeriodDays != nil && *p.SubscriptionPeriodDays > 0
}

// PeriodDays returns the billing period, zero for one-off products
func (p *Product) PeriodDays() int {
	if p.SubscriptionPeriodDays == nil {
		return 0
	}
	return *p.SubscriptionPeriodDays
}

// Credits returns the number of credits granted per purchase
func (p *Product) Credits() int {
	if p.CreditsAmount == nil {
		return 0
	}
	return *p.CreditsAmount
}
