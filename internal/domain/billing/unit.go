package billing

// BillingUnit is the measurement unit an invoice item is priced in
type BillingUnit string

const (
	UnitPerDay   BillingUnit = "PER_DAY"
	UnitPerMonth BillingUnit = "PER_MONTH"
	UnitPerHour  BillingUnit = "PER_HOUR"
	UnitQuantity BillingUnit = "QUANTITY"
)

// IsValid checks if the unit is a valid BillingUnit
func (u BillingUnit) IsValid() bool {
	switch u {
	case UnitPerDay, UnitPerMonth, UnitPerHour, UnitQuantity:
		return true
	}
	return false
}

// String returns the string representation of BillingUnit
func (u BillingUnit) String() string {
	return string(u)
}
