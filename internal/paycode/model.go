package paycode

import "time"

const (
	// StatusActive means the code can still be fetched and redeemed.
	StatusActive = "active"
	// StatusUsed means the code was redeemed exactly once. Terminal.
	StatusUsed = "used"
	// StatusExpired means the code was observed past its expiry. Terminal.
	StatusExpired = "expired"
)

// PaymentCode is a payee-issued, time-bounded request for a fixed amount,
// redeemable at most once. TransactionID is empty until the code is used.
type PaymentCode struct {
	ID            string
	PayeeID       string
	Amount        int64
	Description   string
	Status        string
	TransactionID string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// Expired reports whether the code's expiry timestamp has passed at t.
func (c PaymentCode) Expired(t time.Time) bool {
	return !c.ExpiresAt.After(t)
}
