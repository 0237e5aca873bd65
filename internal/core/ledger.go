package core

// Balance is a read-only view of a user's ledger row. With the
// reserve-deducts-immediately design, BalanceCents is what the user can
// spend right now; ReservedCents is held against in-flight jobs.
type Balance struct {
	UserID        string `json:"user_id"`
	BalanceCents  int64  `json:"balance_cents"`
	ReservedCents int64  `json:"reserved_cents"`
}
