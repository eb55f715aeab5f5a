package order

// Gateway payment statuses that drive order transitions.
const (
	PaymentApproved  = "approved"
	PaymentRejected  = "rejected"
	PaymentCancelled = "cancelled"
)

// paymentTransitions lists the statuses a payment notification may move an
// order into. paid and refunded are terminal for reconciliation.
var paymentTransitions = map[Status][]Status{
	StatusPending:   {StatusPending, StatusPaid, StatusCancelled},
	StatusCancelled: {StatusPaid},
	StatusPaid:      {},
	StatusRefunded:  {},
}

// StatusForPayment maps an authoritative gateway status to an order status.
func StatusForPayment(paymentStatus string) Status {
	switch paymentStatus {
	case PaymentApproved:
		return StatusPaid
	case PaymentRejected, PaymentCancelled:
		return StatusCancelled
	default:
		return StatusPending
	}
}

// Transition is the outcome of applying a payment status to an order.
type Transition struct {
	From Status
	To   Status
	// Write is set when status and payment id must be persisted.
	Write bool
	// Settled is set only when this notification moved the order into paid.
	// Stock and admin side effects run exactly when Settled is true.
	Settled bool
}

func canTransition(from, to Status) bool {
	for _, s := range paymentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ResolvePaymentTransition decides what a payment notification does to an
// order currently in status current.
func ResolvePaymentTransition(current, target Status) Transition {
	t := Transition{From: current, To: current}
	if canTransition(current, target) {
		t.To = target
		t.Write = true
	}
	t.Settled = t.Write && t.To == StatusPaid && t.From != StatusPaid
	return t
}
