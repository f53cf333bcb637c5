package domain

// IntentStatus is the gateway's payment intent lifecycle code.
type IntentStatus int

const (
	StatusUnknown IntentStatus = iota
	StatusSucceeded
	StatusProcessing
	StatusRequiresPaymentMethod
	StatusRequiresConfirmation
	StatusRequiresAction
	StatusCanceled
)

// ParseIntentStatus maps the raw code. Codes outside the table are
// StatusUnknown; callers keep the raw string for display.
func ParseIntentStatus(raw string) IntentStatus {
	switch raw {
	case "succeeded":
		return StatusSucceeded
	case "processing":
		return StatusProcessing
	case "requires_payment_method":
		return StatusRequiresPaymentMethod
	case "requires_confirmation":
		return StatusRequiresConfirmation
	case "requires_action":
		return StatusRequiresAction
	case "canceled":
		return StatusCanceled
	default:
		return StatusUnknown
	}
}
