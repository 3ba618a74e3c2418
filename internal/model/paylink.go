package model

// PaymentLinkCandidate is one anchor from the email HTML that may be the
// vendor's payment page. Ephemeral per extraction.
type PaymentLinkCandidate struct {
	URL        string
	AnchorText string
	Domain     string
	Context    string
	Score      float64
	Position   int
}

// LinkValidation is the outcome of the payment-link security checks.
type LinkValidation struct {
	FinalDomain string
	Errors      []string
	Warnings    []string
	IsValid     bool
}
