package shared

// DocumentMail asks the worker to e-mail a rendered document.
type DocumentMail struct {
	Kind       string `json:"kind"`
	DocumentID int64  `json:"document_id"`
	To         string `json:"to"`
	ActorID    int64  `json:"actor_id"`
}

// Document kinds carried by DocumentMail.
const (
	KindInvoice   = "invoice"
	KindQuotation = "quotation"
)
