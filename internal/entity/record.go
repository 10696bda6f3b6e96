package entity

// Party identifies the provider or the customer of an invoice.
type Party struct {
	Name    *string `json:"name"`
	TaxID   *string `json:"tax_id"`
	Address *string `json:"address"`
}

// ServiceLine is one billed service.
type ServiceLine struct {
	Description *string `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitValue   float64 `json:"unit_value"`
	TotalValue  float64 `json:"total_value"`
}

// Amounts holds the monetary totals of an invoice. Unparseable values are 0.
type Amounts struct {
	ServiceAmount   float64 `json:"service_amount"`
	DeductionAmount float64 `json:"deduction_amount"`
	TaxAmount       float64 `json:"tax_amount"`
	NetAmount       float64 `json:"net_amount"`
}

// ExtractedRecord is the structured result of one invoice extraction.
type ExtractedRecord struct {
	IssueDate     *string       `json:"issue_date"`
	InvoiceNumber *string       `json:"invoice_number"`
	Provider      Party         `json:"provider"`
	Customer      Party         `json:"customer"`
	Services      []ServiceLine `json:"services"`
	Amounts       Amounts       `json:"amounts"`
}

// NewExtractedRecord returns a record with every optional field absent,
// all amounts zero and a single placeholder service line.
func NewExtractedRecord() *ExtractedRecord {
	return &ExtractedRecord{
		Services: []ServiceLine{{Quantity: 1}},
	}
}
