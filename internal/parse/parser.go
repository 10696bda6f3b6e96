package parse

import (
	"fmt"

	"github.com/joseph-ayodele/nfse-reader/internal/entity"
	"github.com/joseph-ayodele/nfse-reader/internal/layout"
)

// setter stores one parsed region into the record.
type setter func(rec *entity.ExtractedRecord, raw string)

func optional(fn func(string) *string, dst func(*entity.ExtractedRecord) **string) setter {
	return func(rec *entity.ExtractedRecord, raw string) { *dst(rec) = fn(raw) }
}

func amount(dst func(*entity.ExtractedRecord) *float64) setter {
	return func(rec *entity.ExtractedRecord, raw string) { *dst(rec) = Money(raw) }
}

func stringParser(k layout.Kind) (func(string) *string, bool) {
	switch k {
	case layout.KindDate:
		return Date, true
	case layout.KindNumber:
		return Number, true
	case layout.KindText:
		return Text, true
	}
	return nil, false
}

// stringTargets maps record field paths to their storage.
var stringTargets = map[string]func(*entity.ExtractedRecord) **string{
	"issue_date":           func(r *entity.ExtractedRecord) **string { return &r.IssueDate },
	"invoice_number":       func(r *entity.ExtractedRecord) **string { return &r.InvoiceNumber },
	"provider.name":        func(r *entity.ExtractedRecord) **string { return &r.Provider.Name },
	"provider.tax_id":      func(r *entity.ExtractedRecord) **string { return &r.Provider.TaxID },
	"provider.address":     func(r *entity.ExtractedRecord) **string { return &r.Provider.Address },
	"customer.name":        func(r *entity.ExtractedRecord) **string { return &r.Customer.Name },
	"customer.tax_id":      func(r *entity.ExtractedRecord) **string { return &r.Customer.TaxID },
	"customer.address":     func(r *entity.ExtractedRecord) **string { return &r.Customer.Address },
	"services.description": func(r *entity.ExtractedRecord) **string { return &r.Services[0].Description },
}

var moneyTargets = map[string]func(*entity.ExtractedRecord) *float64{
	"amounts.service_amount":   func(r *entity.ExtractedRecord) *float64 { return &r.Amounts.ServiceAmount },
	"amounts.deduction_amount": func(r *entity.ExtractedRecord) *float64 { return &r.Amounts.DeductionAmount },
	"amounts.tax_amount":       func(r *entity.ExtractedRecord) *float64 { return &r.Amounts.TaxAmount },
	"amounts.net_amount":       func(r *entity.ExtractedRecord) *float64 { return &r.Amounts.NetAmount },
}

type binding struct {
	region string
	set    setter
}

// Parser turns the raw text of each layout region into an ExtractedRecord.
// It is pure: the same input always yields the same record.
type Parser struct {
	bindings []binding
}

// New builds a parser from the region table of l. Each region names the
// record field it fills and the kind of value it holds.
func New(l *layout.Layout) (*Parser, error) {
	p := &Parser{}
	for _, reg := range l.Regions {
		if reg.Field == "" {
			continue
		}
		if reg.Kind == layout.KindMoney {
			dst, ok := moneyTargets[reg.Field]
			if !ok {
				return nil, fmt.Errorf("region %q: %q is not a monetary field", reg.Name, reg.Field)
			}
			p.bindings = append(p.bindings, binding{region: reg.Name, set: amount(dst)})
			continue
		}
		fn, ok := stringParser(reg.Kind)
		if !ok {
			return nil, fmt.Errorf("region %q: unsupported kind %q", reg.Name, reg.Kind)
		}
		dst, ok := stringTargets[reg.Field]
		if !ok {
			return nil, fmt.Errorf("region %q: %q is not a text field", reg.Name, reg.Field)
		}
		p.bindings = append(p.bindings, binding{region: reg.Name, set: optional(fn, dst)})
	}
	return p, nil
}

// Default returns the parser for the built-in Fortaleza layout.
func Default() *Parser {
	p, err := New(layout.Fortaleza())
	if err != nil {
		panic(err)
	}
	return p
}

// Parse builds a record from raw region text. Missing regions are treated
// as empty text. Parse never fails.
func (p *Parser) Parse(raw map[string]string) *entity.ExtractedRecord {
	rec := entity.NewExtractedRecord()
	for _, b := range p.bindings {
		b.set(rec, raw[b.region])
	}
	return rec
}
