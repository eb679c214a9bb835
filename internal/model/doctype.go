package model

import "strings"

// DocumentType classifies a financial document.
type DocumentType string

const (
	DocTypeInvoice       DocumentType = "invoice"
	DocTypeReceipt       DocumentType = "receipt"
	DocTypeBankStatement DocumentType = "bank_statement"
	DocTypePurchaseOrder DocumentType = "purchase_order"
	DocTypeSalesOrder    DocumentType = "sales_order"
	DocTypeDeliveryNote  DocumentType = "delivery_note"
	DocTypeQuote         DocumentType = "quote"
	DocTypeContract      DocumentType = "contract"
	DocTypeTaxDocument   DocumentType = "tax_document"
	DocTypeOther         DocumentType = "other"
)

// AllDocumentTypes lists every valid document type.
var AllDocumentTypes = []DocumentType{
	DocTypeInvoice,
	DocTypeReceipt,
	DocTypeBankStatement,
	DocTypePurchaseOrder,
	DocTypeSalesOrder,
	DocTypeDeliveryNote,
	DocTypeQuote,
	DocTypeContract,
	DocTypeTaxDocument,
	DocTypeOther,
}

// ParseDocumentType maps a string to a DocumentType. Unknown or empty
// values fall back to DocTypeOther, which the pipeline skips.
func ParseDocumentType(s string) DocumentType {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, dt := range AllDocumentTypes {
		if s == string(dt) {
			return dt
		}
	}
	return DocTypeOther
}

// Valid reports whether dt is one of the known document types.
func (dt DocumentType) Valid() bool {
	for _, known := range AllDocumentTypes {
		if dt == known {
			return true
		}
	}
	return false
}

// Title returns the type in display form, e.g. "bank_statement" → "Bank Statement".
func (dt DocumentType) Title() string {
	parts := strings.Split(string(dt), "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
