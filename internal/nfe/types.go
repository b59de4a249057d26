// Package nfe classifies Brazilian electronic invoice (NFe) XML documents
// by authorization status and emission mode.
package nfe

// Category is the outcome bucket of a classified document.
type Category string

const (
	CategoryApproved    Category = "approved"
	CategoryContingency Category = "contingency"
	CategoryRejected    Category = "rejected"
	// CategoryMalformed is a rejection caused by a document that could not be parsed.
	CategoryMalformed Category = "malformed"
)

const (
	ParseErrorCode = "ERRO_PARSE"
	ParseErrorText = "XML invalido"

	StatusMissing = "N/A"
	ReasonMissing = "Motivo não encontrado"
)

// Outcome is the classification of one document. ReasonCode and
// ReasonText are only set for rejected and malformed documents.
type Outcome struct {
	Category   Category
	ReasonCode string
	ReasonText string
}

// Counted returns the bucket the outcome is counted and filed under.
// Malformed documents are rejections.
func (c Category) Counted() Category {
	if c == CategoryMalformed {
		return CategoryRejected
	}
	return c
}

// Rejected reports whether the outcome belongs in the rejection report.
func (o Outcome) Rejected() bool {
	return o.Category.Counted() == CategoryRejected
}

// Malformed is the outcome for a document that could not be parsed or read.
func Malformed() Outcome {
	return Outcome{Category: CategoryMalformed, ReasonCode: ParseErrorCode, ReasonText: ParseErrorText}
}
