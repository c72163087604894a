package llm

import (
	"context"
	"strings"
)

// Canonical field names. They are the JSON keys the model is asked for and the labels used
// in "Partial success (missing: ...)".
const (
	FieldCustomer    = "Customer"
	FieldPartNumber  = "Part Number"
	FieldDescription = "Description"
)

// RequiredFields lists the fields in the order they are checked and reported.
var RequiredFields = []string{FieldCustomer, FieldPartNumber, FieldDescription}

// TravelerFields is the normalized shape we want from the model.
// A nil pointer means the key was absent from the response.
type TravelerFields struct {
	Customer    *string `json:"Customer,omitempty"`
	PartNumber  *string `json:"Part Number,omitempty"`
	Description *string `json:"Description,omitempty"`

	// Unrecognized lists response keys that map to no field.
	Unrecognized []string `json:"-"`
}

// HasField reports whether at least one canonical key is present.
func (f TravelerFields) HasField() bool {
	return f.Customer != nil || f.PartNumber != nil || f.Description != nil
}

// IsEmpty reports whether the model returned no keys at all.
func (f TravelerFields) IsEmpty() bool {
	return !f.HasField() && len(f.Unrecognized) == 0
}

// Get returns the value for a canonical field name and whether the key was present.
func (f TravelerFields) Get(name string) (string, bool) {
	var p *string
	switch name {
	case FieldCustomer:
		p = f.Customer
	case FieldPartNumber:
		p = f.PartNumber
	case FieldDescription:
		p = f.Description
	}
	if p == nil {
		return "", false
	}
	return *p, true
}

// Value returns the field value or "" when absent.
func (f TravelerFields) Value(name string) string {
	v, _ := f.Get(name)
	return v
}

// Missing returns the required fields that are absent or blank, in RequiredFields order.
func (f TravelerFields) Missing() []string {
	var missing []string
	for _, name := range RequiredFields {
		if strings.TrimSpace(f.Value(name)) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// Fields builds a fully populated record; handy for fakes and tests.
func Fields(customer, partNumber, description string) TravelerFields {
	return TravelerFields{Customer: &customer, PartNumber: &partNumber, Description: &description}
}

// ExtractRequest carries one document to the extraction service.
type ExtractRequest struct {
	Filename string
	Data     []byte // raw PDF bytes, never modified
	APIKey   string // per-batch credential; providers without keys ignore it
}

// FieldExtractor is the interface the batch pipeline depends on.
// A non-nil error means the call failed (transport, auth, service or unparseable output).
// A nil error with an empty record means the model answered with no fields.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (TravelerFields, []byte /*rawJSON*/, error)
}
