package httpapi

import (
	"github.com/go-playground/validator/v10"

	"github.com/dialfleet/dispatch-core/leasestore"
)

// bulkContactRequest is the body of POST /campaigns/{id}/contacts
// (spec §6 "bulk add; E.164 validated").
type bulkContactRequest struct {
	Contacts []contactPayload `json:"contacts" validate:"required,min=1,max=5000,dive"`
}

type contactPayload struct {
	ID          string `json:"id" validate:"required"`
	PhoneNumber string `json:"phoneNumber" validate:"required,e164"`
	Priority    string `json:"priority" validate:"required,oneof=high normal"`
}

func (p contactPayload) priority() leasestore.Priority {
	if p.Priority == "high" {
		return leasestore.High
	}
	return leasestore.Normal
}

var validate = validator.New()

// formatValidationErrors turns go-playground/validator's
// ValidationErrors into one "Field failed tag; ..." string the operator
// API returns under error.message, matching the field-level detail the
// medical-booking teacher's own CustomValidator formats.
func formatValidationErrors(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msg := ""
	for i, e := range verrs {
		if i > 0 {
			msg += "; "
		}
		msg += e.Field() + " failed " + e.Tag()
	}
	return msg
}
