package models

import (
	"encoding/json"
)

// IntakeForm is the structured complaint form. Sections that are not
// recognised are kept verbatim in Legacy so nothing submitted is lost.
type IntakeForm struct {
	PersonalInfo  *PersonalInfo              `json:"personal_info,omitempty"`
	ContactInfo   *ContactInfo               `json:"contact_info,omitempty"`
	Address       *PostalAddress             `json:"address,omitempty"`
	GovernmentIDs []GovernmentID             `json:"government_ids,omitempty"`
	IncidentInfo  *IncidentInfo              `json:"incident_info,omitempty"`
	ScammerInfo   *ScammerIdentifiers        `json:"scammer_info,omitempty"`
	Legacy        map[string]json.RawMessage `json:"legacy,omitempty"`
}

type PersonalInfo struct {
	FullName   string `json:"full_name,omitempty"`
	Age        int    `json:"age,omitempty"`
	Gender     string `json:"gender,omitempty"`
	Occupation string `json:"occupation,omitempty"`
}

type PostalAddress struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

type GovernmentID struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

type IncidentInfo struct {
	Platform      string `json:"platform,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	Channel       string `json:"channel,omitempty"`
}

var knownFormSections = map[string]bool{
	"personal_info":  true,
	"contact_info":   true,
	"address":        true,
	"government_ids": true,
	"incident_info":  true,
	"scammer_info":   true,
	"legacy":         true,
}

// UnmarshalJSON decodes the known sections and buckets the rest into Legacy
func (f *IntakeForm) UnmarshalJSON(data []byte) error {
	type form IntakeForm
	var decoded form
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	for key, value := range raw {
		if knownFormSections[key] {
			continue
		}
		if decoded.Legacy == nil {
			decoded.Legacy = make(map[string]json.RawMessage)
		}
		decoded.Legacy[key] = value
	}

	*f = IntakeForm(decoded)
	return nil
}

// ReporterName returns the best available display name for the reporter
func (f IntakeForm) ReporterName() string {
	if f.PersonalInfo != nil {
		return f.PersonalInfo.FullName
	}
	return ""
}
