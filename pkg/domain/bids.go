package domain

import (
	"encoding/json"
	"strings"
)

type Role string

const (
	RoleAuthority   Role = "AUTHORITY"
	RoleDeveloper   Role = "DEVELOPER"
	RoleBuyer       Role = "BUYER"
	RoleSlumDweller Role = "SLUM_DWELLER"
	RoleAHD         Role = "AHD" // affordable-housing developer
	RoleValuer      Role = "VALUER"
	RoleAuditor     Role = "AUDITOR"
	RoleContractor  Role = "CONTRACTOR"
)

type BidKind string

const (
	BidAsk         BidKind = "ASK"
	BidQuote       BidKind = "QUOTE"
	BidPreferences BidKind = "PREFERENCES"
	BidValuation   BidKind = "VALUATION"
)

type BidState string

const (
	BidDraft     BidState = "DRAFT"
	BidSubmitted BidState = "SUBMITTED"
	BidLocked    BidState = "LOCKED"
)

type BidAction string

const (
	BidSave   BidAction = "SAVE"
	BidSubmit BidAction = "SUBMIT"
)

// KindForRole maps a participant role to the one bid shape it may submit.
func KindForRole(role Role) (BidKind, bool) {
	switch role {
	case RoleDeveloper:
		return BidAsk, true
	case RoleBuyer:
		return BidQuote, true
	case RoleSlumDweller:
		return BidPreferences, true
	case RoleValuer:
		return BidValuation, true
	}
	return "", false
}

// ValidateBidPayload checks a raw payload before persistence. Numeric fields
// must be JSON numbers and strictly positive; preferences must be a non-empty
// set of non-blank strings. Unknown fields are preserved untouched.
func ValidateBidPayload(kind BidKind, payload map[string]any) error {
	switch kind {
	case BidAsk, BidQuote, BidValuation:
		if _, err := positiveNumber(payload, "price", true); err != nil {
			return err
		}
		if _, err := positiveNumber(payload, "units", false); err != nil {
			return err
		}
	case BidPreferences:
		raw, ok := payload["preferences"]
		if !ok {
			return &BidValueError{Field: "preferences", Reason: "required"}
		}
		list, ok := raw.([]any)
		if !ok || len(list) == 0 {
			return &BidValueError{Field: "preferences", Reason: "must be a non-empty list of strings"}
		}
		for _, item := range list {
			s, ok := item.(string)
			if !ok || strings.TrimSpace(s) == "" {
				return &BidValueError{Field: "preferences", Reason: "entries must be non-blank strings"}
			}
		}
	default:
		return &BidValueError{Field: "kind", Reason: "unsupported bid kind"}
	}
	return nil
}

func positiveNumber(payload map[string]any, field string, required bool) (float64, error) {
	raw, ok := payload[field]
	if !ok {
		if required {
			return 0, &BidValueError{Field: field, Reason: "required"}
		}
		return 0, nil
	}
	var n float64
	switch v := raw.(type) {
	case float64:
		n = v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, &BidValueError{Field: field, Reason: "must be numeric"}
		}
		n = f
	default:
		return 0, &BidValueError{Field: field, Reason: "must be numeric"}
	}
	if n <= 0 {
		return 0, &BidValueError{Field: field, Reason: "must be positive"}
	}
	return n, nil
}
