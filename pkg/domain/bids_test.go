package domain

import (
	"errors"
	"testing"
)

func TestKindForRole(t *testing.T) {
	cases := map[Role]BidKind{
		RoleDeveloper:   BidAsk,
		RoleBuyer:       BidQuote,
		RoleSlumDweller: BidPreferences,
		RoleValuer:      BidValuation,
	}
	for role, want := range cases {
		kind, ok := KindForRole(role)
		if !ok || kind != want {
			t.Fatalf("KindForRole(%s)=%s,%v want %s", role, kind, ok, want)
		}
	}
	if _, ok := KindForRole(RoleAuthority); ok {
		t.Fatal("authority must not have a bid kind")
	}
}

func TestValidateAskPayload(t *testing.T) {
	if err := ValidateBidPayload(BidAsk, map[string]any{"price": 1000000.0}); err != nil {
		t.Fatalf("valid ask rejected: %v", err)
	}
	if err := ValidateBidPayload(BidAsk, map[string]any{"price": 1000000.0, "units": 40.0}); err != nil {
		t.Fatalf("valid ask with units rejected: %v", err)
	}

	bad := []map[string]any{
		{},                                  // missing price
		{"price": 0.0},                      // non-positive
		{"price": -5.0},                     // negative
		{"price": "a lot"},                  // non-numeric
		{"price": 100.0, "units": 0.0},      // non-positive units
		{"price": 100.0, "units": "twelve"}, // non-numeric units
	}
	for i, payload := range bad {
		err := ValidateBidPayload(BidAsk, payload)
		var bve *BidValueError
		if !errors.As(err, &bve) {
			t.Fatalf("case %d: expected BidValueError, got %v", i, err)
		}
	}
}

func TestValidatePreferencesPayload(t *testing.T) {
	ok := map[string]any{"preferences": []any{"GROUND_FLOOR", "NEAR_SCHOOL"}}
	if err := ValidateBidPayload(BidPreferences, ok); err != nil {
		t.Fatalf("valid preferences rejected: %v", err)
	}

	bad := []map[string]any{
		{},                                  // missing
		{"preferences": []any{}},            // empty set
		{"preferences": "GROUND_FLOOR"},     // not a list
		{"preferences": []any{"ok", "  "}},  // blank entry
		{"preferences": []any{"ok", 12.0}},  // non-string entry
	}
	for i, payload := range bad {
		var bve *BidValueError
		if !errors.As(ValidateBidPayload(BidPreferences, payload), &bve) {
			t.Fatalf("case %d: expected BidValueError", i)
		}
	}
}

func TestValidateUnknownKind(t *testing.T) {
	var bve *BidValueError
	if !errors.As(ValidateBidPayload(BidKind("OFFER"), map[string]any{"price": 1.0}), &bve) {
		t.Fatal("expected BidValueError for unknown kind")
	}
}
