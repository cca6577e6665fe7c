package validation

import (
	"testing"
)

func TestIsValidCountry(t *testing.T) {
	tests := []struct {
		code  string
		valid bool
	}{
		{"US", true},
		{"EG", true},
		{"GB", true},

		// Invalid cases
		{"us", false},
		{"USA", false},
		{"U", false},
		{"U1", false},
		{"", false},
	}

	for _, tc := range tests {
		result := IsValidCountry(tc.code)
		if result != tc.valid {
			t.Errorf("IsValidCountry(%q) = %v, want %v", tc.code, result, tc.valid)
		}
	}
}

func TestIsValidCurrency(t *testing.T) {
	tests := []struct {
		code  string
		valid bool
	}{
		{"USD", true},
		{"EGP", true},
		{"AED", true},

		// Invalid
		{"usd", false},
		{"US", false},
		{"DOLLARS", false},
		{"", false},
	}

	for _, tc := range tests {
		result := IsValidCurrency(tc.code)
		if result != tc.valid {
			t.Errorf("IsValidCurrency(%q) = %v, want %v", tc.code, result, tc.valid)
		}
	}
}

func TestIsValidCorridorID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"US_EG", true},
		{"UK_AE", true},

		// Invalid
		{"USEG", false},
		{"us_eg", false},
		{"US-EG", false},
		{"USA_EGY", false},
		{"", false},
	}

	for _, tc := range tests {
		result := IsValidCorridorID(tc.id)
		if result != tc.valid {
			t.Errorf("IsValidCorridorID(%q) = %v, want %v", tc.id, result, tc.valid)
		}
	}
}

func TestIsValidRole(t *testing.T) {
	for _, role := range []string{"BUYER", "TRAVELER"} {
		if !IsValidRole(role) {
			t.Errorf("IsValidRole(%q) = false, want true", role)
		}
	}
	for _, role := range []string{"buyer", "SELLER", "", "ADMIN"} {
		if IsValidRole(role) {
			t.Errorf("IsValidRole(%q) = true, want false", role)
		}
	}
}

func TestSanitizeCountry(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"US", "US"},
		{"us", "US"},
		{"  eg  ", "EG"},
	}

	for _, tc := range tests {
		result := SanitizeCountry(tc.input)
		if result != tc.expected {
			t.Errorf("SanitizeCountry(%q) = %q, want %q", tc.input, result, tc.expected)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"hello", 10, "hello"},
		{"  hello  ", 10, "hello"},
		{"hello world", 5, "hello"},
		{"hello\x00world", 20, "helloworld"},
	}

	for _, tc := range tests {
		result := SanitizeString(tc.input, tc.maxLen)
		if result != tc.expected {
			t.Errorf("SanitizeString(%q, %d) = %q, want %q", tc.input, tc.maxLen, result, tc.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	// Test valid input
	errors := Validate(
		Required("userId", "u-1"),
		ValidCountry("origin", "US"),
		ValidRole("role", "BUYER"),
	)
	if len(errors) != 0 {
		t.Errorf("Expected no errors, got %v", errors)
	}

	// Test invalid input
	errors = Validate(
		Required("userId", ""),
		ValidCountry("origin", "USA"),
		ValidRole("role", "SELLER"),
	)
	if len(errors) != 3 {
		t.Errorf("Expected 3 errors, got %d", len(errors))
	}
}

func TestNonNegative(t *testing.T) {
	if err := NonNegative("itemValue", 100)(); err != nil {
		t.Error("Expected no error for positive value")
	}
	if err := NonNegative("itemValue", 0)(); err != nil {
		t.Error("Expected no error for zero")
	}
	if err := NonNegative("itemValue", -1)(); err == nil {
		t.Error("Expected error for negative value")
	}
}

func TestMaxLength(t *testing.T) {
	// Under limit
	err := MaxLength("field", "hello", 10)()
	if err != nil {
		t.Error("Expected no error for string under limit")
	}

	// At limit
	err = MaxLength("field", "hello", 5)()
	if err != nil {
		t.Error("Expected no error for string at limit")
	}

	// Over limit
	err = MaxLength("field", "hello world", 5)()
	if err == nil {
		t.Error("Expected error for string over limit")
	}
}
