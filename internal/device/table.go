package device

import (
	"fmt"
	"strings"
)

// Category is the role a detected input device plays for the kiosk.
type Category string

const (
	// CategoryRFID marks RFID/NFC card readers used to identify members.
	CategoryRFID Category = "rfid"
	// CategoryBarcode marks barcode scanners used to pick products.
	CategoryBarcode Category = "barcode"
)

// Rule maps a category to the lower-case name fragments identifying it.
type Rule struct {
	// Category is assigned when any keyword matches.
	Category Category `yaml:"category"`
	// Keywords are matched case-insensitively as substrings of the device name.
	Keywords []string `yaml:"keywords"`
}

// Table is an ordered list of rules; the first matching rule wins.
type Table []Rule

// DefaultTable returns the built-in vendor/model keyword sets.
func DefaultTable() Table {
	return Table{
		{
			Category: CategoryRFID,
			Keywords: []string{"rfid", "nfc", "reader", "sycreader", "acr", "mifare", "id_ic"},
		},
		{
			Category: CategoryBarcode,
			Keywords: []string{"barcode", "scanner", "honeywell", "zebra", "symbol", "datalogic", "point_of_sale"},
		},
	}
}

// Classify returns the category of the first rule with a keyword contained in name.
func (t Table) Classify(name string) (Category, bool) {
	lowered := strings.ToLower(name)

	for _, rule := range t {
		for _, keyword := range rule.Keywords {
			keyword = strings.ToLower(strings.TrimSpace(keyword))
			if keyword != "" && strings.Contains(lowered, keyword) {
				return rule.Category, true
			}
		}
	}

	return "", false
}

// Matches reports whether any rule of category has a keyword contained in name.
func (t Table) Matches(name string, category Category) bool {
	lowered := strings.ToLower(name)

	for _, rule := range t {
		if rule.Category != category {
			continue
		}

		for _, keyword := range rule.Keywords {
			keyword = strings.ToLower(strings.TrimSpace(keyword))
			if keyword != "" && strings.Contains(lowered, keyword) {
				return true
			}
		}
	}

	return false
}

// Validate reports rules without a category or without keywords.
func (t Table) Validate() error {
	for i, rule := range t {
		if rule.Category == "" {
			return &RuleError{Index: i, Reason: "category is empty"}
		}

		if len(rule.Keywords) == 0 {
			return &RuleError{Index: i, Reason: "no keywords"}
		}
	}

	return nil
}

// RuleError describes an invalid classification rule.
type RuleError struct {
	Index  int
	Reason string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("device rule #%d: %s", e.Index, e.Reason)
}
