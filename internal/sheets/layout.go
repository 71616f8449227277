package sheets

import "fmt"

// Fixed sheet layout. One row per (store, product, option); columns L onward
// each hold the readings taken at one session timestamp.
const (
	colIndex           = 0  // A
	colStoreID         = 1  // B
	colProductID       = 2  // C
	colStoreName       = 4  // E
	colProductName     = 5  // F
	colPrice           = 6  // G
	colOptionName      = 7  // H
	colAdditionalPrice = 8  // I
	colStockStart      = 11 // L
)

// headerLabels is the fixed A1:L1 header row, written once when the sheet is
// empty. Stock column headers are raw KST timestamp strings appended after L.
var headerLabels = []interface{}{
	"인덱스", "store_id", "product_id", "", "store_name",
	"product_name", "price", "option_name", "additional_price", "", "", "",
}

// columnLetter converts a 0-based column index to its A1 letter form
// (0 -> A, 25 -> Z, 26 -> AA).
func columnLetter(n int) string {
	result := ""
	for n >= 0 {
		result = string(rune('A'+n%26)) + result
		n = n/26 - 1
	}
	return result
}

// cellString reads row[col] as a trimmed-nothing string; missing or nil
// cells read as "".
func cellString(row []interface{}, col int) string {
	if col >= len(row) || row[col] == nil {
		return ""
	}
	if s, ok := row[col].(string); ok {
		return s
	}
	return fmt.Sprintf("%v", row[col])
}
