package sheets

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/sheets/v4"

	"naver_cart_stock/internal/session"
)

// reuseWindowMinutes folds readings taken within this many minutes of the
// sheet's newest column into that same column instead of minting a new one.
const reuseWindowMinutes = 15

// leadingNumberRe pulls the stock count back out of a rendered cell
// like "3715 (-3)".
var leadingNumberRe = regexp.MustCompile(`^(\d+)`)

// api is the slice of Client the store needs; tests substitute an in-memory
// grid.
type api interface {
	ReadAll(ctx context.Context) ([][]interface{}, error)
	UpdateCells(ctx context.Context, updates []CellUpdate) error
	AppendRow(ctx context.Context, row []interface{}) error
	ColumnCount(ctx context.Context) (int64, error)
	Resize(ctx context.Context, columns int64) error
	SetTextColor(ctx context.Context, row, col int, color *sheets.Color) error
}

// Reading is one inferred stock observation ready to persist.
type Reading struct {
	StoreID         string
	ProductID       string
	OptionName      string
	StoreName       string
	ProductName     string
	Price           *int
	AdditionalPrice int
	Stock           int
	Timestamp       string
}

// Store is the spreadsheet-backed persistence layer for stock readings.
// Rows are keyed by (store_id, product_id, option_name); columns by session
// timestamp with the 15-minute reuse rule. It is a single-writer design:
// concurrent external editors are not guarded against and the last writer
// wins.
type Store struct {
	api api
}

func NewStore(client *Client) *Store {
	return &Store{api: client}
}

// UpsertStore fills the store_name cell of every row belonging to storeID
// that does not have one yet. Existing names are never overwritten here.
func (s *Store) UpsertStore(ctx context.Context, storeID, storeName string) error {
	if storeID == "" || storeName == "" {
		return nil
	}

	data, err := s.api.ReadAll(ctx)
	if err != nil {
		return err
	}

	var updates []CellUpdate
	for i := 1; i < len(data); i++ {
		row := data[i]
		if cellString(row, colStoreID) != storeID {
			continue
		}
		if cellString(row, colStoreName) == "" {
			updates = append(updates, CellUpdate{Row: i, Col: colStoreName, Value: storeName})
		}
	}
	if len(updates) == 0 {
		return nil
	}

	log.Debug().Str("store_id", storeID).Int("rows", len(updates)).Msg("Filling store name")
	return s.api.UpdateCells(ctx, updates)
}

// UpsertProduct fills empty product_name and price cells of every row
// belonging to (storeID, productID).
func (s *Store) UpsertProduct(ctx context.Context, storeID, productID, productName string, price *int) error {
	if storeID == "" || productID == "" {
		return nil
	}

	data, err := s.api.ReadAll(ctx)
	if err != nil {
		return err
	}

	var updates []CellUpdate
	for i := 1; i < len(data); i++ {
		row := data[i]
		if cellString(row, colStoreID) != storeID || cellString(row, colProductID) != productID {
			continue
		}
		if productName != "" && cellString(row, colProductName) == "" {
			updates = append(updates, CellUpdate{Row: i, Col: colProductName, Value: productName})
		}
		if price != nil && cellString(row, colPrice) == "" {
			updates = append(updates, CellUpdate{Row: i, Col: colPrice, Value: strconv.Itoa(*price)})
		}
	}
	if len(updates) == 0 {
		return nil
	}

	log.Debug().
		Str("store_id", storeID).
		Str("product_id", productID).
		Int("cells", len(updates)).
		Msg("Filling product metadata")
	return s.api.UpdateCells(ctx, updates)
}

// WriteReading upserts one stock reading: locates or creates the row for the
// reading's option key, picks the target timestamp column against the whole
// sheet's newest column, computes the delta from the prior reading, and
// writes the rendered cell with its color override.
//
// The header and previous values are re-read on every call; nothing is
// cached between writes, so sibling writes within one run see each other's
// column decisions.
func (s *Store) WriteReading(ctx context.Context, r Reading) error {
	if r.StoreID == "" || r.ProductID == "" || r.OptionName == "" {
		return fmt.Errorf("reading is missing its option key: %q/%q/%q", r.StoreID, r.ProductID, r.OptionName)
	}
	if r.Timestamp == "" {
		return fmt.Errorf("reading has no timestamp")
	}

	data, err := s.api.ReadAll(ctx)
	if err != nil {
		return err
	}
	if len(data) == 0 || len(data[0]) == 0 {
		if err := s.writeHeaders(ctx); err != nil {
			return err
		}
		data = [][]interface{}{append([]interface{}{}, headerLabels...)}
	}
	header := data[0]

	targetCol, reuse, needsHeader := decideTargetColumn(header, r.Timestamp)
	if err := s.ensureWidth(ctx, targetCol+1); err != nil {
		// The write below may still fit; the API rejects it if not.
		log.Warn().Err(err).Msg("Failed to widen sheet, attempting write anyway")
	}

	var updates []CellUpdate
	if needsHeader {
		updates = append(updates, CellUpdate{Row: 0, Col: targetCol, Value: r.Timestamp})
	}

	rowIdx := findRow(data, r.StoreID, r.ProductID, r.OptionName)
	var prev *int
	if rowIdx != -1 {
		prev = previousStock(header, data[rowIdx], r.Timestamp)
	}
	cellText, delta := renderCell(r.Stock, prev)

	if rowIdx == -1 {
		if len(updates) > 0 {
			if err := s.api.UpdateCells(ctx, updates); err != nil {
				return err
			}
		}
		newRow := buildRow(r, len(data)-1, targetCol, cellText)
		if err := s.api.AppendRow(ctx, newRow); err != nil {
			return err
		}
		appendedRow := len(data) // 0-based grid row right after the existing ones
		if err := s.api.SetTextColor(ctx, appendedRow, targetCol, colorForDelta(delta)); err != nil {
			return err
		}
		log.Debug().
			Str("option", r.OptionName).
			Int("stock", r.Stock).
			Str("column", columnLetter(targetCol)).
			Bool("column_reused", reuse).
			Msg("Appended stock row")
		return nil
	}

	row := data[rowIdx]
	if r.StoreName != "" {
		updates = append(updates, CellUpdate{Row: rowIdx, Col: colStoreName, Value: r.StoreName})
	}
	if r.ProductName != "" {
		updates = append(updates, CellUpdate{Row: rowIdx, Col: colProductName, Value: r.ProductName})
	}
	if r.Price != nil {
		updates = append(updates, CellUpdate{Row: rowIdx, Col: colPrice, Value: strconv.Itoa(*r.Price)})
	}
	// additional_price fills once and is never overwritten.
	if cellString(row, colAdditionalPrice) == "" {
		updates = append(updates, CellUpdate{Row: rowIdx, Col: colAdditionalPrice, Value: strconv.Itoa(r.AdditionalPrice)})
	}
	updates = append(updates, CellUpdate{Row: rowIdx, Col: targetCol, Value: cellText})

	if err := s.api.UpdateCells(ctx, updates); err != nil {
		return err
	}
	if err := s.api.SetTextColor(ctx, rowIdx, targetCol, colorForDelta(delta)); err != nil {
		return err
	}

	log.Debug().
		Str("option", r.OptionName).
		Int("stock", r.Stock).
		Str("column", columnLetter(targetCol)).
		Bool("column_reused", reuse).
		Msg("Updated stock row")
	return nil
}

func (s *Store) writeHeaders(ctx context.Context) error {
	updates := make([]CellUpdate, 0, len(headerLabels))
	for col, label := range headerLabels {
		updates = append(updates, CellUpdate{Row: 0, Col: col, Value: label.(string)})
	}
	return s.api.UpdateCells(ctx, updates)
}

// ensureWidth widens the grid so column index required-1 is addressable.
// Expansion happens in large jumps to amortize resize calls.
func (s *Store) ensureWidth(ctx context.Context, required int) error {
	current, err := s.api.ColumnCount(ctx)
	if err != nil {
		return err
	}
	if int64(required) <= current {
		return nil
	}
	newCount := max(int64(required)+10, current+50)
	log.Info().
		Int64("from", current).
		Int64("to", newCount).
		Msg("Expanding sheet columns")
	return s.api.Resize(ctx, newCount)
}

// findRow returns the grid row index for an option key, or -1.
func findRow(data [][]interface{}, storeID, productID, optionName string) int {
	for i := 1; i < len(data); i++ {
		row := data[i]
		if cellString(row, colStoreID) == storeID &&
			cellString(row, colProductID) == productID &&
			cellString(row, colOptionName) == optionName {
			return i
		}
	}
	return -1
}

// decideTargetColumn picks the timestamp column for a new reading. The
// decision runs against the sheet's newest stock column so that readings
// for many rows taken in one run land together: within the reuse window the
// newest column is overwritten and its header kept; otherwise the first
// free column gets the new timestamp as its header.
func decideTargetColumn(header []interface{}, timestamp string) (col int, reuse bool, needsHeader bool) {
	lastCol := -1
	lastTS := ""
	for i := colStockStart; i < len(header); i++ {
		if v := cellString(header, i); v != "" {
			lastCol = i
			lastTS = v
		}
	}

	if lastTS != "" {
		if diff, err := session.MinutesBetween(lastTS, timestamp); err == nil && diff <= reuseWindowMinutes {
			return lastCol, true, false
		}
	}

	// An identical header may exist from an interrupted earlier write.
	for i := colStockStart; i < len(header); i++ {
		if cellString(header, i) == timestamp {
			return i, false, false
		}
	}

	next := colStockStart
	for next < len(header) && cellString(header, next) != "" {
		next++
	}
	return next, false, true
}

type stockEntry struct {
	col       int
	timestamp string
	value     string
}

// previousStock finds the prior reading for one row. When the row's newest
// entry falls inside the reuse window of the current timestamp, that entry
// is this run's own earlier write into the reused column and must not count
// as history; the entry before it is the real prior reading.
func previousStock(header, row []interface{}, currentTimestamp string) *int {
	var entries []stockEntry
	for i := colStockStart; i < len(row) && i < len(header); i++ {
		v := cellString(row, i)
		ts := cellString(header, i)
		if v == "" || ts == "" {
			continue
		}
		if _, err := session.ParseKST(ts); err != nil {
			continue
		}
		entries = append(entries, stockEntry{col: i, timestamp: ts, value: v})
	}
	if len(entries) == 0 {
		return nil
	}

	sort.Slice(entries, func(i, j int) bool {
		ti, _ := session.ParseKST(entries[i].timestamp)
		tj, _ := session.ParseKST(entries[j].timestamp)
		return ti.After(tj)
	})

	chosen := entries[0]
	if diff, err := session.MinutesBetween(entries[0].timestamp, currentTimestamp); err == nil && diff <= reuseWindowMinutes {
		if len(entries) > 1 {
			chosen = entries[1]
		}
	}

	m := leadingNumberRe.FindStringSubmatch(chosen.value)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}

// renderCell formats the persisted cell "<stock> (<+d|-d|->)" and returns
// the computed delta (nil when there is no prior reading).
func renderCell(stock int, prev *int) (string, *int) {
	if prev == nil {
		return fmt.Sprintf("%d (-)", stock), nil
	}
	d := stock - *prev
	switch {
	case d > 0:
		return fmt.Sprintf("%d (+%d)", stock, d), &d
	case d < 0:
		return fmt.Sprintf("%d (-%d)", stock, -d), &d
	default:
		return fmt.Sprintf("%d (-)", stock), &d
	}
}

// colorForDelta maps a delta to its text color: red for growth, blue for
// shrinkage, sheet default otherwise.
func colorForDelta(delta *int) *sheets.Color {
	if delta == nil || *delta == 0 {
		return nil
	}
	if *delta > 0 {
		return &sheets.Color{Red: 1.0}
	}
	return &sheets.Color{Blue: 1.0}
}

func buildRow(r Reading, index, stockCol int, cellText string) []interface{} {
	width := stockCol + 1
	row := make([]interface{}, width)
	for i := range row {
		row[i] = ""
	}
	row[colIndex] = strconv.Itoa(index)
	row[colStoreID] = r.StoreID
	row[colProductID] = r.ProductID
	row[colStoreName] = r.StoreName
	row[colProductName] = r.ProductName
	if r.Price != nil {
		row[colPrice] = strconv.Itoa(*r.Price)
	}
	row[colOptionName] = r.OptionName
	row[colAdditionalPrice] = strconv.Itoa(r.AdditionalPrice)
	row[stockCol] = cellText
	return row
}
