package sheets

import (
	"context"
	"fmt"
	"testing"

	"google.golang.org/api/sheets/v4"
)

// fakeGrid implements the api interface over an in-memory cell grid.
type fakeGrid struct {
	cells   [][]interface{}
	columns int64
	colors  map[string]*sheets.Color
}

func newFakeGrid() *fakeGrid {
	return &fakeGrid{columns: 26, colors: map[string]*sheets.Color{}}
}

func (f *fakeGrid) ReadAll(ctx context.Context) ([][]interface{}, error) {
	out := make([][]interface{}, len(f.cells))
	for i, row := range f.cells {
		out[i] = append([]interface{}{}, row...)
	}
	return out, nil
}

func (f *fakeGrid) UpdateCells(ctx context.Context, updates []CellUpdate) error {
	for _, u := range updates {
		for len(f.cells) <= u.Row {
			f.cells = append(f.cells, []interface{}{})
		}
		for len(f.cells[u.Row]) <= u.Col {
			f.cells[u.Row] = append(f.cells[u.Row], "")
		}
		f.cells[u.Row][u.Col] = u.Value
	}
	return nil
}

func (f *fakeGrid) AppendRow(ctx context.Context, row []interface{}) error {
	f.cells = append(f.cells, append([]interface{}{}, row...))
	return nil
}

func (f *fakeGrid) ColumnCount(ctx context.Context) (int64, error) {
	return f.columns, nil
}

func (f *fakeGrid) Resize(ctx context.Context, columns int64) error {
	f.columns = columns
	return nil
}

func (f *fakeGrid) SetTextColor(ctx context.Context, row, col int, color *sheets.Color) error {
	f.colors[fmt.Sprintf("%d:%d", row, col)] = color
	return nil
}

func (f *fakeGrid) cell(row, col int) string {
	if row >= len(f.cells) {
		return ""
	}
	return cellString(f.cells[row], col)
}

func (f *fakeGrid) color(row, col int) *sheets.Color {
	return f.colors[fmt.Sprintf("%d:%d", row, col)]
}

func intPtr(n int) *int { return &n }

func testStore(grid *fakeGrid) *Store {
	return &Store{api: grid}
}

func TestWriteReadingCreatesHeadersAndRow(t *testing.T) {
	grid := newFakeGrid()
	store := testStore(grid)

	err := store.WriteReading(context.Background(), Reading{
		StoreID:         "s1",
		ProductID:       "p1",
		OptionName:      "red",
		StoreName:       "Store One",
		ProductName:     "Widget",
		Price:           intPtr(12000),
		AdditionalPrice: 500,
		Stock:           9999,
		Timestamp:       "2025-11-24 10:00:00",
	})
	if err != nil {
		t.Fatalf("WriteReading failed: %v", err)
	}

	if got := grid.cell(0, colStoreID); got != "store_id" {
		t.Errorf("Expected header store_id, got %q", got)
	}
	if got := grid.cell(0, colStockStart); got != "2025-11-24 10:00:00" {
		t.Errorf("Expected timestamp header, got %q", got)
	}
	if got := grid.cell(1, colIndex); got != "0" {
		t.Errorf("Expected index 0, got %q", got)
	}
	if got := grid.cell(1, colOptionName); got != "red" {
		t.Errorf("Expected option name, got %q", got)
	}
	if got := grid.cell(1, colAdditionalPrice); got != "500" {
		t.Errorf("Expected additional price, got %q", got)
	}
	if got := grid.cell(1, colStockStart); got != "9999 (-)" {
		t.Errorf("Expected first reading with no delta, got %q", got)
	}
	if c := grid.color(1, colStockStart); c != nil {
		t.Errorf("Expected default color for first reading, got %+v", c)
	}
}

func TestWriteReadingReusesColumnWithinWindow(t *testing.T) {
	grid := newFakeGrid()
	store := testStore(grid)
	ctx := context.Background()

	write := func(option string, stock int, ts string) {
		t.Helper()
		err := store.WriteReading(ctx, Reading{
			StoreID: "s1", ProductID: "p1", OptionName: option,
			Stock: stock, Timestamp: ts,
		})
		if err != nil {
			t.Fatalf("WriteReading failed: %v", err)
		}
	}

	write("red", 100, "2025-11-24 10:00:00")
	write("blue", 200, "2025-11-24 10:05:00")

	if got := grid.cell(0, colStockStart); got != "2025-11-24 10:00:00" {
		t.Errorf("Header must keep the original timestamp on reuse, got %q", got)
	}
	if got := grid.cell(0, colStockStart+1); got != "" {
		t.Errorf("No new column expected within the reuse window, got %q", got)
	}
	if got := grid.cell(2, colStockStart); got != "200 (-)" {
		t.Errorf("Second row should land in the shared column, got %q", got)
	}
}

func TestWriteReadingOpensNewColumnAfterWindow(t *testing.T) {
	grid := newFakeGrid()
	store := testStore(grid)
	ctx := context.Background()

	err := store.WriteReading(ctx, Reading{
		StoreID: "s1", ProductID: "p1", OptionName: "red",
		Stock: 100, Timestamp: "2025-11-24 10:00:00",
	})
	if err != nil {
		t.Fatalf("WriteReading failed: %v", err)
	}
	err = store.WriteReading(ctx, Reading{
		StoreID: "s1", ProductID: "p1", OptionName: "red",
		Stock: 97, Timestamp: "2025-11-24 10:16:00",
	})
	if err != nil {
		t.Fatalf("WriteReading failed: %v", err)
	}

	if got := grid.cell(0, colStockStart+1); got != "2025-11-24 10:16:00" {
		t.Errorf("Expected new timestamp column, got %q", got)
	}
	if got := grid.cell(1, colStockStart+1); got != "97 (-3)" {
		t.Errorf("Expected delta against previous column, got %q", got)
	}
	c := grid.color(1, colStockStart+1)
	if c == nil || c.Blue != 1.0 || c.Red != 0 {
		t.Errorf("Expected blue for a negative delta, got %+v", c)
	}
}

func TestWriteReadingDeltaColors(t *testing.T) {
	tests := []struct {
		name      string
		prev      int
		next      int
		wantCell  string
		wantRed   bool
		wantBlue  bool
		wantPlain bool
	}{
		{"increase is red", 100, 150, "150 (+50)", true, false, false},
		{"decrease is blue", 100, 40, "40 (-60)", false, true, false},
		{"unchanged is plain", 100, 100, "100 (-)", false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grid := newFakeGrid()
			store := testStore(grid)
			ctx := context.Background()

			err := store.WriteReading(ctx, Reading{
				StoreID: "s1", ProductID: "p1", OptionName: "red",
				Stock: tt.prev, Timestamp: "2025-11-24 10:00:00",
			})
			if err != nil {
				t.Fatalf("WriteReading failed: %v", err)
			}
			err = store.WriteReading(ctx, Reading{
				StoreID: "s1", ProductID: "p1", OptionName: "red",
				Stock: tt.next, Timestamp: "2025-11-24 11:00:00",
			})
			if err != nil {
				t.Fatalf("WriteReading failed: %v", err)
			}

			if got := grid.cell(1, colStockStart+1); got != tt.wantCell {
				t.Errorf("Expected cell %q, got %q", tt.wantCell, got)
			}
			c := grid.color(1, colStockStart+1)
			switch {
			case tt.wantPlain:
				if c != nil {
					t.Errorf("Expected default color, got %+v", c)
				}
			case tt.wantRed:
				if c == nil || c.Red != 1.0 {
					t.Errorf("Expected red, got %+v", c)
				}
			case tt.wantBlue:
				if c == nil || c.Blue != 1.0 {
					t.Errorf("Expected blue, got %+v", c)
				}
			}
		})
	}
}

func TestWriteReadingReusedColumnDeltaSkipsOwnWrite(t *testing.T) {
	grid := newFakeGrid()
	store := testStore(grid)
	ctx := context.Background()

	// History from an earlier run.
	err := store.WriteReading(ctx, Reading{
		StoreID: "s1", ProductID: "p1", OptionName: "red",
		Stock: 100, Timestamp: "2025-11-24 09:00:00",
	})
	if err != nil {
		t.Fatalf("WriteReading failed: %v", err)
	}
	// This run writes the same row twice into one shared column; the second
	// write's delta must compare against the earlier run, not against the
	// first write of this run's own column.
	err = store.WriteReading(ctx, Reading{
		StoreID: "s1", ProductID: "p1", OptionName: "red",
		Stock: 95, Timestamp: "2025-11-24 10:00:00",
	})
	if err != nil {
		t.Fatalf("WriteReading failed: %v", err)
	}
	err = store.WriteReading(ctx, Reading{
		StoreID: "s1", ProductID: "p1", OptionName: "red",
		Stock: 90, Timestamp: "2025-11-24 10:05:00",
	})
	if err != nil {
		t.Fatalf("WriteReading failed: %v", err)
	}

	if got := grid.cell(1, colStockStart+1); got != "90 (-10)" {
		t.Errorf("Expected delta against the previous column, got %q", got)
	}
}

func TestWriteReadingRowUniqueness(t *testing.T) {
	grid := newFakeGrid()
	store := testStore(grid)
	ctx := context.Background()

	keys := []struct{ storeID, productID, option string }{
		{"s1", "p1", "red"},
		{"s1", "p1", "blue"},
		{"s1", "p2", "red"},
		{"s2", "p1", "red"},
	}
	for _, k := range keys {
		for i := 0; i < 2; i++ {
			err := store.WriteReading(ctx, Reading{
				StoreID: k.storeID, ProductID: k.productID, OptionName: k.option,
				Stock: 10, Timestamp: "2025-11-24 10:00:00",
			})
			if err != nil {
				t.Fatalf("WriteReading failed: %v", err)
			}
		}
	}

	// One header row plus one row per distinct key, despite repeat writes.
	if got := len(grid.cells); got != 1+len(keys) {
		t.Errorf("Expected %d rows, got %d", 1+len(keys), got)
	}
}

func TestWriteReadingFillsMetadataOnExistingRow(t *testing.T) {
	grid := newFakeGrid()
	store := testStore(grid)
	ctx := context.Background()

	err := store.WriteReading(ctx, Reading{
		StoreID: "s1", ProductID: "p1", OptionName: "red",
		Stock: 100, Timestamp: "2025-11-24 10:00:00",
	})
	if err != nil {
		t.Fatalf("WriteReading failed: %v", err)
	}
	err = store.WriteReading(ctx, Reading{
		StoreID: "s1", ProductID: "p1", OptionName: "red",
		StoreName: "Store One", ProductName: "Widget", Price: intPtr(9900),
		AdditionalPrice: 300,
		Stock:           100, Timestamp: "2025-11-24 10:05:00",
	})
	if err != nil {
		t.Fatalf("WriteReading failed: %v", err)
	}

	if got := grid.cell(1, colStoreName); got != "Store One" {
		t.Errorf("Expected store name fill, got %q", got)
	}
	if got := grid.cell(1, colProductName); got != "Widget" {
		t.Errorf("Expected product name fill, got %q", got)
	}
	if got := grid.cell(1, colPrice); got != "9900" {
		t.Errorf("Expected price fill, got %q", got)
	}
}

func TestWriteReadingAdditionalPriceFillsOnce(t *testing.T) {
	grid := newFakeGrid()
	store := testStore(grid)
	ctx := context.Background()

	err := store.WriteReading(ctx, Reading{
		StoreID: "s1", ProductID: "p1", OptionName: "red",
		AdditionalPrice: 500,
		Stock:           100, Timestamp: "2025-11-24 10:00:00",
	})
	if err != nil {
		t.Fatalf("WriteReading failed: %v", err)
	}
	err = store.WriteReading(ctx, Reading{
		StoreID: "s1", ProductID: "p1", OptionName: "red",
		AdditionalPrice: 9000,
		Stock:           100, Timestamp: "2025-11-24 10:05:00",
	})
	if err != nil {
		t.Fatalf("WriteReading failed: %v", err)
	}

	if got := grid.cell(1, colAdditionalPrice); got != "500" {
		t.Errorf("additional_price must not be overwritten, got %q", got)
	}
}

func TestWriteReadingExpandsGrid(t *testing.T) {
	grid := newFakeGrid()
	grid.columns = 12
	store := testStore(grid)
	ctx := context.Background()

	err := store.WriteReading(ctx, Reading{
		StoreID: "s1", ProductID: "p1", OptionName: "red",
		Stock: 100, Timestamp: "2025-11-24 10:00:00",
	})
	if err != nil {
		t.Fatalf("WriteReading failed: %v", err)
	}
	err = store.WriteReading(ctx, Reading{
		StoreID: "s1", ProductID: "p1", OptionName: "red",
		Stock: 100, Timestamp: "2025-11-24 11:00:00",
	})
	if err != nil {
		t.Fatalf("WriteReading failed: %v", err)
	}

	// Second reading needs column index 12; 12 columns is not enough and
	// growth jumps by at least 50.
	if grid.columns < 13 {
		t.Errorf("Expected grid expansion, still %d columns", grid.columns)
	}
	if grid.columns != 62 {
		t.Errorf("Expected expansion to 62 columns, got %d", grid.columns)
	}
}

func TestUpsertStoreFillsOnlyEmptyNames(t *testing.T) {
	grid := newFakeGrid()
	store := testStore(grid)
	ctx := context.Background()

	for _, opt := range []string{"red", "blue"} {
		err := store.WriteReading(ctx, Reading{
			StoreID: "s1", ProductID: "p1", OptionName: opt,
			Stock: 10, Timestamp: "2025-11-24 10:00:00",
		})
		if err != nil {
			t.Fatalf("WriteReading failed: %v", err)
		}
	}
	grid.cells[1][colStoreName] = "Kept Name"

	if err := store.UpsertStore(ctx, "s1", "New Name"); err != nil {
		t.Fatalf("UpsertStore failed: %v", err)
	}

	if got := grid.cell(1, colStoreName); got != "Kept Name" {
		t.Errorf("Existing name must survive, got %q", got)
	}
	if got := grid.cell(2, colStoreName); got != "New Name" {
		t.Errorf("Empty name should be filled, got %q", got)
	}
}

func TestUpsertStoreIsIdempotent(t *testing.T) {
	grid := newFakeGrid()
	store := testStore(grid)
	ctx := context.Background()

	err := store.WriteReading(ctx, Reading{
		StoreID: "s1", ProductID: "p1", OptionName: "red",
		Stock: 10, Timestamp: "2025-11-24 10:00:00",
	})
	if err != nil {
		t.Fatalf("WriteReading failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := store.UpsertStore(ctx, "s1", "Store One"); err != nil {
			t.Fatalf("UpsertStore failed: %v", err)
		}
	}

	if got := len(grid.cells); got != 2 {
		t.Errorf("Upserts must not add rows, got %d", got)
	}
	if got := grid.cell(1, colStoreName); got != "Store One" {
		t.Errorf("Expected store name, got %q", got)
	}
}

func TestUpsertProductFillsNameAndPrice(t *testing.T) {
	grid := newFakeGrid()
	store := testStore(grid)
	ctx := context.Background()

	err := store.WriteReading(ctx, Reading{
		StoreID: "s1", ProductID: "p1", OptionName: "red",
		Stock: 10, Timestamp: "2025-11-24 10:00:00",
	})
	if err != nil {
		t.Fatalf("WriteReading failed: %v", err)
	}

	if err := store.UpsertProduct(ctx, "s1", "p1", "Widget", intPtr(4500)); err != nil {
		t.Fatalf("UpsertProduct failed: %v", err)
	}

	if got := grid.cell(1, colProductName); got != "Widget" {
		t.Errorf("Expected product name, got %q", got)
	}
	if got := grid.cell(1, colPrice); got != "4500" {
		t.Errorf("Expected price, got %q", got)
	}
}

func TestColumnLetter(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "A"}, {11, "L"}, {25, "Z"}, {26, "AA"}, {27, "AB"}, {51, "AZ"}, {52, "BA"}, {701, "ZZ"},
	}
	for _, tt := range tests {
		if got := columnLetter(tt.n); got != tt.want {
			t.Errorf("columnLetter(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestRenderCell(t *testing.T) {
	tests := []struct {
		name string
		prev *int
		next int
		want string
	}{
		{"no history", nil, 9999, "9999 (-)"},
		{"growth", intPtr(10), 15, "15 (+5)"},
		{"shrinkage", intPtr(15), 10, "10 (-5)"},
		{"unchanged", intPtr(10), 10, "10 (-)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := renderCell(tt.next, tt.prev)
			if got != tt.want {
				t.Errorf("renderCell(%d, %v) = %q, want %q", tt.next, tt.prev, got, tt.want)
			}
		})
	}
}
