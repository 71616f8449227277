package sheets

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"naver_cart_stock/internal/config"
	"naver_cart_stock/internal/retry"
)

// CellUpdate sets one cell. Row and Col are 0-based grid coordinates
// (row 0 is the header row).
type CellUpdate struct {
	Row   int
	Col   int
	Value string
}

// Client wraps the Sheets API for one sheet of one spreadsheet. Every remote
// call runs through the quota-aware retry wrapper.
type Client struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	resilience    retry.Config

	mu            sync.Mutex
	cachedSheetID int64
	sheetIDValid  bool
}

func NewClient(ctx context.Context, credentialsFile, spreadsheetID, sheetName string) (*Client, error) {
	service, err := sheets.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	resilience := config.DefaultResilienceConfig.SheetCall
	resilience.Retryable = IsQuotaError

	return &Client{
		service:       service,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		resilience:    resilience,
	}, nil
}

// IsQuotaError reports whether err is a Sheets API rate-limit rejection.
// Only these are retried; auth and request errors propagate immediately.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	if apiErr, ok := err.(*googleapi.Error); ok && apiErr.Code == 429 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Quota exceeded") || strings.Contains(msg, "quota metric")
}

// ReadAll returns every populated row of the sheet, header included.
func (c *Client) ReadAll(ctx context.Context) ([][]interface{}, error) {
	readRange := fmt.Sprintf("%s!A:ZZ", c.sheetName)
	resp, err := retry.WithRetry(ctx, c.resilience, func(ctx context.Context) (*sheets.ValueRange, error) {
		return c.service.Spreadsheets.Values.Get(c.spreadsheetID, readRange).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	return resp.Values, nil
}

// UpdateCells writes the given cells in one values.batchUpdate request.
func (c *Client) UpdateCells(ctx context.Context, updates []CellUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	data := make([]*sheets.ValueRange, 0, len(updates))
	for _, u := range updates {
		data = append(data, &sheets.ValueRange{
			Range:  fmt.Sprintf("%s!%s%d", c.sheetName, columnLetter(u.Col), u.Row+1),
			Values: [][]interface{}{{u.Value}},
		})
	}

	_, err := retry.WithRetry(ctx, c.resilience, func(ctx context.Context) (*sheets.BatchUpdateValuesResponse, error) {
		return c.service.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, &sheets.BatchUpdateValuesRequest{
			ValueInputOption: "RAW",
			Data:             data,
		}).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("failed to update cells: %w", err)
	}
	return nil
}

// AppendRow appends one row after the last populated row.
func (c *Client) AppendRow(ctx context.Context, row []interface{}) error {
	valueRange := &sheets.ValueRange{Values: [][]interface{}{row}}

	_, err := retry.WithRetry(ctx, c.resilience, func(ctx context.Context) (*sheets.AppendValuesResponse, error) {
		return c.service.Spreadsheets.Values.Append(c.spreadsheetID, fmt.Sprintf("%s!A:ZZ", c.sheetName), valueRange).
			ValueInputOption("RAW").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
	})
	if err != nil {
		return fmt.Errorf("failed to append row: %w", err)
	}
	return nil
}

// SheetID resolves (and caches) the numeric sheet id for the configured tab.
func (c *Client) SheetID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	if c.sheetIDValid {
		id := c.cachedSheetID
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	resp, err := retry.WithRetry(ctx, c.resilience, func(ctx context.Context) (*sheets.Spreadsheet, error) {
		return c.service.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get spreadsheet metadata: %w", err)
	}

	for _, s := range resp.Sheets {
		if s.Properties != nil && s.Properties.Title == c.sheetName {
			c.mu.Lock()
			c.cachedSheetID = s.Properties.SheetId
			c.sheetIDValid = true
			c.mu.Unlock()
			return s.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in spreadsheet", c.sheetName)
}

// ColumnCount returns the sheet's current grid width.
func (c *Client) ColumnCount(ctx context.Context) (int64, error) {
	sheetID, err := c.SheetID(ctx)
	if err != nil {
		return 0, err
	}

	resp, err := retry.WithRetry(ctx, c.resilience, func(ctx context.Context) (*sheets.Spreadsheet, error) {
		return c.service.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get spreadsheet metadata: %w", err)
	}

	for _, s := range resp.Sheets {
		if s.Properties != nil && s.Properties.SheetId == sheetID {
			if s.Properties.GridProperties == nil || s.Properties.GridProperties.ColumnCount == 0 {
				// New sheets default to 26 columns.
				return 26, nil
			}
			return s.Properties.GridProperties.ColumnCount, nil
		}
	}
	return 26, nil
}

// Resize widens the grid to columns.
func (c *Client) Resize(ctx context.Context, columns int64) error {
	sheetID, err := c.SheetID(ctx)
	if err != nil {
		return err
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId: sheetID,
					GridProperties: &sheets.GridProperties{
						ColumnCount: columns,
					},
				},
				Fields: "gridProperties.columnCount",
			},
		}},
	}

	_, err = retry.WithRetry(ctx, c.resilience, func(ctx context.Context) (*sheets.BatchUpdateSpreadsheetResponse, error) {
		return c.service.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("failed to resize sheet: %w", err)
	}
	return nil
}

// SetTextColor overrides the foreground color of one cell. A nil color is a
// no-op (the cell keeps the sheet default).
func (c *Client) SetTextColor(ctx context.Context, row, col int, color *sheets.Color) error {
	if color == nil {
		return nil
	}
	sheetID, err := c.SheetID(ctx)
	if err != nil {
		return err
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    int64(row),
					EndRowIndex:      int64(row + 1),
					StartColumnIndex: int64(col),
					EndColumnIndex:   int64(col + 1),
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{
							ForegroundColor: color,
						},
					},
				},
				Fields: "userEnteredFormat.textFormat.foregroundColor",
			},
		}},
	}

	_, err = retry.WithRetry(ctx, c.resilience, func(ctx context.Context) (*sheets.BatchUpdateSpreadsheetResponse, error) {
		return c.service.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("failed to set cell color: %w", err)
	}
	return nil
}
