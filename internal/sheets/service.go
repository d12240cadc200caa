package sheets

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
	"ordersbot/internal/logger"
)

// Service handles Google Sheets operations
type Service struct {
	sheetsService *sheets.Service
	spreadsheetID string
	log           zerolog.Logger

	mu       sync.Mutex
	sheetIDs map[string]int64
}

// Cell addresses one grid cell by zero-based row and column (row 0 is the header row).
type Cell struct {
	Row   int
	Col   int
	Value interface{}
}

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// NewSheetsService creates a new Google Sheets service
func NewSheetsService(ctx context.Context, sheetURL string) (*Service, error) {
	const op = "NewSheetsService"

	log := logger.WithComponent("sheets")

	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to extract spreadsheet ID: %w", op, err)
	}

	log.Debug().Str("spreadsheet_id", spreadsheetID).Msg("Extracted spreadsheet ID")

	var creds []byte
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		creds, err = os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
	} else if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		creds = []byte(credsJSON)
	} else {
		return nil, fmt.Errorf("%s: neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set", op)
	}

	config, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	client := config.Client(ctx)
	sheetsService, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return &Service{
		sheetsService: sheetsService,
		spreadsheetID: spreadsheetID,
		log:           log,
		sheetIDs:      make(map[string]int64),
	}, nil
}

// extractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL.
// A bare ID is accepted as well.
func extractSpreadsheetID(url string) (string, error) {
	matches := spreadsheetIDPattern.FindStringSubmatch(url)
	if len(matches) >= 2 {
		return matches[1], nil
	}
	trimmed := strings.TrimSpace(url)
	if trimmed != "" && !strings.ContainsAny(trimmed, "/: ") {
		return trimmed, nil
	}
	return "", fmt.Errorf("invalid Google Sheets URL format")
}

// ColumnName converts a zero-based column index to A1 letters (0 -> A, 26 -> AA).
func ColumnName(col int) string {
	name := ""
	for col >= 0 {
		name = string(rune('A'+col%26)) + name
		col = col/26 - 1
	}
	return name
}

// CellRef returns the A1 reference of a zero-based cell on the given sheet.
func CellRef(sheetName string, row, col int) string {
	return fmt.Sprintf("'%s'!%s%d", sheetName, ColumnName(col), row+1)
}

// ReadRange reads values from a specified range in the spreadsheet
func (s *Service) ReadRange(ctx context.Context, rangeSpec string) ([][]interface{}, error) {
	const op = "ReadRange"

	s.log.Debug().
		Str("range", rangeSpec).
		Msg("Reading range from spreadsheet")

	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, rangeSpec).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read range %s: %w", op, rangeSpec, err)
	}

	s.log.Debug().
		Int("rows", len(resp.Values)).
		Str("range", rangeSpec).
		Msg("Successfully read range from spreadsheet")

	return resp.Values, nil
}

// WriteCells writes every cell in one values batch update. Values are stored RAW so that
// flags like "true" are kept as text.
func (s *Service) WriteCells(ctx context.Context, sheetName string, cells []Cell) error {
	const op = "WriteCells"

	if len(cells) == 0 {
		return nil
	}

	data := make([]*sheets.ValueRange, 0, len(cells))
	for _, c := range cells {
		data = append(data, &sheets.ValueRange{
			Range:  CellRef(sheetName, c.Row, c.Col),
			Values: [][]interface{}{{c.Value}},
		})
	}

	req := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}
	if _, err := s.sheetsService.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%s: failed to write %d cells on %s: %w", op, len(cells), sheetName, err)
	}

	s.log.Debug().
		Str("sheet", sheetName).
		Int("cells", len(cells)).
		Msg("Cells written")

	return nil
}

// AppendRow appends one row after the last non-empty row of the sheet.
func (s *Service) AppendRow(ctx context.Context, sheetName string, values []interface{}) error {
	const op = "AppendRow"

	valueRange := &sheets.ValueRange{Values: [][]interface{}{values}}
	_, err := s.sheetsService.Spreadsheets.Values.Append(
		s.spreadsheetID,
		fmt.Sprintf("'%s'!A:A", sheetName),
		valueRange,
	).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to append row to %s: %w", op, sheetName, err)
	}

	s.log.Info().Str("sheet", sheetName).Msg("Row appended")
	return nil
}

// DeleteRow removes a zero-based grid row; rows below it shift up by one.
func (s *Service) DeleteRow(ctx context.Context, sheetName string, row int) error {
	const op = "DeleteRow"

	sheetID, _, err := s.sheetProperties(ctx, sheetName)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				DeleteDimension: &sheets.DeleteDimensionRequest{
					Range: &sheets.DimensionRange{
						SheetId:    sheetID,
						Dimension:  "ROWS",
						StartIndex: int64(row),
						EndIndex:   int64(row + 1),
					},
				},
			},
		},
	}
	if _, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%s: failed to delete row %d on %s: %w", op, row+1, sheetName, err)
	}

	s.log.Info().Str("sheet", sheetName).Int("row", row+1).Msg("Row deleted")
	return nil
}

// AppendColumns adds header cells right after column `after`-1, growing the grid when it is
// too narrow. It returns the zero-based index of the first new column.
func (s *Service) AppendColumns(ctx context.Context, sheetName string, after int, headers []string) (int, error) {
	const op = "AppendColumns"

	sheetID, columnCount, err := s.sheetProperties(ctx, sheetName)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	needed := int64(after + len(headers))
	if needed > columnCount {
		req := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{
				{
					AppendDimension: &sheets.AppendDimensionRequest{
						SheetId:   sheetID,
						Dimension: "COLUMNS",
						Length:    needed - columnCount,
					},
				},
			},
		}
		if _, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return 0, fmt.Errorf("%s: failed to grow %s: %w", op, sheetName, err)
		}
	}

	cells := make([]Cell, 0, len(headers))
	for i, h := range headers {
		cells = append(cells, Cell{Row: 0, Col: after + i, Value: h})
	}
	if err := s.WriteCells(ctx, sheetName, cells); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info().
		Str("sheet", sheetName).
		Strs("headers", headers).
		Msg("Columns appended")

	return after, nil
}

// sheetProperties returns the numeric sheet id and current column count of a tab.
func (s *Service) sheetProperties(ctx context.Context, sheetName string) (int64, int64, error) {
	spreadsheet, err := s.sheetsService.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.Title != sheetName {
			continue
		}
		s.mu.Lock()
		s.sheetIDs[sheetName] = sheet.Properties.SheetId
		s.mu.Unlock()

		var cols int64
		if sheet.Properties.GridProperties != nil {
			cols = sheet.Properties.GridProperties.ColumnCount
		}
		return sheet.Properties.SheetId, cols, nil
	}

	return 0, 0, fmt.Errorf("sheet %q not found", sheetName)
}

// SheetExists reports whether a tab with the given title exists.
func (s *Service) SheetExists(ctx context.Context, sheetName string) (bool, error) {
	s.mu.Lock()
	_, ok := s.sheetIDs[sheetName]
	s.mu.Unlock()
	if ok {
		return true, nil
	}

	if _, _, err := s.sheetProperties(ctx, sheetName); err != nil {
		if strings.Contains(err.Error(), "not found") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
