package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Veraticus/contract-sentinel/internal/common"
	"github.com/Veraticus/contract-sentinel/internal/service"
)

var _ Workbooks = (*GoogleWorkbooks)(nil)

// GoogleWorkbooks implements Workbooks on the Google Sheets API.
type GoogleWorkbooks struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewGoogleWorkbooks creates a Sheets client from config credentials.
func NewGoogleWorkbooks(ctx context.Context, config Config, logger *slog.Logger) (*GoogleWorkbooks, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	srv, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &GoogleWorkbooks{service: srv, config: config, logger: logger}, nil
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		client := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{sheets.SpreadsheetsScope},
		}

		token := &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		}

		tokenSource = client.TokenSource(ctx, token)
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return srv, nil
}

func (g *GoogleWorkbooks) retry(ctx context.Context, op func() error) error {
	opts := service.RetryOptions{
		MaxAttempts:  g.config.RetryAttempts,
		InitialDelay: g.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	return common.WithRetry(ctx, func() error {
		return classifyAPIError(op())
	}, opts)
}

// classifyAPIError marks client errors other than 429 as permanent.
func classifyAPIError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusNotFound:
			return &common.RetryableError{Err: fmt.Errorf("%w: %w", ErrSpreadsheetNotFound, err), Retryable: false}
		case apiErr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", common.ErrRateLimit, err)
		case apiErr.Code >= 400 && apiErr.Code < 500:
			return &common.RetryableError{Err: err, Retryable: false}
		}
	}
	return err
}

// Ensure implements Workbooks.
func (g *GoogleWorkbooks) Ensure(ctx context.Context, spreadsheetID, title string) (string, error) {
	if spreadsheetID != "" {
		err := g.retry(ctx, func() error {
			_, err := g.service.Spreadsheets.Get(spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
			return err
		})
		if err == nil {
			return spreadsheetID, nil
		}
		if !errors.Is(err, ErrSpreadsheetNotFound) {
			return "", fmt.Errorf("unable to access spreadsheet %s: %w", spreadsheetID, err)
		}
		g.logger.Warn("stored spreadsheet is gone, creating a new one", "spreadsheet_id", spreadsheetID)
	}

	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title:    title,
			TimeZone: g.config.TimeZone,
		},
	}

	var created *sheets.Spreadsheet
	err := g.retry(ctx, func() error {
		var err error
		created, err = g.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("unable to create spreadsheet: %w", err)
	}

	g.logger.Info("created new spreadsheet",
		"id", created.SpreadsheetId,
		"url", created.SpreadsheetUrl)

	return created.SpreadsheetId, nil
}

// SheetTitles implements Workbooks.
func (g *GoogleWorkbooks) SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error) {
	var ss *sheets.Spreadsheet
	err := g.retry(ctx, func() error {
		var err error
		ss, err = g.service.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sheets: %w", err)
	}

	titles := make([]string, 0, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			titles = append(titles, s.Properties.Title)
		}
	}
	return titles, nil
}

// AddSheet implements Workbooks.
func (g *GoogleWorkbooks) AddSheet(ctx context.Context, spreadsheetID, title string) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: title},
			},
		}},
	}

	var resp *sheets.BatchUpdateSpreadsheetResponse
	err := g.retry(ctx, func() error {
		var err error
		resp, err = g.service.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to add sheet %q: %w", title, err)
	}

	if g.config.EnableFormatting && len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil {
		sheetID := resp.Replies[0].AddSheet.Properties.SheetId
		if err := g.retry(ctx, func() error {
			return g.applyFormatting(ctx, spreadsheetID, sheetID)
		}); err != nil {
			g.logger.Warn("failed to apply formatting", "sheet", title, "error", err)
		}
	}
	return nil
}

// ClearSheet implements Workbooks.
func (g *GoogleWorkbooks) ClearSheet(ctx context.Context, spreadsheetID, title string) error {
	rng := sheetRef(title) + "!A:Z"
	return g.retry(ctx, func() error {
		_, err := g.service.Spreadsheets.Values.Clear(spreadsheetID, rng, &sheets.ClearValuesRequest{}).Context(ctx).Do()
		return err
	})
}

// WriteValues implements Workbooks.
func (g *GoogleWorkbooks) WriteValues(ctx context.Context, spreadsheetID, rng string, values [][]any) error {
	entered := make([][]any, len(values))
	for i, row := range values {
		entered[i] = make([]any, len(row))
		for j, v := range row {
			entered[i][j] = enteredValue(v)
		}
	}
	valueRange := &sheets.ValueRange{Values: entered}
	err := g.retry(ctx, func() error {
		_, err := g.service.Spreadsheets.Values.Update(spreadsheetID, rng, valueRange).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", rng, err)
	}

	g.logger.Debug("wrote range", "range", rng, "rows", len(values))
	return nil
}

// ReadValues implements Workbooks.
func (g *GoogleWorkbooks) ReadValues(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	var resp *sheets.ValueRange
	err := g.retry(ctx, func() error {
		var err error
		resp, err = g.service.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rng, err)
	}
	return resp.Values, nil
}

// URL implements Workbooks.
func (g *GoogleWorkbooks) URL(spreadsheetID string) string {
	return "https://docs.google.com/spreadsheets/d/" + spreadsheetID
}

// applyFormatting bolds and freezes the header row of a new sheet.
func (g *GoogleWorkbooks) applyFormatting(ctx context.Context, spreadsheetID string, sheetID int64) error {
	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:       sheetID,
					StartRowIndex: 0,
					EndRowIndex:   1,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId: sheetID,
					GridProperties: &sheets.GridProperties{
						FrozenRowCount: 1,
					},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   10,
				},
			},
		},
	}

	batchUpdate := &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}
	_, err := g.service.Spreadsheets.BatchUpdate(spreadsheetID, batchUpdate).Context(ctx).Do()
	return err
}
