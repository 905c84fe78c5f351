package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"trackmystacks/internal/core"
	"trackmystacks/internal/log"
	ports "trackmystacks/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client writes each user's comparison to its own tab, "<prefix> <username>".
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetPrefix   string
	logger        *log.Logger
}

// Ensure interface conformance
var _ ports.ComparisonWriter = (*Client)(nil)

// Credentials locates a service account key: inline JSON wins over a file.
type Credentials struct {
	JSON string
	File string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, spreadsheetID, sheetPrefix string, creds Credentials) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	svc, err := newSheetsService(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, spreadsheetID, sheetPrefix), nil
}

// NewWithService wraps an already configured service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetPrefix string) *Client {
	if strings.TrimSpace(sheetPrefix) == "" {
		sheetPrefix = "Comparison"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetPrefix:   strings.TrimSpace(sheetPrefix),
		logger:        log.FromContext(context.Background()).WithComponent(log.ComponentSheets),
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Falls back to GOOGLE_APPLICATION_CREDENTIALS when neither JSON nor file is given.
func newSheetsService(ctx context.Context, creds Credentials) (*gsheet.Service, error) {
	inline := strings.TrimSpace(creds.JSON)
	file := strings.TrimSpace(creds.File)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case inline != "":
		credentialsJSON = []byte(inline)
	case file != "":
		var err error
		credentialsJSON, err = os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// WriteComparison replaces the user's tab with a header row plus one row per
// point. The tab is created on first write.
func (c *Client) WriteComparison(ctx context.Context, username string, points []core.MonthlyComparison) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	title := sheetTitle(c.sheetPrefix, username)

	if err := c.ensureSheet(ctx, title); err != nil {
		return err
	}

	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, a1(title, "A:D"), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet %s: %w", title, err)
	}

	vr := &gsheet.ValueRange{Values: toValues(points)}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, a1(title, "A1"), vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update sheet %s: %w", title, err)
	}

	c.logger.InfoContext(ctx, "Comparison written to Google Sheets",
		log.FieldUsername, username,
		log.FieldSheet, title,
		"rows", len(points))
	return nil
}

func (c *Client) ensureSheet(ctx context.Context, title string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}
	c.logger.InfoContext(ctx, "Created comparison sheet", log.FieldSheet, title)
	return nil
}
