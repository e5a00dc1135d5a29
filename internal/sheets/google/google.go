// Package google writes month summaries to a Google spreadsheet.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"budgetflow/internal/log"
	ports "budgetflow/internal/sheets"
)

const (
	DefaultSummarySheet  = "Summary"
	DefaultCategorySheet = "Categories"
)

var summaryHeader = []any{"Month", "Gross income", "Tax", "Usable income", "Expenses", "Remaining", "Updated", "Version"}
var categoryHeader = []any{"Month", "Category", "Value"}

type Config struct {
	SpreadsheetID string
	SummarySheet  string
	CategorySheet string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	summarySheet  string
	categorySheet string
	logger        *log.Logger
}

var _ ports.SummaryWriter = (*Client)(nil)

// New creates a client authenticated from the environment. See
// credentialsOption for the variables consulted.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	svc, err := newSheetsService(ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(svc, cfg, logger), nil
}

func newClient(svc *gsheet.Service, cfg Config, logger *log.Logger) *Client {
	c := &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		summarySheet:  strings.TrimSpace(cfg.SummarySheet),
		categorySheet: strings.TrimSpace(cfg.CategorySheet),
		logger:        logger,
	}
	if c.summarySheet == "" {
		c.summarySheet = DefaultSummarySheet
	}
	if c.categorySheet == "" {
		c.categorySheet = DefaultCategorySheet
	}
	return c
}

func newSheetsService(ctx context.Context, logger *log.Logger) (*gsheet.Service, error) {
	opt, source, err := credentialsOption(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx, opt, goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets service created", "credentials", source)
	return svc, nil
}

// credentialsOption prefers a service account and falls back to an OAuth
// client plus a token saved by cmd/oauth-init.
func credentialsOption(ctx context.Context) (goption.ClientOption, string, error) {
	credentials, err := readSecret("GOOGLE_SERVICE_ACCOUNT_JSON", "GOOGLE_SERVICE_ACCOUNT_FILE")
	if err != nil {
		return nil, "", fmt.Errorf("read service account: %w", err)
	}
	if credentials == nil {
		if credentials, err = readSecret("", "GOOGLE_APPLICATION_CREDENTIALS"); err != nil {
			return nil, "", fmt.Errorf("read service account: %w", err)
		}
	}
	if credentials != nil {
		return goption.WithCredentialsJSON(credentials), "service_account", nil
	}

	client, err := readSecret("GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE")
	if err != nil {
		return nil, "", fmt.Errorf("read oauth client: %w", err)
	}
	if client == nil {
		return nil, "", errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_APPLICATION_CREDENTIALS, or GOOGLE_OAUTH_CLIENT_JSON with a token)")
	}
	tokenJSON, err := readSecret("GOOGLE_OAUTH_TOKEN_JSON", "GOOGLE_OAUTH_TOKEN_FILE")
	if err != nil {
		return nil, "", fmt.Errorf("read oauth token: %w", err)
	}
	if tokenJSON == nil {
		return nil, "", errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)")
	}

	cfg, err := goauth.ConfigFromJSON(client, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, "", fmt.Errorf("oauth config: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(tokenJSON, &token); err != nil {
		return nil, "", fmt.Errorf("decode oauth token: %w", err)
	}
	return goption.WithTokenSource(cfg.TokenSource(ctx, &token)), "oauth", nil
}

// readSecret returns the inline value of inlineKey, else the contents of the
// file named by fileKey, else nil.
func readSecret(inlineKey, fileKey string) ([]byte, error) {
	if inlineKey != "" {
		if v := strings.TrimSpace(os.Getenv(inlineKey)); v != "" {
			return []byte(v), nil
		}
	}
	path := strings.TrimSpace(os.Getenv(fileKey))
	if path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}

// WriteMonthSummary upserts the summary row keyed by month and rewrites the
// month's category rows.
func (c *Client) WriteMonthSummary(ctx context.Context, s ports.Summary) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	col, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.summarySheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read %s: %w", c.summarySheet, err)
	}
	row := summaryRowIndex(col.Values, s.Month)
	rng := fmt.Sprintf("%s!A%d:H%d", c.summarySheet, row, row)

	var data []*gsheet.ValueRange
	if row == 2 && len(col.Values) == 0 {
		data = append(data, &gsheet.ValueRange{Range: c.summarySheet + "!A1:H1", Values: [][]any{summaryHeader}})
	}
	data = append(data, &gsheet.ValueRange{Range: rng, Values: [][]any{summaryRow(s)}})

	_, err = c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data:             data,
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", rng, err)
	}

	if err := c.writeCategories(ctx, s); err != nil {
		return "", err
	}

	c.logger.InfoContext(ctx, "Month summary exported",
		log.FieldOperation, log.OpExport,
		log.FieldMonth, s.Month,
		log.FieldVersion, s.Version,
		"range", rng,
	)
	return rng, nil
}

func (c *Client) writeCategories(ctx context.Context, s ports.Summary) error {
	all := c.categorySheet + "!A:C"
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, all).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", c.categorySheet, err)
	}
	rows := mergeCategoryRows(resp.Values, s)

	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, all, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", c.categorySheet, err)
	}
	rng := fmt.Sprintf("%s!A1:C%d", c.categorySheet, len(rows))
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// summaryRowIndex returns the 1-based row holding month, or the first free
// row below the header.
func summaryRowIndex(col [][]any, month string) int {
	for i, r := range col {
		if i == 0 || len(r) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(r[0])) == month {
			return i + 1
		}
	}
	if len(col) == 0 {
		return 2
	}
	return len(col) + 1
}

func summaryRow(s ports.Summary) []any {
	updated := s.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	return []any{
		s.Month,
		s.TotalGrossIncome,
		s.TotalTax,
		s.TotalUsableIncome,
		s.TotalExpenses,
		s.RemainingBalance,
		updated.UTC().Format(time.RFC3339),
		s.Version,
	}
}

// mergeCategoryRows drops the month's previous category rows and appends
// the current ones, keeping a header on top.
func mergeCategoryRows(existing [][]any, s ports.Summary) [][]any {
	out := [][]any{categoryHeader}
	for i, r := range existing {
		if i == 0 || len(r) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(r[0])) == s.Month {
			continue
		}
		out = append(out, r)
	}
	for _, ct := range s.CategoryTotals {
		out = append(out, []any{s.Month, ct.Name, ct.Value})
	}
	return out
}
