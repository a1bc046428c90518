package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"qarzhy/internal/cache"
	"qarzhy/internal/core"
	ports "qarzhy/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Options configures the exporter. Either CredentialsJSON or CredentialsFile
// must hold a service account key.
type Options struct {
	SpreadsheetID     string
	TransactionsSheet string
	DebtsSheet        string
	CredentialsJSON   string
	CredentialsFile   string
	// IndexTTL bounds how long the id column of a sheet is trusted before
	// it is read again; defaults to defaultIndexTTL.
	IndexTTL time.Duration
}

const defaultIndexTTL = 30 * time.Second

// valuesAPI is the subset of the Sheets values service the exporter needs.
type valuesAPI interface {
	get(ctx context.Context, rng string) ([][]any, error)
	update(ctx context.Context, rng string, rows [][]any) error
	// append returns the A1 range the rows were written to
	append(ctx context.Context, rng string, rows [][]any) (string, error)
	clear(ctx context.Context, rng string) error
}

// Client serializes its writes: the id lookup and the write that follows it
// must not interleave with another upsert.
type Client struct {
	mu                sync.Mutex
	values            valuesAPI
	transactionsSheet string
	debtsSheet        string
	// ids caches column A per sheet so a full export reads it once
	ids *cache.LRUCache[[]string]
}

// Ensure interface conformance
var _ ports.LedgerExporter = (*Client)(nil)

// NewClient creates a Sheets exporter authenticated with a service account.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(&serviceValues{svc: svc, spreadsheetID: opts.SpreadsheetID}, opts), nil
}

func newClient(values valuesAPI, opts Options) *Client {
	txSheet := strings.TrimSpace(opts.TransactionsSheet)
	if txSheet == "" {
		txSheet = "Transactions"
	}
	debtSheet := strings.TrimSpace(opts.DebtsSheet)
	if debtSheet == "" {
		debtSheet = "Debts"
	}
	ttl := opts.IndexTTL
	if ttl <= 0 {
		ttl = defaultIndexTTL
	}
	return &Client{
		values:            values,
		transactionsSheet: txSheet,
		debtsSheet:        debtSheet,
		ids:               cache.NewLRUCache[[]string](2, ttl),
	}
}

func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	var credentialsJSON []byte
	var err error

	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(opts.CredentialsJSON)
	case strings.TrimSpace(opts.CredentialsFile) != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", opts.CredentialsFile)
		credentialsJSON, err = os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// newHTTPClientWithPooling returns a keep-alive client sized for one API host
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

func (c *Client) UpsertTransaction(ctx context.Context, tx core.Transaction) error {
	if tx.ID <= 0 {
		return fmt.Errorf("export transaction: missing id")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.upsert(ctx, c.transactionsSheet, transactionHeader, strconv.FormatInt(tx.ID, 10), transactionRow(tx))
}

func (c *Client) RemoveTransaction(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	row, err := c.findRow(ctx, c.transactionsSheet, strconv.FormatInt(id, 10))
	if err != nil {
		return err
	}
	if row == 0 {
		return nil
	}
	rng := fmt.Sprintf("%s!A%d:%s%d", c.transactionsSheet, row, lastColumn(transactionHeader), row)
	if err := c.values.clear(ctx, rng); err != nil {
		c.ids.Delete(c.transactionsSheet)
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	c.ids.Update(c.transactionsSheet, func(ids []string) []string {
		ids = slices.Clone(ids)
		if row <= len(ids) {
			ids[row-1] = ""
		}
		return ids
	})
	return nil
}

func (c *Client) UpsertDebt(ctx context.Context, d core.Debt) error {
	if d.ID == "" {
		return fmt.Errorf("export debt: missing id")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.upsert(ctx, c.debtsSheet, debtHeader, d.ID, debtRow(d))
}

// TransactionIDs returns the ids in column A of the transactions sheet,
// skipping the header and cleared rows.
func (c *Client) TransactionIDs(ctx context.Context) ([]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cells, err := c.readIDs(ctx, c.transactionsSheet)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(cells))
	for _, cell := range cells {
		if id, err := strconv.ParseInt(strings.TrimSpace(cell), 10, 64); err == nil && id > 0 {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// upsert rewrites the row whose column A equals id, or appends a new one.
// An empty sheet gets the header first.
func (c *Client) upsert(ctx context.Context, sheet string, header []any, id string, values []any) error {
	ids, err := c.readIDs(ctx, sheet)
	if err != nil {
		return err
	}
	last := lastColumn(header)

	if len(ids) == 0 {
		rng := fmt.Sprintf("%s!A1:%s1", sheet, last)
		if err := c.values.update(ctx, rng, [][]any{header}); err != nil {
			c.ids.Delete(sheet)
			return fmt.Errorf("write header %s: %w", rng, err)
		}
		c.ids.Set(sheet, []string{fmt.Sprint(header[0])})
	}

	if row := indexOf(ids, id) + 1; row > 0 {
		rng := fmt.Sprintf("%s!A%d:%s%d", sheet, row, last, row)
		if err := c.values.update(ctx, rng, [][]any{values}); err != nil {
			c.ids.Delete(sheet)
			return fmt.Errorf("update %s: %w", rng, err)
		}
		return nil
	}

	rng := fmt.Sprintf("%s!A:%s", sheet, last)
	written, err := c.values.append(ctx, rng, [][]any{values})
	if err != nil {
		c.ids.Delete(sheet)
		return fmt.Errorf("append %s: %w", rng, err)
	}
	// The API appends after the last non-empty row of the table, which is
	// not the end of the index once trailing rows were cleared.
	row := rangeStartRow(written)
	if row == 0 {
		c.ids.Delete(sheet)
		return nil
	}
	c.ids.Update(sheet, func(ids []string) []string {
		ids = slices.Clone(ids)
		for len(ids) < row-1 {
			ids = append(ids, "")
		}
		return slices.Insert(ids, row-1, id)
	})
	return nil
}

// findRow returns the 1-based row holding id, or 0.
func (c *Client) findRow(ctx context.Context, sheet, id string) (int, error) {
	ids, err := c.readIDs(ctx, sheet)
	if err != nil {
		return 0, err
	}
	return indexOf(ids, id) + 1, nil
}

func (c *Client) readIDs(ctx context.Context, sheet string) ([]string, error) {
	if ids, ok := c.ids.Get(sheet); ok {
		return ids, nil
	}
	rng := fmt.Sprintf("%s!A:A", sheet)
	values, err := c.values.get(ctx, rng)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	ids := make([]string, len(values))
	for i, row := range values {
		ids[i] = safeGet(toStrings(row), 0)
	}
	c.ids.Set(sheet, ids)
	return ids, nil
}

// serviceValues adapts the generated Sheets client.
type serviceValues struct {
	svc           *gsheet.Service
	spreadsheetID string
}

func (s *serviceValues) get(ctx context.Context, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s *serviceValues) update(ctx context.Context, rng string, rows [][]any) error {
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}

func (s *serviceValues) append(ctx context.Context, rng string, rows [][]any) (string, error) {
	resp, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if resp.Updates == nil {
		return "", nil
	}
	return resp.Updates.UpdatedRange, nil
}

func (s *serviceValues) clear(ctx context.Context, rng string) error {
	_, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	return err
}
