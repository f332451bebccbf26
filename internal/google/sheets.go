// Package google stores the cafeteria tables in a Google spreadsheet.
//
// The spreadsheet keeps the historical layout: a "Paramètres" tab with the
// configured days, a "Réservations" tab and a "Caisse" tab holding the till
// ledger. The Caisse tab is created with its header row when missing.
package google

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	googleoauth "golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"cafeteria/internal/models"
	"cafeteria/internal/repository"
)

var _ repository.Store = (*SheetsStore)(nil)

// TillHeader is written on the first row of a newly created till tab.
var TillHeader = []interface{}{"date", "nom", "type", "base", "boisson", "chocolat", "total", "timestamp"}

// Config locates the spreadsheet and its tabs.
type Config struct {
	SpreadsheetID   string
	CredentialsFile string
	// CredentialsJSON takes precedence over CredentialsFile.
	CredentialsJSON   []byte
	DaysSheet         string
	ReservationsSheet string
	TillSheet         string
	RequestsPerMinute int
	Location          *time.Location
}

func (c *Config) applyDefaults() {
	if c.DaysSheet == "" {
		c.DaysSheet = "Paramètres"
	}
	if c.ReservationsSheet == "" {
		c.ReservationsSheet = "Réservations"
	}
	if c.TillSheet == "" {
		c.TillSheet = "Caisse"
	}
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = 60
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
}

// SheetsStore implements repository.Store on top of the Sheets v4 API.
type SheetsStore struct {
	service *sheets.Service
	cfg     Config
	limiter *rate.Limiter
	logger  *zerolog.Logger

	mu       sync.Mutex
	sheetIDs map[string]int64
}

// NewSheetsStore authenticates with a service account and returns a store.
func NewSheetsStore(ctx context.Context, cfg Config, logger *zerolog.Logger) (*SheetsStore, error) {
	data := cfg.CredentialsJSON
	if len(data) == 0 {
		if cfg.CredentialsFile == "" {
			return nil, fmt.Errorf("google credentials are not configured")
		}
		var err error
		data, err = os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials: %w", err)
		}
	}

	creds, err := googleoauth.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	svc, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewSheetsStoreWithService(svc, cfg, logger)
}

// NewSheetsStoreWithService wraps an already configured API client.
func NewSheetsStoreWithService(svc *sheets.Service, cfg Config, logger *zerolog.Logger) (*SheetsStore, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	cfg.applyDefaults()
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &SheetsStore{
		service:  svc,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 5),
		logger:   logger,
		sheetIDs: make(map[string]int64),
	}, nil
}

func (s *SheetsStore) wait(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("sheets rate limit: %w", err)
	}
	return nil
}

// Ping checks that the spreadsheet is reachable.
func (s *SheetsStore) Ping(ctx context.Context) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	_, err := s.service.Spreadsheets.Get(s.cfg.SpreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	return err
}

func (s *SheetsStore) Close() error { return nil }

// ListDays reads the day tab together with the font colour of the weekday column.
func (s *SheetsStore) ListDays(ctx context.Context) ([]models.Day, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := s.service.Spreadsheets.Get(s.cfg.SpreadsheetID).
		Ranges(a1(s.cfg.DaysSheet, "A2:E")).
		IncludeGridData(true).
		Fields("sheets(data(rowData(values(formattedValue,effectiveValue,effectiveFormat/textFormat))))").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.cfg.DaysSheet, err)
	}

	var days []models.Day
	for _, sh := range resp.Sheets {
		for _, grid := range sh.Data {
			for i, row := range grid.RowData {
				day, ok := s.dayFromRow(row.Values)
				if !ok {
					s.logger.Debug().Int("row", i+2).Msg("skipping day row without a valid date")
					continue
				}
				days = append(days, day)
			}
		}
	}
	return days, nil
}

func (s *SheetsStore) dayFromRow(cells []*sheets.CellData) (models.Day, bool) {
	if len(cells) == 0 {
		return models.Day{}, false
	}
	date, ok := cellDataDate(cells[0], s.cfg.Location)
	if !ok {
		return models.Day{}, false
	}
	day := models.Day{
		Date:         date,
		WeekdayLabel: strings.TrimSpace(formatted(cells, 1)),
		Menu:         formatted(cells, 2),
		IsOpen:       models.ParseFlag(formatted(cells, 3)),
		IsDisabled:   models.ParseFlag(formatted(cells, 4)),
	}
	if len(cells) > 1 && isRedText(cells[1]) {
		day.IsDisabled = true
	}
	return day, true
}

// SetDayOpen rewrites the open column of every row dated date.
func (s *SheetsStore) SetDayOpen(ctx context.Context, date time.Time, open bool) (bool, error) {
	rows, err := s.values(ctx, s.cfg.DaysSheet, "A2:A")
	if err != nil {
		return false, err
	}
	key := models.DateKey(date)
	var data []*sheets.ValueRange
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		if d, ok := cellDate(row[0], s.cfg.Location); ok && models.DateKey(d) == key {
			data = append(data, &sheets.ValueRange{
				Range:  a1(s.cfg.DaysSheet, fmt.Sprintf("D%d", i+2)),
				Values: [][]interface{}{{open}},
			})
		}
	}
	if len(data) == 0 {
		return false, nil
	}

	if err := s.wait(ctx); err != nil {
		return false, err
	}
	_, err = s.service.Spreadsheets.Values.BatchUpdate(s.cfg.SpreadsheetID, &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data:             data,
	}).Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("update %s: %w", s.cfg.DaysSheet, err)
	}
	return true, nil
}

func (s *SheetsStore) AppendDays(ctx context.Context, days ...models.Day) error {
	rows := make([][]interface{}, 0, len(days))
	for _, d := range days {
		rows = append(rows, dayRowValues(d))
	}
	return s.append(ctx, s.cfg.DaysSheet, "A:E", rows)
}

func (s *SheetsStore) AppendReservations(ctx context.Context, rs ...models.Reservation) error {
	rows := make([][]interface{}, 0, len(rs))
	for _, r := range rs {
		rows = append(rows, reservationRowValues(r))
	}
	return s.append(ctx, s.cfg.ReservationsSheet, "A:C", rows)
}

func (s *SheetsStore) ListReservations(ctx context.Context, date time.Time) ([]models.Reservation, error) {
	all, err := s.ListAllReservations(ctx)
	if err != nil {
		return nil, err
	}
	key := models.DateKey(date)
	var out []models.Reservation
	for _, r := range all {
		if r.Key() == key {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *SheetsStore) ListAllReservations(ctx context.Context) ([]models.Reservation, error) {
	rows, err := s.values(ctx, s.cfg.ReservationsSheet, "A2:C")
	if err != nil {
		return nil, err
	}
	out := make([]models.Reservation, 0, len(rows))
	for _, row := range rows {
		if r, ok := reservationFromRow(row, s.cfg.Location); ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// DeleteFirstReservation removes the matching sheet row with a DeleteDimension request.
func (s *SheetsStore) DeleteFirstReservation(ctx context.Context, date time.Time, name string) (bool, error) {
	rows, err := s.values(ctx, s.cfg.ReservationsSheet, "A2:C")
	if err != nil {
		return false, err
	}
	idx := -1
	key := models.DateKey(date)
	for i, row := range rows {
		r, ok := reservationFromRow(row, s.cfg.Location)
		if ok && r.Key() == key && strings.TrimSpace(r.Name) == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}

	sheetID, err := s.sheetID(ctx, s.cfg.ReservationsSheet)
	if err != nil {
		return false, err
	}
	// Row 1 holds the header; data row idx sits at zero-based index idx+1.
	start := int64(idx + 1)
	req := &sheets.BatchUpdateSpreadsheetRequest{Requests: []*sheets.Request{{
		DeleteDimension: &sheets.DeleteDimensionRequest{Range: &sheets.DimensionRange{
			SheetId:    sheetID,
			Dimension:  "ROWS",
			StartIndex: start,
			EndIndex:   start + 1,
		}},
	}}}
	if err := s.wait(ctx); err != nil {
		return false, err
	}
	if _, err := s.service.Spreadsheets.BatchUpdate(s.cfg.SpreadsheetID, req).Context(ctx).Do(); err != nil {
		return false, fmt.Errorf("delete reservation row: %w", err)
	}
	return true, nil
}

func (s *SheetsStore) AppendTillEntries(ctx context.Context, entries ...models.TillEntry) error {
	rows := make([][]interface{}, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, tillRowValues(e))
	}
	return s.withTillSheet(ctx, func() error {
		return s.append(ctx, s.cfg.TillSheet, "A:H", rows)
	})
}

func (s *SheetsStore) ListTillEntries(ctx context.Context, date time.Time) ([]models.TillEntry, error) {
	var rows [][]interface{}
	err := s.withTillSheet(ctx, func() error {
		var err error
		rows, err = s.values(ctx, s.cfg.TillSheet, "A2:H")
		return err
	})
	if err != nil {
		return nil, err
	}
	key := models.DateKey(date)
	var out []models.TillEntry
	for _, row := range rows {
		e, ok := tillEntryFromRow(row, s.cfg.Location)
		if ok && e.Key() == key {
			out = append(out, e)
		}
	}
	return out, nil
}

// withTillSheet runs fn once the till tab exists. When the tab was removed
// behind the cached layout, the cache is dropped and fn runs once more.
func (s *SheetsStore) withTillSheet(ctx context.Context, fn func() error) error {
	if err := s.ensureTillSheet(ctx); err != nil {
		return err
	}
	err := fn()
	if !isUnknownRange(err) {
		return err
	}
	s.logger.Warn().Err(err).Str("sheet", s.cfg.TillSheet).Msg("till sheet missing from cached layout, reloading")
	s.ClearCache()
	if err := s.ensureTillSheet(ctx); err != nil {
		return err
	}
	return fn()
}

// ensureTillSheet creates the till tab with its header when it does not exist.
func (s *SheetsStore) ensureTillSheet(ctx context.Context) error {
	if _, err := s.sheetID(ctx, s.cfg.TillSheet); err == nil {
		return nil
	} else if !isMissingSheet(err) {
		return err
	}

	if err := s.wait(ctx); err != nil {
		return err
	}
	resp, err := s.service.Spreadsheets.BatchUpdate(s.cfg.SpreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{
				Title:          s.cfg.TillSheet,
				GridProperties: &sheets.GridProperties{RowCount: 2000, ColumnCount: int64(len(TillHeader))},
			}},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("create %s sheet: %w", s.cfg.TillSheet, err)
	}
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil {
		s.mu.Lock()
		s.sheetIDs[s.cfg.TillSheet] = resp.Replies[0].AddSheet.Properties.SheetId
		s.mu.Unlock()
	}

	if err := s.wait(ctx); err != nil {
		return err
	}
	_, err = s.service.Spreadsheets.Values.Update(s.cfg.SpreadsheetID, a1(s.cfg.TillSheet, "A1:H1"),
		&sheets.ValueRange{Values: [][]interface{}{TillHeader}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s header: %w", s.cfg.TillSheet, err)
	}
	s.logger.Info().Str("sheet", s.cfg.TillSheet).Msg("created till sheet")
	return nil
}

type missingSheetError struct{ title string }

func (e *missingSheetError) Error() string { return fmt.Sprintf("sheet %q not found", e.title) }

func isMissingSheet(err error) bool {
	_, ok := err.(*missingSheetError)
	return ok
}

// isUnknownRange reports the 400 the API returns for a range on a tab that no longer exists.
func isUnknownRange(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusBadRequest &&
		strings.Contains(gerr.Message, "Unable to parse range")
}

// sheetID resolves a tab title to its numeric id, caching the spreadsheet layout.
func (s *SheetsStore) sheetID(ctx context.Context, title string) (int64, error) {
	s.mu.Lock()
	id, ok := s.sheetIDs[title]
	s.mu.Unlock()
	if ok {
		return id, nil
	}

	if err := s.wait(ctx); err != nil {
		return 0, err
	}
	resp, err := s.service.Spreadsheets.Get(s.cfg.SpreadsheetID).
		Fields("sheets(properties(sheetId,title))").
		Context(ctx).
		Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet layout: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sh := range resp.Sheets {
		if sh.Properties != nil {
			s.sheetIDs[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	if id, ok := s.sheetIDs[title]; ok {
		return id, nil
	}
	return 0, &missingSheetError{title: title}
}

// ClearCache forgets the cached tab ids.
func (s *SheetsStore) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sheetIDs = make(map[string]int64)
}

func (s *SheetsStore) values(ctx context.Context, sheet, rng string) ([][]interface{}, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := s.service.Spreadsheets.Values.Get(s.cfg.SpreadsheetID, a1(sheet, rng)).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("SERIAL_NUMBER").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sheet, err)
	}
	return resp.Values, nil
}

func (s *SheetsStore) append(ctx context.Context, sheet, rng string, rows [][]interface{}) error {
	if len(rows) == 0 {
		return nil
	}
	if err := s.wait(ctx); err != nil {
		return err
	}
	_, err := s.service.Spreadsheets.Values.Append(s.cfg.SpreadsheetID, a1(sheet, rng), &sheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", sheet, err)
	}
	s.logger.Debug().Str("sheet", sheet).Int("rows", len(rows)).Msg("rows appended")
	return nil
}

// a1 builds a quoted A1 range such as 'Paramètres'!A2:E.
func a1(sheet, rng string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + rng
}

func dayRowValues(d models.Day) []interface{} {
	return []interface{}{models.DateKey(d.Date), d.WeekdayLabel, d.Menu, d.IsOpen, d.IsDisabled}
}

func reservationRowValues(r models.Reservation) []interface{} {
	return []interface{}{models.DateKey(r.Date), r.Name, r.CreatedAt.UTC().Format(models.TimestampLayout)}
}

func tillRowValues(e models.TillEntry) []interface{} {
	return []interface{}{
		models.DateKey(e.Date),
		e.Name,
		string(e.Kind),
		e.Base.InexactFloat64(),
		e.Beverage.InexactFloat64(),
		e.Chocolate.InexactFloat64(),
		e.LineTotal.InexactFloat64(),
		e.CreatedAt.UTC().Format(models.TimestampLayout),
	}
}

func reservationFromRow(row []interface{}, loc *time.Location) (models.Reservation, bool) {
	if len(row) < 2 {
		return models.Reservation{}, false
	}
	date, ok := cellDate(row[0], loc)
	if !ok {
		return models.Reservation{}, false
	}
	r := models.Reservation{Date: date, Name: cellString(row[1])}
	if len(row) > 2 {
		r.CreatedAt = cellTime(row[2])
	}
	return r, true
}

func tillEntryFromRow(row []interface{}, loc *time.Location) (models.TillEntry, bool) {
	if len(row) < 7 {
		return models.TillEntry{}, false
	}
	date, ok := cellDate(row[0], loc)
	if !ok {
		return models.TillEntry{}, false
	}
	e := models.TillEntry{
		Date:      date,
		Name:      cellString(row[1]),
		Kind:      models.TillKind(cellString(row[2])),
		Base:      cellDecimal(row[3]),
		Beverage:  cellDecimal(row[4]),
		Chocolate: cellDecimal(row[5]),
		LineTotal: cellDecimal(row[6]),
	}
	if len(row) > 7 {
		e.CreatedAt = cellTime(row[7])
	}
	return e, true
}

// sheetsEpoch is day zero of spreadsheet serial dates.
var sheetsEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

func serialDate(v float64, loc *time.Location) time.Time {
	t := sheetsEpoch.AddDate(0, 0, int(math.Floor(v)))
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func cellDate(v interface{}, loc *time.Location) (time.Time, bool) {
	switch x := v.(type) {
	case float64:
		return serialDate(x, loc), true
	case string:
		t, err := models.ParseDate(x, loc)
		return t, err == nil
	default:
		return time.Time{}, false
	}
}

func cellDataDate(c *sheets.CellData, loc *time.Location) (time.Time, bool) {
	if c == nil {
		return time.Time{}, false
	}
	if t, err := models.ParseDate(c.FormattedValue, loc); err == nil {
		return t, true
	}
	if c.EffectiveValue != nil && c.EffectiveValue.NumberValue != nil {
		return serialDate(*c.EffectiveValue.NumberValue, loc), true
	}
	return time.Time{}, false
}

func cellString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

func cellDecimal(v interface{}) decimal.Decimal {
	switch x := v.(type) {
	case float64:
		return decimal.NewFromFloat(x)
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(x), ",", ".")
		if s == "" {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

func cellTime(v interface{}) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t
		}
	}
	return time.Time{}
}

func formatted(cells []*sheets.CellData, i int) string {
	if i >= len(cells) || cells[i] == nil {
		return ""
	}
	return cells[i].FormattedValue
}

// isRedText reports whether the cell text is rendered in a red font, which marks
// a disabled weekday in the day tab.
func isRedText(c *sheets.CellData) bool {
	if c == nil || c.EffectiveFormat == nil || c.EffectiveFormat.TextFormat == nil {
		return false
	}
	tf := c.EffectiveFormat.TextFormat
	color := tf.ForegroundColor
	if tf.ForegroundColorStyle != nil && tf.ForegroundColorStyle.RgbColor != nil {
		color = tf.ForegroundColorStyle.RgbColor
	}
	if color == nil {
		return false
	}
	return color.Red >= 0.8 && color.Green <= 0.3 && color.Blue <= 0.3
}
