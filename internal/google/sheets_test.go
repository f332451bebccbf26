package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"cafeteria/internal/models"
)

type fakeSheets struct {
	mu       sync.Mutex
	values   map[string]string
	layout   string
	grid     string
	requests []string
	// calls names every API call in order.
	calls   []string
	updates []valueUpdate
	// staleRange makes the next values read whose path contains it fail as
	// the API does for a deleted tab.
	staleRange string
}

type valueUpdate struct {
	path   string
	option string
	body   string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	path := r.URL.Path
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		f.calls = append(f.calls, "append")
		var vr sheets.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.appendRows(tabOf(path), vr.Values)
		_, _ = io.WriteString(w, `{}`)
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/values:batchUpdate"):
		f.calls = append(f.calls, "values:batchUpdate")
		body, _ := io.ReadAll(r.Body)
		f.requests = append(f.requests, string(body))
		_, _ = io.WriteString(w, `{}`)
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		body, _ := io.ReadAll(r.Body)
		f.requests = append(f.requests, string(body))
		if strings.Contains(string(body), `"addSheet"`) {
			f.calls = append(f.calls, "addSheet")
			_, _ = io.WriteString(w, `{"spreadsheetId":"sheet-1","replies":[{"addSheet":{"properties":{"sheetId":11,"title":"Caisse"}}}]}`)
			return
		}
		f.calls = append(f.calls, "batchUpdate")
		_, _ = io.WriteString(w, `{"spreadsheetId":"sheet-1","replies":[{}]}`)
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		f.calls = append(f.calls, "update")
		body, _ := io.ReadAll(r.Body)
		f.updates = append(f.updates, valueUpdate{path: path, option: r.URL.Query().Get("valueInputOption"), body: string(body)})
		_, _ = io.WriteString(w, `{}`)
	case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
		f.calls = append(f.calls, "values")
		if f.staleRange != "" && strings.Contains(path, f.staleRange) {
			f.staleRange = ""
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"code":400,"message":"Unable to parse range: 'Caisse'!A2:H","status":"INVALID_ARGUMENT"}}`)
			return
		}
		for sheet, body := range f.values {
			if strings.Contains(path, sheet) {
				_, _ = io.WriteString(w, body)
				return
			}
		}
		_, _ = io.WriteString(w, `{}`)
	case r.Method == http.MethodGet && r.URL.Query().Get("includeGridData") == "true":
		f.calls = append(f.calls, "grid")
		_, _ = io.WriteString(w, f.grid)
	case r.Method == http.MethodGet:
		f.calls = append(f.calls, "layout")
		_, _ = io.WriteString(w, f.layout)
	default:
		http.NotFound(w, r)
	}
}

// appendRows adds rows to the stored values of tab so later reads return them.
func (f *fakeSheets) appendRows(tab string, rows [][]interface{}) {
	if f.values == nil {
		f.values = make(map[string]string)
	}
	var current struct {
		Values [][]interface{} `json:"values"`
	}
	if body, ok := f.values[tab]; ok {
		_ = json.Unmarshal([]byte(body), &current)
	}
	current.Values = append(current.Values, rows...)
	body, _ := json.Marshal(current)
	f.values[tab] = string(body)
}

func (f *fakeSheets) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSheets) resetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// tabOf extracts the tab title from a path such as .../values/'Caisse'!A:H:append.
func tabOf(path string) string {
	i := strings.Index(path, "/values/")
	if i < 0 {
		return ""
	}
	rng := strings.TrimPrefix(path[i+len("/values/"):], "'")
	if j := strings.Index(rng, "'!"); j >= 0 {
		return rng[:j]
	}
	return rng
}

func newTestStore(t *testing.T, fake *fakeSheets) *SheetsStore {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	store, err := NewSheetsStoreWithService(svc, Config{SpreadsheetID: "sheet-1", RequestsPerMinute: 6000}, nil)
	require.NoError(t, err)
	return store
}

func TestA1(t *testing.T) {
	assert.Equal(t, "'Paramètres'!A2:E", a1("Paramètres", "A2:E"))
	assert.Equal(t, "'Jo''s'!A:C", a1("Jo's", "A:C"))
}

func TestCellConversions(t *testing.T) {
	d, ok := cellDate(45943.0, time.UTC)
	require.True(t, ok)
	assert.Equal(t, "2025-10-13", models.DateKey(d))

	d, ok = cellDate("13.10.2025", time.UTC)
	require.True(t, ok)
	assert.Equal(t, "2025-10-13", models.DateKey(d))

	_, ok = cellDate("", time.UTC)
	assert.False(t, ok)

	assert.True(t, decimal.RequireFromString("1.5").Equal(cellDecimal(1.5)))
	assert.True(t, decimal.RequireFromString("1.5").Equal(cellDecimal("1,5")))
	assert.True(t, cellDecimal("").IsZero())
	assert.True(t, cellDecimal(nil).IsZero())

	assert.Equal(t, "12", cellString(12.0))
	assert.Equal(t, "", cellString(nil))

	ts := cellTime("2025-10-13T09:30:00.123456")
	assert.Equal(t, 9, ts.Hour())
}

func TestTillRowValues(t *testing.T) {
	e := models.TillEntry{
		Date:      time.Date(2025, 10, 13, 0, 0, 0, 0, time.UTC),
		Name:      "Alice",
		Kind:      models.KindStaffCard,
		Base:      decimal.NewFromInt(12),
		Beverage:  decimal.Zero,
		Chocolate: decimal.RequireFromString("1.5"),
		LineTotal: decimal.RequireFromString("1.5"),
		CreatedAt: time.Date(2025, 10, 13, 11, 0, 0, 0, time.UTC),
	}
	row := tillRowValues(e)
	require.Len(t, row, len(TillHeader))
	assert.Equal(t, []interface{}{"2025-10-13", "Alice", "Prof (CARD)", 12.0, 0.0, 1.5, 1.5, "2025-10-13T11:00:00Z"}, row)

	back, ok := tillEntryFromRow(row, time.UTC)
	require.True(t, ok)
	assert.Equal(t, e.Kind, back.Kind)
	assert.True(t, e.LineTotal.Equal(back.LineTotal))
	assert.True(t, e.CreatedAt.Equal(back.CreatedAt))

	_, ok = tillEntryFromRow([]interface{}{"2025-10-13", "x"}, time.UTC)
	assert.False(t, ok)
}

func TestIsRedText(t *testing.T) {
	red := &sheets.CellData{EffectiveFormat: &sheets.CellFormat{TextFormat: &sheets.TextFormat{
		ForegroundColor: &sheets.Color{Red: 1},
	}}}
	black := &sheets.CellData{EffectiveFormat: &sheets.CellFormat{TextFormat: &sheets.TextFormat{
		ForegroundColor: &sheets.Color{},
	}}}
	assert.True(t, isRedText(red))
	assert.False(t, isRedText(black))
	assert.False(t, isRedText(&sheets.CellData{}))
}

func TestListDays(t *testing.T) {
	fake := &fakeSheets{grid: `{"sheets":[{"data":[{"rowData":[
		{"values":[{"formattedValue":"2025-10-13"},{"formattedValue":"Lundi","effectiveFormat":{"textFormat":{"foregroundColor":{"red":1}}}},{"formattedValue":"Pâtes"},{"formattedValue":"TRUE"}]},
		{"values":[{"formattedValue":"menu"}]},
		{"values":[{"formattedValue":"14.10.2025"},{"formattedValue":"Mardi"},{"formattedValue":"Soupe"},{"formattedValue":"FALSE"},{"formattedValue":"oui"}]}
	]}]}]}`}
	store := newTestStore(t, fake)

	days, err := store.ListDays(context.Background())
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "Lundi", days[0].WeekdayLabel)
	assert.True(t, days[0].IsOpen)
	assert.True(t, days[0].IsDisabled)
	assert.Equal(t, "Pâtes", days[0].Menu)
	assert.False(t, days[1].IsOpen)
	assert.True(t, days[1].IsDisabled)
}

func TestReservationsAndDelete(t *testing.T) {
	fake := &fakeSheets{
		values: map[string]string{
			"Réservations": `{"values":[["2025-10-13","Alice","2025-10-10T08:00:00Z"],[45943,"Bob"],["14.10.2025","Alice"],["13.10.2025"," Alice "]]}`,
		},
		layout: `{"sheets":[{"properties":{"sheetId":7,"title":"Réservations"}}]}`,
	}
	store := newTestStore(t, fake)
	ctx := context.Background()
	monday := time.Date(2025, 10, 13, 0, 0, 0, 0, time.UTC)

	rs, err := store.ListReservations(ctx, monday)
	require.NoError(t, err)
	require.Len(t, rs, 3)
	assert.Equal(t, "Bob", rs[1].Name)

	found, err := store.DeleteFirstReservation(ctx, monday, "Bob")
	require.NoError(t, err)
	assert.True(t, found)

	require.Len(t, fake.requests, 1)
	var req sheets.BatchUpdateSpreadsheetRequest
	require.NoError(t, json.Unmarshal([]byte(fake.requests[0]), &req))
	rng := req.Requests[0].DeleteDimension.Range
	assert.Equal(t, int64(7), rng.SheetId)
	assert.Equal(t, int64(2), rng.StartIndex)
	assert.Equal(t, int64(3), rng.EndIndex)

	found, err = store.DeleteFirstReservation(ctx, monday, "Carl")
	require.NoError(t, err)
	assert.False(t, found)
}

func tillEntry(name string, kind models.TillKind, total string) models.TillEntry {
	amount := decimal.RequireFromString(total)
	return models.TillEntry{
		Date:      time.Date(2025, 10, 13, 0, 0, 0, 0, time.UTC),
		Name:      name,
		Kind:      kind,
		Base:      amount,
		Beverage:  decimal.Zero,
		Chocolate: decimal.Zero,
		LineTotal: amount,
		CreatedAt: time.Date(2025, 10, 13, 11, 30, 0, 0, time.UTC),
	}
}

func TestAppendTillEntries_CreatesMissingSheet(t *testing.T) {
	fake := &fakeSheets{layout: `{"sheets":[{"properties":{"sheetId":1,"title":"Paramètres"}},{"properties":{"sheetId":7,"title":"Réservations"}}]}`}
	store := newTestStore(t, fake)
	ctx := context.Background()
	monday := time.Date(2025, 10, 13, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendTillEntries(ctx, tillEntry("Alice", models.KindSandwich, "3.5")))
	assert.Equal(t, []string{"layout", "addSheet", "update", "append"}, fake.callLog())

	require.Len(t, fake.requests, 1)
	var add sheets.BatchUpdateSpreadsheetRequest
	require.NoError(t, json.Unmarshal([]byte(fake.requests[0]), &add))
	require.Len(t, add.Requests, 1)
	require.NotNil(t, add.Requests[0].AddSheet)
	props := add.Requests[0].AddSheet.Properties
	assert.Equal(t, "Caisse", props.Title)
	assert.Equal(t, int64(len(TillHeader)), props.GridProperties.ColumnCount)

	require.Len(t, fake.updates, 1)
	header := fake.updates[0]
	assert.True(t, strings.HasSuffix(header.path, "'Caisse'!A1:H1"), header.path)
	assert.Equal(t, "RAW", header.option)
	var vr sheets.ValueRange
	require.NoError(t, json.Unmarshal([]byte(header.body), &vr))
	assert.Equal(t, [][]interface{}{TillHeader}, vr.Values)

	fake.resetCalls()
	require.NoError(t, store.AppendTillEntries(ctx, tillEntry("Bob", models.KindBeverage, "0.8")))
	assert.Equal(t, []string{"append"}, fake.callLog(), "the new tab id is cached")

	entries, err := store.ListTillEntries(ctx, monday)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Alice", entries[0].Name)
	assert.Equal(t, models.KindSandwich, entries[0].Kind)
	assert.True(t, decimal.RequireFromString("3.5").Equal(entries[0].LineTotal))
	assert.Equal(t, "Bob", entries[1].Name)

	entries, err = store.ListTillEntries(ctx, monday.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListTillEntries_ReloadsDeletedSheet(t *testing.T) {
	fake := &fakeSheets{
		layout:     `{"sheets":[{"properties":{"sheetId":1,"title":"Paramètres"}}]}`,
		staleRange: "Caisse",
	}
	store := newTestStore(t, fake)
	store.sheetIDs["Caisse"] = 99

	entries, err := store.ListTillEntries(context.Background(), time.Date(2025, 10, 13, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, []string{"values", "layout", "addSheet", "update", "values"}, fake.callLog())

	store.mu.Lock()
	assert.Equal(t, int64(11), store.sheetIDs["Caisse"])
	store.mu.Unlock()
}

func TestListTillEntries_OtherErrorsAreNotRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Path, "/values/") {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"error":{"code":403,"message":"The caller does not have permission","status":"PERMISSION_DENIED"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"sheets":[{"properties":{"sheetId":11,"title":"Caisse"}}]}`)
	}))
	t.Cleanup(srv.Close)
	svc, err := sheets.NewService(context.Background(), option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	store, err := NewSheetsStoreWithService(svc, Config{SpreadsheetID: "sheet-1", RequestsPerMinute: 6000}, nil)
	require.NoError(t, err)

	_, err = store.ListTillEntries(context.Background(), time.Date(2025, 10, 13, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.False(t, isUnknownRange(err))
	store.mu.Lock()
	assert.Equal(t, int64(11), store.sheetIDs["Caisse"], "layout cache kept")
	store.mu.Unlock()
}

func TestSetDayOpen(t *testing.T) {
	fake := &fakeSheets{values: map[string]string{
		"Paramètres": `{"values":[["2025-10-13"],["14.10.2025"],[45943]]}`,
	}}
	store := newTestStore(t, fake)
	ctx := context.Background()

	found, err := store.SetDayOpen(ctx, time.Date(2025, 10, 13, 0, 0, 0, 0, time.UTC), false)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"values", "values:batchUpdate"}, fake.callLog())

	require.Len(t, fake.requests, 1)
	var req sheets.BatchUpdateValuesRequest
	require.NoError(t, json.Unmarshal([]byte(fake.requests[0]), &req))
	assert.Equal(t, "USER_ENTERED", req.ValueInputOption)
	require.Len(t, req.Data, 2)
	assert.Equal(t, "'Paramètres'!D2", req.Data[0].Range)
	assert.Equal(t, "'Paramètres'!D4", req.Data[1].Range)
	for _, vr := range req.Data {
		assert.Equal(t, [][]interface{}{{false}}, vr.Values)
	}

	fake.resetCalls()
	found, err = store.SetDayOpen(ctx, time.Date(2025, 10, 20, 0, 0, 0, 0, time.UTC), true)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, []string{"values"}, fake.callLog(), "no write when no row matches")
	assert.Len(t, fake.requests, 1)
}
