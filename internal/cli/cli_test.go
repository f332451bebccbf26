package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafeteria/internal/config"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testConfig(t *testing.T) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	path = writeFile(t, dir, "config.yaml", `
storage:
  backend: sqlite
database:
  path: `+filepath.Join(dir, "cafeteria.db")+`
rules:
  timezone: UTC
`)
	return dir, path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	cmd := NewRootCmd(&logger)
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestCommands_EndToEnd(t *testing.T) {
	dir, cfgPath := testConfig(t)
	days := writeFile(t, dir, "params.csv", "date_iso;jour;menu;open;disabled\n2025-10-13;Lundi;Lasagnes;1;0\n")
	resas := writeFile(t, dir, "resas.csv", "date_iso;name\n2025-10-13;Alice\n2025-10-13;Bob\n")

	out, err := run(t, "--config", cfgPath, "import", "--days", days, "--reservations", resas)
	require.NoError(t, err)
	assert.Equal(t, "1 jours, 2 réservations importés\n", out)

	out, err = run(t, "--config", cfgPath, "send-list", "--date", "13.10.2025")
	require.NoError(t, err)
	assert.Contains(t, out, "Lundi 13.10: 2 inscrits")
	assert.Contains(t, out, " 1. Alice")
	assert.NotContains(t, out, "jour absent")

	out, err = run(t, "--config", cfgPath, "close-till", "--date", "2025-10-13")
	require.NoError(t, err)
	assert.Contains(t, out, "Clôture Lundi 13.10")
	assert.Contains(t, out, "Attendu en caisse: 150.00")

	out, err = run(t, "--config", cfgPath, "close-till", "--date", "2025-10-13")
	require.NoError(t, err)
	assert.Equal(t, "caisse déjà clôturée pour 2025-10-13\n", out)

	xlsx := filepath.Join(dir, "caisse.xlsx")
	out, err = run(t, "--config", cfgPath, "export", "--date", "2025-10-13", "--out", xlsx)
	require.NoError(t, err)
	assert.Equal(t, xlsx+"\n", out)
	info, err := os.Stat(xlsx)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestImport_RequiresAFile(t *testing.T) {
	_, cfgPath := testConfig(t)
	_, err := run(t, "--config", cfgPath, "import")
	assert.Error(t, err)
}

func TestSendList_InvalidDate(t *testing.T) {
	_, cfgPath := testConfig(t)
	_, err := run(t, "--config", cfgPath, "send-list", "--date", "lundi")
	assert.Error(t, err)
}

func TestMissingConfig(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "send-list")
	assert.Error(t, err)
}

func TestRulesAndPricing(t *testing.T) {
	cfg, err := config.Parse([]byte("rules:\n  cash_float: \"200\"\n  max_menus: 30\n"))
	require.NoError(t, err)

	rules, err := Rules(cfg)
	require.NoError(t, err)
	assert.Equal(t, 30, rules.MaxMenus)
	assert.Equal(t, 40, rules.MaxReservations)
	assert.Equal(t, "200", rules.CashFloat.String())
	assert.Equal(t, "Europe/Zurich", rules.Location.String())

	p := Pricing(cfg)
	assert.Equal(t, "8", p.StudentMenu.String())
	assert.Equal(t, "1.5", p.Chocolate.String())
}

func TestScheduledWeekdays(t *testing.T) {
	got := ScheduledWeekdays([]string{"Lundi", "Jeudi", "Funday"})
	assert.Equal(t, []time.Weekday{time.Monday, time.Thursday}, got)
}

func TestNewApp_MemoryBackend(t *testing.T) {
	cfg, err := config.Parse([]byte("storage:\n  backend: memory\nrate_limit:\n  enabled: true\n"))
	require.NoError(t, err)
	logger := zerolog.New(io.Discard)

	app, err := NewApp(context.Background(), cfg, &logger)
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.DB)
	assert.Nil(t, app.Redis)
	assert.NotNil(t, app.Limiter)
	require.NoError(t, app.Store.Ping(context.Background()))
}
