package importer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafeteria/internal/repository/memstore"
)

func TestImport(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	im := New(store, store, time.UTC)

	days := "\ufeffdate_iso;jour;menu;open;disabled\n" +
		"2025-10-13;Lundi;Lasagnes;VRAI;\n" +
		"14.10.2025;;Soupe;0;1\n"
	resas := "date_iso;name\n2025-10-13;Alice\n2025-10-13;  \n2025-10-13; Bob\n"

	res, err := im.Import(ctx, strings.NewReader(days), strings.NewReader(resas))
	require.NoError(t, err)
	assert.Equal(t, Result{Days: 2, Reservations: 2}, res)

	got, err := store.ListDays(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].IsOpen)
	assert.Equal(t, "Lasagnes", got[0].Menu)
	assert.Equal(t, "Mardi", got[1].WeekdayLabel)
	assert.True(t, got[1].IsDisabled)
	assert.False(t, got[1].IsOpen)

	rs, err := store.ListReservations(ctx, got[0].Date)
	require.NoError(t, err)
	require.Len(t, rs, 2)
	assert.Equal(t, "Bob", rs[1].Name)
}

func TestImportRejectsBadFiles(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	im := New(store, store, time.UTC)

	_, err := im.Import(ctx, strings.NewReader("date;jour\n2025-10-13;Lundi\n"), nil)
	assert.ErrorContains(t, err, `missing column "date_iso"`)

	_, err = im.Import(ctx, strings.NewReader("date_iso;jour\n2025-10-13;Lundi\n"), strings.NewReader("date_iso;name\nhier;Alice\n"))
	assert.ErrorContains(t, err, "line 2")

	days, err := store.ListDays(ctx)
	require.NoError(t, err)
	assert.Empty(t, days, "nothing is written when a file fails to parse")

	res, err := im.Import(ctx, strings.NewReader(""), nil)
	require.NoError(t, err)
	assert.Zero(t, res.Days)
}
