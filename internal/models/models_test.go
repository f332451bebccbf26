package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Zurich")
	require.NoError(t, err)

	t.Run("DisplayFormat", func(t *testing.T) {
		d, err := ParseDate("12.10.2026", loc)
		require.NoError(t, err)
		assert.Equal(t, "2026-10-12", DateKey(d))
		assert.Equal(t, loc, d.Location())
	})

	t.Run("CanonicalFormat", func(t *testing.T) {
		d, err := ParseDate(" 2026-10-12 ", loc)
		require.NoError(t, err)
		assert.Equal(t, "12.10.2026", DisplayDate(d))
	})

	t.Run("Timestamp", func(t *testing.T) {
		d, err := ParseDate("2026-10-11T23:30:00Z", loc)
		require.NoError(t, err)
		// 23:30 UTC is already the 12th in Zurich.
		assert.Equal(t, "2026-10-12", DateKey(d))
	})

	t.Run("Invalid", func(t *testing.T) {
		_, err := ParseDate("12/10/2026", loc)
		assert.Error(t, err)
		_, err = ParseDate("", loc)
		assert.Error(t, err)
	})
}

func TestPrettyHeader(t *testing.T) {
	d := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "Lundi 12.10", PrettyHeader(d))
	assert.Equal(t, "Lundi", WeekdayLabel(d))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "JEAN DUPONT", NormalizeName("  jean   Dupont "))
	assert.Equal(t, "ÉLODIE", NormalizeName("élodie"))
	assert.Equal(t, "STRASSE", NormalizeName("straße"))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestTillKind(t *testing.T) {
	assert.True(t, KindStudentCash.IsMenu())
	assert.True(t, KindStaffCard.IsMenu())
	assert.True(t, TillKind("Menu spécial").IsMenu())
	assert.False(t, KindSandwich.IsMenu())
	assert.False(t, KindClosed.IsMenu())

	assert.True(t, KindStudentCard.IsStudent())
	assert.True(t, TillKind("ELEVE (cash)").IsStudent())
	assert.False(t, KindStaffCash.IsStudent())
}

func TestMenuKind(t *testing.T) {
	assert.Equal(t, KindStudentCash, MenuKind(ParseRole("eleve"), ParsePaymentMethod("")))
	assert.Equal(t, KindStudentCard, MenuKind(ParseRole("STUDENT"), ParsePaymentMethod("card")))
	assert.Equal(t, KindStaffCash, MenuKind(ParseRole("PROF"), ParsePaymentMethod("CASH")))
	assert.Equal(t, KindStaffCard, MenuKind(ParseRole(""), PaymentCard))
}

func TestParseFlag(t *testing.T) {
	for _, s := range []string{"TRUE", "vrai", "1", " yes "} {
		assert.True(t, ParseFlag(s), s)
	}
	for _, s := range []string{"", "FALSE", "0", "faux"} {
		assert.False(t, ParseFlag(s), s)
	}
}
