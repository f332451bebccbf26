package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cafeteria/internal/events"
	"cafeteria/internal/models"
	"cafeteria/internal/notify"
	"cafeteria/internal/repository"
)

const (
	GridColumns = 4
	GridRows    = 10
)

// Grid lays names out column by column; Grid[row][col] is empty past the last name.
type Grid [GridRows][GridColumns]string

// BuildGrid fills the grid column-major with at most GridColumns*GridRows names.
func BuildGrid(names []string) Grid {
	var g Grid
	for i, name := range names {
		if i >= GridColumns*GridRows {
			break
		}
		g[i%GridRows][i/GridRows] = name
	}
	return g
}

// ListResult describes one run of the daily close.
type ListResult struct {
	Date  time.Time
	Names []string
	// DayFound is false when no configured day matched the date.
	DayFound bool
}

// DailyClose freezes the day's reservation list.
type DailyClose struct {
	days         repository.DayRepository
	reservations repository.ReservationRepository
	rules        Rules
	notifier     Notifier
	recipients   []string
	events       EventPublisher
	logger       *zerolog.Logger
}

func NewDailyClose(
	days repository.DayRepository,
	reservations repository.ReservationRepository,
	rules Rules,
	notifier Notifier,
	recipients []string,
	publisher EventPublisher,
	logger *zerolog.Logger,
) *DailyClose {
	return &DailyClose{
		days:         days,
		reservations: reservations,
		rules:        rules,
		notifier:     notifier,
		recipients:   recipients,
		events:       publisher,
		logger:       orNop(logger),
	}
}

// SendListAndClose runs the daily close for today.
func (d *DailyClose) SendListAndClose(ctx context.Context) (ListResult, error) {
	return d.SendListAndCloseFor(ctx, d.rules.Today())
}

// SendListAndCloseFor mails the reservation grid of date and closes the day.
// Calling it twice sends the mail twice; the day stays closed.
func (d *DailyClose) SendListAndCloseFor(ctx context.Context, date time.Time) (ListResult, error) {
	rows, err := d.reservations.ListReservations(ctx, date)
	if err != nil {
		return ListResult{}, fmt.Errorf("list reservations: %w", err)
	}
	names := reservationNames(rows)

	if d.notifier != nil {
		msg, err := listMessage(date, names, d.rules.CashierURL(date))
		if err != nil {
			return ListResult{}, err
		}
		msg.To = d.recipients
		if err := d.notifier.Send(ctx, msg); err != nil {
			d.logger.Error().Err(err).Str("date", models.DateKey(date)).Msg("failed to send reservation list")
		}
	}

	found, err := d.days.SetDayOpen(ctx, date, false)
	if err != nil {
		return ListResult{}, fmt.Errorf("close day: %w", err)
	}
	if !found {
		d.logger.Warn().Str("date", models.DateKey(date)).Msg("no configured day to close")
	}

	d.logger.Info().Str("date", models.DateKey(date)).Int("reservations", len(names)).Msg("reservation list sent")
	publish(d.events, events.ListSent, date, map[string]string{"count": strconv.Itoa(len(names))})
	return ListResult{Date: date, Names: names, DayFound: found}, nil
}

func listMessage(date time.Time, names []string, link string) (notify.Message, error) {
	pretty := models.PrettyHeader(date)
	grid := BuildGrid(names)
	shown := len(names)
	if shown > GridColumns*GridRows {
		shown = GridColumns * GridRows
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Inscriptions pour %s (%d)\n\n", pretty, shown)
	for _, row := range grid {
		if row == ([GridColumns]string{}) {
			continue
		}
		cells := make([]string, GridColumns)
		for c, name := range row {
			cells[c] = fmt.Sprintf("%-24s", name)
		}
		text.WriteString(strings.TrimRight(strings.Join(cells, " "), " "))
		text.WriteString("\n")
	}
	fmt.Fprintf(&text, "\nLien caisse : %s\n", link)

	var md strings.Builder
	fmt.Fprintf(&md, "**Inscriptions pour %s** (%d)\n\n", notify.EscapeMarkdown(pretty), shown)
	md.WriteString("|")
	for c := 0; c < GridColumns; c++ {
		fmt.Fprintf(&md, " %d-%d |", c*GridRows+1, (c+1)*GridRows)
	}
	md.WriteString("\n|" + strings.Repeat("---|", GridColumns) + "\n")
	for _, row := range grid {
		md.WriteString("|")
		for _, name := range row {
			fmt.Fprintf(&md, " %s |", notify.EscapeMarkdown(name))
		}
		md.WriteString("\n")
	}
	fmt.Fprintf(&md, "\n[Ouvrir la caisse](%s)\n", link)

	html, err := notify.MarkdownToHTML(md.String())
	if err != nil {
		return notify.Message{}, fmt.Errorf("render reservation list: %w", err)
	}
	return notify.Message{
		Subject: "Liste des inscriptions — " + pretty,
		Text:    text.String(),
		HTML:    html,
	}, nil
}
