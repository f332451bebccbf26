package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"cafeteria/internal/events"
	"cafeteria/internal/models"
	"cafeteria/internal/notify"
	"cafeteria/internal/repository"
)

// ClosedRedirect is the page shown once a till is closed.
const ClosedRedirect = "/closed"

// QueueView is what the cashier console displays for one day.
type QueueView struct {
	Date   string   `json:"date"`
	Closed bool     `json:"closed"`
	Names  []string `json:"names"`
	Totals Totals   `json:"totals"`
}

// CheckoutRequest describes one menu check-in.
type CheckoutRequest struct {
	Name      string
	Role      models.Role
	Beverage  bool
	Chocolate bool
	Method    models.PaymentMethod
	Date      time.Time
}

// AccountingReport is the end-of-day reconciliation.
type AccountingReport struct {
	Date         time.Time
	Totals       Totals
	CashFloat    decimal.Decimal
	CashIn       decimal.Decimal
	ExpectedTill decimal.Decimal
}

// CloseResult is returned by CloseTill.
type CloseResult struct {
	Redirect      string
	AlreadyClosed bool
	Report        *AccountingReport
}

// TillService runs the cash register.
type TillService struct {
	reservations repository.ReservationRepository
	till         repository.TillRepository
	rules        Rules
	pricing      Pricing
	notifier     Notifier
	recipients   []string
	events       EventPublisher
	logger       *zerolog.Logger
}

func NewTillService(
	reservations repository.ReservationRepository,
	till repository.TillRepository,
	rules Rules,
	pricing Pricing,
	notifier Notifier,
	recipients []string,
	publisher EventPublisher,
	logger *zerolog.Logger,
) *TillService {
	return &TillService{
		reservations: reservations,
		till:         till,
		rules:        rules,
		pricing:      pricing,
		notifier:     notifier,
		recipients:   recipients,
		events:       publisher,
		logger:       orNop(logger),
	}
}

// Stats aggregates the till entries of date.
func (s *TillService) Stats(ctx context.Context, date time.Time) (TillStats, error) {
	entries, err := s.till.ListTillEntries(ctx, date)
	if err != nil {
		return TillStats{}, fmt.Errorf("list till entries: %w", err)
	}
	return BuildTillStats(entries), nil
}

// Entries returns the raw till entries of date.
func (s *TillService) Entries(ctx context.Context, date time.Time) ([]models.TillEntry, error) {
	entries, err := s.till.ListTillEntries(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list till entries: %w", err)
	}
	return entries, nil
}

// IsClosed reports whether a closing marker exists for date.
func (s *TillService) IsClosed(ctx context.Context, date time.Time) (bool, error) {
	stats, err := s.Stats(ctx, date)
	if err != nil {
		return false, err
	}
	return stats.Closed, nil
}

// QueueView returns the reserved names still waiting to be checked in.
// A closed day has an empty queue.
func (s *TillService) QueueView(ctx context.Context, date time.Time) (QueueView, error) {
	stats, err := s.Stats(ctx, date)
	if err != nil {
		return QueueView{}, err
	}
	view := QueueView{Date: models.DateKey(date), Closed: stats.Closed, Names: []string{}, Totals: stats.Totals}
	if stats.Closed {
		return view, nil
	}

	rows, err := s.reservations.ListReservations(ctx, date)
	if err != nil {
		return QueueView{}, fmt.Errorf("list reservations: %w", err)
	}
	view.Names = RemainingQueue(reservationNames(rows), stats.PaidCount)
	return view, nil
}

// Checkout records one menu sale and returns the refreshed queue.
func (s *TillService) Checkout(ctx context.Context, req CheckoutRequest) (QueueView, error) {
	stats, err := s.Stats(ctx, req.Date)
	if err != nil {
		return QueueView{}, err
	}
	if err := s.assertOpen(stats, req.Date); err != nil {
		return QueueView{}, err
	}
	if stats.Totals.Menus >= s.rules.MaxMenus {
		return QueueView{}, newError(CodeMenuLimitReached,
			"Limite de %d menus servis atteinte pour %s.", s.rules.MaxMenus, models.PrettyHeader(req.Date))
	}

	entry := s.menuEntry(req)
	if err := s.till.AppendTillEntries(ctx, entry); err != nil {
		return QueueView{}, fmt.Errorf("append till entry: %w", err)
	}

	s.logger.Info().
		Str("date", entry.Key()).
		Str("name", entry.Name).
		Str("kind", string(entry.Kind)).
		Str("line_total", entry.LineTotal.StringFixed(2)).
		Msg("menu checked in")
	publish(s.events, events.TillCheckout, req.Date, map[string]string{"kind": string(entry.Kind)})
	return s.QueueView(ctx, req.Date)
}

func (s *TillService) menuEntry(req CheckoutRequest) models.TillEntry {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "Anonyme"
	}
	base := s.pricing.MenuPrice(req.Role)
	beverage, chocolate := decimal.Zero, decimal.Zero
	if req.Beverage {
		beverage = s.pricing.Beverage
	}
	if req.Chocolate {
		chocolate = s.pricing.Chocolate
	}
	extras := beverage.Add(chocolate)
	lineTotal := base.Add(extras)
	if req.Method == models.PaymentCard {
		lineTotal = extras
	}
	return models.TillEntry{
		Date:      req.Date,
		Name:      name,
		Kind:      models.MenuKind(req.Role, req.Method),
		Base:      base,
		Beverage:  beverage,
		Chocolate: chocolate,
		LineTotal: lineTotal,
		CreatedAt: s.rules.timestamp(),
	}
}

// AddProduct records qty walk-up sales of a sandwich, beverage or chocolate,
// one cash row each. qty below 1 counts as 1; more than MaxMenus is refused.
func (s *TillService) AddProduct(ctx context.Context, kind models.TillKind, qty int, date time.Time) (QueueView, error) {
	var price decimal.Decimal
	entry := models.TillEntry{Date: date, Kind: kind}
	switch kind {
	case models.KindSandwich:
		price = s.pricing.Sandwich
		entry.Base = price
	case models.KindBeverage:
		price = s.pricing.Beverage
		entry.Beverage = price
	case models.KindChocolate:
		price = s.pricing.Chocolate
		entry.Chocolate = price
	default:
		return QueueView{}, newError(CodeInvalidArgument, "Produit inconnu : %s.", kind)
	}
	entry.LineTotal = price
	if qty < 1 {
		qty = 1
	}
	if qty > s.rules.MaxMenus {
		return QueueView{}, newError(CodeInvalidArgument, "Quantité maximale : %d.", s.rules.MaxMenus)
	}

	stats, err := s.Stats(ctx, date)
	if err != nil {
		return QueueView{}, err
	}
	if err := s.assertOpen(stats, date); err != nil {
		return QueueView{}, err
	}

	entry.CreatedAt = s.rules.timestamp()
	rows := make([]models.TillEntry, qty)
	for i := range rows {
		rows[i] = entry
	}
	if err := s.till.AppendTillEntries(ctx, rows...); err != nil {
		return QueueView{}, fmt.Errorf("append till entries: %w", err)
	}

	s.logger.Info().Str("date", models.DateKey(date)).Str("kind", string(kind)).Int("qty", qty).Msg("products sold")
	publish(s.events, events.TillProductSold, date, map[string]string{"kind": string(kind), "qty": strconv.Itoa(qty)})
	return s.QueueView(ctx, date)
}

// CloseTill mails the accounting report and appends the closing marker.
// On a day already closed it does nothing but still returns the redirect.
// A failed mail is logged and does not prevent the close.
func (s *TillService) CloseTill(ctx context.Context, date time.Time) (CloseResult, error) {
	stats, err := s.Stats(ctx, date)
	if err != nil {
		return CloseResult{}, err
	}
	if stats.Closed {
		s.logger.Info().Str("date", models.DateKey(date)).Msg("till already closed")
		return CloseResult{Redirect: ClosedRedirect, AlreadyClosed: true}, nil
	}

	report := s.BuildReport(date, stats.Totals)
	if err := s.sendReport(ctx, report); err != nil {
		s.logger.Error().Err(err).Str("date", models.DateKey(date)).Msg("failed to send accounting report")
	}

	marker := models.TillEntry{
		Date:      date,
		Kind:      models.KindClosed,
		Base:      decimal.Zero,
		Beverage:  decimal.Zero,
		Chocolate: decimal.Zero,
		LineTotal: decimal.Zero,
		CreatedAt: s.rules.timestamp(),
	}
	if err := s.till.AppendTillEntries(ctx, marker); err != nil {
		return CloseResult{}, fmt.Errorf("append closing marker: %w", err)
	}

	s.logger.Info().
		Str("date", models.DateKey(date)).
		Int("menus", report.Totals.Menus).
		Str("cash_in", report.CashIn.StringFixed(2)).
		Str("expected_till", report.ExpectedTill.StringFixed(2)).
		Msg("till closed")
	publish(s.events, events.TillClosed, date, map[string]string{"cash_in": report.CashIn.StringFixed(2)})
	return CloseResult{Redirect: ClosedRedirect, Report: &report}, nil
}

// BuildReport computes the reconciliation figures for totals.
func (s *TillService) BuildReport(date time.Time, totals Totals) AccountingReport {
	cashIn := totals.Amount.Round(2)
	return AccountingReport{
		Date:         date,
		Totals:       totals,
		CashFloat:    s.rules.CashFloat,
		CashIn:       cashIn,
		ExpectedTill: s.rules.CashFloat.Add(cashIn).Round(2),
	}
}

func (s *TillService) sendReport(ctx context.Context, report AccountingReport) error {
	if s.notifier == nil {
		return nil
	}
	msg, err := accountingMessage(report, s.rules.CashierURL(report.Date))
	if err != nil {
		return err
	}
	msg.To = s.recipients
	return s.notifier.Send(ctx, msg)
}

func (s *TillService) assertOpen(stats TillStats, date time.Time) error {
	if stats.Closed {
		return newError(CodeTillClosed, "Caisse fermée pour %s.", models.DateKey(date))
	}
	return nil
}

func accountingMessage(r AccountingReport, link string) (notify.Message, error) {
	pretty := models.PrettyHeader(r.Date)
	t := r.Totals
	lines := []string{
		fmt.Sprintf("Date : %s", pretty),
		"",
		fmt.Sprintf("Menus : %d (élèves %d, profs %d)", t.Menus, t.Students, t.Staff),
		fmt.Sprintf("Sandwiches : %d", t.Sandwiches),
		fmt.Sprintf("Boissons : %d", t.Beverages),
		fmt.Sprintf("Chocolats : %d", t.Chocolates),
		"",
		fmt.Sprintf("Fond de caisse initial : %s CHF", r.CashFloat.StringFixed(2)),
		fmt.Sprintf("Encaissements cash : %s CHF", r.CashIn.StringFixed(2)),
		fmt.Sprintf("Total en caisse attendu : %s CHF", r.ExpectedTill.StringFixed(2)),
		"",
		fmt.Sprintf("Lien caisse : %s", link),
	}
	text := strings.Join(lines, "\n")

	md := fmt.Sprintf("**Date :** %s\n\n", pretty) +
		"| Poste | Valeur |\n|---|---|\n" +
		fmt.Sprintf("| Menus | %d |\n| Élèves | %d |\n| Profs | %d |\n", t.Menus, t.Students, t.Staff) +
		fmt.Sprintf("| Sandwiches | %d |\n| Boissons | %d |\n| Chocolats | %d |\n", t.Sandwiches, t.Beverages, t.Chocolates) +
		fmt.Sprintf("| Fond de caisse initial | %s CHF |\n", r.CashFloat.StringFixed(2)) +
		fmt.Sprintf("| Encaissements cash | %s CHF |\n", r.CashIn.StringFixed(2)) +
		fmt.Sprintf("| Total en caisse attendu | %s CHF |\n\n", r.ExpectedTill.StringFixed(2)) +
		fmt.Sprintf("[Lien caisse](%s)\n", link)
	html, err := notify.MarkdownToHTML(md)
	if err != nil {
		return notify.Message{}, fmt.Errorf("render accounting report: %w", err)
	}

	return notify.Message{
		Subject: "Comptabilité cafétéria — " + pretty,
		Text:    text,
		HTML:    html,
	}, nil
}
