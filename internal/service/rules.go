package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"cafeteria/internal/events"
	"cafeteria/internal/models"
	"cafeteria/internal/notify"
)

// Pricing holds the CHF price list.
type Pricing struct {
	StudentMenu decimal.Decimal
	StaffMenu   decimal.Decimal
	Sandwich    decimal.Decimal
	Beverage    decimal.Decimal
	Chocolate   decimal.Decimal
}

// DefaultPricing returns the cafeteria's historical prices.
func DefaultPricing() Pricing {
	return Pricing{
		StudentMenu: decimal.NewFromInt(8),
		StaffMenu:   decimal.NewFromInt(12),
		Sandwich:    decimal.NewFromInt(6),
		Beverage:    decimal.NewFromInt(2),
		Chocolate:   decimal.RequireFromString("1.5"),
	}
}

// MenuPrice returns the base price of a menu for role.
func (p Pricing) MenuPrice(role models.Role) decimal.Decimal {
	if role == models.RoleStudent {
		return p.StudentMenu
	}
	return p.StaffMenu
}

// Rules holds capacities, the till float and calendar settings.
type Rules struct {
	MaxReservations int
	MaxMenus        int
	CashFloat       decimal.Decimal
	// Weekdays lists the French weekday labels shown on the reservation page, in order.
	Weekdays []string
	Location *time.Location
	// PublicURL is the base URL used for links in e-mails.
	PublicURL string
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// DefaultRules returns the cafeteria's historical limits.
func DefaultRules() Rules {
	return Rules{
		MaxReservations: 40,
		MaxMenus:        45,
		CashFloat:       decimal.NewFromInt(150),
		Weekdays:        []string{"Lundi", "Mardi", "Jeudi", "Vendredi"},
		Location:        time.UTC,
		PublicURL:       "http://localhost:8000",
	}
}

// Today returns midnight of the current day in the configured location.
func (r Rules) Today() time.Time {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	return models.StartOfDay(now().In(loc))
}

func (r Rules) timestamp() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

// CashierURL returns the link to the cashier page for date.
func (r Rules) CashierURL(date time.Time) string {
	return r.PublicURL + "/caisse?date=" + models.DateKey(date)
}

// Notifier delivers a message; it is the mail collaborator.
type Notifier interface {
	Send(ctx context.Context, msg notify.Message) error
}

// EventPublisher receives domain events.
type EventPublisher interface {
	Publish(event events.Event)
}

func publish(p EventPublisher, evType string, date time.Time, attrs map[string]string) {
	if p == nil {
		return
	}
	p.Publish(events.Event{Type: evType, Date: models.DateKey(date), Attrs: attrs})
}
