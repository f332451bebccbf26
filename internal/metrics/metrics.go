package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"cafeteria/internal/events"
)

var (
	once sync.Once

	reservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cafeteria",
			Name:      "reservations_total",
			Help:      "Count of reservation changes by action.",
		},
		[]string{"action"},
	)

	listsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cafeteria",
			Name:      "lists_sent_total",
			Help:      "Count of daily reservation lists sent.",
		},
	)

	tillSales = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cafeteria",
			Name:      "till_sales_total",
			Help:      "Count of till lines recorded by kind.",
		},
		[]string{"kind"},
	)

	tillClosed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cafeteria",
			Name:      "till_closed_total",
			Help:      "Count of till closings.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cafeteria",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by route and status.",
		},
		[]string{"route", "status"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(reservations, listsSent, tillSales, tillClosed, httpRequests)
	})
}

func IncReservation(action string) {
	reservations.WithLabelValues(action).Inc()
}

func IncListSent() {
	listsSent.Inc()
}

func AddTillSales(kind string, n int) {
	tillSales.WithLabelValues(kind).Add(float64(n))
}

func IncTillClosed() {
	tillClosed.Inc()
}

func IncHTTPRequest(route string, status int) {
	httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// Subscribe feeds the counters from domain events.
func Subscribe(bus *events.EventBus) {
	bus.SubscribeAll(func(e events.Event) error {
		switch e.Type {
		case events.ReservationCreated:
			IncReservation("created")
		case events.ReservationCancelled:
			IncReservation("cancelled")
		case events.ListSent:
			IncListSent()
		case events.TillCheckout:
			AddTillSales(e.Attrs["kind"], 1)
		case events.TillProductSold:
			n, err := strconv.Atoi(e.Attrs["qty"])
			if err != nil || n < 1 {
				n = 1
			}
			AddTillSales(e.Attrs["kind"], n)
		case events.TillClosed:
			IncTillClosed()
		}
		return nil
	},
		events.ReservationCreated,
		events.ReservationCancelled,
		events.ListSent,
		events.TillCheckout,
		events.TillProductSold,
		events.TillClosed,
	)
}
