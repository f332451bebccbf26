package models

import "time"

// Reservation is a named intent to eat on a given day.
// Rows have no key; storage order is the queue order.
type Reservation struct {
	Date      time.Time `json:"-"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Key returns the canonical yyyy-MM-dd form of the reservation date.
func (r Reservation) Key() string {
	return DateKey(r.Date)
}
