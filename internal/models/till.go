package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TillKind is the label stored in the kind column of the till ledger.
type TillKind string

const (
	KindStudentCash TillKind = "Eleve (CASH)"
	KindStudentCard TillKind = "Eleve (CARD)"
	KindStaffCash   TillKind = "Prof (CASH)"
	KindStaffCard   TillKind = "Prof (CARD)"
	KindSandwich    TillKind = "Sandwich"
	KindBeverage    TillKind = "Boisson"
	KindChocolate   TillKind = "Chocolat"
	KindClosed      TillKind = "Closed"
)

// IsMenu reports whether the kind is one of the menu check-in kinds.
// Unknown labels count as menus, matching how the ledger has always been read.
func (k TillKind) IsMenu() bool {
	switch k {
	case KindSandwich, KindBeverage, KindChocolate, KindClosed:
		return false
	}
	return true
}

// IsStudent reports whether a menu kind was sold at the student price.
func (k TillKind) IsStudent() bool {
	return strings.Contains(strings.ToLower(string(k)), "eleve")
}

// Role is the price category of a menu.
type Role string

const (
	RoleStudent Role = "ELEVE"
	RoleStaff   Role = "PROF"
)

// ParseRole accepts ELEVE/STUDENT for students; anything else is staff.
func ParseRole(s string) Role {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ELEVE", "STUDENT":
		return RoleStudent
	default:
		return RoleStaff
	}
}

// PaymentMethod tells whether the menu base price was paid in cash or by subscription card.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "CASH"
	PaymentCard PaymentMethod = "CARD"
)

// ParsePaymentMethod defaults to cash.
func ParsePaymentMethod(s string) PaymentMethod {
	if strings.ToUpper(strings.TrimSpace(s)) == string(PaymentCard) {
		return PaymentCard
	}
	return PaymentCash
}

// MenuKind returns the ledger label for a menu sold to role with method.
func MenuKind(role Role, method PaymentMethod) TillKind {
	switch {
	case role == RoleStudent && method == PaymentCard:
		return KindStudentCard
	case role == RoleStudent:
		return KindStudentCash
	case method == PaymentCard:
		return KindStaffCard
	default:
		return KindStaffCash
	}
}

// TillEntry is one line of the cash-register ledger.
// LineTotal is the cash collected for the line; a card-paid menu base is not part of it.
type TillEntry struct {
	Date      time.Time       `json:"-"`
	Name      string          `json:"name"`
	Kind      TillKind        `json:"kind"`
	Base      decimal.Decimal `json:"base"`
	Beverage  decimal.Decimal `json:"beverage"`
	Chocolate decimal.Decimal `json:"chocolate"`
	LineTotal decimal.Decimal `json:"line_total"`
	CreatedAt time.Time       `json:"created_at"`
}

// Key returns the canonical yyyy-MM-dd form of the entry date.
func (e TillEntry) Key() string {
	return DateKey(e.Date)
}
