// Package chat answers the website chat widget from a keyword intent table.
package chat

import (
	"strings"
	"unicode"
)

type Intent string

const (
	IntentAppointment Intent = "appointment"
	IntentPackages    Intent = "packages"
	IntentPayment     Intent = "payment"
	IntentContact     Intent = "contact"
	IntentGreeting    Intent = "greeting"
	IntentGeneral     Intent = "general"
)

// Reply is the widget response.
type Reply struct {
	Message string `json:"message"`
	Intent  Intent `json:"intent"`
}

type rule struct {
	intent   Intent
	keywords []string
	message  string
}

// Rules are tried in order; the first with a matching keyword wins.
var rules = []rule{
	{IntentAppointment, []string{"appointment", "book", "booking", "slot", "slots", "available", "schedule", "session"},
		"You can see open times and book a session on our Appointments page."},
	{IntentPackages, []string{"package", "packages", "price", "prices", "pricing", "cost", "costs"},
		"We offer several newborn, baby and family packages. See the Packages page for details and prices."},
	{IntentPayment, []string{"pay", "payment", "paying", "card", "money", "refund"},
		"Payment is taken at checkout when you book. If a payment fails, your slot is held for a short while so you can try again."},
	{IntentContact, []string{"contact", "call", "phone", "email", "mobile", "address", "location"},
		"You can reach us through the Contact form and we will get back to you shortly."},
	{IntentGreeting, []string{"hi", "hello", "hey", "greetings"},
		"Hello! I can help with appointments, packages and payments."},
}

const fallback = "I can help with appointments, packages, payments and contact details. What would you like to know?"

// Answer classifies message and returns the canned reply for its intent.
func Answer(message string) Reply {
	words := tokens(message)
	for _, r := range rules {
		for _, k := range r.keywords {
			if words[k] {
				return Reply{Message: r.message, Intent: r.intent}
			}
		}
	}
	return Reply{Message: fallback, Intent: IntentGeneral}
}

func tokens(s string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]bool, len(fields))
	for _, f := range fields {
		out[f] = true
	}
	return out
}
