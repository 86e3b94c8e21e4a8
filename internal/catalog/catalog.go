// Package catalog holds the fixed alert contents and vibration patterns the
// alert loop draws from. Both tables are immutable after package init.
package catalog

import "math/rand/v2"

// AlertContent is one candidate alert. Its identity is its index in Messages.
type AlertContent struct {
	Title string
	Body  string
	Icon  string // decorative, may be empty
}

// Message returns the log line form of the content: "<title>: <body>".
func (c AlertContent) Message() string {
	return c.Title + ": " + c.Body
}

// messages is the ordered catalog. Keep it unexported so callers cannot
// mutate it; use Messages or Pick.
var messages = []AlertContent{
	{Title: "New message", Body: "You have a new message from Sarah", Icon: "💬"},
	{Title: "Reminder", Body: "Team standup starts in 5 minutes", Icon: "⏰"},
	{Title: "Security alert", Body: "New sign-in detected on a Linux device", Icon: "🔒"},
	{Title: "Delivery update", Body: "Your package is out for delivery", Icon: "📦"},
	{Title: "Battery low", Body: "Battery at 15%, connect a charger", Icon: "🔋"},
	{Title: "Calendar", Body: "Lunch with Alex at 12:30", Icon: "📅"},
	{Title: "Weather", Body: "Rain expected in your area within the hour", Icon: "🌧"},
	{Title: "Payment received", Body: "You received $25.00", Icon: "💸"},
	{Title: "Build finished", Body: "main passed all checks", Icon: "✅"},
	{Title: "Download complete", Body: "report-q3.pdf is ready", Icon: "⬇"},
	{Title: "Friend request", Body: "Jordan wants to connect with you", Icon: "👋"},
	{Title: "System update", Body: "A new update is ready to install", Icon: "⚙"},
}

// Messages returns a copy of the catalog in catalog order.
func Messages() []AlertContent {
	out := make([]AlertContent, len(messages))
	copy(out, messages)
	return out
}

// Len returns the number of catalog entries.
func Len() int {
	return len(messages)
}

// Intn is the subset of *rand.Rand the picker needs.
type Intn interface {
	IntN(n int) int
}

// Pick returns one entry chosen uniformly at random along with its index.
// A nil source uses the package-level generator.
func Pick(r Intn) (int, AlertContent) {
	var i int
	if r == nil {
		i = rand.IntN(len(messages))
	} else {
		i = r.IntN(len(messages))
	}
	return i, messages[i]
}
