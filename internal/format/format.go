// Package format renders money and dates for terminal output.
package format

import (
	"strings"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
)

const rupee = "₹"

// Currency formats amount (paise) as rupees with grouped digits.
// Example: Currency(123450, "en") => "₹1,234.50"
func Currency(amount domain.Money, lang string) string {
	p := message.NewPrinter(parseTag(lang))
	scale, _ := currency.Standard.Rounding(currency.INR)
	unit := int64(1)
	for i := 0; i < scale; i++ {
		unit *= 10
	}

	minor := int64(amount)
	neg := minor < 0
	if neg {
		minor = -minor
	}
	var b strings.Builder
	if neg {
		b.WriteString("-")
	}
	b.WriteString(rupee)
	b.WriteString(p.Sprintf("%d", minor/unit))
	if scale > 0 {
		b.WriteString(".")
		frac := p.Sprintf("%d", minor%unit)
		b.WriteString(strings.Repeat("0", scale-len(frac)))
		b.WriteString(frac)
	}
	return b.String()
}

// Date formats t in a short form.
func Date(t time.Time, lang string) string {
	if t.IsZero() {
		return ""
	}
	base, _ := parseTag(lang).Base()
	switch base.String() {
	case "hi":
		return t.Format("02/01/2006")
	default:
		return t.Format("Jan 2, 2006")
	}
}

// DateTime formats t with minutes in UTC.
func DateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04 UTC")
}

func parseTag(lang string) language.Tag {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return language.English
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return language.English
	}
	return tag
}
