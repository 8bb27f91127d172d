package calculator

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitlive/internal/models"
)

// Round rounds v half away from zero to the given decimal places.
func Round(v float64, places int) float64 {
	return decimal.NewFromFloat(v).Round(int32(places)).InexactFloat64()
}

// Freeze rounds a breakdown's totals to the currency's decimal places,
// producing the immutable snapshot stored at finalize time.
func Freeze(b Breakdown, currency models.CurrencyFormat) []models.ParticipantTotal {
	places := currency.DecimalPlaces
	frozen := make([]models.ParticipantTotal, len(b.Totals))
	for i, t := range b.Totals {
		f := models.ParticipantTotal{
			ParticipantID: t.ParticipantID,
			Name:          t.Name,
			Subtotal:      Round(t.Subtotal, places),
			Total:         Round(t.Total, places),
			Charges:       make([]models.ChargeShare, len(t.Charges)),
		}
		for k, c := range t.Charges {
			c.Amount = Round(c.Amount, places)
			f.Charges[k] = c
		}
		frozen[i] = f
	}
	return frozen
}

// separators returns the thousands and decimal separators of a number format.
func separators(format string) (thousands, dec string) {
	switch format {
	case "1.234,56":
		return ".", ","
	case "1 234,56":
		return " ", ","
	case "1234.56":
		return "", "."
	default:
		return ",", "."
	}
}

// FormatAmount renders v with the currency's symbol, decimal places and separators.
func FormatAmount(v float64, currency models.CurrencyFormat) string {
	places := currency.DecimalPlaces
	if places < 0 {
		places = 0
	}
	d := decimal.NewFromFloat(v).Round(int32(places))

	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}

	fixed := d.StringFixed(int32(places))
	intPart, fracPart, _ := strings.Cut(fixed, ".")

	thousands, dec := separators(currency.NumberFormat)
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(thousands)
		}
		b.WriteRune(r)
	}
	if fracPart != "" {
		b.WriteString(dec)
		b.WriteString(fracPart)
	}
	return sign + currency.Symbol + b.String()
}

// Summary renders a totals snapshot as plain text for a chat message.
// Transfers to the owner are appended when the session has one.
func Summary(s *models.Session, totals []models.ParticipantTotal) string {
	var b strings.Builder
	title := s.Title
	if title == "" {
		title = "Bill"
	}
	fmt.Fprintf(&b, "%s\n", title)

	names := make(map[string]string, len(s.Participants))
	for _, p := range s.Participants {
		names[p.ID] = p.Name
	}

	var grand float64
	for _, t := range totals {
		fmt.Fprintf(&b, "- %s: %s", t.Name, FormatAmount(t.Total, s.Currency))
		var extras []string
		for _, c := range t.Charges {
			if c.Amount == 0 {
				continue
			}
			extras = append(extras, fmt.Sprintf("%s %s", c.Name, FormatAmount(c.Amount, s.Currency)))
		}
		if len(extras) > 0 {
			fmt.Fprintf(&b, " (items %s; %s)", FormatAmount(t.Subtotal, s.Currency), strings.Join(extras, ", "))
		}
		b.WriteString("\n")
		grand += t.Total
	}
	fmt.Fprintf(&b, "Total: %s", FormatAmount(grand, s.Currency))

	if owner := s.Owner(); owner != nil {
		transfers := Transfers(totals, owner.ID)
		if len(transfers) > 0 {
			b.WriteString("\n\nTo settle:")
			for _, tr := range transfers {
				fmt.Fprintf(&b, "\n- %s pays %s %s",
					names[tr.FromParticipantID], names[tr.ToParticipantID], FormatAmount(tr.Amount, s.Currency))
			}
		}
	}
	return b.String()
}
