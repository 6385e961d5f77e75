package contracts

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/providerdesk/backoffice/internal/app/domain/contract"
)

var (
	seven    = decimal.NewFromInt(7)
	fourteen = decimal.NewFromInt(14)
)

// DailyRate converts a contract's frequency amount to a per-day figure,
// rounded half-up to cents.
func DailyRate(c contract.Contract) decimal.Decimal {
	switch c.Frequency {
	case contract.FrequencyWeekly:
		return c.Amount.Div(seven).Round(2)
	case contract.FrequencyFortnightly:
		return c.Amount.Div(fourteen).Round(2)
	default:
		return c.Amount.Round(2)
	}
}

// PreviewDay is one entry of a multi-day drawdown preview.
type PreviewDay struct {
	Date             time.Time       `json:"date"`
	Amount           decimal.Decimal `json:"amount"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	Short            bool            `json:"short"`
}

// Preview projects day-by-day drawdowns over the given range without
// writing anything. Days past the end date or past fund exhaustion are
// marked short.
func Preview(c contract.Contract, from, to time.Time) []PreviewDay {
	from = dateOnly(from)
	to = dateOnly(to)
	if to.Before(from) {
		return nil
	}

	rate := DailyRate(c)
	balance := c.CurrentBalance
	var days []PreviewDay

	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if day.Before(dateOnly(c.StartDate)) {
			continue
		}
		if !c.EndDate.IsZero() && day.After(dateOnly(c.EndDate)) {
			break
		}
		short := balance.LessThan(rate)
		if !short {
			balance = balance.Sub(rate)
		}
		days = append(days, PreviewDay{
			Date:             day,
			Amount:           rate,
			RemainingBalance: balance,
			Short:            short,
		})
	}
	return days
}
