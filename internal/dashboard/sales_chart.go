package dashboard

import (
	"fmt"
	"time"

	"pos-backend/internal/auth"
	"pos-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

const maxPoints = 90

type SalesChartPoint struct {
	Label string          `json:"label"` // bucket start, YYYY-MM-DD
	Cash  decimal.Decimal `json:"cash"`
	Card  decimal.Decimal `json:"card"`
	Total decimal.Decimal `json:"total"`
	Sales int             `json:"sales"`
}

type SalesChartTotals struct {
	Cash  decimal.Decimal `json:"cash"`
	Card  decimal.Decimal `json:"card"`
	Total decimal.Decimal `json:"total"`
	Sales int             `json:"sales"`
}

type SalesChartResponse struct {
	Period      Period            `json:"period"`
	From        string            `json:"from"`
	To          string            `json:"to"`
	Points      []SalesChartPoint `json:"points"`
	GrandTotals SalesChartTotals  `json:"grand_totals"`
}

func defaultCount(p Period) int {
	switch p {
	case PeriodWeekly:
		return 8
	case PeriodMonthly:
		return 12
	default:
		return 7
	}
}

// bucketStart truncates t to the start of its day, ISO week or month.
func bucketStart(p Period, t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	switch p {
	case PeriodWeekly:
		return day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
	case PeriodMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	default:
		return day
	}
}

func step(p Period, t time.Time, n int) time.Time {
	switch p {
	case PeriodWeekly:
		return t.AddDate(0, 0, 7*n)
	case PeriodMonthly:
		return t.AddDate(0, n, 0)
	default:
		return t.AddDate(0, 0, n)
	}
}

// SalesChart sums cash and card takings of the last count buckets ending with
// the one containing now. Empty buckets are reported with zero totals.
func SalesChart(db *gorm.DB, companyID uint, period Period, count int, now time.Time) (SalesChartResponse, error) {
	current := bucketStart(period, now)
	start := step(period, current, -(count - 1))
	until := step(period, current, 1)

	var sales []models.Sale
	err := db.Select("created_at", "amount_cash", "amount_card").
		Where("company_id = ? AND created_at >= ? AND created_at < ?", companyID, start, until).
		Find(&sales).Error
	if err != nil {
		return SalesChartResponse{}, err
	}

	points := make([]SalesChartPoint, count)
	index := make(map[time.Time]int, count)
	for i := 0; i < count; i++ {
		b := step(period, start, i)
		index[b] = i
		points[i] = SalesChartPoint{Label: b.Format("2006-01-02"), Cash: decimal.Zero, Card: decimal.Zero, Total: decimal.Zero}
	}

	grand := SalesChartTotals{Cash: decimal.Zero, Card: decimal.Zero, Total: decimal.Zero}
	for _, s := range sales {
		i, ok := index[bucketStart(period, s.CreatedAt.In(now.Location()))]
		if !ok {
			continue
		}
		p := &points[i]
		p.Cash = p.Cash.Add(s.AmountCash)
		p.Card = p.Card.Add(s.AmountCard)
		p.Total = p.Cash.Add(p.Card)
		p.Sales++

		grand.Cash = grand.Cash.Add(s.AmountCash)
		grand.Card = grand.Card.Add(s.AmountCard)
		grand.Sales++
	}
	grand.Total = grand.Cash.Add(grand.Card)

	return SalesChartResponse{
		Period:      period,
		From:        start.Format("2006-01-02"),
		To:          until.AddDate(0, 0, -1).Format("2006-01-02"),
		Points:      points,
		GrandTotals: grand,
	}, nil
}

// GET /api/dashboard/sales-chart?period=daily&count=7
func SalesChartHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		companyID, err := auth.CompanyID(c)
		if err != nil {
			return err
		}

		period := Period(c.Query("period", string(PeriodDaily)))
		switch period {
		case PeriodDaily, PeriodWeekly, PeriodMonthly:
		default:
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("unknown period %q", period))
		}

		count := c.QueryInt("count", defaultCount(period))
		if count <= 0 || count > maxPoints {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("count must be between 1 and %d", maxPoints))
		}

		resp, err := SalesChart(db.WithContext(c.UserContext()), companyID, period, count, time.Now())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to aggregate sales")
		}
		return c.JSON(resp)
	}
}
