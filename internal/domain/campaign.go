package domain

import (
	"fmt"
	"time"
)

// Campaign cadence constants. DAILY campaigns settle a cashback row per day;
// WEEKLY campaigns additionally settle a bonus row covering the whole window.
const (
	CadenceDaily  = "DAILY"
	CadenceWeekly = "WEEKLY"
)

// Campaign status values.
const (
	CampaignStatusInactive = 0
	CampaignStatusActive   = 1
)

// CampaignTypeMOV is the only campaign category currently issued: minimum
// order value targets.
const CampaignTypeMOV = "MOV"

// CampaignMetadata is the jsonb document on a target campaign carrying the
// cashback percentages.
type CampaignMetadata struct {
	WeeklyCashbackPercent float64 `json:"weeklyCashbackPercent,omitempty"`
	DailyCashbackPercent  float64 `json:"dailyCashbackPercent,omitempty"`
}

// TargetCampaign is a per-store sales target over a date window. Creating
// one also provisions its cashback schedule, a backing offer, and a voucher
// the store applies at checkout.
type TargetCampaign struct {
	ID           int64            `json:"id"`
	StoreID      string           `json:"storeId"`
	Cadence      string           `json:"cadence"`
	CampaignType string           `json:"campaignType"`
	Metadata     CampaignMetadata `json:"metadata"`
	StartDate    time.Time        `json:"startDate"`
	EndDate      time.Time        `json:"endDate"`
	TargetAmount float64          `json:"targetAmount"`
	Status       int              `json:"status"`
	Active       int              `json:"active"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
	CreatedBy    string           `json:"createdBy,omitempty"`
	ModifiedBy   string           `json:"modifiedBy,omitempty"`
}

// DaysInWindow returns the number of calendar days the campaign spans,
// inclusive of both endpoints.
func (c *TargetCampaign) DaysInWindow() int {
	return daysBetween(c.StartDate, c.EndDate) + 1
}

// DailyTarget returns the per-day target amount. WEEKLY campaigns spread the
// total target evenly across the window; DAILY campaigns use the target as
// is for every day.
func (c *TargetCampaign) DailyTarget() float64 {
	if c.Cadence == CadenceWeekly {
		return c.TargetAmount / float64(c.DaysInWindow())
	}
	return c.TargetAmount
}

// OfferName derives the deterministic name of the campaign's backing offer.
func (c *TargetCampaign) OfferName(now time.Time) string {
	return fmt.Sprintf("CB-%d-%d", c.ID, now.UnixMilli())
}

// VoucherWindow returns the validity window of the campaign's voucher: the
// offer opens the evening before the campaign starts and closes the evening
// before it ends, so a store always applies tomorrow's voucher today.
func (c *TargetCampaign) VoucherWindow() (start, end time.Time) {
	start = c.StartDate.AddDate(0, 0, -1)
	start = time.Date(start.Year(), start.Month(), start.Day(), 2, 0, 0, 0, start.Location())
	end = c.EndDate.AddDate(0, 0, -1)
	end = time.Date(end.Year(), end.Month(), end.Day(), 18, 0, 0, 0, end.Location())
	return start, end
}

func daysBetween(from, to time.Time) int {
	fromDay := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	toDay := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(toDay.Sub(fromDay).Hours() / 24)
}
