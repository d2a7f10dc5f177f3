package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCampaignDailyTarget(t *testing.T) {
	weekly := &TargetCampaign{
		Cadence:      CadenceWeekly,
		StartDate:    date(2026, time.March, 2),
		EndDate:      date(2026, time.March, 8),
		TargetAmount: 70000,
	}
	assert.Equal(t, 7, weekly.DaysInWindow())
	assert.InDelta(t, 10000, weekly.DailyTarget(), 1e-9)

	daily := &TargetCampaign{
		Cadence:      CadenceDaily,
		StartDate:    date(2026, time.March, 2),
		EndDate:      date(2026, time.March, 8),
		TargetAmount: 7000,
	}
	assert.InDelta(t, 7000, daily.DailyTarget(), 1e-9)
}

func TestCampaignVoucherWindow(t *testing.T) {
	c := &TargetCampaign{
		StartDate: date(2026, time.March, 2),
		EndDate:   date(2026, time.March, 8),
	}

	start, end := c.VoucherWindow()
	assert.Equal(t, time.Date(2026, time.March, 1, 2, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, time.March, 7, 18, 0, 0, 0, time.UTC), end)
}

func TestCashbackWalletKey(t *testing.T) {
	row := &TargetCashback{ID: 4821}
	assert.Equal(t, "LCB-4821", row.WalletKey())
}

func TestVoucherIsUsableBy(t *testing.T) {
	shared := &Voucher{Scope: VoucherScopeAll}
	assert.True(t, shared.IsUsableBy("anyone"))

	assigned := &Voucher{Scope: VoucherScopeAssigned, AssignedTo: "S-100"}
	assert.True(t, assigned.IsUsableBy("S-100"))
	assert.False(t, assigned.IsUsableBy("S-200"))
}
