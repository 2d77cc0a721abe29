package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayTruncatesToUTCMidnight(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	got := Day(time.Date(2021, 1, 2, 3, 4, 5, 0, loc))
	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestDateRoundTrip(t *testing.T) {
	d, err := ParseDate("20210131")
	require.NoError(t, err)
	assert.Equal(t, "20210131", FormatDate(d))
	assert.Equal(t, "20210201", FormatDate(d.AddDate(0, 0, 1)))

	_, err = ParseDate("2021-01-31")
	assert.Error(t, err)
}

func TestNumbersOrder(t *testing.T) {
	var r HistoryRow
	r.SetNumbers([]decimal.Decimal{
		decimal.NewFromInt(1), decimal.NewFromInt(2), decimal.NewFromInt(3),
		decimal.NewFromInt(4), decimal.NewFromInt(5), decimal.NewFromInt(6),
	})
	assert.True(t, r.Open.Equal(decimal.NewFromInt(1)))
	assert.True(t, r.MarketCap.Equal(decimal.NewFromInt(6)))
	assert.Len(t, r.Numbers(), 6)
	assert.True(t, r.Numbers()[3].Equal(r.Close))
}
