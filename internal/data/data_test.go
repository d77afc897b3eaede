package data

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"

	"vwap-ema-trader/internal/service"
)

var ist = time.FixedZone("IST", 5*3600+1800)

func request(start, end time.Time) Request {
	return Request{
		Symbol:         "banknifty",
		Exchange:       "NSE",
		InstrumentType: "EQUITY",
		Start:          start,
		End:            end,
		Interval:       5 * time.Minute,
	}
}

const sampleCSV = `timestamp,open,high,low,close,volume
2023-01-02 09:20:00,101.5,102.5,101.0,102.0,200
2023-01-02 09:15:00,100.0,101.5,99.5,101.5,100
2023-01-02T09:25:00+05:30,"102.0","103.0","101.5","102.5","300"
2023-01-03 09:15:00,110.0,111.0,109.0,110.5,400
`

func writeFile(t *testing.T, dir, name string, content []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), content, 0o644))
}

func TestCSVProvider_ReadsAndFilters(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "BANKNIFTY_5m.csv", []byte(sampleCSV))

	p := NewCSVProvider(dir, ist, zap.NewNop())
	day := time.Date(2023, 1, 2, 0, 0, 0, 0, ist)
	series, err := p.FetchHistory(context.Background(), request(day, day.AddDate(0, 0, 1).Add(-time.Nanosecond)))
	require.NoError(t, err)
	require.Len(t, series, 3)

	assert.Equal(t, time.Date(2023, 1, 2, 9, 15, 0, 0, ist).Unix(), series[0].Timestamp.Unix())
	assert.Equal(t, 100.0, series[0].Open)
	assert.Equal(t, 102.0, series[1].Close)
	assert.Equal(t, 103.0, series[2].High)
	assert.Equal(t, 300.0, series[2].Volume)
	assert.NoError(t, series.Validate())
}

func TestCSVProvider_UTF16WithBOM(t *testing.T) {
	dir := t.TempDir()
	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String(sampleCSV)
	require.NoError(t, err)
	writeFile(t, dir, "BANKNIFTY_5m.csv", []byte(encoded))

	p := NewCSVProvider(dir, ist, zap.NewNop())
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, ist)
	series, err := p.FetchHistory(context.Background(), request(start, start.AddDate(0, 0, 5)))
	require.NoError(t, err)
	require.Len(t, series, 4)
	assert.Equal(t, 110.5, series[3].Close)
}

func TestCSVProvider_UTF8BOMAndMillis(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2023, 1, 2, 9, 15, 0, 0, ist)
	content := "\ufeff" + "1672631100000,1,2,0.5,1.5,10\n"
	require.Equal(t, int64(1672631100000), ts.UnixMilli())
	writeFile(t, dir, "BANKNIFTY_5m.csv", []byte(content))

	p := NewCSVProvider(dir, ist, zap.NewNop())
	series, err := p.FetchHistory(context.Background(), request(ts, ts))
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.True(t, series[0].Timestamp.Equal(ts))
}

func TestCSVProvider_NoData(t *testing.T) {
	dir := t.TempDir()
	p := NewCSVProvider(dir, ist, zap.NewNop())
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, ist)

	_, err := p.FetchHistory(context.Background(), request(start, start.AddDate(0, 0, 1)))
	assert.True(t, errors.Is(err, ErrNoData))

	writeFile(t, dir, "BANKNIFTY_5m.csv", []byte(sampleCSV))
	later := time.Date(2024, 1, 1, 0, 0, 0, 0, ist)
	_, err = p.FetchHistory(context.Background(), request(later, later.AddDate(0, 0, 1)))
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestCSVProvider_BadRow(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "BANKNIFTY_5m.csv", []byte("2023-01-02 09:15:00,abc,1,1,1,1\n"))

	p := NewCSVProvider(dir, ist, zap.NewNop())
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, ist)
	_, err := p.FetchHistory(context.Background(), request(start, start.AddDate(0, 0, 1)))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoData))
}

func TestSimulatedProvider_Deterministic(t *testing.T) {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, ist) // 周一
	end := time.Date(2023, 1, 8, 23, 59, 0, 0, ist)

	a, err := NewSimulatedProvider(7, 45000, zap.NewNop()).FetchHistory(context.Background(), request(start, end))
	require.NoError(t, err)
	b, err := NewSimulatedProvider(7, 45000, zap.NewNop()).FetchHistory(context.Background(), request(start, end))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// 5 个交易日，每天 09:15-15:30 共 75 根 5 分钟 K 线
	require.Len(t, a, 5*75)
	require.NoError(t, a.Validate())

	for _, c := range a {
		local := c.Timestamp.In(ist)
		assert.NotEqual(t, time.Saturday, local.Weekday())
		assert.NotEqual(t, time.Sunday, local.Weekday())
		minutes := local.Hour()*60 + local.Minute()
		assert.GreaterOrEqual(t, minutes, 9*60+15)
		assert.Less(t, minutes, 15*60+30)
		assert.GreaterOrEqual(t, c.High, c.Open)
		assert.GreaterOrEqual(t, c.High, c.Close)
		assert.LessOrEqual(t, c.Low, c.Open)
		assert.LessOrEqual(t, c.Low, c.Close)
		assert.Greater(t, c.Volume, 0.0)
	}

	other, err := NewSimulatedProvider(8, 45000, zap.NewNop()).FetchHistory(context.Background(), request(start, end))
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestSimulatedProvider_WeekendOnly(t *testing.T) {
	sat := time.Date(2023, 1, 7, 0, 0, 0, 0, ist)
	_, err := NewSimulatedProvider(1, 45000, zap.NewNop()).FetchHistory(context.Background(), request(sat, sat.AddDate(0, 0, 2).Add(-time.Second)))
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestNewProvider(t *testing.T) {
	p, closer, err := NewProvider(context.Background(), service.DataConfig{Source: "simulated", Seed: 1}, ist, zap.NewNop())
	require.NoError(t, err)
	defer closer()
	assert.IsType(t, &SimulatedProvider{}, p)

	p, _, err = NewProvider(context.Background(), service.DataConfig{Source: "CSV", CSVDir: "data"}, ist, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &CSVProvider{}, p)

	_, closer, err = NewProvider(context.Background(), service.DataConfig{Source: "kafka"}, ist, zap.NewNop())
	assert.Error(t, err)
	assert.NotNil(t, closer)

	_, _, err = NewProvider(context.Background(), service.DataConfig{Source: "postgres"}, ist, zap.NewNop())
	assert.Error(t, err)
}
