package insights

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/models"
	"stockflow/logger"
)

var (
	day1 = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	day2 = day1.AddDate(0, 0, 1)
)

func rec(symbol string, date time.Time, ret *float64, volume int64, signal string) models.AnalysisRecord {
	r := models.AnalysisRecord{}
	r.Symbol, r.Exchange, r.Date = symbol, "NYSE", date
	r.Close = 10
	r.Volume = volume
	r.DailyReturn = ret
	r.CombinedSignal = signal
	return r
}

func TestBuildUsesLatestDate(t *testing.T) {
	rows := []models.AnalysisRecord{
		rec("OLD", day1, models.Float(50), 9_999_999, models.SignalBuy),
		rec("A", day2, models.Float(2), 100, models.SignalHold),
		rec("B", day2, models.Float(5), 300, models.SignalHold),
		rec("C", day2, models.Float(-1), 200, models.SignalSell),
		rec("D", day2, nil, 50, models.SignalHold),
	}
	report, err := Build(rows, nil, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "2024-02-02", report.AsOf)
	require.Len(t, report.TopGainers, 2)
	assert.Equal(t, "B", report.TopGainers[0].Symbol)
	assert.Equal(t, "A", report.TopGainers[1].Symbol)

	var volumes []string
	for _, v := range report.TopVolume {
		volumes = append(volumes, v.Symbol)
	}
	assert.Equal(t, []string{"B", "C", "A", "D"}, volumes)

	assert.Equal(t, map[string]int64{models.SignalBuy: 1, models.SignalHold: 3, models.SignalSell: 1}, report.TradingSignals)
	assert.Nil(t, report.ClusterDistribution)
}

func TestBuildCapsLists(t *testing.T) {
	var rows []models.AnalysisRecord
	for i := 0; i < 30; i++ {
		r := rec(fmt.Sprintf("S%02d", i), day2, models.Float(float64(i+1)), int64(1000+i), models.SignalHold)
		r.AnomalyScore, r.HasAnomaly = 2, true
		rows = append(rows, r, r)
	}
	report, err := Build(rows, nil, DefaultOptions())
	require.NoError(t, err)

	assert.Len(t, report.TopGainers, 10)
	assert.Equal(t, "S29", report.TopGainers[0].Symbol)
	assert.Len(t, report.TopVolume, 10)
	assert.Len(t, report.AnomalyStocks, 20)
	assert.Equal(t, "S00", report.AnomalyStocks[0].Symbol, "duplicates collapse, ties by symbol")
	assert.Equal(t, "S01", report.AnomalyStocks[1].Symbol)
}

func TestBuildAnomaliesNewestFirst(t *testing.T) {
	old := rec("Z", day1, nil, 1, models.SignalHold)
	old.AnomalyScore, old.HasAnomaly = 3, true
	recent := rec("Y", day2, nil, 1, models.SignalHold)
	recent.AnomalyScore, recent.HasAnomaly = 2, true
	quiet := rec("X", day2, nil, 1, models.SignalHold)
	quiet.AnomalyScore = 1

	report, err := Build([]models.AnalysisRecord{old, quiet, recent}, nil, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []models.AnomalyStock{
		{Symbol: "Y", Exchange: "NYSE", Date: "2024-02-02", AnomalyScore: 2},
		{Symbol: "Z", Exchange: "NYSE", Date: "2024-02-01", AnomalyScore: 3},
	}, report.AnomalyStocks)
}

func TestBuildClusterDistribution(t *testing.T) {
	clusters := []models.ClusterAssignment{
		{Symbol: "A", Description: "Low Risk, Low Return"},
		{Symbol: "B", Description: "Low Risk, Low Return"},
		{Symbol: "C", Description: "Blue Chip, Stable"},
	}
	report, err := Build([]models.AnalysisRecord{rec("A", day1, nil, 1, models.SignalHold)}, clusters, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Low Risk, Low Return": 2, "Blue Chip, Stable": 1}, report.ClusterDistribution)
}

func TestBuildEmpty(t *testing.T) {
	_, err := Build(nil, nil, DefaultOptions())
	assert.ErrorIs(t, err, models.ErrNoRows)
}

func TestLogSummary(t *testing.T) {
	report, err := Build([]models.AnalysisRecord{
		rec("A", day1, models.Float(3), 1, models.SignalBuy),
		rec("B", day1, models.Float(1), 1, models.SignalHold),
	}, nil, DefaultOptions())
	require.NoError(t, err)

	var buf bytes.Buffer
	log := logger.Logger()
	log.SetOutput(&buf)
	LogSummary(log.WithComponent("insights"), report, 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "insights summary", entry["message"])
	assert.Equal(t, []any{"A 3.00%", "B 1.00%"}, entry["top_gainers"])
	assert.Equal(t, []any{"BUY=1", "HOLD=1"}, entry["signals"])
}
