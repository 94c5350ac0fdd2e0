package codec

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"stockflow/internal/models"
)

// Column renders one CSV field of a record.
type Column[T any] struct {
	Name  string
	Value func(T) string
}

// EncodeCSV writes a header line followed by one line per row.
func EncodeCSV[T any](cols []Column[T], rows []T) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Name
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	line := make([]string, len(cols))
	for _, row := range rows {
		for i, c := range cols {
			line[i] = c.Value(row)
		}
		if err := w.Write(line); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func formatOptFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatInt(v int64) string { return strconv.FormatInt(v, 10) }
func formatDate(t time.Time) string { return t.Format(models.DateLayout) }

// PriceColumns is the CSV layout of the cleaned daily table.
var PriceColumns = []Column[models.PriceRecord]{
	{"symbol", func(r models.PriceRecord) string { return r.Symbol }},
	{"exchange", func(r models.PriceRecord) string { return r.Exchange }},
	{"date", func(r models.PriceRecord) string { return formatDate(r.Date) }},
	{"open", func(r models.PriceRecord) string { return formatOptFloat(r.Open) }},
	{"high", func(r models.PriceRecord) string { return formatOptFloat(r.High) }},
	{"low", func(r models.PriceRecord) string { return formatOptFloat(r.Low) }},
	{"close", func(r models.PriceRecord) string { return formatFloat(r.Close) }},
	{"volume", func(r models.PriceRecord) string { return formatInt(r.Volume) }},
	{"daily_return", func(r models.PriceRecord) string { return formatOptFloat(r.DailyReturn) }},
	{"price_range", func(r models.PriceRecord) string { return formatOptFloat(r.PriceRange) }},
	{"avg_price", func(r models.PriceRecord) string { return formatOptFloat(r.AvgPrice) }},
	{"volume_category", func(r models.PriceRecord) string { return r.VolumeCategory }},
	{"year", func(r models.PriceRecord) string { return strconv.Itoa(r.Year) }},
	{"month", func(r models.PriceRecord) string { return strconv.Itoa(r.Month) }},
	{"day", func(r models.PriceRecord) string { return strconv.Itoa(r.Day) }},
}

// AggregateColumns is the CSV layout of the per-instrument summary table.
var AggregateColumns = []Column[models.Aggregate]{
	{"symbol", func(a models.Aggregate) string { return a.Symbol }},
	{"exchange", func(a models.Aggregate) string { return a.Exchange }},
	{"record_count", func(a models.Aggregate) string { return formatInt(a.RecordCount) }},
	{"first_date", func(a models.Aggregate) string { return formatDate(a.FirstDate) }},
	{"last_date", func(a models.Aggregate) string { return formatDate(a.LastDate) }},
	{"data_span_days", func(a models.Aggregate) string { return formatInt(a.DataSpanDays) }},
	{"avg_price", func(a models.Aggregate) string { return formatFloat(a.AvgPrice) }},
	{"price_volatility", func(a models.Aggregate) string { return formatOptFloat(a.PriceVolatility) }},
	{"avg_volume", func(a models.Aggregate) string { return formatFloat(a.AvgVolume) }},
	{"max_volume", func(a models.Aggregate) string { return formatInt(a.MaxVolume) }},
	{"min_volume", func(a models.Aggregate) string { return formatInt(a.MinVolume) }},
	{"avg_daily_return", func(a models.Aggregate) string { return formatOptFloat(a.AvgDailyReturn) }},
	{"price_range_ratio", func(a models.Aggregate) string { return formatOptFloat(a.PriceRangeRatio) }},
}

// ClusterColumns is the CSV layout of the cluster assignment table.
var ClusterColumns = []Column[models.ClusterAssignment]{
	{"symbol", func(c models.ClusterAssignment) string { return c.Symbol }},
	{"exchange", func(c models.ClusterAssignment) string { return c.Exchange }},
	{"avg_daily_return", func(c models.ClusterAssignment) string { return formatFloat(c.AvgDailyReturn) }},
	{"price_volatility", func(c models.ClusterAssignment) string { return formatFloat(c.PriceVolatility) }},
	{"avg_volume", func(c models.ClusterAssignment) string { return formatFloat(c.AvgVolume) }},
	{"cluster", func(c models.ClusterAssignment) string { return strconv.Itoa(c.ClusterID) }},
	{"cluster_description", func(c models.ClusterAssignment) string { return c.Description }},
	{"avg_daily_return_scaled", scaledFeature(0)},
	{"price_volatility_scaled", scaledFeature(1)},
	{"avg_volume_scaled", scaledFeature(2)},
}

// scaledFeature reads the i-th standardized input, zero when the vector is
// absent, as the parquet table does.
func scaledFeature(i int) func(models.ClusterAssignment) string {
	return func(c models.ClusterAssignment) string {
		if len(c.ScaledFeatures) != len(models.ClusterFeatures) {
			return formatFloat(0)
		}
		return formatFloat(c.ScaledFeatures[i])
	}
}

// AnalysisColumns is the CSV layout of the technical analysis table.
var AnalysisColumns = analysisColumns()

func analysisColumns() []Column[models.AnalysisRecord] {
	var cols []Column[models.AnalysisRecord]
	for _, c := range PriceColumns {
		get := c.Value
		cols = append(cols, Column[models.AnalysisRecord]{c.Name, func(a models.AnalysisRecord) string { return get(a.PriceRecord) }})
	}
	opt := func(name string, get func(models.AnalysisRecord) *float64) Column[models.AnalysisRecord] {
		return Column[models.AnalysisRecord]{name, func(a models.AnalysisRecord) string { return formatOptFloat(get(a)) }}
	}
	flag := func(name string, get func(models.AnalysisRecord) bool) Column[models.AnalysisRecord] {
		return Column[models.AnalysisRecord]{name, func(a models.AnalysisRecord) string { return strconv.FormatBool(get(a)) }}
	}
	str := func(name string, get func(models.AnalysisRecord) string) Column[models.AnalysisRecord] {
		return Column[models.AnalysisRecord]{name, get}
	}
	return append(cols,
		opt("ma_5", func(a models.AnalysisRecord) *float64 { return a.MA5 }),
		opt("ma_10", func(a models.AnalysisRecord) *float64 { return a.MA10 }),
		opt("ma_20", func(a models.AnalysisRecord) *float64 { return a.MA20 }),
		opt("ma_50", func(a models.AnalysisRecord) *float64 { return a.MA50 }),
		opt("rsi", func(a models.AnalysisRecord) *float64 { return a.RSI }),
		opt("bb_upper", func(a models.AnalysisRecord) *float64 { return a.BBUpper }),
		opt("bb_lower", func(a models.AnalysisRecord) *float64 { return a.BBLower }),
		opt("bb_position", func(a models.AnalysisRecord) *float64 { return a.BBPosition }),
		opt("macd", func(a models.AnalysisRecord) *float64 { return a.MACD }),
		opt("volume_ratio", func(a models.AnalysisRecord) *float64 { return a.VolumeRatio }),
		opt("volume_zscore", func(a models.AnalysisRecord) *float64 { return a.VolumeZScore }),
		flag("is_volume_anomaly", func(a models.AnalysisRecord) bool { return a.IsVolumeAnomaly }),
		opt("price_change_pct", func(a models.AnalysisRecord) *float64 { return a.PriceChangePct }),
		flag("is_price_anomaly", func(a models.AnalysisRecord) bool { return a.IsPriceAnomaly }),
		opt("opening_gap_pct", func(a models.AnalysisRecord) *float64 { return a.OpeningGapPct }),
		flag("is_gap_anomaly", func(a models.AnalysisRecord) bool { return a.IsGapAnomaly }),
		str("anomaly_score", func(a models.AnalysisRecord) string { return strconv.Itoa(a.AnomalyScore) }),
		flag("has_anomaly", func(a models.AnalysisRecord) bool { return a.HasAnomaly }),
		str("ma_crossover", func(a models.AnalysisRecord) string { return a.MACrossover }),
		str("rsi_signal", func(a models.AnalysisRecord) string { return a.RSISignal }),
		str("bb_signal", func(a models.AnalysisRecord) string { return a.BBSignal }),
		str("volume_signal", func(a models.AnalysisRecord) string { return a.VolumeSignal }),
		str("combined_signal", func(a models.AnalysisRecord) string { return a.CombinedSignal }),
	)
}

// dateLayouts are tried in order when parsing a date field.
var dateLayouts = []string{models.DateLayout, time.RFC3339, "2006-01-02 15:04:05"}

// ParseFloat returns nil for empty or unparseable input and for NaN/Inf.
func ParseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ParseInt accepts integral text, and decimal text truncated toward zero.
func ParseInt(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &v
	}
	f := ParseFloat(s)
	if f == nil || math.Abs(*f) >= math.MaxInt64 {
		return nil
	}
	v := int64(*f)
	return &v
}

// ParseDate returns the calendar date of s in UTC, or nil.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
			return &day
		}
	}
	return nil
}

// HeaderIndex maps lower-cased, trimmed header names to their position.
func HeaderIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	return idx
}

// Field returns the named column of line, or "" when absent.
func Field(line []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(line) {
		return ""
	}
	return line[i]
}

// ErrMissingColumn reports a header without a required column.
var ErrMissingColumn = errors.New("missing required column")

// DecodePriceCSV reads a cleaned table mirror written with PriceColumns.
func DecodePriceCSV(data []byte) ([]models.PriceRecord, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	idx := HeaderIndex(header)
	for _, col := range []string{"symbol", "exchange", "date", "close", "volume"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var out []models.PriceRecord
	for {
		line, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		date := ParseDate(Field(line, idx, "date"))
		closePrice := ParseFloat(Field(line, idx, "close"))
		volume := ParseInt(Field(line, idx, "volume"))
		if date == nil || closePrice == nil || volume == nil {
			return nil, fmt.Errorf("malformed cleaned row %v", line)
		}
		out = append(out, models.PriceRecord{
			Symbol:         Field(line, idx, "symbol"),
			Exchange:       Field(line, idx, "exchange"),
			Date:           *date,
			Open:           ParseFloat(Field(line, idx, "open")),
			High:           ParseFloat(Field(line, idx, "high")),
			Low:            ParseFloat(Field(line, idx, "low")),
			Close:          *closePrice,
			Volume:         *volume,
			DailyReturn:    ParseFloat(Field(line, idx, "daily_return")),
			PriceRange:     ParseFloat(Field(line, idx, "price_range")),
			AvgPrice:       ParseFloat(Field(line, idx, "avg_price")),
			VolumeCategory: Field(line, idx, "volume_category"),
			Year:           date.Year(),
			Month:          int(date.Month()),
			Day:            date.Day(),
		})
	}
	return out, nil
}
