package processor

import (
	"sort"
	"strings"
	"time"

	"stockflow/internal/models"
)

// Volume category thresholds, exclusive.
const (
	highVolumeThreshold   = 1_000_000
	mediumVolumeThreshold = 100_000
)

// CleanStats counts rows removed by the cleaning filter, by first failing
// rule.
type CleanStats struct {
	Input         int
	Output        int
	MissingClose  int
	InvalidVolume int
	MissingDate   int
	Duplicates    int
}

// Dropped is the number of rows that did not make it to the output.
func (s CleanStats) Dropped() int {
	return s.Input - s.Output
}

type recordKey struct {
	symbol   string
	exchange string
	date     time.Time
}

// Clean filters invalid raw rows, removes duplicate (symbol, exchange, date)
// keys and derives the enrichment columns. The output is sorted by symbol,
// exchange and date and does not depend on input order.
func Clean(raw []models.RawPrice) ([]models.PriceRecord, CleanStats) {
	stats := CleanStats{Input: len(raw)}

	latest := make(map[recordKey]models.RawPrice, len(raw))
	for _, r := range raw {
		switch {
		case r.Close == nil:
			stats.MissingClose++
			continue
		case r.Volume == nil || *r.Volume <= 0:
			stats.InvalidVolume++
			continue
		case r.Date == nil:
			stats.MissingDate++
			continue
		}

		k := recordKey{symbol: r.Symbol, exchange: r.Exchange, date: *r.Date}
		if prev, ok := latest[k]; ok {
			stats.Duplicates++
			if !supersedes(r, prev) {
				continue
			}
		}
		latest[k] = r
	}

	out := make([]models.PriceRecord, 0, len(latest))
	for _, r := range latest {
		out = append(out, enrich(r))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		if a.Exchange != b.Exchange {
			return a.Exchange < b.Exchange
		}
		return a.Date.Before(b.Date)
	})
	stats.Output = len(out)
	return out, stats
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// supersedes reports whether candidate replaces current for the same key:
// the later download wins, then the later source path.
func supersedes(candidate, current models.RawPrice) bool {
	ct, cok := parseTimestamp(candidate.DownloadTimestamp)
	pt, pok := parseTimestamp(current.DownloadTimestamp)
	switch {
	case cok && pok && !ct.Equal(pt):
		return ct.After(pt)
	case cok != pok:
		return cok
	case !cok && candidate.DownloadTimestamp != current.DownloadTimestamp:
		return candidate.DownloadTimestamp > current.DownloadTimestamp
	}
	return candidate.SourcePath >= current.SourcePath
}

func enrich(r models.RawPrice) models.PriceRecord {
	date := *r.Date
	rec := models.PriceRecord{
		Symbol:         r.Symbol,
		Exchange:       r.Exchange,
		Date:           date,
		Open:           r.Open,
		High:           r.High,
		Low:            r.Low,
		Close:          *r.Close,
		Volume:         *r.Volume,
		VolumeCategory: volumeCategory(*r.Volume),
		Year:           date.Year(),
		Month:          int(date.Month()),
		Day:            date.Day(),
	}
	if r.Open != nil && *r.Open != 0 {
		rec.DailyReturn = models.Float((rec.Close - *r.Open) / *r.Open * 100)
	}
	if r.High != nil && r.Low != nil {
		rec.PriceRange = models.Float(*r.High - *r.Low)
		rec.AvgPrice = models.Float((*r.High + *r.Low + rec.Close) / 3)
	}
	return rec
}

func volumeCategory(volume int64) string {
	switch {
	case volume > highVolumeThreshold:
		return models.VolumeHigh
	case volume > mediumVolumeThreshold:
		return models.VolumeMedium
	default:
		return models.VolumeLow
	}
}
