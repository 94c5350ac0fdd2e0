package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"stockflow/internal/models"
)

// DetectAnomalies flags volume, price and gap outliers on one instrument's
// date-ordered rows. The volume z-score uses the population mean and
// standard deviation over the whole partition; price change and opening gap
// compare against the previous row whatever the calendar distance.
func DetectAnomalies(rows []models.AnalysisRecord, p Params) {
	if len(rows) == 0 {
		return
	}

	volumes := make([]float64, len(rows))
	for i, r := range rows {
		volumes[i] = float64(r.Volume)
	}
	mean := stat.Mean(volumes, nil)
	sd := stat.PopStdDev(volumes, nil)

	for i := range rows {
		rec := &rows[i]
		rec.Anomalies = models.Anomalies{}

		if sd > 0 {
			rec.VolumeZScore = models.Float((volumes[i] - mean) / sd)
		}
		if i > 0 {
			if prev := rows[i-1].Close; prev != 0 {
				rec.PriceChangePct = models.Float((rec.Close - prev) / prev * 100)
				if rec.Open != nil {
					rec.OpeningGapPct = models.Float((*rec.Open - prev) / prev * 100)
				}
			}
		}

		rec.IsVolumeAnomaly = exceeds(rec.VolumeZScore, p.VolumeZScore)
		rec.IsPriceAnomaly = exceeds(rec.PriceChangePct, p.PriceChangePct)
		rec.IsGapAnomaly = exceeds(rec.OpeningGapPct, p.OpeningGapPct)

		for _, flagged := range []bool{rec.IsVolumeAnomaly, rec.IsPriceAnomaly, rec.IsGapAnomaly} {
			if flagged {
				rec.AnomalyScore++
			}
		}
		rec.HasAnomaly = rec.AnomalyScore >= anomalyFlagThreshold
	}
}

// exceeds reports |v| > limit; a missing value never flags.
func exceeds(v *float64, limit float64) bool {
	return v != nil && math.Abs(*v) > limit
}
