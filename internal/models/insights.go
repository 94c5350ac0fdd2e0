package models

// Insights is the compact report persisted at the end of the analysis job.
type Insights struct {
	AsOf                string           `json:"as_of"`
	TopGainers          []Gainer         `json:"top_gainers"`
	TopVolume           []VolumeLeader   `json:"top_volume"`
	AnomalyStocks       []AnomalyStock   `json:"anomaly_stocks"`
	TradingSignals      map[string]int64 `json:"trading_signals"`
	ClusterDistribution map[string]int   `json:"cluster_distribution,omitempty"`
}

type Gainer struct {
	Symbol      string  `json:"symbol"`
	Exchange    string  `json:"exchange"`
	DailyReturn float64 `json:"daily_return"`
	Price       float64 `json:"price"`
	Volume      int64   `json:"volume"`
}

type VolumeLeader struct {
	Symbol   string  `json:"symbol"`
	Exchange string  `json:"exchange"`
	Volume   int64   `json:"volume"`
	Price    float64 `json:"price"`
}

type AnomalyStock struct {
	Symbol       string `json:"symbol"`
	Exchange     string `json:"exchange"`
	Date         string `json:"date"`
	AnomalyScore int    `json:"anomaly_score"`
}
