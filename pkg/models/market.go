package models

import "time"

// Quote represents a near-real-time stock quote.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	LastPrice     float64   `json:"last_price"`
	Change        float64   `json:"change"`
	ChangePct     float64   `json:"change_pct"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	PrevClose     float64   `json:"prev_close"`
	Volume        int64     `json:"volume"`
	WeekHigh52    float64   `json:"week_high_52"`
	WeekLow52     float64   `json:"week_low_52"`
	MarketCap     float64   `json:"market_cap,omitempty"`
	PE            float64   `json:"pe,omitempty"`
	DividendYield float64   `json:"dividend_yield,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// OHLCV represents a single candlestick bar of price data.
type OHLCV struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}
