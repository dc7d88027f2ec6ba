package analytics

import (
	"sort"
	"time"
)

// TradeRecord is the completed-trade shape the analyzer consumes.
type TradeRecord struct {
	Symbol        string
	EnterTime     time.Time
	ExitTime      time.Time
	EnterPrice    float64
	ExitPrice     float64
	Amount        float64
	ProfitPercent float64
}

// QuoteProfit is the realized gain in the quote asset, before fees.
func (r TradeRecord) QuoteProfit() float64 {
	return (r.ExitPrice - r.EnterPrice) * r.Amount
}

// Summary holds session performance metrics aggregated over completed
// trades.
type Summary struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64

	TotalQuoteProfit   float64
	AvgProfitPercent   float64
	BestProfitPercent  float64
	WorstProfitPercent float64
	AverageWin         float64 // mean ProfitPercent of winners
	AverageLoss        float64 // mean ProfitPercent of losers, negative
	ProfitFactor       float64
	Expectancy         float64

	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	AverageTradeDuration time.Duration

	BySymbol map[string]SymbolSummary
}

// SymbolSummary aggregates per-symbol results.
type SymbolSummary struct {
	Trades        int
	QuoteProfit   float64
	ProfitPercent float64 // summed over the symbol's trades
}

// Summarize aggregates completed trades into a Summary. Records are
// processed in entry order regardless of input order.
func Summarize(records []TradeRecord) *Summary {
	summary := &Summary{BySymbol: make(map[string]SymbolSummary)}
	if len(records) == 0 {
		return summary
	}

	ordered := make([]TradeRecord, len(records))
	copy(ordered, records)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].EnterTime.Before(ordered[j].EnterTime)
	})

	var consecutiveWins, consecutiveLosses int
	var totalDuration time.Duration
	var sumProfitPercent float64

	for i, r := range ordered {
		summary.TotalTrades++
		if r.ProfitPercent > 0 {
			summary.WinningTrades++
			consecutiveWins++
			consecutiveLosses = 0
			summary.AverageWin += (r.ProfitPercent - summary.AverageWin) / float64(summary.WinningTrades)
		} else {
			summary.LosingTrades++
			consecutiveLosses++
			consecutiveWins = 0
			summary.AverageLoss += (r.ProfitPercent - summary.AverageLoss) / float64(summary.LosingTrades)
		}
		if consecutiveWins > summary.MaxConsecutiveWins {
			summary.MaxConsecutiveWins = consecutiveWins
		}
		if consecutiveLosses > summary.MaxConsecutiveLosses {
			summary.MaxConsecutiveLosses = consecutiveLosses
		}

		summary.TotalQuoteProfit += r.QuoteProfit()
		sumProfitPercent += r.ProfitPercent
		totalDuration += r.ExitTime.Sub(r.EnterTime)

		if i == 0 || r.ProfitPercent > summary.BestProfitPercent {
			summary.BestProfitPercent = r.ProfitPercent
		}
		if i == 0 || r.ProfitPercent < summary.WorstProfitPercent {
			summary.WorstProfitPercent = r.ProfitPercent
		}

		sym := summary.BySymbol[r.Symbol]
		sym.Trades++
		sym.QuoteProfit += r.QuoteProfit()
		sym.ProfitPercent += r.ProfitPercent
		summary.BySymbol[r.Symbol] = sym
	}

	summary.WinRate = float64(summary.WinningTrades) / float64(summary.TotalTrades)
	summary.AvgProfitPercent = sumProfitPercent / float64(summary.TotalTrades)
	summary.AverageTradeDuration = totalDuration / time.Duration(summary.TotalTrades)
	if summary.AverageLoss != 0 {
		summary.ProfitFactor = summary.AverageWin / -summary.AverageLoss
	}
	summary.Expectancy = summary.WinRate*summary.AverageWin + (1-summary.WinRate)*summary.AverageLoss

	return summary
}
