package utils

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"moonalarm/internal/strategy/analytics"
)

// WriteTradeReportCSV writes completed trades to a CSV file, one row
// per trade, oldest first in whatever order the caller supplies.
func WriteTradeReportCSV(records []analytics.TradeRecord, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	writer.Write([]string{"enter_time", "exit_time", "symbol", "enter_price", "exit_price", "amount", "profit_percent", "quote_profit"})

	for _, r := range records {
		writer.Write([]string{
			r.EnterTime.Format(time.RFC3339),
			r.ExitTime.Format(time.RFC3339),
			r.Symbol,
			strconv.FormatFloat(r.EnterPrice, 'f', -1, 64),
			strconv.FormatFloat(r.ExitPrice, 'f', -1, 64),
			strconv.FormatFloat(r.Amount, 'f', -1, 64),
			strconv.FormatFloat(r.ProfitPercent, 'f', -1, 64),
			strconv.FormatFloat(r.QuoteProfit(), 'f', -1, 64),
		})
	}
	return writer.Error()
}
