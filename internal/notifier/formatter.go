package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"SwapSentinel/internal/model"
)

// FormatTrade formats a traded evaluation tick.
func FormatTrade(rep model.TickReport) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔁 <b>Swap executed</b> | %s\n\n", time.Now().UTC().Format("2006-01-02 15:04")))
	if q := rep.Quote; q != nil {
		b.WriteString(fmt.Sprintf("%s %s → %s %s\n",
			q.InputAmount.String(), q.InputUnit.Symbol,
			q.ExpectedOutputAmount.StringFixed(4), q.OutputUnit.Symbol))
		b.WriteString(fmt.Sprintf("Impact: %s%%\n", q.PriceImpact.Shift(2).StringFixed(3)))
	}
	b.WriteString(fmt.Sprintf("Net value: $%s\n", rep.NetValue.StringFixed(4)))
	if t := rep.Trade; t != nil {
		b.WriteString(fmt.Sprintf("Tx: <code>%s</code>\n", html.EscapeString(t.TxID)))
	}
	if rep.Dispatch != nil {
		b.WriteString("\n")
		b.WriteString(FormatDispatch(*rep.Dispatch))
	}
	return b.String()
}

// FormatDispatch formats a payout dispatch with one line per destination.
func FormatDispatch(d model.DispatchResult) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("💸 <b>Payout %s</b>\n", d.Outcome))
	b.WriteString(fmt.Sprintf("Gross $%s | buffer $%s | net $%s\n",
		d.Gross.StringFixed(2), d.FeeBuffer.StringFixed(2), d.Net.StringFixed(2)))
	for _, a := range d.Attempts {
		line := fmt.Sprintf("  %s: $%s %s", html.EscapeString(a.DestinationID), a.AmountRequested.StringFixed(2), a.Status)
		switch {
		case a.ExternalReference != "":
			line += fmt.Sprintf(" (<code>%s</code>)", html.EscapeString(a.ExternalReference))
		case a.Reason != "":
			line += " (" + html.EscapeString(a.Reason) + ")"
		}
		b.WriteString(line + "\n")
	}
	if !d.Cleared {
		b.WriteString("⚠️ amount kept pending\n")
	}
	return b.String()
}

// FormatReplenish formats a reserve top-up attempt.
func FormatReplenish(rep model.ReplenishReport) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("⛽ <b>Reserve %s</b>\n\n", rep.Outcome))
	b.WriteString(fmt.Sprintf("Balance: %s (threshold %s, top-up %s)\n",
		rep.Reserve.CurrentBalance.StringFixed(4), rep.Reserve.Threshold.String(), rep.Reserve.TopUpAmount.String()))
	if s := rep.Selection; s != nil {
		b.WriteString(fmt.Sprintf("Source: %s %s ($%s held)\n",
			s.Quantity.String(), s.Holding.Unit.Symbol, s.Holding.ValueUSD.StringFixed(2)))
	}
	if rep.Trade != nil && rep.Trade.TxID != "" {
		b.WriteString(fmt.Sprintf("Tx: <code>%s</code>\n", html.EscapeString(rep.Trade.TxID)))
	}
	if rep.Err != nil {
		b.WriteString(fmt.Sprintf("Error: %s\n", html.EscapeString(rep.Err.Error())))
	}
	return b.String()
}

// FormatProtocol formats a monthly protocol run.
func FormatProtocol(month int, reinvest, takeHome string, txs map[string]string, err error) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📅 <b>Monthly protocol</b> | month %d\n\n", month))
	b.WriteString(fmt.Sprintf("Reinvest: %s SOL\n", reinvest))
	b.WriteString(fmt.Sprintf("Take home: $%s\n", takeHome))

	keys := make([]string, 0, len(txs))
	for k := range txs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(fmt.Sprintf("  %s: <code>%s</code>\n", html.EscapeString(k), html.EscapeString(txs[k])))
	}
	if err != nil {
		b.WriteString(fmt.Sprintf("\n❌ %s\n", html.EscapeString(err.Error())))
	} else {
		b.WriteString("\nDone ✅")
	}
	return b.String()
}

// FormatStatus formats the agent status for display.
func FormatStatus(s model.Status) string {
	var b strings.Builder
	state := "⏸ stopped"
	if s.Running {
		state = "▶️ running"
	}
	b.WriteString(fmt.Sprintf("📦 <b>SwapSentinel</b> %s\n\n", state))
	if s.DryRun {
		b.WriteString("Mode: dry run\n")
	}
	if s.Running {
		b.WriteString(fmt.Sprintf("Uptime: %s\n", s.Uptime))
	}
	b.WriteString(fmt.Sprintf("Total profit: $%s\n", s.Ledger.TotalRealizedProfit.StringFixed(2)))
	b.WriteString(fmt.Sprintf("Pending payout: $%s\n", s.Ledger.PendingDistributionAmount.StringFixed(2)))
	b.WriteString(fmt.Sprintf("Reserve: %s (threshold %s)\n",
		s.Reserve.CurrentBalance.StringFixed(4), s.Reserve.Threshold.String()))
	if s.ReserveRate.IsPositive() {
		b.WriteString(fmt.Sprintf("Reserve rate: $%s\n", s.ReserveRate.StringFixed(2)))
	}
	b.WriteString(fmt.Sprintf("Next candidate: %s (#%d)\n", s.Candidate, s.RotationIndex))
	return b.String()
}
