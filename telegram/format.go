package telegram

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eqtlab/whale-tracker/tracker"
)

const txURL = "https://solscan.io/tx/"

// diagnosticLogLimit keeps diagnostics inside a single message.
const diagnosticLogLimit = 3000

// HTMLFormatter renders report parts with telegram's html parse mode.
type HTMLFormatter struct {
	Location *time.Location
}

func NewHTMLFormatter(loc *time.Location) HTMLFormatter {
	if loc == nil {
		loc = time.Local
	}
	return HTMLFormatter{Location: loc}
}

func (f HTMLFormatter) Transaction(w tracker.TrackedWallet, tx tracker.Transaction) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s:\n", time.Unix(tx.BlockTime, 0).In(f.location()).Format("2006-01-02 15:04:05 -07:00"))
	fmt.Fprintf(&sb, "<b>%s (%s)</b>\n\n", html.EscapeString(w.Group), html.EscapeString(w.Name))

	for _, a := range tx.Actions {
		fmt.Fprintf(&sb, "<b>%s</b> <b>%s</b>\n", signed(a.Amount), html.EscapeString(a.Asset.Ticker))
	}

	fmt.Fprintf(&sb, "\n<a href=\"%s%s\"><u>View Transaction</u></a>", txURL, html.EscapeString(tx.Hash))

	return sb.String()
}

func (f HTMLFormatter) Holdings(group string, holdings []tracker.Holding) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "<b>%s holdings</b>\n", html.EscapeString(group))
	for _, h := range holdings {
		fmt.Fprintf(&sb, "\n<b>%s</b> <b>%s</b>", h.Amount.String(), html.EscapeString(h.Asset.Ticker))
	}

	return sb.String()
}

func (f HTMLFormatter) Glossary(assets []tracker.Asset) string {
	var sb strings.Builder

	sb.WriteString("<b>Tokens</b>\n")
	for _, a := range assets {
		fmt.Fprintf(&sb, "\n<b>%s</b> %s\n<code>%s</code>", html.EscapeString(a.Ticker), html.EscapeString(a.Name), html.EscapeString(a.Mint))
	}

	return sb.String()
}

func (f HTMLFormatter) Diagnostic(cycleID string, err error, recentLogs []string) string {
	logs := strings.Join(recentLogs, "\n")
	if r := []rune(logs); len(r) > diagnosticLogLimit {
		logs = "..." + string(r[len(r)-diagnosticLogLimit:])
	}

	return fmt.Sprintf(
		"<b>Cycle %s failed</b>\n<pre>%s</pre>\n\n<b>Recent logs</b>\n<pre>%s</pre>",
		html.EscapeString(cycleID),
		html.EscapeString(err.Error()),
		html.EscapeString(logs),
	)
}

func (f HTMLFormatter) Wallets(wallets []tracker.TrackedWallet) string {
	if len(wallets) == 0 {
		return "no tracked wallets"
	}

	lines := make([]string, 0, len(wallets))
	for _, w := range wallets {
		lines = append(lines, fmt.Sprintf("%s (%s) %s", w.Group, w.Name, w.Address))
	}

	return strings.Join(lines, "\n")
}

func (f HTMLFormatter) CommandResult(cmd tracker.Command, reply string, err error) string {
	if err != nil {
		return fmt.Sprintf("<b>/%s</b> failed: %s", html.EscapeString(cmd.Method), html.EscapeString(err.Error()))
	}
	return fmt.Sprintf("<b>/%s</b>\n%s", html.EscapeString(cmd.Method), html.EscapeString(reply))
}

func (f HTMLFormatter) location() *time.Location {
	if f.Location == nil {
		return time.Local
	}
	return f.Location
}

func signed(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.String()
	}
	return d.String()
}
