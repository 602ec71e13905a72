package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Veraticus/contract-sentinel/internal/engine"
	"github.com/Veraticus/contract-sentinel/internal/model"
)

// ResultLine is the one-line outcome of a check. Unchanged successes render
// as an empty string.
func ResultLine(res engine.CheckResult) string {
	switch {
	case res.Err != nil:
		return FormatError(fmt.Sprintf("%s: %v", res.ID, res.Err))
	case res.Changed:
		line := FormatChange(fmt.Sprintf("%s: %s", res.ID, describe(res.Change)))
		if res.SyncErr != nil {
			line += "\n  " + FormatWarning(fmt.Sprintf("sheet not updated: %v", res.SyncErr))
		}
		return line
	case res.SyncErr != nil:
		return FormatWarning(fmt.Sprintf("%s: sheet not updated: %v", res.ID, res.SyncErr))
	default:
		return ""
	}
}

func describe(c model.Change) string {
	switch {
	case c.ObjectsChanged && c.RequisitesChanged:
		return "objects and requisites changed"
	case c.ObjectsChanged:
		return "objects changed"
	case c.RequisitesChanged:
		return "requisites changed"
	default:
		return "no changes"
	}
}

// RenderResult prints the full outcome of a single check.
func RenderResult(w io.Writer, res engine.CheckResult) {
	if res.Err != nil {
		fmt.Fprintln(w, ResultLine(res))
		return
	}

	if res.Changed {
		fmt.Fprintln(w, FormatChange(fmt.Sprintf("%s: %s", res.ID, describe(res.Change))))
	} else {
		fmt.Fprintln(w, FormatSuccess(fmt.Sprintf("%s: no changes", res.ID)))
	}
	if rec := res.Record; rec != nil {
		fmt.Fprintf(w, "  Customer:  %s\n", rec.Customer)
		fmt.Fprintf(w, "  Price:     %s\n", FormatMoney(rec.Price.Value))
		fmt.Fprintf(w, "  Accepted:  %s\n", FormatMoney(rec.Execution.Accepted.Value))
		fmt.Fprintf(w, "  Remainder: %s\n", FormatMoney(rec.Remainder()))
		fmt.Fprintf(w, "  Items:     %d\n", len(rec.Items))
	}
	if res.SheetURL != "" {
		fmt.Fprintf(w, "  Sheet:     %s\n", res.SheetURL)
	}
	for _, warn := range res.Warnings {
		fmt.Fprintln(w, "  "+FormatWarning(warn.Message))
	}
	if res.SyncErr != nil {
		fmt.Fprintln(w, "  "+FormatWarning(fmt.Sprintf("sheet not updated: %v", res.SyncErr)))
	}
}

// RenderReport prints a boxed sweep summary.
func RenderReport(w io.Writer, report engine.SweepReport) {
	var b strings.Builder
	fmt.Fprintf(&b, "Checked:  %d\n", report.Processed)
	fmt.Fprintf(&b, "Changed:  %d\n", len(report.Changed))
	fmt.Fprintf(&b, "Failed:   %d\n", len(report.Failed))
	if report.Skipped > 0 {
		fmt.Fprintf(&b, "Skipped:  %d\n", report.Skipped)
	}
	if len(report.SyncFailed) > 0 {
		fmt.Fprintf(&b, "Sheets:   %d not updated\n", len(report.SyncFailed))
	}
	fmt.Fprintf(&b, "Duration: %s", report.Duration.Round(time.Millisecond))

	fmt.Fprintln(w, RenderBox(SentinelIcon+" Sweep Complete", b.String()))
	for _, f := range report.Failed {
		fmt.Fprintln(w, FormatError(fmt.Sprintf("%s: %v", f.ID, f.Err)))
	}
}

// RenderEntries prints the registry as a table.
func RenderEntries(w io.Writer, entries []model.RegistryEntry, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join([]string{
		TableHeaderStyle.Render("ID"),
		TableHeaderStyle.Render("CUSTOMER"),
		TableHeaderStyle.Render("PRICE"),
		TableHeaderStyle.Render("REMAINDER"),
		TableHeaderStyle.Render("CHECKED"),
		TableHeaderStyle.Render("CHANGED"),
	}, "\t"))

	for i := range entries {
		e := &entries[i]
		checked, changed := SubtleStyle.Render("never"), SubtleStyle.Render("never")
		if e.LastChecked != nil {
			checked = FormatRelativeTime(*e.LastChecked, now)
		}
		if e.LastChanged != nil {
			changed = FormatRelativeTime(*e.LastChanged, now)
		}
		customer := e.Customer
		if customer == "" {
			customer = SubtleStyle.Render("-")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID,
			truncateRunes(customer, 40),
			FormatMoney(e.Price),
			FormatMoney(e.Price-e.Accepted),
			checked,
			changed,
		)
	}
	return tw.Flush()
}

// RenderPreviews prints a preview batch.
func RenderPreviews(w io.Writer, previews []model.Preview) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join([]string{
		TableHeaderStyle.Render("ID"),
		TableHeaderStyle.Render("YEAR"),
		TableHeaderStyle.Render("CUSTOMER"),
		TableHeaderStyle.Render("PRICE"),
		TableHeaderStyle.Render("STATUS"),
	}, "\t"))
	for _, p := range previews {
		status := SuccessStyle.Render(p.Status)
		if !p.Found() {
			status = ErrorStyle.Render(p.Status)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Year, truncateRunes(p.Customer, 40), p.Price, status)
	}
	return tw.Flush()
}

// FormatMoney renders an amount with thousands separated by spaces.
func FormatMoney(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	out := b.String() + "," + frac
	if neg {
		out = "-" + out
	}
	return out
}

// FormatRelativeTime renders t relative to now.
func FormatRelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		if m := int(d.Minutes()); m != 1 {
			return fmt.Sprintf("%d minutes ago", m)
		}
		return "1 minute ago"
	case d < 24*time.Hour:
		if h := int(d.Hours()); h != 1 {
			return fmt.Sprintf("%d hours ago", h)
		}
		return "1 hour ago"
	case d < 7*24*time.Hour:
		if days := int(d.Hours() / 24); days != 1 {
			return fmt.Sprintf("%d days ago", days)
		}
		return "yesterday"
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatFileSize renders a byte count.
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
