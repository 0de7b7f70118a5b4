package evaluation

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
)

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteText writes the report as an aligned table, in the layout of a
// classification report.
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "\tprecision\trecall\tf1-score\tsupport\t\n")

	prev := RowLabel
	for _, row := range r.Rows {
		if row.Kind != prev {
			fmt.Fprintf(tw, "\t\t\t\t\t\n")
			prev = row.Kind
		}
		switch row.Kind {
		case RowAggregate:
			fmt.Fprintf(tw, "%s\t%.4f\t%s\t%s\t%s\t\n", row.Name, row.Value, placeholder, placeholder, placeholder)
		default:
			m := row.Metrics
			fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.4f\t%d\t\n", row.Name, m.Precision, m.Recall, m.F1, m.Support)
		}
	}
	return tw.Flush()
}
