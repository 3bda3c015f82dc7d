// File: internal/reporting/summary.go

// Package reporting renders a resolved model as an aligned text table or
// as JSON, using the column headers from the tool settings.
package reporting

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/dvnlab/divan/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Row is one rendered layer of the table.
type Row struct {
	Index   int    `json:"idx"`
	From    int    `json:"from"`
	Repeats int    `json:"repeats"`
	Module  string `json:"module"`
	Args    []any  `json:"arguments"`
}

// Summary is a report over a resolved model definition.
type Summary struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`
	Scale       string    `json:"scale"`
	NC          int       `json:"nc"`
	Columns     []string  `json:"columns"`
	Rows        []Row     `json:"rows"`
}

// NewSummary builds a Summary from a resolved model and the configured
// column headers.
func NewSummary(res *model.Resolved, columns []string) *Summary {
	s := &Summary{
		ID:          uuid.New().String(),
		GeneratedAt: time.Now().UTC(),
		Scale:       res.Scale,
		NC:          res.NC,
		Columns:     columns,
		Rows:        make([]Row, 0, len(res.Layers)),
	}
	for _, layer := range res.Layers {
		s.Rows = append(s.Rows, Row{
			Index:   layer.Index,
			From:    layer.From,
			Repeats: layer.Repeats,
			Module:  layer.Module,
			Args:    layer.Args,
		})
	}
	return s
}

// WriteTable renders the summary as an aligned text table.
func (s *Summary) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	if _, err := fmt.Fprintf(tw, "%s\n", strings.Join(s.Columns, "\t")); err != nil {
		return err
	}
	for _, row := range s.Rows {
		args := make([]string, 0, len(row.Args))
		for _, a := range row.Args {
			args = append(args, fmt.Sprint(a))
		}
		if _, err := fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t[%s]\n",
			row.Index, row.From, row.Repeats, row.Module, strings.Join(args, ", ")); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(tw, "\nscale=%s nc=%d layers=%d\n", s.Scale, s.NC, len(s.Rows)); err != nil {
		return err
	}
	return tw.Flush()
}

// WriteJSON renders the summary as indented JSON.
func (s *Summary) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
