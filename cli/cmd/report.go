package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/goccy/go-yaml"
	jsoniter "github.com/json-iterator/go"

	"github.com/ardnew/causal/analysis"
	"github.com/ardnew/causal/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Report summarizes one or more causal profiles.
type Report struct {
	Profiles []string `arg:"" default:"profile.coz" help:"Profile file(s) or '-' for stdin." name:"profile" optional:""`

	Point  string `help:"Only report impacts on this progress point."`
	Where  string `help:"Keep candidates matching an expression over their row."    short:"w"`
	Match  string `help:"Keep candidates whose location fuzzily matches a pattern." short:"m"`
	Top    int    `default:"0"     help:"Report at most N candidates (0 reports all)." short:"n"`
	Output string `default:"table" enum:"table,yaml,json,csv" help:"Output format (${enum})." short:"o"`
	Indent int    `default:"2"     help:"Indent width for yaml and json output."`
}

// Run executes the report command.
func (r *Report) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	src, err := openSources(r.Profiles)
	if err != nil {
		return err
	}
	defer src.Close()

	prof, err := analysis.Parse(src)
	if err != nil {
		return ErrReadProfile.Wrap(err)
	}

	impacts, err := r.filter(analysis.Analyze(prof))
	if err != nil {
		return err
	}

	log.DebugContext(ctx, "analyzed profile",
		slog.Int("sources", src.Len()),
		slog.Int("runs", prof.Runs),
		slog.Int("records", len(prof.Records)),
		slog.Int("impacts", len(impacts)),
	)

	err = r.render(ctx, stdout(ctx), prof, impacts)
	if err != nil {
		return ErrWriteReport.With(slog.String("format", r.Output)).Wrap(err)
	}

	return nil
}

// filter applies the point, expression and fuzzy filters, then the limit.
func (r *Report) filter(impacts []analysis.Impact) ([]analysis.Impact, error) {
	if r.Point != "" {
		kept := impacts[:0:0]

		for _, i := range impacts {
			if i.Point == r.Point {
				kept = append(kept, i)
			}
		}

		impacts = kept
	}

	if r.Where != "" {
		filter, err := analysis.CompileFilter(r.Where)
		if err != nil {
			return nil, err
		}

		impacts, err = analysis.Where(impacts, filter)
		if err != nil {
			return nil, err
		}
	}

	impacts = analysis.Match(impacts, r.Match)

	if r.Top > 0 && len(impacts) > r.Top {
		impacts = impacts[:r.Top]
	}

	return impacts, nil
}

func (r *Report) render(
	ctx context.Context,
	w io.Writer,
	prof *analysis.Profile,
	impacts []analysis.Impact,
) error {
	switch r.Output {
	case "yaml":
		data, err := yaml.MarshalContext(
			ctx,
			makeEntries(impacts),
			yaml.Indent(max(r.Indent, 1)),
		)
		if err != nil {
			return ErrYAMLMarshal.Wrap(err)
		}

		_, err = w.Write(data)

		return err

	case "json":
		enc := json.NewEncoder(w)
		if r.Indent > 0 {
			enc.SetIndent("", strings.Repeat(" ", r.Indent))
		}

		return enc.Encode(makeEntries(impacts))

	case "csv":
		return writeCSV(w, impacts)

	default:
		return writeTable(w, prof, impacts)
	}
}

// entry is the yaml and json form of an impact.
type entry struct {
	Location   string         `json:"location"    yaml:"location"`
	Point      string         `json:"point"       yaml:"point"`
	Slope      float64        `json:"slope"       yaml:"slope"`
	MaxProgram float64        `json:"max_program" yaml:"max_program"`
	Samples    uint64         `json:"samples"     yaml:"samples"`
	Speedups   []speedupEntry `json:"speedups"    yaml:"speedups"`
}

type speedupEntry struct {
	Line        float64 `json:"line"        yaml:"line"`
	Program     float64 `json:"program"     yaml:"program"`
	Min         float64 `json:"min"         yaml:"min"`
	Max         float64 `json:"max"         yaml:"max"`
	Experiments int     `json:"experiments" yaml:"experiments"`
	Delta       uint64  `json:"delta"       yaml:"delta"`
	DurationNS  int64   `json:"duration_ns" yaml:"duration_ns"`
}

func makeEntries(impacts []analysis.Impact) []entry {
	out := make([]entry, 0, len(impacts))

	for _, i := range impacts {
		e := entry{
			Location:   i.Location,
			Point:      i.Point,
			Slope:      i.Slope,
			MaxProgram: i.MaxProgram(),
			Samples:    i.Samples,
			Speedups:   make([]speedupEntry, 0, len(i.Speedups)),
		}

		for _, s := range i.Speedups {
			e.Speedups = append(e.Speedups, speedupEntry{
				Line:        s.Line,
				Program:     s.Program,
				Min:         s.Min,
				Max:         s.Max,
				Experiments: s.Experiments,
				Delta:       s.Delta,
				DurationNS:  s.Duration.Nanoseconds(),
			})
		}

		out = append(out, e)
	}

	return out
}

var csvHeader = []string{
	"location", "point", "line_speedup", "program_speedup",
	"min", "max", "experiments",
}

// writeCSV writes one row per measured speedup, suitable for plotting.
func writeCSV(w io.Writer, impacts []analysis.Impact) error {
	cw := csv.NewWriter(w)

	err := cw.Write(csvHeader)
	if err != nil {
		return err
	}

	ff := func(f float64) string { return strconv.FormatFloat(f, 'f', 4, 64) }

	for _, i := range impacts {
		for _, s := range i.Speedups {
			err = cw.Write([]string{
				i.Location,
				i.Point,
				ff(s.Line),
				ff(s.Program),
				ff(s.Min),
				ff(s.Max),
				strconv.Itoa(s.Experiments),
			})
			if err != nil {
				return err
			}
		}
	}

	cw.Flush()

	return cw.Error()
}

func percent(f float64) string {
	return strconv.FormatFloat(f*100, 'f', 1, 64) + "%"
}

// writeTable renders the impacts as a table, most impactful first.
func writeTable(
	w io.Writer,
	prof *analysis.Profile,
	impacts []analysis.Impact,
) error {
	re := lipgloss.NewRenderer(w)

	var (
		headerStyle = re.NewStyle().Bold(true).Padding(0, 1)
		cellStyle   = re.NewStyle().Padding(0, 1)
		gainStyle   = cellStyle.Foreground(lipgloss.Color("2"))
		lossStyle   = cellStyle.Foreground(lipgloss.Color("1"))
	)

	rows := make([][]string, 0, len(impacts))

	for _, i := range impacts {
		rows = append(rows, []string{
			i.Location,
			i.Point,
			strconv.FormatFloat(i.Slope, 'f', 3, 64),
			percent(i.MaxProgram()),
			strconv.FormatUint(i.Samples, 10),
			strconv.Itoa(len(i.Speedups)),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(re.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers("LOCATION", "POINT", "SLOPE", "MAX SPEEDUP", "SAMPLES", "SPEEDUPS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 2 && impacts[row].Slope > 0:
				return gainStyle
			case col == 2 && impacts[row].Slope < 0:
				return lossStyle
			default:
				return cellStyle
			}
		})

	_, err := fmt.Fprintln(w, t.Render())
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "%d run(s), %d experiment(s), runtime %s\n",
		prof.Runs, len(prof.Records), prof.Runtime)

	return err
}
