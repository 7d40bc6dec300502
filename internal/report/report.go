// Package report renders compression profiles as terminal tables and JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/nitishmital/head-network-distillation/internal/profile"
)

// Report is the outcome of one profiling run.
type Report struct {
	Experiment string  `json:"experiment"`
	Accuracy   float64 `json:"accuracy"` // percent, on the test set

	// InputCompression describes the transform applied to raw inputs.
	InputCompression string `json:"input_compression"`

	// InputBandwidth is the mean serialized size of one raw input sample.
	InputBandwidth float64 `json:"input_bandwidth"`

	Layers     []Row    `json:"layers"`
	Unmeasured []string `json:"unmeasured,omitempty"`
}

// Row is one profiled layer.
type Row struct {
	Path       string  `json:"path"`
	Name       string  `json:"name"`
	Original   float64 `json:"original"`
	Compressed float64 `json:"compressed"`

	// Ratio is Compressed / Original.
	Ratio float64 `json:"ratio"`

	// VsInput is Compressed / InputBandwidth: below 1 the layer output is
	// cheaper to transmit than the raw input.
	VsInput float64 `json:"vs_input"`
}

// New builds a report from a profile and the input baseline.
func New(experiment string, p *profile.Profile, inputBandwidth, accuracy float64) *Report {
	r := &Report{
		Experiment:     experiment,
		Accuracy:       accuracy,
		InputBandwidth: inputBandwidth,
		Layers:         make([]Row, p.Len()),
	}
	for i := range p.Len() {
		r.Layers[i] = Row{
			Path:       p.Paths[i],
			Name:       p.Names[i],
			Original:   p.Original[i],
			Compressed: p.Compressed[i],
			Ratio:      ratio(p.Compressed[i], p.Original[i]),
			VsInput:    ratio(p.Compressed[i], inputBandwidth),
		}
	}
	return r
}

func ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// SplitCandidates returns the paths of the layers whose output is smaller
// than the raw input, in model order.
func (r *Report) SplitCandidates() []string {
	var paths []string
	for _, row := range r.Layers {
		if row.VsInput > 0 && row.VsInput < 1 {
			paths = append(paths, row.Path)
		}
	}
	return paths
}

var (
	headerStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)
	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "2", Dark: "10"}).
			Bold(true).
			PaddingLeft(1).PaddingRight(1)
	titleStyle = lipgloss.NewStyle().Bold(true)
)

// Table renders the layers as a table. Layers whose output is smaller than
// the raw input are highlighted.
func (r *Report) Table() string {
	highlight := make(map[int]bool)
	alignments := []lipgloss.Position{lipgloss.Right, lipgloss.Left, lipgloss.Left, lipgloss.Right}
	t := lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		Headers("#", "Layer", "Path", "Original", "Compressed", "Ratio", "vs Input").
		StyleFunc(func(row, col int) lipgloss.Style {
			var s lipgloss.Style
			switch {
			case row < 0:
				return headerStyle
			case highlight[row]:
				s = highlightStyle
			case row%2 == 0:
				s = oddRowStyle
			default:
				s = evenRowStyle
			}
			return s.Align(alignments[min(col, len(alignments)-1)])
		})

	t.Row("-", "Input", "", humanize.Bytes(uint64(r.InputBandwidth)), humanize.Bytes(uint64(r.InputBandwidth)), "1.000", "100.0%")
	for i, row := range r.Layers {
		if row.VsInput > 0 && row.VsInput < 1 {
			highlight[i+1] = true
		}
		t.Row(
			fmt.Sprint(i),
			row.Name,
			row.Path,
			humanize.Bytes(uint64(row.Original)),
			humanize.Bytes(uint64(row.Compressed)),
			fmt.Sprintf("%.3f", row.Ratio),
			fmt.Sprintf("%.1f%%", 100*row.VsInput),
		)
	}
	return t.Render()
}

// WriteText writes a title line, the table and the unmeasured layers to w.
func (r *Report) WriteText(w io.Writer) error {
	title := fmt.Sprintf("%s: test accuracy %.2f%%, input %s per sample", r.Experiment, r.Accuracy,
		humanize.Bytes(uint64(r.InputBandwidth)))
	if r.InputCompression != "" {
		title += fmt.Sprintf(" (%s)", r.InputCompression)
	}
	if _, err := fmt.Fprintf(w, "%s\n%s\n", titleStyle.Render(title), r.Table()); err != nil {
		return errors.Wrap(err, "write report")
	}
	for _, path := range r.Unmeasured {
		if _, err := fmt.Fprintf(w, "not measured: %s\n", path); err != nil {
			return errors.Wrap(err, "write report")
		}
	}
	return nil
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(r), "encode report")
}

// SaveJSON writes the report as JSON to path, creating parent directories.
func (r *Report) SaveJSON(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errors.Wrap(err, "create report directory")
	}
	//nolint:gosec // G304: path is given on the command line
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create report")
	}
	if err := r.WriteJSON(f); err != nil {
		_ = f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "close report")
}

// LoadJSON reads a report written by SaveJSON.
func LoadJSON(path string) (*Report, error) {
	//nolint:gosec // G304: path is given on the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read report")
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrapf(err, "decode report %s", path)
	}
	return &r, nil
}
