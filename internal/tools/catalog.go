// Package tools knows every supported legacy ENSDF program: its prompt
// grammar, where its executable lives and how to run it.
package tools

import (
	"sort"
	"time"

	"github.com/hyperifyio/ensdfkit/internal/script"
)

// Tool describes one legacy program.
type Tool struct {
	Name        string
	Description string
	Grammar     script.Grammar

	// Executable is the file name under the tools directory, or the path of
	// the runnable member relative to the extraction directory for archives.
	Executable   string
	SourceURL    string
	Archive      bool
	ArchiveName  string // local file name of the downloaded archive
	ExpectedSize int64

	// AuxFiles must be reachable under their own names from the working
	// directory of the process.
	AuxFiles []string
	// StdoutFile names the parameter holding the path that receives the
	// captured stdout.
	StdoutFile string
	// StdoutField names the parameter added to the result holding stdout.
	StdoutField string
	// HomeEnv is set to the directory holding the runnable.
	HomeEnv string

	Timeout        time.Duration
	EnvPassthrough []string
}

const nndc = "http://www.nndc.bnl.gov/nndcscr/ensdf_pgm/analysis/"

var catalog = map[string]Tool{
	"alphad": {
		Name:        "alphad",
		Description: "alpha hindrance factors and theoretical half-lives",
		Grammar: script.Grammar{Tool: "alphad", Steps: []script.Step{
			script.Field("input_file"),
			script.Field("report_file"),
			script.Lit("Y"),
			script.If("rewrite_input_with_hinderance_factor",
				[]script.Step{script.Lit("Y"), script.Field("output_file")},
				[]script.Step{script.Lit("N"), script.Blank()}),
		}},
		Executable: "alphad",
	},
	"delta": {
		Name:        "delta",
		Description: "mixing ratios from angular correlation and conversion data",
		Grammar: script.Grammar{Tool: "delta", Steps: []script.Step{
			script.Field("input_file"),
			script.Field("output_file"),
			script.Blank(),
		}},
		Executable: "delta",
	},
	"gabs": {
		Name:        "gabs",
		Description: "gamma-ray absolute intensity and normalization",
		Grammar: script.Grammar{Tool: "gabs", Steps: []script.Step{
			script.Field("input_file"),
			script.Field("output_file"),
			script.Lit("Y"),
			script.Field("dataset_file"),
		}},
		Executable:   "gabs",
		SourceURL:    nndc + "gabs/unx/gabs",
		ExpectedSize: 8704,
	},
	"gtol": {
		Name:        "gtol",
		Description: "least-squares adjusted level energies",
		Grammar: script.Grammar{
			Tool:    "gtol",
			Require: []string{"dcc_theory_percent"},
			Steps: []script.Step{
				script.Field("input_file"),
				script.Field("report_file"),
				script.If("new_ensdf_file_with_results",
					[]script.Step{script.Lit("Y"), script.Field("output_file")},
					[]script.Step{script.Lit("N")}),
				script.If("supress_gamma_comparison",
					[]script.Step{script.Lit("Y")},
					[]script.Step{script.Lit("N")}),
				script.If("supress_intensity_comparison",
					[]script.Step{script.Lit("Y")},
					[]script.Step{script.Lit("N"), script.Field("dcc_theory_percent")}),
				script.Blank(),
			},
		},
		Executable: "gtol",
	},
	"hsicc": {
		Name:        "hsicc",
		Description: "internal conversion coefficients",
		Grammar: script.Grammar{Tool: "hsicc", Steps: []script.Step{
			script.Field("data_deck"),
			script.Field("icc_index"),
			script.Field("icc_table"),
			script.Field("complete_report"),
			script.Field("new_card_deck"),
			script.Field("comparison_report"),
			script.Field("is_multipol_known"),
		}},
		Executable: "hsicc",
	},
	"hsmrg": {
		Name:        "hsmrg",
		Description: "merge hsicc gamma records into the input data",
		Grammar: script.Grammar{Tool: "hsmrg", Steps: []script.Step{
			script.Field("data_deck"),
			script.Field("card_deck"),
			script.Field("merged_data_deck"),
		}},
		Executable: "hsmrg",
	},
	"seqhst": {
		Name:        "seqhst",
		Description: "sequential conversion table from the direct access file",
		Grammar: script.Grammar{Tool: "seqhst", Steps: []script.Step{
			script.Field("binary_table_input_file"),
			script.Field("sequential_output_file"),
		}},
		Executable: "seqhst",
	},
	"radd": {
		Name:        "radd",
		Description: "radius parameters for odd-odd and odd-A nuclei",
		Grammar: script.Grammar{
			Tool:    "radd",
			Require: []string{"output_file"},
			Steps: []script.Step{
				script.Field("atomic_number"),
				script.Field("neutron_number"),
				script.Lit("NO"),
				script.Blank(),
			},
		},
		Executable: "radd",
		AuxFiles:   []string{"98AK04.in", "ELE.in"},
		StdoutFile: "output_file",
	},
	"ruler": {
		Name:        "ruler",
		Description: "reduced transition probabilities",
		Grammar: script.Grammar{Tool: "ruler", Steps: []script.Step{
			script.Field("input_file"),
			script.Field("output_report_file"),
			script.Field("mode_of_operation"),
			script.Field("assumed_dcc_theory"),
		}},
		Executable: "ruler",
	},
	"bricc": {
		Name:        "bricc",
		Description: "internal conversion coefficients from the BrIcc tables",
		Grammar: script.Grammar{Tool: "bricc", Steps: []script.Step{
			script.Field("input_line"),
			script.Lit("X"),
		}},
		Executable:   "BriccV23/bricc",
		SourceURL:    nndc + "BrIcc/Linux/BriccV23-Linux.tgz",
		Archive:      true,
		ArchiveName:  "bricc.tar.gz",
		ExpectedSize: 127232,
		StdoutField:  "bricc_output",
		HomeEnv:      "BrIccHome",
	},
}

// Lookup returns the catalog entry for name.
func Lookup(name string) (Tool, bool) {
	t, ok := catalog[name]
	if !ok {
		return Tool{}, false
	}
	t.AuxFiles = append([]string(nil), t.AuxFiles...)
	t.EnvPassthrough = append([]string(nil), t.EnvPassthrough...)
	return t, true
}

// Names lists the catalog, sorted.
func Names() []string {
	out := make([]string, 0, len(catalog))
	for name := range catalog {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
