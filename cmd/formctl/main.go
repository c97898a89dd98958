// Command formctl is the operator tool for valuation application drafts:
// it validates and previews exported form JSON, replays field edits through
// the derivation engine, quotes vouchers and browses the industry dataset.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/amcolab/sell-bot/internal/common/logger"
	"github.com/amcolab/sell-bot/internal/form"
	"github.com/amcolab/sell-bot/internal/taxonomy"
)

type app struct {
	verbose bool
	log     logger.Logger
	tax     *taxonomy.Taxonomy
	stdin   io.Reader
}

func main() {
	if err := newRootCmd(os.Stdin).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdin io.Reader) *cobra.Command {
	a := &app{stdin: stdin, log: logger.NewNoOpLogger()}

	root := &cobra.Command{
		Use:           "formctl",
		Short:         "Inspect and check valuation application drafts",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.verbose {
				a.log = logger.NewStructured("debug", "console", "stderr")
			}
			tax, err := taxonomy.Default()
			if err != nil {
				return fmt.Errorf("load industry dataset: %w", err)
			}
			a.tax = tax
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(
		a.validateCmd(),
		a.previewCmd(),
		a.editCmd(),
		a.quoteCmd(),
		a.taxonomyCmd(),
	)
	return root
}

// readForm loads a draft from path ("-" reads stdin). Fields absent from
// the file keep their defaults.
func (a *app) readForm(path string) (*form.FormState, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(a.stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read form: %w", err)
	}

	state := form.Defaults(time.Now())
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, fmt.Errorf("decode form %s: %w", path, err)
	}
	if state.Subsidiaries == nil {
		state.Subsidiaries = []form.CompanyEntity{}
	}
	return state, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
