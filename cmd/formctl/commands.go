package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/amcolab/sell-bot/internal/common/config"
	commonhttp "github.com/amcolab/sell-bot/internal/common/http"
	"github.com/amcolab/sell-bot/internal/common/observability"
	"github.com/amcolab/sell-bot/internal/form"
	"github.com/amcolab/sell-bot/internal/pricing"
	"github.com/amcolab/sell-bot/internal/store"
	"github.com/amcolab/sell-bot/internal/submission"
	"github.com/amcolab/sell-bot/internal/taxonomy"
)

var errInvalidForm = errors.New("form has validation errors")

// =============================================================================
// validate
// =============================================================================

func (a *app) validateCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "validate <form.json|->",
		Short: "Run the submission checks against an exported draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := a.readForm(args[0])
			if err != nil {
				return err
			}
			res := form.NewValidator(a.tax).Validate(state)
			out := cmd.OutOrStdout()

			if asJSON {
				if err := writeJSON(out, res); err != nil {
					return err
				}
			} else if res.Valid {
				fmt.Fprintln(out, "OK")
			} else {
				for _, e := range res.Errors {
					fmt.Fprintf(out, "%s: %s [%s]\n", e.Field, e.Message, e.Code)
				}
			}
			if !res.Valid {
				return fmt.Errorf("%w: %d", errInvalidForm, len(res.Errors))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

// =============================================================================
// preview
// =============================================================================

func (a *app) previewCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "preview <form.json|->",
		Short: "Render the confirmation screen for a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := a.readForm(args[0])
			if err != nil {
				return err
			}
			p := submission.BuildPreview(state, a.tax)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), p)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), p.Text())
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print sections as JSON")
	return cmd
}

// =============================================================================
// edit
// =============================================================================

func (a *app) editCmd() *cobra.Command {
	var (
		from       string
		mainPrice  int64
		childPrice int64
		blur       bool
	)
	cmd := &cobra.Command{
		Use:   "edit [path=value...]",
		Short: "Replay field edits through the derivation engine",
		Long: `Applies each edit in order to a scratch draft, the same way the form
server does, and prints the resulting form with the rules that fired.

  formctl edit applicationType=子会社含む numberOfSubsidiaries=2 \
      subsidiaries.1.industry.category1=1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			engine := form.NewEngine(a.tax)
			st := store.New(store.NewMemoryBackend(), engine, config.StorageConfig{}, a.log)
			fs := st.Session("formctl")

			if from != "" {
				state, err := a.readForm(from)
				if err != nil {
					return err
				}
				if err := fs.Save(ctx, state); err != nil {
					return err
				}
			}
			if mainPrice > 0 || childPrice > 0 {
				table := &pricing.PriceTable{
					MainCompanyPrice:  pricing.Amount(mainPrice),
					ChildCompanyPrice: pricing.Amount(childPrice),
				}
				if _, err := fs.ApplyPriceTable(ctx, table); err != nil {
					return err
				}
			}

			fired := []string{}
			for _, arg := range args {
				raw, value, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("edit %q: want path=value", arg)
				}
				p, err := form.ParsePath(raw)
				if err != nil {
					return err
				}
				_, rules, err := fs.Edit(ctx, p, value)
				if err != nil {
					return fmt.Errorf("edit %s: %w", raw, err)
				}
				if blur {
					_, more, err := fs.Blur(ctx, p)
					if err != nil {
						return fmt.Errorf("blur %s: %w", raw, err)
					}
					rules = append(rules, more...)
				}
				for _, r := range rules {
					fired = append(fired, fmt.Sprintf("%s: %s", raw, r))
				}
			}

			state, err := fs.Load(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"form":  state,
				"rules": fired,
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "start from an exported draft instead of defaults")
	cmd.Flags().Int64Var(&mainPrice, "main-price", 0, "main company price for repricing")
	cmd.Flags().Int64Var(&childPrice, "child-price", 0, "price per subsidiary for repricing")
	cmd.Flags().BoolVar(&blur, "blur", false, "apply leave-field normalization after each edit")
	return cmd
}

// =============================================================================
// quote
// =============================================================================

func (a *app) quoteCmd() *cobra.Command {
	var (
		endpoint     string
		voucher      string
		subsidiaries int
		timeout      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Look up a voucher and print the resulting fee",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if subsidiaries < 0 || subsidiaries > form.MaxSubsidiaries {
				return fmt.Errorf("--subsidiaries must be between 0 and %d", form.MaxSubsidiaries)
			}

			client := pricing.NewVoucherClient(endpoint, commonhttp.NewClient(timeout), observability.NewNoop())
			table, err := client.Lookup(ctx, voucher)
			if err != nil {
				a.log.Error("Voucher lookup failed", map[string]interface{}{"voucher": voucher, "error": err})
				return fmt.Errorf("lookup %q: %w", voucher, err)
			}

			total := table.Total(true, subsidiaries)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "主たる法人: %s\n", form.FormatYen(int64(table.MainCompanyPrice)))
			fmt.Fprintf(out, "子会社 (1社): %s\n", form.FormatYen(int64(table.ChildCompanyPrice)))
			fmt.Fprintf(out, "子会社数: %d\n", subsidiaries)
			fmt.Fprintf(out, "合計: %s\n", form.FormatYen(total))
			return nil
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", os.Getenv("API_URL"), "voucher lookup endpoint")
	cmd.Flags().StringVar(&voucher, "voucher", "", "voucher code; empty quotes the base price")
	cmd.Flags().IntVar(&subsidiaries, "subsidiaries", 0, "number of subsidiaries")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "lookup timeout")
	return cmd
}

// =============================================================================
// taxonomy
// =============================================================================

func (a *app) taxonomyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxonomy [id|label]",
		Short: "Browse the industry classification",
		Long:  "Without arguments lists the top level; otherwise lists the children of the given node.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, n := range a.tax.TopLevel() {
					fmt.Fprintf(out, "%d\t%s\n", n.ID, n.Value)
				}
				return nil
			}

			node, ok := a.resolveNode(args[0])
			if !ok {
				return fmt.Errorf("no industry %q", args[0])
			}
			fmt.Fprintf(out, "%d\t%s\n", node.ID, node.Value)
			for _, child := range a.tax.ChildrenOf(node.ID) {
				marker := ""
				if a.tax.HasChildren(child.ID) {
					marker = " +"
				}
				fmt.Fprintf(out, "  %d\t%s%s\n", child.ID, child.Value, marker)
			}
			return nil
		},
	}
	return cmd
}

func (a *app) resolveNode(arg string) (taxonomy.Node, bool) {
	if _, err := strconv.Atoi(arg); err == nil {
		return a.tax.Lookup(arg)
	}
	return a.tax.ByValue(arg)
}
