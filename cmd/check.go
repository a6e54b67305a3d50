package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fennec-lang/fennec/frontend/concepts"
	"github.com/fennec-lang/fennec/frontend/decl"
	"github.com/fennec-lang/fennec/frontend/diag"
	"github.com/fennec-lang/fennec/internal/log"
)

var CheckCmd = &cobra.Command{
	Use:          "check unit.yaml",
	Short:        "Classify a normalized unit and resolve its constraint requests",
	RunE:         runCheck,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
}

var logLevel *int

func init() {
	logLevel = CheckCmd.Flags().IntP("log-level", "l", int(slog.LevelError), "log level")
}

func runCheck(cmd *cobra.Command, args []string) error {
	log.SetLevel(slog.Level(*logLevel))

	target, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("could not get absolute path of target: %w", err)
	}
	unit, err := decl.LoadFile(os.DirFS(filepath.Dir(target)), filepath.Base(target))
	if err != nil {
		return fmt.Errorf("could not load unit (this is a bug and not a compile error): %w", err)
	}

	registry, errs := concepts.Classify(unit)
	if errs.HasError() {
		sb := &strings.Builder{}
		for _, d := range errs.Errors() {
			sb.WriteString("\n")
			sb.WriteString(diag.FormatWithCode(d))
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "declarations excluded during classification:%s\n", sb.String())
	}

	resolver := concepts.NewCachedResolver(registry)
	failed := 0
	for _, req := range unit.Requests {
		constraint := concepts.Constraint{
			Capability: req.Capability,
			Args:       decl.ToIRAll(req.Args),
		}
		vis := concepts.Visibility{}
		if len(req.Visible) > 0 {
			vis = concepts.NewVisibility(req.Visible...)
		}
		res, d := resolver.Resolve(constraint, vis)
		if d != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", constraint.String(), diag.FormatWithCode(d))
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s => %s\n", constraint.String(), describe(res))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d constraints could not be resolved", failed, len(unit.Requests))
	}
	return nil
}

// describe renders a resolved witness tree as Witness(Child, ...).
func describe(res *concepts.Resolved) string {
	var childNames []string
	for _, p := range res.Witness.Params {
		for _, child := range res.Children[p.Name] {
			childNames = append(childNames, describe(child))
		}
	}
	if len(childNames) == 0 {
		return res.Witness.Name
	}
	return res.Witness.Name + "(" + strings.Join(childNames, ", ") + ")"
}
