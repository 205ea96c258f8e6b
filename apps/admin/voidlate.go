package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/masomo-grading/core/grading"
)

var (
	isTerminalFunc = term.IsTerminal // mockable

	errNotConfirmed = errors.New("voiding cancelled")
	errNoTerminal   = errors.New("cannot ask for confirmation without a terminal: pass --yes or --dry-run")
)

func (cli *commandLine) voidLate(ctx context.Context, args []string) error {
	fs := cli.newFlagSet("voidlate")
	var opts grading.VoidOptions
	fs.Int64Var(&opts.SchoolYearID, "year", 0, "Only check grades of this school year (default: every school year).")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Report the grades that would be voided without voiding them.")
	fs.StringVar(&opts.VoidedBy, "by", "", "Who the grades are voided by (default: the system user).")
	yes := fs.BoolP("yes", "y", false, "Do not ask for confirmation.")
	format := fs.String("format", formatText, "Output format: text or yaml.")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := checkFormat(*format); err != nil {
		return err
	}
	if err := cli.validate.Struct(opts); err != nil {
		fs.Usage()
		return err
	}

	if !opts.DryRun && !*yes {
		if err := cli.confirm("Void the grades of late enrolled students? This cannot be undone. [y/N] "); err != nil {
			return err
		}
	}

	stats, err := cli.gradingSvc.VoidLateEnrollmentGrades(ctx, opts)
	if err != nil {
		return errors.Wrap(err, "voiding late enrollment grades")
	}
	return cli.printResult(*format, stats, [][2]string{
		{"run", stats.RunID},
		{"dry run", strconv.FormatBool(stats.DryRun)},
		{"checked", strconv.Itoa(stats.Checked)},
		{"voided", strconv.Itoa(stats.Voided)},
		{"errors", strconv.Itoa(stats.Errors)},
		{"affected", formatKeys(stats.Affected)},
	})
}

func (cli *commandLine) confirm(prompt string) error {
	if !isTerminalFunc(int(os.Stdin.Fd())) {
		return errNoTerminal
	}
	fmt.Fprint(cli.out, prompt)
	answer, err := bufio.NewReader(cli.in).ReadString('\n')
	if err != nil && answer == "" {
		return errNotConfirmed
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return nil
	default:
		return errNotConfirmed
	}
}
