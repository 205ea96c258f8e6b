package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/masomo-grading/core/grading"
)

var errHelp = errors.New("help provided")

// Output formats
const (
	formatText = "text"
	formatYAML = "yaml"
)

type commandLine struct {
	db         *sqlx.DB
	gradingSvc *grading.Service
	validate   *validator.Validate
	in         io.Reader
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]  - run a database migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  quartergrade            - compute or read a student's cached quarter grade")
	fmt.Fprintln(cli.out, "  refreshgrades           - refresh cached quarter grades")
	fmt.Fprintln(cli.out, "  gradestatus             - summarize the freshness of cached quarter grades")
	fmt.Fprintln(cli.out, "  voidlate                - void grades of students who enrolled late in a quarter")
	fmt.Fprintln(cli.out, "Run `COMMAND -h` for the options of a command.")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	ctx := context.Background()
	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2:])
	case "quartergrade":
		return cli.quarterGrade(ctx, args[2:])
	case "refreshgrades":
		return cli.refreshGrades(ctx, args[2:])
	case "gradestatus":
		return cli.gradeStatus(ctx, args[2:])
	case "voidlate":
		return cli.voidLate(ctx, args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func parseFlags(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return errHelp
		}
		return err
	}
	return nil
}

func checkFormat(format string) error {
	if format != formatText && format != formatYAML {
		return errors.Errorf("unknown format %q (want %s or %s)", format, formatText, formatYAML)
	}
	return nil
}

// printResult writes v as YAML, or as aligned `key: value` lines in text format.
func (cli *commandLine) printResult(format string, v interface{}, lines [][2]string) error {
	if format == formatYAML {
		enc := yaml.NewEncoder(cli.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.Wrap(err, "encoding yaml")
		}
		return enc.Close()
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 1, ' ', 0)
	for _, l := range lines {
		fmt.Fprintf(w, "%s:\t%s\n", l[0], l[1])
	}
	return w.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}
