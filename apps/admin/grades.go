package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-grading/core/grading"
)

func (cli *commandLine) quarterGrade(ctx context.Context, args []string) error {
	fs := cli.newFlagSet("quartergrade")
	var key grading.QuarterKey
	fs.Int64Var(&key.StudentID, "student", 0, "The student ID.")
	fs.Int64Var(&key.ClassID, "class", 0, "The class ID.")
	fs.Int64Var(&key.SchoolYearID, "year", 0, "The school year ID.")
	fs.StringVar(&key.Quarter, "quarter", "", "The quarter: Q1, Q2, Q3, Q4 (or 1-4).")
	force := fs.Bool("force", false, "Recompute even if the cached grade is fresh.")
	format := fs.String("format", formatText, "Output format: text or yaml.")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := checkFormat(*format); err != nil {
		return err
	}
	if err := cli.validate.Struct(key); err != nil {
		fs.Usage()
		return err
	}

	qg, err := cli.gradingSvc.GetOrRefresh(ctx, key, *force)
	if err != nil {
		return err
	}
	if qg == nil {
		fmt.Fprintln(cli.out, "no grade for this quarter")
		return nil
	}
	return cli.printResult(*format, qg, [][2]string{
		{"quarter", qg.Quarter},
		{"letter grade", qg.LetterGrade},
		{"percentage", strconv.FormatFloat(qg.Percentage, 'f', 2, 64)},
		{"assignments", strconv.Itoa(qg.AssignmentsCount)},
		{"last calculated", formatTime(qg.LastCalculated)},
	})
}

func (cli *commandLine) refreshGrades(ctx context.Context, args []string) error {
	fs := cli.newFlagSet("refreshgrades")
	var opts grading.SweepOptions
	fs.StringVar(&opts.Scope, "scope", grading.ScopeEnded, "Which quarters to refresh: ended (recently ended quarters) or all.")
	fs.BoolVar(&opts.Force, "force", false, "Recompute grades even if the cached ones are fresh.")
	fs.Int64SliceVar(&opts.SchoolYearIDs, "year", nil, "Only refresh these school years (default: every school year).")
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

	stats, err := cli.gradingSvc.Sweep(ctx, opts)
	if err != nil {
		return errors.Wrap(err, "refreshing quarter grades")
	}
	return cli.printResult(*format, stats, [][2]string{
		{"run", stats.RunID},
		{"scope", stats.Scope},
		{"updated", strconv.Itoa(stats.TotalGradesUpdated)},
		{"skipped", strconv.Itoa(stats.TotalGradesSkipped)},
		{"errors", strconv.Itoa(stats.Errors)},
		{"duration", stats.FinishedAt.Sub(stats.StartedAt).String()},
	})
}

func (cli *commandLine) gradeStatus(ctx context.Context, args []string) error {
	fs := cli.newFlagSet("gradestatus")
	var filter grading.QuarterGradeFilter
	fs.Int64Var(&filter.StudentID, "student", 0, "Only count this student's grades.")
	fs.Int64Var(&filter.SchoolYearID, "year", 0, "Only count grades of this school year.")
	format := fs.String("format", formatText, "Output format: text or yaml.")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := checkFormat(*format); err != nil {
		return err
	}
	if filter.StudentID < 0 || filter.SchoolYearID < 0 {
		fs.Usage()
		return errHelp
	}

	status, err := cli.gradingSvc.CacheStatus(ctx, filter)
	if err != nil {
		return err
	}
	lines := [][2]string{
		{"total", strconv.Itoa(status.Total)},
		{"fresh", strconv.Itoa(status.Fresh)},
		{"stale", strconv.Itoa(status.Stale)},
		{"ttl", status.TTL},
	}
	if status.Oldest != nil {
		lines = append(lines,
			[2]string{"oldest", formatTime(*status.Oldest)},
			[2]string{"newest", formatTime(*status.Newest)},
		)
	}
	return cli.printResult(*format, status, lines)
}

func formatKeys(keys []grading.QuarterKey) string {
	if len(keys) == 0 {
		return "-"
	}
	s := make([]string, 0, len(keys))
	for _, k := range keys {
		s = append(s, fmt.Sprintf("student %d class %d %s", k.StudentID, k.ClassID, k.Quarter))
	}
	return strings.Join(s, ", ")
}
