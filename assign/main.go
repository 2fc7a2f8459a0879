package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	assign "github.com/awused/go-assign"
	"github.com/awused/go-assign/definition"
	"github.com/awused/go-assign/persistent"
	"github.com/google/uuid"
	"github.com/mattn/go-runewidth"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.NewApp()
	app.Name = "assign"
	app.Usage = "Deterministically assigns units read from stdin to experiment treatments"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "def",
			Usage:   "Load the experiment definition from `FILE` (.yaml, .yml or .json)",
			EnvVars: []string{"ASSIGN_DEF"},
		},
		&cli.StringFlag{
			Name:    "db",
			Usage:   "Record assignments in `DIR`",
			EnvVars: []string{"ASSIGN_DB"},
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Log every operator evaluation",
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:   "dump",
			Usage:  "Dump every recorded assignment in the DB to stdout",
			Action: dump,
		},
		{
			Name:   "verify",
			Usage:  "Re-evaluate recorded assignments and report any that changed",
			Action: verify,
		},
		{
			Name:   "clean",
			Usage:  "Read units from stdin and remove records for units that aren't present",
			Action: clean,
		},
		{
			Name:      "simulate",
			Usage:     "Assign NUM random units and compare each variable to its distribution",
			ArgsUsage: "NUM",
			Action:    simulate,
		},
	}

	app.Action = run

	if err := app.Run(os.Args); err != nil {
		slog.Error("assign failed", slog.Any("error", err))
		var ec cli.ExitCoder
		if errors.As(err, &ec) {
			os.Exit(ec.ExitCode())
		}
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logger := newLogger(c)
	def, err := loadDefinition(c)
	if err != nil {
		return err
	}

	var store *persistent.Store
	if c.String("db") != "" {
		if store, err = openStore(c); err != nil {
			return err
		}
		defer store.Close()
	}

	var rows [][]string
	for _, line := range readLines(os.Stdin) {
		a, err := def.Assign(splitInputs(line, len(def.Inputs)), assign.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("unit %q: %w", line, err)
		}
		if store != nil {
			if err := store.Save(line, a); err != nil {
				return err
			}
		}

		row := []string{line}
		for _, e := range a.Entries() {
			row = append(row, fmt.Sprintf("%s=%v", e.Name, e.Value))
		}
		rows = append(rows, row)
	}

	printTable(os.Stdout, rows)
	return nil
}

func dump(c *cli.Context) error {
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Records("")
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := []string{r.Experiment, r.Unit, r.Scheme}
		for _, e := range r.Values {
			row = append(row, fmt.Sprintf("%s=%v", e.Name, e.Value))
		}
		rows = append(rows, row)
	}

	printTable(os.Stdout, rows)
	return nil
}

func verify(c *cli.Context) error {
	logger := newLogger(c)
	def, err := loadDefinition(c)
	if err != nil {
		return err
	}
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Records(def.Experiment)
	if err != nil {
		return err
	}

	drifted := 0
	for _, r := range records {
		a, err := def.Assign(splitInputs(r.Unit, len(def.Inputs)))
		if err != nil {
			return fmt.Errorf("unit %q: %w", r.Unit, err)
		}
		ok, err := r.Matches(a)
		if err != nil {
			return err
		}
		if !ok {
			drifted++
			logger.Warn("assignment changed",
				slog.String("experiment", r.Experiment),
				slog.String("unit", r.Unit),
				slog.String("recorded_scheme", r.Scheme),
				slog.String("scheme", a.Scheme().Name()))
		}
	}

	logger.Info("verified recorded assignments",
		slog.String("experiment", def.Experiment),
		slog.Int("records", len(records)),
		slog.Int("drifted", drifted))
	if drifted > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d recorded assignments changed", drifted, len(records)), 2)
	}
	return nil
}

func clean(c *cli.Context) error {
	logger := newLogger(c)
	def, err := loadDefinition(c)
	if err != nil {
		return err
	}
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	removed, err := store.Clean(def.Experiment, readLines(os.Stdin))
	if err != nil {
		return err
	}
	logger.Info("cleaned recorded assignments",
		slog.String("experiment", def.Experiment),
		slog.Int("removed", removed))
	return nil
}

func simulate(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("specify the number of units to simulate")
	}
	n, err := strconv.Atoi(c.Args().First())
	if err != nil {
		return err
	}
	if n <= 0 {
		return errors.New("the number of units must be positive")
	}

	def, err := loadDefinition(c)
	if err != nil {
		return err
	}

	hs, err := definition.Simulate(def, n, func(int) []string {
		inputs := make([]string, len(def.Inputs))
		for i := range inputs {
			inputs[i] = uuid.NewString()
		}
		return inputs
	})
	if err != nil {
		return err
	}

	for _, h := range hs {
		header := fmt.Sprintf("%s (%s)", h.Name, h.OpName)
		if h.OpName == "" {
			header = h.Name
		}
		if !math.IsNaN(h.PValue) {
			header += fmt.Sprintf("  chi2=%.3f p=%.4f", h.ChiSquare, h.PValue)
		}
		fmt.Println(header)

		rows := make([][]string, 0, len(h.Buckets))
		for _, b := range h.Buckets {
			expected := "-"
			if b.Expected >= 0 {
				expected = fmt.Sprintf("%.4f", b.Expected)
			}
			rows = append(rows, []string{
				"  " + b.Value,
				strconv.Itoa(b.Count),
				fmt.Sprintf("%.4f", float64(b.Count)/float64(h.N)),
				expected,
			})
		}
		printTable(os.Stdout, rows)
	}
	return nil
}

func newLogger(c *cli.Context) *slog.Logger {
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadDefinition(c *cli.Context) (*definition.Definition, error) {
	if c.String("def") == "" {
		return nil, errors.New("a definition file is required (--def)")
	}
	return definition.Load(c.String("def"))
}

func openStore(c *cli.Context) (*persistent.Store, error) {
	if c.String("db") == "" {
		return nil, errors.New("DB is required (--db)")
	}
	return persistent.Open(c.String("db"))
}

func readLines(r io.Reader) []string {
	s := bufio.NewScanner(r)
	lines := []string{}
	for s.Scan() {
		if line := strings.TrimSpace(s.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// A unit line holds one comma separated value per definition input. With a
// single input the whole line is the value.
func splitInputs(line string, n int) []string {
	if n <= 1 {
		if n == 0 {
			return nil
		}
		return []string{line}
	}
	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func printTable(w io.Writer, rows [][]string) {
	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 1)
			}
			if width := runewidth.StringWidth(cell); width > widths[i] {
				widths[i] = width
			}
		}
	}

	for _, row := range rows {
		for i, cell := range row {
			if i == len(row)-1 {
				fmt.Fprintln(w, cell)
				break
			}
			fmt.Fprintf(w, "%s | ", runewidth.FillRight(cell, widths[i]))
		}
	}
}
