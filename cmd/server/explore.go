package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/goccy/go-json"
	"github.com/gookit/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"covidboard/internal/config"
	"covidboard/internal/engine"
	"covidboard/internal/export"
	"covidboard/internal/models"
	"covidboard/internal/render"
)

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Interactively change the selection and inspect the dashboard",

	RunE: func(cmd *cobra.Command, args []string) error {
		presets, err := loadPresets(cfg.Data.Presets)
		if err != nil {
			return err
		}
		store, err := loadDataset(cfg.Data.Path)
		if err != nil {
			return err
		}
		s := newSession(store, presets, os.Stdout, isTerminalWriter(os.Stdout))
		return s.prompt()
	},
}

// session is the state of one explore prompt: the loaded data and the
// sidebar selection the user has built up so far.
type session struct {
	store    *engine.ColumnStore
	presets  []config.Preset
	crit     models.Criteria
	out      io.Writer
	colorize bool
}

func newSession(store *engine.ColumnStore, presets []config.Preset, out io.Writer, colorize bool) *session {
	return &session{
		store:    store,
		presets:  presets,
		crit:     store.DefaultCriteria(),
		out:      out,
		colorize: colorize,
	}
}

func (s *session) completer() *readline.PrefixCompleter {
	countryItem := readline.PcItemDynamic(func(string) []string { return s.store.Countries() })
	chartItems := make([]readline.PrefixCompleterInterface, 0, len(render.Charts()))
	for _, name := range render.Charts() {
		chartItems = append(chartItems, readline.PcItem(string(name)))
	}
	presetItems := make([]readline.PrefixCompleterInterface, 0, len(s.presets))
	for _, p := range s.presets {
		presetItems = append(presetItems, readline.PcItem(p.Name))
	}

	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("countries", readline.PcItem("all"), readline.PcItem("none"), countryItem),
		readline.PcItem("add", countryItem),
		readline.PcItem("drop", countryItem),
		readline.PcItem("range", readline.PcItem("all")),
		readline.PcItem("preset", presetItems...),
		readline.PcItem("show"),
		readline.PcItem("kpis"),
		readline.PcItem("chart", chartItems...),
		readline.PcItem("png", chartItems...),
		readline.PcItem("raw"),
		readline.PcItem("export", readline.PcItem("csv"), readline.PcItem("xlsx"), readline.PcItem("arrow")),
		readline.PcItem("exit"),
	)
}

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func (s *session) prompt() error {
	completer := s.completer()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[36mcovid>\033[0m ",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return errors.Wrap(err, "starting prompt")
	}
	defer rl.Close()

	fmt.Fprintf(s.out, "%d records, %d countries. Type help for commands.\n", s.store.Len(), len(s.store.CountryDict))
	for {
		ln := rl.Line()
		if ln.CanContinue() {
			continue
		} else if ln.CanBreak() {
			return nil
		}

		line := strings.TrimSpace(ln.Line)
		if strings.EqualFold(line, "help") {
			fmt.Fprintln(s.out, "usage:")
			fmt.Fprintln(s.out, completer.Tree("    "))
			continue
		}
		quit, err := s.exec(line)
		if err != nil {
			s.errorf("%v", err)
			continue
		}
		if quit {
			return nil
		}
	}
}

func (s *session) errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if s.colorize {
		msg = color.FgRed.Sprint(msg)
	}
	fmt.Fprintln(s.out, msg)
}

// exec runs one command line against the session and reports whether the
// user asked to leave.
func (s *session) exec(line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	switch cmd {
	case "exit", "quit":
		return true, nil

	case "countries":
		switch strings.ToLower(rest) {
		case "":
			fmt.Fprintln(s.out, strings.Join(s.store.Countries(), ", "))
			return false, nil
		case "all":
			s.crit.Countries = s.store.Countries()
		case "none":
			s.crit.Countries = []string{}
		default:
			list, err := parseCountryList(rest)
			if err != nil {
				return false, err
			}
			s.crit.Countries = list
		}
		return false, s.criteria()

	case "add":
		add, err := parseCountryList(rest)
		if err != nil {
			return false, err
		}
		for _, c := range add {
			if !containsString(s.crit.Countries, c) {
				s.crit.Countries = append(s.crit.Countries, c)
			}
		}
		return false, s.criteria()

	case "drop":
		drop, err := parseCountryList(rest)
		if err != nil {
			return false, err
		}
		kept := make([]string, 0, len(s.crit.Countries))
		for _, c := range s.crit.Countries {
			if !containsString(drop, c) {
				kept = append(kept, c)
			}
		}
		s.crit.Countries = kept
		return false, s.criteria()

	case "range":
		if len(args) == 1 && strings.EqualFold(args[0], "all") {
			s.crit.Start, s.crit.End = s.store.DateBounds()
			return false, s.criteria()
		}
		if len(args) != 2 {
			return false, errors.New("usage: range START END | range all")
		}
		start, err := models.ParseDate(args[0])
		if err != nil {
			return false, err
		}
		end, err := models.ParseDate(args[1])
		if err != nil {
			return false, err
		}
		if start > end {
			return false, &engine.InvalidRangeError{Start: start, End: end}
		}
		s.crit.Start, s.crit.End = start, end
		return false, s.criteria()

	case "preset":
		if rest == "" {
			for _, p := range s.presets {
				fmt.Fprintln(s.out, p.Name)
			}
			return false, nil
		}
		p, ok := config.FindPreset(s.presets, rest)
		if !ok {
			return false, errors.Errorf("unknown preset %q", rest)
		}
		crit, err := p.Apply(s.store.DefaultCriteria())
		if err != nil {
			return false, err
		}
		s.crit = crit
		return false, s.criteria()

	case "show", "kpis":
		data, err := engine.Compute(s.store, s.crit)
		if err != nil {
			return false, err
		}
		if cmd == "kpis" {
			k := render.FormatKPIs(data.KPIs)
			fmt.Fprintf(s.out, "Total Cases: %s\nTotal Deaths: %s\nTotal Vaccinated: %s\n",
				k.TotalCases, k.TotalDeaths, k.TotalVaccinated)
			return false, nil
		}
		return false, render.NewReportWriter(s.out, "text", s.colorize).Write(data, nil)

	case "chart":
		if len(args) != 1 {
			return false, errors.New("usage: chart NAME")
		}
		data, err := engine.Compute(s.store, s.crit)
		if err != nil {
			return false, err
		}
		c, err := render.Lookup(args[0], data)
		if err != nil {
			return false, err
		}
		enc := json.NewEncoder(s.out)
		enc.SetIndent("", "  ")
		return false, enc.Encode(c)

	case "png":
		if len(args) != 2 {
			return false, errors.New("usage: png NAME FILE")
		}
		data, err := engine.Compute(s.store, s.crit)
		if err != nil {
			return false, err
		}
		return false, s.writeFile(args[1], func(w io.Writer) error {
			return render.RenderPNG(w, args[0], data)
		})

	case "raw":
		limit := 10
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return false, errors.Wrap(err, "usage: raw [N]")
			}
			limit = n
		}
		view, err := engine.Filter(s.store.All(), s.crit)
		if err != nil {
			return false, err
		}
		return false, render.WriteRecords(s.out, view.Records(0, limit))

	case "export":
		if len(args) != 2 {
			return false, errors.New("usage: export csv|xlsx|arrow FILE")
		}
		format, err := export.ParseFormat(args[0])
		if err != nil {
			return false, err
		}
		view, err := engine.Filter(s.store.All(), s.crit)
		if err != nil {
			return false, err
		}
		return false, s.writeFile(args[1], func(w io.Writer) error {
			return export.Write(w, format, view)
		})
	}
	return false, errors.Errorf("unknown command %q, try help", cmd)
}

// criteria prints the current selection.
func (s *session) criteria() error {
	countries := "(none)"
	if len(s.crit.Countries) > 0 {
		countries = strings.Join(s.crit.Countries, ", ")
	}
	fmt.Fprintf(s.out, "countries: %s\nrange: %s .. %s\n", countries, s.crit.Start, s.crit.End)
	return nil
}

// writeFile renders into memory first so a failed render leaves no file.
func (s *session) writeFile(path string, write func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "wrote %s\n", path)
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
