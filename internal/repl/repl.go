package repl

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/leengari/automanager/internal/domain/data"
	"github.com/leengari/automanager/internal/manager"
)

const helpText = `Commands:
  login <user> <password>          open a session
  logout                           close the session
  tables                           list tables
  create <table> <field,field,...> create a table
  fields <table>                   show a table's fields
  rows <table>                     show every row
  add <table> <value,value,...>    append a row
  update <table> <index> <values>  replace the row at index
  delete <table> <index>           delete the row at index
  find <table> <field> <value>     first row where field equals value
  findall <table> <field> <value>  every row where field equals value
  undo <table> | redo <table>      step through a table's history
  history <table>                  show undo/redo depth
  rename <old> <new>               rename a table (admin)
  drop <table>                     delete a table (admin)
  path <table>                     show the backing file
  backup [table...]                archive tables (admin)
  exit | \q                        quit`

var (
	errColor  = color.New(color.FgRed)
	okColor   = color.New(color.FgGreen)
	infoColor = color.New(color.FgCyan)
)

// Shell is one interactive session over a workspace
type Shell struct {
	ws      *manager.Workspace
	out     io.Writer
	session *manager.Session
}

// Start runs the interactive loop until exit or end of input
func Start(ws *manager.Workspace, in io.Reader, out io.Writer) {
	sh := &Shell{ws: ws, out: out}
	defer func() { sh.ws.Logout(sh.session) }()

	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, "Welcome to AutoManager")
	fmt.Fprintln(out, "Type 'help' for commands, 'exit' or '\\q' to quit.")

	for {
		fmt.Fprint(out, sh.prompt())
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "\\q" {
			return
		}

		if err := sh.Execute(line); err != nil {
			errColor.Fprintf(out, "Error: %v\n", err)
		}
	}
}

func (sh *Shell) prompt() string {
	if sh.session == nil {
		return "> "
	}
	return sh.session.Username + "> "
}

// Execute runs a single command line
func (sh *Shell) Execute(line string) error {
	cmd, rest := cut(line)

	switch cmd {
	case "help":
		fmt.Fprintln(sh.out, helpText)
		return nil
	case "login":
		return sh.login(rest)
	case "logout":
		sh.ws.Logout(sh.session)
		sh.session = nil
		okColor.Fprintln(sh.out, "Logged out")
		return nil
	case "tables":
		return sh.tables()
	case "create":
		return sh.create(rest)
	case "fields":
		return sh.fields(rest)
	case "rows":
		return sh.rows(rest)
	case "add":
		return sh.add(rest)
	case "update":
		return sh.update(rest)
	case "delete":
		return sh.deleteRow(rest)
	case "find", "findall":
		return sh.find(rest, cmd == "findall")
	case "undo", "redo":
		return sh.step(rest, cmd == "redo")
	case "history":
		return sh.history(rest)
	case "rename":
		return sh.rename(rest)
	case "drop":
		return sh.drop(rest)
	case "path":
		return sh.path(rest)
	case "backup":
		return sh.backup(rest)
	}
	return fmt.Errorf("unknown command %q (try 'help')", cmd)
}

func (sh *Shell) login(rest string) error {
	user, password := cut(rest)
	if user == "" || password == "" {
		return errors.New("usage: login <user> <password>")
	}
	s, err := sh.ws.Login(user, password)
	if err != nil {
		return err
	}
	sh.ws.Logout(sh.session)
	sh.session = s
	okColor.Fprintf(sh.out, "Logged in as %s (%s)\n", s.Username, s.Role)
	return nil
}

func (sh *Shell) tables() error {
	names, err := sh.ws.ListTables(sh.session)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		infoColor.Fprintln(sh.out, "No tables")
		return nil
	}
	for _, name := range names {
		fmt.Fprintf(sh.out, "  - %s\n", name)
	}
	return nil
}

func (sh *Shell) create(rest string) error {
	name, list := cut(rest)
	if name == "" || list == "" {
		return errors.New("usage: create <table> <field,field,...>")
	}
	fields, err := parseValues(list)
	if err != nil {
		return err
	}
	path, err := sh.ws.CreateTable(sh.session, name, fields)
	if err != nil {
		return err
	}
	okColor.Fprintf(sh.out, "Table %s created at %s\n", name, path)
	return nil
}

func (sh *Shell) fields(rest string) error {
	fields, err := sh.ws.Fields(sh.session, rest)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		infoColor.Fprintf(sh.out, "No fields for %q\n", rest)
		return nil
	}
	fmt.Fprintln(sh.out, strings.Join(fields, ", "))
	return nil
}

func (sh *Shell) rows(rest string) error {
	rows, err := sh.ws.ReadAll(sh.session, rest)
	if err != nil {
		return err
	}
	fields, err := sh.ws.Fields(sh.session, rest)
	if err != nil {
		return err
	}
	matches := make([]data.Match, len(rows))
	for i, r := range rows {
		matches[i] = data.Match{Index: i, Row: r}
	}
	PrintRows(sh.out, fields, matches)
	return nil
}

func (sh *Shell) add(rest string) error {
	name, raw := cut(rest)
	if name == "" {
		return errors.New("usage: add <table> <value,value,...>")
	}
	values, err := parseValues(raw)
	if err != nil {
		return err
	}
	if err := sh.ws.AppendRow(sh.session, name, data.NewRow(values...)); err != nil {
		return err
	}
	okColor.Fprintln(sh.out, "Row added")
	return nil
}

func (sh *Shell) update(rest string) error {
	name, rest := cut(rest)
	idx, raw := cut(rest)
	index, err := parseIndex(idx)
	if name == "" || err != nil {
		return errors.New("usage: update <table> <index> <value,value,...>")
	}
	values, err := parseValues(raw)
	if err != nil {
		return err
	}
	if err := sh.ws.UpdateRow(sh.session, name, index, data.NewRow(values...)); err != nil {
		return err
	}
	okColor.Fprintf(sh.out, "Row %d updated\n", index)
	return nil
}

func (sh *Shell) deleteRow(rest string) error {
	name, idx := cut(rest)
	index, err := parseIndex(idx)
	if name == "" || err != nil {
		return errors.New("usage: delete <table> <index>")
	}
	if err := sh.ws.DeleteRow(sh.session, name, index); err != nil {
		return err
	}
	okColor.Fprintf(sh.out, "Row %d deleted\n", index)
	return nil
}

func (sh *Shell) find(rest string, all bool) error {
	name, rest := cut(rest)
	field, value := cut(rest)
	if name == "" || field == "" {
		return errors.New("usage: find <table> <field> <value>")
	}

	var matches []data.Match
	if all {
		found, err := sh.ws.SearchAll(sh.session, name, field, value)
		if err != nil {
			return err
		}
		matches = found
	} else {
		m, ok, err := sh.ws.SearchFirst(sh.session, name, field, value)
		if err != nil {
			return err
		}
		if ok {
			matches = []data.Match{m}
		}
	}

	if len(matches) == 0 {
		infoColor.Fprintln(sh.out, "No matching rows")
		return nil
	}
	fields, err := sh.ws.Fields(sh.session, name)
	if err != nil {
		return err
	}
	PrintRows(sh.out, fields, matches)
	return nil
}

func (sh *Shell) step(name string, redo bool) error {
	verb, step := "Undo", sh.ws.Undo
	if redo {
		verb, step = "Redo", sh.ws.Redo
	}
	ok, err := step(sh.session, name)
	if err != nil {
		return err
	}
	if !ok {
		infoColor.Fprintf(sh.out, "Nothing to %s\n", strings.ToLower(verb))
		return nil
	}
	okColor.Fprintf(sh.out, "%s applied\n", verb)
	return nil
}

func (sh *Shell) history(name string) error {
	undo, redo, err := sh.ws.History(sh.session, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "undo: %d  redo: %d\n", undo, redo)
	return nil
}

func (sh *Shell) rename(rest string) error {
	oldName, newName := cut(rest)
	if oldName == "" || newName == "" {
		return errors.New("usage: rename <old> <new>")
	}
	if err := sh.ws.RenameTable(sh.session, oldName, newName); err != nil {
		return err
	}
	okColor.Fprintf(sh.out, "Table %s renamed to %s\n", oldName, newName)
	return nil
}

func (sh *Shell) drop(name string) error {
	if err := sh.ws.DeleteTable(sh.session, name); err != nil {
		return err
	}
	okColor.Fprintf(sh.out, "Table %s deleted\n", name)
	return nil
}

func (sh *Shell) path(name string) error {
	p, err := sh.ws.BackingPath(sh.session, name)
	if err != nil {
		return err
	}
	fmt.Fprintln(sh.out, p)
	return nil
}

func (sh *Shell) backup(rest string) error {
	results, err := sh.ws.Backup(context.Background(), sh.session, strings.Fields(rest)...)
	if err != nil {
		return err
	}
	for _, res := range results {
		okColor.Fprintf(sh.out, "%s -> %s (%d bytes)\n", res.Source, res.Destination, res.Bytes)
	}
	return nil
}

// PrintRows renders matches as an aligned table with a leading index column
func PrintRows(w io.Writer, fields []string, matches []data.Match) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprint(tw, "#")
	for _, f := range fields {
		fmt.Fprintf(tw, "\t%s", f)
	}
	fmt.Fprintln(tw)

	fmt.Fprint(tw, "---")
	for range fields {
		fmt.Fprint(tw, "\t---")
	}
	fmt.Fprintln(tw)

	for _, m := range matches {
		fmt.Fprintf(tw, "%d", m.Index)
		for i := range fields {
			fmt.Fprintf(tw, "\t%s", m.Row.Get(i))
		}
		fmt.Fprintln(tw)
	}
	tw.Flush()

	fmt.Fprintf(w, "(%d rows)\n", len(matches))
}

// cut splits off the first whitespace-delimited word
func cut(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i+1:])
}

// parseValues reads one CSV record, so values may be quoted to hold commas
func parseValues(s string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(s))
	r.TrimLeadingSpace = true
	record, err := r.Read()
	if err == io.EOF {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("invalid values %q: %w", s, err)
	}
	return record, nil
}

func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid index %q", s)
	}
	return n, nil
}
