// Command spmictl administers an SPMI tracker database from the shell.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"spmi.org/internal/audit"
	"spmi.org/internal/config"
	"spmi.org/internal/ids"
	"spmi.org/internal/kv"
	"spmi.org/internal/obs"
	"spmi.org/internal/portal"
	"spmi.org/internal/records"
	"spmi.org/internal/store"
	"spmi.org/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

const usage = `usage: spmictl [flags] <command> [args]

commands:
  migrate up|down|status|seed  manage the postgres state table
  seed                         write defaults for absent collections
  status                       show cycles and stored collections
  cycles                       list selectable cycles and their lock state
  set-cycle <cycle>            change the current cycle (any signed-in user)
  toggle <cycle>               open or lock a cycle (admin)
  summary [cycle]              print status counts for a cycle
  findings [cycle]             print NOT_ACHIEVED entries for a cycle

Results go to stdout. Log and audit lines go to stderr.`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, os.Getenv))
}

func run(args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	obs.SetOutput(stderr)

	fs := flag.NewFlagSet("spmictl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		dsn      = fs.String("dsn", getenv("SPMI_PG_DSN"), "PostgreSQL DSN for migrate")
		user     = fs.String("user", getenv("SPMI_USER"), "username for commands that sign in")
		password = fs.String("password", getenv("SPMI_PASSWORD"), "password for commands that sign in")
		prodi    = fs.String("prodi", portal.AllProdis, "prodi filter for findings")
		timeout  = fs.Duration("timeout", 30*time.Second, "overall deadline")
		dump     = fs.Bool("metrics-dump", false, "write collected metrics to stderr before exiting")
	)
	fs.Usage = func() { fmt.Fprintln(stderr, usage); fs.PrintDefaults() }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	obs.Init()
	obs.SetBuildInfo(version, commit)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = audit.WithRequestID(ctx, ids.Prefixed("cli"))

	cmd := fs.Arg(0)
	var err error
	if cmd == "migrate" {
		err = runMigrate(ctx, stdout, *dsn, fs.Arg(1))
	} else {
		var cfg config.Config
		cfg, err = config.FromEnv(getenv)
		if err == nil {
			a := &app{cfg: cfg, out: stdout, user: *user, password: *password, prodi: *prodi}
			err = a.run(ctx, cmd, fs.Args()[1:])
		}
	}
	if *dump {
		if werr := obs.WriteMetrics(stderr); werr != nil {
			fmt.Fprintf(stderr, "spmictl metrics: %v\n", werr)
		}
	}
	if err != nil {
		fmt.Fprintf(stderr, "spmictl %s: %v\n", cmd, err)
		return 1
	}
	return 0
}

func runMigrate(ctx context.Context, out io.Writer, dsn, action string) error {
	if dsn == "" {
		return errors.New("missing DSN: provide via -dsn or SPMI_PG_DSN")
	}
	s, err := pg.Open(dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer s.Close()
	mgr := s.Migrator()

	switch action {
	case "up", "":
		applied, err := mgr.Up(ctx)
		for _, name := range applied {
			fmt.Fprintln(out, "applied", name)
		}
		return err
	case "down":
		name, err := mgr.Down(ctx)
		if err == nil {
			fmt.Fprintln(out, "rolled back", name)
		}
		return err
	case "status":
		history, err := mgr.Status(ctx)
		for _, item := range history {
			fmt.Fprintln(out, item)
		}
		return err
	case "seed":
		applied, err := mgr.Seed(ctx)
		for _, name := range applied {
			fmt.Fprintln(out, "seeded", name)
		}
		return err
	}
	return fmt.Errorf("unknown migrate action %q", action)
}

type app struct {
	cfg      config.Config
	out      io.Writer
	user     string
	password string
	prodi    string
	blobs    kv.Store
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	if a.blobs == nil {
		blobs, err := store.Open(ctx, a.cfg.Store)
		if err != nil {
			return err
		}
		defer store.Close(blobs)
		a.blobs = blobs
	}
	if cmd == "seed" {
		return a.seed(ctx)
	}
	svc, err := portal.Open(ctx, a.blobs, portal.Config{
		Credentials:  a.cfg.Scheme(),
		OpenCycles:   a.cfg.OpenCycles,
		DefaultCycle: a.cfg.DefaultCycle,
	})
	if err != nil {
		return err
	}
	switch cmd {
	case "status":
		return a.status(ctx, svc)
	case "cycles":
		return a.cycles(svc)
	}

	if _, err := svc.Login(ctx, a.user, a.password); err != nil {
		return err
	}
	defer svc.Logout(ctx)
	arg := func() (string, error) {
		if len(args) > 0 {
			return args[0], nil
		}
		return "", fmt.Errorf("%s needs a cycle argument", cmd)
	}
	switch cmd {
	case "set-cycle":
		c, err := arg()
		if err != nil {
			return err
		}
		cur, err := svc.SetCurrentCycle(ctx, c)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, "current cycle", cur)
		return nil
	case "toggle":
		c, err := arg()
		if err != nil {
			return err
		}
		open, err := svc.ToggleCycle(ctx, c)
		if err != nil {
			return err
		}
		state := "locked"
		if open {
			state = "open"
		}
		fmt.Fprintf(a.out, "cycle %s %s\n", records.NormalizeCycle(c), state)
		return nil
	case "summary":
		sum, err := svc.Summary(a.cycleArg(svc, args))
		if err != nil {
			return err
		}
		return a.printJSON(sum)
	case "findings":
		findings, err := svc.Findings(a.cycleArg(svc, args), a.prodi)
		if err != nil {
			return err
		}
		return a.printJSON(findings)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func (a *app) cycleArg(svc *portal.Service, args []string) records.Cycle {
	if len(args) > 0 {
		return records.NormalizeCycle(args[0])
	}
	return svc.CurrentCycle()
}

func (a *app) seed(ctx context.Context) error {
	rs, err := records.New(a.blobs, records.WithDefaultCycle(a.cfg.DefaultCycle))
	if err != nil {
		return err
	}
	if err := rs.Load(ctx); err != nil {
		return err
	}
	written, err := rs.Bootstrap(ctx)
	for _, key := range written {
		fmt.Fprintln(a.out, "seeded", key)
	}
	if err == nil && len(written) == 0 {
		fmt.Fprintln(a.out, "nothing to seed")
	}
	return err
}

func (a *app) status(ctx context.Context, svc *portal.Service) error {
	fmt.Fprintf(a.out, "driver        %s\n", a.cfg.Store.Driver)
	fmt.Fprintf(a.out, "current cycle %s\n", svc.CurrentCycle())
	fmt.Fprintf(a.out, "open cycles   %v\n", svc.OpenCycles())
	if l, ok := a.blobs.(store.Lister); ok {
		keys, err := l.Keys(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "collections   %v\n", keys)
	}
	return nil
}

func (a *app) cycles(svc *portal.Service) error {
	for _, c := range svc.CycleOptions() {
		state := "locked"
		if svc.CycleOpen(c) {
			state = "open"
		}
		marker := " "
		if c == svc.CurrentCycle() {
			marker = "*"
		}
		fmt.Fprintf(a.out, "%s %s %s\n", marker, c, state)
	}
	return nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
