// ABOUTME: Wyrdledger CLI: order-management collaborator over the offline sync core.
// ABOUTME: Mutates local collections and mirrors them to the remote store.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/stanyfernando/wyrdledger/cmd/internal/appcli"
	"github.com/stanyfernando/wyrdledger/cmd/internal/inspect"
	"github.com/stanyfernando/wyrdledger/offline"
)

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "register":
		registerCmd()
	case "login":
		loginCmd()
	case "product":
		collectionCmd(offline.CollectionProducts, productRecord)
	case "customer":
		collectionCmd(offline.CollectionCustomers, customerRecord)
	case "account":
		collectionCmd(offline.CollectionBankAccounts, bankAccountRecord)
	case "settings":
		settingsCmd()
	case "sync":
		syncCmd()
	case "restore":
		restoreCmd()
	case "reset":
		resetCmd()
	case "status":
		statusCmd()
	case "queue":
		queueCmd()
	case "inspect":
		inspectCmd()
	case "watch":
		watchCmd()
	default:
		usage()
	}
}

func usage() {
	fmt.Println(`usage: wyrdledger <command> [flags]

commands:
  register          create an account on the sync server
  login             sign in to the sync server
  product           add/list products
  customer          add/list customers
  account           add/list bank accounts
  settings          set/show the settings record
  sync              push every local collection to the remote store
  restore           pull remote data, overwriting local collections
  reset             delete all remote data
  status            show sync status
  queue             show the offline backlog
  inspect           summarize the local database without syncing
  watch             follow connectivity transitions`)
}

func mustParse(args []string, fs *flag.FlagSet) {
	if err := fs.Parse(args); err != nil {
		log.Fatal(err)
	}
}

// runApp wires the sync core, probes connectivity once, and runs fn.
func runApp(rc appcli.RuntimeConfig, fn func(ctx context.Context, app *appcli.App) error) error {
	app, err := appcli.NewApp(rc)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := context.Background()
	app.Connect(ctx)
	return fn(ctx, app)
}

func registerCmd() { authCmd("register") }
func loginCmd()    { authCmd("login") }

func authCmd(mode string) {
	fs := flag.NewFlagSet(mode, flag.ExitOnError)
	var rc appcli.RuntimeConfig
	rc.BindFlags(fs)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	mustParse(os.Args[2:], fs)

	if err := runApp(rc, func(ctx context.Context, app *appcli.App) error {
		var err error
		if mode == "register" {
			err = app.SignUp(ctx, *email, *password)
		} else {
			err = app.SignIn(ctx, *email, *password)
		}
		if err != nil {
			return err
		}
		fmt.Printf("signed in as %s\n", *email)
		return nil
	}); err != nil {
		log.Fatal(err)
	}
}

// collectionCmd handles the shared add/list shape of record collections.
func collectionCmd(collection string, build func(fs *flag.FlagSet) func() (map[string]any, error)) {
	if len(os.Args) < 3 {
		log.Fatalf("usage: wyrdledger %s add|list [flags]", os.Args[1])
	}
	switch os.Args[2] {
	case "add":
		fs := flag.NewFlagSet("add", flag.ExitOnError)
		var rc appcli.RuntimeConfig
		rc.BindFlags(fs)
		collect := build(fs)
		mustParse(os.Args[3:], fs)

		if err := runApp(rc, func(ctx context.Context, app *appcli.App) error {
			fields, err := collect()
			if err != nil {
				return err
			}
			fields["id"] = ulid.Make().String()
			fields["created_at"] = time.Now().UTC().Format(time.RFC3339)
			record, err := json.Marshal(fields)
			if err != nil {
				return err
			}
			app.Append(ctx, collection, record)
			fmt.Printf("added to %s\n", collection)
			return nil
		}); err != nil {
			log.Fatal(err)
		}
	case "list":
		fs := flag.NewFlagSet("list", flag.ExitOnError)
		var rc appcli.RuntimeConfig
		rc.BindFlags(fs)
		mustParse(os.Args[3:], fs)

		if err := runApp(rc, func(ctx context.Context, app *appcli.App) error {
			for _, rec := range app.Records(collection) {
				fmt.Println(string(rec))
			}
			return nil
		}); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatalf("usage: wyrdledger %s add|list [flags]", os.Args[1])
	}
}

func productRecord(fs *flag.FlagSet) func() (map[string]any, error) {
	name := fs.String("name", "", "product name")
	price := fs.Float64("price", 0, "unit price")
	sku := fs.String("sku", "", "stock keeping unit")
	stock := fs.Int("stock", 0, "units in stock")
	return func() (map[string]any, error) {
		if *name == "" {
			return nil, fmt.Errorf("-name required")
		}
		return map[string]any{"name": *name, "price": *price, "sku": *sku, "stock": *stock}, nil
	}
}

func customerRecord(fs *flag.FlagSet) func() (map[string]any, error) {
	name := fs.String("name", "", "customer name")
	email := fs.String("email", "", "customer email")
	phone := fs.String("phone", "", "customer phone")
	return func() (map[string]any, error) {
		if *name == "" {
			return nil, fmt.Errorf("-name required")
		}
		return map[string]any{"name": *name, "email": *email, "phone": *phone, "orders": []any{}}, nil
	}
}

func bankAccountRecord(fs *flag.FlagSet) func() (map[string]any, error) {
	bank := fs.String("bank", "", "bank name")
	number := fs.String("number", "", "account number")
	holder := fs.String("holder", "", "account holder")
	return func() (map[string]any, error) {
		if *bank == "" || *number == "" {
			return nil, fmt.Errorf("-bank and -number required")
		}
		return map[string]any{"bank": *bank, "number": *number, "holder": *holder}, nil
	}
}

// settingsCmd manages the singleton settings record.
func settingsCmd() {
	if len(os.Args) < 3 {
		log.Fatal("usage: wyrdledger settings set|show [flags]")
	}
	switch os.Args[2] {
	case "set":
		fs := flag.NewFlagSet("set", flag.ExitOnError)
		var rc appcli.RuntimeConfig
		rc.BindFlags(fs)
		raw := fs.String("json", "", "settings record as JSON")
		mustParse(os.Args[3:], fs)

		if err := runApp(rc, func(ctx context.Context, app *appcli.App) error {
			if !json.Valid([]byte(*raw)) {
				return fmt.Errorf("-json must be valid JSON")
			}
			app.Replace(ctx, offline.CollectionSettings, []json.RawMessage{json.RawMessage(*raw)})
			fmt.Println("settings saved")
			return nil
		}); err != nil {
			log.Fatal(err)
		}
	case "show":
		fs := flag.NewFlagSet("show", flag.ExitOnError)
		var rc appcli.RuntimeConfig
		rc.BindFlags(fs)
		mustParse(os.Args[3:], fs)

		if err := runApp(rc, func(ctx context.Context, app *appcli.App) error {
			for _, rec := range app.Records(offline.CollectionSettings) {
				fmt.Println(string(rec))
			}
			return nil
		}); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatal("usage: wyrdledger settings set|show [flags]")
	}
}

func syncCmd() {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	var rc appcli.RuntimeConfig
	rc.BindFlags(fs)
	mustParse(os.Args[2:], fs)

	if err := runApp(rc, func(ctx context.Context, app *appcli.App) error {
		if err := app.Engine.ProcessQueue(ctx); err != nil {
			return err
		}
		return app.Engine.Sync(ctx)
	}); err != nil {
		log.Fatal(err)
	}
}

func restoreCmd() {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	var rc appcli.RuntimeConfig
	rc.BindFlags(fs)
	mustParse(os.Args[2:], fs)

	if err := runApp(rc, func(ctx context.Context, app *appcli.App) error {
		return app.Engine.Restore(ctx)
	}); err != nil {
		log.Fatal(err)
	}
}

func resetCmd() {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	var rc appcli.RuntimeConfig
	rc.BindFlags(fs)
	yes := fs.Bool("yes", false, "confirm deleting all remote data")
	mustParse(os.Args[2:], fs)

	if !*yes {
		log.Fatal("reset deletes all remote data; re-run with -yes to confirm")
	}
	if err := runApp(rc, func(ctx context.Context, app *appcli.App) error {
		return app.Engine.ResetAllData(ctx)
	}); err != nil {
		log.Fatal(err)
	}
}

func statusCmd() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	var rc appcli.RuntimeConfig
	rc.BindFlags(fs)
	mustParse(os.Args[2:], fs)

	if err := runApp(rc, func(ctx context.Context, app *appcli.App) error {
		snap := app.Engine.Status()
		fmt.Printf("status:    %s\n", snap.State)
		fmt.Printf("connected: %v\n", snap.IsConnected)
		if !snap.LastSynced.IsZero() {
			fmt.Printf("last sync: %s\n", snap.LastSynced.Format(time.RFC3339))
		}
		fmt.Printf("pending:   %d\n", snap.PendingOperations)
		return nil
	}); err != nil {
		log.Fatal(err)
	}
}

func queueCmd() {
	fs := flag.NewFlagSet("queue", flag.ExitOnError)
	var rc appcli.RuntimeConfig
	rc.BindFlags(fs)
	mustParse(os.Args[2:], fs)

	if err := runApp(rc, func(ctx context.Context, app *appcli.App) error {
		ops, err := app.Pending()
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			fmt.Println("queue empty")
			return nil
		}
		for _, op := range ops {
			fmt.Printf("%s  %s %-14s retries=%d enqueued=%s\n",
				op.ID, op.Kind, op.Collection, op.RetryCount, op.EnqueuedAt.Format(time.RFC3339))
		}
		return nil
	}); err != nil {
		log.Fatal(err)
	}
}

// inspectCmd reads the local database directly, so it works offline and does
// not touch the sync core.
func inspectCmd() {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	var rc appcli.RuntimeConfig
	rc.BindFlags(fs)
	limit := fs.Int("limit", 50, "max backlog entries to show")
	mustParse(os.Args[2:], fs)

	dbPath, err := appcli.ResolveDBPath(rc)
	if err != nil {
		log.Fatal(err)
	}
	insp, err := inspect.Open(dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		_ = insp.Close()
	}()

	ctx := context.Background()
	summary, err := insp.Summary(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("local store: %s\n\ncollections:\n", dbPath)
	if len(summary) == 0 {
		fmt.Println("  (none)")
	}
	for _, row := range summary {
		fmt.Printf("  %-16s %4d record(s)  updated %s\n",
			row.Collection, row.Records, row.UpdatedAt.Format(time.RFC3339))
	}

	backlog, err := insp.Backlog(ctx, *limit)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("\npending operations:")
	if len(backlog) == 0 {
		fmt.Println("  (none)")
	}
	for _, e := range backlog {
		fmt.Printf("  %s  %s %-14s retries=%d enqueued=%s\n",
			e.ID, e.Kind, e.Collection, e.RetryCount, e.EnqueuedAt.Format(time.RFC3339))
	}
}

// watchCmd keeps the monitor subscription open and reports transitions until
// interrupted.
func watchCmd() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	var rc appcli.RuntimeConfig
	rc.BindFlags(fs)
	interval := fs.Duration("interval", 10*time.Second, "status report interval")
	mustParse(os.Args[2:], fs)

	app, err := appcli.NewApp(rc)
	if err != nil {
		log.Fatal(err)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.Monitor.Open()
	fmt.Println("watching connectivity; ctrl-c to stop")
	runWatch(ctx, app.Engine.Status, os.Stdout, *interval)
}

// runWatch prints one status line immediately, then one per tick, until the
// context is canceled.
func runWatch(ctx context.Context, status func() offline.Snapshot, w io.Writer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		snap := status()
		fmt.Fprintf(w, "%s  status=%s connected=%v pending=%d\n",
			time.Now().Format("15:04:05"), snap.State, snap.IsConnected, snap.PendingOperations)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
