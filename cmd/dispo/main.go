// Command dispo reads and edits the shared availability calendar.
//
//	dispo [-server URL] list
//	dispo [-server URL] add -user NAME -color COLOR -date YYYY-MM-DD [-time HH:MM]
//	dispo [-server URL] remove -user NAME -date YYYY-MM-DD
//	dispo [-server URL] toggle -user NAME -color COLOR -date YYYY-MM-DD [-time HH:MM]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/jw6ventures/dispo/internal/client"
	"github.com/jw6ventures/dispo/internal/events"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("dispo: ")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := flag.NewFlagSet("dispo", flag.ContinueOnError)
	server := global.String("server", envOr("DISPO_SERVER", "http://localhost:8080"), "event service base URL")
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return errors.New("missing command: list, add, remove or toggle")
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	user := fs.String("user", os.Getenv("DISPO_USER"), "user name")
	color := fs.String("color", os.Getenv("DISPO_COLOR"), "user color")
	date := fs.String("date", "", "day, YYYY-MM-DD")
	at := fs.String("time", "", "time of day, HH:MM (default 12:00)")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	cache := client.New(*server)
	if err := cache.Load(ctx); err != nil {
		return err
	}

	switch cmd {
	case "list":
	case "add":
		if err := cache.Add(ctx, events.Event{Date: *date, User: events.User{Name: *user, Color: *color}, Time: *at}); err != nil {
			return err
		}
	case "remove":
		if err := cache.Remove(ctx, *date, *user); err != nil {
			return err
		}
	case "toggle":
		action, err := cache.Toggle(ctx, events.User{Name: *user, Color: *color}, *date, *at)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s for %s\n", action, *date, *user)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	return printEvents(out, cache.Events())
}

func printEvents(out io.Writer, list []events.Event) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(out, "no events")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTIME\tUSER\tCOLOR")
	for _, e := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Date, e.Time, e.User.Name, e.User.Color)
	}
	return tw.Flush()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
