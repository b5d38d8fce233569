package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/jobhunter-labs/jobhunter/internal/session"
	jherrors "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/errors"
)

func sessionCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: jobhunter session list | show -id <id> | delete -id <id>")
		return ExitUsageError
	}
	action := args[0]
	switch action {
	case "list", "show", "delete":
	default:
		fmt.Fprintf(stderr, "Error: unknown session action '%s'\n", action)
		return ExitUsageError
	}

	fs := flag.NewFlagSet("session "+action, flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	id := fs.String("id", "", "Session id")
	if err := fs.Parse(args[1:]); err != nil {
		return ExitUsageError
	}
	if action != "list" && *id == "" {
		fmt.Fprintf(stderr, "Error: -id flag is required for 'session %s'\n", action)
		return ExitUsageError
	}

	settings, log, err := common.load(stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitFailure
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	repo, closeRepo, err := openRepository(ctx, settings, log)
	if err != nil {
		log.Errorf("Failed to open session repository: %v", err)
		return ExitFailure
	}
	defer closeRepo()

	switch action {
	case "list":
		err = listSessions(ctx, repo, stdout)
	case "show":
		err = showSession(ctx, repo, *id, stdout)
	case "delete":
		if err = repo.Delete(ctx, *id); err == nil {
			log.Infof("Deleted session '%s'", *id)
		}
	}
	if err != nil {
		if jherrors.IsSnapshotNotFound(err) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		} else {
			log.Errorf("Session %s failed: %v", action, err)
		}
		return ExitFailure
	}
	return ExitSuccess
}

func listSessions(ctx context.Context, repo session.Repository, w io.Writer) error {
	infos, err := repo.List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSAVED\tSIZE")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", info.ID, info.SavedAt.Local().Format(time.RFC3339), info.Size)
	}
	return tw.Flush()
}

func showSession(ctx context.Context, repo session.Repository, id string, w io.Writer) error {
	snap, err := repo.Load(ctx, id)
	if err != nil {
		return err
	}
	return session.Encode(w, snap)
}
