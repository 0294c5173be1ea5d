package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	gbaw "github.com/atwrap/go-bluesky-api-wrapper"
	"github.com/atwrap/go-bluesky-api-wrapper/pkg/types"
)

func main() {
	// Get credentials from environment variables
	identifier := os.Getenv("BSKY_IDENTIFIER")
	password := os.Getenv("BSKY_APP_PASSWORD")

	if identifier == "" || password == "" {
		log.Fatal("BSKY_IDENTIFIER and BSKY_APP_PASSWORD environment variables are required")
	}

	// Route structured logs to stdout; adjust the level as needed.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	config := &gbaw.Config{
		UserAgent:  "example-bot/1.0",
		Logger:     logger,
		PivotToPDS: true,
	}

	client, err := gbaw.NewClient(config)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	// Persist sessions as they are issued or refreshed.
	client.OnSessionUpdated(func(s *types.Session) {
		logger.Info("session updated", "did", s.DID, "handle", s.Handle)
	})

	ctx := context.Background()
	session, err := client.Login(ctx, identifier, password)
	if err != nil {
		log.Fatalf("Failed to log in: %v", err)
	}

	fmt.Printf("Logged in as %s (%s)\n", session.Handle, session.DID)

	// Describe the authenticated actor's repository
	repo, err := client.DescribeRepo(ctx, session.DID)
	if err != nil {
		log.Printf("Failed to describe repo: %v", err)
	} else {
		fmt.Printf("Repository for %s holds %d collections:\n", repo.Handle, len(repo.Collections))
		for _, collection := range repo.Collections {
			fmt.Printf("  - %s\n", collection)
		}
	}

	// Resolve the client for a foreign actor
	target, did, err := client.ResolveClientForIdentifier(ctx, "bsky.app")
	if err != nil {
		log.Printf("Failed to resolve identifier: %v", err)
	} else {
		fmt.Printf("bsky.app resolves to %s, served by %s\n", did, target.BaseURL())
	}

	// Refresh the session explicitly; there is no automatic refresh.
	refreshed, err := client.RefreshSession(ctx)
	if err != nil {
		log.Printf("Failed to refresh session: %v", err)
	} else {
		fmt.Printf("Session refreshed for %s\n", refreshed.Handle)
	}
}
