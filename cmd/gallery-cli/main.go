package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/tendant/cloud-gallery/pkg/gallery/client"
)

const usage = `Cloud Gallery CLI

USAGE:
  gallery-cli <command> [options]

COMMANDS:
  upload <file>   Request an upload URL, upload the file and wait until it is processed
  list            List processed images, newest first
  status <id>     Show the processing status of one image

ENVIRONMENT VARIABLES:
  GALLERY_URL     Gallery API base URL (default: http://localhost:8080)
  GALLERY_TOKEN   Bearer token for uploads

  Configuration can be loaded from a .env file in the current directory.

OPTIONS:
  --limit=<n>     Maximum results (list only)
  --timeout=<d>   How long upload waits for processing (default: 30s)
  --no-wait       Return as soon as the upload finishes
  --json          Output as JSON
`

type options struct {
	limit   int
	timeout time.Duration
	noWait  bool
	json    bool
	args    []string
}

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Print(usage + "\n")
		os.Exit(1)
	}

	command := os.Args[1]
	if command == "help" || command == "--help" || command == "-h" {
		fmt.Print(usage + "\n")
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := client.New(getEnv("GALLERY_URL", "http://localhost:8080"), client.WithToken(os.Getenv("GALLERY_TOKEN")))
	opts := parseOptions(os.Args[2:])

	var err error
	switch command {
	case "upload":
		err = handleUpload(ctx, c, opts)
	case "list":
		err = handleList(ctx, c, opts)
	case "status":
		err = handleStatus(ctx, c, opts)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage + "\n")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", command, err)
	}
}

func parseOptions(args []string) options {
	opts := options{timeout: 30 * time.Second}
	for _, arg := range args {
		key, value := parseFlag(arg)
		switch key {
		case "":
			opts.args = append(opts.args, arg)
		case "json":
			opts.json = true
		case "no-wait":
			opts.noWait = true
		case "limit":
			if n, err := strconv.Atoi(value); err == nil {
				opts.limit = n
			}
		case "timeout":
			if d, err := time.ParseDuration(value); err == nil {
				opts.timeout = d
			}
		}
	}
	return opts
}

func parseFlag(arg string) (string, string) {
	if !strings.HasPrefix(arg, "--") {
		return "", ""
	}
	arg = strings.TrimPrefix(arg, "--")
	if k, v, ok := strings.Cut(arg, "="); ok {
		return k, v
	}
	return arg, "true"
}

func handleUpload(ctx context.Context, c *client.Client, opts options) error {
	if len(opts.args) != 1 {
		return fmt.Errorf("upload takes exactly one file")
	}
	path := opts.args[0]

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	contentType := mt.String()
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}

	intent, err := c.RequestUpload(ctx, contentType)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := c.Upload(ctx, intent, f); err != nil {
		return err
	}
	fmt.Printf("Uploaded %s as %s (%s)\n", filepath.Base(path), intent.ImageID, contentType)

	if opts.noWait {
		return nil
	}

	policy := client.DefaultPollPolicy()
	policy.Window = opts.timeout
	view, err := c.WaitReady(ctx, intent.ImageID, policy)
	if err != nil {
		return err
	}
	return printJSONOr(opts.json, view, func() {
		fmt.Printf("Ready: %s\n", strings.Join(view.Labels, ", "))
		if view.ThumbURL != "" {
			fmt.Printf("Thumbnail: %s\n", view.ThumbURL)
		}
	})
}

func handleList(ctx context.Context, c *client.Client, opts options) error {
	items, err := c.ListReady(ctx, opts.limit)
	if err != nil {
		return err
	}
	return printJSONOr(opts.json, items, func() {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "ID\tLABELS\tCREATED\n")
		for _, item := range items {
			fmt.Fprintf(w, "%s\t%s\t%s\n",
				item.ImageID,
				truncate(strings.Join(item.Labels, ","), 40),
				item.CreatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		w.Flush()
		fmt.Printf("\nTotal: %d\n", len(items))
	})
}

func handleStatus(ctx context.Context, c *client.Client, opts options) error {
	if len(opts.args) != 1 {
		return fmt.Errorf("status takes exactly one image id")
	}
	id, err := uuid.Parse(opts.args[0])
	if err != nil {
		return fmt.Errorf("invalid image id: %w", err)
	}
	view, err := c.GetImage(ctx, id)
	if err != nil {
		return err
	}
	return printJSONOr(opts.json, view, func() {
		fmt.Printf("Image:   %s\n", view.ImageID)
		fmt.Printf("Status:  %s\n", view.Status)
		if len(view.Labels) > 0 {
			fmt.Printf("Labels:  %s\n", strings.Join(view.Labels, ", "))
		}
		if view.FailureReason != "" {
			fmt.Printf("Reason:  %s\n", view.FailureReason)
		}
		fmt.Printf("Updated: %s\n", view.UpdatedAt.Format(time.RFC3339))
	})
}

func printJSONOr(useJSON bool, v interface{}, text func()) error {
	if !useJSON {
		text()
		return nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
