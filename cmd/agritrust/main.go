package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/naveenk2131/AgriTrust/internal/archive"
	"github.com/naveenk2131/AgriTrust/internal/config"
	"github.com/naveenk2131/AgriTrust/internal/database"
	"github.com/naveenk2131/AgriTrust/internal/ledgerstore"
)

var apiBase string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "agritrust: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agritrust",
		Short: "AgriTrust batch ledger CLI",
		Long: `AgriTrust CLI drives the batch registration and verification ledger: registering batches,
tracking and verifying them against a running API server, exporting ledger snapshots, and
launching the service binaries directly.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&apiBase, "api", "http://localhost:8080", "Base URL of the AgriTrust API server")
	cmd.AddCommand(
		newRegisterCmd(),
		newTrackCmd(),
		newDeliverCmd(),
		newVerifyCmd(),
		newSnapshotCmd(),
		newRunCmd(),
	)
	return cmd
}

func newRegisterCmd() *cobra.Command {
	var (
		farmer   string
		crop     string
		quantity float64
		location string
		harvest  string
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]interface{}{
				"farmerName":  farmer,
				"cropName":    crop,
				"quantity":    quantity,
				"location":    location,
				"harvestDate": harvest,
			}
			return postJSON(cmd.Context(), apiBase+"/batches", body)
		},
	}
	cmd.Flags().StringVar(&farmer, "farmer", "", "Farmer name")
	cmd.Flags().StringVar(&crop, "crop", "", "Crop name")
	cmd.Flags().Float64Var(&quantity, "quantity", 0, "Quantity in kilograms")
	cmd.Flags().StringVar(&location, "location", "", "Harvest location")
	cmd.Flags().StringVar(&harvest, "harvest-date", "", "Harvest date (YYYY-MM-DD)")
	return cmd
}

func newTrackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "track <batch-id>",
		Short: "Look up a batch by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON(cmd.Context(), fmt.Sprintf("%s/batches/%s", apiBase, args[0]))
		},
	}
}

func newDeliverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deliver <batch-id>",
		Short: "Mark a batch as delivered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := fmt.Sprintf("%s/batches/%s/transport", apiBase, args[0])
			return patchJSON(cmd.Context(), url, map[string]string{"status": "Delivered"})
		},
	}
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <batch-id>",
		Short: "Recompute and check a batch fingerprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON(cmd.Context(), fmt.Sprintf("%s/batches/%s/verify", apiBase, args[0]))
		},
	}
}

func newSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Export the full ledger to the snapshot bucket",
		Long: `Snapshot reads every record from the configured store and uploads one timestamped JSON
object to S3-compatible storage. Runs against the store directly, so it uses the same
AGRITRUST_* environment as the server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cfg.SnapshotConfigured() {
				return fmt.Errorf("snapshot storage not configured (AGRITRUST_S3_* variables)")
			}
			store, cleanup, err := openStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer cleanup()
			records, err := store.ListAll(ctx)
			if err != nil {
				return fmt.Errorf("list batches: %w", err)
			}
			archiver, err := archive.New(cfg)
			if err != nil {
				return err
			}
			if err := archiver.EnsureBucket(ctx); err != nil {
				return err
			}
			key, err := archiver.Archive(ctx, records)
			if err != nil {
				return err
			}
			fmt.Printf("archived %d batches to %s\n", len(records), key)
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run individual Go binaries directly",
	}
	cmd.AddCommand(
		newServiceRunner("server", "./cmd/server"),
		newServiceRunner("worker", "./cmd/worker"),
	)
	return cmd
}

func newServiceRunner(name, path string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("go run %s", path),
		RunE: func(cmd *cobra.Command, args []string) error {
			goArgs := append([]string{"run", path}, args...)
			execCmd := exec.CommandContext(cmd.Context(), "go", goArgs...)
			execCmd.Stdout = os.Stdout
			execCmd.Stderr = os.Stderr
			execCmd.Stdin = os.Stdin
			return execCmd.Run()
		},
	}
}

func openStore(ctx context.Context, cfg *config.Config) (ledgerstore.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return ledgerstore.NewPostgresStore(pool), pool.Close, nil
	default:
		store, err := ledgerstore.NewFileStore(cfg.DataFile)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}

func postJSON(ctx context.Context, url string, payload interface{}) error {
	return sendJSON(ctx, http.MethodPost, url, payload)
}

func patchJSON(ctx context.Context, url string, payload interface{}) error {
	return sendJSON(ctx, http.MethodPatch, url, payload)
}

func sendJSON(ctx context.Context, method, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return doRequest(req)
}

func getJSON(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return doRequest(req)
}

func doRequest(req *http.Request) error {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	// Re-indent for readability; fall back to raw output if the body is not
	// valid JSON.
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		pretty.Write(data)
	}
	fmt.Println(pretty.String())
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return nil
}
