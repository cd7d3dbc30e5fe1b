// Package vmitractl implements the offline admin commands for a V-Mitra
// business database.
package vmitractl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	platformcmd "github.com/vmitra/vmitra/internal/platform/cmd"
	"github.com/vmitra/vmitra/internal/platform/config"
	"github.com/vmitra/vmitra/internal/platform/logging"
	businessapp "github.com/vmitra/vmitra/internal/services/business/app"
	"github.com/vmitra/vmitra/internal/services/business/catalog"
	"github.com/vmitra/vmitra/internal/services/business/inventory"
	businesssqlite "github.com/vmitra/vmitra/internal/services/business/storage/sqlite"
	"go.uber.org/zap"
)

// DateLayout is the --before format for prune.
const DateLayout = "2006-01-02"

// Config holds env defaults shared by every command.
type Config struct {
	DBPath            string `env:"VMITRA_BUSINESS_DB_PATH"    envDefault:"data/business.db"`
	Timezone          string `env:"VMITRA_TIMEZONE"            envDefault:"Asia/Kolkata"`
	LowStockThreshold int    `env:"VMITRA_LOW_STOCK_THRESHOLD" envDefault:"10"`
}

type rootOptions struct {
	cfg     Config
	verbose bool
}

// NewRootCommand builds the vmitractl command tree with env defaults read
// through lookup.
func NewRootCommand(lookup config.EnvLookup) (*cobra.Command, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	opts := &rootOptions{}
	if err := platformcmd.ParseConfig(&opts.cfg, lookup); err != nil {
		return nil, err
	}

	root := &cobra.Command{
		Use:           "vmitractl",
		Short:         "Administer a V-Mitra business database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.cfg.DBPath, "db", opts.cfg.DBPath, "Path to the business SQLite database")
	root.PersistentFlags().StringVar(&opts.cfg.Timezone, "timezone", opts.cfg.Timezone, "Shop timezone for daily stats and prune dates")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log service activity to stderr")

	root.AddCommand(
		newSeedCommand(opts),
		newInventoryCommand(opts),
		newLowStockCommand(opts),
		newStatsCommand(opts),
		newPruneCommand(opts),
	)
	return root, nil
}

// withService opens the database, runs fn, and closes the store.
func (o *rootOptions) withService(cmd *cobra.Command, fn func(context.Context, *businessapp.Service) error) error {
	location, err := o.location()
	if err != nil {
		return err
	}
	logger := zap.NewNop()
	if o.verbose {
		if logger, err = logging.New("debug", logging.FormatConsole); err != nil {
			return err
		}
	}
	defer func() {
		_ = logger.Sync()
	}()

	if dir := filepath.Dir(o.cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := businesssqlite.Open(o.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open business database %s: %w", o.cfg.DBPath, err)
	}
	defer store.Close()

	svc, err := businessapp.NewService(store, businessapp.Config{
		Location:          location,
		LowStockThreshold: o.cfg.LowStockThreshold,
		Logger:            logger,
	})
	if err != nil {
		return err
	}
	return fn(cmd.Context(), svc)
}

func (o *rootOptions) location() (*time.Location, error) {
	location, err := time.LoadLocation(o.cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", o.cfg.Timezone, err)
	}
	return location, nil
}

func newSeedCommand(opts *rootOptions) *cobra.Command {
	var catalogPath string
	var replace bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a YAML catalog into the inventory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := loadCatalog(catalogPath)
			if err != nil {
				return err
			}
			return opts.withService(cmd, func(ctx context.Context, svc *businessapp.Service) error {
				result, err := svc.Seed(ctx, cat, replace)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %d, updated %d, removed %d\n", result.Created, result.Updated, result.Removed)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "YAML catalog file (default: the built-in catalog)")
	cmd.Flags().BoolVar(&replace, "replace", false, "Delete items missing from the catalog")
	return cmd
}

func loadCatalog(path string) (catalog.Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}

func newInventoryCommand(opts *rootOptions) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Print the inventory table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withService(cmd, func(ctx context.Context, svc *businessapp.Service) error {
				items, err := svc.ListInventory(ctx, query)
				if err != nil {
					return err
				}
				return printItems(cmd, items)
			})
		},
	}
	cmd.Flags().StringVar(&query, "q", "", "Filter by name or category")
	return cmd
}

func newLowStockCommand(opts *rootOptions) *cobra.Command {
	var threshold int
	cmd := &cobra.Command{
		Use:   "low-stock",
		Short: "List items below the stock threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withService(cmd, func(ctx context.Context, svc *businessapp.Service) error {
				limit := threshold
				if limit <= 0 {
					limit = svc.LowStockThreshold()
				}
				items, err := svc.LowStock(ctx, limit)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "no items below %d\n", limit)
					return nil
				}
				return printItems(cmd, items)
			})
		},
	}
	cmd.Flags().IntVar(&threshold, "threshold", 0, "Stock threshold (default: VMITRA_LOW_STOCK_THRESHOLD)")
	return cmd
}

func printItems(cmd *cobra.Command, items []inventory.Item) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tSTOCK\tUNIT\tPRICE\tCOST")
	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			item.ID, item.Name, item.Category, item.Stock, item.Unit, item.Price, item.CostPrice)
	}
	return tw.Flush()
}

func newStatsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print today's sales, profit, and low stock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withService(cmd, func(ctx context.Context, svc *businessapp.Service) error {
				stats, err := svc.Stats(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "sales:        %s\n", stats.TodaySales)
				fmt.Fprintf(out, "profit:       %s\n", stats.TodayProfit)
				fmt.Fprintf(out, "transactions: %d\n", stats.TransactionCount)
				fmt.Fprintf(out, "low stock:    %d", stats.LowStockCount)
				if len(stats.LowStockItems) > 0 {
					fmt.Fprintf(out, " (%s)", strings.Join(stats.LowStockItems, ", "))
				}
				fmt.Fprintln(out)
				return nil
			})
		},
	}
}

func newPruneCommand(opts *rootOptions) *cobra.Command {
	var before string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete chat sessions and stock adjustments before a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			location, err := opts.location()
			if err != nil {
				return err
			}
			cutoff, err := time.ParseInLocation(DateLayout, strings.TrimSpace(before), location)
			if err != nil {
				return fmt.Errorf("--before must be %s: %w", DateLayout, err)
			}
			return opts.withService(cmd, func(ctx context.Context, svc *businessapp.Service) error {
				counts, err := svc.Prune(ctx, cutoff.UTC(), dryRun)
				if err != nil {
					return err
				}
				verb := "deleted"
				if dryRun {
					verb = "would delete"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d chat sessions, %d stock adjustments before %s\n",
					verb, counts.ChatSessions, counts.Adjustments, cutoff.Format(DateLayout))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&before, "before", "", "Cutoff date (YYYY-MM-DD, shop timezone)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report counts without deleting")
	_ = cmd.MarkFlagRequired("before")
	return cmd
}
