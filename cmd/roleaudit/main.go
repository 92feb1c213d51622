package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"github.com/younsl/roleaudit/internal/logs"
	"github.com/younsl/roleaudit/internal/version"
	"github.com/younsl/roleaudit/pkg/audit"
	awsclient "github.com/younsl/roleaudit/pkg/aws"
	"github.com/younsl/roleaudit/pkg/formatter"
)

// DefaultRegion is used when none is given. IAM is a global service; the
// region only matters for request signing.
const DefaultRegion = "us-east-1"

var (
	awsProfile  string
	region      string
	roleNames   []string
	allRoles    bool
	listOnly    bool
	output      string
	debug       bool
	showVersion bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "roleaudit",
		Short: "CLI tool to pull complete authorization profiles for IAM roles",
		Long: `roleaudit retrieves an IAM role's definition, every inline and attached
policy document at its latest version, and the service-last-accessed
report of the permissions the role has actually used.`,
		RunE: run,
	}

	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "Show version information")
	rootCmd.Flags().StringVarP(&awsProfile, "profile", "p", "", "AWS shared config profile to use")
	rootCmd.Flags().StringVar(&region, "region", DefaultRegion, "AWS region for request signing")
	rootCmd.Flags().StringSliceVarP(&roleNames, "roles", "r", nil, "IAM role names to describe (comma separated)")
	rootCmd.Flags().BoolVarP(&allRoles, "all", "a", false, "Describe every role in the account")
	rootCmd.Flags().BoolVarP(&listOnly, "list", "l", false, "List roles without describing them")
	rootCmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table or json)")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging (retries, job polls)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if showVersion {
		info := version.Get()
		fmt.Printf("roleaudit version %s (commit: %s, built: %s, %s)\n",
			info.Version, info.GitCommit, info.BuildDate, info.GoVersion)
		return nil
	}

	if output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q (expected table or json)", output)
	}

	logs.Setup(debug)

	// Ctrl-C cancels in-flight backoff and job-poll waits.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := awsclient.LoadConfig(ctx, awsProfile, region)
	if err != nil {
		return err
	}
	client := awsclient.NewClientFromConfig(cfg)

	if listOnly {
		return listRoles(ctx, client)
	}

	names := roleNames
	if allRoles {
		summaries, err := client.ListRoles(ctx)
		if err != nil {
			return fmt.Errorf("error listing IAM roles: %w", err)
		}
		names = names[:0]
		for _, s := range summaries {
			names = append(names, s.RoleName)
		}
	}
	if len(names) == 0 {
		return errors.New("no roles specified: use --roles, --all or --list")
	}

	return describeRoles(ctx, audit.NewReader(client), names)
}

// listRoles prints the role discovery listing.
func listRoles(ctx context.Context, client *awsclient.Client) error {
	var sp *spinner.Spinner
	if output == "table" {
		sp = startSpinner("Scanning IAM roles ")
	}

	roles, err := client.ListRoles(ctx)
	if sp != nil {
		sp.FinalMSG = fmt.Sprintf("✓ Found %d IAM roles\n", len(roles))
		sp.Stop()
	}
	if err != nil {
		return fmt.Errorf("error listing IAM roles: %w", err)
	}

	if output == "json" {
		return formatter.PrintJSON(os.Stdout, roles)
	}
	formatter.FormatRolesTable(os.Stdout, roles)
	return nil
}

// describeRoles builds a profile per role. A failed role is reported and
// skipped so the rest of the batch still completes; cancellation aborts the
// whole run.
func describeRoles(ctx context.Context, reader *audit.Reader, names []string) error {
	scanStartTime := time.Now()
	described := 0

	for _, name := range names {
		var sp *spinner.Spinner
		if output == "table" {
			sp = startSpinner(fmt.Sprintf("Describing role %s ", name))
		}

		profile, err := reader.DescribeRole(ctx, name)
		if sp != nil {
			sp.Stop()
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, audit.ErrAnalysisJobFailed) {
				fmt.Printf("Warning: Skipping role %s: %v\n", name, err)
				continue
			}
			fmt.Printf("Warning: Error describing role %s: %v\n", name, err)
			continue
		}

		if output == "json" {
			if err := formatter.PrintJSON(os.Stdout, profile); err != nil {
				return err
			}
		} else {
			formatter.FormatProfile(os.Stdout, profile)
			fmt.Println()
		}
		described++
	}

	if output == "table" {
		fmt.Printf("✓ [%d/%d role profiles built] Completed in %.2f seconds\n",
			described, len(names), time.Since(scanStartTime).Seconds())
	}
	return nil
}

// startSpinner creates and starts a progress spinner with the given prefix
func startSpinner(prefix string) *spinner.Spinner {
	sp := spinner.New(spinner.CharSets[9], 100*time.Millisecond)
	sp.Prefix = prefix
	sp.Suffix = " (IAM is a global service)"
	sp.Start()
	return sp
}
