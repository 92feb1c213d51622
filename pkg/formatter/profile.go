package formatter

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/younsl/roleaudit/internal/models"
)

// FormatProfile writes one role's authorization profile: its policy
// documents followed by the service-last-accessed report
func FormatProfile(writer io.Writer, profile *models.RoleProfile) {
	fmt.Fprintf(writer, "Role: %s\n", profile.RoleName)
	fmt.Fprintf(writer, "ARN:  %s\n", profile.RoleArn)

	fmt.Fprintf(writer, "\nInline policies (%d):\n", len(profile.InlinePolicies))
	for _, p := range profile.InlinePolicies {
		fmt.Fprintf(writer, "--- %s ---\n%s\n", p.PolicyName, p.Document)
	}

	fmt.Fprintf(writer, "\nAttached policies (%d):\n", len(profile.AttachedPolicies))
	for _, p := range profile.AttachedPolicies {
		fmt.Fprintf(writer, "--- %s (%s, version %s) ---\n%s\n", p.PolicyName, p.PolicyArn, p.VersionID, p.Document)
	}

	FormatAccessReport(writer, profile.LastAccessed)
}

// FormatAccessReport writes the last-accessed records in a table format
func FormatAccessReport(writer io.Writer, records []models.AccessRecord) {
	fmt.Fprintf(writer, "\nService last accessed report (%d services):\n", len(records))
	if len(records) == 0 {
		return
	}

	// Create tabwriter for aligned output
	w := tabwriter.NewWriter(writer, 0, 0, 3, ' ', tabwriter.TabIndent)

	// Print header
	fmt.Fprintln(w, "SERVICE\tNAMESPACE\tLAST AUTHENTICATED\tENTITIES\tTRACKED ACTIONS")

	// Print each record
	for _, record := range records {
		lastAuthStr := "Never"
		if record.LastAuthenticated != nil {
			lastAuthStr = humanize.Time(*record.LastAuthenticated)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
			record.ServiceName,
			record.ServiceNamespace,
			lastAuthStr,
			record.TotalAuthenticatedEntities,
			len(record.TrackedActions),
		)
	}

	w.Flush()

	// Count services that were actually used
	usedCount := 0
	for _, record := range records {
		if record.LastAuthenticated != nil {
			usedCount++
		}
	}

	fmt.Fprintf(writer, "\nSummary: %d of %d granted services actually used\n", usedCount, len(records))
}

// PrintJSON writes v as indented JSON for piping into other tooling
func PrintJSON(writer io.Writer, v interface{}) error {
	enc := json.NewEncoder(writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
