package formatter

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/younsl/roleaudit/internal/models"
	"github.com/younsl/roleaudit/pkg/utils"
)

// FormatRolesTable writes the role discovery listing in a table format
func FormatRolesTable(writer io.Writer, roles []models.RoleSummary) {
	if len(roles) == 0 {
		fmt.Fprintln(writer, "No IAM roles found.")
		return
	}

	// Sort roles by name for consistent output
	sort.Slice(roles, func(i, j int) bool {
		return roles[i].RoleName < roles[j].RoleName
	})

	// Create tabwriter for aligned output
	w := tabwriter.NewWriter(writer, 0, 0, 3, ' ', tabwriter.TabIndent)

	// Print header
	fmt.Fprintln(w, "ROLE NAME\tROLE ID\tPATH\tAGE (DAYS)\tCREATED\tARN")

	// Print each role
	for _, role := range roles {
		createdStr := "Unknown"
		ageDays := 0
		if role.CreateDate != nil {
			createdStr = formatDate(*role.CreateDate)
			ageDays = utils.CalculateElapsedDays(*role.CreateDate)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			role.RoleName,
			role.RoleID,
			role.Path,
			ageDays,
			createdStr,
			role.ARN,
		)
	}

	w.Flush()

	fmt.Fprintf(writer, "\nSummary: %d IAM roles\n", len(roles))
}

// Helper function to format date
func formatDate(t time.Time) string {
	daysAgo := int(time.Since(t).Hours() / 24)
	if daysAgo < 1 {
		return "Today"
	}
	if daysAgo == 1 {
		return "Yesterday"
	}
	return fmt.Sprintf("%s (%d days ago)", t.Format("2006-01-02"), daysAgo)
}
