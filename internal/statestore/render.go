package statestore

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// renderDashboard produces the human-readable part of the dashboard issue
// body.
// It is only used when a new issue is created, on updates the existing
// prose is preserved and only the state block is rewritten.
func renderDashboard(doc *Document) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Dependency Update Dashboard\n\n")
	fmt.Fprintf(&b, "Repository: `%s`\n\n", doc.Repository)

	md := doc.PollingMetadata

	if md.LastPollTime != nil {
		fmt.Fprintf(&b, "Last polled: %s\n\n", md.LastPollTime.UTC().Format(time.RFC3339))
	} else {
		fmt.Fprintf(&b, "Last polled: never\n\n")
	}

	fmt.Fprintf(&b, "## Tracked Pull Requests\n\n")

	if len(md.PRStates) == 0 {
		fmt.Fprintf(&b, "No open dependency update pull requests.\n")
	} else {
		numbers := make([]int, 0, len(md.PRStates))
		for number := range md.PRStates {
			numbers = append(numbers, number)
		}
		sort.Ints(numbers)

		fmt.Fprintf(&b, "| PR | State | Checks | Conflicts |\n")
		fmt.Fprintf(&b, "|----|-------|--------|-----------|\n")

		for _, number := range numbers {
			state := md.PRStates[number]
			fmt.Fprintf(&b, "| #%d | %s | %s | %t |\n",
				number, state.State, state.CheckConclusion, state.HasConflicts,
			)
		}
	}

	fmt.Fprintf(&b, "\n## Statistics\n\n")
	fmt.Fprintf(&b, "- Polls: %d\n", md.Metrics.TotalPolls)
	fmt.Fprintf(&b, "- Pull requests found: %d\n", md.Metrics.TotalPRsFound)
	fmt.Fprintf(&b, "- Pull requests processed: %d\n", md.Metrics.TotalPRsProcessed)

	fmt.Fprintf(&b, "\n_This issue is maintained automatically, manual edits outside this text may be overwritten._\n")

	return b.String()
}
