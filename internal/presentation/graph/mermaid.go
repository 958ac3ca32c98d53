// Package graph renders a session's iteration history as a Mermaid flowchart.
package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/quill/pkg/domain"
)

// GenerateMermaid draws one node per iteration, labelled with its score, and a
// terminal node named after the stop reason. Iterations that reached threshold are
// styled as passing; failed drafts as failed.
func GenerateMermaid(st *domain.State, threshold int) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")
	sb.WriteString("    start((\"start\"))\n")

	prev := "start"
	var passed, failed []string
	for _, rec := range st.History {
		id := fmt.Sprintf("it%d", rec.Iteration)
		label := fmt.Sprintf("#%d <br/> score %d", rec.Iteration, rec.Score)
		if n := len(rec.KeyIssues); n > 0 {
			label += fmt.Sprintf(" <br/> %d issues", n)
		}
		fmt.Fprintf(&sb, "    %s[\"%s\"]\n", id, label)
		fmt.Fprintf(&sb, "    %s --> %s\n", prev, id)
		prev = id

		switch {
		case rec.DraftFailed:
			failed = append(failed, id)
		case rec.Score >= threshold:
			passed = append(passed, id)
		}
	}

	if len(st.History) > 0 {
		last := st.History[len(st.History)-1]
		if last.Decision == domain.DecisionDone {
			reason := string(last.Reason)
			if reason == "" {
				reason = "done"
			}
			fmt.Fprintf(&sb, "    done((\"%s\"))\n", strings.ReplaceAll(reason, "\"", "'"))
			fmt.Fprintf(&sb, "    %s -- \"threshold %d\" --> done\n", prev, threshold)
		}
	}

	if len(passed)+len(failed) > 0 {
		sb.WriteString("\n    %% Outcome Styles\n")
		sb.WriteString("    classDef passed fill:#e8f5e9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffebee,stroke:#c62828,stroke-width:2px,color:#000;\n")
		for _, id := range passed {
			fmt.Fprintf(&sb, "    class %s passed;\n", id)
		}
		for _, id := range failed {
			fmt.Fprintf(&sb, "    class %s failed;\n", id)
		}
	}
	return sb.String()
}
