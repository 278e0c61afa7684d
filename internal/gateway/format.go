package gateway

import (
	"fmt"
	"strings"

	"github.com/dwizi/rescue-console/internal/rescue"
)

func caseLabel(r *rescue.Rescue) string {
	if index, ok := r.BoardIndex(); ok {
		return fmt.Sprintf("#%d", index)
	}
	return r.ID().String()
}

// summary is the one-line form used by list.
func summary(r *rescue.Rescue) string {
	var b strings.Builder
	b.WriteString(caseLabel(r))
	b.WriteString(" ")
	b.WriteString(clientName(r))
	tags := make([]string, 0, 3)
	if r.Platform() != rescue.PlatformNone {
		tags = append(tags, r.Platform().Label())
	}
	if r.CodeRed() {
		tags = append(tags, "CR")
	}
	if len(r.AssignedNames()) > 0 {
		tags = append(tags, strings.Join(r.AssignedNames(), ", "))
	}
	if len(tags) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(tags, "; "))
		b.WriteString(")")
	}
	return b.String()
}

func clientName(r *rescue.Rescue) string {
	if r.Client() == "" {
		return "<unknown client>"
	}
	return r.Client()
}

func describe(r *rescue.Rescue) []string {
	status := strings.ToUpper(r.Status().String())
	if r.CodeRed() {
		status += ", CODE RED"
	}
	system := r.System()
	if system == "" {
		system = "unknown system"
	}
	lines := []string{
		fmt.Sprintf("Case %s %s (%s) in %s, %s, language %s.", caseLabel(r), clientName(r), r.Platform().Label(), system, status, r.LangID()),
	}
	if r.IRCNickname() != "" && r.IRCNickname() != r.Client() {
		lines = append(lines, "Nickname: "+r.IRCNickname())
	}
	if r.Title() != "" {
		lines = append(lines, "Operation: "+r.Title())
	}
	if names := r.AssignedNames(); len(names) > 0 {
		lines = append(lines, "Assigned: "+strings.Join(names, ", "))
	}
	if mark := r.MarkedForDeletion(); mark.Marked {
		lines = append(lines, fmt.Sprintf("Marked for deletion by %s: %s", mark.Reporter, mark.Reason))
	}
	for i, quote := range r.Quotes() {
		lines = append(lines, fmt.Sprintf("[%d] <%s> %s", i, quote.Author, quote.Message))
	}
	return lines
}
