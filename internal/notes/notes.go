// Package notes turns the commit history since the previous release into
// markdown release notes.
//
// Commit subjects following the conventional commit format are bucketed
// into features and fixes; everything else lands under "Other", keeping
// its first message line.
package notes

import (
	"fmt"
	"strings"
	"time"

	"github.com/leodido/go-conventionalcommits"
	"github.com/leodido/go-conventionalcommits/parser"

	"github.com/opendatateam/hydra-release/internal/gitmeta"
)

// shortHashLen is the abbreviated commit hash length used in rendered notes.
const shortHashLen = 7

// Entry is a single classified commit.
type Entry struct {
	// Hash is the abbreviated commit hash.
	Hash string

	// Type is the conventional commit type, empty for non-conforming
	// messages.
	Type string

	// Scope is the conventional commit scope, when present.
	Scope string

	// Description is the parsed description, or the first message line
	// for non-conforming commits.
	Description string

	// Breaking marks commits declaring a breaking change.
	Breaking bool
}

// Notes is a classified changelog for one release.
type Notes struct {
	App      string
	Version  string
	Previous string
	Date     time.Time

	Features []Entry
	Fixes    []Entry
	Other    []Entry
}

// Build classifies commits into release notes for app@version.
// previousTag names the release the commit range starts after; empty means
// the history had no earlier release tag.
func Build(app, version, previousTag string, commits []gitmeta.Commit) *Notes {
	notes := &Notes{
		App:      app,
		Version:  version,
		Previous: previousTag,
		Date:     time.Now().UTC(),
	}

	machine := parser.NewMachine(
		conventionalcommits.WithTypes(conventionalcommits.TypesConventional),
		conventionalcommits.WithBestEffort(),
	)

	for _, commit := range commits {
		entry := classify(machine, commit)
		switch entry.Type {
		case "feat":
			notes.Features = append(notes.Features, entry)
		case "fix":
			notes.Fixes = append(notes.Fixes, entry)
		default:
			notes.Other = append(notes.Other, entry)
		}
	}

	return notes
}

// classify parses one commit message, falling back to the first line when
// the message is not a conventional commit.
func classify(machine conventionalcommits.Machine, commit gitmeta.Commit) Entry {
	entry := Entry{
		Hash:        shorten(commit.Hash),
		Description: firstLine(commit.Message),
	}

	res, _ := machine.Parse([]byte(commit.Message))
	cc, ok := res.(*conventionalcommits.ConventionalCommit)
	if !ok || !cc.Ok() {
		return entry
	}

	entry.Type = strings.ToLower(cc.Type)
	entry.Description = cc.Description
	entry.Breaking = cc.IsBreakingChange()
	if cc.Scope != nil {
		entry.Scope = *cc.Scope
	}

	return entry
}

// Empty reports whether no commits were recorded.
func (n *Notes) Empty() bool {
	return len(n.Features) == 0 && len(n.Fixes) == 0 && len(n.Other) == 0
}

// Markdown renders the notes document.
func (n *Notes) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s@%s\n\n", n.App, n.Version)
	if n.Previous != "" {
		fmt.Fprintf(&b, "Released %s. Changes since %s.\n", n.Date.Format("2006-01-02"), n.Previous)
	} else {
		fmt.Fprintf(&b, "Released %s.\n", n.Date.Format("2006-01-02"))
	}

	if n.Empty() {
		b.WriteString("\nNo changes recorded.\n")
		return b.String()
	}

	writeSection(&b, "Features", n.Features)
	writeSection(&b, "Fixes", n.Fixes)
	writeSection(&b, "Other", n.Other)

	return b.String()
}

func writeSection(b *strings.Builder, title string, entries []Entry) {
	if len(entries) == 0 {
		return
	}

	fmt.Fprintf(b, "\n## %s\n\n", title)
	for _, entry := range entries {
		b.WriteString(entry.render())
		b.WriteString("\n")
	}
}

func (e Entry) render() string {
	var b strings.Builder

	b.WriteString("- ")
	if e.Breaking {
		b.WriteString("**Breaking:** ")
	}
	if e.Scope != "" {
		b.WriteString(e.Scope)
		b.WriteString(": ")
	}
	b.WriteString(e.Description)
	if e.Hash != "" {
		fmt.Fprintf(&b, " (%s)", e.Hash)
	}

	return b.String()
}

func firstLine(message string) string {
	line, _, _ := strings.Cut(message, "\n")
	return strings.TrimSpace(line)
}

func shorten(hash string) string {
	if len(hash) > shortHashLen {
		return hash[:shortHashLen]
	}
	return hash
}
