package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/arthur-debert/distman/pkg/engine"
	"github.com/arthur-debert/distman/pkg/errors"
	"github.com/arthur-debert/distman/pkg/types"
)

// renderSummary prints the per-target outcome table and the aggregate
// counts.
func renderSummary(summary *types.RunSummary) {
	if len(summary.Results) == 0 {
		pterm.Info.Println("nothing to do")
		return
	}

	data := pterm.TableData{{"TARGET", "STATE", "VERSION", "MESSAGE"}}
	for _, r := range summary.Results {
		version := ""
		if r.State == types.StatePublished || r.State == types.StateUnchanged {
			version = strconv.Itoa(r.Version)
		}
		data = append(data, []string{r.Target, strings.ToUpper(string(r.State)), version, r.Message})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()

	line := fmt.Sprintf("published %d, unchanged %d, skipped %d, failed %d",
		summary.Published, summary.Unchanged, summary.Skipped, summary.Failed)
	if summary.OK() {
		pterm.Success.Println(line)
	} else {
		pterm.Error.Println(line)
	}
}

// renderStatuses prints each target's destination, stored versions,
// and which one the stable link points at.
func renderStatuses(statuses []engine.TargetStatus) {
	for _, status := range statuses {
		pterm.DefaultSection.Println(status.Target)
		pterm.Printfln("  %s -> %s", status.Source, status.Destination)

		if len(status.Entries) == 0 {
			pterm.Info.Println("  no versions stored")
			continue
		}
		for _, entry := range status.Entries {
			marker := " "
			if status.Current != nil && entry.Version == status.Current.Version {
				marker = "*"
			}
			pterm.Printfln("  %s %s", marker, entry.Name)
		}
		if status.Record != nil {
			pterm.Printfln("  linked version %d by %s at %s",
				status.Record.Version, status.Record.Author,
				status.Record.Timestamp.Format("2006-01-02 15:04:05"))
		}
	}
}

// confirmPrompt asks an interactive yes/no question.
func confirmPrompt(prompt string) (bool, error) {
	return pterm.DefaultInteractiveConfirm.
		WithDefaultValue(false).
		Show(prompt)
}

// printError renders a failure with its error code when it carries
// one.
func printError(err error) {
	if code := errors.GetErrorCode(err); code != errors.ErrUnknown {
		pterm.Error.Printfln("%s: %s", code, err.Error())
		return
	}
	pterm.Error.Println(err.Error())
}
