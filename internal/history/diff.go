package history

import (
	"fmt"
	"sort"

	"qservice/api/internal/report"
)

// Change describes one field that differs between two snapshots. List
// fields are summarized by their length.
type Change struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

func Diff(from, to report.Report) []Change {
	pairs := []Change{
		{"projectTitle", from.ProjectTitle, to.ProjectTitle},
		{"client", from.Client, to.Client},
		{"address", from.Address, to.Address},
		{"assignedTo", from.AssignedTo, to.AssignedTo},
		{"damageType", from.DamageType, to.DamageType},
		{"description", from.Description, to.Description},
		{"notes", from.Notes, to.Notes},
		{"cause", from.Cause, to.Cause},
		{"status", string(from.Status), string(to.Status)},
		{"date", from.Date, to.Date},
		{"dryingStarted", from.DryingStarted, to.DryingStarted},
		{"dryingEnded", from.DryingEnded, to.DryingEnded},
		{"contacts", count(len(from.Contacts)), count(len(to.Contacts))},
		{"rooms", count(len(from.Rooms)), count(len(to.Rooms))},
		{"equipment", count(len(from.Equipment)), count(len(to.Equipment))},
		{"images", count(len(from.Images)), count(len(to.Images))},
	}
	result := make([]Change, 0)
	for _, p := range pairs {
		if p.Before != p.After {
			result = append(result, p)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Field < result[j].Field
	})
	return result
}

func count(n int) string {
	return fmt.Sprintf("%d", n)
}
