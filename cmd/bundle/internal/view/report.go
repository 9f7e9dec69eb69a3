package view

import (
	"encoding/json"
	"time"

	"github.com/fatih/color"
	"github.com/rodaine/table"
)

// BundleRow is one line of a build report: a single bundle's identity,
// size, and group membership.
type BundleRow struct {
	ID          string
	DisplayName string
	Type        string
	Size        int64
	Groups      int
	Shared      bool
}

// BuildResult is everything a build command has to report, independent
// of rendering.
type BuildResult struct {
	Bundles                []BundleRow
	GroupsCreated          int
	BundlesCreated         int
	Reparented             int
	AncestorDeduped        int
	SharedBundlesExtracted int
	AsyncInternalized      int
	GroupsRemoved          int
	Declined               int
}

// BuildView renders a BuildResult.
type BuildView interface {
	Render(result BuildResult)
}

type buildHumanView struct{ *HumanView }

func newBuildHumanView(hv *HumanView) *buildHumanView { return &buildHumanView{hv} }

func (v *buildHumanView) Render(result BuildResult) {
	v.Println(color.RGB(50, 108, 229).Sprintf("Bundles"))

	headerFmt := color.New(color.FgGreen, color.Bold).SprintfFunc()
	columnFmt := color.New(color.FgYellow).SprintfFunc()

	tbl := table.New("Bundle", "Type", "Size", "Groups", "Shared")
	tbl.WithWriter(v.Writer)
	tbl.WithHeaderFormatter(headerFmt).WithFirstColumnFormatter(columnFmt)
	for _, b := range result.Bundles {
		tbl.AddRow(b.DisplayName, b.Type, b.Size, b.Groups, b.Shared)
	}
	tbl.Print()

	v.Println()
	v.Println(color.RGB(50, 108, 229).Sprintf("Summary"))
	summary := table.New("Metric", "Count")
	summary.WithWriter(v.Writer)
	summary.WithHeaderFormatter(headerFmt).WithFirstColumnFormatter(columnFmt)
	summary.AddRow("groups created", result.GroupsCreated)
	summary.AddRow("bundles created", result.BundlesCreated)
	summary.AddRow("reparented", result.Reparented)
	summary.AddRow("ancestor deduped", result.AncestorDeduped)
	summary.AddRow("shared bundles extracted", result.SharedBundlesExtracted)
	summary.AddRow("async internalized", result.AsyncInternalized)
	summary.AddRow("groups removed", result.GroupsRemoved)
	summary.AddRow("declined", result.Declined)
	summary.Print()
}

type buildJSONView struct{ *JSONView }

func newBuildJSONView(jv *JSONView) *buildJSONView { return &buildJSONView{jv} }

type buildJSONResult struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Result    BuildResult `json:"result"`
}

func (v *buildJSONView) Render(result BuildResult) {
	out := buildJSONResult{Type: "build", Timestamp: time.Now(), Result: result}
	if data, err := json.Marshal(out); err == nil {
		v.Println(string(data))
	}
}

// NewBuildView picks the BuildView matching v's concrete rendering mode.
func NewBuildView(v Viewer) BuildView {
	switch vt := v.(type) {
	case *HumanView:
		return newBuildHumanView(vt)
	case *JSONView:
		return newBuildJSONView(vt)
	default:
		panic("unknown view type")
	}
}
