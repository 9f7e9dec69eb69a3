package view

import (
	"encoding/json"
	"time"

	"github.com/fatih/color"
)

// ValidateResult is what a validate command reports: the findings the
// diagnostics pass produced, plus whether any of them were errors.
type ValidateResult struct {
	AssetCount int
	Warnings   []string
	Errors     []string
}

// HasErrors reports whether validation should exit non-zero.
func (r ValidateResult) HasErrors() bool { return len(r.Errors) > 0 }

// ValidateView renders a ValidateResult.
type ValidateView interface {
	Render(result ValidateResult)
}

type validateHumanView struct{ *HumanView }

func newValidateHumanView(hv *HumanView) *validateHumanView { return &validateHumanView{hv} }

func (v *validateHumanView) Render(result ValidateResult) {
	for _, w := range result.Warnings {
		v.Println(color.YellowString("Warning!"), w)
	}
	for _, e := range result.Errors {
		v.Println(color.RGB(229, 50, 50).Sprintf("Error!"), e)
	}
	if !result.HasErrors() {
		v.Println(color.RGB(50, 108, 229).Sprintf("Valid!"), "no errors found.")
	}
}

type validateJSONView struct{ *JSONView }

func newValidateJSONView(jv *JSONView) *validateJSONView { return &validateJSONView{jv} }

type validateJSONResult struct {
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Assets    int       `json:"assets"`
	Warnings  []string  `json:"warnings,omitempty"`
	Errors    []string  `json:"errors,omitempty"`
}

func (v *validateJSONView) Render(result ValidateResult) {
	out := validateJSONResult{
		Type:      "validate",
		Timestamp: time.Now(),
		Assets:    result.AssetCount,
		Warnings:  result.Warnings,
		Errors:    result.Errors,
	}
	out.Status = "success"
	if result.HasErrors() {
		out.Status = "error"
	}
	if data, err := json.Marshal(out); err == nil {
		v.Println(string(data))
	}
}

// NewValidateView picks the ValidateView matching v's concrete rendering
// mode.
func NewValidateView(v Viewer) ValidateView {
	switch vt := v.(type) {
	case *HumanView:
		return newValidateHumanView(vt)
	case *JSONView:
		return newValidateJSONView(vt)
	default:
		panic("unknown view type")
	}
}
