package render

import (
	"strconv"
	"strings"
	"time"
)

const (
	DefaultEndpoint       = "https://carbon.now.sh"
	DefaultDownloadName   = "carbon.png"
	DefaultImageExt       = "png"
	DefaultReadySelector  = ".copy-menu-container"
	DefaultExportSelector = `[data-cy="quick-export-button"]`
	DefaultTimeout        = 2 * time.Minute
	DefaultDownloadWait   = 10 * time.Second
)

// Options are the Carbon styling parameters. They are process-wide and do
// not change between requests.
type Options struct {
	Background        string
	Theme             string
	WindowTheme       string
	Width             int
	DropShadow        bool
	DropShadowOffsetY string
	DropShadowBlur    string
	WindowControls    bool
	AutoAdjustWidth   bool
	PaddingVertical   string
	PaddingHorizontal string
	LineNumbers       bool
	FirstLineNumber   int
	FontFamily        string
	FontSize          string
	LineHeight        string
	SquareImage       bool
	ExportSize        string
	Watermark         bool
}

func DefaultOptions() Options {
	return Options{
		Background:        "rgba(171, 184, 195, 1)",
		Theme:             "seti",
		WindowTheme:       "none",
		Width:             680,
		DropShadow:        true,
		DropShadowOffsetY: "20px",
		DropShadowBlur:    "68px",
		WindowControls:    true,
		AutoAdjustWidth:   false,
		PaddingVertical:   "56px",
		PaddingHorizontal: "56px",
		LineNumbers:       false,
		FirstLineNumber:   1,
		FontFamily:        "Hack",
		FontSize:          "14px",
		LineHeight:        "133%",
		SquareImage:       false,
		ExportSize:        "2x",
		Watermark:         false,
	}
}

// params returns the Carbon query parameters, without language and code.
func (o Options) params() map[string]string {
	firstLine := o.FirstLineNumber
	if firstLine <= 0 {
		firstLine = 1
	}
	out := map[string]string{
		"bg":     strings.TrimSpace(o.Background),
		"t":      strings.TrimSpace(o.Theme),
		"wt":     strings.TrimSpace(o.WindowTheme),
		"ds":     strconv.FormatBool(o.DropShadow),
		"dsyoff": strings.TrimSpace(o.DropShadowOffsetY),
		"dsblur": strings.TrimSpace(o.DropShadowBlur),
		"wc":     strconv.FormatBool(o.WindowControls),
		"wa":     strconv.FormatBool(o.AutoAdjustWidth),
		"pv":     strings.TrimSpace(o.PaddingVertical),
		"ph":     strings.TrimSpace(o.PaddingHorizontal),
		"ln":     strconv.FormatBool(o.LineNumbers),
		"fl":     strconv.Itoa(firstLine),
		"fm":     strings.TrimSpace(o.FontFamily),
		"fs":     strings.TrimSpace(o.FontSize),
		"lh":     strings.TrimSpace(o.LineHeight),
		"si":     strconv.FormatBool(o.SquareImage),
		"es":     strings.TrimSpace(o.ExportSize),
		"wm":     strconv.FormatBool(o.Watermark),
	}
	if o.Width > 0 {
		out["width"] = strconv.Itoa(o.Width)
	}
	for k, v := range out {
		if v == "" {
			delete(out, k)
		}
	}
	return out
}
