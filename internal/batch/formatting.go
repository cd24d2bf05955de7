package batch

import (
	"fmt"
	"strings"

	"github.com/MeKo-Tech/qrlens/internal/pipeline"
)

// formatBatchResults formats the batch results in the given format.
func formatBatchResults(r *Result, format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(r)
	case "csv":
		return pipeline.ToCSV(r.Results)
	case "", "text":
		return formatText(r), nil
	default:
		return "", fmt.Errorf("unsupported format %q", format)
	}
}

func formatJSON(r *Result) (string, error) {
	skipped := r.Skipped
	if skipped == nil {
		skipped = []Skipped{}
	}
	return pipeline.ToJSON(struct {
		Images  []*pipeline.ImageResult `json:"images"`
		Skipped []Skipped               `json:"skipped"`
		Stats   Stats                   `json:"stats"`
	}{r.Results, skipped, r.Stats()})
}

// formatText writes a heading per image followed by its decoded texts.
func formatText(r *Result) string {
	var sb strings.Builder
	for i, res := range r.Results {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "# %s\n", res.Source)
		texts := res.Texts()
		if len(texts) == 0 {
			sb.WriteString(pipeline.NoCodeDetected + "\n")
			continue
		}
		for _, t := range texts {
			sb.WriteString(t + "\n")
		}
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(&sb, "\n# %s\nskipped: %s\n", s.Path, s.Error)
	}
	return sb.String()
}
