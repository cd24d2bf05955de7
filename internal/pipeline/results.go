package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ToJSON serializes any result value to indented JSON.
func ToJSON(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToPlainText returns the first decoded text across results, or every
// decoded text one per line when all is set. Without any decoded symbol it
// returns NoCodeDetected.
func ToPlainText(results []*ImageResult, all bool) string {
	var texts []string
	for _, r := range results {
		for _, t := range r.Texts() {
			if !all {
				return t
			}
			texts = append(texts, t)
		}
	}
	if len(texts) == 0 {
		return NoCodeDetected
	}
	return strings.Join(texts, "\n")
}

var csvHeader = []string{
	"source", "page", "index", "candidate", "ok", "text", "version",
	"ec_level", "mask", "corrected", "confidence", "error_kind", "error_stage",
}

// ToCSV writes one row per candidate.
func ToCSV(results []*ImageResult) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	for _, r := range results {
		if r == nil {
			continue
		}
		for i, c := range r.Results {
			row := []string{
				r.Source,
				strconv.Itoa(r.Page),
				strconv.Itoa(r.Index),
				strconv.Itoa(i),
				strconv.FormatBool(c.OK()),
				c.Text,
				strconv.Itoa(c.Version),
				"", "", "",
				fmt.Sprintf("%.3f", c.Confidence),
				"", "",
			}
			if c.OK() {
				row[7] = c.ECLevel.String()
				row[8] = strconv.Itoa(c.Mask)
				row[9] = strconv.Itoa(c.Corrected)
			} else {
				row[11] = c.Err.Kind.String()
				row[12] = string(c.Err.Stage)
			}
			if err := w.Write(row); err != nil {
				return "", err
			}
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}
