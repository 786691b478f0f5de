package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wonny/aegis/v13/screener/internal/contracts"
)

// Dir returns the report folder for a date: <base>/YYYY/MM-Month/Week_WW
func Dir(base string, asOf time.Time) string {
	_, week := asOf.ISOWeek()
	return filepath.Join(base,
		asOf.Format("2006"),
		asOf.Format("01-January"),
		fmt.Sprintf("Week_%02d", week),
	)
}

// BaseName returns the file name without extension: YYYY-MM-DD_Weekday
func BaseName(asOf time.Time) string {
	return fmt.Sprintf("%s_%s", asOf.Format(contracts.DateLayout), asOf.Weekday())
}

// Files are the paths written for one report
type Files struct {
	Markdown string `json:"markdown"`
	JSON     string `json:"json"`
}

// WriteFiles writes the markdown rendering and the JSON context
func WriteFiles(base string, rc *Context) (Files, error) {
	dir := Dir(base, rc.AsOf())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Files{}, fmt.Errorf("failed to create report dir: %w", err)
	}

	name := BaseName(rc.AsOf())
	files := Files{
		Markdown: filepath.Join(dir, name+".md"),
		JSON:     filepath.Join(dir, name+".json"),
	}

	if err := os.WriteFile(files.Markdown, []byte(RenderMarkdown(rc)), 0o644); err != nil {
		return Files{}, fmt.Errorf("failed to write markdown report: %w", err)
	}

	data, err := json.MarshalIndent(rc, "", "  ")
	if err != nil {
		return Files{}, fmt.Errorf("failed to marshal report context: %w", err)
	}
	if err := os.WriteFile(files.JSON, data, 0o644); err != nil {
		return Files{}, fmt.Errorf("failed to write report context: %w", err)
	}

	return files, nil
}

// ReadFile loads a JSON context written by WriteFiles
func ReadFile(path string) (*Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report context: %w", err)
	}
	var rc Context
	if err := json.Unmarshal(data, &rc); err != nil {
		return nil, fmt.Errorf("failed to decode report context %s: %w", path, err)
	}
	return &rc, nil
}
