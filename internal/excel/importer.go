package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/example/codecycle/pkg/models"
)

// ProblemStore upserts catalog entries by slug
type ProblemStore interface {
	UpsertProblem(ctx context.Context, p *models.Problem) (created bool, err error)
}

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath         string // Path to the Excel or CSV file
	SlugColumn       string // Column with the problem slug
	TitleColumn      string // Column with the title
	DifficultyColumn string // Column with Easy, Medium or Hard
	TagsColumn       string // Column with tags separated by "," or ";"
	SolvedAtColumn   string // Column with the solve date
	SheetName        string // Sheet to import; the first sheet when empty
	StartRow         int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		SlugColumn:       "A",
		TitleColumn:      "B",
		DifficultyColumn: "C",
		TagsColumn:       "D",
		SolvedAtColumn:   "E",
		StartRow:         2, // By default, start from the second row (skip header)
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int      `json:"totalProcessed"`
	Created        int      `json:"created"`
	Updated        int      `json:"updated"`
	Skipped        int      `json:"skipped"`
	Errors         []string `json:"errors"`
}

// solvedAtLayouts are tried in order when parsing the solve date
var solvedAtLayouts = []string{time.RFC3339, models.DateLayout}

// ImportProblems imports catalog problems from an Excel or CSV file
func ImportProblems(ctx context.Context, config ImportConfig, store ProblemStore) (*ImportResult, error) {
	if config.StartRow < 1 {
		config.StartRow = 1
	}

	var (
		rows [][]string
		err  error
	)
	if strings.ToLower(filepath.Ext(config.FilePath)) == ".csv" {
		rows, err = readCSV(config.FilePath)
	} else {
		rows, err = readExcel(config.FilePath, config.SheetName)
	}
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Errors: make([]string, 0)}
	for i, row := range rows {
		rowNum := i + 1
		if rowNum < config.StartRow {
			continue
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if isBlank(row) {
			result.Skipped++
			continue
		}

		result.TotalProcessed++
		problem, err := parseRow(row, config)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}

		created, err := store.UpsertProblem(ctx, problem)
		if err != nil {
			return result, errors.Wrapf(err, "failed to store row %d", rowNum)
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}
	return result, nil
}

func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open Excel file")
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	// raw values keep date cells as serial numbers instead of their display format
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get rows of sheet %q", sheet)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open CSV file")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "error reading CSV")
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// parseRow maps one row onto a problem using the configured columns
func parseRow(row []string, config ImportConfig) (*models.Problem, error) {
	slug := strings.ToLower(cell(row, config.SlugColumn))
	if slug == "" {
		return nil, errors.New("slug cannot be empty")
	}
	if strings.ContainsAny(slug, " \t/") {
		return nil, errors.Errorf("invalid slug %q", slug)
	}

	title := cell(row, config.TitleColumn)
	if title == "" {
		title = slug
	}

	p := &models.Problem{
		Slug:       slug,
		Title:      title,
		Difficulty: models.ParseDifficulty(cell(row, config.DifficultyColumn)),
		Tags:       splitTags(cell(row, config.TagsColumn)),
	}

	if raw := cell(row, config.SolvedAtColumn); raw != "" {
		solved, err := parseSolvedAt(raw)
		if err != nil {
			return nil, err
		}
		p.SolvedAt = &solved
	}
	return p, nil
}

func parseSolvedAt(raw string) (time.Time, error) {
	for _, layout := range solvedAtLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	// a spreadsheet date cell read as its serial day number (1900 date system)
	if serial, err := strconv.ParseFloat(raw, 64); err == nil && serial > 0 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t.Round(time.Second).UTC(), nil
		}
	}
	return time.Time{}, errors.Errorf("invalid solved date %q", raw)
}

func splitTags(raw string) models.Tags {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' })
	tags := make(models.Tags, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			tags = append(tags, f)
		}
	}
	return tags
}

// cell returns the trimmed value of column in row, or "" when the column is unset or missing
func cell(row []string, column string) string {
	if column == "" {
		return ""
	}
	if idx := columnToIndex(column); idx >= 0 && idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Helper function to convert Excel column letter to index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		if column[i] < 'A' || column[i] > 'Z' {
			return -1
		}
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
