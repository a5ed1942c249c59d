package excel

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/example/codecycle/pkg/models"
)

type memStore struct {
	problems map[string]*models.Problem
	fail     bool
}

func newMemStore() *memStore {
	return &memStore{problems: make(map[string]*models.Problem)}
}

func (m *memStore) UpsertProblem(_ context.Context, p *models.Problem) (bool, error) {
	if m.fail {
		return false, errors.New("db down")
	}
	_, exists := m.problems[p.Slug]
	m.problems[p.Slug] = p
	return !exists, nil
}

func writeWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", axis, &r))
	}
	path := filepath.Join(t.TempDir(), "problems.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestImportProblemsFromExcel(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"slug", "title", "difficulty", "tags", "solved"},
		{"two-sum", "Two Sum", "Easy", "Array, Hash Table", "2024-06-01"},
		{"LRU-Cache", "", "hard", "Design;Linked List", "2024-06-02T10:00:00Z"},
		{},
		{"", "No Slug", "Easy"},
		{"bad-date", "Bad Date", "Medium", "", "yesterday"},
	})
	store := newMemStore()
	store.problems["two-sum"] = &models.Problem{Slug: "two-sum"}

	cfg := DefaultImportConfig()
	cfg.FilePath = path
	res, err := ImportProblems(context.Background(), cfg, store)
	require.NoError(t, err)

	assert.Equal(t, 4, res.TotalProcessed)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 3, res.Skipped)
	require.Len(t, res.Errors, 2)
	assert.Contains(t, res.Errors[0], "Row 5")
	assert.Contains(t, res.Errors[1], "Row 6")

	two := store.problems["two-sum"]
	assert.Equal(t, models.DifficultyEasy, two.Difficulty)
	assert.Equal(t, models.Tags{"Array", "Hash Table"}, two.Tags)
	require.NotNil(t, two.SolvedAt)
	assert.Equal(t, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC), *two.SolvedAt)

	lru := store.problems["lru-cache"]
	require.NotNil(t, lru)
	assert.Equal(t, "lru-cache", lru.Title)
	assert.Equal(t, models.DifficultyHard, lru.Difficulty)
	assert.Equal(t, models.Tags{"Design", "Linked List"}, lru.Tags)
}

func TestImportProblemsWithDateCells(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"slug", "title", "difficulty", "tags", "solved"},
		{"two-sum", "Two Sum", "Easy", "Array", time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)},
		{"lru-cache", "LRU Cache", "Medium", "Design", time.Date(2024, time.March, 2, 18, 30, 0, 0, time.UTC)},
	})
	store := newMemStore()
	cfg := DefaultImportConfig()
	cfg.FilePath = path
	res, err := ImportProblems(context.Background(), cfg, store)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Created)
	assert.Empty(t, res.Errors)
	require.NotNil(t, store.problems["two-sum"].SolvedAt)
	assert.Equal(t, time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC), *store.problems["two-sum"].SolvedAt)
	require.NotNil(t, store.problems["lru-cache"].SolvedAt)
	assert.Equal(t, time.Date(2024, time.March, 2, 18, 30, 0, 0, time.UTC), *store.problems["lru-cache"].SolvedAt)
}

func TestParseSolvedAt(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
		ok   bool
	}{
		{"2024-06-15", time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC), true},
		{"2024-06-15T08:00:00+09:00", time.Date(2024, time.June, 14, 23, 0, 0, 0, time.UTC), true},
		{"45458", time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC), true},
		{"45458.5", time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC), true},
		{"0", time.Time{}, false},
		{"-3", time.Time{}, false},
		{"yesterday", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseSolvedAt(tt.raw)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestImportProblemsFromCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "problems.csv")
	content := "slug,title,difficulty,tags,solved\n" +
		"valid-anagram,Valid Anagram,Easy,\"String,Sorting\",\n" +
		"word-ladder,Word Ladder,Extreme,Graph,2024-01-05\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	store := newMemStore()
	cfg := DefaultImportConfig()
	cfg.FilePath = path
	res, err := ImportProblems(context.Background(), cfg, store)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Created)
	assert.Empty(t, res.Errors)
	assert.Nil(t, store.problems["valid-anagram"].SolvedAt)
	assert.Equal(t, models.Tags{"String", "Sorting"}, store.problems["valid-anagram"].Tags)
	assert.Equal(t, models.DifficultyUnknown, store.problems["word-ladder"].Difficulty)
}

func TestImportProblemsFailures(t *testing.T) {
	cfg := DefaultImportConfig()
	cfg.FilePath = filepath.Join(t.TempDir(), "missing.xlsx")
	_, err := ImportProblems(context.Background(), cfg, newMemStore())
	assert.Error(t, err)

	cfg.FilePath = writeWorkbook(t, [][]interface{}{{"slug"}, {"two-sum"}})
	store := newMemStore()
	store.fail = true
	_, err = ImportProblems(context.Background(), cfg, store)
	assert.Error(t, err)

	cfg.SheetName = "Nope"
	_, err = ImportProblems(context.Background(), cfg, newMemStore())
	assert.Error(t, err)
}

func TestColumnToIndex(t *testing.T) {
	assert.Equal(t, 0, columnToIndex("A"))
	assert.Equal(t, 4, columnToIndex("e"))
	assert.Equal(t, 26, columnToIndex("AA"))
	assert.Equal(t, -1, columnToIndex("1"))
}

func TestExportHistory(t *testing.T) {
	reviewed := time.Date(2024, time.June, 15, 9, 30, 0, 0, time.UTC)
	logs := []*models.ReviewLog{
		{Slug: "two-sum", Title: "Two Sum", Outcome: models.OutcomeSolved, PreviousInterval: 3, NextInterval: 6, ReviewedAt: reviewed},
		{Slug: "lru-cache", Title: "LRU Cache", Outcome: models.OutcomeFailed, PreviousInterval: 0, NextInterval: 1, ReviewedAt: reviewed.Add(-time.Hour)},
	}

	var buf bytes.Buffer
	require.NoError(t, ExportHistory(&buf, logs))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(HistorySheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Slug", rows[0][1])
	assert.Equal(t, []string{"2024-06-15 09:30:00", "two-sum", "Two Sum", "SOLVED", "3", "6"}, rows[1])
	assert.Equal(t, "FAILED", rows[2][3])
}

func TestExportHistoryEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportHistory(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(HistorySheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
