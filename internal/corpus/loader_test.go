package corpus

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "interview-insights-go/internal/errors"
	"interview-insights-go/internal/logger"
)

const validDoc = `Interviewer: What brings you to these sessions?
Respondent: The zoning debate, mostly. Our street floods every spring.
`

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeRoster(t *testing.T, dir string) string {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	headers := []string{"Interview ID", "Date", "Location", "Participants"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		require.NoError(t, f.SetCellValue(sheet, cell, h))
	}
	row := []interface{}{"ward7-018", "2025-03-12", "Ward 7 Community Hall", 3}
	for i, v := range row {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		require.NoError(t, f.SetCellValue(sheet, cell, v))
	}
	path := filepath.Join(dir, "corpus.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestParseFilename(t *testing.T) {
	cases := []struct {
		name   string
		wantID string
		ok     bool
	}{
		{"20250312_1430_ward7-018.txt", "ward7-018", true},
		{"20250312_1430_ward7_018.txt", "ward7_018", true},
		{"ward7-018.txt", "", false},
		{"2025_1430_x.txt", "", false},
		{"20251341_1430_x.txt", "", false}, // month 13
		{"20250312_1430_.txt", "", false},
	}
	for _, c := range cases {
		id, date, ok := ParseFilename(c.name)
		assert.Equal(t, c.ok, ok, c.name)
		if c.ok {
			assert.Equal(t, c.wantID, id, c.name)
			assert.Equal(t, time.Date(2025, 3, 12, 14, 30, 0, 0, time.UTC), date, c.name)
		}
	}
}

func TestLoadWithRosterMetadata(t *testing.T) {
	dir := t.TempDir()
	roster := writeRoster(t, dir)
	path := writeDoc(t, dir, "20250312_1430_ward7-018.txt", validDoc)

	loader, err := NewLoader(dir, roster, logger.New())
	require.NoError(t, err)

	iv, err := loader.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ward7-018", iv.ID)
	assert.Equal(t, "Ward 7 Community Hall", iv.Metadata.Location)
	assert.Equal(t, 3, iv.Metadata.ParticipantCount)
	assert.Equal(t, 2025, iv.Metadata.Date.Year())
	assert.Equal(t, "20250312_1430_ward7-018.txt", iv.Metadata.SourceFile)
	assert.Len(t, iv.Turns, 2)
	assert.Equal(t, validDoc, iv.RawText)
}

func TestLoadFallbackID(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "notes-session.txt", validDoc)

	loader, err := NewLoader(dir, "", logger.New())
	require.NoError(t, err)

	iv, err := loader.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "notes-session", iv.ID)
	assert.False(t, iv.Metadata.Date.IsZero(), "should fall back to file mtime")
}

func TestLoadUnreadable(t *testing.T) {
	dir := t.TempDir()
	loader, err := NewLoader(dir, "", logger.New())
	require.NoError(t, err)

	_, err = loader.Load(filepath.Join(dir, "absent.txt"))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnreadableDocument))

	badPath := writeDoc(t, dir, "bad.txt", "Interviewer: ok\n")
	require.NoError(t, os.WriteFile(badPath, []byte{0xff, 0xfe, 0x00, 0x80}, 0o644))
	_, err = loader.Load(badPath)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnreadableDocument))
}

func TestLoadEmptySegmentation(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "20250312_1430_empty.txt", "no speakers here\n")

	loader, err := NewLoader(dir, "", logger.New())
	require.NoError(t, err)

	_, err = loader.Load(path)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrEmptyTranscript))
}

func TestDocumentsFilterAndOrder(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "20250312_1500_b.txt", validDoc)
	writeDoc(t, dir, "20250312_1400_a.txt", validDoc)
	writeDoc(t, dir, "readme.pdf", "ignored")
	writeDoc(t, dir, ".hidden.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive"), 0o755))

	loader, err := NewLoader(dir, "", logger.New())
	require.NoError(t, err)

	docs, err := loader.Documents()
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, filepath.Join(dir, "20250312_1400_a.txt"), docs[0])
	assert.Equal(t, filepath.Join(dir, "20250312_1500_b.txt"), docs[1])
}

func TestNewLoaderMissingDir(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "absent"), "", logger.New())
	assert.Error(t, err)
}

func TestNewLoaderBrokenRosterContinues(t *testing.T) {
	dir := t.TempDir()
	broken := writeDoc(t, dir, "roster.xlsx", "not a workbook")

	loader, err := NewLoader(dir, broken, logger.New())
	require.NoError(t, err)
	assert.Nil(t, loader.roster)
}

func TestLoadRoster(t *testing.T) {
	dir := t.TempDir()
	path := writeRoster(t, dir)

	entries, err := LoadRoster(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries["ward7-018"]
	assert.Equal(t, "Ward 7 Community Hall", entry.Location)
	assert.Equal(t, 3, entry.ParticipantCount)
	assert.Equal(t, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), entry.Date)
}
