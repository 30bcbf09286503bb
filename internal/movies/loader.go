package movies

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sumannaidur/extractor/internal/shared"
)

// Required column names of a movie list.
const (
	ColumnTitle       = "Title"
	ColumnReleaseDate = "Release Date"
	ColumnLanguage    = "Language"
)

const minYear = 1900

// Day-first layouts tried in order when parsing release dates.
var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"2-1-2006",
	"02/01/2006",
	"2/1/2006",
	"02.01.2006",
	"02-01-06",
	"02/01/06",
	"2 January 2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2006",
	"Jan 2006",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006",
}

// RowError describes a row that was skipped.
type RowError struct {
	Line  int
	Title string
	Value string
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d (%s): unusable release date %q", e.Line, e.Title, e.Value)
}

// Result is the usable content of one movie list.
type Result struct {
	Movies  []shared.Movie
	Skipped []RowError
}

// ParseYear extracts a year from a day-first release date. It fails for
// unparseable values and years before 1900.
func ParseYear(raw string) (int, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, errors.New("empty release date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			if t.Year() < minYear {
				return 0, fmt.Errorf("year %d is before %d", t.Year(), minYear)
			}
			return t.Year(), nil
		}
	}
	// Spreadsheet exports sometimes render the year as a float.
	if f, err := strconv.ParseFloat(value, 64); err == nil && f == float64(int(f)) && f >= minYear && f < 10000 {
		return int(f), nil
	}
	return 0, fmt.Errorf("unrecognised release date %q", value)
}

// Load reads a movie list. language tags every movie; the file's own Language
// column must exist but its values are informational.
func Load(path, language string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open movie list: %w", err)
	}
	defer f.Close()
	return Read(f, language)
}

// Read parses a movie list from r.
func Read(r io.Reader, language string) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", shared.ErrMissingColumns)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	var missing []string
	for _, col := range []string{ColumnTitle, ColumnReleaseDate, ColumnLanguage} {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrMissingColumns, strings.Join(missing, ", "))
	}

	field := func(row []string, col string) string {
		i := index[col]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	result := &Result{}
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		title := field(row, ColumnTitle)
		if title == "" {
			continue
		}
		release := field(row, ColumnReleaseDate)
		year, err := ParseYear(release)
		if err != nil {
			result.Skipped = append(result.Skipped, RowError{Line: line, Title: title, Value: release})
			continue
		}
		result.Movies = append(result.Movies, shared.Movie{
			Title:       title,
			ReleaseDate: release,
			Language:    language,
			Year:        year,
		})
	}
	return result, nil
}
