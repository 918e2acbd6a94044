package facilities

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/UnknownOlympus/asclepius/internal/models"
)

// minColumns is name, latitude, longitude. Extra columns are ignored.
const minColumns = 3

// CSVSource reads facilities from a CSV file with a header row and
// name,latitude,longitude columns.
type CSVSource struct {
	path string
	log  *slog.Logger
}

// NewCSVSource creates a source backed by the file at path. The file is read on every Load.
func NewCSVSource(path string, log *slog.Logger) *CSVSource {
	return &CSVSource{path: path, log: log}
}

// Load opens and parses the CSV file.
func (s *CSVSource) Load(ctx context.Context) ([]models.Facility, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open facilities file: %w", err)
	}
	defer file.Close()

	facilities, err := ParseCSV(ctx, file, s.log)
	if err != nil {
		return nil, fmt.Errorf("failed to load facilities from %s: %w", s.path, err)
	}

	return facilities, nil
}

// ParseCSV parses facility records from r. The first record is a header and is skipped.
// Rows with fewer than three columns or with unparsable or out-of-range coordinates are
// skipped and logged; a read error aborts the whole parse.
func ParseCSV(ctx context.Context, r io.Reader, log *slog.Logger) ([]models.Facility, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	facilities := make([]models.Facility, 0)
	skipped := 0

	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read facilities record: %w", err)
		}
		if line == 1 {
			continue
		}

		facility, err := parseRecord(record)
		if err != nil {
			skipped++
			log.DebugContext(ctx, "Skipping facility record", "line", line, "error", err)
			continue
		}

		facilities = append(facilities, facility)
	}

	if skipped > 0 {
		log.WarnContext(ctx, "Some facility records were skipped", "skipped", skipped, "loaded", len(facilities))
	}

	return facilities, nil
}

func parseRecord(record []string) (models.Facility, error) {
	if len(record) < minColumns {
		return models.Facility{}, fmt.Errorf("expected at least %d columns, got %d", minColumns, len(record))
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
	if err != nil {
		return models.Facility{}, fmt.Errorf("invalid latitude %q: %w", record[1], err)
	}

	lon, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
	if err != nil {
		return models.Facility{}, fmt.Errorf("invalid longitude %q: %w", record[2], err)
	}

	location, err := models.NewCoordinate(lat, lon)
	if err != nil {
		return models.Facility{}, err
	}

	return models.Facility{Name: strings.TrimSpace(record[0]), Location: location}, nil
}

var _ Source = (*CSVSource)(nil)
