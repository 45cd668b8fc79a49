package cohort

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/opencohort/epigraph/pkg/logging"
)

// CSVSource reads OMOP-style person, condition_occurrence and concept
// tables from CSV files and joins them into observations.
type CSVSource struct {
	PersonPath    string
	ConditionPath string
	ConceptPath   string

	logger logging.Logger
}

// NewCSVSource creates a CSV-backed cohort source.
func NewCSVSource(personPath, conditionPath, conceptPath string, logger logging.Logger) *CSVSource {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CSVSource{
		PersonPath:    personPath,
		ConditionPath: conditionPath,
		ConceptPath:   conceptPath,
		logger:        logger.With(logging.Component("cohort.csv")),
	}
}

const daysPerYear = 365.0

// Load reads the three tables and returns observations with age at event,
// plus the concept-ID-to-name map. Rows that fail to parse are skipped and
// counted, never fatal.
func (s *CSVSource) Load(ctx context.Context) ([]Observation, map[uint64]string, error) {
	birthdates, err := s.loadBirthdates()
	if err != nil {
		return nil, nil, fmt.Errorf("load person table: %w", err)
	}

	names, err := s.loadConcepts()
	if err != nil {
		return nil, nil, fmt.Errorf("load concept table: %w", err)
	}

	observations, skipped, err := s.loadConditions(ctx, birthdates)
	if err != nil {
		return nil, nil, fmt.Errorf("load condition table: %w", err)
	}

	s.logger.Info("cohort source loaded",
		logging.Patients(len(birthdates)),
		logging.Count(len(observations)),
		logging.Int("skipped_rows", skipped))

	return observations, names, nil
}

func (s *CSVSource) loadBirthdates() (map[uint64]time.Time, error) {
	rows, header, err := openCSV(s.PersonPath)
	if err != nil {
		return nil, err
	}
	defer rows.close()

	idCol, err := header.index("person_id")
	if err != nil {
		return nil, err
	}
	yearCol, err := header.index("year_of_birth")
	if err != nil {
		return nil, err
	}
	monthCol := header.indexOr("month_of_birth", -1)
	dayCol := header.indexOr("day_of_birth", -1)

	birthdates := make(map[uint64]time.Time)
	for {
		row, err := rows.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		id, err := strconv.ParseUint(row[idCol], 10, 64)
		if err != nil || id == 0 {
			continue
		}
		year, err := strconv.Atoi(row[yearCol])
		if err != nil {
			continue
		}
		month := intFieldOr(row, monthCol, 1)
		day := intFieldOr(row, dayCol, 1)

		birthdates[id] = time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	}
	return birthdates, nil
}

func (s *CSVSource) loadConcepts() (map[uint64]string, error) {
	rows, header, err := openCSV(s.ConceptPath)
	if err != nil {
		return nil, err
	}
	defer rows.close()

	idCol, err := header.index("concept_id")
	if err != nil {
		return nil, err
	}
	nameCol, err := header.index("concept_name")
	if err != nil {
		return nil, err
	}

	names := make(map[uint64]string)
	for {
		row, err := rows.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		id, err := strconv.ParseUint(row[idCol], 10, 64)
		if err != nil || id == 0 || row[nameCol] == "" {
			continue
		}
		names[id] = row[nameCol]
	}
	return names, nil
}

func (s *CSVSource) loadConditions(ctx context.Context, birthdates map[uint64]time.Time) ([]Observation, int, error) {
	rows, header, err := openCSV(s.ConditionPath)
	if err != nil {
		return nil, 0, err
	}
	defer rows.close()

	personCol, err := header.index("person_id")
	if err != nil {
		return nil, 0, err
	}
	conceptCol, err := header.index("condition_concept_id")
	if err != nil {
		return nil, 0, err
	}
	dateCol, err := header.index("condition_start_date")
	if err != nil {
		return nil, 0, err
	}

	observations := make([]Observation, 0)
	skipped := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, skipped, err
		}

		row, err := rows.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, skipped, err
		}

		personID, err := strconv.ParseUint(row[personCol], 10, 64)
		if err != nil {
			skipped++
			continue
		}
		conceptID, err := strconv.ParseUint(row[conceptCol], 10, 64)
		if err != nil || conceptID == 0 {
			skipped++
			continue
		}
		startDate, err := time.Parse("2006-01-02", row[dateCol])
		if err != nil {
			skipped++
			continue
		}
		birthdate, ok := birthdates[personID]
		if !ok {
			skipped++
			continue
		}

		age := startDate.Sub(birthdate).Hours() / 24.0 / daysPerYear
		observations = append(observations, Observation{
			PatientID:  personID,
			ConceptID:  conceptID,
			AgeAtEvent: age,
		})
	}

	return observations, skipped, nil
}

// csvRows wraps a csv.Reader with its backing file.
type csvRows struct {
	file   *os.File
	reader *csv.Reader
}

func (r *csvRows) next() ([]string, error) { return r.reader.Read() }
func (r *csvRows) close()                  { r.file.Close() }

// csvHeader maps lowercase column names to positions.
type csvHeader map[string]int

func (h csvHeader) index(name string) (int, error) {
	if i, ok := h[name]; ok {
		return i, nil
	}
	return 0, fmt.Errorf("missing column %q", name)
}

func (h csvHeader) indexOr(name string, fallback int) int {
	if i, ok := h[name]; ok {
		return i
	}
	return fallback
}

func openCSV(path string) (*csvRows, csvHeader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	record, err := reader.Read()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	header := make(csvHeader, len(record))
	for i, col := range record {
		header[normalizeColumn(col)] = i
	}

	return &csvRows{file: file, reader: reader}, header, nil
}

// normalizeColumn lowercases a header cell. The source exports vary in
// casing (condition_start_DATE vs condition_start_date).
func normalizeColumn(col string) string {
	out := make([]byte, len(col))
	for i := 0; i < len(col); i++ {
		c := col[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

func intFieldOr(row []string, col, fallback int) int {
	if col < 0 || col >= len(row) {
		return fallback
	}
	v, err := strconv.Atoi(row[col])
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
