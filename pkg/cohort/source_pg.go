package cohort

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opencohort/epigraph/pkg/logging"
)

// PostgresSource loads observations from OMOP person, condition_occurrence
// and concept tables in PostgreSQL.
type PostgresSource struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewPostgresSource connects to the database and verifies reachability.
func NewPostgresSource(ctx context.Context, databaseURL string, logger logging.Logger) (*PostgresSource, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	return &PostgresSource{
		pool:   pool,
		logger: logger.With(logging.Component("cohort.postgres")),
	}, nil
}

// Close releases the connection pool.
func (s *PostgresSource) Close() error {
	s.pool.Close()
	return nil
}

const observationQuery = `
SELECT co.person_id,
       co.condition_concept_id,
       co.condition_start_date,
       make_date(p.year_of_birth,
                 COALESCE(p.month_of_birth, 1),
                 COALESCE(p.day_of_birth, 1)) AS birthdate
FROM condition_occurrence co
JOIN person p ON p.person_id = co.person_id
WHERE co.condition_concept_id <> 0
`

const conceptQuery = `
SELECT DISTINCT c.concept_id, c.concept_name
FROM concept c
JOIN condition_occurrence co ON co.condition_concept_id = c.concept_id
`

// Load queries observations with age at event and the concept name map.
func (s *PostgresSource) Load(ctx context.Context) ([]Observation, map[uint64]string, error) {
	rows, err := s.pool.Query(ctx, observationQuery)
	if err != nil {
		return nil, nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	observations := make([]Observation, 0)
	skipped := 0
	for rows.Next() {
		var (
			personID  int64
			conceptID int64
			startDate time.Time
			birthdate time.Time
		)
		if err := rows.Scan(&personID, &conceptID, &startDate, &birthdate); err != nil {
			skipped++
			continue
		}
		if personID <= 0 || conceptID <= 0 {
			skipped++
			continue
		}
		age := startDate.Sub(birthdate).Hours() / 24.0 / daysPerYear
		observations = append(observations, Observation{
			PatientID:  uint64(personID),
			ConceptID:  uint64(conceptID),
			AgeAtEvent: age,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("scan observations: %w", err)
	}

	names, err := s.loadConcepts(ctx)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("cohort source loaded",
		logging.Count(len(observations)),
		logging.Int("skipped_rows", skipped))

	return observations, names, nil
}

func (s *PostgresSource) loadConcepts(ctx context.Context) (map[uint64]string, error) {
	rows, err := s.pool.Query(ctx, conceptQuery)
	if err != nil {
		return nil, fmt.Errorf("query concepts: %w", err)
	}
	defer rows.Close()

	names := make(map[uint64]string)
	for rows.Next() {
		var (
			conceptID int64
			name      string
		)
		if err := rows.Scan(&conceptID, &name); err != nil {
			continue
		}
		if conceptID <= 0 || name == "" {
			continue
		}
		names[uint64(conceptID)] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan concepts: %w", err)
	}
	return names, nil
}
