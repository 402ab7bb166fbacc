package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/david/propscore/internal/models"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type ListParams struct {
	Query          string
	QueryEmbedding []float32
	ZipCode        string
	PriceBand      string
	Confidence     string
	TimelineRisk   string
	PropertyType   string
	MinScore       int
	MinPrice       float64
	MaxPrice       float64
	SortBy         string // "newest", "score", "price_asc", "price_desc", or "" for relevance
	Limit          int
	Offset         int
}

type ListResult struct {
	Analyses []models.Analysis `json:"analyses"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// selectCols is the column list shared by all analysis queries.
const selectCols = `id, address, formatted_address, zip_code, property_type,
	considered_price, price_band, total_score, value_score, location_score,
	feature_score, confidence, estimated_value, monthly_rent, grm, cap_rate_pct,
	timeline_risk, like_kind_status, factors, breakdown, ai_analysis,
	exchange_analysis, created_at, updated_at`

func scanAnalysis(scan func(dest ...interface{}) error) (models.Analysis, error) {
	var a models.Analysis
	var breakdownRaw []byte

	err := scan(
		&a.ID, &a.Address, &a.FormattedAddress, &a.ZipCode, &a.PropertyType,
		&a.ConsideredPrice, &a.PriceBand, &a.TotalScore, &a.ValueScore, &a.LocationScore,
		&a.FeatureScore, &a.Confidence, &a.EstimatedValue, &a.MonthlyRent, &a.GRM, &a.CapRatePct,
		&a.TimelineRisk, &a.LikeKindStatus, &a.Factors, &breakdownRaw, &a.AIAnalysis,
		&a.ExchangeAnalysis, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return a, err
	}

	if len(breakdownRaw) > 0 {
		_ = json.Unmarshal(breakdownRaw, &a.Breakdown)
	}

	return a, nil
}

// buildListFilter translates ListParams into a WHERE clause and args. The
// next placeholder index is returned so callers can keep appending.
func buildListFilter(params ListParams) (string, []interface{}, int) {
	where := "WHERE 1=1"
	var args []interface{}
	argIdx := 1

	if params.Query != "" {
		where += fmt.Sprintf(" AND (search_vector @@ plainto_tsquery('english', $%d) OR formatted_address ILIKE '%%' || $%d || '%%')", argIdx, argIdx)
		args = append(args, params.Query)
		argIdx++
	}
	if params.ZipCode != "" {
		where += fmt.Sprintf(" AND zip_code = $%d", argIdx)
		args = append(args, params.ZipCode)
		argIdx++
	}
	if params.PriceBand != "" {
		where += fmt.Sprintf(" AND price_band = $%d", argIdx)
		args = append(args, params.PriceBand)
		argIdx++
	}
	if params.Confidence != "" {
		where += fmt.Sprintf(" AND confidence = $%d", argIdx)
		args = append(args, params.Confidence)
		argIdx++
	}
	if params.TimelineRisk != "" {
		where += fmt.Sprintf(" AND timeline_risk = $%d", argIdx)
		args = append(args, params.TimelineRisk)
		argIdx++
	}
	if params.PropertyType != "" {
		where += fmt.Sprintf(" AND property_type = $%d", argIdx)
		args = append(args, params.PropertyType)
		argIdx++
	}
	if params.MinScore > 0 {
		where += fmt.Sprintf(" AND total_score >= $%d", argIdx)
		args = append(args, params.MinScore)
		argIdx++
	}
	if params.MinPrice > 0 {
		where += fmt.Sprintf(" AND considered_price >= $%d", argIdx)
		args = append(args, params.MinPrice)
		argIdx++
	}
	if params.MaxPrice > 0 {
		where += fmt.Sprintf(" AND considered_price <= $%d", argIdx)
		args = append(args, params.MaxPrice)
		argIdx++
	}

	return where, args, argIdx
}

func (s *Store) ListAnalyses(ctx context.Context, params ListParams) (*ListResult, error) {
	where, args, argIdx := buildListFilter(params)

	var total int
	countSQL := "SELECT COUNT(*) FROM analyses " + where
	if err := s.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	selectSQL := fmt.Sprintf("SELECT %s FROM analyses %s", selectCols, where)

	switch params.SortBy {
	case "newest":
		selectSQL += " ORDER BY created_at DESC"
	case "score":
		selectSQL += " ORDER BY total_score DESC, created_at DESC"
	case "price_asc":
		selectSQL += " ORDER BY considered_price ASC, created_at DESC"
	case "price_desc":
		selectSQL += " ORDER BY considered_price DESC, created_at DESC"
	default: // relevance
		if len(params.QueryEmbedding) > 0 {
			vectorArg := argIdx
			queryArg := argIdx + 1
			args = append(args, pgvector.NewVector(params.QueryEmbedding), params.Query)
			argIdx += 2

			selectSQL += fmt.Sprintf(`
				ORDER BY
					CASE WHEN embedding IS NULL THEN 1 ELSE 0 END ASC,
					COALESCE(1 - (embedding <=> $%d), -1) DESC,
					CASE WHEN NULLIF($%d::text, '') IS NULL THEN 0 ELSE ts_rank(search_vector, plainto_tsquery('english', $%d::text)) END DESC,
					created_at DESC
			`, vectorArg, queryArg, queryArg)
		} else if params.Query != "" {
			queryArg := argIdx
			args = append(args, params.Query)
			argIdx++
			selectSQL += fmt.Sprintf(" ORDER BY ts_rank(search_vector, plainto_tsquery('english', $%d::text)) DESC, created_at DESC", queryArg)
		} else {
			selectSQL += " ORDER BY created_at DESC"
		}
	}

	selectSQL += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := s.pool.Query(ctx, selectSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var analyses []models.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		analyses = append(analyses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	if analyses == nil {
		analyses = []models.Analysis{}
	}

	return &ListResult{
		Analyses: analyses,
		Total:    total,
		Limit:    params.Limit,
		Offset:   params.Offset,
	}, nil
}

func (s *Store) GetAnalysis(ctx context.Context, id string) (*models.Analysis, error) {
	sql := fmt.Sprintf(`
		SELECT %s
		FROM analyses
		WHERE id = $1
	`, selectCols)
	row := s.pool.QueryRow(ctx, sql, id)

	a, err := scanAnalysis(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("not found: %w", err)
	}

	return &a, nil
}

// GetLatestByAddress returns the most recent analysis for a formatted
// address, if any.
func (s *Store) GetLatestByAddress(ctx context.Context, formattedAddress string) (*models.Analysis, error) {
	sql := fmt.Sprintf(`
		SELECT %s
		FROM analyses
		WHERE formatted_address = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, selectCols)
	row := s.pool.QueryRow(ctx, sql, formattedAddress)

	a, err := scanAnalysis(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("not found: %w", err)
	}

	return &a, nil
}

// SaveAnalysis inserts a new analysis row and fills in the generated ID and
// timestamps. A nil embedding leaves the vector column NULL for a later
// backfill.
func (s *Store) SaveAnalysis(ctx context.Context, a *models.Analysis, embedding []float32) error {
	breakdownJSON, err := json.Marshal(a.Breakdown)
	if err != nil {
		return fmt.Errorf("failed to encode breakdown: %w", err)
	}

	var vec interface{}
	if len(embedding) > 0 {
		vec = pgvector.NewVector(embedding)
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO analyses (
			address, formatted_address, zip_code, property_type,
			considered_price, price_band, total_score, value_score,
			location_score, feature_score, confidence, estimated_value,
			monthly_rent, grm, cap_rate_pct, timeline_risk, like_kind_status,
			factors, breakdown, ai_analysis, exchange_analysis, embedding
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22
		)
		RETURNING id, created_at, updated_at
	`,
		a.Address, a.FormattedAddress, a.ZipCode, a.PropertyType,
		a.ConsideredPrice, a.PriceBand, a.TotalScore, a.ValueScore,
		a.LocationScore, a.FeatureScore, a.Confidence, a.EstimatedValue,
		a.MonthlyRent, a.GRM, a.CapRatePct, a.TimelineRisk, a.LikeKindStatus,
		a.Factors, breakdownJSON, a.AIAnalysis, a.ExchangeAnalysis, vec,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert failed: %w", err)
	}

	return nil
}

func (s *Store) GetZipCodes(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT DISTINCT zip_code FROM analyses WHERE zip_code != '' ORDER BY zip_code")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var zips []string
	for rows.Next() {
		var z string
		if err := rows.Scan(&z); err == nil {
			zips = append(zips, z)
		}
	}
	return zips, nil
}

func (s *Store) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var total int
	s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM analyses").Scan(&total)
	stats["total"] = total

	var zips int
	s.pool.QueryRow(ctx, "SELECT COUNT(DISTINCT zip_code) FROM analyses WHERE zip_code != ''").Scan(&zips)
	stats["zip_codes"] = zips

	var avgScore float64
	s.pool.QueryRow(ctx, "SELECT COALESCE(AVG(total_score), 0) FROM analyses").Scan(&avgScore)
	stats["avg_score"] = avgScore

	confidenceCounts := map[string]int{}
	rows, err := s.pool.Query(ctx, "SELECT confidence, COUNT(*) FROM analyses GROUP BY confidence")
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var confidence string
			var count int
			if scanErr := rows.Scan(&confidence, &count); scanErr == nil {
				confidenceCounts[confidence] = count
			}
		}
	}
	stats["confidence_counts"] = confidenceCounts

	bandCounts := map[string]int{}
	bandRows, err := s.pool.Query(ctx, "SELECT price_band, COUNT(*) FROM analyses WHERE price_band != '' GROUP BY price_band")
	if err == nil {
		defer bandRows.Close()
		for bandRows.Next() {
			var band string
			var count int
			if scanErr := bandRows.Scan(&band, &count); scanErr == nil {
				bandCounts[band] = count
			}
		}
	}
	stats["price_band_counts"] = bandCounts

	return stats, nil
}

// EmbeddingCandidate is an analysis row that still needs an embedding.
type EmbeddingCandidate struct {
	ID   string
	Text string
}

// AnalysesMissingEmbeddings returns rows without a vector, pairing each ID
// with the text to embed.
func (s *Store) AnalysesMissingEmbeddings(ctx context.Context, limit int) ([]EmbeddingCandidate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, formatted_address || ' ' || property_type || ' ' || ai_analysis
		FROM analyses
		WHERE embedding IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []EmbeddingCandidate
	for rows.Next() {
		var c EmbeddingCandidate
		if err := rows.Scan(&c.ID, &c.Text); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func (s *Store) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE analyses SET embedding = $1, updated_at = NOW() WHERE id = $2
	`, pgvector.NewVector(embedding), id)
	if err != nil {
		return fmt.Errorf("failed to update embedding: %w", err)
	}
	return nil
}
