package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"microstatus/internal/progress"
)

const datasetColumns = "id, name, owner, project, rel_path, modality, imaging_phase, processing_phase, paused_from, pause_reason, imaging_stall_since, processing_stall_since, job_ref, tier, artifact_path, channels, layers, units_per_layer, units_total, composites_expected, layers_checked, retain_intermediates, skip_processing, analysis_requested, analysis_triggered_at, delete_405, created_at, updated_at"

// Create inserts a new dataset and assigns its ID.
func (s *Store) Create(ctx context.Context, d *Dataset) error {
	if d == nil {
		return errors.New("create dataset: nil dataset")
	}
	if strings.TrimSpace(d.RelPath) == "" {
		return errors.New("create dataset: rel_path is required")
	}
	if d.ImagingPhase == "" {
		d.ImagingPhase = ImagingInProgress
	}
	if d.ProcessingPhase == "" {
		d.ProcessingPhase = ProcessingNotStarted
	}
	if d.Tier == "" {
		d.Tier = TierFast
	}
	now := s.now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO datasets (name, owner, project, rel_path, modality, imaging_phase, processing_phase, paused_from, pause_reason, imaging_stall_since, processing_stall_since, job_ref, tier, artifact_path, channels, layers, units_per_layer, units_total, composites_expected, layers_checked, retain_intermediates, skip_processing, analysis_requested, analysis_triggered_at, delete_405, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.Name, d.Owner, d.Project, d.RelPath, string(d.Modality),
			string(d.ImagingPhase), string(d.ProcessingPhase),
			nullableString(string(d.PausedFrom)), nullableString(d.PauseReason),
			nullableTime(d.ImagingStallSince), nullableTime(d.ProcessingStallSince),
			nullableString(d.JobRef), string(d.Tier), nullableString(d.ArtifactPath),
			d.Channels, d.Layers, d.UnitsPerLayer, d.UnitsTotal, d.CompositesExpected, d.LayersChecked,
			boolToInt(d.RetainIntermediates), boolToInt(d.SkipProcessing), boolToInt(d.AnalysisRequested),
			nullableTime(d.AnalysisTriggeredAt), boolToInt(d.Delete405),
			formatTime(d.CreatedAt), formatTime(d.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert dataset: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("dataset id: %w", err)
		}
		d.ID = id
		return writeFingerprints(ctx, tx, d, now)
	})
}

// Save persists every field of d and replaces its fingerprints in one
// transaction.
func (s *Store) Save(ctx context.Context, d *Dataset) error {
	if d == nil || d.ID == 0 {
		return errors.New("save dataset: missing id")
	}
	now := s.now().UTC()
	d.UpdatedAt = now

	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE datasets SET name = ?, owner = ?, project = ?, rel_path = ?, modality = ?, imaging_phase = ?, processing_phase = ?, paused_from = ?, pause_reason = ?, imaging_stall_since = ?, processing_stall_since = ?, job_ref = ?, tier = ?, artifact_path = ?, channels = ?, layers = ?, units_per_layer = ?, units_total = ?, composites_expected = ?, layers_checked = ?, retain_intermediates = ?, skip_processing = ?, analysis_requested = ?, analysis_triggered_at = ?, delete_405 = ?, updated_at = ?
			WHERE id = ?`,
			d.Name, d.Owner, d.Project, d.RelPath, string(d.Modality),
			string(d.ImagingPhase), string(d.ProcessingPhase),
			nullableString(string(d.PausedFrom)), nullableString(d.PauseReason),
			nullableTime(d.ImagingStallSince), nullableTime(d.ProcessingStallSince),
			nullableString(d.JobRef), string(d.Tier), nullableString(d.ArtifactPath),
			d.Channels, d.Layers, d.UnitsPerLayer, d.UnitsTotal, d.CompositesExpected, d.LayersChecked,
			boolToInt(d.RetainIntermediates), boolToInt(d.SkipProcessing), boolToInt(d.AnalysisRequested),
			nullableTime(d.AnalysisTriggeredAt), boolToInt(d.Delete405),
			formatTime(d.UpdatedAt),
			d.ID,
		)
		if err != nil {
			return fmt.Errorf("update dataset: %w", err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return fmt.Errorf("update dataset %d: %w", d.ID, sql.ErrNoRows)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM fingerprints WHERE dataset_id = ?", d.ID); err != nil {
			return fmt.Errorf("clear fingerprints: %w", err)
		}
		return writeFingerprints(ctx, tx, d, now)
	})
}

func writeFingerprints(ctx context.Context, tx *sql.Tx, d *Dataset, now time.Time) error {
	for stage, fp := range d.Fingerprints {
		payload, err := json.Marshal(fp)
		if err != nil {
			return fmt.Errorf("encode fingerprint %s: %w", stage, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO fingerprints (dataset_id, stage, snapshot, updated_at) VALUES (?, ?, ?, ?)",
			d.ID, stage, string(payload), formatTime(now),
		); err != nil {
			return fmt.Errorf("insert fingerprint %s: %w", stage, err)
		}
	}
	return nil
}

// Get returns the dataset with id, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, id int64) (*Dataset, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+datasetColumns+" FROM datasets WHERE id = ?", id)
	d, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get dataset %d: %w", id, err)
	}
	if err := s.loadFingerprints(ctx, []*Dataset{d}); err != nil {
		return nil, err
	}
	return d, nil
}

// FindByRelPath returns the dataset discovered at rel, or nil.
func (s *Store) FindByRelPath(ctx context.Context, rel string) (*Dataset, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+datasetColumns+" FROM datasets WHERE rel_path = ?", rel)
	d, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find dataset %q: %w", rel, err)
	}
	if err := s.loadFingerprints(ctx, []*Dataset{d}); err != nil {
		return nil, err
	}
	return d, nil
}

// KnownRelPaths returns the set of discovered relative paths.
func (s *Store) KnownRelPaths(ctx context.Context) (map[string]struct{}, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT rel_path FROM datasets")
	if err != nil {
		return nil, fmt.Errorf("list rel paths: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var rel string
		if err := rows.Scan(&rel); err != nil {
			return nil, fmt.Errorf("scan rel path: %w", err)
		}
		out[rel] = struct{}{}
	}
	return out, rows.Err()
}

// List returns datasets matching filter ordered by id.
func (s *Store) List(ctx context.Context, filter Filter) ([]*Dataset, error) {
	ctx = ensureContext(ctx)
	var (
		clauses []string
		args    []any
	)
	if len(filter.ImagingPhases) > 0 {
		clauses = append(clauses, "imaging_phase IN ("+makePlaceholders(len(filter.ImagingPhases))+")")
		for _, p := range filter.ImagingPhases {
			args = append(args, string(p))
		}
	}
	if len(filter.ProcessingPhases) > 0 {
		clauses = append(clauses, "processing_phase IN ("+makePlaceholders(len(filter.ProcessingPhases))+")")
		for _, p := range filter.ProcessingPhases {
			args = append(args, string(p))
		}
	}
	if filter.Open {
		// A requested hand-off that has not been written keeps a finished
		// dataset open so the request is retried.
		clauses = append(clauses, "(imaging_phase != ? OR processing_phase != ? OR (analysis_requested = 1 AND analysis_triggered_at IS NULL))")
		args = append(args, string(ImagingFinished), string(ProcessingFinished))
	}
	query := "SELECT " + datasetColumns + " FROM datasets"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	var out []*Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	rows.Close()

	if err := s.loadFingerprints(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// PhaseCounts tallies datasets per processing phase.
func (s *Store) PhaseCounts(ctx context.Context) (map[ProcessingPhase]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT processing_phase, COUNT(*) FROM datasets GROUP BY processing_phase")
	if err != nil {
		return nil, fmt.Errorf("phase counts: %w", err)
	}
	defer rows.Close()
	out := make(map[ProcessingPhase]int)
	for rows.Next() {
		var (
			phase string
			count int
		)
		if err := rows.Scan(&phase, &count); err != nil {
			return nil, fmt.Errorf("scan phase count: %w", err)
		}
		out[ProcessingPhase(phase)] = count
	}
	return out, rows.Err()
}

func (s *Store) loadFingerprints(ctx context.Context, datasets []*Dataset) error {
	if len(datasets) == 0 {
		return nil
	}
	byID := make(map[int64]*Dataset, len(datasets))
	args := make([]any, 0, len(datasets))
	for _, d := range datasets {
		byID[d.ID] = d
		args = append(args, d.ID)
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT dataset_id, stage, snapshot FROM fingerprints WHERE dataset_id IN ("+makePlaceholders(len(args))+")",
		args...,
	)
	if err != nil {
		return fmt.Errorf("load fingerprints: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id       int64
			stage    string
			snapshot string
		)
		if err := rows.Scan(&id, &stage, &snapshot); err != nil {
			return fmt.Errorf("scan fingerprint: %w", err)
		}
		var fp progress.Fingerprint
		if err := json.Unmarshal([]byte(snapshot), &fp); err != nil {
			return fmt.Errorf("decode fingerprint %s for dataset %d: %w", stage, id, err)
		}
		if d := byID[id]; d != nil {
			d.SetFingerprint(stage, fp)
		}
	}
	return rows.Err()
}

func scanDataset(scanner interface{ Scan(dest ...any) error }) (*Dataset, error) {
	var (
		d                   Dataset
		modality            string
		imaging             string
		processing          string
		pausedFrom          sql.NullString
		pauseReason         sql.NullString
		imagingStallRaw     sql.NullString
		processingStallRaw  sql.NullString
		jobRef              sql.NullString
		tier                string
		artifactPath        sql.NullString
		retain              int
		skip                int
		analysisRequested   int
		analysisTriggeredAt sql.NullString
		delete405           int
		createdRaw          string
		updatedRaw          string
	)
	if err := scanner.Scan(
		&d.ID, &d.Name, &d.Owner, &d.Project, &d.RelPath, &modality,
		&imaging, &processing, &pausedFrom, &pauseReason,
		&imagingStallRaw, &processingStallRaw, &jobRef, &tier, &artifactPath,
		&d.Channels, &d.Layers, &d.UnitsPerLayer, &d.UnitsTotal, &d.CompositesExpected, &d.LayersChecked,
		&retain, &skip, &analysisRequested, &analysisTriggeredAt, &delete405,
		&createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}
	d.Modality = Modality(modality)
	d.ImagingPhase = ImagingPhase(imaging)
	d.ProcessingPhase = ProcessingPhase(processing)
	d.PausedFrom = ProcessingPhase(pausedFrom.String)
	d.PauseReason = pauseReason.String
	d.ImagingStallSince = parseNullableTime(imagingStallRaw)
	d.ProcessingStallSince = parseNullableTime(processingStallRaw)
	d.JobRef = jobRef.String
	d.Tier = Tier(tier)
	d.ArtifactPath = artifactPath.String
	d.RetainIntermediates = retain != 0
	d.SkipProcessing = skip != 0
	d.AnalysisRequested = analysisRequested != 0
	d.AnalysisTriggeredAt = parseNullableTime(analysisTriggeredAt)
	d.Delete405 = delete405 != 0
	if created, err := parseTimeString(createdRaw); err == nil {
		d.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		d.UpdatedAt = updated
	}
	return &d, nil
}
