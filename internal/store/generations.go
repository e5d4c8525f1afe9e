package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alnah/go-narrate/internal/model"
)

const (
	generationColumns = `id, url, title, script, audio_url, provider, model, voice_id,
		options, label, chunk_map, created_at, updated_at`

	insertGenerationSQL = `INSERT INTO generations
		(url, title, script, audio_url, provider, model, voice_id, options, label, chunk_map)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	getGenerationSQL = `SELECT ` + generationColumns + ` FROM generations WHERE id = $1`

	listGenerationsByURLSQL = `SELECT ` + generationColumns + ` FROM generations
		WHERE url = $1 ORDER BY created_at DESC, id DESC`

	countGenerationsByURLSQL = `SELECT count(*) FROM generations WHERE url = $1`

	updateChunkMapSQL = `UPDATE generations
		SET chunk_map = $2, audio_url = $3, script = $4, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	deleteGenerationSQL = `DELETE FROM generations WHERE id = $1`
)

// GenerationRepository stores generation records and their chunk maps.
type GenerationRepository struct {
	pool Pool
}

// NewGenerationRepository creates a GenerationRepository.
func NewGenerationRepository(pool Pool) *GenerationRepository {
	return &GenerationRepository{pool: pool}
}

// Create inserts g and sets its ID and timestamps.
func (r *GenerationRepository) Create(ctx context.Context, g *model.Generation) error {
	options, chunkMap, err := encodeGeneration(g)
	if err != nil {
		return err
	}
	row := r.pool.QueryRow(ctx, insertGenerationSQL,
		g.URL, g.Title, g.Script, g.AudioURL, g.Provider, g.Model, g.VoiceID, options, g.Label, chunkMap)
	if err := row.Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return mapError(err, "create generation")
	}
	return nil
}

// Get returns the record with id, or ErrNotFound.
func (r *GenerationRepository) Get(ctx context.Context, id int64) (*model.Generation, error) {
	g, err := scanGeneration(r.pool.QueryRow(ctx, getGenerationSQL, id))
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("get generation %d", id))
	}
	return g, nil
}

// ListByURL returns every record for url, newest first.
func (r *GenerationRepository) ListByURL(ctx context.Context, url string) ([]*model.Generation, error) {
	rows, err := r.pool.Query(ctx, listGenerationsByURLSQL, url)
	if err != nil {
		return nil, mapError(err, "list generations")
	}
	defer rows.Close()

	out := []*model.Generation{}
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, mapError(err, "scan generation")
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "list generations")
	}
	return out, nil
}

// CountByURL returns how many records exist for url.
func (r *GenerationRepository) CountByURL(ctx context.Context, url string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countGenerationsByURLSQL, url).Scan(&n); err != nil {
		return 0, mapError(err, "count generations")
	}
	return n, nil
}

// UpdateChunkMap writes g's chunk map, combined audio URL and script to
// record g.ID in one statement and refreshes g.UpdatedAt.
func (r *GenerationRepository) UpdateChunkMap(ctx context.Context, g *model.Generation) error {
	_, chunkMap, err := encodeGeneration(g)
	if err != nil {
		return err
	}
	row := r.pool.QueryRow(ctx, updateChunkMapSQL, g.ID, chunkMap, g.AudioURL, g.Script)
	if err := row.Scan(&g.UpdatedAt); err != nil {
		return mapError(err, fmt.Sprintf("update generation %d", g.ID))
	}
	return nil
}

// Delete removes record id. Returns ErrNotFound if it does not exist.
func (r *GenerationRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteGenerationSQL, id)
	if err != nil {
		return mapError(err, fmt.Sprintf("delete generation %d", id))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete generation %d: %w", id, ErrNotFound)
	}
	return nil
}

func encodeGeneration(g *model.Generation) (options, chunkMap []byte, err error) {
	if options, err = json.Marshal(g.Options); err != nil {
		return nil, nil, fmt.Errorf("failed to encode options: %w", err)
	}
	entries := g.ChunkMap
	if entries == nil {
		entries = []model.ChunkEntry{}
	}
	if chunkMap, err = json.Marshal(entries); err != nil {
		return nil, nil, fmt.Errorf("failed to encode chunk map: %w", err)
	}
	return options, chunkMap, nil
}

func scanGeneration(row pgx.Row) (*model.Generation, error) {
	var (
		g        model.Generation
		options  []byte
		chunkMap []byte
	)
	err := row.Scan(&g.ID, &g.URL, &g.Title, &g.Script, &g.AudioURL, &g.Provider, &g.Model,
		&g.VoiceID, &options, &g.Label, &chunkMap, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(options) > 0 {
		if err := json.Unmarshal(options, &g.Options); err != nil {
			return nil, fmt.Errorf("failed to decode options: %w", err)
		}
	}
	if len(chunkMap) > 0 {
		if err := json.Unmarshal(chunkMap, &g.ChunkMap); err != nil {
			return nil, fmt.Errorf("failed to decode chunk map: %w", err)
		}
	}
	return &g, nil
}
