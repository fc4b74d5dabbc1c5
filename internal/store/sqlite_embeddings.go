package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
)

// GetEmbedding returns the cached vector for text under model.
func (s *SQLiteStore) GetEmbedding(ctx context.Context, model, text string) ([]float32, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT vector FROM embeddings WHERE model = ? AND text = ?`, model, text)

	var blob []byte
	if err := row.Scan(&blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	vector := make([]float32, len(blob)/4)
	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, &vector); err != nil {
		return nil, false, fmt.Errorf("failed to decode vector: %w", err)
	}
	return vector, true, nil
}

func (s *SQLiteStore) PutEmbedding(ctx context.Context, model, text string, vector []float32) error {
	vecBuf := new(bytes.Buffer)
	if err := binary.Write(vecBuf, binary.LittleEndian, vector); err != nil {
		return fmt.Errorf("failed to encode vector: %w", err)
	}

	query := `INSERT INTO embeddings (model, text, vector) VALUES (?, ?, ?)
		ON CONFLICT(model, text) DO UPDATE SET vector = excluded.vector`
	_, err := s.db.ExecContext(ctx, query, model, text, vecBuf.Bytes())
	return err
}

// CountEmbeddings reports how many vectors are cached for model, or for
// all models when model is empty.
func (s *SQLiteStore) CountEmbeddings(ctx context.Context, model string) (int, error) {
	query := `SELECT COUNT(*) FROM embeddings WHERE ? = '' OR model = ?`
	var n int
	if err := s.db.QueryRowContext(ctx, query, model, model).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
