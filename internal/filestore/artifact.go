package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Vocabulary is the TF-IDF vocabulary of one model version; term i is
// vector component i.
type Vocabulary struct {
	VersionID int64     `json:"version_id"`
	Terms     []string  `json:"terms"`
	CreatedAt time.Time `json:"created_at"`
}

func VocabularyKey(versionID int64) string {
	return fmt.Sprintf("models/%d/vocabulary.json", versionID)
}

func SaveVocabulary(ctx context.Context, s Store, v *Vocabulary) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Put(ctx, VocabularyKey(v.VersionID), data)
}

func LoadVocabulary(ctx context.Context, s Store, versionID int64) (*Vocabulary, error) {
	data, err := s.Get(ctx, VocabularyKey(versionID))
	if err != nil {
		return nil, err
	}
	v := &Vocabulary{}
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("decode vocabulary: %w", err)
	}
	return v, nil
}
