package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marketsight/marketsight/internal/atomicio"
)

// BundleVersion guards against loading artifacts written by an incompatible
// build.
const BundleVersion = 1

// Bundle is the single persisted model artifact: forest, scaler and training
// metadata versioned together so a mismatched pair can never be loaded. The
// checksum covers the whole payload.
type Bundle struct {
	Version      int       `json:"version"`
	TrainedAt    time.Time `json:"trained_at"`
	Scope        string    `json:"scope"`
	TrainingSize int       `json:"training_size"`
	Seed         int64     `json:"seed"`
	Medians      Medians   `json:"medians"`
	Scaler       *Scaler   `json:"scaler"`
	Forest       *Forest   `json:"forest"`
	Checksum     string    `json:"checksum,omitempty"`
}

// Bundle snapshots a trained predictor for persistence. Returns an error
// when the predictor is untrained.
func (p *Predictor) Bundle(scope string, trainedAt time.Time) (*Bundle, error) {
	if !p.trained {
		return nil, fmt.Errorf("cannot bundle an untrained predictor")
	}
	return &Bundle{
		Version:      BundleVersion,
		TrainedAt:    trainedAt,
		Scope:        scope,
		TrainingSize: p.size,
		Seed:         p.params.Seed,
		Medians:      p.medians,
		Scaler:       p.scaler,
		Forest:       p.forest,
	}, nil
}

// SaveBundle stamps the checksum and writes the bundle atomically.
func SaveBundle(path string, b *Bundle) error {
	sum, err := checksum(b)
	if err != nil {
		return fmt.Errorf("failed to checksum bundle: %w", err)
	}
	stamped := *b
	stamped.Checksum = sum
	if err := atomicio.WriteJSONAtomic(path, &stamped); err != nil {
		return fmt.Errorf("failed to write model bundle: %w", err)
	}
	return nil
}

// LoadBundle reads and verifies a bundle. Any failure means the bundle is
// absent: callers must retrain, never crash.
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model bundle: %w", err)
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse model bundle: %w", err)
	}
	if b.Version != BundleVersion {
		return nil, fmt.Errorf("unsupported bundle version %d, want %d", b.Version, BundleVersion)
	}
	if b.Scaler == nil || b.Forest == nil || len(b.Forest.Trees) == 0 {
		return nil, fmt.Errorf("incomplete bundle: scaler and forest must be persisted together")
	}

	want := b.Checksum
	b.Checksum = ""
	got, err := checksum(&b)
	if err != nil {
		return nil, fmt.Errorf("failed to checksum bundle: %w", err)
	}
	if want == "" || got != want {
		return nil, fmt.Errorf("bundle checksum mismatch")
	}
	b.Checksum = want
	return &b, nil
}

// Restore loads a verified bundle into the predictor.
func (p *Predictor) Restore(b *Bundle) error {
	if b == nil || b.Scaler == nil || b.Forest == nil {
		return fmt.Errorf("cannot restore from incomplete bundle")
	}
	if b.Version != BundleVersion {
		return fmt.Errorf("unsupported bundle version %d", b.Version)
	}
	p.scaler = b.Scaler
	p.forest = b.Forest
	p.medians = b.Medians
	p.size = b.TrainingSize
	p.trained = true
	return nil
}

// LoadInto attempts to restore a persisted bundle into the predictor,
// logging a warning and reporting false when the artifact is corrupt or
// missing so the caller retrains.
func (p *Predictor) LoadInto(path string) bool {
	b, err := LoadBundle(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("persisted model unusable, retraining")
		return false
	}
	if err := p.Restore(b); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("persisted model unusable, retraining")
		return false
	}
	return true
}

func checksum(b *Bundle) (string, error) {
	payload := *b
	payload.Checksum = ""
	data, err := json.Marshal(&payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
