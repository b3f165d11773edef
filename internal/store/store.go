package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"

	"loom/internal/artifact"
	"loom/internal/logging"
	"loom/internal/stablejson"
)

const (
	indexFile         = "index.json"
	producerIndexFile = "producer_index.json"
	artifactsDirName  = "artifacts"
	envelopeFile      = "envelope.json"
	payloadFile       = "payload.json"
	lockFile          = "store.lock"
)

// Store is a durable, append-only artifact store rooted at one run directory.
type Store struct {
	runDir        string
	artifactsDir  string
	indexPath     string
	producerPath  string
	index         map[string][]string
	producerIndex map[string][]string
	lock          *flock.Flock
	readOnly      bool
	logger        *slog.Logger
}

// Option customizes store construction.
type Option func(*Store)

// WithLogger attaches a logger used for write diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open initializes a writable store in runDir, creating the directory tree as
// needed and acquiring the run-directory lock. The lock is held until Close.
func Open(runDir string, opts ...Option) (*Store, error) {
	s, err := newStore(runDir, opts...)
	if err != nil {
		return nil, err
	}

	s.lock = flock.New(filepath.Join(runDir, lockFile))
	ok, err := s.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run directory lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("run directory %s is locked by another process", runDir)
	}

	s.loadIndexes()
	return s, nil
}

// OpenReadOnly initializes a store that never writes and does not take the
// run-directory lock, for inspection of a possibly live run.
func OpenReadOnly(runDir string, opts ...Option) (*Store, error) {
	s, err := newStore(runDir, opts...)
	if err != nil {
		return nil, err
	}
	s.readOnly = true
	s.loadIndexes()
	return s, nil
}

func newStore(runDir string, opts ...Option) (*Store, error) {
	if runDir == "" {
		return nil, errors.New("run directory is required")
	}
	s := &Store{
		runDir:        runDir,
		artifactsDir:  filepath.Join(runDir, artifactsDirName),
		indexPath:     filepath.Join(runDir, indexFile),
		producerPath:  filepath.Join(runDir, producerIndexFile),
		index:         make(map[string][]string),
		producerIndex: make(map[string][]string),
		logger:        logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(s.artifactsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifacts directory: %w", err)
	}
	return s, nil
}

// Close releases the run-directory lock.
func (s *Store) Close() error {
	if s == nil || s.lock == nil {
		return nil
	}
	if err := s.lock.Unlock(); err != nil {
		return fmt.Errorf("release run directory lock: %w", err)
	}
	s.lock = nil
	return nil
}

// RunDir returns the root directory backing this store.
func (s *Store) RunDir() string {
	return s.runDir
}

// RunID returns the run identifier, the base name of the run directory.
func (s *Store) RunID() string {
	return filepath.Base(s.runDir)
}

// WriteArtifact persists the envelope and updates both indexes. Inline
// payloads are serialized to a side file and the envelope records the
// reference. The envelope's id must be set.
func (s *Store) WriteArtifact(env *artifact.Envelope) error {
	if s.readOnly {
		return errors.New("store is read-only")
	}
	if env == nil || env.ArtifactID == "" {
		return errors.New("artifact_id is required")
	}

	artifactDir := filepath.Join(s.artifactsDir, env.ArtifactID)
	if err := os.MkdirAll(artifactDir, 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}

	if env.Payload != nil && env.PayloadRef == "" {
		data, err := stablejson.Marshal(env.Payload)
		if err != nil {
			return fmt.Errorf("serialize payload for %s: %w", env.ArtifactID, err)
		}
		if err := os.WriteFile(filepath.Join(artifactDir, payloadFile), data, 0o644); err != nil {
			return fmt.Errorf("write payload for %s: %w", env.ArtifactID, err)
		}
		env.PayloadRef = payloadFile
	}

	if err := s.writeEnvelope(artifactDir, env); err != nil {
		return err
	}

	s.index[env.Type] = appendUnique(s.index[env.Type], env.ArtifactID)
	if env.Producer.Name != "" && env.Fingerprint != "" {
		key := producerKey(env.Producer.Name, env.Fingerprint)
		s.producerIndex[key] = appendUnique(s.producerIndex[key], env.ArtifactID)
	}

	if err := s.saveIndexes(); err != nil {
		return err
	}

	s.logger.Debug("artifact written",
		logging.String(logging.FieldArtifactType, env.Type),
		logging.String("artifact_id", env.ArtifactID),
		logging.String(logging.FieldFingerprint, env.Fingerprint),
	)
	return nil
}

// ReadArtifact loads an envelope by id, lazily loading its payload side file.
// An unknown id yields (nil, nil).
func (s *Store) ReadArtifact(artifactID string) (*artifact.Envelope, error) {
	artifactDir := filepath.Join(s.artifactsDir, artifactID)
	data, err := os.ReadFile(filepath.Join(artifactDir, envelopeFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read envelope %s: %w", artifactID, err)
	}

	var env artifact.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope %s: %w", artifactID, err)
	}

	if env.PayloadRef != "" {
		payloadData, err := os.ReadFile(filepath.Join(artifactDir, env.PayloadRef))
		switch {
		case errors.Is(err, os.ErrNotExist):
			// Referenced side file is gone; surface an empty payload.
		case err != nil:
			return nil, fmt.Errorf("read payload %s: %w", artifactID, err)
		default:
			if err := json.Unmarshal(payloadData, &env.Payload); err != nil {
				return nil, fmt.Errorf("decode payload %s: %w", artifactID, err)
			}
		}
	}
	return &env, nil
}

// GetLatestByType returns the most recently written artifact of the given
// type, or (nil, nil) when none exists.
func (s *Store) GetLatestByType(artifactType artifact.Type) (*artifact.Envelope, error) {
	ids := s.index[artifactType]
	if len(ids) == 0 {
		return nil, nil
	}
	return s.ReadArtifact(ids[len(ids)-1])
}

// FindByProducerFingerprint returns every artifact sharing the producer cache
// key, in write order.
func (s *Store) FindByProducerFingerprint(producerName, fingerprint string) ([]*artifact.Envelope, error) {
	ids := s.producerIndex[producerKey(producerName, fingerprint)]
	results := make([]*artifact.Envelope, 0, len(ids))
	for _, id := range ids {
		env, err := s.ReadArtifact(id)
		if err != nil {
			return nil, err
		}
		if env != nil {
			results = append(results, env)
		}
	}
	return results, nil
}

// ListIDs returns every indexed artifact id.
func (s *Store) ListIDs() []string {
	var ids []string
	for _, typeIDs := range s.index {
		ids = append(ids, typeIDs...)
	}
	sort.Strings(ids)
	return ids
}

// ListIDsByType returns the ids recorded for one type in write order.
func (s *Store) ListIDsByType(artifactType artifact.Type) []string {
	return append([]string(nil), s.index[artifactType]...)
}

// Types returns every artifact type present in the index, sorted.
func (s *Store) Types() []artifact.Type {
	types := make([]artifact.Type, 0, len(s.index))
	for t := range s.index {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (s *Store) writeEnvelope(artifactDir string, env *artifact.Envelope) error {
	// The inline payload lives in the side file once a reference exists;
	// envelope.json then records payload as null.
	onDisk := *env
	if onDisk.PayloadRef != "" {
		onDisk.Payload = nil
	}
	data, err := stablejson.Marshal(&onDisk)
	if err != nil {
		return fmt.Errorf("serialize envelope %s: %w", env.ArtifactID, err)
	}
	if err := os.WriteFile(filepath.Join(artifactDir, envelopeFile), data, 0o644); err != nil {
		return fmt.Errorf("write envelope %s: %w", env.ArtifactID, err)
	}
	return nil
}

func (s *Store) loadIndexes() {
	s.index = loadIndexFile(s.indexPath)
	s.producerIndex = loadIndexFile(s.producerPath)
}

func (s *Store) saveIndexes() error {
	if err := saveIndexFile(s.indexPath, s.index); err != nil {
		return fmt.Errorf("write type index: %w", err)
	}
	if err := saveIndexFile(s.producerPath, s.producerIndex); err != nil {
		return fmt.Errorf("write producer index: %w", err)
	}
	return nil
}

// loadIndexFile treats missing or corrupt index files as empty; the artifact
// directories themselves remain the durable record.
func loadIndexFile(path string) map[string][]string {
	data, err := os.ReadFile(path)
	if err != nil {
		return make(map[string][]string)
	}
	var index map[string][]string
	if err := json.Unmarshal(data, &index); err != nil || index == nil {
		return make(map[string][]string)
	}
	return index
}

func saveIndexFile(path string, index map[string][]string) error {
	data, err := stablejson.Marshal(index)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// appendUnique moves id to the tail of the list, keeping at most one entry.
func appendUnique(ids []string, id string) []string {
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return append(out, id)
}

func producerKey(producerName, fingerprint string) string {
	return producerName + "|" + fingerprint
}
