package artifact

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Type names a kind of artifact, e.g. "Transcript:whisper_json.v1". Types are
// opaque versioned tags; producers and consumers agree on the literal string.
type Type = string

// Producer identifies what created an artifact.
type Producer struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	ParamsHash string `json:"params_hash"`
}

// Envelope is the unit of persisted data. Payload carries inline data;
// PayloadRef points at a side file relative to the artifact directory. At
// most one of the two is meaningful at a time.
type Envelope struct {
	ArtifactID    string    `json:"artifact_id"`
	Type          Type      `json:"type"`
	SchemaVersion string    `json:"schema_version"`
	Timebase      string    `json:"timebase"`
	TimeRange     []float64 `json:"time_range"`
	Producer      Producer  `json:"producer"`
	Payload       any       `json:"payload"`
	PayloadRef    string    `json:"payload_ref,omitempty"`
	Fingerprint   string    `json:"fingerprint"`
	DependsOn     []string  `json:"depends_on"`
}

// NewID mints a globally unique artifact identifier.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// New constructs an envelope with defaulted metadata fields.
func New(artifactType Type, payload any) *Envelope {
	return &Envelope{
		ArtifactID:    NewID(),
		Type:          artifactType,
		SchemaVersion: "1",
		Timebase:      "seconds",
		Payload:       payload,
	}
}

// Coerce normalizes a module or adapter output into an envelope stamped with
// the given provenance. Outputs may be pre-built envelopes or raw payloads;
// a pre-built envelope must already carry the expected type.
func Coerce(artifactType Type, output any, producer Producer, fingerprint string, dependsOn []string) (*Envelope, error) {
	env, ok := output.(*Envelope)
	if ok {
		if env.Type != artifactType {
			return nil, fmt.Errorf("output type mismatch: %s != %s", env.Type, artifactType)
		}
		if env.ArtifactID == "" {
			env.ArtifactID = NewID()
		}
		if env.SchemaVersion == "" {
			env.SchemaVersion = "1"
		}
		if env.Timebase == "" {
			env.Timebase = "seconds"
		}
	} else {
		env = New(artifactType, output)
	}
	env.Producer = producer
	env.Fingerprint = fingerprint
	env.DependsOn = append([]string(nil), dependsOn...)
	return env, nil
}
