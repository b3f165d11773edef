package artifact

import (
	"loom/internal/stablejson"
)

// ComputeFingerprint derives the cache key for one producer invocation. The
// digest covers the producer's name and version, its merged parameters, and
// the fingerprint of every resolved input (falling back to the input's id for
// artifacts written without one, such as externally seeded envelopes), so any
// upstream change propagates into every downstream key.
func ComputeFingerprint(name, version string, params map[string]any, inputs map[Type]*Envelope) (string, error) {
	inputFingerprints := make(map[string]string, len(inputs))
	for artifactType, env := range inputs {
		fp := env.Fingerprint
		if fp == "" {
			fp = env.ArtifactID
		}
		inputFingerprints[string(artifactType)] = fp
	}
	if params == nil {
		params = map[string]any{}
	}
	return stablejson.HashObject(map[string]any{
		"module":  name,
		"version": version,
		"params":  params,
		"inputs":  inputFingerprints,
	})
}

// HashParams digests a parameter map for use in producer records.
func HashParams(params map[string]any) (string, error) {
	if params == nil {
		params = map[string]any{}
	}
	return stablejson.HashObject(params)
}
