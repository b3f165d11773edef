// Package artifact defines the envelope that flows through the pipeline and
// the helpers that mint identifiers, build producer records, and compute
// cache fingerprints.
//
// Envelopes are immutable once written: the engine never edits or deletes a
// persisted artifact, it only appends new ones. A fingerprint chains the
// producer's name, version, parameters, and every transitive input
// fingerprint into one Merkle-style digest, which is the key the runner uses
// to decide whether a step has already been computed.
package artifact
