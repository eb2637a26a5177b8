package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for an algorithm change.
const (
	DomainSnapshot = "statetree/snapshot/v1"
	DomainMutation = "statetree/mutation/v1"
	DomainPayload  = "statetree/payload/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SnapshotHash returns the content hash of a state snapshot.
// Two snapshots hash equal iff their canonical JSON is identical.
func SnapshotHash(state IRObject) (string, error) {
	canonical, err := marshalCanonical(state)
	if err != nil {
		return "", fmt.Errorf("SnapshotHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}

// ValueHash returns the content hash of any IR value.
func ValueHash(v IRValue) (string, error) {
	if v == nil {
		v = IRNull{}
	}
	canonical, err := marshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("ValueHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPayload, canonical), nil
}

// MutationID computes the identity of one committed mutation.
// The ID is stable across replays given the same inputs.
func MutationID(flowToken, mutationType string, payload IRValue, seq int64) (string, error) {
	if payload == nil {
		payload = IRNull{}
	}
	obj := IRObject{
		"flow_token": IRString(flowToken),
		"type":       IRString(mutationType),
		"payload":    payload,
		"seq":        IRInt(seq),
	}

	canonical, err := marshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("MutationID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainMutation, canonical), nil
}

// MustSnapshotHash is like SnapshotHash but panics on error.
func MustSnapshotHash(state IRObject) string {
	h, err := SnapshotHash(state)
	if err != nil {
		panic(err)
	}
	return h
}

// MustMutationID is like MutationID but panics on error.
func MustMutationID(flowToken, mutationType string, payload IRValue, seq int64) string {
	id, err := MutationID(flowToken, mutationType, payload, seq)
	if err != nil {
		panic(err)
	}
	return id
}
