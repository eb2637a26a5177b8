package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotHashDeterminism(t *testing.T) {
	a := IRObject{"count": IRInt(1), "cart": IRObject{"items": IRArray{}}}
	b := IRObject{"cart": IRObject{"items": IRArray{}}, "count": IRInt(1)}

	assert.Equal(t, MustSnapshotHash(a), MustSnapshotHash(b))
	assert.Len(t, MustSnapshotHash(a), 64)
}

func TestSnapshotHashChangesWithContent(t *testing.T) {
	a := IRObject{"count": IRInt(1)}
	b := IRObject{"count": IRInt(2)}
	assert.NotEqual(t, MustSnapshotHash(a), MustSnapshotHash(b))
}

func TestMutationIDChangesWithSeq(t *testing.T) {
	id1 := MustMutationID("flow-1", "increment", nil, 1)
	id2 := MustMutationID("flow-1", "increment", nil, 2)
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, id1, MustMutationID("flow-1", "increment", IRNull{}, 1))
}

func TestDomainSeparation(t *testing.T) {
	data := []byte(`{}`)
	assert.NotEqual(t, hashWithDomain(DomainSnapshot, data), hashWithDomain(DomainPayload, data))
}

func TestValueHashNil(t *testing.T) {
	h, err := ValueHash(nil)
	require.NoError(t, err)
	n, err := ValueHash(IRNull{})
	require.NoError(t, err)
	assert.Equal(t, n, h)
}
