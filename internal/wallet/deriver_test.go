package wallet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makwansoran/futrledger/internal/domain"
)

// testMnemonic is the standard BIP-39 test vector phrase. Never fund it.
const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func newTestDeriver(t *testing.T) *Deriver {
	t.Helper()
	d, err := NewDeriver(testMnemonic)
	require.NoError(t, err)
	return d
}

func TestNewDeriver_RejectsInvalidMnemonic(t *testing.T) {
	_, err := NewDeriver("not a mnemonic at all")
	assert.ErrorIs(t, err, domain.ErrSeedCorrupt)
}

func TestDerive_Deterministic(t *testing.T) {
	d := newTestDeriver(t)

	w1, k1, err := d.Derive("alice@example.com")
	require.NoError(t, err)
	w2, k2, err := d.Derive("alice@example.com")
	require.NoError(t, err)

	assert.Equal(t, w1.Address, w2.Address)
	assert.Equal(t, k1.D, k2.D)
}

func TestDerive_NormalizesIdentity(t *testing.T) {
	d := newTestDeriver(t)

	w1, _, err := d.Derive("Alice@Example.COM")
	require.NoError(t, err)
	w2, _, err := d.Derive("  alice@example.com ")
	require.NoError(t, err)

	assert.Equal(t, w1.Address, w2.Address)
	assert.Equal(t, domain.Identity("alice@example.com"), w1.Identity)
}

func TestDerive_DistinctIdentities(t *testing.T) {
	d := newTestDeriver(t)

	seen := make(map[string]string)
	for _, email := range []string{
		"a@x.com", "b@x.com", "carol@example.org", "dave@example.org", "erin@mail.net",
	} {
		w, _, err := d.Derive(email)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(w.Address, "0x"))
		if prev, ok := seen[w.Address]; ok {
			t.Fatalf("address collision: %s and %s both derived %s", prev, email, w.Address)
		}
		seen[w.Address] = email
	}
}

func TestDerive_DistinctSeeds(t *testing.T) {
	d1 := newTestDeriver(t)
	d2, err := NewDeriver("legal winner thank year wave sausage worth useful legal winner thank yellow")
	require.NoError(t, err)

	w1, _, err := d1.Derive("alice@example.com")
	require.NoError(t, err)
	w2, _, err := d2.Derive("alice@example.com")
	require.NoError(t, err)

	assert.NotEqual(t, w1.Address, w2.Address)
}

func TestDerive_RejectsInvalidIdentity(t *testing.T) {
	d := newTestDeriver(t)

	for _, raw := range []string{"", "nodomain", "@x.com", "a@", "a@nodot"} {
		_, _, err := d.Derive(raw)
		assert.ErrorIs(t, err, domain.ErrInvalidIdentity, "input %q", raw)
	}
}

func TestIndex_Bounded(t *testing.T) {
	for _, id := range []domain.Identity{"a@x.com", "b@x.com", "someone@example.com"} {
		assert.Less(t, Index(id), uint32(indexSpace))
	}
	// Stable across calls.
	assert.Equal(t, Index("a@x.com"), Index("a@x.com"))
}

func TestAddress_NoKeyExposure(t *testing.T) {
	d := newTestDeriver(t)

	addr, err := d.Address("alice@example.com")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(addr, "0x"))
	assert.Len(t, addr, 42)
}
