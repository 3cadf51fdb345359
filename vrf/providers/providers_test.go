// +build unit

package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdDSAProviderFulfillAndVerify(t *testing.T) {
	provider := InitEdDSAVRFProvider(nil)
	require.NotNil(t, provider)
	assert.True(t, provider.Verifiable())
	assert.NotEmpty(t, provider.PublicKey())

	fulfillment, err := provider.Fulfill("s1", 42)
	require.NoError(t, err)
	require.NotNil(t, fulfillment)
	assert.NotEmpty(t, fulfillment.Proof)
	assert.True(t, len(fulfillment.Proof) <= MaxProofSize)

	verified, err := provider.Verify("s1", 42, fulfillment.RandomNumber, fulfillment.Proof)
	require.NoError(t, err)
	assert.True(t, verified)
}

func TestEdDSAProviderDeterministicDerivation(t *testing.T) {
	provider := InitEdDSAVRFProvider(nil)
	require.NotNil(t, provider)

	fulfillment, err := provider.Fulfill("s1", 7)
	require.NoError(t, err)

	// the random number is a pure function of the persisted proof
	assert.Equal(t, fulfillment.RandomNumber, randomNumberFromProof(fulfillment.Proof))
}

func TestEdDSAProviderRejectsTamperedProof(t *testing.T) {
	provider := InitEdDSAVRFProvider(nil)
	require.NotNil(t, provider)

	fulfillment, err := provider.Fulfill("s1", 42)
	require.NoError(t, err)

	tampered := make([]byte, len(fulfillment.Proof))
	copy(tampered, fulfillment.Proof)
	tampered[0] ^= 0xff

	verified, _ := provider.Verify("s1", 42, fulfillment.RandomNumber, tampered)
	assert.False(t, verified)
}

func TestEdDSAProviderRejectsWrongSeed(t *testing.T) {
	provider := InitEdDSAVRFProvider(nil)
	require.NotNil(t, provider)

	fulfillment, err := provider.Fulfill("s1", 42)
	require.NoError(t, err)

	verified, _ := provider.Verify("s1", 43, fulfillment.RandomNumber, fulfillment.Proof)
	assert.False(t, verified)

	verified, _ = provider.Verify("s2", 42, fulfillment.RandomNumber, fulfillment.Proof)
	assert.False(t, verified)
}

func TestEdDSAProviderRejectsForgedRandomNumber(t *testing.T) {
	provider := InitEdDSAVRFProvider(nil)
	require.NotNil(t, provider)

	fulfillment, err := provider.Fulfill("s1", 42)
	require.NoError(t, err)

	verified, err := provider.Verify("s1", 42, fulfillment.RandomNumber+1, fulfillment.Proof)
	require.NoError(t, err)
	assert.False(t, verified)
}

func TestLocalProviderCommitmentRoundTrip(t *testing.T) {
	provider := InitLocalVRFProvider()
	assert.False(t, provider.Verifiable())
	assert.Nil(t, provider.PublicKey())

	fulfillment, err := provider.Fulfill("s1", 42)
	require.NoError(t, err)

	verified, err := provider.Verify("s1", 42, fulfillment.RandomNumber, fulfillment.Proof)
	require.NoError(t, err)
	assert.True(t, verified)

	verified, err = provider.Verify("s1", 42, fulfillment.RandomNumber+1, fulfillment.Proof)
	require.NoError(t, err)
	assert.False(t, verified)
}

func TestVRFProviderFactory(t *testing.T) {
	assert.NotNil(t, VRFProviderFactory(VRFProviderLocal, nil))
	assert.NotNil(t, VRFProviderFactory(VRFProviderEdDSA, nil))
	assert.Nil(t, VRFProviderFactory("chainlink", nil))
}
