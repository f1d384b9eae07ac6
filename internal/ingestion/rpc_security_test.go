package ingestion

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/solana"
	"solana-token-engine/internal/solana/stub"
)

func TestRPCSecuritySource(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.Accounts[mintB] = &solana.AccountInfo{Data: splMintData(true, true, 1000, 6)}
	rpc.Accounts["5x38Kp4hvdomTCnCrAny4UtMUt5rQBdB6px2K1Ui45Wq"] = &solana.AccountInfo{Data: metadataData(1, true)}
	rpc.Supply[mintB] = &solana.TokenAmount{Amount: "1000", Decimals: 6}
	rpc.Largest[mintB] = []solana.TokenAccountBalance{
		{Address: "h1", TokenAmount: solana.TokenAmount{Amount: "600"}},
		{Address: "h2", TokenAmount: solana.TokenAmount{Amount: "100"}},
	}

	src := NewRPCSecuritySource(rpc, fixedClock, zerolog.Nop())
	f, err := src.Fetch(context.Background(), mintB)
	require.NoError(t, err)

	assert.Equal(t, "rpc", f.Source)
	assert.True(t, *f.MintAuthorityExists)
	assert.True(t, *f.FreezeAuthorityExists)
	require.NotNil(t, f.MetadataMutable)
	assert.True(t, *f.MetadataMutable)
	assert.InDeltaSlice(t, []float64{0.6, 0.1}, f.TopHolderPcts, 1e-12)
	assert.Nil(t, f.IsHoneypot)
}

func TestRPCSecuritySourceBestEffortExtras(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.Accounts[mintA] = &solana.AccountInfo{Data: splMintData(false, false, 1, 0)}

	f, err := NewRPCSecuritySource(rpc, fixedClock, zerolog.Nop()).Fetch(context.Background(), mintA)
	require.NoError(t, err)
	assert.False(t, *f.MintAuthorityExists)
	assert.Nil(t, f.MetadataMutable)
	assert.Empty(t, f.TopHolderPcts)
}

func TestRPCSecuritySourceMissingMint(t *testing.T) {
	rpc := stub.NewRPCClient()
	src := NewRPCSecuritySource(rpc, fixedClock, zerolog.Nop())

	_, err := src.Fetch(context.Background(), mintA)
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)

	rpc.Err = errors.New("connection refused")
	_, err = src.Fetch(context.Background(), mintA)
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}
