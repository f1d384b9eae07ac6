package ingestion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/normalize"
)

func TestDexscreenerPicksDeepestPair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest/dex/tokens/"+mintA, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"schemaVersion":"1.0.0","pairs":[
			{"chainId":"solana","pairAddress":"shallow","baseToken":{"address":"` + mintA + `"},"priceUsd":"0.00002","liquidity":{"usd":1500}},
			{"chainId":"solana","pairAddress":"quoted","baseToken":{"address":"` + mintB + `"},"priceUsd":"1.0","liquidity":{"usd":9000000}},
			{"chainId":"solana","pairAddress":"deep","baseToken":{"address":"` + mintA + `"},"priceUsd":"0.000021","liquidity":{"usd":250000,"base":1000,"quote":20}},
			{"chainId":"solana","pairAddress":"dry","baseToken":{"address":"` + mintA + `"},"priceUsd":"0.00003"}
		]}`))
	}))
	defer srv.Close()

	src := NewDexscreenerSource(DexscreenerOptions{BaseURL: srv.URL, Now: fixedClock})
	p, err := src.Fetch(context.Background(), mintA)
	require.NoError(t, err)

	pair, ok := p.(*normalize.DexPair)
	require.True(t, ok)
	assert.Equal(t, "deep", pair.PairAddress)
	assert.Equal(t, int64(1_700_000_000_000), pair.FetchedAt)
	assert.Equal(t, domain.SourceWatchlist, pair.Source)
	assert.Equal(t, mintA, pair.MintAddress())
}

func TestDexscreenerNoPairs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"schemaVersion":"1.0.0","pairs":null}`))
	}))
	defer srv.Close()

	_, err := NewDexscreenerSource(DexscreenerOptions{BaseURL: srv.URL}).Fetch(context.Background(), mintA)
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}

func TestDexscreenerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewDexscreenerSource(DexscreenerOptions{BaseURL: srv.URL}).Fetch(context.Background(), mintA)
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}
