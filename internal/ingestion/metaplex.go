package ingestion

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

const metaplexProgramID = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"

var (
	errNoPDA          = errors.New("no off-curve program address")
	errShortAccount   = errors.New("account data too short")
	errNotMetadataV1  = errors.New("not a metadata v1 account")
	errBadBorshString = errors.New("malformed borsh string")
)

// metadataPDA derives the Metaplex metadata account for mint.
// Seeds: "metadata", program id, mint.
func metadataPDA(mint string) (string, error) {
	mintKey, err := base58.Decode(mint)
	if err != nil {
		return "", err
	}
	program, err := base58.Decode(metaplexProgramID)
	if err != nil {
		return "", err
	}
	if len(mintKey) != 32 {
		return "", errShortAccount
	}
	return findProgramAddress([][]byte{[]byte("metadata"), program, mintKey}, program)
}

// findProgramAddress walks bump seeds from 255 down and returns the first
// hash that is not a valid ed25519 point.
func findProgramAddress(seeds [][]byte, program []byte) (string, error) {
	for bump := 255; bump >= 0; bump-- {
		h := sha256.New()
		for _, s := range seeds {
			h.Write(s)
		}
		h.Write([]byte{byte(bump)})
		h.Write(program)
		h.Write([]byte("ProgramDerivedAddress"))
		sum := h.Sum(nil)

		if _, err := new(edwards25519.Point).SetBytes(sum); err != nil {
			return base58.Encode(sum), nil
		}
	}
	return "", errNoPDA
}

// splMint is the fixed 82-byte prefix of an SPL (or Token-2022) mint.
type splMint struct {
	MintAuthority   bool
	Supply          uint64
	Decimals        uint8
	FreezeAuthority bool
}

// parseSPLMint layout: COption<Pubkey> mint authority (4+32), supply u64,
// decimals u8, initialized bool, COption<Pubkey> freeze authority (4+32).
func parseSPLMint(data []byte) (*splMint, error) {
	if len(data) < 82 {
		return nil, errShortAccount
	}
	return &splMint{
		MintAuthority:   binary.LittleEndian.Uint32(data[0:4]) == 1,
		Supply:          binary.LittleEndian.Uint64(data[36:44]),
		Decimals:        data[44],
		FreezeAuthority: binary.LittleEndian.Uint32(data[46:50]) == 1,
	}, nil
}

type borshReader struct {
	data []byte
	off  int
}

func (r *borshReader) skip(n int) error {
	if n < 0 || r.off+n > len(r.data) {
		return errShortAccount
	}
	r.off += n
	return nil
}

func (r *borshReader) u8() (byte, error) {
	if r.off >= len(r.data) {
		return 0, errShortAccount
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

func (r *borshReader) u32() (uint32, error) {
	if r.off+4 > len(r.data) {
		return 0, errShortAccount
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

func (r *borshReader) skipString(max uint32) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	if n > max {
		return errBadBorshString
	}
	return r.skip(int(n))
}

// parseMetadataMutable reads is_mutable from a Metaplex metadata account:
// key, update authority, mint, name, symbol, uri, seller fee bps,
// Option<Vec<Creator>>, primary_sale_happened, is_mutable.
func parseMetadataMutable(data []byte) (bool, error) {
	r := &borshReader{data: data}
	key, err := r.u8()
	if err != nil {
		return false, err
	}
	if key != 4 {
		return false, errNotMetadataV1
	}
	if err := r.skip(64); err != nil {
		return false, err
	}
	for _, max := range []uint32{64, 32, 400} {
		if err := r.skipString(max); err != nil {
			return false, err
		}
	}
	if err := r.skip(2); err != nil {
		return false, err
	}

	hasCreators, err := r.u8()
	if err != nil {
		return false, err
	}
	if hasCreators == 1 {
		n, err := r.u32()
		if err != nil {
			return false, err
		}
		if n > 5 {
			return false, errBadBorshString
		}
		if err := r.skip(int(n) * 34); err != nil {
			return false, err
		}
	}

	if err := r.skip(1); err != nil {
		return false, err
	}
	mutable, err := r.u8()
	if err != nil {
		return false, err
	}
	return mutable == 1, nil
}
