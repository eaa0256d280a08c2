package psp

import (
	"encoding/hex"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// authWindow is the clock-skew tolerance of the secrets endpoint: the
// caller signs the current epoch minute, and signatures over the
// previous and next minute are accepted too.
const authWindow = 1

// verifyMinuteSignature recovers the signer of sig, a personal-message
// signature over the current epoch minute, and reports whether it is
// wallet. The minute is rounded, not truncated, matching what callers
// sign.
func verifyMinuteSignature(wallet, sig string, now time.Time) bool {
	if !common.IsHexAddress(wallet) {
		return false
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(sig, "0x"))
	if err != nil || len(raw) != crypto.SignatureLength {
		return false
	}
	// Signatures in the wild carry V as 27/28; recovery wants 0/1.
	if raw[crypto.RecoveryIDOffset] >= 27 {
		raw[crypto.RecoveryIDOffset] -= 27
	}

	minute := int64(math.Round(float64(now.Unix()) / 60))
	for _, m := range []int64{minute, minute + authWindow, minute - authWindow} {
		digest := accounts.TextHash([]byte(strconv.FormatInt(m, 10)))
		pub, err := crypto.SigToPub(digest, raw)
		if err != nil {
			continue
		}
		if strings.EqualFold(crypto.PubkeyToAddress(*pub).Hex(), wallet) {
			return true
		}
	}
	return false
}
