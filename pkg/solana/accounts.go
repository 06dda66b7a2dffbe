package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	lru "github.com/hashicorp/golang-lru"
	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
)

// WrappedSolMint is the mint of the native-token account (wrapped SOL).
const WrappedSolMint = "So11111111111111111111111111111111111111112"

var ErrInvalidAddress = errors.New("invalid solana address")

type Config struct {
	RPCURL       string `env:"RPC_HTTP_URL, required"`
	ATACacheSize int    `env:"ATA_CACHE_SIZE, default=20000"`
}

type accountInfoGetter interface {
	GetAccountInfoWithOpts(ctx context.Context, account solanago.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
}

// Accounts derives associated token accounts and reads token balances.
// Derivations are cached: they are a pure function of (mint, owner).
type Accounts struct {
	rpc   accountInfoGetter
	cache *lru.Cache
}

type ataKey struct {
	mint, owner string
}

func New(cfg Config) (*Accounts, error) {
	return newAccounts(rpc.New(cfg.RPCURL), cfg.ATACacheSize)
}

func newAccounts(client accountInfoGetter, cacheSize int) (*Accounts, error) {
	if cacheSize <= 0 {
		cacheSize = 20000
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("new ata cache: %w", err)
	}
	return &Accounts{rpc: client, cache: cache}, nil
}

// AssociatedTokenAccount returns owner's canonical token account for mint.
func (a *Accounts) AssociatedTokenAccount(mint, owner string) (string, error) {
	key := ataKey{mint: mint, owner: owner}
	if v, ok := a.cache.Get(key); ok {
		return v.(string), nil
	}

	addr, err := DeriveAssociatedTokenAccount(mint, owner)
	if err != nil {
		return "", err
	}

	a.cache.Add(key, addr)
	return addr, nil
}

// DeriveAssociatedTokenAccount finds the program address for seeds (owner, token program, mint) under the associated token account program.
func DeriveAssociatedTokenAccount(mint, owner string) (string, error) {
	ownerKey, err := solanago.PublicKeyFromBase58(owner)
	if err != nil {
		return "", fmt.Errorf("%w: owner %q: %v", ErrInvalidAddress, owner, err)
	}
	mintKey, err := solanago.PublicKeyFromBase58(mint)
	if err != nil {
		return "", fmt.Errorf("%w: mint %q: %v", ErrInvalidAddress, mint, err)
	}

	addr, _, err := solanago.FindProgramAddress(
		[][]byte{
			ownerKey[:],
			solanago.TokenProgramID[:],
			mintKey[:],
		},
		solanago.SPLAssociatedTokenAccountProgramID,
	)
	if err != nil {
		return "", fmt.Errorf("find program address: %w", err)
	}

	return addr.String(), nil
}

type parsedTokenAccount struct {
	Parsed struct {
		Info struct {
			TokenAmount struct {
				Amount   decimal.Decimal `json:"amount"`
				Decimals int32           `json:"decimals"`
			} `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}

// TokenBalance returns the ui amount held by a token account. A missing account holds zero.
func (a *Accounts) TokenBalance(ctx context.Context, tokenAccount string) (decimal.Decimal, error) {
	key, err := solanago.PublicKeyFromBase58(tokenAccount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, tokenAccount, err)
	}

	res, err := a.rpc.GetAccountInfoWithOpts(ctx, key, &rpc.GetAccountInfoOpts{
		Encoding:   solanago.EncodingJSONParsed,
		Commitment: rpc.CommitmentConfirmed,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get account info %s: %w", tokenAccount, err)
	}
	if res == nil || res.Value == nil || res.Value.Data == nil {
		return decimal.Zero, nil
	}

	var parsed parsedTokenAccount
	if err := json.Unmarshal(res.Value.Data.GetRawJSON(), &parsed); err != nil {
		return decimal.Zero, fmt.Errorf("decode token account %s: %w", tokenAccount, err)
	}

	amount := parsed.Parsed.Info.TokenAmount
	return amount.Amount.Shift(-amount.Decimals), nil
}

// ValidateAddress checks that s is a base58 encoded 32 byte public key.
func ValidateAddress(s string) error {
	b, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}
	if len(b) != solanago.PublicKeyLength {
		return fmt.Errorf("%w: %q decodes to %d bytes", ErrInvalidAddress, s, len(b))
	}
	return nil
}
