package gateway

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ChainProvider is one upstream RPC endpoint. The pool treats providers as
// interchangeable: any of them may answer any call.
type ChainProvider interface {
	// Name identifies the provider in logs and health snapshots
	Name() string

	// BlockNumber returns the latest block number
	BlockNumber(ctx context.Context) (int64, error)

	// TokenSymbol fetches the ERC-20 symbol via eth_call
	TokenSymbol(ctx context.Context, tokenAddress string) (string, error)

	// TokenDecimals fetches the ERC-20 decimals via eth_call
	TokenDecimals(ctx context.Context, tokenAddress string) (uint8, error)

	// NativeBalance returns the wallet's native currency balance
	NativeBalance(ctx context.Context, walletAddress string) (*big.Int, error)

	// TokenBalance returns the wallet's ERC-20 balance via balanceOf
	TokenBalance(ctx context.Context, tokenAddress, walletAddress string) (*big.Int, error)

	// Close releases the underlying connection
	Close()
}

// ERC-20 function selectors (first 4 bytes of keccak256 hash)
var (
	// symbol() -> 0x95d89b41
	symbolSig = common.FromHex("0x95d89b41")
	// decimals() -> 0x313ce567
	decimalsSig = common.FromHex("0x313ce567")
	// balanceOf(address) -> 0x70a08231
	balanceOfSig = common.FromHex("0x70a08231")
)

// rpcProvider implements ChainProvider over go-ethereum's ethclient
type rpcProvider struct {
	name   string
	client *ethclient.Client
}

var _ ChainProvider = (*rpcProvider)(nil)

// NewRPCProvider dials an RPC endpoint. When expectedChainID is non-zero the
// provider's chain id is verified so a misconfigured URL fails at startup
// instead of feeding trades from the wrong network.
func NewRPCProvider(rawURL string, expectedChainID int64, dialTimeout time.Duration) (ChainProvider, error) {
	client, err := ethclient.Dial(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial provider %s: %w", providerName(rawURL), err)
	}

	if expectedChainID > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		defer cancel()

		chainID, err := client.ChainID(ctx)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to get chain ID from %s: %w", providerName(rawURL), err)
		}
		if chainID.Int64() != expectedChainID {
			client.Close()
			return nil, fmt.Errorf("chain ID mismatch on %s: expected %d, got %d",
				providerName(rawURL), expectedChainID, chainID.Int64())
		}
	}

	return &rpcProvider{
		name:   providerName(rawURL),
		client: client,
	}, nil
}

// providerName reduces an RPC URL to its host so logs never carry API keys
// embedded in the path.
func providerName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		return u.Host
	}
	return rawURL
}

// Name identifies the provider in logs and health snapshots
func (p *rpcProvider) Name() string {
	return p.name
}

// BlockNumber returns the latest block number
func (p *rpcProvider) BlockNumber(ctx context.Context) (int64, error) {
	blockNumber, err := p.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get block number: %w", err)
	}
	return int64(blockNumber), nil
}

// TokenSymbol fetches the ERC-20 symbol via eth_call
func (p *rpcProvider) TokenSymbol(ctx context.Context, tokenAddress string) (string, error) {
	result, err := p.callContract(ctx, common.HexToAddress(tokenAddress), symbolSig)
	if err != nil {
		return "", fmt.Errorf("failed to call symbol(): %w", err)
	}
	return decodeStringOrBytes32(result)
}

// TokenDecimals fetches the ERC-20 decimals via eth_call
func (p *rpcProvider) TokenDecimals(ctx context.Context, tokenAddress string) (uint8, error) {
	result, err := p.callContract(ctx, common.HexToAddress(tokenAddress), decimalsSig)
	if err != nil {
		return 0, fmt.Errorf("failed to call decimals(): %w", err)
	}

	// decimals() returns uint8 padded to 32 bytes
	if len(result) < 32 {
		return 0, fmt.Errorf("invalid decimals response length: %d", len(result))
	}
	return result[31], nil
}

// NativeBalance returns the wallet's native currency balance
func (p *rpcProvider) NativeBalance(ctx context.Context, walletAddress string) (*big.Int, error) {
	balance, err := p.client.BalanceAt(ctx, common.HexToAddress(walletAddress), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get native balance: %w", err)
	}
	return balance, nil
}

// TokenBalance returns the wallet's ERC-20 balance via balanceOf
func (p *rpcProvider) TokenBalance(ctx context.Context, tokenAddress, walletAddress string) (*big.Int, error) {
	data := make([]byte, 0, 36)
	data = append(data, balanceOfSig...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(walletAddress).Bytes(), 32)...)

	result, err := p.callContract(ctx, common.HexToAddress(tokenAddress), data)
	if err != nil {
		return nil, fmt.Errorf("failed to call balanceOf(): %w", err)
	}
	if len(result) < 32 {
		return nil, fmt.Errorf("invalid balanceOf response length: %d", len(result))
	}
	return new(big.Int).SetBytes(result[:32]), nil
}

// Close releases the underlying connection
func (p *rpcProvider) Close() {
	p.client.Close()
}

// callContract performs a read-only eth_call against the latest block
func (p *rpcProvider) callContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{
		To:   &to,
		Data: data,
	}
	return p.client.CallContract(ctx, msg, nil)
}

// decodeStringOrBytes32 decodes a response that could be either:
// 1. ABI-encoded string: offset (32 bytes) + length (32 bytes) + padded data
// 2. bytes32: raw 32 bytes (e.g., MKR token)
func decodeStringOrBytes32(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty data")
	}
	if len(data) < 32 {
		return "", fmt.Errorf("data too short: %d bytes", len(data))
	}

	if len(data) >= 64 {
		offset := new(big.Int).SetBytes(data[:32])
		if offset.Uint64() == 32 {
			length := new(big.Int).SetBytes(data[32:64])
			strLen := int(length.Uint64())

			if strLen == 0 {
				return "", nil
			}
			if len(data) >= 64+strLen {
				strData := data[64 : 64+strLen]
				return strings.TrimRight(string(strData), "\x00"), nil
			}
		}
	}

	// Fallback: treat as bytes32
	result := bytes.TrimRight(data[:32], "\x00")
	if isPrintableASCII(result) {
		return string(result), nil
	}

	return "0x" + hex.EncodeToString(data[:32]), nil
}

// isPrintableASCII checks if all bytes are printable ASCII characters
func isPrintableASCII(data []byte) bool {
	for _, b := range data {
		if b < 32 || b > 126 {
			return false
		}
	}
	return len(data) > 0
}
