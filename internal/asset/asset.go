package asset

import "fmt"

// Network identifies a settlement network for bridge legs.
type Network string

const (
	NetworkBitcoin  Network = "bitcoin"
	NetworkEthereum Network = "ethereum"
	NetworkSolana   Network = "solana"
	NetworkPolygon  Network = "polygon"
	// NetworkGold is the native ledger network carrying the gold-pegged asset.
	NetworkGold Network = "gold"
	// NetworkFiat marks the banking rail side of an interop leg.
	NetworkFiat Network = "fiat"
)

// KnownNetworks lists every network the bridge can route to.
func KnownNetworks() []Network {
	return []Network{NetworkBitcoin, NetworkEthereum, NetworkSolana, NetworkPolygon, NetworkGold, NetworkFiat}
}

// Known reports whether n is a routable network.
func Known(n Network) bool {
	for _, k := range KnownNetworks() {
		if n == k {
			return true
		}
	}
	return false
}

// ChainID returns the EVM-style chain id where one exists; 0 otherwise.
func (n Network) ChainID() uint64 {
	switch n {
	case NetworkEthereum:
		return 1
	case NetworkPolygon:
		return 137
	default:
		return 0
	}
}

// OperationKind enumerates the units of work the transaction manager
// orchestrates.
type OperationKind string

const (
	// Chain-native operations.
	OpLock   OperationKind = "lock"
	OpMint   OperationKind = "mint"
	OpBurn   OperationKind = "burn"
	OpUnlock OperationKind = "unlock"

	// Interop operations.
	OpFiatToCrypto      OperationKind = "fiat_to_crypto"
	OpCryptoToFiat      OperationKind = "crypto_to_fiat"
	OpCryptoToCrypto    OperationKind = "crypto_to_crypto"
	OpContractExecution OperationKind = "contract_execution"
)

// Valid reports whether k is a recognised operation kind.
func (k OperationKind) Valid() bool {
	switch k {
	case OpLock, OpMint, OpBurn, OpUnlock,
		OpFiatToCrypto, OpCryptoToFiat, OpCryptoToCrypto, OpContractExecution:
		return true
	}
	return false
}

// InvolvesFiat reports whether the operation touches a banking rail.
func (k OperationKind) InvolvesFiat() bool {
	return k == OpFiatToCrypto || k == OpCryptoToFiat
}

// RequiresApproval reports whether the operation family enters the
// operator-verification flow instead of processing immediately.
func (k OperationKind) RequiresApproval() bool {
	return k == OpContractExecution
}

// Class partitions assets into fiat, crypto, and the native ledger asset.
type Class string

const (
	ClassFiat   Class = "fiat"
	ClassCrypto Class = "crypto"
	ClassNative Class = "native"
)

// Asset describes one endpoint of a bridge operation.
type Asset struct {
	Class  Class   `json:"class"`
	Symbol string  `json:"symbol"`
	Chain  Network `json:"chain,omitempty"`
}

// Fiat builds a fiat asset for a currency code.
func Fiat(currency string) Asset {
	return Asset{Class: ClassFiat, Symbol: currency, Chain: NetworkFiat}
}

// Crypto builds a crypto asset on a chain.
func Crypto(symbol string, chain Network) Asset {
	return Asset{Class: ClassCrypto, Symbol: symbol, Chain: chain}
}

// Native builds the gold-pegged ledger asset.
func Native() Asset {
	return Asset{Class: ClassNative, Symbol: "GLD", Chain: NetworkGold}
}

func (a Asset) String() string {
	if a.Chain == "" || a.Chain == NetworkFiat {
		return a.Symbol
	}
	return fmt.Sprintf("%s@%s", a.Symbol, a.Chain)
}
