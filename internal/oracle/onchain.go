package oracle

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const aggregatorABIJSON = `[{"inputs":[],"name":"latestRoundData","outputs":[{"internalType":"uint80","name":"roundId","type":"uint80"},{"internalType":"int256","name":"answer","type":"int256"},{"internalType":"uint256","name":"startedAt","type":"uint256"},{"internalType":"uint256","name":"updatedAt","type":"uint256"},{"internalType":"uint80","name":"answeredInRound","type":"uint80"}],"stateMutability":"view","type":"function"}]`

var aggregatorABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABIJSON))
	if err != nil {
		panic("failed to parse aggregator ABI: " + err.Error())
	}
	aggregatorABI = parsed
}

// OnchainOptions parameterise the aggregator-contract price source.
type OnchainOptions struct {
	RPCURL            string
	AggregatorAddress string
	// Scale is the aggregator's answer decimals, 8 for Chainlink XAU/USD.
	Scale   int32
	Symbol  string
	Target  decimal.Decimal
	Timeout time.Duration
}

// Onchain reads the reference price from a price-feed aggregator contract
// over Ethereum RPC.
type Onchain struct {
	opts      OnchainOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewOnchain builds an aggregator-backed price source.
func NewOnchain(opts OnchainOptions, logger zerolog.Logger) *Onchain {
	return &Onchain{opts: opts, logger: logger.With().Str("component", "oracle_onchain").Logger()}
}

// CurrentPrice calls latestRoundData and scales the answer to a decimal.
func (o *Onchain) CurrentPrice(ctx context.Context) (Sample, error) {
	if o.opts.RPCURL == "" {
		return Sample{}, errors.New("ethereum rpc url not configured")
	}
	if o.opts.AggregatorAddress == "" {
		return Sample{}, errors.New("aggregator contract address not configured")
	}

	timeout := o.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := o.getClient(ctx)
	if err != nil {
		return Sample{}, err
	}

	addr := common.HexToAddress(o.opts.AggregatorAddress)
	payload, err := aggregatorABI.Pack("latestRoundData")
	if err != nil {
		return Sample{}, err
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return Sample{}, err
	}

	outputs, err := aggregatorABI.Unpack("latestRoundData", res)
	if err != nil {
		return Sample{}, err
	}
	if len(outputs) != 5 {
		return Sample{}, errors.New("unexpected latestRoundData response")
	}

	answer, ok := outputs[1].(*big.Int)
	if !ok {
		return Sample{}, errors.New("failed to decode aggregator answer")
	}
	if answer.Sign() <= 0 {
		return Sample{}, errors.New("aggregator returned non-positive answer")
	}

	updatedAt, ok := outputs[3].(*big.Int)
	if !ok {
		return Sample{}, errors.New("failed to decode aggregator timestamp")
	}

	scale := o.opts.Scale
	if scale == 0 {
		scale = 8
	}

	symbol := o.opts.Symbol
	if symbol == "" {
		symbol = "XAU"
	}

	return Sample{
		Symbol:     symbol,
		Price:      decimal.NewFromBigInt(answer, -scale),
		Target:     o.opts.Target,
		ObservedAt: time.Unix(updatedAt.Int64(), 0).UTC(),
	}, nil
}

func (o *Onchain) getClient(ctx context.Context) (*ethclient.Client, error) {
	o.clientMux.Lock()
	defer o.clientMux.Unlock()

	if o.client != nil {
		return o.client, nil
	}

	client, err := ethclient.DialContext(ctx, o.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	o.client = client
	return client, nil
}

var _ Source = (*Onchain)(nil)
