// Package snapshot reads account and market state from an exchange
// deployment through any ledger endpoint, live or forked.
package snapshot

import (
	"context"
	"errors"
	"fmt"

	"perpsim/internal/chain"
	"perpsim/internal/domain"
	"perpsim/internal/exchange"
)

// ErrReadFailed wraps transport failures; contract-level "account not
// registered" reverts are not errors, they produce empty snapshots so that
// "no account" and "zero position" diff uniformly.
var ErrReadFailed = errors.New("snapshot read failed")

// Reader snapshots one exchange deployment.
type Reader struct {
	client   chain.Client
	exchange string
}

// NewReader creates a Reader bound to an endpoint and exchange address.
func NewReader(client chain.Client, exchangeAddr string) *Reader {
	return &Reader{client: client, exchange: exchangeAddr}
}

// Account captures one account's balances, position and native gas balance
// in one logical read at the endpoint's latest block.
func (r *Reader) Account(ctx context.Context, account string, perpetualID uint32) (domain.AccountSnapshot, error) {
	snap := domain.AccountSnapshot{Account: account}

	data, err := exchange.EncodeGetAccount(account)
	if err != nil {
		return snap, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	ret, err := r.client.CallContract(ctx, chain.CallMsg{To: r.exchange, Data: data}, "latest")
	if err != nil {
		if _, reverted := chain.AsRevert(err); reverted {
			// Unregistered account: default snapshot, still read gas balance.
			return r.withGasBalance(ctx, snap)
		}
		return snap, fmt.Errorf("%w: getAccount: %v", ErrReadFailed, err)
	}
	if snap.Balance, snap.LockedBalance, err = exchange.ParseAccountReturn(ret); err != nil {
		return snap, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}

	data, err = exchange.EncodeGetPosition(account, perpetualID)
	if err != nil {
		return snap, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	ret, err = r.client.CallContract(ctx, chain.CallMsg{To: r.exchange, Data: data}, "latest")
	if err != nil {
		if _, reverted := chain.AsRevert(err); !reverted {
			return snap, fmt.Errorf("%w: getPosition: %v", ErrReadFailed, err)
		}
	} else if snap.Position, err = exchange.ParsePositionReturn(ret); err != nil {
		return snap, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}

	return r.withGasBalance(ctx, snap)
}

func (r *Reader) withGasBalance(ctx context.Context, snap domain.AccountSnapshot) (domain.AccountSnapshot, error) {
	balance, err := r.client.BalanceAt(ctx, snap.Account)
	if err != nil {
		return snap, fmt.Errorf("%w: getBalance: %v", ErrReadFailed, err)
	}
	snap.NativeGasBalance = balance
	return snap, nil
}

// Market reads one perpetual's state. Always fresh, never cached.
func (r *Reader) Market(ctx context.Context, perpetualID uint32) (domain.MarketState, error) {
	ret, err := r.client.CallContract(ctx, chain.CallMsg{
		To:   r.exchange,
		Data: exchange.EncodeGetMarket(perpetualID),
	}, "latest")
	if err != nil {
		return domain.MarketState{}, fmt.Errorf("%w: getMarket: %v", ErrReadFailed, err)
	}
	market, err := exchange.ParseMarketReturn(perpetualID, ret)
	if err != nil {
		return domain.MarketState{}, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	return market, nil
}

// Fees reads one perpetual's taker/maker fee schedule.
func (r *Reader) Fees(ctx context.Context, perpetualID uint32) (domain.FeeSchedule, error) {
	ret, err := r.client.CallContract(ctx, chain.CallMsg{
		To:   r.exchange,
		Data: exchange.EncodeGetFees(perpetualID),
	}, "latest")
	if err != nil {
		return domain.FeeSchedule{}, fmt.Errorf("%w: getFees: %v", ErrReadFailed, err)
	}
	fees, err := exchange.ParseFeesReturn(ret)
	if err != nil {
		return domain.FeeSchedule{}, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	return fees, nil
}
