package core

// evm.go – the EVM execution entry points used by the CreateContract,
// CreateContract2 and CallContract tx bodies. Wraps go-ethereum's
// core/vm.EVM directly against the Istanbul ruleset (the spec calls out no
// particular fork; Istanbul is the teacher's own pinned default elsewhere
// in its go-ethereum usage) rather than reimplementing an interpreter.

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
)

const evmGasLimit = 8_000_000

func evmChainConfig() *params.ChainConfig {
	return &params.ChainConfig{
		ChainID:             big.NewInt(1),
		HomesteadBlock:      big.NewInt(0),
		EIP150Block:         big.NewInt(0),
		EIP155Block:         big.NewInt(0),
		EIP158Block:         big.NewInt(0),
		ByzantiumBlock:      big.NewInt(0),
		ConstantinopleBlock: big.NewInt(0),
		PetersburgBlock:     big.NewInt(0),
		IstanbulBlock:       big.NewInt(0),
	}
}

func newEVM(ctx *ExecContext, origin Address) *vm.EVM {
	db := newChainStateDB(ctx.State, ctx.Height)
	blockCtx := vm.BlockContext{
		CanTransfer: func(vm.StateDB, common.Address, *uint256.Int) bool { return true },
		Transfer:    func(vm.StateDB, common.Address, common.Address, *uint256.Int) {},
		GetHash:     func(uint64) common.Hash { return common.Hash{} },
		Coinbase:    common.Address{},
		BlockNumber: new(big.Int).SetUint64(ctx.Height),
		Time:        uint64(ctx.Now),
		Difficulty:  big.NewInt(0),
		BaseFee:     big.NewInt(0),
		GasLimit:    evmGasLimit,
	}
	txCtx := vm.TxContext{
		Origin:   common.BytesToAddress(origin[:]),
		GasPrice: big.NewInt(1),
	}
	return vm.NewEVM(blockCtx, txCtx, db, evmChainConfig(), vm.Config{})
}

// evmCreate deploys code, returning the deployed contract's address and any
// constructor return data (its runtime code).
func evmCreate(ctx *ExecContext, caller Address, code []byte, value int64, gas uint64) (Address, []byte, uint64, error) {
	e := newEVM(ctx, caller)
	ret, addr, leftover, err := e.Create(common.BytesToAddress(caller[:]), code, gas, uint256.NewInt(uint64(value)))
	if err != nil {
		return Address{}, nil, gas - leftover, NewErr(ErrInvalidData, "evm create: %v", err)
	}
	return toAddress(addr), ret, gas - leftover, nil
}

// evmCreate2 deploys code at a CREATE2-derived deterministic address.
func evmCreate2(ctx *ExecContext, caller Address, code []byte, salt Hash, value int64, gas uint64) (Address, []byte, uint64, error) {
	e := newEVM(ctx, caller)
	saltInt := new(uint256.Int).SetBytes(salt[:])
	ret, addr, leftover, err := e.Create2(common.BytesToAddress(caller[:]), code, gas, uint256.NewInt(uint64(value)), saltInt)
	if err != nil {
		return Address{}, nil, gas - leftover, NewErr(ErrInvalidData, "evm create2: %v", err)
	}
	return toAddress(addr), ret, gas - leftover, nil
}

// evmCall invokes an already-deployed contract.
func evmCall(ctx *ExecContext, caller, target Address, input []byte, value int64, gas uint64) ([]byte, uint64, error) {
	e := newEVM(ctx, caller)
	ret, leftover, err := e.Call(common.BytesToAddress(caller[:]), common.BytesToAddress(target[:]), input, gas, uint256.NewInt(uint64(value)))
	if err != nil {
		return ret, gas - leftover, NewErr(ErrInvalidData, "evm call: %v", err)
	}
	return ret, gas - leftover, nil
}

// contractAddressFromNonce derives the address a plain CreateContract
// deployment will land at, mirroring Ethereum's keccak256(rlp(sender,
// nonce))[12:] rule so callers can predict it before execution.
func contractAddressFromNonce(caller Address, nonce int64) Address {
	return toAddress(crypto.CreateAddress(common.BytesToAddress(caller[:]), uint64(nonce)))
}
