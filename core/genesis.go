package core

// genesis.go – the initial balance allocation every node loads from its
// configured genesis file before replaying or extending the chain. Kept
// out of the chain log itself (no special mint transaction kind): like a
// typical genesis.json, it is supplied by configuration and must be
// identical across every node replaying the same chain, exactly as
// Network.GenesisFile already names a file in pkg/config.Config.

// GenesisAlloc maps coin symbol -> hex address -> opening balance.
type GenesisAlloc map[string]map[string]int64

// ApplyGenesisAlloc seeds state with every balance named in alloc. Called
// once before block 0 is built or replayed, so it must be deterministic and
// order-independent — SetBalance is idempotent per (coin, address).
func ApplyGenesisAlloc(state *StateStore, alloc GenesisAlloc) error {
	for coin, balances := range alloc {
		for hexAddr, amount := range balances {
			addr, err := ParseAddress(hexAddr)
			if err != nil {
				return NewErr(ErrInvalidParam, "genesis alloc: %v", err)
			}
			state.SetBalance(coin, addr, amount)
		}
	}
	return nil
}
