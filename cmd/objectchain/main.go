package main

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"objectchain/core"
	"objectchain/pkg/config"
)

func main() {
	rootCmd := &cobra.Command{Use: "objectchain"}
	rootCmd.AddCommand(keygenCmd())
	rootCmd.AddCommand(genesisCmd())
	rootCmd.AddCommand(mineCmd())
	rootCmd.AddCommand(txCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(mapCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadGenesisAlloc(path string) (core.GenesisAlloc, error) {
	if path == "" {
		return core.GenesisAlloc{}, nil
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return core.GenesisAlloc{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read genesis alloc %s: %w", path, err)
	}
	var alloc core.GenesisAlloc
	if err := json.Unmarshal(b, &alloc); err != nil {
		return nil, fmt.Errorf("parse genesis alloc %s: %w", path, err)
	}
	return alloc, nil
}

func openChainStore(cfg *config.Config) (*core.ChainStore, error) {
	dataDir := cfg.Storage.DataDir
	if dataDir == "" {
		dataDir = "./data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dataDir, err)
	}
	cscfg := core.ChainStoreConfig{
		WALPath:       filepath.Join(dataDir, "chain.wal"),
		SnapshotPath:  filepath.Join(dataDir, "chain.snapshot"),
		ArchivePath:   filepath.Join(dataDir, "chain.archive.gz"),
		PruneInterval: cfg.Storage.PruneInterval,
	}
	return core.OpenChainStore(cscfg, logrus.StandardLogger())
}

func soloGroup(priv *ecdsa.PrivateKey) (core.MinerGroup, core.Address) {
	pub := crypto.FromECDSAPub(&priv.PublicKey)
	addr := core.AddressFromPubkey(pub)
	return core.MinerGroup{Addresses: []core.Address{addr}, Keys: [][]byte{pub}}, addr
}

func signerFor(priv *ecdsa.PrivateKey) func(core.Hash) (core.Signature, error) {
	return func(digest core.Hash) (core.Signature, error) {
		return core.SignDescWithKey(priv, digest, time.Now().Unix())
	}
}

func keygenCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "generate a secp256k1 miner/account key",
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, err := crypto.GenerateKey()
			if err != nil {
				return err
			}
			if err := crypto.SaveECDSA(out, priv); err != nil {
				return fmt.Errorf("save key: %w", err)
			}
			pub := crypto.FromECDSAPub(&priv.PublicKey)
			fmt.Printf("address: %s\n", core.AddressFromPubkey(pub))
			fmt.Printf("key written to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "node.key", "path to write the generated private key")
	return cmd
}

func genesisCmd() *cobra.Command {
	var env, keyPath, allocPath string
	cmd := &cobra.Command{
		Use:   "genesis",
		Short: "seal block 0 from a genesis allocation under a solo miner key",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(env)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			priv, err := crypto.LoadECDSA(keyPath)
			if err != nil {
				return fmt.Errorf("load miner key: %w", err)
			}
			group, leader := soloGroup(priv)

			if allocPath == "" {
				allocPath = cfg.Network.GenesisFile
			}
			alloc, err := loadGenesisAlloc(allocPath)
			if err != nil {
				return err
			}

			cs, err := openChainStore(cfg)
			if err != nil {
				return err
			}
			defer cs.Close()
			if tip := cs.Tip(); tip != nil {
				return fmt.Errorf("chain already sealed through height %d; refusing to re-seal genesis", tip.Header.Height)
			}

			state := core.NewStateStore(nil)
			if err := core.ApplyGenesisAlloc(state, alloc); err != nil {
				return err
			}
			sched := core.NewScheduler()
			core.RegisterDefaultHandlers(sched)

			blk, _, _, err := core.BuildBlock(state, core.Hash{}, 0, time.Now().Unix(), leader, nil, sched, group.Addresses)
			if err != nil {
				return fmt.Errorf("build genesis block: %w", err)
			}
			sig, err := signerFor(priv)(blk.Header.Hash())
			if err != nil {
				return fmt.Errorf("sign genesis block: %w", err)
			}
			sig.Source = core.SignSource{Kind: core.SignSourceRefIndex, RefIndex: 0}
			blk.Sigs = []core.Signature{sig}

			if err := cs.Append(blk); err != nil {
				return fmt.Errorf("append genesis block: %w", err)
			}
			fmt.Printf("genesis sealed: hash=%s state_root=%s\n", blk.Header.Hash(), blk.Header.StateRoot)
			return nil
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "config environment overlay")
	cmd.Flags().StringVar(&keyPath, "key", "node.key", "miner private key file")
	cmd.Flags().StringVar(&allocPath, "alloc", "", "genesis allocation JSON file (defaults to network.genesis_file)")
	return cmd
}

func mineCmd() *cobra.Command {
	var env, keyPath string
	var once bool
	cmd := &cobra.Command{
		Use:   "mine",
		Short: "run a solo BFT miner, sealing one block per configured interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(env)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			priv, err := crypto.LoadECDSA(keyPath)
			if err != nil {
				return fmt.Errorf("load miner key: %w", err)
			}
			group, leader := soloGroup(priv)

			alloc, err := loadGenesisAlloc(cfg.Network.GenesisFile)
			if err != nil {
				return err
			}
			cs, err := openChainStore(cfg)
			if err != nil {
				return err
			}
			defer cs.Close()

			sched := core.NewScheduler()
			core.RegisterDefaultHandlers(sched)
			state, prevHash, err := core.RebuildState(cs, alloc, group, sched)
			if err != nil {
				return fmt.Errorf("rebuild state: %w", err)
			}

			interval := time.Duration(cfg.Miner.IntervalSeconds) * time.Second
			if interval <= 0 {
				interval = 15 * time.Second
			}
			height := uint64(0)
			prevLeaderIdx := -1
			if tip := cs.Tip(); tip != nil {
				height = tip.Header.Height + 1
				prevLeaderIdx = group.IndexOf(tip.Header.Leader)
			}

			net := newLoopbackNetwork(leader)
			miner := core.NewBFTMiner(leader, 0, group, net, state, sched, logrus.StandardLogger())
			sign := signerFor(priv)

			mineOne := func() error {
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				defer cancel()
				buildFn := func() (*core.Block, error) {
					blk, work, _, err := core.BuildBlock(state, prevHash, height, time.Now().Unix(), leader, nil, sched, group.Addresses)
					if err != nil {
						return nil, err
					}
					state = work
					return blk, nil
				}
				blk, err := miner.Run(ctx, height, prevLeaderIdx, buildFn, sign)
				if err != nil {
					return err
				}
				if err := cs.Append(blk); err != nil {
					return err
				}
				prevHash = blk.Header.Hash()
				prevLeaderIdx = group.IndexOf(blk.Header.Leader)
				height++
				fmt.Printf("sealed block height=%d hash=%s\n", blk.Header.Height, blk.Header.Hash())
				return nil
			}

			if once {
				return mineOne()
			}
			for {
				if err := mineOne(); err != nil {
					logrus.WithError(err).Warn("mine: block round failed")
				}
				time.Sleep(interval)
			}
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "config environment overlay")
	cmd.Flags().StringVar(&keyPath, "key", "node.key", "miner private key file")
	cmd.Flags().BoolVar(&once, "once", false, "seal exactly one block then exit")
	return cmd
}

func txCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "tx", Short: "submit transactions against the local chain"}
	cmd.AddCommand(txTransferCmd())
	return cmd
}

func txTransferCmd() *cobra.Command {
	var env, keyPath, minerKeyPath, to, coin string
	var amount, nonce int64
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "seal a new block containing a single signed balance transfer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(env)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if minerKeyPath == "" {
				minerKeyPath = keyPath
			}
			senderPriv, err := crypto.LoadECDSA(keyPath)
			if err != nil {
				return fmt.Errorf("load sender key: %w", err)
			}
			minerPriv, err := crypto.LoadECDSA(minerKeyPath)
			if err != nil {
				return fmt.Errorf("load miner key: %w", err)
			}
			group, leader := soloGroup(minerPriv)

			toAddr, err := core.ParseAddress(to)
			if err != nil {
				return fmt.Errorf("parse --to: %w", err)
			}

			alloc, err := loadGenesisAlloc(cfg.Network.GenesisFile)
			if err != nil {
				return err
			}
			cs, err := openChainStore(cfg)
			if err != nil {
				return err
			}
			defer cs.Close()

			sched := core.NewScheduler()
			core.RegisterDefaultHandlers(sched)
			state, prevHash, err := core.RebuildState(cs, alloc, group, sched)
			if err != nil {
				return fmt.Errorf("rebuild state: %w", err)
			}

			senderPub := crypto.FromECDSAPub(&senderPriv.PublicKey)
			tx := &core.Transaction{
				Nonce:    nonce,
				Caller:   core.AddressFromPubkey(senderPub),
				GasCoin:  coin,
				GasPrice: 1,
				MaxFee:   100,
				Body:     &core.TransBalanceBody{To: toAddr, Coin: coin, Amount: amount},
			}
			sig, err := core.SignDescWithKey(senderPriv, tx.Hash(), time.Now().Unix())
			if err != nil {
				return fmt.Errorf("sign transfer: %w", err)
			}
			tx.Sig = sig

			height := uint64(0)
			if tip := cs.Tip(); tip != nil {
				height = tip.Header.Height + 1
			}

			blk, _, receipts, err := core.BuildBlock(state, prevHash, height, time.Now().Unix(), leader, []*core.Transaction{tx}, sched, group.Addresses)
			if err != nil {
				return fmt.Errorf("build block: %w", err)
			}
			if len(blk.Txs) == 0 {
				return fmt.Errorf("transfer was dropped while building the block (bad signature or execution error)")
			}

			hsig, err := signerFor(minerPriv)(blk.Header.Hash())
			if err != nil {
				return fmt.Errorf("sign block: %w", err)
			}
			hsig.Source = core.SignSource{Kind: core.SignSourceRefIndex, RefIndex: 0}
			blk.Sigs = []core.Signature{hsig}

			if err := cs.Append(blk); err != nil {
				return fmt.Errorf("append block: %w", err)
			}
			fmt.Printf("sealed block height=%d hash=%s receipt=%v\n", blk.Header.Height, blk.Header.Hash(), receipts[0].Result)
			return nil
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "config environment overlay")
	cmd.Flags().StringVar(&keyPath, "key", "node.key", "sender private key file")
	cmd.Flags().StringVar(&minerKeyPath, "miner-key", "", "miner private key file (defaults to --key, solo devnet mode)")
	cmd.Flags().StringVar(&to, "to", "", "recipient address (hex)")
	cmd.Flags().StringVar(&coin, "coin", "OBJ", "coin symbol")
	cmd.Flags().Int64Var(&amount, "amount", 0, "amount to transfer")
	cmd.Flags().Int64Var(&nonce, "nonce", 0, "sender account nonce")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func statusCmd() *cobra.Command {
	var env, allocPath, minerKeyPath, addr, coin string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "print the chain tip and, if a miner key and address are given, an account balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(env)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cs, err := openChainStore(cfg)
			if err != nil {
				return err
			}
			defer cs.Close()

			tip := cs.Tip()
			if tip == nil {
				fmt.Println("chain is empty (no genesis sealed yet)")
				return nil
			}
			fmt.Printf("tip height=%d hash=%s state_root=%s leader=%s\n",
				tip.Header.Height, tip.Header.Hash(), tip.Header.StateRoot, tip.Header.Leader)

			if addr == "" {
				return nil
			}
			if minerKeyPath == "" {
				return fmt.Errorf("--miner-key is required to replay state for a balance query")
			}
			minerPriv, err := crypto.LoadECDSA(minerKeyPath)
			if err != nil {
				return fmt.Errorf("load miner key: %w", err)
			}
			group, _ := soloGroup(minerPriv)

			if allocPath == "" {
				allocPath = cfg.Network.GenesisFile
			}
			alloc, err := loadGenesisAlloc(allocPath)
			if err != nil {
				return err
			}
			sched := core.NewScheduler()
			core.RegisterDefaultHandlers(sched)
			state, _, err := core.RebuildState(cs, alloc, group, sched)
			if err != nil {
				return fmt.Errorf("rebuild state: %w", err)
			}

			a, err := core.ParseAddress(addr)
			if err != nil {
				return fmt.Errorf("parse --address: %w", err)
			}
			fmt.Printf("balance(%s, %s) = %d\n", coin, a, state.Balance(coin, a))
			return nil
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "config environment overlay")
	cmd.Flags().StringVar(&allocPath, "alloc", "", "genesis allocation JSON file (defaults to network.genesis_file)")
	cmd.Flags().StringVar(&minerKeyPath, "miner-key", "", "miner private key file, required to verify blocks for a balance query")
	cmd.Flags().StringVar(&addr, "address", "", "account address to query (hex)")
	cmd.Flags().StringVar(&coin, "coin", "OBJ", "coin symbol")
	return cmd
}

// mapStoreRootFile is where the standalone map store keeps the hex id of its
// current root, alongside the node blobs fileBlobStore writes into the same
// directory.
const mapStoreRootFile = "ROOT"

func openMapStore(dir string) (*core.NodeCache, error) {
	backend, err := newFileBlobStore(dir)
	if err != nil {
		return nil, fmt.Errorf("open map store %s: %w", dir, err)
	}
	return core.NewNodeCache(backend, 0, logrus.StandardLogger())
}

func loadMapRoot(dir string) (*core.ObjectMap, *core.NodeCache, error) {
	store, err := openMapStore(dir)
	if err != nil {
		return nil, nil, err
	}
	raw, err := os.ReadFile(filepath.Join(dir, mapStoreRootFile))
	if os.IsNotExist(err) {
		return core.NewObjectMap(core.ContentMap), store, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read map root: %w", err)
	}
	id, err := core.ParseObjectId(string(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("parse map root: %w", err)
	}
	root, err := store.Load(id)
	if err != nil {
		return nil, nil, fmt.Errorf("load map root %s: %w", id, err)
	}
	return root, store, nil
}

func saveMapRoot(dir string, store *core.NodeCache, m *core.ObjectMap) (core.ObjectId, error) {
	id, err := store.Save(m)
	if err != nil {
		return core.ObjectId{}, fmt.Errorf("save map root: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, mapStoreRootFile), []byte(id.String()), 0o644); err != nil {
		return core.ObjectId{}, fmt.Errorf("write map root: %w", err)
	}
	return id, nil
}

// mapCmd exposes the ObjectMap engine directly over a standalone on-disk
// store, independent of any running chain's name index, for inspecting or
// building trees offline.
func mapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map",
		Short: "inspect and build ObjectMap trees against an on-disk node store",
	}
	cmd.AddCommand(mapGetCmd())
	cmd.AddCommand(mapSetCmd())
	cmd.AddCommand(mapRemoveCmd())
	cmd.AddCommand(mapDiffCmd())
	cmd.AddCommand(mapApplyCmd())
	return cmd
}

func mapGetCmd() *cobra.Command {
	var store string
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "look up key's committed object id in the map store's current root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, nc, err := loadMapRoot(store)
			if err != nil {
				return err
			}
			id, ok, err := root.Get(nc, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("key %q not found", args[0])
			}
			fmt.Println(id.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&store, "store", "./mapstore", "directory backing the map's node blobs and root pointer")
	return cmd
}

func mapSetCmd() *cobra.Command {
	var store string
	cmd := &cobra.Command{
		Use:   "set <key> <value-object-id>",
		Short: "set key to value in the map store, sealing a new root",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := core.ParseObjectId(args[1])
			if err != nil {
				return fmt.Errorf("parse value object id: %w", err)
			}
			root, nc, err := loadMapRoot(store)
			if err != nil {
				return err
			}
			next, err := root.Set(nc, args[0], value)
			if err != nil {
				return err
			}
			id, err := saveMapRoot(store, nc, next)
			if err != nil {
				return err
			}
			fmt.Println(id.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&store, "store", "./mapstore", "directory backing the map's node blobs and root pointer")
	return cmd
}

func mapRemoveCmd() *cobra.Command {
	var store string
	cmd := &cobra.Command{
		Use:   "remove <key>",
		Short: "remove key from the map store, sealing a new root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, nc, err := loadMapRoot(store)
			if err != nil {
				return err
			}
			next, err := root.Remove(nc, args[0])
			if err != nil {
				return err
			}
			id, err := saveMapRoot(store, nc, next)
			if err != nil {
				return err
			}
			fmt.Println(id.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&store, "store", "./mapstore", "directory backing the map's node blobs and root pointer")
	return cmd
}

func mapDiffCmd() *cobra.Command {
	var store, prevID, nextID string
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "diff two sealed roots in the map store, sealing a DiffMap root",
		RunE: func(cmd *cobra.Command, args []string) error {
			nc, err := openMapStore(store)
			if err != nil {
				return err
			}
			prev, next, err := loadDiffOperands(nc, prevID, nextID)
			if err != nil {
				return err
			}
			diff, err := core.DiffObjectMaps(nc, prev, next)
			if err != nil {
				return fmt.Errorf("diff: %w", err)
			}
			id, err := nc.Save(diff)
			if err != nil {
				return fmt.Errorf("save diff root: %w", err)
			}
			fmt.Println(id.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&store, "store", "./mapstore", "directory backing the map's node blobs")
	cmd.Flags().StringVar(&prevID, "prev", "", "prior root object id")
	cmd.Flags().StringVar(&nextID, "next", "", "new root object id")
	cmd.MarkFlagRequired("prev")
	cmd.MarkFlagRequired("next")
	return cmd
}

func loadDiffOperands(nc *core.NodeCache, prevID, nextID string) (*core.ObjectMap, *core.ObjectMap, error) {
	prevObjID, err := core.ParseObjectId(prevID)
	if err != nil {
		return nil, nil, fmt.Errorf("parse prev object id: %w", err)
	}
	nextObjID, err := core.ParseObjectId(nextID)
	if err != nil {
		return nil, nil, fmt.Errorf("parse next object id: %w", err)
	}
	prev, err := nc.Load(prevObjID)
	if err != nil {
		return nil, nil, fmt.Errorf("load prev root %s: %w", prevObjID, err)
	}
	next, err := nc.Load(nextObjID)
	if err != nil {
		return nil, nil, fmt.Errorf("load next root %s: %w", nextObjID, err)
	}
	return prev, next, nil
}

func mapApplyCmd() *cobra.Command {
	var store, sourceID, diffID string
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "apply a sealed DiffMap root onto a source root, sealing the merged root",
		RunE: func(cmd *cobra.Command, args []string) error {
			nc, err := openMapStore(store)
			if err != nil {
				return err
			}
			srcObjID, err := core.ParseObjectId(sourceID)
			if err != nil {
				return fmt.Errorf("parse source object id: %w", err)
			}
			diffObjID, err := core.ParseObjectId(diffID)
			if err != nil {
				return fmt.Errorf("parse diff object id: %w", err)
			}
			source, err := nc.Load(srcObjID)
			if err != nil {
				return fmt.Errorf("load source root %s: %w", srcObjID, err)
			}
			diffObj, err := nc.Load(diffObjID)
			if err != nil {
				return fmt.Errorf("load diff root %s: %w", diffObjID, err)
			}
			merged, changed, err := core.ApplyDiff(nc, source, diffObj)
			if err != nil {
				return fmt.Errorf("apply diff: %w", err)
			}
			id, err := nc.Save(merged)
			if err != nil {
				return fmt.Errorf("save merged root: %w", err)
			}
			fmt.Println(id.String())
			for _, key := range changed {
				fmt.Printf("changed: %s\n", key)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&store, "store", "./mapstore", "directory backing the map's node blobs")
	cmd.Flags().StringVar(&sourceID, "source", "", "source root object id")
	cmd.Flags().StringVar(&diffID, "diff", "", "diff root object id to apply")
	cmd.MarkFlagRequired("source")
	cmd.MarkFlagRequired("diff")
	return cmd
}
