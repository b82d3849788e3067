package core

import (
	"os"
	"path/filepath"
	"testing"
)

func tmpChainStoreConfig(t *testing.T) ChainStoreConfig {
	dir := t.TempDir()
	return ChainStoreConfig{
		WALPath:       filepath.Join(dir, "wal.log"),
		SnapshotPath:  filepath.Join(dir, "snap.bin"),
		ArchivePath:   filepath.Join(dir, "archive.gz"),
		PruneInterval: 1000,
	}
}

func mustBlock(height uint64, prev Hash) *Block {
	h := BlockHeader{Height: height, PrevHash: prev}
	return &Block{Header: h}
}

func TestOpenChainStoreEmpty(t *testing.T) {
	cfg := tmpChainStoreConfig(t)
	cs, err := OpenChainStore(cfg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer cs.Close()
	if cs.Tip() != nil {
		t.Fatalf("expected empty store, got a tip")
	}
}

func TestAppendHeightAndChainChecks(t *testing.T) {
	cfg := tmpChainStoreConfig(t)
	cs, err := OpenChainStore(cfg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer cs.Close()

	genesis := mustBlock(0, Hash{})
	if err := cs.Append(genesis); err != nil {
		t.Fatalf("append genesis: %v", err)
	}

	bad := mustBlock(2, genesis.Header.Hash())
	if err := cs.Append(bad); err == nil {
		t.Fatalf("expected height mismatch error")
	}

	wrongPrev := mustBlock(1, Hash{0xAA})
	if err := cs.Append(wrongPrev); err == nil {
		t.Fatalf("expected prev_hash mismatch error")
	}

	next := mustBlock(1, genesis.Header.Hash())
	if err := cs.Append(next); err != nil {
		t.Fatalf("append next: %v", err)
	}
	if got := cs.Tip().Header.Height; got != 1 {
		t.Fatalf("tip height = %d, want 1", got)
	}
}

func TestReplayRecoversWALContents(t *testing.T) {
	cfg := tmpChainStoreConfig(t)
	cs, err := OpenChainStore(cfg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	genesis := mustBlock(0, Hash{})
	if err := cs.Append(genesis); err != nil {
		t.Fatalf("append genesis: %v", err)
	}
	next := mustBlock(1, genesis.Header.Hash())
	if err := cs.Append(next); err != nil {
		t.Fatalf("append next: %v", err)
	}
	if err := cs.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenChainStore(cfg, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if got := reopened.Tip().Header.Height; got != 1 {
		t.Fatalf("replayed tip height = %d, want 1", got)
	}
	if _, err := reopened.ByHash(genesis.Header.Hash()); err != nil {
		t.Fatalf("lookup genesis by hash: %v", err)
	}
}

func TestByHeightNotFound(t *testing.T) {
	cfg := tmpChainStoreConfig(t)
	cs, err := OpenChainStore(cfg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer cs.Close()
	genesis := mustBlock(0, Hash{})
	if err := cs.Append(genesis); err != nil {
		t.Fatalf("append genesis: %v", err)
	}
	if _, err := cs.ByHeight(5); !IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestRollbackToDiscardsAboveHeight(t *testing.T) {
	cfg := tmpChainStoreConfig(t)
	cs, err := OpenChainStore(cfg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer cs.Close()

	prev := Hash{}
	var blocks []*Block
	for i := uint64(0); i <= 3; i++ {
		b := mustBlock(i, prev)
		if err := cs.Append(b); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		blocks = append(blocks, b)
		prev = b.Header.Hash()
	}

	if err := cs.RollbackTo(1); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if got := cs.Tip().Header.Height; got != 1 {
		t.Fatalf("tip height after rollback = %d, want 1", got)
	}
	if _, err := cs.ByHash(blocks[3].Header.Hash()); !IsNotFound(err) {
		t.Fatalf("expected rolled-back block to be gone")
	}

	// Re-opening from the rewritten WAL must agree with the in-memory state.
	if err := cs.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	reopened, err := OpenChainStore(cfg, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if got := reopened.Tip().Header.Height; got != 1 {
		t.Fatalf("reopened tip height = %d, want 1", got)
	}
}

func TestPruneArchivesOldBlocks(t *testing.T) {
	cfg := tmpChainStoreConfig(t)
	cfg.PruneInterval = 2
	cs, err := OpenChainStore(cfg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer cs.Close()

	prev := Hash{}
	for i := uint64(0); i <= 3; i++ {
		b := mustBlock(i, prev)
		if err := cs.Append(b); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		prev = b.Header.Hash()
	}

	if got := len(cs.blocks); got != 2 {
		t.Fatalf("expected 2 blocks retained after prune, got %d", got)
	}
	info, err := os.Stat(cfg.ArchivePath)
	if err != nil {
		t.Fatalf("archive stat: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("archive file empty")
	}
}
