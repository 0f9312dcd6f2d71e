// Package mpt implements a minimal Merkle Patricia Trie used to
// authenticate L1 transactions and receipts against the roots committed to
// in a block header. It only supports insertion and hashing — there is no
// deletion and no proof generation, since the pipeline only ever builds a
// fresh trie from a known block body and compares roots.
package mpt

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// MPT is a Merkle Patricia Trie keyed by arbitrary byte strings.
type MPT struct {
	root node
}

// New returns an empty trie.
func New() *MPT {
	return &MPT{}
}

// Insert adds a key/value pair to the trie. Inserting the same key twice
// panics, since the trie has no update semantics — every key the
// derivation pipeline inserts (a transaction or receipt index) is unique
// by construction.
func (t *MPT) Insert(key, value []byte) {
	nibbles := bytesToNibbles(key)
	t.root = insertNode(t.root, nibbles, value)
}

// Hash returns the root hash of the trie.
func (t *MPT) Hash() common.Hash {
	return hashOf(t.root)
}

// DeriveRoot builds a trie from a list of already RLP-encoded items
// (transactions or receipts, in the order they appear in the block body)
// keyed by their RLP-encoded index, and returns its root hash. This is
// Ethereum's standard transactions_root/receipts_root construction, used
// to authenticate a block body fetched from an untrusted RPC against the
// root committed to in its header.
func DeriveRoot(items [][]byte) common.Hash {
	t := New()
	for i, item := range items {
		key, err := rlp.EncodeToBytes(uint(i))
		if err != nil {
			panic("mpt: rlp encode of a trie index cannot fail: " + err.Error())
		}
		t.Insert(key, item)
	}
	return t.Hash()
}
