package mpt

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// node is implemented by the four MPT node variants: nil stands in for
// Empty (the zero value of the interface), so only branchNode,
// extensionNode, and valueNode carry a concrete type.
type node interface {
	insert(nibbles, value []byte) node
	encode() []byte
	hash() common.Hash
}

// valueNode is a terminal node holding the bytes stored at some key.
type valueNode struct {
	value []byte
	cache *common.Hash
}

// branchNode has 16 child slots, one per nibble, plus an optional value for
// a key that terminates exactly at this node.
type branchNode struct {
	children [16]node
	value    []byte
	cache    *common.Hash
}

// extensionNode holds a shared nibble path to a single child, which must be
// a branch or a value node — never empty, never another extension.
type extensionNode struct {
	nibbles []byte
	child   node
	cache   *common.Hash
}

// insertNode dispatches to the receiver's insert, treating a nil node (the
// Empty variant) as the base case.
func insertNode(n node, nibbles, value []byte) node {
	if n == nil {
		return newLeaf(nibbles, value)
	}
	return n.insert(nibbles, value)
}

func newLeaf(nibbles, value []byte) node {
	if len(nibbles) == 0 {
		return &valueNode{value: value}
	}
	return &extensionNode{nibbles: append([]byte(nil), nibbles...), child: &valueNode{value: value}}
}

// wrapWithNibbles re-extends child behind nibbles, or returns child
// unchanged if nibbles is empty — the Go analogue of Node::new_with_node.
func wrapWithNibbles(nibbles []byte, child node) node {
	if len(nibbles) == 0 {
		return child
	}
	return &extensionNode{nibbles: append([]byte(nil), nibbles...), child: child}
}

func (v *valueNode) insert(nibbles, value []byte) node {
	panic("mpt: cannot insert into a value node, duplicate key")
}

func (b *branchNode) insert(nibbles, value []byte) node {
	b.cache = nil
	if len(nibbles) == 0 {
		if b.value != nil {
			panic("mpt: cannot double insert into a branch node, duplicate key")
		}
		b.value = value
		return b
	}
	i := nibbles[0]
	b.children[i] = insertNode(b.children[i], nibbles[1:], value)
	return b
}

func (e *extensionNode) insert(nibbles, value []byte) node {
	common, newRem, oldRem := matchPaths(nibbles, e.nibbles)
	if len(newRem) == 0 && len(oldRem) == 0 {
		panic("mpt: paths cannot be the same, duplicate key")
	}

	// Inserting here always creates a branch node: turn the existing node
	// into that branch node, then insert the new value into it.
	var branch *branchNode
	if len(oldRem) == 0 {
		switch child := e.child.(type) {
		case *branchNode:
			branch = child
		case *valueNode:
			branch = &branchNode{value: child.value}
		default:
			panic("mpt: extension child must be a branch or a value")
		}
	} else {
		branch = &branchNode{}
		branch.children[oldRem[0]] = wrapWithNibbles(oldRem[1:], e.child)
	}

	newRoot := branch.insert(newRem, value)

	// Wrap the branch in an extension based on the common part, if needed.
	if len(common) == 0 {
		return newRoot
	}
	return &extensionNode{nibbles: common, child: newRoot}
}

// rlpString is the RLP encoding of a plain byte string.
func rlpString(b []byte) []byte {
	enc, err := rlp.EncodeToBytes(b)
	if err != nil {
		panic("mpt: rlp encode of a byte string cannot fail: " + err.Error())
	}
	return enc
}

// childRef computes the RLP-embeddable reference to child used by its
// parent's own encoding: the child's RLP directly if short enough,
// otherwise keccak256 of the child's RLP.
func childRef(child node) []byte {
	if child == nil {
		return rlpString(nil)
	}
	enc := child.encode()
	if len(enc) < 32 {
		return enc
	}
	h := crypto.Keccak256(enc)
	return rlpString(h)
}

// encode renders a value reached directly (as a branch child, or as the
// root) the way Ethereum does: a leaf node with an empty path.
func (v *valueNode) encode() []byte {
	items := []rlp.RawValue{rlp.RawValue(rlpString(nibblesToCompact(nil, false))), rlp.RawValue(rlpString(v.value))}
	enc, err := rlp.EncodeToBytes(items)
	if err != nil {
		panic("mpt: rlp encode of a leaf node cannot fail: " + err.Error())
	}
	return enc
}

func (b *branchNode) encode() []byte {
	items := make([]rlp.RawValue, 17)
	for i := 0; i < 16; i++ {
		items[i] = rlp.RawValue(childRef(b.children[i]))
	}
	items[16] = rlp.RawValue(rlpString(b.value))
	enc, err := rlp.EncodeToBytes(items)
	if err != nil {
		panic("mpt: rlp encode of a branch node cannot fail: " + err.Error())
	}
	return enc
}

func (e *extensionNode) encode() []byte {
	_, isBranch := e.child.(*branchNode)
	path := nibblesToCompact(e.nibbles, isBranch)
	// A leaf (extension over a value) embeds the value itself, whatever its
	// length; only a branch child goes through the reference rule.
	ref := childRef(e.child)
	if v, ok := e.child.(*valueNode); ok {
		ref = rlpString(v.value)
	}
	items := []rlp.RawValue{rlp.RawValue(rlpString(path)), rlp.RawValue(ref)}
	enc, err := rlp.EncodeToBytes(items)
	if err != nil {
		panic("mpt: rlp encode of an extension node cannot fail: " + err.Error())
	}
	return enc
}

func (v *valueNode) hash() common.Hash {
	if v.cache != nil {
		return *v.cache
	}
	h := crypto.Keccak256Hash(v.encode())
	v.cache = &h
	return h
}

func (b *branchNode) hash() common.Hash {
	if b.cache != nil {
		return *b.cache
	}
	h := crypto.Keccak256Hash(b.encode())
	b.cache = &h
	return h
}

func (e *extensionNode) hash() common.Hash {
	if e.cache != nil {
		return *e.cache
	}
	h := crypto.Keccak256Hash(e.encode())
	e.cache = &h
	return h
}

// hashOf returns the hash of n, treating nil (Empty) as the hash of the
// empty RLP string — the same convention Ethereum uses for an empty trie.
func hashOf(n node) common.Hash {
	if n == nil {
		return crypto.Keccak256Hash(rlpString(nil))
	}
	return n.hash()
}
