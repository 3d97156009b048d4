// Package cache tracks the nodes and handles a filesystem backend has given
// out to the kernel. Node IDs and handle IDs are allocated here; backends
// attach their own state to each entry through the Node and Handle
// interfaces.
package cache

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"go.uber.org/atomic"

	"github.com/flintfs/flint"
)

// Cache tracks live nodes and handles for a backend.
type Cache struct {
	log log.Logger

	mut        sync.RWMutex
	nodes      map[flint.Node]*cachedNode
	nodeKeys   map[Key]*cachedNode
	nextID     uint64
	generation uint64

	handleMut    sync.RWMutex
	handles      map[flint.Handle]*cachedHandle
	availHandles []flint.Handle
	nextHandle   flint.Handle
}

type cachedNode struct {
	Node Node
	Info NodeInfo

	// refs mirrors the kernel's lookup count for the node. The node is
	// removed once forgets bring it back down to zero.
	refs atomic.Uint64
}

type cachedHandle struct {
	Handle Handle
	Info   HandleInfo
}

// Node is backend state attached to a cached node.
type Node interface {
	// Close is called when the Node is fully removed from the cache.
	Close() error
}

// Handle is backend state attached to a cached handle.
type Handle interface {
	// Close is called when the Handle is fully removed from the cache.
	Close() error
}

// NodeInfo identifies a cached node.
type NodeInfo struct {
	ID         flint.Node // ID of the Node
	Generation uint64     // Generation of the ID
	Key        Key        // Key used to identify the node
}

// Key is the (parent, name) pair a node was registered under.
type Key struct {
	Parent flint.Node
	Name   string
}

// HandleInfo identifies a cached handle.
type HandleInfo struct {
	ID flint.Handle
}

// New creates a new cache, pre-populated with a root node. The root always
// receives flint.RootNode as its ID.
func New(l log.Logger, rootNode Node) *Cache {
	if l == nil {
		l = log.NewNopLogger()
	}
	c := &Cache{
		log: l,

		nodes:    make(map[flint.Node]*cachedNode),
		nodeKeys: make(map[Key]*cachedNode),
		handles:  make(map[flint.Handle]*cachedHandle),
	}

	_, err := c.AddNode(0, "/", rootNode)
	if err != nil {
		panic(err)
	}
	return c
}

// AddNode stores a new node. If the named node already exists, the node
// argument will be ignored and the reference count of the existing node will
// increase instead.
func (c *Cache) AddNode(parent flint.Node, name string, node Node) (info NodeInfo, err error) {
	c.mut.Lock()
	defer c.mut.Unlock()

	key := Key{Parent: parent, Name: name}
	if n, found := c.nodeKeys[key]; found {
		n.refs.Inc()
		return n.Info, nil
	}

	if parent != 0 {
		_, exist := c.nodes[parent]
		if !exist {
			return info, fmt.Errorf("could not find parent node %d: %w", parent, flint.ErrorStale)
		}
	}

	c.nextID++
	id := c.nextID
	if id == 0 {
		// The ID space wrapped around. Bump the generation so stale (id,
		// generation) pairs held by the kernel stay distinguishable.
		c.generation++
		if c.generation == 0 {
			// The generation space wrapped too. Rewind so the next request
			// fails the same way instead of silently reusing pairs.
			c.generation--
			c.nextID--
			return info, fmt.Errorf("exhausted node ID space: %w", flint.ErrorNoMemory)
		}
		id = 1
		c.nextID = 1
	}

	n := &cachedNode{
		Node: node,
		Info: NodeInfo{
			ID:         flint.Node(id),
			Generation: c.generation,
			Key:        key,
		},
		refs: *atomic.NewUint64(1),
	}

	c.nodes[n.Info.ID] = n
	c.nodeKeys[n.Info.Key] = n
	return n.Info, nil
}

// RenameNode moves a cached node to a new (parent, name) key. Returns
// ErrorNotExist if the source isn't currently cached.
func (c *Cache) RenameNode(parent flint.Node, req *flint.RenameRequest) error {
	c.mut.Lock()
	defer c.mut.Unlock()

	var (
		sourceKey = Key{Parent: parent, Name: req.OldName}
		targetKey = Key{Parent: req.NewDir, Name: req.NewName}
	)

	if _, newParentExist := c.nodes[req.NewDir]; !newParentExist {
		return fmt.Errorf("target directory %d does not exist: %w", req.NewDir, flint.ErrorStale)
	}

	sourceNode, found := c.nodeKeys[sourceKey]
	if !found {
		return fmt.Errorf("source file %s does not exist: %w", req.OldName, flint.ErrorNotExist)
	}

	if req.Flags&flint.RenameExchange != 0 {
		// Exchange keeps both nodes alive with their keys swapped.
		if targetNode, found := c.nodeKeys[targetKey]; found {
			sourceNode.Info.Key, targetNode.Info.Key = targetNode.Info.Key, sourceNode.Info.Key
			c.nodeKeys[sourceKey] = targetNode
			c.nodeKeys[targetKey] = sourceNode
			return nil
		}
	}

	sourceNode.Info.Key = targetKey

	if found := c.nodeKeys[sourceKey]; found == sourceNode {
		delete(c.nodeKeys, sourceKey)
	}
	c.nodeKeys[targetKey] = sourceNode
	return nil
}

// ReleaseNode releases a node. refs are subtracted from the total reference
// count, and the node will be fully removed once the count reaches 0.
func (c *Cache) ReleaseNode(id flint.Node, refs uint64) error {
	var n *cachedNode

	// Close the node in a defer so the lock isn't held for longer than it
	// needs to be.
	defer func() {
		if n == nil || n.Node == nil {
			return
		}
		err := n.Node.Close()
		if err != nil {
			level.Error(c.log).Log("msg", "error when closing released cache node", "id", id, "err", err)
		}
	}()

	c.mut.Lock()
	defer c.mut.Unlock()

	n, ok := c.nodes[id]
	if !ok {
		return flint.ErrorStale
	}
	if n.refs.Sub(refs) > 0 {
		n = nil
		return nil
	}

	delete(c.nodes, id)

	// Only delete the key if it hasn't been taken over by a rename.
	if found := c.nodeKeys[n.Info.Key]; found == n {
		delete(c.nodeKeys, n.Info.Key)
	}
	return nil
}

// GetNode returns the node for ID.
func (c *Cache) GetNode(id flint.Node) (NodeInfo, Node, error) {
	c.mut.RLock()
	defer c.mut.RUnlock()

	n, ok := c.nodes[id]
	if !ok {
		return NodeInfo{}, nil, flint.ErrorStale
	}
	return n.Info, n.Node, nil
}

// GetHandle returns the Handle for a Handle ID.
func (c *Cache) GetHandle(id flint.Handle) (HandleInfo, Handle, error) {
	c.handleMut.RLock()
	defer c.handleMut.RUnlock()

	h, ok := c.handles[id]
	if !ok {
		return HandleInfo{}, nil, flint.ErrorStale
	}
	return h.Info, h.Handle, nil
}

// NodePath returns the path for a node relative to the root of the cache.
func (c *Cache) NodePath(id flint.Node) (string, error) {
	c.mut.RLock()
	defer c.mut.RUnlock()

	start, ok := c.nodes[id]
	if !ok {
		return "", flint.ErrorStale
	}

	// Build up the full file path in reverse.
	var paths []string
	err := c.traverseNodes(start, func(n *cachedNode) {
		paths = append([]string{n.Info.Key.Name}, paths...)
	})
	if err != nil {
		return "", err
	}
	return filepath.Join(paths...), nil
}

// traverseNodes walks the node hierarchy from start until root, calling
// onNode for each node. Returns an error if a parent reference isn't found.
//
// mut must be held while calling traverseNodes.
func (c *Cache) traverseNodes(start *cachedNode, onNode func(*cachedNode)) error {
	cur := start
	for cur != nil {
		onNode(cur)

		parent := cur.Info.Key.Parent
		next, ok := c.nodes[parent]
		if !ok && parent != 0 {
			return fmt.Errorf("could not find parent %d: %w", cur.Info.Key.Parent, flint.ErrorStale)
		}
		cur = next
	}
	return nil
}

// AddHandle stores a new handle, reusing a released handle ID if one is
// available.
func (c *Cache) AddHandle(handle Handle) (HandleInfo, error) {
	c.handleMut.Lock()
	defer c.handleMut.Unlock()

	h := &cachedHandle{Handle: handle}

	if numAvail := len(c.availHandles); numAvail > 0 {
		h.Info.ID = c.availHandles[numAvail-1]
		c.availHandles = c.availHandles[:numAvail-1]
	} else {
		c.nextHandle++
		h.Info.ID = c.nextHandle

		if h.Info.ID == 0 {
			// The handle space is exhausted until some existing handles
			// close.
			c.nextHandle--
			return HandleInfo{}, flint.ErrorNoMemory
		}
	}

	c.handles[h.Info.ID] = h
	return h.Info, nil
}

// ReleaseHandle releases an existing handle.
func (c *Cache) ReleaseHandle(id flint.Handle) error {
	var h *cachedHandle

	// Close the handle in a defer so the lock isn't held for longer than it
	// needs to be.
	defer func() {
		if h == nil || h.Handle == nil {
			return
		}
		err := h.Handle.Close()
		if err != nil {
			level.Error(c.log).Log("msg", "error when closing released cache handle", "id", id, "err", err)
		}
	}()

	c.handleMut.Lock()
	defer c.handleMut.Unlock()

	h, ok := c.handles[id]
	if !ok {
		return flint.ErrorStale
	}

	delete(c.handles, id)
	c.availHandles = append(c.availHandles, id)
	return nil
}
