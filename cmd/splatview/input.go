package main

import "sync"

// keyState tracks held keys. Written on the window thread, read on the engine tick goroutine.
type keyState struct {
	mu   sync.Mutex
	down map[uint32]bool
}

func newKeyState() *keyState {
	return &keyState{down: make(map[uint32]bool)}
}

func (k *keyState) press(key uint32) {
	k.mu.Lock()
	k.down[key] = true
	k.mu.Unlock()
}

func (k *keyState) release(key uint32) {
	k.mu.Lock()
	delete(k.down, key)
	k.mu.Unlock()
}

func (k *keyState) held(key uint32) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.down[key]
}
