package inventory

import (
	"sort"
	"sync"
)

// keyedMutex exclusión mutua por par (producto, sucursal) dentro del proceso.
// Las entradas se liberan cuando nadie las retiene.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

// Lock toma todas las claves no vacías en orden lexicográfico (evita interbloqueo
// entre traslados cruzados A->B y B->A) y devuelve la función que las libera.
func (k *keyedMutex) Lock(keys ...string) (unlock func()) {
	uniq := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		uniq = append(uniq, key)
	}
	sort.Strings(uniq)

	held := make([]*refLock, 0, len(uniq))
	for _, key := range uniq {
		k.mu.Lock()
		l, ok := k.locks[key]
		if !ok {
			l = &refLock{}
			k.locks[key] = l
		}
		l.refs++
		k.mu.Unlock()

		l.Lock()
		held = append(held, l)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
			k.mu.Lock()
			held[i].refs--
			if held[i].refs == 0 {
				delete(k.locks, uniq[i])
			}
			k.mu.Unlock()
		}
	}
}

// size cantidad de claves vivas (tests).
func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
