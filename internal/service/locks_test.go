package service

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex_SerialisesSameKey(t *testing.T) {
	k := newKeyedMutex()
	key := uuid.New()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock(key)
			defer unlock()
			v := counter
			counter = v + 1
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Empty(t, k.locks)
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	k := newKeyedMutex()

	unlockA := k.Lock(uuid.New())
	unlockB := k.Lock(uuid.New())
	assert.Len(t, k.locks, 2)

	unlockA()
	unlockB()
	assert.Empty(t, k.locks)
}
