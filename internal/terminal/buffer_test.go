package terminal

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuffer_DrainReturnsArrivalOrder(t *testing.T) {
	b := NewBuffer(16)
	b.Append("one ")
	b.Append("two ")
	b.Append("three")

	assert.Equal(t, "one two three", b.Drain())
}

func TestBuffer_DrainIdempotentEmpty(t *testing.T) {
	b := NewBuffer(16)
	b.Append("payload")

	assert.Equal(t, "payload", b.Drain())
	assert.Equal(t, "", b.Drain())
	assert.Equal(t, "", b.Drain())
}

func TestBuffer_EvictionKeepsMostRecent(t *testing.T) {
	b := NewBuffer(3)
	for i := 0; i < 10; i++ {
		b.Append(fmt.Sprintf("c%d;", i))
	}

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, "c7;c8;c9;", b.Drain())
}

func TestBuffer_PeekDoesNotMutate(t *testing.T) {
	b := NewBuffer(16)
	b.Append("a")
	b.Append("b")
	b.Append("c")

	assert.Equal(t, "bc", b.Peek(2))
	assert.Equal(t, "bc", b.Peek(2))
	assert.Equal(t, "abc", b.Drain())
}

func TestBuffer_PeekBeyondLength(t *testing.T) {
	b := NewBuffer(16)
	b.Append("x")

	assert.Equal(t, "x", b.Peek(100))
	assert.Equal(t, "", b.Peek(0))
	assert.Equal(t, "", NewBuffer(16).Peek(5))
}

func TestBuffer_ConcurrentAppendAndDrain(t *testing.T) {
	b := NewBuffer(64)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			b.Append("x")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			b.Drain()
			b.Peek(3)
		}
	}()
	wg.Wait()

	// No panic and a consistent final state is the property under test.
	assert.LessOrEqual(t, b.Len(), 64)
}
