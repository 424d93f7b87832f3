package intercept

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_RegisterThenResume(t *testing.T) {
	c := New()
	ch := c.RegisterRequest("req-1")
	assert.True(t, c.IsPending("req-1"))

	ok := c.ResumeRequest("req-1", Command{Kind: CommandForward})
	assert.True(t, ok)
	assert.False(t, c.IsPending("req-1"))

	select {
	case cmd := <-ch:
		assert.Equal(t, CommandForward, cmd.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected a command")
	}
}

func TestController_ResumeUnknownRequestIsNoop(t *testing.T) {
	c := New()
	ok := c.ResumeRequest("missing", Command{Kind: CommandDrop})
	assert.False(t, ok)
}

func TestController_ResumeIsIdempotent(t *testing.T) {
	c := New()
	c.RegisterRequest("req-1")

	assert.True(t, c.ResumeRequest("req-1", Command{Kind: CommandForward}))
	assert.False(t, c.ResumeRequest("req-1", Command{Kind: CommandForward}))
}

func TestController_WaitForDecision(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		c.ResumeRequest("req-1", Command{Kind: CommandModify, ModifiedBody: []byte("patched")})
	}()

	cmd, err := c.WaitForDecision(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, CommandModify, cmd.Kind)
	assert.Equal(t, "patched", string(cmd.ModifiedBody))
	wg.Wait()
}

func TestController_WaitForDecision_ContextCancelled(t *testing.T) {
	c := New()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.WaitForDecision(ctx, "req-1")
	assert.Error(t, err)
	assert.False(t, c.IsPending("req-1"))
}

func TestController_PendingCount(t *testing.T) {
	c := New()
	c.RegisterRequest("a")
	c.RegisterRequest("b")
	assert.Equal(t, 2, c.PendingCount())

	c.CancelRequest("a")
	assert.Equal(t, 1, c.PendingCount())
}

func TestController_RegisterTwiceReplacesEarlierWaiter(t *testing.T) {
	c := New()
	first := c.RegisterRequest("req-1")
	second := c.RegisterRequest("req-1")

	ok := c.ResumeRequest("req-1", Command{Kind: CommandForward})
	require.True(t, ok)

	select {
	case <-first:
		t.Fatal("the replaced first waiter should never receive a command")
	default:
	}

	select {
	case cmd := <-second:
		assert.Equal(t, CommandForward, cmd.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected the latest waiter to receive the command")
	}
}
