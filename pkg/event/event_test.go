package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_AssignsIDAndPayload(t *testing.T) {
	e := New("greet",
		WithChannel("lobby"),
		WithArgs("alice", 3),
		WithKwargs(map[string]any{"loud": true}),
		WithKwarg("times", 2),
	)

	require.NotEmpty(t, e.ID())
	assert.Equal(t, "greet", e.Name())
	assert.Equal(t, "lobby", e.Channel())
	assert.Equal(t, 2, e.NumArgs())

	name, err := e.Arg(0).AsString()
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	loud, ok := e.Kwarg("loud")
	require.True(t, ok)
	assert.Equal(t, true, loud.Interface())

	times, _ := e.Kwarg("times")
	n, err := times.AsInt()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestArg_OutOfRangeIsNull(t *testing.T) {
	e := New("x")
	assert.True(t, e.Arg(0).IsNull())
	assert.True(t, e.Arg(-1).IsNull())
}

func TestArgs_ReturnsCopy(t *testing.T) {
	e := New("x", WithArgs(1))
	args := e.Args()
	args[0] = Of("changed")

	assert.Equal(t, KindInt, e.Arg(0).Kind(), "payload must not change through the returned slice")
}

func TestStop(t *testing.T) {
	e := New("x")
	assert.False(t, e.Stopped())
	e.Stop()
	assert.True(t, e.Stopped())
}

func TestClone_FreshIDAndClearedStop(t *testing.T) {
	e := New("tick", WithChannel("timers"), WithArgs(1), WithNotify())
	e.Stop()

	c := e.Clone()
	assert.NotEqual(t, e.ID(), c.ID())
	assert.Equal(t, e.Name(), c.Name())
	assert.Equal(t, e.Channel(), c.Channel())
	assert.Equal(t, e.Arg(0), c.Arg(0))
	assert.True(t, c.Notify())
	assert.False(t, c.Stopped())
}

func TestClone_AppliesOptions(t *testing.T) {
	c := New("x").Clone(WithInjected())
	assert.True(t, c.Injected())
}

func TestSerializable(t *testing.T) {
	assert.True(t, New("x", WithArgs(1, "a", []any{1.5}), WithKwarg("m", map[string]any{"k": nil})).Serializable())
	assert.False(t, New("x", WithArgs(make(chan int))).Serializable())
	assert.False(t, New("x", WithKwarg("f", func() {})).Serializable())
}

func TestString(t *testing.T) {
	e := New("greet", WithChannel("lobby"), WithArgs("bob"), WithKwarg("n", 1))
	assert.Equal(t, `<greet[lobby] ("bob") {n=1}>`, e.String())
	assert.Equal(t, "<ping ()>", New("ping").String())
}

func TestReservedNames(t *testing.T) {
	assert.Equal(t, "save_success", SuccessName("save"))
	assert.Equal(t, "save_failure", FailureName("save"))
}
