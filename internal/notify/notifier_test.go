package notify

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestConsolePrefixesByLevel(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.Notify(context.Background(), Success("Funds added: %s", "₱10.00"))
	c.Notify(context.Background(), Error("Insufficient balance"))
	c.Notify(context.Background(), Info("Refreshing"))

	assert.Equal(t, "✔ Funds added: ₱10.00\n✖ Insufficient balance\nℹ Refreshing\n", buf.String())
}

func TestRecorderAndMulti(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	m := Multi{a, nil, b, NewLogNotifier(zap.NewNop()), Discard{}}

	m.Notify(context.Background(), Error("boom"))

	last, ok := a.Last()
	assert.True(t, ok)
	assert.Equal(t, LevelError, last.Level)
	assert.Len(t, b.All(), 1)

	a.Reset()
	_, ok = a.Last()
	assert.False(t, ok)
}
