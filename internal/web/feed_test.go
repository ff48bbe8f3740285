package web

import (
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gnss-stamp/internal/stamp"
)

func TestRecordFeed_FanOut(t *testing.T) {
	f := NewRecordFeed()
	id1, ch1 := f.Subscribe(4)
	_, ch2 := f.Subscribe(4)
	assert.Equal(t, 2, f.Subscribers())

	f.Publish(stamp.Record{LinkID: 7})
	assert.Equal(t, uint16(7), (<-ch1).LinkID)
	assert.Equal(t, uint16(7), (<-ch2).LinkID)

	f.Unsubscribe(id1)
	_, ok := <-ch1
	assert.False(t, ok)
	assert.Equal(t, 1, f.Subscribers())
}

func TestRecordFeed_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	f := NewRecordFeed()
	_, ch := f.Subscribe(1)
	for i := 0; i < 5; i++ {
		f.Publish(stamp.Record{LinkID: uint16(i)})
	}
	assert.Equal(t, uint16(0), (<-ch).LinkID)
	assert.Len(t, ch, 0)
}

func TestRecordFeed_LastRecordOnSubscribe(t *testing.T) {
	f := NewRecordFeed()
	f.Publish(stamp.Record{LinkID: 9})
	_, ch := f.Subscribe(2)
	assert.Equal(t, uint16(9), (<-ch).LinkID)
}

func TestRecordFeed_SendRejectsCorrupt(t *testing.T) {
	f := NewRecordFeed()
	b := encodedSample(t)
	b[len(b)-1] ^= 0xFF
	err := f.Send(b)
	assert.ErrorIs(t, err, stamp.ErrCRC)
}

func TestRecordFeed_Close(t *testing.T) {
	f := NewRecordFeed()
	_, ch := f.Subscribe(1)
	require.NoError(t, f.Close())
	_, ok := <-ch
	assert.False(t, ok)

	_, late := f.Subscribe(1)
	_, ok = <-late
	assert.False(t, ok)
	require.NoError(t, f.Close())
}

func TestLogBuffer_StripsColorAndTrims(t *testing.T) {
	b := NewLogBuffer(2)
	_, _ = b.Write([]byte("\x1b[1;34mINFO\x1b[0m one\nthree\nfour\n"))
	lines, dropped := b.Snapshot(10, log.DebugLevel)
	assert.Equal(t, []string{"three", "four"}, lines)
	assert.Equal(t, uint64(1), dropped)

	b = NewLogBuffer(5)
	_, _ = b.Write([]byte("\x1b[1;34mINFO\x1b[0m one\n"))
	lines, _ = b.Snapshot(1, log.DebugLevel)
	assert.Equal(t, []string{"INFO one"}, lines)
}

func TestLogBuffer_LevelFilter(t *testing.T) {
	b := NewLogBuffer(10)
	_, _ = b.Write([]byte("2025-05-01 00:00:12 DEBU gnss-stamp: pair queued\n" +
		"2025-05-01 00:00:12 INFO gnss-stamp: sync changed\n" +
		"2025-05-01 00:00:13 WARN gnss-stamp: queue full, dropping packet\n" +
		"2025-05-01 00:00:14 ERRO gnss-stamp: sink failed sink=udp\n" +
		"  continuation\n"))

	lines, _ := b.Snapshot(10, log.WarnLevel)
	assert.Equal(t, []string{
		"2025-05-01 00:00:13 WARN gnss-stamp: queue full, dropping packet",
		"2025-05-01 00:00:14 ERRO gnss-stamp: sink failed sink=udp",
	}, lines)

	lines, _ = b.Snapshot(1, log.InfoLevel)
	assert.Equal(t, []string{"  continuation"}, lines)

	lines, _ = b.Snapshot(10, log.DebugLevel)
	assert.Len(t, lines, 5)
}

func TestLogBuffer_HoldsPartialLine(t *testing.T) {
	b := NewLogBuffer(10)
	_, _ = b.Write([]byte("WARN half"))
	lines, _ := b.Snapshot(10, log.DebugLevel)
	assert.Empty(t, lines)

	_, _ = b.Write([]byte(" done\n"))
	lines, _ = b.Snapshot(10, log.WarnLevel)
	assert.Equal(t, []string{"WARN half done"}, lines)
}
