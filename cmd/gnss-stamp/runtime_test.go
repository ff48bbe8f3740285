package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gnss-stamp/internal/archive"
	"gnss-stamp/internal/config"
	"gnss-stamp/internal/ipv6"
	"gnss-stamp/internal/stamp"
	"gnss-stamp/internal/store"
	"gnss-stamp/internal/web"
)

const (
	sampleRMC = "$GPRMC,000012.00,A,3031.9000425,N,11421.4368798,E,0.01,0.00,010525,0.0,E,A*37"
	sampleGGA = "$GPGGA,000012.00,3031.9000425,N,11421.4368798,E,1,08,1.0,42.636,M,-13.987,M,0.0,*57"

	goldenHex = "304202010102046812B98C020100090980D01E881B5A797333090980D30E4B6ED9417A49" +
		"090980D115516872B020C50408DEADBEEFCAFEBABE020204000A010204029003"
)

func testConfig(t *testing.T, mutate func(*config.Config)) config.Config {
	t.Helper()
	dir := t.TempDir()
	in := filepath.Join(dir, "gnss.log")
	data := strings.Join([]string{sampleRMC, sampleGGA, "$GPGSV,3,1,12*70", sampleRMC, sampleGGA}, "\r\n") + "\r\n"
	require.NoError(t, os.WriteFile(in, []byte(data), 0o644))

	cfg := config.Default()
	cfg.Input.File = in
	cfg.Output.Dir = filepath.Join(dir, "out")
	if mutate != nil {
		mutate(&cfg)
	}
	require.NoError(t, config.DefaultAndValidate(&cfg))
	return cfg
}

func quietLogger() *log.Logger { return log.New(io.Discard) }

func TestRuntime_SingleModeWritesArchives(t *testing.T) {
	dbPath := ""
	cfg := testConfig(t, func(c *config.Config) {
		c.Output.Raw = true
		dbPath = filepath.Join(filepath.Dir(c.Input.File), "stamp.db")
		c.Output.SQLite = dbPath
	})

	rt, err := newRuntime(context.Background(), cfg, quietLogger(), web.NewLogBuffer(10))
	require.NoError(t, err)
	require.NoError(t, rt.run(context.Background()))

	s := rt.stats.Snapshot()
	assert.Equal(t, uint64(2), s.Encoded)
	assert.Equal(t, uint64(2), s.Sent)
	assert.Equal(t, uint64(5), s.Lines)

	// Hex log holds two verifiable packets.
	f, err := os.Open(rt.hexPath)
	require.NoError(t, err)
	defer f.Close()
	entries, _, err := archive.NewHexReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, goldenHex, entries[0].Hex)

	// Summary JSON.
	matches, err := filepath.Glob(filepath.Join(cfg.Output.Dir, "stamp_results_*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	b, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	var doc archive.SummaryDocument
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.Equal(t, 2, doc.Metadata.TotalPackets)
	assert.Equal(t, rt.summary.RunID(), doc.Metadata.RunID)

	// Raw files.
	raws, err := filepath.Glob(filepath.Join(cfg.Output.Dir, "raw", "*.bin"))
	require.NoError(t, err)
	assert.Len(t, raws, 2)

	// SQLite rows and run counters.
	st, err := store.Open(dbPath, quietLogger())
	require.NoError(t, err)
	defer st.Close()
	rows, err := st.Records(context.Background(), rt.summary.RunID())
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	run, err := st.Run(context.Background(), rt.summary.RunID())
	require.NoError(t, err)
	assert.Equal(t, 2, run.Success)

	var out bytes.Buffer
	rt.printStats(&out)
	assert.Contains(t, out.String(), "sent: 2\n")
}

func TestRuntime_UDPWithIPv6(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	cfg := testConfig(t, func(c *config.Config) {
		f := false
		c.Output.HexLog = &f
		c.Output.Summary = &f
		c.Transport.UDP.Enable = true
		c.Transport.UDP.Dest = pc.LocalAddr().String()
		c.Transport.IPv6.Enable = true
	})

	rt, err := newRuntime(context.Background(), cfg, quietLogger(), web.NewLogBuffer(10))
	require.NoError(t, err)
	require.NoError(t, rt.run(context.Background()))

	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 2048)
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)

	hdr, payload, err := ipv6.Extract(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, "2001:db8:1::1", hdr.Src.String())
	rec, err := stamp.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, stamp.SyncBeidouLocked, rec.SyncStatus)
}

func TestRuntime_RequiresInput(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Dir = t.TempDir()
	_, err := newRuntime(context.Background(), cfg, quietLogger(), web.NewLogBuffer(10))
	assert.ErrorContains(t, err, "no input configured")
}

func TestRuntime_RealtimeStopsOnCancel(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) {
		c.Mode = config.ModeRealtime
		c.Input.Interval = 10 * time.Millisecond
	})
	rt, err := newRuntime(context.Background(), cfg, quietLogger(), web.NewLogBuffer(10))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.run(ctx) }()

	require.Eventually(t, func() bool { return rt.stats.Snapshot().Encoded == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancel")
	}
	assert.Equal(t, uint64(2), rt.stats.Snapshot().Sent)
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger(io.Discard, "debug")
	assert.NoError(t, err)
	_, err = newLogger(io.Discard, "chatty")
	assert.Error(t, err)
}
