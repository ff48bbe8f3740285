package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"gnss-stamp/internal/archive"
	"gnss-stamp/internal/config"
	"gnss-stamp/internal/gps"
	"gnss-stamp/internal/ipv6"
	"gnss-stamp/internal/mqtt"
	"gnss-stamp/internal/pipeline"
	"gnss-stamp/internal/pps"
	"gnss-stamp/internal/store"
	"gnss-stamp/internal/udp"
	"gnss-stamp/internal/web"
)

type runtime struct {
	cfg config.Config
	log *log.Logger

	input   io.ReadCloser
	stats   *pipeline.Stats
	status  *web.Status
	feed    *web.RecordFeed
	logs    *web.LogBuffer
	summary *archive.Summary
	hexPath string
	store   *store.Store
	ppsMon  *pps.Monitor
	closers []io.Closer
	// sinks opened before the transmitter owns them.
	sinks []pipeline.Sink

	tx     *pipeline.Transmitter
	runner *pipeline.Runner
}

func newRuntime(ctx context.Context, cfg config.Config, logger *log.Logger, logs *web.LogBuffer) (*runtime, error) {
	rt := &runtime{
		cfg:    cfg,
		log:    logger,
		stats:  &pipeline.Stats{},
		status: web.NewStatus(),
		feed:   web.NewRecordFeed(),
		logs:   logs,
	}
	ok := false
	defer func() {
		if !ok {
			rt.abort()
		}
	}()

	input, err := openInput(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	rt.input = input

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("output dir: %w", err)
	}

	var endpoints *ipv6.Endpoints
	if cfg.Transport.IPv6.Enable {
		ep, err := ipv6.ParseEndpoints(cfg.Transport.IPv6.Src, cfg.Transport.IPv6.Dst)
		if err != nil {
			return nil, err
		}
		endpoints = &ep
	}

	sinks, err := rt.buildSinks(endpoints)
	if err != nil {
		return nil, err
	}

	session := cfg.StampSession()
	proc := &pipeline.Processor{
		Options: gps.ParseOptions{VerifyChecksum: cfg.Input.VerifyChecksum},
		Session: session,
		Stats:   rt.stats,
		Log:     logger,
	}

	rt.status.SetSync(session.SyncStatus.String())
	if cfg.PPS.Enable {
		pulses := make(chan time.Time, 4)
		c, err := pps.OpenGPIO(cfg.PPS.Chip, cfg.PPS.Line, pulses)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, c)
		rt.ppsMon = pps.NewMonitor(pps.Config{
			Tolerance:   cfg.PPS.Tolerance,
			StableCount: cfg.PPS.StableCount,
			Timeout:     cfg.PPS.Timeout,
			Fallback:    session.SyncStatus,
		}, logger)
		go rt.ppsMon.Run(ctx, pulses)
		proc.Sync = rt.ppsMon
	}

	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, fmt.Sprint(s))
	}
	rt.status.SetStatic(cfg.Mode, cfg.Session.DeviceID, *cfg.Session.LinkID, cfg.Input.Interval.String(), names)
	rt.status.SetCounters(rt.stats)

	rt.sinks = nil
	rt.tx = pipeline.NewTransmitter(cfg.Transport.QueueSize, sinks, rt.stats, logger)
	rt.runner = &pipeline.Runner{
		Reader:      gps.NewPairReader(rt.input),
		Processor:   proc,
		Transmitter: rt.tx,
		Input:       rt.input,
		Interval:    cfg.Input.Interval,
		Log:         logger,
	}
	ok = true
	return rt, nil
}

func openInput(ctx context.Context, cfg config.Config, logger *log.Logger) (io.ReadCloser, error) {
	switch {
	case cfg.Input.Serial.Enable:
		f, err := gps.OpenSerial(cfg.Input.Serial.Device, cfg.Input.Serial.Baud)
		if err != nil {
			return nil, fmt.Errorf("serial input: %w", err)
		}
		logger.Info("reading serial NMEA", "device", f.Name(), "baud", cfg.Input.Serial.Baud)
		return f, nil
	case cfg.Input.TCP.Addr != "":
		src, err := gps.DialTCP(ctx, gps.TCPConfig{
			Addr:           cfg.Input.TCP.Addr,
			ReconnectDelay: cfg.Input.TCP.ReconnectDelay,
			Log:            logger,
		})
		if err != nil {
			return nil, fmt.Errorf("tcp input: %w", err)
		}
		logger.Info("reading NMEA over tcp", "addr", cfg.Input.TCP.Addr)
		return src, nil
	case cfg.Input.File != "":
		f, err := os.Open(cfg.Input.File)
		if err != nil {
			return nil, fmt.Errorf("input file: %w", err)
		}
		logger.Info("reading NMEA file", "path", cfg.Input.File)
		return f, nil
	}
	return nil, errors.New("no input configured: set input.file (or --input), input.serial or input.tcp")
}

// buildSinks returns the sinks in delivery order: local bookkeeping and
// archives first, network transports last.
func (rt *runtime) buildSinks(endpoints *ipv6.Endpoints) ([]pipeline.Sink, error) {
	cfg := rt.cfg
	now := time.Now()
	sinks := []pipeline.Sink{rt.status}
	defer func() { rt.sinks = sinks }()

	if *cfg.Output.HexLog {
		path, err := archive.OutputPath(cfg.Output.Dir, archive.HexLogPattern, now)
		if err != nil {
			return nil, err
		}
		hw, err := archive.CreateHexWriter(path)
		if err != nil {
			return nil, err
		}
		rt.hexPath = path
		sinks = append(sinks, hw)
	}
	if cfg.Output.Raw {
		rw, err := archive.NewRawWriter(filepath.Join(cfg.Output.Dir, "raw"))
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, rw)
	}

	src, dst := "", ""
	if endpoints != nil {
		src, dst = endpoints.Src.String(), endpoints.Dst.String()
	}
	rt.summary = archive.NewSummary(cfg.Output.Dir, src, dst)
	if *cfg.Output.Summary {
		sinks = append(sinks, rt.summary)
	}

	if cfg.Output.SQLite != "" {
		st, err := store.Open(cfg.Output.SQLite, rt.log)
		if err != nil {
			return nil, err
		}
		rt.store = st
		if err := st.BeginRun(context.Background(), rt.summary.RunID(), "gnss-stamp:"+cfg.Mode); err != nil {
			return nil, err
		}
		sinks = append(sinks, st.Sink(rt.summary.RunID()))
	}

	sinks = append(sinks, rt.feed)

	if cfg.Transport.UDP.Enable {
		b, err := udp.NewBroadcaster(udp.Config{Dest: cfg.Transport.UDP.Dest, Encapsulate: endpoints})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, b)
	}
	if cfg.Transport.MQTT.Enable {
		p, err := mqtt.Connect(mqtt.Config{
			Broker:   cfg.Transport.MQTT.Broker,
			ClientID: cfg.Transport.MQTT.ClientID,
			Topic:    cfg.Transport.MQTT.Topic,
			QoS:      byte(cfg.Transport.MQTT.QoS),
			Retain:   cfg.Transport.MQTT.Retain,
			Timeout:  cfg.Transport.MQTT.Timeout,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, p)
	}
	return sinks, nil
}

func (rt *runtime) run(ctx context.Context) error {
	if rt.cfg.Web.Enable {
		h := web.Handler(rt.status, rt.logs, rt.feed, rt.log)
		go func() {
			rt.log.Info("web server listening", "addr", rt.cfg.Web.Listen)
			if err := web.Serve(ctx, rt.cfg.Web.Listen, h); err != nil && ctx.Err() == nil {
				rt.log.Error("web server stopped", "err", err)
			}
		}()
	}
	if rt.ppsMon != nil {
		go rt.trackSync(ctx)
	}

	var runErr error
	if rt.cfg.Mode == config.ModeRealtime {
		runErr = rt.runner.RunRealtime(ctx)
	} else {
		runErr = rt.runner.RunSingle(ctx)
	}
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	return errors.Join(runErr, rt.shutdown())
}

func (rt *runtime) trackSync(ctx context.Context) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			rt.status.SetSync(rt.ppsMon.Status().String())
		}
	}
}

// shutdown drains the queue, writes the run summary and releases inputs.
func (rt *runtime) shutdown() error {
	var errs []error
	if err := rt.tx.Close(); err != nil {
		errs = append(errs, err)
	}

	if *rt.cfg.Output.Summary {
		path, err := archive.OutputPath(rt.cfg.Output.Dir, archive.SummaryPattern, time.Now())
		if err == nil {
			err = rt.summary.WriteFile(path)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("summary: %w", err))
		} else {
			rt.log.Info("summary written", "path", path, "packets", rt.summary.Len())
		}
	}
	if rt.hexPath != "" {
		rt.log.Info("hex log written", "path", rt.hexPath)
	}

	if rt.store != nil {
		s := rt.stats.Snapshot()
		err := rt.store.FinishRun(context.Background(), rt.summary.RunID(), store.RunStats{
			Total:        int(s.Pairs),
			Success:      int(s.Sent),
			FormatErrors: int(s.ParseErrors),
			OtherErrors:  int(s.EncodeErrors + s.SinkErrors + s.Dropped),
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	rt.closeAll()
	return errors.Join(errs...)
}

// abort releases everything opened by a failed newRuntime.
func (rt *runtime) abort() {
	for _, s := range rt.sinks {
		_ = s.Close()
	}
	rt.sinks = nil
	rt.closeAll()
}

func (rt *runtime) closeAll() {
	for _, c := range rt.closers {
		_ = c.Close()
	}
	rt.closers = nil
	if rt.input != nil {
		_ = rt.input.Close()
		rt.input = nil
	}
	if rt.store != nil {
		_ = rt.store.Close()
		rt.store = nil
	}
}

func (rt *runtime) printStats(w io.Writer) {
	s := rt.stats.Snapshot()
	fmt.Fprintf(w, "run_id: %s\n", rt.summary.RunID())
	fmt.Fprintf(w, "lines: %d\n", s.Lines)
	fmt.Fprintf(w, "pairs: %d\n", s.Pairs)
	fmt.Fprintf(w, "no_fix: %d\n", s.NoFix)
	fmt.Fprintf(w, "parse_errors: %d\n", s.ParseErrors)
	fmt.Fprintf(w, "encoded: %d\n", s.Encoded)
	fmt.Fprintf(w, "encode_errors: %d\n", s.EncodeErrors)
	fmt.Fprintf(w, "dropped: %d\n", s.Dropped)
	fmt.Fprintf(w, "sent: %d\n", s.Sent)
	fmt.Fprintf(w, "sink_errors: %d\n", s.SinkErrors)
}
