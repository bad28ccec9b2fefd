package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/storskegg/aranet-dash/internal/alert"
	"github.com/storskegg/aranet-dash/internal/app"
	"github.com/storskegg/aranet-dash/internal/config"
	"github.com/storskegg/aranet-dash/internal/export"
	"github.com/storskegg/aranet-dash/internal/location"
	"github.com/storskegg/aranet-dash/internal/logger"
	"github.com/storskegg/aranet-dash/internal/sensor"
	"github.com/storskegg/aranet-dash/internal/sink"
	"github.com/storskegg/aranet-dash/internal/store"
	"github.com/storskegg/aranet-dash/internal/tui"
)

const simulatedInterval = time.Minute

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load("aranet-dash", args)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return 2
	}

	log, closeLog, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log: %v\n", err)
		return 1
	}
	defer closeLog()
	log.Infow("starting", "transport", cfg.Transport, "address", cfg.Address)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transport, closeStore, err := newTransport(cfg, log)
	if err != nil {
		log.Errorw("transport setup failed", "err", err)
		fmt.Fprintf(os.Stderr, "Error setting up sensor transport: %v\n", err)
		return 1
	}
	defer closeStore()

	var observers []app.Observer
	if cfg.Influx.URL != "" {
		influx := sink.NewInflux(cfg.Influx, cfg.SensorName, log)
		defer influx.Close()
		observers = append(observers, influx)
	}
	if cfg.Sound {
		observers = append(observers, alert.NewSounds(log))
	}

	var bg sync.WaitGroup
	loc := location.NewState()
	switch {
	case cfg.GPSPort != "":
		gps := location.NewGPS(cfg.GPSPort, loc, log)
		bg.Add(1)
		go func() {
			defer bg.Done()
			gps.Run(ctx)
		}()
	case cfg.HasLocation():
		loc = location.NewStatic(cfg.Latitude, cfg.Longitude)
	}

	queue := app.NewQueue(cfg.QueueSize)
	dash := app.New(queue)
	worker := app.NewWorker(dash, queue, transport, cfg.Address, log,
		app.WithIOTimeout(cfg.IOTimeout),
		app.WithObservers(observers...),
	)
	scheduler := app.NewScheduler(queue, cfg.Refresh, log)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(ctx)
	}()
	bg.Add(1)
	go func() {
		defer bg.Done()
		scheduler.Run(ctx)
	}()

	screen, err := tcell.NewScreen()
	if err == nil {
		err = screen.Init()
	}
	if err != nil {
		log.Errorw("terminal init failed", "err", err)
		fmt.Fprintf(os.Stderr, "Error initializing screen: %v\n", err)
		shutdown(stop, queue, workerDone, &bg, cfg.IOTimeout, log)
		return 1
	}

	renderer := tui.NewRenderer(screen, fmt.Sprintf("%s Dashboard", cfg.SensorName), loc)
	keys := tui.NewKeys(screen)
	loop := app.NewLoop(dash, renderer, keys, log,
		app.WithPollTimeout(cfg.Poll),
		app.WithReconnectMax(cfg.ReconnectMax),
		app.WithExporter(export.New(cfg.ExportDir, cfg.SensorName, loc)),
	)

	loopErr := loop.Run(ctx)
	keys.Close()
	screen.Fini()
	shutdown(stop, queue, workerDone, &bg, cfg.IOTimeout, log)

	if loopErr != nil {
		log.Errorw("terminal failed", "err", loopErr)
		fmt.Fprintf(os.Stderr, "Error: %v\n", loopErr)
		return 1
	}
	log.Infow("exiting")
	return 0
}

// newTransport builds the configured transport, wrapped by the reading
// store when one is configured. The returned close function is never nil.
func newTransport(cfg config.Config, log *logger.Logger) (sensor.Transport, func(), error) {
	var t sensor.Transport
	switch cfg.Transport {
	case config.TransportBLE:
		t = sensor.NewBLE(cfg.SensorName, cfg.ScanTimeout)
	case config.TransportSerial:
		t = sensor.NewSerial(cfg.BaudRate, cfg.SensorName)
	case config.TransportSim:
		t = sensor.NewSimulated(simulatedInterval)
	default:
		return nil, nil, errors.Errorf("unknown transport %q", cfg.Transport)
	}

	if cfg.StorePath == "" {
		return t, func() {}, nil
	}
	db, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			log.Warnw("closing reading store", "err", err)
		}
	}
	rec := store.NewRecorder(t, store.New(db), cfg.HistoryWindow, cfg.HistoryLimit, log)
	return rec, closeDB, nil
}

// shutdown stops the producers, closes the queue and gives the worker up to
// one I/O timeout to finish its current intent.
func shutdown(stop context.CancelFunc, queue *app.Queue, workerDone <-chan struct{}, bg *sync.WaitGroup, wait time.Duration, log *logger.Logger) {
	stop()
	queue.Close()

	select {
	case <-workerDone:
	case <-time.After(wait + time.Second):
		log.Warnw("worker still busy at shutdown")
	}
	bg.Wait()
}
