package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/silentstream/pkg/engine"
	_ "github.com/xaionaro-go/silentstream/pkg/engine/backends/oto"
	_ "github.com/xaionaro-go/silentstream/pkg/engine/backends/portaudio"
	_ "github.com/xaionaro-go/silentstream/pkg/engine/backends/pulseaudio"
)

func main() {
	loggerLevel := logger.LevelInfo
	pflag.Var(&loggerLevel, "log-level", "Log level")
	listDevicesFlag := pflag.Bool("list-devices", false, "print the available devices and exit")
	inputFlag := pflag.Int("input", 0, "index of the input device")
	outputFlag := pflag.Int("output", 0, "index of the output device")
	vadThresholdFlag := pflag.Float32("vad-threshold", 0.1, "voice probability below which frames are muted (0.0 - 0.5)")
	bypassFlag := pflag.Bool("bypass", false, "pass audio through without any processing")
	monitorOutputFlag := pflag.String("monitor-output", "", "a file to copy the processed stream into ('-' for stdout)")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	pflag.Parse()

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	if *netPprofAddr != "" {
		observability.Go(ctx, func() { l.Error(http.ListenAndServe(*netPprofAddr, nil)) })
	}

	var opts []engine.Option
	var monitorCounter *datacounter.WriterCounter
	if *monitorOutputFlag != "" {
		var w io.Writer
		switch *monitorOutputFlag {
		case "-":
			w = os.Stdout
		default:
			f, err := os.OpenFile(*monitorOutputFlag, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640)
			assertNoError(err)
			defer f.Close()
			w = f
		}
		monitorCounter = datacounter.NewWriterCounter(w)
		opts = append(opts, engine.WithMonitorWriter(monitorCounter))
	}

	e := engine.New(ctx, opts...)
	defer func() {
		assertNoError(e.Close())
	}()

	if *listDevicesFlag {
		fmt.Printf("input devices:\n")
		for idx, name := range e.ListInputDevices(ctx) {
			fmt.Printf("  %d: %s\n", idx, name)
		}
		fmt.Printf("output devices:\n")
		for idx, name := range e.ListOutputDevices(ctx) {
			fmt.Printf("  %d: %s\n", idx, name)
		}
		return
	}

	e.SetVADThreshold(*vadThresholdFlag)
	e.SetBypass(*bypassFlag)

	logger.Infof(ctx, "starting: input device #%d, output device #%d", *inputFlag, *outputFlag)
	assertNoError(e.Start(ctx, *inputFlag, *outputFlag))
	defer func() {
		assertNoError(e.Stop())
	}()

	ctx, cancelFn := signal.NotifyContext(ctx, os.Interrupt)
	defer cancelFn()

	observability.Go(ctx, func() {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if monitorCounter != nil {
					logger.Debugf(ctx, "volume: %f; monitored bytes: %d", e.CurrentVolume(), monitorCounter.Count())
				} else {
					logger.Debugf(ctx, "volume: %f", e.CurrentVolume())
				}
			}
		}
	})

	<-ctx.Done()
	logger.Infof(ctx, "stopping...")
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
