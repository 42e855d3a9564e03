// Command linecount counts vehicles crossing a horizontal line in an image,
// a video file, a camera stream or a directory of frame-N stills, writing an
// annotated copy of the input.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/google/uuid"
	"github.com/nvr-ai/go-linecount/annotate"
	"github.com/nvr-ai/go-linecount/capture"
	"github.com/nvr-ai/go-linecount/config"
	"github.com/nvr-ai/go-linecount/counter"
	"github.com/nvr-ai/go-linecount/detector"
	"github.com/nvr-ai/go-linecount/metrics"
	"github.com/nvr-ai/go-linecount/models"
	"github.com/nvr-ai/go-linecount/pipeline"
	"github.com/nvr-ai/go-linecount/profiler"
	"github.com/nvr-ai/go-linecount/store"
	"github.com/pkg/errors"
)

func main() {
	parser := argparse.NewParser("linecount", "Count vehicles crossing a line")
	imagePath := parser.String("i", "image", &argparse.Options{Help: "Input image file (.jpg, .jpeg, .png, .bmp)"})
	videoPath := parser.String("v", "video", &argparse.Options{Help: "Input video file (.mp4, .avi, .mov)"})
	dirPath := parser.String("d", "dir", &argparse.Options{Help: "Directory of frame-N images"})
	device := parser.Int("", "device", &argparse.Options{Help: "Camera device used when no file is given", Default: 0})
	envFile := parser.String("e", "env", &argparse.Options{Help: "Optional .env file with LINECOUNT_* settings"})
	backend := parser.String("b", "backend", &argparse.Options{Help: "Inference backend: opencv or onnxruntime"})
	modelPath := parser.String("m", "model", &argparse.Options{Help: "Model weights (.weights or .onnx)"})
	cfgPath := parser.String("c", "cfg", &argparse.Options{Help: "Darknet network config (.cfg)"})
	labels := parser.String("l", "labels", &argparse.Options{Help: "Class names file, one per line"})
	policy := parser.String("p", "policy", &argparse.Options{Help: "Repeat policy: previous-frame or always-count"})
	outPath := parser.String("o", "out", &argparse.Options{Help: "Annotated output file (default: <input>_OUT.jpg/.avi)"})
	window := parser.Flag("w", "window", &argparse.Options{Help: "Show the annotated frames; any key stops"})
	metricsAddr := parser.String("", "metrics", &argparse.Options{Help: "Serve Prometheus metrics on this address"})
	dbPath := parser.String("", "db", &argparse.Options{Help: "Record crossings in this sqlite database"})
	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	log, err := logs.NewLog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Errorf("Configuration: %v", err)
		os.Exit(1)
	}
	if *backend != "" {
		cfg.Detector.Backend = detector.Backend(strings.ToLower(*backend))
	}
	if *modelPath != "" {
		cfg.Detector.ModelPath = *modelPath
		cfg.Detector.ConfigPath = *cfgPath
	} else if *cfgPath != "" {
		cfg.Detector.ConfigPath = *cfgPath
	}
	if *labels != "" {
		cfg.LabelsPath = *labels
	}
	if *policy != "" {
		if cfg.Counter.Policy, err = counter.ParsePolicy(*policy); err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *dbPath != "" {
		cfg.StorePath = *dbPath
	}

	input, err := capture.ValidateInput(*videoPath, *imagePath, *dirPath, *device)
	if err != nil {
		log.Errorf("Input: %v", err)
		os.Exit(1)
	}
	output := *outPath
	if output == "" {
		output = input.OutputPath()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, cfg, input, output, *window); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log logs.Log, cfg config.Config, input *capture.InputConfig, output string, window bool) error {
	classes := models.DefaultClassSet()
	if cfg.LabelsPath != "" {
		var err error
		if classes, err = models.LoadClassSet(cfg.LabelsPath); err != nil {
			return err
		}
	}
	cfg.Counter.NumClasses = classes.Len()
	if cfg.Detector.Backend == detector.BackendONNXRuntime {
		cfg.Detector.NumClasses = classes.Len()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	det, err := detector.New(cfg.Detector, log)
	if err != nil {
		return errors.Wrap(err, "load detector")
	}
	defer det.Close()

	source, err := capture.Open(*input)
	if err != nil {
		return err
	}
	defer source.Close()

	c, err := counter.New(cfg.Counter)
	if err != nil {
		return err
	}

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr); err != nil {
				log.Warnf("Metrics server: %v", err)
			}
		}()
		log.Infof("Serving metrics on %s/metrics", cfg.MetricsAddr)
	}

	var st *store.Store
	session := uuid.Nil
	if cfg.StorePath != "" {
		if st, err = store.Open(cfg.StorePath, log); err != nil {
			return err
		}
		defer st.Close()
		s, err := st.StartSession(ctx, describe(input), cfg.Counter.Policy)
		if err != nil {
			return err
		}
		session = s.ID
	}

	var sinks []pipeline.Sink
	if input.IsStill() {
		sinks = append(sinks, pipeline.NewImageSink(output))
	} else {
		sinks = append(sinks, pipeline.NewVideoSink(output))
	}
	if window {
		sinks = append(sinks, pipeline.NewWindowSink())
	}
	defer func() {
		if err := pipeline.CloseAll(sinks); err != nil {
			log.Warnf("Closing output: %v", err)
		}
	}()

	p, err := pipeline.New(cfg.Pipeline, pipeline.Options{
		Source:    source,
		Detector:  det,
		Counter:   c,
		Annotator: annotate.New(classes, cfg.Annotate),
		Sinks:     sinks,
		Log:       log,
		Profiler: profiler.New(profiler.Options{
			ReportInterval: cfg.ReportInterval,
			Log:            reportLog(log, cfg.ReportInterval),
			Observer:       m.ObserveStage,
		}),
		Metrics: m,
		Store:   st,
		Session: session,
	})
	if err != nil {
		return err
	}

	log.Infof("Counting %s with policy %s, writing %s", describe(input), cfg.Counter.Policy, output)
	summary, err := p.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	if st != nil {
		// The run context may be cancelled; the session still gets closed.
		if endErr := st.EndSession(context.Background(), session, summary.Frames); endErr != nil {
			log.Warnf("Ending session %s: %v", session, endErr)
		}
	}

	log.Infof("Processed %d frames", summary.Frames)
	for _, line := range annotate.CounterLines(summary.Counts) {
		log.Infof("%s", line)
	}
	return err
}

// reportLog returns nil when periodic reports are disabled.
func reportLog(log logs.Log, interval time.Duration) logs.Log {
	if interval <= 0 {
		return nil
	}
	return log
}

func describe(input *capture.InputConfig) string {
	if input.Type == capture.InputCamera {
		return fmt.Sprintf("camera:%d", input.DeviceID)
	}
	return input.Path
}
