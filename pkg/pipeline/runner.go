package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/dagview/pkg/cache"
	"github.com/matzehuels/dagview/pkg/engine"
	gvengine "github.com/matzehuels/dagview/pkg/engine/graphviz"
	"github.com/matzehuels/dagview/pkg/errors"
	"github.com/matzehuels/dagview/pkg/facade"
	"github.com/matzehuels/dagview/pkg/graph"
	"github.com/matzehuels/dagview/pkg/parse"
)

// Runner executes pipeline runs. It holds no per-run state and is safe for
// concurrent use.
type Runner struct {
	NewEngine EngineFactory
	Logger    *log.Logger

	// Cache stores finished results keyed by file content and options.
	// Nil disables caching.
	Cache    cache.Cache
	CacheTTL time.Duration
	// CacheScope is mixed into every key. Set it to anything outside Options
	// that changes output, such as the engine's canvas size.
	CacheScope string
}

// NewRunner creates a runner. A nil factory uses the Graphviz engine.
func NewRunner(newEngine EngineFactory, logger *log.Logger) *Runner {
	if newEngine == nil {
		newEngine = func() engine.Engine { return gvengine.New(gvengine.Options{Logger: logger}) }
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{NewEngine: newEngine, Logger: logger}
}

// cachedResult is the stored form of a Result.
type cachedResult struct {
	Document  *graph.Document   `json:"document"`
	Layout    graph.Layout      `json:"layout"`
	Artifacts map[string][]byte `json:"artifacts"`
}

func (r *Runner) cacheKey(fileName string, content []byte, opts Options) string {
	return cache.Key("render",
		r.CacheScope,
		parse.Extension(fileName),
		cache.Hash(content),
		opts.Layout,
		opts.Facade.Layouts[opts.Layout],
		opts.Facade.Theme.Name,
		opts.Facade.FitPadding,
		opts.Formats,
		opts.Style,
	)
}

func (r *Runner) lookup(ctx context.Context, key string, logger *log.Logger) (*Result, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		logger.Warn("cache read failed", "err", err)
		return nil, false
	}
	if !hit {
		return nil, false
	}
	var cr cachedResult
	if err := json.Unmarshal(data, &cr); err != nil || cr.Document == nil {
		logger.Warn("cache entry unreadable", "err", err)
		return nil, false
	}
	return &Result{
		Document:  cr.Document,
		Layout:    cr.Layout,
		Artifacts: cr.Artifacts,
		Stats: Stats{
			NodeCount: cr.Document.Metadata.NodeCount,
			EdgeCount: cr.Document.Metadata.EdgeCount,
			Cached:    true,
		},
	}, true
}

func (r *Runner) store(ctx context.Context, key string, res *Result, logger *log.Logger) {
	data, err := json.Marshal(cachedResult{Document: res.Document, Layout: res.Layout, Artifacts: res.Artifacts})
	if err != nil {
		logger.Warn("cache encode failed", "err", err)
		return
	}
	if err := r.Cache.Set(ctx, key, data, r.CacheTTL); err != nil {
		logger.Warn("cache write failed", "err", err)
	}
}

// Execute runs upload → layout → style → export for one file. With a cache
// configured, a previous result for identical input is returned without
// running the engine.
func (r *Runner) Execute(ctx context.Context, fileName string, content []byte, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	var key string
	if r.Cache != nil {
		key = r.cacheKey(fileName, content, opts)
		if res, ok := r.lookup(ctx, key, opts.Logger); ok {
			opts.Logger.Info("using cached result", "file", fileName, "layout", opts.Layout)
			return res, nil
		}
	}

	res, err := r.execute(ctx, fileName, content, opts)
	if err != nil {
		return nil, err
	}
	if r.Cache != nil {
		r.store(ctx, key, res, opts.Logger)
	}
	return res, nil
}

func (r *Runner) execute(ctx context.Context, fileName string, content []byte, opts Options) (*Result, error) {

	eng := r.NewEngine()
	copts := opts.Facade
	copts.Logger = opts.Logger
	var alerts []string
	copts.Notifier = facade.NotifierFunc(func(msg string) { alerts = append(alerts, msg) })
	c := facade.New(eng, copts)

	layoutDone := make(chan facade.Event, 1)
	unsubscribe := c.Subscribe(func(ev facade.Event) {
		if ev.Kind != facade.EventLayout || ev.Message == "running" {
			return
		}
		select {
		case layoutDone <- ev:
		default:
		}
	})
	defer unsubscribe()

	result := &Result{Artifacts: make(map[string][]byte)}

	// Stage 1: Parse and load
	start := time.Now()
	doc, err := c.Upload(ctx, fileName, content)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	result.Document = doc
	result.Stats.ParseTime = time.Since(start)
	result.Stats.NodeCount = doc.Metadata.NodeCount
	result.Stats.EdgeCount = doc.Metadata.EdgeCount
	opts.Logger.Info("parsed graph",
		"nodes", doc.Metadata.NodeCount,
		"edges", doc.Metadata.EdgeCount,
		"variant", doc.Metadata.Variant,
		"duration", result.Stats.ParseTime)

	// Stage 2: Layout (started by the upload)
	start = time.Now()
	select {
	case ev := <-layoutDone:
		if ev.Error != "" {
			return nil, errors.New(errors.ErrCodeLayoutFailed, "layout %s: %s", opts.Layout, ev.Error)
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	result.Layout, _ = c.LastLayout()
	result.Stats.LayoutTime = time.Since(start)
	opts.Logger.Info("computed layout", "layout", opts.Layout, "duration", result.Stats.LayoutTime)

	// Stage 3: Style commands
	if err := applyStyle(c, opts.Style); err != nil {
		return nil, fmt.Errorf("style: %w", err)
	}
	for _, msg := range alerts {
		opts.Logger.Warn(msg)
	}

	// Stage 4: Render
	start = time.Now()
	for _, format := range opts.Formats {
		data, err := r.render(ctx, c, eng, format)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		result.Artifacts[format] = data
	}
	result.Stats.RenderTime = time.Since(start)
	opts.Logger.Info("rendered outputs", "formats", opts.Formats, "duration", result.Stats.RenderTime)

	return result, nil
}

func applyStyle(c *facade.Controller, s StyleOptions) error {
	if s.empty() {
		return nil
	}
	if len(s.Select) == 0 {
		s.Select = c.Document().NodeIDs()
	}
	c.Select(s.Select)
	if s.Shape != "" {
		if err := c.ChangeSelectedNodesShape(s.Shape); err != nil {
			return err
		}
	}
	if s.Color != "" {
		if err := c.ChangeSelectedNodesColor(s.Color); err != nil {
			return err
		}
	}
	if s.BorderColor != "" {
		if err := c.ChangeSelectedNodesBorder(s.BorderColor, s.BorderWidth); err != nil {
			return err
		}
	}
	if s.Opacity != nil {
		if err := c.ChangeSelectedNodesOpacity(*s.Opacity); err != nil {
			return err
		}
	}
	c.ClearSelection()
	return nil
}

type dotter interface {
	DOT() []byte
}

func (r *Runner) render(ctx context.Context, c *facade.Controller, eng engine.Engine, format string) ([]byte, error) {
	switch format {
	case FormatPNG, FormatJPG, FormatJPEG:
		exp, err := c.ExportImage(ctx, format)
		if err != nil {
			return nil, err
		}
		return exp.Data, nil
	case FormatLayout:
		l, _ := c.LastLayout()
		return graph.MarshalLayout(l)
	case FormatGraph:
		var buf bytes.Buffer
		if err := graph.WriteDocument(c.Document(), &buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatDOT:
		d, ok := eng.(dotter)
		if !ok {
			return nil, fmt.Errorf("engine cannot produce DOT")
		}
		return d.DOT(), nil
	default:
		return nil, ValidateFormat(format)
	}
}
