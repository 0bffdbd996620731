package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"

	"github.com/seedpost/seedpost/internal/discovery"
	"github.com/seedpost/seedpost/internal/otel"
	"github.com/seedpost/seedpost/internal/publish"
	"github.com/seedpost/seedpost/internal/transfer"
)

const (
	// DescriptorDir holds downloaded metainfo files under the download root
	DescriptorDir = ".descriptors"

	// maxDescriptorName bounds the descriptor file name in bytes
	maxDescriptorName = 200

	stageDescriptor = "descriptor"
	stageTransfer   = "transfer"
	stagePublish    = "publish"
	stagePanic      = "panic"
)

// stageError tags an item failure with the pipeline stage it came from
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string {
	return e.stage + ": " + e.err.Error()
}

func (e *stageError) Unwrap() error {
	return e.err
}

// stageOf reports the stage of an item failure; untagged errors come from
// recovered panics
func stageOf(err error) string {
	var se *stageError
	if errors.As(err, &se) {
		return se.stage
	}
	return stagePanic
}

// runCycle scans once and handles every candidate in order
func (o *defaultOrchestrator) runCycle(ctx context.Context) {
	if !o.state.IsEnabled() {
		slog.Info("Uploads paused, skipping cycle")
		return
	}

	start := o.now()
	ctx, span := otel.StartSpan(ctx, o.tracer, "orchestrator.cycle")
	defer span.End()

	slog.Info("Checking for new items", "limit", o.settings.Limit)

	items, err := o.discoverer.ListLatest(ctx, o.settings.Limit)
	if err != nil {
		slog.Warn("Discovery failed", "error", err)
		o.state.RecordError()
		o.metrics.RecordError(ctx, "discovery")
		otel.RecordError(span, err)
		items = nil
	}
	o.state.RecordScan(len(items), start)
	o.metrics.RecordDiscovered(ctx, len(items))
	span.SetAttributes(otel.AttrItemCount.Int(len(items)))

	for i, item := range items {
		if ctx.Err() != nil {
			slog.Info("Shutdown requested, leaving batch", "remaining", len(items)-i)
			break
		}
		if !o.state.IsEnabled() {
			slog.Info("Uploads paused, leaving batch", "remaining", len(items)-i)
			break
		}

		if err := o.handleItem(ctx, item); err != nil {
			stage := stageOf(err)
			slog.Error("Failed to process item", "title", item.Title, "stage", stage, "error", err)
			o.state.RecordError()
			o.metrics.RecordError(ctx, stage)
		}
	}

	o.metrics.RecordCycleDuration(ctx, o.now().Sub(start))
	slog.Info("Cycle complete", "items", len(items), "duration", o.now().Sub(start).Round(time.Millisecond).String())
}

// handleItem recovers panics so that one item cannot take the batch down
func (o *defaultOrchestrator) handleItem(ctx context.Context, item discovery.CandidateItem) (err error) {
	ctx, span := otel.StartSpan(ctx, o.tracer, "orchestrator.item",
		trace.WithAttributes(otel.AttrItemTitle.String(item.Title)))
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Recovered panic while processing item", "title", item.Title, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			span.SetAttributes(otel.AttrStage.String(stageOf(err)))
			otel.RecordError(span, err)
		}
		span.End()
	}()

	return o.processItem(ctx, item)
}

func (o *defaultOrchestrator) processItem(ctx context.Context, item discovery.CandidateItem) error {
	logger := slog.With("title", item.Title)

	desc, cleanup, err := o.acquireDescriptor(ctx, item)
	if err != nil {
		return &stageError{stage: stageDescriptor, err: err}
	}
	defer cleanup()

	if o.alreadyPublished(item, desc) {
		logger.Info("Item already published, skipping transfer")
		o.metrics.RecordPublishOutcome(ctx, publish.KindSkippedAlreadyPublished.String())
		return nil
	}

	res, err := o.tracker.Run(ctx, item, desc, o.settings.DownloadRoot)
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(otel.AttrTransferState.String(res.Job.State.String()))
	if res.InfoHash != "" {
		span.SetAttributes(otel.AttrInfoHash.String(res.InfoHash))
	}
	if !res.Job.StartedAt.IsZero() {
		o.metrics.RecordTransferDuration(ctx, res.Job.FinishedAt.Sub(res.Job.StartedAt), res.Job.State.String())
	}
	switch {
	case errors.Is(err, transfer.ErrTimedOut):
		o.state.RecordTimeout()
		return nil
	case errors.Is(err, transfer.ErrAbandoned):
		logger.Info("Transfer abandoned on shutdown")
		return nil
	case err != nil:
		return &stageError{stage: stageTransfer, err: err}
	}

	if ctx.Err() != nil {
		logger.Info("Shutdown requested, not publishing")
		return nil
	}

	artifact := publish.Artifact{
		Key:         publish.CanonicalKey(res.InfoHash, item.SourceLocator),
		Path:        res.ArtifactPath,
		DisplayName: item.Title,
	}
	// A started upload is not interrupted by shutdown so it is not sent
	// without being recorded
	out := o.gate.Publish(context.WithoutCancel(ctx), artifact, o.settings.Target,
		publish.Caption(item.Title, item.DeclaredSize))
	o.metrics.RecordPublishOutcome(ctx, out.Kind.String())
	span.SetAttributes(otel.AttrOutcome.String(out.Kind.String()))

	switch out.Kind {
	case publish.KindPublished:
		o.state.RecordPublish()
		o.notify(ctx, "✅ Uploaded: "+item.Title)
	case publish.KindFailed:
		return &stageError{stage: stagePublish, err: out.Reason}
	case publish.KindSkippedAlreadyPublished, publish.KindSkippedTooLarge:
	}
	return nil
}

// alreadyPublished checks the ledger before a transfer when the descriptor's
// infohash can be resolved locally
func (o *defaultOrchestrator) alreadyPublished(item discovery.CandidateItem, desc transfer.Descriptor) bool {
	if o.identifier == nil || o.seen == nil {
		return false
	}
	hash, err := o.identifier.Identify(desc)
	if err != nil {
		slog.Debug("Could not identify descriptor", "title", item.Title, "error", err)
		return false
	}
	return o.seen.Has(publish.CanonicalKey(hash, item.SourceLocator))
}

// acquireDescriptor passes magnets through and downloads metainfo files into
// the descriptor directory. cleanup removes the downloaded file.
func (o *defaultOrchestrator) acquireDescriptor(ctx context.Context, item discovery.CandidateItem) (transfer.Descriptor, func(), error) {
	none := func() {}
	locator := strings.TrimSpace(item.SourceLocator)

	switch {
	case strings.HasPrefix(locator, "magnet:"):
		return transfer.Descriptor{Magnet: locator}, none, nil
	case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"):
		dst := filepath.Join(o.settings.DownloadRoot, DescriptorDir, descriptorFileName(item.Title))
		n, err := o.fetcher.Download(ctx, locator, dst)
		if err != nil {
			return transfer.Descriptor{}, none, fmt.Errorf("failed to download descriptor: %w", err)
		}
		slog.Debug("Descriptor downloaded", "path", dst, "bytes", n)
		return transfer.Descriptor{Path: dst}, func() { _ = os.Remove(dst) }, nil
	default:
		return transfer.Descriptor{}, none, fmt.Errorf("unsupported source locator %q", locator)
	}
}

// descriptorFileName derives a file name from a title
func descriptorFileName(title string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	if len(name) > maxDescriptorName {
		cut := maxDescriptorName
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	if name == "" || name == "." || name == ".." {
		name = "descriptor"
	}
	return name + ".torrent"
}

func (o *defaultOrchestrator) notify(ctx context.Context, text string) {
	if o.notifier == nil || o.settings.Operator == 0 {
		return
	}
	if err := o.notifier.SendMessage(ctx, o.settings.Operator, text); err != nil {
		slog.Warn("Failed to notify operator", "error", err)
	}
}
