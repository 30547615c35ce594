package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/civic-report-api/internal/models"
	"github.com/noah-isme/civic-report-api/pkg/realtime"
)

const issuesTable = "issues"

// ChangeSource delivers raw change notifications for the issues table.
type ChangeSource interface {
	Subscribe() (*realtime.Subscription, error)
	Connected() bool
}

// ChangeCallback receives one translated change. Calls are sequential.
type ChangeCallback func(kind models.ChangeKind, issue models.Issue)

// ChangeFeed turns raw row notifications into domain change events for one
// subscriber, limited to its scope. There is no retry after a failed
// subscription; the owner creates a new feed.
type ChangeFeed struct {
	source   ChangeSource
	scope    models.FeedScope
	callback ChangeCallback
	logger   *zap.Logger
	metrics  *MetricsService

	mu         sync.RWMutex
	sub        *realtime.Subscription
	lastUpdate *time.Time
	closed     bool

	once sync.Once
	done chan struct{}
}

// NewChangeFeed subscribes to source and starts delivering changes to
// callback until ctx is cancelled or Close is called.
func NewChangeFeed(ctx context.Context, source ChangeSource, scope models.FeedScope, callback ChangeCallback, logger *zap.Logger, metrics *MetricsService) *ChangeFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &ChangeFeed{
		source:   source,
		scope:    scope,
		callback: callback,
		logger:   logger,
		metrics:  metrics,
		done:     make(chan struct{}),
	}

	if source == nil {
		logger.Warn("change feed has no source")
		return f
	}
	sub, err := source.Subscribe()
	if err != nil {
		logger.Warn("change feed subscription failed", zap.Error(err))
		return f
	}
	f.sub = sub

	go f.run(ctx, sub)
	return f
}

func (f *ChangeFeed) run(ctx context.Context, sub *realtime.Subscription) {
	for {
		select {
		case <-ctx.Done():
			f.Close()
			return
		case <-f.done:
			return
		case payload, ok := <-sub.C:
			if !ok {
				f.mu.Lock()
				f.sub = nil
				f.mu.Unlock()
				return
			}
			f.handle(payload)
		}
	}
}

func (f *ChangeFeed) handle(raw []byte) {
	var payload models.ChangePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		f.logger.Warn("discarding undecodable change", zap.Error(err))
		return
	}
	if payload.Table != issuesTable {
		return
	}
	kind, row, ok := payload.Kind()
	if !ok {
		return
	}
	if !f.scope.Includes(row.ReporterID) {
		return
	}

	now := time.Now().UTC()
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.lastUpdate = &now
	f.mu.Unlock()

	f.metrics.RecordFeedEvent(kind)
	if f.callback != nil {
		issue := row.ToIssue()
		issue.TextOmitted = payload.Partial
		f.callback(kind, issue)
	}
}

// Connected reports whether the subscription is live and the transport is up.
func (f *ChangeFeed) Connected() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return !f.closed && f.sub != nil && f.source.Connected()
}

// Status returns the display-only connection state.
func (f *ChangeFeed) Status() models.FeedStatus {
	connected := f.Connected()
	f.mu.RLock()
	defer f.mu.RUnlock()
	status := models.FeedStatus{Connected: connected}
	if f.lastUpdate != nil {
		ts := *f.lastUpdate
		status.LastUpdate = &ts
	}
	return status
}

// Close stops delivery. Safe to call more than once.
func (f *ChangeFeed) Close() {
	f.once.Do(func() {
		f.mu.Lock()
		f.closed = true
		sub := f.sub
		f.sub = nil
		f.mu.Unlock()

		close(f.done)
		if sub != nil {
			sub.Close()
		}
	})
}
