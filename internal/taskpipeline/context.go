package taskpipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
)

// buildContext assembles the Crawling Context for one attempt, binding
// enqueueLinks/addRequests/pushData/useState/getKeyValueStore/sendRequest
// to this pipeline's collaborators and this request's session — the same
// closure-over-engine-state idiom the teacher uses for its ResponseCallback
// fields, just gathered onto one struct per attempt (spec §9 design note).
func (p *Pipeline) buildContext(ctx context.Context, req *types.Request, session *types.Session, proxyURL string, reqLog *slog.Logger) *types.Context {
	cc := &types.Context{
		Context:  ctx,
		Request:  req,
		Session:  session,
		ProxyURL: proxyURL,
		Log:      reqLog,
	}

	cc.EnqueueLinks = func(urls []string, opts ...types.EnqueueOption) error {
		cfg := types.ResolveEnqueueConfig(p.cfg.DefaultEnqueueStrategy, opts...)
		requests, err := p.buildDiscoveredRequests(req, urls, cfg)
		if err != nil {
			return err
		}
		return p.admitDiscovered(ctx, requests, cfg.Forefront)
	}

	cc.AddRequests = func(requests []*types.Request) error {
		for _, r := range requests {
			r.CrawlDepth = req.CrawlDepth + 1
		}
		admitted := p.filterByDepthAndLimit(requests)
		return p.admitDiscovered(ctx, admitted, false)
	}

	cc.PushData = func(item *types.Item) error {
		if p.pushData == nil {
			return fmt.Errorf("taskpipeline: no item sink configured")
		}
		return p.pushData(item)
	}

	cc.GetKeyValueStore = func(idOrName string) (types.KeyValueStore, error) {
		if p.kvStore == nil {
			return nil, fmt.Errorf("taskpipeline: no key-value store configured")
		}
		return p.kvStore(idOrName)
	}

	cc.UseState = func(key string, defaultValue any) (any, error) {
		store, err := cc.GetKeyValueStore("")
		if err != nil {
			return nil, err
		}
		return store.GetAutoSavedValue(key, defaultValue)
	}

	cc.SendRequest = func(r *types.Request) (*types.Response, error) {
		if p.fetcher == nil {
			return nil, fmt.Errorf("taskpipeline: no fetcher configured")
		}
		resp, err := p.fetcher.Fetch(ctx, r, session)
		if err != nil {
			return nil, err
		}
		if resp.FinalURL != "" {
			if u, parseErr := req.URL.Parse(resp.FinalURL); parseErr == nil {
				req.LoadedURL = u
			}
		}
		return resp, nil
	}

	return cc
}

// buildDiscoveredRequests turns raw URLs into Requests carrying the parent's
// crawl depth + 1, the call's label/userData, and the resolved strategy —
// spec §4.6's enqueueLinks depth injection.
func (p *Pipeline) buildDiscoveredRequests(parent *types.Request, urls []string, cfg types.EnqueueConfig) ([]*types.Request, error) {
	out := make([]*types.Request, 0, len(urls))
	for _, raw := range urls {
		r, err := types.NewRequest(raw)
		if err != nil {
			continue // malformed discovered links are dropped, not fatal
		}
		r.CrawlDepth = parent.CrawlDepth + 1
		r.EnqueueStrategy = cfg.Strategy
		r.MaxRetries = cfg.MaxRetries
		if cfg.Label != "" {
			r.UserData["label"] = cfg.Label
		}
		for k, v := range cfg.UserData {
			r.UserData[k] = v
		}
		r.SetForefront(cfg.Forefront)
		out = append(out, r)
	}
	return p.filterByDepthAndLimit(out), nil
}

// filterByDepthAndLimit drops requests beyond maxCrawlDepth or beyond the
// remaining maxRequestsPerCrawl budget, firing the skip callback for each —
// spec §4.6's "clamps limit via maxRequestsPerCrawl − handled − pending".
func (p *Pipeline) filterByDepthAndLimit(requests []*types.Request) []*types.Request {
	remaining := -1
	if p.cfg.MaxRequestsPerCrawl > 0 {
		remaining = p.cfg.MaxRequestsPerCrawl - int(p.requests.HandledCount()) - p.requests.GetPendingCount()
	}

	out := make([]*types.Request, 0, len(requests))
	for _, r := range requests {
		if p.cfg.MaxCrawlDepth > 0 && r.CrawlDepth > p.cfg.MaxCrawlDepth {
			p.fireSkip(r, SkipDepth)
			continue
		}
		if remaining == 0 {
			p.fireSkip(r, SkipLimit)
			continue
		}
		if remaining > 0 {
			remaining--
		}
		out = append(out, r)
	}
	return out
}

func (p *Pipeline) fireSkip(req *types.Request, reason SkipReason) {
	req.SkippedReason = string(reason)
	req.State = types.StateSkipped
	if p.cfg.OnSkippedRequest != nil {
		p.cfg.OnSkippedRequest(req, reason)
	}
}

func (p *Pipeline) admitDiscovered(ctx context.Context, requests []*types.Request, forefront bool) error {
	if len(requests) == 0 {
		return nil
	}
	return timeoutAndRetry(ctx, p.cfg.InternalTimeout, p.cfg.InternalRetries, func(opCtx context.Context) error {
		p.requests.AddRequestsBatched(opCtx, requests, forefront)
		return nil
	})
}
