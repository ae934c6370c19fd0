package engine

import (
	"context"
	"sync"

	"github.com/scitool/toolengine/internal/toolcache"
	"github.com/scitool/toolengine/pkg/tool"
)

// batchJob groups the original call indices that share a canonical
// signature, so identical calls execute once and share their result.
type batchJob struct {
	call    Call
	indices []int
}

// RunBatch implements spec.md §4.7's batch algorithm: dedup by canonical
// signature, prime the cache in bulk, dispatch the remainder under
// per-tool semaphores and an overall worker pool, and write results back
// into their original positions.
func (e *Engine) RunBatch(ctx context.Context, calls []Call, opts Options) []Result {
	results := make([]Result, len(calls))
	if len(calls) == 0 {
		return results
	}

	jobs, jobOrder := dedupCalls(calls)

	jobCfgs := make(map[*batchJob]*tool.Config, len(jobOrder))
	jobInstances := make(map[*batchJob]tool.Instance, len(jobOrder))
	var bulkReqs []toolcache.BulkRequest
	bulkKeyToJob := make(map[string]*batchJob)

	for _, j := range jobOrder {
		cfg, ok := e.lookupConfig(j.call.Name)
		if !ok {
			continue
		}
		jobCfgs[j] = cfg

		instance, toolErr := e.resolveInstance(cfg)
		if toolErr != nil {
			continue
		}
		jobInstances[j] = instance

		if opts.UseCache && cfg.Cacheable && instance.SupportsCaching() && e.cache != nil {
			ns := instance.GetCacheNamespace()
			ver := instance.GetCacheVersion()
			ck := instance.GetCacheKey(j.call.Arguments)
			bulkReqs = append(bulkReqs, toolcache.BulkRequest{Namespace: ns, Version: ver, CacheKey: ck})
			bulkKeyToJob[toolcache.ComposeKey(ns, ver, ck)] = j
		}
	}

	primed := make(map[*batchJob]any)
	if len(bulkReqs) > 0 && e.cache != nil {
		hits := e.cache.BulkGet(bulkReqs)
		for key, v := range hits {
			if j, ok := bulkKeyToJob[key]; ok {
				primed[j] = v
			}
		}
	}

	// Streaming and parallelism are mutually exclusive: a single shared
	// callback across concurrent invocations would interleave chunks from
	// unrelated calls, so a batch with a stream callback coerces to a
	// worker pool of size 1.
	workerLimit := e.maxWorkers
	if workerLimit <= 0 {
		workerLimit = len(jobOrder)
	}
	if opts.StreamCallback != nil {
		workerLimit = 1
	}
	if workerLimit <= 0 {
		workerLimit = 1
	}
	workerSlots := make(chan struct{}, workerLimit)

	var toolSemMu sync.Mutex
	toolSems := make(map[string]chan struct{})
	semFor := func(toolName string, limit int) chan struct{} {
		if limit <= 0 {
			return nil
		}
		toolSemMu.Lock()
		defer toolSemMu.Unlock()
		sem, ok := toolSems[toolName]
		if !ok {
			sem = make(chan struct{}, limit)
			toolSems[toolName] = sem
		}
		return sem
	}

	jobResults := make(map[*batchJob]Result, len(jobOrder))
	var jobResultsMu sync.Mutex
	var wg sync.WaitGroup

	for _, j := range jobOrder {
		if cached, ok := primed[j]; ok {
			jobResults[j] = Result{Value: cached}
			e.recordBatchOutcome("cache_hit")
			continue
		}

		j := j
		workerSlots <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-workerSlots }()

			cfg, ok := jobCfgs[j]
			if !ok {
				result := Result{Error: tool.UnavailableError(
					"unknown tool \""+j.call.Name+"\"", "Check tool name spelling", "Refresh tools")}
				jobResultsMu.Lock()
				jobResults[j] = result
				jobResultsMu.Unlock()
				e.recordBatchOutcome("error")
				return
			}

			if sem := semFor(cfg.Name, cfg.ClampConcurrency()); sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}

			result := e.RunOne(ctx, j.call, opts)
			jobResultsMu.Lock()
			jobResults[j] = result
			jobResultsMu.Unlock()

			if result.IsError() {
				e.recordBatchOutcome("error")
			} else {
				e.recordBatchOutcome("success")
			}
		}()
	}

	wg.Wait()

	for _, j := range jobOrder {
		result := jobResults[j]
		for _, idx := range j.indices {
			results[idx] = result
		}
	}

	return results
}

// dedupCalls groups calls by canonical signature (a content hash of
// {name, arguments}, reusing tool.DefaultCacheKey so identical calls with
// differently-ordered map keys still collapse to one job), preserving
// first-occurrence order.
func dedupCalls(calls []Call) (map[string]*batchJob, []*batchJob) {
	jobs := make(map[string]*batchJob)
	var order []*batchJob
	for i, call := range calls {
		sig := tool.DefaultCacheKey("__batch_signature__:"+call.Name, call.Arguments)
		j, ok := jobs[sig]
		if !ok {
			j = &batchJob{call: call}
			jobs[sig] = j
			order = append(order, j)
		}
		j.indices = append(j.indices, i)
	}
	return jobs, order
}

func (e *Engine) recordBatchOutcome(outcome string) {
	if e.metrics == nil {
		return
	}
	e.metrics.EngineBatchJobsTotal.WithLabelValues(outcome).Inc()
}
