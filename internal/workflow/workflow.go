// Package workflow runs the four-stage offer pipeline: search, scrape,
// consolidate and analyze.
//
// Every stage returns a Result. The first failed Result stops the run and
// becomes the failure envelope; a successful run ends with the analysis. The
// envelope never carries both.
package workflow

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"offer-crew/internal/common/errors"
	"offer-crew/internal/common/logger"
	"offer-crew/internal/common/metrics"
	"offer-crew/internal/common/observability"
	"offer-crew/internal/decode"
	"offer-crew/internal/llm"
	"offer-crew/internal/models"
	"offer-crew/internal/runtime"
	"offer-crew/internal/tasks"
)

// Store receives every scrape response of a run. Its failures never abort the run.
type Store interface {
	Store(ctx context.Context, tenantName string, responses []models.ScrapeResponse) error
}

// StateRecorder is told about every state change of a run.
type StateRecorder interface {
	RecordState(ctx context.Context, runID, tenantName, state, errMsg string) error
}

// Notifier receives the terminal envelope of a run.
type Notifier interface {
	Notify(ctx context.Context, tenantName string, envelope *models.Envelope) error
}

type Config struct {
	MaxResults        int
	ScrapeConcurrency int
}

type Orchestrator struct {
	runtime  runtime.Runtime
	store    Store
	recorder StateRecorder
	notifier Notifier
	obs      *observability.Observability
	config   Config
	logger   logger.Logger
	newRunID func() string
}

type Option func(*Orchestrator)

func WithStore(s Store) Option                 { return func(o *Orchestrator) { o.store = s } }
func WithStateRecorder(r StateRecorder) Option { return func(o *Orchestrator) { o.recorder = r } }
func WithNotifier(n Notifier) Option           { return func(o *Orchestrator) { o.notifier = n } }

func WithObservability(obs *observability.Observability) Option {
	return func(o *Orchestrator) { o.obs = obs }
}

// WithRunIDs replaces the uuid run id generator.
func WithRunIDs(gen func() string) Option {
	return func(o *Orchestrator) { o.newRunID = gen }
}

func New(rt runtime.Runtime, cfg Config, log logger.Logger, opts ...Option) *Orchestrator {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = models.DefaultMaxResults
	}
	if cfg.ScrapeConcurrency <= 0 {
		cfg.ScrapeConcurrency = 1
	}
	o := &Orchestrator{
		runtime:  rt,
		config:   cfg,
		logger:   log,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the pipeline for req and always returns an envelope.
func (o *Orchestrator) Run(ctx context.Context, req *models.ChatRequest) (env *models.Envelope) {
	runID := o.newRunID()
	machine := NewMachine()
	tenant := ""
	if req != nil {
		tenant = req.TenantName
	}
	log := o.logger.WithFields(map[string]interface{}{"runId": runID, "tenantName": tenant})

	defer func() {
		if r := recover(); r != nil {
			log.Error("Workflow panicked", map[string]interface{}{"panic": fmt.Sprint(r), "state": string(machine.State())})
			stageErr := &StageError{Code: errors.ErrCodeInternal, Err: errors.NewInternalError(fmt.Errorf("%v", r))}
			env = o.failed(ctx, runID, tenant, machine, stageErr, log)
		}
	}()

	if req == nil {
		return o.failed(ctx, runID, tenant, machine, &StageError{
			Code: errors.ErrCodeInvalidRequest,
			Err:  errors.NewInvalidRequestError("request body is required"),
		}, log)
	}
	if err := req.Validate(); err != nil {
		return o.failed(ctx, runID, tenant, machine, &StageError{
			Code: errors.ErrCodeInvalidRequest,
			Err:  errors.NewInvalidRequestError(err.Error()),
		}, log)
	}

	log.Info("Starting offer workflow", map[string]interface{}{"offerType": req.OfferType})

	search := runStage(ctx, o, machine, runID, tenant, StageSearch, StateSearching,
		func(ctx context.Context) Result[*models.SearchResults] { return o.search(ctx, req, log) })
	if search.Failed() {
		return o.failed(ctx, runID, tenant, machine, search.Err, log)
	}

	scrape := runStage(ctx, o, machine, runID, tenant, StageScrape, StateScraping,
		func(ctx context.Context) Result[[]models.ScrapeResponse] {
			return o.scrape(ctx, req, search.Value.URLs(), log)
		})
	if scrape.Failed() {
		return o.failed(ctx, runID, tenant, machine, scrape.Err, log)
	}

	consolidated := runStage(ctx, o, machine, runID, tenant, StageConsolidate, StateConsolidating,
		func(ctx context.Context) Result[*models.ConsolidatedData] {
			return o.consolidate(ctx, successful(scrape.Value))
		})
	if consolidated.Failed() {
		return o.failed(ctx, runID, tenant, machine, consolidated.Err, log)
	}

	analysis := runStage(ctx, o, machine, runID, tenant, StageAnalyze, StateAnalyzing,
		func(ctx context.Context) Result[*models.OfferAnalysisResponse] {
			return o.analyze(ctx, req, consolidated.Value)
		})
	if analysis.Failed() {
		return o.failed(ctx, runID, tenant, machine, analysis.Err, log)
	}

	return o.completed(ctx, runID, tenant, machine, analysis.Value, log)
}

// runStage moves the run into state, executes fn inside a span and records
// the stage duration.
func runStage[T any](
	ctx context.Context,
	o *Orchestrator,
	machine *Machine,
	runID, tenant string,
	stage Stage,
	state State,
	fn func(context.Context) Result[T],
) Result[T] {
	if err := ctx.Err(); err != nil {
		return fail[T](stage, errors.NewPipelineCancelledError(err))
	}
	if err := machine.Transition(state); err != nil {
		return fail[T](stage, errors.NewInternalError(err))
	}
	o.recordState(ctx, runID, tenant, state, "")

	ctx, span := o.obs.StartSpan(ctx, "pipeline."+string(stage),
		attribute.String("runId", runID),
		attribute.String("stage", string(stage)),
	)
	defer span.End()

	start := time.Now()
	res := fn(ctx)
	elapsed := time.Since(start)

	status := "success"
	if res.Failed() {
		status = "error"
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
		span.SetAttributes(attribute.String("errorCode", string(res.Err.Code)))
	}
	metrics.PipelineStageDuration.WithLabelValues(string(stage), status).Observe(elapsed.Seconds())
	o.obs.RecordStageDuration(ctx, string(stage), elapsed, status)
	return res
}

func (o *Orchestrator) search(ctx context.Context, req *models.ChatRequest, log logger.Logger) Result[*models.SearchResults] {
	query := req.SearchText()
	task, err := tasks.NewSearchTask(query, o.config.MaxResults)
	if err != nil {
		return fail[*models.SearchResults](StageSearch, errors.NewInvalidRequestError(err.Error()))
	}

	out, stdErr := o.executeOne(ctx, task)
	if stdErr != nil {
		return fail[*models.SearchResults](StageSearch, stdErr)
	}

	results, _, err := decode.Into[models.SearchResults](out.Raw, task.OutputSchema)
	if err != nil {
		return fail[*models.SearchResults](StageSearch, errors.NewSchemaValidationError(task.OutputSchema, err))
	}

	results = results.Distinct(o.config.MaxResults)
	if len(results.Results) == 0 {
		return fail[*models.SearchResults](StageSearch, errors.NewEmptySearchResultsError(query))
	}

	log.Info("Search results", map[string]interface{}{"urls": results.URLs()})
	return succeed(results)
}

func (o *Orchestrator) scrape(ctx context.Context, req *models.ChatRequest, urls []string, log logger.Logger) Result[[]models.ScrapeResponse] {
	fields := req.OfferFields()
	responses := make([]models.ScrapeResponse, len(urls))

	batch := make([]*tasks.Task, 0, len(urls))
	slots := make([]int, 0, len(urls))
	for i, url := range urls {
		task, err := tasks.NewScrapeTask(url, fields, nil)
		if err != nil {
			responses[i] = models.NewFailedScrapeResponse(url, err)
			continue
		}
		batch = append(batch, task)
		slots = append(slots, i)
	}

	results := runtime.Kickoff(ctx, o.runtime, runtime.Concurrent, o.config.ScrapeConcurrency, batch)
	for j, res := range results {
		i := slots[j]
		url := urls[i]
		if res.Err != nil {
			responses[i] = models.NewFailedScrapeResponse(url, res.Err)
			continue
		}
		resp, _, err := decode.Into[models.ScrapeResponse](res.Output.Raw, res.Task.OutputSchema, decode.WithField("url", url))
		if err != nil {
			responses[i] = models.NewFailedScrapeResponse(url, err)
			continue
		}
		resp.URL = url
		if resp.Data == nil {
			resp.Data = map[string]interface{}{}
		}
		responses[i] = *resp
	}

	ok := 0
	for _, resp := range responses {
		if resp.Failed() {
			metrics.ScrapeResponses.WithLabelValues("failed").Inc()
			log.Warn("Scrape failed", map[string]interface{}{"url": resp.URL, "error": resp.Error})
			continue
		}
		ok++
		metrics.ScrapeResponses.WithLabelValues("success").Inc()
	}
	log.Info("Scrape stage finished", map[string]interface{}{"pages": len(responses), "successful": ok})

	o.storeResponses(ctx, req.TenantName, responses, log)
	return succeed(responses)
}

func (o *Orchestrator) consolidate(ctx context.Context, responses []models.ScrapeResponse) Result[*models.ConsolidatedData] {
	task := tasks.NewConsolidationTask(responses)

	out, stdErr := o.executeOne(ctx, task)
	if stdErr != nil {
		return fail[*models.ConsolidatedData](StageConsolidate, stdErr)
	}

	data, _, err := decode.Into[models.ConsolidatedData](out.Raw, task.OutputSchema)
	if err != nil {
		return fail[*models.ConsolidatedData](StageConsolidate, errors.NewSchemaValidationError(task.OutputSchema, err))
	}
	return succeed(data)
}

func (o *Orchestrator) analyze(ctx context.Context, req *models.ChatRequest, data *models.ConsolidatedData) Result[*models.OfferAnalysisResponse] {
	task, err := tasks.NewOfferAnalysisTask(data.ConsolidatedItems, req.TenantDetails, req.ExistingOffers)
	if err != nil {
		return fail[*models.OfferAnalysisResponse](StageAnalyze, errors.NewInternalError(err))
	}

	out, stdErr := o.executeOne(ctx, task)
	if stdErr != nil {
		return fail[*models.OfferAnalysisResponse](StageAnalyze, stdErr)
	}

	analysis, _, err := decode.Into[models.OfferAnalysisResponse](out.Raw, task.OutputSchema)
	if err != nil {
		return fail[*models.OfferAnalysisResponse](StageAnalyze, errors.NewSchemaValidationError(task.OutputSchema, err))
	}
	return succeed(analysis)
}

// executeOne runs a single task sequentially and classifies its failure.
func (o *Orchestrator) executeOne(ctx context.Context, task *tasks.Task) (*runtime.Output, *errors.StandardError) {
	res := runtime.Kickoff(ctx, o.runtime, runtime.Sequential, 1, []*tasks.Task{task})[0]
	if res.Err != nil {
		return nil, classify(ctx, task, res.Err)
	}
	if res.Output == nil {
		return nil, errors.NewAgentExecutionError(task.Name, fmt.Errorf("no output"))
	}
	return res.Output, nil
}

func classify(ctx context.Context, task *tasks.Task, err error) *errors.StandardError {
	if ctx.Err() != nil && (stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)) {
		return errors.NewPipelineCancelledError(err)
	}
	if stderrors.Is(err, llm.ErrLLMTimeout) {
		return errors.NewLLMTimeoutError(err)
	}
	var stdErr *errors.StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return errors.NewAgentExecutionError(task.Name, err)
}

func successful(responses []models.ScrapeResponse) []models.ScrapeResponse {
	out := make([]models.ScrapeResponse, 0, len(responses))
	for _, resp := range responses {
		if !resp.Failed() {
			out = append(out, resp)
		}
	}
	return out
}

func (o *Orchestrator) storeResponses(ctx context.Context, tenant string, responses []models.ScrapeResponse, log logger.Logger) {
	if o.store == nil {
		return
	}
	err := tolerate(func() error { return o.store.Store(ctx, tenant, responses) })
	if err != nil {
		stdErr := errors.NewStorageFailedError(err)
		log.Warn("Storing scraped data failed", map[string]interface{}{"errorCode": string(stdErr.Code), "error": err})
	}
}

func (o *Orchestrator) recordState(ctx context.Context, runID, tenant string, state State, errMsg string) {
	if o.recorder == nil {
		return
	}
	err := tolerate(func() error { return o.recorder.RecordState(ctx, runID, tenant, string(state), errMsg) })
	if err != nil {
		o.logger.Warn("Recording run state failed", map[string]interface{}{"runId": runID, "state": string(state), "error": err})
	}
}

func (o *Orchestrator) notify(ctx context.Context, tenant string, env *models.Envelope, log logger.Logger) {
	if o.notifier == nil {
		return
	}
	if err := tolerate(func() error { return o.notifier.Notify(ctx, tenant, env) }); err != nil {
		stdErr := errors.NewNotificationFailedError("notifier", err)
		log.Warn("Sending completion notification failed", map[string]interface{}{"errorCode": string(stdErr.Code), "error": err})
	}
}

// tolerate runs fn and turns a panic into an error.
func tolerate(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func (o *Orchestrator) completed(ctx context.Context, runID, tenant string, machine *Machine, analysis *models.OfferAnalysisResponse, log logger.Logger) *models.Envelope {
	if err := machine.Transition(StateCompleted); err != nil {
		return o.failed(ctx, runID, tenant, machine, &StageError{Code: errors.ErrCodeInternal, Err: errors.NewInternalError(err)}, log)
	}
	o.recordState(ctx, runID, tenant, StateCompleted, "")

	env := models.NewCompletedEnvelope(runID, tenant, analysis)
	metrics.PipelineRuns.WithLabelValues(models.StatusCompleted).Inc()
	o.obs.RecordRun(ctx, models.StatusCompleted)
	log.Info("Offer workflow completed", nil)

	o.notify(ctx, tenant, env, log)
	return env
}

func (o *Orchestrator) failed(ctx context.Context, runID, tenant string, machine *Machine, stageErr *StageError, log logger.Logger) *models.Envelope {
	if !machine.State().Terminal() {
		_ = machine.Transition(StateFailed)
	}
	msg := stageErr.Error()
	o.recordState(ctx, runID, tenant, StateFailed, msg)

	env := models.NewFailedEnvelope(runID, msg, string(stageErr.Code), string(stageErr.Stage))
	metrics.PipelineRuns.WithLabelValues(models.StatusFailed).Inc()
	o.obs.RecordRun(ctx, models.StatusFailed)
	log.Error("Workflow error", map[string]interface{}{
		"stage":         string(stageErr.Stage),
		"errorCode":     string(stageErr.Code),
		"errorCategory": errors.GetErrorCategory(stageErr.Code),
		"error":         msg,
	})

	o.notify(ctx, tenant, env, log)
	return env
}
