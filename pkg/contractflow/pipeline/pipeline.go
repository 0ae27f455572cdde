package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cognicore/contractflow/internal/remote"
	"github.com/cognicore/contractflow/pkg/contractflow"
	"github.com/cognicore/contractflow/pkg/contractflow/artifact"
	"github.com/cognicore/contractflow/pkg/contractflow/classify"
	"github.com/cognicore/contractflow/pkg/contractflow/config"
	"github.com/cognicore/contractflow/pkg/contractflow/report"
)

// Function names on the platform.
const (
	FunctionIngest  = "ingest-contract"
	FunctionExtract = "extract-clauses"
	FunctionAnalyze = "analyze-contract"
)

// Caller performs one remote call. *remote.Client implements it.
type Caller interface {
	Call(ctx context.Context, req remote.Request) (*remote.Response, error)
}

// Options configures a Pipeline.
type Options struct {
	Settings config.Settings
	Caller   Caller
	Sink     artifact.Sink
	Logger   *zap.Logger
	// NewID generates ingestion ids. Defaults to random UUIDs.
	NewID func() string
}

// Pipeline runs every manifest document through classify, register, ingest,
// extract and analyze, one document at a time.
type Pipeline struct {
	settings config.Settings
	caller   Caller
	sink     artifact.Sink
	log      *zap.Logger
	newID    func() string
	limiter  *rate.Limiter
}

// New creates a pipeline with the given dependencies.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		settings: opts.Settings,
		caller:   opts.Caller,
		sink:     opts.Sink,
		log:      opts.Logger,
		newID:    opts.NewID,
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	if p.newID == nil {
		p.newID = uuid.NewString
	}
	if opts.Settings.Pace > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(opts.Settings.Pace), 1)
	}
	return p
}

// Run processes docs in order and returns one entry per document, in the
// same order. Document failures never stop the batch.
func (p *Pipeline) Run(ctx context.Context, docs []contractflow.Document) []contractflow.Entry {
	agg := report.New(p.sink)
	p.log.Info("batch started", zap.Int("documents", len(docs)))

	for i, doc := range docs {
		p.pace(ctx)
		log := p.log.With(zap.Int("position", i), zap.String("path", doc.Path))
		p.process(ctx, agg, doc, log)
	}

	s := agg.Summary()
	p.log.Info("batch finished",
		zap.Int("documents", s.Total),
		zap.Int("succeeded", s.Succeeded),
		zap.Int("failed", s.Failed))
	return agg.Entries()
}

func (p *Pipeline) pace(ctx context.Context) {
	if p.limiter == nil {
		return
	}
	if err := p.limiter.Wait(ctx); err != nil {
		p.log.Warn("pacing skipped", zap.Error(err))
	}
}

// process drives a single document to a terminal state and appends exactly
// one entry to agg.
func (p *Pipeline) process(ctx context.Context, agg *report.Aggregator, doc contractflow.Document, log *zap.Logger) {
	content, err := classify.Classify(doc.Path)
	if err != nil {
		var se *contractflow.StageError
		if !errors.As(err, &se) {
			se = contractflow.Fail(contractflow.StageClassify, err)
		}
		p.fail(agg, doc, "", se, log)
		return
	}

	data, err := os.ReadFile(doc.Path)
	if err != nil {
		p.fail(agg, doc, "", contractflow.Fail(contractflow.StageRead, err), log)
		return
	}

	id := p.newID()
	log = log.With(zap.String("ingestion_id", id))
	fileName := filepath.Base(doc.Path)

	if se := p.register(ctx, id, fileName, content, len(data), log); se != nil {
		p.fail(agg, doc, id, se, log)
		return
	}

	ingested, se := p.ingest(ctx, doc, id, fileName, content, data, log)
	if se != nil {
		p.fail(agg, doc, id, se, log)
		return
	}

	if se := p.extract(ctx, doc, id, log); se != nil {
		p.fail(agg, doc, id, se, log)
		return
	}

	analysis, se := p.analyze(ctx, doc, id, log)
	if se != nil {
		p.fail(agg, doc, id, se, log)
		return
	}

	pages, err := classify.PageCount(doc.Path, content)
	if err != nil {
		log.Warn("page count unavailable", zap.Error(err))
	}

	entry, err := agg.Succeed(ctx, doc, report.Success{
		IngestionID:   id,
		ClausesCached: ingested.ClausesCached,
		PageCount:     pages,
		Analysis:      analysis,
	})
	if err != nil {
		log.Warn("document failed", zap.String("stage", string(contractflow.StageArtifact)), zap.Error(err))
		return
	}
	log.Info("document analyzed", zap.String("output", entry.Output))
}

func (p *Pipeline) fail(agg *report.Aggregator, doc contractflow.Document, id string, se *contractflow.StageError, log *zap.Logger) {
	log.Warn("document failed", zap.String("stage", string(se.Stage)), zap.String("error", se.Tag()))
	agg.Fail(doc, id, se)
}

// register creates the ingestion record with the elevated credential.
func (p *Pipeline) register(ctx context.Context, id, fileName string, content classify.Content, size int, log *zap.Logger) *contractflow.StageError {
	record := contractflow.IngestionRecord{
		ID:            id,
		Status:        contractflow.StatusUploaded,
		StorageBucket: p.settings.StorageBucket,
		StoragePath:   contractflow.StoragePath(id, fileName),
		OriginalName:  fileName,
		MimeType:      content.MimeType,
		FileSize:      int64(size),
	}
	_, se := p.call(ctx, contractflow.StageRegister, remote.Request{
		URL:        p.settings.RecordURL(),
		Credential: remote.Credential(p.settings.ServiceKey),
		Headers:    map[string]string{"Prefer": "return=representation"},
		Body:       record,
		Timeout:    p.settings.Timeouts.Register,
	}, log)
	return se
}

// ingest submits the encoded file content.
func (p *Pipeline) ingest(ctx context.Context, doc contractflow.Document, id, fileName string, content classify.Content, data []byte, log *zap.Logger) (IngestResponse, *contractflow.StageError) {
	resp, se := p.call(ctx, contractflow.StageIngest, remote.Request{
		URL:        p.settings.FunctionURL(FunctionIngest),
		Credential: remote.Credential(p.settings.AnonKey),
		Body: IngestRequest{
			IngestionID:    id,
			Content:        content.Encode(data),
			FileType:       content.MimeType,
			FileName:       fileName,
			DocumentFormat: content.Format(),
			ContractType:   doc.ContractType,
		},
		Timeout: p.settings.Timeouts.Ingest,
	}, log)
	if se != nil {
		return IngestResponse{}, se
	}

	var out IngestResponse
	if err := resp.Decode(&out); err != nil {
		return IngestResponse{}, contractflow.Fail(contractflow.StageIngest, err)
	}
	return out, nil
}

// extract runs clause extraction. Its response is not needed beyond success.
func (p *Pipeline) extract(ctx context.Context, doc contractflow.Document, id string, log *zap.Logger) *contractflow.StageError {
	_, se := p.call(ctx, contractflow.StageExtract, remote.Request{
		URL:        p.settings.FunctionURL(FunctionExtract),
		Credential: remote.Credential(p.settings.AnonKey),
		Body: ExtractRequest{
			IngestionID:  id,
			ContractType: doc.ContractType,
			ForceRefresh: false,
		},
		Timeout: p.settings.Timeouts.Extract,
	}, log)
	return se
}

// analyze runs the contract review and returns the raw response body.
func (p *Pipeline) analyze(ctx context.Context, doc contractflow.Document, id string, log *zap.Logger) ([]byte, *contractflow.StageError) {
	resp, se := p.call(ctx, contractflow.StageAnalyze, remote.Request{
		URL:        p.settings.FunctionURL(FunctionAnalyze),
		Credential: remote.Credential(p.settings.AnonKey),
		Body: AnalyzeRequest{
			IngestionID:      id,
			ReviewType:       p.settings.ReviewType,
			Model:            p.settings.Model,
			ContractType:     doc.ContractType,
			Perspective:      doc.Perspective,
			SelectedSolution: doc.Solution,
		},
		Timeout: p.settings.Timeouts.Analyze,
	}, log)
	if se != nil {
		return nil, se
	}
	return resp.Body, nil
}

func (p *Pipeline) call(ctx context.Context, stage contractflow.Stage, req remote.Request, log *zap.Logger) (*remote.Response, *contractflow.StageError) {
	req.Stage = string(stage)
	start := time.Now()
	resp, err := p.caller.Call(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		log.Debug("stage failed", zap.String("stage", req.Stage), zap.Duration("duration", elapsed), zap.Error(err))
		return nil, contractflow.Fail(stage, err)
	}
	if resp == nil {
		return nil, contractflow.Fail(stage, errors.New("no response"))
	}
	log.Info("stage complete", zap.String("stage", req.Stage), zap.Duration("duration", elapsed), zap.Int("status", resp.StatusCode))
	return resp, nil
}
