package perturb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/entalign/kgmorph/ai/provider"
	"github.com/entalign/kgmorph/config"
	"github.com/entalign/kgmorph/errors"
	"github.com/entalign/kgmorph/kg"
)

// syntheticType marks entities added by the engine. Synthetic entities carry
// placeholder text only, so the text phase leaves them alone.
const syntheticType = "RandomEntity"

type runState int

const (
	stateNew runState = iota
	stateLoaded
	stateEntitiesRemoved
	stateEdgesRemoved
	stateEntitiesAdded
	stateEdgesAdded
	stateTextPerturbed
	stateFinalized
)

var stateNames = map[runState]string{
	stateNew:             "New",
	stateLoaded:          "Loaded",
	stateEntitiesRemoved: "EntitiesRemoved",
	stateEdgesRemoved:    "EdgesRemoved",
	stateEntitiesAdded:   "EntitiesAdded",
	stateEdgesAdded:      "EdgesAdded",
	stateTextPerturbed:   "TextPerturbed",
	stateFinalized:       "Finalized",
}

func (s runState) String() string { return stateNames[s] }

// Options carries the engine's collaborators. Generator may be nil when no
// text perturbation is configured.
type Options struct {
	Generator          provider.TextGenerator
	Workers            int
	RateLimitPerMinute int
	Retry              config.Retry
	Logger             *zap.SugaredLogger

	// RunID correlates engine logs with adapter usage records. Empty
	// generates a fresh id.
	RunID string
}

// Result is one run's output: the mutated graph, the finalized ground-truth
// mapping, and every diagnostic the run absorbed.
type Result struct {
	Graph       *kg.Graph
	Mapping     []Entry
	Diagnostics []Diagnostic
	RunID       string
}

// Engine applies one run's perturbations. It owns its graph, tracker and
// sampler for the duration of a single Perturb call and is not reusable.
type Engine struct {
	cfg    config.Perturbation
	opts   Options
	logger *zap.SugaredLogger
	runID  string

	state   runState
	graph   *kg.Graph
	tracker *Tracker
	sampler *Sampler

	// origOf maps a surviving entity's current id to its load-time id.
	origOf  map[string]string
	removed map[string]bool

	mu      sync.Mutex
	diags   []Diagnostic
	touched map[string]bool
}

// NewEngine creates a single-use engine for one perturbation run.
func NewEngine(cfg config.Perturbation, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	return &Engine{
		cfg:     cfg,
		opts:    opts,
		logger:  logger.Named("perturb"),
		runID:   runID,
		state:   stateNew,
		origOf:  make(map[string]string),
		removed: make(map[string]bool),
		touched: make(map[string]bool),
	}
}

// RunID returns the run's correlation id.
func (e *Engine) RunID() string { return e.runID }

func (e *Engine) advance(from, to runState) error {
	if e.state != from {
		return errors.AssertionFailedf("engine in state %s, expected %s", e.state, from)
	}
	e.state = to
	return nil
}

// Perturb runs the full operator pipeline over g, mutating it in place.
// Operators execute in a fixed canonical order so removal counts are drawn
// against the original population and additions target the post-removal
// graph. The call is non-reentrant; a second call fails.
func (e *Engine) Perturb(ctx context.Context, g *kg.Graph) (*Result, error) {
	if err := e.advance(stateNew, stateLoaded); err != nil {
		return nil, err
	}
	e.graph = g
	e.tracker = NewTracker()
	e.sampler = NewSampler(e.cfg.Seed)

	originalIDs := g.EntityIDs()
	for _, id := range originalIDs {
		e.origOf[id] = id
	}

	e.logger.Infow("Perturbation run starting",
		"run_id", e.runID,
		"seed", e.cfg.Seed,
		"entities", len(originalIDs),
		"relations", g.RelationCount(),
	)

	if err := e.removeEntities(); err != nil {
		return nil, err
	}
	if err := e.advance(stateLoaded, stateEntitiesRemoved); err != nil {
		return nil, err
	}

	if err := e.removeEdges(); err != nil {
		return nil, err
	}
	if err := e.advance(stateEntitiesRemoved, stateEdgesRemoved); err != nil {
		return nil, err
	}

	if err := e.addEntities(); err != nil {
		return nil, err
	}
	if err := e.advance(stateEdgesRemoved, stateEntitiesAdded); err != nil {
		return nil, err
	}

	if err := e.addEdges(); err != nil {
		return nil, err
	}
	if err := e.advance(stateEntitiesAdded, stateEdgesAdded); err != nil {
		return nil, err
	}

	if e.cfg.ReassignIDs {
		if err := e.reassignIDs(len(originalIDs)); err != nil {
			return nil, err
		}
	}

	if err := e.perturbText(ctx); err != nil {
		return nil, err
	}
	if err := e.advance(stateEdgesAdded, stateTextPerturbed); err != nil {
		return nil, err
	}

	for _, origID := range originalIDs {
		if e.removed[origID] || e.touched[origID] {
			continue
		}
		if err := e.tracker.RecordUnchanged(origID); err != nil {
			return nil, err
		}
	}

	mapping, err := e.tracker.Finalize(originalIDs, g.EntityIDs())
	if err != nil {
		return nil, err
	}
	if err := e.advance(stateTextPerturbed, stateFinalized); err != nil {
		return nil, err
	}

	e.logger.Infow("Perturbation run finished",
		"run_id", e.runID,
		"entities", g.EntityCount(),
		"relations", g.RelationCount(),
		"diagnostics", len(e.diags),
	)

	return &Result{
		Graph:       g,
		Mapping:     mapping,
		Diagnostics: e.diags,
		RunID:       e.runID,
	}, nil
}

func (e *Engine) removeEntities() error {
	n := e.cfg.RemoveEntities
	if n <= 0 {
		return nil
	}
	if avail := e.graph.EntityCount(); n > avail {
		e.diag(diagf(DiagOverRequest, "requested removal of %d entities, only %d present", n, avail))
	}
	for _, id := range e.sampler.SampleStrings(e.graph.EntityIDs(), n) {
		if err := e.graph.RemoveEntity(id); err != nil {
			return err
		}
		if err := e.tracker.RecordRemoved(id); err != nil {
			return err
		}
		origID := e.origOf[id]
		delete(e.origOf, id)
		e.removed[origID] = true
		e.logger.Debugw("Removed entity", "run_id", e.runID, "entity", id)
	}
	return nil
}

func (e *Engine) removeEdges() error {
	n := e.cfg.RemoveEdges
	if n <= 0 {
		return nil
	}
	// Sampled from the surviving relation set, post entity-removal cascade.
	byKey := make(map[string]kg.Triplet)
	keys := make([]string, 0, e.graph.RelationCount())
	for _, t := range e.graph.Triplets() {
		k := tripletKey(t)
		byKey[k] = t
		keys = append(keys, k)
	}
	if n > len(keys) {
		e.diag(diagf(DiagOverRequest, "requested removal of %d edges, only %d present", n, len(keys)))
	}
	for _, k := range e.sampler.SampleStrings(keys, n) {
		if err := e.graph.RemoveRelation(byKey[k]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) addEntities() error {
	for i := 0; i < e.cfg.AddEntities; i++ {
		id := e.graph.FreshID("rand_")
		ent := &kg.Entity{
			ID:   id,
			Name: "Random Entity " + strings.TrimPrefix(id, "rand_"),
			Type: syntheticType,
		}
		if err := e.graph.AddEntity(ent); err != nil {
			return err
		}
		if err := e.tracker.RecordAdded(id); err != nil {
			return err
		}
		e.logger.Debugw("Added synthetic entity", "run_id", e.runID, "entity", id)
	}
	return nil
}

func (e *Engine) addEdges() error {
	if e.cfg.AddEdges <= 0 {
		return nil
	}
	ids := e.graph.EntityIDs()
	preds := e.graph.Predicates()
	limit := e.cfg.EdgeRetryLimit
	if limit < 1 {
		limit = 10
	}

	for i := 0; i < e.cfg.AddEdges; i++ {
		if len(preds) == 0 {
			e.diag(diagf(DiagEdgeSkip, "edge %d/%d: no predicate vocabulary to draw from", i+1, e.cfg.AddEdges))
			continue
		}
		minEntities := 2
		if e.cfg.AllowSelfLoops {
			minEntities = 1
		}
		if len(ids) < minEntities {
			e.diag(diagf(DiagEdgeSkip, "edge %d/%d: not enough entities", i+1, e.cfg.AddEdges))
			continue
		}

		added := false
		for attempt := 0; attempt < limit; attempt++ {
			src := e.sampler.Pick(ids)
			tgt := e.sampler.Pick(ids)
			if src == tgt && !e.cfg.AllowSelfLoops {
				continue
			}
			pred := e.sampler.Pick(preds)
			t := kg.Triplet{Source: src, Predicate: pred, Target: tgt}
			if e.graph.HasRelation(t) {
				continue
			}
			if err := e.graph.AddRelation(&kg.Relation{Source: src, Predicate: pred, Target: tgt}); err != nil {
				return err
			}
			added = true
			break
		}
		if !added {
			e.diag(diagf(DiagEdgeSkip, "edge %d/%d: exhausted %d attempts without a fresh triplet", i+1, e.cfg.AddEdges, limit))
		}
	}
	return nil
}

// reassignIDs renumbers surviving originals to e{N+1}... so the perturbed
// graph shares no id space with the original. Synthetic entities keep their
// rand_ ids.
func (e *Engine) reassignIDs(originalCount int) error {
	counter := originalCount + 1
	for _, id := range e.graph.EntityIDs() {
		origID, ok := e.origOf[id]
		if !ok {
			continue
		}
		for {
			candidate := fmt.Sprintf("e%d", counter)
			counter++
			err := e.graph.RenameEntity(id, candidate)
			if errors.Is(err, kg.ErrDuplicate) {
				continue
			}
			if err != nil {
				return err
			}
			if err := e.tracker.RecordReassigned(origID, candidate); err != nil {
				return err
			}
			delete(e.origOf, id)
			e.origOf[candidate] = origID
			break
		}
	}
	return nil
}

type textJob struct {
	attr        provider.AttributeKind
	instruction string
	current     string
}

type entityTask struct {
	id       string // current graph id
	recordID string // load-time id for originals
	jobs     []textJob
}

type relationTask struct {
	triplet     kg.Triplet
	instruction string
}

// perturbText runs the LLM phase. Every sampler decision (which instruction
// variant per task) is drawn sequentially while building the task plan, so a
// fixed seed fixes the plan even though the calls themselves fan out.
func (e *Engine) perturbText(ctx context.Context) error {
	entCfg := e.cfg.LLMPerturbEntities
	doRelations := e.cfg.LLMRenameRelations
	if e.opts.Generator == nil || (!entCfg.Enabled() && !doRelations) {
		return nil
	}

	entityTasks := e.planEntityTasks(entCfg)
	relationTasks := e.planRelationTasks(doRelations)
	if len(entityTasks) == 0 && len(relationTasks) == 0 {
		return nil
	}

	var limiter *rate.Limiter
	if e.opts.RateLimitPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(e.opts.RateLimitPerMinute)/60.0), 1)
	}

	group, gctx := errgroup.WithContext(ctx)
	if e.opts.Workers > 0 {
		group.SetLimit(e.opts.Workers)
	}

	for i := range entityTasks {
		task := entityTasks[i]
		group.Go(func() error {
			return e.runEntityTask(gctx, limiter, task)
		})
	}

	// Predicate variants are generated concurrently but applied after the
	// fan-out: a predicate change rewrites the relation's identity key, and
	// that index is not safe for concurrent mutation.
	relResults := make([]string, len(relationTasks))
	for i := range relationTasks {
		i, task := i, relationTasks[i]
		group.Go(func() error {
			variant, err := e.generate(gctx, limiter, provider.VariantRequest{
				CurrentValue: task.triplet.Predicate,
				Attribute:    provider.AttributePredicate,
				Instruction:  task.instruction,
				EntityID:     task.triplet.Source,
			})
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				e.diag(diagf(DiagAdapterFailure, "predicate %s: %v", task.triplet.Predicate, err))
				return nil
			}
			relResults[i] = variant
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	for i, task := range relationTasks {
		variant := relResults[i]
		if variant == "" || variant == task.triplet.Predicate {
			continue
		}
		err := e.graph.RetypeRelation(task.triplet, variant)
		if errors.Is(err, kg.ErrDuplicate) {
			e.logger.Warnw("Predicate rename collides with existing relation, leaving unchanged",
				"run_id", e.runID, "predicate", task.triplet.Predicate, "variant", variant)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) planEntityTasks(entCfg config.EntityPerturb) []entityTask {
	if !entCfg.Enabled() {
		return nil
	}
	ids := e.graph.EntityIDs()
	sort.Strings(ids)

	var tasks []entityTask
	for _, id := range ids {
		ent := e.graph.Entity(id)
		if ent.Type == syntheticType {
			continue
		}
		recordID, isOriginal := e.origOf[id]
		if !isOriginal {
			recordID = id
		}

		var jobs []textJob
		if entCfg.UpdateName && ent.Name != "" {
			jobs = append(jobs, textJob{
				attr:        provider.AttributeName,
				instruction: e.sampler.Pick(provider.Instructions(provider.AttributeName)),
				current:     ent.Name,
			})
		}
		if entCfg.UpdateDescription && ent.Name != "" {
			jobs = append(jobs, textJob{attr: provider.AttributeDescription, current: ent.Description})
		}
		if entCfg.UpdateType && ent.Type != "" {
			jobs = append(jobs, textJob{
				attr:        provider.AttributeType,
				instruction: e.sampler.Pick(provider.Instructions(provider.AttributeType)),
				current:     ent.Type,
			})
		}
		if len(jobs) > 0 {
			tasks = append(tasks, entityTask{id: id, recordID: recordID, jobs: jobs})
		}
	}
	return tasks
}

func (e *Engine) planRelationTasks(enabled bool) []relationTask {
	if !enabled {
		return nil
	}
	triplets := e.graph.Triplets()
	sort.Slice(triplets, func(i, j int) bool {
		return tripletKey(triplets[i]) < tripletKey(triplets[j])
	})

	var tasks []relationTask
	for _, t := range triplets {
		if t.Predicate == "" {
			continue
		}
		tasks = append(tasks, relationTask{
			triplet:     t,
			instruction: e.sampler.Pick(provider.Instructions(provider.AttributePredicate)),
		})
	}
	return tasks
}

// runEntityTask executes one entity's jobs in a fixed attribute order. Each
// worker mutates only its own entity; mapping writes go through the
// tracker's mutex.
func (e *Engine) runEntityTask(ctx context.Context, limiter *rate.Limiter, task entityTask) error {
	ent := e.graph.Entity(task.id)
	for _, job := range task.jobs {
		variant, err := e.generate(ctx, limiter, provider.VariantRequest{
			CurrentValue: job.current,
			Attribute:    job.attr,
			Instruction:  job.instruction,
			EntityID:     task.id,
			EntityName:   ent.Name,
			EntityType:   ent.Type,
			Context:      entityContext(ent),
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.diag(diagf(DiagAdapterFailure, "%s for entity %s: %v", job.attr, task.id, err))
			continue
		}
		if variant == "" || variant == job.current {
			continue
		}

		var kind Kind
		switch job.attr {
		case provider.AttributeName:
			ent.Name = variant
			kind = KindRenamed
		case provider.AttributeDescription:
			ent.Description = variant
			kind = KindRedescribed
		case provider.AttributeType:
			ent.Type = variant
			kind = KindRetyped
		default:
			continue
		}
		if err := e.tracker.RecordTransformed(task.recordID, task.id, kind); err != nil {
			return err
		}
		e.markTouched(task.recordID)
	}
	return nil
}

// generate calls the adapter with bounded retry and linear backoff. Only
// failures marked transient are retried; a cancelled context always wins.
func (e *Engine) generate(ctx context.Context, limiter *rate.Limiter, req provider.VariantRequest) (string, error) {
	attempts := e.opts.Retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := time.Duration(e.opts.Retry.BackoffMS) * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return "", err
			}
		}
		variant, err := e.opts.Generator.GenerateVariant(ctx, req)
		if err == nil {
			return variant, nil
		}
		lastErr = err
		if !errors.Is(err, provider.ErrTransient) {
			return "", err
		}
		if attempt < attempts {
			e.logger.Debugw("Transient adapter failure, retrying",
				"run_id", e.runID, "attribute", req.Attribute, "attempt", attempt, "error", err)
			if backoff > 0 {
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(backoff * time.Duration(attempt)):
				}
			}
		}
	}
	return "", lastErr
}

func entityContext(ent *kg.Entity) map[string]string {
	if len(ent.Attrs) == 0 && ent.Description == "" {
		return nil
	}
	out := make(map[string]string, len(ent.Attrs)+1)
	if ent.Description != "" {
		out["description"] = ent.Description
	}
	for k, v := range ent.Attrs {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}

func (e *Engine) diag(d Diagnostic) {
	e.mu.Lock()
	e.diags = append(e.diags, d)
	e.mu.Unlock()
	e.logger.Warnw("Diagnostic", "run_id", e.runID, "kind", d.Kind, "message", d.Message)
}

func (e *Engine) markTouched(recordID string) {
	e.mu.Lock()
	e.touched[recordID] = true
	e.mu.Unlock()
}

func tripletKey(t kg.Triplet) string {
	return t.Source + "\x1f" + t.Predicate + "\x1f" + t.Target
}
