// Package engine is the orchestrator core: it owns round lifecycle, bid
// acceptance, membership state and settlement triggering for every project,
// linearizing mutations per project and appending each state change to the
// hash-chained ledger.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"tdrlane/pkg/domain"
	"tdrlane/pkg/ledger"
	"tdrlane/services/orchestrator/internal/metrics"
	"tdrlane/services/orchestrator/internal/store"

	"github.com/google/uuid"
)

// ErrComputationFailed wraps failures of the external matching/settlement
// collaborator. Nothing is cached on this path, so a retry is always safe.
var ErrComputationFailed = errors.New(domain.CodeComputationFailed)

// Matcher is the external computation service. It is a pure function of the
// round's locked bid set; the engine treats it as a black box.
type Matcher interface {
	ComputeMatching(ctx context.Context, in ComputeInput) (map[string]any, error)
	ComputeSettlement(ctx context.Context, in ComputeInput) (map[string]any, error)
}

type ComputeInput struct {
	Workflow  domain.Workflow `json:"workflow"`
	ProjectID string          `json:"project_id"`
	T         int             `json:"t"`
	Bids      []store.Bid     `json:"bids"`
}

// ConsentSource reports consent and document existence counts from the
// external document/consent store. Content is never read here.
type ConsentSource interface {
	ConsentGiven(ctx context.Context, projectID, participantID string) (bool, error)
	DocumentCount(ctx context.Context, projectID, participantID string) (int, error)
}

type Engine struct {
	store    store.Store
	ledger   ledger.Store
	catalog  domain.Catalog
	matcher  Matcher
	consents ConsentSource
	metrics  *metrics.Metrics

	computeTimeout time.Duration
	now            func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type Options struct {
	Catalog        domain.Catalog
	Matcher        Matcher
	Consents       ConsentSource
	Metrics        *metrics.Metrics
	ComputeTimeout time.Duration
}

func New(st store.Store, lg ledger.Store, opts Options) *Engine {
	catalog := opts.Catalog
	if catalog == nil {
		catalog = domain.DefaultCatalog()
	}
	timeout := opts.ComputeTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Engine{
		store:          st,
		ledger:         lg,
		catalog:        catalog,
		matcher:        opts.Matcher,
		consents:       opts.Consents,
		metrics:        opts.Metrics,
		computeTimeout: timeout,
		now:            time.Now,
		locks:          map[string]*sync.Mutex{},
	}
}

// SetClock overrides the engine's time source for tests.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// lockProject serializes mutations for one project. Different projects never
// block each other.
func (e *Engine) lockProject(projectID string) func() {
	e.mu.Lock()
	l, ok := e.locks[projectID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[projectID] = l
	}
	e.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func newReceiptID() string { return "rcpt_" + uuid.NewString() }

// Receipt is returned from every successful mutation, linking the caller's
// command to the ledger entry it produced.
type Receipt struct {
	ReceiptID string `json:"receipt_id"`
	LedgerSeq int64  `json:"ledger_seq"`
}

func (e *Engine) deny(d domain.Decision) error {
	if d.Allowed {
		return nil
	}
	e.metrics.Denied(string(d.Reason))
	return d.Err()
}

// baseGateInput loads the project and assembles the parts of a GateInput that
// every action needs. Round fields are filled in by the caller.
func (e *Engine) baseGateInput(ctx context.Context, actor domain.ActorContext, action domain.Action, projectID string) (domain.GateInput, store.Project, error) {
	p, err := e.store.GetProject(ctx, projectID)
	if err != nil {
		return domain.GateInput{}, store.Project{}, err
	}
	caps, known := e.catalog.Lookup(p.Workflow)
	return domain.GateInput{
		Actor:            actor,
		Action:           action,
		Caps:             caps,
		CapsKnown:        known,
		ProjectWorkflow:  p.Workflow,
		ProjectPublished: p.Status == store.ProjectPublished,
		Now:              e.now().UTC(),
	}, p, nil
}

func (e *Engine) tripartiteReady(ctx context.Context, projectID string) (bool, error) {
	for _, portal := range []domain.Role{domain.RoleSlumDweller, domain.RoleDeveloper, domain.RoleAHD} {
		n, err := e.store.CountActivePortal(ctx, projectID, string(portal))
		if err != nil {
			return false, err
		}
		if n < 1 {
			return false, nil
		}
	}
	return true, nil
}

func (e *Engine) append(ctx context.Context, workflow domain.Workflow, projectID, actor, action string, details map[string]any) (ledger.Entry, error) {
	return e.ledger.Append(ctx, workflow, projectID, actor, action, details)
}

// ensureAppendable refuses a mutation up front when the project's chain is
// halted. Every state change must land in the ledger, so a chain that cannot
// accept the entry means the store must not change either.
func (e *Engine) ensureAppendable(ctx context.Context, workflow domain.Workflow, projectID string) error {
	halted, err := e.ledger.Halted(ctx, workflow, projectID)
	if err != nil {
		return err
	}
	if halted {
		return ledger.ErrHalted
	}
	return nil
}

// LedgerEntries returns the project's full audit chain.
func (e *Engine) LedgerEntries(ctx context.Context, projectID string) ([]ledger.Entry, error) {
	p, err := e.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return e.ledger.List(ctx, p.Workflow, projectID)
}

// VerifyLedger re-walks the project's chain. An invalid result halts further
// writes to that chain until manual audit.
func (e *Engine) VerifyLedger(ctx context.Context, projectID string) (ledger.VerifyResult, error) {
	p, err := e.store.GetProject(ctx, projectID)
	if err != nil {
		return ledger.VerifyResult{}, err
	}
	res, err := e.ledger.Verify(ctx, p.Workflow, projectID)
	if err == nil && !res.Valid {
		e.metrics.VerifyFailed()
	}
	return res, err
}
