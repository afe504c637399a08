package engine

import (
	"context"

	"tdrlane/pkg/domain"
	"tdrlane/services/orchestrator/internal/store"

	"github.com/google/uuid"
)

func (e *Engine) CreateProject(ctx context.Context, actor domain.ActorContext, workflow domain.Workflow, title string, metadata map[string]any) (Receipt, store.Project, error) {
	caps, known := e.catalog.Lookup(workflow)
	d := domain.Decide(domain.GateInput{
		Actor:           actor,
		Action:          domain.ActionCreateProject,
		Caps:            caps,
		CapsKnown:       known,
		ProjectWorkflow: workflow,
		Now:             e.now().UTC(),
	})
	if err := e.deny(d); err != nil {
		return Receipt{}, store.Project{}, err
	}

	projectID := "prj_" + uuid.NewString()
	if err := e.ensureAppendable(ctx, workflow, projectID); err != nil {
		return Receipt{}, store.Project{}, err
	}
	p := store.Project{
		ProjectID: projectID,
		Workflow:  workflow,
		Title:     title,
		Status:    store.ProjectDraft,
		Metadata:  metadata,
		CreatedBy: actor.ActorID,
		CreatedAt: e.now().UTC(),
	}
	if err := e.store.CreateProject(ctx, p); err != nil {
		return Receipt{}, store.Project{}, err
	}
	entry, err := e.append(ctx, workflow, p.ProjectID, actor.ActorID, "PROJECT_CREATED", map[string]any{
		"title": title,
	})
	if err != nil {
		return Receipt{}, store.Project{}, err
	}
	return Receipt{ReceiptID: newReceiptID(), LedgerSeq: entry.Seq}, p, nil
}

// PublishProject moves a draft project to PUBLISHED. Re-publishing an already
// published project is a no-op returning the current state.
func (e *Engine) PublishProject(ctx context.Context, actor domain.ActorContext, projectID string) (Receipt, store.Project, error) {
	unlock := e.lockProject(projectID)
	defer unlock()

	in, p, err := e.baseGateInput(ctx, actor, domain.ActionPublishProject, projectID)
	if err != nil {
		return Receipt{}, store.Project{}, err
	}
	if err := e.deny(domain.Decide(in)); err != nil {
		return Receipt{}, store.Project{}, err
	}
	if p.Status == store.ProjectPublished {
		return Receipt{ReceiptID: newReceiptID()}, p, nil
	}
	if err := e.ensureAppendable(ctx, p.Workflow, projectID); err != nil {
		return Receipt{}, store.Project{}, err
	}
	if err := e.store.SetProjectStatus(ctx, projectID, store.ProjectPublished); err != nil {
		return Receipt{}, store.Project{}, err
	}
	p.Status = store.ProjectPublished
	entry, err := e.append(ctx, p.Workflow, projectID, actor.ActorID, "PROJECT_PUBLISHED", nil)
	if err != nil {
		return Receipt{}, store.Project{}, err
	}
	return Receipt{ReceiptID: newReceiptID(), LedgerSeq: entry.Seq}, p, nil
}

func (e *Engine) GetProject(ctx context.Context, projectID string) (store.Project, error) {
	return e.store.GetProject(ctx, projectID)
}
