// Package ranking keeps one viewer's gallery state: the project list, the
// set of projects the viewer voted for, and the filtered, ranked view of
// both. Vote toggles are applied locally first and rolled back when the
// store rejects them.
package ranking

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ShipLog-Showcase/showcase-backend/internal/apperr"
	"github.com/ShipLog-Showcase/showcase-backend/internal/projects/domain"
	"github.com/ShipLog-Showcase/showcase-backend/internal/session"
)

// Gateway is the slice of the project store the engine talks to. The vote
// mutations report the project's stored vote count after the change.
type Gateway interface {
	ListProjects(ctx context.Context) ([]domain.Project, error)
	VotedProjectIDs(ctx context.Context, userID string) ([]string, error)
	InsertVote(ctx context.Context, userID, projectID string) (int, error)
	DeleteVote(ctx context.Context, userID, projectID string) (int, error)
}

type Options struct {
	// VoteTimeout bounds each remote vote mutation; hitting it takes the
	// rollback path.
	VoteTimeout time.Duration
	Location    *time.Location
}

// VoteState is what a toggle leaves behind for one project.
type VoteState struct {
	ProjectID string `json:"project_id"`
	VoteCount int    `json:"vote_count"`
	Voted     bool   `json:"voted"`
}

type Engine struct {
	gateway     Gateway
	session     session.Source
	voteTimeout time.Duration
	loc         *time.Location

	mu         sync.Mutex
	projects   []domain.Project
	voted      map[string]struct{}
	inFlight   map[string]struct{}
	filterText string
	window     TimeWindow
	// generation changes whenever the list or voted set is replaced
	// wholesale; a rollback for an older generation is dropped.
	generation uint64
	loaded     bool
	loadErr    error
}

func NewEngine(gateway Gateway, src session.Source, opts Options) *Engine {
	if opts.VoteTimeout <= 0 {
		opts.VoteTimeout = 5 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Engine{
		gateway:     gateway,
		session:     src,
		voteTimeout: opts.VoteTimeout,
		loc:         opts.Location,
		voted:       make(map[string]struct{}),
		inFlight:    make(map[string]struct{}),
		window:      WindowAll,
	}
}

// Load fetches the ranked project list and, when someone is signed in, the
// ids of the projects they voted for. On failure the previous state is kept
// and the error is remembered for Err.
func (e *Engine) Load(ctx context.Context) error {
	projects, err := e.gateway.ListProjects(ctx)
	if err != nil {
		return e.failLoad(fmt.Errorf("load projects: %w", err))
	}

	voted := make(map[string]struct{})
	if e.session != nil {
		if id, ok := e.session.CurrentUser(); ok && id.UserID != "" {
			ids, err := e.gateway.VotedProjectIDs(ctx, id.UserID)
			if err != nil {
				return e.failLoad(fmt.Errorf("load votes: %w", err))
			}
			for _, pid := range ids {
				voted[pid] = struct{}{}
			}
		}
	}

	e.mu.Lock()
	e.projects = projects
	e.voted = voted
	e.generation++
	e.loaded = true
	e.loadErr = nil
	e.mu.Unlock()
	return nil
}

func (e *Engine) failLoad(err error) error {
	e.mu.Lock()
	e.loadErr = err
	e.mu.Unlock()
	log.Warn().Err(err).Msg("gallery load failed")
	return err
}

// Watch resets the voted set whenever the session identity changes, since
// the cached votes belong to the previous user.
func (e *Engine) Watch(s interface {
	OnChange(func(*session.Identity)) func()
}) (unwatch func()) {
	return s.OnChange(func(*session.Identity) {
		e.mu.Lock()
		e.voted = make(map[string]struct{})
		e.generation++
		e.mu.Unlock()
	})
}

func (e *Engine) SetFilterText(text string) {
	e.mu.Lock()
	e.filterText = text
	e.mu.Unlock()
}

func (e *Engine) SetTimeWindow(w TimeWindow) {
	e.mu.Lock()
	e.window = w
	e.mu.Unlock()
}

// FilteredView returns a restartable sequence over the current view. Each
// iteration recomputes it from the state at that moment.
func (e *Engine) FilteredView(now time.Time) iter.Seq[domain.Project] {
	return func(yield func(domain.Project) bool) {
		e.mu.Lock()
		projects := slices.Clone(e.projects)
		text, window := e.filterText, e.window
		e.mu.Unlock()

		for _, p := range Filter(projects, text, window, now.In(e.loc)) {
			if !yield(p) {
				return
			}
		}
	}
}

// View filters a snapshot of the project list with the given text and
// window, leaving the engine's own filter untouched. Callers sharing one
// engine use it instead of SetFilterText and FilteredView.
func (e *Engine) View(now time.Time, text string, window TimeWindow) []domain.Project {
	e.mu.Lock()
	projects := slices.Clone(e.projects)
	e.mu.Unlock()
	return Filter(projects, text, window, now.In(e.loc))
}

// ToggleVote flips userID's vote on projectID. The local count and voted
// set change before the store is called; if the store call fails they are
// restored and an error wrapping ErrVoteUpdateFailed is returned.
// Only one toggle per project may be in flight at a time.
func (e *Engine) ToggleVote(ctx context.Context, projectID, userID string) (VoteState, error) {
	if userID == "" {
		return VoteState{}, apperr.ErrRequiresAuthentication
	}

	e.mu.Lock()
	idx := e.indexOf(projectID)
	if idx < 0 {
		e.mu.Unlock()
		return VoteState{}, apperr.ErrNotFound
	}
	if e.projects[idx].OwnerID == userID {
		e.mu.Unlock()
		return VoteState{}, apperr.ErrSelfVoteForbidden
	}
	if _, busy := e.inFlight[projectID]; busy {
		e.mu.Unlock()
		return e.stateOf(projectID), apperr.ErrToggleInFlight
	}

	_, wasVoted := e.voted[projectID]
	snapshotCount := e.projects[idx].VoteCount
	gen := e.generation

	if wasVoted {
		delete(e.voted, projectID)
		e.projects[idx].VoteCount--
	} else {
		e.voted[projectID] = struct{}{}
		e.projects[idx].VoteCount++
	}
	e.inFlight[projectID] = struct{}{}
	e.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, e.voteTimeout)
	var (
		stored int
		err    error
	)
	if wasVoted {
		stored, err = e.gateway.DeleteVote(cctx, userID, projectID)
	} else {
		stored, err = e.gateway.InsertVote(cctx, userID, projectID)
	}
	cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, projectID)

	if err == nil {
		// The store's count replaces the optimistic one; it includes votes
		// cast elsewhere since the last load.
		if e.generation == gen {
			if i := e.indexOf(projectID); i >= 0 {
				e.projects[i].VoteCount = stored
			}
		}
		return VoteState{ProjectID: projectID, VoteCount: stored, Voted: !wasVoted}, nil
	}

	if e.generation == gen {
		if wasVoted {
			e.voted[projectID] = struct{}{}
		} else {
			delete(e.voted, projectID)
		}
		if i := e.indexOf(projectID); i >= 0 {
			e.projects[i].VoteCount = snapshotCount
		}
	}

	log.Warn().Err(err).
		Str("project_id", projectID).
		Str("user_id", userID).
		Bool("was_voted", wasVoted).
		Msg("vote toggle rolled back")

	return e.stateOf(projectID), fmt.Errorf("%w: %w", apperr.ErrVoteUpdateFailed, err)
}

func (e *Engine) Voted(projectID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.voted[projectID]
	return ok
}

// VotedIDs returns the voted project ids in no particular order.
func (e *Engine) VotedIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.voted))
	for id := range e.voted {
		ids = append(ids, id)
	}
	return ids
}

func (e *Engine) Project(projectID string) (domain.Project, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i := e.indexOf(projectID); i >= 0 {
		return e.projects[i], true
	}
	return domain.Project{}, false
}

func (e *Engine) State(projectID string) VoteState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateOf(projectID)
}

// Err reports the last load failure, or nil after a successful load.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadErr
}

func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

// stateOf and indexOf expect e.mu to be held.
func (e *Engine) stateOf(projectID string) VoteState {
	st := VoteState{ProjectID: projectID}
	if i := e.indexOf(projectID); i >= 0 {
		st.VoteCount = e.projects[i].VoteCount
	}
	_, st.Voted = e.voted[projectID]
	return st
}

func (e *Engine) indexOf(projectID string) int {
	for i := range e.projects {
		if e.projects[i].ID == projectID {
			return i
		}
	}
	return -1
}
