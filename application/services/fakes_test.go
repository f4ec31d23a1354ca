package services

import (
	"context"
	"sync"

	"memoir-backend/application/ports"
	"memoir-backend/domain/entities"
	pkgerrors "memoir-backend/pkg/errors"
)

// In-memory fakes for the persistence and collaborator ports.

type fakeSpaceRepo struct {
	mu     sync.Mutex
	spaces map[string]*entities.MemorySpace
}

func newFakeSpaceRepo() *fakeSpaceRepo {
	return &fakeSpaceRepo{spaces: make(map[string]*entities.MemorySpace)}
}

func (r *fakeSpaceRepo) Create(ctx context.Context, space *entities.MemorySpace) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spaces[space.ID] = space
	return nil
}

func (r *fakeSpaceRepo) GetByID(ctx context.Context, id string) (*entities.MemorySpace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	space, ok := r.spaces[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("memory space")
	}
	return space, nil
}

type fakeMemberRepo struct {
	mu      sync.Mutex
	members []*entities.FamilyMember
}

func (r *fakeMemberRepo) Create(ctx context.Context, member *entities.FamilyMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members = append(r.members, member)
	return nil
}

func (r *fakeMemberRepo) FindByEmail(ctx context.Context, email string) (*entities.FamilyMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m.Email == email {
			return m, nil
		}
	}
	return nil, nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*entities.ConversationSession
	updates  int
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*entities.ConversationSession)}
}

func (r *fakeSessionRepo) Create(ctx context.Context, session *entities.ConversationSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *fakeSessionRepo) GetByID(ctx context.Context, id string) (*entities.ConversationSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("conversation session")
	}
	copied := *session
	return &copied, nil
}

func (r *fakeSessionRepo) Update(ctx context.Context, session *entities.ConversationSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[session.ID]; !ok {
		return pkgerrors.NewNotFoundError("conversation session")
	}
	copied := *session
	r.sessions[session.ID] = &copied
	r.updates++
	return nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages map[string][]*entities.ConversationMessage
	failNext error // returned and cleared by the next Append
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[string][]*entities.ConversationMessage)}
}

func (r *fakeMessageRepo) Append(ctx context.Context, sessionID string, role entities.MessageRole, content, audioURL string) (*entities.ConversationMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return nil, err
	}
	msg, err := entities.NewConversationMessage(sessionID, role, content, audioURL, len(r.messages[sessionID])+1)
	if err != nil {
		return nil, err
	}
	r.messages[sessionID] = append(r.messages[sessionID], msg)
	return msg, nil
}

func (r *fakeMessageRepo) ListBySession(ctx context.Context, sessionID string) ([]*entities.ConversationMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entities.ConversationMessage, len(r.messages[sessionID]))
	copy(out, r.messages[sessionID])
	return out, nil
}

func (r *fakeMessageRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages[sessionID]), nil
}

type fakeStoryRepo struct {
	mu      sync.Mutex
	stories map[string]*entities.Story
}

func newFakeStoryRepo() *fakeStoryRepo {
	return &fakeStoryRepo{stories: make(map[string]*entities.Story)}
}

func (r *fakeStoryRepo) Create(ctx context.Context, story *entities.Story) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.stories {
		if existing.SessionID == story.SessionID {
			return pkgerrors.NewConflictError("story already generated for this conversation")
		}
	}
	r.stories[story.ID] = story
	return nil
}

func (r *fakeStoryRepo) GetByID(ctx context.Context, id string) (*entities.Story, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	story, ok := r.stories[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("story")
	}
	return story, nil
}

func (r *fakeStoryRepo) GetBySessionID(ctx context.Context, sessionID string) (*entities.Story, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, story := range r.stories {
		if story.SessionID == sessionID {
			return story, nil
		}
	}
	return nil, nil
}

func (r *fakeStoryRepo) ListByMemorySpace(ctx context.Context, spaceID string) ([]*entities.Story, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.Story
	for _, story := range r.stories {
		if story.MemorySpaceID == spaceID {
			out = append(out, story)
		}
	}
	return out, nil
}

func (r *fakeStoryRepo) ListByMemberEmail(ctx context.Context, email string) ([]ports.StoryWithSpace, error) {
	return nil, nil
}

// fakeAgent streams a fixed reply split into fragments, or fails.
type fakeAgent struct {
	mu        sync.Mutex
	fragments []string
	startErr  error
	streamErr error
	requests  []ports.AgentRequest
}

func (a *fakeAgent) StreamReply(ctx context.Context, req ports.AgentRequest) (<-chan ports.Fragment, error) {
	a.mu.Lock()
	a.requests = append(a.requests, req)
	a.mu.Unlock()

	if a.startErr != nil {
		return nil, a.startErr
	}

	out := make(chan ports.Fragment)
	go func() {
		defer close(out)
		for _, f := range a.fragments {
			select {
			case out <- ports.Fragment{Content: f}:
			case <-ctx.Done():
				out <- ports.Fragment{Err: ctx.Err()}
				return
			}
		}
		if a.streamErr != nil {
			out <- ports.Fragment{Err: a.streamErr}
		}
	}()
	return out, nil
}

func (a *fakeAgent) lastRequest() ports.AgentRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests[len(a.requests)-1]
}

// fakeWriter returns a fixed story response.
type fakeWriter struct {
	response string
	err      error
	calls    int
	lastIn   string
}

func (w *fakeWriter) WriteStory(ctx context.Context, transcript string) (string, error) {
	w.calls++
	w.lastIn = transcript
	if w.err != nil {
		return "", w.err
	}
	return w.response, nil
}
