package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"rolegate/internal/params"
	"rolegate/internal/users/models"
	id "rolegate/pkg/domain"
	dErrors "rolegate/pkg/domain-errors"
	"rolegate/pkg/platform/sentinel"
	"rolegate/pkg/requestcontext"
)

const defaultTxTimeout = 5 * time.Second

// InMemory keeps users in a map. Transactions are serialized and roll back by
// restoring a snapshot, so it is meant for tests and single-process development.
type InMemory struct {
	mu     sync.RWMutex
	users  map[id.UserID]*models.User
	nextID id.UserID

	txMu      sync.Mutex
	txTimeout time.Duration
}

func NewInMemory() *InMemory {
	return &InMemory{users: make(map[id.UserID]*models.User), nextID: 1, txTimeout: defaultTxTimeout}
}

func (s *InMemory) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[userID]; ok {
		return u.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			return u.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// Create assigns the next id and timestamps. Email and username must be unused.
func (s *InMemory) Create(ctx context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkUniqueLocked(user, 0); err != nil {
		return nil, err
	}
	u := user.Clone()
	u.ID = s.nextID
	u.Timestamps = models.Timestamps{}
	u.Touch(requestcontext.Now(ctx))
	s.users[u.ID] = u
	s.nextID++
	return u.Clone(), nil
}

func (s *InMemory) Update(ctx context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[user.ID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := s.checkUniqueLocked(user, user.ID); err != nil {
		return nil, err
	}
	u := user.Clone()
	u.CreatedAt = existing.CreatedAt
	u.Touch(requestcontext.Now(ctx))
	s.users[u.ID] = u
	return u.Clone(), nil
}

func (s *InMemory) Delete(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.users, userID)
	return nil
}

func (s *InMemory) checkUniqueLocked(user *models.User, self id.UserID) error {
	for _, u := range s.users {
		if u.ID == self {
			continue
		}
		if u.Email == user.Email {
			return fmt.Errorf("email %q: %w", user.Email, sentinel.ErrAlreadyUsed)
		}
		if u.Username == user.Username {
			return fmt.Errorf("username %q: %w", user.Username, sentinel.ErrAlreadyUsed)
		}
	}
	return nil
}

// List returns one page of users matching p and, when roles is non-empty, having
// one of roles, plus the total number of matches.
func (s *InMemory) List(_ context.Context, p params.Params, roles []id.Role) ([]*models.User, int, error) {
	if err := ValidateParams(p); err != nil {
		return nil, 0, err
	}
	where := p.Where()

	s.mu.RLock()
	matched := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		if len(roles) > 0 && !hasRole(roles, u.Role) {
			continue
		}
		ok := true
		for _, f := range where {
			if !matches(u, f) {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, u.Clone())
		}
	}
	s.mu.RUnlock()

	order := append(p.Order(), params.OrderTerm{Field: "id", Direction: params.Asc})
	sort.SliceStable(matched, func(i, j int) bool {
		for _, term := range order {
			c := compare(fieldValue(matched[i], term.Field), fieldValue(matched[j], term.Field))
			if term.Direction == params.Desc {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return false
	})

	total := len(matched)
	start := min(p.Skip(), total)
	end := min(start+p.Take(), total)
	return matched[start:end], total, nil
}

func hasRole(roles []id.Role, role id.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// RunInTx serializes fn against other transactions and restores the previous
// state when fn fails or ctx ends before fn returns.
func (s *InMemory) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snapshot, nextID := s.snapshot()
	err := fn(ctx)
	if err == nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = dErrors.Wrap(ctxErr, dErrors.CodeTimeout, "transaction aborted before commit")
		}
	}
	if err != nil {
		s.restore(snapshot, nextID)
		return err
	}
	return nil
}

func (s *InMemory) snapshot() (map[id.UserID]*models.User, id.UserID) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make(map[id.UserID]*models.User, len(s.users))
	for k, u := range s.users {
		users[k] = u.Clone()
	}
	return users, s.nextID
}

func (s *InMemory) restore(users map[id.UserID]*models.User, nextID id.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = users
	s.nextID = nextID
}
