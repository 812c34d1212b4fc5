package auth_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetboard/fleetboard/internal/auth"
)

// fakeUserRepo is an in-memory UserRepository for service tests.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*auth.User
	order []uuid.UUID
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*auth.User)}
}

func (r *fakeUserRepo) Create(ctx context.Context, u *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u.Email = auth.NormalizeEmail(u.Email)
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return auth.ErrDuplicateEmail
		}
	}

	u.ID = uuid.New()
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt

	stored := *u
	r.users[u.ID] = &stored
	r.order = append(r.order, u.ID)
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email = auth.NormalizeEmail(email)
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (r *fakeUserRepo) Update(ctx context.Context, id uuid.UUID, fields auth.UpdateFields) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	if fields.Name != nil {
		u.Name = *fields.Name
	}
	if fields.Role != nil {
		u.Role = *fields.Role
	}
	u.UpdatedAt = time.Now().UTC()
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) List(ctx context.Context, filter auth.ListFilter) (*auth.ListResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}

	var matched []auth.User
	for _, id := range r.order {
		u := r.users[id]
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		matched = append(matched, *u)
	}

	total := len(matched)
	start := (filter.Page - 1) * filter.Limit
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}

	totalPages := (total + filter.Limit - 1) / filter.Limit
	return &auth.ListResult{
		Users:      matched[start:end],
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages,
		HasMore:    filter.Page*filter.Limit < total,
	}, nil
}

func setupService(t *testing.T) (*auth.Service, *fakeUserRepo, *auth.TokenService) {
	t.Helper()

	repo := newFakeUserRepo()
	tokens := auth.NewTokenService("test-secret", "fleetboard", 15*time.Minute, 7*24*time.Hour)
	hasher := auth.NewHasher(testBcryptCost)
	svc := auth.NewService(repo, hasher, tokens)
	return svc, repo, tokens
}

// --- Register ---

func TestRegister_Success(t *testing.T) {
	svc, _, tokens := setupService(t)
	ctx := context.Background()

	result, err := svc.Register(ctx, "Alice@Example.COM", "Alice", "GoodPass1!", auth.RoleSupervisor)
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", result.User.Email, "email should be normalized")
	assert.NotEqual(t, uuid.Nil, result.User.ID)
	assert.NotEqual(t, "GoodPass1!", result.User.PasswordHash)

	claims, err := tokens.VerifyAccess(result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID.String(), claims.UserID)

	_, err = tokens.VerifyRefresh(result.RefreshToken)
	assert.NoError(t, err)
}

func TestRegister_DuplicateEmailCaseInsensitive(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "A@x.com", "Alice", "GoodPass1!", auth.RoleAdmin)
	require.NoError(t, err)

	_, err = svc.Register(ctx, "a@X.COM", "Other Alice", "GoodPass2!", auth.RoleSupervisor)
	assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
}

func TestRegister_WeakPasswordRejected(t *testing.T) {
	svc, repo, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "bob@example.com", "Bob", "alllowercase1!", auth.RoleSupervisor)

	var policyErr *auth.PasswordPolicyError
	require.ErrorAs(t, err, &policyErr)
	assert.Contains(t, policyErr.Error(), "uppercase")

	_, err = repo.GetByEmail(ctx, "bob@example.com")
	assert.ErrorIs(t, err, auth.ErrUserNotFound, "user must not be created on policy failure")
}

func TestRegister_OverlongPasswordIsPolicyFailure(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	// 80 bytes: beyond bcrypt's input limit. This must be reported as a
	// policy violation, never as a hashing failure.
	_, err := svc.Register(ctx, "dave@example.com", "Dave", strings.Repeat("Aa1!", 20), auth.RoleSupervisor)

	var policyErr *auth.PasswordPolicyError
	require.ErrorAs(t, err, &policyErr)
	assert.Contains(t, policyErr.Error(), "at most 72 bytes")
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	svc, _, tokens := setupService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "carol@example.com", "Carol", "GoodPass1!", auth.RoleAdmin)
	require.NoError(t, err)

	result, err := svc.Login(ctx, "Carol@Example.com", "GoodPass1!")
	require.NoError(t, err)

	claims, err := tokens.VerifyAccess(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "carol@example.com", claims.Email)
	assert.Equal(t, string(auth.RoleAdmin), claims.Role)
}

func TestLogin_SecrecyOfFailureKind(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "dave@example.com", "Dave", "GoodPass1!", auth.RoleSupervisor)
	require.NoError(t, err)

	_, unknownEmailErr := svc.Login(ctx, "nobody@example.com", "GoodPass1!")
	_, wrongPasswordErr := svc.Login(ctx, "dave@example.com", "WrongPass1!")

	assert.ErrorIs(t, unknownEmailErr, auth.ErrInvalidCredentials)
	assert.ErrorIs(t, wrongPasswordErr, auth.ErrInvalidCredentials)
	assert.Equal(t, unknownEmailErr.Error(), wrongPasswordErr.Error(),
		"unknown email and wrong password must be indistinguishable")
}

// --- Refresh ---

func TestRefresh_IssuesFreshPair(t *testing.T) {
	svc, _, tokens := setupService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "erin@example.com", "Erin", "GoodPass1!", auth.RoleSupervisor)
	require.NoError(t, err)

	pair, err := svc.Refresh(ctx, registered.RefreshToken)
	require.NoError(t, err)

	claims, err := tokens.VerifyAccess(pair.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID.String(), claims.UserID)
	assert.Equal(t, "erin@example.com", claims.Email)

	_, err = tokens.VerifyRefresh(pair.RefreshToken)
	assert.NoError(t, err)
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "frank@example.com", "Frank", "GoodPass1!", auth.RoleAdmin)
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, registered.Token)
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestRefresh_RejectsGarbage(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.Refresh(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)
}

// --- Profile lookups ---

func TestGetByID_NotFound(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestGetByEmail_Found(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "grace@example.com", "Grace", "GoodPass1!", auth.RoleSupervisor)
	require.NoError(t, err)

	u, err := svc.GetByEmail(ctx, "GRACE@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Grace", u.Name)
}
