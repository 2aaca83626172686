package auth

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"anoa.com/yamdb/internal/authz"
	"anoa.com/yamdb/internal/entity"
	"anoa.com/yamdb/internal/modules/auth/dto"
	"anoa.com/yamdb/internal/modules/user/repository"
	"anoa.com/yamdb/internal/testutil"
	"anoa.com/yamdb/pkg/apperror"
	"anoa.com/yamdb/pkg/ratelimiter"
	"anoa.com/yamdb/pkg/token"
)

var codePattern = regexp.MustCompile(`code is ([0-9a-f]{12})`)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

// lastCode extracts the code from the most recent Send call.
func (m *mockSender) lastCode(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, m.Calls)
	body := m.Calls[len(m.Calls)-1].Arguments.String(3)
	match := codePattern.FindStringSubmatch(body)
	require.Len(t, match, 2, body)
	return match[1]
}

type stubLimiter struct {
	err      error
	released int
}

func (l *stubLimiter) Acquire(_ context.Context, _ string, _ ratelimiter.Scope) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	return func() { l.released++ }, nil
}

type fixture struct {
	db      *gorm.DB
	svc     *authService
	mail    *mockSender
	limiter *stubLimiter
	issuer  *token.Issuer
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	mail := &mockSender{}
	mail.On("Send", mock.Anything, mock.Anything, confirmationSubject, mock.Anything).Return(nil)
	limiter := &stubLimiter{}
	issuer := token.NewIssuer("test-secret", time.Hour)

	svc := NewAuthService(repository.NewUserRepository(db), issuer, mail, limiter, time.Hour).(*authService)
	svc.hashCost = bcrypt.MinCost

	return &fixture{db: db, svc: svc, mail: mail, limiter: limiter, issuer: issuer}
}

func TestSignupThenToken(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.svc.Signup(ctx, dto.SignupRequest{Email: "Alice@Example.COM", Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", res.Email)
	assert.Equal(t, "alice", res.Username)
	f.mail.AssertCalled(t, "Send", mock.Anything, "alice@example.com", confirmationSubject, mock.Anything)

	var stored entity.User
	require.NoError(t, f.db.First(&stored, "username = ?", "alice").Error)
	assert.Equal(t, authz.RoleUser, stored.Role)
	code := f.mail.lastCode(t)
	assert.NotContains(t, stored.ConfirmationCodeHash, code)

	tok, err := f.svc.Token(ctx, dto.TokenRequest{Username: "alice", ConfirmationCode: code})
	require.NoError(t, err)

	id, err := f.issuer.Parse(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, id)

	// consumed
	_, err = f.svc.Token(ctx, dto.TokenRequest{Username: "alice", ConfirmationCode: code})
	var vErr *apperror.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "confirmation_code")
}

func TestSignupResendsForSamePair(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Signup(ctx, dto.SignupRequest{Email: "bob@example.com", Username: "bob"})
	require.NoError(t, err)
	first := f.mail.lastCode(t)

	_, err = f.svc.Signup(ctx, dto.SignupRequest{Email: "BOB@example.com", Username: "bob"})
	require.NoError(t, err)
	second := f.mail.lastCode(t)

	var count int64
	require.NoError(t, f.db.Model(&entity.User{}).Where("username = ?", "bob").Count(&count).Error)
	assert.Equal(t, int64(1), count)
	f.mail.AssertNumberOfCalls(t, "Send", 2)

	if first != second {
		_, err = f.svc.Token(ctx, dto.TokenRequest{Username: "bob", ConfirmationCode: first})
		assert.Error(t, err, "old code is replaced")
	}
	_, err = f.svc.Token(ctx, dto.TokenRequest{Username: "bob", ConfirmationCode: second})
	assert.NoError(t, err)
}

func TestSignupConflicts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Signup(ctx, dto.SignupRequest{Email: "carol@example.com", Username: "carol"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		req   dto.SignupRequest
		field string
	}{
		{"username taken", dto.SignupRequest{Email: "other@example.com", Username: "carol"}, "username"},
		{"email taken", dto.SignupRequest{Email: "CAROL@example.com", Username: "carol2"}, "email"},
		{"reserved username", dto.SignupRequest{Email: "me@example.com", Username: "me"}, "username"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Signup(ctx, tt.req)
			var vErr *apperror.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Contains(t, vErr.Fields, tt.field)
		})
	}
	f.mail.AssertNumberOfCalls(t, "Send", 1)
}

func TestSignupRateLimited(t *testing.T) {
	f := setup(t)
	f.limiter.err = &ratelimiter.RateLimitError{RetryAfter: time.Minute}

	_, err := f.svc.Signup(context.Background(), dto.SignupRequest{Email: "dan@example.com", Username: "dan"})
	var rlErr *ratelimiter.RateLimitError
	require.ErrorAs(t, err, &rlErr)

	var count int64
	require.NoError(t, f.db.Model(&entity.User{}).Count(&count).Error)
	assert.Zero(t, count)
	f.mail.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSignupMailFailureReleasesLimit(t *testing.T) {
	f := setup(t)
	f.mail.ExpectedCalls = nil
	f.mail.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	_, err := f.svc.Signup(context.Background(), dto.SignupRequest{Email: "erin@example.com", Username: "erin"})
	require.Error(t, err)
	assert.Equal(t, 1, f.limiter.released)
}

func TestToken(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Token(ctx, dto.TokenRequest{Username: "ghost", ConfirmationCode: "abc"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.svc.Signup(ctx, dto.SignupRequest{Email: "fay@example.com", Username: "fay"})
	require.NoError(t, err)
	code := f.mail.lastCode(t)

	_, err = f.svc.Token(ctx, dto.TokenRequest{Username: "fay", ConfirmationCode: "000000000000"})
	var vErr *apperror.ValidationError
	require.ErrorAs(t, err, &vErr)

	f.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = f.svc.Token(ctx, dto.TokenRequest{Username: "fay", ConfirmationCode: code})
	require.ErrorAs(t, err, &vErr, "expired")
	assert.Contains(t, vErr.Fields, "confirmation_code")
}

func TestNewCodeFormat(t *testing.T) {
	f := setup(t)

	code, hash, err := f.svc.newCode()
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9a-f]{12}$`, code)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)))
}
