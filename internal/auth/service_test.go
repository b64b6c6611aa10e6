package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wiredraw-server/internal/store/sqlite"
)

var testJWT = &JWTConfig{
	Secret:   []byte("test-secret-change-me"),
	Issuer:   "test",
	Audience: "test",
	TTL:      time.Hour,
}

func newTestService(t *testing.T, cfg Config) *Service {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	if cfg.JWT == nil {
		cfg.JWT = testJWT
	}
	if cfg.PublicURL == "" {
		cfg.PublicURL = "https://draw.example.com"
	}
	return NewService(st, cfg)
}

func mustHash(t *testing.T, secret string) string {
	t.Helper()
	hash, err := HashSecret(secret)
	require.NoError(t, err)
	return hash
}

func TestAdmitOpen(t *testing.T) {
	svc := newTestService(t, Config{Mode: ModeOpen})
	ctx := context.Background()

	adm, err := svc.Admit(ctx, " room-1 ", "", "  bob ")
	require.NoError(t, err)
	assert.Equal(t, &Admission{Room: "room-1", Name: "bob"}, adm)

	_, err = svc.Admit(ctx, "", "", "")
	assert.ErrorIs(t, err, ErrInvalidRoom)
	_, err = svc.Admit(ctx, "a\x00b", "", "")
	assert.ErrorIs(t, err, ErrInvalidRoom)

	adm, err = svc.Admit(ctx, "Доска «кот»", "", "")
	require.NoError(t, err)
	assert.Equal(t, "Доска «кот»", adm.Room)
}

func TestAdmitToken(t *testing.T) {
	svc := newTestService(t, Config{Mode: ModeToken})
	ctx := context.Background()

	token, _, err := GenerateToken(testJWT, "room-1", "alice")
	require.NoError(t, err)

	adm, err := svc.Admit(ctx, "room-1", token, "")
	require.NoError(t, err)
	assert.Equal(t, "alice", adm.Name)

	_, err = svc.Admit(ctx, "room-2", token, "")
	assert.ErrorIs(t, err, ErrDenied)

	_, err = svc.Admit(ctx, "room-1", "garbage", "")
	assert.ErrorIs(t, err, ErrDenied)

	other := *testJWT
	other.Secret = []byte("another-secret")
	forged, _, err := GenerateToken(&other, "room-1", "mallory")
	require.NoError(t, err)
	_, err = svc.Admit(ctx, "room-1", forged, "")
	assert.ErrorIs(t, err, ErrDenied)
}

func TestAdmitTokenExpired(t *testing.T) {
	svc := newTestService(t, Config{Mode: ModeToken})

	expired := *testJWT
	expired.TTL = -time.Minute
	token, _, err := GenerateToken(&expired, "room-1", "")
	require.NoError(t, err)

	_, err = svc.Admit(context.Background(), "room-1", token, "")
	assert.ErrorIs(t, err, ErrDenied)
}

func TestAdmitSecret(t *testing.T) {
	svc := newTestService(t, Config{Mode: ModeSecret, SecretHash: mustHash(t, "let-me-draw")})
	ctx := context.Background()

	_, err := svc.Admit(ctx, "room-1", "let-me-draw", "")
	require.NoError(t, err)

	_, err = svc.Admit(ctx, "room-1", "wrong", "")
	assert.ErrorIs(t, err, ErrDenied)
	_, err = svc.Admit(ctx, "room-1", "", "")
	assert.ErrorIs(t, err, ErrDenied)
}

func TestAdmitRequiresKnownRoom(t *testing.T) {
	svc := newTestService(t, Config{
		Mode:             ModeOpen,
		RequireKnownRoom: true,
		IssuerKeyHash:    mustHash(t, "bot-key"),
	})
	ctx := context.Background()

	_, err := svc.Admit(ctx, "room-1", "", "")
	assert.ErrorIs(t, err, ErrUnknownRoom)

	_, err = svc.IssueLink(ctx, "room-1", "Chat", "bot")
	require.NoError(t, err)

	_, err = svc.Admit(ctx, "room-1", "", "")
	assert.NoError(t, err)
}

func TestIssueLink(t *testing.T) {
	svc := newTestService(t, Config{Mode: ModeToken, IssuerKeyHash: mustHash(t, "bot-key")})
	ctx := context.Background()

	assert.ErrorIs(t, svc.CheckIssuerKey("nope"), ErrInvalidIssuerKey)
	assert.ErrorIs(t, svc.CheckIssuerKey(""), ErrInvalidIssuerKey)
	require.NoError(t, svc.CheckIssuerKey("bot-key"))

	link, err := svc.IssueLink(ctx, "", "Family", "bot")
	require.NoError(t, err)
	assert.NotEmpty(t, link.Room)
	assert.NotEmpty(t, link.Token)
	assert.Contains(t, link.URL, "https://draw.example.com/?room="+link.Room)

	adm, err := svc.Admit(ctx, link.Room, link.Token, "")
	require.NoError(t, err)
	assert.Equal(t, link.Room, adm.Room)

	again, err := svc.IssueLink(ctx, link.Room, "Family", "bot")
	require.NoError(t, err)
	assert.Equal(t, link.Room, again.Room)
}

func TestIssueLinkDisabled(t *testing.T) {
	svc := newTestService(t, Config{Mode: ModeOpen})

	assert.ErrorIs(t, svc.CheckIssuerKey("anything"), ErrIssuanceDisabled)
}

func TestBuildURL(t *testing.T) {
	u, err := BuildURL("https://draw.example.com/app", "-100", "")
	require.NoError(t, err)
	assert.Equal(t, "https://draw.example.com/app?room=-100", u)
}
