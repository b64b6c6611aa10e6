package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/vovakirdan/wiredraw-server/internal/store"
	"github.com/vovakirdan/wiredraw-server/internal/utils"
)

// Admission modes.
const (
	ModeOpen   = "open"
	ModeToken  = "token"
	ModeSecret = "secret"
)

const maxNameLen = 64

var (
	// ErrInvalidRoom is returned when the room id is missing or malformed.
	ErrInvalidRoom = errors.New("invalid room")
	// ErrDenied is returned when credentials do not admit the caller.
	ErrDenied = errors.New("admission denied")
	// ErrUnknownRoom is returned when only directory rooms are admitted.
	ErrUnknownRoom = errors.New("unknown room")
	// ErrIssuanceDisabled is returned when no issuer key is configured.
	ErrIssuanceDisabled = errors.New("link issuance disabled")
	// ErrInvalidIssuerKey is returned when the issuer key does not match.
	ErrInvalidIssuerKey = errors.New("invalid issuer key")
)

// Config configures admission.
type Config struct {
	Mode             string
	JWT              *JWTConfig
	SecretHash       string
	IssuerKeyHash    string
	RequireKnownRoom bool
	PublicURL        string
}

// Admission describes an admitted websocket connection.
type Admission struct {
	Room string
	Name string
}

// Link is an invitation to a room.
type Link struct {
	Room      string    `json:"room"`
	URL       string    `json:"url"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Service decides who may join a room and issues room links.
type Service struct {
	rooms store.RoomStore
	cfg   Config
}

// NewService creates a new admission service.
func NewService(rooms store.RoomStore, cfg Config) *Service {
	if cfg.Mode == "" {
		cfg.Mode = ModeOpen
	}
	return &Service{rooms: rooms, cfg: cfg}
}

// Mode returns the configured admission mode.
func (s *Service) Mode() string {
	return s.cfg.Mode
}

// Admit checks a connection request before any room state is touched.
// credential is a link token in token mode and the shared secret in secret mode.
func (s *Service) Admit(ctx context.Context, room, credential, name string) (*Admission, error) {
	room = strings.TrimSpace(room)
	if !utils.ValidRoomID(room) {
		return nil, ErrInvalidRoom
	}
	adm := &Admission{Room: room, Name: cleanName(name)}

	switch s.cfg.Mode {
	case ModeOpen:
	case ModeToken:
		claims, err := ValidateToken(s.cfg.JWT, credential)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDenied, err)
		}
		if claims.Room != room {
			return nil, fmt.Errorf("%w: token is for another room", ErrDenied)
		}
		if adm.Name == "" {
			adm.Name = cleanName(claims.Name)
		}
	case ModeSecret:
		if credential == "" || CompareSecret(s.cfg.SecretHash, credential) != nil {
			return nil, ErrDenied
		}
	default:
		return nil, fmt.Errorf("%w: unknown admission mode %q", ErrDenied, s.cfg.Mode)
	}

	if s.cfg.RequireKnownRoom {
		if _, err := s.rooms.GetRoom(ctx, room); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrUnknownRoom
			}
			return nil, fmt.Errorf("lookup room: %w", err)
		}
	}
	return adm, nil
}

// Joined records a successful join in the room directory.
func (s *Service) Joined(ctx context.Context, room string) error {
	return s.rooms.TouchRoom(ctx, room, time.Now())
}

// CheckIssuerKey verifies the key presented by a link issuer such as the bot.
func (s *Service) CheckIssuerKey(key string) error {
	if s.cfg.IssuerKeyHash == "" {
		return ErrIssuanceDisabled
	}
	if key == "" || CompareSecret(s.cfg.IssuerKeyHash, key) != nil {
		return ErrInvalidIssuerKey
	}
	return nil
}

// IssueLink registers a room and returns an invitation link for it.
// An empty room gets a generated id; an existing room is reused.
// Callers must have passed CheckIssuerKey.
func (s *Service) IssueLink(ctx context.Context, room, title, createdBy string) (*Link, error) {
	room = strings.TrimSpace(room)
	if room == "" {
		room = utils.NewRoomID()
	}
	if !utils.ValidRoomID(room) {
		return nil, ErrInvalidRoom
	}

	if _, err := s.rooms.CreateRoom(ctx, room, title, createdBy); err != nil && !errors.Is(err, store.ErrRoomExists) {
		return nil, fmt.Errorf("create room: %w", err)
	}
	return s.Link(room, "")
}

// Link builds the invitation for room, signing a token in token mode.
func (s *Service) Link(room, name string) (*Link, error) {
	link := &Link{Room: room}
	if s.cfg.Mode == ModeToken {
		token, expires, err := GenerateToken(s.cfg.JWT, room, name)
		if err != nil {
			return nil, fmt.Errorf("generate token: %w", err)
		}
		link.Token = token
		link.ExpiresAt = expires
	}
	u, err := BuildURL(s.cfg.PublicURL, room, link.Token)
	if err != nil {
		return nil, err
	}
	link.URL = u
	return link, nil
}

// BuildURL returns the web app URL that opens room.
func BuildURL(publicURL, room, token string) (string, error) {
	u, err := url.Parse(publicURL)
	if err != nil {
		return "", fmt.Errorf("parse public url: %w", err)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	q := u.Query()
	q.Set("room", room)
	if token != "" {
		q.Set("token", token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func cleanName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	return name
}
