// Package keys owns the lifecycle of repository API keys: generation,
// hashing, pending/confirmed records, the repo reverse lookup, and one-time
// confirmation tokens.
//
// The plaintext key is never persisted. Its SHA-256 hex digest is both the
// storage key (apikey:<hash>) and the only form ever compared against stored
// state, so a leaked store dump cannot be replayed as a key. SHA-256 rather
// than a salted hash because the digest doubles as a deterministic lookup
// key; the 128 bits of entropy in the key itself make offline guessing moot.
package keys

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rocketstack/roadmapper/internal/store"
	"github.com/rocketstack/roadmapper/internal/tier"
)

const (
	// Prefix is the fixed textual prefix of every API key.
	Prefix = "rm_"

	// KeyLength is the total length of a key: "rm_" plus 32 lowercase hex chars.
	KeyLength = 35

	// RegistrationTTL is how long an unconfirmed registration survives before
	// the record, its reverse lookup, and the confirmation token all expire.
	RegistrationTTL = 24 * time.Hour
)

var (
	// ErrRepoAlreadyRegistered is returned when a key already exists for the
	// requested owner/repo pair.
	ErrRepoAlreadyRegistered = errors.New("keys: repository already has a key")

	// ErrInvalidToken is returned for unknown, expired, or already-used
	// confirmation tokens.
	ErrInvalidToken = errors.New("keys: invalid or expired confirmation token")

	// ErrNotRegistered is returned by SetTier when no key exists for the repo.
	ErrNotRegistered = errors.New("keys: no key registered for repository")
)

// Registration is the identity a new key is bound to.
type Registration struct {
	Owner string
	Repo  string
	Email string
}

// Record is a stored API key record. The serialized form (string hash fields,
// "true"/"false" flags) is an implementation detail of the store adapter;
// callers only ever see this struct.
type Record struct {
	Owner          string
	Repo           string
	Email          string
	Tier           tier.Tier
	CreatedAt      time.Time
	EmailConfirmed bool
}

// Confirmation is the result of a successful registration confirmation. Key
// holds the plaintext key recovered from the token so it can be shown to the
// user one final time; it is empty for legacy tokens that predate plaintext
// capture.
type Confirmation struct {
	Owner string
	Repo  string
	Key   string
}

// Service implements the key store against an injected KV store.
type Service struct {
	store store.Store
	now   func() time.Time
}

// NewService creates a key service backed by s.
func NewService(s store.Store) *Service {
	return &Service{store: s, now: time.Now}
}

// GenerateKey returns a new cryptographically random API key in the fixed
// textual form "rm_" + 32 lowercase hex characters (128 bits of entropy).
func GenerateKey() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return Prefix + hex.EncodeToString(buf), nil
}

// HashKey returns the SHA-256 hex digest of a plaintext key.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// ValidFormat reports whether s has the exact shape of an API key:
// "rm_" followed by 32 lowercase hex characters.
func ValidFormat(s string) bool {
	if len(s) != KeyLength || !strings.HasPrefix(s, Prefix) {
		return false
	}
	for _, c := range s[len(Prefix):] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func recordKey(hash string) string         { return "apikey:" + hash }
func reverseKey(owner, repo string) string { return "repo-key:" + owner + "/" + repo }
func confirmKey(token string) string       { return "confirm:" + token }

// Store writes the key record and the repo reverse lookup. The reverse lookup
// is claimed first with SetNX so concurrent registrations for the same repo
// race at the store and the loser observes ErrRepoAlreadyRegistered. When
// pending is true both entries carry the registration TTL and the record is
// marked unconfirmed; otherwise the key is permanent and confirmed.
func (s *Service) Store(ctx context.Context, key string, reg Registration, pending bool) (string, error) {
	hash := HashKey(key)

	var ttl time.Duration
	if pending {
		ttl = RegistrationTTL
	}

	claimed, err := s.store.SetNX(ctx, reverseKey(reg.Owner, reg.Repo), hash, ttl)
	if err != nil {
		return "", fmt.Errorf("claim repo key: %w", err)
	}
	if !claimed {
		return "", ErrRepoAlreadyRegistered
	}

	fields := map[string]string{
		"owner":     reg.Owner,
		"repo":      reg.Repo,
		"email":     reg.Email,
		"tier":      string(tier.Free),
		"createdAt": s.now().UTC().Format(time.RFC3339),
	}
	if pending {
		fields["emailConfirmed"] = "false"
	}

	if err := s.store.HSet(ctx, recordKey(hash), fields); err != nil {
		// Roll back the claim so a retry is not spuriously rejected.
		_ = s.store.Del(ctx, reverseKey(reg.Owner, reg.Repo))
		return "", fmt.Errorf("store api key record: %w", err)
	}
	if pending {
		if err := s.store.Expire(ctx, recordKey(hash), RegistrationTTL); err != nil {
			return "", fmt.Errorf("set record expiry: %w", err)
		}
	}

	return hash, nil
}

// ExistsForRepo reports whether a key is already registered for owner/repo.
func (s *Service) ExistsForRepo(ctx context.Context, owner, repo string) (bool, error) {
	_, err := s.store.Get(ctx, reverseKey(owner, repo))
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// LookupByHash loads the record stored under a key hash. Returns (nil, nil)
// when no record exists.
func (s *Service) LookupByHash(ctx context.Context, hash string) (*Record, error) {
	fields, err := s.store.HGetAll(ctx, recordKey(hash))
	if err != nil {
		return nil, fmt.Errorf("load api key record: %w", err)
	}
	if len(fields) == 0 || fields["owner"] == "" {
		return nil, nil
	}
	return parseRecord(fields), nil
}

// parseRecord normalizes the stored string fields into the domain model.
// Records written before email confirmation existed have no emailConfirmed
// field and are treated as confirmed.
func parseRecord(fields map[string]string) *Record {
	rec := &Record{
		Owner:          fields["owner"],
		Repo:           fields["repo"],
		Email:          fields["email"],
		Tier:           tier.Parse(fields["tier"]),
		EmailConfirmed: fields["emailConfirmed"] != "false",
	}
	if ts, err := time.Parse(time.RFC3339, fields["createdAt"]); err == nil {
		rec.CreatedAt = ts
	}
	return rec
}

// NewConfirmToken returns a random 256-bit token in hex.
func NewConfirmToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate confirm token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// confirmPayload is the stored token body. The plaintext key rides along so
// confirmation can display it once more; it exists nowhere else.
type confirmPayload struct {
	Hash string `json:"h"`
	Key  string `json:"k"`
}

// StoreConfirmToken stores a confirmation token mapping to the key hash and
// plaintext key, expiring with the registration window.
func (s *Service) StoreConfirmToken(ctx context.Context, token, hash, plaintextKey string) error {
	raw, err := json.Marshal(confirmPayload{Hash: hash, Key: plaintextKey})
	if err != nil {
		return fmt.Errorf("encode confirm token: %w", err)
	}
	return s.store.Set(ctx, confirmKey(token), string(raw), RegistrationTTL)
}

// lookupConfirmToken resolves a token to its payload. Tokens written by old
// deployments hold a bare hash string instead of JSON.
func (s *Service) lookupConfirmToken(ctx context.Context, token string) (*confirmPayload, error) {
	raw, err := s.store.Get(ctx, confirmKey(token))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var payload confirmPayload
	if err := json.Unmarshal([]byte(raw), &payload); err == nil && payload.Hash != "" {
		return &payload, nil
	}
	return &confirmPayload{Hash: raw}, nil
}

// ConfirmRegistration promotes a pending registration to permanent: marks the
// record confirmed, removes the expiry from both the record and the reverse
// lookup, and deletes the token so it cannot be used twice. A second call
// with the same token fails with ErrInvalidToken.
func (s *Service) ConfirmRegistration(ctx context.Context, token string) (*Confirmation, error) {
	payload, err := s.lookupConfirmToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("look up confirm token: %w", err)
	}
	if payload == nil {
		return nil, ErrInvalidToken
	}

	rec, err := s.LookupByHash(ctx, payload.Hash)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		// The pending record expired before the link was clicked.
		return nil, ErrInvalidToken
	}

	if err := s.store.HSet(ctx, recordKey(payload.Hash), map[string]string{"emailConfirmed": "true"}); err != nil {
		return nil, fmt.Errorf("mark confirmed: %w", err)
	}
	if err := s.store.Persist(ctx, recordKey(payload.Hash)); err != nil {
		return nil, fmt.Errorf("persist record: %w", err)
	}
	if err := s.store.Persist(ctx, reverseKey(rec.Owner, rec.Repo)); err != nil {
		return nil, fmt.Errorf("persist reverse lookup: %w", err)
	}
	if err := s.store.Del(ctx, confirmKey(token)); err != nil {
		return nil, fmt.Errorf("delete confirm token: %w", err)
	}

	return &Confirmation{Owner: rec.Owner, Repo: rec.Repo, Key: payload.Key}, nil
}

// SetTier mutates the tier on an existing record and nothing else. The
// verification cache for the repo is cleared separately by the caller so the
// new tier takes effect on the next request.
func (s *Service) SetTier(ctx context.Context, owner, repo string, t tier.Tier) error {
	hash, err := s.store.Get(ctx, reverseKey(owner, repo))
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotRegistered
	}
	if err != nil {
		return err
	}
	return s.store.HSet(ctx, recordKey(hash), map[string]string{"tier": string(t)})
}
