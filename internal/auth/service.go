package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

const issuerName = "vendoor"

// Default credential lifetimes; override with Service options.
const (
	defaultAccessTTL  = 30 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
	defaultSessionTTL = 24 * time.Hour
	defaultResetTTL   = 15 * time.Minute
	defaultOTPTTL     = 10 * time.Minute
)

const minPasswordLength = 8

// Strategy selects how login proofs are minted. A deployment runs exactly one
// strategy; mixing them leads to inconsistent revocation semantics.
type Strategy string

const (
	StrategyToken   Strategy = "token"
	StrategySession Strategy = "session"
)

// Grant is what a successful login or refresh hands back to the client.
// Session deployments populate SessionID; token deployments populate the
// token pair.
type Grant struct {
	SessionID        string
	SessionExpiresAt time.Time
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// IsSession reports whether the grant carries an opaque session id.
func (g *Grant) IsSession() bool { return g.SessionID != "" }

// CredentialIssuer is the capability boundary between the gateway and the
// two competing credential designs.
type CredentialIssuer interface {
	// Issue mints the login proof for ownerID.
	Issue(ctx context.Context, ownerID string, meta SessionMetadata) (*Grant, error)
	// Authenticate resolves a presented proof to its owner.
	Authenticate(ctx context.Context, presented string) (ownerID string, err error)
	// Revoke invalidates exactly the presented proof.
	Revoke(ctx context.Context, presented string) error
	// RevokeAll invalidates every proof of this strategy's kinds for ownerID.
	RevokeAll(ctx context.Context, ownerID string) error
	// Refresh rotates a refresh proof; session deployments return ErrNotSupported.
	Refresh(ctx context.Context, presented string, meta SessionMetadata) (*Grant, error)
}

// Mailer delivers account email. Implementations live in internal/notify.
type Mailer interface {
	SendPasswordReset(ctx context.Context, recipient, link string) error
	SendEmailOTP(ctx context.Context, recipient, code string) error
}

// Texter delivers SMS.
type Texter interface {
	SendOTP(ctx context.Context, phoneNumber, code string) error
}

// Service orchestrates the credential lifecycle: login, logout, refresh,
// password reset, and out-of-band verification.
type Service struct {
	store        Store
	strategy     CredentialIssuer
	strategyName Strategy
	tokens       *TokenIssuer
	otp          *OTPIssuer
	nonces       NonceStore
	mailer       Mailer
	texter       Texter

	accessTTL  time.Duration
	refreshTTL time.Duration
	sessionTTL time.Duration
	resetTTL   time.Duration
	otpTTL     time.Duration
	resetURL   string
	now        func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithStrategy picks the credential design for this deployment.
func WithStrategy(s Strategy) ServiceOption {
	return func(svc *Service) error {
		switch s {
		case StrategyToken, StrategySession:
			svc.strategyName = s
			return nil
		default:
			return fmt.Errorf("auth: unknown strategy %q", s)
		}
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithSessionTTL configures opaque session lifetime.
func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
		return nil
	}
}

// WithResetTTL configures password-reset token lifetime.
func WithResetTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.resetTTL = ttl
		}
		return nil
	}
}

// WithOTPTTL configures one-time-code challenge lifetime.
func WithOTPTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.otpTTL = ttl
		}
		return nil
	}
}

// WithResetURL sets the frontend URL embedded in password-reset links.
func WithResetURL(u string) ServiceOption {
	return func(s *Service) error {
		s.resetURL = strings.TrimRight(strings.TrimSpace(u), "/")
		return nil
	}
}

// WithMailer wires the outbound email transport.
func WithMailer(m Mailer) ServiceOption {
	return func(s *Service) error {
		s.mailer = m
		return nil
	}
}

// WithTexter wires the outbound SMS transport.
func WithTexter(t Texter) ServiceOption {
	return func(s *Service) error {
		s.texter = t
		return nil
	}
}

// WithNonceStore overrides the consumed-challenge store (Redis in
// multi-instance deployments).
func WithNonceStore(n NonceStore) ServiceOption {
	return func(s *Service) error {
		if n != nil {
			s.nonces = n
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs the gateway with optional configuration.
func NewService(store Store, secret []byte, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if len(secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	svc := &Service{
		store:        store,
		accessTTL:    defaultAccessTTL,
		refreshTTL:   defaultRefreshTTL,
		sessionTTL:   defaultSessionTTL,
		resetTTL:     defaultResetTTL,
		otpTTL:       defaultOTPTTL,
		strategyName: StrategyToken,
		nonces:       NewMemoryNonceStore(),
		now:          time.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}

	creds := store.Credentials(context.Background())
	tokens, err := NewTokenIssuer(secret, issuerName, creds)
	if err != nil {
		return nil, err
	}
	tokens.SetNowFunc(svc.now)
	svc.tokens = tokens

	otp, err := NewOTPIssuer(secret, issuerName, svc.nonces)
	if err != nil {
		return nil, err
	}
	otp.SetNowFunc(svc.now)
	svc.otp = otp

	switch svc.strategyName {
	case StrategySession:
		sessions := NewSessionIssuer(creds)
		sessions.SetNowFunc(svc.now)
		svc.strategy = &sessionStrategy{sessions: sessions, ttl: svc.sessionTTL}
	default:
		svc.strategy = &tokenPairStrategy{
			tokens:     tokens,
			creds:      creds,
			accessTTL:  svc.accessTTL,
			refreshTTL: svc.refreshTTL,
		}
	}
	return svc, nil
}

// Strategy reports the credential design this deployment runs.
func (s *Service) Strategy() Strategy { return s.strategyName }

// OTPTTL reports the configured one-time-code challenge lifetime.
func (s *Service) OTPTTL() time.Duration { return s.otpTTL }

// NewUser carries the validated input for signup.
type NewUser struct {
	FullName    string
	Email       string
	PhoneNumber string
	Password    string
	Role        string
}

// SignUp creates a principal with a hashed password.
func (s *Service) SignUp(ctx context.Context, in NewUser) (*User, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}
	if strings.TrimSpace(in.FullName) == "" {
		return nil, fmt.Errorf("%w: full name is required", ErrInvalidInput)
	}
	if len(in.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	switch in.Role {
	case "", RoleUser, RoleVendor:
	default:
		return nil, fmt.Errorf("%w: role %q cannot be self-assigned", ErrInvalidInput, in.Role)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &User{
		FullName:       strings.TrimSpace(in.FullName),
		Email:          in.Email,
		PhoneNumber:    strings.TrimSpace(in.PhoneNumber),
		HashedPassword: hash,
		Role:           in.Role,
	}
	if err := s.store.Users(ctx).Create(ctx, user); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, ErrAlreadyExists
		}
		return nil, storeFault(err)
	}
	return user, nil
}

// Login checks the email/password pair and mints a credential. Unknown email
// and wrong password share one failure path, including a bcrypt comparison on
// the missing-user branch, so the two are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string, meta SessionMetadata) (*Grant, *User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, nil, ErrInvalidCredentials
	}
	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			VerifyPassword(dummyDigest, password)
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, storeFault(err)
	}
	if !VerifyPassword(user.HashedPassword, password) {
		return nil, nil, ErrInvalidCredentials
	}
	if user.Status != StatusActive {
		return nil, nil, ErrInactiveAccount
	}
	grant, err := s.strategy.Issue(ctx, user.ID, meta)
	if err != nil {
		return nil, nil, err
	}
	return grant, user, nil
}

// Authenticate resolves a presented credential to a principal.
func (s *Service) Authenticate(ctx context.Context, presented string) (Principal, error) {
	ownerID, err := s.strategy.Authenticate(ctx, presented)
	if err != nil {
		return Principal{}, err
	}
	user, err := s.store.Users(ctx).Find(ctx, ownerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrInvalidToken
		}
		return Principal{}, storeFault(err)
	}
	if user.Status != StatusActive {
		return Principal{}, ErrInactiveAccount
	}
	return Principal{User: user}, nil
}

// Logout revokes exactly the presented credential. Revoking an
// already-revoked credential still succeeds.
func (s *Service) Logout(ctx context.Context, presented string) error {
	return s.strategy.Revoke(ctx, presented)
}

// LogoutAll revokes every credential of the deployment's kind-scope for the
// owner.
func (s *Service) LogoutAll(ctx context.Context, ownerID string) error {
	return s.strategy.RevokeAll(ctx, ownerID)
}

// Refresh rotates a refresh token into a fresh pair. Only token deployments
// support it.
func (s *Service) Refresh(ctx context.Context, presented string, meta SessionMetadata) (*Grant, error) {
	return s.strategy.Refresh(ctx, presented, meta)
}

// ForgotPassword issues a short-lived reset credential and emails the link.
// Unknown emails are silently ignored so the endpoint cannot be used to probe
// for accounts; the response shape is identical either way.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil
	}
	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return storeFault(err)
	}
	token, _, err := s.tokens.Issue(ctx, user.ID, KindReset, s.resetTTL)
	if err != nil {
		return err
	}
	if s.mailer == nil {
		return fmt.Errorf("%w: no mailer configured", ErrDeliveryFailed)
	}
	link := s.resetURL + "?token=" + token
	if err := s.mailer.SendPasswordReset(ctx, user.Email, link); err != nil {
		// The reset credential is already minted; a bounced email does not
		// roll it back.
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

// ResetPassword validates the reset token, replaces the password hash, and
// revokes every outstanding reset credential for the owner in one
// transaction, so parallel reset links die together.
func (s *Service) ResetPassword(ctx context.Context, presented, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	cred, err := s.tokens.Validate(ctx, presented, KindReset)
	if err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.ReplacePassword(ctx, cred.OwnerID, hash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidToken
		}
		return storeFault(err)
	}
	return nil
}

// SendPhoneVerification texts a one-time code to the user's phone number and
// returns the signed challenge carrying the code's hash.
func (s *Service) SendPhoneVerification(ctx context.Context, user *User) (string, error) {
	if user == nil || strings.TrimSpace(user.PhoneNumber) == "" {
		return "", fmt.Errorf("%w: no phone number on record", ErrInvalidInput)
	}
	if s.texter == nil {
		return "", fmt.Errorf("%w: no SMS transport configured", ErrDeliveryFailed)
	}
	code, err := GenerateOTP(DefaultOTPLength)
	if err != nil {
		return "", err
	}
	challenge, err := s.otp.IssueChallenge(code, PurposeVerifyPhone, s.otpTTL)
	if err != nil {
		return "", err
	}
	if err := s.texter.SendOTP(ctx, user.PhoneNumber, code); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return challenge, nil
}

// VerifyPhone consumes the challenge and marks the phone number verified.
func (s *Service) VerifyPhone(ctx context.Context, user *User, challenge, code string) (*User, error) {
	if user == nil {
		return nil, ErrInvalidToken
	}
	if err := s.otp.VerifyChallenge(ctx, challenge, code, PurposeVerifyPhone); err != nil {
		return nil, err
	}
	verified := true
	updated, err := s.store.Users(ctx).Update(ctx, user.ID, UserUpdate{PhoneVerified: &verified})
	if err != nil {
		return nil, storeFault(err)
	}
	return updated, nil
}

// SendEmailVerification emails a one-time code and returns the challenge.
func (s *Service) SendEmailVerification(ctx context.Context, user *User) (string, error) {
	if user == nil || strings.TrimSpace(user.Email) == "" {
		return "", fmt.Errorf("%w: no email on record", ErrInvalidInput)
	}
	if s.mailer == nil {
		return "", fmt.Errorf("%w: no mailer configured", ErrDeliveryFailed)
	}
	code, err := GenerateOTP(DefaultOTPLength)
	if err != nil {
		return "", err
	}
	challenge, err := s.otp.IssueChallenge(code, PurposeVerifyEmail, s.otpTTL)
	if err != nil {
		return "", err
	}
	if err := s.mailer.SendEmailOTP(ctx, user.Email, code); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return challenge, nil
}

// VerifyEmail consumes the challenge and marks the email verified.
func (s *Service) VerifyEmail(ctx context.Context, user *User, challenge, code string) (*User, error) {
	if user == nil {
		return nil, ErrInvalidToken
	}
	if err := s.otp.VerifyChallenge(ctx, challenge, code, PurposeVerifyEmail); err != nil {
		return nil, err
	}
	verified := true
	updated, err := s.store.Users(ctx).Update(ctx, user.ID, UserUpdate{EmailVerified: &verified})
	if err != nil {
		return nil, storeFault(err)
	}
	return updated, nil
}

// Token pair strategy --------------------------------------------------------

// tokenPairStrategy implements the stateful-JWT design: signed access and
// refresh tokens whose revocation lives in the credential store.
type tokenPairStrategy struct {
	tokens     *TokenIssuer
	creds      CredentialStore
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func (t *tokenPairStrategy) Issue(ctx context.Context, ownerID string, _ SessionMetadata) (*Grant, error) {
	access, aCred, err := t.tokens.Issue(ctx, ownerID, KindAccess, t.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, rCred, err := t.tokens.Issue(ctx, ownerID, KindRefresh, t.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &Grant{
		AccessToken:      access,
		AccessExpiresAt:  aCred.ExpiresAt,
		RefreshToken:     refresh,
		RefreshExpiresAt: rCred.ExpiresAt,
	}, nil
}

func (t *tokenPairStrategy) Authenticate(ctx context.Context, presented string) (string, error) {
	cred, err := t.tokens.Validate(ctx, presented, KindAccess)
	if err != nil {
		return "", err
	}
	return cred.OwnerID, nil
}

func (t *tokenPairStrategy) Revoke(ctx context.Context, presented string) error {
	return t.tokens.Revoke(ctx, presented)
}

func (t *tokenPairStrategy) RevokeAll(ctx context.Context, ownerID string) error {
	if err := t.creds.InvalidateAll(ctx, ownerID, KindAccess); err != nil {
		return storeFault(err)
	}
	if err := t.creds.InvalidateAll(ctx, ownerID, KindRefresh); err != nil {
		return storeFault(err)
	}
	return nil
}

// Refresh validates the presented refresh token, then revokes every prior
// access token (single-valid-access-token invariant) and the presented
// refresh token itself before minting the replacement pair. Validation fails
// before any mutation happens.
func (t *tokenPairStrategy) Refresh(ctx context.Context, presented string, meta SessionMetadata) (*Grant, error) {
	cred, err := t.tokens.Validate(ctx, presented, KindRefresh)
	if err != nil {
		return nil, err
	}
	if err := t.creds.InvalidateAll(ctx, cred.OwnerID, KindAccess); err != nil {
		return nil, storeFault(err)
	}
	if err := t.creds.Invalidate(ctx, cred.ID); err != nil {
		return nil, storeFault(err)
	}
	return t.Issue(ctx, cred.OwnerID, meta)
}

// Opaque session strategy -----------------------------------------------------

// sessionStrategy implements the pure server-side design: one active session
// per principal, enforced by closing prior sessions at login.
type sessionStrategy struct {
	sessions *SessionIssuer
	ttl      time.Duration
}

func (s *sessionStrategy) Issue(ctx context.Context, ownerID string, meta SessionMetadata) (*Grant, error) {
	if err := s.sessions.CloseAllForOwner(ctx, ownerID); err != nil {
		return nil, err
	}
	cred, err := s.sessions.Open(ctx, ownerID, s.ttl, meta)
	if err != nil {
		return nil, err
	}
	return &Grant{SessionID: cred.ID, SessionExpiresAt: cred.ExpiresAt}, nil
}

func (s *sessionStrategy) Authenticate(ctx context.Context, presented string) (string, error) {
	cred, err := s.sessions.Resolve(ctx, presented)
	if err != nil {
		return "", err
	}
	return cred.OwnerID, nil
}

func (s *sessionStrategy) Revoke(ctx context.Context, presented string) error {
	return s.sessions.Close(ctx, presented)
}

func (s *sessionStrategy) RevokeAll(ctx context.Context, ownerID string) error {
	return s.sessions.CloseAllForOwner(ctx, ownerID)
}

func (s *sessionStrategy) Refresh(context.Context, string, SessionMetadata) (*Grant, error) {
	return nil, ErrNotSupported
}
