package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"time"

	"github.com/kulicha-project/kulicha/internal/apperr"
	"github.com/kulicha-project/kulicha/internal/audit"
	"github.com/kulicha-project/kulicha/internal/notification"
)

// DefaultVerificationTTL is how long a verification code stays valid when no
// explicit TTL is configured.
const DefaultVerificationTTL = 6 * time.Hour

const unknownDevice = "unknown"

// Service drives the passwordless register/login flow. State per identity is
// inferred from the presence of User and PendingVerification rows, never
// stored explicitly.
type Service struct {
	repo     Repository
	audit    audit.Recorder
	notifier notification.Notifier
	codes    *CodeGenerator
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds the auth service. A nil code generator gets a
// time-seeded one; a non-positive ttl falls back to the default.
func NewService(repo Repository, recorder audit.Recorder, notifier notification.Notifier, codes *CodeGenerator, ttl time.Duration, logger *slog.Logger) *Service {
	if codes == nil {
		codes = NewCodeGenerator(rand.NewSource(time.Now().UnixNano()))
	}
	if ttl <= 0 {
		ttl = DefaultVerificationTTL
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		repo:     repo,
		audit:    recorder,
		notifier: notifier,
		codes:    codes,
		ttl:      ttl,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RequestVerificationInput carries the arguments of a verification request.
// Username and RoleInt are only consulted when IsRegistration is set.
type RequestVerificationInput struct {
	Email          string
	IsRegistration bool
	Username       string
	RoleInt        int
}

// RequestVerification starts a registration or login attempt by issuing a
// verification code for the caller identity. Any prior pending verification
// for the identity is superseded.
func (s *Service) RequestVerification(ctx context.Context, identity string, in RequestVerificationInput) error {
	if !ValidIdentity(identity) {
		return apperr.New(apperr.KindInvalidInput, "invalid caller identity")
	}

	email := NormalizeEmail(in.Email)
	if !ValidEmail(email) {
		return apperr.New(apperr.KindInvalidInput, "invalid email format")
	}

	// A caller already linked to a verified account may only re-verify the
	// same address.
	current, err := s.repo.FindUser(ctx, identity)
	switch {
	case err == nil:
		if current.Email != email {
			return apperr.New(apperr.KindConflict, "cannot request verification for a different email while signed in")
		}
	case errors.Is(err, ErrUserNotFound):
		// anonymous caller, fine
	default:
		return apperr.Wrap(apperr.KindInternal, "lookup user", err)
	}

	pending := PendingVerification{
		Identity:  identity,
		Email:     email,
		Code:      s.codes.Next(),
		ExpiresAt: s.now().Add(s.ttl),
	}

	var action string
	if in.IsRegistration {
		if _, err := s.repo.FindUserByEmail(ctx, email); err == nil {
			return apperr.Newf(apperr.KindConflict, "email %q is already registered", email)
		} else if !errors.Is(err, ErrUserNotFound) {
			return apperr.Wrap(apperr.KindInternal, "lookup email", err)
		}
		if !ValidUsername(in.Username) {
			return apperr.New(apperr.KindInvalidInput, "invalid username format (3-20 chars, letters, numbers, _, -)")
		}
		role, ok := ParseRole(in.RoleInt)
		if !ok {
			return apperr.New(apperr.KindInvalidInput, "invalid user role")
		}
		if _, err := s.repo.FindUserByUsername(ctx, in.Username); err == nil {
			return apperr.Newf(apperr.KindConflict, "username %q is already taken", in.Username)
		} else if !errors.Is(err, ErrUserNotFound) {
			return apperr.Wrap(apperr.KindInternal, "lookup username", err)
		}
		pending.Username = in.Username
		pending.Role = role
		action = "RegistrationVerificationRequested"
	} else {
		if _, err := s.repo.FindUserByEmail(ctx, email); err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return apperr.Newf(apperr.KindNotFound, "no account found for email %q", email)
			}
			return apperr.Wrap(apperr.KindInternal, "lookup email", err)
		}
		action = "LoginVerificationRequested"
	}

	if err := s.repo.ReplacePending(ctx, pending); err != nil {
		return apperr.Wrap(apperr.KindInternal, "store pending verification", err)
	}

	s.audit.Record(ctx, identity, action, fmt.Sprintf("verification requested for %s", email))

	if err := s.notifier.SendVerificationCode(ctx, email, pending.Code); err != nil {
		// The code is persisted and audited; delivery is best-effort.
		s.logger.Warn("verification code delivery failed", slog.String("email", email), slog.Any("error", err))
	}
	return nil
}

// Verify completes a registration or login with the code the caller received.
// A wrong code leaves the pending row in place so the correct code can still
// be submitted; an expired code deletes it.
func (s *Service) Verify(ctx context.Context, identity, code, deviceID string) (User, error) {
	if !ValidIdentity(identity) {
		return User{}, apperr.New(apperr.KindInvalidInput, "invalid caller identity")
	}
	if deviceID == "" {
		deviceID = unknownDevice
	}

	pending, err := s.repo.FindPending(ctx, identity)
	if err != nil {
		if errors.Is(err, ErrPendingNotFound) {
			return User{}, apperr.New(apperr.KindNotFound, "no pending verification found, request a code first")
		}
		return User{}, apperr.Wrap(apperr.KindInternal, "lookup pending verification", err)
	}

	now := s.now()
	if pending.ExpiresAt.Before(now) {
		if err := s.repo.DeletePending(ctx, identity); err != nil {
			return User{}, apperr.Wrap(apperr.KindInternal, "delete expired verification", err)
		}
		s.audit.Record(ctx, identity, "VerificationExpired", fmt.Sprintf("code for %s expired", pending.Email))
		return User{}, apperr.New(apperr.KindExpired, "verification code has expired, request a new one")
	}

	if pending.Code != code {
		s.audit.Record(ctx, identity, "VerificationCodeRejected", fmt.Sprintf("wrong code submitted for %s", pending.Email))
		return User{}, apperr.New(apperr.KindInvalidCode, "invalid verification code")
	}

	session := AuthSession{
		Identity:       identity,
		LastActiveTime: now,
		ActiveDeviceID: deviceID,
	}

	user, err := s.repo.FindUser(ctx, identity)
	switch {
	case errors.Is(err, ErrUserNotFound):
		return s.completeRegistration(ctx, pending, session, now)
	case err != nil:
		return User{}, apperr.Wrap(apperr.KindInternal, "lookup user", err)
	default:
		return s.completeLogin(ctx, user, pending, session)
	}
}

func (s *Service) completeRegistration(ctx context.Context, pending PendingVerification, session AuthSession, now time.Time) (User, error) {
	if !pending.IsRegistration() || pending.Email == "" {
		// The pending row lacks registration fields; inconsistent state.
		if err := s.repo.DeletePending(ctx, pending.Identity); err != nil {
			return User{}, apperr.Wrap(apperr.KindInternal, "delete inconsistent verification", err)
		}
		return User{}, apperr.New(apperr.KindInternal, "pending verification is missing registration data")
	}

	// The email or username may have been claimed between request and verify.
	if _, err := s.repo.FindUserByEmail(ctx, pending.Email); err == nil {
		_ = s.repo.DeletePending(ctx, pending.Identity)
		return User{}, apperr.Newf(apperr.KindConflict, "email %q was registered by someone else", pending.Email)
	} else if !errors.Is(err, ErrUserNotFound) {
		return User{}, apperr.Wrap(apperr.KindInternal, "lookup email", err)
	}
	if _, err := s.repo.FindUserByUsername(ctx, pending.Username); err == nil {
		_ = s.repo.DeletePending(ctx, pending.Identity)
		return User{}, apperr.Newf(apperr.KindConflict, "username %q was taken in the meantime", pending.Username)
	} else if !errors.Is(err, ErrUserNotFound) {
		return User{}, apperr.Wrap(apperr.KindInternal, "lookup username", err)
	}

	user := User{
		Identity:      pending.Identity,
		Username:      pending.Username,
		Email:         pending.Email,
		Role:          pending.Role,
		EmailVerified: true,
		RegisteredAt:  now,
	}
	if err := s.repo.CompleteRegistration(ctx, user, session); err != nil {
		return User{}, apperr.Wrap(apperr.KindInternal, "complete registration", err)
	}

	s.audit.Record(ctx, user.Identity, "UserRegistrationCompleted",
		fmt.Sprintf("user %s (%s) registered as %s", user.Username, user.Email, user.Role))
	s.audit.Record(ctx, user.Identity, "SessionCreated",
		fmt.Sprintf("initial session for %s, device %s", user.Username, session.ActiveDeviceID))
	return user, nil
}

func (s *Service) completeLogin(ctx context.Context, user User, pending PendingVerification, session AuthSession) (User, error) {
	if pending.Email == "" || pending.Email != user.Email {
		if err := s.repo.DeletePending(ctx, pending.Identity); err != nil {
			return User{}, apperr.Wrap(apperr.KindInternal, "delete mismatched verification", err)
		}
		s.audit.Record(ctx, user.Identity, "VerificationMismatch",
			fmt.Sprintf("pending email %q does not match account email", pending.Email))
		return User{}, apperr.New(apperr.KindMismatch, "verification email does not match the account email")
	}

	if err := s.repo.CompleteLogin(ctx, session); err != nil {
		return User{}, apperr.Wrap(apperr.KindInternal, "complete login", err)
	}

	s.audit.Record(ctx, user.Identity, "UserLogin",
		fmt.Sprintf("user %s (%s) logged in, device %s", user.Username, user.Email, session.ActiveDeviceID))
	return user, nil
}

// Profile returns the caller's own user record.
func (s *Service) Profile(ctx context.Context, identity string) (User, error) {
	user, err := s.repo.FindUser(ctx, identity)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, apperr.New(apperr.KindUnauthenticated, "not authenticated")
		}
		return User{}, apperr.Wrap(apperr.KindInternal, "lookup user", err)
	}
	s.audit.Record(ctx, identity, "GetMyProfile", fmt.Sprintf("user %s requested profile data", user.Username))
	return user, nil
}

// UpdateProfile changes the caller's username and/or email. A changed email
// clears the verified flag until re-verified.
func (s *Service) UpdateProfile(ctx context.Context, identity, newUsername, newEmail string) (User, error) {
	user, err := s.repo.FindUser(ctx, identity)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, apperr.New(apperr.KindUnauthenticated, "not authenticated")
		}
		return User{}, apperr.Wrap(apperr.KindInternal, "lookup user", err)
	}

	changed := false
	newEmail = NormalizeEmail(newEmail)

	if newUsername != "" && newUsername != user.Username {
		if !ValidUsername(newUsername) {
			return User{}, apperr.New(apperr.KindInvalidInput, "invalid username format")
		}
		if other, err := s.repo.FindUserByUsername(ctx, newUsername); err == nil && other.Identity != identity {
			return User{}, apperr.Newf(apperr.KindConflict, "username %q is already taken", newUsername)
		} else if err != nil && !errors.Is(err, ErrUserNotFound) {
			return User{}, apperr.Wrap(apperr.KindInternal, "lookup username", err)
		}
		user.Username = newUsername
		changed = true
	}

	if newEmail != "" && newEmail != user.Email {
		if !ValidEmail(newEmail) {
			return User{}, apperr.New(apperr.KindInvalidInput, "invalid email format")
		}
		if other, err := s.repo.FindUserByEmail(ctx, newEmail); err == nil && other.Identity != identity {
			return User{}, apperr.Newf(apperr.KindConflict, "email %q is already registered to another account", newEmail)
		} else if err != nil && !errors.Is(err, ErrUserNotFound) {
			return User{}, apperr.Wrap(apperr.KindInternal, "lookup email", err)
		}
		user.Email = newEmail
		user.EmailVerified = false
		changed = true
	}

	if !changed {
		return user, nil
	}
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return User{}, apperr.Wrap(apperr.KindInternal, "update user", err)
	}
	s.audit.Record(ctx, identity, "UserProfileUpdated",
		fmt.Sprintf("profile now %s / %s (verified=%t)", user.Username, user.Email, user.EmailVerified))
	return user, nil
}

// UsersByRole lists users holding a role. Role gating happens at the router;
// the actor is only needed for the audit trail.
func (s *Service) UsersByRole(ctx context.Context, actor User, roleInt int) ([]User, error) {
	role, ok := ParseRole(roleInt)
	if !ok {
		return nil, apperr.New(apperr.KindInvalidInput, "invalid user role")
	}
	users, err := s.repo.ListUsersByRole(ctx, role)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list users", err)
	}
	s.audit.Record(ctx, actor.Identity, "UsersListedByRole",
		fmt.Sprintf("%s listed %d users with role %s", actor.Username, len(users), role))
	return users, nil
}

// Session returns the caller's session marker, if any.
func (s *Service) Session(ctx context.Context, identity string) (AuthSession, error) {
	session, err := s.repo.FindSession(ctx, identity)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return AuthSession{}, apperr.New(apperr.KindNotFound, "no active session")
		}
		return AuthSession{}, apperr.Wrap(apperr.KindInternal, "lookup session", err)
	}
	return session, nil
}
