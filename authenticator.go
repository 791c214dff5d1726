package auth

import (
	"context"
	"time"
)

// SignupOrLogin logs in an existing name or registers a new viewer.
func (s *Service) SignupOrLogin(ctx context.Context, in SignupInput) (*SessionResult, error) {
	if in.Name == "" {
		return nil, newError(ErrInvalidInput, "name is required")
	}

	if _, found, err := s.provider.FindIdentityByName(ctx, in.Name); err != nil {
		return nil, err
	} else if found {
		return s.Login(ctx, in.Name, in.Password, in.RememberMe)
	}

	user, err := s.register.Execute(ctx, RegisterUserMessage{
		Name:     in.Name,
		Password: in.Password,
		Profile:  in.Profile,
		Region:   in.Region,
		Meta:     in.Meta,
	})
	if err != nil {
		s.logger.Warn("signup failed", "name", in.Name, "error", err)
		return nil, err
	}

	tokens, err := s.issuer.Mint(NewIdentityFromUser(user), in.RememberMe)
	if err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventSignup, actorFromUser(user), user.ID.String(), map[string]any{
		"name": user.Username,
	})

	return &SessionResult{User: user, IsNewUser: true, Tokens: tokens}, nil
}

// Login checks the credentials and mints a pair.
func (s *Service) Login(ctx context.Context, name, password string, rememberMe bool) (*SessionResult, error) {
	user, err := s.provider.VerifyIdentity(ctx, name, password)
	if err != nil {
		s.logger.Error("Login verify identity error", "error", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"name":  name,
			"error": err.Error(),
		})
		return nil, err
	}

	tokens, err := s.issuer.Mint(NewIdentityFromUser(user), rememberMe)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, actorFromUser(user), user.ID.String(), map[string]any{
			"name":  name,
			"error": err.Error(),
		})
		return nil, err
	}

	at := s.now().UTC()
	if updated, err := s.stores.Users.UpdateByID(ctx, user.ID.String(), UserPatch{LoggedInAt: &at}); err != nil {
		s.logger.Warn("failed to track successful login", "user_id", user.ID.String(), "error", err)
	} else if updated != nil {
		user = updated
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, actorFromUser(user), user.ID.String(), map[string]any{
		"name":        name,
		"remember_me": rememberMe,
	})

	return &SessionResult{User: user, Tokens: tokens}, nil
}

// Verify resolves the identity behind an access token.
func (s *Service) Verify(ctx context.Context, accessToken string) (*User, error) {
	user, _, err := s.gate.Authenticate(ctx, accessToken)
	return user, err
}

// Authenticate is Verify that also returns the decoded claims.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*User, *SessionClaims, error) {
	return s.gate.Authenticate(ctx, accessToken)
}

// Refresh exchanges a refresh token for a new pair. The presented token is retired.
func (s *Service) Refresh(ctx context.Context, refreshToken string, rememberMe bool) (*SessionResult, error) {
	pair, user, err := s.rotator.Refresh(ctx, refreshToken, rememberMe)
	if err != nil {
		return nil, err
	}
	return &SessionResult{User: user, Tokens: pair}, nil
}

// Logout retires the refresh token. Failures are logged and never returned.
func (s *Service) Logout(ctx context.Context, refreshToken string) {
	if err := s.rotator.Retire(ctx, refreshToken); err != nil {
		s.logger.Error("logout failed to retire refresh token", "error", err)
	}
}

func (s *Service) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	emitActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType:  eventType,
		Actor:      actor,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: s.now().UTC().Truncate(time.Millisecond),
	})
}

func actorFromUser(user *User) ActorRef {
	if user == nil {
		return ActorRef{Type: "unknown"}
	}
	return ActorRef{ID: user.ID.String(), Type: string(user.Role)}
}
