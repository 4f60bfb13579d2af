package services

import (
	"context"
	"strings"
	"time"

	"hotel-billing/models"
	"hotel-billing/tenants"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// CredentialTable is the static login table.
type CredentialTable interface {
	Credential(username string) (tenants.Credential, bool)
	Tenant(id string) (models.Tenant, bool)
}

// Authenticator matches a username and password against the credential
// table and yields the session of the tenant it belongs to.
type Authenticator struct {
	table    CredentialTable
	throttle *LoginThrottle
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewAuthenticator(table CredentialTable, throttle *LoginThrottle, logger *zap.SugaredLogger, now func() time.Time) *Authenticator {
	if now == nil {
		now = time.Now
	}
	return &Authenticator{table: table, throttle: throttle, logger: logger, now: now}
}

// Login returns ErrInvalidCredentials for an unknown user or wrong password
// and a *ThrottledError while the user's cooldown runs. The password is
// never logged.
func (a *Authenticator) Login(ctx context.Context, username, password string) (Session, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}

	wait, err := a.throttle.WaitSeconds(ctx, username)
	if err != nil {
		return Session{}, err
	}
	if wait > 0 {
		return Session{}, &ThrottledError{Wait: time.Duration(wait) * time.Second}
	}

	cred, ok := a.table.Credential(username)
	var tenant models.Tenant
	if ok {
		tenant, ok = a.table.Tenant(cred.TenantID)
	}
	if !ok || bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)) != nil {
		if err := a.throttle.RecordFailed(ctx, username); err != nil {
			a.logger.Warnw("failed to record login failure", "username", username, "error", err)
		}
		a.logger.Infow("login rejected", "username", username)
		return Session{}, ErrInvalidCredentials
	}

	if err := a.throttle.RecordSuccess(ctx, username); err != nil {
		a.logger.Warnw("failed to reset login throttle", "username", username, "error", err)
	}
	a.logger.Infow("login", "username", username, "tenant", tenant.ID, "admin", cred.Admin)
	return Session{
		TenantID:    tenant.ID,
		DisplayName: tenant.DisplayName,
		Username:    username,
		IsAdmin:     cred.Admin,
		LoggedInAt:  a.now(),
	}, nil
}
