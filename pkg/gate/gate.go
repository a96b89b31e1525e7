// Package gate is the authorization boundary between the router and protected
// views. It decides, per view, whether to render or to redirect.
package gate

import (
	"go.uber.org/zap"

	"github.com/parishops/flock/pkg/models"
	"github.com/parishops/flock/pkg/permissions"
)

// Decision is the gate's verdict for a protected view.
type Decision int

const (
	// Allow renders the view.
	Allow Decision = iota
	// RedirectLogin sends the caller to the login boundary (no live session).
	RedirectLogin
	// RedirectHome sends the caller home (live session, missing permission).
	RedirectHome
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectHome:
		return "redirect_home"
	}
	return "unknown"
}

// SessionSource is the slice of the session store the gate reads.
type SessionSource interface {
	Identity() *models.Identity
}

// Gate evaluates route-level permission requirements.
type Gate struct {
	session SessionSource
	logger  *zap.Logger
}

func New(session SessionSource, logger *zap.Logger) *Gate {
	return &Gate{session: session, logger: logger.Named("gate")}
}

// Authorize evaluates a protected view's required permission. An empty
// requirement only demands a live session. The two group permissions always
// pass for role admin, even when absent from the explicit permission set.
func (g *Gate) Authorize(requiredPermission string) Decision {
	identity := g.session.Identity()
	if identity == nil {
		return RedirectLogin
	}

	if requiredPermission == "" {
		return Allow
	}

	if (requiredPermission == models.PermViewGroups || requiredPermission == models.PermManageGroups) && identity.IsAdmin() {
		return Allow
	}

	if !permissions.Check(identity, requiredPermission) {
		g.logger.Debug("Access denied",
			zap.String("user_id", identity.ID),
			zap.String("required", requiredPermission))
		return RedirectHome
	}
	return Allow
}

// Protect wraps a view callback. The render function runs only on Allow;
// otherwise the matching redirect callback fires.
func (g *Gate) Protect(requiredPermission string, render, toLogin, toHome func()) {
	switch g.Authorize(requiredPermission) {
	case Allow:
		render()
	case RedirectLogin:
		toLogin()
	case RedirectHome:
		toHome()
	}
}
