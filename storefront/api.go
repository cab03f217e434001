package storefront

import (
	"fmt"
	nethttp "net/http"

	"github.com/freekieb7/storefront/catalog"
	"github.com/freekieb7/storefront/http"
	"github.com/freekieb7/storefront/session"
)

type apiError struct {
	Error string `json:"error"`
}

type apiMessage struct {
	Message string        `json:"message"`
	User    *catalog.User `json:"user,omitempty"`
}

// ListProducts answers with one page of the filtered catalog.
func (app *App) ListProducts(ctx *http.RequestContext) (http.Result, error) {
	return http.Terminal(app.catalog.Filter(catalog.ParseQuery(ctx.Query))), nil
}

func (app *App) ShowProduct(ctx *http.RequestContext) (http.Result, error) {
	id, ok := productID(ctx)
	if !ok {
		return http.None, ctx.SendJSON(nethttp.StatusNotFound, apiError{Error: "product not found"})
	}

	product, found := app.catalog.Find(id)
	if !found {
		return http.None, ctx.SendJSON(nethttp.StatusNotFound, apiError{Error: "product not found"})
	}

	return http.Terminal(product), nil
}

// Login checks the credentials from a JSON or multipart body and opens a
// session carrying the user.
func (app *App) Login(ctx *http.RequestContext) (http.Result, error) {
	username, password, ok := credentials(ctx)
	if !ok {
		return http.None, fmt.Errorf("%w: username and password are required", http.ErrBadRequest)
	}

	user, found := app.users.Authenticate(username, password)
	if !found {
		app.logger.InfoContext(ctx.Context(), "login rejected", "username", username)
		return http.None, ctx.SendJSON(nethttp.StatusUnauthorized, apiError{Error: "invalid credentials"})
	}

	sess := session.New()
	sess.Set("user", user)
	if err := app.sessions.Save(sess); err != nil {
		return http.None, fmt.Errorf("saving session: %w", err)
	}

	err := ctx.SetCookie(&http.Cookie{
		Name:     session.CookieName,
		Value:    sess.GetId(),
		Path:     "/",
		MaxAge:   int(app.sessionMaxAge.Seconds()),
		Secure:   app.secureCookies,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	if err != nil {
		return http.None, err
	}

	app.logger.InfoContext(ctx.Context(), "login", "username", user.Username)
	return http.None, ctx.SendJSON(nethttp.StatusOK, apiMessage{Message: "login successful", User: &user})
}

func (app *App) APILogout(ctx *http.RequestContext) (http.Result, error) {
	if err := app.endSession(ctx); err != nil {
		return http.None, err
	}

	return http.None, ctx.SendJSON(nethttp.StatusOK, apiMessage{Message: "logout successful"})
}

// endSession deletes the session named by the cookie, if any, and tells the
// browser to drop the cookie.
func (app *App) endSession(ctx *http.RequestContext) error {
	id, err := ctx.Cookie(session.CookieName)
	if err == nil && id != "" {
		if err := app.sessions.Delete(id); err != nil {
			return fmt.Errorf("deleting session: %w", err)
		}
	}

	ctx.Session = nil
	ctx.User = nil

	cookie := &http.Cookie{Name: session.CookieName, Path: "/"}
	cookie.Expire()
	return ctx.SetCookie(cookie)
}

func credentials(ctx *http.RequestContext) (string, string, bool) {
	if body, ok := ctx.JSON.(map[string]any); ok {
		username, _ := body["username"].(string)
		password, _ := body["password"].(string)
		return username, password, username != "" && password != ""
	}

	username, _ := ctx.Form.Field("username")
	password, _ := ctx.Form.Field("password")
	return username, password, username != "" && password != ""
}
