package storefront

import (
	"fmt"
	"maps"
	nethttp "net/http"

	"github.com/freekieb7/storefront/catalog"
	"github.com/freekieb7/storefront/http"
	"github.com/freekieb7/storefront/view"
)

// page adds the layout values shared by every document.
func (app *App) page(ctx *http.RequestContext, title string, data view.Data) view.Data {
	page := view.Data{
		"title":           title,
		"shop":            app.shop.Name,
		"year":            app.now().Year(),
		"isAuthenticated": ctx.Authenticated(),
		"isGuest":         !ctx.Authenticated(),
	}
	if user, ok := currentUser(ctx); ok {
		page["user"] = view.Data{"id": user.ID, "name": user.Name, "username": user.Username}
	}

	maps.Copy(page, data)
	return page
}

func (app *App) render(ctx *http.RequestContext, name, title string, data view.Data) (http.Result, error) {
	html, err := app.views.Render(name, app.page(ctx, title, data))
	if err != nil {
		return http.None, fmt.Errorf("rendering %s: %w", name, err)
	}

	return http.Terminal(html), nil
}

func (app *App) notFound(ctx *http.RequestContext, title, message string) (http.Result, error) {
	html, err := app.views.Render(http.NotFoundView, app.page(ctx, title, view.Data{"message": message}))
	if err != nil {
		return http.None, fmt.Errorf("rendering %s: %w", http.NotFoundView, err)
	}

	return http.None, ctx.SendHTML(nethttp.StatusNotFound, html)
}

func (app *App) Home(ctx *http.RequestContext) (http.Result, error) {
	return app.render(ctx, "home", "Welcome to "+app.shop.Name, view.Data{
		"products": app.productViews(app.catalog.Featured(app.shop.Featured)),
		"date":     app.format.Date(app.now()),
	})
}

// Products lists the catalog, filtered and paged by the query string.
func (app *App) Products(ctx *http.RequestContext) (http.Result, error) {
	query := catalog.ParseQuery(ctx.Query)
	result := app.catalog.Filter(query)

	categories := make([]view.Data, 0)
	for _, category := range app.catalog.Categories() {
		categories = append(categories, view.Data{
			"name":     category,
			"selected": selected(category == query.Category),
		})
	}

	pages := result.Pages()
	data := view.Data{
		"products":   app.productViews(result.Products),
		"categories": categories,
		"filters":    ctx.Query,
		"total":      result.Total,
		"page":       result.Page,
		"pages":      pages,
		"empty":      len(result.Products) == 0,
	}
	if result.Page > 1 {
		data["previousPage"] = result.Page - 1
	}
	if result.Page < pages {
		data["nextPage"] = result.Page + 1
	}

	return app.render(ctx, "products", "Our products", data)
}

func (app *App) Product(ctx *http.RequestContext) (http.Result, error) {
	id, ok := productID(ctx)
	if !ok {
		return app.notFound(ctx, "Product not found", fmt.Sprintf("The product %q does not exist.", ctx.Param("id")))
	}

	product, found := app.catalog.Find(id)
	if !found {
		return app.notFound(ctx, "Product not found", fmt.Sprintf("The product with ID %d does not exist.", id))
	}

	return app.render(ctx, "product", product.Name, view.Data{
		"product":      app.productView(product),
		"comments":     app.commentViews(product.Comments),
		"hasComments":  len(product.Comments) > 0,
		"canUpload":    ctx.Authenticated() && app.uploads != nil,
		"commentCount": len(product.Comments),
	})
}

func (app *App) About(ctx *http.RequestContext) (http.Result, error) {
	return app.render(ctx, "about", "About us", view.Data{
		"company":     app.shop.Name,
		"description": app.shop.Description,
		"founded":     app.shop.Founded,
	})
}

func (app *App) LoginPage(ctx *http.RequestContext) (http.Result, error) {
	return app.render(ctx, "login", "Sign in", nil)
}

// Logout ends the session and sends the browser to the login page.
func (app *App) Logout(ctx *http.RequestContext) (http.Result, error) {
	if err := app.endSession(ctx); err != nil {
		return http.None, err
	}

	return http.None, ctx.Redirect(nethttp.StatusFound, "/login")
}

func selected(ok bool) string {
	if ok {
		return "selected"
	}
	return ""
}
