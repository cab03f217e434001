package storefront

import (
	"errors"
	"fmt"
	nethttp "net/http"
	"strconv"
	"strings"

	"github.com/freekieb7/storefront/catalog"
	"github.com/freekieb7/storefront/http"
	"github.com/freekieb7/storefront/upload"
	"github.com/freekieb7/storefront/validation"
)

var commentRules = map[string][]string{
	"rating":  {"required", "integer", "between:1,5"},
	"name":    {"required", "max:100"},
	"comment": {"required", "max:2000"},
}

// formProduct resolves the product of a form post and requires a signed in
// user. When it returns false the response has been sent.
func (app *App) formProduct(ctx *http.RequestContext, action string) (catalog.Product, catalog.User, bool, error) {
	id, ok := productID(ctx)
	product, found := app.catalog.Find(id)
	if !ok || !found {
		return catalog.Product{}, catalog.User{}, false, ctx.SendText(nethttp.StatusNotFound, "Product not found")
	}

	user, ok := currentUser(ctx)
	if !ok {
		return catalog.Product{}, catalog.User{}, false, ctx.SendText(nethttp.StatusUnauthorized, "Unauthorized. Sign in to "+action+".")
	}

	return product, user, true, nil
}

// UploadImage stores a new product image and points the product at it.
func (app *App) UploadImage(ctx *http.RequestContext) (http.Result, error) {
	product, user, ok, err := app.formProduct(ctx, "upload images")
	if !ok {
		return http.None, err
	}

	if app.uploads == nil {
		return http.None, http.NewError(nethttp.StatusServiceUnavailable, "uploads are disabled")
	}

	file, found := ctx.Form.File(ImageField)
	if !found {
		return http.None, ctx.SendText(nethttp.StatusBadRequest, "No file was uploaded")
	}

	if err := upload.Check(file.ContentType, file.Data, app.maxUploadSize); err != nil {
		status := nethttp.StatusBadRequest
		if errors.Is(err, upload.ErrTooLarge) {
			status = nethttp.StatusRequestEntityTooLarge
		}
		return http.None, ctx.SendText(status, err.Error())
	}

	image, err := app.uploads.Put(ctx.Context(), file.Filename, file.ContentType, file.Data)
	if err != nil {
		return http.None, fmt.Errorf("storing image for product %d: %w", product.ID, err)
	}

	if err := app.catalog.SetImage(product.ID, image); err != nil {
		return http.None, fmt.Errorf("updating product %d: %w", product.ID, err)
	}

	app.logger.InfoContext(ctx.Context(), "product image uploaded",
		"product", product.ID,
		"image", image,
		"username", user.Username,
	)
	app.invalidate(ctx, "image upload")

	return http.None, ctx.Redirect(nethttp.StatusFound, "/products/"+strconv.Itoa(product.ID))
}

// AddComment validates and appends a review to the product.
func (app *App) AddComment(ctx *http.RequestContext) (http.Result, error) {
	product, user, ok, err := app.formProduct(ctx, "comment")
	if !ok {
		return http.None, err
	}

	fields := map[string]string{}
	if ctx.Form != nil && ctx.Form.Fields != nil {
		fields = ctx.Form.Fields
	}

	violations := validation.ValidateMap(fields, commentRules)
	if !violations.IsEmpty() {
		return http.None, ctx.SendText(nethttp.StatusBadRequest,
			"Incomplete or invalid data:\n"+strings.Join(violations.Messages(), "\n"))
	}

	rating, _ := strconv.Atoi(fields["rating"])
	comment := catalog.Comment{
		Author:  user.Username,
		Name:    strings.TrimSpace(fields["name"]),
		Rating:  rating,
		Comment: strings.TrimSpace(fields["comment"]),
		Date:    app.now().Format(commentDate),
	}

	if err := app.catalog.AddComment(product.ID, comment); err != nil {
		return http.None, fmt.Errorf("saving comment on product %d: %w", product.ID, err)
	}

	app.invalidate(ctx, "comment added")

	return http.None, ctx.Redirect(nethttp.StatusFound, "/products/"+strconv.Itoa(product.ID))
}
