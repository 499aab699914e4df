package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/media"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// PackageStore is the catalog persistence used by CatalogHandler.
type PackageStore interface {
	Create(ctx context.Context, p *model.Package) error
	GetByID(ctx context.Context, id uint64) (model.Package, error)
	List(ctx context.Context, f repository.PackageFilter) ([]model.Package, error)
	Update(ctx context.Context, p *model.Package) error
	Delete(ctx context.Context, id uint64) error
}

// GalleryStore is the gallery persistence used by CatalogHandler.
type GalleryStore interface {
	Create(ctx context.Context, g *model.GalleryItem) error
	List(ctx context.Context, kind, category string) ([]model.GalleryItem, error)
	Delete(ctx context.Context, id uint64) error
}

// CatalogHandler serves packages, the gallery and admin uploads.
// Invalidate, when set, is called after every admin write so cached
// public listings are dropped.
type CatalogHandler struct {
	Packages   PackageStore
	Gallery    GalleryStore
	Media      *media.Store
	Invalidate func(ctx context.Context) error
}

func (h *CatalogHandler) invalidate(ctx context.Context) {
	if h.Invalidate == nil {
		return
	}
	if err := h.Invalidate(ctx); err != nil {
		slog.Warn("catalog: cache invalidation failed", "err", err)
	}
}

// ListPackages handles GET /v1/packages?category=&q=.
func (h *CatalogHandler) ListPackages(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Packages.List(ctx, repository.PackageFilter{
		Category: strings.TrimSpace(c.QueryParam("category")),
		Query:    strings.TrimSpace(c.QueryParam("q")),
	})
	if err != nil {
		return fail(c, http.StatusServiceUnavailable, "try_again", "load packages failed")
	}
	if out == nil {
		out = []model.Package{}
	}
	return c.JSON(http.StatusOK, out)
}

// GetPackage handles GET /v1/packages/:id.
func (h *CatalogHandler) GetPackage(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid package id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Packages.GetByID(ctx, id)
	if err != nil {
		return packageErr(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

type packageReq struct {
	Name         string   `json:"name"`
	Category     string   `json:"category"`
	Description  string   `json:"description"`
	PriceCents   uint32   `json:"price_cents"`
	Features     []string `json:"features"`
	Duration     uint32   `json:"duration"`
	DurationUnit string   `json:"duration_unit"`
	Images       []string `json:"images"`
}

func (r packageReq) toModel() (model.Package, string) {
	p := model.Package{
		Name:         strings.TrimSpace(r.Name),
		Category:     strings.ToLower(strings.TrimSpace(r.Category)),
		Description:  strings.TrimSpace(r.Description),
		PriceCents:   r.PriceCents,
		Features:     compact(r.Features),
		Duration:     r.Duration,
		DurationUnit: strings.ToLower(strings.TrimSpace(r.DurationUnit)),
		Images:       compact(r.Images),
	}
	switch {
	case p.Name == "":
		return p, "name is required"
	case p.Category == "":
		return p, "category is required"
	case p.PriceCents == 0:
		return p, "price_cents must be positive"
	case p.Duration == 0:
		return p, "duration must be positive"
	case !model.DurationUnits[p.DurationUnit]:
		return p, "duration_unit must be one of hours, days, weeks, months"
	}
	return p, ""
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// CreatePackage handles POST /v1/admin/packages.
func (h *CatalogHandler) CreatePackage(c echo.Context) error {
	var req packageReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	p, msg := req.toModel()
	if msg != "" {
		return badRequest(c, msg)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Packages.Create(ctx, &p); err != nil {
		return packageErr(c, err)
	}
	h.invalidate(ctx)
	return c.JSON(http.StatusCreated, p)
}

// UpdatePackage handles PUT /v1/admin/packages/:id.
func (h *CatalogHandler) UpdatePackage(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid package id")
	}
	var req packageReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	p, msg := req.toModel()
	if msg != "" {
		return badRequest(c, msg)
	}
	p.ID = id
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Packages.Update(ctx, &p); err != nil {
		return packageErr(c, err)
	}
	h.invalidate(ctx)
	fresh, err := h.Packages.GetByID(ctx, id)
	if err != nil {
		return packageErr(c, err)
	}
	return c.JSON(http.StatusOK, fresh)
}

// DeletePackage handles DELETE /v1/admin/packages/:id.
func (h *CatalogHandler) DeletePackage(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid package id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Packages.Delete(ctx, id); err != nil {
		return packageErr(c, err)
	}
	h.invalidate(ctx)
	return c.NoContent(http.StatusNoContent)
}

func packageErr(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrPackageNotFound):
		return fail(c, http.StatusNotFound, "not_found", "package not found")
	case errors.Is(err, repository.ErrConflict):
		return fail(c, http.StatusConflict, "package_in_use", "package has bookings and cannot be deleted")
	}
	return fail(c, http.StatusServiceUnavailable, "try_again", "package store unavailable")
}

// ListGallery handles GET /v1/gallery?type=&category=.
func (h *CatalogHandler) ListGallery(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Gallery.List(ctx, strings.TrimSpace(c.QueryParam("type")), strings.TrimSpace(c.QueryParam("category")))
	if err != nil {
		return fail(c, http.StatusServiceUnavailable, "try_again", "load gallery failed")
	}
	if out == nil {
		out = []model.GalleryItem{}
	}
	return c.JSON(http.StatusOK, out)
}

type galleryReq struct {
	Type      string `json:"type"`
	Src       string `json:"src"`
	Thumbnail string `json:"thumbnail"`
	Title     string `json:"title"`
	Alt       string `json:"alt"`
	Category  string `json:"category"`
}

// CreateGalleryItem handles POST /v1/admin/gallery.
func (h *CatalogHandler) CreateGalleryItem(c echo.Context) error {
	var req galleryReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	g := model.GalleryItem{
		Type:      strings.ToLower(strings.TrimSpace(req.Type)),
		Src:       strings.TrimSpace(req.Src),
		Thumbnail: strings.TrimSpace(req.Thumbnail),
		Title:     strings.TrimSpace(req.Title),
		Alt:       strings.TrimSpace(req.Alt),
		Category:  strings.ToLower(strings.TrimSpace(req.Category)),
	}
	if g.Type == "" {
		g.Type = "photo"
	}
	if g.Type != "photo" && g.Type != "reel" {
		return badRequest(c, "type must be photo or reel")
	}
	if g.Src == "" {
		return badRequest(c, "src is required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Gallery.Create(ctx, &g); err != nil {
		return fail(c, http.StatusServiceUnavailable, "try_again", "save gallery item failed")
	}
	h.invalidate(ctx)
	return c.JSON(http.StatusCreated, g)
}

// DeleteGalleryItem handles DELETE /v1/admin/gallery/:id.
func (h *CatalogHandler) DeleteGalleryItem(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid gallery id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Gallery.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrGalleryItemNotFound) {
			return fail(c, http.StatusNotFound, "not_found", "gallery item not found")
		}
		return fail(c, http.StatusServiceUnavailable, "try_again", "delete gallery item failed")
	}
	h.invalidate(ctx)
	return c.NoContent(http.StatusNoContent)
}

// Upload handles POST /v1/admin/upload with a multipart "file" field.
func (h *CatalogHandler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}
	if fh.Size > media.MaxUploadBytes {
		return fail(c, http.StatusRequestEntityTooLarge, "too_large", "file too large")
	}
	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "unreadable file")
	}
	defer f.Close()
	stored, err := h.Media.Save(fh.Filename, f)
	switch {
	case errors.Is(err, media.ErrUnsupported):
		return badRequest(c, err.Error())
	case errors.Is(err, media.ErrTooLarge):
		return fail(c, http.StatusRequestEntityTooLarge, "too_large", "file too large")
	case err != nil:
		slog.Error("upload: save failed", "file", fh.Filename, "err", err)
		return fail(c, http.StatusInternalServerError, "internal", "save upload failed")
	}
	return c.JSON(http.StatusCreated, stored)
}
