// Package services – ListingService
//
// This file implements ListingService, which owns the lifecycle of item
// listings: validation on create, partial updates with ownership checks,
// deletion, filtered browsing and the "similar items" ranking.
//
// Validation collects every violated field into a *ValidationError so
// clients can render all problems at once.
package services

import (
	"context"
	"errors"
	"iter"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/campus-market/internal/domain"
	"github.com/tbourn/campus-market/internal/repo"
	"github.com/tbourn/campus-market/internal/search"
)

const (
	maxTitleRunes       = 200
	maxDescriptionRunes = 5000
	similarCandidates   = 200
)

// ListingInput carries the fields of a new listing.
type ListingInput struct {
	Title       string
	Description string
	Type        string
	Category    string
	Department  string
	Semester    *int
	CourseCode  *string
	Condition   string
	Price       *float64
	Images      []string
	Location    string
}

// ListingPatch carries the fields to change on an existing listing. Nil
// fields are left untouched.
type ListingPatch struct {
	Title       *string
	Description *string
	Type        *string
	Category    *string
	Department  *string
	Semester    *int
	CourseCode  *string
	Condition   *string
	Price       *float64
	Images      *[]string
	Location    *string
	IsAvailable *bool
}

// ListingService implements listing use-cases on top of the repo package.
type ListingService struct {
	DB *gorm.DB
}

// NewListingService constructs a ListingService with default settings.
func NewListingService(db *gorm.DB) *ListingService {
	return &ListingService{DB: db}
}

func (s *ListingService) tracer() trace.Tracer { return otel.Tracer("services/ListingService") }

// Create validates in and stores a new available listing owned by sellerID.
// The returned listing carries the seller summary.
func (s *ListingService) Create(ctx context.Context, sellerID string, in ListingInput) (*domain.Listing, error) {
	ctx, span := s.tracer().Start(ctx, "Create", trace.WithAttributes(attribute.String("user.id", sellerID)))
	defer span.End()

	in.Title = normalizeText(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Department = domain.NormalizeDepartment(in.Department)
	in.Location = normalizeText(in.Location)
	in.Images = compactImages(in.Images)

	v := &ValidationError{}
	checkRequiredText(v, "title", in.Title, maxTitleRunes)
	checkRequiredText(v, "description", in.Description, maxDescriptionRunes)
	if !domain.ValidListingType(in.Type) {
		v.Add("type", "type must be one of sale, rent, free")
	}
	if !domain.ValidCategory(in.Category) {
		v.Add("category", "category must be one of textbook, lab-equipment, stationery, other")
	}
	if !domain.ValidCondition(in.Condition) {
		v.Add("condition", "condition must be one of new, like-new, good, fair")
	}
	if in.Department == "" {
		v.Add("department", "department is required")
	}
	if in.Location == "" {
		v.Add("location", "location is required")
	}
	checkSemester(v, in.Semester)
	checkImages(v, in.Images)
	checkPrice(v, in.Type, in.Price)
	if err := v.Err(); err != nil {
		return nil, err
	}

	l := &domain.Listing{
		SellerID:    sellerID,
		Title:       in.Title,
		Description: in.Description,
		Type:        in.Type,
		Category:    in.Category,
		Department:  in.Department,
		Semester:    in.Semester,
		CourseCode:  trimPtr(in.CourseCode),
		Condition:   in.Condition,
		Images:      in.Images,
		Location:    in.Location,
		IsAvailable: true,
	}
	if in.Price != nil {
		l.Price = *in.Price
	}
	if err := repo.CreateListing(ctx, s.DB, l); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("listing.id", l.ID))
	if err := s.attachSellers(ctx, []*domain.Listing{l}); err != nil {
		return nil, err
	}
	return l, nil
}

// Update applies p to listing id. Only the seller or an admin may update.
// Fields absent from p are not revalidated, except that the sale/price rule
// is rechecked whenever p touches either the type or the price.
func (s *ListingService) Update(ctx context.Context, actor Actor, id string, p ListingPatch) (*domain.Listing, error) {
	ctx, span := s.tracer().Start(ctx, "Update", trace.WithAttributes(
		attribute.String("user.id", actor.ID),
		attribute.String("listing.id", id),
	))
	defer span.End()

	l, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.SellerID != actor.ID && !actor.IsAdmin() {
		return nil, ErrNotListingOwner
	}

	v := &ValidationError{}
	fields := map[string]any{}
	if p.Title != nil {
		t := normalizeText(*p.Title)
		checkRequiredText(v, "title", t, maxTitleRunes)
		fields["title"] = t
	}
	if p.Description != nil {
		d := strings.TrimSpace(*p.Description)
		checkRequiredText(v, "description", d, maxDescriptionRunes)
		fields["description"] = d
	}
	if p.Type != nil {
		if !domain.ValidListingType(*p.Type) {
			v.Add("type", "type must be one of sale, rent, free")
		}
		fields["type"] = *p.Type
	}
	if p.Category != nil {
		if !domain.ValidCategory(*p.Category) {
			v.Add("category", "category must be one of textbook, lab-equipment, stationery, other")
		}
		fields["category"] = *p.Category
	}
	if p.Condition != nil {
		if !domain.ValidCondition(*p.Condition) {
			v.Add("condition", "condition must be one of new, like-new, good, fair")
		}
		fields["condition"] = *p.Condition
	}
	if p.Department != nil {
		d := domain.NormalizeDepartment(*p.Department)
		if d == "" {
			v.Add("department", "department is required")
		}
		fields["department"] = d
	}
	if p.Location != nil {
		loc := normalizeText(*p.Location)
		if loc == "" {
			v.Add("location", "location is required")
		}
		fields["location"] = loc
	}
	if p.Semester != nil {
		checkSemester(v, p.Semester)
		fields["semester"] = *p.Semester
	}
	if p.CourseCode != nil {
		fields["course_code"] = trimPtr(p.CourseCode)
	}
	if p.Images != nil {
		imgs := compactImages(*p.Images)
		checkImages(v, imgs)
		fields["images"] = domain.StringList(imgs)
	}
	if p.IsAvailable != nil {
		fields["is_available"] = *p.IsAvailable
	}
	if p.Type != nil || p.Price != nil {
		typ, price := l.Type, &l.Price
		if p.Type != nil {
			typ = *p.Type
		}
		if p.Price != nil {
			price = p.Price
			fields["price"] = *p.Price
		}
		if domain.ValidListingType(typ) {
			checkPrice(v, typ, price)
		}
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	if p.Title != nil || p.Description != nil {
		title, desc := l.Title, l.Description
		if t, ok := fields["title"].(string); ok {
			title = t
		}
		if d, ok := fields["description"].(string); ok {
			desc = d
		}
		fields["search_text"] = domain.ListingSearchText(title, desc)
	}

	if err := repo.UpdateListingFields(ctx, s.DB, id, fields); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	out, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.attachSellers(ctx, []*domain.Listing{out}); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes listing id. Only the seller or an admin may delete.
// Transactions and messages keep their own title snapshot.
func (s *ListingService) Delete(ctx context.Context, actor Actor, id string) error {
	ctx, span := s.tracer().Start(ctx, "Delete", trace.WithAttributes(
		attribute.String("user.id", actor.ID),
		attribute.String("listing.id", id),
	))
	defer span.End()

	l, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if l.SellerID != actor.ID && !actor.IsAdmin() {
		return ErrNotListingOwner
	}
	if err := repo.DeleteListing(ctx, s.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrListingNotFound
		}
		return err
	}
	return nil
}

// Get returns listing id with its seller summary and counts the view.
// Hidden listings are only visible to their seller and admins.
func (s *ListingService) Get(ctx context.Context, viewer Actor, id string) (*domain.Listing, error) {
	l, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.IsHidden && l.SellerID != viewer.ID && !viewer.IsAdmin() {
		return nil, ErrListingNotFound
	}
	if err := repo.IncrementListingViews(ctx, s.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	l.Views++
	if err := s.attachSellers(ctx, []*domain.Listing{l}); err != nil {
		return nil, err
	}
	return l, nil
}

// ListPage returns one page of listings matching f, newest first, with
// seller summaries attached.
func (s *ListingService) ListPage(ctx context.Context, f domain.ListingFilter, page, pageSize int) (Page[domain.Listing], error) {
	page, pageSize, offset := normalizePage(page, pageSize)
	f = s.NormalizeFilter(f)
	out := Page[domain.Listing]{Items: []domain.Listing{}, Page: page, PageSize: pageSize}

	total, err := repo.CountListings(ctx, s.DB, f)
	if err != nil {
		return out, err
	}
	out.Total = total
	if total == 0 {
		return out, nil
	}
	items, err := repo.ListListingsPage(ctx, s.DB, f, offset, pageSize)
	if err != nil {
		return out, err
	}
	ptrs := make([]*domain.Listing, len(items))
	for i := range items {
		ptrs[i] = &items[i]
	}
	if err := s.attachSellers(ctx, ptrs); err != nil {
		return out, err
	}
	out.Items = items
	return out, nil
}

// Iterate lazily yields every listing matching f, newest first. Each call
// runs a fresh query, so the sequence can be ranged over repeatedly.
func (s *ListingService) Iterate(ctx context.Context, f domain.ListingFilter) iter.Seq2[domain.Listing, error] {
	return repo.IterateListings(ctx, s.DB, s.NormalizeFilter(f), 100)
}

// Fingerprint summarizes the listings matching f for conditional-response
// validators.
func (s *ListingService) Fingerprint(ctx context.Context, f domain.ListingFilter) (domain.ListingSetStats, error) {
	return repo.ListingsStats(ctx, s.DB, s.NormalizeFilter(f))
}

// Similar ranks other available listings of the same category by token
// overlap with listing id and returns at most k of them.
func (s *ListingService) Similar(ctx context.Context, id string, k int) ([]domain.Listing, error) {
	if k <= 0 {
		k = 4
	}
	l, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	avail := true
	f := domain.ListingFilter{Category: l.Category, IsAvailable: &avail}
	byID := make(map[string]domain.Listing)
	docs := make([]search.Doc, 0, 32)
	for cand, err := range s.Iterate(ctx, f) {
		if err != nil {
			return nil, err
		}
		if cand.ID == l.ID {
			continue
		}
		byID[cand.ID] = cand
		docs = append(docs, search.Doc{ID: cand.ID, Text: cand.Title + " " + cand.Description})
		if len(docs) >= similarCandidates {
			break
		}
	}

	idx := search.NewIndex(docs, search.WithStopwords(search.DefaultStopwords))
	ranked := idx.TopK(l.Title+" "+l.Description, k)
	out := make([]domain.Listing, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, byID[r.ID])
	}
	ptrs := make([]*domain.Listing, len(out))
	for i := range out {
		ptrs[i] = &out[i]
	}
	if err := s.attachSellers(ctx, ptrs); err != nil {
		return nil, err
	}
	return out, nil
}

// NormalizeFilter folds the free-text query and canonicalizes the
// department code the same way stored listings are.
func (s *ListingService) NormalizeFilter(f domain.ListingFilter) domain.ListingFilter {
	f.Query = domain.FoldText(strings.TrimSpace(f.Query))
	if f.Department != "" {
		f.Department = domain.NormalizeDepartment(f.Department)
	}
	return f
}

func (s *ListingService) load(ctx context.Context, id string) (*domain.Listing, error) {
	l, err := repo.GetListing(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	return l, nil
}

// attachSellers fills in the seller summary of every listing in one query.
// Listings whose seller no longer exists are left without one.
func (s *ListingService) attachSellers(ctx context.Context, ls []*domain.Listing) error {
	if len(ls) == 0 {
		return nil
	}
	ids := make([]string, 0, len(ls))
	for _, l := range ls {
		ids = append(ids, l.SellerID)
	}
	sums, err := repo.GetUserSummaries(ctx, s.DB, ids)
	if err != nil {
		return err
	}
	for _, l := range ls {
		if sum, ok := sums[l.SellerID]; ok {
			l.Seller = &sum
		}
	}
	return nil
}

//
// Validation helpers
//

func checkRequiredText(v *ValidationError, field, s string, max int) {
	switch {
	case s == "":
		v.Add(field, field+" is required")
	case utf8.RuneCountInString(s) > max:
		v.Add(field, field+" is too long")
	}
}

func checkSemester(v *ValidationError, sem *int) {
	if sem != nil && (*sem < 1 || *sem > 12) {
		v.Add("semester", "semester must be between 1 and 12")
	}
}

func checkImages(v *ValidationError, imgs []string) {
	if len(imgs) < domain.MinListingImages || len(imgs) > domain.MaxListingImages {
		v.Add("images", "between 1 and 5 images are required")
	}
}

// checkPrice enforces the disposition/price rule: sales need a positive
// price, donations carry none and rentals may quote a fee.
func checkPrice(v *ValidationError, typ string, price *float64) {
	switch typ {
	case domain.TypeSale:
		if price == nil || *price <= 0 {
			v.Add("price", "price must be greater than 0 for sale items")
		}
	case domain.TypeFree:
		if price != nil && *price != 0 {
			v.Add("price", "free items cannot have a price")
		}
	case domain.TypeRent:
		if price != nil && *price < 0 {
			v.Add("price", "price cannot be negative")
		}
	}
}

func compactImages(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	t := strings.TrimSpace(*p)
	if t == "" {
		return nil
	}
	return &t
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

// normalizeText trims and collapses internal whitespace.
func normalizeText(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}
