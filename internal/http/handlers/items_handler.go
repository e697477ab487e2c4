// Listing HTTP handlers.
//
// This file exposes REST endpoints for items:
//   - GET    /items                  (list, filtered, paginated, ETag support)
//   - GET    /items/{id}             (detail, counts a view)
//   - GET    /items/{id}/similar     (related listings)
//   - POST   /items                  (create)
//   - PUT    /items/{id}             (partial update)
//   - DELETE /items/{id}             (delete)
//   - GET    /items/user/my-items    (caller's listings, hidden included)
package handlers

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/campus-market/internal/domain"
	"github.com/tbourn/campus-market/internal/services"
	"github.com/tbourn/campus-market/internal/utils"
)

//
// DTOs
//

// CreateItemRequest is the JSON payload for posting a listing.
type CreateItemRequest struct {
	Title       string   `json:"title"                  example:"Introduction to Algorithms, 3rd ed."`
	Description string   `json:"description"            example:"Lightly highlighted, no torn pages."`
	Type        string   `json:"type"                   example:"sale" enums:"sale,rent,free"`
	Category    string   `json:"category"               example:"textbook" enums:"textbook,lab-equipment,stationery,other"`
	Department  string   `json:"department"             example:"CSE"`
	Semester    *int     `json:"semester,omitempty"     example:"3"`
	CourseCode  *string  `json:"course_code,omitempty"  example:"CS201"`
	Condition   string   `json:"condition"              example:"good" enums:"new,like-new,good,fair"`
	Price       *float64 `json:"price,omitempty"        example:"450"`
	Images      []string `json:"images"`
	Location    string   `json:"location"               example:"Library entrance"`
}

// UpdateItemRequest is the JSON payload for editing a listing. Omitted
// fields are left unchanged.
type UpdateItemRequest struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Type        *string   `json:"type,omitempty" enums:"sale,rent,free"`
	Category    *string   `json:"category,omitempty"`
	Department  *string   `json:"department,omitempty"`
	Semester    *int      `json:"semester,omitempty"`
	CourseCode  *string   `json:"course_code,omitempty"`
	Condition   *string   `json:"condition,omitempty"`
	Price       *float64  `json:"price,omitempty"`
	Images      *[]string `json:"images,omitempty"`
	Location    *string   `json:"location,omitempty"`
	IsAvailable *bool     `json:"is_available,omitempty"`
}

// ListItemsResponse wraps a page of listings.
type ListItemsResponse = PageResponse[domain.Listing]

//
// Helpers
//

// listingFilter builds a filter from the item query parameters. Malformed
// numeric or boolean values are reported as field errors.
func listingFilter(c *gin.Context) (domain.ListingFilter, error) {
	v := &services.ValidationError{}
	f := domain.ListingFilter{
		Query:      c.Query("q"),
		Department: c.Query("department"),
		Type:       c.Query("type"),
		Category:   c.Query("category"),
		Condition:  c.Query("condition"),
	}
	sem, err := utils.OptionalInt(c.Query("semester"))
	if err != nil {
		v.Add("semester", "semester must be an integer")
	}
	f.Semester = sem
	avail, err := utils.OptionalBool(c.Query("available"))
	if err != nil {
		v.Add("available", "available must be true or false")
	}
	f.IsAvailable = avail
	return f, v.Err()
}

// listETag derives a weak validator from the normalized query, the page
// window and the result-set fingerprint.
func listETag(q url.Values, page, pageSize int, count, views, ts int64) string {
	q.Del("page")
	q.Del("page_size")
	sig := uuid.NewSHA1(uuid.NameSpaceURL, []byte(q.Encode()))
	return fmt.Sprintf(`W/"items:%s:%d:%d:%d:%d:%d"`, sig, page, pageSize, count, views, ts)
}

//
// Handlers
//

// ListItems godoc
// @ID          listItems
// @Summary     List items (paginated)
// @Description Returns visible listings newest first. All filters combine with AND. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Items
// @Produce     json
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       q              query   string  false  "Case-insensitive text over title and description"
// @Param       department     query   string  false  "Department code"  example(CSE)
// @Param       semester       query   int     false  "Semester"  minimum(1) maximum(12)
// @Param       type           query   string  false  "Disposition"  Enums(sale, rent, free)
// @Param       category       query   string  false  "Category"  Enums(textbook, lab-equipment, stationery, other)
// @Param       condition      query   string  false  "Condition"  Enums(new, like-new, good, fair)
// @Param       available      query   bool    false  "Availability"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListItemsResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /items [get]
func (h *Handlers) ListItems(c *gin.Context) {
	f, err := listingFilter(c)
	if err != nil {
		writeError(c, err)
		return
	}
	h.listItems(c, f)
}

// MyItems godoc
// @ID          myItems
// @Summary     Caller's listings
// @Description Returns every listing the caller posted, including hidden and sold ones.
// @Tags        Items
// @Produce     json
// @Security    BearerAuth
// @Param       page       query  int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListItemsResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /items/user/my-items [get]
func (h *Handlers) MyItems(c *gin.Context) {
	h.listItems(c, domain.ListingFilter{SellerID: actor(c).ID, IncludeHidden: true})
}

func (h *Handlers) listItems(c *gin.Context, f domain.ListingFilter) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if st, err := h.listings.Fingerprint(ctx, f); err == nil {
		var ts int64
		if st.MaxUpdatedAt != nil {
			ts = st.MaxUpdatedAt.UnixNano()
		}
		q := c.Request.URL.Query()
		if f.SellerID != "" {
			q.Set("seller", f.SellerID)
		}
		etag := listETag(q, page, pageSize, st.Count, st.Views, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	res, err := h.listings.ListPage(ctx, f, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, pageResponse(res))
}

// GetItem godoc
// @ID          getItem
// @Summary     Item detail
// @Description Returns one listing with its seller summary and counts the view. Hidden listings are visible to their seller and admins only.
// @Tags        Items
// @Produce     json
// @Param       id   path      string  true  "Item ID (UUID)"  format(uuid)
// @Success     200  {object}  domain.Listing
// @Failure     404  {object}  handlers.ErrorResponse  "Item not found"
// @Router      /items/{id} [get]
func (h *Handlers) GetItem(c *gin.Context) {
	l, err := h.listings.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, l)
}

// SimilarItems godoc
// @ID          similarItems
// @Summary     Similar items
// @Description Ranks other available listings of the same category by text overlap.
// @Tags        Items
// @Produce     json
// @Param       id   path      string  true   "Item ID (UUID)"  format(uuid)
// @Param       k    query     int     false  "Max results"  minimum(1) maximum(20) default(4)
// @Success     200  {array}   domain.Listing
// @Failure     404  {object}  handlers.ErrorResponse  "Item not found"
// @Router      /items/{id}/similar [get]
func (h *Handlers) SimilarItems(c *gin.Context) {
	k := min(max(utils.AtoiDefault(c.Query("k"), 4), 1), 20)
	out, err := h.listings.Similar(c.Request.Context(), c.Param("id"), k)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}

// CreateItem godoc
// @ID          createItem
// @Summary     Post an item
// @Description Creates a listing owned by the caller. Every violated field is reported.
// @Tags        Items
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.CreateItemRequest  true  "Listing"
// @Success     201   {object}  domain.Listing
// @Failure     400   {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     401   {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /items [post]
func (h *Handlers) CreateItem(c *gin.Context) {
	var req CreateItemRequest
	if !bindJSON(c, &req) {
		return
	}
	l, err := h.listings.Create(c.Request.Context(), actor(c).ID, services.ListingInput{
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		Category:    req.Category,
		Department:  req.Department,
		Semester:    req.Semester,
		CourseCode:  req.CourseCode,
		Condition:   req.Condition,
		Price:       req.Price,
		Images:      req.Images,
		Location:    req.Location,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Location", c.FullPath()+"/"+l.ID)
	ok(c, http.StatusCreated, l)
}

// UpdateItem godoc
// @ID          updateItem
// @Summary     Edit an item
// @Description Applies the fields present in the body. Only the seller (or an admin) may edit.
// @Tags        Items
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                      true  "Item ID (UUID)"  format(uuid)
// @Param       body  body      handlers.UpdateItemRequest  true  "Fields to change"
// @Success     200   {object}  domain.Listing
// @Failure     400   {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     403   {object}  handlers.ErrorResponse  "Not the seller"
// @Failure     404   {object}  handlers.ErrorResponse  "Item not found"
// @Router      /items/{id} [put]
func (h *Handlers) UpdateItem(c *gin.Context) {
	var req UpdateItemRequest
	if !bindJSON(c, &req) {
		return
	}
	l, err := h.listings.Update(c.Request.Context(), actor(c), c.Param("id"), services.ListingPatch{
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		Category:    req.Category,
		Department:  req.Department,
		Semester:    req.Semester,
		CourseCode:  req.CourseCode,
		Condition:   req.Condition,
		Price:       req.Price,
		Images:      req.Images,
		Location:    req.Location,
		IsAvailable: req.IsAvailable,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, l)
}

// DeleteItem godoc
// @ID          deleteItem
// @Summary     Delete an item
// @Description Removes a listing. Transactions and messages keep their title snapshot.
// @Tags        Items
// @Security    BearerAuth
// @Param       id   path    string  true  "Item ID (UUID)"  format(uuid)
// @Success     204  {string}  string  "No Content"
// @Failure     403  {object}  handlers.ErrorResponse  "Not the seller"
// @Failure     404  {object}  handlers.ErrorResponse  "Item not found"
// @Router      /items/{id} [delete]
func (h *Handlers) DeleteItem(c *gin.Context) {
	if err := h.listings.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	noContent(c)
}
