// Package feedclient implements the client side of the random listing
// feed: it pages the fetch-random-listings endpoint, merges pages into a
// duplicate-free list, and embeds each listing's seller profile.
//
// The server gives no disjointness guarantee across pages, so all
// deduplication happens here.
package feedclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultPageSize = 10

// Session carries the caller's identity explicitly instead of reading it
// from ambient state.
type Session struct {
	UserID    string
	AuthToken string
}

type Seller struct {
	ID                string  `json:"id"`
	Username          string  `json:"username"`
	Name              string  `json:"name"`
	PFP               string  `json:"pfp"`
	Banner            string  `json:"banner"`
	Description       string  `json:"description"`
	Rating            float64 `json:"rating"`
	NumberOfFollowers int     `json:"numberOfFollowers"`
	ItemsSold         int     `json:"itemsSold"`
}

type Listing struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Images      []string  `json:"images"`
	Likes       int       `json:"likes"`
	ListingType string    `json:"listingType"`
	CreatedAt   time.Time `json:"createdAt"`
	Bids        int       `json:"bids"`
	Duration    int       `json:"duration"`
	OwnerUID    string    `json:"ownerUID"`
	Offerable   bool      `json:"offerable"`

	// Seller is populated by the assembler, not the listings endpoint.
	Seller *Seller `json:"seller,omitempty"`
}

// Options configures a Feed. SellerID, Category and ExcludeID narrow the
// sample the way the related-listings rails do; leave them empty for the
// home feed.
type Options struct {
	BaseURL   string
	PageSize  int
	SellerID  string
	Category  string
	ExcludeID string
	Active    bool
	Session   Session

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Feed accumulates listing pages for infinite scroll. At most one LoadMore
// is in flight at a time; a call made while one is running is a no-op.
type Feed struct {
	opts   Options
	client *http.Client
	logger *zap.Logger

	mu           sync.Mutex
	loading      bool
	networkError bool
	listings     []Listing
	seen         map[string]struct{}
}

func New(opts Options) *Feed {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{
		opts:   opts,
		client: client,
		logger: logger,
		seen:   make(map[string]struct{}),
	}
}

type fetchRandomListingsResponse struct {
	Message  string    `json:"message"`
	Listings []Listing `json:"listings"`
}

type fetchSellerResponse struct {
	Seller Seller `json:"seller"`
}

// LoadMore fetches one page, augments it with seller profiles and merges it
// into the accumulated feed. Returns nil immediately when a load is already
// in flight. On a transport failure the network-error flag is set and the
// accumulated feed is left untouched.
func (f *Feed) LoadMore(ctx context.Context) error {
	f.mu.Lock()
	if f.loading {
		f.mu.Unlock()
		return nil
	}
	f.loading = true
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.loading = false
		f.mu.Unlock()
	}()

	page, err := f.fetchPage(ctx)
	if err != nil {
		f.mu.Lock()
		f.networkError = true
		f.mu.Unlock()
		return err
	}

	f.attachSellers(ctx, page)

	f.mu.Lock()
	for _, l := range page {
		if _, dup := f.seen[l.ID]; dup {
			continue
		}
		f.seen[l.ID] = struct{}{}
		f.listings = append(f.listings, l)
	}
	f.networkError = false
	f.mu.Unlock()

	f.logger.Debug("Feed page merged",
		zap.Int("page_size", len(page)),
		zap.Int("total", len(f.Listings())),
	)
	return nil
}

// Retry clears the network-error flag and attempts another load with the
// same parameters. This is the manual retry behind the UI's retry button;
// there is no automatic backoff.
func (f *Feed) Retry(ctx context.Context) error {
	f.mu.Lock()
	f.networkError = false
	f.mu.Unlock()
	return f.LoadMore(ctx)
}

// Listings returns a snapshot of the accumulated feed in arrival order.
func (f *Feed) Listings() []Listing {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Listing, len(f.listings))
	copy(out, f.listings)
	return out
}

func (f *Feed) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

func (f *Feed) NetworkError() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.networkError
}

func (f *Feed) fetchPage(ctx context.Context) ([]Listing, error) {
	// Absent filters are omitted from the query entirely; this client never
	// sends the legacy "undefined" placeholder.
	query := url.Values{}
	query.Set("numListings", strconv.Itoa(f.opts.PageSize))
	if f.opts.SellerID != "" {
		query.Set("sellerId", f.opts.SellerID)
	}
	if f.opts.Category != "" {
		query.Set("category", f.opts.Category)
	}
	if f.opts.ExcludeID != "" {
		query.Set("listingId", f.opts.ExcludeID)
	}
	if f.opts.Active {
		query.Set("active", "true")
	}

	endpoint := f.opts.BaseURL + "/listings/fetch-random-listings?" + query.Encode()
	var resp fetchRandomListingsResponse
	if err := f.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("feedclient: failed to fetch listings page: %w", err)
	}
	return resp.Listings, nil
}

// attachSellers fans out one profile lookup per distinct owner and embeds
// the result into every listing of that owner. Lookups run concurrently;
// a failed lookup leaves that listing's seller nil rather than failing the
// page.
func (f *Feed) attachSellers(ctx context.Context, page []Listing) {
	owners := make(map[string]*Seller)
	for _, l := range page {
		if l.OwnerUID != "" {
			owners[l.OwnerUID] = nil
		}
	}
	if len(owners) == 0 {
		return
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for uid := range owners {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			seller, err := f.fetchSeller(ctx, uid)
			if err != nil {
				f.logger.Warn("Failed to fetch seller for listing", zap.String("seller_id", uid), zap.Error(err))
				return
			}
			mu.Lock()
			owners[uid] = seller
			mu.Unlock()
		}(uid)
	}
	wg.Wait()

	for i := range page {
		if s := owners[page[i].OwnerUID]; s != nil {
			page[i].Seller = s
		}
	}
}

func (f *Feed) fetchSeller(ctx context.Context, id string) (*Seller, error) {
	endpoint := f.opts.BaseURL + "/sellers/fetch-seller?id=" + url.QueryEscape(id)
	var resp fetchSellerResponse
	if err := f.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return &resp.Seller, nil
}

func (f *Feed) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if f.opts.Session.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+f.opts.Session.AuthToken)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, endpoint)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
