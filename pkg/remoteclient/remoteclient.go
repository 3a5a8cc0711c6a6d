// Package remoteclient is the stateless HTTP facade over the manga origin:
// register/login/profile/search/get_comic/get_group_chapters/get_chapter/
// get_image/get_favorite (spec §4.1). It applies default headers, retries
// transient transport failures with bounded backoff+jitter, decodes the
// uniform `{code, message, results}` envelope, and tags HTTP 210 as a
// RiskControlError and HTTP 401-on-profile as an AuthError.
package remoteclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mangavault/core/pkg/apperr"
	"github.com/mangavault/core/pkg/config"
)

const (
	userAgent        = "COPY/2.3.0"
	apiTimeout       = 3 * time.Second
	apiMaxRetryTotal = 5 * time.Second
	imgMaxRetries    = 3
)

// ImageFormat is an image's wire encoding, detected from a response's
// content-type or requested as a transcode target.
type ImageFormat string

const (
	ImageWebp ImageFormat = "webp"
	ImageJpeg ImageFormat = "jpeg"
)

// Transcoder converts raw image bytes between encodings. GetImage calls it
// only when the fetched format differs from the caller's target format.
type Transcoder interface {
	Transcode(data []byte, from, to ImageFormat) ([]byte, error)
}

// Account is the subset of an account-pool entry the client needs to issue
// a chapter request and to report it as risk-controlled.
type Account interface {
	Token() string
}

// AccountSource supplies the disposable-account token get_chapter must use,
// implementing spec §4.2's access protocol (try available, else
// double-checked-locked register) behind a single call.
type AccountSource interface {
	Acquire(ctx context.Context) (Account, error)
	MarkLimited(ctx context.Context, acct Account) error
}

// Client is the remote API facade. The zero value is not usable; build one
// with New.
type Client struct {
	cfg        *config.Store
	accounts   AccountSource
	transcoder Transcoder
	api        *http.Client
	img        *http.Client

	// baseURL overrides "https://<api domain>" when set, letting tests
	// point the client at an httptest server instead of a real origin.
	baseURL string
}

// New builds a Client against the given config store, account source, and
// image transcoder.
func New(cfg *config.Store, accounts AccountSource, transcoder Transcoder) *Client {
	return &Client{
		cfg:        cfg,
		accounts:   accounts,
		transcoder: transcoder,
		api: &http.Client{
			Timeout:   apiTimeout,
			Transport: &retryTransport{base: http.DefaultTransport, maxTotal: apiMaxRetryTotal},
		},
		img: &http.Client{
			Transport: &retryTransport{base: http.DefaultTransport, maxAttempts: imgMaxRetries},
		},
	}
}

func dt() string {
	return time.Now().Format("2006.01.02")
}

func (c *Client) apiDomain() string {
	return c.cfg.Get().ApiDomain()
}

func (c *Client) setDefaultHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("source", "copyApp")
	req.Header.Set("webp", "1")
	req.Header.Set("platform", "3")
	req.Header.Set("dt", dt())
}

func (c *Client) newAPIRequest(ctx context.Context, method, path string, query url.Values, form url.Values) (*http.Request, error) {
	base := c.baseURL
	if base == "" {
		base = "https://" + c.apiDomain()
	}
	target := base + path
	var body io.Reader
	if form != nil {
		body = bytes.NewBufferString(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}
	c.setDefaultHeaders(req)
	return req, nil
}

// requestEnvelope performs req, maps 210 to a RiskControlError for op, and
// decodes the body as an envelope, returning its raw Results on success.
func (c *Client) requestEnvelope(req *http.Request, op apperr.RiskControlOp) (json.RawMessage, error) {
	resp, err := c.api.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send %s request: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response body: %w", op, err)
	}

	switch resp.StatusCode {
	case 210:
		return nil, &apperr.RiskControlError{Op: op, Body: string(body)}
	case http.StatusUnauthorized:
		if op == apperr.OpProfile {
			return nil, &apperr.AuthError{Body: string(body)}
		}
		return nil, fmt.Errorf("%s: unauthorized: %s", op, body)
	case http.StatusOK:
	default:
		return nil, fmt.Errorf("%s: unexpected status %d: %s", op, resp.StatusCode, body)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%s: decode envelope: %w", op, err)
	}
	if env.Code != 200 {
		return nil, fmt.Errorf("%s: envelope code %d: %s", op, env.Code, env.Message)
	}
	return env.Results, nil
}

// Register creates a primary-account credential pair on the origin.
func (c *Client) Register(ctx context.Context, username, password string) error {
	req, err := c.newAPIRequest(ctx, http.MethodPost, "/api/v3/register", nil, url.Values{
		"username": {username},
		"password": {password},
	})
	if err != nil {
		return err
	}
	_, err = c.requestEnvelope(req, apperr.OpRegister)
	return err
}

const loginSalt = 1729

// encodeLoginPassword applies the fixed-salt base64 encoding login expects
// (spec §6: base64(utf8("<password>-1729"))).
func encodeLoginPassword(password string) string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%s-%d", password, loginSalt)))
}

// Login authenticates with username/password and returns the session token.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	req, err := c.newAPIRequest(ctx, http.MethodPost, "/api/v3/login", nil, url.Values{
		"username": {username},
		"password": {encodeLoginPassword(password)},
		"salt":     {strconv.Itoa(loginSalt)},
	})
	if err != nil {
		return LoginResult{}, err
	}
	results, err := c.requestEnvelope(req, apperr.OpLogin)
	if err != nil {
		return LoginResult{}, err
	}
	var out LoginResult
	if err := json.Unmarshal(results, &out); err != nil {
		return LoginResult{}, fmt.Errorf("decode login results: %w", err)
	}
	return out, nil
}

// GetUserProfile fetches the primary account's profile, authenticated with
// the configured primary token.
func (c *Client) GetUserProfile(ctx context.Context) (UserProfile, error) {
	req, err := c.newAPIRequest(ctx, http.MethodGet, "/api/v3/member/info", nil, nil)
	if err != nil {
		return UserProfile{}, err
	}
	req.Header.Set("authorization", c.cfg.Get().Authorization())
	results, err := c.requestEnvelope(req, apperr.OpProfile)
	if err != nil {
		return UserProfile{}, err
	}
	var out UserProfile
	if err := json.Unmarshal(results, &out); err != nil {
		return UserProfile{}, fmt.Errorf("decode profile results: %w", err)
	}
	return out, nil
}

const searchPageLimit = 20

// Search queries the catalog; page numbers are 1-based.
func (c *Client) Search(ctx context.Context, keyword string, pageNum int) (SearchResult, error) {
	offset := (pageNum - 1) * searchPageLimit
	query := url.Values{
		"limit":    {strconv.Itoa(searchPageLimit)},
		"offset":   {strconv.Itoa(offset)},
		"q":        {keyword},
		"q_type":   {""},
		"platform": {"4"},
	}
	req, err := c.newAPIRequest(ctx, http.MethodGet, "/api/v3/search/comic", query, nil)
	if err != nil {
		return SearchResult{}, err
	}
	results, err := c.requestEnvelope(req, apperr.OpSearch)
	if err != nil {
		return SearchResult{}, err
	}
	var out SearchResult
	if err := json.Unmarshal(results, &out); err != nil {
		return SearchResult{}, fmt.Errorf("decode search results: %w", err)
	}
	return out, nil
}

const favoritePageLimit = 18

// GetFavorite fetches a page of the primary account's favorited comics.
func (c *Client) GetFavorite(ctx context.Context, pageNum int) (FavoriteResult, error) {
	query := url.Values{
		"limit":     {strconv.Itoa(favoritePageLimit)},
		"offset":    {strconv.Itoa((pageNum - 1) * favoritePageLimit)},
		"free_type": {"1"},
		"ordering":  {"-datetime_modifier"},
		"platform":  {"4"},
	}
	req, err := c.newAPIRequest(ctx, http.MethodGet, "/api/v3/member/collect/comics", query, nil)
	if err != nil {
		return FavoriteResult{}, err
	}
	req.Header.Set("authorization", c.cfg.Get().Authorization())
	results, err := c.requestEnvelope(req, apperr.OpGetFavorite)
	if err != nil {
		return FavoriteResult{}, err
	}
	var out FavoriteResult
	if err := json.Unmarshal(results, &out); err != nil {
		return FavoriteResult{}, fmt.Errorf("decode favorite results: %w", err)
	}
	return out, nil
}

// GetComic fetches a comic's groups map, without any group's chapter list.
func (c *Client) GetComic(ctx context.Context, comicPathWord string) (ComicView, error) {
	query := url.Values{"in_mainland": {"false"}, "platform": {"4"}}
	req, err := c.newAPIRequest(ctx, http.MethodGet, "/api/v3/comic2/"+comicPathWord, query, nil)
	if err != nil {
		return ComicView{}, err
	}
	results, err := c.requestEnvelope(req, apperr.OpGetComic)
	if err != nil {
		return ComicView{}, err
	}
	var out ComicView
	if err := json.Unmarshal(results, &out); err != nil {
		return ComicView{}, fmt.Errorf("decode comic results: %w", err)
	}
	return out, nil
}

const chaptersPageLimit = 500

// getChaptersPage fetches a single page of a group's chapter list.
func (c *Client) getChaptersPage(ctx context.Context, comicPathWord, groupPathWord string, limit, offset int64) (chaptersPage, error) {
	query := url.Values{
		"limit":       {strconv.FormatInt(limit, 10)},
		"offset":      {strconv.FormatInt(offset, 10)},
		"in_mainland": {"false"},
		"platform":    {"4"},
	}
	path := fmt.Sprintf("/api/v3/comic/%s/group/%s/chapters", comicPathWord, groupPathWord)
	req, err := c.newAPIRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return chaptersPage{}, err
	}
	results, err := c.requestEnvelope(req, apperr.OpGetGroupChapters)
	if err != nil {
		return chaptersPage{}, err
	}
	var out chaptersPage
	if err := json.Unmarshal(results, &out); err != nil {
		return chaptersPage{}, fmt.Errorf("decode chapters page results: %w", err)
	}
	return out, nil
}

// GetGroupChapters fetches every chapter of a group, paginating at 500 per
// page. The first page drives the total; remaining pages are fetched
// concurrently and appended in page order regardless of completion order
// (spec §4.1's ordering invariant takes precedence over how the pages
// happen to finish).
func (c *Client) GetGroupChapters(ctx context.Context, comicPathWord, groupPathWord string) ([]ChapterEntry, error) {
	first, err := c.getChaptersPage(ctx, comicPathWord, groupPathWord, chaptersPageLimit, 0)
	if err != nil {
		return nil, err
	}

	totalPages := (first.Total + chaptersPageLimit - 1) / chaptersPageLimit
	if totalPages <= 1 {
		return first.List, nil
	}

	pages := make([][]ChapterEntry, totalPages)
	pages[0] = first.List

	group, groupCtx := newErrGroup(ctx)
	for page := int64(2); page <= totalPages; page++ {
		page := page
		group.Go(func() error {
			offset := (page - 1) * chaptersPageLimit
			result, err := c.getChaptersPage(groupCtx, comicPathWord, groupPathWord, chaptersPageLimit, offset)
			if err != nil {
				return err
			}
			pages[page-1] = result.List
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var all []ChapterEntry
	for _, page := range pages {
		all = append(all, page...)
	}
	return all, nil
}

// GetChapter fetches a chapter's page manifest. Per spec §4.1, this must be
// authenticated with a disposable account-pool token, never the primary
// user token. On a risk-control response against the account used, the
// account is marked limited before the error is returned.
func (c *Client) GetChapter(ctx context.Context, comicPathWord, chapterUUID string) (ChapterManifest, error) {
	account, err := c.accounts.Acquire(ctx)
	if err != nil {
		return ChapterManifest{}, fmt.Errorf("acquire disposable account: %w", err)
	}

	query := url.Values{"in_mainland": {"false"}, "platform": {"4"}}
	path := fmt.Sprintf("/api/v3/comic/%s/chapter2/%s", comicPathWord, chapterUUID)
	req, err := c.newAPIRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return ChapterManifest{}, err
	}
	req.Header.Set("authorization", "Token "+account.Token())

	results, err := c.requestEnvelope(req, apperr.OpGetChapter)
	if err != nil {
		if rc, ok := apperr.AsRiskControl(err); ok && rc.Op == apperr.OpGetChapter {
			if markErr := c.accounts.MarkLimited(ctx, account); markErr != nil {
				return ChapterManifest{}, apperr.Frame("mark account limited after risk control", markErr)
			}
		}
		return ChapterManifest{}, err
	}

	var out ChapterManifest
	if err := json.Unmarshal(results, &out); err != nil {
		return ChapterManifest{}, fmt.Errorf("decode chapter manifest: %w", err)
	}
	return out, nil
}

// GetImage fetches an image and returns it in the requested target format,
// transcoding if the origin served a different one.
func (c *Client) GetImage(ctx context.Context, imageURL string, target ImageFormat) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}
	c.setDefaultHeaders(req)

	resp, err := c.img.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image %s: %w", imageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetch image %s: unexpected status %d: %s", imageURL, resp.StatusCode, body)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", imageURL, err)
	}

	source, err := detectImageFormat(resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("image %s: %w", imageURL, err)
	}
	if source == target {
		return data, nil
	}
	out, err := c.transcoder.Transcode(data, source, target)
	if err != nil {
		return nil, fmt.Errorf("transcode image %s from %s to %s: %w", imageURL, source, target, err)
	}
	return out, nil
}

func detectImageFormat(contentType string) (ImageFormat, error) {
	switch contentType {
	case "image/webp":
		return ImageWebp, nil
	case "image/jpeg", "image/jpg":
		return ImageJpeg, nil
	default:
		return "", fmt.Errorf("unrecognized image content-type %q", contentType)
	}
}

// RewriteForHigherResolution upgrades a page URL to request the larger
// resolution variant (spec §6: ".c800x." -> ".c1500x.").
func RewriteForHigherResolution(imageURL string) string {
	return strings.ReplaceAll(imageURL, ".c800x.", ".c1500x.")
}

// jitteredDelay returns a random duration in [min, max), used by the
// transport-level retry's backoff.
func jitteredDelay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}
