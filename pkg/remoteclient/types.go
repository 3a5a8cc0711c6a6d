package remoteclient

import "encoding/json"

// envelope is the uniform `{code, message, results}` wire contract every
// endpoint responds with (spec §4.1/§7).
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Results json.RawMessage `json:"results"`
}

// LoginResult is returned by Login.
type LoginResult struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// UserProfile is returned by GetUserProfile.
type UserProfile struct {
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
	VIPTitle string `json:"vipTitle"`
}

// SearchHit is one comic row in a search result page.
type SearchHit struct {
	PathWord string `json:"pathWord"`
	Name     string `json:"name"`
	Cover    string `json:"cover"`
	Author   string `json:"author"`
}

// SearchResult is returned by Search.
type SearchResult struct {
	Total int         `json:"total"`
	List  []SearchHit `json:"list"`
}

// FavoriteResult is returned by GetFavorite.
type FavoriteResult struct {
	Total int         `json:"total"`
	List  []SearchHit `json:"list"`
}

// ComicView is the remote comic view returned by GetComic: the comic's own
// fields plus its groups map, without any group's chapter list (those come
// from GetGroupChapters per group).
type ComicView struct {
	IsBanned     bool                    `json:"isBanned"`
	IsLock       bool                    `json:"isLock"`
	IsLogin      bool                    `json:"isLogin"`
	IsMobileBind bool                    `json:"isMobileBind"`
	IsVIP        bool                    `json:"isVip"`
	Popular      int64                   `json:"popular"`
	Detail       ComicDetailView         `json:"comic"`
	Groups       map[string]GroupView    `json:"groups"`
}

// ComicDetailView is the comic-specific subset of ComicView.
type ComicDetailView struct {
	UUID            string            `json:"uuid"`
	B404            bool              `json:"b404"`
	BHidden         bool              `json:"bHidden"`
	Ban             int64             `json:"ban"`
	BanIP           *bool             `json:"banIp,omitempty"`
	Name            string            `json:"name"`
	Alias           string            `json:"alias,omitempty"`
	PathWord        string            `json:"pathWord"`
	CloseComment    bool              `json:"closeComment"`
	CloseRoast      bool              `json:"closeRoast"`
	FreeType        LabeledValueView  `json:"freeType"`
	Restrict        LabeledValueView  `json:"restrict"`
	Reclass         LabeledValueView  `json:"reclass"`
	SeoBaidu        string            `json:"seoBaidu,omitempty"`
	Region          LabeledValueView  `json:"region"`
	Status          LabeledValueView  `json:"status"`
	Author          []AuthorView      `json:"author"`
	Theme           []ThemeView       `json:"theme"`
	Brief           string            `json:"brief"`
	DatetimeUpdated string            `json:"datetimeUpdated"`
	Cover           string            `json:"cover"`
	LastChapter     LastChapterView   `json:"lastChapter"`
	Popular         int64             `json:"popular"`
}

type LabeledValueView struct {
	Value   int64  `json:"value"`
	Display string `json:"display"`
}

type AuthorView struct {
	Name     string `json:"name"`
	Alias    string `json:"alias,omitempty"`
	PathWord string `json:"pathWord"`
}

type ThemeView struct {
	Name     string `json:"name"`
	PathWord string `json:"pathWord"`
}

type LastChapterView struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// GroupView is one entry of ComicView.Groups.
type GroupView struct {
	PathWord string `json:"pathWord"`
	Count    uint32 `json:"count"`
	Name     string `json:"name"`
}

// chaptersPage is the raw paginated response from the chapters endpoint.
type chaptersPage struct {
	Total int64          `json:"total"`
	List  []ChapterEntry `json:"list"`
}

// ChapterEntry is one remote chapter row, as returned by GetGroupChapters,
// prior to sanitization/disambiguation into comic.ChapterInfo.
type ChapterEntry struct {
	UUID      string `json:"uuid"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Ordered   int64  `json:"ordered"`
	GroupName string `json:"groupName"`
}

// ChapterManifest is returned by GetChapter: a page URL list and a parallel
// page-index list (spec §4.1).
type ChapterManifest struct {
	Contents []string `json:"contents"`
	Words    []int    `json:"words"`
}
