package remoteclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFullComicAssemblesGroupsAndSanitizesDuplicateTitles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/comic2/"):
			fmt.Fprint(w, `{"code":200,"message":"ok","results":{
				"isBanned":false,"isLock":false,"isLogin":false,"isMobileBind":false,"isVip":false,"popular":1,
				"comic":{"uuid":"u1","name":"Demo","pathWord":"demo","freeType":{"value":0,"display":"free"},
					"restrict":{"value":0,"display":"none"},"reclass":{"value":0,"display":"manga"},
					"region":{"value":0,"display":"cn"},"status":{"value":0,"display":"serializing"},
					"author":[],"theme":[],"lastChapter":{"uuid":"c2","name":"Ch 2"}},
				"groups":{"default":{"pathWord":"default","count":2,"name":"Default"}}
			}}`)
		case strings.Contains(r.URL.Path, "/chapters"):
			fmt.Fprint(w, `{"code":200,"message":"ok","results":{"total":2,"list":[
				{"uuid":"c1","name":"Ch 1","size":3,"ordered":10},
				{"uuid":"c1-dup","name":"Ch 1","size":3,"ordered":20}
			]}}`)
		default:
			t.Fatalf("unexpected request path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client, _, _ := newTestClient(t, server)

	c, err := client.GetFullComic(context.Background(), "demo")
	require.NoError(t, err)

	assert.Equal(t, "Demo", c.Comic.Name)
	assert.Equal(t, "demo", c.Comic.PathWord)
	require.Contains(t, c.Groups, "default")
	assert.Equal(t, "Default", c.Groups["default"].Name)

	chapters := c.Comic.Groups["default"]
	require.Len(t, chapters, 2)
	assert.Equal(t, "c1", chapters[0].ChapterUUID)
	assert.Equal(t, "Ch 1-2", chapters[0].ChapterTitle)
	assert.Equal(t, "1 Ch 1-2", chapters[0].PrefixedChapterTitle)
	assert.Equal(t, "c1-dup", chapters[1].ChapterUUID)
	assert.Equal(t, "Ch 1-1", chapters[1].ChapterTitle)
	assert.Equal(t, "2 Ch 1-1", chapters[1].PrefixedChapterTitle)
	assert.Equal(t, "demo", chapters[0].ComicPathWord)
	assert.Equal(t, "default", chapters[0].GroupPathWord)
}

func TestGetFullComicPropagatesGroupChapterFetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/comic2/"):
			fmt.Fprint(w, `{"code":200,"message":"ok","results":{
				"comic":{"uuid":"u1","name":"Demo","pathWord":"demo","freeType":{"value":0,"display":"free"},
					"restrict":{"value":0,"display":"none"},"reclass":{"value":0,"display":"manga"},
					"region":{"value":0,"display":"cn"},"status":{"value":0,"display":"serializing"},
					"author":[],"theme":[],"lastChapter":{"uuid":"c2","name":"Ch 2"}},
				"groups":{"default":{"pathWord":"default","count":1,"name":"Default"}}
			}}`)
		case strings.Contains(r.URL.Path, "/chapters"):
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"code":500,"message":"boom","results":null}`)
		}
	}))
	defer server.Close()

	client, _, _ := newTestClient(t, server)

	_, err := client.GetFullComic(context.Background(), "demo")
	assert.Error(t, err)
}
