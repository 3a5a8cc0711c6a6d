package remoteclient

import (
	"context"
	"fmt"

	"github.com/mangavault/core/pkg/comic"
)

// GetFullComic fetches a comic's detail plus every group's chapter list and
// assembles them into a comic.Comic, sanitizing and disambiguating chapter
// titles before a caller ever sees them, so nothing unsanitized or
// colliding reaches disk. Used by the Library Updater (spec §4.8) and by
// any command that needs a fresh comic for download.
func (c *Client) GetFullComic(ctx context.Context, comicPathWord string) (comic.Comic, error) {
	view, err := c.GetComic(ctx, comicPathWord)
	if err != nil {
		return comic.Comic{}, err
	}

	comicTitle := comic.SanitizeFilename(view.Detail.Name)
	comicStatus := comic.ComicStatusFromValue(view.Detail.Status.Value)

	groups := make(map[string]comic.Group, len(view.Groups))
	chapterGroups := make(map[string][]comic.ChapterInfo, len(view.Groups))

	for groupPathWord, groupView := range view.Groups {
		groupName := comic.SanitizeFilename(groupView.Name)
		groups[groupPathWord] = comic.Group{PathWord: groupView.PathWord, Count: groupView.Count, Name: groupName}

		entries, err := c.GetGroupChapters(ctx, comicPathWord, groupPathWord)
		if err != nil {
			return comic.Comic{}, fmt.Errorf("fetch chapters for group %s: %w", groupPathWord, err)
		}

		titles := make([]string, len(entries))
		for i, entry := range entries {
			titles[i] = entry.Name
		}
		sanitizedTitles := comic.DisambiguateChapterTitles(titles)

		chapters := make([]comic.ChapterInfo, len(entries))
		for i, entry := range entries {
			order := comic.Order(entry.Ordered)
			chapters[i] = comic.ChapterInfo{
				ChapterUUID:          entry.UUID,
				ChapterTitle:         sanitizedTitles[i],
				PrefixedChapterTitle: comic.PrefixedChapterTitle(order, sanitizedTitles[i]),
				ChapterSize:          entry.Size,
				ComicUUID:            view.Detail.UUID,
				ComicTitle:           comicTitle,
				ComicPathWord:        view.Detail.PathWord,
				GroupPathWord:        groupPathWord,
				GroupName:            groupName,
				GroupSize:            int64(groupView.Count),
				Order:                order,
				ComicStatus:          comicStatus,
			}
		}
		chapterGroups[groupPathWord] = chapters
	}

	authors := make([]comic.Author, len(view.Detail.Author))
	for i, a := range view.Detail.Author {
		authors[i] = comic.Author{Name: a.Name, Alias: a.Alias, PathWord: a.PathWord}
	}
	themes := make([]comic.Theme, len(view.Detail.Theme))
	for i, th := range view.Detail.Theme {
		themes[i] = comic.Theme{Name: th.Name, PathWord: th.PathWord}
	}

	detail := comic.ComicDetail{
		UUID:            view.Detail.UUID,
		B404:            view.Detail.B404,
		BHidden:         view.Detail.BHidden,
		Ban:             view.Detail.Ban,
		BanIP:           view.Detail.BanIP,
		Name:            comicTitle,
		Alias:           view.Detail.Alias,
		PathWord:        view.Detail.PathWord,
		CloseComment:    view.Detail.CloseComment,
		CloseRoast:      view.Detail.CloseRoast,
		FreeType:        comic.LabeledValue(view.Detail.FreeType),
		Restrict:        comic.LabeledValue(view.Detail.Restrict),
		Reclass:         comic.LabeledValue(view.Detail.Reclass),
		SeoBaidu:        view.Detail.SeoBaidu,
		Region:          comic.LabeledValue(view.Detail.Region),
		Status:          comic.LabeledValue(view.Detail.Status),
		Author:          authors,
		Theme:           themes,
		Brief:           view.Detail.Brief,
		DatetimeUpdated: view.Detail.DatetimeUpdated,
		Cover:           view.Detail.Cover,
		LastChapter:     comic.LastChapter(view.Detail.LastChapter),
		Popular:         view.Detail.Popular,
		Groups:          chapterGroups,
	}

	return comic.Comic{
		IsBanned:     view.IsBanned,
		IsLock:       view.IsLock,
		IsLogin:      view.IsLogin,
		IsMobileBind: view.IsMobileBind,
		IsVIP:        view.IsVIP,
		Comic:        detail,
		Popular:      view.Popular,
		Groups:       groups,
	}, nil
}
