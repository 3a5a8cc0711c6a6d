// Package command implements spec §6's command surface, the single
// boundary allowed to convert an internal error chain into an
// apperr.CommandError. Every method below it takes and returns plain Go
// values and wrapped errors; Service is the only place those errors get
// flattened into {Title, Message}.
package command

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mangavault/core/pkg/apperr"
	"github.com/mangavault/core/pkg/comic"
	"github.com/mangavault/core/pkg/config"
	"github.com/mangavault/core/pkg/engine"
	"github.com/mangavault/core/pkg/export"
	"github.com/mangavault/core/pkg/library"
	"github.com/mangavault/core/pkg/remoteclient"
	"github.com/mangavault/core/pkg/shell"
)

// RemoteClient is the subset of remoteclient.Client the command surface
// calls directly (register/login/search/favorite/comic browsing); the
// download engine and updater hold their own narrower views of it.
type RemoteClient interface {
	Register(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) (remoteclient.LoginResult, error)
	GetUserProfile(ctx context.Context) (remoteclient.UserProfile, error)
	Search(ctx context.Context, keyword string, pageNum int) (remoteclient.SearchResult, error)
	GetFavorite(ctx context.Context, pageNum int) (remoteclient.FavoriteResult, error)
	GetComic(ctx context.Context, comicPathWord string) (remoteclient.ComicView, error)
	GetGroupChapters(ctx context.Context, comicPathWord, groupPathWord string) ([]remoteclient.ChapterEntry, error)
	GetChapter(ctx context.Context, comicPathWord, chapterUUID string) (remoteclient.ChapterManifest, error)
	GetFullComic(ctx context.Context, comicPathWord string) (comic.Comic, error)
}

// Engine is the subset of engine.Engine the command surface drives.
type Engine interface {
	CreateDownloadTask(ctx context.Context, c comic.Comic, chapterUUID string) (*engine.Task, error)
	PauseDownloadTask(chapterUUID string) error
	ResumeDownloadTask(chapterUUID string) error
	CancelDownloadTask(chapterUUID string) error
}

// Updater is the subset of updater.Updater the command surface drives.
type Updater interface {
	UpdateDownloadedComics(ctx context.Context) error
}

// Service wires config, the remote client, the download engine, the
// library updater, export, and the file-manager opener behind spec §6's
// one command surface. Account pool registration happens beneath
// RemoteClient and is never driven by Service directly.
type Service struct {
	cfg     *config.Store
	remote  RemoteClient
	engine  Engine
	updater Updater
	opener  shell.Opener
}

// New builds the command surface. opener may be nil, in which case
// show_path_in_file_manager always reports itself unsupported.
func New(cfg *config.Store, remote RemoteClient, eng Engine, upd Updater, opener shell.Opener) *Service {
	if opener == nil {
		opener = shell.NewUnsupported()
	}
	return &Service{cfg: cfg, remote: remote, engine: eng, updater: upd, opener: opener}
}

func wrap(title string, err error) error {
	if err == nil {
		return nil
	}
	return apperr.Wrap(title, err)
}

// GetConfig returns the current configuration.
func (s *Service) GetConfig() config.Config {
	return s.cfg.Get()
}

// SaveConfig persists cfg wholesale.
func (s *Service) SaveConfig(cfg config.Config) error {
	return wrap("save config", s.cfg.Save(cfg))
}

// Register mints a new account with the remote origin.
func (s *Service) Register(ctx context.Context, username, password string) error {
	return wrap("register", s.remote.Register(ctx, username, password))
}

// Login exchanges credentials for a primary-account bearer token and
// persists it into config.
func (s *Service) Login(ctx context.Context, username, password string) error {
	result, err := s.remote.Login(ctx, username, password)
	if err != nil {
		return wrap("login", err)
	}
	cfg := s.cfg.Get()
	cfg.Token = result.Token
	return wrap("login", s.cfg.Save(cfg))
}

// GetUserProfile fetches the logged-in user's profile.
func (s *Service) GetUserProfile(ctx context.Context) (remoteclient.UserProfile, error) {
	profile, err := s.remote.GetUserProfile(ctx)
	return profile, wrap("get user profile", err)
}

// Search looks up comics by keyword.
func (s *Service) Search(ctx context.Context, keyword string, pageNum int) (remoteclient.SearchResult, error) {
	result, err := s.remote.Search(ctx, keyword, pageNum)
	return result, wrap("search", err)
}

// GetFavorite lists the logged-in user's favorited comics.
func (s *Service) GetFavorite(ctx context.Context, pageNum int) (remoteclient.FavoriteResult, error) {
	result, err := s.remote.GetFavorite(ctx, pageNum)
	return result, wrap("get favorite", err)
}

// GetComic fetches a comic's detail view.
func (s *Service) GetComic(ctx context.Context, comicPathWord string) (remoteclient.ComicView, error) {
	view, err := s.remote.GetComic(ctx, comicPathWord)
	return view, wrap("get comic", err)
}

// GetGroupChapters lists every chapter entry a scanlation group has
// published for a comic.
func (s *Service) GetGroupChapters(ctx context.Context, comicPathWord, groupPathWord string) ([]remoteclient.ChapterEntry, error) {
	entries, err := s.remote.GetGroupChapters(ctx, comicPathWord, groupPathWord)
	return entries, wrap("get group chapters", err)
}

// GetChapter fetches one chapter's page manifest.
func (s *Service) GetChapter(ctx context.Context, comicPathWord, chapterUUID string) (remoteclient.ChapterManifest, error) {
	manifest, err := s.remote.GetChapter(ctx, comicPathWord, chapterUUID)
	return manifest, wrap("get chapter", err)
}

// GetFullComic assembles a comic's full detail, including every group's
// chapter list, ready to hand to CreateDownloadTask or SaveMetadata.
func (s *Service) GetFullComic(ctx context.Context, comicPathWord string) (comic.Comic, error) {
	full, err := s.remote.GetFullComic(ctx, comicPathWord)
	return full, wrap("get full comic", err)
}

// SaveMetadata writes c's metadata.json under the configured download root.
func (s *Service) SaveMetadata(c comic.Comic) error {
	return wrap("save metadata", library.SaveMetadata(s.cfg.Get().DownloadDir, c))
}

// GetDownloadedComics scans the download root and returns every comic
// found, is_downloaded recomputed against disk.
func (s *Service) GetDownloadedComics() ([]comic.Comic, error) {
	comics, err := library.Scan(s.cfg.Get().DownloadDir)
	return comics, wrap("get downloaded comics", err)
}

// GetSyncedComic re-derives a downloaded comic's runtime-only fields
// (is_downloaded per chapter) against the current download root.
func (s *Service) GetSyncedComic(c comic.Comic) comic.Comic {
	library.RecomputeIsDownloaded(&c, s.cfg.Get().DownloadDir)
	return c
}

// CreateDownloadTask starts (or resumes tracking) a chapter download.
func (s *Service) CreateDownloadTask(ctx context.Context, c comic.Comic, chapterUUID string) error {
	_, err := s.engine.CreateDownloadTask(ctx, c, chapterUUID)
	return wrap("create download task", err)
}

// PauseDownloadTask pauses an in-flight chapter download.
func (s *Service) PauseDownloadTask(chapterUUID string) error {
	return wrap("pause download task", s.engine.PauseDownloadTask(chapterUUID))
}

// ResumeDownloadTask resumes a paused chapter download.
func (s *Service) ResumeDownloadTask(chapterUUID string) error {
	return wrap("resume download task", s.engine.ResumeDownloadTask(chapterUUID))
}

// CancelDownloadTask cancels a chapter download.
func (s *Service) CancelDownloadTask(chapterUUID string) error {
	return wrap("cancel download task", s.engine.CancelDownloadTask(chapterUUID))
}

// UpdateDownloadedComics refreshes every downloaded comic's chapter list
// against the remote origin and enqueues downloads for anything new.
func (s *Service) UpdateDownloadedComics(ctx context.Context) error {
	return wrap("update downloaded comics", s.updater.UpdateDownloadedComics(ctx))
}

// ExportCBZ writes one CBZ per downloaded chapter of c.
func (s *Service) ExportCBZ(c comic.Comic) error {
	return wrap("export cbz", export.CBZ(s.cfg.Get(), c))
}

// ExportPDF writes one PDF per downloaded chapter of c, using codec to
// re-encode every page as JPEG before gopdf embeds it.
func (s *Service) ExportPDF(c comic.Comic, codec export.Transcoder) error {
	return wrap("export pdf", export.PDF(s.cfg.Get(), c, codec))
}

// GetLogsDirSize sums the size of every file under the app data dir's
// logs directory.
func (s *Service) GetLogsDirSize(appDataDir string) (int64, error) {
	logsDir := filepath.Join(appDataDir, "logs")
	var total int64
	err := filepath.WalkDir(logsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, wrap("get logs dir size", fmt.Errorf("walk %q: %w", logsDir, err))
	}
	return total, nil
}

// ShowPathInFileManager reveals path in the host's file manager.
func (s *Service) ShowPathInFileManager(path string) error {
	return wrap("show path in file manager", s.opener.OpenInFileManager(path))
}
