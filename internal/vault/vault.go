// Package vault imports notes from a directory of Markdown files and
// exports them back. Every synced file is recorded with its checksum and
// the version of its note, so unchanged files and notes are skipped on the
// next run.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"

	"github.com/starford/notely/internal/apperr"
	"github.com/starford/notely/internal/checksum"
	"github.com/starford/notely/internal/markdown"
	"github.com/starford/notely/internal/models"
	"github.com/starford/notely/internal/noteservice"
	"github.com/starford/notely/internal/storage"
	"github.com/starford/notely/internal/store"
)

// Notes is the subset of the note service the vault writes through.
type Notes interface {
	List(ctx context.Context, owner string, f models.NoteFilter) (*models.NoteList, error)
	Create(ctx context.Context, owner string, in models.NoteInput) (*models.Note, error)
	Update(ctx context.Context, owner, id string, patch models.NotePatch, ifMatch string) (*models.Note, error)
}

// SourceStore records which file a note came from or went to.
type SourceStore interface {
	Sources(ctx context.Context, owner string) (map[string]store.Source, error)
	PutSource(ctx context.Context, owner string, s store.Source) error
	DeleteSource(ctx context.Context, owner, path string) error
}

// Report counts the outcome of one import or export run.
type Report struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// Syncer moves notes of one owner between a vault and the note store.
type Syncer struct {
	notes   Notes
	sources SourceStore
	files   storage.Provider
	logger  *slog.Logger
}

// New creates a Syncer.
func New(notes Notes, sources SourceStore, files storage.Provider, logger *slog.Logger) *Syncer {
	return &Syncer{notes: notes, sources: sources, files: files, logger: logger}
}

// Import walks the vault and brings owner's notes up to date:
//   - new files become new notes
//   - changed files update the note they were imported into
//   - files removed from disk are forgotten; their notes are kept
//
// A file that cannot be read or yields an invalid note is logged and
// counted as failed.
func (s *Syncer) Import(ctx context.Context, owner string) (Report, error) {
	var rep Report
	files, err := s.files.List("")
	if err != nil {
		return rep, err
	}
	known, err := s.sources.Sources(ctx, owner)
	if err != nil {
		return rep, err
	}

	disk := make(map[string]struct{}, len(files))
	for _, f := range files {
		disk[f.Path] = struct{}{}
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		src, ok := known[f.Path]
		if ok && src.Checksum == f.Checksum {
			rep.Unchanged++
			continue
		}

		note, created, err := s.importFile(ctx, owner, f, src, ok)
		if err != nil {
			rep.Failed++
			s.logger.Warn("import: skipped file", slog.String("path", f.Path), slog.String("error", err.Error()))
			continue
		}
		if err := s.sources.PutSource(ctx, owner, store.Source{
			Path:     f.Path,
			Checksum: f.Checksum,
			NoteID:   note.ID,
			Version:  noteservice.ETag(note),
		}); err != nil {
			return rep, err
		}
		if created {
			rep.Created++
		} else {
			rep.Updated++
		}
		s.logger.Debug("import: synced", slog.String("path", f.Path), slog.String("id", note.ID))
	}

	for p := range known {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := s.sources.DeleteSource(ctx, owner, p); err != nil {
			return rep, err
		}
		s.logger.Debug("import: forgot removed file", slog.String("path", p))
	}
	return rep, nil
}

func (s *Syncer) importFile(ctx context.Context, owner string, f storage.File, src store.Source, known bool) (*models.Note, bool, error) {
	data, err := s.files.Read(f.Path)
	if err != nil {
		return nil, false, err
	}
	doc, err := markdown.Parse(data)
	if err != nil {
		return nil, false, err
	}
	title := doc.Title
	if title == "" {
		title = strings.TrimSuffix(path.Base(f.Path), ".md")
	}
	content := strings.TrimSpace(doc.Body)

	if known {
		note, err := s.notes.Update(ctx, owner, src.NoteID, models.NotePatch{
			Title:   &title,
			Content: &content,
			Tags:    &doc.Tags,
		}, "")
		if !errors.Is(err, apperr.ErrNotFound) {
			return note, false, err
		}
		// The note was deleted since the last import.
	}

	note, err := s.notes.Create(ctx, owner, models.NoteInput{Title: title, Content: content, Tags: doc.Tags})
	return note, true, err
}

// Export writes every note of owner to the vault. Notes that have not
// changed since they were last synced are left alone; other notes are
// written to the file they were synced with, or to a new file named after
// their title.
func (s *Syncer) Export(ctx context.Context, owner string) (Report, error) {
	var rep Report
	known, err := s.sources.Sources(ctx, owner)
	if err != nil {
		return rep, err
	}
	byNote := make(map[string]store.Source, len(known))
	for _, src := range known {
		byNote[src.NoteID] = src
	}

	page := 1
	for {
		list, err := s.notes.List(ctx, owner, models.NoteFilter{Page: page})
		if err != nil {
			return rep, err
		}
		for i := range list.Data {
			n := &list.Data[i]
			src, ok := byNote[n.ID]
			version := noteservice.ETag(n)
			if ok && src.Version == version {
				rep.Unchanged++
				continue
			}

			p := src.Path
			if !ok {
				p = FileName(n)
			}
			data, err := markdown.Render(n)
			if err == nil {
				err = s.files.Write(p, data)
			}
			if err != nil {
				rep.Failed++
				s.logger.Warn("export: write failed", slog.String("path", p), slog.String("error", err.Error()))
				continue
			}
			if err := s.sources.PutSource(ctx, owner, store.Source{
				Path:     p,
				Checksum: checksum.Sum(data),
				NoteID:   n.ID,
				Version:  version,
			}); err != nil {
				return rep, err
			}
			if ok {
				rep.Updated++
			} else {
				rep.Created++
			}
		}

		next, more := list.Meta.NextPage()
		if !more {
			return rep, nil
		}
		page = next
	}
}

var slugRe = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// FileName is the vault path a note is first exported to: a slug of its
// title followed by the start of its id.
func FileName(n *models.Note) string {
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(n.Title), "-"), "-")
	if r := []rune(slug); len(r) > 60 {
		slug = strings.TrimRight(string(r[:60]), "-")
	}
	if slug == "" {
		slug = "note"
	}
	id := n.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s-%s.md", slug, id)
}
