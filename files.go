package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/centerdevice-go/internal/centerdevice"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [fulltext]",
		Short: "Search documents",
		Long: `Search documents by filename, tag or full text.

The optional positional argument is a full-text query. --filename and --tag
may be repeated. --public-collections runs the server's predefined search
for documents in public collections.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().StringSlice("filename", nil, "match documents with this filename (repeatable)")
	cmd.Flags().StringSlice("tag", nil, "match documents with this tag (repeatable)")
	cmd.Flags().Bool("public-collections", false, "include documents from public collections")

	return cmd
}

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file> [file...]",
		Short: "Upload one or more documents",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runUpload,
	}

	cmd.Flags().String("mime-type", "", "MIME type (detected from content when empty)")
	cmd.Flags().String("title", "", "document title")
	cmd.Flags().String("author", "", "document author")
	cmd.Flags().StringSlice("tag", nil, "tag to add (repeatable)")
	cmd.Flags().StringSlice("collection", nil, "collection id to add the document to (repeatable)")

	return cmd
}

func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download <document-id> [document-id...]",
		Short: "Download documents by id",
		Long: `Download documents by id into a directory.

Each document is written to "<name>.partial" and renamed into place only
after its size matches the server's Content-Length. The name comes from the
server unless --filename is given (single document only).`,
		Args: cobra.MinimumNArgs(1),
		RunE: runDownload,
	}

	cmd.Flags().String("dir", "", "target directory (default from config, else current directory)")
	cmd.Flags().String("filename", "", "save under this name instead of the server's")
	cmd.Flags().Int("parallel", 0, "number of concurrent downloads")

	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id> [document-id...]",
		Short: "Delete documents by id",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runDelete,
	}
}

// searchJSONDocument is the JSON output schema for one search hit.
type searchJSONDocument struct {
	ID         string   `json:"id"`
	Filename   string   `json:"filename"`
	Title      string   `json:"title,omitempty"`
	Size       int64    `json:"size"`
	MimeType   string   `json:"mime_type"`
	Version    int      `json:"version"`
	UploadedAt string   `json:"uploaded_at"`
	Tags       []string `json:"tags,omitempty"`
}

type searchJSONOutput struct {
	Hits      int                  `json:"hits"`
	Documents []searchJSONDocument `json:"documents"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	cc := cliContextFrom(cmd.Context())
	ctx := cmd.Context()

	q, err := searchFromFlags(cmd, args)
	if err != nil {
		return err
	}

	sess, err := cc.openSession()
	if err != nil {
		return err
	}

	result, err := withRefresh(ctx, cc, sess, func(ctx context.Context) (*centerdevice.SearchResult, error) {
		return sess.SearchDocuments(ctx, q)
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if cc.Flags.JSON {
		return printJSON(cc.Out, searchOutput(result))
	}

	printDocumentsTable(cc, result)

	return nil
}

func searchFromFlags(cmd *cobra.Command, args []string) (centerdevice.Search, error) {
	var q centerdevice.Search

	var err error

	if q.Filenames, err = cmd.Flags().GetStringSlice("filename"); err != nil {
		return q, err
	}

	if q.Tags, err = cmd.Flags().GetStringSlice("tag"); err != nil {
		return q, err
	}

	public, err := cmd.Flags().GetBool("public-collections")
	if err != nil {
		return q, err
	}

	if public {
		q.Named = centerdevice.NamedSearchPublicCollections
	}

	if len(args) > 0 {
		q.Fulltext = args[0]
	}

	return q, nil
}

func searchOutput(result *centerdevice.SearchResult) searchJSONOutput {
	out := searchJSONOutput{
		Hits:      result.Hits,
		Documents: make([]searchJSONDocument, 0, len(result.Documents)),
	}

	for i := range result.Documents {
		d := &result.Documents[i]
		out.Documents = append(out.Documents, searchJSONDocument{
			ID:         d.ID,
			Filename:   d.Filename,
			Title:      d.Title,
			Size:       d.Size,
			MimeType:   d.MediaType.String(),
			Version:    d.Version,
			UploadedAt: d.UploadDate.UTC().Format("2006-01-02T15:04:05Z"),
			Tags:       d.Tags,
		})
	}

	return out
}

func printDocumentsTable(cc *CLIContext, result *centerdevice.SearchResult) {
	headers := []string{"ID", "SIZE", "UPLOADED", "FILENAME"}
	rows := make([][]string, 0, len(result.Documents))

	for i := range result.Documents {
		d := &result.Documents[i]
		rows = append(rows, []string{d.ID, formatSize(d.Size), formatTime(d.UploadDate), d.Filename})
	}

	printTable(cc.Out, headers, rows)
	cc.Statusf("%d of %d hits shown\n", len(result.Documents), result.Hits)
}

type uploadJSONItem struct {
	Path string `json:"path"`
	ID   string `json:"id"`
}

func runUpload(cmd *cobra.Command, args []string) error {
	cc := cliContextFrom(cmd.Context())
	ctx := cmd.Context()

	actions, err := centerdevice.ParseActionsMode(cc.Cfg.EmptyActions)
	if err != nil {
		return err
	}

	uploads := make([]*centerdevice.Upload, 0, len(args))

	for _, path := range args {
		u, buildErr := uploadFromFlags(cmd, path)
		if buildErr != nil {
			return buildErr
		}

		u.Actions = actions
		uploads = append(uploads, u)
	}

	sess, err := cc.openSession()
	if err != nil {
		return err
	}

	progress := cc.newProgress()
	out := make([]uploadJSONItem, 0, len(uploads))

	for _, u := range uploads {
		u.Progress = progress.track(u.Filename)

		id, uploadErr := withRefresh(ctx, cc, sess, func(ctx context.Context) (string, error) {
			return sess.UploadDocument(ctx, u)
		})
		if uploadErr != nil {
			return fmt.Errorf("uploading %s: %w", u.Path, uploadErr)
		}

		out = append(out, uploadJSONItem{Path: u.Path, ID: id})

		if !cc.Flags.JSON {
			fmt.Fprintln(cc.Out, id)
		}

		cc.Statusf("Uploaded %s (%s)\n", u.Filename, formatSize(u.Size))
	}

	if cc.Flags.JSON {
		return printJSON(cc.Out, out)
	}

	return nil
}

func uploadFromFlags(cmd *cobra.Command, path string) (*centerdevice.Upload, error) {
	flags := cmd.Flags()

	mimeType, err := flags.GetString("mime-type")
	if err != nil {
		return nil, err
	}

	u, err := centerdevice.NewUpload(path, mimeType)
	if err != nil {
		return nil, err
	}

	if u.Title, err = flags.GetString("title"); err != nil {
		return nil, err
	}

	if u.Author, err = flags.GetString("author"); err != nil {
		return nil, err
	}

	if u.Tags, err = flags.GetStringSlice("tag"); err != nil {
		return nil, err
	}

	if u.Collections, err = flags.GetStringSlice("collection"); err != nil {
		return nil, err
	}

	return u, nil
}

type downloadJSONItem struct {
	ID    string `json:"id"`
	Bytes int64  `json:"bytes,omitempty"`
	Error string `json:"error,omitempty"`
}

func runDownload(cmd *cobra.Command, args []string) error {
	cc := cliContextFrom(cmd.Context())
	ctx := cmd.Context()

	filename, err := cmd.Flags().GetString("filename")
	if err != nil {
		return err
	}

	if filename != "" && len(args) > 1 {
		return errors.New("--filename can only be used with a single document")
	}

	sess, err := cc.openSession()
	if err != nil {
		return err
	}

	results := downloadAll(ctx, cc, sess, args, filename)

	if cc.Flags.JSON {
		if err := printJSON(cc.Out, results); err != nil {
			return err
		}
	}

	return downloadError(results)
}

// downloadAll fetches every id with at most ParallelDownloads in flight.
// One failure does not cancel the others; each result carries its own error.
func downloadAll(
	ctx context.Context, cc *CLIContext, sess *centerdevice.Session, ids []string, filename string,
) []downloadJSONItem {
	results := make([]downloadJSONItem, len(ids))
	progress := cc.newProgress()
	dir := cc.Cfg.DownloadDir
	claims := newNameClaims()

	var g errgroup.Group

	g.SetLimit(cc.Cfg.ParallelDownloads)

	for i, id := range ids {
		g.Go(func() error {
			d := centerdevice.Download{
				DocumentID: id,
				Dir:        dir,
				Filename:   filename,
				Progress:   progress.track(id),
				Claim:      claims.claimFor(id),
			}

			n, dlErr := withRefresh(ctx, cc, sess, func(ctx context.Context) (int64, error) {
				return sess.DownloadDocument(ctx, d)
			})

			results[i] = downloadJSONItem{ID: id, Bytes: n}

			if dlErr != nil {
				results[i].Error = dlErr.Error()
				cc.Logger.Warn("download failed", slog.String("id", id), slog.String("error", dlErr.Error()))

				return nil
			}

			cc.Statusf("Downloaded %s to %s (%s)\n", id, filepath.Clean(dir), formatSize(n))

			return nil
		})
	}

	// Workers never return an error; failures live in results.
	_ = g.Wait()

	return results
}

// nameClaims records which document owns each file name during one
// download run, so two documents with the same name cannot overwrite each
// other.
type nameClaims struct {
	mu     sync.Mutex
	owners map[string]string
}

func newNameClaims() *nameClaims {
	return &nameClaims{owners: make(map[string]string)}
}

// claimFor returns the Claim hook for document id. A retry of the same
// document may claim its name again.
func (c *nameClaims) claimFor(id string) func(string) error {
	return func(name string) error {
		c.mu.Lock()
		defer c.mu.Unlock()

		if owner, ok := c.owners[name]; ok && owner != id {
			return fmt.Errorf("%s is also the name of document %s; download this one on its own with --filename", name, owner)
		}

		c.owners[name] = id

		return nil
	}
}

func downloadError(results []downloadJSONItem) error {
	var failed []string

	for _, r := range results {
		if r.Error != "" {
			failed = append(failed, fmt.Sprintf("%s: %s", r.ID, r.Error))
		}
	}

	switch len(failed) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("download %s", failed[0])
	default:
		return fmt.Errorf("%d of %d downloads failed:\n  %s", len(failed), len(results), strings.Join(failed, "\n  "))
	}
}

type deleteJSONOutput struct {
	Deleted []string `json:"deleted"`
	Failed  []string `json:"failed"`
}

func runDelete(cmd *cobra.Command, args []string) error {
	cc := cliContextFrom(cmd.Context())
	ctx := cmd.Context()

	sess, err := cc.openSession()
	if err != nil {
		return err
	}

	_, err = withRefresh(ctx, cc, sess, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, sess.DeleteDocuments(ctx, args)
	})

	failed := centerdevice.FailedIDs(err)
	if err != nil && failed == nil {
		return fmt.Errorf("delete: %w", err)
	}

	out := deleteJSONOutput{Deleted: deletedIDs(args, failed), Failed: failed}
	if out.Failed == nil {
		out.Failed = []string{}
	}

	if cc.Flags.JSON {
		if jsonErr := printJSON(cc.Out, out); jsonErr != nil {
			return jsonErr
		}
	} else {
		cc.Statusf("Deleted %d of %d documents.\n", len(out.Deleted), len(args))
	}

	if len(failed) > 0 {
		return fmt.Errorf("delete: %w", err)
	}

	return nil
}

// deletedIDs returns ids minus the ones the server reported as failed,
// keeping the caller's order.
func deletedIDs(ids, failed []string) []string {
	skip := make(map[string]bool, len(failed))
	for _, id := range failed {
		skip[id] = true
	}

	deleted := make([]string, 0, len(ids))

	for _, id := range ids {
		if !skip[id] {
			deleted = append(deleted, id)
		}
	}

	return deleted
}
