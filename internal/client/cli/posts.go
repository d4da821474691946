package cli

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	ucli "github.com/urfave/cli/v2"

	apiclient "github.com/iudanet/gophblog/internal/client/api"
	"github.com/iudanet/gophblog/internal/client/storage"
	"github.com/iudanet/gophblog/internal/validation"
	"github.com/iudanet/gophblog/pkg/api"
)

// defaultListLimit matches the server's page size
const defaultListLimit = 20

func (c *Cli) postCmd() *ucli.Command {
	return &ucli.Command{
		Name:  "post",
		Usage: "Create, edit and read posts",
		Subcommands: []*ucli.Command{
			c.postCreateCmd(),
			c.postUpdateCmd(),
			c.postListCmd(),
			c.postGetCmd(),
		},
	}
}

func postFlags() []ucli.Flag {
	return []ucli.Flag{
		&ucli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Post title"},
		&ucli.StringFlag{Name: "summary", Usage: "Short summary shown in listings"},
		&ucli.StringFlag{Name: "content", Aliases: []string{"c"}, Usage: "Post body"},
		&ucli.StringFlag{Name: "content-file", Usage: "Read the post body from a file"},
		&ucli.StringFlag{Name: "cover", Usage: "Image file to upload as the cover"},
		&ucli.StringFlag{Name: "cover-ref", Usage: "Existing cover: an http(s) URL or an /uploads/ path"},
	}
}

// applyPostFlags overwrites req with every post flag that was set
func applyPostFlags(cCtx *ucli.Context, req *api.PostRequest) error {
	if cCtx.IsSet("title") {
		req.Title = cCtx.String("title")
	}
	if cCtx.IsSet("summary") {
		req.Summary = cCtx.String("summary")
	}
	if cCtx.IsSet("content") && cCtx.IsSet("content-file") {
		return errors.New("use either --content or --content-file")
	}
	if cCtx.IsSet("content") {
		req.Content = cCtx.String("content")
	}
	if path := cCtx.String("content-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read content file: %w", err)
		}
		req.Content = string(data)
	}
	if cCtx.IsSet("cover-ref") {
		req.Cover = cCtx.String("cover-ref")
	}
	return nil
}

// openCover opens the --cover file; the caller closes it
func openCover(cCtx *ucli.Context) (*apiclient.CoverFile, func(), error) {
	path := cCtx.String("cover")
	if path == "" {
		return nil, func() {}, nil
	}
	if cCtx.IsSet("cover-ref") {
		return nil, nil, errors.New("use either --cover or --cover-ref")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open cover: %w", err)
	}
	return &apiclient.CoverFile{Reader: f, Name: filepath.Base(path)}, func() { _ = f.Close() }, nil
}

func (c *Cli) postCreateCmd() *ucli.Command {
	return &ucli.Command{
		Name:  "create",
		Usage: "Publish a new post",
		Flags: postFlags(),
		Action: c.action(func(cCtx *ucli.Context) error {
			ctx := cCtx.Context
			if err := c.requireSession(); err != nil {
				return err
			}

			var req api.PostRequest
			if err := applyPostFlags(cCtx, &req); err != nil {
				return err
			}
			if err := validation.ValidatePost(req.Title, req.Summary, req.Content); err != nil {
				return fmt.Errorf("invalid post: %w", err)
			}

			cover, closeCover, err := openCover(cCtx)
			if err != nil {
				return err
			}
			defer closeCover()

			post, err := c.client.CreatePost(ctx, req, cover)
			if err != nil {
				return authError(err)
			}
			c.cachePost(cCtx, post)

			c.io.Println("✓ Post created")
			c.printPost(post)
			return nil
		}),
	}
}

func (c *Cli) postUpdateCmd() *ucli.Command {
	return &ucli.Command{
		Name:      "update",
		Usage:     "Edit one of your posts; unset fields keep their current value",
		ArgsUsage: "<id>",
		Flags:     postFlags(),
		Action: c.action(func(cCtx *ucli.Context) error {
			ctx := cCtx.Context
			id, err := postID(cCtx)
			if err != nil {
				return err
			}
			if err := c.requireSession(); err != nil {
				return err
			}

			current, err := c.client.GetPost(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to load post: %w", err)
			}

			req := api.PostRequest{
				ID:      id,
				Title:   current.Title,
				Summary: current.Summary,
				Content: current.Content,
			}
			if err := applyPostFlags(cCtx, &req); err != nil {
				return err
			}
			if err := validation.ValidatePost(req.Title, req.Summary, req.Content); err != nil {
				return fmt.Errorf("invalid post: %w", err)
			}

			cover, closeCover, err := openCover(cCtx)
			if err != nil {
				return err
			}
			defer closeCover()

			post, err := c.client.UpdatePost(ctx, req, cover)
			if err != nil {
				if apiclient.IsStatus(err, http.StatusForbidden) {
					return fmt.Errorf("only the author can edit this post: %w", err)
				}
				return authError(err)
			}
			c.cachePost(cCtx, post)

			c.io.Println("✓ Post updated")
			c.printPost(post)
			return nil
		}),
	}
}

func (c *Cli) postListCmd() *ucli.Command {
	return &ucli.Command{
		Name:  "list",
		Usage: "Show the newest posts",
		Flags: []ucli.Flag{
			&ucli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Number of posts to show (1-20)",
				Value:   defaultListLimit,
			},
			&ucli.BoolFlag{
				Name:  "cached",
				Usage: "Read from the local cache instead of the server",
			},
		},
		Action: c.action(func(cCtx *ucli.Context) error {
			ctx := cCtx.Context
			limit := cCtx.Int("limit")
			if limit < 1 {
				return fmt.Errorf("limit must be positive, got %d", limit)
			}

			if cCtx.Bool("cached") {
				posts, err := c.store.ListCachedPosts(ctx)
				if err != nil {
					return fmt.Errorf("failed to read cache: %w", err)
				}
				if len(posts) > limit {
					posts = posts[:limit]
				}
				c.printList(posts)
				return nil
			}

			posts, err := c.client.ListPosts(ctx, limit)
			if err != nil {
				return fmt.Errorf("failed to list posts: %w", err)
			}

			if err := c.store.ReplacePosts(ctx, posts); err != nil {
				return fmt.Errorf("failed to update cache: %w", err)
			}
			if err := c.store.SaveLastRefresh(ctx, c.now().Unix()); err != nil {
				return fmt.Errorf("failed to update cache: %w", err)
			}

			c.printList(posts)
			return nil
		}),
	}
}

func (c *Cli) postGetCmd() *ucli.Command {
	return &ucli.Command{
		Name:      "get",
		Usage:     "Show a single post",
		ArgsUsage: "<id>",
		Flags: []ucli.Flag{
			&ucli.BoolFlag{
				Name:  "cached",
				Usage: "Read from the local cache instead of the server",
			},
		},
		Action: c.action(func(cCtx *ucli.Context) error {
			ctx := cCtx.Context
			id, err := postID(cCtx)
			if err != nil {
				return err
			}

			var post *api.Post
			if cCtx.Bool("cached") {
				post, err = c.store.GetCachedPost(ctx, id)
				if errors.Is(err, storage.ErrPostNotFound) {
					return fmt.Errorf("post %s is not cached, run 'gophblog post list' first", id)
				}
			} else {
				post, err = c.client.GetPost(ctx, id)
				if err == nil {
					c.cachePost(cCtx, post)
				}
			}
			if err != nil {
				return fmt.Errorf("failed to get post: %w", err)
			}

			c.printPost(post)
			c.io.Println()
			c.io.Println(post.Content)
			return nil
		}),
	}
}

func postID(cCtx *ucli.Context) (string, error) {
	if cCtx.NArg() != 1 {
		return "", errors.New("expected exactly one post id")
	}
	return strings.TrimSpace(cCtx.Args().First()), nil
}

// cachePost keeps a fetched post for offline reading; failures only warn
func (c *Cli) cachePost(cCtx *ucli.Context, post *api.Post) {
	if err := c.store.SavePost(cCtx.Context, post); err != nil {
		c.io.Printf("Warning: failed to cache post: %v\n", err)
	}
}

func (c *Cli) printPost(post *api.Post) {
	c.io.Printf("ID: %s\n", post.ID)
	c.io.Printf("Title: %s\n", post.Title)
	c.io.Printf("Author: %s\n", post.Author.Username)
	if post.Summary != "" {
		c.io.Printf("Summary: %s\n", post.Summary)
	}
	if post.Cover != "" {
		c.io.Printf("Cover: %s\n", post.Cover)
	}
	c.io.Printf("Created: %s\n", post.CreatedAt.Local().Format(time.RFC3339))
	if !post.UpdatedAt.Equal(post.CreatedAt) {
		c.io.Printf("Updated: %s\n", post.UpdatedAt.Local().Format(time.RFC3339))
	}
}

func (c *Cli) printList(posts []api.Post) {
	if len(posts) == 0 {
		c.io.Println("No posts.")
		return
	}
	for _, p := range posts {
		c.io.Printf("%s  %s  by %s  %s\n", p.ID, p.Title, p.Author.Username, p.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	c.io.Printf("\nTotal: %d post(s)\n", len(posts))
}
