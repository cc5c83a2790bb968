// Package posts stores posts and the reactions users leave on them.
package posts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomyedwab/sibilus/database"
	"github.com/tomyedwab/sibilus/schema"
)

var (
	ErrPostNotFound      = errors.New("post not found")
	ErrDuplicateReaction = errors.New("reaction already recorded")
	ErrInvalidReaction   = errors.New("invalid reaction")
)

type Post struct {
	ID        int64
	Content   string
	AuthorID  int64
	CreatedAt time.Time
	Tags      []string
}

type Reaction struct {
	Reaction string
	ByUserID int64
	PostID   int64
}

var postColumns = []string{"id", "content", "authorId", "createdAt", "tags"}

// Create stores a post and returns its id. Empty content falls back to the
// column default. Tags are kept as a JSON array, or NULL when there are none.
func Create(ctx context.Context, client *database.Client, authorID int64, content string, tags []string) (int64, error) {
	fields := []database.Field{
		database.Set("authorId", authorID),
		database.Set("createdAt", time.Now().UTC().Unix()),
	}
	if content != "" {
		fields = append(fields, database.Set("content", content))
	}
	if len(tags) > 0 {
		encoded, err := json.Marshal(tags)
		if err != nil {
			return 0, fmt.Errorf("failed to encode tags: %w", err)
		}
		fields = append(fields, database.Set("tags", string(encoded)))
	} else {
		fields = append(fields, database.Set("tags", nil))
	}

	id, err := client.Insert(ctx, schema.Posts, fields...)
	if err != nil {
		return 0, fmt.Errorf("failed to create post: %w", err)
	}
	return id, nil
}

func scanPost(row database.Row) (Post, error) {
	var post Post
	post.ID, _ = row.Int64(0)
	post.Content, _ = row.String(1)
	post.AuthorID, _ = row.Int64(2)
	createdAt, _ := row.Int64(3)
	post.CreatedAt = time.Unix(createdAt, 0).UTC()
	if encoded, ok := row.String(4); ok && encoded != "" {
		if err := json.Unmarshal([]byte(encoded), &post.Tags); err != nil {
			return post, fmt.Errorf("post %d has malformed tags: %w", post.ID, err)
		}
	}
	return post, nil
}

func readPosts(ctx context.Context, client *database.Client, max int, conds ...database.Condition) ([]Post, error) {
	rows, err := client.Read(ctx, database.ReadQuery{
		Table:      schema.Posts,
		Columns:    postColumns,
		MaxRows:    max,
		Conditions: conds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read posts: %w", err)
	}

	var posts []Post
	for row, err := range rows.All() {
		if err != nil {
			return nil, fmt.Errorf("failed to read posts: %w", err)
		}
		post, err := scanPost(row)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// Get loads a single post.
func Get(ctx context.Context, client *database.Client, id int64) (*Post, error) {
	posts, err := readPosts(ctx, client, 1, database.Eq("id", id))
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, ErrPostNotFound
	}
	return &posts[0], nil
}

// ByAuthor returns up to max posts written by authorID.
func ByAuthor(ctx context.Context, client *database.Client, authorID int64, max int) ([]Post, error) {
	return readPosts(ctx, client, max, database.Eq("authorId", authorID))
}

// React records userID's reaction to postID. A user can leave each kind of
// reaction only once.
func React(ctx context.Context, client *database.Client, postID, userID int64, reaction string) error {
	reaction = strings.TrimSpace(reaction)
	if reaction == "" {
		return ErrInvalidReaction
	}
	_, err := client.Write(ctx, schema.PostReactions,
		database.Set("reaction", reaction),
		database.Set("byUserId", userID),
		database.Set("postId", postID),
	)
	if err != nil {
		if database.IsConstraintViolation(err) {
			return ErrDuplicateReaction
		}
		return fmt.Errorf("failed to record reaction: %w", err)
	}
	return nil
}

// Reactions returns up to max reactions left on postID.
func Reactions(ctx context.Context, client *database.Client, postID int64, max int) ([]Reaction, error) {
	rows, err := client.Read(ctx, database.ReadQuery{
		Table:      schema.PostReactions,
		Columns:    []string{"reaction", "byUserId", "postId"},
		MaxRows:    max,
		Conditions: []database.Condition{database.Eq("postId", postID)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read reactions: %w", err)
	}
	found, err := database.Collect(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read reactions: %w", err)
	}

	reactions := make([]Reaction, 0, len(found))
	for _, row := range found {
		var r Reaction
		r.Reaction, _ = row.String(0)
		r.ByUserID, _ = row.Int64(1)
		r.PostID, _ = row.Int64(2)
		reactions = append(reactions, r)
	}
	return reactions, nil
}

// ReactionKinds returns the distinct reactions left on postID.
func ReactionKinds(ctx context.Context, client *database.Client, postID int64, max int) ([]string, error) {
	rows, err := client.Read(ctx, database.ReadQuery{
		Table:      schema.PostReactions,
		Columns:    []string{"reaction"},
		MaxRows:    max,
		Conditions: []database.Condition{database.Eq("postId", postID)},
		Unique:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read reaction kinds: %w", err)
	}
	defer rows.Close()

	var kinds []string
	for rows.Next() {
		kind, _ := rows.Row().String(0)
		kinds = append(kinds, kind)
	}
	return kinds, rows.Err()
}
