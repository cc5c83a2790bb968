package users

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomyedwab/sibilus/database"
	"github.com/tomyedwab/sibilus/schema"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidUser        = errors.New("invalid user")
)

// passwordCost is the bcrypt work factor. Tests lower it.
var passwordCost = bcrypt.DefaultCost

type User struct {
	ID          int64
	Username    string
	DisplayName string
	Bio         string
	CreatedAt   time.Time
}

type NewUser struct {
	Email       string
	Password    string
	Username    string
	DisplayName string
	Bio         string // Optional; the column default applies when empty
}

// HashEmail normalises an address and returns its hex SHA-256. Addresses are
// never stored in the clear.
func HashEmail(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

// Register stores a new user and returns the assigned id.
func Register(ctx context.Context, client *database.Client, u NewUser) (int64, error) {
	if strings.TrimSpace(u.Email) == "" || u.Password == "" || strings.TrimSpace(u.Username) == "" {
		return 0, fmt.Errorf("%w: email, password and username are required", ErrInvalidUser)
	}
	displayName := u.DisplayName
	if displayName == "" {
		displayName = u.Username
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(u.Password), passwordCost)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidUser, err)
	}

	emailHash := HashEmail(u.Email)
	fields := []database.Field{
		database.Set("emailHash", emailHash),
		database.Set("passwordHash", string(passwordHash)),
		database.Set("username", u.Username),
		database.Set("displayname", displayName),
		database.Set("createdAt", time.Now().UTC().Unix()),
	}
	if u.Bio != "" {
		fields = append(fields, database.Set("bio", u.Bio))
	}

	id, err := client.Insert(ctx, schema.Users, fields...)
	if err != nil {
		if database.IsConstraintViolation(err) {
			return 0, ErrUserExists
		}
		return 0, fmt.Errorf("failed to insert user %s: %w", u.Username, err)
	}
	return id, nil
}

func lookupByEmailHash(ctx context.Context, client *database.Client, emailHash string) (int64, string, error) {
	rows, err := client.Read(ctx, database.ReadQuery{
		Table:      schema.Users,
		Columns:    []string{"id", "passwordHash"},
		MaxRows:    1,
		Conditions: []database.Condition{database.Eq("emailHash", emailHash)},
	})
	if err != nil {
		return 0, "", err
	}
	found, err := database.Collect(rows)
	if err != nil {
		return 0, "", err
	}
	if len(found) == 0 {
		return 0, "", ErrUserNotFound
	}
	id, _ := found[0].Int64(0)
	hash, _ := found[0].String(1)
	return id, hash, nil
}

// Authenticate checks an email/password pair and returns the user id. Unknown
// addresses and wrong passwords both report ErrInvalidCredentials.
func Authenticate(ctx context.Context, client *database.Client, email, password string) (int64, error) {
	id, hash, err := lookupByEmailHash(ctx, client, HashEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return 0, ErrInvalidCredentials
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return 0, ErrInvalidCredentials
	}
	return id, nil
}

// Get loads a user's public profile.
func Get(ctx context.Context, client *database.Client, id int64) (*User, error) {
	rows, err := client.Read(ctx, database.ReadQuery{
		Table:      schema.Users,
		Columns:    []string{"id", "username", "displayname", "bio", "createdAt"},
		MaxRows:    1,
		Conditions: []database.Condition{database.Eq("id", id)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read user %d: %w", id, err)
	}
	found, err := database.Collect(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read user %d: %w", id, err)
	}
	if len(found) == 0 {
		return nil, ErrUserNotFound
	}

	row := found[0]
	user := &User{}
	user.ID, _ = row.Int64(0)
	user.Username, _ = row.String(1)
	user.DisplayName, _ = row.String(2)
	user.Bio, _ = row.String(3)
	createdAt, _ := row.Int64(4)
	user.CreatedAt = time.Unix(createdAt, 0).UTC()
	return user, nil
}
