package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"authtrail/internal/config"
	"authtrail/internal/models"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrInvalidInput   = errors.New("invalid input")
)

// DefaultRole is granted to every registered user.
const DefaultRole = "USER"

// UserDirectory looks users up by case-insensitive email and owns
// registration and role assignment.
type UserDirectory struct {
	db       *gorm.DB
	verifier CredentialVerifier
	now      func() time.Time
}

func NewUserDirectory(db *gorm.DB, verifier CredentialVerifier) *UserDirectory {
	return &UserDirectory{db: db, verifier: verifier, now: time.Now}
}

// FindByEmail returns nil, nil when no user has the email.
func (d *UserDirectory) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := d.db.WithContext(ctx).
		Where("email_normalized = ?", models.NormalizeEmail(email)).
		Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// GetByID returns ErrUserNotFound for unknown ids.
func (d *UserDirectory) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := d.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// List returns users ordered by creation time.
func (d *UserDirectory) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var users []models.User
	if err := d.db.WithContext(ctx).
		Order("created_at").
		Limit(limit).
		Offset(max(offset, 0)).
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

// Register creates an active user and grants DefaultRole. Concurrent
// registrations of the same email are settled by the unique index; the loser
// gets ErrDuplicateEmail.
func (d *UserDirectory) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	return d.createUser(ctx, in, DefaultRole)
}

func (d *UserDirectory) createUser(ctx context.Context, in RegisterInput, role string) (*models.User, error) {
	email := strings.TrimSpace(in.Email)
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email is not valid", ErrInvalidInput)
	}
	if in.Password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	hash, err := d.verifier.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	user := models.NewUser(email, in.DisplayName, hash, d.now())

	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrDuplicateEmail
			}
			return err
		}
		roleID, err := ensureRole(tx, role)
		if err != nil {
			return err
		}
		return tx.Create(&models.UserRole{UserID: user.ID, RoleID: roleID}).Error
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("register user: %w", err)
	}

	return user, nil
}

// MarkLogin stamps last_login_at after a successful authentication.
func (d *UserDirectory) MarkLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	at = at.UTC()
	return d.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"last_login_at": at, "updated_at": at}).Error
}

// SetActive enables or disables an account.
func (d *UserDirectory) SetActive(ctx context.Context, userID uuid.UUID, active bool) error {
	res := d.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"active": active, "updated_at": d.now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// RoleNames returns the names of the roles assigned to userID, sorted.
func (d *UserDirectory) RoleNames(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var names []string
	err := d.db.WithContext(ctx).
		Model(&models.Role{}).
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Order("roles.name").
		Pluck("roles.name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return names, nil
}

// GrantRole assigns roleName to userID, creating the role if needed.
// Granting an already held role is a no-op.
func (d *UserDirectory) GrantRole(ctx context.Context, userID uuid.UUID, roleName string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		roleID, err := ensureRole(tx, roleName)
		if err != nil {
			return err
		}
		link := models.UserRole{UserID: userID, RoleID: roleID}
		return tx.Where("user_id = ? AND role_id = ?", userID, roleID).FirstOrCreate(&link).Error
	})
}

// EnsureRoles creates any missing roles so later registrations only read them.
func (d *UserDirectory) EnsureRoles(ctx context.Context, names ...string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, name := range names {
			if _, err := ensureRole(tx, name); err != nil {
				return err
			}
		}
		return nil
	})
}

// CreateDefaultUser seeds the configured account when the directory is empty.
func (d *UserDirectory) CreateDefaultUser(ctx context.Context, cfg config.DefaultUserConfig) error {
	if cfg.Email == "" || cfg.Password == "" {
		return nil
	}

	var count int64
	if err := d.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	user, err := d.createUser(ctx, RegisterInput{Email: cfg.Email, Password: cfg.Password, DisplayName: "Administrator"}, DefaultRole)
	if err != nil {
		return err
	}
	if cfg.Role != "" && cfg.Role != DefaultRole {
		return d.GrantRole(ctx, user.ID, cfg.Role)
	}
	return nil
}

func ensureRole(tx *gorm.DB, name string) (uint, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return 0, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}

	role := models.Role{Name: name}
	if err := tx.Where(models.Role{Name: name}).Attrs(models.Role{Description: "Default " + strings.ToLower(name)}).FirstOrCreate(&role).Error; err != nil {
		return 0, fmt.Errorf("ensure role %s: %w", name, err)
	}
	return role.ID, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysqldriver.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}
