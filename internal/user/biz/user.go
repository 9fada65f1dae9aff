package biz

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	mediabiz "github.com/akuzmenko/blogpix/internal/media/biz"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUsernameTaken   = errors.New("username already taken")
	ErrEmailTaken      = errors.New("email already registered")
	ErrUserBlocked     = errors.New("user is temporarily blocked")
	ErrProfileNotFound = errors.New("profile not found")
	ErrWrongPassword   = errors.New("wrong password")
)

// blocking policy for repeated failed logins
const (
	maxFailedAttempts = 5
	blockWindow       = 24 * time.Hour
)

// User is the account record. Username and normalized email are unique.
type User struct {
	ID           int64
	Username     string
	Email        string // stored normalized
	FirstName    string
	LastName     string
	PasswordHash string
	IsActive     bool
	DateJoined   time.Time
	UpdatedAt    time.Time
	Profile      *Profile
}

// Profile holds per-user state that changes independently of the
// account: birthday, the failed-login counter with its block window,
// and the current avatar asset. Exactly one profile exists per user.
type Profile struct {
	ID             int64
	UserID         int64
	Birthday       *time.Time
	FailedAttempts int
	BlockedUntil   *time.Time
	AvatarAssetID  *string
	UpdatedAt      time.Time
}

// Blocked reports whether the block window is still open at now
func (p *Profile) Blocked(now time.Time) bool {
	return p.BlockedUntil != nil && now.Before(*p.BlockedUntil)
}

// UserRepo defines user and profile persistence. Create inserts the
// user together with its empty profile in one transaction.
type UserRepo interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context, offset, limit int) ([]*User, int64, error)
	Update(ctx context.Context, id int64, update *UserUpdate) error
	Delete(ctx context.Context, id int64) error
	UsernameExists(ctx context.Context, username string, excludeID int64) (bool, error)
	EmailExists(ctx context.Context, email string, excludeID int64) (bool, error)

	GetProfile(ctx context.Context, userID int64) (*Profile, error)
	UpdateProfile(ctx context.Context, userID int64, update *ProfileUpdate) error
}

// UserUpdate carries partial user changes; nil fields are untouched
type UserUpdate struct {
	Email     *string
	FirstName *string
	LastName  *string
	IsActive  *bool
}

// ProfileUpdate carries partial profile changes. AvatarAssetID and
// BlockedUntil use double pointers so nil-the-value can be expressed.
type ProfileUpdate struct {
	Birthday       **time.Time
	FailedAttempts *int
	BlockedUntil   **time.Time
	AvatarAssetID  **string
}

type UserUseCase struct {
	repo   UserRepo
	media  *mediabiz.AssetUseCase
	tm     mediabiz.TransactionManager
	logger *zap.Logger
}

func NewUserUseCase(repo UserRepo, media *mediabiz.AssetUseCase, tm mediabiz.TransactionManager, logger *zap.Logger) *UserUseCase {
	return &UserUseCase{repo: repo, media: media, tm: tm, logger: logger}
}

// CreateUser registers a user with a fresh empty profile. Username is
// lowercased and the email is normalized before uniqueness checks.
func (uc *UserUseCase) CreateUser(ctx context.Context, username, email, password, firstName, lastName string) (*User, error) {
	username = NormalizeUsername(username)
	email = NormalizeEmail(email)

	if taken, err := uc.repo.UsernameExists(ctx, username, 0); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrUsernameTaken
	}
	if taken, err := uc.repo.EmailExists(ctx, email, 0); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &User{
		Username:     username,
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: string(hash),
		IsActive:     true,
		DateJoined:   now,
		UpdatedAt:    now,
		Profile:      &Profile{UpdatedAt: now},
	}

	if err := uc.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (uc *UserUseCase) GetUser(ctx context.Context, id int64) (*User, error) {
	return uc.repo.GetByID(ctx, id)
}

func (uc *UserUseCase) ListUsers(ctx context.Context, page, pageSize int) ([]*User, int64, error) {
	return uc.repo.List(ctx, (page-1)*pageSize, pageSize)
}

func (uc *UserUseCase) UpdateUser(ctx context.Context, id int64, update *UserUpdate) (*User, error) {
	if update.Email != nil {
		normalized := NormalizeEmail(*update.Email)
		if taken, err := uc.repo.EmailExists(ctx, normalized, id); err != nil {
			return nil, err
		} else if taken {
			return nil, ErrEmailTaken
		}
		update.Email = &normalized
	}

	if err := uc.repo.Update(ctx, id, update); err != nil {
		return nil, err
	}
	return uc.repo.GetByID(ctx, id)
}

// DeleteUser removes the user, its profile and its assets as one
// transaction, then cleans up the asset blobs
func (uc *UserUseCase) DeleteUser(ctx context.Context, id int64) error {
	owner := uc.ownerRef(id)

	assets, err := uc.media.ListByOwner(ctx, owner)
	if err != nil {
		return err
	}

	err = uc.tm.Transaction(ctx, func(txCtx context.Context) error {
		if err := uc.media.DeleteByOwner(txCtx, owner); err != nil {
			return err
		}
		return uc.repo.Delete(txCtx, id)
	})
	if err != nil {
		return err
	}

	uc.media.CleanupBlobs(ctx, assets)
	return nil
}

// VerifyPassword checks credentials and applies the blocking policy:
// five consecutive failures close the account for 24 hours
func (uc *UserUseCase) VerifyPassword(ctx context.Context, username, password string) (*User, error) {
	user, err := uc.repo.GetByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		return nil, err
	}
	if user.Profile == nil {
		return nil, ErrProfileNotFound
	}

	now := time.Now().UTC()
	if user.Profile.Blocked(now) {
		return nil, ErrUserBlocked
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if ferr := uc.registerFailure(ctx, user.Profile, now); ferr != nil {
			uc.logger.Warn("failed-attempt bookkeeping failed",
				zap.Int64("user_id", user.ID),
				zap.Error(ferr),
			)
		}
		return nil, ErrWrongPassword
	}

	if user.Profile.FailedAttempts > 0 || user.Profile.BlockedUntil != nil {
		zero := 0
		var until *time.Time
		if err := uc.repo.UpdateProfile(ctx, user.ID, &ProfileUpdate{
			FailedAttempts: &zero,
			BlockedUntil:   &until,
		}); err != nil {
			return nil, err
		}
	}
	return user, nil
}

func (uc *UserUseCase) registerFailure(ctx context.Context, profile *Profile, now time.Time) error {
	attempts := profile.FailedAttempts + 1
	update := &ProfileUpdate{FailedAttempts: &attempts}
	if attempts >= maxFailedAttempts {
		until := now.Add(blockWindow)
		p := &until
		update.BlockedUntil = &p
	}
	return uc.repo.UpdateProfile(ctx, profile.UserID, update)
}

func (uc *UserUseCase) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	return uc.repo.GetProfile(ctx, userID)
}

func (uc *UserUseCase) UpdateProfile(ctx context.Context, userID int64, birthday *time.Time) (*Profile, error) {
	if err := uc.repo.UpdateProfile(ctx, userID, &ProfileUpdate{Birthday: &birthday}); err != nil {
		return nil, err
	}
	return uc.repo.GetProfile(ctx, userID)
}

// UploadAvatar replaces the user's avatar. The new asset row, the
// profile retarget and the old asset row removal commit as one unit;
// the old blob is cleaned up only after the transaction succeeds.
func (uc *UserUseCase) UploadAvatar(ctx context.Context, userID int64, filename string, r io.Reader) (*mediabiz.Asset, error) {
	profile, err := uc.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	var old *mediabiz.Asset
	if profile.AvatarAssetID != nil {
		old, err = uc.media.Get(ctx, *profile.AvatarAssetID)
		if err != nil && !errors.Is(err, mediabiz.ErrAssetNotFound) {
			return nil, err
		}
	}

	asset, err := uc.media.Upload(ctx, uc.ownerRef(userID), filename, r, func(txCtx context.Context, asset *mediabiz.Asset) error {
		if old != nil {
			if err := uc.media.DeleteRecord(txCtx, old.ID); err != nil && !errors.Is(err, mediabiz.ErrAssetNotFound) {
				return err
			}
		}
		id := asset.ID
		p := &id
		return uc.repo.UpdateProfile(txCtx, userID, &ProfileUpdate{AvatarAssetID: &p})
	})
	if err != nil {
		return nil, err
	}

	if old != nil {
		uc.media.CleanupBlobs(ctx, []*mediabiz.Asset{old})
	}
	return asset, nil
}

// ResolveAvatar returns the public URL of the avatar derivative at the
// given size, materializing it on first demand
func (uc *UserUseCase) ResolveAvatar(ctx context.Context, userID int64, width, height int) (string, error) {
	profile, err := uc.repo.GetProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	if profile.AvatarAssetID == nil {
		return "", mediabiz.ErrAssetNotFound
	}
	return uc.media.ResolveDerivative(ctx, *profile.AvatarAssetID, width, height)
}

// AvatarURL returns the original avatar URL, or "" when none is set
func (uc *UserUseCase) AvatarURL(ctx context.Context, profile *Profile) string {
	if profile == nil || profile.AvatarAssetID == nil {
		return ""
	}
	asset, err := uc.media.Get(ctx, *profile.AvatarAssetID)
	if err != nil {
		return ""
	}
	return uc.media.AssetURL(asset)
}

// AssetURL returns the public URL of an uploaded asset's original
func (uc *UserUseCase) AssetURL(asset *mediabiz.Asset) string {
	return uc.media.AssetURL(asset)
}

func (uc *UserUseCase) ownerRef(userID int64) mediabiz.OwnerRef {
	return mediabiz.OwnerRef{Kind: mediabiz.OwnerKindUser, ID: userID}
}
